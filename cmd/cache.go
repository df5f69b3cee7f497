package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/rate-map/internal/geocache"
	"github.com/sells-group/rate-map/internal/model"
	"github.com/sells-group/rate-map/pkg/geocode"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the geocode cache",
}

var cacheGetCmd = &cobra.Command{
	Use:   "get <query>",
	Short: "Print the cached coordinate for a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := openCache(cmd.Context())
		if err != nil {
			return err
		}
		defer cache.Close() //nolint:errcheck

		query := geocode.NormalizeQuery(args[0])
		c, ok := cache.Get(cmd.Context(), query)
		if !ok {
			return eris.Errorf("no cache entry for %q", query)
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(c)
	},
}

var cachePutCmd = &cobra.Command{
	Use:   "put <query> <lat> <lon>",
	Short: "Store a coordinate for a query",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := parseCoordinate(args[1], args[2])
		if err != nil {
			return err
		}

		cache, err := openCache(cmd.Context())
		if err != nil {
			return err
		}
		defer cache.Close() //nolint:errcheck

		query := geocode.NormalizeQuery(args[0])
		cache.Put(cmd.Context(), query, c)
		fmt.Fprintf(cmd.OutOrStdout(), "cached %q -> %.6f,%.6f\n", query, c.Latitude, c.Longitude)
		return nil
	},
}

var cacheMigrateFrom string

var cacheMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create cache tables and optionally import a JSON cache file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := openCache(cmd.Context())
		if err != nil {
			return err
		}
		defer cache.Close() //nolint:errcheck

		n, err := importCacheFile(cmd.Context(), cache, cacheMigrateFrom)
		if err != nil {
			return err
		}
		zap.L().Info("cache migrated",
			zap.String("driver", cfg.Cache.Driver),
			zap.Int("imported", n),
			zap.Int("entries", cache.Len(cmd.Context())),
		)
		return nil
	},
}

// openCache opens the configured backend. SQL backends create their table on
// open.
func openCache(ctx context.Context) (*geocache.Cache, error) {
	if err := cfg.Validate("cache"); err != nil {
		return nil, err
	}
	backend, err := openBackend(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	return geocache.New(backend), nil
}

// importCacheFile copies every valid entry of a JSON file cache into cache.
func importCacheFile(ctx context.Context, cache *geocache.Cache, path string) (int, error) {
	if path == "" {
		return 0, nil
	}
	entries, err := geocache.NewFileBackend(path).Load(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "read cache file %s", path)
	}
	normalized := make(map[string]model.Coordinate, len(entries))
	for query, c := range entries {
		normalized[geocode.NormalizeQuery(query)] = c
	}
	return cache.PutAll(ctx, normalized), nil
}

func parseCoordinate(lat, lon string) (model.Coordinate, error) {
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return model.Coordinate{}, eris.Wrapf(err, "parse latitude %q", lat)
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return model.Coordinate{}, eris.Wrapf(err, "parse longitude %q", lon)
	}
	c := model.Coordinate{Latitude: la, Longitude: lo}
	if !c.Valid() {
		return model.Coordinate{}, eris.Errorf("coordinate %s,%s is out of range", lat, lon)
	}
	return c, nil
}

func init() {
	cacheMigrateCmd.Flags().StringVar(&cacheMigrateFrom, "from-file", "", "import entries from a JSON cache file")
	cacheCmd.AddCommand(cacheGetCmd, cachePutCmd, cacheMigrateCmd)
	rootCmd.AddCommand(cacheCmd)
}
