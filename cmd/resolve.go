package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/rate-map/internal/export"
	"github.com/sells-group/rate-map/internal/marker"
	"github.com/sells-group/rate-map/internal/model"
	"github.com/sells-group/rate-map/internal/source"
)

type resolveOptions struct {
	Input     string
	Format    string
	Shapefile string
}

var resolveOpts resolveOptions

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Run one resolution pass and print the markers",
	Long:  "Fetches rate records from the REST source (or --input), resolves their locations, and prints markers as they arrive (ndjson) or once the pass completes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !validFormat(resolveOpts.Format) {
			return eris.Errorf("unsupported format: %s", resolveOpts.Format)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "resolve")
		if err != nil {
			return err
		}
		defer env.Close()

		return runResolve(ctx, cmd.OutOrStdout(), env, resolveOpts)
	},
}

func runResolve(ctx context.Context, out io.Writer, env *resolveEnv, opts resolveOptions) error {
	records, err := loadRecords(ctx, env, opts.Input)
	if err != nil {
		return err
	}

	pass := env.Pipeline.Run(ctx, records)

	var markers []marker.Marker
	enc := json.NewEncoder(out)
	for m := range pass.Markers() {
		markers = append(markers, m)
		if opts.Format == formatNDJSON {
			if err := enc.Encode(m); err != nil {
				pass.Detach()
				return eris.Wrap(err, "write marker")
			}
		}
	}
	if err := pass.Wait(ctx); err != nil {
		return eris.Wrap(err, "wait for pass")
	}

	if opts.Format != formatNDJSON {
		if err := writeMarkers(out, opts.Format, markers); err != nil {
			return err
		}
	}

	if opts.Shapefile != "" {
		if err := export.Shapefile(opts.Shapefile, markers); err != nil {
			return err
		}
	}

	s := pass.Stats()
	zap.L().Info("resolve complete",
		zap.String("pass_id", pass.ID),
		zap.Int("records", s.Records),
		zap.Int("markers", len(markers)),
		zap.Int("missing_location", s.MissingLocation),
		zap.Int("lookup_failures", s.LookupFailures),
	)
	return nil
}

// loadRecords reads a local JSON array when input is set, else fetches from
// the REST source.
func loadRecords(ctx context.Context, env *resolveEnv, input string) ([]model.Record, error) {
	if input == "" {
		return env.Source.FetchRecords(ctx)
	}

	f, err := os.Open(input)
	if err != nil {
		return nil, eris.Wrapf(err, "open input %s", input)
	}
	defer f.Close() //nolint:errcheck

	return source.ReadRecords(ctx, f)
}

func init() {
	resolveCmd.Flags().StringVar(&resolveOpts.Input, "input", "", "read records from a local JSON array file instead of the REST source")
	resolveCmd.Flags().StringVar(&resolveOpts.Format, "format", formatNDJSON, "output format: ndjson, json, yaml or geojson")
	resolveCmd.Flags().StringVar(&resolveOpts.Shapefile, "shapefile", "", "also write markers to this .shp path")
	rootCmd.AddCommand(resolveCmd)
}
