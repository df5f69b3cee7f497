package marker

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(ch <-chan Marker) []Marker {
	var out []Marker
	for m := range ch {
		out = append(out, m)
	}
	return out
}

func TestStream_EmitFinish(t *testing.T) {
	s := NewStream(2)
	assert.True(t, s.Emit(Marker{Label: "a"}))
	assert.True(t, s.Emit(Marker{Label: "b"}))
	s.Finish()

	got := collect(s.Markers())
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Label)
	assert.Equal(t, "b", got[1].Label)
}

func TestStream_EmitAfterFinishIsNoop(t *testing.T) {
	s := NewStream(1)
	s.Finish()
	assert.False(t, s.Emit(Marker{Label: "late"}))
	assert.Empty(t, collect(s.Markers()))
}

func TestStream_DetachMakesEmitNoop(t *testing.T) {
	s := NewStream(4)
	require.True(t, s.Emit(Marker{Label: "before"}))
	s.Detach()

	assert.True(t, s.Detached())
	assert.NotPanics(t, func() {
		assert.False(t, s.Emit(Marker{Label: "after"}))
	})

	for _, m := range collect(s.Markers()) {
		assert.NotEqual(t, "after", m.Label)
	}
}

func TestStream_DetachAndFinishIdempotent(t *testing.T) {
	s := NewStream(1)
	assert.NotPanics(t, func() {
		s.Detach()
		s.Finish()
		s.Detach()
		s.Finish()
	})
}

func TestStream_OverCapacityDrops(t *testing.T) {
	s := NewStream(1)
	assert.True(t, s.Emit(Marker{Label: "a"}))
	assert.False(t, s.Emit(Marker{Label: "b"}))
}

func TestStream_ConcurrentEmitAndDetach(t *testing.T) {
	s := NewStream(100)
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Emit(Marker{Label: "x"})
		}()
	}
	s.Detach()
	wg.Wait()
	assert.LessOrEqual(t, len(collect(s.Markers())), 100)
}
