package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/rmbg-local/internal/registry"
	"github.com/ironsheep/rmbg-local/internal/tensor"
)

func TestONNXLoader_MissingRuntime(t *testing.T) {
	d, err := registry.Describe(registry.U2NetP)
	require.NoError(t, err)

	// The library does not exist, so initialization fails before any download.
	l := NewONNXLoader(nil, filepath.Join(t.TempDir(), "libonnxruntime.so"), nil)
	called := false
	_, err = l.Load(context.Background(), d, func(float64) { called = true })
	require.ErrorIs(t, err, ErrLoad)
	assert.False(t, called)
}

func TestDownloadProgress_HoldsBackCompletion(t *testing.T) {
	var got []float64
	p := downloadProgress(func(f float64) { got = append(got, f) })
	for _, f := range []float64{0.1, 0.6, 1} {
		p(f)
	}
	assert.Equal(t, []float64{0.1, 0.6}, got)

	assert.Nil(t, downloadProgress(nil))
}

func TestDownloadProgress_CacheHitReportsNothing(t *testing.T) {
	dir := t.TempDir()
	f := NewFetcher(dir, nil)
	const url = "https://example.invalid/model.onnx"
	require.NoError(t, os.WriteFile(f.CachePath(url), []byte("weights"), 0o644))

	called := false
	data, err := f.Fetch(context.Background(), url, downloadProgress(func(float64) { called = true }))
	require.NoError(t, err)
	assert.Equal(t, []byte("weights"), data)
	assert.False(t, called, "completion is left to the loader")
}

type stubEngine struct{ closed bool }

func (s *stubEngine) Run(_ context.Context, in tensor.Tensor) (tensor.Tensor, error) {
	return in, nil
}

func (s *stubEngine) Close() error {
	s.closed = true
	return nil
}

func TestLoaderFunc(t *testing.T) {
	want := &stubEngine{}
	var loader Loader = LoaderFunc(func(_ context.Context, d registry.Descriptor, progress ProgressFunc) (Engine, error) {
		report(progress, 1)
		return want, nil
	})

	var got []float64
	e, err := loader.Load(context.Background(), registry.Descriptor{ID: registry.Silueta}, func(f float64) { got = append(got, f) })
	require.NoError(t, err)
	assert.Same(t, want, e)
	assert.Equal(t, []float64{1}, got)
}
