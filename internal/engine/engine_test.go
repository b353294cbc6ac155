package engine

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kohlhaas/docintel/internal/errdef"
	"github.com/kohlhaas/docintel/internal/types"
)

type scriptedBackend struct {
	text string
	err  error
}

func (s *scriptedBackend) Name() string                 { return "scripted" }
func (s *scriptedBackend) SupportedLanguages() []string { return []string{"eng"} }
func (s *scriptedBackend) Shutdown() error              { return nil }
func (s *scriptedBackend) ProcessImage(context.Context, []byte, string) (*types.OCRResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &types.OCRResult{Text: s.text}, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 24, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 24; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestEngine(backend *scriptedBackend) *Engine {
	e := New(Options{})
	if backend != nil {
		e.Plugins().RegisterOCRBackend("scripted", 0, backend)
	}
	return e
}

func ocrConfig() *types.ExtractionConfig {
	return &types.ExtractionConfig{
		OCR:      &types.OCRConfig{Backend: "scripted"},
		UseCache: types.BoolPtr(false),
	}
}

func TestExtractBytesPlainText(t *testing.T) {
	e := newTestEngine(nil)
	result, err := e.ExtractBytes(context.Background(),
		[]byte("A plain note about nothing in particular."), "note.txt", "", nil)
	require.NoError(t, err)

	assert.Equal(t, "text/plain", result.MimeType)
	assert.Equal(t, "A plain note about nothing in particular.", result.Content)
	require.NotNil(t, result.QualityScore)
	assert.NotNil(t, result.Tables)
	assert.NotNil(t, result.Chunks)
	assert.NotNil(t, result.Images)
}

func TestExtractBytesEmptyInput(t *testing.T) {
	e := newTestEngine(nil)
	_, err := e.ExtractBytes(context.Background(), nil, "", "", nil)
	require.Error(t, err)
	assert.Equal(t, errdef.KindValidation, errdef.KindOf(err))
}

func TestExtractBytesUnknownFormat(t *testing.T) {
	e := newTestEngine(nil)
	_, err := e.ExtractBytes(context.Background(), []byte{0x00, 0x01, 0x02, 0x03}, "", "", nil)
	require.Error(t, err)
	assert.Equal(t, errdef.KindUnsupportedFormat, errdef.KindOf(err))
}

func TestImageInputRunsOCR(t *testing.T) {
	e := newTestEngine(&scriptedBackend{text: "recognized text from the scan"})
	result, err := e.ExtractBytes(context.Background(), pngBytes(t), "scan.png", "", ocrConfig())
	require.NoError(t, err)
	assert.Equal(t, "recognized text from the scan", result.Content)
}

func TestOCRFailureDegradesWithoutForce(t *testing.T) {
	e := newTestEngine(&scriptedBackend{err: errors.New("engine unavailable")})
	result, err := e.ExtractBytes(context.Background(), pngBytes(t), "scan.png", "", ocrConfig())
	require.NoError(t, err, "extraction still succeeds, degraded")

	require.NotEmpty(t, result.Warnings)
	found := false
	for _, w := range result.Warnings {
		if w.Stage == "ocr" {
			found = true
		}
	}
	assert.True(t, found, "an ocr-stage warning is recorded")
}

func TestOCRFailureIsFatalWithForce(t *testing.T) {
	e := newTestEngine(&scriptedBackend{err: errors.New("engine unavailable")})
	cfg := ocrConfig()
	cfg.ForceOCR = types.BoolPtr(true)

	_, err := e.ExtractBytes(context.Background(), pngBytes(t), "scan.png", "", cfg)
	require.Error(t, err)
	assert.Equal(t, errdef.KindOCR, errdef.KindOf(err))
}

func TestUnknownOCRBackendIsMissingDependency(t *testing.T) {
	e := newTestEngine(nil)
	cfg := &types.ExtractionConfig{
		ForceOCR: types.BoolPtr(true),
		OCR:      &types.OCRConfig{Backend: "not-installed"},
		UseCache: types.BoolPtr(false),
	}
	_, err := e.ExtractBytes(context.Background(), pngBytes(t), "scan.png", "", cfg)
	require.Error(t, err)
	assert.Equal(t, errdef.KindMissingDependency, errdef.KindOf(err))
}

func TestExtractBatchPreservesOrderAndIsolation(t *testing.T) {
	e := newTestEngine(nil)
	items := []BatchItem{
		{Data: []byte("first document body"), PathHint: "a.txt"},
		{Data: []byte{0x00, 0x01, 0x02, 0x03}},
		{Data: []byte("third document body"), PathHint: "c.txt"},
	}

	results := e.ExtractBatch(context.Background(), items, &types.ExtractionConfig{UseCache: types.BoolPtr(false)})
	require.Len(t, results, 3)

	require.NoError(t, results[0].Err)
	assert.Equal(t, "first document body", results[0].Value.Content)

	require.Error(t, results[1].Err)
	assert.Equal(t, errdef.KindUnsupportedFormat, errdef.KindOf(results[1].Err))

	require.NoError(t, results[2].Err)
	assert.Equal(t, "third document body", results[2].Value.Content)
}

func TestExtractAsyncHandle(t *testing.T) {
	e := newTestEngine(nil)
	h := e.ExtractAsync(context.Background(), []byte("async body"), "a.txt", "", nil)

	result, err := h.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "async body", result.Content)
}

func TestCacheHitSkipsRecomputation(t *testing.T) {
	e := newTestEngine(nil)
	data := []byte("cache me once, serve me twice")

	_, err := e.ExtractBytes(context.Background(), data, "a.txt", "", nil)
	require.NoError(t, err)
	_, err = e.ExtractBytes(context.Background(), data, "a.txt", "", nil)
	require.NoError(t, err)

	stats := e.CacheStats(context.Background())
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)

	require.NoError(t, e.ClearCache(context.Background()))
	assert.Equal(t, 0, e.CacheStats(context.Background()).Entries)
}

func TestExtractFileCachedByFileIdentity(t *testing.T) {
	e := newTestEngine(nil)
	path := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("file body for the identity cache"), 0o644))

	first, err := e.ExtractFile(context.Background(), path, nil)
	require.NoError(t, err)
	second, err := e.ExtractFile(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, first.Content, second.Content)

	stats := e.CacheStats(context.Background())
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestExtractFileRewriteGetsNewIdentity(t *testing.T) {
	e := newTestEngine(nil)
	path := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("original body"), 0o644))

	first, err := e.ExtractFile(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, "original body", first.Content)

	// A different size guarantees a new identity even on coarse mtimes.
	require.NoError(t, os.WriteFile(path, []byte("rewritten and longer body"), 0o644))
	second, err := e.ExtractFile(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, "rewritten and longer body", second.Content)
}

func TestExtractFileMissingIsIOError(t *testing.T) {
	e := newTestEngine(nil)
	_, err := e.ExtractFile(context.Background(), filepath.Join(t.TempDir(), "absent.txt"), nil)
	require.Error(t, err)
	assert.Equal(t, errdef.KindIO, errdef.KindOf(err))
}

func TestDifferentConfigsDoNotShareCacheEntries(t *testing.T) {
	e := newTestEngine(nil)
	data := []byte("identical bytes, different effective config")

	_, err := e.ExtractBytes(context.Background(), data, "a.txt", "", nil)
	require.NoError(t, err)

	cfg := &types.ExtractionConfig{Keywords: &types.KeywordConfig{}}
	_, err = e.ExtractBytes(context.Background(), data, "a.txt", "", cfg)
	require.NoError(t, err)

	stats := e.CacheStats(context.Background())
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, 2, stats.Entries)
}
