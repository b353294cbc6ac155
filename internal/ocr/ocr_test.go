package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kohlhaas/docintel/internal/errdef"
	"github.com/kohlhaas/docintel/internal/plugin"
	"github.com/kohlhaas/docintel/internal/types"
)

type fakeBackend struct {
	name   string
	result *types.OCRResult
	err    error
	calls  int
}

func (f *fakeBackend) Name() string                 { return f.name }
func (f *fakeBackend) SupportedLanguages() []string { return []string{"eng"} }
func (f *fakeBackend) Shutdown() error              { return nil }
func (f *fakeBackend) ProcessImage(_ context.Context, _ []byte, _ string) (*types.OCRResult, error) {
	f.calls++
	return f.result, f.err
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecideForceOCRWins(t *testing.T) {
	result := types.NewResult("application/pdf")
	result.Content = "plenty of already extracted text on this page"

	d := Decide(result, &types.ExtractionConfig{ForceOCR: types.BoolPtr(true)})
	assert.Equal(t, StateRequired, d.State)
	assert.Equal(t, ReasonForced, d.Reason)
}

func TestDecideNoTextOnVisualPage(t *testing.T) {
	result := types.NewResult("application/pdf")
	result.Content = "  "
	result.HasVisualContent = true

	d := Decide(result, nil)
	assert.Equal(t, StateRequired, d.State)
	assert.Equal(t, ReasonNoText, d.Reason)
}

func TestDecideCoverageThreshold(t *testing.T) {
	result := types.NewResult("application/pdf")
	result.Content = "a digital document with real extractable text content"
	result.HasVisualContent = true
	result.TextCoverage = 0.4

	// Above the default threshold: no OCR.
	d := Decide(result, nil)
	assert.Equal(t, StateNotNeeded, d.State)

	// A stricter configured threshold triggers it.
	cfg := &types.ExtractionConfig{
		OCR: &types.OCRConfig{CoverageThreshold: types.Float64Ptr(0.8)},
	}
	d = Decide(result, cfg)
	assert.Equal(t, StateRequired, d.State)
	assert.Equal(t, ReasonLowCoverage, d.Reason)
}

func TestDecideExplicitDisable(t *testing.T) {
	result := types.NewResult("image/png")
	result.HasVisualContent = true

	cfg := &types.ExtractionConfig{
		OCR: &types.OCRConfig{Enabled: types.BoolPtr(false)},
	}
	d := Decide(result, cfg)
	assert.Equal(t, StateNotNeeded, d.State)
}

func TestResolveUnknownBackendIsMissingDependency(t *testing.T) {
	o := NewOrchestrator(plugin.NewRegistry(nil), nil)

	_, err := o.Resolve("nonexistent-engine")
	require.Error(t, err)

	var e *errdef.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errdef.KindMissingDependency, e.Kind)
	assert.Equal(t, "nonexistent-engine", e.Dependency)
}

func TestResolvePrefersRegisteredPlugin(t *testing.T) {
	reg := plugin.NewRegistry(nil)
	override := &fakeBackend{name: "tesseract"}
	reg.RegisterOCRBackend("tesseract", 0, override)

	o := NewOrchestrator(reg, nil)
	b, err := o.Resolve("tesseract")
	require.NoError(t, err)
	assert.Same(t, plugin.OCRBackend(override), b)
}

func TestRunCombinesImagesInOrder(t *testing.T) {
	reg := plugin.NewRegistry(nil)
	backend := &fakeBackend{name: "stub", result: &types.OCRResult{
		Text:     "page text",
		Elements: []types.OCRElement{{Text: "page", Confidence: 91}},
	}}
	reg.RegisterOCRBackend("stub", 0, backend)

	o := NewOrchestrator(reg, nil)
	res, state, err := o.Run(context.Background(), [][]byte{testPNG(t), testPNG(t)}, &types.OCRConfig{Backend: "stub"})
	require.NoError(t, err)

	assert.Equal(t, 2, backend.calls)
	assert.Equal(t, "page text\n\npage text", res.Text)
	assert.Len(t, res.Elements, 2)
	assert.Equal(t, StateSucceeded, state)
}

func TestRunBackendFailureIsOCRKind(t *testing.T) {
	reg := plugin.NewRegistry(nil)
	reg.RegisterOCRBackend("stub", 0, &fakeBackend{name: "stub", err: errors.New("engine crashed")})

	o := NewOrchestrator(reg, nil)
	_, state, err := o.Run(context.Background(), [][]byte{testPNG(t)}, &types.OCRConfig{Backend: "stub"})
	require.Error(t, err)
	assert.Equal(t, errdef.KindOCR, errdef.KindOf(err))
	assert.Equal(t, StateFailed, state)
}

func TestRunStateIsPerRun(t *testing.T) {
	reg := plugin.NewRegistry(nil)
	reg.RegisterOCRBackend("good", 0, &fakeBackend{name: "good", result: &types.OCRResult{Text: "ok"}})
	reg.RegisterOCRBackend("bad", 0, &fakeBackend{name: "bad", err: errors.New("engine crashed")})

	o := NewOrchestrator(reg, nil)
	img := testPNG(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, state, err := o.Run(context.Background(), [][]byte{img}, &types.OCRConfig{Backend: "good"})
				assert.NoError(t, err)
				assert.Equal(t, StateSucceeded, state)
			} else {
				_, state, err := o.Run(context.Background(), [][]byte{img}, &types.OCRConfig{Backend: "bad"})
				assert.Error(t, err)
				assert.Equal(t, StateFailed, state)
			}
		}(i)
	}
	wg.Wait()
}

func TestRegisterBuiltinDuringRuns(t *testing.T) {
	reg := plugin.NewRegistry(nil)
	reg.RegisterOCRBackend("stub", 0, &fakeBackend{name: "stub", result: &types.OCRResult{Text: "ok"}})

	o := NewOrchestrator(reg, nil)
	img := testPNG(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o.RegisterBuiltin("extra", &fakeBackend{name: "extra"})
			_, state, err := o.Run(context.Background(), [][]byte{img}, &types.OCRConfig{Backend: "stub"})
			assert.NoError(t, err)
			assert.Equal(t, StateSucceeded, state)
		}(i)
	}
	wg.Wait()

	b, err := o.Resolve("extra")
	require.NoError(t, err)
	assert.Equal(t, "extra", b.Name())
}

func TestPreprocessAppliesConfiguredSteps(t *testing.T) {
	original := testPNG(t)
	out, err := Preprocess(original, &types.PreprocessConfig{
		Grayscale:         true,
		ContrastNormalize: true,
		SharpenSigma:      0.5,
	})
	require.NoError(t, err)
	require.NotEmpty(t, out)

	img, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)

	// Grayscale output has equal channels everywhere.
	r, g, b, _ := img.At(10, 10).RGBA()
	assert.Equal(t, r, g)
	assert.Equal(t, g, b)
}

func TestPreprocessNilConfigPassesThrough(t *testing.T) {
	data := testPNG(t)
	out, err := Preprocess(data, nil)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestPreprocessRejectsGarbage(t *testing.T) {
	_, err := Preprocess([]byte("not an image"), &types.PreprocessConfig{Grayscale: true})
	require.Error(t, err)
	assert.Equal(t, errdef.KindImageProcessing, errdef.KindOf(err))
}
