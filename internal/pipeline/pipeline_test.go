package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kohlhaas/docintel/internal/errdef"
	"github.com/kohlhaas/docintel/internal/plugin"
	"github.com/kohlhaas/docintel/internal/types"
)

type stageProcessor struct {
	name  string
	stage plugin.Stage
	fn    func(*types.ExtractionResult) (*types.ExtractionResult, error)
}

func (s *stageProcessor) Name() string                  { return s.name }
func (s *stageProcessor) ProcessingStage() plugin.Stage { return s.stage }
func (s *stageProcessor) Process(r *types.ExtractionResult) (*types.ExtractionResult, error) {
	return s.fn(r)
}

type namedValidator struct {
	name string
	fn   func(*types.ExtractionResult) error
}

func (v *namedValidator) Name() string                             { return v.name }
func (v *namedValidator) Validate(r *types.ExtractionResult) error { return v.fn(r) }

type stubEngine struct {
	vectors [][]float32
	err     error
	calls   int
}

func (s *stubEngine) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = append([]float32(nil), s.vectors[i%len(s.vectors)]...)
	}
	return out, nil
}

func (s *stubEngine) Dimensions() int { return 2 }
func (s *stubEngine) Model() string   { return "stub" }

const sampleContent = "Document intelligence turns files into structured data. " +
	"Extraction pipelines parse documents and produce searchable content. " +
	"Extraction quality depends on the source document format."

func TestRunAlwaysScoresQuality(t *testing.T) {
	p := New(nil, nil, nil)
	result := types.NewResult("text/plain")
	result.Content = sampleContent

	require.NoError(t, p.Run(context.Background(), result, nil))
	require.NotNil(t, result.QualityScore)
	assert.Greater(t, *result.QualityScore, 0.0)
	assert.LessOrEqual(t, *result.QualityScore, 1.0)
}

func TestRunSkipsStagesWithoutSubConfig(t *testing.T) {
	p := New(nil, nil, nil)
	result := types.NewResult("text/plain")
	result.Content = sampleContent

	require.NoError(t, p.Run(context.Background(), result, &types.ExtractionConfig{}))
	assert.Empty(t, result.DetectedLanguages)
	assert.Empty(t, result.Keywords)
	assert.Empty(t, result.Chunks)
}

func TestRunExplicitDisableSuppressesStage(t *testing.T) {
	p := New(nil, nil, nil)
	result := types.NewResult("text/plain")
	result.Content = sampleContent

	cfg := &types.ExtractionConfig{
		Keywords: &types.KeywordConfig{Enabled: types.BoolPtr(false)},
	}
	require.NoError(t, p.Run(context.Background(), result, cfg))
	assert.Empty(t, result.Keywords)
}

func TestRunEnrichmentStages(t *testing.T) {
	p := New(nil, nil, nil)
	result := types.NewResult("text/plain")
	result.Content = sampleContent

	cfg := &types.ExtractionConfig{
		LanguageDetection: &types.LanguageDetectionConfig{},
		Keywords:          &types.KeywordConfig{MaxKeywords: 5},
		Chunking:          &types.ChunkingConfig{MaxChars: 60, Boundary: types.BoundarySentence},
	}
	require.NoError(t, p.Run(context.Background(), result, cfg))

	assert.Contains(t, result.DetectedLanguages, "en")
	require.NotEmpty(t, result.Keywords)
	// "document" and "extraction" each occur twice; the alphabetical
	// tie-break puts "document" first.
	assert.Equal(t, "document", result.Keywords[0].Term)
	assert.Equal(t, 1.0, result.Keywords[0].Score)
	require.NotEmpty(t, result.Chunks)
	for _, c := range result.Chunks {
		assert.Equal(t, result.Content[c.ByteStart:c.ByteEnd], c.Content)
	}
}

func TestRunPostProcessorOrderAndRewrite(t *testing.T) {
	reg := plugin.NewRegistry(nil)
	var order []string
	reg.RegisterPostProcessor("first", 0, &stageProcessor{name: "first", stage: plugin.StageEarly,
		fn: func(r *types.ExtractionResult) (*types.ExtractionResult, error) {
			order = append(order, "early")
			r.Content = strings.ToUpper(r.Content)
			return r, nil
		}})
	reg.RegisterPostProcessor("second", 0, &stageProcessor{name: "second", stage: plugin.StageLate,
		fn: func(r *types.ExtractionResult) (*types.ExtractionResult, error) {
			order = append(order, "late")
			out := *r
			out.Content = out.Content + " [processed]"
			return &out, nil
		}})

	p := New(reg, nil, nil)
	result := types.NewResult("text/plain")
	result.Content = "hello world."

	require.NoError(t, p.Run(context.Background(), result, nil))
	assert.Equal(t, []string{"early", "late"}, order)
	assert.Equal(t, "HELLO WORLD. [processed]", result.Content)
}

func TestRunPostProcessorFailureDegradesToWarning(t *testing.T) {
	reg := plugin.NewRegistry(nil)
	reg.RegisterPostProcessor("faulty", 0, &stageProcessor{name: "faulty", stage: plugin.StageMiddle,
		fn: func(*types.ExtractionResult) (*types.ExtractionResult, error) {
			panic("host callback fault")
		}})

	p := New(reg, nil, nil)
	result := types.NewResult("text/plain")
	result.Content = sampleContent

	require.NoError(t, p.Run(context.Background(), result, nil))
	require.NotEmpty(t, result.Warnings)
	assert.Equal(t, "post-processor", result.Warnings[0].Stage)
	assert.Contains(t, result.Warnings[0].Message, "faulty")
}

func TestRunDisabledPostProcessorIsSkipped(t *testing.T) {
	reg := plugin.NewRegistry(nil)
	reg.RegisterPostProcessor("skipped", 0, &stageProcessor{name: "skipped", stage: plugin.StageEarly,
		fn: func(r *types.ExtractionResult) (*types.ExtractionResult, error) {
			r.Content = "rewritten"
			return r, nil
		}})

	p := New(reg, nil, nil)
	result := types.NewResult("text/plain")
	result.Content = "original"

	cfg := &types.ExtractionConfig{
		PostProcessor: &types.PostProcessorConfig{Disabled: []string{"skipped"}},
	}
	require.NoError(t, p.Run(context.Background(), result, cfg))
	assert.Equal(t, "original", result.Content)
}

func TestRunValidatorRejectionIsFatal(t *testing.T) {
	reg := plugin.NewRegistry(nil)
	reg.RegisterValidator("reject-all", 0, &namedValidator{name: "reject-all",
		fn: func(*types.ExtractionResult) error {
			return errors.New("content does not meet requirements")
		}})

	p := New(reg, nil, nil)
	result := types.NewResult("text/plain")
	result.Content = sampleContent

	err := p.Run(context.Background(), result, nil)
	require.Error(t, err)
	assert.Equal(t, errdef.KindValidation, errdef.KindOf(err))
}

func TestRunValidatorSeesFinalContent(t *testing.T) {
	reg := plugin.NewRegistry(nil)
	var seen string
	reg.RegisterValidator("observer", 0, &namedValidator{name: "observer",
		fn: func(r *types.ExtractionResult) error {
			seen = r.Content
			return nil
		}})
	reg.RegisterPostProcessor("upper", 0, &stageProcessor{name: "upper", stage: plugin.StageLate,
		fn: func(r *types.ExtractionResult) (*types.ExtractionResult, error) {
			r.Content = strings.ToUpper(r.Content)
			return r, nil
		}})

	p := New(reg, nil, nil)
	result := types.NewResult("text/plain")
	result.Content = "final shape."

	require.NoError(t, p.Run(context.Background(), result, nil))
	assert.Equal(t, "FINAL SHAPE.", seen)
}

func TestRunEmbeddingFillsNormalizedVectors(t *testing.T) {
	engine := &stubEngine{vectors: [][]float32{{3, 4}}}
	p := New(nil, engine, nil)
	result := types.NewResult("text/plain")
	result.Content = sampleContent

	cfg := &types.ExtractionConfig{
		Chunking: &types.ChunkingConfig{
			MaxChars: 60,
			Embed:    &types.EmbeddingConfig{},
		},
	}
	require.NoError(t, p.Run(context.Background(), result, cfg))
	require.NotEmpty(t, result.Chunks)
	for _, c := range result.Chunks {
		require.Len(t, c.Embedding, 2)
		assert.InDelta(t, 0.6, c.Embedding[0], 1e-6)
		assert.InDelta(t, 0.8, c.Embedding[1], 1e-6)
	}
}

func TestRunEmbeddingWithoutEngineDegrades(t *testing.T) {
	p := New(nil, nil, nil)
	result := types.NewResult("text/plain")
	result.Content = sampleContent

	cfg := &types.ExtractionConfig{
		Chunking: &types.ChunkingConfig{
			MaxChars: 60,
			Embed:    &types.EmbeddingConfig{},
		},
	}
	require.NoError(t, p.Run(context.Background(), result, cfg))
	assert.NotEmpty(t, result.Chunks, "chunking still happens")
	require.NotEmpty(t, result.Warnings)
	assert.Equal(t, "embedding", result.Warnings[0].Stage)
	for _, c := range result.Chunks {
		assert.Nil(t, c.Embedding)
	}
}

func TestRunTokenReductionRewritesContent(t *testing.T) {
	p := New(nil, nil, nil)
	result := types.NewResult("text/plain")
	result.Content = "spaced    out    content\n\n\n\nwith gaps"

	cfg := &types.ExtractionConfig{
		TokenReduction: &types.TokenReductionConfig{Mode: types.ReduceLight},
	}
	require.NoError(t, p.Run(context.Background(), result, cfg))
	assert.Equal(t, "spaced out content\n\nwith gaps", result.Content)
}
