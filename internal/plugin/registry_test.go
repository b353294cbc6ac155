package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kohlhaas/docintel/internal/errdef"
	"github.com/kohlhaas/docintel/internal/types"
	"github.com/kohlhaas/docintel/pkg/logger"
)

type fakeValidator struct {
	name string
	fn   func(*types.ExtractionResult) error
}

func (f *fakeValidator) Name() string { return f.name }
func (f *fakeValidator) Validate(r *types.ExtractionResult) error {
	if f.fn != nil {
		return f.fn(r)
	}
	return nil
}

type fakeProcessor struct {
	name  string
	stage Stage
	fn    func(*types.ExtractionResult) (*types.ExtractionResult, error)
}

func (f *fakeProcessor) Name() string           { return f.name }
func (f *fakeProcessor) ProcessingStage() Stage { return f.stage }
func (f *fakeProcessor) Process(r *types.ExtractionResult) (*types.ExtractionResult, error) {
	if f.fn != nil {
		return f.fn(r)
	}
	return r, nil
}

func observedRegistry() (*Registry, *observer.ObservedLogs) {
	core, logs := observer.New(zap.WarnLevel)
	return NewRegistry(logger.FromZap(zap.New(core))), logs
}

func TestReRegistrationReplacesAndWarns(t *testing.T) {
	reg, logs := observedRegistry()

	first := &fakeValidator{name: "checker", fn: func(*types.ExtractionResult) error {
		return errors.New("first")
	}}
	second := &fakeValidator{name: "checker"}

	reg.RegisterValidator("checker", 0, first)
	assert.Equal(t, 0, logs.Len())

	reg.RegisterValidator("checker", 0, second)
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "replaced")

	// Subsequent validation uses the second registration only.
	vs := reg.Validators()
	require.Len(t, vs, 1)
	assert.NoError(t, SafeValidate(vs[0], types.NewResult("text/plain")))
}

func TestUnregisterUnknownListsRegisteredNames(t *testing.T) {
	reg, _ := observedRegistry()
	reg.RegisterValidator("alpha", 0, &fakeValidator{name: "alpha"})
	reg.RegisterValidator("beta", 0, &fakeValidator{name: "beta"})

	err := reg.UnregisterValidator("unregistered-name")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alpha")
	assert.Contains(t, err.Error(), "beta")

	require.NoError(t, reg.UnregisterValidator("alpha"))
	assert.Equal(t, []string{"beta"}, reg.ListValidators())
}

func TestPostProcessorStageFilterAndPriority(t *testing.T) {
	reg, _ := observedRegistry()
	reg.RegisterPostProcessor("low", 1, &fakeProcessor{name: "low", stage: StageEarly})
	reg.RegisterPostProcessor("high", 10, &fakeProcessor{name: "high", stage: StageEarly})
	reg.RegisterPostProcessor("later", 5, &fakeProcessor{name: "later", stage: StageLate})

	early := reg.PostProcessorsAt(StageEarly)
	require.Len(t, early, 2)
	assert.Equal(t, "high", early[0].Name())
	assert.Equal(t, "low", early[1].Name())

	late := reg.PostProcessorsAt(StageLate)
	require.Len(t, late, 1)
	assert.Equal(t, "later", late[0].Name())
}

func TestSafeWrappersCatchPanics(t *testing.T) {
	panicky := &fakeValidator{name: "host-callback", fn: func(*types.ExtractionResult) error {
		panic("raised in host language")
	}}

	err := SafeValidate(panicky, types.NewResult("text/plain"))
	require.Error(t, err)

	var e *errdef.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errdef.KindPlugin, e.Kind)
	assert.Equal(t, "host-callback", e.PluginName)
}

func TestSafeValidateRejectionIsValidationError(t *testing.T) {
	rejecting := &fakeValidator{name: "min-length", fn: func(*types.ExtractionResult) error {
		return errors.New("content shorter than required minimum")
	}}

	err := SafeValidate(rejecting, types.NewResult("text/plain"))
	require.Error(t, err)

	var e *errdef.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errdef.KindValidation, e.Kind)
	assert.Equal(t, "min-length", e.PluginName)
}

func TestSafeProcessNilResultIsPluginError(t *testing.T) {
	p := &fakeProcessor{name: "broken", stage: StageMiddle,
		fn: func(*types.ExtractionResult) (*types.ExtractionResult, error) { return nil, nil }}

	in := types.NewResult("text/plain")
	out, err := SafeProcess(p, in)
	require.Error(t, err)
	assert.Same(t, in, out, "original result survives a broken processor")
}

type shutdownValidator struct {
	fakeValidator
	shutdowns *int
	fail      bool
}

func (s *shutdownValidator) Shutdown() error {
	*s.shutdowns++
	if s.fail {
		return errors.New("shutdown failed")
	}
	return nil
}

func TestClearRunsShutdownHooksBestEffort(t *testing.T) {
	reg, _ := observedRegistry()
	count := 0
	reg.RegisterValidator("a", 0, &shutdownValidator{fakeValidator{name: "a"}, &count, true})
	reg.RegisterValidator("b", 0, &shutdownValidator{fakeValidator{name: "b"}, &count, false})

	reg.Clear()
	assert.Equal(t, 2, count, "every shutdown hook runs even when one fails")
	assert.Empty(t, reg.ListValidators())
}

func TestExtractorOverrideLookup(t *testing.T) {
	reg, _ := observedRegistry()
	_, ok := reg.ExtractorFor("application/pdf")
	assert.False(t, ok)

	reg.RegisterExtractor("custom-pdf", 0, &fakeExtractor{name: "custom-pdf", mts: []string{"application/pdf"}})
	e, ok := reg.ExtractorFor("application/pdf")
	require.True(t, ok)
	assert.Equal(t, "custom-pdf", e.Name())
}

type fakeExtractor struct {
	name string
	mts  []string
}

func (f *fakeExtractor) Name() string         { return f.name }
func (f *fakeExtractor) MediaTypes() []string { return f.mts }
func (f *fakeExtractor) Extract(ctx context.Context, data []byte, cfg *types.ExtractionConfig) (*types.ExtractionResult, error) {
	r := types.NewResult(f.mts[0])
	r.Content = string(data)
	return r, nil
}
