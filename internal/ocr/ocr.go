// Package ocr orchestrates optical character recognition over document
// images: deciding whether OCR is needed, resolving a backend, and running it
// with optional image preprocessing.
package ocr

import (
	"context"
	"strings"
	"sync"

	"github.com/kohlhaas/docintel/internal/errdef"
	"github.com/kohlhaas/docintel/internal/plugin"
	"github.com/kohlhaas/docintel/internal/types"
	"github.com/kohlhaas/docintel/pkg/logger"
)

// State is a run's position in the OCR lifecycle.
type State string

const (
	StateNotNeeded State = "not_needed"
	StateRequired  State = "required"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Trigger reasons recorded on the Required state.
const (
	ReasonForced      = "ocr forced by caller"
	ReasonNoText      = "no recoverable text on visual content"
	ReasonLowCoverage = "text coverage below threshold"
)

const (
	defaultBackend           = "tesseract"
	defaultLanguage          = "eng"
	defaultCoverageThreshold = 0.3

	// nearZeroTextRunes is the content length below which a document with
	// visual content is treated as having no recoverable text.
	nearZeroTextRunes = 16
)

// Decision is the outcome of the OCR trigger evaluation.
type Decision struct {
	State  State
	Reason string
}

// Decide evaluates the OCR triggers against an extraction result.
func Decide(result *types.ExtractionResult, cfg *types.ExtractionConfig) Decision {
	if cfg != nil && types.Bool(cfg.ForceOCR, false) {
		return Decision{State: StateRequired, Reason: ReasonForced}
	}
	if cfg != nil && cfg.OCR != nil && !types.Bool(cfg.OCR.Enabled, true) {
		return Decision{State: StateNotNeeded}
	}

	text := strings.TrimSpace(result.Content)
	if result.HasVisualContent && len([]rune(text)) < nearZeroTextRunes {
		return Decision{State: StateRequired, Reason: ReasonNoText}
	}

	threshold := defaultCoverageThreshold
	if cfg != nil && cfg.OCR != nil && cfg.OCR.CoverageThreshold != nil {
		threshold = *cfg.OCR.CoverageThreshold
	}
	if result.HasVisualContent && result.TextCoverage < threshold {
		return Decision{State: StateRequired, Reason: ReasonLowCoverage}
	}
	return Decision{State: StateNotNeeded}
}

// Orchestrator runs OCR over page or embedded images. Backend lookup consults
// the plugin registry first so hosts can override the built-ins by name.
// Safe for concurrent use: lifecycle state lives in each Run's return values,
// never on the orchestrator.
type Orchestrator struct {
	registry *plugin.Registry
	log      logger.Logger

	mu       sync.RWMutex
	builtins map[string]plugin.OCRBackend
}

// NewOrchestrator creates an orchestrator with the built-in backends wired.
// Backends holding external resources are only constructed on first use.
func NewOrchestrator(registry *plugin.Registry, log logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.Nop()
	}
	return &Orchestrator{
		registry: registry,
		builtins: map[string]plugin.OCRBackend{
			"tesseract": NewTesseractBackend(),
		},
		log: log,
	}
}

// RegisterBuiltin adds or replaces a built-in backend. Used to wire backends
// that need external configuration, like textract.
func (o *Orchestrator) RegisterBuiltin(name string, b plugin.OCRBackend) {
	o.mu.Lock()
	o.builtins[name] = b
	o.mu.Unlock()
}

// Resolve finds the backend for the given name, plugin registrations first.
// An unknown name is a missing dependency, never a crash.
func (o *Orchestrator) Resolve(name string) (plugin.OCRBackend, error) {
	if name == "" {
		name = defaultBackend
	}
	if o.registry != nil {
		if b, ok := o.registry.OCRBackend(name); ok {
			return b, nil
		}
	}
	o.mu.RLock()
	b, ok := o.builtins[name]
	o.mu.RUnlock()
	if ok {
		return b, nil
	}
	return nil, errdef.MissingDependency(name, "no OCR backend available under name "+name)
}

// Run performs OCR over the given images and returns the combined result
// together with the run's terminal lifecycle state. Images are preprocessed
// per the config before recognition. Per-image results are concatenated in
// input order. Concurrent Runs do not interfere.
func (o *Orchestrator) Run(ctx context.Context, images [][]byte, cfg *types.OCRConfig) (*types.OCRResult, State, error) {
	backendName := ""
	language := defaultLanguage
	var pre *types.PreprocessConfig
	if cfg != nil {
		backendName = cfg.Backend
		if cfg.Language != "" {
			language = cfg.Language
		}
		pre = cfg.Preprocess
	}

	backend, err := o.Resolve(backendName)
	if err != nil {
		return nil, StateFailed, err
	}

	combined := &types.OCRResult{Language: language}
	var parts []string
	for i, img := range images {
		data := img
		if pre != nil {
			processed, perr := Preprocess(img, pre)
			if perr != nil {
				o.log.Warn("image preprocessing failed, using original",
					logger.Int("image", i),
					logger.Error(perr),
				)
			} else {
				data = processed
			}
		}

		res, oerr := plugin.SafeOCR(backend, ctx, data, language)
		if oerr != nil {
			return nil, StateFailed, errdef.Wrap(errdef.KindOCR, oerr, "ocr backend "+backend.Name()+" failed")
		}
		if res == nil {
			continue
		}
		if strings.TrimSpace(res.Text) != "" {
			parts = append(parts, res.Text)
		}
		combined.Elements = append(combined.Elements, res.Elements...)
		if res.Rotation != 0 {
			combined.Rotation = res.Rotation
		}
	}

	combined.Text = strings.Join(parts, "\n\n")
	return combined, StateSucceeded, nil
}
