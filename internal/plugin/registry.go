// Package plugin holds the process-wide registry of host-supplied
// capabilities: validators, post-processors, OCR backends, and document
// extractors. Registration is rare relative to lookup, so each namespace is
// guarded by a read-many/write-one lock and lookups never serialize against
// each other.
//
// Host callbacks may originate in dynamically-typed languages and may fault;
// every invocation goes through the Safe* wrappers so a fault becomes a
// structured Plugin error carrying the plugin's name instead of unwinding
// past the registry boundary.
package plugin

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kohlhaas/docintel/internal/errdef"
	"github.com/kohlhaas/docintel/internal/types"
	"github.com/kohlhaas/docintel/pkg/logger"
)

// Stage declares when a post-processor runs relative to the built-in
// pipeline stages.
type Stage string

const (
	StageEarly  Stage = "early"
	StageMiddle Stage = "middle"
	StageLate   Stage = "late"
)

// Validator inspects a finished result and may reject it.
type Validator interface {
	Name() string
	Validate(result *types.ExtractionResult) error
}

// PostProcessor rewrites a result at its declared stage.
type PostProcessor interface {
	Name() string
	ProcessingStage() Stage
	Process(result *types.ExtractionResult) (*types.ExtractionResult, error)
}

// OCRBackend performs optical character recognition over one image.
type OCRBackend interface {
	Name() string
	SupportedLanguages() []string
	ProcessImage(ctx context.Context, image []byte, language string) (*types.OCRResult, error)
	Shutdown() error
}

// DocumentExtractor handles one or more media types, overriding built-ins.
type DocumentExtractor interface {
	Name() string
	MediaTypes() []string
	Extract(ctx context.Context, data []byte, config *types.ExtractionConfig) (*types.ExtractionResult, error)
}

// shutdowner is implemented by capabilities that hold external resources.
type shutdowner interface {
	Shutdown() error
}

type entry[T any] struct {
	value    T
	priority int
}

type namespace[T any] struct {
	mu      sync.RWMutex
	kind    string
	entries map[string]entry[T]
	log     logger.Logger
}

func newNamespace[T any](kind string, log logger.Logger) *namespace[T] {
	return &namespace[T]{
		kind:    kind,
		entries: make(map[string]entry[T]),
		log:     log,
	}
}

// register stores a capability. Re-registering an existing name replaces the
// prior entry with a warn-level signal, never silently.
func (n *namespace[T]) register(name string, priority int, value T) {
	n.mu.Lock()
	_, replaced := n.entries[name]
	n.entries[name] = entry[T]{value: value, priority: priority}
	n.mu.Unlock()

	if replaced {
		n.log.Warn("plugin registration replaced an existing entry",
			logger.String("namespace", n.kind),
			logger.String("name", name),
		)
	}
}

func (n *namespace[T]) unregister(name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.entries[name]; !ok {
		names := make([]string, 0, len(n.entries))
		for k := range n.entries {
			names = append(names, k)
		}
		sort.Strings(names)
		return errdef.Newf(errdef.KindValidation,
			"no %s registered under %q; currently registered: [%s]",
			n.kind, name, strings.Join(names, ", "))
	}
	delete(n.entries, name)
	return nil
}

func (n *namespace[T]) get(name string) (T, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	e, ok := n.entries[name]
	return e.value, ok
}

func (n *namespace[T]) list() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	names := make([]string, 0, len(n.entries))
	for k := range n.entries {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// values returns entries ordered by descending priority, name as tie-break.
func (n *namespace[T]) values() []T {
	n.mu.RLock()
	defer n.mu.RUnlock()
	type named struct {
		name string
		e    entry[T]
	}
	all := make([]named, 0, len(n.entries))
	for k, e := range n.entries {
		all = append(all, named{k, e})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].e.priority != all[j].e.priority {
			return all[i].e.priority > all[j].e.priority
		}
		return all[i].name < all[j].name
	})
	out := make([]T, len(all))
	for i, a := range all {
		out[i] = a.e.value
	}
	return out
}

// clear removes all entries, invoking each shutdown hook best-effort; a
// failing shutdown never prevents the remaining hooks from running.
func (n *namespace[T]) clear() {
	n.mu.Lock()
	entries := n.entries
	n.entries = make(map[string]entry[T])
	n.mu.Unlock()

	for name, e := range entries {
		if s, ok := any(e.value).(shutdowner); ok {
			if err := errdef.Guard(s.Shutdown); err != nil {
				n.log.Warn("plugin shutdown failed",
					logger.String("namespace", n.kind),
					logger.String("name", name),
					logger.Error(err),
				)
			}
		}
	}
}

// Registry is the four-namespace plugin registry. Pipeline stages receive it
// as an explicit dependency; only the process boundary layer may hold it as a
// singleton.
type Registry struct {
	validators     *namespace[Validator]
	postProcessors *namespace[PostProcessor]
	ocrBackends    *namespace[OCRBackend]
	extractors     *namespace[DocumentExtractor]
}

// NewRegistry creates an empty registry.
func NewRegistry(log logger.Logger) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{
		validators:     newNamespace[Validator]("validator", log),
		postProcessors: newNamespace[PostProcessor]("post-processor", log),
		ocrBackends:    newNamespace[OCRBackend]("ocr-backend", log),
		extractors:     newNamespace[DocumentExtractor]("document-extractor", log),
	}
}

func (r *Registry) RegisterValidator(name string, priority int, v Validator) {
	r.validators.register(name, priority, v)
}

func (r *Registry) UnregisterValidator(name string) error { return r.validators.unregister(name) }
func (r *Registry) ListValidators() []string              { return r.validators.list() }
func (r *Registry) Validators() []Validator               { return r.validators.values() }

func (r *Registry) RegisterPostProcessor(name string, priority int, p PostProcessor) {
	r.postProcessors.register(name, priority, p)
}

func (r *Registry) UnregisterPostProcessor(name string) error {
	return r.postProcessors.unregister(name)
}
func (r *Registry) ListPostProcessors() []string { return r.postProcessors.list() }

// PostProcessorsAt returns the registered post-processors declaring the given
// stage, in priority order.
func (r *Registry) PostProcessorsAt(stage Stage) []PostProcessor {
	all := r.postProcessors.values()
	out := make([]PostProcessor, 0, len(all))
	for _, p := range all {
		if p.ProcessingStage() == stage {
			out = append(out, p)
		}
	}
	return out
}

func (r *Registry) RegisterOCRBackend(name string, priority int, b OCRBackend) {
	r.ocrBackends.register(name, priority, b)
}

func (r *Registry) UnregisterOCRBackend(name string) error { return r.ocrBackends.unregister(name) }
func (r *Registry) ListOCRBackends() []string              { return r.ocrBackends.list() }

func (r *Registry) OCRBackend(name string) (OCRBackend, bool) {
	return r.ocrBackends.get(name)
}

func (r *Registry) RegisterExtractor(name string, priority int, e DocumentExtractor) {
	r.extractors.register(name, priority, e)
}

func (r *Registry) UnregisterExtractor(name string) error { return r.extractors.unregister(name) }
func (r *Registry) ListExtractors() []string              { return r.extractors.list() }

// ExtractorFor returns the highest-priority registered extractor claiming the
// media type, if any. A registered extractor takes precedence over built-ins,
// enabling full override.
func (r *Registry) ExtractorFor(mediaType string) (DocumentExtractor, bool) {
	for _, e := range r.extractors.values() {
		for _, mt := range e.MediaTypes() {
			if mt == mediaType {
				return e, true
			}
		}
	}
	return nil, false
}

// Clear empties every namespace, invoking shutdown hooks best-effort.
func (r *Registry) Clear() {
	r.validators.clear()
	r.postProcessors.clear()
	r.ocrBackends.clear()
	r.extractors.clear()
}

// SafeValidate invokes a validator under a fault guard. An ordinary
// rejection surfaces as a validation error; a fault inside the validator
// surfaces as a plugin error.
func SafeValidate(v Validator, result *types.ExtractionResult) error {
	var verr error
	if gerr := errdef.Guard(func() error {
		verr = v.Validate(result)
		return nil
	}); gerr != nil {
		return errdef.Plugin(v.Name(), gerr)
	}
	if verr == nil {
		return nil
	}
	e := errdef.Wrap(errdef.KindValidation, verr, fmt.Sprintf("validator %q rejected result", v.Name()))
	e.PluginName = v.Name()
	return e
}

// SafeProcess invokes a post-processor under a fault guard. On failure the
// original result is returned untouched alongside the error.
func SafeProcess(p PostProcessor, result *types.ExtractionResult) (*types.ExtractionResult, error) {
	var out *types.ExtractionResult
	err := errdef.Guard(func() error {
		var perr error
		out, perr = p.Process(result)
		return perr
	})
	if err != nil {
		return result, errdef.Plugin(p.Name(), err)
	}
	if out == nil {
		return result, errdef.Plugin(p.Name(), fmt.Errorf("post-processor returned nil result"))
	}
	out.Normalize()
	return out, nil
}

// SafeExtract invokes a registered document extractor under a fault guard.
func SafeExtract(e DocumentExtractor, ctx context.Context, data []byte, config *types.ExtractionConfig) (*types.ExtractionResult, error) {
	var out *types.ExtractionResult
	err := errdef.Guard(func() error {
		var xerr error
		out, xerr = e.Extract(ctx, data, config)
		return xerr
	})
	if err != nil {
		return nil, errdef.Plugin(e.Name(), err)
	}
	if out == nil {
		return nil, errdef.Plugin(e.Name(), fmt.Errorf("extractor returned nil result"))
	}
	out.Normalize()
	return out, nil
}

// SafeOCR invokes an OCR backend under a fault guard.
func SafeOCR(b OCRBackend, ctx context.Context, image []byte, language string) (*types.OCRResult, error) {
	var out *types.OCRResult
	err := errdef.Guard(func() error {
		var oerr error
		out, oerr = b.ProcessImage(ctx, image, language)
		return oerr
	})
	if err != nil {
		return nil, errdef.Plugin(b.Name(), err)
	}
	return out, nil
}
