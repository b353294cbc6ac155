// Package extractor holds the built-in format extractors and the dispatch
// table mapping canonical media types to them. Registered plugin extractors
// take precedence over built-ins for the media types they claim.
package extractor

import (
	"context"

	"github.com/kohlhaas/docintel/internal/errdef"
	"github.com/kohlhaas/docintel/internal/plugin"
	"github.com/kohlhaas/docintel/internal/types"
	"github.com/kohlhaas/docintel/pkg/logger"
)

// maxDeclaredCells caps the element count implied by declared dimensions in
// container formats. Declared sizes are untrusted; anything above the ceiling
// is handled by a sparse path that only touches entries actually present.
const maxDeclaredCells = 100_000_000

// Extractor turns raw bytes of one format family into an ExtractionResult.
// mediaType is the canonical type the registry dispatched on; extractors
// covering several types branch on it.
type Extractor interface {
	Name() string
	MediaTypes() []string
	Extract(ctx context.Context, data []byte, mediaType string, cfg *types.ExtractionConfig) (*types.ExtractionResult, error)
}

// Registry dispatches media types to extractors.
type Registry struct {
	plugins  *plugin.Registry
	builtins map[string]Extractor
	log      logger.Logger
}

// NewRegistry wires the built-in extractors. The plugin registry may be nil.
func NewRegistry(plugins *plugin.Registry, log logger.Logger) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	r := &Registry{
		plugins:  plugins,
		builtins: make(map[string]Extractor),
		log:      log,
	}
	for _, e := range []Extractor{
		NewTextExtractor(),
		NewHTMLExtractor(),
		NewPDFExtractor(log),
		NewDocxExtractor(),
		NewXlsxExtractor(),
		NewPptxExtractor(),
		NewImageExtractor(),
		NewEmlExtractor(),
	} {
		for _, mt := range e.MediaTypes() {
			r.builtins[mt] = e
		}
	}
	return r
}

// Resolve returns the extractor for a canonical media type. A plugin
// extractor claiming the type overrides the built-in.
func (r *Registry) Resolve(mt string) (Extractor, error) {
	if r.plugins != nil {
		if pe, ok := r.plugins.ExtractorFor(mt); ok {
			return &pluginExtractor{inner: pe}, nil
		}
	}
	if e, ok := r.builtins[mt]; ok {
		return e, nil
	}
	return nil, errdef.Newf(errdef.KindUnsupportedFormat, "no extractor for media type %q", mt)
}

// SupportedMediaTypes lists the media types with a built-in extractor.
func (r *Registry) SupportedMediaTypes() []string {
	out := make([]string, 0, len(r.builtins))
	for mt := range r.builtins {
		out = append(out, mt)
	}
	return out
}

// pluginExtractor adapts a registered plugin extractor, keeping the
// panic-guarded invocation path.
type pluginExtractor struct {
	inner plugin.DocumentExtractor
}

func (p *pluginExtractor) Name() string         { return p.inner.Name() }
func (p *pluginExtractor) MediaTypes() []string { return p.inner.MediaTypes() }

func (p *pluginExtractor) Extract(ctx context.Context, data []byte, _ string, cfg *types.ExtractionConfig) (*types.ExtractionResult, error) {
	return plugin.SafeExtract(p.inner, ctx, data, cfg)
}

// checkDeclaredCells validates a declared element count against the ceiling.
func checkDeclaredCells(declared int64) bool {
	return declared >= 0 && declared <= maxDeclaredCells
}
