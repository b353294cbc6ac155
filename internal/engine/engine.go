// Package engine wires classification, extraction, OCR, caching, and the
// post-processing pipeline into the public extraction entry points.
package engine

import (
	"context"
	"os"
	"path/filepath"

	"github.com/kohlhaas/docintel/internal/batch"
	"github.com/kohlhaas/docintel/internal/cache"
	"github.com/kohlhaas/docintel/internal/embed"
	"github.com/kohlhaas/docintel/internal/errdef"
	"github.com/kohlhaas/docintel/internal/extractor"
	"github.com/kohlhaas/docintel/internal/mediatype"
	"github.com/kohlhaas/docintel/internal/ocr"
	"github.com/kohlhaas/docintel/internal/pipeline"
	"github.com/kohlhaas/docintel/internal/plugin"
	"github.com/kohlhaas/docintel/internal/types"
	"github.com/kohlhaas/docintel/pkg/logger"
)

// Engine is the document intelligence entry point. Construct once and share;
// all methods are safe for concurrent use.
type Engine struct {
	plugins    *plugin.Registry
	extractors *extractor.Registry
	ocr        *ocr.Orchestrator
	pipe       *pipeline.Pipeline
	cache      *cache.Cache
	pool       *batch.Pool
	log        logger.Logger
}

// Options configures engine construction. Zero values select defaults: an
// in-memory cache, no embedding engine, and a pool sized by
// DefaultMaxConcurrent.
type Options struct {
	Plugins       *plugin.Registry
	CacheStore    cache.Store
	Embedder      embed.Engine
	MaxConcurrent int
	Logger        logger.Logger
}

// New creates an engine.
func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	plugins := opts.Plugins
	if plugins == nil {
		plugins = plugin.NewRegistry(log)
	}
	store := opts.CacheStore
	if store == nil {
		store = cache.NewMemoryStore(cache.MemoryOptions{})
	}
	return &Engine{
		plugins:    plugins,
		extractors: extractor.NewRegistry(plugins, log),
		ocr:        ocr.NewOrchestrator(plugins, log),
		pipe:       pipeline.New(plugins, opts.Embedder, log),
		cache:      cache.New(store, log),
		pool:       batch.NewPool(opts.MaxConcurrent),
		log:        log,
	}
}

// Plugins exposes the registry for host registrations.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// OCR exposes the orchestrator so hosts can wire configured built-ins, like
// textract with credentials.
func (e *Engine) OCR() *ocr.Orchestrator { return e.ocr }

// SupportedMediaTypes lists every media type a built-in extractor handles.
func (e *Engine) SupportedMediaTypes() []string { return e.extractors.SupportedMediaTypes() }

// ExtractBytes extracts a document from memory. pathHint and declaredMime
// are optional classification hints.
func (e *Engine) ExtractBytes(ctx context.Context, data []byte, pathHint, declaredMime string, cfg *types.ExtractionConfig) (result *types.ExtractionResult, err error) {
	if gerr := errdef.Guard(func() error {
		result, err = e.extractCached(ctx, data, pathHint, declaredMime, cfg)
		return nil
	}); gerr != nil {
		return nil, gerr
	}
	return result, err
}

// ExtractFile extracts a document from disk. The file identity (path, size,
// mtime) keys the cache, so an unchanged file is served from the cache
// without being read again.
func (e *Engine) ExtractFile(ctx context.Context, path string, cfg *types.ExtractionConfig) (result *types.ExtractionResult, err error) {
	useCache := true
	if cfg != nil {
		useCache = types.Bool(cfg.UseCache, true)
	}
	if !useCache {
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil, errdef.Wrap(errdef.KindIO, rerr, "read input file")
		}
		return e.ExtractBytes(ctx, data, filepath.Base(path), "", cfg)
	}

	id, err := cache.HashFile(path)
	if err != nil {
		return nil, errdef.Wrap(errdef.KindIO, err, "stat input file")
	}
	key := cache.Fingerprint(id, cfg)

	if gerr := errdef.Guard(func() error {
		result, err = e.cache.GetOrCompute(ctx, key, func(ctx context.Context) (*types.ExtractionResult, error) {
			data, rerr := os.ReadFile(path)
			if rerr != nil {
				return nil, errdef.Wrap(errdef.KindIO, rerr, "read input file")
			}
			return e.extract(ctx, data, filepath.Base(path), "", cfg)
		})
		return nil
	}); gerr != nil {
		return nil, gerr
	}
	return result, err
}

// BatchItem is one input of a batch extraction.
type BatchItem struct {
	Data         []byte
	PathHint     string
	DeclaredMime string
}

// ExtractBatch extracts documents concurrently, returning results in input
// order. One failing item carries its error in its slot; the rest proceed.
func (e *Engine) ExtractBatch(ctx context.Context, items []BatchItem, cfg *types.ExtractionConfig) []batch.Result {
	pool := e.pool
	if cfg != nil && cfg.MaxConcurrentExtractions != nil && *cfg.MaxConcurrentExtractions > 0 {
		pool = batch.NewPool(*cfg.MaxConcurrentExtractions)
	}
	tasks := make([]batch.Task, len(items))
	for i, item := range items {
		item := item
		tasks[i] = func(ctx context.Context) (*types.ExtractionResult, error) {
			return e.ExtractBytes(ctx, item.Data, item.PathHint, item.DeclaredMime, cfg)
		}
	}
	return pool.Map(ctx, tasks)
}

// ExtractAsync dispatches one extraction and returns a handle to its
// eventual outcome.
func (e *Engine) ExtractAsync(ctx context.Context, data []byte, pathHint, declaredMime string, cfg *types.ExtractionConfig) *batch.Handle {
	return e.pool.Submit(ctx, func(ctx context.Context) (*types.ExtractionResult, error) {
		return e.ExtractBytes(ctx, data, pathHint, declaredMime, cfg)
	})
}

// CacheStats reports cache entry and hit/miss counters.
func (e *Engine) CacheStats(ctx context.Context) cache.Stats { return e.cache.Stats(ctx) }

// ClearCache empties the cache.
func (e *Engine) ClearCache(ctx context.Context) error { return e.cache.Clear(ctx) }

// extractCached wraps extraction in the content-addressed cache unless the
// caller opted out.
func (e *Engine) extractCached(ctx context.Context, data []byte, pathHint, declaredMime string, cfg *types.ExtractionConfig) (*types.ExtractionResult, error) {
	useCache := true
	if cfg != nil {
		useCache = types.Bool(cfg.UseCache, true)
	}
	if !useCache {
		return e.extract(ctx, data, pathHint, declaredMime, cfg)
	}
	key := cache.Fingerprint(cache.HashBytes(data), cfg)
	return e.cache.GetOrCompute(ctx, key, func(ctx context.Context) (*types.ExtractionResult, error) {
		return e.extract(ctx, data, pathHint, declaredMime, cfg)
	})
}

// extract is the spec control flow: classify, dispatch, OCR when triggered,
// then the post-processing pipeline.
func (e *Engine) extract(ctx context.Context, data []byte, pathHint, declaredMime string, cfg *types.ExtractionConfig) (*types.ExtractionResult, error) {
	if len(data) == 0 {
		return nil, errdef.New(errdef.KindValidation, "input is empty")
	}

	mt, err := mediatype.Classify(data, pathHint, declaredMime)
	if err != nil {
		return nil, err
	}

	ext, err := e.extractors.Resolve(mt)
	if err != nil {
		return nil, err
	}

	result, err := ext.Extract(ctx, data, mt, cfg)
	if err != nil {
		return nil, errdef.AsError(err)
	}
	result.Normalize()
	result.MimeType = mt

	if err := e.runOCR(ctx, data, mt, result, cfg); err != nil {
		return nil, err
	}

	if err := e.pipe.Run(ctx, result, cfg); err != nil {
		return nil, errdef.AsError(err)
	}
	result.Normalize()
	return result, nil
}

// runOCR applies the OCR decision. A backend failure degrades the result
// with a warning unless OCR was forced, in which case it is terminal for
// this document.
func (e *Engine) runOCR(ctx context.Context, data []byte, mt string, result *types.ExtractionResult, cfg *types.ExtractionConfig) error {
	decision := ocr.Decide(result, cfg)
	if decision.State != ocr.StateRequired {
		return nil
	}

	var images [][]byte
	if mediatype.IsImage(mt) {
		images = [][]byte{data}
	} else {
		for _, img := range result.Images {
			if len(img.Data) > 0 {
				images = append(images, img.Data)
			}
		}
	}
	forced := cfg != nil && types.Bool(cfg.ForceOCR, false)
	if len(images) == 0 {
		if forced {
			return errdef.New(errdef.KindOCR, "ocr forced but the document yields no images to recognize")
		}
		result.AddWarning("ocr", decision.Reason+"; no images available for recognition")
		return nil
	}

	var ocrCfg *types.OCRConfig
	if cfg != nil {
		ocrCfg = cfg.OCR
	}
	ocrResult, state, err := e.ocr.Run(ctx, images, ocrCfg)
	if err != nil {
		if forced {
			return errdef.AsError(err)
		}
		e.log.Warn("ocr degraded", logger.Error(err))
		result.AddWarning("ocr", err.Error())
		return nil
	}

	if ocrResult.Text != "" {
		if result.Content == "" {
			result.Content = ocrResult.Text
		} else {
			result.Content += "\n\n" + ocrResult.Text
		}
	}
	if len(result.Images) > 0 && mediatype.IsImage(mt) {
		result.Images[0].OCRText = ocrResult.Text
	}
	result.Metadata.Set("ocrState", string(state))
	result.Metadata.Set("ocrConfidence", ocrResult.MeanConfidence())
	return nil
}
