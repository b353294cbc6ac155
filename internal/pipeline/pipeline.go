// Package pipeline applies the post-extraction stages to a raw extraction
// result: host post-processors at their declared stages, the built-in
// enrichment stages, and host validators last.
package pipeline

import (
	"context"

	"github.com/kohlhaas/docintel/internal/embed"
	"github.com/kohlhaas/docintel/internal/errdef"
	"github.com/kohlhaas/docintel/internal/plugin"
	"github.com/kohlhaas/docintel/internal/types"
	"github.com/kohlhaas/docintel/pkg/logger"
)

const defaultEmbedBatchSize = 32

// Pipeline runs the enrichment stages over extraction results. The zero
// dependencies are all optional: a nil registry skips host hooks and a nil
// embedder degrades embedding requests to a warning.
type Pipeline struct {
	registry *plugin.Registry
	embedder embed.Engine
	log      logger.Logger
}

// New creates a pipeline.
func New(registry *plugin.Registry, embedder embed.Engine, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{registry: registry, embedder: embedder, log: log}
}

// Run mutates result through the fixed stage order. Enrichment stages run
// only when their sub-config is present and not explicitly disabled; quality
// scoring always runs. Host post-processor failures degrade to warnings;
// validator rejections are fatal and returned.
func (p *Pipeline) Run(ctx context.Context, result *types.ExtractionResult, cfg *types.ExtractionConfig) error {
	if cfg == nil {
		cfg = &types.ExtractionConfig{}
	}
	result.Normalize()

	p.applyPostProcessors(plugin.StageEarly, result, cfg)

	score := QualityScore(result.Content)
	score -= warningPenalty * float64(len(result.Warnings))
	if score < 0 {
		score = 0
	}
	result.QualityScore = &score

	// Enrichment stages are requested by the presence of their sub-config and
	// suppressed only by an explicit Enabled=false.
	if cfg.LanguageDetection != nil && types.Bool(cfg.LanguageDetection.Enabled, true) {
		result.DetectedLanguages = DetectLanguages(result.Content, cfg.LanguageDetection)
	}

	if cfg.Keywords != nil && types.Bool(cfg.Keywords.Enabled, true) {
		keywords, err := ExtractKeywords(result.Content, cfg.Keywords)
		if err != nil {
			return err
		}
		result.Keywords = keywords
	}

	p.applyPostProcessors(plugin.StageMiddle, result, cfg)

	if cfg.Chunking != nil && types.Bool(cfg.Chunking.Enabled, true) {
		result.Chunks = SplitChunks(result.Content, cfg.Chunking)
		p.embedChunks(ctx, result, cfg.Chunking)
	}

	if cfg.TokenReduction != nil && types.Bool(cfg.TokenReduction.Enabled, true) {
		result.Content = ReduceTokens(result.Content, cfg.TokenReduction)
	}

	p.applyPostProcessors(plugin.StageLate, result, cfg)

	// Validators run last so they see the final shape. The first rejection
	// fails the extraction.
	if p.registry != nil {
		for _, v := range p.registry.Validators() {
			if err := plugin.SafeValidate(v, result); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyPostProcessors runs the host post-processors registered for the stage,
// folding their rewrites back into result in place.
func (p *Pipeline) applyPostProcessors(stage plugin.Stage, result *types.ExtractionResult, cfg *types.ExtractionConfig) {
	if p.registry == nil {
		return
	}
	if cfg.PostProcessor != nil && !types.Bool(cfg.PostProcessor.Enabled, true) {
		return
	}
	disabled := map[string]struct{}{}
	if cfg.PostProcessor != nil {
		for _, name := range cfg.PostProcessor.Disabled {
			disabled[name] = struct{}{}
		}
	}

	for _, proc := range p.registry.PostProcessorsAt(stage) {
		if _, skip := disabled[proc.Name()]; skip {
			continue
		}
		out, err := plugin.SafeProcess(proc, result)
		if err != nil {
			p.log.Warn("post-processor failed",
				logger.String("stage", string(stage)),
				logger.String("name", proc.Name()),
				logger.Error(err),
			)
			result.AddWarning("post-processor", err.Error())
			continue
		}
		if out != result {
			*result = *out
		}
	}
}

// embedChunks fills chunk embeddings. A missing engine degrades to a warning
// so extraction itself still succeeds.
func (p *Pipeline) embedChunks(ctx context.Context, result *types.ExtractionResult, cfg *types.ChunkingConfig) {
	if cfg.Embed == nil || !types.Bool(cfg.Embed.Enabled, true) {
		return
	}
	if len(result.Chunks) == 0 {
		return
	}
	if p.embedder == nil {
		err := errdef.MissingDependency("embedding-engine", "chunk embedding requested but no embedding engine is configured")
		result.AddWarning("embedding", err.Error())
		return
	}

	batchSize := cfg.Embed.BatchSize
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}
	normalize := types.Bool(cfg.Embed.Normalize, true)

	for start := 0; start < len(result.Chunks); start += batchSize {
		end := start + batchSize
		if end > len(result.Chunks) {
			end = len(result.Chunks)
		}
		texts := make([]string, 0, end-start)
		for _, c := range result.Chunks[start:end] {
			texts = append(texts, c.Content)
		}
		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			p.log.Warn("embedding batch failed", logger.Error(err))
			result.AddWarning("embedding", err.Error())
			return
		}
		for i, vec := range vectors {
			if normalize {
				embed.Normalize(vec)
			}
			result.Chunks[start+i].Embedding = vec
		}
	}
}
