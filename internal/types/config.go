// Package types holds the configuration and result shapes shared across the
// extraction engine and its call boundaries. All shapes are JSON-serializable
// and accept both camelCase and snake_case keys on input.
package types

// OutputFormat selects the representation of ExtractionResult.Content.
type OutputFormat string

const (
	OutputPlain      OutputFormat = "plain"
	OutputMarkdown   OutputFormat = "markdown"
	OutputHTML       OutputFormat = "html"
	OutputStructured OutputFormat = "structured"
)

// BoundaryPolicy selects where chunk boundaries may fall.
type BoundaryPolicy string

const (
	BoundaryCharacters BoundaryPolicy = "characters"
	BoundarySentence   BoundaryPolicy = "sentence"
	BoundaryParagraph  BoundaryPolicy = "paragraph"
)

// ReductionMode selects how aggressively token reduction shrinks content.
type ReductionMode string

const (
	ReduceLight      ReductionMode = "light"
	ReduceModerate   ReductionMode = "moderate"
	ReduceAggressive ReductionMode = "aggressive"
)

// ExtractionConfig configures a single extraction run. Every sub-config is
// independently optional: a nil sub-config means "use that stage's default
// behavior", not "disable the stage". Only explicit Enabled fields disable
// stages. Treat values as immutable once passed to the engine.
type ExtractionConfig struct {
	OutputFormat             OutputFormat             `json:"outputFormat,omitempty"`
	ForceOCR                 *bool                    `json:"forceOcr,omitempty"`
	OCR                      *OCRConfig               `json:"ocr,omitempty"`
	Chunking                 *ChunkingConfig          `json:"chunking,omitempty"`
	Images                   *ImageConfig             `json:"images,omitempty"`
	PDF                      *PDFConfig               `json:"pdf,omitempty"`
	Pages                    *PageConfig              `json:"pages,omitempty"`
	LanguageDetection        *LanguageDetectionConfig `json:"languageDetection,omitempty"`
	Keywords                 *KeywordConfig           `json:"keywords,omitempty"`
	TokenReduction           *TokenReductionConfig    `json:"tokenReduction,omitempty"`
	PostProcessor            *PostProcessorConfig     `json:"postProcessor,omitempty"`
	UseCache                 *bool                    `json:"useCache,omitempty"`
	MaxConcurrentExtractions *int                     `json:"maxConcurrentExtractions,omitempty"`
}

// OCRConfig configures optical character recognition.
type OCRConfig struct {
	Enabled *bool  `json:"enabled,omitempty"`
	Backend string `json:"backend,omitempty"`
	// Language is the OCR language code, e.g. "eng".
	Language string `json:"language,omitempty"`
	// CoverageThreshold is the minimum fraction of a page that must already
	// carry text data before OCR is skipped for that page. Range [0,1].
	CoverageThreshold *float64          `json:"coverageThreshold,omitempty"`
	Preprocess        *PreprocessConfig `json:"preprocess,omitempty"`
}

// PreprocessConfig configures image cleanup before OCR.
type PreprocessConfig struct {
	Grayscale         bool    `json:"grayscale,omitempty"`
	ContrastNormalize bool    `json:"contrastNormalize,omitempty"`
	SharpenSigma      float64 `json:"sharpenSigma,omitempty"`
	DenoiseSigma      float64 `json:"denoiseSigma,omitempty"`
	RotateAngle       float64 `json:"rotateAngle,omitempty"`
}

// ChunkingConfig configures content windowing and optional embedding.
type ChunkingConfig struct {
	Enabled  *bool            `json:"enabled,omitempty"`
	MaxChars int              `json:"maxChars,omitempty"`
	Overlap  int              `json:"overlap,omitempty"`
	Boundary BoundaryPolicy   `json:"boundary,omitempty"`
	Embed    *EmbeddingConfig `json:"embed,omitempty"`
}

// EmbeddingConfig configures the embedding engine applied to chunks.
type EmbeddingConfig struct {
	Enabled   *bool  `json:"enabled,omitempty"`
	Model     string `json:"model,omitempty"`
	BatchSize int    `json:"batchSize,omitempty"`
	Normalize *bool  `json:"normalize,omitempty"`
}

// ImageConfig configures embedded-image extraction.
type ImageConfig struct {
	Enabled   *bool `json:"enabled,omitempty"`
	MinWidth  int   `json:"minWidth,omitempty"`
	MinHeight int   `json:"minHeight,omitempty"`
	// RunOCR runs the configured OCR backend over each extracted image.
	RunOCR *bool `json:"runOcr,omitempty"`
}

// PDFConfig configures PDF-specific behavior.
type PDFConfig struct {
	MaxPages      int  `json:"maxPages,omitempty"`
	ExtractImages bool `json:"extractImages,omitempty"`
}

// PageConfig configures per-page result breakdown.
type PageConfig struct {
	Breakdown bool `json:"breakdown,omitempty"`
}

// LanguageDetectionConfig configures language detection.
type LanguageDetectionConfig struct {
	Enabled       *bool   `json:"enabled,omitempty"`
	TopK          int     `json:"topK,omitempty"`
	MinConfidence float64 `json:"minConfidence,omitempty"`
}

// KeywordConfig configures keyword extraction.
type KeywordConfig struct {
	Enabled     *bool  `json:"enabled,omitempty"`
	Algorithm   string `json:"algorithm,omitempty"` // "frequency" or "cooccurrence"
	MaxKeywords int    `json:"maxKeywords,omitempty"`
	// WindowSize is the co-occurrence window in words for the
	// "cooccurrence" algorithm.
	WindowSize int `json:"windowSize,omitempty"`
}

// TokenReductionConfig configures the content-shrinking transform.
type TokenReductionConfig struct {
	Enabled *bool         `json:"enabled,omitempty"`
	Mode    ReductionMode `json:"mode,omitempty"`
}

// PostProcessorConfig toggles host-supplied post-processors.
type PostProcessorConfig struct {
	Enabled *bool `json:"enabled,omitempty"`
	// Disabled lists post-processor names to skip even when registered.
	Disabled []string `json:"disabled,omitempty"`
}

// Bool dereferences an optional flag with a default.
func Bool(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// BoolPtr is a convenience for building configs in code and tests.
func BoolPtr(v bool) *bool { return &v }

// IntPtr is a convenience for building configs in code and tests.
func IntPtr(v int) *int { return &v }

// Float64Ptr is a convenience for building configs in code and tests.
func Float64Ptr(v float64) *float64 { return &v }
