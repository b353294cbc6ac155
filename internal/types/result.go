package types

import "encoding/json"

// ExtractionResult is the outcome of a single document extraction. Content is
// always present (possibly empty); collection fields are present-but-empty
// rather than absent when a feature was not requested.
type ExtractionResult struct {
	Content           string           `json:"content"`
	MimeType          string           `json:"mimeType"`
	Metadata          Metadata         `json:"metadata"`
	Tables            []Table          `json:"tables"`
	Chunks            []Chunk          `json:"chunks"`
	Images            []ExtractedImage `json:"images"`
	Pages             []PageContent    `json:"pages,omitempty"`
	DetectedLanguages []string         `json:"detectedLanguages,omitempty"`
	Keywords          []Keyword        `json:"keywords,omitempty"`
	QualityScore      *float64         `json:"qualityScore,omitempty"`
	Warnings          []Warning        `json:"warnings,omitempty"`

	// Extraction-internal hints, not part of the boundary shape.
	// TextCoverage is the fraction of pages carrying recoverable text data;
	// HasVisualContent reports embedded images or drawings. Both feed the
	// OCR trigger decision.
	TextCoverage     float64 `json:"-"`
	HasVisualContent bool    `json:"-"`
}

// NewResult returns a result with its structural invariants satisfied.
func NewResult(mimeType string) *ExtractionResult {
	return &ExtractionResult{
		MimeType: mimeType,
		Tables:   []Table{},
		Chunks:   []Chunk{},
		Images:   []ExtractedImage{},
	}
}

// Normalize restores the structural invariants after plugin rewrites:
// collections never become absent.
func (r *ExtractionResult) Normalize() {
	if r.Tables == nil {
		r.Tables = []Table{}
	}
	if r.Chunks == nil {
		r.Chunks = []Chunk{}
	}
	if r.Images == nil {
		r.Images = []ExtractedImage{}
	}
}

// AddWarning records a stage-local, non-fatal degradation.
func (r *ExtractionResult) AddWarning(stage, message string) {
	r.Warnings = append(r.Warnings, Warning{Stage: stage, Message: message})
}

// Warning records a recoverable failure that degraded the result.
type Warning struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// Table is an extracted tabular region.
type Table struct {
	Cells      [][]string `json:"cells"`
	Markdown   string     `json:"markdown,omitempty"`
	PageNumber int        `json:"pageNumber,omitempty"`
}

// Chunk is a span of the normalized content.
type Chunk struct {
	Content    string    `json:"content"`
	ByteStart  int       `json:"byteStart"`
	ByteEnd    int       `json:"byteEnd"`
	TokenCount int       `json:"tokenCount"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// ExtractedImage is an image found inside a document.
type ExtractedImage struct {
	Data       []byte `json:"data,omitempty"`
	Format     string `json:"format"`
	Index      int    `json:"index"`
	PageNumber int    `json:"pageNumber,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	OCRText    string `json:"ocrText,omitempty"`
}

// PageContent is the per-page breakdown of a paginated document.
type PageContent struct {
	PageNumber int    `json:"pageNumber"`
	Content    string `json:"content"`
	IsBlank    bool   `json:"isBlank,omitempty"`
}

// Keyword is a scored term extracted from the content.
type Keyword struct {
	Term      string  `json:"term"`
	Score     float64 `json:"score"`
	Positions []int   `json:"positions,omitempty"`
}

// Metadata carries the fixed common fields plus an open-ended Additional map.
// The map is the extensibility point for format-specific and plugin-injected
// fields; it serializes flattened into the same JSON object as the fixed
// fields and survives round-trips without schema changes.
type Metadata struct {
	Title      string   `json:"-"`
	Authors    []string `json:"-"`
	Language   string   `json:"-"`
	Subject    string   `json:"-"`
	Keywords   []string `json:"-"`
	CreatedAt  string   `json:"-"`
	ModifiedAt string   `json:"-"`

	Additional map[string]any `json:"-"`
}

// Set records a format-specific or plugin-injected metadata field.
func (m *Metadata) Set(key string, value any) {
	if m.Additional == nil {
		m.Additional = make(map[string]any)
	}
	m.Additional[key] = value
}

// fixedMetadataKeys are the JSON names of the fixed fields; unknown keys on
// input land in Additional.
var fixedMetadataKeys = map[string]struct{}{
	"title": {}, "authors": {}, "language": {}, "subject": {},
	"keywords": {}, "createdAt": {}, "modifiedAt": {},
}

// MarshalJSON flattens fixed fields and Additional into one object.
func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Additional)+7)
	for k, v := range m.Additional {
		out[k] = v
	}
	if m.Title != "" {
		out["title"] = m.Title
	}
	if len(m.Authors) > 0 {
		out["authors"] = m.Authors
	}
	if m.Language != "" {
		out["language"] = m.Language
	}
	if m.Subject != "" {
		out["subject"] = m.Subject
	}
	if len(m.Keywords) > 0 {
		out["keywords"] = m.Keywords
	}
	if m.CreatedAt != "" {
		out["createdAt"] = m.CreatedAt
	}
	if m.ModifiedAt != "" {
		out["modifiedAt"] = m.ModifiedAt
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits fixed fields from unknown keys, preserving the latter
// in Additional.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key, val := range raw {
		normalized := snakeToCamel(key)
		switch normalized {
		case "title":
			_ = json.Unmarshal(val, &m.Title)
		case "authors":
			_ = json.Unmarshal(val, &m.Authors)
		case "language":
			_ = json.Unmarshal(val, &m.Language)
		case "subject":
			_ = json.Unmarshal(val, &m.Subject)
		case "keywords":
			_ = json.Unmarshal(val, &m.Keywords)
		case "createdAt":
			_ = json.Unmarshal(val, &m.CreatedAt)
		case "modifiedAt":
			_ = json.Unmarshal(val, &m.ModifiedAt)
		default:
			var v any
			if err := json.Unmarshal(val, &v); err != nil {
				return err
			}
			if m.Additional == nil {
				m.Additional = make(map[string]any)
			}
			m.Additional[key] = v
		}
	}
	return nil
}
