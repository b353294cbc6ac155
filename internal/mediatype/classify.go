// Package mediatype normalizes arbitrary input into a canonical media type
// used for extractor dispatch. It is the security-relevant boundary against
// mislabeled uploads: sniffed bytes win over extensions and declared types.
package mediatype

import (
	"archive/zip"
	"bytes"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/kohlhaas/docintel/internal/errdef"
)

// Canonical media types used for dispatch.
const (
	PlainText = "text/plain"
	Markdown  = "text/markdown"
	HTML      = "text/html"
	CSV       = "text/csv"
	TSV       = "text/tab-separated-values"
	JSON      = "application/json"
	YAML      = "application/x-yaml"
	TOML      = "application/toml"
	XML       = "application/xml"
	PDF       = "application/pdf"
	DOCX      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	XLSX      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	PPTX      = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	ZIP       = "application/zip"
	JPEG      = "image/jpeg"
	PNG       = "image/png"
	TIFF      = "image/tiff"
	BMP       = "image/bmp"
	GIF       = "image/gif"
	WebP      = "image/webp"
	EML       = "message/rfc822"
)

// extToMediaType is the extension fallback used when bytes are absent or
// ambiguous.
var extToMediaType = map[string]string{
	".txt":      PlainText,
	".text":     PlainText,
	".md":       Markdown,
	".markdown": Markdown,
	".html":     HTML,
	".htm":      HTML,
	".csv":      CSV,
	".tsv":      TSV,
	".json":     JSON,
	".yaml":     YAML,
	".yml":      YAML,
	".toml":     TOML,
	".xml":      XML,
	".pdf":      PDF,
	".docx":     DOCX,
	".xlsx":     XLSX,
	".pptx":     PPTX,
	".jpg":      JPEG,
	".jpeg":     JPEG,
	".png":      PNG,
	".tif":      TIFF,
	".tiff":     TIFF,
	".bmp":      BMP,
	".gif":      GIF,
	".webp":     WebP,
	".eml":      EML,
}

// aliases folds equivalent declared types onto the canonical one.
var aliases = map[string]string{
	"text/xml":              XML,
	"application/x-pdf":     PDF,
	"image/jpg":             JPEG,
	"application/yaml":      YAML,
	"text/x-markdown":       Markdown,
	"application/htm":       HTML,
	"application/xhtml+xml": HTML,
}

// Classify determines the canonical media type for an input. prefix holds the
// first bytes of the content (the whole buffer is fine), pathHint is an
// optional file name or path, and declared is an optional caller-supplied MIME
// type. Sniffed bytes win over both hints when they disagree; the declared
// type is advisory only.
func Classify(prefix []byte, pathHint, declared string) (string, error) {
	sniffed := sniff(prefix)
	declared = Canonicalize(declared)

	if sniffed != "" {
		return sniffed, nil
	}

	if ext := strings.ToLower(filepath.Ext(pathHint)); ext != "" {
		if mt, ok := extToMediaType[ext]; ok {
			return mt, nil
		}
	}

	if declared != "" {
		if _, ok := supported[declared]; ok {
			return declared, nil
		}
	}

	// Last resort: readable text with no better hint is treated as plain text.
	if len(prefix) > 0 && strings.HasPrefix(mimetype.Detect(prefix).String(), "text/") {
		return PlainText, nil
	}

	return "", errdef.Newf(errdef.KindUnsupportedFormat,
		"unable to classify input (path=%q declared=%q)", pathHint, declared)
}

// Canonicalize strips parameters and folds aliases onto canonical types.
func Canonicalize(mediaType string) string {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if canonical, ok := aliases[mt]; ok {
		return canonical
	}
	return mt
}

// supported holds exactly the canonical types the built-in extractors claim.
// Classification never succeeds with a type nothing downstream can handle.
var supported = map[string]struct{}{
	PlainText: {}, Markdown: {}, HTML: {}, CSV: {}, TSV: {}, JSON: {},
	YAML: {}, TOML: {}, XML: {}, PDF: {},
	DOCX: {}, XLSX: {}, PPTX: {}, JPEG: {}, PNG: {},
	TIFF: {}, BMP: {}, GIF: {}, WebP: {}, EML: {},
}

// Supported lists every canonical media type classification can produce.
func Supported() []string {
	out := make([]string, 0, len(supported))
	for mt := range supported {
		out = append(out, mt)
	}
	sort.Strings(out)
	return out
}

// sniff identifies the media type from magic bytes, disambiguating ZIP-based
// container formats by peeking at archive entry names. Returns "" when the
// bytes are absent or too generic to commit to.
func sniff(prefix []byte) string {
	if len(prefix) == 0 {
		return ""
	}
	mt := mimetype.Detect(prefix)
	detected := Canonicalize(mt.String())

	switch detected {
	case ZIP:
		inner := sniffZipContainer(prefix)
		if _, ok := supported[inner]; ok {
			return inner
		}
		return ""
	case PlainText, "application/octet-stream":
		// Too generic to override an extension or a declared type.
		return ""
	}

	if _, ok := supported[detected]; ok {
		return detected
	}
	// mimetype walks up to the parent type; text/* subtypes we don't model
	// fall back to hints rather than failing outright.
	return ""
}

// sniffZipContainer distinguishes OOXML packages from plain archives by
// their well-known entry names.
func sniffZipContainer(data []byte) string {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}
	var hasContentTypes bool
	for _, f := range zr.File {
		switch {
		case f.Name == "[Content_Types].xml":
			hasContentTypes = true
		case strings.HasPrefix(f.Name, "word/"):
			return DOCX
		case strings.HasPrefix(f.Name, "xl/"):
			return XLSX
		case strings.HasPrefix(f.Name, "ppt/"):
			return PPTX
		}
	}
	if hasContentTypes {
		// An OOXML package whose parts we did not recognize.
		return ""
	}
	return ZIP
}

// IsImage reports whether the canonical type is a raster image handled by the
// OCR path.
func IsImage(mediaType string) bool {
	return strings.HasPrefix(mediaType, "image/")
}
