package errdef

import "strings"

// messageHints maps lowercase substrings to kinds, checked in order. Not every
// internal failure path attaches a kind, so the boundary still needs a
// best-effort way to populate the taxonomy from free text.
var messageHints = []struct {
	substr string
	kind   Kind
}{
	{"permission denied", KindIO},
	{"no such file", KindIO},
	{"file not found", KindIO},
	{"is a directory", KindIO},
	{"disk full", KindIO},
	{"i/o timeout", KindIO},
	{"connection refused", KindIO},
	{"broken pipe", KindIO},
	{"unsupported format", KindUnsupportedFormat},
	{"unsupported file type", KindUnsupportedFormat},
	{"unsupported mime", KindUnsupportedFormat},
	{"unknown media type", KindUnsupportedFormat},
	{"not supported", KindUnsupportedFormat},
	{"ocr", KindOCR},
	{"tesseract", KindOCR},
	{"textract", KindOCR},
	{"cache", KindCache},
	{"image decode", KindImageProcessing},
	{"image: unknown format", KindImageProcessing},
	{"validation", KindValidation},
	{"invalid config", KindValidation},
	{"plugin", KindPlugin},
	{"parse", KindParsing},
	{"unexpected token", KindParsing},
	{"unexpected eof", KindParsing},
	{"malformed", KindParsing},
	{"corrupt", KindParsing},
	{"invalid", KindParsing},
}

// ClassifyMessage inspects a free-text failure message and maps it onto the
// taxonomy. Defaults to Parsing, the most common failure class for document
// input.
func ClassifyMessage(message string) Kind {
	lower := strings.ToLower(message)
	for _, hint := range messageHints {
		if strings.Contains(lower, hint.substr) {
			return hint.kind
		}
	}
	return KindParsing
}
