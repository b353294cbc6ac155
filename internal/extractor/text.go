package extractor

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kohlhaas/docintel/internal/errdef"
	"github.com/kohlhaas/docintel/internal/mediatype"
	"github.com/kohlhaas/docintel/internal/types"
)

// TextExtractor handles the plain-text family: text, markdown, delimited
// data, and the structured text formats (JSON, YAML, TOML, XML).
type TextExtractor struct{}

func NewTextExtractor() *TextExtractor { return &TextExtractor{} }

func (t *TextExtractor) Name() string { return "text" }

func (t *TextExtractor) MediaTypes() []string {
	return []string{
		mediatype.PlainText,
		mediatype.Markdown,
		mediatype.CSV,
		mediatype.TSV,
		mediatype.JSON,
		mediatype.YAML,
		mediatype.TOML,
		mediatype.XML,
	}
}

func (t *TextExtractor) Extract(ctx context.Context, data []byte, mt string, cfg *types.ExtractionConfig) (*types.ExtractionResult, error) {
	if mt == "" {
		mt = mediatype.PlainText
	}

	switch mt {
	case mediatype.CSV:
		return t.extractDelimited(data, ',')
	case mediatype.TSV:
		return t.extractDelimited(data, '\t')
	}

	content := normalizeLineEndings(string(data))

	result := types.NewResult(mt)
	result.Content = content
	result.TextCoverage = 1

	switch mt {
	case mediatype.JSON:
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, errdef.Wrap(errdef.KindParsing, err, "parse json")
		}
	case mediatype.YAML:
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, errdef.Wrap(errdef.KindParsing, err, "parse yaml")
		}
	}
	return result, nil
}

// extractDelimited parses delimited data into a table and renders it both as
// plain content and as a markdown table.
func (t *TextExtractor) extractDelimited(data []byte, delim rune) (*types.ExtractionResult, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delim
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, errdef.Wrap(errdef.KindParsing, err, "parse delimited data")
	}

	mt := mediatype.CSV
	if delim == '\t' {
		mt = mediatype.TSV
	}
	result := types.NewResult(mt)
	result.TextCoverage = 1
	if len(rows) == 0 {
		return result, nil
	}

	table := types.Table{Cells: rows, Markdown: renderMarkdownTable(rows)}
	result.Tables = append(result.Tables, table)
	result.Content = table.Markdown
	return result, nil
}

func normalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// renderMarkdownTable renders rows as a GitHub-style markdown table, first
// row as header.
func renderMarkdownTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	cols := 0
	for _, row := range rows {
		if len(row) > cols {
			cols = len(row)
		}
	}

	var sb strings.Builder
	writeRow := func(row []string) {
		sb.WriteString("|")
		for i := 0; i < cols; i++ {
			cell := ""
			if i < len(row) {
				cell = strings.ReplaceAll(row[i], "|", "\\|")
			}
			sb.WriteString(" ")
			sb.WriteString(cell)
			sb.WriteString(" |")
		}
		sb.WriteString("\n")
	}

	writeRow(rows[0])
	sb.WriteString("|")
	for i := 0; i < cols; i++ {
		sb.WriteString(" --- |")
	}
	sb.WriteString("\n")
	for _, row := range rows[1:] {
		writeRow(row)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
