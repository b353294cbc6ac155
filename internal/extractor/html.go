package extractor

import (
	"bytes"
	"context"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	tableplugin "github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"

	"github.com/kohlhaas/docintel/internal/errdef"
	"github.com/kohlhaas/docintel/internal/mediatype"
	"github.com/kohlhaas/docintel/internal/types"
)

// HTMLExtractor parses HTML documents: metadata from head elements, tables
// from table markup, and content as plain text or markdown depending on the
// requested output format.
type HTMLExtractor struct {
	md *converter.Converter
}

func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				tableplugin.NewTablePlugin(),
			),
		),
	}
}

func (h *HTMLExtractor) Name() string { return "html" }

func (h *HTMLExtractor) MediaTypes() []string {
	return []string{mediatype.HTML}
}

func (h *HTMLExtractor) Extract(ctx context.Context, data []byte, _ string, cfg *types.ExtractionConfig) (*types.ExtractionResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, errdef.Wrap(errdef.KindParsing, err, "parse html")
	}

	result := types.NewResult(mediatype.HTML)
	result.TextCoverage = 1
	h.extractMetadata(doc, result)
	h.extractTables(doc, result)
	result.HasVisualContent = doc.Find("img").Length() > 0

	format := types.OutputPlain
	if cfg != nil && cfg.OutputFormat != "" {
		format = cfg.OutputFormat
	}

	switch format {
	case types.OutputMarkdown:
		md, err := h.md.ConvertString(string(data))
		if err != nil {
			result.AddWarning("html", "markdown conversion failed: "+err.Error())
			result.Content = plainTextOf(doc)
		} else {
			result.Content = strings.TrimSpace(md)
		}
	case types.OutputHTML:
		result.Content = string(data)
	default:
		result.Content = plainTextOf(doc)
	}
	return result, nil
}

func (h *HTMLExtractor) extractMetadata(doc *goquery.Document, result *types.ExtractionResult) {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		result.Metadata.Title = title
	}
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		content, _ := s.Attr("content")
		if content == "" {
			return
		}
		switch strings.ToLower(name) {
		case "author":
			result.Metadata.Authors = append(result.Metadata.Authors, content)
		case "description":
			result.Metadata.Set("description", content)
		case "keywords":
			for _, kw := range strings.Split(content, ",") {
				if kw = strings.TrimSpace(kw); kw != "" {
					result.Metadata.Keywords = append(result.Metadata.Keywords, kw)
				}
			}
		}
	})
	if lang, ok := doc.Find("html").Attr("lang"); ok && lang != "" {
		result.Metadata.Language = lang
	}
}

func (h *HTMLExtractor) extractTables(doc *goquery.Document, result *types.ExtractionResult) {
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		var cells [][]string
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			var cols []string
			row.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
				cols = append(cols, strings.TrimSpace(cell.Text()))
			})
			if len(cols) > 0 {
				cells = append(cells, cols)
			}
		})
		if len(cells) > 0 {
			result.Tables = append(result.Tables, types.Table{
				Cells:    cells,
				Markdown: renderMarkdownTable(cells),
			})
		}
	})
}

// plainTextOf flattens the document body to whitespace-normalized text,
// skipping script and style content.
func plainTextOf(doc *goquery.Document) string {
	doc.Find("script, style, noscript").Remove()
	var sb strings.Builder
	doc.Find("body").Each(func(_ int, body *goquery.Selection) {
		sb.WriteString(body.Text())
	})
	text := sb.String()
	if text == "" {
		text = doc.Text()
	}

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.Join(strings.Fields(line), " "); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}
