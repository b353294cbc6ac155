package extractor

import (
	"context"
	"encoding/xml"
	"io"
	"strings"

	"github.com/kohlhaas/docintel/internal/errdef"
	"github.com/kohlhaas/docintel/internal/mediatype"
	"github.com/kohlhaas/docintel/internal/types"
)

// DocxExtractor streams word/document.xml, collecting paragraph text and
// tables without materializing the XML tree.
type DocxExtractor struct{}

func NewDocxExtractor() *DocxExtractor { return &DocxExtractor{} }

func (d *DocxExtractor) Name() string { return "docx" }

func (d *DocxExtractor) MediaTypes() []string {
	return []string{mediatype.DOCX}
}

func (d *DocxExtractor) Extract(ctx context.Context, data []byte, _ string, cfg *types.ExtractionConfig) (*types.ExtractionResult, error) {
	zr, err := openOOXML(data)
	if err != nil {
		return nil, err
	}

	result := types.NewResult(mediatype.DOCX)
	coreProperties(zr, result)

	rc, err := partReader(zr, "word/document.xml")
	if err != nil {
		return nil, errdef.Wrap(errdef.KindParsing, err, "open document part")
	}
	if rc == nil {
		return nil, errdef.New(errdef.KindParsing, "package has no word/document.xml part")
	}
	defer rc.Close()

	if err := d.parseDocument(rc, result); err != nil {
		return nil, err
	}

	collectMedia(zr, "word/media/", result, cfg)
	if result.Content != "" {
		result.TextCoverage = 1
	}
	return result, nil
}

func (d *DocxExtractor) parseDocument(r io.Reader, result *types.ExtractionResult) error {
	dec := xml.NewDecoder(r)

	var (
		content   strings.Builder
		paragraph strings.Builder
		inText    bool

		tableDepth int
		table      [][]string
		row        []string
		cell       strings.Builder
	)

	flushParagraph := func() {
		text := strings.TrimRight(paragraph.String(), " ")
		paragraph.Reset()
		if text == "" {
			return
		}
		if content.Len() > 0 {
			content.WriteString("\n")
		}
		content.WriteString(text)
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errdef.Wrap(errdef.KindParsing, err, "parse document xml")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				if tableDepth > 0 {
					cell.WriteString("\t")
				} else {
					paragraph.WriteString("\t")
				}
			case "br":
				if tableDepth == 0 {
					paragraph.WriteString("\n")
				}
			case "tbl":
				tableDepth++
				if tableDepth == 1 {
					table = nil
				}
			case "tr":
				if tableDepth == 1 {
					row = nil
				}
			case "tc":
				if tableDepth == 1 {
					cell.Reset()
				}
			case "drawing", "pic":
				result.HasVisualContent = true
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if tableDepth == 0 {
					flushParagraph()
				} else if cell.Len() > 0 {
					cell.WriteString(" ")
				}
			case "tc":
				if tableDepth == 1 {
					row = append(row, strings.TrimSpace(cell.String()))
					cell.Reset()
				}
			case "tr":
				if tableDepth == 1 && len(row) > 0 {
					table = append(table, row)
					row = nil
				}
			case "tbl":
				tableDepth--
				if tableDepth == 0 && len(table) > 0 {
					md := renderMarkdownTable(table)
					result.Tables = append(result.Tables, types.Table{Cells: table, Markdown: md})
					if content.Len() > 0 {
						content.WriteString("\n")
					}
					content.WriteString(md)
					table = nil
				}
			}

		case xml.CharData:
			if !inText {
				continue
			}
			if tableDepth > 0 {
				cell.Write(t)
			} else {
				paragraph.Write(t)
			}
		}
	}
	flushParagraph()

	result.Content = content.String()
	return nil
}
