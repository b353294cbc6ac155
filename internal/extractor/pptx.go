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

// PptxExtractor streams slide XML in slide order, one page per slide.
type PptxExtractor struct{}

func NewPptxExtractor() *PptxExtractor { return &PptxExtractor{} }

func (p *PptxExtractor) Name() string { return "pptx" }

func (p *PptxExtractor) MediaTypes() []string {
	return []string{mediatype.PPTX}
}

func (p *PptxExtractor) Extract(ctx context.Context, data []byte, _ string, cfg *types.ExtractionConfig) (*types.ExtractionResult, error) {
	zr, err := openOOXML(data)
	if err != nil {
		return nil, err
	}

	result := types.NewResult(mediatype.PPTX)
	coreProperties(zr, result)

	slides := partsMatching(zr, "ppt/slides/slide", ".xml")
	if len(slides) == 0 {
		return nil, errdef.New(errdef.KindParsing, "package has no slides")
	}

	textSlides := 0
	var parts []string
	var pages []types.PageContent
	for i, name := range slides {
		rc, err := partReader(zr, name)
		if err != nil || rc == nil {
			continue
		}
		text, visual, err := p.parseSlide(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		if visual {
			result.HasVisualContent = true
		}

		page := types.PageContent{PageNumber: i + 1, Content: text, IsBlank: text == ""}
		pages = append(pages, page)
		if text != "" {
			textSlides++
			parts = append(parts, text)
		}
	}

	result.Content = strings.Join(parts, "\n\n")
	result.TextCoverage = float64(textSlides) / float64(len(slides))
	result.Metadata.Set("slideCount", len(slides))

	if cfg != nil && cfg.Pages != nil && cfg.Pages.Breakdown {
		result.Pages = pages
	}

	collectMedia(zr, "ppt/media/", result, cfg)
	return result, nil
}

// parseSlide collects text runs, one line per paragraph, and reports whether
// the slide embeds pictures.
func (p *PptxExtractor) parseSlide(r io.Reader) (string, bool, error) {
	dec := xml.NewDecoder(r)

	var (
		lines     []string
		paragraph strings.Builder
		inText    bool
		visual    bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", visual, errdef.Wrap(errdef.KindParsing, err, "parse slide xml")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "pic", "blip":
				visual = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if text := strings.TrimSpace(paragraph.String()); text != "" {
					lines = append(lines, text)
				}
				paragraph.Reset()
			}
		case xml.CharData:
			if inText {
				paragraph.Write(t)
			}
		}
	}
	if text := strings.TrimSpace(paragraph.String()); text != "" {
		lines = append(lines, text)
	}
	return strings.Join(lines, "\n"), visual, nil
}
