package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/sync/errgroup"

	"github.com/kohlhaas/docintel/internal/errdef"
	"github.com/kohlhaas/docintel/internal/mediatype"
	"github.com/kohlhaas/docintel/internal/types"
	"github.com/kohlhaas/docintel/pkg/logger"
)

// pdfPageWorkers caps the per-document page extraction concurrency.
const pdfPageWorkers = 4

// PDFExtractor extracts text, metadata, and embedded images from PDFs. Text
// comes from ledongthuc/pdf with page-level fan-out; image detection and
// extraction go through pdfcpu.
type PDFExtractor struct {
	log logger.Logger
}

func NewPDFExtractor(log logger.Logger) *PDFExtractor {
	if log == nil {
		log = logger.Nop()
	}
	return &PDFExtractor{log: log}
}

func (p *PDFExtractor) Name() string { return "pdf" }

func (p *PDFExtractor) MediaTypes() []string {
	return []string{mediatype.PDF}
}

func (p *PDFExtractor) Extract(ctx context.Context, data []byte, _ string, cfg *types.ExtractionConfig) (*types.ExtractionResult, error) {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return nil, errdef.Wrap(errdef.KindParsing, err, "open pdf")
	}

	result := types.NewResult(mediatype.PDF)
	p.extractInfoMetadata(pdfReader, result)

	numPages := pdfReader.NumPage()
	maxPages := numPages
	if cfg != nil && cfg.PDF != nil && cfg.PDF.MaxPages > 0 && cfg.PDF.MaxPages < numPages {
		maxPages = cfg.PDF.MaxPages
		result.AddWarning("pdf", fmt.Sprintf("truncated to first %d of %d pages", maxPages, numPages))
	}

	pages, err := p.extractPages(ctx, pdfReader, maxPages)
	if err != nil {
		return nil, err
	}

	textPages := 0
	var parts []string
	for _, page := range pages {
		if !page.IsBlank {
			textPages++
			parts = append(parts, page.Content)
		}
	}
	result.Content = strings.Join(parts, "\n\n")
	if maxPages > 0 {
		result.TextCoverage = float64(textPages) / float64(maxPages)
	}
	result.Metadata.Set("pageCount", numPages)

	if cfg != nil && cfg.Pages != nil && cfg.Pages.Breakdown {
		result.Pages = pages
	}

	p.inspectImages(data, result, cfg)
	return result, nil
}

// extractPages pulls text per page concurrently, preserving page order.
func (p *PDFExtractor) extractPages(ctx context.Context, r *pdf.Reader, maxPages int) ([]types.PageContent, error) {
	pages := make([]types.PageContent, maxPages)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(pdfPageWorkers)

	for i := 1; i <= maxPages; i++ {
		pageNum := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			pc := types.PageContent{PageNumber: pageNum, IsBlank: true}
			page := r.Page(pageNum)
			if !page.V.IsNull() {
				text, err := page.GetPlainText(nil)
				if err != nil {
					return errdef.Wrap(errdef.KindParsing, err, fmt.Sprintf("page %d", pageNum))
				}
				text = strings.TrimSpace(text)
				if text != "" {
					pc.Content = text
					pc.IsBlank = false
				}
			}
			pages[pageNum-1] = pc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}

// extractInfoMetadata reads the document information dictionary.
func (p *PDFExtractor) extractInfoMetadata(r *pdf.Reader, result *types.ExtractionResult) {
	defer func() {
		// ledongthuc panics on some malformed trailers; metadata stays empty.
		_ = recover()
	}()

	info := r.Trailer().Key("Info")
	if info.IsNull() {
		return
	}
	get := func(key string) string {
		v := info.Key(key)
		if v.IsNull() {
			return ""
		}
		return strings.TrimSpace(v.Text())
	}
	result.Metadata.Title = get("Title")
	if author := get("Author"); author != "" {
		result.Metadata.Authors = []string{author}
	}
	result.Metadata.Subject = get("Subject")
	if kw := get("Keywords"); kw != "" {
		for _, k := range strings.FieldsFunc(kw, func(r rune) bool { return r == ',' || r == ';' }) {
			if k = strings.TrimSpace(k); k != "" {
				result.Metadata.Keywords = append(result.Metadata.Keywords, k)
			}
		}
	}
	result.Metadata.CreatedAt = get("CreationDate")
	result.Metadata.ModifiedAt = get("ModDate")
	if producer := get("Producer"); producer != "" {
		result.Metadata.Set("producer", producer)
	}
}

// inspectImages detects image XObjects for the OCR trigger and extracts them
// when requested. pdfcpu failures degrade to warnings; text extraction has
// already succeeded by this point.
func (p *PDFExtractor) inspectImages(data []byte, result *types.ExtractionResult, cfg *types.ExtractionConfig) {
	conf := model.NewDefaultConfiguration()
	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		result.AddWarning("pdf", "image inspection failed: "+err.Error())
		return
	}

	pagesWithImages := make([]int, 0)
	for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
		if len(pdfcpu.ImageObjNrs(pctx, pageNr)) > 0 {
			pagesWithImages = append(pagesWithImages, pageNr)
		}
	}
	result.HasVisualContent = len(pagesWithImages) > 0
	if len(pagesWithImages) == 0 {
		return
	}

	wantImages := cfg != nil &&
		((cfg.PDF != nil && cfg.PDF.ExtractImages) ||
			(cfg.Images != nil && types.Bool(cfg.Images.Enabled, true)))
	if !wantImages {
		return
	}

	images, err := api.ExtractImagesRaw(bytes.NewReader(data), nil, conf)
	if err != nil {
		result.AddWarning("pdf", "image extraction failed: "+err.Error())
		return
	}

	index := 0
	for _, pageImages := range images {
		objNrs := make([]int, 0, len(pageImages))
		for objNr := range pageImages {
			objNrs = append(objNrs, objNr)
		}
		sort.Ints(objNrs)
		for _, objNr := range objNrs {
			img := pageImages[objNr]
			raw, err := io.ReadAll(img)
			if err != nil || len(raw) == 0 {
				continue
			}
			result.Images = append(result.Images, types.ExtractedImage{
				Data:       raw,
				Format:     img.FileType,
				Index:      index,
				PageNumber: img.PageNr,
			})
			index++
		}
	}
}
