package extractor

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/kohlhaas/docintel/internal/errdef"
	"github.com/kohlhaas/docintel/internal/mediatype"
	"github.com/kohlhaas/docintel/internal/types"
)

// XlsxExtractor streams worksheet XML row by row. Declared sheet dimensions
// are untrusted: when the implied cell count exceeds the ceiling, the sparse
// path iterates only the cells actually present instead of allocating a
// dense grid.
type XlsxExtractor struct{}

// maxSheetColumns is the format's last addressable column, XFD.
const maxSheetColumns = 16384

func NewXlsxExtractor() *XlsxExtractor { return &XlsxExtractor{} }

func (x *XlsxExtractor) Name() string { return "xlsx" }

func (x *XlsxExtractor) MediaTypes() []string {
	return []string{mediatype.XLSX}
}

func (x *XlsxExtractor) Extract(ctx context.Context, data []byte, _ string, cfg *types.ExtractionConfig) (*types.ExtractionResult, error) {
	zr, err := openOOXML(data)
	if err != nil {
		return nil, err
	}

	result := types.NewResult(mediatype.XLSX)
	coreProperties(zr, result)

	shared, err := x.loadSharedStrings(zr)
	if err != nil {
		return nil, err
	}

	sheets := partsMatching(zr, "xl/worksheets/", ".xml")
	if len(sheets) == 0 {
		return nil, errdef.New(errdef.KindParsing, "package has no worksheets")
	}

	var parts []string
	for i, name := range sheets {
		rc, err := partReader(zr, name)
		if err != nil || rc == nil {
			continue
		}
		rows, sparse, overflow, err := x.parseSheet(rc, shared)
		rc.Close()
		if err != nil {
			return nil, err
		}
		if sparse {
			result.AddWarning("xlsx", fmt.Sprintf("sheet %d implies an oversized cell grid; parsed present cells only", i+1))
		}
		if overflow {
			result.AddWarning("xlsx", fmt.Sprintf("sheet %d references cells beyond column %d; those cells were appended without padding", i+1, maxSheetColumns))
		}
		if len(rows) == 0 {
			continue
		}
		md := renderMarkdownTable(rows)
		result.Tables = append(result.Tables, types.Table{Cells: rows, Markdown: md})
		parts = append(parts, fmt.Sprintf("## Sheet %d\n\n%s", i+1, md))
	}

	result.Content = strings.Join(parts, "\n\n")
	collectMedia(zr, "xl/media/", result, cfg)
	if result.Content != "" {
		result.TextCoverage = 1
	}
	return result, nil
}

// loadSharedStrings reads xl/sharedStrings.xml into an indexable slice. An
// absent part is fine; sheets then carry only inline and numeric values.
func (x *XlsxExtractor) loadSharedStrings(zr *zip.Reader) ([]string, error) {
	rc, err := partReader(zr, "xl/sharedStrings.xml")
	if err != nil || rc == nil {
		return nil, nil
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	var (
		shared  []string
		current strings.Builder
		inItem  bool
		inText  bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errdef.Wrap(errdef.KindParsing, err, "parse shared strings")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "si":
				inItem = true
				current.Reset()
			case "t":
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "si":
				inItem = false
				shared = append(shared, current.String())
			case "t":
				inText = false
			}
		case xml.CharData:
			if inItem && inText {
				current.Write(t)
			}
		}
	}
	return shared, nil
}

// parseSheet streams one worksheet. Returns the rows, whether the sparse
// path was taken, whether any cell reference exceeded the column limit, and
// any parse error.
func (x *XlsxExtractor) parseSheet(r io.Reader, shared []string) ([][]string, bool, bool, error) {
	dec := xml.NewDecoder(r)

	var (
		rows       [][]string
		row        []string
		sparse     bool
		overflow   bool
		totalCells int
		cellRef    string
		cellType   string
		inValue    bool
		inInline   bool
		value      strings.Builder
	)

	appendCell := func(text string) {
		col := columnIndex(cellRef)
		if sparse || col < 0 {
			// Sparse path: never pad toward a declared or implied huge width.
			row = append(row, text)
			return
		}
		if col >= maxSheetColumns {
			// A reference past XFD is outside the format; keep the value but
			// report that column alignment was not preserved for it.
			overflow = true
			row = append(row, text)
			return
		}
		for len(row) < col {
			row = append(row, "")
		}
		row = append(row, text)
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, sparse, overflow, errdef.Wrap(errdef.KindParsing, err, "parse worksheet xml")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "dimension":
				for _, attr := range t.Attr {
					if attr.Name.Local == "ref" {
						if n := declaredCellCount(attr.Value); n < 0 || !checkDeclaredCells(n) {
							sparse = true
						}
					}
				}
			case "row":
				row = nil
			case "c":
				cellRef, cellType = "", ""
				for _, attr := range t.Attr {
					switch attr.Name.Local {
					case "r":
						cellRef = attr.Value
					case "t":
						cellType = attr.Value
					}
				}
			case "v":
				inValue = true
				value.Reset()
			case "is":
				inInline = true
				value.Reset()
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "v":
				inValue = false
				text := value.String()
				if cellType == "s" {
					text = sharedStringAt(shared, text)
				}
				appendCell(text)
			case "is":
				inInline = false
				appendCell(value.String())
			case "row":
				if len(row) > 0 {
					rows = append(rows, row)
					totalCells += len(row)
					if totalCells > maxDeclaredCells {
						// A sheet without a declared dimension can still
						// accumulate a huge padded grid; stop padding.
						sparse = true
					}
					row = nil
				}
			}

		case xml.CharData:
			if inValue || inInline {
				value.Write(t)
			}
		}
	}
	return rows, sparse, overflow, nil
}

// sharedStringAt resolves a shared-string index, returning the raw value on
// any malformed reference.
func sharedStringAt(shared []string, ref string) string {
	var idx int
	if _, err := fmt.Sscanf(ref, "%d", &idx); err != nil {
		return ref
	}
	if idx < 0 || idx >= len(shared) {
		return ref
	}
	return shared[idx]
}
