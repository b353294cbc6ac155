package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/kohlhaas/docintel/internal/errdef"
	"github.com/kohlhaas/docintel/internal/types"
)

// openOOXML opens an Office Open XML package.
func openOOXML(data []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errdef.Wrap(errdef.KindParsing, err, "open office package")
	}
	return zr, nil
}

// partReader opens one named part of the package. Returns nil when absent.
func partReader(zr *zip.Reader, name string) (io.ReadCloser, error) {
	for _, f := range zr.File {
		if f.Name == name {
			return f.Open()
		}
	}
	return nil, nil
}

// partsMatching lists part names under a directory prefix with the given
// extension, sorted for deterministic order.
func partsMatching(zr *zip.Reader, prefix, ext string) []string {
	var names []string
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, prefix) && path.Ext(f.Name) == ext {
			names = append(names, f.Name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		// slide2.xml sorts before slide10.xml.
		if len(names[i]) != len(names[j]) {
			return len(names[i]) < len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}

// coreProperties maps docProps/core.xml onto the result metadata.
func coreProperties(zr *zip.Reader, result *types.ExtractionResult) {
	rc, err := partReader(zr, "docProps/core.xml")
	if err != nil || rc == nil {
		return
	}
	defer rc.Close()

	var props struct {
		Title    string `xml:"title"`
		Creator  string `xml:"creator"`
		Subject  string `xml:"subject"`
		Keywords string `xml:"keywords"`
		Language string `xml:"language"`
		Created  string `xml:"created"`
		Modified string `xml:"modified"`
	}
	if err := xml.NewDecoder(rc).Decode(&props); err != nil {
		return
	}
	result.Metadata.Title = props.Title
	if props.Creator != "" {
		result.Metadata.Authors = []string{props.Creator}
	}
	result.Metadata.Subject = props.Subject
	result.Metadata.Language = props.Language
	result.Metadata.CreatedAt = props.Created
	result.Metadata.ModifiedAt = props.Modified
	for _, kw := range strings.FieldsFunc(props.Keywords, func(r rune) bool { return r == ',' || r == ';' }) {
		if kw = strings.TrimSpace(kw); kw != "" {
			result.Metadata.Keywords = append(result.Metadata.Keywords, kw)
		}
	}
}

// collectMedia extracts embedded media files from the package's media
// directory when image extraction is requested.
func collectMedia(zr *zip.Reader, mediaDir string, result *types.ExtractionResult, cfg *types.ExtractionConfig) {
	hasMedia := false
	wantImages := cfg != nil && cfg.Images != nil && types.Bool(cfg.Images.Enabled, true)

	index := 0
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, mediaDir) {
			continue
		}
		ext := strings.TrimPrefix(strings.ToLower(path.Ext(f.Name)), ".")
		switch ext {
		case "png", "jpg", "jpeg", "gif", "bmp", "tiff", "webp", "emf", "wmf":
		default:
			continue
		}
		hasMedia = true
		if !wantImages {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil || len(data) == 0 {
			continue
		}
		result.Images = append(result.Images, types.ExtractedImage{
			Data:   data,
			Format: ext,
			Index:  index,
		})
		index++
	}
	if hasMedia {
		result.HasVisualContent = true
	}
}

// columnIndex converts a spreadsheet column label (A, Z, AA) to a zero-based
// index. Returns -1 for malformed refs.
func columnIndex(ref string) int {
	col := 0
	seen := false
	for _, r := range ref {
		if r >= 'A' && r <= 'Z' {
			col = col*26 + int(r-'A') + 1
			seen = true
			continue
		}
		if r >= '0' && r <= '9' {
			break
		}
		return -1
	}
	if !seen {
		return -1
	}
	return col - 1
}

// declaredCellCount parses a worksheet dimension ref like "A1:ZZ100" into the
// implied cell count. Returns -1 when the ref is absent or malformed.
func declaredCellCount(ref string) int64 {
	parts := strings.Split(ref, ":")
	if len(parts) != 2 {
		return -1
	}
	startCol, startRow := splitCellRef(parts[0])
	endCol, endRow := splitCellRef(parts[1])
	if startCol < 0 || endCol < 0 || startRow <= 0 || endRow <= 0 {
		return -1
	}
	cols := int64(endCol - startCol + 1)
	rows := endRow - startRow + 1
	if cols <= 0 || rows <= 0 {
		return -1
	}
	return cols * rows
}

func splitCellRef(ref string) (int, int64) {
	i := 0
	for i < len(ref) && ref[i] >= 'A' && ref[i] <= 'Z' {
		i++
	}
	col := columnIndex(ref[:i])
	var row int64
	if _, err := fmt.Sscanf(ref[i:], "%d", &row); err != nil {
		return col, -1
	}
	return col, row
}
