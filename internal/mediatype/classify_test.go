package mediatype

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zipWith(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestClassifyMagicBytesWinOverExtension(t *testing.T) {
	pdf := []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n%%EOF")
	// Mislabeled upload: a PDF named .txt with a declared HTML type.
	mt, err := Classify(pdf, "upload.txt", "text/html")
	require.NoError(t, err)
	assert.Equal(t, PDF, mt)
}

func TestClassifyZipContainers(t *testing.T) {
	docx := zipWith(t, map[string]string{
		"[Content_Types].xml": "<Types/>",
		"word/document.xml":   "<w:document/>",
	})
	xlsx := zipWith(t, map[string]string{
		"[Content_Types].xml": "<Types/>",
		"xl/workbook.xml":     "<workbook/>",
	})
	pptx := zipWith(t, map[string]string{
		"[Content_Types].xml":   "<Types/>",
		"ppt/slides/slide1.xml": "<p:sld/>",
	})

	for want, data := range map[string][]byte{DOCX: docx, XLSX: xlsx, PPTX: pptx} {
		mt, err := Classify(data, "", "")
		require.NoError(t, err)
		assert.Equal(t, want, mt)
	}
}

func TestClassifyExtensionFallback(t *testing.T) {
	mt, err := Classify(nil, "notes.md", "")
	require.NoError(t, err)
	assert.Equal(t, Markdown, mt)

	mt, err = Classify(nil, "data.tsv", "")
	require.NoError(t, err)
	assert.Equal(t, TSV, mt)
}

func TestClassifyDeclaredIsAdvisory(t *testing.T) {
	mt, err := Classify(nil, "", "application/pdf; charset=binary")
	require.NoError(t, err)
	assert.Equal(t, PDF, mt)

	_, err = Classify(nil, "", "application/x-unheard-of")
	assert.Error(t, err)
}

func TestClassifyIsIdempotent(t *testing.T) {
	// Re-classifying a classifier output is stable.
	for _, mt := range []string{PDF, DOCX, HTML, CSV, PNG} {
		again, err := Classify(nil, "", mt)
		require.NoError(t, err)
		assert.Equal(t, mt, again)
	}
}

func TestClassifyUnknownFails(t *testing.T) {
	_, err := Classify([]byte{0x00, 0x01, 0x02, 0x03}, "", "")
	assert.Error(t, err)
}

func TestClassifyRejectsTypesWithoutExtractors(t *testing.T) {
	// Legacy office and opendocument formats have no extractor, so
	// classification refuses them rather than promising the unextractable.
	for _, hint := range []string{"a.doc", "a.xls", "a.ppt", "a.odt", "a.ods"} {
		_, err := Classify(nil, hint, "")
		assert.Error(t, err, hint)
	}
	_, err := Classify(nil, "", "application/msword")
	assert.Error(t, err)
}

func TestClassifyPlainZipArchiveFails(t *testing.T) {
	data := zipWith(t, map[string]string{"readme.txt": "not a document container"})
	_, err := Classify(data, "bundle.zip", "")
	assert.Error(t, err)
}

func TestClassifyEmailByExtension(t *testing.T) {
	mt, err := Classify(nil, "message.eml", "")
	require.NoError(t, err)
	assert.Equal(t, EML, mt)
}
