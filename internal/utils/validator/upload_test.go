package validator

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kohlhaas/docintel/internal/errdef"
)

func uploadHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	_, header, err := req.FormFile("file")
	require.NoError(t, err)
	return header
}

func TestValidateAcceptsPlainText(t *testing.T) {
	v := New(nil)
	header := uploadHeader(t, "note.txt", []byte("a perfectly ordinary note"))

	info, err := v.Validate(header)
	require.NoError(t, err)

	assert.Equal(t, "note.txt", info.Filename)
	assert.Equal(t, ".txt", info.Extension)
	assert.NotEmpty(t, info.Hash)
	assert.Contains(t, info.MimeType, "text/plain")
}

func TestValidateRejectsOversizedFile(t *testing.T) {
	v := New(&Policy{MaxFileSize: 8, AllowedExtensions: []string{".txt"}})
	header := uploadHeader(t, "big.txt", []byte("this body is longer than eight bytes"))

	_, err := v.Validate(header)
	require.Error(t, err)
	assert.Equal(t, errdef.KindValidation, errdef.KindOf(err))
}

func TestValidateRejectsUnknownExtension(t *testing.T) {
	v := New(nil)
	header := uploadHeader(t, "payload.exe", []byte("MZ"))

	_, err := v.Validate(header)
	require.Error(t, err)
	assert.Equal(t, errdef.KindUnsupportedFormat, errdef.KindOf(err))
}

func TestValidateRejectsEmptyFile(t *testing.T) {
	v := New(nil)
	header := uploadHeader(t, "empty.txt", nil)

	_, err := v.Validate(header)
	require.Error(t, err)
	assert.Equal(t, errdef.KindValidation, errdef.KindOf(err))
}

func TestValidateAllFailsFastWithFilename(t *testing.T) {
	v := New(nil)
	headers := []*multipart.FileHeader{
		uploadHeader(t, "good.txt", []byte("fine")),
		uploadHeader(t, "bad.exe", []byte("MZ")),
	}

	_, err := v.ValidateAll(headers)
	require.Error(t, err)
	assert.Equal(t, "bad.exe", errdef.AsError(err).Context["filename"])
}
