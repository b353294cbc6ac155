// Package validator checks uploaded files before they enter the extraction
// path: size limits, extension allow-list, and sniffed media type.
package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/kohlhaas/docintel/internal/errdef"
)

// Policy bounds what the service accepts.
type Policy struct {
	MaxFileSize       int64
	AllowedExtensions []string
}

// DefaultPolicy covers every format the built-in extractors handle.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxFileSize: 64 << 20,
		AllowedExtensions: []string{
			".txt", ".md", ".markdown", ".csv", ".tsv",
			".json", ".yaml", ".yml", ".toml", ".xml",
			".html", ".htm", ".pdf", ".docx", ".xlsx", ".pptx", ".eml",
			".jpg", ".jpeg", ".png", ".tif", ".tiff", ".bmp", ".gif", ".webp",
		},
	}
}

// FileInfo describes an accepted upload.
type FileInfo struct {
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	Extension string `json:"extension"`
	MimeType  string `json:"mimeType"`
	Hash      string `json:"hash"`
}

// UploadValidator applies a Policy to multipart uploads.
type UploadValidator struct {
	policy *Policy
}

func New(policy *Policy) *UploadValidator {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &UploadValidator{policy: policy}
}

// Validate checks one upload and returns its sniffed identity. The returned
// errors carry validation or unsupported-format kinds so handlers can map
// them to status codes.
func (v *UploadValidator) Validate(header *multipart.FileHeader) (*FileInfo, error) {
	info := &FileInfo{
		Filename:  header.Filename,
		Size:      header.Size,
		Extension: strings.ToLower(filepath.Ext(header.Filename)),
	}

	if header.Size == 0 {
		return nil, errdef.New(errdef.KindValidation, "uploaded file is empty")
	}
	if v.policy.MaxFileSize > 0 && header.Size > v.policy.MaxFileSize {
		return nil, errdef.Newf(errdef.KindValidation,
			"file size %d exceeds the %d byte limit", header.Size, v.policy.MaxFileSize)
	}
	if !v.extensionAllowed(info.Extension) {
		return nil, errdef.Newf(errdef.KindUnsupportedFormat,
			"file extension %q is not accepted", info.Extension)
	}

	f, err := header.Open()
	if err != nil {
		return nil, errdef.Wrap(errdef.KindIO, err, "open upload")
	}
	defer f.Close()

	hash := sha256.New()
	head := make([]byte, 3072)
	n, err := io.ReadFull(io.TeeReader(f, hash), head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, errdef.Wrap(errdef.KindIO, err, "read upload")
	}
	info.MimeType = mimetype.Detect(head[:n]).String()

	if _, err := io.Copy(hash, f); err != nil {
		return nil, errdef.Wrap(errdef.KindIO, err, "hash upload")
	}
	info.Hash = hex.EncodeToString(hash.Sum(nil))

	return info, nil
}

// ValidateAll validates a batch, failing fast on the first rejected file.
func (v *UploadValidator) ValidateAll(headers []*multipart.FileHeader) ([]*FileInfo, error) {
	infos := make([]*FileInfo, 0, len(headers))
	for _, h := range headers {
		info, err := v.Validate(h)
		if err != nil {
			return nil, errdef.AsError(err).WithContext("filename", h.Filename)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (v *UploadValidator) extensionAllowed(ext string) bool {
	for _, allowed := range v.policy.AllowedExtensions {
		if allowed == ext {
			return true
		}
	}
	return false
}
