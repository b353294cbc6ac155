package extractor

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/kohlhaas/docintel/internal/errdef"
	"github.com/kohlhaas/docintel/internal/mediatype"
	"github.com/kohlhaas/docintel/internal/types"
)

// maxMessageDepth bounds multipart and message/rfc822 nesting. Deeper parts
// are skipped with a warning rather than recursed into.
const maxMessageDepth = 8

// EmlExtractor parses RFC 822 messages: headers into metadata, text and HTML
// parts into content, image attachments into the result's image list.
type EmlExtractor struct{}

func NewEmlExtractor() *EmlExtractor { return &EmlExtractor{} }

func (e *EmlExtractor) Name() string { return "eml" }

func (e *EmlExtractor) MediaTypes() []string {
	return []string{mediatype.EML}
}

func (e *EmlExtractor) Extract(_ context.Context, data []byte, _ string, _ *types.ExtractionConfig) (*types.ExtractionResult, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return nil, errdef.Wrap(errdef.KindParsing, err, "parse message")
	}

	result := types.NewResult(mediatype.EML)
	e.headerMetadata(msg.Header, result)

	var parts []string
	if err := e.walkPart(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body, &parts, result, 0); err != nil {
		return nil, err
	}
	result.Content = strings.Join(parts, "\n\n")
	if result.Content != "" {
		result.TextCoverage = 1
	}
	return result, nil
}

func (e *EmlExtractor) headerMetadata(h mail.Header, result *types.ExtractionResult) {
	dec := new(mime.WordDecoder)
	if subject := h.Get("Subject"); subject != "" {
		if decoded, err := dec.DecodeHeader(subject); err == nil {
			result.Metadata.Title = decoded
		} else {
			result.Metadata.Title = subject
		}
	}
	if from, err := h.AddressList("From"); err == nil {
		for _, a := range from {
			if a.Name != "" {
				result.Metadata.Authors = append(result.Metadata.Authors, a.Name)
			} else {
				result.Metadata.Authors = append(result.Metadata.Authors, a.Address)
			}
		}
	}
	if to := h.Get("To"); to != "" {
		result.Metadata.Set("to", to)
	}
	if cc := h.Get("Cc"); cc != "" {
		result.Metadata.Set("cc", cc)
	}
	if date, err := h.Date(); err == nil {
		result.Metadata.CreatedAt = date.Format(time.RFC3339)
	}
}

// walkPart consumes one MIME part: multipart containers recurse, text parts
// contribute content, images land in the result, everything else is recorded
// as an attachment name.
func (e *EmlExtractor) walkPart(contentType, encoding string, body io.Reader, parts *[]string, result *types.ExtractionResult, depth int) error {
	if depth > maxMessageDepth {
		result.AddWarning("eml", "message nesting exceeds depth limit, deeper parts skipped")
		return nil
	}

	mt := "text/plain"
	params := map[string]string{}
	if contentType != "" {
		if parsed, p, err := mime.ParseMediaType(contentType); err == nil {
			mt = parsed
			params = p
		}
	}

	switch {
	case strings.HasPrefix(mt, "multipart/"):
		boundary := params["boundary"]
		if boundary == "" {
			return errdef.New(errdef.KindParsing, "multipart message without boundary")
		}
		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return errdef.Wrap(errdef.KindParsing, err, "read message part")
			}
			perr := e.walkPart(part.Header.Get("Content-Type"), part.Header.Get("Content-Transfer-Encoding"), part, parts, result, depth+1)
			if perr != nil {
				return perr
			}
		}

	case mt == "text/plain":
		text, err := decodeMessageText(body, encoding)
		if err != nil {
			return err
		}
		if t := strings.TrimSpace(text); t != "" {
			*parts = append(*parts, t)
		}

	case mt == "text/html":
		html, err := decodeMessageText(body, encoding)
		if err != nil {
			return err
		}
		doc, derr := goquery.NewDocumentFromReader(strings.NewReader(html))
		if derr != nil {
			result.AddWarning("eml", "unreadable html part skipped")
			return nil
		}
		if t := strings.TrimSpace(plainTextOf(doc)); t != "" {
			*parts = append(*parts, t)
		}

	case mt == "message/rfc822":
		nested, err := mail.ReadMessage(body)
		if err != nil {
			result.AddWarning("eml", "unreadable attached message skipped")
			return nil
		}
		return e.walkPart(nested.Header.Get("Content-Type"), nested.Header.Get("Content-Transfer-Encoding"), nested.Body, parts, result, depth+1)

	case strings.HasPrefix(mt, "image/"):
		raw, err := decodeMessageBytes(body, encoding)
		if err != nil {
			result.AddWarning("eml", "unreadable image attachment skipped")
			return nil
		}
		result.HasVisualContent = true
		result.Images = append(result.Images, types.ExtractedImage{
			Data:   raw,
			Format: strings.TrimPrefix(mt, "image/"),
			Index:  len(result.Images),
		})

	default:
		if name := params["name"]; name != "" {
			var names []string
			if result.Metadata.Additional != nil {
				names, _ = result.Metadata.Additional["attachments"].([]string)
			}
			result.Metadata.Set("attachments", append(names, name))
		}
	}
	return nil
}

// decodeMessageBytes undoes the part's transfer encoding. base64 decoding
// tolerates the line breaks mail agents insert.
func decodeMessageBytes(r io.Reader, encoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errdef.Wrap(errdef.KindParsing, err, "decode message part")
	}
	return data, nil
}

func decodeMessageText(r io.Reader, encoding string) (string, error) {
	data, err := decodeMessageBytes(r, encoding)
	return string(data), err
}
