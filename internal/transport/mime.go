package transport

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"github.com/nhle/priobox/internal/model"
)

// usableAttachments drops attachments without data.
func usableAttachments(in []model.Attachment) []model.Attachment {
	out := make([]model.Attachment, 0, len(in))
	for _, a := range in {
		if len(a.Data) == 0 {
			continue
		}
		out = append(out, a)
	}
	return out
}

// BuildMessage renders out as a multipart/mixed message: a
// multipart/alternative part holding the text and HTML bodies, followed
// by inline parts (with Content-ID) and regular attachments.
func BuildMessage(from *mail.Address, out model.Outgoing, date time.Time) ([]byte, error) {
	to := make([]*mail.Address, 0, len(out.To))
	for _, addr := range out.To {
		parsed, err := mail.ParseAddress(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient %q: %w", addr, err)
		}
		to = append(to, parsed)
	}
	if len(to) == 0 {
		return nil, fmt.Errorf("message has no recipients")
	}

	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", to)
	h.SetSubject(out.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generating message id: %w", err)
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating mime writer: %w", err)
	}

	if err := writeAlternative(mw, out.BodyText, out.BodyHTML); err != nil {
		return nil, err
	}

	attachments := usableAttachments(out.Attachments)
	for _, a := range attachments {
		if a.Inline {
			if err := writeInline(mw, a); err != nil {
				return nil, err
			}
		}
	}
	for _, a := range attachments {
		if !a.Inline {
			if err := writeAttachment(mw, a); err != nil {
				return nil, err
			}
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing mime writer: %w", err)
	}
	return buf.Bytes(), nil
}

func writeAlternative(mw *mail.Writer, text, html string) error {
	alt, err := mw.CreateInline()
	if err != nil {
		return fmt.Errorf("creating alternative part: %w", err)
	}

	for _, body := range []struct {
		contentType string
		content     string
	}{
		{"text/plain", text},
		{"text/html", html},
	} {
		var ph mail.InlineHeader
		ph.SetContentType(body.contentType, map[string]string{"charset": "utf-8"})
		w, err := alt.CreatePart(ph)
		if err != nil {
			return fmt.Errorf("creating %s part: %w", body.contentType, err)
		}
		if _, err := io.WriteString(w, body.content); err != nil {
			return fmt.Errorf("writing %s part: %w", body.contentType, err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("closing %s part: %w", body.contentType, err)
		}
	}

	return alt.Close()
}

func contentType(a model.Attachment) string {
	if a.MimeType != "" {
		return a.MimeType
	}
	return "application/octet-stream"
}

func writeInline(mw *mail.Writer, a model.Attachment) error {
	cid := strings.Trim(a.ContentID, "<>")
	if cid == "" {
		cid = uuid.New().String()
	}

	var ih mail.InlineHeader
	ih.SetContentType(contentType(a), map[string]string{"name": a.FileName})
	ih.Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": a.FileName}))
	ih.Set("Content-ID", "<"+cid+">")
	ih.Set("Content-Transfer-Encoding", "base64")

	w, err := mw.CreateSingleInline(ih)
	if err != nil {
		return fmt.Errorf("creating inline part %s: %w", a.FileName, err)
	}
	if _, err := w.Write(a.Data); err != nil {
		return fmt.Errorf("writing inline part %s: %w", a.FileName, err)
	}
	return w.Close()
}

func writeAttachment(mw *mail.Writer, a model.Attachment) error {
	var ah mail.AttachmentHeader
	ah.SetContentType(contentType(a), map[string]string{"name": a.FileName})
	ah.SetFilename(a.FileName)
	ah.Set("Content-Transfer-Encoding", "base64")

	w, err := mw.CreateAttachment(ah)
	if err != nil {
		return fmt.Errorf("creating attachment %s: %w", a.FileName, err)
	}
	if _, err := w.Write(a.Data); err != nil {
		return fmt.Errorf("writing attachment %s: %w", a.FileName, err)
	}
	return w.Close()
}
