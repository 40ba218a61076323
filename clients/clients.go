package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"
)

type HTTP struct{ c *http.Client }

func NewHTTP() *HTTP { return NewHTTPWithTimeout(60 * time.Second) }

func NewHTTPWithTimeout(d time.Duration) *HTTP { return &HTTP{c: &http.Client{Timeout: d}} }

// part is one file attached to a multipart request.
type part struct {
	field, name, contentType string
	r                        io.Reader
}

// postMultipart sends fields and file as multipart/form-data and decodes a
// 200 JSON answer into out. svc prefixes every error.
func (h *HTTP) postMultipart(ctx context.Context, svc, url string, fields [][2]string, file part, out any) error {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("%s form: %w", svc, err)
		}
	}

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.field, file.name))
	ct := file.contentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	hdr.Set("Content-Type", ct)
	fw, err := w.CreatePart(hdr)
	if err != nil {
		return fmt.Errorf("%s form: %w", svc, err)
	}
	if _, err = io.Copy(fw, file.r); err != nil {
		return fmt.Errorf("%s form: %w", svc, err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("%s form: %w", svc, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &b)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return h.do(svc, req, out)
}

func (h *HTTP) postJSON(ctx context.Context, svc, url string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s encode: %w", svc, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return h.do(svc, req, out)
}

func (h *HTTP) do(svc string, req *http.Request, out any) error {
	resp, err := h.c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("%s %s: %s", svc, resp.Status, string(body))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s decode: %w", svc, err)
	}
	return nil
}
