package clients

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// --- ASR (/transcribe) ---
type TransSeg struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}
type ASRResp struct {
	Segments []TransSeg `json:"segments"`
	Language string     `json:"language"`
}

// Transcript joins the segment texts in order.
func (r *ASRResp) Transcript() string {
	var b strings.Builder
	for _, s := range r.Segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

// ASR uploads recorded interview audio to the transcription service.
func (h *HTTP) ASR(ctx context.Context, url, name string, audio io.Reader) (*ASRResp, error) {
	var out ASRResp
	err := h.postMultipart(ctx, "asr", url+"/transcribe", nil, part{field: "file", name: name, r: audio}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *HTTP) ASRFile(ctx context.Context, url, audioPath string) (*ASRResp, error) {
	fd, err := os.Open(audioPath)
	if err != nil {
		return nil, err
	}
	defer fd.Close()
	return h.ASR(ctx, url, filepath.Base(audioPath), fd)
}
