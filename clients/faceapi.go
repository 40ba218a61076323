package clients

import (
	"bytes"
	"context"
)

// --- Face analysis sidecar (/models/load, /detect) ---
type ModelLoadReq struct {
	Source string   `json:"source"`
	Nets   []string `json:"nets,omitempty"`
}

// FaceNets are the networks the sidecar must have loaded before /detect
// answers with age, gender and expressions.
var FaceNets = []string{"tiny_face_detector", "face_landmark_68", "face_recognition", "face_expression", "age_gender"}

type DetectedFace struct {
	Gender      string             `json:"gender"`
	Age         float64            `json:"age"`
	Expressions map[string]float64 `json:"expressions"`
}
type DetectResp struct {
	Faces []DetectedFace `json:"faces"`
}

type FaceAPI struct {
	h   *HTTP
	url string
}

func NewFaceAPI(h *HTTP, url string) *FaceAPI { return &FaceAPI{h: h, url: url} }

// LoadModels asks the sidecar to load its weights from source.
func (f *FaceAPI) LoadModels(ctx context.Context, source string) error {
	return f.h.postJSON(ctx, "faceapi load", f.url+"/models/load", ModelLoadReq{Source: source, Nets: FaceNets}, nil)
}

func (f *FaceAPI) Detect(ctx context.Context, image []byte) (*DetectResp, error) {
	var out DetectResp
	err := f.h.postMultipart(ctx, "faceapi detect", f.url+"/detect", nil,
		part{field: "image", name: "frame.jpg", contentType: "image/jpeg", r: bytes.NewReader(image)}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
