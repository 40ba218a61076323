package clients

import (
	"bytes"
	"context"
	"errors"
	"fmt"
)

const FacePlusPlusURL = "https://api-us.faceplusplus.com/facepp/v3/detect"

var ErrMissingCredentials = errors.New("facepp: api key and secret are required")

// --- Face++ detect ---
type FPPValue struct {
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
}
type FPPGender struct {
	Value string `json:"value"`
}
type FPPAttributes struct {
	Gender  FPPGender          `json:"gender"`
	Age     FPPValue           `json:"age"`
	Smile   FPPValue           `json:"smile"`
	Emotion map[string]float64 `json:"emotion"`
}
type FPPFace struct {
	FaceToken  string        `json:"face_token"`
	Attributes FPPAttributes `json:"attributes"`
}
type FPPResp struct {
	RequestID    string    `json:"request_id"`
	Faces        []FPPFace `json:"faces"`
	ErrorMessage string    `json:"error_message"`
}

// FacePlusPlus calls the Face++ detect endpoint. The key and secret stay on
// the server; browsers only ever see the analyze passthrough.
type FacePlusPlus struct {
	h           *HTTP
	url         string
	key, secret string
}

func NewFacePlusPlus(h *HTTP, url, key, secret string) (*FacePlusPlus, error) {
	if key == "" || secret == "" {
		return nil, ErrMissingCredentials
	}
	if url == "" {
		url = FacePlusPlusURL
	}
	return &FacePlusPlus{h: h, url: url, key: key, secret: secret}, nil
}

func (f *FacePlusPlus) Detect(ctx context.Context, image []byte) (*FPPResp, error) {
	fields := [][2]string{
		{"api_key", f.key},
		{"api_secret", f.secret},
		{"return_attributes", "gender,age,smiling,emotion"},
	}
	var out FPPResp
	err := f.h.postMultipart(ctx, "facepp", f.url, fields,
		part{field: "image_file", name: "frame.jpg", contentType: "image/jpeg", r: bytes.NewReader(image)}, &out)
	if err != nil {
		return nil, err
	}
	if out.ErrorMessage != "" {
		return nil, fmt.Errorf("facepp: %s", out.ErrorMessage)
	}
	return &out, nil
}
