package extractor

import (
	"context"
	"fmt"

	"github.com/maastricht-university/interview-pipeline/clients"
	"github.com/maastricht-university/interview-pipeline/fallback"
)

// Local runs detection on the face-analysis sidecar.
type Local struct {
	api    *clients.FaceAPI
	Source string // model source that loaded
}

// LoadLocal asks the sidecar to load its models from each source in turn and
// keeps the first that works.
func LoadLocal(ctx context.Context, api *clients.FaceAPI, sources []string) (*Local, error) {
	providers := make([]fallback.Provider[string], 0, len(sources))
	for _, src := range sources {
		providers = append(providers, fallback.Provider[string]{
			Name: src,
			Load: func(ctx context.Context) (string, error) {
				if err := api.LoadModels(ctx, src); err != nil {
					return "", err
				}
				return src, nil
			},
		})
	}
	src, _, err := fallback.First(ctx, providers...)
	if err != nil {
		return nil, fmt.Errorf("local models: %w", err)
	}
	return &Local{api: api, Source: src}, nil
}

func (l *Local) Analyze(ctx context.Context, image []byte) (Attributes, error) {
	out, err := l.api.Detect(ctx, image)
	if err != nil {
		return Attributes{}, err
	}
	if len(out.Faces) == 0 {
		return Attributes{}, ErrNoFace
	}
	f := out.Faces[0]
	return Attributes{
		Gender:      f.Gender,
		Age:         f.Age,
		Expressions: f.Expressions,
		Smile:       f.Expressions["happy"],
	}, nil
}

// fppExpressions maps Face++ emotion names onto ExpressionOrder names.
var fppExpressions = map[string]string{
	"anger":     "angry",
	"disgust":   "disgusted",
	"fear":      "fearful",
	"happiness": "happy",
	"neutral":   "neutral",
	"sadness":   "sad",
	"surprise":  "surprised",
}

// Remote runs detection on Face++.
type Remote struct {
	api *clients.FacePlusPlus
}

func NewRemote(api *clients.FacePlusPlus) *Remote { return &Remote{api: api} }

func (r *Remote) Analyze(ctx context.Context, image []byte) (Attributes, error) {
	out, err := r.api.Detect(ctx, image)
	if err != nil {
		return Attributes{}, err
	}
	if len(out.Faces) == 0 {
		return Attributes{}, ErrNoFace
	}
	a := out.Faces[0].Attributes
	expr := make(map[string]float64, len(a.Emotion))
	for k, v := range a.Emotion {
		name, ok := fppExpressions[k]
		if !ok {
			name = k
		}
		expr[name] = v / 100
	}
	return Attributes{
		Gender:         a.Gender.Value,
		Age:            a.Age.Value,
		Expressions:    expr,
		Smile:          a.Smile.Value / 100,
		SmileThreshold: a.Smile.Threshold / 100,
	}, nil
}
