// Package extractor maps a captured frame to facial attribute estimates.
package extractor

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/maastricht-university/interview-pipeline/observation"
)

var (
	ErrNoFace      = errors.New("no face detected")
	ErrLoadFailure = errors.New("extractor unavailable")
)

// DefaultSmileThreshold applies when a backend does not report its own.
const DefaultSmileThreshold = 0.7

// ExpressionOrder fixes the tie-break order of DominantExpression.
var ExpressionOrder = []string{"neutral", "happy", "sad", "angry", "fearful", "disgusted", "surprised"}

// Attributes is what a backend reports for the first face in a frame.
// Smile and expression confidences are in [0,1].
type Attributes struct {
	Gender         string             `json:"gender"`
	Age            float64            `json:"age"`
	Expressions    map[string]float64 `json:"expressions"`
	Smile          float64            `json:"smile"`
	SmileThreshold float64            `json:"smile_threshold,omitempty"`
}

type Extractor interface {
	// Analyze returns ErrNoFace when the image holds no face.
	Analyze(ctx context.Context, image []byte) (Attributes, error)
}

// DominantExpression is the highest-confidence expression.
func DominantExpression(expr map[string]float64) string {
	if len(expr) == 0 {
		return ""
	}
	names := make([]string, 0, len(expr))
	known := map[string]bool{}
	for _, n := range ExpressionOrder {
		known[n] = true
		if _, ok := expr[n]; ok {
			names = append(names, n)
		}
	}
	var extra []string
	for n := range expr {
		if !known[n] {
			extra = append(extra, n)
		}
	}
	sort.Strings(extra)
	names = append(names, extra...)

	best := names[0]
	for _, n := range names[1:] {
		if expr[n] > expr[best] {
			best = n
		}
	}
	return best
}

// Observe turns attributes into a frame observation taken offset seconds
// into the session.
func Observe(a Attributes, defaultThreshold float64, offset int) observation.Observation {
	th := a.SmileThreshold
	if th <= 0 {
		th = defaultThreshold
	}
	return observation.Observation{
		Source:     observation.SourceFrame,
		Gender:     strings.ToLower(a.Gender),
		Age:        int(math.Round(a.Age)),
		Expression: DominantExpression(a.Expressions),
		Smiling:    a.Smile > th,
		Offset:     offset,
	}
}

// Func adapts a function to Extractor.
type Func func(ctx context.Context, image []byte) (Attributes, error)

func (f Func) Analyze(ctx context.Context, image []byte) (Attributes, error) { return f(ctx, image) }
