package aggregate

import (
	"math"
	"strings"

	"github.com/maastricht-university/interview-pipeline/observation"
)

const (
	DefaultGender     = "unknown"
	DefaultExpression = "neutral"
	DefaultSentiment  = "neutral"
)

// NegativeExpressions are the facial expressions counted as negative emotion.
var NegativeExpressions = map[string]bool{
	"angry":     true,
	"disgusted": true,
	"fearful":   true,
	"sad":       true,
}

// Summary is the session digest handed to the decision engine and the
// results view.
type Summary struct {
	DominantGender         string `json:"dominant_gender"`
	AverageAge             int    `json:"average_age"`
	SmilePercent           int    `json:"smile_percent"`
	DominantExpression     string `json:"dominant_expression"`
	DominantSentiment      string `json:"dominant_sentiment"`
	NegativeEmotionPercent int    `json:"negative_emotion_percent"`
	Transcript             string `json:"transcript"`
	FrameCount             int    `json:"frame_count"`
	UtteranceCount         int    `json:"utterance_count"`
}

// Summarize reduces a log snapshot. It never mutates obs.
func Summarize(obs []observation.Observation) Summary {
	var (
		genders, expressions, sentiments []string
		ages                             []int
		smiles                           []bool
		transcript                       strings.Builder
		frames, utts                     int
	)
	for _, o := range obs {
		switch o.Source {
		case observation.SourceFrame:
			frames++
			genders = append(genders, o.Gender)
			expressions = append(expressions, o.Expression)
			ages = append(ages, o.Age)
			smiles = append(smiles, o.Smiling)
		case observation.SourceSpeech:
			utts++
			sentiments = append(sentiments, o.Sentiment)
			transcript.WriteString(o.Text)
		}
	}

	return Summary{
		DominantGender:         Mode(genders, DefaultGender),
		AverageAge:             Mean(ages),
		SmilePercent:           Percent(smiles),
		DominantExpression:     Mode(expressions, DefaultExpression),
		DominantSentiment:      Mode(sentiments, DefaultSentiment),
		NegativeEmotionPercent: NegativePercent(obs),
		Transcript:             transcript.String(),
		FrameCount:             frames,
		UtteranceCount:         utts,
	}
}

// Mode returns the most frequent non-empty value. Ties go to the value seen
// first. def is returned when vals holds no non-empty value.
func Mode(vals []string, def string) string {
	counts := map[string]int{}
	var order []string
	for _, v := range vals {
		if v == "" {
			continue
		}
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}
	best, bestN := def, 0
	for _, v := range order {
		if counts[v] > bestN {
			best, bestN = v, counts[v]
		}
	}
	return best
}

// Mean is the arithmetic mean rounded half away from zero; 0 when empty.
func Mean(vals []int) int {
	if len(vals) == 0 {
		return 0
	}
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return int(math.Round(float64(sum) / float64(len(vals))))
}

// Percent is round(100 * true / total); 0 when empty.
func Percent(vals []bool) int {
	if len(vals) == 0 {
		return 0
	}
	n := 0
	for _, v := range vals {
		if v {
			n++
		}
	}
	return ratio(n, len(vals))
}

// NegativePercent counts observations classified negative: a negative facial
// expression on frames, a negative sentiment on utterances.
func NegativePercent(obs []observation.Observation) int {
	if len(obs) == 0 {
		return 0
	}
	n := 0
	for _, o := range obs {
		if IsNegative(o) {
			n++
		}
	}
	return ratio(n, len(obs))
}

func IsNegative(o observation.Observation) bool {
	switch o.Source {
	case observation.SourceFrame:
		return NegativeExpressions[o.Expression]
	case observation.SourceSpeech:
		return o.Sentiment == "negative"
	}
	return false
}

func ratio(n, total int) int {
	return int(math.Round(100 * float64(n) / float64(total)))
}
