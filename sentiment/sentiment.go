package sentiment

import (
	"regexp"
	"strings"
	"sync/atomic"
)

const (
	Positive = "positive"
	Negative = "negative"
	Neutral  = "neutral"
)

var (
	DefaultPositive = []string{
		"good", "great", "excellent", "happy", "love", "enjoy",
		"excited", "passionate", "confident", "proud", "success", "motivated",
	}
	DefaultNegative = []string{
		"bad", "terrible", "hate", "difficult", "problem", "fail",
		"failed", "angry", "sad", "worried", "boring", "stress",
	}
)

var reWord = regexp.MustCompile(`[\p{L}\p{N}']+`)

type lexicon struct {
	pos, neg map[string]bool
}

func newLexicon(pos, neg []string) *lexicon {
	lx := &lexicon{pos: map[string]bool{}, neg: map[string]bool{}}
	for _, w := range pos {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			lx.pos[w] = true
		}
	}
	for _, w := range neg {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			lx.neg[w] = true
		}
	}
	return lx
}

// Classifier scores utterances by counting whole-word keyword hits,
// case-insensitively. Keyword lists can be swapped while in use.
type Classifier struct {
	lx atomic.Pointer[lexicon]
}

// New builds a classifier. Empty lists fall back to the defaults.
func New(pos, neg []string) *Classifier {
	c := &Classifier{}
	c.SetKeywords(pos, neg)
	return c
}

func (c *Classifier) SetKeywords(pos, neg []string) {
	if len(pos) == 0 {
		pos = DefaultPositive
	}
	if len(neg) == 0 {
		neg = DefaultNegative
	}
	c.lx.Store(newLexicon(pos, neg))
}

// Counts returns the positive and negative keyword hits in text.
func (c *Classifier) Counts(text string) (pos, neg int) {
	lx := c.lx.Load()
	for _, w := range reWord.FindAllString(strings.ToLower(text), -1) {
		if lx.pos[w] {
			pos++
		}
		if lx.neg[w] {
			neg++
		}
	}
	return pos, neg
}

func (c *Classifier) Classify(text string) string {
	pos, neg := c.Counts(text)
	switch {
	case pos > neg:
		return Positive
	case neg > pos:
		return Negative
	}
	return Neutral
}
