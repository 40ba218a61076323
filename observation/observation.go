package observation

import "sync"

// Source tells which capture produced an observation.
type Source string

const (
	SourceFrame  Source = "frame"
	SourceSpeech Source = "speech"
)

// Observation is one sample of the session. Frame observations carry the
// facial attributes, speech observations carry sentiment and text. An empty
// string marks an absent field.
type Observation struct {
	Source     Source `json:"source"`
	Gender     string `json:"gender,omitempty"`
	Age        int    `json:"age,omitempty"`
	Expression string `json:"expression,omitempty"`
	Smiling    bool   `json:"smiling"`
	Sentiment  string `json:"sentiment,omitempty"`
	Text       string `json:"text,omitempty"`
	Offset     int    `json:"offset"` // sec since session start
}

// Log is the append-only observation sequence of one session.
type Log struct {
	mu  sync.Mutex
	obs []Observation
}

func NewLog() *Log { return &Log{} }

// Append adds o at the end. No deduplication, no capacity bound.
func (l *Log) Append(o Observation) {
	l.mu.Lock()
	l.obs = append(l.obs, o)
	l.mu.Unlock()
}

// Snapshot returns a copy of the log in arrival order.
func (l *Log) Snapshot() []Observation {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Observation, len(l.obs))
	copy(out, l.obs)
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.obs)
}

// Reset drops every observation. Only called at session start.
func (l *Log) Reset() {
	l.mu.Lock()
	l.obs = nil
	l.mu.Unlock()
}
