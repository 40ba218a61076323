package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maastricht-university/interview-pipeline/aggregate"
	"github.com/maastricht-university/interview-pipeline/decision"
	"github.com/maastricht-university/interview-pipeline/extractor"
	"github.com/maastricht-university/interview-pipeline/media"
	"github.com/maastricht-university/interview-pipeline/observation"
	"github.com/maastricht-university/interview-pipeline/results"
)

// countingSource wraps a PushSource and counts stream releases.
type countingSource struct {
	*media.PushSource
	closes atomic.Int32
}

type countingStream struct {
	media.Stream
	src *countingSource
}

func (c *countingSource) Acquire(ctx context.Context) (media.Stream, error) {
	st, err := c.PushSource.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &countingStream{Stream: st, src: c}, nil
}

func (c *countingStream) Close() error {
	c.src.closes.Add(1)
	return c.Stream.Close()
}

func smilingMale(context.Context, []byte) (extractor.Attributes, error) {
	return extractor.Attributes{
		Gender:      "male",
		Age:         30,
		Expressions: map[string]float64{"happy": 0.9, "neutral": 0.1},
		Smile:       0.9,
	}, nil
}

func newTestSession(t *testing.T, ex extractor.Extractor) (*Session, *countingSource, results.Store) {
	t.Helper()
	src := &countingSource{PushSource: media.NewPushSource()}
	store := results.NewMemoryStore()
	s := NewSession("s-1", Deps{
		Source:    src,
		Extractor: ex,
		Store:     store,
		Interval:  5 * time.Millisecond,
	})
	return s, src, store
}

func TestSessionLifecycle(t *testing.T) {
	s, src, store := newTestSession(t, extractor.Func(smilingMale))
	assert.Equal(t, StateIdle, s.State())

	require.NoError(t, s.Start(t.Context()))
	assert.Equal(t, StateCapturing, s.State())
	require.NoError(t, src.PushFrame([]byte("jpeg")))

	require.Eventually(t, func() bool { return len(s.Observations()) >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, s.HandleUtterance(Utterance{Text: "I love solving problems with great people", Final: true}))

	rec, err := s.End(t.Context())
	require.NoError(t, err)
	assert.Equal(t, StateEnded, s.State())
	assert.Equal(t, "s-1", rec.SessionID)
	assert.Equal(t, "male", rec.Summary.DominantGender)
	assert.Equal(t, 30, rec.Summary.AverageAge)
	assert.Equal(t, 100, rec.Summary.SmilePercent)
	assert.Equal(t, "happy", rec.Summary.DominantExpression)
	assert.Equal(t, "positive", rec.Summary.DominantSentiment)
	assert.Equal(t, 1, rec.Summary.UtteranceCount)
	assert.Equal(t, decision.Hired, rec.Decision.Outcome)

	stored, err := store.Load(t.Context(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, rec.Summary, stored.Summary)
	assert.Equal(t, rec.Decision, stored.Decision)
}

func TestEndIsIdempotent(t *testing.T) {
	s, src, _ := newTestSession(t, extractor.Func(smilingMale))
	require.NoError(t, s.Start(t.Context()))

	first, err := s.End(t.Context())
	require.NoError(t, err)
	second, err := s.End(t.Context())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), src.closes.Load(), "stream released once")
}

func TestConcurrentEnd(t *testing.T) {
	s, src, _ := newTestSession(t, extractor.Func(smilingMale))
	require.NoError(t, s.Start(t.Context()))

	var wg sync.WaitGroup
	recs := make([]results.Record, 4)
	for i := range recs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := s.End(t.Context())
			assert.NoError(t, err)
			recs[i] = r
		}()
	}
	wg.Wait()
	for _, r := range recs[1:] {
		assert.Equal(t, recs[0], r)
	}
	assert.Equal(t, int32(1), src.closes.Load())
}

// blockingStore holds Save until release is closed.
type blockingStore struct {
	results.Store
	saving  chan struct{}
	release chan struct{}
}

func (b *blockingStore) Save(ctx context.Context, r results.Record) error {
	close(b.saving)
	<-b.release
	return b.Store.Save(ctx, r)
}

func TestInputDuringEndIsRejected(t *testing.T) {
	store := &blockingStore{Store: results.NewMemoryStore(), saving: make(chan struct{}), release: make(chan struct{})}
	s := NewSession("sealed", Deps{Source: media.NewPushSource(), Store: store})
	require.NoError(t, s.Start(t.Context()))

	type endResult struct {
		rec results.Record
		err error
	}
	done := make(chan endResult, 1)
	go func() {
		rec, err := s.End(t.Context())
		done <- endResult{rec, err}
	}()

	<-store.saving
	assert.False(t, s.HandleUtterance(Utterance{Text: "I hate this terrible job", Final: true}))
	close(store.release)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, 0, res.rec.Summary.UtteranceCount)
	assert.Equal(t, len(s.Observations()), res.rec.Summary.FrameCount+res.rec.Summary.UtteranceCount,
		"log and summary agree")
}

func TestInvalidTransitions(t *testing.T) {
	s, _, _ := newTestSession(t, nil)

	_, err := s.End(t.Context())
	assert.ErrorIs(t, err, ErrInvalidState, "end before start")

	require.NoError(t, s.Start(t.Context()))
	assert.ErrorIs(t, s.Start(t.Context()), ErrInvalidState, "double start")

	_, err = s.End(t.Context())
	require.NoError(t, err)
	assert.ErrorIs(t, s.Start(t.Context()), ErrInvalidState, "no resume from ended")
}

func TestStartResourceUnavailable(t *testing.T) {
	s, src, _ := newTestSession(t, extractor.Func(smilingMale))
	src.Deny(media.ErrPermissionDenied)

	err := s.Start(t.Context())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResourceUnavailable)
	assert.ErrorIs(t, err, media.ErrPermissionDenied)
	assert.Equal(t, StateIdle, s.State())
}

func TestNoAnalysisModeUsesDefaults(t *testing.T) {
	s, src, _ := newTestSession(t, nil)
	require.NoError(t, s.Start(t.Context()))
	require.NoError(t, src.PushFrame([]byte("jpeg")))
	time.Sleep(20 * time.Millisecond)

	rec, err := s.End(t.Context())
	require.NoError(t, err)
	assert.Equal(t, aggregate.Summarize(nil), rec.Summary)
	assert.Equal(t, decision.Rejected, rec.Decision.Outcome)
	assert.False(t, s.Status().Analysis)
}

func TestExtractionFailuresDoNotStopSession(t *testing.T) {
	var calls atomic.Int32
	ex := extractor.Func(func(ctx context.Context, img []byte) (extractor.Attributes, error) {
		if calls.Add(1)%2 == 0 {
			return extractor.Attributes{}, errors.New("upstream 502")
		}
		return smilingMale(ctx, img)
	})
	s, src, _ := newTestSession(t, ex)
	require.NoError(t, s.Start(t.Context()))
	require.NoError(t, src.PushFrame([]byte("jpeg")))

	require.Eventually(t, func() bool { return len(s.Observations()) >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, StateCapturing, s.State())
	assert.Positive(t, s.SamplerStats().Dropped)
	_, err := s.End(t.Context())
	require.NoError(t, err)
}

func TestUtteranceFiltering(t *testing.T) {
	s, _, _ := newTestSession(t, nil)
	assert.False(t, s.HandleUtterance(Utterance{Text: "too early", Final: true}))

	require.NoError(t, s.Start(t.Context()))
	assert.False(t, s.HandleUtterance(Utterance{Text: "interim", Final: false}))
	assert.False(t, s.HandleUtterance(Utterance{Text: "   ", Final: true}))
	assert.True(t, s.HandleUtterance(Utterance{Text: "This was a terrible problem", Final: true}))
	assert.True(t, s.HandleUtterance(Utterance{Text: " Replayed.", Start: 12.7, Final: true}))

	obs := s.Observations()
	require.Len(t, obs, 2)
	assert.Equal(t, observation.SourceSpeech, obs[0].Source)
	assert.Equal(t, "negative", obs[0].Sentiment)
	assert.Equal(t, 12, obs[1].Offset)

	rec, err := s.End(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "This was a terrible problem Replayed.", rec.Summary.Transcript)
	assert.Equal(t, 50, rec.Summary.NegativeEmotionPercent)
	assert.False(t, s.HandleUtterance(Utterance{Text: "too late", Final: true}))
}

func TestStartClearsLog(t *testing.T) {
	s, _, _ := newTestSession(t, nil)
	s.obs.Append(observation.Observation{Source: observation.SourceFrame, Gender: "female"})
	require.NoError(t, s.Start(t.Context()))
	assert.Empty(t, s.Observations())
}

func TestElapsedAndStatus(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	s := NewSession("clock", Deps{Source: media.NewPushSource(), Now: clock})
	assert.Equal(t, "0:00", s.Status().Elapsed)

	require.NoError(t, s.Start(t.Context()))
	advance(75 * time.Second)
	st := s.Status()
	assert.Equal(t, "1:15", st.Elapsed)
	assert.Equal(t, 75, st.ElapsedSeconds)
	require.NotNil(t, st.StartedAt)

	_, err := s.End(t.Context())
	require.NoError(t, err)
	advance(time.Hour)
	assert.Equal(t, 75*time.Second, s.Elapsed(), "frozen after end")
}

func TestSubscribe(t *testing.T) {
	s, _, _ := newTestSession(t, nil)
	events, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.Start(t.Context()))
	s.HandleUtterance(Utterance{Text: "great", Final: true})
	_, err := s.End(t.Context())
	require.NoError(t, err)

	var got []EventType
	for e := range events {
		got = append(got, e.Type)
	}
	assert.Equal(t, []EventType{EventObservation, EventEnded}, got)

	late, cancelLate := s.Subscribe()
	defer cancelLate()
	_, open := <-late
	assert.False(t, open, "subscriptions after end are closed")
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "0:00", FormatElapsed(0))
	assert.Equal(t, "0:59", FormatElapsed(59*time.Second+900*time.Millisecond))
	assert.Equal(t, "2:05", FormatElapsed(125*time.Second))
	assert.Equal(t, "61:01", FormatElapsed(3661*time.Second))
	assert.Equal(t, "0:00", FormatElapsed(-time.Second))
}
