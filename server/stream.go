package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/maastricht-university/interview-pipeline/orchestrator"
)

const (
	timerInterval = time.Second
	writeWait     = 5 * time.Second
)

// stream upgrades to a websocket carrying both directions of a live
// session. Binary messages from the client are frames, text messages are
// utterance JSON. The server pushes observation events, a timer event every
// second while capturing, and a final ended event before closing.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the client
		s.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	log := s.log.WithField("session_id", sess.ID())
	log.Debug("stream opened")

	events, unsubscribe := sess.Subscribe()
	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writeEvents(conn, sess, events, done)
		stop()
		_ = conn.Close() // unblocks readStream
	}()

	s.readStream(conn, sess, done)
	stop()
	unsubscribe()
	wg.Wait()
	log.Debug("stream closed")
}

func (s *Server) readStream(conn *websocket.Conn, sess *orchestrator.Session, done <-chan struct{}) {
	conn.SetReadLimit(s.cfg.MaxFrameBytes)
	sink, sinkErr := sinkOf(sess)
	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case <-done:
			return
		default:
		}
		switch kind {
		case websocket.BinaryMessage:
			if sinkErr != nil {
				continue
			}
			if err := sink.PushFrame(msg); err != nil {
				s.log.WithError(err).Debug("stream frame rejected")
			}
		case websocket.TextMessage:
			var u orchestrator.Utterance
			if err := json.Unmarshal(msg, &u); err != nil {
				s.log.WithError(err).Debug("stream utterance undecodable")
				continue
			}
			sess.HandleUtterance(u)
		}
	}
}

// writeEvents is the only writer on conn.
func (s *Server) writeEvents(conn *websocket.Conn, sess *orchestrator.Session, events <-chan orchestrator.Event, done <-chan struct{}) {
	t := time.NewTicker(timerInterval)
	defer t.Stop()

	send := func(e orchestrator.Event) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(e) == nil
	}

	for {
		select {
		case <-done:
			return
		case e, ok := <-events:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
				return
			}
			if !send(e) {
				return
			}
		case <-t.C:
			st := sess.Status()
			if st.State != orchestrator.StateCapturing {
				continue
			}
			if !send(orchestrator.Event{Type: orchestrator.EventTimer, SessionID: st.ID, Elapsed: st.Elapsed}) {
				return
			}
		}
	}
}
