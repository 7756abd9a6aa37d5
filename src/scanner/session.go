package scanner

import (
	"context"
	"image"
	"log"
	"sync/atomic"
	"time"
)

// FrameSource abstracts the capture device: a camera driver, a video
// file, or a test fixture.
type FrameSource interface {
	NextFrame() (image.Image, error)
}

// SubmitFunc sends one decoded payload to the verifier. It may block
// on the network; the session calls it off the frame loop.
type SubmitFunc func(payload string)

// FeedbackFunc receives the per-frame status for the operator preview.
type FeedbackFunc func(status FeedbackStatus)

// Session drives an Engine at a fixed frame rate. While a submission
// is in flight the loop keeps scanning and reporting feedback so the
// preview never freezes, but no second submission starts.
type Session struct {
	engine   *Engine
	source   FrameSource
	submit   SubmitFunc
	onStatus FeedbackFunc
	interval time.Duration

	inFlight atomic.Bool
}

func NewSession(engine *Engine, source FrameSource, interval time.Duration, submit SubmitFunc, onStatus FeedbackFunc) *Session {
	return &Session{
		engine:   engine,
		source:   source,
		submit:   submit,
		onStatus: onStatus,
		interval: interval,
	}
}

// Done signals that the previous result has been displayed and the
// engine may emit again.
func (s *Session) Done() {
	s.engine.Reset()
	s.inFlight.Store(false)
}

// Run polls frames until the context is cancelled.
func (s *Session) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame, err := s.source.NextFrame()
			if err != nil {
				log.Printf("Error reading frame: %s\n", err.Error())
				continue
			}
			outcome := s.engine.Scan(frame)
			if s.onStatus != nil {
				s.onStatus(outcome.Feedback)
			}
			if outcome.Decoded == nil {
				continue
			}
			// Processing guard: one submission at a time per session.
			if !s.inFlight.CompareAndSwap(false, true) {
				continue
			}
			payload := *outcome.Decoded
			go s.submit(payload)
		}
	}
}
