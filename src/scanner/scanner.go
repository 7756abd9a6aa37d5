package scanner

import (
	"image"
	"time"
)

type FeedbackStatus string

const (
	FEEDBACK_IDLE         FeedbackStatus = "idle"
	FEEDBACK_SCANNING     FeedbackStatus = "scanning"
	FEEDBACK_DETECTED     FeedbackStatus = "detected"
	FEEDBACK_TOO_FAR      FeedbackStatus = "too_far"
	FEEDBACK_TOO_CLOSE    FeedbackStatus = "too_close"
	FEEDBACK_BLURRY       FeedbackStatus = "blurry"
	FEEDBACK_LOW_CONTRAST FeedbackStatus = "low_contrast"
	FEEDBACK_PARTIAL      FeedbackStatus = "partial"
)

type ScanOutcome struct {
	Feedback FeedbackStatus
	Decoded  *string
}

// Tunable cut-offs for the per-frame heuristics.
const (
	// Below this luma spread the frame cannot be thresholded reliably.
	minContrast = 48
	// Mean gradient below this with workable contrast means defocus.
	minEdgeEnergy = 4.0
	// Finder modules smaller than this many pixels will not decode.
	minModulePx = 2.0
	// A finder pattern wider than a third of the frame's short side
	// means the code cannot fit.
	maxFinderFrac = 0.34
	// How close to the frame edge a finder may sit before the symbol
	// is considered clipped.
	edgeMarginPx = 2
)

// Engine turns a noisy frame stream into either a decoded payload or
// an explanation of why decoding failed. It holds the dedupe state
// that stops one physical code from being submitted twice while its
// network round trip is outstanding. It performs no I/O itself.
type Engine struct {
	dec      Decoder
	cooldown time.Duration
	now      func() time.Time

	lastPayload   string
	hasLast       bool
	cooldownUntil time.Time
}

func NewEngine(dec Decoder, cooldown time.Duration) *Engine {
	return &Engine{
		dec:      dec,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Reset clears the last-decoded fingerprint and the cooldown timer.
// Callers invoke it once the previous result has been shown and
// consumed; until then the same payload is never re-emitted.
func (e *Engine) Reset() {
	e.lastPayload = ""
	e.hasLast = false
	e.cooldownUntil = time.Time{}
}

// Scan analyzes a single frame. Pure function of the frame plus the
// engine's dedupe state; never blocks.
func (e *Engine) Scan(img image.Image) ScanOutcome {
	text, err := e.dec.Decode(img)
	if err == nil && text != "" {
		if e.hasLast && e.lastPayload == text {
			// Same code still in front of the camera; a result for it
			// is pending until Reset.
			return ScanOutcome{Feedback: FEEDBACK_DETECTED}
		}
		now := e.now()
		if now.Before(e.cooldownUntil) {
			return ScanOutcome{Feedback: FEEDBACK_DETECTED}
		}
		e.lastPayload = text
		e.hasLast = true
		e.cooldownUntil = now.Add(e.cooldown)
		decoded := text
		return ScanOutcome{Feedback: FEEDBACK_DETECTED, Decoded: &decoded}
	}

	return ScanOutcome{Feedback: e.classify(img)}
}

// classify explains a failed decode from the frame's signal quality.
func (e *Engine) classify(img image.Image) FeedbackStatus {
	plane := newLuma(img)
	if plane.w == 0 || plane.h == 0 {
		return FEEDBACK_SCANNING
	}

	lo, hi := plane.minMax()
	contrast := int(hi) - int(lo)
	if contrast < minContrast {
		return FEEDBACK_LOW_CONTRAST
	}

	threshold := uint8(int(lo) + contrast/2)
	candidates := plane.findFinderPatterns(threshold)
	if len(candidates) > 0 {
		minDim := plane.w
		if plane.h < minDim {
			minDim = plane.h
		}
		var largest finderCandidate
		for _, c := range candidates {
			if c.moduleSize > largest.moduleSize {
				largest = c
			}
		}
		width := float64(largest.endX - largest.startX)
		switch {
		case largest.startX <= edgeMarginPx || largest.endX >= plane.w-edgeMarginPx ||
			largest.y <= edgeMarginPx || largest.y >= plane.h-edgeMarginPx:
			return FEEDBACK_PARTIAL
		case largest.moduleSize < minModulePx:
			return FEEDBACK_TOO_FAR
		case width > maxFinderFrac*float64(minDim):
			return FEEDBACK_TOO_CLOSE
		}
	}

	if plane.edgeEnergy() < minEdgeEnergy {
		return FEEDBACK_BLURRY
	}
	return FEEDBACK_SCANNING
}
