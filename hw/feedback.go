package hw

import "log/slog"

type FeedbackKind string

const (
	FeedbackReady          FeedbackKind = "ready"
	FeedbackPairing        FeedbackKind = "pairing"
	FeedbackPaired         FeedbackKind = "paired"
	FeedbackTimeout        FeedbackKind = "timeout"
	FeedbackAccessPointOn  FeedbackKind = "ap-on"
	FeedbackAccessPointOff FeedbackKind = "ap-off"
)

// Tune is the buzzer melody index the firmware plays for each cue.
func (k FeedbackKind) Tune() int {
	switch k {
	case FeedbackReady:
		return 0
	case FeedbackAccessPointOff:
		return 1
	case FeedbackPaired:
		return 2
	case FeedbackAccessPointOn:
		return 3
	case FeedbackPairing:
		return 4
	case FeedbackTimeout:
		return 5
	default:
		return -1
	}
}

// Feedback plays user-visible cues. Notify must not block.
type Feedback interface {
	Notify(kind FeedbackKind)
}

type FeedbackFunc func(kind FeedbackKind)

func (f FeedbackFunc) Notify(kind FeedbackKind) {
	f(kind)
}

// LogFeedback stands in for the buzzer and pixels on hosts without them.
type LogFeedback struct {
	Logger *slog.Logger
}

func (f LogFeedback) Notify(kind FeedbackKind) {
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Feedback", "cue", string(kind), "tune", kind.Tune())
}
