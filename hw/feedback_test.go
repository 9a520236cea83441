package hw

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestFeedbackKind_Tune(t *testing.T) {
	seen := map[int]FeedbackKind{}
	for _, k := range []FeedbackKind{
		FeedbackReady, FeedbackPairing, FeedbackPaired,
		FeedbackTimeout, FeedbackAccessPointOn, FeedbackAccessPointOff,
	} {
		tune := k.Tune()
		if tune < 0 {
			t.Errorf("Expected a tune for %s", k)
		}
		if other, dup := seen[tune]; dup {
			t.Errorf("Expected distinct tunes, %s and %s share %d", k, other, tune)
		}
		seen[tune] = k
	}
	if FeedbackKind("buzz").Tune() != -1 {
		t.Error("Expected -1 for unknown cue")
	}
}

func TestFeedbackFunc(t *testing.T) {
	var got []FeedbackKind
	var f Feedback = FeedbackFunc(func(k FeedbackKind) { got = append(got, k) })
	f.Notify(FeedbackPaired)
	if len(got) != 1 || got[0] != FeedbackPaired {
		t.Errorf("Expected [paired], got %v", got)
	}
}

func TestLogFeedback(t *testing.T) {
	var buf bytes.Buffer
	f := LogFeedback{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	f.Notify(FeedbackTimeout)
	if !strings.Contains(buf.String(), "cue=timeout") || !strings.Contains(buf.String(), "tune=5") {
		t.Errorf("Unexpected log output: %q", buf.String())
	}
}
