package hw

import (
	"testing"
	"time"
)

func testButton() *Button {
	return NewButton(ButtonConfig{
		ClickMax:          50 * time.Millisecond,
		DoubleClickWindow: 300 * time.Millisecond,
		HoldThreshold:     200 * time.Millisecond,
	})
}

func expectGesture(t *testing.T, b *Button, want Gesture) {
	t.Helper()
	select {
	case g := <-b.Gestures():
		if g != want {
			t.Errorf("Expected %s, got %s", want, g)
		}
	case <-time.After(time.Second):
		t.Fatalf("Expected %s, got nothing", want)
	}
}

func expectNoGesture(t *testing.T, b *Button, wait time.Duration) {
	t.Helper()
	select {
	case g := <-b.Gestures():
		t.Errorf("Expected no gesture, got %s", g)
	case <-time.After(wait):
	}
}

func TestButton_Click(t *testing.T) {
	b := testButton()
	b.Press()
	b.Release()
	expectGesture(t, b, GestureClick)
	expectNoGesture(t, b, 300*time.Millisecond)
}

func TestButton_LongPress(t *testing.T) {
	b := testButton()
	b.Press()
	expectGesture(t, b, GestureLongPress)
	b.Release()
	expectNoGesture(t, b, 100*time.Millisecond)
}

func TestButton_ClickThenHoldPairs(t *testing.T) {
	b := testButton()
	b.Press()
	b.Release()
	expectGesture(t, b, GestureClick)

	b.Press()
	expectGesture(t, b, GesturePair)
	b.Release()
}

func TestButton_DoubleClickThenHoldToggles(t *testing.T) {
	b := testButton()
	for i := 0; i < 2; i++ {
		b.Press()
		b.Release()
		expectGesture(t, b, GestureClick)
	}

	b.Press()
	expectGesture(t, b, GestureHold)
	b.Release()
}

func TestButton_SlowReleaseIsNotAClick(t *testing.T) {
	b := testButton()
	b.Press()
	time.Sleep(100 * time.Millisecond)
	b.Release()
	expectNoGesture(t, b, 300*time.Millisecond)
}

func TestButton_ClickWindowExpires(t *testing.T) {
	b := testButton()
	b.Press()
	b.Release()
	expectGesture(t, b, GestureClick)

	time.Sleep(400 * time.Millisecond)
	b.Press()
	expectGesture(t, b, GestureLongPress)
	b.Release()
}

func TestButton_RepeatedEdgesIgnored(t *testing.T) {
	b := testButton()
	b.Release()
	b.Press()
	b.Press()
	b.Release()
	b.Release()
	expectGesture(t, b, GestureClick)
	expectNoGesture(t, b, 100*time.Millisecond)
}

func TestGesture_String(t *testing.T) {
	cases := map[Gesture]string{
		GestureClick:     "click",
		GesturePair:      "pair",
		GestureHold:      "hold",
		GestureLongPress: "long-press",
		Gesture(0):       "unknown",
	}
	for g, want := range cases {
		if g.String() != want {
			t.Errorf("Expected %q, got %q", want, g.String())
		}
	}
}
