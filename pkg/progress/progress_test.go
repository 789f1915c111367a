package progress

import (
	"testing"
	"time"
)

func TestHubFanOut(t *testing.T) {
	h := NewHub(4)
	id1, ch1 := h.Register()
	id2, ch2 := h.Register()
	defer h.Unregister(id1)
	defer h.Unregister(id2)

	h.Notify(Event{Phase: PhaseWaiting, RequestID: "abc", Attempt: 1})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case e := <-ch:
			if e.RequestID != "abc" || e.Phase != PhaseWaiting || e.Attempt != 1 {
				t.Fatalf("listener %d got %+v", i, e)
			}
			if e.Time.IsZero() {
				t.Fatalf("listener %d got zero timestamp", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("listener %d received nothing", i)
		}
	}
}

func TestHubDropsForSlowListener(t *testing.T) {
	h := NewHub(1)
	id, ch := h.Register()
	defer h.Unregister(id)

	h.Notify(Event{Phase: PhaseWaiting, Attempt: 1})
	h.Notify(Event{Phase: PhaseWaiting, Attempt: 2})

	e := <-ch
	if e.Attempt != 1 {
		t.Fatalf("expected first event to be kept, got attempt %d", e.Attempt)
	}
	select {
	case e := <-ch:
		t.Fatalf("expected second event to be dropped, got %+v", e)
	default:
	}
}

func TestHubUnregisterClosesChannel(t *testing.T) {
	h := NewHub(0)
	id, ch := h.Register()
	if h.Size() != 1 {
		t.Fatalf("Size = %d", h.Size())
	}
	h.Unregister(id)
	h.Unregister(id)
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	if h.Size() != 0 {
		t.Fatalf("Size = %d", h.Size())
	}
}

func TestNotifierFunc(t *testing.T) {
	var got []Phase
	var n Notifier = NotifierFunc(func(e Event) { got = append(got, e.Phase) })
	n.Notify(Event{Phase: PhaseSubmitted})
	n.Notify(Event{Phase: PhaseCompleted})
	if len(got) != 2 || got[1] != PhaseCompleted {
		t.Fatalf("got %v", got)
	}
	Discard.Notify(Event{})
}
