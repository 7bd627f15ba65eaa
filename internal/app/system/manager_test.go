package system

import (
	"context"
	"errors"
	"testing"
)

type fakeService struct {
	name     string
	startErr error
	stopErr  error
	events   *[]string
}

func (s *fakeService) Name() string { return s.name }

func (s *fakeService) Start(context.Context) error {
	*s.events = append(*s.events, "start "+s.name)
	return s.startErr
}

func (s *fakeService) Stop(context.Context) error {
	*s.events = append(*s.events, "stop "+s.name)
	return s.stopErr
}

func TestManager_StartStopOrder(t *testing.T) {
	var events []string
	m := NewManager()
	for _, name := range []string{"a", "b", "c"} {
		if err := m.Register(&fakeService{name: name, events: &events}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	want := []string{"start a", "start b", "start c", "stop c", "stop b", "stop a"}
	if len(events) != len(want) {
		t.Fatalf("events %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event %d = %q, want %q", i, events[i], want[i])
		}
	}
}

func TestManager_StartFailureRollsBack(t *testing.T) {
	var events []string
	m := NewManager()
	_ = m.Register(&fakeService{name: "a", events: &events})
	_ = m.Register(&fakeService{name: "b", startErr: errors.New("boom"), events: &events})
	_ = m.Register(&fakeService{name: "c", events: &events})

	if err := m.Start(context.Background()); err == nil {
		t.Fatalf("expected start failure")
	}

	want := []string{"start a", "start b", "stop a"}
	if len(events) != len(want) {
		t.Fatalf("events %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event %d = %q, want %q", i, events[i], want[i])
		}
	}
}

func TestManager_RejectsDuplicatesAndLateRegistration(t *testing.T) {
	var events []string
	m := NewManager()

	if err := m.Register(&fakeService{name: "a", events: &events}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register(&fakeService{name: "a", events: &events}); err == nil {
		t.Fatalf("expected duplicate rejection")
	}
	if err := m.Register(nil); err == nil {
		t.Fatalf("expected nil rejection")
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Register(&fakeService{name: "late", events: &events}); err == nil {
		t.Fatalf("expected late registration rejection")
	}
}

func TestManager_StopCollectsFirstError(t *testing.T) {
	var events []string
	m := NewManager()
	_ = m.Register(&fakeService{name: "a", stopErr: errors.New("a failed"), events: &events})
	_ = m.Register(&fakeService{name: "b", stopErr: errors.New("b failed"), events: &events})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	err := m.Stop(context.Background())
	if err == nil {
		t.Fatalf("expected stop error")
	}
	// b stops first but every stop still runs.
	if len(events) != 4 {
		t.Fatalf("events %v", events)
	}
}
