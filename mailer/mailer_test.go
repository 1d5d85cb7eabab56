package mailer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
	fail map[string]bool
}

func (r *recordingSender) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[msg.To] {
		return errors.New("mailbox unavailable")
	}
	r.sent = append(r.sent, msg)
	return nil
}

func TestDispatcherDeliversAndRecordsFailures(t *testing.T) {
	sender := &recordingSender{fail: map[string]bool{"bad@x.com": true}}
	failures := NewMemoryFailures(10)
	d := NewDispatcher(sender, failures, 8)
	d.Start()

	if err := d.Enqueue(Message{To: "ann@x.com", Subject: "Reset Password"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := d.Enqueue(Message{To: "bad@x.com", Subject: "Reset Password"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if len(sender.sent) != 1 || sender.sent[0].To != "ann@x.com" {
		t.Fatalf("unexpected deliveries %+v", sender.sent)
	}
	got, _ := failures.RecentFailures(context.Background(), 0)
	if len(got) != 1 || got[0].To != "bad@x.com" || got[0].Error != "mailbox unavailable" {
		t.Fatalf("unexpected failures %+v", got)
	}
}

func TestEnqueueAfterStop(t *testing.T) {
	failures := NewMemoryFailures(10)
	d := NewDispatcher(&recordingSender{}, failures, 1)
	d.Start()
	_ = d.Stop(context.Background())

	if err := d.Enqueue(Message{To: "ann@x.com"}); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if got, _ := failures.RecentFailures(context.Background(), 5); len(got) != 1 {
		t.Fatalf("expected the rejected message to be recorded, got %d", len(got))
	}
}

func TestEnqueueFullQueue(t *testing.T) {
	failures := NewMemoryFailures(10)
	// Not started, so nothing drains the single slot.
	d := NewDispatcher(&recordingSender{}, failures, 1)

	if err := d.Enqueue(Message{To: "a@x.com"}); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := d.Enqueue(Message{To: "b@x.com"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestMemoryFailuresLimit(t *testing.T) {
	m := NewMemoryFailures(2)
	for _, to := range []string{"a", "b", "c"} {
		_ = m.RecordFailure(context.Background(), Failure{To: to})
	}
	got, _ := m.RecentFailures(context.Background(), 10)
	if len(got) != 2 || got[0].To != "c" || got[1].To != "b" {
		t.Fatalf("expected newest two, got %+v", got)
	}
}

// stallingFailures blocks the first RecordFailure until release is closed.
type stallingFailures struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
	*MemoryFailures
}

func (s *stallingFailures) RecordFailure(ctx context.Context, f Failure) error {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		<-s.release
	}
	return s.MemoryFailures.RecordFailure(ctx, f)
}

func TestSlowFailureLogDoesNotBlockOtherEnqueues(t *testing.T) {
	failures := &stallingFailures{
		entered:        make(chan struct{}),
		release:        make(chan struct{}),
		MemoryFailures: NewMemoryFailures(10),
	}
	d := NewDispatcher(&recordingSender{}, failures, 1)
	if err := d.Enqueue(Message{To: "a@x.com"}); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}

	stalled := make(chan error, 1)
	go func() { stalled <- d.Enqueue(Message{To: "b@x.com"}) }()
	<-failures.entered

	done := make(chan error, 1)
	go func() { done <- d.Enqueue(Message{To: "c@x.com"}) }()
	select {
	case err := <-done:
		if !errors.Is(err, ErrQueueFull) {
			t.Fatalf("expected ErrQueueFull, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked behind a slow failure log")
	}

	close(failures.release)
	if err := <-stalled; !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if got, _ := failures.RecentFailures(context.Background(), 0); len(got) != 2 {
		t.Fatalf("expected both rejections recorded, got %d", len(got))
	}
}
