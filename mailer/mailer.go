package mailer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/smtp"
	"sync"
	"time"
)

var (
	ErrQueueFull = errors.New("mail queue is full")
	ErrStopped   = errors.New("dispatcher stopped")
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Failure is one message that could not be handed to the mail server.
type Failure struct {
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Error   string    `json:"error"`
	At      time.Time `json:"at"`
}

type FailureLog interface {
	RecordFailure(ctx context.Context, f Failure) error
	RecentFailures(ctx context.Context, n int) ([]Failure, error)
}

// SMTPSender delivers HTML mail with PLAIN auth.
type SMTPSender struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

func (s SMTPSender) Send(_ context.Context, msg Message) error {
	header := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n",
		s.From, msg.To, msg.Subject)

	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Password, s.Host)
	}
	return smtp.SendMail(s.Host+":"+s.Port, auth, s.From, []string{msg.To}, []byte(header+msg.Body))
}

// LogSender writes mail to the log instead of sending it. Used when no SMTP host is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	log.Printf("[mail] to=%s subject=%q body=%q", msg.To, msg.Subject, msg.Body)
	return nil
}

// Dispatcher sends queued mail on a background worker. Send failures are
// logged and kept in the failure log so they can be inspected later.
type Dispatcher struct {
	sender   Sender
	failures FailureLog
	timeout  time.Duration

	mu     sync.Mutex
	closed bool
	queue  chan Message
	done   chan struct{}
}

func NewDispatcher(sender Sender, failures FailureLog, buffer int) *Dispatcher {
	return &Dispatcher{
		sender:   sender,
		failures: failures,
		timeout:  30 * time.Second,
		queue:    make(chan Message, buffer),
		done:     make(chan struct{}),
	}
}

func (d *Dispatcher) Start() {
	go func() {
		defer close(d.done)
		for msg := range d.queue {
			d.deliver(msg)
		}
	}()
}

// Enqueue never blocks on the queue. A full or stopped queue is recorded as a
// failure and returned.
func (d *Dispatcher) Enqueue(msg Message) error {
	err := d.push(msg)
	if err != nil {
		d.record(msg, err)
	}
	return err
}

func (d *Dispatcher) push(msg Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrStopped
	}
	select {
	case d.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for queued mail to drain or ctx to end.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sender.Send(ctx, msg); err != nil {
		d.record(msg, err)
	}
}

func (d *Dispatcher) record(msg Message, err error) {
	log.Printf("[mail] delivery to %s failed: %v", msg.To, err)
	if d.failures == nil {
		return
	}
	f := Failure{To: msg.To, Subject: msg.Subject, Error: err.Error(), At: time.Now()}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if rerr := d.failures.RecordFailure(ctx, f); rerr != nil {
		log.Printf("[mail] could not record failure: %v", rerr)
	}
}

// MemoryFailures keeps the most recent failures in process memory.
type MemoryFailures struct {
	mu    sync.Mutex
	limit int
	items []Failure
}

func NewMemoryFailures(limit int) *MemoryFailures {
	return &MemoryFailures{limit: limit}
}

func (m *MemoryFailures) RecordFailure(_ context.Context, f Failure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append([]Failure{f}, m.items...)
	if len(m.items) > m.limit {
		m.items = m.items[:m.limit]
	}
	return nil
}

func (m *MemoryFailures) RecentFailures(_ context.Context, n int) ([]Failure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= 0 || n > len(m.items) {
		n = len(m.items)
	}
	return append([]Failure{}, m.items[:n]...), nil
}
