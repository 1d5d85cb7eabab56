package rdx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"shopapi/mailer"

	"github.com/redis/go-redis/v9"
)

const (
	verifiedPrefix = "reset:verified:"
	mailFailureKey = "mail:failed"
	mailFailureCap = 200
)

func Connect(ctx context.Context, addr, password string) (*redis.Client, error) {
	conn := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	log.Printf("✅ Connected to Redis at %s", addr)
	return conn, nil
}

// Verifications records which emails passed reset-code verification.
// Each mark is short lived and can be consumed once.
type Verifications struct {
	Conn *redis.Client
	TTL  time.Duration
}

func (v *Verifications) MarkVerified(ctx context.Context, email string) error {
	return v.Conn.Set(ctx, verifiedPrefix+email, "1", v.TTL).Err()
}

func (v *Verifications) ConsumeVerified(ctx context.Context, email string) (bool, error) {
	_, err := v.Conn.GetDel(ctx, verifiedPrefix+email).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MailFailures is a capped Redis list of undelivered mail, newest first.
type MailFailures struct {
	Conn *redis.Client
}

func (m *MailFailures) RecordFailure(ctx context.Context, f mailer.Failure) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	pipe := m.Conn.TxPipeline()
	pipe.LPush(ctx, mailFailureKey, data)
	pipe.LTrim(ctx, mailFailureKey, 0, mailFailureCap-1)
	_, err = pipe.Exec(ctx)
	return err
}

func (m *MailFailures) RecentFailures(ctx context.Context, n int) ([]mailer.Failure, error) {
	if n <= 0 {
		n = mailFailureCap
	}
	raw, err := m.Conn.LRange(ctx, mailFailureKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]mailer.Failure, 0, len(raw))
	for _, item := range raw {
		var f mailer.Failure
		if err := json.Unmarshal([]byte(item), &f); err != nil {
			log.Println("mail failure decode error:", err)
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

// LocalVerifications is the in-process stand-in for Verifications when no Redis is configured.
type LocalVerifications struct {
	TTL time.Duration

	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

func NewLocalVerifications(ttl time.Duration) *LocalVerifications {
	return &LocalVerifications{TTL: ttl, expires: map[string]time.Time{}, now: time.Now}
}

func (l *LocalVerifications) MarkVerified(_ context.Context, email string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expires[email] = l.now().Add(l.TTL)
	return nil
}

func (l *LocalVerifications) ConsumeVerified(_ context.Context, email string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	exp, ok := l.expires[email]
	delete(l.expires, email)
	return ok && l.now().Before(exp), nil
}
