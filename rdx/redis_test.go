package rdx

import (
	"context"
	"testing"
	"time"
)

func TestLocalVerificationsSingleUse(t *testing.T) {
	ctx := context.Background()
	v := NewLocalVerifications(time.Minute)

	if ok, _ := v.ConsumeVerified(ctx, "ann@x.com"); ok {
		t.Fatal("nothing marked yet")
	}
	_ = v.MarkVerified(ctx, "ann@x.com")
	if ok, _ := v.ConsumeVerified(ctx, "ann@x.com"); !ok {
		t.Fatal("expected verified mark")
	}
	if ok, _ := v.ConsumeVerified(ctx, "ann@x.com"); ok {
		t.Fatal("mark must be consumed on first use")
	}
}

func TestLocalVerificationsExpire(t *testing.T) {
	ctx := context.Background()
	v := NewLocalVerifications(time.Minute)
	now := time.Now()
	v.now = func() time.Time { return now }

	_ = v.MarkVerified(ctx, "ann@x.com")
	now = now.Add(2 * time.Minute)

	if ok, _ := v.ConsumeVerified(ctx, "ann@x.com"); ok {
		t.Fatal("expired mark must not verify")
	}
}
