package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestMarkOnceFiltersReplays(t *testing.T) {
	server := miniredis.RunT(t)
	guard := NewGuard(server.Addr(), "storefront")

	ctx := context.Background()

	first, err := guard.MarkOnce(ctx, "webhook", "IC_ORD-1_1", time.Hour)
	if err != nil {
		t.Fatalf("MarkOnce returned error: %v", err)
	}
	if !first {
		t.Fatal("expected first delivery to pass")
	}

	replay, err := guard.MarkOnce(ctx, "webhook", "IC_ORD-1_1", time.Hour)
	if err != nil {
		t.Fatalf("MarkOnce returned error: %v", err)
	}
	if replay {
		t.Fatal("expected replayed delivery to be filtered")
	}
}

func TestMarkOnceSeparatesOperations(t *testing.T) {
	server := miniredis.RunT(t)
	guard := NewGuard(server.Addr(), "storefront")

	ctx := context.Background()

	if first, _ := guard.MarkOnce(ctx, "webhook", "ref", time.Hour); !first {
		t.Fatal("expected first webhook mark to pass")
	}
	if first, _ := guard.MarkOnce(ctx, "confirm", "ref", time.Hour); !first {
		t.Fatal("expected a different operation with the same key to pass")
	}
}

func TestMarkOnceExpires(t *testing.T) {
	server := miniredis.RunT(t)
	guard := NewGuard(server.Addr(), "storefront")

	ctx := context.Background()

	if first, _ := guard.MarkOnce(ctx, "webhook", "ref", time.Minute); !first {
		t.Fatal("expected first mark to pass")
	}

	server.FastForward(2 * time.Minute)

	if first, _ := guard.MarkOnce(ctx, "webhook", "ref", time.Minute); !first {
		t.Fatal("expected mark to pass again after ttl expiry")
	}
}

func TestSeenIsReadOnly(t *testing.T) {
	server := miniredis.RunT(t)
	guard := NewGuard(server.Addr(), "storefront")

	ctx := context.Background()

	if seen, err := guard.Seen(ctx, "webhook", "ref"); err != nil || seen {
		t.Fatalf("unmarked key should not be seen (seen=%v, err=%v)", seen, err)
	}
	if first, _ := guard.MarkOnce(ctx, "webhook", "ref", time.Hour); !first {
		t.Fatal("Seen must not consume the first mark")
	}
	if seen, _ := guard.Seen(ctx, "webhook", "ref"); !seen {
		t.Fatal("marked key should be seen")
	}
}

func TestMarkOnceWithoutRedisAlwaysPasses(t *testing.T) {
	guard := NewGuard("", "storefront")

	first, err := guard.MarkOnce(context.Background(), "webhook", "ref", time.Hour)
	if err != nil {
		t.Fatalf("MarkOnce returned error: %v", err)
	}
	if !first {
		t.Fatal("expected guard without redis to pass everything through")
	}
}
