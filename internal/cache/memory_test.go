package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemory_SetGet(t *testing.T) {
	m := NewMemory(time.Minute)
	defer m.Close()
	ctx := context.Background()

	m.Set(ctx, "k", []byte("v"), time.Minute)
	got, ok := m.Get(ctx, "k")
	if !ok || string(got) != "v" {
		t.Fatalf("got %q ok=%v, want v", got, ok)
	}

	if _, ok := m.Get(ctx, "absent"); ok {
		t.Error("absent key must miss")
	}
}

func TestMemory_ExpiryIsLazy(t *testing.T) {
	// Sweep interval far in the future: expiry must still be honored on read.
	m := NewMemory(time.Hour)
	defer m.Close()
	ctx := context.Background()

	m.Set(ctx, "short", []byte("x"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, ok := m.Get(ctx, "short"); ok {
		t.Error("expired entry must not be served")
	}
	if m.Len() != 0 {
		t.Errorf("expired entry still counted, len=%d", m.Len())
	}
}

func TestMemory_NonPositiveTTLIsRejected(t *testing.T) {
	m := NewMemory(time.Minute)
	defer m.Close()
	ctx := context.Background()

	m.Set(ctx, "k", []byte("v"), 0)
	if _, ok := m.Get(ctx, "k"); ok {
		t.Error("zero ttl must not store")
	}
	m.Set(ctx, "k", []byte("v"), -time.Second)
	if _, ok := m.Get(ctx, "k"); ok {
		t.Error("negative ttl must not store")
	}
}

func TestMemory_Delete(t *testing.T) {
	m := NewMemory(time.Minute)
	defer m.Close()
	ctx := context.Background()

	m.Set(ctx, "k", []byte("v"), time.Minute)
	m.Delete(ctx, "k")
	if _, ok := m.Get(ctx, "k"); ok {
		t.Error("deleted key must miss")
	}
	// Deleting a missing key is a no-op.
	m.Delete(ctx, "k")
}

func TestMemory_DeletePattern(t *testing.T) {
	m := NewMemory(time.Minute)
	defer m.Close()
	ctx := context.Background()

	keys := []string{
		"user:1:flags",
		"user:2:flags",
		"user:1:overrides",
		"flag:9",
		"org:3:flags",
	}
	for _, k := range keys {
		m.Set(ctx, k, []byte("v"), time.Minute)
	}

	m.DeletePattern(ctx, "user:*:flags")

	for _, k := range []string{"user:1:flags", "user:2:flags"} {
		if _, ok := m.Get(ctx, k); ok {
			t.Errorf("%s should have been purged", k)
		}
	}
	for _, k := range []string{"user:1:overrides", "flag:9", "org:3:flags"} {
		if _, ok := m.Get(ctx, k); !ok {
			t.Errorf("%s should have survived", k)
		}
	}
}

func TestMemory_DeletePatternAnchorsWholeKey(t *testing.T) {
	m := NewMemory(time.Minute)
	defer m.Close()
	ctx := context.Background()

	m.Set(ctx, "flag:1", []byte("v"), time.Minute)
	m.Set(ctx, "flag:1:enabled", []byte("v"), time.Minute)

	m.DeletePattern(ctx, "flag:1")

	if _, ok := m.Get(ctx, "flag:1"); ok {
		t.Error("exact match should have been purged")
	}
	if _, ok := m.Get(ctx, "flag:1:enabled"); !ok {
		t.Error("pattern without wildcard must not match a longer key")
	}
}

func TestMemory_SweepRemovesExpired(t *testing.T) {
	m := NewMemory(10 * time.Millisecond)
	defer m.Close()
	ctx := context.Background()

	m.Set(ctx, "short", []byte("x"), 5*time.Millisecond)
	m.Set(ctx, "long", []byte("y"), time.Minute)

	time.Sleep(50 * time.Millisecond)

	m.mu.Lock()
	_, shortThere := m.entries["short"]
	_, longThere := m.entries["long"]
	m.mu.Unlock()

	if shortThere {
		t.Error("sweeper left an expired entry behind")
	}
	if !longThere {
		t.Error("sweeper removed a live entry")
	}
}

func TestCompileGlob(t *testing.T) {
	cases := []struct {
		pattern string
		key     string
		match   bool
	}{
		{"user:*:flags", "user:42:flags", true},
		{"user:*:flags", "user:42:overrides", false},
		{"user:*:flags", "xuser:42:flags", false},
		{"flag:1", "flag:1", true},
		{"flag:1", "flag:12", false},
		{"org:*", "org:7:flags", true},
		{"a.b*", "a.bc", true},
		{"a.b*", "axbc", false},
	}
	for _, tc := range cases {
		re, err := compileGlob(tc.pattern)
		if err != nil {
			t.Fatalf("compile %q: %v", tc.pattern, err)
		}
		if got := re.MatchString(tc.key); got != tc.match {
			t.Errorf("pattern %q vs key %q: got %v, want %v", tc.pattern, tc.key, got, tc.match)
		}
	}
}
