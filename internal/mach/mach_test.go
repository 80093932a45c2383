package mach

import (
	"context"
	"errors"
	"testing"

	"rvkernel/internal/buddy"
)

func TestArenaBytesRoundTrip(t *testing.T) {
	a, err := NewArena(buddy.Addr(0x1000), 4096)
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	defer a.Close()

	b := a.Bytes(buddy.Addr(0x1000), 16)
	copy(b, []byte("hello machine!!!"))
	got := a.Bytes(buddy.Addr(0x1000), 16)
	if string(got) != "hello machine!!!" {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestArenaBytesOutOfRangePanics(t *testing.T) {
	a, err := NewArena(buddy.Addr(0), 4096)
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	defer a.Close()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range access")
		}
	}()
	a.Bytes(buddy.Addr(8192), 16)
}

func TestHartsBootAllSucceed(t *testing.T) {
	h := NewHarts(Config{Harts: 4})
	var seen [4]bool
	err := h.Boot(context.Background(), func(ctx context.Context, hart int) error {
		seen[hart] = true
		return nil
	})
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	for i, ok := range seen {
		if !ok {
			t.Fatalf("hart %d never ran", i)
		}
	}
}

func TestHartsBootPropagatesFailure(t *testing.T) {
	h := NewHarts(Config{Harts: 3})
	wantErr := errors.New("boom")
	err := h.Boot(context.Background(), func(ctx context.Context, hart int) error {
		if hart == 1 {
			return wantErr
		}
		<-ctx.Done()
		return ctx.Err()
	})
	if err == nil {
		t.Fatal("expected Boot to propagate the failing hart's error")
	}
}
