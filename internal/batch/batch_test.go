package batch

import (
	"errors"
	"testing"
)

func TestPushUntilFull(t *testing.T) {
	var b Buffer

	for i := 0; i < Capacity; i++ {
		if b.Full() {
			t.Fatalf("full after %d pushes", i)
		}
		if err := b.Push(byte(i % 5)); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	if !b.Full() || b.Len() != Capacity {
		t.Fatalf("len = %d, full = %v", b.Len(), b.Full())
	}

	if err := b.Push(1); !errors.Is(err, ErrFull) {
		t.Fatalf("9th push error = %v, want ErrFull", err)
	}
	if b.Len() != Capacity {
		t.Fatalf("rejected push changed len to %d", b.Len())
	}
}

func TestDrainResets(t *testing.T) {
	var b Buffer
	for _, c := range []byte{1, 3, 0} {
		_ = b.Push(c)
	}

	pending := b.Pending()
	got := b.Drain()
	if string(got) != string([]byte{1, 3, 0}) || string(pending) != string(got) {
		t.Fatalf("Drain = %v, Pending = %v", got, pending)
	}
	if b.Len() != 0 || b.Full() {
		t.Fatalf("buffer not empty after drain: len %d", b.Len())
	}

	got[0] = 4
	_ = b.Push(2)
	if b.Pending()[0] != 2 {
		t.Fatalf("drained slice aliases the buffer")
	}
}
