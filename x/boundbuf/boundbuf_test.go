package boundbuf

import (
	"strings"
	"testing"
)

func TestSetWithinBound(t *testing.T) {
	b := New(8)
	if truncated := b.SetString("abc"); truncated {
		t.Error("unexpected truncation")
	}
	if b.String() != "abc" || b.Len() != 3 {
		t.Errorf("got %q len %d", b.String(), b.Len())
	}
}

func TestSetTruncates(t *testing.T) {
	b := New(255)
	long := strings.Repeat("x", 300)
	if truncated := b.SetString(long); !truncated {
		t.Error("expected truncation")
	}
	if b.Len() != 255 {
		t.Errorf("len = %d, want 255", b.Len())
	}
}

func TestSetReplaces(t *testing.T) {
	b := New(8)
	b.SetString("first")
	b.Set([]byte("2nd"))
	if b.String() != "2nd" {
		t.Errorf("got %q", b.String())
	}
	b.Reset()
	if b.Len() != 0 {
		t.Errorf("len after reset = %d", b.Len())
	}
}

func TestMinCapacity(t *testing.T) {
	b := New(0)
	if b.Cap() != 1 {
		t.Errorf("cap = %d, want 1", b.Cap())
	}
}
