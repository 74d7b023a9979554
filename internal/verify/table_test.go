package verify

import (
	"testing"
	"time"
)

func TestTableStoreRoster(t *testing.T) {
	tbl := NewTable([]uint8{4, 2})
	now := time.Unix(100, 0)

	if !tbl.Store(2, "GAIN", 1.5, now) {
		t.Fatalf("store for rostered device rejected")
	}
	if tbl.Store(9, "GAIN", 1.5, now) {
		t.Fatalf("store for unknown device accepted")
	}
	if v, ok := tbl.Get(2, "GAIN"); !ok || v != 1.5 {
		t.Fatalf("unexpected value %v %v", v, ok)
	}
	if got := tbl.LastReceived(2); !got.Equal(now) {
		t.Fatalf("last received not advanced: %v", got)
	}
	if got := tbl.LastReceived(4); !got.IsZero() {
		t.Fatalf("device 4 should not have a last received time, got %v", got)
	}
	devs := tbl.Devices()
	if len(devs) != 2 || devs[0] != 2 || devs[1] != 4 {
		t.Fatalf("unexpected devices %v", devs)
	}
}

func TestTableOverwrite(t *testing.T) {
	tbl := NewTable([]uint8{2})
	tbl.Store(2, "GAIN", 1, time.Unix(1, 0))
	tbl.Store(2, "GAIN", 2, time.Unix(2, 0))
	if v, _ := tbl.Get(2, "GAIN"); v != 2 {
		t.Fatalf("expected latest value, got %v", v)
	}
	if n := len(tbl.Snapshot(2)); n != 1 {
		t.Fatalf("expected one entry, got %d", n)
	}
}

func TestTableMissing(t *testing.T) {
	tbl := NewTable([]uint8{2})
	tbl.Store(2, "B", 1, time.Now())
	missing := tbl.Missing(2, []string{"A", "B", "C"})
	if len(missing) != 2 || missing[0] != "A" || missing[1] != "C" {
		t.Fatalf("unexpected missing %v", missing)
	}
	if c := tbl.Count(2, []string{"A", "B", "C"}); c != 1 {
		t.Fatalf("expected count 1, got %d", c)
	}
}

func TestTableChangedSignal(t *testing.T) {
	tbl := NewTable([]uint8{2})
	ch := tbl.Changed()
	select {
	case <-ch:
		t.Fatalf("signal fired before any store")
	default:
	}
	tbl.Store(2, "A", 1, time.Now())
	select {
	case <-ch:
	default:
		t.Fatalf("signal not fired after store")
	}
	if tbl.Changed() == ch {
		t.Fatalf("signal channel not replaced")
	}
}

func TestTableRemove(t *testing.T) {
	tbl := NewTable([]uint8{2, 4})
	tbl.Store(2, "A", 1, time.Now())
	tbl.Remove(2)
	if _, ok := tbl.Get(2, "A"); ok {
		t.Fatalf("values kept after remove")
	}
	if tbl.Store(2, "A", 1, time.Now()) {
		t.Fatalf("removed device accepted a store")
	}
	if devs := tbl.Devices(); len(devs) != 1 || devs[0] != 4 {
		t.Fatalf("unexpected devices %v", devs)
	}
}
