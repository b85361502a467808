package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ordersync-backend/internal/snapshot"
)

func ol(serial, article, qty, unit string) snapshot.OrderLine {
	return snapshot.OrderLine{RawOrderLine: snapshot.RawOrderLine{
		Serial:      serial,
		ArticleCode: article,
		Quantity:    decimal.RequireFromString(qty),
		Unit:        unit,
	}}
}

func TestDiffBootstrapOnEmptyCache(t *testing.T) {
	out := Diff(nil, []snapshot.OrderLine{ol("S1", "A", "1", "PZ"), ol("S1", "A", "1", "PZ")})
	if !out.Bootstrap || !out.Changed {
		t.Fatalf("expected bootstrap, got %+v", out)
	}
	if out.RemovedCount() != 0 || len(out.ChangedSerials) != 0 {
		t.Fatalf("bootstrap must not report removals, got %+v", out)
	}
}

func TestDiffEmptySnapshotsAreEqual(t *testing.T) {
	if out := Diff(nil, nil); out.Changed || out.Bootstrap {
		t.Fatalf("two empty snapshots must not differ, got %+v", out)
	}
}

func TestDiffUnchangedIgnoresOrderAndScale(t *testing.T) {
	old := []snapshot.OrderLine{ol("S1", "A", "5", "PZ"), ol("S1", "B", "2.5", "KG")}
	fresh := []snapshot.OrderLine{ol("S1", "B", "2.500", "KG"), ol("S1", "A", "5.0", "PZ")}
	if out := Diff(old, fresh); out.Changed {
		t.Fatalf("expected no change, got %+v", out)
	}
}

func TestDiffDetectsDisappearedLine(t *testing.T) {
	old := []snapshot.OrderLine{ol("S1", "A", "5", "PZ"), ol("S1", "B", "1", "PZ"), ol("S2", "C", "1", "PZ")}
	fresh := []snapshot.OrderLine{ol("S1", "A", "5", "PZ"), ol("S2", "C", "1", "PZ")}

	out := Diff(old, fresh)
	if !out.Changed || !out.CountChanged {
		t.Fatalf("expected change, got %+v", out)
	}
	if len(out.ChangedSerials) != 1 || out.ChangedSerials[0] != "S1" {
		t.Fatalf("unexpected changed serials %v", out.ChangedSerials)
	}
	removed := out.Removed["S1"]
	if len(removed) != 1 || removed[0].ArticleCode != "B" {
		t.Fatalf("unexpected removed lines %+v", removed)
	}
}

func TestDiffQuantityChangeRemovesOldSignature(t *testing.T) {
	old := []snapshot.OrderLine{ol("S1", "A", "5", "PZ")}
	fresh := []snapshot.OrderLine{ol("S1", "A", "3", "PZ")}

	out := Diff(old, fresh)
	if out.CountChanged {
		t.Fatal("line count did not change")
	}
	removed := out.Removed["S1"]
	if len(removed) != 1 || !removed[0].Quantity.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected the 5 PZ line removed, got %+v", removed)
	}
}

func TestDiffAddedLineChangesOrderWithoutRemovals(t *testing.T) {
	old := []snapshot.OrderLine{ol("S1", "A", "5", "PZ")}
	fresh := []snapshot.OrderLine{ol("S1", "A", "5", "PZ"), ol("S1", "B", "1", "PZ")}

	out := Diff(old, fresh)
	if len(out.ChangedSerials) != 1 {
		t.Fatalf("expected S1 changed, got %v", out.ChangedSerials)
	}
	if removed, ok := out.Removed["S1"]; !ok || removed == nil || len(removed) != 0 {
		t.Fatalf("expected an empty removal list for S1, got %#v", removed)
	}
}

func TestDiffDuplicateLineCountOnly(t *testing.T) {
	old := []snapshot.OrderLine{ol("S1", "A", "5", "PZ")}
	fresh := []snapshot.OrderLine{ol("S1", "A", "5", "PZ"), ol("S1", "A", "5", "PZ")}

	out := Diff(old, fresh)
	if !out.Changed || len(out.ChangedSerials) != 1 {
		t.Fatalf("expected raw count difference to mark S1 changed, got %+v", out)
	}
	if out.RemovedCount() != 0 {
		t.Fatalf("no line disappeared, got %d", out.RemovedCount())
	}
}

func TestDiffVanishedOrderOnlyChangesCount(t *testing.T) {
	old := []snapshot.OrderLine{ol("S1", "A", "5", "PZ"), ol("S2", "B", "1", "PZ")}
	fresh := []snapshot.OrderLine{ol("S1", "A", "5", "PZ")}

	out := Diff(old, fresh)
	if !out.Changed || !out.CountChanged {
		t.Fatalf("expected count change, got %+v", out)
	}
	if len(out.ChangedSerials) != 0 || out.RemovedCount() != 0 {
		t.Fatalf("vanished orders are not diffed line by line, got %+v", out)
	}
}
