// Package reconcile decides whether a fresh order snapshot differs from the installed
// generation and records the lines that disappeared.
package reconcile

import (
	"sort"

	"github.com/angelmondragon/ordersync-backend/internal/snapshot"
)

// Outcome describes how a new snapshot relates to the installed one.
type Outcome struct {
	// Bootstrap is set when there was nothing installed; the snapshot is adopted as-is.
	Bootstrap bool
	// Changed is set when the installed generation must be replaced.
	Changed bool
	// CountChanged is set when the total number of lines differs.
	CountChanged bool
	// ChangedSerials lists orders present in both snapshots whose content differs.
	ChangedSerials []string
	// Removed maps each changed order to the lines that disappeared from it.
	Removed map[string][]snapshot.OrderLine
}

// RemovedCount returns the number of disappeared lines across all orders.
func (o Outcome) RemovedCount() int {
	n := 0
	for _, lines := range o.Removed {
		n += len(lines)
	}
	return n
}

// Diff compares the installed lines with a fresh snapshot. Orders that vanished entirely
// only show up through the line count; their lines are not reported as removed. Two
// empty snapshots are equal.
func Diff(old, fresh []snapshot.OrderLine) Outcome {
	if len(old) == 0 {
		adopt := len(fresh) > 0
		return Outcome{Bootstrap: adopt, Changed: adopt, Removed: map[string][]snapshot.OrderLine{}}
	}

	out := Outcome{
		CountChanged: len(old) != len(fresh),
		Removed:      map[string][]snapshot.OrderLine{},
	}

	oldBySerial := snapshot.GroupBySerial(old)
	newBySerial := snapshot.GroupBySerial(fresh)

	for serial, newLines := range newBySerial {
		oldLines, ok := oldBySerial[serial]
		if !ok {
			continue
		}
		newSigs := signatures(newLines)
		oldSigs := signatures(oldLines)
		if len(oldLines) == len(newLines) && sameSet(oldSigs, newSigs) {
			continue
		}
		out.ChangedSerials = append(out.ChangedSerials, serial)

		seen := map[snapshot.Signature]bool{}
		removed := []snapshot.OrderLine{}
		for _, line := range oldLines {
			sig := line.Signature()
			if newSigs[sig] || seen[sig] {
				continue
			}
			seen[sig] = true
			removed = append(removed, line)
		}
		out.Removed[serial] = removed
	}

	sort.Strings(out.ChangedSerials)
	out.Changed = out.CountChanged || len(out.ChangedSerials) > 0
	return out
}

func signatures(lines []snapshot.OrderLine) map[snapshot.Signature]bool {
	out := make(map[snapshot.Signature]bool, len(lines))
	for _, line := range lines {
		out[line.Signature()] = true
	}
	return out
}

func sameSet(a, b map[snapshot.Signature]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for sig := range a {
		if !b[sig] {
			return false
		}
	}
	return true
}
