package engine

import (
	"sort"

	"github.com/maplewood-dwh/snapcdc/pkg/cdc"
)

// Diff is the classified comparison of one extraction against the prior
// baseline. The three change sets are disjoint and each is sorted by
// primary key ascending.
type Diff struct {
	Inserted []cdc.RowFingerprint
	Deleted  []cdc.RowFingerprint
	Updated  []cdc.RowFingerprint

	// Current is the authoritative fingerprint set for this extraction
	// after duplicate resolution, sorted by primary key. It becomes the
	// next baseline when the table run commits.
	Current []cdc.RowFingerprint

	Unchanged  int
	Duplicates int
}

// Total returns the number of classified changes.
func (d Diff) Total() int {
	return len(d.Inserted) + len(d.Deleted) + len(d.Updated)
}

// Classify performs a full outer join of current against baseline on
// primary key, with hash equality as the update predicate. Both sides are
// indexed by key, so classification is linear in the input sizes.
//
// Duplicate primary keys within the current extraction are resolved
// last-occurrence-wins, and the duplicate count is surfaced on the result
// as a data-quality signal.
func Classify(current, baseline []cdc.RowFingerprint) Diff {
	cur := make(map[string]string, len(current))
	duplicates := 0
	for _, fp := range current {
		if _, seen := cur[fp.PrimaryKey]; seen {
			duplicates++
		}
		cur[fp.PrimaryKey] = fp.Hash
	}

	base := make(map[string]string, len(baseline))
	for _, fp := range baseline {
		base[fp.PrimaryKey] = fp.Hash
	}

	d := Diff{Duplicates: duplicates}
	for pk, hash := range cur {
		d.Current = append(d.Current, cdc.RowFingerprint{PrimaryKey: pk, Hash: hash})
		old, known := base[pk]
		switch {
		case !known:
			d.Inserted = append(d.Inserted, cdc.RowFingerprint{PrimaryKey: pk, Hash: hash})
		case old != hash:
			d.Updated = append(d.Updated, cdc.RowFingerprint{PrimaryKey: pk, Hash: hash})
		default:
			d.Unchanged++
		}
	}

	// Deleted rows keep their baseline hash; there is no current hash.
	for pk, hash := range base {
		if _, present := cur[pk]; !present {
			d.Deleted = append(d.Deleted, cdc.RowFingerprint{PrimaryKey: pk, Hash: hash})
		}
	}

	sortByPrimaryKey(d.Inserted)
	sortByPrimaryKey(d.Deleted)
	sortByPrimaryKey(d.Updated)
	sortByPrimaryKey(d.Current)
	return d
}

func sortByPrimaryKey(fps []cdc.RowFingerprint) {
	sort.Slice(fps, func(i, j int) bool { return fps[i].PrimaryKey < fps[j].PrimaryKey })
}
