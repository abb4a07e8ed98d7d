package engine

import (
	"testing"

	"github.com/maplewood-dwh/snapcdc/pkg/cdc"
)

func fp(pk, hash string) cdc.RowFingerprint {
	return cdc.RowFingerprint{PrimaryKey: pk, Hash: hash}
}

func pks(fps []cdc.RowFingerprint) []string {
	out := make([]string, len(fps))
	for i, f := range fps {
		out[i] = f.PrimaryKey
	}
	return out
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		baseline []cdc.RowFingerprint
		current  []cdc.RowFingerprint
		inserted []string
		deleted  []string
		updated  []string
	}{
		{
			name:     "insert only",
			baseline: []cdc.RowFingerprint{fp("1", "a")},
			current:  []cdc.RowFingerprint{fp("1", "a"), fp("2", "b")},
			inserted: []string{"2"},
		},
		{
			name:     "delete only",
			baseline: []cdc.RowFingerprint{fp("1", "a"), fp("2", "b")},
			current:  []cdc.RowFingerprint{fp("1", "a")},
			deleted:  []string{"2"},
		},
		{
			name:     "update only",
			baseline: []cdc.RowFingerprint{fp("1", "a")},
			current:  []cdc.RowFingerprint{fp("1", "z")},
			updated:  []string{"1"},
		},
		{
			name:     "first run inserts everything",
			baseline: nil,
			current:  []cdc.RowFingerprint{fp("2", "b"), fp("1", "a")},
			inserted: []string{"1", "2"},
		},
		{
			name:     "mixed",
			baseline: []cdc.RowFingerprint{fp("1", "a"), fp("2", "b"), fp("3", "c")},
			current:  []cdc.RowFingerprint{fp("2", "b2"), fp("3", "c"), fp("4", "d")},
			inserted: []string{"4"},
			deleted:  []string{"1"},
			updated:  []string{"2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Classify(tt.current, tt.baseline)
			checkPKs(t, "inserted", d.Inserted, tt.inserted)
			checkPKs(t, "deleted", d.Deleted, tt.deleted)
			checkPKs(t, "updated", d.Updated, tt.updated)
		})
	}
}

func checkPKs(t *testing.T, set string, got []cdc.RowFingerprint, want []string) {
	t.Helper()
	gotPKs := pks(got)
	if len(gotPKs) != len(want) {
		t.Fatalf("%s: expected %v, got %v", set, want, gotPKs)
	}
	for i := range want {
		if gotPKs[i] != want[i] {
			t.Fatalf("%s: expected %v, got %v", set, want, gotPKs)
		}
	}
}

func TestClassifyUpdatedCarriesNewHash(t *testing.T) {
	d := Classify([]cdc.RowFingerprint{fp("1", "z")}, []cdc.RowFingerprint{fp("1", "a")})
	if len(d.Updated) != 1 || d.Updated[0].Hash != "z" {
		t.Errorf("expected updated entry with new hash z, got %+v", d.Updated)
	}
}

func TestClassifyDeletedCarriesBaselineHash(t *testing.T) {
	d := Classify(nil, []cdc.RowFingerprint{fp("1", "a")})
	if len(d.Deleted) != 1 || d.Deleted[0].Hash != "a" {
		t.Errorf("expected deleted entry with baseline hash a, got %+v", d.Deleted)
	}
}

func TestClassifyCompleteness(t *testing.T) {
	baseline := []cdc.RowFingerprint{fp("1", "a"), fp("2", "b"), fp("3", "c"), fp("4", "d")}
	current := []cdc.RowFingerprint{fp("3", "c"), fp("4", "d2"), fp("5", "e"), fp("6", "f")}

	d := Classify(current, baseline)

	union := make(map[string]bool)
	for _, f := range baseline {
		union[f.PrimaryKey] = true
	}
	for _, f := range current {
		union[f.PrimaryKey] = true
	}
	total := len(d.Inserted) + len(d.Deleted) + len(d.Updated) + d.Unchanged
	if total != len(union) {
		t.Errorf("expected %d classified keys, got %d", len(union), total)
	}

	seen := make(map[string]string)
	for set, fps := range map[string][]cdc.RowFingerprint{
		"inserted": d.Inserted, "deleted": d.Deleted, "updated": d.Updated,
	} {
		for _, f := range fps {
			if other, dup := seen[f.PrimaryKey]; dup {
				t.Errorf("key %s in both %s and %s", f.PrimaryKey, other, set)
			}
			seen[f.PrimaryKey] = set
		}
	}
}

func TestClassifyIdempotence(t *testing.T) {
	baseline := []cdc.RowFingerprint{fp("1", "a"), fp("2", "b")}
	current := []cdc.RowFingerprint{fp("1", "a2"), fp("3", "c")}

	first := Classify(current, baseline)
	second := Classify(current, first.Current)

	if second.Total() != 0 {
		t.Errorf("expected no changes against freshly committed baseline, got %d", second.Total())
	}
	if second.Unchanged != len(first.Current) {
		t.Errorf("expected %d unchanged, got %d", len(first.Current), second.Unchanged)
	}
}

func TestClassifyDuplicatesLastWins(t *testing.T) {
	baseline := []cdc.RowFingerprint{fp("1", "a")}
	current := []cdc.RowFingerprint{fp("1", "a"), fp("1", "z"), fp("2", "b"), fp("2", "b")}

	d := Classify(current, baseline)

	if d.Duplicates != 2 {
		t.Errorf("expected 2 duplicates, got %d", d.Duplicates)
	}
	// Last occurrence of key 1 has hash z, so it classifies as updated.
	checkPKs(t, "updated", d.Updated, []string{"1"})
	if d.Updated[0].Hash != "z" {
		t.Errorf("expected last-seen hash z, got %s", d.Updated[0].Hash)
	}
	checkPKs(t, "inserted", d.Inserted, []string{"2"})

	if len(d.Current) != 2 {
		t.Errorf("expected deduplicated authoritative set of 2, got %d", len(d.Current))
	}
}
