package engine

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/maplewood-dwh/snapcdc/pkg/cdc"
)

const (
	// hashFieldSeparator joins canonical values before digesting. The
	// ASCII unit separator never appears in legitimate column data, so
	// adjacent values cannot glue into a colliding concatenation.
	hashFieldSeparator = "\x1f"

	// nullSentinel renders SQL NULL distinctly from the empty string so
	// the two never collapse into the same fingerprint.
	nullSentinel = "\x00<null>"
)

// Hasher produces stable content fingerprints for the rows of one table.
// Volatile columns are excluded case-insensitively; the remaining columns
// are digested in lexicographic order regardless of extraction order.
type Hasher struct {
	pkColumn string
	excluded map[string]struct{}
}

// NewHasher creates a Hasher for a table's primary key column and its
// excluded (volatile) columns.
func NewHasher(pkColumn string, excludedColumns []string) *Hasher {
	excluded := make(map[string]struct{}, len(excludedColumns))
	for _, c := range excludedColumns {
		excluded[strings.ToLower(c)] = struct{}{}
	}
	return &Hasher{pkColumn: pkColumn, excluded: excluded}
}

// HashRow digests the row's non-excluded columns. It never fails: values
// that have no natural text form degrade to their canonical string
// rendering. MD5 is a fingerprint here, not a security boundary.
func (h *Hasher) HashRow(row cdc.Row) string {
	columns := make([]string, 0, len(row))
	for name := range row {
		if _, skip := h.excluded[strings.ToLower(name)]; skip {
			continue
		}
		columns = append(columns, name)
	}
	sort.Strings(columns)

	var b strings.Builder
	for i, name := range columns {
		if i > 0 {
			b.WriteString(hashFieldSeparator)
		}
		b.WriteString(canonical(row[name]))
	}

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Fingerprint projects a row to its primary key and content hash. A row
// without a usable primary key cannot be classified and fails the table.
func (h *Hasher) Fingerprint(row cdc.Row) (cdc.RowFingerprint, error) {
	pk, ok := row[h.pkColumn]
	if !ok {
		return cdc.RowFingerprint{}, fmt.Errorf("primary key column %q missing from extracted row", h.pkColumn)
	}
	if pk.Kind == cdc.KindNull {
		return cdc.RowFingerprint{}, fmt.Errorf("primary key column %q is NULL", h.pkColumn)
	}
	return cdc.RowFingerprint{
		PrimaryKey: canonical(pk),
		Hash:       h.HashRow(row),
	}, nil
}

// canonical renders a value as the exact string that participates in
// hashing. Every Kind has a fixed rendering so equal values always
// canonicalize identically.
func canonical(v cdc.Value) string {
	switch v.Kind {
	case cdc.KindNull:
		return nullSentinel
	case cdc.KindString:
		return v.Str
	case cdc.KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case cdc.KindBool:
		return strconv.FormatBool(v.Bool)
	case cdc.KindTime:
		return v.Time.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", v)
	}
}
