package blobstore

import (
	"encoding/json"
	"testing"

	"github.com/maplewood-dwh/snapcdc/pkg/cdc"
)

func TestBlobNames(t *testing.T) {
	if got := BaselineBlobName("sus_episodes"); got != "sus_episodes_baseline.json" {
		t.Errorf("baseline name: %s", got)
	}
	if got := ChangeLogBlobName("sus_episodes", "1714000000"); got != "sus_episodes_log_1714000000.json" {
		t.Errorf("change log name: %s", got)
	}
	if got := SummaryBlobName("1714000000"); got != "cdc_summary_1714000000.json" {
		t.Errorf("summary name: %s", got)
	}
}

func TestDecodeBaseline(t *testing.T) {
	in := []cdc.RowFingerprint{
		{PrimaryKey: "1", Hash: "aaa"},
		{PrimaryKey: "2", Hash: "bbb"},
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	out, err := DecodeBaseline(data)
	if err != nil {
		t.Fatalf("DecodeBaseline failed: %v", err)
	}
	if len(out) != 2 || out[0] != in[0] || out[1] != in[1] {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

func TestDecodeBaselineRejectsGarbage(t *testing.T) {
	if _, err := DecodeBaseline([]byte("{not json")); err == nil {
		t.Error("expected decode error")
	}
}

func TestBaselineJSONFieldNames(t *testing.T) {
	data, err := json.Marshal(cdc.RowFingerprint{PrimaryKey: "7", Hash: "abc"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["primary_key"] != "7" || raw["row_hash"] != "abc" {
		t.Errorf("unexpected field names: %v", raw)
	}
}
