package models_test

import (
	"math"
	"reflect"
	"testing"

	"github.com/vpbank/ups_collector/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Snapshot
// ─────────────────────────────────────────────────────────────────────────────

func TestSnapshotMerge(t *testing.T) {
	a := models.Snapshot{"1.1": int64(1), "1.2": "two"}
	b := models.Snapshot{"1.2": "deux", "1.3": 3.5}

	got := a.Merge(b)
	want := models.Snapshot{"1.1": int64(1), "1.2": "deux", "1.3": 3.5}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Merge = %v, want %v", got, want)
	}

	// Merging the same data again changes nothing.
	if again := got.Clone().Merge(b); !reflect.DeepEqual(again, want) {
		t.Errorf("second Merge = %v, want %v", again, want)
	}
}

func TestSnapshotMerge_NilReceiver(t *testing.T) {
	var s models.Snapshot
	s = s.Merge(models.Snapshot{"1.1": int64(7)})
	if v, ok := s.Int("1.1"); !ok || v != 7 {
		t.Errorf("Int = %d, %v", v, ok)
	}
}

func TestSnapshotClone_IsIndependent(t *testing.T) {
	s := models.Snapshot{"1.1": int64(1)}
	c := s.Clone()
	c["1.1"] = int64(2)
	c["1.2"] = "x"
	if v, _ := s.Int("1.1"); v != 1 || s.Has("1.2") {
		t.Errorf("original changed through clone: %v", s)
	}
	if models.Snapshot(nil).Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestSnapshotAccessors(t *testing.T) {
	s := models.Snapshot{
		"int":     int64(42),
		"float":   229.6,
		"numstr":  " 17 ",
		"fstr":    "3.9",
		"text":    "Eaton 9PX",
		"nan":     math.NaN(),
		"goint":   5,
		"garbage": []byte{1},
	}

	ints := []struct {
		oid  string
		want int64
		ok   bool
	}{
		{"int", 42, true},
		{"float", 229, true},
		{"numstr", 17, true},
		{"fstr", 3, true},
		{"goint", 5, true},
		{"text", 0, false},
		{"nan", 0, false},
		{"garbage", 0, false},
		{"missing", 0, false},
	}
	for _, tc := range ints {
		got, ok := s.Int(tc.oid)
		if got != tc.want || ok != tc.ok {
			t.Errorf("Int(%s) = %d, %v; want %d, %v", tc.oid, got, ok, tc.want, tc.ok)
		}
	}

	if f, ok := s.Float("int"); !ok || f != 42 {
		t.Errorf("Float(int) = %v, %v", f, ok)
	}
	if f, ok := s.Float("fstr"); !ok || f != 3.9 {
		t.Errorf("Float(fstr) = %v, %v", f, ok)
	}
	if _, ok := s.Float("text"); ok {
		t.Error("Float(text) should fail")
	}

	texts := map[string]string{"text": "Eaton 9PX", "int": "42", "float": "229.6", "goint": "5"}
	for oid, want := range texts {
		if got, ok := s.Text(oid); !ok || got != want {
			t.Errorf("Text(%s) = %q, %v; want %q", oid, got, ok, want)
		}
	}
	if _, ok := s.Text("missing"); ok {
		t.Error("Text(missing) should fail")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Catalog
// ─────────────────────────────────────────────────────────────────────────────

func TestScalarCatalog(t *testing.T) {
	cat := models.ScalarCatalog()
	if len(cat) != 20 {
		t.Errorf("catalog has %d OIDs, want 20", len(cat))
	}
	seen := map[string]bool{}
	for _, oid := range cat {
		if seen[oid] {
			t.Errorf("duplicate OID %s", oid)
		}
		seen[oid] = true
		if models.IsTemplate(oid) {
			t.Errorf("scalar catalog contains template %s", oid)
		}
	}
	if seen[models.OIDBatteryCurrent] {
		t.Error("battery current must not be polled")
	}
	for _, oid := range []string{models.OIDInputNumPhases, models.OIDOutputNumPhases} {
		if !seen[oid] {
			t.Errorf("phase count %s missing from catalog", oid)
		}
	}

	cat[0] = "mutated"
	if models.ScalarCatalog()[0] == "mutated" {
		t.Error("ScalarCatalog must return a copy")
	}
}

func TestPhaseOID(t *testing.T) {
	if got := models.PhaseOID(models.OIDInputVoltage, 2); got != "1.3.6.1.4.1.534.1.3.4.1.2.2" {
		t.Errorf("PhaseOID = %s", got)
	}
	if got := models.ColumnOID(models.OIDOutputLoad); got != "1.3.6.1.4.1.534.1.4.4.1.8" {
		t.Errorf("ColumnOID = %s", got)
	}
	if !models.IsTemplate(models.OIDInputName) || models.IsTemplate(models.OIDInputSource) {
		t.Error("IsTemplate misclassifies")
	}
}

func TestPhaseTables(t *testing.T) {
	tables := models.PhaseTables()
	if len(tables) != 2 || tables[0].Name != "input" || tables[1].Name != "output" {
		t.Fatalf("PhaseTables = %v", tables)
	}
	cols := models.OutputTable.ColumnOIDs()
	if len(cols) != len(models.OutputTable.Columns) {
		t.Fatalf("ColumnOIDs len = %d", len(cols))
	}
	for _, c := range cols {
		if models.IsTemplate(c) {
			t.Errorf("column %s still templated", c)
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Enumerations
// ─────────────────────────────────────────────────────────────────────────────

func TestEnumParsing(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"abm floating", models.ParseAbmStatus(int64(3)).String(), "floating"},
		{"abm string code", models.ParseAbmStatus("1").String(), "charging"},
		{"abm out of range", models.ParseAbmStatus(int64(99)).String(), "unknown"},
		{"abm missing", models.ParseAbmStatus(nil).String(), "unknown"},
		{"test passed", models.ParseBatteryTestStatus(int64(2)).String(), "passed"},
		{"test zero", models.ParseBatteryTestStatus(int64(0)).String(), "unknown"},
		{"input source", models.ParseInputSource(int64(6)).String(), "generator"},
		{"input status", models.ParseInputStatus(int64(1)).String(), "bad"},
		{"output source", models.ParseOutputSource(int64(12)).String(), "ess_mode"},
		{"output status", models.ParseOutputStatus(int64(3)).String(), "output_protected"},
		{"yes", models.ParseYesNo(int64(1)).String(), "yes"},
		{"no from float", models.ParseYesNo(2.0).String(), "no"},
		{"fractional", models.ParseYesNo(1.5).String(), "unknown"},
		{"text", models.ParseYesNo("yes").String(), "unknown"},
	}
	for _, tc := range tests {
		if tc.got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, tc.got, tc.want)
		}
	}
}

func TestEnumString_UnknownValue(t *testing.T) {
	if s := models.OutputSource(42).String(); s != "unknown" {
		t.Errorf("OutputSource(42) = %q", s)
	}
	if s := models.AbmStatus(0).String(); s != "unknown" {
		t.Errorf("AbmStatus(0) = %q", s)
	}
}
