package entities

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestBySender(t *testing.T) {
	name := "Alice"
	want := FilterSpec{Sender: &name}

	if got := BySender("Alice"); !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected filter: %+v", got)
	}

	data, _ := json.Marshal(BySender("Alice"))
	if string(data) != `{"sender":"Alice"}` {
		t.Errorf("unexpected json: %s", data)
	}
}

func TestByDateRange(t *testing.T) {
	got := ByDateRange("2024-01-01T00:00:00", "2024-01-31T23:59:59")
	want := FilterSpec{Timestamp: &TimeRange{Gte: "2024-01-01T00:00:00", Lte: "2024-01-31T23:59:59"}}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected filter: %+v", got)
	}

	data, _ := json.Marshal(got)
	if string(data) != `{"timestamp":{"$gte":"2024-01-01T00:00:00","$lte":"2024-01-31T23:59:59"}}` {
		t.Errorf("unexpected json: %s", data)
	}
}

func TestFilterSpec_DecodeJSON(t *testing.T) {
	var f FilterSpec
	err := json.Unmarshal([]byte(`{"sender":"Bob","is_system":true,"timestamp":{"$gte":"2024-02-01"}}`), &f)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if *f.Sender != "Bob" || !*f.IsSystem || f.Timestamp.Gte != "2024-02-01" || f.Timestamp.Lte != "" {
		t.Errorf("unexpected filter: %+v", f)
	}
}

func TestComposeFilter_DefaultExcludesSystem(t *testing.T) {
	got := ComposeFilter(nil)
	if got == nil || got.IsSystem == nil || *got.IsSystem {
		t.Fatalf("default should force is_system=false, got %+v", got)
	}
	if got.Sender != nil || got.Timestamp != nil {
		t.Error("default should not add other keys")
	}

	sender := BySender("Alice")
	got = ComposeFilter(&sender)
	if *got.IsSystem || *got.Sender != "Alice" {
		t.Errorf("sender filter should keep the default, got %+v", got)
	}
}

func TestComposeFilter_ExplicitSystemOverrides(t *testing.T) {
	for _, want := range []bool{true, false} {
		f := BySystem(want)
		got := ComposeFilter(&f)
		if *got.IsSystem != want {
			t.Errorf("explicit is_system=%v should win, got %v", want, *got.IsSystem)
		}
	}
}

func TestComposeFilter_DoesNotMutateInput(t *testing.T) {
	f := BySender("Alice")
	ComposeFilter(&f)
	if f.IsSystem != nil {
		t.Error("caller filters must not be modified")
	}
}

func TestFilterSpec_And(t *testing.T) {
	f := BySender("Alice").And(ByDateRange("2024-01-01", "2024-01-31")).And(BySender("Bob"))

	if *f.Sender != "Bob" {
		t.Errorf("right side should win, got %s", *f.Sender)
	}
	if f.Timestamp == nil || f.Timestamp.Gte != "2024-01-01" {
		t.Error("range should be kept")
	}
	if (FilterSpec{}).And(FilterSpec{}).IsEmpty() != true {
		t.Error("empty and empty is empty")
	}
}

func TestFilterSpec_Matches(t *testing.T) {
	md := Metadata{Sender: "Alice", Timestamp: "2024-01-15T12:00:00", IsSystem: false}

	cases := []struct {
		name   string
		filter FilterSpec
		want   bool
	}{
		{"empty", FilterSpec{}, true},
		{"sender hit", BySender("Alice"), true},
		{"sender miss", BySender("Bob"), false},
		{"system miss", BySystem(true), false},
		{"in range", ByDateRange("2024-01-01T00:00:00", "2024-01-31T23:59:59"), true},
		{"before range", ByDateRange("2024-02-01T00:00:00", "2024-02-28T23:59:59"), false},
		{"open upper", FilterSpec{Timestamp: &TimeRange{Gte: "2024-01-15T12:00:00"}}, true},
		{"open lower", FilterSpec{Timestamp: &TimeRange{Lte: "2024-01-15T11:59:59"}}, false},
		{"combined", BySender("Alice").And(BySystem(false)), true},
	}
	for _, tc := range cases {
		if got := tc.filter.Matches(md); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestFilterSpec_Validate(t *testing.T) {
	if err := (FilterSpec{Timestamp: &TimeRange{}}).Validate(); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty range should be invalid, got %v", err)
	}
	if err := ByDateRange("2024-02-01", "2024-01-01").Validate(); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("inverted range should be invalid, got %v", err)
	}
	if err := ByDateRange("2024-01-01", "2024-02-01").Validate(); err != nil {
		t.Errorf("valid range rejected: %v", err)
	}
}
