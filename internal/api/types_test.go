package api

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCoordinateDecoding(t *testing.T) {
	tests := []struct {
		raw   string
		valid bool
		value float64
	}{
		{raw: `37.5666805`, valid: true, value: 37.5666805},
		{raw: `"126.9784147"`, valid: true, value: 126.9784147},
		{raw: `" 12.5 "`, valid: true, value: 12.5},
		{raw: `null`, valid: false},
		{raw: `"north"`, valid: false},
		{raw: `""`, valid: false},
		{raw: `"NaN"`, valid: false},
	}
	for _, tt := range tests {
		var c Coordinate
		if err := json.Unmarshal([]byte(tt.raw), &c); err != nil {
			t.Fatalf("Unmarshal(%s) returned error: %v", tt.raw, err)
		}
		if c.Valid != tt.valid || (tt.valid && c.Value != tt.value) {
			t.Fatalf("Unmarshal(%s) = %+v, want valid=%v value=%v", tt.raw, c, tt.valid, tt.value)
		}
	}
}

func TestMarkerWithBadCoordinateStillDecodes(t *testing.T) {
	payload := `[{"id":1,"latitude":"oops","longitude":127.0,"title":"a"},{"id":2,"latitude":37.5,"longitude":127.0}]`
	var markers []Marker
	if err := json.Unmarshal([]byte(payload), &markers); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if len(markers) != 2 {
		t.Fatalf("len = %d, want 2", len(markers))
	}
	if _, ok := markers[0].Point(); ok {
		t.Fatalf("marker 1 should not have a usable position")
	}
	if _, ok := markers[1].Point(); !ok {
		t.Fatalf("marker 2 should have a usable position")
	}
}

func TestMarkerPoint_OutOfRange(t *testing.T) {
	m := Marker{Latitude: Coord(95), Longitude: Coord(127)}
	if _, ok := m.Point(); ok {
		t.Fatalf("latitude 95 should be rejected")
	}
}

func TestCoordinateMarshal(t *testing.T) {
	b, err := json.Marshal(struct {
		A Coordinate `json:"a"`
		B Coordinate `json:"b"`
	}{A: Coord(1.25)})
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	if string(b) != `{"a":1.25,"b":null}` {
		t.Fatalf("Marshal = %s", b)
	}
}

func TestParseTimeLayouts(t *testing.T) {
	rfc := "2025-12-13T10:11:12Z"
	if got := parseTime(rfc); !got.Equal(time.Date(2025, 12, 13, 10, 11, 12, 0, time.UTC)) {
		t.Fatalf("parseTime(%q) = %v", rfc, got)
	}

	local := "2025-12-13T10:11:12.123456"
	want := time.Date(2025, 12, 13, 10, 11, 12, 0, time.Local)
	if got := parseTime(local); !got.Equal(want) {
		t.Fatalf("parseTime(%q) = %v, want %v", local, got, want)
	}

	if !parseTime("").IsZero() || !parseTime("yesterday").IsZero() {
		t.Fatalf("invalid timestamps should parse to zero time")
	}
}
