package main

import "testing"

func TestParseRegionCoords(t *testing.T) {
	cases := []struct {
		name   string
		wantX  int32
		wantZ  int32
		wantOK bool
	}{
		{"r.0.0.mca", 0, 0, true},
		{"r.-1.3.mca", -1, 3, true},
		{"r.12.-7.mca", 12, -7, true},
		{"session.lock", 0, 0, false},
		{"r.0.0.mca.bak", 0, 0, false},
		{"level.dat", 0, 0, false},
	}
	for _, c := range cases {
		x, z, ok := parseRegionCoords(c.name)
		if ok != c.wantOK {
			t.Fatalf("parseRegionCoords(%q) ok = %v, want %v", c.name, ok, c.wantOK)
		}
		if ok && (x != c.wantX || z != c.wantZ) {
			t.Fatalf("parseRegionCoords(%q) = (%d,%d), want (%d,%d)", c.name, x, z, c.wantX, c.wantZ)
		}
	}
}
