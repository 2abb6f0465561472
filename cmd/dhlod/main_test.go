package main

import (
	"testing"

	"github.com/OCharnyshevich/minecraft-server/internal/dh/lod"
)

func TestParseCompressionMode(t *testing.T) {
	cases := map[string]lod.Mode{
		"raw":  lod.ModeRaw,
		"lz4":  lod.ModeLZ4,
		"lzma": lod.ModeLZMA,
		"zstd": lod.ModeZstd,
	}
	for s, want := range cases {
		got, err := parseCompressionMode(s)
		if err != nil {
			t.Fatalf("parseCompressionMode(%q): %v", s, err)
		}
		if got != want {
			t.Fatalf("parseCompressionMode(%q) = %s, want %s", s, got, want)
		}
	}
}

func TestParseCompressionModeRejectsUnknown(t *testing.T) {
	if _, err := parseCompressionMode("bogus"); err == nil {
		t.Fatal("expected an error for an unrecognized compression mode")
	}
}
