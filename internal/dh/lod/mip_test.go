package lod

import (
	"errors"
	"testing"

	"github.com/OCharnyshevich/minecraft-server/internal/dh"
)

func buildUniformLOD(t *testing.T, id int32) *LOD {
	t.Helper()
	g := group4x4(func(cx, cz int32) *ChunkInput {
		return uniformChunk(cx, cz, 0, fullStatus, id)
	})
	l, err := Build(g, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return l
}

func TestMipPluralityTieBreaksOnLowestSourceIndex(t *testing.T) {
	inputs := [][]*LOD{
		{buildUniformLOD(t, 1), buildUniformLOD(t, 2)},
		{buildUniformLOD(t, 3), buildUniformLOD(t, 4)},
	}

	out, err := Mip(inputs, nil, nil)
	if err != nil {
		t.Fatalf("Mip: %v", err)
	}
	if out.MipLevel != 1 {
		t.Fatalf("MipLevel = %d, want 1", out.MipLevel)
	}
	if out.X != 0 || out.Z != 0 {
		t.Fatalf("expected output X=Z=0, got %d,%d", out.X, out.Z)
	}
	if out.Height != 16 || out.MinY != 0 {
		t.Fatalf("Height/MinY not inherited: height=%d minY=%d", out.Height, out.MinY)
	}
	if !out.HasData {
		t.Fatal("expected HasData true")
	}

	cur := NewColumnCursor(out.Columns)
	for i := 0; i < GridDim*GridDim; i++ {
		col, err := cur.Next()
		if err != nil {
			t.Fatalf("column %d: %v", i, err)
		}
		if DatapointCount(col) != 1 {
			t.Fatalf("column %d: count = %d, want 1", i, DatapointCount(col))
		}
		d := DatapointAt(col, 0)
		if d.ID() != 1 {
			t.Fatalf("column %d: id = %d, want 1 (lowest-index tie-break)", i, d.ID())
		}
		if d.Height() != 16 {
			t.Fatalf("column %d: height = %d, want 16", i, d.Height())
		}
	}
}

func TestMipMajorityWins(t *testing.T) {
	// Three of four sources agree; the vote should pick the majority id
	// regardless of source index order.
	inputs := [][]*LOD{
		{buildUniformLOD(t, 9), buildUniformLOD(t, 9)},
		{buildUniformLOD(t, 9), buildUniformLOD(t, 5)},
	}

	out, err := Mip(inputs, nil, nil)
	if err != nil {
		t.Fatalf("Mip: %v", err)
	}
	cur := NewColumnCursor(out.Columns)
	col, err := cur.Next()
	if err != nil {
		t.Fatalf("column: %v", err)
	}
	d := DatapointAt(col, 0)
	if d.ID() != 9 {
		t.Fatalf("id = %d, want 9 (majority)", d.ID())
	}
}

func TestMipRejectsMismatchedHeight(t *testing.T) {
	a := buildUniformLOD(t, 1)
	b := buildUniformLOD(t, 2)
	c := buildUniformLOD(t, 3)
	d := buildUniformLOD(t, 4)
	d.Height = 32

	_, err := Mip([][]*LOD{{a, b}, {c, d}}, nil, nil)
	if err == nil {
		t.Fatal("expected Mip to reject mismatched height")
	}
	if !errors.Is(err, dh.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestMipRejectsNonPowerOfTwoGrid(t *testing.T) {
	a := buildUniformLOD(t, 1)
	b := buildUniformLOD(t, 2)
	c := buildUniformLOD(t, 3)

	_, err := Mip([][]*LOD{{a, b, c}}, nil, nil)
	if err == nil {
		t.Fatal("expected Mip to reject a non-power-of-two grid")
	}
}

func TestMipInvokesInflateForCompressedInputs(t *testing.T) {
	a := buildUniformLOD(t, 1)
	b := buildUniformLOD(t, 2)
	c := buildUniformLOD(t, 3)
	d := buildUniformLOD(t, 4)
	d.CompressionMode = ModeLZ4

	called := false
	inflate := func(l *LOD) error {
		called = true
		l.CompressionMode = ModeRaw
		return nil
	}

	if _, err := Mip([][]*LOD{{a, b}, {c, d}}, inflate, nil); err != nil {
		t.Fatalf("Mip: %v", err)
	}
	if !called {
		t.Fatal("expected inflate to be called for the compressed input")
	}
}

func TestMipFailsWithoutInflateForCompressedInput(t *testing.T) {
	a := buildUniformLOD(t, 1)
	b := buildUniformLOD(t, 2)
	c := buildUniformLOD(t, 3)
	d := buildUniformLOD(t, 4)
	d.CompressionMode = ModeZstd

	if _, err := Mip([][]*LOD{{a, b}, {c, d}}, nil, nil); err == nil {
		t.Fatal("expected Mip to fail when a compressed input has no inflate function")
	}
}
