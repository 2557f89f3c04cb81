package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIoU(t *testing.T) {
	a := NewBoundingBox(0, 0, 100, 100)
	require.InDelta(t, 1.0, a.IoU(a), 0.0001)

	b := NewBoundingBox(50, 0, 100, 100)
	// intersection 50x100=5000, union 15000
	require.InDelta(t, 5000.0/15000.0, a.IoU(b), 0.0001)

	c := NewBoundingBox(200, 200, 10, 10)
	require.Equal(t, 0.0, a.IoU(c))
}

func TestClampKeepsSize(t *testing.T) {
	b := NewBoundingBox(-50, -20, 200, 100).Clamp(1920, 1080)
	require.Equal(t, 0.0, b.X)
	require.Equal(t, 0.0, b.Y)
	require.Equal(t, 200.0, b.Width)

	edge := NewBoundingBox(1900, 1000, 200, 200).Clamp(1920, 1080)
	require.Equal(t, 1720.0, edge.X)
	require.Equal(t, 880.0, edge.Y)
}

func TestClampShrinksOversize(t *testing.T) {
	b := NewBoundingBox(0, 0, 4000, 3000).Clamp(1920, 1080)
	require.Equal(t, 1920.0, b.Width)
	require.Equal(t, 1080.0, b.Height)
}

func TestUnion(t *testing.T) {
	_, ok := Union(nil)
	require.False(t, ok)

	u, ok := Union([]BoundingBox{
		NewBoundingBox(0, 0, 10, 10),
		NewBoundingBox(20, 20, 10, 10),
	})
	require.True(t, ok)
	require.Equal(t, NewBoundingBox(0, 0, 30, 30), u)
}

func TestHighlightWindowClamps(t *testing.T) {
	h := Highlight{ID: 1, Title: "t", Start: "5", End: "15", PadBeforeSecs: 10, PadAfterSecs: 10}
	start, end, err := h.Window(20)
	require.NoError(t, err)
	require.Equal(t, 0.0, start)
	require.Equal(t, 20.0, end)

	h2 := Highlight{ID: 2, Title: "t", Start: "15", End: "5"}
	_, _, err = h2.Window(20)
	require.Error(t, err)
}
