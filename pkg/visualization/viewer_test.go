package visualization

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"niftiloader/pkg/volume"
)

// createTestVolume builds a column-major volume where each z slice holds a
// unique constant value
func createTestVolume(t *testing.T, width, height, depth int) *volume.Volume {
	t.Helper()
	data := make([]float64, width*height*depth)
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				data[x+width*(y+height*z)] = float64(z)
			}
		}
	}
	vol, err := volume.FromFloat64s(data, []int{width, height, depth})
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	return vol
}

// TestNewViewer verifies that a new viewer picks up the volume dimensions
func TestNewViewer(t *testing.T) {
	viewer, err := NewViewer(createTestVolume(t, 10, 8, 5))
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	w, h, d := viewer.Dims()
	if w != 10 || h != 8 || d != 5 {
		t.Errorf("Expected dims 10x8x5, got %dx%dx%d", w, h, d)
	}
	if viewer.min != 0 || viewer.max != 4 {
		t.Errorf("Expected window [0, 4], got [%g, %g]", viewer.min, viewer.max)
	}

	vol, _ := volume.FromFloat64s([]float64{1, 2, 3}, []int{3})
	if _, err := NewViewer(vol); err == nil {
		t.Error("Expected error for 1D volume")
	}
}

// TestExtractSlice verifies slice sizes and intensities along each axis
func TestExtractSlice(t *testing.T) {
	width, height, depth := 10, 8, 5
	viewer, err := NewViewer(createTestVolume(t, width, height, depth))
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	tests := []struct {
		axis   string
		pos    int
		bounds image.Rectangle
	}{
		{"x", 3, image.Rect(0, 0, height, depth)},
		{"y", 2, image.Rect(0, 0, width, depth)},
		{"z", 4, image.Rect(0, 0, width, height)},
	}
	for _, tt := range tests {
		img, err := viewer.ExtractSlice(tt.axis, tt.pos)
		if err != nil {
			t.Fatalf("Failed to extract %s slice: %v", tt.axis, err)
		}
		if img.Bounds() != tt.bounds {
			t.Errorf("Expected %s slice bounds %v, got %v", tt.axis, tt.bounds, img.Bounds())
		}
	}

	// The last z slice holds the maximum intensity.
	img, _ := viewer.ExtractSlice("z", depth-1)
	gray := img.(*image.Gray16)
	if got := gray.Gray16At(0, 0).Y; got != 65535 {
		t.Errorf("Expected full intensity in last slice, got %d", got)
	}
	img, _ = viewer.ExtractSlice("z", 0)
	gray = img.(*image.Gray16)
	if got := gray.Gray16At(5, 5).Y; got != 0 {
		t.Errorf("Expected zero intensity in first slice, got %d", got)
	}
}

// TestExtractSliceErrors verifies invalid axis and position handling
func TestExtractSliceErrors(t *testing.T) {
	viewer, err := NewViewer(createTestVolume(t, 4, 4, 4))
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	if _, err := viewer.ExtractSlice("w", 0); err == nil {
		t.Error("Expected error for invalid axis")
	}
	if _, err := viewer.ExtractSlice("z", -1); err == nil {
		t.Error("Expected error for negative position")
	}
	if _, err := viewer.ExtractSlice("x", 4); err == nil {
		t.Error("Expected error for out of range position")
	}
}

// TestSaveSlices verifies that slice images are written to disk
func TestSaveSlices(t *testing.T) {
	viewer, err := NewViewer(createTestVolume(t, 6, 5, 4))
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}
	dir := t.TempDir()

	if err := viewer.SaveSliceSequence("z", filepath.Join(dir, "z")); err != nil {
		t.Fatalf("Failed to save slice sequence: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "z"))
	if err != nil {
		t.Fatalf("Failed to read output dir: %v", err)
	}
	if len(entries) != 4 {
		t.Errorf("Expected 4 slices, got %d", len(entries))
	}

	paths, err := viewer.SaveMidSlices(filepath.Join(dir, "mid"))
	if err != nil {
		t.Fatalf("Failed to save mid slices: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("Expected 3 mid slices, got %d", len(paths))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("Expected %s to exist: %v", p, err)
		}
	}

	if err := viewer.SaveSliceSequence("q", dir); err == nil {
		t.Error("Expected error for invalid axis")
	}
}
