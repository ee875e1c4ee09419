package visualization

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"niftiloader/pkg/volume"
)

// Viewer extracts 2D slices from the first three dimensions of a decoded
// volume. Higher dimensions are fixed at index 0.
type Viewer struct {
	vol *volume.Volume

	// dimensions of the volume
	width  int
	height int
	depth  int

	// intensity window used to map voxels to 16-bit gray
	min, max float64
}

// NewViewer creates a viewer over vol, windowed to the intensity range of
// its first frame.
func NewViewer(vol *volume.Volume) (*Viewer, error) {
	shape := vol.Shape()
	if len(shape) < 2 {
		return nil, fmt.Errorf("volume must have at least 2 dimensions, got %d", len(shape))
	}
	v := &Viewer{vol: vol, width: shape[0], height: shape[1], depth: 1}
	if len(shape) > 2 {
		v.depth = shape[2]
	}

	v.min, v.max = math.Inf(1), math.Inf(-1)
	for i, n := 0, v.width*v.height*v.depth; i < n; i++ {
		val := vol.Float64At(i)
		v.min = math.Min(v.min, val)
		v.max = math.Max(v.max, val)
	}
	return v, nil
}

// Dims returns the width, height and depth the viewer slices over.
func (v *Viewer) Dims() (int, int, int) {
	return v.width, v.height, v.depth
}

func (v *Viewer) gray(x, y, z int) color.Gray16 {
	val := v.vol.Float64At(x + v.width*(y+v.height*z))
	if v.max <= v.min {
		return color.Gray16{}
	}
	scaled := (val - v.min) / (v.max - v.min)
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, scaled*65535)))}
}

// ExtractSlice extracts a 2D slice from the volume along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var img *image.Gray16

	switch axis {
	case "x", "X":
		// Extract slice along YZ plane
		if position >= v.width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.width)
		}
		img = image.NewGray16(image.Rect(0, 0, v.height, v.depth))
		for z := 0; z < v.depth; z++ {
			for y := 0; y < v.height; y++ {
				img.SetGray16(y, z, v.gray(position, y, z))
			}
		}

	case "y", "Y":
		// Extract slice along XZ plane
		if position >= v.height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.height)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.depth))
		for z := 0; z < v.depth; z++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, z, v.gray(x, position, z))
			}
		}

	case "z", "Z":
		// Extract slice along XY plane
		if position >= v.depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.depth)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.height))
		for y := 0; y < v.height; y++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, y, v.gray(x, y, position))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// SaveSlice saves an extracted slice flipped so the second axis points up.
// The format follows the filename extension.
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	return imaging.Save(imaging.FlipV(img), filename)
}

// SaveSliceSequence extracts and saves every slice along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.width
	case "y", "Y":
		maxPos = v.height
	case "z", "Z":
		maxPos = v.depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}

// SaveMidSlices writes the central slice along each axis to outputDir and
// returns the written paths.
func (v *Viewer) SaveMidSlices(outputDir string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	mids := map[string]int{"x": v.width / 2, "y": v.height / 2, "z": v.depth / 2}
	var paths []string
	for _, axis := range []string{"x", "y", "z"} {
		img, err := v.ExtractSlice(axis, mids[axis])
		if err != nil {
			return nil, err
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("mid_%s.png", axis))
		if err := v.SaveSlice(img, filename); err != nil {
			return nil, err
		}
		paths = append(paths, filename)
	}
	return paths, nil
}
