package vdbview

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// vdbMagic is the first eight bytes of an OpenVDB file, little endian.
const vdbMagic = int64(0x56444220)

// GridData describes one volumetric grid for display: identity, typing,
// and the bounding information the render modules build geometry from.
// The voxel payload itself is not loaded; every module works from the
// descriptor.
type GridData struct {
	Name      string
	ValueType string
	Class     string

	IndexMin [3]float32
	IndexMax [3]float32

	VoxelSize   [3]float64
	ActiveCount int64

	FileName    string
	FileVersion uint32
}

// WorldMin returns the lower world-space corner of the index bounding box.
func (g *GridData) WorldMin() [3]float32 {
	var out [3]float32
	for i := 0; i < 3; i++ {
		out[i] = g.IndexMin[i] * float32(g.VoxelSize[i])
	}
	return out
}

// WorldMax returns the upper world-space corner of the index bounding box.
func (g *GridData) WorldMax() [3]float32 {
	var out [3]float32
	for i := 0; i < 3; i++ {
		out[i] = g.IndexMax[i] * float32(g.VoxelSize[i])
	}
	return out
}

// GnomonScale sizes the axis gnomon relative to the grid.
func (g *GridData) GnomonScale() float32 {
	min, max := g.WorldMin(), g.WorldMax()
	var largest float32
	for i := 0; i < 3; i++ {
		if d := max[i] - min[i]; d > largest {
			largest = d
		}
	}
	if largest == 0 {
		return 1
	}
	return largest * 0.25
}

// Dims returns the active bounding box extent in voxels per axis.
func (g *GridData) Dims() [3]int64 {
	var out [3]int64
	for i := 0; i < 3; i++ {
		out[i] = int64(g.IndexMax[i]-g.IndexMin[i]) + 1
	}
	return out
}

// InfoStrings formats the descriptor for the info overlay and window
// title, one line per field.
func (g *GridData) InfoStrings() []string {
	d := g.Dims()
	lines := []string{
		fmt.Sprintf("name: %s", g.Name),
		fmt.Sprintf("value type: %s", g.ValueType),
		fmt.Sprintf("class: %s", g.Class),
		fmt.Sprintf("dim: %d x %d x %d", d[0], d[1], d[2]),
		fmt.Sprintf("voxel size: %g", g.VoxelSize[0]),
	}
	if g.ActiveCount > 0 {
		lines = append(lines, fmt.Sprintf("active voxels: %d", g.ActiveCount))
	}
	return lines
}

func (g *GridData) String() string {
	return strings.Join(g.InfoStrings(), ", ")
}

// readVDBHeader validates the magic number and returns the file format
// version.
func readVDBHeader(r io.Reader) (uint32, error) {
	var magic int64
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return 0, fmt.Errorf("reading magic: %w", err)
	}
	if magic != vdbMagic {
		return 0, fmt.Errorf("not an OpenVDB file (magic %#x)", magic)
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return 0, fmt.Errorf("reading file version: %w", err)
	}
	return version, nil
}

// LoadGrids validates each file's header and builds one display
// descriptor per file. Grid payloads are not decoded; the descriptor
// carries a unit-cube placeholder bound scaled by a nominal voxel size
// so every render module has geometry to build from.
func LoadGrids(paths []string) ([]*GridData, error) {
	var grids []*GridData
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		version, err := readVDBHeader(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		grids = append(grids, &GridData{
			Name:        name,
			ValueType:   "float",
			Class:       "unknown",
			IndexMin:    [3]float32{-50, -50, -50},
			IndexMax:    [3]float32{50, 50, 50},
			VoxelSize:   [3]float64{0.1, 0.1, 0.1},
			FileName:    path,
			FileVersion: version,
		})
	}
	if len(grids) == 0 {
		return nil, fmt.Errorf("no grids loaded")
	}
	return grids, nil
}
