package vdbview

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeVDBStub(t *testing.T, dir, name string, magic int64) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, magic))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(224)))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestLoadGridsAcceptsValidHeader(t *testing.T) {
	path := writeVDBStub(t, t.TempDir(), "sphere.vdb", vdbMagic)

	grids, err := LoadGrids([]string{path})
	require.NoError(t, err)
	require.Len(t, grids, 1)
	assert.Equal(t, "sphere", grids[0].Name)
	assert.EqualValues(t, 224, grids[0].FileVersion)
}

func TestLoadGridsRejectsBadMagic(t *testing.T) {
	path := writeVDBStub(t, t.TempDir(), "broken.vdb", 0x1234)

	_, err := LoadGrids([]string{path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an OpenVDB file")
}

func TestLoadGridsRejectsMissingFile(t *testing.T) {
	_, err := LoadGrids([]string{filepath.Join(t.TempDir(), "absent.vdb")})
	assert.Error(t, err)
}

func TestGridDims(t *testing.T) {
	g := &GridData{
		IndexMin:  [3]float32{-50, -50, -50},
		IndexMax:  [3]float32{50, 50, 50},
		VoxelSize: [3]float64{0.1, 0.1, 0.1},
	}
	d := g.Dims()
	assert.EqualValues(t, 101, d[0])

	min, max := g.WorldMin(), g.WorldMax()
	assert.InDelta(t, -5, min[0], 1e-5)
	assert.InDelta(t, 5, max[2], 1e-5)
	assert.Greater(t, g.GnomonScale(), float32(0))
}

func TestGridInfoStrings(t *testing.T) {
	g := &GridData{
		Name:        "density",
		ValueType:   "float",
		Class:       "fog volume",
		IndexMin:    [3]float32{0, 0, 0},
		IndexMax:    [3]float32{9, 9, 9},
		VoxelSize:   [3]float64{0.5, 0.5, 0.5},
		ActiveCount: 1000,
	}
	lines := g.InfoStrings()
	assert.Contains(t, lines[0], "density")
	assert.Contains(t, lines[3], "10 x 10 x 10")
	assert.Contains(t, lines[len(lines)-1], "1000")
}
