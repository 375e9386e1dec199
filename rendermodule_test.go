package vdbview

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testGrid() *GridData {
	return &GridData{
		IndexMin:  [3]float32{-50, -50, -50},
		IndexMax:  [3]float32{50, 50, 50},
		VoxelSize: [3]float64{0.1, 0.1, 0.1},
	}
}

func TestWireBoxEdgeCount(t *testing.T) {
	verts := appendWireBox(nil, [3]float32{0, 0, 0}, [3]float32{1, 1, 1}, 1, 1, 1)
	// 12 edges, 2 vertices each, 6 floats per vertex.
	assert.Len(t, verts, 12*2*6)
}

func TestTreeTopologyGeometryNests(t *testing.T) {
	verts := buildTreeTopologyGeometry(testGrid())
	assert.Len(t, verts, len(treeLevelColors)*12*2*6)
}

func TestSurfaceMeshGeometryIsClosed(t *testing.T) {
	verts, indices := buildSurfaceMeshGeometry(testGrid())
	assert.Len(t, verts, 8*6)
	assert.Len(t, indices, 36)
	for _, idx := range indices {
		assert.Less(t, idx, uint32(8))
	}
}

func TestGnomonGeometryAxes(t *testing.T) {
	verts := buildGnomonGeometry(2)
	assert.Len(t, verts, 6*6)
	// The x axis endpoint carries the scale.
	assert.Equal(t, float32(2), verts[6])
}

func TestModuleKindStrings(t *testing.T) {
	assert.Equal(t, "tree topology", ModuleTreeTopology.String())
	assert.Equal(t, "gnomon", ModuleGnomon.String())
	assert.Equal(t, 3, ToggleableModuleCount)
}

func TestRecordDrawOnEmptyModuleIsNoOp(t *testing.T) {
	m := &RenderModule{Kind: ModuleVoxelPoints}
	assert.NotPanics(t, func() { m.RecordDraw(&CommandBuffer{}) })
	m.Destroy()
	var nilModule *RenderModule
	assert.NotPanics(t, func() { nilModule.Destroy() })
}

func TestFloatBytesLength(t *testing.T) {
	assert.Nil(t, floatBytes(nil))
	assert.Len(t, floatBytes([]float32{1, 2, 3}), 12)
	assert.Len(t, uint32Bytes([]uint32{7}), 4)
}
