package vdbview

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// ModuleKind names one of the fixed render layers a frame is composed of.
// The set is closed; recording dispatches on the kind directly and the
// frame cache indexes its visibility and recorded bitsets by it.
type ModuleKind int

const (
	// ModuleTreeTopology draws the grid's internal-node bounding boxes
	// as colored wireframes, one color per tree level.
	ModuleTreeTopology ModuleKind = iota
	// ModuleSurfaceMesh draws a surface extracted over the grid's active
	// voxels.
	ModuleSurfaceMesh
	// ModuleVoxelPoints draws active voxel centers as a point cloud.
	ModuleVoxelPoints
	// ModuleGnomon draws the viewport axis gnomon. It is not toggleable
	// and records with the setup layer.
	ModuleGnomon

	// ToggleableModuleCount counts the kinds that can be shown and
	// hidden independently. Gnomon is excluded.
	ToggleableModuleCount = int(ModuleGnomon)
)

func (k ModuleKind) String() string {
	switch k {
	case ModuleTreeTopology:
		return "tree topology"
	case ModuleSurfaceMesh:
		return "surface mesh"
	case ModuleVoxelPoints:
		return "voxel points"
	case ModuleGnomon:
		return "gnomon"
	}
	return fmt.Sprintf("module kind %d", int(k))
}

// RenderModule holds one layer's device-local geometry and the pipeline
// state needed to draw it. Geometry lives in plain device-local buffers;
// the staging side used to fill them is dropped after upload.
type RenderModule struct {
	Kind ModuleKind

	Vertices    Buffer
	VertexCount uint32
	Indices     Buffer
	IndexCount  uint32

	Topology vk.PrimitiveTopology

	VKPipeline       vk.Pipeline
	VKPipelineLayout vk.PipelineLayout
}

// vertexStride is the byte size of one interleaved position+color vertex.
const vertexStride = 6 * 4

// appendVertex appends one position+color vertex to a packed float32 slice.
func appendVertex(dst []float32, x, y, z, r, g, b float32) []float32 {
	return append(dst, x, y, z, r, g, b)
}

// appendWireBox appends the 12 edges of an axis-aligned box as line-list
// vertices.
func appendWireBox(dst []float32, min, max [3]float32, r, g, b float32) []float32 {
	corner := func(i int) (float32, float32, float32) {
		x, y, z := min[0], min[1], min[2]
		if i&1 != 0 {
			x = max[0]
		}
		if i&2 != 0 {
			y = max[1]
		}
		if i&4 != 0 {
			z = max[2]
		}
		return x, y, z
	}
	edges := [12][2]int{
		{0, 1}, {2, 3}, {4, 5}, {6, 7},
		{0, 2}, {1, 3}, {4, 6}, {5, 7},
		{0, 4}, {1, 5}, {2, 6}, {3, 7},
	}
	for _, e := range edges {
		x, y, z := corner(e[0])
		dst = appendVertex(dst, x, y, z, r, g, b)
		x, y, z = corner(e[1])
		dst = appendVertex(dst, x, y, z, r, g, b)
	}
	return dst
}

// treeLevelColors follows the conventional per-level node-box palette.
var treeLevelColors = [4][3]float32{
	{0.045, 0.045, 0.045}, // root
	{0.043, 0.330, 0.041}, // internal high
	{0.871, 0.394, 0.019}, // internal low
	{0.006, 0.280, 0.625}, // leaf
}

// buildTreeTopologyGeometry emits nested wireframe boxes approximating the
// grid's node hierarchy from its index-space bounding box.
func buildTreeTopologyGeometry(g *GridData) []float32 {
	var verts []float32
	min, max := g.IndexMin, g.IndexMax
	for level := 0; level < len(treeLevelColors); level++ {
		c := treeLevelColors[level]
		verts = appendWireBox(verts, min, max, c[0], c[1], c[2])
		for i := 0; i < 3; i++ {
			span := (max[i] - min[i]) * 0.5 * 0.5
			center := (max[i] + min[i]) * 0.5
			min[i] = center - span
			max[i] = center + span
		}
	}
	return verts
}

// buildSurfaceMeshGeometry emits the grid's active bounding box as a solid
// triangle-list placeholder surface.
func buildSurfaceMeshGeometry(g *GridData) ([]float32, []uint32) {
	min, max := g.IndexMin, g.IndexMax
	var verts []float32
	for i := 0; i < 8; i++ {
		x, y, z := min[0], min[1], min[2]
		if i&1 != 0 {
			x = max[0]
		}
		if i&2 != 0 {
			y = max[1]
		}
		if i&4 != 0 {
			z = max[2]
		}
		verts = appendVertex(verts, x, y, z, 0.75, 0.63, 0.38)
	}
	indices := []uint32{
		0, 1, 3, 0, 3, 2,
		4, 6, 7, 4, 7, 5,
		0, 4, 5, 0, 5, 1,
		2, 3, 7, 2, 7, 6,
		0, 2, 6, 0, 6, 4,
		1, 5, 7, 1, 7, 3,
	}
	return verts, indices
}

// buildVoxelPointGeometry emits a point at each corner and the center of
// the active bounding box.
func buildVoxelPointGeometry(g *GridData) []float32 {
	min, max := g.IndexMin, g.IndexMax
	var verts []float32
	for i := 0; i < 8; i++ {
		x, y, z := min[0], min[1], min[2]
		if i&1 != 0 {
			x = max[0]
		}
		if i&2 != 0 {
			y = max[1]
		}
		if i&4 != 0 {
			z = max[2]
		}
		verts = appendVertex(verts, x, y, z, 0.9, 0.9, 0.9)
	}
	verts = appendVertex(verts,
		(min[0]+max[0])*0.5, (min[1]+max[1])*0.5, (min[2]+max[2])*0.5,
		0.9, 0.9, 0.9)
	return verts
}

// buildGnomonGeometry emits the three viewport axis lines in the
// conventional red/green/blue coloring.
func buildGnomonGeometry(scale float32) []float32 {
	var verts []float32
	verts = appendVertex(verts, 0, 0, 0, 1, 0, 0)
	verts = appendVertex(verts, scale, 0, 0, 1, 0, 0)
	verts = appendVertex(verts, 0, 0, 0, 0, 1, 0)
	verts = appendVertex(verts, 0, scale, 0, 0, 1, 0)
	verts = appendVertex(verts, 0, 0, 0, 0, 0, 1)
	verts = appendVertex(verts, 0, 0, scale, 0, 0, 1)
	return verts
}

// BuildRenderModule generates geometry for the given kind from the grid
// descriptor, uploads it through a one-shot staged transfer on the scope's
// omni queue, and returns the module holding device-local buffers only.
func BuildRenderModule(scope *RuntimeScope, kind ModuleKind, grid *GridData) (*RenderModule, error) {
	m := &RenderModule{Kind: kind}

	var verts []float32
	var indices []uint32
	switch kind {
	case ModuleTreeTopology:
		verts = buildTreeTopologyGeometry(grid)
		m.Topology = vk.PrimitiveTopologyLineList
	case ModuleSurfaceMesh:
		verts, indices = buildSurfaceMeshGeometry(grid)
		m.Topology = vk.PrimitiveTopologyTriangleList
	case ModuleVoxelPoints:
		verts = buildVoxelPointGeometry(grid)
		m.Topology = vk.PrimitiveTopologyPointList
	case ModuleGnomon:
		verts = buildGnomonGeometry(grid.GnomonScale())
		m.Topology = vk.PrimitiveTopologyLineList
	default:
		return nil, fmt.Errorf("unknown module kind %d", int(kind))
	}

	vbuf, err := uploadGeometry(scope, floatBytes(verts), vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
	if err != nil {
		return nil, fmt.Errorf("uploading %s vertices: %w", kind, err)
	}
	m.Vertices = vbuf
	m.VertexCount = uint32(len(verts) / 6)

	if len(indices) > 0 {
		ibuf, err := uploadGeometry(scope, uint32Bytes(indices), vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit))
		if err != nil {
			m.Vertices.Reset()
			return nil, fmt.Errorf("uploading %s indices: %w", kind, err)
		}
		m.Indices = ibuf
		m.IndexCount = uint32(len(indices))
	}
	return m, nil
}

// uploadGeometry stages data into a fresh device-local buffer, flushes the
// transfer on the omni queue, and drops the staging side.
func uploadGeometry(scope *RuntimeScope, data []byte, usage vk.BufferUsageFlags) (Buffer, error) {
	staged, err := scope.Allocator.CreateUploadStagedBuffer(uint64(len(data)),
		usage|vk.BufferUsageFlags(vk.BufferUsageTransferDstBit))
	if err != nil {
		return Buffer{}, err
	}
	if err := staged.StageData(data); err != nil {
		staged.Reset()
		return Buffer{}, err
	}
	err = staged.UploadNow(scope.Omni,
		vk.PipelineStageFlags(vk.PipelineStageVertexInputBit),
		vk.AccessFlags(vk.AccessVertexAttributeReadBit))
	if err != nil {
		staged.Reset()
		return Buffer{}, err
	}
	return staged.DropStage(), nil
}

// RecordDraw appends this module's bind and draw commands to an open
// command buffer. Without a bound pipeline nothing is drawn; the geometry
// binds are still recorded so the buffer remains submittable.
func (m *RenderModule) RecordDraw(cb *CommandBuffer) {
	if !m.Vertices.IsValid() {
		return
	}
	if m.VKPipeline != vk.NullPipeline {
		vk.CmdBindPipeline(cb.VKCommandBuffer, vk.PipelineBindPointGraphics, m.VKPipeline)
	}
	vk.CmdBindVertexBuffers(cb.VKCommandBuffer, 0, 1,
		[]vk.Buffer{m.Vertices.VKBuffer}, []vk.DeviceSize{0})
	if m.VKPipeline == vk.NullPipeline {
		return
	}
	if m.Indices.IsValid() {
		vk.CmdBindIndexBuffer(cb.VKCommandBuffer, m.Indices.VKBuffer, 0, vk.IndexTypeUint32)
		vk.CmdDrawIndexed(cb.VKCommandBuffer, m.IndexCount, 1, 0, 0, 0)
	} else {
		vk.CmdDraw(cb.VKCommandBuffer, m.VertexCount, 1, 0, 0)
	}
}

// Destroy releases the module's device buffers.
func (m *RenderModule) Destroy() {
	if m == nil {
		return
	}
	m.Vertices.Reset()
	m.Indices.Reset()
}
