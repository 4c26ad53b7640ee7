package math

// GenerateNormals accumulates face normals per vertex and normalizes them.
// Vertices not referenced by any triangle keep a zero normal.
func GenerateNormals(positions []Vec3, indices []uint32) []Vec3 {
	normals := make([]Vec3, len(positions))
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		if int(i0) >= len(positions) || int(i1) >= len(positions) || int(i2) >= len(positions) {
			continue
		}
		edge1 := positions[i1].Sub(positions[i0])
		edge2 := positions[i2].Sub(positions[i0])
		n := edge1.Cross(edge2)

		normals[i0] = normals[i0].Add(n)
		normals[i1] = normals[i1].Add(n)
		normals[i2] = normals[i2].Add(n)
	}
	for i := range normals {
		normals[i] = normals[i].Normalized()
	}
	return normals
}
