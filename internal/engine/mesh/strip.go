package mesh

// StripIndexCount returns the index count of a w x h strip:
// one index pair per column for each row band, plus two degenerate
// indices between consecutive bands.
func StripIndexCount(w, h int) int {
	return (h-1)*2*w + (h-2)*2
}

// StripIndices generates a single triangle strip covering a w x h vertex
// grid. Row bands are stitched with degenerate (zero-area) triangles by
// repeating the last index of one band and the first index of the next, so
// the whole grid draws in one call without primitive restart.
func StripIndices(w, h int) ([]uint32, error) {
	if err := checkGrid(w, h); err != nil {
		return nil, err
	}

	indices := make([]uint32, 0, StripIndexCount(w, h))
	for y := 0; y < h-1; y++ {
		if y > 0 {
			indices = append(indices, uint32(y*w))
		}
		for x := 0; x < w; x++ {
			indices = append(indices,
				uint32(y*w+x),
				uint32((y+1)*w+x),
			)
		}
		if y < h-2 {
			indices = append(indices, uint32((y+1)*w+w-1))
		}
	}
	return indices, nil
}
