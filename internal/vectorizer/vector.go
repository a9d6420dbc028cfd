package vectorizer

// FeatureVector is a sparse vector over the vocabulary. Indices are strictly
// increasing and Values is parallel to Indices.
type FeatureVector struct {
	Dim     int
	Indices []int
	Values  []float64
}

// NNZ is the number of stored entries.
func (fv FeatureVector) NNZ() int { return len(fv.Indices) }

// IsZero reports whether every component is zero.
func (fv FeatureVector) IsZero() bool {
	for _, v := range fv.Values {
		if v != 0 {
			return false
		}
	}
	return true
}

// Dot computes the inner product with a dense vector of length Dim.
func (fv FeatureVector) Dot(dense []float64) float64 {
	var sum float64
	for k, idx := range fv.Indices {
		sum += fv.Values[k] * dense[idx]
	}
	return sum
}

// At returns the component at index i.
func (fv FeatureVector) At(i int) float64 {
	lo, hi := 0, len(fv.Indices)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case fv.Indices[mid] == i:
			return fv.Values[mid]
		case fv.Indices[mid] < i:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return 0
}

// Dense expands the vector.
func (fv FeatureVector) Dense() []float64 {
	out := make([]float64, fv.Dim)
	for k, idx := range fv.Indices {
		out[idx] = fv.Values[k]
	}
	return out
}
