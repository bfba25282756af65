package row

// GetDimensions probes an n-dimensional array (arrays nested n deep) and
// returns the extent of each dimension, taken along the leftmost path of
// non-null sub-arrays.
//
// It returns nil when no path reaches the last dimension. Only the first
// non-null child of the outer array is followed, so one all-null level
// under it makes the whole array decode as null rather than as an array of
// nulls. An empty outer array reports all-zero extents.
func GetDimensions(a *Array, n int) ([]int, error) {
	if a == nil || n < 1 {
		return nil, nil
	}
	dims := make([]int, n)
	if a.NumElements() == 0 {
		return dims, nil
	}
	ok, err := probeDims(a, 0, dims)
	if err != nil || !ok {
		return nil, err
	}
	return dims, nil
}

func probeDims(a *Array, depth int, dims []int) (bool, error) {
	dims[depth] = a.NumElements()
	if depth == len(dims)-1 {
		return true, nil
	}
	for i := 0; i < a.NumElements(); i++ {
		if a.IsNullAt(i) {
			continue
		}
		child, err := a.GetArray(i)
		if err != nil {
			return false, err
		}
		ok, err := probeDims(child, depth+1, dims)
		if err != nil || ok {
			return ok, err
		}
		if depth == 0 {
			return false, nil
		}
	}
	return false, nil
}
