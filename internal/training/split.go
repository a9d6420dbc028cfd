package training

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
)

// StratifiedSplit partitions sample indices into train and test sets so that
// each class keeps its proportion. The same labels, fraction and seed always
// produce the same split. Both returned slices are sorted.
func StratifiedSplit(labels []int, testFraction float64, seed uint64) (train, test []int, err error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction must be in (0, 1), got %v", testFraction)
	}

	byClass := make(map[int][]int)
	for i, y := range labels {
		byClass[y] = append(byClass[y], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for _, c := range classes {
		idx := byClass[c]
		if len(idx) < 2 {
			return nil, nil, fmt.Errorf("class %d has %d sample(s); stratified split needs at least 2", c, len(idx))
		}
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		nTest := int(math.Round(float64(len(idx)) * testFraction))
		nTest = min(max(nTest, 1), len(idx)-1)
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}

	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

func pick[T any](items []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = items[j]
	}
	return out
}
