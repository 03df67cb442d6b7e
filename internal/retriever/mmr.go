package retriever

import "sort"

// maximalMarginalRelevance selects k candidate indices balancing relevance
// to the query against similarity to already-selected documents:
//
//	score = lambda*relevance - (1-lambda)*maxSimToSelected
//
// All vectors must be L2-normalized so dot products are cosine similarities.
// Selection is deterministic: candidates are considered in relevance order
// and ties keep the earlier candidate.
func maximalMarginalRelevance(queryVec []float32, docVecs [][]float32, k int, lambda float64) []int {
	n := len(docVecs)
	if n == 0 || k <= 0 {
		return nil
	}
	if k > n {
		k = n
	}

	relevance := make([]float64, n)
	for i, vec := range docVecs {
		relevance[i] = dot(queryVec, vec)
	}

	// Candidate order: by relevance, stable on the original index.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return relevance[order[a]] > relevance[order[b]]
	})

	selected := make([]int, 0, k)
	selected = append(selected, order[0])
	remaining := order[1:]

	for len(selected) < k && len(remaining) > 0 {
		bestPos := -1
		bestScore := 0.0
		for pos, idx := range remaining {
			maxSim := 0.0
			for si, sel := range selected {
				sim := dot(docVecs[idx], docVecs[sel])
				if si == 0 || sim > maxSim {
					maxSim = sim
				}
			}
			score := lambda*relevance[idx] - (1-lambda)*maxSim
			if bestPos < 0 || score > bestScore {
				bestPos = pos
				bestScore = score
			}
		}
		selected = append(selected, remaining[bestPos])
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	return selected
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
