package taskgraph

// CriticalPath returns the longest chain of remaining work, summed in story
// points, over incomplete tasks. Completed tasks contribute nothing and break
// chains. Returns 0 when every task is complete.
//
// Tasks are visited in ascending index order, which is topological, so each
// dependency's value is final by the time it is read. O(V+E).
func (g *Graph) CriticalPath() int {
	n := len(g.tasks)
	// -1 marks "no entry": the task is completed.
	cp := make([]int, n)
	best := 0
	for i := 0; i < n; i++ {
		t := &g.tasks[i]
		if t.Completed {
			cp[i] = -1
			continue
		}
		longest := 0
		for _, d := range t.Dependencies {
			if cp[d] > longest {
				longest = cp[d]
			}
		}
		cp[i] = t.StoryPoints + longest
		if cp[i] > best {
			best = cp[i]
		}
	}
	return best
}

// CriticalChain returns the task indices along one longest remaining chain,
// ordered from the first task to the last. Used for rendering.
func (g *Graph) CriticalChain() []int {
	n := len(g.tasks)
	cp := make([]int, n)
	prev := make([]int, n)
	end, best := -1, 0
	for i := 0; i < n; i++ {
		t := &g.tasks[i]
		prev[i] = -1
		if t.Completed {
			cp[i] = -1
			continue
		}
		longest := 0
		for _, d := range t.Dependencies {
			if cp[d] > longest {
				longest = cp[d]
				prev[i] = d
			}
		}
		cp[i] = t.StoryPoints + longest
		if cp[i] > best {
			best, end = cp[i], i
		}
	}

	var chain []int
	for i := end; i >= 0; i = prev[i] {
		chain = append(chain, i)
	}
	for l, r := 0, len(chain)-1; l < r; l, r = l+1, r-1 {
		chain[l], chain[r] = chain[r], chain[l]
	}
	return chain
}
