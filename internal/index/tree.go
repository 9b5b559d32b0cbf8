package index

// Depth returns the number of index levels above the data blocks needed
// to address n blocks under the given fanout: ceil(log_fanout(n)),
// clamped to at least 1 for any n > 0 (spec.md §4.5, §8: "the depth of the
// index tree equals ceil(log_FANOUT(max(active,allocated)))").
func Depth(n int64, fanout int) int {
	if n <= 1 {
		return 1
	}
	depth := 0
	cap := int64(1)
	for cap < n {
		cap *= int64(fanout)
		depth++
	}
	if depth == 0 {
		depth = 1
	}
	return depth
}

// Path is the vector of lookup nodes from level 1 (pointing at data) up to
// the root, together with each node's disk offset. Path.Nodes[0] is the
// level-1 node; Path.Nodes[len-1] is the root. This backs both the read
// tree and the append tree of spec.md §4.5.
type Path struct {
	Nodes []*Node
	Offs  []int64
}

// Len reports the number of levels currently held.
func (p *Path) Len() int { return len(p.Nodes) }

// RootOff returns the root node's offset, or 0 if the path is empty.
func (p *Path) RootOff() int64 {
	if len(p.Offs) == 0 {
		return 0
	}
	return p.Offs[len(p.Offs)-1]
}

// Reset empties the path, e.g. when a read tree is invalidated.
func (p *Path) Reset() {
	p.Nodes = nil
	p.Offs = nil
}
