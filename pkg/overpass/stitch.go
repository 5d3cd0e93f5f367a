package overpass

// joinPolylines merges two polylines sharing an endpoint into one,
// reversing the incoming fragment when needed. Returns nil when no
// endpoints match.
func joinPolylines(acc, next []Node) []Node {
	if len(acc) == 0 || len(next) == 0 {
		return nil
	}

	accFirst, accLast := acc[0], acc[len(acc)-1]
	nextFirst, nextLast := next[0], next[len(next)-1]

	switch {
	case nextFirst.Same(accFirst):
		return append(reversed(next), acc...)
	case nextFirst.Same(accLast):
		return append(acc, next...)
	case nextLast.Same(accFirst):
		return append(copyNodes(next), acc...)
	case nextLast.Same(accLast):
		return append(acc, reversed(next)...)
	}

	return nil
}

// Stitch reconstructs polylines from way fragments by greedy endpoint
// matching. It is single-pass: a fragment that matches neither end of the
// accumulating polyline flushes it and starts a new one, so disordered
// input may yield more polylines than a minimal reconstruction would.
// Output polylines are not guaranteed closed.
func Stitch(ways []Way) [][]Node {
	var polylines [][]Node
	var acc []Node

	for _, way := range ways {
		if len(way.Nodes) == 0 {
			continue
		}
		if len(acc) == 0 {
			acc = copyNodes(way.Nodes)
			continue
		}

		if joined := joinPolylines(acc, way.Nodes); joined != nil {
			acc = joined
		} else {
			polylines = append(polylines, acc)
			acc = copyNodes(way.Nodes)
		}
	}

	if len(acc) > 0 {
		polylines = append(polylines, acc)
	}

	return polylines
}

func reversed(nodes []Node) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[len(nodes)-1-i] = n
	}
	return out
}

func copyNodes(nodes []Node) []Node {
	out := make([]Node, len(nodes))
	copy(out, nodes)
	return out
}
