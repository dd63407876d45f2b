package graph

// ConnectionCount returns the number of edges touching the node, filtered by
// direction: incoming counts edges where the node is the target, outgoing
// where it is the source, any counts both. An empty direction counts both.
func (s *Snapshot) ConnectionCount(nodeID string, direction Direction) int {
	if s == nil {
		return 0
	}
	count := 0
	for _, e := range s.Edges {
		switch direction {
		case DirectionIncoming:
			if e.TargetID == nodeID {
				count++
			}
		case DirectionOutgoing:
			if e.SourceID == nodeID {
				count++
			}
		default:
			if e.SourceID == nodeID || e.TargetID == nodeID {
				count++
			}
		}
	}
	return count
}

// Children returns the nodes reachable from nodeID over exactly one outgoing
// edge. Edges pointing at nodes missing from the snapshot are skipped.
func (s *Snapshot) Children(nodeID string) []*Node {
	if s == nil {
		return nil
	}
	var children []*Node
	for _, e := range s.Edges {
		if e.SourceID != nodeID {
			continue
		}
		if child := s.Node(e.TargetID); child != nil {
			children = append(children, child)
		}
	}
	return children
}

// HasDescendants reports whether nodeID has at least one strict descendant
// reachable via outgoing edges. Cheaper than Descendants when only existence
// matters: any outgoing edge to a different known node is a descendant, and
// a self-loop never is.
func (s *Snapshot) HasDescendants(nodeID string) bool {
	if s == nil {
		return false
	}
	for _, e := range s.Edges {
		if e.SourceID == nodeID && e.TargetID != nodeID && s.Node(e.TargetID) != nil {
			return true
		}
	}
	return false
}

// Descendants returns all strict descendants of nodeID reachable via
// outgoing edges, breadth-first. Nodes are marked visited before their
// neighbors are expanded, so cyclic graphs terminate. The start node is
// always excluded, even when a cycle leads back to it.
func (s *Snapshot) Descendants(nodeID string) []*Node {
	if s == nil {
		return nil
	}

	// Adjacency once, so traversal is O(V+E) rather than rescanning edges
	// per queue entry.
	adjacency := make(map[string][]string)
	for _, e := range s.Edges {
		adjacency[e.SourceID] = append(adjacency[e.SourceID], e.TargetID)
	}

	visited := map[string]bool{nodeID: true}
	queue := append([]string(nil), adjacency[nodeID]...)
	var result []*Node

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true

		if node := s.Node(id); node != nil {
			result = append(result, node)
		}
		queue = append(queue, adjacency[id]...)
	}

	return result
}
