package cluster

// DeepCopy returns a structurally independent copy of s.
// No slice or map of the result is shared with s.
func (s *State) DeepCopy() *State {
	if s == nil {
		return nil
	}
	out := &State{Name: s.Name}
	if s.Nodes != nil {
		out.Nodes = make([]Node, len(s.Nodes))
		for i := range s.Nodes {
			out.Nodes[i] = s.Nodes[i].DeepCopy()
		}
	}
	if s.SlurmPartitions != nil {
		out.SlurmPartitions = make([]Partition, len(s.SlurmPartitions))
		for i, p := range s.SlurmPartitions {
			out.SlurmPartitions[i] = p.DeepCopy()
		}
	}
	if s.Jobs != nil {
		out.Jobs = make([]Job, len(s.Jobs))
		for i, j := range s.Jobs {
			out.Jobs[i] = j.DeepCopy()
		}
	}
	return out
}

// DeepCopy returns a copy of n that shares no GPU or HCA storage.
func (n Node) DeepCopy() Node {
	out := n
	if n.GPUs != nil {
		out.GPUs = make([]GPU, len(n.GPUs))
		for i := range n.GPUs {
			out.GPUs[i] = n.GPUs[i].DeepCopy()
		}
	}
	if n.HCAs != nil {
		out.HCAs = make([]HCA, len(n.HCAs))
		for i := range n.HCAs {
			out.HCAs[i] = n.HCAs[i].DeepCopy()
		}
	}
	return out
}

// DeepCopy returns a copy of g with fresh XID and NVLink slices.
func (g GPU) DeepCopy() GPU {
	out := g
	if g.XIDErrors != nil {
		out.XIDErrors = append([]XIDError(nil), g.XIDErrors...)
	}
	if g.NVLinks != nil {
		out.NVLinks = append([]NVLink(nil), g.NVLinks...)
	}
	return out
}

func (h HCA) DeepCopy() HCA {
	out := h
	if h.Ports != nil {
		out.Ports = append([]IBPort(nil), h.Ports...)
	}
	return out
}

func (p Partition) DeepCopy() Partition {
	out := p
	if p.Nodes != nil {
		out.Nodes = append([]string(nil), p.Nodes...)
	}
	return out
}

func (j Job) DeepCopy() Job {
	out := j
	if j.Nodes != nil {
		out.Nodes = append([]string(nil), j.Nodes...)
	}
	return out
}
