package lollipop

import (
	"math"
)

// NodeType distinguishes single variants from merged clusters.
type NodeType string

const (
	NodeVariant NodeType = "variant"
	NodeCluster NodeType = "cluster"
)

// Node is one marker of a laid-out variants track: either a single variant
// or a cluster standing in for two or more of them.
type Node struct {
	Type     NodeType          `json:"type"`
	ID       string            `json:"id"`
	Pos      float64           `json:"pos"`
	ViewPos  int               `json:"viewPos"`
	Size     float64           `json:"size"`
	Offset   float64           `json:"offset"`
	Exploded bool              `json:"exploded,omitempty"`
	Variants []PreparedVariant `json:"variants,omitempty"`
	Children []FanChild        `json:"children,omitempty"`
}

// X is the rendered horizontal centre of the node.
func (n *Node) X() float64 { return float64(n.ViewPos) + n.Offset }

// HalfSize is the horizontal half extent used for collision checks. An
// exploded cluster reserves room for its fanned children.
func (n *Node) HalfSize(explodedFactor float64) float64 {
	if n.Type == NodeCluster && n.Exploded {
		return n.Size * explodedFactor
	}
	return n.Size / 2
}

// Count returns how many variants the node stands for.
func (n *Node) Count() int {
	if n.Type == NodeCluster {
		return len(n.Variants)
	}
	return 1
}

// ClusterOptions parameterizes a clustering pass.
type ClusterOptions struct {
	MarkerSize    float64
	Factor        float64
	FactorStep    float64
	MaxRetries    int
	Padding       float64
	Width         float64
	MaxSizeFactor float64
}

// ClusterResult is the outcome of Cluster.
type ClusterResult struct {
	Nodes    []*Node
	Factor   float64
	Attempts int
}

// Cluster merges variants that would overlap in view space. variants must be
// sorted by position; place maps a protein position to a view pixel.
//
// The pass is retried with a coarser factor until the nodes fit side by side
// on the canvas, so that collision resolution has a feasible target.
func Cluster(variants []PreparedVariant, opts ClusterOptions, place func(float64) (int, error)) (*ClusterResult, error) {
	factor := opts.Factor
	var nodes []*Node
	for attempt := 1; ; attempt++ {
		var err error
		nodes, err = clusterPass(variants, factor, opts, place)
		if err != nil {
			return nil, err
		}
		total := TotalWidth(nodes, opts.Padding)
		if total < opts.Width {
			return &ClusterResult{Nodes: nodes, Factor: factor, Attempts: attempt}, nil
		}
		if len(nodes) <= 1 || attempt > opts.MaxRetries {
			return nil, &LayoutInfeasibleError{
				Stage:      StageClustering,
				Attempts:   attempt,
				Width:      opts.Width,
				NodeCount:  len(nodes),
				TotalWidth: total,
			}
		}
		factor += opts.FactorStep
	}
}

// TotalWidth is the sum of node diameters plus the padding between them.
func TotalWidth(nodes []*Node, padding float64) float64 {
	if len(nodes) == 0 {
		return 0
	}
	total := float64(len(nodes)-1) * padding
	for _, n := range nodes {
		total += n.Size
	}
	return total
}

func clusterPass(variants []PreparedVariant, factor float64, opts ClusterOptions, place func(float64) (int, error)) ([]*Node, error) {
	threshold := opts.MarkerSize * factor
	nodes := make([]*Node, 0, len(variants))
	var pool []PreparedVariant
	var poolViewFramePos float64

	flush := func() error {
		if len(pool) == 0 {
			return nil
		}
		n, err := poolNode(pool, opts, place)
		if err != nil {
			return err
		}
		nodes = append(nodes, n)
		pool = nil
		return nil
	}

	for _, v := range variants {
		switch {
		case len(pool) == 0:
			pool = []PreparedVariant{v}
			poolViewFramePos = float64(v.ViewPos)
		case float64(v.ViewPos) < poolViewFramePos+threshold:
			pool = append(pool, v)
			// running midpoint, not the arithmetic mean of the pool
			poolViewFramePos = (poolViewFramePos + float64(v.ViewPos)) / 2
		default:
			if err := flush(); err != nil {
				return nil, err
			}
			pool = []PreparedVariant{v}
			poolViewFramePos = float64(v.ViewPos)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return nodes, nil
}

func poolNode(pool []PreparedVariant, opts ClusterOptions, place func(float64) (int, error)) (*Node, error) {
	if len(pool) == 1 {
		v := pool[0]
		return &Node{
			Type:    NodeVariant,
			ID:      v.ID,
			Pos:     float64(v.Pos),
			ViewPos: v.ViewPos,
			Size:    v.Size,
		}, nil
	}

	var sum float64
	for _, v := range pool {
		sum += float64(v.Pos)
	}
	mean := sum / float64(len(pool))
	viewPos, err := place(mean)
	if err != nil {
		return nil, err
	}
	members := make([]PreparedVariant, len(pool))
	copy(members, pool)
	return &Node{
		Type:     NodeCluster,
		ID:       pool[0].ID + "-" + pool[len(pool)-1].ID,
		Pos:      mean,
		ViewPos:  viewPos,
		Size:     clusterSize(opts.MarkerSize, len(pool), opts.MaxSizeFactor),
		Variants: members,
	}, nil
}

// clusterSize grows logarithmically with the member count and is capped.
func clusterSize(base float64, members int, maxFactor float64) float64 {
	size := base * (1 + math.Log(float64(members)))
	if limit := base * maxFactor; size > limit {
		return limit
	}
	return size
}
