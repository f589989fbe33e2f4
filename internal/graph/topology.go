package graph

import "sort"

// HubNode is a message that attracted many direct links
type HubNode struct {
	ID        string `json:"id"`
	Subject   string `json:"subject"`
	Degree    int    `json:"degree"`
	InDegree  int    `json:"in_degree"`
	OutDegree int    `json:"out_degree"`
}

// DegreeBucket is one bucket in the degree histogram
type DegreeBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// ComponentSummary describes one weakly connected component
type ComponentSummary struct {
	Size          int    `json:"size"`
	Families      int    `json:"families"`
	SampleID      string `json:"sample_id"`
	SampleSubject string `json:"sample_subject"`
}

// TopologyReport contains discussion graph statistics
type TopologyReport struct {
	TotalNodes        int                `json:"total_nodes"`
	TotalEdges        int                `json:"total_edges"`
	EdgesByKind       map[EdgeKind]int   `json:"edges_by_kind"`
	Families          int                `json:"families"`
	MultiRevision     int                `json:"multi_revision_families"`
	NumComponents     int                `json:"num_components"`
	LargestComponent  int                `json:"largest_component"`
	SmallestComponent int                `json:"smallest_component"`
	ReplyRoots        int                `json:"reply_roots"`
	OrphanCount       int                `json:"orphan_count"`
	OrphanIDs         []string           `json:"orphan_ids"`
	DegreeHistogram   []DegreeBucket     `json:"degree_histogram"`
	Hubs              []HubNode          `json:"hubs"`
	TopComponents     []ComponentSummary `json:"top_components"`
	Build             BuildStats         `json:"build"`
}

// ComputeTopology analyzes graph topology: components, orphans, degree
// distribution, hubs
func ComputeTopology(g *DiscussionGraph, hubThreshold, topN int) *TopologyReport {
	byKind := make(map[EdgeKind]int, len(EdgeKinds))
	for _, k := range EdgeKinds {
		byKind[k] = 0
	}
	for _, e := range g.Edges {
		byKind[e.Kind]++
	}

	totalNodes := len(g.Nodes)
	if totalNodes == 0 {
		return &TopologyReport{
			EdgesByKind:     byKind,
			DegreeHistogram: defaultHistogram(),
			Build:           g.Stats,
		}
	}

	nodeIDs := g.NodeIDs()
	uf := NewUnionFind(nodeIDs)
	for _, e := range g.Edges {
		uf.Union(e.From, e.To)
	}
	components := uf.Components()
	largest, smallest := 0, totalNodes
	for _, c := range components {
		if len(c) > largest {
			largest = len(c)
		}
		if len(c) < smallest {
			smallest = len(c)
		}
	}

	var summaries []ComponentSummary
	for _, c := range components {
		if len(summaries) >= topN {
			break
		}
		titles := make(map[string]bool)
		sample := g.Nodes[c[0]]
		for _, id := range c {
			n := g.Nodes[id]
			titles[n.Signature.Title] = true
			if chronological(n, sample) {
				sample = n
			}
		}
		summaries = append(summaries, ComponentSummary{
			Size:          len(c),
			Families:      len(titles),
			SampleID:      sample.ID(),
			SampleSubject: sample.Message.Subject,
		})
	}

	var orphans []string
	roots := 0
	buckets := [7]int{}
	var hubs []HubNode
	for _, id := range nodeIDs {
		degree := len(g.Adj[id])
		if degree == 0 {
			orphans = append(orphans, id)
		}
		if _, ok := g.parent[id]; !ok {
			roots++
		}
		buckets[degreeBucket(degree)]++
		if degree > hubThreshold {
			hubs = append(hubs, HubNode{
				ID:        id,
				Subject:   g.Nodes[id].Message.Subject,
				Degree:    degree,
				InDegree:  len(g.InAdj[id]),
				OutDegree: len(g.OutAdj[id]),
			})
		}
	}
	orphanCount := len(orphans)
	if len(orphans) > topN {
		orphans = orphans[:topN]
	}
	histogram := defaultHistogram()
	for i := range histogram {
		histogram[i].Count = buckets[i]
	}
	sort.SliceStable(hubs, func(i, j int) bool { return hubs[i].Degree > hubs[j].Degree })
	if len(hubs) > topN {
		hubs = hubs[:topN]
	}

	multi := 0
	for _, f := range g.families {
		if len(f.Revisions) > 1 {
			multi++
		}
	}

	return &TopologyReport{
		TotalNodes:        totalNodes,
		TotalEdges:        len(g.Edges),
		EdgesByKind:       byKind,
		Families:          len(g.families),
		MultiRevision:     multi,
		NumComponents:     len(components),
		LargestComponent:  largest,
		SmallestComponent: smallest,
		ReplyRoots:        roots,
		OrphanCount:       orphanCount,
		OrphanIDs:         orphans,
		DegreeHistogram:   histogram,
		Hubs:              hubs,
		TopComponents:     summaries,
		Build:             g.Stats,
	}
}

func defaultHistogram() []DegreeBucket {
	return []DegreeBucket{
		{Label: "0"}, {Label: "1"}, {Label: "2-3"},
		{Label: "4-7"}, {Label: "8-15"}, {Label: "16-31"}, {Label: "32+"},
	}
}

func degreeBucket(degree int) int {
	switch {
	case degree == 0:
		return 0
	case degree == 1:
		return 1
	case degree <= 3:
		return 2
	case degree <= 7:
		return 3
	case degree <= 15:
		return 4
	case degree <= 31:
		return 5
	default:
		return 6
	}
}
