// Package graph assembles archived messages into a discussion graph with
// typed edges and groups them into patch families.
package graph

import (
	"sort"
	"time"

	"lkml/mergetrace/internal/archive"
	"lkml/mergetrace/internal/signature"
)

// EdgeKind distinguishes the edge semantics carried by the graph
type EdgeKind string

const (
	// EdgeReply points from a message to the message it replies to.
	EdgeReply EdgeKind = "reply"
	// EdgeRevision points from one posting of a patch to the next one.
	EdgeRevision EdgeKind = "revision"
	// EdgeDiscussion points from a message without reply link to the
	// nearest earlier message of its thread.
	EdgeDiscussion EdgeKind = "discussion"
)

// EdgeKinds lists every kind in report order
var EdgeKinds = []EdgeKind{EdgeReply, EdgeRevision, EdgeDiscussion}

// Edge is a directed, typed edge between two message IDs
type Edge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Kind EdgeKind `json:"kind"`
}

// Node is a message plus its derived signature
type Node struct {
	Message   archive.Message     `json:"message"`
	Signature signature.Signature `json:"signature"`
	Order     int                 `json:"order"` // position in the input
}

// ID returns the message ID
func (n *Node) ID() string { return n.Message.ID }

// BuildStats counts what Build skipped
type BuildStats struct {
	Input             int `json:"input"`
	Duplicates        int `json:"duplicates"`
	MissingID         int `json:"missing_id"`
	UnresolvedReplies int `json:"unresolved_replies"`
	RejectedReplies   int `json:"rejected_replies"`
}

// DiscussionGraph holds messages keyed by ID with precomputed adjacency.
// Families are indexed by canonical title.
type DiscussionGraph struct {
	Nodes  map[string]*Node
	Edges  []Edge
	Adj    map[string][]string // undirected
	OutAdj map[string][]string // directed: from -> to
	InAdj  map[string][]string // directed: to -> from
	Stats  BuildStats

	parent   map[string]string
	families map[string]*Family
	titles   []string // family titles in first-seen order
	order    []string
}

func newGraph() *DiscussionGraph {
	return &DiscussionGraph{
		Nodes:    make(map[string]*Node),
		Adj:      make(map[string][]string),
		OutAdj:   make(map[string][]string),
		InAdj:    make(map[string][]string),
		parent:   make(map[string]string),
		families: make(map[string]*Family),
	}
}

func (g *DiscussionGraph) addEdge(from, to string, kind EdgeKind) {
	g.Edges = append(g.Edges, Edge{From: from, To: to, Kind: kind})
	g.Adj[from] = append(g.Adj[from], to)
	g.Adj[to] = append(g.Adj[to], from)
	g.OutAdj[from] = append(g.OutAdj[from], to)
	g.InAdj[to] = append(g.InAdj[to], from)
	if kind == EdgeReply {
		g.parent[from] = to
	}
}

// Build assembles the graph. Malformed links (unknown parent, self reply,
// reply to a later message, reply cycles) are dropped and counted in Stats.
// The first occurrence of a duplicated message ID wins.
func Build(messages []archive.Message) *DiscussionGraph {
	g := newGraph()
	g.Stats.Input = len(messages)

	for _, m := range messages {
		if m.ID == "" {
			g.Stats.MissingID++
			continue
		}
		if _, dup := g.Nodes[m.ID]; dup {
			g.Stats.Duplicates++
			continue
		}
		n := &Node{Message: m, Signature: signature.Extract(m.Subject), Order: len(g.order)}
		g.Nodes[m.ID] = n
		g.Adj[m.ID] = nil
		g.OutAdj[m.ID] = nil
		g.InAdj[m.ID] = nil
		g.order = append(g.order, m.ID)
	}

	g.linkReplies()
	g.linkRevisions()
	g.linkThreads()
	return g
}

func (g *DiscussionGraph) linkReplies() {
	for _, id := range g.order {
		n := g.Nodes[id]
		pid := n.Message.ReplyToID
		if pid == "" {
			continue
		}
		p, ok := g.Nodes[pid]
		if !ok {
			g.Stats.UnresolvedReplies++
			continue
		}
		if pid == id || p.Message.Date.After(n.Message.Date) || g.reaches(pid, id) {
			g.Stats.RejectedReplies++
			continue
		}
		g.addEdge(id, pid, EdgeReply)
	}
}

// reaches reports whether walking reply parents from start arrives at target.
func (g *DiscussionGraph) reaches(start, target string) bool {
	seen := make(map[string]bool)
	for cur := start; cur != ""; cur = g.parent[cur] {
		if cur == target {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
	}
	return false
}

func (g *DiscussionGraph) linkRevisions() {
	for _, id := range g.order {
		n := g.Nodes[id]
		f, ok := g.families[n.Signature.Title]
		if !ok {
			f = &Family{Title: n.Signature.Title}
			g.families[f.Title] = f
			g.titles = append(g.titles, f.Title)
		}
		f.Members = append(f.Members, n)
	}
	for _, title := range g.titles {
		f := g.families[title]
		f.finalize()
		for i := 1; i < len(f.Revisions); i++ {
			g.addEdge(f.Revisions[i-1].ID(), f.Revisions[i].ID(), EdgeRevision)
		}
	}
}

func (g *DiscussionGraph) linkThreads() {
	threads := make(map[string][]*Node)
	var threadIDs []string
	for _, id := range g.order {
		n := g.Nodes[id]
		tid := n.Message.ThreadID
		if tid == "" {
			continue
		}
		if _, ok := threads[tid]; !ok {
			threadIDs = append(threadIDs, tid)
		}
		threads[tid] = append(threads[tid], n)
	}
	for _, tid := range threadIDs {
		members := threads[tid]
		sort.SliceStable(members, func(i, j int) bool {
			return chronological(members[i], members[j])
		})
		for i := 1; i < len(members); i++ {
			if _, replied := g.parent[members[i].ID()]; replied {
				continue
			}
			g.addEdge(members[i].ID(), members[i-1].ID(), EdgeDiscussion)
		}
	}
}

func chronological(a, b *Node) bool {
	if !a.Message.Date.Equal(b.Message.Date) {
		return a.Message.Date.Before(b.Message.Date)
	}
	return a.Order < b.Order
}

// NodeIDs returns all message IDs sorted
func (g *DiscussionGraph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ReplyParent returns the accepted reply parent of id.
func (g *DiscussionGraph) ReplyParent(id string) (string, bool) {
	p, ok := g.parent[id]
	return p, ok
}

// EdgesOfKind returns the edges of one kind in insertion order
func (g *DiscussionGraph) EdgesOfKind(kind EdgeKind) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Family looks up a patch family by canonical title.
func (g *DiscussionGraph) Family(title string) (*Family, bool) {
	f, ok := g.families[title]
	return f, ok
}

// FamilyOf returns the family the message belongs to.
func (g *DiscussionGraph) FamilyOf(id string) (*Family, bool) {
	n, ok := g.Nodes[id]
	if !ok {
		return nil, false
	}
	return g.Family(n.Signature.Title)
}

// Families returns every family ordered by earliest message, then title.
func (g *DiscussionGraph) Families() []*Family {
	out := make([]*Family, 0, len(g.families))
	for _, f := range g.families {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Earliest.Equal(out[j].Earliest) {
			return out[i].Earliest.Before(out[j].Earliest)
		}
		return out[i].Title < out[j].Title
	})
	return out
}

// Newest returns the latest message date in the graph
func (g *DiscussionGraph) Newest() time.Time {
	var newest time.Time
	for _, n := range g.Nodes {
		if n.Message.Date.After(newest) {
			newest = n.Message.Date
		}
	}
	return newest
}
