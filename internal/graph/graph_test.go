package graph

import (
	"fmt"
	"testing"
	"time"

	"lkml/mergetrace/internal/archive"
)

var base = time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC)

func at(hours int) time.Time { return base.Add(time.Duration(hours) * time.Hour) }

func msg(id, subject string, hours int) archive.Message {
	return archive.Message{ID: id, Subject: subject, Sender: "A <a@example.org>", Date: at(hours)}
}

func reply(id, parent, thread string, hours int) archive.Message {
	m := msg(id, "Re: [PATCH] Fix NULL deref", hours)
	m.ReplyToID = parent
	m.ThreadID = thread
	return m
}

func countKind(g *DiscussionGraph, kind EdgeKind) int {
	return len(g.EdgesOfKind(kind))
}

// quickGraph builds a graph of patch postings chained pairwise by reply
// edges, for topology tests.
func quickGraph(ids []string, replies [][2]string) *DiscussionGraph {
	var msgs []archive.Message
	parents := make(map[string]string)
	for _, r := range replies {
		parents[r[0]] = r[1]
	}
	for i, id := range ids {
		m := msg(id, fmt.Sprintf("[PATCH] change %s", id), i)
		m.ReplyToID = parents[id]
		msgs = append(msgs, m)
	}
	return Build(msgs)
}

// --- Build Tests ---

func TestBuild_RevisionScenario(t *testing.T) {
	g := Build([]archive.Message{
		msg("m1", "[PATCH] Fix NULL deref", 0),
		msg("m2", "[PATCH v2] Fix NULL deref", 24),
	})
	fams := g.Families()
	if len(fams) != 1 {
		t.Fatalf("expected 1 family, got %d", len(fams))
	}
	f := fams[0]
	if f.Title != "fix null deref" {
		t.Errorf("unexpected title %q", f.Title)
	}
	rev := g.EdgesOfKind(EdgeRevision)
	if len(rev) != 1 || rev[0].From != "m1" || rev[0].To != "m2" {
		t.Errorf("expected revision m1->m2, got %v", rev)
	}
	if !f.Earliest.Equal(at(0)) || !f.Latest.Equal(at(24)) {
		t.Errorf("unexpected span %v..%v", f.Earliest, f.Latest)
	}
	if f.LatestVersion() != 2 {
		t.Errorf("expected latest version 2, got %d", f.LatestVersion())
	}
}

func TestBuild_RevisionOrderIgnoresInputOrderAndGaps(t *testing.T) {
	g := Build([]archive.Message{
		msg("v5", "[PATCH v5] Fix X", 50),
		msg("v1", "[PATCH] Fix X", 10),
		msg("v3", "[PATCH v3] Fix X", 5), // dated before v1; version wins
	})
	rev := g.EdgesOfKind(EdgeRevision)
	if len(rev) != 2 {
		t.Fatalf("expected 2 revision edges, got %d", len(rev))
	}
	if rev[0].From != "v1" || rev[0].To != "v3" || rev[1].From != "v3" || rev[1].To != "v5" {
		t.Errorf("unexpected chain %v", rev)
	}
	f, _ := g.Family("fix x")
	if fmt.Sprint(f.Versions) != "[1 3 5]" {
		t.Errorf("unexpected versions %v", f.Versions)
	}
}

func TestBuild_TieStableByInputOrder(t *testing.T) {
	g := Build([]archive.Message{
		msg("b", "[PATCH v2] Fix X", 1),
		msg("a", "[RESEND PATCH v2] Fix X", 1),
	})
	rev := g.EdgesOfKind(EdgeRevision)
	if len(rev) != 1 || rev[0].From != "b" || rev[0].To != "a" {
		t.Errorf("ties should keep input order, got %v", rev)
	}
}

func TestBuild_ReplyEdges(t *testing.T) {
	g := Build([]archive.Message{
		msg("p", "[PATCH] Fix NULL deref", 0),
		reply("r1", "p", "t", 1),
		reply("r2", "missing", "", 2),
		reply("r3", "r3", "", 3),
	})
	if countKind(g, EdgeReply) != 1 {
		t.Fatalf("expected 1 reply edge, got %d", countKind(g, EdgeReply))
	}
	if p, ok := g.ReplyParent("r1"); !ok || p != "p" {
		t.Errorf("r1 should reply to p, got %q", p)
	}
	if _, ok := g.ReplyParent("r2"); ok {
		t.Error("unresolved parent should be dropped")
	}
	if g.Stats.UnresolvedReplies != 1 || g.Stats.RejectedReplies != 1 {
		t.Errorf("unexpected stats %+v", g.Stats)
	}
}

func TestBuild_ReplyToLaterMessageDropped(t *testing.T) {
	g := Build([]archive.Message{
		reply("early", "late", "", 0),
		msg("late", "[PATCH] Fix NULL deref", 5),
	})
	if countKind(g, EdgeReply) != 0 {
		t.Errorf("reply to a later message must be dropped")
	}
}

func TestBuild_ReplyCycleDropped(t *testing.T) {
	g := Build([]archive.Message{
		reply("a", "b", "", 1),
		reply("b", "a", "", 1),
	})
	if countKind(g, EdgeReply) != 1 {
		t.Errorf("expected one edge of the cycle to survive, got %d", countKind(g, EdgeReply))
	}
	if g.Stats.RejectedReplies != 1 {
		t.Errorf("expected 1 rejected reply, got %d", g.Stats.RejectedReplies)
	}
}

func TestBuild_AtMostOneReplyEdgePerNode(t *testing.T) {
	g := Build([]archive.Message{
		msg("p", "[PATCH] Fix NULL deref", 0),
		reply("r", "p", "", 1),
		reply("r", "p", "", 2),
	})
	out := 0
	for _, e := range g.Edges {
		if e.Kind == EdgeReply && e.From == "r" {
			out++
		}
	}
	if out != 1 {
		t.Errorf("expected 1 reply edge from r, got %d", out)
	}
	if g.Stats.Duplicates != 1 {
		t.Errorf("expected duplicate counted, got %d", g.Stats.Duplicates)
	}
}

func TestBuild_DiscussionEdges(t *testing.T) {
	a := msg("a", "[PATCH] Fix NULL deref", 0)
	a.ThreadID = "t"
	c := msg("c", "Re: [PATCH] Fix NULL deref", 3)
	c.ThreadID = "t"
	g := Build([]archive.Message{
		c,
		a,
		reply("b", "a", "t", 2),
	})
	d := g.EdgesOfKind(EdgeDiscussion)
	if len(d) != 1 || d[0].From != "c" || d[0].To != "b" {
		t.Errorf("expected discussion c->b, got %v", d)
	}
}

func TestBuild_IsolatedMessageStillInFamily(t *testing.T) {
	g := Build([]archive.Message{
		reply("r", "gone", "", 0),
	})
	f, ok := g.FamilyOf("r")
	if !ok || len(f.Members) != 1 {
		t.Fatalf("isolated reply should form its own family")
	}
	if len(f.Revisions) != 0 || f.Replies() != 1 {
		t.Errorf("expected 0 postings and 1 reply, got %d/%d", len(f.Revisions), f.Replies())
	}
}

func TestBuild_RepliesNotChainedAsRevisions(t *testing.T) {
	g := Build([]archive.Message{
		msg("p1", "[PATCH] Fix NULL deref", 0),
		reply("r1", "p1", "", 1),
		msg("p2", "[PATCH v2] Fix NULL deref", 2),
	})
	rev := g.EdgesOfKind(EdgeRevision)
	if len(rev) != 1 || rev[0].From != "p1" || rev[0].To != "p2" {
		t.Errorf("unexpected revisions %v", rev)
	}
	f, _ := g.Family("fix null deref")
	if len(f.Members) != 3 {
		t.Errorf("reply should be a member, got %d", len(f.Members))
	}
}

// --- Batch Tests ---

func TestBatches_KeepFamiliesTogether(t *testing.T) {
	msgs := []archive.Message{
		msg("a1", "[PATCH] A", 0),
		msg("b1", "[PATCH] B", 1),
		msg("a2", "[PATCH v2] A", 2),
		msg("c1", "[PATCH] C", 3),
		msg("a3", "Re: [PATCH v2] A", 4),
	}
	batches := Batches(msgs, 3)
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if len(batches[0]) != 3 || batches[0][0].ID != "a1" || batches[0][2].ID != "a3" {
		t.Errorf("family A should fill the first batch, got %v", batches[0])
	}
	if len(batches[1]) != 2 {
		t.Errorf("expected B and C together, got %d", len(batches[1]))
	}
	if got := Batches(msgs, 0); len(got) != 1 || len(got[0]) != 5 {
		t.Errorf("size 0 should return one batch")
	}
	if Batches(nil, 3) != nil {
		t.Errorf("empty input should return nil")
	}
}

// --- UnionFind Tests ---

func TestUnionFind_Basics(t *testing.T) {
	uf := NewUnionFind([]string{"a", "b", "c", "d"})
	if !uf.Union("a", "b") {
		t.Error("first union should merge")
	}
	if uf.Union("b", "a") {
		t.Error("second union should be a no-op")
	}
	uf.Union("c", "b")
	if uf.Find("a") != uf.Find("c") {
		t.Error("a and c should share a root")
	}
	if uf.Size("a") != 3 || uf.Size("d") != 1 || uf.Size("zz") != 0 {
		t.Errorf("unexpected sizes %d %d %d", uf.Size("a"), uf.Size("d"), uf.Size("zz"))
	}
	comps := uf.Components()
	if len(comps) != 2 || fmt.Sprint(comps[0]) != "[a b c]" {
		t.Errorf("unexpected components %v", comps)
	}
	if uf.Union("a", "unknown") {
		t.Error("unknown ids should not merge")
	}
}

// --- Topology Tests ---

func TestTopology_EmptyGraph(t *testing.T) {
	r := ComputeTopology(Build(nil), 4, 10)
	if r.TotalNodes != 0 || r.TotalEdges != 0 || r.NumComponents != 0 {
		t.Errorf("empty graph should have all zeros, got nodes=%d edges=%d components=%d",
			r.TotalNodes, r.TotalEdges, r.NumComponents)
	}
	if len(r.DegreeHistogram) != 7 {
		t.Errorf("expected 7 histogram buckets, got %d", len(r.DegreeHistogram))
	}
}

func TestTopology_TwoComponents(t *testing.T) {
	g := quickGraph(
		[]string{"A", "B", "C", "D", "E"},
		[][2]string{{"B", "A"}, {"C", "B"}, {"E", "D"}},
	)
	r := ComputeTopology(g, 4, 10)
	if r.NumComponents != 2 {
		t.Errorf("expected 2 components, got %d", r.NumComponents)
	}
	if r.LargestComponent != 3 || r.SmallestComponent != 2 {
		t.Errorf("expected 3/2, got %d/%d", r.LargestComponent, r.SmallestComponent)
	}
	if r.ReplyRoots != 2 {
		t.Errorf("expected 2 reply roots, got %d", r.ReplyRoots)
	}
	if r.EdgesByKind[EdgeReply] != 3 {
		t.Errorf("expected 3 reply edges, got %d", r.EdgesByKind[EdgeReply])
	}
	if len(r.TopComponents) != 2 || r.TopComponents[0].SampleID != "A" {
		t.Errorf("unexpected component summaries %+v", r.TopComponents)
	}
}

func TestOrphan_Detection(t *testing.T) {
	g := quickGraph([]string{"A", "B", "C"}, [][2]string{{"B", "A"}})
	r := ComputeTopology(g, 4, 10)
	if r.OrphanCount != 1 || len(r.OrphanIDs) != 1 || r.OrphanIDs[0] != "C" {
		t.Errorf("C should be the only orphan, got %v", r.OrphanIDs)
	}
}

func TestHub_Detection(t *testing.T) {
	g := quickGraph(
		[]string{"center", "s1", "s2", "s3", "s4", "s5"},
		[][2]string{{"s1", "center"}, {"s2", "center"}, {"s3", "center"}, {"s4", "center"}, {"s5", "center"}},
	)
	r := ComputeTopology(g, 4, 10)
	if len(r.Hubs) != 1 {
		t.Fatalf("expected 1 hub, got %d", len(r.Hubs))
	}
	if r.Hubs[0].ID != "center" || r.Hubs[0].InDegree != 5 {
		t.Errorf("expected center with in-degree 5, got %+v", r.Hubs[0])
	}
}

func TestDegreeBucket(t *testing.T) {
	cases := map[int]int{0: 0, 1: 1, 3: 2, 7: 3, 15: 4, 31: 5, 32: 6}
	for degree, want := range cases {
		if got := degreeBucket(degree); got != want {
			t.Errorf("degreeBucket(%d) = %d, want %d", degree, got, want)
		}
	}
}

// --- Dormancy Tests ---

func TestDormancy(t *testing.T) {
	g := Build([]archive.Message{
		msg("old", "[PATCH] Old change", 0),
		msg("new", "[PATCH] New change", 24*200),
		reply("r", "new", "", 24*200+1),
	})
	r := ComputeDormancy(g, 90, 10)
	if r.DormantCount != 1 || r.Dormant[0].Title != "old change" {
		t.Errorf("expected old change dormant, got %+v", r.Dormant)
	}
	if r.Dormant[0].DaysSinceLast != 200 {
		t.Errorf("expected 200 days, got %d", r.Dormant[0].DaysSinceLast)
	}
	if r.UnansweredCount != 1 || r.Unanswered[0].ID != "old" {
		t.Errorf("expected old unanswered, got %+v", r.Unanswered)
	}
}

func TestAnalyze_DefaultConfig(t *testing.T) {
	g := quickGraph([]string{"A", "B"}, [][2]string{{"B", "A"}})
	r := Analyze(g, nil)
	if r.Topology == nil || r.Dormancy == nil {
		t.Fatal("expected both reports")
	}
	if r.Topology.Families != 2 {
		t.Errorf("expected 2 families, got %d", r.Topology.Families)
	}
}
