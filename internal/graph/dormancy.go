package graph

import (
	"sort"
	"time"
)

const dayMs = 86_400_000

// DormantFamily is a family with no activity for a while before the newest
// message of the batch
type DormantFamily struct {
	Title         string `json:"title"`
	LatestVersion int    `json:"latest_version"`
	DaysSinceLast int64  `json:"days_since_last"`
	Postings      int    `json:"postings"`
	Replies       int    `json:"replies"`
}

// UnansweredPosting is a patch posting nobody replied to
type UnansweredPosting struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Sender  string `json:"sender"`
}

// DormancyReport describes families that went quiet
type DormancyReport struct {
	Reference       time.Time           `json:"reference"`
	Dormant         []DormantFamily     `json:"dormant"`
	DormantCount    int                 `json:"dormant_count"`
	Unanswered      []UnansweredPosting `json:"unanswered"`
	UnansweredCount int                 `json:"unanswered_count"`
}

// ComputeDormancy measures age against the newest message in g rather than
// the wall clock so archives of any era give the same answer.
func ComputeDormancy(g *DiscussionGraph, staleDays int64, topN int) *DormancyReport {
	ref := g.Newest()
	thresholdMs := staleDays * dayMs

	var dormant []DormantFamily
	for _, f := range g.Families() {
		ageMs := ref.UnixMilli() - f.Latest.UnixMilli()
		if ageMs <= thresholdMs {
			continue
		}
		dormant = append(dormant, DormantFamily{
			Title:         f.Title,
			LatestVersion: f.LatestVersion(),
			DaysSinceLast: ageMs / dayMs,
			Postings:      len(f.Revisions),
			Replies:       f.Replies(),
		})
	}
	sort.SliceStable(dormant, func(i, j int) bool {
		return dormant[i].DaysSinceLast > dormant[j].DaysSinceLast
	})

	var unanswered []UnansweredPosting
	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		if n.Signature.Reply || !n.Signature.Patch {
			continue
		}
		answered := false
		for _, from := range g.InAdj[id] {
			if p, ok := g.parent[from]; ok && p == id {
				answered = true
				break
			}
		}
		if !answered {
			unanswered = append(unanswered, UnansweredPosting{
				ID:      id,
				Subject: n.Message.Subject,
				Sender:  n.Message.Sender,
			})
		}
	}

	report := &DormancyReport{
		Reference:       ref,
		DormantCount:    len(dormant),
		UnansweredCount: len(unanswered),
	}
	if len(dormant) > topN {
		dormant = dormant[:topN]
	}
	if len(unanswered) > topN {
		unanswered = unanswered[:topN]
	}
	report.Dormant = dormant
	report.Unanswered = unanswered
	return report
}
