// Package report renders run results as plain-text tables.
package report

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"lkml/mergetrace/internal/archive"
	"lkml/mergetrace/internal/evidence"
	"lkml/mergetrace/internal/graph"
	"lkml/mergetrace/internal/match"
)

const (
	subjectWidth = 60
	hashWidth    = 12
)

// Options tunes report verbosity
type Options struct {
	MaxEvidence int // snippets shown per family; 0 hides them
}

// DefaultOptions returns the verbosity used by the CLI
func DefaultOptions() Options {
	return Options{MaxEvidence: 3}
}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateRows = false
	return tbl
}

func header(w io.Writer, title string, n int, unit string) {
	fmt.Fprintf(w, "\n=== %s (%s %s) ===\n\n", strings.ToUpper(title), humanize.Comma(int64(n)), unit)
}

func flush(w io.Writer, b *strings.Builder) error {
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

func shortHash(h string) string {
	if len(h) > hashWidth {
		return h[:hashWidth]
	}
	return h
}

// Merge writes the merge-indicator report grouped by tier, highest score
// first within each tier.
func Merge(w io.Writer, verdicts []evidence.Verdict, tiers []evidence.Tier, opts Options) error {
	var b strings.Builder
	header(&b, "merge indicators", len(verdicts), "families")

	byTier := make(map[string][]evidence.Verdict)
	for _, v := range verdicts {
		byTier[v.Label] = append(byTier[v.Label], v)
	}

	summary := newTable()
	summary.AppendHeader(table.Row{"Tier", "Min score", "Families"})
	for _, t := range tiers {
		summary.AppendRow(table.Row{t.Label, fmt.Sprintf("%.2f", t.Min), humanize.Comma(int64(len(byTier[t.Label])))})
	}
	fmt.Fprintln(&b, summary.Render())

	for _, t := range tiers {
		group := byTier[t.Label]
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s:\n", t.Label)
		tbl := newTable()
		tbl.AppendHeader(table.Row{"Score", "Family", "Ver", "Msgs", "Evidence"})
		for _, v := range group {
			tbl.AppendRow(table.Row{
				fmt.Sprintf("%.3f", v.Score),
				clip(v.FamilyID, subjectWidth),
				v.LatestVersion,
				v.Members,
				len(v.Evidence),
			})
			for i, e := range v.Evidence {
				if i >= opts.MaxEvidence {
					break
				}
				who := e.Sender
				if e.Maintainer {
					who += " (maintainer)"
				}
				tbl.AppendRow(table.Row{
					"",
					fmt.Sprintf("  %s: %q by %s", e.Category, clip(e.Phrase, 40), who),
					"",
					"",
					"<" + e.MessageID + ">",
				})
			}
		}
		tbl.AppendFooter(table.Row{"", fmt.Sprintf("Total: %d families", len(group))})
		fmt.Fprintln(&b, tbl.Render())
	}
	return flush(w, &b)
}

// Pulls writes the pull/commit match report
func Pulls(w io.Writer, matches []match.PullMatch, summary match.Summary) error {
	var b strings.Builder
	header(&b, "pull request matches", summary.Pulls, "pull messages")

	tbl := newTable()
	tbl.AppendHeader(table.Row{"Pull", "Reference", "Confidence", "Commit", "Score", "Note"})
	for _, pm := range matches {
		ref := pm.Reference
		if pm.Candidate.Hash != "" {
			ref = shortHash(ref)
		}
		commit := ""
		if pm.Commit != nil {
			commit = shortHash(pm.Commit.Hash) + " " + clip(pm.Commit.Subject(), 40)
		}
		tbl.AppendRow(table.Row{
			clip(pm.PullSubject, 30),
			clip(ref, 40),
			string(pm.Confidence),
			commit,
			fmt.Sprintf("%.2f", pm.Score),
			pm.Reason,
		})
	}
	tbl.AppendFooter(table.Row{
		fmt.Sprintf("Total: %s references", humanize.Comma(int64(summary.References))),
		"",
		fmt.Sprintf("exact %d / fuzzy %d / none %d", summary.Exact, summary.Fuzzy, summary.Unmatched),
	})
	fmt.Fprintln(&b, tbl.Render())
	return flush(w, &b)
}

// Unmatched writes commits no pull reference resolved to
func Unmatched(w io.Writer, commits []archive.Commit) error {
	var b strings.Builder
	header(&b, "unmatched commits", len(commits), "commits")
	tbl := newTable()
	tbl.AppendHeader(table.Row{"Commit", "Date", "Author", "Subject"})
	for _, c := range commits {
		tbl.AppendRow(table.Row{
			shortHash(c.Hash),
			c.Date.Format("2006-01-02"),
			clip(c.Author, 24),
			clip(c.Subject(), subjectWidth),
		})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d commits", len(commits))})
	fmt.Fprintln(&b, tbl.Render())
	return flush(w, &b)
}

// Validation writes the verdict-versus-commit-log comparison
func Validation(w io.Writer, checks []match.Check, conf match.Confusion) error {
	var b strings.Builder
	header(&b, "validation against commit log", len(checks), "families")

	tbl := newTable()
	tbl.AppendHeader(table.Row{"", "In commit log", "Not in commit log"})
	tbl.AppendRow(table.Row{"Predicted merged", conf.TruePositive, conf.FalsePositive})
	tbl.AppendRow(table.Row{"Predicted not merged", conf.FalseNegative, conf.TrueNegative})
	fmt.Fprintln(&b, tbl.Render())
	fmt.Fprintf(&b, "\n  precision=%.3f recall=%.3f accuracy=%.3f\n",
		conf.Precision, conf.Recall, conf.Accuracy)

	var misses []match.Check
	for _, c := range checks {
		if c.Outcome == match.OutcomeFalsePositive || c.Outcome == match.OutcomeFalseNegative {
			misses = append(misses, c)
		}
	}
	if len(misses) == 0 {
		return flush(w, &b)
	}
	fmt.Fprintln(&b, "\n  Disagreements:")
	dt := newTable()
	dt.AppendHeader(table.Row{"Outcome", "Score", "Family", "Commit"})
	for _, c := range misses {
		commit := ""
		if c.Commit != nil {
			commit = shortHash(c.Commit.Hash)
		}
		dt.AppendRow(table.Row{string(c.Outcome), fmt.Sprintf("%.3f", c.Score), clip(c.FamilyID, subjectWidth), commit})
	}
	fmt.Fprintln(&b, dt.Render())
	return flush(w, &b)
}

// Graph writes the structural analysis of each batch
func Graph(w io.Writer, index int, a *graph.AnalysisReport) error {
	var b strings.Builder
	t := a.Topology
	header(&b, fmt.Sprintf("discussion graph, batch %d", index), t.TotalNodes, "messages")

	fmt.Fprintf(&b, "  %s edges (reply %s, revision %s, discussion %s)\n",
		humanize.Comma(int64(t.TotalEdges)),
		humanize.Comma(int64(t.EdgesByKind[graph.EdgeReply])),
		humanize.Comma(int64(t.EdgesByKind[graph.EdgeRevision])),
		humanize.Comma(int64(t.EdgesByKind[graph.EdgeDiscussion])))
	fmt.Fprintf(&b, "  %d families, %d with more than one posting\n", t.Families, t.MultiRevision)
	fmt.Fprintf(&b, "  %d components (largest %d, smallest %d), %d reply roots, %d isolated\n",
		t.NumComponents, t.LargestComponent, t.SmallestComponent, t.ReplyRoots, t.OrphanCount)
	if bs := t.Build; bs.Duplicates+bs.MissingID+bs.UnresolvedReplies+bs.RejectedReplies > 0 {
		fmt.Fprintf(&b, "  skipped: %d duplicates, %d without id, %d unresolved replies, %d rejected replies\n",
			bs.Duplicates, bs.MissingID, bs.UnresolvedReplies, bs.RejectedReplies)
	}

	hist := newTable()
	hist.AppendHeader(table.Row{"Degree", "Messages"})
	for _, bucket := range t.DegreeHistogram {
		hist.AppendRow(table.Row{bucket.Label, bucket.Count})
	}
	fmt.Fprintf(&b, "\n%s\n", hist.Render())

	if len(t.TopComponents) > 0 {
		ct := newTable()
		ct.AppendHeader(table.Row{"Size", "Families", "Earliest subject"})
		for _, c := range t.TopComponents {
			ct.AppendRow(table.Row{c.Size, c.Families, clip(c.SampleSubject, subjectWidth)})
		}
		fmt.Fprintf(&b, "\n%s\n", ct.Render())
	}

	if len(t.Hubs) > 0 {
		ht := newTable()
		ht.AppendHeader(table.Row{"Degree", "In", "Out", "Subject"})
		for _, h := range t.Hubs {
			ht.AppendRow(table.Row{h.Degree, h.InDegree, h.OutDegree, clip(h.Subject, subjectWidth)})
		}
		fmt.Fprintf(&b, "\n%s\n", ht.Render())
	}

	d := a.Dormancy
	fmt.Fprintf(&b, "\n  %d dormant families, %d postings without replies (reference %s)\n",
		d.DormantCount, d.UnansweredCount, d.Reference.Format("2006-01-02"))
	if len(d.Dormant) > 0 {
		dt := newTable()
		dt.AppendHeader(table.Row{"Days quiet", "Ver", "Postings", "Replies", "Family"})
		for _, f := range d.Dormant {
			dt.AppendRow(table.Row{f.DaysSinceLast, f.LatestVersion, f.Postings, f.Replies, clip(f.Title, subjectWidth)})
		}
		fmt.Fprintf(&b, "\n%s\n", dt.Render())
	}
	return flush(w, &b)
}
