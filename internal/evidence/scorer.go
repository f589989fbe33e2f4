package evidence

import (
	"sort"
	"strings"
	"unicode/utf8"

	"lkml/mergetrace/internal/archive"
	"lkml/mergetrace/internal/graph"
)

const maxContext = 120

// Snippet is one counted evidence item with the text that produced it
type Snippet struct {
	MessageID    string  `json:"message_id"`
	Sender       string  `json:"sender"`
	Category     string  `json:"category"`
	Phrase       string  `json:"phrase"`
	Maintainer   bool    `json:"sender_is_maintainer"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
	Context      string  `json:"context"`
}

// Verdict is the merge likelihood of one family
type Verdict struct {
	FamilyID      string    `json:"family_id"`
	Subject       string    `json:"subject"`
	Score         float64   `json:"score"`
	Label         string    `json:"label"`
	Sum           float64   `json:"raw_sum"`
	Members       int       `json:"members"`
	LatestVersion int       `json:"latest_version"`
	Evidence      []Snippet `json:"evidence"`
}

// Scorer applies a catalog to families. It holds no mutable state and is
// safe for concurrent use.
type Scorer struct {
	catalog     *Catalog
	maintainers MaintainerSet
}

// NewScorer creates a scorer. A nil catalog selects Default(); a nil
// maintainer set disables the boost.
func NewScorer(catalog *Catalog, maintainers MaintainerSet) *Scorer {
	if catalog == nil {
		catalog = Default()
	}
	return &Scorer{catalog: catalog, maintainers: maintainers}
}

// Catalog returns the catalog in use
func (s *Scorer) Catalog() *Catalog { return s.catalog }

// Score computes the verdict for a family
func (s *Scorer) Score(f *graph.Family) Verdict {
	v := s.ScoreMessages(f.Title, f.Messages())
	v.Subject = f.Subject()
	v.LatestVersion = f.LatestVersion()
	return v
}

// ScoreMessages computes a verdict over an arbitrary message list treated as
// one family. Each (sender, category) pair counts once.
func (s *Scorer) ScoreMessages(familyID string, msgs []archive.Message) Verdict {
	seen := make(map[string]bool)
	var items []Snippet
	for _, m := range msgs {
		for _, item := range s.extract(m) {
			key := item.Sender + "\x00" + item.Category
			if seen[key] {
				continue
			}
			seen[key] = true
			items = append(items, item)
		}
	}

	sum := 0.0
	for _, it := range items {
		sum += it.Contribution
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Contribution > items[j].Contribution
	})

	score := s.catalog.Saturate(sum)
	return Verdict{
		FamilyID: familyID,
		Score:    score,
		Label:    s.catalog.Label(score),
		Sum:      sum,
		Members:  len(msgs),
		Evidence: items,
	}
}

func (s *Scorer) extract(m archive.Message) []Snippet {
	var out []Snippet
	for _, line := range strings.Split(m.Body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, ">") {
			continue
		}
		for i := range s.catalog.Indicators {
			ind := &s.catalog.Indicators[i]
			match := ind.re.FindStringSubmatch(trimmed)
			if match == nil {
				continue
			}
			// a trailer naming only the person is credited to the message sender
			sender := archive.Address(m.Sender)
			if ind.who > 0 {
				if addr := archive.Address(match[ind.who]); strings.Contains(addr, "@") {
					sender = addr
				}
			}
			maint := s.maintainers != nil && s.maintainers.IsMaintainer(sender)
			contribution := ind.Weight
			if maint && ind.BoostEligible {
				contribution *= s.catalog.BoostFactor
			}
			out = append(out, Snippet{
				MessageID:    m.ID,
				Sender:       sender,
				Category:     ind.Category,
				Phrase:       strings.TrimSpace(match[0]),
				Maintainer:   maint,
				Weight:       ind.Weight,
				Contribution: contribution,
				Context:      truncate(trimmed, maxContext),
			})
		}
	}
	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}
