package match

import (
	"sort"
	"strings"

	"lkml/mergetrace/internal/archive"
	"lkml/mergetrace/internal/signature"
)

// Confidence is the certainty tier of a match
type Confidence string

const (
	ConfidenceExact Confidence = "exact"
	ConfidenceFuzzy Confidence = "fuzzy"
	ConfidenceNone  Confidence = "none"
)

func (c Confidence) rank() int {
	switch c {
	case ConfidenceExact:
		return 2
	case ConfidenceFuzzy:
		return 1
	default:
		return 0
	}
}

// Reasons recorded on unmatched entries
const (
	ReasonUnknownHash = "hash not in commit log"
	ReasonBelowThresh = "no commit subject above threshold"
	ReasonDuplicate   = "commit already claimed by another reference in this pull"
)

// PullMatch is the outcome for one candidate of one pull message
type PullMatch struct {
	PullMessageID string          `json:"pull_message_id"`
	PullSubject   string          `json:"pull_subject"`
	Reference     string          `json:"reference"`
	Candidate     Candidate       `json:"candidate"`
	Commit        *archive.Commit `json:"commit,omitempty"`
	Confidence    Confidence      `json:"confidence"`
	Score         float64         `json:"score"`
	Reason        string          `json:"reason,omitempty"`
}

// Matched reports whether the entry resolved to a commit
func (p PullMatch) Matched() bool { return p.Commit != nil }

// Matcher indexes a commit log for hash and subject lookups. Read-only
// after construction.
type Matcher struct {
	similarity Similarity
	threshold  float64
	commits    []archive.Commit
	subjects   []string
	byHash     map[string]int
	byToken    map[string][]int
}

// NewMatcher indexes commits. A nil similarity selects TokenSet and a
// threshold <= 0 selects DefaultThreshold.
func NewMatcher(commits []archive.Commit, sim Similarity, threshold float64) *Matcher {
	if sim == nil {
		sim = TokenSet{}
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	sorted := make([]archive.Commit, len(commits))
	copy(sorted, commits)
	sort.SliceStable(sorted, func(i, j int) bool { return commitBefore(sorted[i], sorted[j]) })

	m := &Matcher{
		similarity: sim,
		threshold:  threshold,
		commits:    sorted,
		subjects:   make([]string, len(sorted)),
		byHash:     make(map[string]int, len(sorted)),
		byToken:    make(map[string][]int),
	}
	for i, c := range sorted {
		h := strings.ToLower(c.Hash)
		if _, dup := m.byHash[h]; !dup {
			m.byHash[h] = i
		}
		m.subjects[i] = signature.Normalize(c.Subject())
		seen := make(map[string]bool)
		for _, t := range Tokens(m.subjects[i]) {
			if seen[t] {
				continue
			}
			seen[t] = true
			m.byToken[t] = append(m.byToken[t], i)
		}
	}
	return m
}

func commitBefore(a, b archive.Commit) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	return a.Hash < b.Hash
}

// Threshold returns the fuzzy acceptance threshold
func (m *Matcher) Threshold() float64 { return m.threshold }

// Commits returns the indexed commits ordered by date, then hash
func (m *Matcher) Commits() []archive.Commit { return m.commits }

// Lookup returns the commit with the given full hash.
func (m *Matcher) Lookup(hash string) (*archive.Commit, bool) {
	i, ok := m.byHash[strings.ToLower(hash)]
	if !ok {
		return nil, false
	}
	return &m.commits[i], true
}

// Best finds the commit whose subject scores highest against subject. Ties
// go to the earliest commit. ok is false when nothing reaches the threshold;
// score is then the best score seen.
func (m *Matcher) Best(subject string) (commit *archive.Commit, score float64, ok bool) {
	norm := signature.Extract(subject).Title
	if norm == "" {
		return nil, 0, false
	}
	best := -1
	for _, i := range m.scanSet(norm) {
		s := m.similarity.Score(norm, m.subjects[i])
		if s > score {
			best, score = i, s
		}
	}
	if best < 0 || score < m.threshold {
		return nil, score, false
	}
	return &m.commits[best], score, true
}

// scanSet returns candidate commit indexes in ascending order.
func (m *Matcher) scanSet(norm string) []int {
	if _, gated := m.similarity.(tokenGated); !gated {
		all := make([]int, len(m.commits))
		for i := range all {
			all[i] = i
		}
		return all
	}
	set := make(map[int]bool)
	for _, t := range Tokens(norm) {
		for _, i := range m.byToken[t] {
			set[i] = true
		}
	}
	out := make([]int, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Resolve matches a single candidate: exact hash first, then best subject.
func (m *Matcher) Resolve(c Candidate) (commit *archive.Commit, conf Confidence, score float64, reason string) {
	if c.Hash != "" {
		if hit, ok := m.Lookup(c.Hash); ok {
			return hit, ConfidenceExact, 1, ""
		}
	}
	if c.Subject != "" {
		hit, s, ok := m.Best(c.Subject)
		if ok {
			return hit, ConfidenceFuzzy, s, ""
		}
		score = s
	}
	if c.Hash != "" && c.Subject == "" {
		return nil, ConfidenceNone, 0, ReasonUnknownHash
	}
	return nil, ConfidenceNone, score, ReasonBelowThresh
}

// MatchMessage resolves every candidate of one pull message. When two
// candidates land on the same commit the stronger one (confidence, then
// score, then position) keeps it and the others become unmatched.
func (m *Matcher) MatchMessage(pull archive.Message) []PullMatch {
	cands := ExtractCandidates(pull.Body)
	out := make([]PullMatch, len(cands))
	claimed := make(map[string]int)
	for i, c := range cands {
		commit, conf, score, reason := m.Resolve(c)
		out[i] = PullMatch{
			PullMessageID: pull.ID,
			PullSubject:   pull.Subject,
			Reference:     c.Reference(),
			Candidate:     c,
			Commit:        commit,
			Confidence:    conf,
			Score:         score,
			Reason:        reason,
		}
		if commit == nil {
			continue
		}
		prev, taken := claimed[commit.Hash]
		if !taken {
			claimed[commit.Hash] = i
			continue
		}
		loser := i
		if stronger(out[i], out[prev]) {
			loser = prev
			claimed[commit.Hash] = i
		}
		out[loser].Commit = nil
		out[loser].Confidence = ConfidenceNone
		out[loser].Reason = ReasonDuplicate
	}
	return out
}

func stronger(a, b PullMatch) bool {
	if a.Confidence.rank() != b.Confidence.rank() {
		return a.Confidence.rank() > b.Confidence.rank()
	}
	return a.Score > b.Score
}

// Match resolves every pull message in order. Non-announcement messages
// are skipped.
func (m *Matcher) Match(pulls []archive.Message) []PullMatch {
	var out []PullMatch
	for _, p := range pulls {
		if !IsPullRequest(p.Subject) {
			continue
		}
		out = append(out, m.MatchMessage(p)...)
	}
	return out
}

// Match is a convenience wrapper around NewMatcher(...).Match.
func Match(pulls []archive.Message, commits []archive.Commit, sim Similarity, threshold float64) []PullMatch {
	return NewMatcher(commits, sim, threshold).Match(pulls)
}

// UnmatchedCommits lists commits no accepted match points at, ordered by
// date then hash.
func UnmatchedCommits(commits []archive.Commit, matches []PullMatch) []archive.Commit {
	hit := make(map[string]bool)
	for _, pm := range matches {
		if pm.Commit != nil {
			hit[strings.ToLower(pm.Commit.Hash)] = true
		}
	}
	var out []archive.Commit
	for _, c := range commits {
		if !hit[strings.ToLower(c.Hash)] {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return commitBefore(out[i], out[j]) })
	return out
}

// Summary counts matches per confidence tier
type Summary struct {
	Pulls      int `json:"pulls"`
	References int `json:"references"`
	Exact      int `json:"exact"`
	Fuzzy      int `json:"fuzzy"`
	Unmatched  int `json:"unmatched"`
}

// Summarize counts matches per tier
func Summarize(matches []PullMatch) Summary {
	var s Summary
	pulls := make(map[string]bool)
	for _, pm := range matches {
		pulls[pm.PullMessageID] = true
		s.References++
		switch pm.Confidence {
		case ConfidenceExact:
			s.Exact++
		case ConfidenceFuzzy:
			s.Fuzzy++
		default:
			s.Unmatched++
		}
	}
	s.Pulls = len(pulls)
	return s
}
