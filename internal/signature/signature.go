// Package signature turns raw patch e-mail subjects into a canonical
// patch identity plus revision metadata.
package signature

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// Signature is the identity derived from one subject line. Messages with
// the same Title belong to the same patch family.
type Signature struct {
	Title       string `json:"canonical_title"`
	Version     int    `json:"version"`
	SeriesIndex int    `json:"series_index"`
	SeriesTotal int    `json:"series_total"`
	Reply       bool   `json:"reply,omitempty"`
	Patch       bool   `json:"patch,omitempty"`
	RFC         bool   `json:"rfc,omitempty"`
	Resend      bool   `json:"resend,omitempty"`
	Malformed   bool   `json:"malformed,omitempty"`
}

var (
	replyPrefixRe = regexp.MustCompile(`(?i)^(re|fwd?|aw)\s*:\s*`)
	colonRe       = regexp.MustCompile(`\s*:\s*`)
	versionRe     = regexp.MustCompile(`^v(\d+)$`)
	gluedPatchRe  = regexp.MustCompile(`^patch-?v(\d+)$`)
	seriesRe      = regexp.MustCompile(`^(\d+)/(\d+)$`)
)

// Extract parses subject. It never fails: a subject with an unclosed
// bracket degrades to the default revision metadata and the whole trimmed
// subject as title.
func Extract(subject string) Signature {
	trimmed := strings.TrimSpace(subject)
	sig := Signature{Version: 1, SeriesIndex: 1, SeriesTotal: 1}
	var marks groupMarks

	var kept []string
	rest := trimmed
	for {
		rest = strings.TrimLeft(rest, " \t")
		if loc := replyPrefixRe.FindStringIndex(rest); loc != nil {
			sig.Reply = true
			rest = rest[loc[1]:]
			continue
		}
		if !strings.HasPrefix(rest, "[") {
			break
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return Signature{
				Title:       Normalize(trimmed),
				Version:     1,
				SeriesIndex: 1,
				SeriesTotal: 1,
				Reply:       sig.Reply,
				Malformed:   true,
			}
		}
		group := rest[1:end]
		if !marks.apply(group) {
			kept = append(kept, "["+group+"]")
		}
		rest = rest[end+1:]
	}

	kept = append(kept, rest)
	sig.Title = Normalize(strings.Join(kept, " "))
	if sig.Title == "" {
		sig.Title = Normalize(trimmed)
	}
	marks.fill(&sig)
	return sig
}

// groupMarks accumulates what recognized bracket groups declared. Taking the
// maximum of every repeated marker keeps the result independent of token order.
type groupMarks struct {
	patch, rfc, resend bool
	version            int
	index, total       int
	series             bool
}

func (g *groupMarks) apply(group string) bool {
	tokens := strings.FieldsFunc(strings.ToLower(group), func(r rune) bool {
		return r == ' ' || r == '\t' || r == ','
	})
	recognized := false
	for _, tok := range tokens {
		switch {
		case tok == "patch", gluedPatchRe.MatchString(tok):
			recognized = true
		case tok == "rfc", tok == "resend":
			recognized = true
		}
	}
	if !recognized {
		return false
	}

	for _, tok := range tokens {
		switch {
		case tok == "patch":
			g.patch = true
		case tok == "rfc":
			g.rfc = true
		case tok == "resend":
			g.resend = true
		case gluedPatchRe.MatchString(tok):
			g.patch = true
			g.setVersion(gluedPatchRe.FindStringSubmatch(tok)[1])
		case versionRe.MatchString(tok):
			g.setVersion(versionRe.FindStringSubmatch(tok)[1])
		case seriesRe.MatchString(tok):
			m := seriesRe.FindStringSubmatch(tok)
			g.setSeries(m[1], m[2])
		}
	}
	return true
}

func (g *groupMarks) setVersion(digits string) {
	v, err := strconv.Atoi(digits)
	if err != nil || v <= 0 {
		return
	}
	if v > g.version {
		g.version = v
	}
}

func (g *groupMarks) setSeries(idxDigits, totalDigits string) {
	idx, err1 := strconv.Atoi(idxDigits)
	total, err2 := strconv.Atoi(totalDigits)
	if err1 != nil || err2 != nil || total <= 0 || idx > total {
		return
	}
	if !g.series || total > g.total || (total == g.total && idx > g.index) {
		g.index, g.total, g.series = idx, total, true
	}
}

func (g *groupMarks) fill(sig *Signature) {
	sig.Patch = g.patch
	sig.RFC = g.rfc
	sig.Resend = g.resend
	if g.version > 0 {
		sig.Version = g.version
	}
	if g.series {
		sig.SeriesIndex = g.index
		sig.SeriesTotal = g.total
	}
}

// Normalize case-folds a title, collapses whitespace, spaces colons as ": "
// and drops trailing punctuation. Normalize(Normalize(s)) == Normalize(s).
func Normalize(title string) string {
	s := cases.Fold().String(title)
	s = strings.Join(strings.Fields(s), " ")
	s = colonRe.ReplaceAllString(s, ": ")
	s = strings.TrimRight(s, " .!?")
	return strings.TrimSpace(s)
}

// IsCoverLetter reports whether sig is the 0/n introduction of a series.
func (s Signature) IsCoverLetter() bool {
	return s.SeriesIndex == 0 && s.SeriesTotal > 1
}
