package graph

import (
	"sort"
	"time"

	"lkml/mergetrace/internal/archive"
	"lkml/mergetrace/internal/signature"
)

// Family is every message sharing one canonical title. Members are ordered
// by (version, date) with input order breaking remaining ties; Revisions is
// the subsequence of patch postings (non-replies) in the same order.
type Family struct {
	Title     string
	Members   []*Node
	Revisions []*Node
	Earliest  time.Time
	Latest    time.Time
	Versions  []int
	RFC       bool
	Senders   []string
}

func (f *Family) finalize() {
	sort.SliceStable(f.Members, func(i, j int) bool {
		a, b := f.Members[i], f.Members[j]
		if a.Signature.Version != b.Signature.Version {
			return a.Signature.Version < b.Signature.Version
		}
		return chronological(a, b)
	})

	versions := make(map[int]bool)
	senders := make(map[string]bool)
	f.Revisions = f.Revisions[:0]
	for i, n := range f.Members {
		d := n.Message.Date
		if i == 0 || d.Before(f.Earliest) {
			f.Earliest = d
		}
		if i == 0 || d.After(f.Latest) {
			f.Latest = d
		}
		if addr := archive.Address(n.Message.Sender); addr != "" {
			senders[addr] = true
		}
		if n.Signature.Reply {
			continue
		}
		f.Revisions = append(f.Revisions, n)
		versions[n.Signature.Version] = true
		if n.Signature.RFC {
			f.RFC = true
		}
	}

	f.Versions = f.Versions[:0]
	for v := range versions {
		f.Versions = append(f.Versions, v)
	}
	sort.Ints(f.Versions)
	f.Senders = f.Senders[:0]
	for s := range senders {
		f.Senders = append(f.Senders, s)
	}
	sort.Strings(f.Senders)
}

// Messages returns the family's messages in member order
func (f *Family) Messages() []archive.Message {
	out := make([]archive.Message, len(f.Members))
	for i, n := range f.Members {
		out[i] = n.Message
	}
	return out
}

// LatestVersion is the highest version among patch postings, or among all
// members when only replies were sampled.
func (f *Family) LatestVersion() int {
	if len(f.Versions) > 0 {
		return f.Versions[len(f.Versions)-1]
	}
	latest := 0
	for _, n := range f.Members {
		if n.Signature.Version > latest {
			latest = n.Signature.Version
		}
	}
	return latest
}

// Replies counts members that are replies rather than postings
func (f *Family) Replies() int {
	return len(f.Members) - len(f.Revisions)
}

// Subject returns the raw subject of the first posting, falling back to the
// first member.
func (f *Family) Subject() string {
	if len(f.Revisions) > 0 {
		return f.Revisions[0].Message.Subject
	}
	if len(f.Members) > 0 {
		return f.Members[0].Message.Subject
	}
	return ""
}

// Batches splits messages into groups of roughly size messages without
// splitting a family across groups. A family bigger than size gets a group
// of its own. size <= 0 returns one group.
func Batches(messages []archive.Message, size int) [][]archive.Message {
	if len(messages) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]archive.Message{messages}
	}

	groups := make(map[string][]archive.Message)
	var titles []string
	for _, m := range messages {
		title := familyKey(m)
		if _, ok := groups[title]; !ok {
			titles = append(titles, title)
		}
		groups[title] = append(groups[title], m)
	}

	var batches [][]archive.Message
	var cur []archive.Message
	for _, title := range titles {
		fam := groups[title]
		if len(cur) > 0 && len(cur)+len(fam) > size {
			batches = append(batches, cur)
			cur = nil
		}
		cur = append(cur, fam...)
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	return batches
}

func familyKey(m archive.Message) string {
	return signature.Extract(m.Subject).Title
}
