// Package match resolves commits referenced by pull-request announcements
// against a commit log.
package match

import (
	"regexp"
	"strings"

	"lkml/mergetrace/internal/signature"
)

var (
	gitPullRe    = regexp.MustCompile(`(?i)\[\s*git\s+pull\b[^\]]*\]`)
	pleasePullRe = regexp.MustCompile(`(?i)\bplease\s+pull\b`)
	hashRe       = regexp.MustCompile(`(?i)\b[0-9a-f]{40}\b`)
	baseLineRe   = regexp.MustCompile(`(?i)changes\s+since\s+commit`)
	shortlogRe   = regexp.MustCompile(`^(\S.*?)\s+\((\d+)\):\s*$`)
	bulletRe     = regexp.MustCompile(`^\s*[-*]\s+(.+?)\s*$`)
)

const minSubjectLen = 8

// IsPullRequest reports whether subject announces a pull request. Replies
// to an announcement are not announcements themselves.
func IsPullRequest(subject string) bool {
	if signature.Extract(subject).Reply {
		return false
	}
	return gitPullRe.MatchString(subject) || pleasePullRe.MatchString(subject)
}

// Candidate is one commit reference found in a pull message body
type Candidate struct {
	Hash    string `json:"hash,omitempty"`
	Subject string `json:"subject,omitempty"`
	Author  string `json:"author,omitempty"`
	Line    int    `json:"line"`
}

// Reference is the hash if present, else the subject
func (c Candidate) Reference() string {
	if c.Hash != "" {
		return c.Hash
	}
	return c.Subject
}

func (c Candidate) key() string {
	return c.Hash + "\x00" + signature.Normalize(c.Subject)
}

// ExtractCandidates finds commit references in a pull message body:
// 40-hex hashes (optionally followed by a subject, as in one-line logs),
// shortlog subjects under "Author (N):" headers and bullet lines. The base
// commit of a request-pull header is skipped. Quoted lines are ignored.
func ExtractCandidates(body string) []Candidate {
	var out []Candidate
	seen := make(map[string]bool)
	add := func(c Candidate) {
		if c.Hash == "" && len(c.Subject) < minSubjectLen {
			return
		}
		k := c.key()
		if seen[k] {
			return
		}
		seen[k] = true
		out = append(out, c)
	}

	author := ""
	entryIndent := -1
	for i, raw := range strings.Split(body, "\n") {
		line := strings.TrimRight(raw, " \t\r")
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, ">") {
			continue
		}
		if trimmed == "" {
			entryIndent = -1
			continue
		}

		if m := shortlogRe.FindStringSubmatch(line); m != nil {
			author = m[1]
			entryIndent = -1
			continue
		}
		if author != "" {
			indent := indentOf(line)
			if indent >= 4 {
				if entryIndent >= 0 && indent > entryIndent && len(out) > 0 && out[len(out)-1].Author == author {
					// wrapped continuation of the previous subject
					prev := &out[len(out)-1]
					delete(seen, prev.key())
					prev.Subject += " " + trimmed
					seen[prev.key()] = true
					continue
				}
				if entryIndent < 0 {
					entryIndent = indent
				}
				add(Candidate{Subject: trimmed, Author: author, Line: i + 1})
				continue
			}
			author = ""
			entryIndent = -1
		}

		if hashes := hashRe.FindAllStringIndex(line, -1); hashes != nil {
			if baseLineRe.MatchString(line) {
				continue
			}
			for _, loc := range hashes {
				c := Candidate{Hash: strings.ToLower(line[loc[0]:loc[1]]), Line: i + 1}
				if strings.TrimSpace(line[:loc[0]]) == "" {
					c.Subject = strings.Trim(strings.TrimSpace(line[loc[1]:]), "():-\"' ")
					if len(c.Subject) < minSubjectLen {
						c.Subject = ""
					}
				}
				add(c)
			}
			continue
		}

		if m := bulletRe.FindStringSubmatch(line); m != nil {
			add(Candidate{Subject: m[1], Line: i + 1})
		}
	}
	return out
}

func indentOf(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 8 - n%8
		default:
			return n
		}
	}
	return n
}
