package evidence

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"lkml/mergetrace/internal/archive"
)

// MaintainerSet answers whether an address belongs to a maintainer
type MaintainerSet interface {
	IsMaintainer(addr string) bool
}

// Maintainers is an allow-list keyed by lowercased address
type Maintainers map[string]archive.Maintainer

// NewMaintainers indexes entries by address. Entries without address are skipped.
func NewMaintainers(entries []archive.Maintainer) Maintainers {
	m := make(Maintainers, len(entries))
	m.Add(entries...)
	return m
}

// Add merges entries into the set; the first entry per address wins.
func (m Maintainers) Add(entries ...archive.Maintainer) {
	for _, e := range entries {
		addr := archive.Address(e.Email)
		if addr == "" {
			continue
		}
		if _, ok := m[addr]; ok {
			continue
		}
		e.Email = addr
		m[addr] = e
	}
}

// IsMaintainer implements MaintainerSet
func (m Maintainers) IsMaintainer(addr string) bool {
	if m == nil {
		return false
	}
	_, ok := m[archive.Address(addr)]
	return ok
}

// ParseMaintainersFile reads the kernel MAINTAINERS format: a subsystem
// title line followed by tagged lines. M: entries become maintainers and
// R: entries reviewers; other tags are ignored.
func ParseMaintainersFile(r io.Reader) ([]archive.Maintainer, error) {
	var out []archive.Maintainer
	subsystem := ""
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t\r")
		if line == "" {
			subsystem = ""
			continue
		}
		tag, value, tagged := splitTag(line)
		if !tagged {
			if subsystem == "" {
				subsystem = strings.TrimSpace(line)
			}
			continue
		}
		var role string
		switch tag {
		case "M":
			role = "maintainer"
		case "R":
			role = "reviewer"
		default:
			continue
		}
		addr := archive.Address(value)
		if !strings.Contains(addr, "@") {
			continue
		}
		name := strings.TrimSpace(value)
		if lt := strings.IndexByte(name, '<'); lt > 0 {
			name = strings.TrimSpace(name[:lt])
		} else {
			name = ""
		}
		out = append(out, archive.Maintainer{
			Email:     addr,
			Name:      name,
			Subsystem: subsystem,
			Role:      role,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading MAINTAINERS: %w", err)
	}
	return out, nil
}

// LoadMaintainersFile parses the MAINTAINERS file at path
func LoadMaintainersFile(path string) ([]archive.Maintainer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening maintainers file: %w", err)
	}
	defer f.Close()
	return ParseMaintainersFile(f)
}

func splitTag(line string) (string, string, bool) {
	if len(line) < 2 || line[1] != ':' || line[0] < 'A' || line[0] > 'Z' {
		return "", "", false
	}
	return line[:1], strings.TrimSpace(line[2:]), true
}
