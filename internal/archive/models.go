// Package archive holds the mailing-list and commit-log records shared by
// every analysis stage.
package archive

import (
	"context"
	"strings"
	"time"
)

// Message is one archived mailing-list message. Read-only once loaded.
type Message struct {
	ID                string    `json:"id"`
	Subject           string    `json:"subject"`
	NormalizedSubject string    `json:"normalized_subject"`
	Sender            string    `json:"sender"`
	SenderDomain      string    `json:"sender_domain"`
	Date              time.Time `json:"date"`
	Body              string    `json:"body,omitempty"`
	ReplyToID         string    `json:"reply_to_id,omitempty"`
	ThreadID          string    `json:"thread_id,omitempty"`
}

// Commit is one entry of the upstream commit log
type Commit struct {
	Hash    string    `json:"hash"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
	Message string    `json:"message"`
}

// Subject returns the first non-empty line of the commit message.
func (c Commit) Subject() string {
	for _, line := range strings.Split(c.Message, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			return s
		}
	}
	return ""
}

// Maintainer is one allow-list entry
type Maintainer struct {
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	Subsystem string `json:"subsystem,omitempty"`
	Role      string `json:"role,omitempty"`
}

// Store is the read-only source of messages and commits.
// A limit <= 0 means no limit.
type Store interface {
	Messages(ctx context.Context, limit int) ([]Message, error)
	PullMessages(ctx context.Context, limit int) ([]Message, error)
	Commits(ctx context.Context, limit int) ([]Commit, error)
	Maintainers(ctx context.Context) ([]Maintainer, error)
}
