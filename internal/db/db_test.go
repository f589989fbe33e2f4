package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lkml/mergetrace/internal/archive"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := OpenDB(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	require.NoError(t, d.EnsureSchema(context.Background()))
	return d
}

var when = time.Date(2021, 11, 3, 8, 30, 0, 0, time.UTC)

func TestMessages_RoundTripAndDerivedFields(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, d.InsertMessage(ctx, archive.Message{
		ID: "b@x", Subject: "Re: [PATCH v2] Fix NULL deref", Sender: "B <b@Kernel.org>",
		Date: when.Add(time.Hour), Body: "Acked-by: B", ReplyToID: "a@x", ThreadID: "t1",
	}))
	require.NoError(t, d.InsertMessage(ctx, archive.Message{
		ID: "a@x", Subject: "[PATCH v2] Fix NULL deref", Sender: "A <a@example.org>", Date: when,
	}))
	require.NoError(t, d.InsertMessage(ctx, archive.Message{
		ID: "c@x", Subject: "Lunch?", Sender: "c@example.org", Date: when,
	}))

	msgs, err := d.Messages(ctx, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a@x", msgs[0].ID)
	assert.Equal(t, "", msgs[0].ReplyToID)
	assert.True(t, msgs[0].Date.Equal(when))

	b := msgs[1]
	assert.Equal(t, "a@x", b.ReplyToID)
	assert.Equal(t, "t1", b.ThreadID)
	assert.Equal(t, "fix null deref", b.NormalizedSubject)
	assert.Equal(t, "kernel.org", b.SenderDomain)

	limited, err := d.Messages(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestPullMessages(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	for i, subj := range []string{"[GIT PULL] net", "Re: [GIT PULL] net", "[PATCH] x", "Please pull arm64"} {
		require.NoError(t, d.InsertMessage(ctx, archive.Message{
			ID: string(rune('a' + i)), Subject: subj, Date: when.Add(time.Duration(i) * time.Minute),
		}))
	}
	pulls, err := d.PullMessages(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pulls, 2)
	assert.Equal(t, "a", pulls[0].ID)
	assert.Equal(t, "d", pulls[1].ID)
}

func TestCommits_Ordered(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, d.InsertCommit(ctx, archive.Commit{Hash: "bb", Author: "x", Date: when, Message: "two"}))
	require.NoError(t, d.InsertCommit(ctx, archive.Commit{Hash: "aa", Author: "x", Date: when, Message: "one"}))
	require.NoError(t, d.InsertCommit(ctx, archive.Commit{Hash: "cc", Author: "x", Date: when.Add(-time.Hour), Message: "zero"}))

	commits, err := d.Commits(ctx, 0)
	require.NoError(t, err)
	require.Len(t, commits, 3)
	assert.Equal(t, []string{"cc", "aa", "bb"}, []string{commits[0].Hash, commits[1].Hash, commits[2].Hash})
}

func TestMaintainers(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, d.InsertMaintainer(ctx, archive.Maintainer{Email: "m@kernel.org", Subsystem: "NET"}))
	got, err := d.Maintainers(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "NET", got[0].Subsystem)
	assert.Equal(t, "", got[0].Role)
}

func TestMaintainers_MissingTable(t *testing.T) {
	d := setupTestDB(t)
	_, err := d.Conn().Exec("DROP TABLE maintainers")
	require.NoError(t, err)
	got, err := d.Maintainers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMessages_MissingTableIsSchemaError(t *testing.T) {
	d, err := OpenDB(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer d.Close()

	_, err = d.Messages(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchema))

	_, err = d.Commits(context.Background(), 0)
	assert.True(t, errors.Is(err, ErrSchema))
}

func TestThread(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, d.InsertMessage(ctx, archive.Message{ID: "1", Subject: "[PATCH] a", ThreadID: "t", Date: when}))
	require.NoError(t, d.InsertMessage(ctx, archive.Message{ID: "2", Subject: "Re: [PATCH] a", ThreadID: "t", Date: when.Add(time.Minute)}))
	require.NoError(t, d.InsertMessage(ctx, archive.Message{ID: "3", Subject: "[PATCH] b", ThreadID: "u", Date: when}))
	msgs, err := d.Thread(ctx, "t")
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestMessages_OnlyBracketedPatchSubjects(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	subjects := []string{
		"sched: fix dispatch latency",
		"[GIT PULL] net: batch of patches",
		"[RFC PATCH v2 1/3] mm: reclaim",
		"Re: [patch] lowercase marker",
		"[PATCHv3] glued version",
	}
	for i, subj := range subjects {
		require.NoError(t, d.InsertMessage(ctx, archive.Message{
			ID: string(rune('a' + i)), Subject: subj, Date: when.Add(time.Duration(i) * time.Minute),
		}))
	}
	msgs, err := d.Messages(ctx, 0)
	require.NoError(t, err)
	var ids []string
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"c", "d", "e"}, ids)
}

func TestThread_MissingTableIsSchemaError(t *testing.T) {
	d, err := OpenDB(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer d.Close()

	_, err = d.Thread(context.Background(), "t")
	assert.True(t, errors.Is(err, ErrSchema))
}
