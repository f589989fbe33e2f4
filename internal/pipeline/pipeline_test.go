package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"lkml/mergetrace/internal/archive"
	"lkml/mergetrace/internal/match"
)

const tipHash = "0123456789abcdef0123456789abcdef01234567"

type fakeStore struct {
	messages    []archive.Message
	pulls       []archive.Message
	commits     []archive.Commit
	maintainers []archive.Maintainer
	err         error
}

func (f *fakeStore) Messages(ctx context.Context, limit int) ([]archive.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && limit < len(f.messages) {
		return f.messages[:limit], nil
	}
	return f.messages, nil
}

func (f *fakeStore) PullMessages(ctx context.Context, limit int) ([]archive.Message, error) {
	return f.pulls, nil
}

func (f *fakeStore) Commits(ctx context.Context, limit int) ([]archive.Commit, error) {
	return f.commits, nil
}

func (f *fakeStore) Maintainers(ctx context.Context) ([]archive.Maintainer, error) {
	return f.maintainers, nil
}

var start = time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)

func fixture() *fakeStore {
	h := func(n int) time.Time { return start.Add(time.Duration(n) * time.Hour) }
	return &fakeStore{
		messages: []archive.Message{
			{ID: "p1", Subject: "[PATCH] Fix NULL deref", Sender: "A <a@example.org>", Date: h(0), ThreadID: "t1"},
			{ID: "p2", Subject: "[PATCH v2] Fix NULL deref", Sender: "A <a@example.org>", Date: h(24), ThreadID: "t2"},
			{ID: "r1", Subject: "Re: [PATCH v2] Fix NULL deref", Sender: "B <b@kernel.org>", Date: h(30),
				ReplyToID: "p2", ThreadID: "t2", Body: "Acked-by: B <b@kernel.org>"},
			{ID: "q1", Subject: "[PATCH] usb: add quirk", Sender: "C <c@example.org>", Date: h(2), ThreadID: "t3"},
		},
		pulls: []archive.Message{
			{ID: "g1", Subject: "[GIT PULL] fixes", Date: h(48),
				Body: "changes up to " + tipHash + ":\n\n- something nobody wrote down\n"},
		},
		commits: []archive.Commit{
			{Hash: tipHash, Author: "A", Date: h(40), Message: "Fix NULL deref\n\nLong text"},
			{Hash: "fedcba9876543210fedcba9876543210fedcba98", Author: "D", Date: h(41), Message: "docs: typo"},
		},
		maintainers: []archive.Maintainer{{Email: "b@kernel.org"}},
	}
}

func TestRun_EndToEnd(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	res, err := Run(context.Background(), fixture(), Options{Workers: 2, Logger: zap.New(core)})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, Counts{Messages: 4, Pulls: 1, Commits: 2, Maintainers: 1}, res.Counts)
	require.Len(t, res.Batches, 1)
	assert.Equal(t, 2, res.Batches[0].Families)

	require.Len(t, res.Verdicts, 2)
	top := res.Verdicts[0]
	assert.Equal(t, "fix null deref", top.FamilyID)
	assert.Equal(t, "Likely Merged", top.Label)
	assert.Equal(t, "usb: add quirk", res.Verdicts[1].FamilyID)
	assert.Equal(t, 0.0, res.Verdicts[1].Score)

	require.Len(t, res.Matches, 2)
	assert.Equal(t, match.ConfidenceExact, res.Matches[0].Confidence)
	assert.Equal(t, match.ConfidenceNone, res.Matches[1].Confidence)
	require.Len(t, res.Unmatched, 1)
	assert.Equal(t, "docs: typo", res.Unmatched[0].Subject())

	assert.Equal(t, 1, res.Confusion.TruePositive)
	assert.Equal(t, 1, res.Confusion.TrueNegative)

	entries := logs.FilterMessage("sample loaded").All()
	require.Len(t, entries, 1)
	assert.Equal(t, res.RunID, entries[0].ContextMap()["run_id"])
}

func TestRun_BatchesKeepFamilies(t *testing.T) {
	res, err := Run(context.Background(), fixture(), Options{BatchSize: 1, SkipPulls: true})
	require.NoError(t, err)
	require.Len(t, res.Batches, 2)
	assert.Equal(t, 3, res.Batches[0].Messages)
	assert.Len(t, res.Verdicts, 2)
	assert.Empty(t, res.Matches)
}

func TestRun_NoMaintainersDisablesBoost(t *testing.T) {
	store := fixture()
	store.maintainers = nil
	core, logs := observer.New(zapcore.WarnLevel)
	res, err := Run(context.Background(), store, Options{SkipPulls: true, Logger: zap.New(core)})
	require.NoError(t, err)
	assert.Equal(t, "Unclear", res.Verdicts[0].Label)
	assert.Equal(t, 1, logs.FilterMessageSnippet("boost disabled").Len())
}

func TestRun_ExtraMaintainersFromFile(t *testing.T) {
	store := fixture()
	store.maintainers = nil
	res, err := Run(context.Background(), store, Options{
		SkipPulls:   true,
		Maintainers: []archive.Maintainer{{Email: "B <b@kernel.org>"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Likely Merged", res.Verdicts[0].Label)
}

func TestRun_StoreErrorIsFatal(t *testing.T) {
	boom := errors.New("disk gone")
	store := fixture()
	store.err = boom
	res, err := Run(context.Background(), store, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, res)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, fixture(), Options{SkipPulls: true})
	assert.ErrorIs(t, err, context.Canceled)
}
