package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lkml/mergetrace/internal/archive"
	"lkml/mergetrace/internal/config"
	"lkml/mergetrace/internal/db"
	"lkml/mergetrace/internal/evidence"
	"lkml/mergetrace/internal/match"
	"lkml/mergetrace/internal/pipeline"
)

func TestApplyRunFlags_OnlyChangedFlagsOverride(t *testing.T) {
	c := &cobra.Command{Use: "x"}
	addRunFlags(c)
	require.NoError(t, c.ParseFlags([]string{"--threshold", "0.8", "--strategy", "levenshtein"}))

	conf := config.Default()
	conf.Sample.Size = 42
	require.NoError(t, applyRunFlags(c, conf))

	assert.Equal(t, 0.8, conf.Matching.Threshold)
	assert.Equal(t, match.StrategyLevenshtein, conf.Matching.Strategy)
	assert.Equal(t, 42, conf.Sample.Size, "unset --sample must keep the config value")
}

func TestApplyRunFlags_Validates(t *testing.T) {
	c := &cobra.Command{Use: "x"}
	addRunFlags(c)
	require.NoError(t, c.ParseFlags([]string{"--strategy", "soundex"}))
	assert.Error(t, applyRunFlags(c, config.Default()))
}

func TestPipelineOptions_LoadsMaintainersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "MAINTAINERS")
	require.NoError(t, os.WriteFile(path, []byte("NET\nM:\tDave <dave@example.org>\n"), 0o644))

	conf := config.Default()
	conf.Scoring.MaintainersFile = path
	opts, err := pipelineOptions(conf)
	require.NoError(t, err)
	require.Len(t, opts.Maintainers, 1)
	assert.Equal(t, "dave@example.org", opts.Maintainers[0].Email)
	assert.NotNil(t, opts.Similarity)
}

func TestPipelineOptions_MissingCatalog(t *testing.T) {
	conf := config.Default()
	conf.Scoring.Catalog = filepath.Join(t.TempDir(), "nope.yaml")
	_, err := pipelineOptions(conf)
	assert.Error(t, err)
}

func TestDiscoverDB_FlagPath(t *testing.T) {
	t.Setenv(config.EnvPrefix+"DB", "")
	path := filepath.Join(t.TempDir(), "archive.db")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	old := dbPath
	defer func() { dbPath = old }()

	dbPath = path
	got, err := DiscoverDB()
	require.NoError(t, err)
	assert.Equal(t, path, got)

	dbPath = path + ".missing"
	_, err = DiscoverDB()
	assert.Error(t, err)
}

func TestWriteReports_Directory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	rc := config.Default().Reports
	rc.Dir = dir
	res := &pipeline.Result{RunID: "r1", Tiers: evidence.Default().Tiers}

	require.NoError(t, writeReports(rc, res))

	for _, name := range []string{"merge.txt", "validation.txt", "pulls.txt", "unmatched.txt", "result.json"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.NoFileExists(t, filepath.Join(dir, "graph.txt"), "graph report is off by default")

	data, err := os.ReadFile(filepath.Join(dir, "result.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_id": "r1"`)
}

func TestWriteFile_RenderErrorPropagates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "merge.txt")
	err := writeFile(path, func(io.Writer) error { return errors.New("encode failed") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode failed")
}

func TestThreadVerdicts(t *testing.T) {
	d, err := db.OpenDB(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	defer d.Close()
	ctx := context.Background()
	require.NoError(t, d.EnsureSchema(ctx))

	when := time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC)
	for _, m := range []archive.Message{
		{ID: "p1", Subject: "[PATCH v2] Fix NULL deref", Sender: "A <a@example.org>", ThreadID: "t", Date: when},
		{ID: "r1", Subject: "Re: [PATCH v2] Fix NULL deref", Sender: "B <b@kernel.org>", ThreadID: "t",
			ReplyToID: "p1", Body: "Acked-by: B", Date: when.Add(time.Hour)},
		{ID: "x1", Subject: "[PATCH] other", Sender: "C <c@example.org>", ThreadID: "u", Date: when},
	} {
		require.NoError(t, d.InsertMessage(ctx, m))
	}
	require.NoError(t, d.InsertMaintainer(ctx, archive.Maintainer{Email: "b@kernel.org", Role: "maintainer"}))

	verdicts, err := threadVerdicts(ctx, d, "t", pipeline.Options{})
	require.NoError(t, err)
	require.Len(t, verdicts, 1)
	assert.Equal(t, "fix null deref", verdicts[0].FamilyID)
	assert.Equal(t, "Likely Merged", verdicts[0].Label)

	_, err = threadVerdicts(ctx, d, "missing", pipeline.Options{})
	assert.Error(t, err)
}
