// Package pipeline runs one batch analysis over a message store.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lkml/mergetrace/internal/archive"
	"lkml/mergetrace/internal/evidence"
	"lkml/mergetrace/internal/graph"
	"lkml/mergetrace/internal/match"
)

// Options selects sample sizes, scoring inputs and stages
type Options struct {
	SampleSize  int
	BatchSize   int
	PullLimit   int
	CommitLimit int

	Catalog     *evidence.Catalog
	Maintainers []archive.Maintainer // merged with the store's allow-list
	Workers     int

	Similarity match.Similarity
	Threshold  float64

	SkipMerge bool
	SkipPulls bool

	Analyzer *graph.AnalyzerConfig
	Logger   *zap.Logger
}

// Batch is the structural analysis of one family-preserving batch
type Batch struct {
	Index    int                   `json:"index"`
	Messages int                   `json:"messages"`
	Families int                   `json:"families"`
	Analysis *graph.AnalysisReport `json:"analysis"`
}

// Counts records what was read from the store
type Counts struct {
	Messages    int `json:"messages"`
	Pulls       int `json:"pulls"`
	Commits     int `json:"commits"`
	Maintainers int `json:"maintainers"`
}

// Result is everything one run produced
type Result struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Counts    Counts        `json:"counts"`

	Batches  []Batch            `json:"batches,omitempty"`
	Verdicts []evidence.Verdict `json:"verdicts,omitempty"`
	Tiers    []evidence.Tier    `json:"tiers,omitempty"`

	Matches      []match.PullMatch `json:"matches,omitempty"`
	MatchSummary match.Summary     `json:"match_summary"`
	Unmatched    []archive.Commit  `json:"unmatched_commits,omitempty"`

	Checks    []match.Check   `json:"checks,omitempty"`
	Confusion match.Confusion `json:"confusion"`
}

// Run fetches the sample once, then scores families and matches pull
// messages. Any store error aborts the run and no Result is returned.
func Run(ctx context.Context, store archive.Store, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	res := &Result{RunID: uuid.NewString(), StartedAt: time.Now()}
	log = log.With(zap.String("run_id", res.RunID))

	catalog := opts.Catalog
	if catalog == nil {
		catalog = evidence.Default()
	}
	res.Tiers = catalog.Tiers

	var (
		msgs    []archive.Message
		pulls   []archive.Message
		commits []archive.Commit
		err     error
	)
	if !opts.SkipMerge {
		msgs, err = store.Messages(ctx, opts.SampleSize)
		if err != nil {
			return nil, fmt.Errorf("loading messages: %w", err)
		}
	}
	if !opts.SkipPulls {
		pulls, err = store.PullMessages(ctx, opts.PullLimit)
		if err != nil {
			return nil, fmt.Errorf("loading pull messages: %w", err)
		}
	}
	if !opts.SkipPulls || !opts.SkipMerge {
		commits, err = store.Commits(ctx, opts.CommitLimit)
		if err != nil {
			return nil, fmt.Errorf("loading commits: %w", err)
		}
	}
	stored, err := store.Maintainers(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading maintainers: %w", err)
	}
	res.Counts = Counts{Messages: len(msgs), Pulls: len(pulls), Commits: len(commits)}
	log.Info("sample loaded",
		zap.Int("messages", len(msgs)),
		zap.Int("pulls", len(pulls)),
		zap.Int("commits", len(commits)))

	maintainers := evidence.NewMaintainers(stored)
	maintainers.Add(opts.Maintainers...)
	res.Counts.Maintainers = len(maintainers)
	var set evidence.MaintainerSet
	if len(maintainers) > 0 {
		set = maintainers
	} else {
		log.Warn("maintainer allow-list empty, boost disabled")
	}

	matcher := match.NewMatcher(commits, opts.Similarity, opts.Threshold)

	if !opts.SkipMerge {
		scorer := evidence.NewScorer(catalog, set)
		if err := res.scoreBatches(ctx, log, msgs, scorer, opts); err != nil {
			return nil, err
		}
		mergedAt, ok := catalog.Threshold("Likely Merged")
		if !ok {
			mergedAt = 0.5
		}
		res.Checks, res.Confusion = matcher.CrossCheck(res.Verdicts, mergedAt)
		log.Info("families scored",
			zap.Int("families", len(res.Verdicts)),
			zap.Float64("precision", res.Confusion.Precision),
			zap.Float64("recall", res.Confusion.Recall))
	}

	if !opts.SkipPulls {
		res.Matches = matcher.Match(pulls)
		res.MatchSummary = match.Summarize(res.Matches)
		res.Unmatched = match.UnmatchedCommits(commits, res.Matches)
		log.Info("pull messages matched",
			zap.Int("references", res.MatchSummary.References),
			zap.Int("exact", res.MatchSummary.Exact),
			zap.Int("fuzzy", res.MatchSummary.Fuzzy),
			zap.Int("unmatched", res.MatchSummary.Unmatched),
			zap.Int("unmatched_commits", len(res.Unmatched)))
	}

	res.Duration = time.Since(res.StartedAt)
	return res, nil
}

func (res *Result) scoreBatches(ctx context.Context, log *zap.Logger, msgs []archive.Message, scorer *evidence.Scorer, opts Options) error {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	for i, batch := range graph.Batches(msgs, opts.BatchSize) {
		g := graph.Build(batch)
		if s := g.Stats; s.Duplicates+s.MissingID+s.UnresolvedReplies+s.RejectedReplies > 0 {
			log.Debug("malformed input skipped",
				zap.Int("batch", i),
				zap.Int("duplicates", s.Duplicates),
				zap.Int("missing_id", s.MissingID),
				zap.Int("unresolved_replies", s.UnresolvedReplies),
				zap.Int("rejected_replies", s.RejectedReplies))
		}
		families := g.Families()
		res.Batches = append(res.Batches, Batch{
			Index:    i,
			Messages: len(batch),
			Families: len(families),
			Analysis: graph.Analyze(g, opts.Analyzer),
		})

		verdicts := make([]evidence.Verdict, len(families))
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(workers)
		for j, f := range families {
			eg.Go(func() error {
				if err := egCtx.Err(); err != nil {
					return err
				}
				verdicts[j] = scorer.Score(f)
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return fmt.Errorf("scoring batch %d: %w", i, err)
		}
		res.Verdicts = append(res.Verdicts, verdicts...)
	}

	sort.SliceStable(res.Verdicts, func(i, j int) bool {
		a, b := res.Verdicts[i], res.Verdicts[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.FamilyID < b.FamilyID
	})
	return nil
}
