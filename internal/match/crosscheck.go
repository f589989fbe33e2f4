package match

import (
	"lkml/mergetrace/internal/archive"
	"lkml/mergetrace/internal/evidence"
)

// Outcome classifies one verdict against the commit log
type Outcome string

const (
	OutcomeTruePositive  Outcome = "true_positive"
	OutcomeFalsePositive Outcome = "false_positive"
	OutcomeFalseNegative Outcome = "false_negative"
	OutcomeTrueNegative  Outcome = "true_negative"
)

// Check is the commit-log evidence for one family verdict
type Check struct {
	FamilyID  string          `json:"family_id"`
	Label     string          `json:"label"`
	Score     float64         `json:"score"`
	Predicted bool            `json:"predicted_merged"`
	Commit    *archive.Commit `json:"commit,omitempty"`
	Match     float64         `json:"match_score"`
	Outcome   Outcome         `json:"outcome"`
}

// Confusion tallies outcomes and derived rates. Rates are 0 when undefined.
type Confusion struct {
	TruePositive  int     `json:"true_positive"`
	FalsePositive int     `json:"false_positive"`
	FalseNegative int     `json:"false_negative"`
	TrueNegative  int     `json:"true_negative"`
	Precision     float64 `json:"precision"`
	Recall        float64 `json:"recall"`
	Accuracy      float64 `json:"accuracy"`
}

// CrossCheck looks each family title up in the commit log and compares the
// result with the verdict. A verdict predicts "merged" when its score is at
// least mergedAt.
func (m *Matcher) CrossCheck(verdicts []evidence.Verdict, mergedAt float64) ([]Check, Confusion) {
	checks := make([]Check, 0, len(verdicts))
	var conf Confusion
	for _, v := range verdicts {
		commit, score, found := m.Best(v.FamilyID)
		c := Check{
			FamilyID:  v.FamilyID,
			Label:     v.Label,
			Score:     v.Score,
			Predicted: v.Score >= mergedAt,
			Match:     score,
		}
		if found {
			c.Commit = commit
		}
		switch {
		case c.Predicted && found:
			c.Outcome = OutcomeTruePositive
			conf.TruePositive++
		case c.Predicted:
			c.Outcome = OutcomeFalsePositive
			conf.FalsePositive++
		case found:
			c.Outcome = OutcomeFalseNegative
			conf.FalseNegative++
		default:
			c.Outcome = OutcomeTrueNegative
			conf.TrueNegative++
		}
		checks = append(checks, c)
	}
	conf.Precision = ratio(conf.TruePositive, conf.TruePositive+conf.FalsePositive)
	conf.Recall = ratio(conf.TruePositive, conf.TruePositive+conf.FalseNegative)
	conf.Accuracy = ratio(conf.TruePositive+conf.TrueNegative, len(checks))
	return checks, conf
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
