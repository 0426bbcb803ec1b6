// Package scoring fuses features, patterns, and community membership into
// bounded per-account risk scores.
package scoring

import (
	"fmt"
	"sort"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
)

// Factor weights. The unclamped sum of every factor can reach well past 1.0
// for a maximally flagged account; the final score is clamped, which
// compresses ranking near the top of the scale. Downstream consumers depend
// on that compression, so it is kept as-is.
const (
	weightHighVelocity  = 0.20
	weightDenseCluster  = 0.15
	weightMuleTopology  = 0.25
	weightUnknownOrigin = 0.10
	weightYoungAccount  = 0.15
	weightPatternScale  = 0.50 // multiplied by the max pattern confidence
	weightPriorScale    = 0.20 // multiplied by the existing risk score
	weightNoPrior       = 0.05

	velocityThreshold   = 5.0
	clusteringThreshold = 0.8
	muleInDegreeMin     = 6
	muleOutDegreeMax    = 1
	youngAccountDays    = 90
)

// Scorer computes AccountRisk records for a batch.
type Scorer struct {
	thresholds domain.ScoringConfig
	custom     *CustomEngine
}

// NewScorer creates a scorer with the given thresholds.
func NewScorer(cfg domain.ScoringConfig) *Scorer {
	if cfg.PublicationThreshold == 0 {
		cfg.PublicationThreshold = 0.3
	}
	return &Scorer{thresholds: cfg}
}

// SetCustomEngine attaches an engine of operator-defined CEL rules, applied
// after the built-in factors.
func (s *Scorer) SetCustomEngine(engine *CustomEngine) {
	s.custom = engine
}

// Input bundles everything the scorer consumes for one batch run.
type Input struct {
	Accounts        []*domain.Account
	Features        map[string]*domain.GraphFeatures
	Patterns        []domain.FraudPattern
	Membership      map[string]int
	PartitionFailed bool

	// Now is the reference time for account-age checks.
	Now time.Time
}

// Score applies the ordered factor rules to every account, clamps to [0,1],
// drops accounts at or below the publication threshold, and sorts the rest
// by score descending (account id breaks ties).
func (s *Scorer) Score(in *Input) []domain.AccountRisk {
	var results []domain.AccountRisk

	for _, account := range in.Accounts {
		raw, reasons := s.ScoreAccount(account, in.Features[account.ID], in.Patterns, in.Now)

		score := raw
		if score > 1.0 {
			score = 1.0
		}
		if score <= s.thresholds.PublicationThreshold {
			continue
		}

		results = append(results, domain.AccountRisk{
			AccountID:       account.ID,
			Score:           score,
			Reasons:         reasons,
			Community:       in.Membership[account.ID],
			PartitionFailed: in.PartitionFailed,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].AccountID < results[j].AccountID
	})

	return results
}

// ScoreAccount folds the ordered factor rules for one account and returns
// the unclamped score with the reasons in factor-application order.
func (s *Scorer) ScoreAccount(account *domain.Account, f *domain.GraphFeatures, patterns []domain.FraudPattern, now time.Time) (float64, []string) {
	acc := accumulator{}
	s.applyStructural(&acc, f)
	s.applyMetadata(&acc, account, now)
	s.applyPatterns(&acc, account.ID, patterns)
	s.applyPrior(&acc, account)
	if s.custom != nil {
		s.custom.Apply(&acc, account, f, patterns, now)
	}
	return acc.score, acc.reasons
}

// accumulator is the locally-scoped (score, reasons) fold state for one
// account. Factors only ever add; reason order is application order.
type accumulator struct {
	score   float64
	reasons []string
}

func (a *accumulator) add(points float64, reason string) {
	a.score += points
	a.reasons = append(a.reasons, reason)
}

func (s *Scorer) applyStructural(acc *accumulator, f *domain.GraphFeatures) {
	if f == nil {
		return
	}
	if f.Velocity > velocityThreshold {
		acc.add(weightHighVelocity, fmt.Sprintf("high transaction velocity: %.1f tx/day", f.Velocity))
	}
	if f.ClusteringCoefficient > clusteringThreshold {
		acc.add(weightDenseCluster, fmt.Sprintf("dense local network: clustering coefficient %.2f", f.ClusteringCoefficient))
	}
	if f.InDegree >= muleInDegreeMin && f.OutDegree <= muleOutDegreeMax {
		acc.add(weightMuleTopology, fmt.Sprintf("money-mule topology: %d incoming vs %d outgoing", f.InDegree, f.OutDegree))
	}
}

func (s *Scorer) applyMetadata(acc *accumulator, account *domain.Account, now time.Time) {
	if account.Country == domain.UnknownJurisdiction {
		acc.add(weightUnknownOrigin, "unknown jurisdiction")
	}
	if account.AgeDays(now) < youngAccountDays {
		acc.add(weightYoungAccount, fmt.Sprintf("account younger than %d days", youngAccountDays))
	}
}

// applyPatterns adds a single increment scaled by the highest confidence
// across the account's patterns, with one reason per distinct pattern type
// in detector order.
func (s *Scorer) applyPatterns(acc *accumulator, accountID string, patterns []domain.FraudPattern) {
	maxConfidence := 0.0
	var types []domain.PatternType
	seen := make(map[domain.PatternType]struct{})

	for i := range patterns {
		if !patterns[i].Implicates(accountID) {
			continue
		}
		if patterns[i].Confidence > maxConfidence {
			maxConfidence = patterns[i].Confidence
		}
		if _, ok := seen[patterns[i].Type]; !ok {
			seen[patterns[i].Type] = struct{}{}
			types = append(types, patterns[i].Type)
		}
	}

	if maxConfidence == 0 {
		return
	}

	acc.score += maxConfidence * weightPatternScale
	for _, t := range types {
		acc.reasons = append(acc.reasons, fmt.Sprintf("implicated in %s pattern", t))
	}
}

func (s *Scorer) applyPrior(acc *accumulator, account *domain.Account) {
	if account.ExistingRiskScore != nil {
		acc.add(*account.ExistingRiskScore*weightPriorScale, fmt.Sprintf("prior risk score %.2f carried over", *account.ExistingRiskScore))
		return
	}
	acc.add(weightNoPrior, "no prior risk assessment")
}
