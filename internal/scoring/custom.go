package scoring

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/opensource-finance/talon/internal/domain"
)

// CustomEngine evaluates operator-defined CEL scoring rules per account.
// Rules run after the built-in factors; each contributes score*weight and
// appends its reason when it triggers.
type CustomEngine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.ScoringRule
	Program cel.Program
}

// NewCustomEngine creates the CEL environment exposing the per-account
// feature variables.
func NewCustomEngine() (*CustomEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("velocity", cel.DoubleType),
		cel.Variable("clustering", cel.DoubleType),
		cel.Variable("centrality", cel.DoubleType),
		cel.Variable("degree", cel.IntType),
		cel.Variable("in_degree", cel.IntType),
		cel.Variable("out_degree", cel.IntType),
		cel.Variable("total_volume", cel.DoubleType),
		cel.Variable("avg_transaction", cel.DoubleType),
		cel.Variable("pattern_count", cel.IntType),
		cel.Variable("max_pattern_confidence", cel.DoubleType),
		cel.Variable("account_age_days", cel.IntType),
		cel.Variable("country", cel.StringType),
		cel.Variable("account_type", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &CustomEngine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
	}, nil
}

// ValidateRule compiles a rule without mutating the loaded rule set.
func (e *CustomEngine) ValidateRule(cfg *domain.ScoringRule) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *CustomEngine) LoadRule(cfg *domain.ScoringRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled
	return nil
}

// LoadRules compiles and loads multiple rules.
func (e *CustomEngine) LoadRules(configs []*domain.ScoringRule) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules clears all existing rules and loads new ones.
// This enables hot-reloading of rules from the database.
func (e *CustomEngine) ReloadRules(configs []*domain.ScoringRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules
	return nil
}

// GetLoadedRules returns the currently loaded rule configurations.
func (e *CustomEngine) GetLoadedRules() []*domain.ScoringRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.ScoringRule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	return rules
}

// RulesCount returns the number of loaded rules.
func (e *CustomEngine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// Apply evaluates every loaded rule against the account's feature variables
// and folds triggered contributions into the accumulator. Rules run in rule
// id order so reason ordering is deterministic. Evaluation errors skip the
// rule rather than failing the account.
func (e *CustomEngine) Apply(acc *accumulator, account *domain.Account, f *domain.GraphFeatures, patterns []domain.FraudPattern, now time.Time) {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return
	}
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].Config.ID < rules[j].Config.ID
	})

	activation := e.activation(account, f, patterns, now)
	for _, rule := range rules {
		out, _, err := rule.Program.Eval(activation)
		if err != nil {
			continue
		}
		score := toScore(out)
		if score <= 0 {
			continue
		}
		acc.add(score*rule.Config.Weight, rule.Config.Reason)
	}
}

// Close cleans up the engine.
func (e *CustomEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *CustomEngine) activation(account *domain.Account, f *domain.GraphFeatures, patterns []domain.FraudPattern, now time.Time) map[string]any {
	activation := map[string]any{
		"velocity":         0.0,
		"clustering":       0.0,
		"centrality":       0.0,
		"degree":           0,
		"in_degree":        0,
		"out_degree":       0,
		"total_volume":     0.0,
		"avg_transaction":  0.0,
		"account_age_days": account.AgeDays(now),
		"country":          account.Country,
		"account_type":     string(account.Type),
	}
	if f != nil {
		activation["velocity"] = f.Velocity
		activation["clustering"] = f.ClusteringCoefficient
		activation["centrality"] = f.Centrality
		activation["degree"] = f.Degree
		activation["in_degree"] = f.InDegree
		activation["out_degree"] = f.OutDegree
		activation["total_volume"] = f.TotalVolume
		activation["avg_transaction"] = f.AvgTransaction
	}

	patternCount := 0
	maxConfidence := 0.0
	for i := range patterns {
		if patterns[i].Implicates(account.ID) {
			patternCount++
			if patterns[i].Confidence > maxConfidence {
				maxConfidence = patterns[i].Confidence
			}
		}
	}
	activation["pattern_count"] = patternCount
	activation["max_pattern_confidence"] = maxConfidence

	return activation
}

// toScore converts a CEL value to a numeric score.
func toScore(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

func (e *CustomEngine) compileRule(cfg *domain.ScoringRule) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("rule %s: expression must return bool, int, or double, got %s", cfg.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
