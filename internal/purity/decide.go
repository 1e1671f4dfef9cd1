package purity

import "fmt"

// Rule identifies the decision-tree branch that produced a verdict.
type Rule int

// Branches in evaluation order. The first matching branch wins.
const (
	RuleNone Rule = iota
	// RuleAgilent: agilent ratio above AgilentPure, pure.
	RuleAgilent
	// RuleNotUnimodal: correlation profile not unimodal, impure.
	RuleNotUnimodal
	// RulePCA: PCA ratio above PCAPure, pure.
	RulePCA
	// RuleMinCorrelationLow: min correlation below MinCorrelationImpure, impure.
	RuleMinCorrelationLow
	// RuleMinCorrelationHigh: min correlation above MinCorrelationPure, pure.
	RuleMinCorrelationHigh
	// RuleMeanCorrelation: mean correlation above MeanCorrelationPure, pure.
	RuleMeanCorrelation
	// RuleFallthrough: nothing matched, impure.
	RuleFallthrough
)

var ruleNames = map[Rule]string{
	RuleNone:               "none",
	RuleAgilent:            "agilent",
	RuleNotUnimodal:        "not_unimodal",
	RulePCA:                "pca",
	RuleMinCorrelationLow:  "min_correlation_low",
	RuleMinCorrelationHigh: "min_correlation_high",
	RuleMeanCorrelation:    "mean_correlation",
	RuleFallthrough:        "fallthrough",
}

func (r Rule) String() string {
	if s, ok := ruleNames[r]; ok {
		return s
	}
	return fmt.Sprintf("rule(%d)", int(r))
}

// MarshalText encodes the rule by name so stored and served verdicts stay
// readable.
func (r Rule) MarshalText() ([]byte, error) {
	if _, ok := ruleNames[r]; !ok {
		return nil, fmt.Errorf("unknown rule %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText parses a rule name produced by MarshalText.
func (r *Rule) UnmarshalText(b []byte) error {
	parsed, err := ParseRule(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRule returns the rule with the given name.
func ParseRule(name string) (Rule, error) {
	for r, n := range ruleNames {
		if n == name {
			return r, nil
		}
	}
	return RuleNone, fmt.Errorf("unknown rule %q", name)
}

// Signals are the five purity indicators fed to the decision tree.
type Signals struct {
	AgilentRatio    float64 `json:"agilent_ratio"`
	Unimodal        bool    `json:"unimodal"`
	PCARatio        float64 `json:"pca_ratio"`
	MinCorrelation  float64 `json:"min_correlation"`
	MeanCorrelation float64 `json:"mean_correlation"`
}

// Validate rejects NaN or infinite signals.
func (s Signals) Validate() error {
	checks := []struct {
		sig Signal
		v   float64
	}{
		{SignalAgilent, s.AgilentRatio},
		{SignalPCA, s.PCARatio},
		{SignalMinCorrelation, s.MinCorrelation},
		{SignalMeanCorrelation, s.MeanCorrelation},
	}
	for _, c := range checks {
		if !isFinite(c.v) {
			return &InvalidSignalError{Signal: c.sig, Column: -1, Reason: fmt.Sprintf("value %v is not finite", c.v)}
		}
	}
	return nil
}

// Decide runs the decision tree over already computed signals. All
// comparisons are strict, so a signal equal to its threshold does not fire
// that rule.
func Decide(s Signals, p Params) (pure bool, rule Rule, err error) {
	if err := s.Validate(); err != nil {
		return false, RuleNone, err
	}
	switch {
	case s.AgilentRatio > p.AgilentPure:
		return true, RuleAgilent, nil
	case !s.Unimodal:
		return false, RuleNotUnimodal, nil
	case s.PCARatio > p.PCAPure:
		return true, RulePCA, nil
	case s.MinCorrelation < p.MinCorrelationImpure:
		return false, RuleMinCorrelationLow, nil
	case s.MinCorrelation > p.MinCorrelationPure:
		return true, RuleMinCorrelationHigh, nil
	case s.MeanCorrelation > p.MeanCorrelationPure:
		return true, RuleMeanCorrelation, nil
	}
	return false, RuleFallthrough, nil
}
