package purity

import "fmt"

// Trace keeps the intermediate values behind a verdict for inspection.
type Trace struct {
	NoiseVariance     float64            `json:"noise_variance"`
	MaxLoc            int                `json:"max_loc"`
	RetainedColumns   []int              `json:"retained_columns"`
	ColumnVariances   []float64          `json:"column_variances"`
	Profile           CorrelationProfile `json:"profile"`
	AgilentThresholds []float64          `json:"agilent_thresholds"`
	Smoothed          []float64          `json:"smoothed"`
}

// Verdict is the outcome of analysing one peak.
type Verdict struct {
	Pure    bool    `json:"pure"`
	Rule    Rule    `json:"rule"`
	Signals Signals `json:"signals"`
	Trace   Trace   `json:"trace"`
}

// Analyzer classifies peaks with a fixed parameter set. It is safe for
// concurrent use; it holds nothing but its parameters.
type Analyzer struct {
	params Params
}

// NewAnalyzer validates p and returns an Analyzer using it.
func NewAnalyzer(p Params) (*Analyzer, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid purity params: %w", err)
	}
	return &Analyzer{params: p}, nil
}

// Params returns the parameters the analyzer was built with.
func (a *Analyzer) Params() Params { return a.params }

// Analyze classifies the peak described by src.
func (a *Analyzer) Analyze(src PeakSource) (Verdict, error) {
	signals, trace, err := computeSignals(src, a.params)
	if err != nil {
		return Verdict{}, err
	}
	pure, rule, err := Decide(signals, a.params)
	if err != nil {
		return Verdict{}, err
	}
	return Verdict{Pure: pure, Rule: rule, Signals: signals, Trace: trace}, nil
}

// Analyze is a convenience wrapper around NewAnalyzer and Analyzer.Analyze.
func Analyze(src PeakSource, p Params) (Verdict, error) {
	a, err := NewAnalyzer(p)
	if err != nil {
		return Verdict{}, err
	}
	return a.Analyze(src)
}

// ComputeSignals runs the pipeline up to, but not including, the decision
// tree. It lets stored verdicts be recomputed and compared signal by signal.
func ComputeSignals(src PeakSource, p Params) (Signals, error) {
	if err := p.Validate(); err != nil {
		return Signals{}, fmt.Errorf("invalid purity params: %w", err)
	}
	s, _, err := computeSignals(src, p)
	return s, err
}

func computeSignals(src PeakSource, p Params) (Signals, Trace, error) {
	m, left, right, err := checkBounds(src)
	if err != nil {
		return Signals{}, Trace{}, err
	}

	peak, err := cropPeak(m, left, right, p.TrimFraction)
	if err != nil {
		return Signals{}, Trace{}, err
	}
	if peak.retained() < p.SmoothingWindow {
		return Signals{}, Trace{}, &InsufficientDataError{Retained: peak.retained(), Required: p.SmoothingWindow}
	}

	noise := noiseVariance(m, p.NoiseFraction)
	if !isFinite(noise) {
		return Signals{}, Trace{}, &InvalidSignalError{Signal: SignalNoise, Column: -1, Reason: "noise variance is not finite"}
	}

	profile, err := correlationProfile(peak)
	if err != nil {
		return Signals{}, Trace{}, err
	}

	variances := columnVariances(peak)
	thresholds, agilent := agilentRatio(profile.ToMax, variances, peak.maxLoc, noise, p.AgilentAlpha)

	smoothed := movingAverage(profile.ToMax, p.SmoothingWindow)
	unimodal := isUnimodal(smoothed, p.UnimodalTolerance)

	pca, err := explainedVarianceRatio(peak.data)
	if err != nil {
		return Signals{}, Trace{}, err
	}

	signals := Signals{
		AgilentRatio:    agilent,
		Unimodal:        unimodal,
		PCARatio:        pca,
		MinCorrelation:  profile.Min(),
		MeanCorrelation: profile.Mean(),
	}
	trace := Trace{
		NoiseVariance:     noise,
		MaxLoc:            peak.maxLoc,
		RetainedColumns:   peak.columns,
		ColumnVariances:   variances,
		Profile:           profile,
		AgilentThresholds: thresholds,
		Smoothed:          smoothed,
	}
	return signals, trace, nil
}
