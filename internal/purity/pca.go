package purity

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// explainedVarianceRatio fits a principal component decomposition with
// wavelengths as observations and retained time columns as variables, and
// returns the share of total variance carried by the first component.
func explainedVarianceRatio(data mat.Matrix) (float64, error) {
	var pc stat.PC
	if ok := pc.PrincipalComponents(data, nil); !ok {
		return 0, &InvalidSignalError{Signal: SignalPCA, Column: -1, Reason: "decomposition failed"}
	}
	vars := pc.VarsTo(nil)
	total := floats.Sum(vars)
	if len(vars) == 0 || !(total > 0) || !isFinite(total) {
		return 0, &InvalidSignalError{Signal: SignalPCA, Column: -1, Reason: "no variance to explain"}
	}
	return vars[0] / total, nil
}
