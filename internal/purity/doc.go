// Package purity classifies chromatographic peaks as pure (one chemical
// species) or impure (co-eluting species) from their time-by-wavelength
// absorbance data.
//
// Analysis runs as a fixed pipeline over one peak:
//
//  1. trim low-signal columns from the peak region
//  2. estimate the instrument noise floor from the whole run
//  3. correlate every retained spectrum against the apex and the first column
//  4. derive five signals: Agilent-style ratio, unimodality, PCA explained
//     variance, minimum and mean correlation
//  5. dispatch the signals through a short-circuit decision tree
//
// Every call is independent. Analyze holds no state between peaks, so peaks
// can be analysed concurrently (see AnalyzeBatch). Thresholds live in Params
// and are meant to be retuned per instrument.
package purity
