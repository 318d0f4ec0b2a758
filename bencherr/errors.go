// Package bencherr holds the error taxonomy shared by the splitting and
// probing packages.
package bencherr

import (
	"github.com/pkg/errors"
)

// Sentinels. Every error produced by this module that belongs to the
// taxonomy wraps exactly one of these, so callers test with errors.Is.
var (
	// ErrConfiguration: invalid or missing parameters (ratios, task type,
	// missing annotations, bad hyperparameters).
	ErrConfiguration = errors.New("configuration error")

	// ErrDataMismatch: shape or alignment mismatch between embeddings,
	// targets and split assignments.
	ErrDataMismatch = errors.New("data mismatch")

	// ErrInsufficientData: an empty required partition, or a training slice
	// too degenerate to fit.
	ErrInsufficientData = errors.New("insufficient data")
)

// Configuration returns an error wrapping ErrConfiguration.
func Configuration(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}

// DataMismatch returns an error wrapping ErrDataMismatch.
func DataMismatch(format string, args ...interface{}) error {
	return errors.Wrapf(ErrDataMismatch, format, args...)
}

// InsufficientData returns an error wrapping ErrInsufficientData.
func InsufficientData(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInsufficientData, format, args...)
}

// IsConfiguration reports whether err is (or wraps) a configuration error.
func IsConfiguration(err error) bool { return errors.Is(err, ErrConfiguration) }

// IsDataMismatch reports whether err is (or wraps) a data mismatch.
func IsDataMismatch(err error) bool { return errors.Is(err, ErrDataMismatch) }

// IsInsufficientData reports whether err is (or wraps) an insufficient data error.
func IsInsufficientData(err error) bool { return errors.Is(err, ErrInsufficientData) }
