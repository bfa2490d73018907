package cmd

import (
	"errors"

	"github.com/Yutarop/imgcluster/internal/features"
	"github.com/Yutarop/imgcluster/internal/kmeans"
	"github.com/Yutarop/imgcluster/internal/pipeline"
)

// Process exit codes.
const (
	ExitOK                = 0
	ExitFailure           = 1
	ExitInvalidConfig     = 2
	ExitEmptyBatch        = 3
	ExitDimensionMismatch = 4
	ExitInsufficientData  = 5
)

// ExitCode maps an error returned by Execute to the process exit code.
func ExitCode(err error) int {
	var mismatch *features.DimensionMismatchError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, pipeline.ErrInvalidConfig),
		errors.Is(err, features.ErrInvalidConfig),
		errors.Is(err, kmeans.ErrInvalidConfig):
		return ExitInvalidConfig
	case errors.Is(err, pipeline.ErrEmptyBatch):
		return ExitEmptyBatch
	case errors.As(err, &mismatch):
		return ExitDimensionMismatch
	case errors.Is(err, kmeans.ErrInsufficientData):
		return ExitInsufficientData
	default:
		return ExitFailure
	}
}
