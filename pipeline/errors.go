package pipeline

import "errors"

var (
	// ErrUnsupportedConfiguration marks a config rejected up front, before
	// any session data is read.
	ErrUnsupportedConfiguration = errors.New("unsupported configuration")

	// ErrMissingArtifact marks an operation whose required stored input
	// (model, scores) has not been produced yet.
	ErrMissingArtifact = errors.New("missing stored artifact")

	// ErrInterrupted marks a run that completed but skipped one or more
	// sessions after per-session failures.
	ErrInterrupted = errors.New("run interrupted")
)
