package main

import (
	"os"

	apperrors "github.com/jrsteele09/postsync/internal/errors"
)

// Exit codes for scripting.
const (
	ExitCodeSuccess      = 0
	ExitCodeError        = 1
	ExitCodeAuthRequired = 2
	ExitCodeAuthFailed   = 3
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case apperrors.Is(err, apperrors.ErrMissingCredential), apperrors.Is(err, apperrors.ErrSessionExpired):
		return ExitCodeAuthRequired
	case apperrors.Is(err, apperrors.ErrAuthRejected):
		return ExitCodeAuthFailed
	default:
		return ExitCodeError
	}
}
