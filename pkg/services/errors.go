// Package services runs account lifecycle commands and classifies the
// errors that can stop them before a process is spawned.
package services

import (
	"errors"

	"github.com/dukex/tunnelgate/pkg/accounts"
)

// IsValidationError reports whether err is a client error that must be
// answered with HTTP 400 before any binary runs.
func IsValidationError(err error) bool {
	return errors.Is(err, accounts.ErrInvalidFields) ||
		errors.Is(err, accounts.ErrUnsupportedKind)
}
