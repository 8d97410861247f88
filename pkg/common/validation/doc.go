// Package validation provides common validation utilities for configuration
// parameters across the lazypool library.
//
// Every helper returns a *errors.ValidationError, which unwraps to
// errors.ErrInvalidConfiguration, so callers can test for bad parameters
// with errors.Is regardless of which constructor rejected them.
package validation
