/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package ads

import (
	"errors"
	"fmt"
)

// ErrSkipUnsupported is returned when a skip targets a feed other than PSAs.
var ErrSkipUnsupported = errors.New("skip is only supported for PSAs")

// ValidationError rejects operator input before anything is sent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
