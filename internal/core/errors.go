package core

import "errors"

// ErrInvalid marks a caller mistake, as opposed to a provider or
// storage failure. Transports map it to a 4xx response.
var ErrInvalid = errors.New("invalid input")
