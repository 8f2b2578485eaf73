package config

import "errors"

// ErrInvalidConfig indicates a configuration that cannot be used.
var ErrInvalidConfig = errors.New("config: invalid configuration")
