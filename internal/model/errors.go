package model

import "errors"

// ErrInvalidPolicyBounds is returned by ScalingPolicy.Validate for
// inverted instance bounds or negative cooldowns.
var ErrInvalidPolicyBounds = errors.New("invalid scaling policy bounds")
