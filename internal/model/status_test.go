package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusConstants(t *testing.T) {
	assert.Equal(t, "pending", StatusPending)
	assert.Equal(t, "active", StatusActive)
	assert.Equal(t, "suspended", StatusSuspended)
	assert.Equal(t, "decommissioned", StatusDecommissioned)
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]string{
		{StatusPending, StatusActive},
		{StatusPending, StatusDecommissioned},
		{StatusActive, StatusSuspended},
		{StatusActive, StatusDecommissioned},
		{StatusSuspended, StatusActive},
		{StatusSuspended, StatusDecommissioned},
	}
	for _, tr := range allowed {
		assert.True(t, CanTransition(tr[0], tr[1]), "%s -> %s should be allowed", tr[0], tr[1])
	}

	denied := [][2]string{
		{StatusPending, StatusSuspended},
		{StatusActive, StatusPending},
		{StatusSuspended, StatusPending},
		{StatusDecommissioned, StatusActive},
		{StatusDecommissioned, StatusPending},
		{StatusDecommissioned, StatusSuspended},
		{StatusActive, StatusActive},
	}
	for _, tr := range denied {
		assert.False(t, CanTransition(tr[0], tr[1]), "%s -> %s should be denied", tr[0], tr[1])
	}
}

func TestScalingPolicyValidate(t *testing.T) {
	valid := ScalingPolicy{MinInstances: 1, MaxInstances: 10, ScaleUpThreshold: 0.9, ScaleDownThreshold: 0.4}
	assert.NoError(t, valid.Validate())

	inverted := ScalingPolicy{MinInstances: 5, MaxInstances: 2}
	assert.ErrorIs(t, inverted.Validate(), ErrInvalidPolicyBounds)

	negative := ScalingPolicy{MinInstances: 1, MaxInstances: 2, ScaleUpCooldown: -1}
	assert.ErrorIs(t, negative.Validate(), ErrInvalidPolicyBounds)
}
