package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionOrder(t *testing.T) {
	assert.True(t, CanTransitionOrder(OrderStatusPending, OrderStatusPaid))

	// PAID 是终态，不允许任何流转
	assert.False(t, CanTransitionOrder(OrderStatusPaid, OrderStatusPending))
	assert.False(t, CanTransitionOrder(OrderStatusPaid, OrderStatusPaid))
	assert.False(t, CanTransitionOrder("UNKNOWN", OrderStatusPaid))
}

func TestIsValidDeductionOrder(t *testing.T) {
	assert.True(t, IsValidDeductionOrder(DeductionGiftFirst))
	assert.True(t, IsValidDeductionOrder(DeductionRechargeFirst))
	assert.False(t, IsValidDeductionOrder(""))
	assert.False(t, IsValidDeductionOrder("BONUS_FIRST"))
}

func TestIsValidAppointmentStatus(t *testing.T) {
	for _, status := range []string{
		AppointmentStatusPending, AppointmentStatusConfirmed, AppointmentStatusArrived,
		AppointmentStatusInService, AppointmentStatusCompleted, AppointmentStatusCancelled,
		AppointmentStatusOverdue,
	} {
		assert.True(t, IsValidAppointmentStatus(status), status)
	}
	assert.False(t, IsValidAppointmentStatus("NO_SHOW"))
	assert.False(t, IsValidAppointmentStatus(""))
}
