package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusAdvance(t *testing.T) {
	tests := []struct {
		from, to, want Status
	}{
		{StatusPending, StatusPaymentConfirmed, StatusPaymentConfirmed},
		{StatusPaymentConfirmed, StatusConfirmed, StatusConfirmed},
		{StatusConfirmed, StatusPaymentConfirmed, StatusConfirmed},
		{StatusInProgress, StatusPending, StatusInProgress},
		{StatusCancelled, StatusPaymentConfirmed, StatusCancelled},
		{StatusPending, StatusCancelled, StatusPending},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.Advance(tt.to), "%s -> %s", tt.from, tt.to)
	}
}
