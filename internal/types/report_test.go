package types

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityRequest_Validate(t *testing.T) {
	tests := []struct {
		name      string
		req       ActivityRequest
		wantField string
	}{
		{
			name: "month mode with month",
			req:  ActivityRequest{TimeframeMode: "month", Month: "2025-03", ActivityType: "all"},
		},
		{
			name:      "month mode without month",
			req:       ActivityRequest{TimeframeMode: "month", ActivityType: "all"},
			wantField: "Month",
		},
		{
			name:      "custom mode missing end",
			req:       ActivityRequest{TimeframeMode: "custom", StartDate: "2025-01-01", ActivityType: "all"},
			wantField: "EndDate",
		},
		{
			name: "custom mode ignores month",
			req:  ActivityRequest{TimeframeMode: "custom", StartDate: "2025-01-01", EndDate: "2025-01-31", ActivityType: "all"},
		},
		{
			name:      "unknown mode",
			req:       ActivityRequest{TimeframeMode: "week", ActivityType: "all"},
			wantField: "TimeframeMode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verrs validator.ValidationErrors
			require.True(t, errors.As(err, &verrs))
			assert.Equal(t, tt.wantField, verrs[0].Field())
		})
	}
}

func TestCustomTimeframe(t *testing.T) {
	tf, err := CustomTimeframe("2025-01-01", "2025-01-31")
	require.NoError(t, err)
	assert.Equal(t, TimeframeCustom, tf.Mode)
	assert.Equal(t, "2025-01-01 to 2025-01-31", tf.Label())

	_, err = CustomTimeframe("2025-02-01", "2025-01-31")
	assert.ErrorIs(t, err, ErrRangeInverted)

	_, err = CustomTimeframe("2025-01-01", "2025-01-01")
	assert.NoError(t, err, "single-day range is valid")

	_, err = CustomTimeframe("01/02/2025", "2025-01-31")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YYYY-MM-DD")
}

func TestMonthTimeframe(t *testing.T) {
	tf, err := MonthTimeframe("2025-07")
	require.NoError(t, err)
	assert.Equal(t, "2025-07", tf.Label())

	_, err = MonthTimeframe("July")
	assert.Error(t, err)
}
