package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		name     string
		schedule domain.Schedule
		wantErr  bool
	}{
		{"valid", domain.Schedule{Name: "Morning", StartMinute: 420, EndMinute: 540}, false},
		{"valid wraparound", domain.Schedule{Name: "Night", StartMinute: 1320, EndMinute: 360}, false},
		{"empty name", domain.Schedule{Name: "  ", StartMinute: 420, EndMinute: 540}, true},
		{"start equals end", domain.Schedule{Name: "Bad", StartMinute: 540, EndMinute: 540}, true},
		{"negative start", domain.Schedule{Name: "Neg", StartMinute: -1, EndMinute: 540}, true},
		{"end out of range", domain.Schedule{Name: "Late", StartMinute: 420, EndMinute: 1440}, true},
		{"too short", domain.Schedule{Name: "Blip", StartMinute: 420, EndMinute: 430}, true},
		{"exactly minimum", domain.Schedule{Name: "Quarter", StartMinute: 420, EndMinute: 435}, false},
		{"reserved suffix", domain.Schedule{Name: "lunch.override", StartMinute: 720, EndMinute: 780}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchedule(tt.schedule, DefaultMinimumWindow)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrScheduleRejected)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateBatch_DropsInvalidAndDuplicates(t *testing.T) {
	list := []domain.Schedule{
		{Name: "Morning", StartMinute: 420, EndMinute: 540, Enabled: true},
		{Name: "Bad", StartMinute: 540, EndMinute: 540, Enabled: true},
		{Name: "Deep Work", StartMinute: 600, EndMinute: 720, Enabled: true},
		{Name: "Deep_Work", StartMinute: 800, EndMinute: 900, Enabled: true},
	}

	accepted, rejected := ValidateBatch(list, DefaultMinimumWindow)

	require.Len(t, accepted, 2)
	assert.Equal(t, "Morning", accepted[0].Name)
	assert.Equal(t, "Deep Work", accepted[1].Name)

	require.Len(t, rejected, 2)
	assert.Equal(t, "Bad", rejected[0].Schedule.Name)
	assert.Equal(t, "Deep_Work", rejected[1].Schedule.Name)
	assert.Contains(t, rejected[1].Reason.Error(), "duplicate")
}

func TestParseWindowSpec(t *testing.T) {
	s, err := ParseWindowSpec("Evening=20:00-23:30")
	require.NoError(t, err)
	assert.Equal(t, domain.Schedule{Name: "Evening", StartMinute: 1200, EndMinute: 1410, Enabled: true, Repeats: true}, s)

	_, err = ParseWindowSpec("Evening 20:00-23:30")
	assert.Error(t, err)

	_, err = ParseWindowSpec("Evening=20:00")
	assert.Error(t, err)

	_, err = ParseWindowSpec("Evening=25:00-23:30")
	assert.Error(t, err)
}
