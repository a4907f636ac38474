package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestScheduleSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		spec    ScheduleSpec
		wantErr bool
	}{
		{name: "hourly", spec: ScheduleSpec{Kind: ScheduleHourly}},
		{name: "daily", spec: ScheduleSpec{Kind: ScheduleDaily, Hour: 9}},
		{name: "weekly", spec: ScheduleSpec{Kind: ScheduleWeekly, Weekday: time.Monday, Hour: 9}},
		{name: "monthly with day", spec: ScheduleSpec{Kind: ScheduleMonthly, Day: 1, Hour: 9}},
		{name: "monthly without day", spec: ScheduleSpec{Kind: ScheduleMonthly, Hour: 9}, wantErr: true},
		{name: "valid cron", spec: ScheduleSpec{Kind: ScheduleCron, Cron: "*/5 * * * *"}},
		{name: "empty cron", spec: ScheduleSpec{Kind: ScheduleCron}, wantErr: true},
		{name: "malformed cron", spec: ScheduleSpec{Kind: ScheduleCron, Cron: "not a cron"}, wantErr: true},
		{name: "unknown kind", spec: ScheduleSpec{Kind: "fortnightly"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidSchedule)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestScheduleSpec_IsDue_Hourly(t *testing.T) {
	spec := ScheduleSpec{Kind: ScheduleHourly}
	now := time.Date(2024, 3, 10, 12, 30, 0, 0, time.UTC)

	due, err := spec.IsDue(now, nil)
	require.NoError(t, err)
	assert.True(t, due, "never-run schedule is due immediately")

	due, err = spec.IsDue(now, timePtr(now.Add(-61*time.Minute)))
	require.NoError(t, err)
	assert.True(t, due)

	due, err = spec.IsDue(now, timePtr(now.Add(-30*time.Minute)))
	require.NoError(t, err)
	assert.False(t, due)
}

func TestScheduleSpec_IsDue_Daily(t *testing.T) {
	spec := ScheduleSpec{Kind: ScheduleDaily, Hour: 9}
	inWindow := time.Date(2024, 3, 10, 9, 15, 0, 0, time.UTC)
	outOfWindow := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)

	due, err := spec.IsDue(outOfWindow, nil)
	require.NoError(t, err)
	assert.True(t, due, "never-run schedule is due immediately, even outside its window")

	due, err = spec.IsDue(inWindow, timePtr(inWindow.AddDate(0, 0, -1)))
	require.NoError(t, err)
	assert.True(t, due, "due inside the hour window when last run was yesterday")

	due, err = spec.IsDue(outOfWindow, timePtr(inWindow.AddDate(0, 0, -1)))
	require.NoError(t, err)
	assert.False(t, due, "not due outside the hour window")

	// Already ran today: calling again inside the window must not re-fire.
	due, err = spec.IsDue(inWindow.Add(2*time.Minute), timePtr(inWindow))
	require.NoError(t, err)
	assert.False(t, due)
}

func TestScheduleSpec_IsDue_Weekly(t *testing.T) {
	spec := ScheduleSpec{Kind: ScheduleWeekly, Weekday: time.Monday, Hour: 8}
	monday := time.Date(2024, 3, 11, 8, 5, 0, 0, time.UTC)

	due, err := spec.IsDue(monday, timePtr(monday.AddDate(0, 0, -7)))
	require.NoError(t, err)
	assert.True(t, due)

	due, err = spec.IsDue(monday, timePtr(monday.Add(-10*time.Minute)))
	require.NoError(t, err)
	assert.False(t, due, "one run per week")

	tuesday := monday.AddDate(0, 0, 1)
	due, err = spec.IsDue(tuesday, timePtr(monday.AddDate(0, 0, -7)))
	require.NoError(t, err)
	assert.False(t, due, "wrong weekday")
}

func TestScheduleSpec_IsDue_Monthly(t *testing.T) {
	spec := ScheduleSpec{Kind: ScheduleMonthly, Day: 1, Hour: 6}
	firstOfMonth := time.Date(2024, 4, 1, 6, 45, 0, 0, time.UTC)

	due, err := spec.IsDue(firstOfMonth, timePtr(firstOfMonth.AddDate(0, -1, 0)))
	require.NoError(t, err)
	assert.True(t, due)

	due, err = spec.IsDue(firstOfMonth.Add(5*time.Minute), timePtr(firstOfMonth))
	require.NoError(t, err)
	assert.False(t, due, "one run per month")
}

func TestScheduleSpec_IsDue_Cron(t *testing.T) {
	spec := ScheduleSpec{Kind: ScheduleCron, Cron: "0 * * * *"} // top of every hour
	now := time.Date(2024, 3, 10, 12, 10, 0, 0, time.UTC)

	due, err := spec.IsDue(now, nil)
	require.NoError(t, err)
	assert.True(t, due)

	// Last run before the most recent fire time (12:00) -> due.
	due, err = spec.IsDue(now, timePtr(time.Date(2024, 3, 10, 11, 30, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.True(t, due)

	// Last run after the most recent fire time -> not due.
	due, err = spec.IsDue(now, timePtr(time.Date(2024, 3, 10, 12, 1, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.False(t, due)
}
