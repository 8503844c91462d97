package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadDefaults(t *testing.T) Config {
	t.Helper()
	v := viper.New()
	setDefaults(v)
	var c Config
	require.NoError(t, v.Unmarshal(&c))
	return c
}

func TestLoadDefaults(t *testing.T) {
	c := loadDefaults(t)

	assert.Equal(t, "8080", c.AppPort)
	assert.Equal(t, "09:00-17:00", c.BusinessHours)
	assert.Equal(t, 30, c.AppointmentDuration)
	assert.Equal(t, 3, c.MaxFieldRetries)
	assert.Equal(t, 100*time.Millisecond, c.TurnSampleInterval())
	assert.Equal(t, 24*time.Hour, c.ReminderLead())
}

func TestBusinessCalendarFromDefaults(t *testing.T) {
	cal, err := loadDefaults(t).BusinessCalendar()
	require.NoError(t, err)

	assert.Equal(t, 9*60, cal.OpenMinute)
	assert.Equal(t, 17*60, cal.CloseMinute)
	assert.Equal(t, 30*time.Minute, cal.Duration)
	assert.Equal(t, "Europe/Paris", cal.Loc().String())
	assert.True(t, cal.IsOpenOn(time.Tuesday))
	assert.False(t, cal.IsOpenOn(time.Sunday))

	require.Len(t, cal.ServiceTypes, 3)
	assert.Equal(t, "follow-up", cal.ServiceTypes[1].ID)
	assert.Contains(t, cal.ServiceTypes[1].Aliases, "suivi")
}

func TestBusinessCalendarRejectsMalformedValues(t *testing.T) {
	cases := map[string]func(*Config){
		"zero duration":     func(c *Config) { c.AppointmentDuration = 0 },
		"negative duration": func(c *Config) { c.AppointmentDuration = -15 },
		"open after close":  func(c *Config) { c.BusinessHours = "18:00-09:00" },
		"open equals close": func(c *Config) { c.BusinessHours = "09:00-09:00" },
		"garbage hours":     func(c *Config) { c.BusinessHours = "nine to five" },
		"bad minute":        func(c *Config) { c.BusinessHours = "09:75-17:00" },
		"unknown day":       func(c *Config) { c.BusinessDays = "mon,funday" },
		"unknown timezone":  func(c *Config) { c.BusinessTimezone = "Mars/Olympus" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := loadDefaults(t)
			mutate(&c)
			_, err := c.BusinessCalendar()
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestBusinessCalendarEmptyDaysMeansEveryDay(t *testing.T) {
	c := loadDefaults(t)
	c.BusinessDays = ""
	cal, err := c.BusinessCalendar()
	require.NoError(t, err)
	assert.True(t, cal.IsOpenOn(time.Sunday))
}
