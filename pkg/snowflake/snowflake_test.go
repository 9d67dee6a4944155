package snowflake

import (
	"strconv"
	"testing"
	"time"

	"chanarchive/pkg/errors"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSnowflakeEpoch(t *testing.T) {
	epoch := time.UnixMilli(EpochMS)
	assert.Equal(t, uint64(0), ToSnowflake(epoch))
	assert.Equal(t, uint64(1)<<22, ToSnowflake(epoch.Add(time.Millisecond)))
	assert.Equal(t, uint64(0), ToSnowflake(epoch.Add(-time.Hour)))
}

func TestRoundTrip(t *testing.T) {
	for _, ms := range []int64{EpochMS, EpochMS + 1, 1700000000123, 1893456000000} {
		id := ToSnowflake(time.UnixMilli(ms))
		assert.Zero(t, id&(1<<22-1), "low bits must be zero")
		assert.InDelta(t, float64(ms)/1000, ToTimestamp(id), 1e-9)
		assert.Equal(t, ms, Time(id).UnixMilli())
	}
}

func TestMatchesDiscordgo(t *testing.T) {
	ts := time.Date(2023, time.March, 14, 15, 9, 26, 535000000, time.UTC)
	id := ToSnowflake(ts)

	got, err := discordgo.SnowflakeTimestamp(strconv.FormatUint(id, 10))
	require.NoError(t, err)
	assert.True(t, got.Equal(ts), "discordgo=%s ours=%s", got, ts)
}

func TestDayBounds(t *testing.T) {
	clock := NewClock(time.UTC)

	w, err := clock.DayBounds(2, time.January, 2024)
	require.NoError(t, err)
	assert.Less(t, w.Low, w.High)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Time(w.Low).UTC())
	assert.Equal(t, time.Date(2024, 1, 2, 23, 59, 59, 0, time.UTC), Time(w.High).UTC())

	next, err := clock.DayBounds(3, time.January, 2024)
	require.NoError(t, err)
	assert.Less(t, w.High, next.Low)
	assert.True(t, next.Contains(next.Low))
	assert.False(t, next.Contains(w.High))
}

func TestDayBoundsMonotonic(t *testing.T) {
	clock := NewClock(time.FixedZone("UTC+5", 5*3600))
	day := time.Date(2019, time.December, 28, 0, 0, 0, 0, clock.Location)

	var prev Window
	for i := 0; i < 10; i++ {
		w, err := clock.DayWindow(day)
		require.NoError(t, err)
		if i > 0 {
			assert.Less(t, prev.High, w.Low)
		}
		prev = w
		day = day.AddDate(0, 0, 1)
	}
}

func TestDayBoundsInvalidDate(t *testing.T) {
	_, err := NewClock(time.UTC).DayBounds(31, time.December, 2014)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidDate))
}

func TestBeforeMin(t *testing.T) {
	clock := NewClock(time.UTC)
	assert.False(t, clock.BeforeMin(time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, clock.BeforeMin(time.Date(2014, 12, 31, 0, 0, 0, 0, time.UTC)))
}

func TestParseID(t *testing.T) {
	id, err := ParseID("175928847299117063")
	require.NoError(t, err)
	assert.Equal(t, uint64(175928847299117063), id)
	assert.Equal(t, int64(1462015105796), Time(id).UnixMilli())

	_, err = ParseID("not-an-id")
	assert.True(t, errors.IsType(err, errors.ErrorTypeParsing))
}
