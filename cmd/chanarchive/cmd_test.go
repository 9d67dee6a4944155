package main

import (
	"strings"
	"testing"
	"time"

	"chanarchive/pkg/auth"
	"chanarchive/pkg/index"
	"chanarchive/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTargetsGroupsByGuild(t *testing.T) {
	targets, err := parseTargets([]string{
		"100/200",
		"100/201",
		"300/400",
		"100/200",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"100": {"200", "201"},
		"300": {"400"},
	}, targets)
}

func TestParseTargetsRejectsMalformed(t *testing.T) {
	_, err := parseTargets([]string{"100/200", "general"})
	assert.Error(t, err)
}

func TestRunFlagsToMap(t *testing.T) {
	f := runFlags{output: "/tmp/out", concurrent: 5, errorPolicy: "fail_fast"}
	flags, err := f.toMap([]string{"1/2"})
	require.NoError(t, err)

	assert.Equal(t, "/tmp/out", flags["output"])
	assert.Equal(t, 5, flags["concurrent"])
	assert.Equal(t, "fail_fast", flags["error-policy"])
	assert.Equal(t, map[string][]string{"1": {"2"}}, flags["targets"])

	flags, err = f.toMap(nil)
	require.NoError(t, err)
	_, ok := flags["targets"]
	assert.False(t, ok)
}

func TestParseDay(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)

	day, err := parseDay("2023-06-30", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, time.June, 30, 0, 0, 0, 0, loc), day)

	day, err = parseDay("", loc)
	require.NoError(t, err)
	assert.True(t, day.IsZero())

	_, err = parseDay("30/06/2023", loc)
	assert.Error(t, err)
}

func TestReadTokenFromPipe(t *testing.T) {
	var prompt strings.Builder
	token, err := readToken(strings.NewReader("  abc.def.ghi  \nignored\n"), &prompt)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)
	assert.Empty(t, prompt.String())

	token, err = readToken(strings.NewReader("no-newline"), &prompt)
	require.NoError(t, err)
	assert.Equal(t, "no-newline", token)
}

func TestAccountRowsMaskTokens(t *testing.T) {
	rows := accountRows([]*auth.Account{
		{Name: "default", Token: "mfa.abcdefghijklmnop", LastModified: time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)},
	})
	require.Len(t, rows, 1)
	assert.Equal(t, "default", rows[0][0])
	assert.Equal(t, "mfa.****mnop", rows[0][1])
	assert.Equal(t, "(default)", rows[0][2])
	assert.Equal(t, "2024-01-02 03:04:05", rows[0][3])
}

func TestStatsRows(t *testing.T) {
	rows := statsRows([]index.ChannelStats{{
		GuildID:         "1",
		ChannelID:       "2",
		Runs:            3,
		DaysScanned:     10,
		FilesDownloaded: 4,
		Bytes:           2048,
	}})
	require.Len(t, rows, 1)
	require.Len(t, rows[0], len(statsHeaders))
	assert.Equal(t, "3", rows[0][2])
	assert.Equal(t, "10", rows[0][3])
	assert.Equal(t, "4", rows[0][7])
	assert.Equal(t, "2.0 KiB", rows[0][11])
	assert.Equal(t, "-", rows[0][12])
}

func TestCronLoggerForwardsFields(t *testing.T) {
	tl := logger.NewTestLogger()
	cl := cronLogger{log: tl}

	cl.Info("wake", "now", "2024-01-01", "entries", 1)
	cl.Error(assert.AnError, "panic", "job", "archive")

	assert.True(t, tl.HasMessage("cron: wake"))
	assert.True(t, tl.HasMessage("cron: panic"))
	assert.True(t, tl.HasError())
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"archive", "watch", "auth", "stats", "config", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}
