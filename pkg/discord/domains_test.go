package discord

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainSetIsSafe(t *testing.T) {
	set := DefaultDomains()

	tests := []struct {
		host string
		safe bool
	}{
		{"discord.com", true},
		{"DISCORD.COM", true},
		{"discord.com:443", true},
		{"cdn.discordapp.net", true},
		{"media.discordapp.net.", true},
		{"discordapp.net", true},
		{"cdn.discordapp.com", false},
		{"evildiscord.com", false},
		{"discord.com.evil.example", false},
		{"evil.example", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.safe, set.IsSafe(tt.host), tt.host)
	}
}

func TestNewDomainSetNormalizes(t *testing.T) {
	set := NewDomainSet(" Example.ORG ", "", "api.test:8080")
	assert.Equal(t, DomainSet{"example.org", "api.test"}, set)
	assert.True(t, set.IsSafe("cdn.example.org"))
	assert.False(t, set.IsSafe("127.0.0.1:9"))
}

func TestCredentialHeadersAreFresh(t *testing.T) {
	cred := NewCredential("tok-123456789", "UA")
	h1 := cred.Headers()
	h1.Set("Range", "bytes=0-1")
	h1.Set("Authorization", "tampered")

	h2 := cred.Headers()
	assert.Empty(t, h2.Get("Range"))
	assert.Equal(t, "tok-123456789", h2.Get("Authorization"))
	assert.Equal(t, "tok-****6789", cred.String())
	assert.False(t, cred.IsZero())
	assert.True(t, NewCredential("", "UA").IsZero())
}
