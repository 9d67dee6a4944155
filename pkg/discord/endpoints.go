package discord

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"chanarchive/pkg/snowflake"
)

const (
	// DefaultAPIBase is the backend origin
	DefaultAPIBase = "https://discord.com"

	// DefaultAPIVersion is the REST API version used by the web client
	DefaultAPIVersion = "v9"

	// WebOrigin is the browser origin used for Referer headers
	WebOrigin = "https://discord.com"

	// SearchPageSize is the fixed number of hits per search page
	SearchPageSize = 25
)

// Endpoints builds backend URLs for one API version
type Endpoints struct {
	Base    string
	Version string
}

// DefaultEndpoints returns the production endpoints
func DefaultEndpoints() Endpoints {
	return Endpoints{Base: DefaultAPIBase, Version: DefaultAPIVersion}
}

func (e Endpoints) api(path string) string {
	return fmt.Sprintf("%s/api/%s%s", strings.TrimSuffix(e.Base, "/"), e.Version, path)
}

// SearchURL returns the message search URL for a day window. query is an
// already-encoded filter such as "has=image&has=file"; offset 0 is omitted.
func (e Endpoints) SearchURL(channelID string, w snowflake.Window, query string, offset int) string {
	var b strings.Builder
	b.WriteString(e.api("/channels/" + url.PathEscape(channelID) + "/messages/search"))
	b.WriteString("?min_id=")
	b.WriteString(strconv.FormatUint(w.Low, 10))
	b.WriteString("&max_id=")
	b.WriteString(strconv.FormatUint(w.High, 10))
	if query != "" {
		b.WriteByte('&')
		b.WriteString(query)
	}
	if offset > 0 {
		b.WriteString("&offset=")
		b.WriteString(strconv.Itoa(offset))
	}
	return b.String()
}

// LatestMessageURL returns the URL listing the newest message of a channel
func (e Endpoints) LatestMessageURL(channelID string) string {
	return e.api("/channels/" + url.PathEscape(channelID) + "/messages?limit=1")
}

// GuildURL returns the guild info URL
func (e Endpoints) GuildURL(guildID string) string {
	return e.api("/guilds/" + url.PathEscape(guildID))
}

// ChannelURL returns the channel info URL
func (e Endpoints) ChannelURL(channelID string) string {
	return e.api("/channels/" + url.PathEscape(channelID))
}

// ChannelWebURL is the browser URL of a channel, used as Referer
func ChannelWebURL(guildID, channelID string) string {
	return fmt.Sprintf("%s/channels/%s/%s", WebOrigin, guildID, channelID)
}
