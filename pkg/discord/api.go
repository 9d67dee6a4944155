package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// Guild fetches guild info
func (c *Client) Guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	var g discordgo.Guild
	if err := c.GetJSON(ctx, Request{URL: c.endpoints.GuildURL(guildID)}, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// Channel fetches channel info
func (c *Client) Channel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	var ch discordgo.Channel
	if err := c.GetJSON(ctx, Request{URL: c.endpoints.ChannelURL(channelID)}, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// LatestMessage returns the newest message of a channel, or nil for an empty channel
func (c *Client) LatestMessage(ctx context.Context, guildID, channelID string) (*discordgo.Message, error) {
	var msgs []*discordgo.Message
	req := Request{
		URL:     c.endpoints.LatestMessageURL(channelID),
		Referer: ChannelWebURL(guildID, channelID),
	}
	if err := c.GetJSON(ctx, req, &msgs); err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return msgs[0], nil
}
