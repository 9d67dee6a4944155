package discord

import (
	"encoding/json"

	"github.com/bwmarrin/discordgo"
)

// Message is a message as returned by search. discordgo has no field for the
// media proxy URL of an embedded video, so it is decoded alongside.
type Message struct {
	*discordgo.Message

	// VideoProxyURLs holds embeds[i].video.proxy_url, "" where there is none
	VideoProxyURLs []string `json:"-"`
}

type embedVideoProxies struct {
	Embeds []struct {
		Video *struct {
			ProxyURL string `json:"proxy_url"`
		} `json:"video"`
	} `json:"embeds"`
}

// UnmarshalJSON decodes the discordgo message and the embed video proxy URLs
func (m *Message) UnmarshalJSON(data []byte) error {
	var msg discordgo.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}

	var extra embedVideoProxies
	if err := json.Unmarshal(data, &extra); err != nil {
		return err
	}

	m.Message = &msg
	m.VideoProxyURLs = nil
	if len(extra.Embeds) > 0 {
		m.VideoProxyURLs = make([]string, len(extra.Embeds))
		for i, e := range extra.Embeds {
			if e.Video != nil {
				m.VideoProxyURLs[i] = e.Video.ProxyURL
			}
		}
	}
	return nil
}

// MarshalJSON writes the discordgo message with the embed video proxy URLs
// put back, so a cached page keeps the backend's shape
func (m Message) MarshalJSON() ([]byte, error) {
	if m.Message == nil {
		return []byte("null"), nil
	}
	data, err := json.Marshal(m.Message)
	if err != nil || !m.hasVideoProxies() {
		return data, err
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	var embeds []map[string]interface{}
	if err := json.Unmarshal(obj["embeds"], &embeds); err != nil {
		return nil, err
	}
	for i, e := range embeds {
		video, ok := e["video"].(map[string]interface{})
		if !ok {
			continue
		}
		if u := m.VideoProxyURL(i); u != "" {
			video["proxy_url"] = u
		}
	}
	if obj["embeds"], err = json.Marshal(embeds); err != nil {
		return nil, err
	}
	return json.Marshal(obj)
}

func (m *Message) hasVideoProxies() bool {
	for _, u := range m.VideoProxyURLs {
		if u != "" {
			return true
		}
	}
	return false
}

// VideoProxyURL returns the proxy URL of the i-th embed's video
func (m *Message) VideoProxyURL(i int) string {
	if m == nil || i < 0 || i >= len(m.VideoProxyURLs) {
		return ""
	}
	return m.VideoProxyURLs[i]
}

// Wrap adapts discordgo messages without proxy information
func Wrap(msgs ...*discordgo.Message) []*Message {
	out := make([]*Message, len(msgs))
	for i, msg := range msgs {
		if msg != nil {
			out[i] = &Message{Message: msg}
		}
	}
	return out
}
