// Package selector classifies media URLs and picks the ones a run should download.
package selector

import (
	"mime"
	"net/url"
	"path"
	"strings"

	"chanarchive/pkg/discord"
)

// Kind is the coarse media class of a URL
type Kind int

const (
	KindOther Kind = iota
	KindImage
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "other"
	}
}

// Source tells where in a message a reference was found
type Source string

const (
	SourceAttachment Source = "attachment"
	SourceEmbedImage Source = "embed_image"
	SourceEmbedVideo Source = "embed_video"
)

// MediaRef is one downloadable reference
type MediaRef struct {
	URL       string
	Kind      Kind
	Source    Source
	MessageID string
}

// TypeFilter selects which kinds are downloaded. Files covers everything
// that is neither an image nor a video.
type TypeFilter struct {
	Images bool
	Videos bool
	Files  bool
}

// All enables every kind
func All() TypeFilter {
	return TypeFilter{Images: true, Videos: true, Files: true}
}

const octetStream = "application/octet-stream"

func init() {
	// The platform MIME tables often lack the common video containers.
	extra := map[string]string{
		".mp4":  "video/mp4",
		".m4v":  "video/mp4",
		".webm": "video/webm",
		".mov":  "video/quicktime",
		".mkv":  "video/x-matroska",
		".avi":  "video/x-msvideo",
		".gifv": "video/mp4",
		".webp": "image/webp",
		".avif": "image/avif",
	}
	for ext, typ := range extra {
		if mime.TypeByExtension(ext) == "" {
			_ = mime.AddExtensionType(ext, typ)
		}
	}
}

// MIMEType guesses the MIME type from the URL path extension, ignoring the
// query string. Unknown types are application/octet-stream.
func MIMEType(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return octetStream
	}
	typ := mime.TypeByExtension(ext)
	if typ == "" {
		return octetStream
	}
	if i := strings.IndexByte(typ, ';'); i >= 0 {
		typ = typ[:i]
	}
	return typ
}

// Classify returns the media kind of a URL
func Classify(rawURL string) Kind {
	typ := MIMEType(rawURL)
	switch {
	case strings.HasPrefix(typ, "image/"):
		return KindImage
	case strings.HasPrefix(typ, "video/"):
		return KindVideo
	default:
		return KindOther
	}
}

// ShouldDownload applies the filter to a kind
func ShouldDownload(k Kind, f TypeFilter) bool {
	switch k {
	case KindImage:
		return f.Images
	case KindVideo:
		return f.Videos
	default:
		return f.Files
	}
}

// Select extracts the references to download from a day's messages. The
// proxied attachment URL is preferred. Embedded images are kept when images
// are wanted. Embedded videos are kept when videos are wanted and the backend
// proxies them; the plain video URL points at the third-party page. Duplicate
// URLs are dropped, as are nil messages and embeds.
func Select(messages []*discord.Message, f TypeFilter) []MediaRef {
	seen := make(map[string]struct{})
	var refs []MediaRef

	add := func(ref MediaRef) {
		if ref.URL == "" {
			return
		}
		if _, dup := seen[ref.URL]; dup {
			return
		}
		seen[ref.URL] = struct{}{}
		refs = append(refs, ref)
	}

	for _, msg := range messages {
		if msg == nil || msg.Message == nil {
			continue
		}

		for _, att := range msg.Attachments {
			if att == nil {
				continue
			}
			u := att.ProxyURL
			if u == "" {
				u = att.URL
			}
			kind := Classify(u)
			if ShouldDownload(kind, f) {
				add(MediaRef{URL: u, Kind: kind, Source: SourceAttachment, MessageID: msg.ID})
			}
		}

		for i, embed := range msg.Embeds {
			if embed == nil {
				continue
			}
			if f.Images && embed.Image != nil {
				u := embed.Image.ProxyURL
				if u == "" {
					u = embed.Image.URL
				}
				add(MediaRef{URL: u, Kind: KindImage, Source: SourceEmbedImage, MessageID: msg.ID})
			}
			if f.Videos && embed.Video != nil {
				add(MediaRef{URL: msg.VideoProxyURL(i), Kind: KindVideo, Source: SourceEmbedVideo, MessageID: msg.ID})
			}
		}
	}
	return refs
}
