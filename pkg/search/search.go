// Package search walks the backend's paged message search for one day window.
package search

import (
	"context"
	"strings"

	"chanarchive/pkg/config"
	"chanarchive/pkg/discord"
	"chanarchive/pkg/logger"
	"chanarchive/pkg/retry"
	"chanarchive/pkg/snowflake"
)

// PageSize is the number of hits the backend returns per page
const PageSize = discord.SearchPageSize

// Status is the outcome of one day
type Status int

const (
	DayFetched Status = iota
	DayEmpty
	DayFailed
)

func (s Status) String() string {
	switch s {
	case DayFetched:
		return "fetched"
	case DayEmpty:
		return "empty"
	default:
		return "failed"
	}
}

// Query selects which content classes the search asks for
type Query struct {
	Images bool
	Files  bool
	Embeds bool
	Links  bool
	Videos bool
	NSFW   bool
}

// QueryFromConfig maps the query section of the configuration
func QueryFromConfig(c config.QueryConfig) Query {
	return Query(c)
}

// Encode renders the filter as has=...&include_nsfw=true in a fixed order
func (q Query) Encode() string {
	var terms []string
	for _, t := range []struct {
		on   bool
		term string
	}{
		{q.Images, "has=image"},
		{q.Files, "has=file"},
		{q.Embeds, "has=embed"},
		{q.Links, "has=link"},
		{q.Videos, "has=video"},
		{q.NSFW, "include_nsfw=true"},
	} {
		if t.on {
			terms = append(terms, t.term)
		}
	}
	return strings.Join(terms, "&")
}

// Target identifies one channel
type Target struct {
	GuildID   string
	ChannelID string
}

// Page is one decoded search response. Each group holds one hit.
type Page struct {
	TotalResults int                  `json:"total_results"`
	Messages     [][]*discord.Message `json:"messages"`
}

// Result is the merge of every page fetched for a day
type Result struct {
	Window       snowflake.Window
	TotalResults int
	// Messages holds one message per hit, the first of its group
	Messages []*discord.Message
	// Groups keeps the raw grouped hits, context messages included
	Groups         [][]*discord.Message
	PagesRequested int
	PagesFailed    int
	Status         Status
}

// Page returns the merged result in the backend's response shape
func (r *Result) Page() Page {
	return Page{TotalResults: r.TotalResults, Messages: r.Groups}
}

// Complete reports whether every announced hit was retrieved
func (r *Result) Complete() bool {
	return r.PagesFailed == 0 && len(r.Messages) == r.TotalResults
}

// All returns every message of every group in order. A group can carry
// context messages around the hit, and media may sit on any of them.
func (r *Result) All() []*discord.Message {
	var out []*discord.Message
	for _, group := range r.Groups {
		for _, m := range group {
			if m != nil && m.Message != nil {
				out = append(out, m)
			}
		}
	}
	return out
}

func (r *Result) add(p *Page) {
	for _, group := range p.Messages {
		r.Groups = append(r.Groups, group)
		for _, m := range group {
			if m != nil && m.Message != nil {
				r.Messages = append(r.Messages, m)
				break
			}
		}
	}
}

// Fetcher is the slice of the transport the paginator needs
type Fetcher interface {
	GetJSON(ctx context.Context, r discord.Request, target interface{}) error
	Endpoints() discord.Endpoints
}

// Paginator fetches and merges every page of a day
type Paginator struct {
	client Fetcher
	logger logger.Logger
	// FirstPage controls retries of the first page; nil means one attempt
	FirstPage *retry.Config
}

// NewPaginator creates a Paginator
func NewPaginator(client Fetcher, log logger.Logger) *Paginator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Paginator{client: client, logger: log}
}

// PageCount returns how many pages total hits span
func PageCount(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + PageSize - 1) / PageSize
}

// Offset returns the offset parameter of a 1-based page number
func Offset(page int) int {
	return PageSize * (page - 1)
}

// FetchDay retrieves every hit inside w. A failed first page fails the day
// and is returned as an error with Status DayFailed. A failed later page is
// counted in PagesFailed and its hits are missing from the result.
func (p *Paginator) FetchDay(ctx context.Context, t Target, w snowflake.Window, q Query) (*Result, error) {
	endpoints := p.client.Endpoints()
	query := q.Encode()
	referer := discord.ChannelWebURL(t.GuildID, t.ChannelID)
	res := &Result{Window: w}

	fetch := func(offset int) (*Page, error) {
		var page Page
		req := discord.Request{
			URL:     endpoints.SearchURL(t.ChannelID, w, query, offset),
			Referer: referer,
		}
		if err := p.client.GetJSON(ctx, req, &page); err != nil {
			return nil, err
		}
		return &page, nil
	}

	first, err := p.firstPage(ctx, fetch)
	res.PagesRequested = 1
	if err != nil {
		res.Status = DayFailed
		return res, err
	}

	res.TotalResults = first.TotalResults
	if first.TotalResults == 0 {
		res.Status = DayEmpty
		return res, nil
	}
	res.add(first)

	pages := PageCount(first.TotalResults)
	for page := 2; page <= pages; page++ {
		if ctx.Err() != nil {
			res.PagesFailed += pages - page + 1
			break
		}
		res.PagesRequested++
		next, err := fetch(Offset(page))
		if err != nil {
			res.PagesFailed++
			p.logger.WarnWithFields("search page lost", map[string]interface{}{
				"channel_id": t.ChannelID,
				"page":       page,
				"pages":      pages,
				"error":      err.Error(),
			})
			continue
		}
		res.add(next)
	}

	res.Status = DayFetched
	return res, nil
}

func (p *Paginator) firstPage(ctx context.Context, fetch func(int) (*Page, error)) (*Page, error) {
	if p.FirstPage == nil {
		return fetch(0)
	}
	cfg := *p.FirstPage
	cfg.Context = ctx
	if cfg.Logger == nil {
		cfg.Logger = p.logger
	}
	return retry.DoWithResult(func() (*Page, error) { return fetch(0) }, &cfg)
}
