package archiver

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"chanarchive/pkg/config"
	"chanarchive/pkg/search"

	"golang.org/x/sync/errgroup"
)

// Targets flattens the configured guild -> channels map in a stable order
func Targets(cfg *config.Config) []search.Target {
	guilds := make([]string, 0, len(cfg.Targets))
	for g := range cfg.Targets {
		guilds = append(guilds, g)
	}
	sort.Strings(guilds)

	var out []search.Target
	for _, g := range guilds {
		for _, c := range cfg.Targets[g] {
			out = append(out, search.Target{GuildID: g, ChannelID: c})
		}
	}
	return out
}

// ArchiveAll walks every target, up to download.concurrent_channels at a
// time, all sharing one client and its cooldown gate. In fail-fast mode the
// first failing channel cancels the others. Summaries keep target order.
func (a *Archiver) ArchiveAll(ctx context.Context, targets []search.Target, opts RunOptions) ([]*Summary, error) {
	summaries := make([]*Summary, len(targets))

	var g *errgroup.Group
	gctx := ctx
	if a.failFast() {
		g, gctx = errgroup.WithContext(ctx)
	} else {
		g = &errgroup.Group{}
	}
	if n := a.cfg.Download.ConcurrentChannels; n > 0 {
		g.SetLimit(n)
	}

	for i, t := range targets {
		g.Go(func() error {
			s, err := a.ArchiveChannel(gctx, t, opts)
			summaries[i] = s
			if err != nil && a.failFast() {
				return fmt.Errorf("channel %s: %w", t.ChannelID, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summaries, err
	}

	var errs []error
	for _, s := range summaries {
		if s != nil && s.Err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", s.Target.ChannelID, s.Err))
		}
	}
	return summaries, errors.Join(errs...)
}
