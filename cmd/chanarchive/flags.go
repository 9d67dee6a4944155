package main

import (
	"fmt"
	"time"

	"chanarchive/pkg/config"

	"github.com/spf13/cobra"
)

// runFlags are the flags shared by archive and watch
type runFlags struct {
	token       string
	account     string
	output      string
	proxy       string
	chunkSize   int64
	concurrent  int
	channels    int
	errorPolicy string
	indexPath   string
	metricsAddr string
	cacheJSON   bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.token, "token", "", "account token (prefer 'chanarchive auth login' or CHANARCHIVE_TOKEN)")
	fs.StringVarP(&f.account, "account", "a", "", "use a specific stored account")
	fs.StringVarP(&f.output, "output", "o", "", "archive root directory")
	fs.StringVar(&f.proxy, "proxy", "", "proxy URL (http://, https:// or socks5://)")
	fs.Int64Var(&f.chunkSize, "chunk-size", 0, "byte range size for downloads, negative disables ranges")
	fs.IntVar(&f.concurrent, "concurrent", 0, "concurrent downloads per channel")
	fs.IntVar(&f.channels, "channels", 0, "channels archived in parallel")
	fs.StringVar(&f.errorPolicy, "error-policy", "", "best_effort or fail_fast")
	fs.StringVar(&f.indexPath, "index", "", "SQLite archive index path")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	fs.BoolVar(&f.cacheJSON, "cache-json", false, "write each day's search results next to the media")
}

// toMap converts the flags and target arguments for config.MergeCommandLineFlags
func (f *runFlags) toMap(args []string) (map[string]interface{}, error) {
	flags := map[string]interface{}{
		"token":        f.token,
		"output":       f.output,
		"proxy":        f.proxy,
		"chunk-size":   f.chunkSize,
		"concurrent":   f.concurrent,
		"channels":     f.channels,
		"error-policy": f.errorPolicy,
		"index":        f.indexPath,
		"metrics-addr": f.metricsAddr,
	}

	if len(args) > 0 {
		targets, err := parseTargets(args)
		if err != nil {
			return nil, err
		}
		flags["targets"] = targets
	}
	return flags, nil
}

// apply sets what MergeCommandLineFlags does not cover
func (f *runFlags) apply(cfg *config.Config) {
	if f.cacheJSON {
		cfg.Output.CacheJSON = true
	}
}

// parseTargets groups guild_id/channel_id arguments by guild, dropping repeats
func parseTargets(args []string) (map[string][]string, error) {
	targets := make(map[string][]string)
	seen := make(map[string]bool)
	for _, arg := range args {
		g, c, err := config.ParseTarget(arg)
		if err != nil {
			return nil, err
		}
		if seen[g+"/"+c] {
			continue
		}
		seen[g+"/"+c] = true
		targets[g] = append(targets[g], c)
	}
	return targets, nil
}

// parseDay reads a YYYY-MM-DD date in loc
func parseDay(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}
