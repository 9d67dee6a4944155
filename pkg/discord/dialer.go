package discord

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"chanarchive/pkg/config"

	"golang.org/x/net/proxy"
)

// NewHTTPClient builds the connection shim for the configured network:
// direct, tunneled through an HTTP(S) CONNECT proxy, or through SOCKS5.
// Redirects are never followed by the client itself. cfg.Timeout bounds the
// wait for response headers only; a body stream is bounded by the request
// context, so long downloads are not cut off mid-file.
func NewHTTPClient(cfg config.NetworkConfig) (*http.Client, error) {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
	}

	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}

		switch proxyURL.Scheme {
		case "http", "https":
			transport.Proxy = http.ProxyURL(proxyURL)
		case "socks5", "socks5h":
			socks, err := proxy.FromURL(proxyURL, dialer)
			if err != nil {
				return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
			}
			transport.DialContext = contextDialer(socks)
		default:
			return nil, fmt.Errorf("unsupported proxy scheme %q", proxyURL.Scheme)
		}
	}

	return &http.Client{
		Transport:     transport,
		CheckRedirect: noFollow,
	}, nil
}

func contextDialer(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}
}

func noFollow(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}
