// Package httpx builds the HTTP client used for calls to Discord and Stripe.
package httpx

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/dnscache"
	"github.com/rs/zerolog/log"
)

const defaultTimeout = 10 * time.Second

var (
	resolver     *dnscache.Resolver
	resolverOnce sync.Once
)

// Resolver returns the process-wide DNS cache, refreshed every refresh interval.
func Resolver(refresh time.Duration) *dnscache.Resolver {
	resolverOnce.Do(func() {
		if refresh <= 0 {
			refresh = 5 * time.Minute
		}
		resolver = &dnscache.Resolver{}
		go func() {
			ticker := time.NewTicker(refresh)
			defer ticker.Stop()
			for range ticker.C {
				resolver.Refresh(true)
			}
		}()
		log.Debug().Dur("refresh", refresh).Msg("DNS cache initialised")
	})
	return resolver
}

// NewClient returns a client whose whole request (dial, TLS, headers, body)
// is bounded by timeout. Lookups go through the shared DNS cache.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	r := Resolver(0)

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		ips, err := r.LookupHost(ctx, host)
		if err != nil {
			return nil, err
		}
		var lastErr error
		for _, ip := range ips {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
		return nil, lastErr
	}
	transport.TLSHandshakeTimeout = 5 * time.Second
	transport.ResponseHeaderTimeout = timeout

	return &http.Client{Timeout: timeout, Transport: transport}
}
