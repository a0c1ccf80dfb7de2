package probe

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Func probes one node address within the given timeout. It must return
// reachable=false for ordinary network failure rather than an error;
// latency is meaningful only when reachable is true.
type Func func(ctx context.Context, address string, timeout time.Duration) (reachable bool, latency time.Duration)

// TCP returns a probe that measures the time to establish a TCP
// connection to the node's address.
func TCP() Func {
	var dialer net.Dialer

	return func(ctx context.Context, address string, timeout time.Duration) (bool, time.Duration) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		start := time.Now()
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			return false, 0
		}
		conn.Close()

		return true, time.Since(start)
	}
}

// HTTP returns a probe that sends GET /health to the node and treats
// any 2xx response as reachable.
func HTTP() Func {
	return func(ctx context.Context, address string, timeout time.Duration) (bool, time.Duration) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		healthURL := url.URL{Scheme: "http", Host: address, Path: "/health"}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL.String(), nil)
		if err != nil {
			return false, 0
		}

		client := &http.Client{Timeout: timeout}

		start := time.Now()
		res, err := client.Do(req)
		if err != nil {
			return false, 0
		}
		defer res.Body.Close()

		if res.StatusCode < 200 || res.StatusCode > 299 {
			return false, 0
		}

		return true, time.Since(start)
	}
}

// ForKind maps a configured probe kind to its implementation.
func ForKind(kind string) (Func, error) {
	switch kind {
	case "tcp":
		return TCP(), nil
	case "http":
		return HTTP(), nil
	default:
		return nil, fmt.Errorf("unknown probe kind %q", kind)
	}
}
