// Package netdiag runs one-shot network diagnostics for the data sources
// the daemon depends on: proxy environment, TCP/TLS reachability, HTTP
// round-trips and an optional bandwidth probe.
package netdiag

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"
)

// CheckResult is the outcome of a single probe.
type CheckResult struct {
	Name    string
	Target  string
	OK      bool
	Latency time.Duration
	Detail  string
	Err     error
}

// Target names one endpoint to probe.
type Target struct {
	Name string
	// HostPort for TCP/TLS probes, e.g. "push2.eastmoney.com:443".
	HostPort string
	// URL for the HTTP probe; empty skips it.
	URL string
}

// DefaultTargets covers the market-data endpoints the daemon talks to.
var DefaultTargets = []Target{
	{Name: "eastmoney", HostPort: "push2.eastmoney.com:443", URL: "https://push2.eastmoney.com"},
	{Name: "xueqiu", HostPort: "xueqiu.com:443", URL: "https://xueqiu.com"},
	{Name: "sina-hq", HostPort: "hq.sinajs.cn:443", URL: "https://hq.sinajs.cn"},
}

// ProxyEnv reports the proxy-related environment variables that affect the
// HTTP stack, including empty ones, so a stray setting is easy to spot.
func ProxyEnv() map[string]string {
	out := map[string]string{}
	for _, key := range []string{"http_proxy", "https_proxy", "no_proxy", "HTTP_PROXY", "HTTPS_PROXY", "NO_PROXY"} {
		out[key] = os.Getenv(key)
	}
	return out
}

// CheckTCP measures a plain TCP connect.
func CheckTCP(ctx context.Context, t Target) CheckResult {
	res := CheckResult{Name: t.Name + "/tcp", Target: t.HostPort}
	d := net.Dialer{}
	start := time.Now()
	conn, err := d.DialContext(ctx, "tcp", t.HostPort)
	res.Latency = time.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	_ = conn.Close()
	res.OK = true
	return res
}

// CheckTLS measures a full TLS handshake, verifying the certificate chain.
func CheckTLS(ctx context.Context, t Target) CheckResult {
	res := CheckResult{Name: t.Name + "/tls", Target: t.HostPort}
	d := tls.Dialer{Config: &tls.Config{}}
	start := time.Now()
	conn, err := d.DialContext(ctx, "tcp", t.HostPort)
	res.Latency = time.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	if tc, ok := conn.(*tls.Conn); ok {
		state := tc.ConnectionState()
		res.Detail = fmt.Sprintf("%s %s", tls.VersionName(state.Version), state.NegotiatedProtocol)
	}
	_ = conn.Close()
	res.OK = true
	return res
}

// CheckHTTP measures one GET round-trip. Any HTTP status counts as
// reachable; only transport errors fail the check.
func CheckHTTP(ctx context.Context, t Target) CheckResult {
	res := CheckResult{Name: t.Name + "/http", Target: t.URL}
	if t.URL == "" {
		res.Detail = "skipped"
		res.OK = true
		return res
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		res.Err = err
		return res
	}
	client := &http.Client{Timeout: 10 * time.Second}
	start := time.Now()
	resp, err := client.Do(req)
	res.Latency = time.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	_ = resp.Body.Close()
	res.OK = true
	res.Detail = resp.Status
	return res
}

// RunChecks probes every target with a per-probe deadline.
func RunChecks(ctx context.Context, targets []Target, perProbe time.Duration) []CheckResult {
	if perProbe <= 0 {
		perProbe = 5 * time.Second
	}
	var out []CheckResult
	for _, t := range targets {
		for _, probe := range []func(context.Context, Target) CheckResult{CheckTCP, CheckTLS, CheckHTTP} {
			pctx, cancel := context.WithTimeout(ctx, perProbe)
			out = append(out, probe(pctx, t))
			cancel()
		}
	}
	return out
}
