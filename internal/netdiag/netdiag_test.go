package netdiag

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestProxyEnvReportsAllKeys(t *testing.T) {
	t.Setenv("HTTP_PROXY", "http://127.0.0.1:8080")
	t.Setenv("NO_PROXY", "")

	env := ProxyEnv()
	if env["HTTP_PROXY"] != "http://127.0.0.1:8080" {
		t.Errorf("HTTP_PROXY = %q", env["HTTP_PROXY"])
	}
	for _, k := range []string{"http_proxy", "https_proxy", "no_proxy", "HTTPS_PROXY", "NO_PROXY"} {
		if _, ok := env[k]; !ok {
			t.Errorf("missing key %s", k)
		}
	}
}

func TestCheckTCP(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()

	res := CheckTCP(context.Background(), Target{Name: "local", HostPort: ln.Addr().String()})
	if !res.OK {
		t.Fatalf("probe failed: %v", res.Err)
	}
	if res.Name != "local/tcp" {
		t.Errorf("name = %q", res.Name)
	}
}

func TestCheckTCPRefused(t *testing.T) {
	t.Parallel()
	// Grab a port and close it so nothing listens there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res := CheckTCP(ctx, Target{Name: "dead", HostPort: addr})
	if res.OK || res.Err == nil {
		t.Fatalf("expected failure, got %+v", res)
	}
}

func TestCheckHTTP(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	res := CheckHTTP(context.Background(), Target{Name: "local", URL: srv.URL})
	if !res.OK {
		t.Fatalf("any HTTP status should count as reachable: %v", res.Err)
	}
	if !strings.Contains(res.Detail, "403") {
		t.Errorf("detail = %q", res.Detail)
	}
}

func TestCheckHTTPSkipsEmptyURL(t *testing.T) {
	t.Parallel()
	res := CheckHTTP(context.Background(), Target{Name: "none"})
	if !res.OK || res.Detail != "skipped" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRunChecksProbesEveryTarget(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()
	host := strings.TrimPrefix(srv.URL, "http://")

	results := RunChecks(context.Background(), []Target{
		{Name: "local", HostPort: host, URL: srv.URL},
	}, 2*time.Second)
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3 (tcp, tls, http)", len(results))
	}
	// TLS against a plaintext server must fail; TCP and HTTP succeed.
	for _, res := range results {
		switch {
		case strings.HasSuffix(res.Name, "/tls"):
			if res.OK {
				t.Errorf("tls probe against plaintext server succeeded")
			}
		default:
			if !res.OK {
				t.Errorf("%s failed: %v", res.Name, res.Err)
			}
		}
	}
}
