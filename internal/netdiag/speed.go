package netdiag

import (
	"context"
	"fmt"
	"sort"
	"time"

	st "github.com/showwin/speedtest-go/speedtest"
)

// SpeedResult summarizes one bandwidth probe.
type SpeedResult struct {
	Server       string
	Latency      time.Duration
	DownloadMbps float64
	UploadMbps   float64
}

// MeasureSpeed runs a single download/upload test against the
// lowest-latency nearby server. It is deliberately lighter than a full
// multi-server benchmark; the diagnostics only need a rough number.
func MeasureSpeed(ctx context.Context) (*SpeedResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	client := st.New()

	servers, err := client.FetchServerListContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch server list: %w", err)
	}
	if a := servers.Available(); a != nil {
		servers = *a
	}
	if len(servers) == 0 {
		return nil, fmt.Errorf("no servers available")
	}
	sort.Slice(servers, func(i, j int) bool { return servers[i].Distance < servers[j].Distance })

	// Ping the few nearest candidates and keep the best.
	candidates := servers
	if len(candidates) > 3 {
		candidates = candidates[:3]
	}
	var best *st.Server
	for _, s := range candidates {
		if err := s.PingTestContext(ctx, nil); err != nil {
			continue
		}
		if s.Latency <= 0 {
			continue
		}
		if best == nil || s.Latency < best.Latency {
			best = s
		}
	}
	if best == nil {
		return nil, fmt.Errorf("all latency tests failed")
	}

	if err := best.DownloadTestContext(ctx); err != nil {
		return nil, fmt.Errorf("download test: %w", err)
	}
	if err := best.UploadTestContext(ctx); err != nil {
		return nil, fmt.Errorf("upload test: %w", err)
	}
	defer func() {
		client.Snapshots().Clean()
		client.Reset()
	}()

	return &SpeedResult{
		Server:       best.Sponsor,
		Latency:      best.Latency,
		DownloadMbps: best.DLSpeed.Mbps(),
		UploadMbps:   best.ULSpeed.Mbps(),
	}, nil
}
