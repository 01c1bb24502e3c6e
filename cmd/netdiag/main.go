package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"stockdaily/internal/netdiag"
	"stockdaily/pkg/logx"
)

func main() {
	var (
		timeout   time.Duration
		withSpeed bool
	)
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "per-probe timeout")
	flag.BoolVar(&withSpeed, "speed", false, "also run a bandwidth test")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log := logx.NewConsole("INFO")

	fmt.Println("proxy environment:")
	env := netdiag.ProxyEnv()
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := env[k]
		if v == "" {
			v = "(unset)"
		}
		fmt.Printf("  %-12s %s\n", k, v)
	}

	fmt.Println("\nconnectivity:")
	failed := 0
	for _, res := range netdiag.RunChecks(ctx, netdiag.DefaultTargets, timeout) {
		status := "ok"
		detail := res.Detail
		if !res.OK {
			status = "FAIL"
			failed++
			detail = res.Err.Error()
		}
		fmt.Printf("  %-18s %-4s %8s  %s\n", res.Name, status, res.Latency.Round(time.Millisecond), detail)
	}

	if withSpeed {
		fmt.Println("\nbandwidth:")
		sctx, scancel := context.WithTimeout(ctx, 2*time.Minute)
		res, err := netdiag.MeasureSpeed(sctx)
		scancel()
		if err != nil {
			log.Error("bandwidth test failed", logx.Err(err))
			failed++
		} else {
			fmt.Printf("  server   %s\n", res.Server)
			fmt.Printf("  latency  %s\n", res.Latency.Round(time.Millisecond))
			fmt.Printf("  down     %.2f Mbps\n", res.DownloadMbps)
			fmt.Printf("  up       %.2f Mbps\n", res.UploadMbps)
		}
	}

	if failed > 0 {
		fmt.Printf("\n%d check(s) failed\n", failed)
		os.Exit(1)
	}
	fmt.Println("\nall checks passed")
}
