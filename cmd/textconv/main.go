package main

import (
	"flag"
	"fmt"
	"os"

	"stockdaily/internal/textconv"
	"stockdaily/pkg/logx"
)

func main() {
	var (
		root   string
		dryRun bool
	)
	flag.StringVar(&root, "root", ".", "directory tree to convert")
	flag.BoolVar(&dryRun, "dry-run", false, "detect without rewriting files")
	flag.Parse()

	log := logx.NewConsole("INFO")

	stats, err := textconv.ConvertTree(root, dryRun, log)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	fmt.Printf("checked %d, converted %d, unchanged %d, failed %d\n",
		stats.Checked, stats.Converted, stats.Unchanged, stats.Failed)
	if stats.Failed > 0 {
		os.Exit(1)
	}
}
