package main

import (
	"flag"
	"fmt"
	"os"

	"stockdaily/internal/migrate"
	"stockdaily/pkg/logx"
)

func main() {
	var (
		root     string
		planPath string
		dryRun   bool
		rollback bool
	)
	flag.StringVar(&root, "root", ".", "project root to migrate")
	flag.StringVar(&planPath, "plan", "migrate_plan.json", "path to the move plan")
	flag.BoolVar(&dryRun, "dry-run", false, "preview without changing anything")
	flag.BoolVar(&rollback, "rollback", false, "restore files from the newest backup")
	flag.Parse()

	log := logx.NewConsole("INFO")

	plan := migrate.Plan{}
	if !rollback {
		var err error
		plan, err = migrate.LoadPlan(planPath)
		if err != nil {
			fmt.Println("fatal:", err)
			os.Exit(1)
		}
	}

	m, err := migrate.New(root, plan, dryRun, log)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	if rollback {
		if err := m.Rollback(); err != nil {
			fmt.Println("fatal:", err)
			os.Exit(1)
		}
		fmt.Println("rollback complete")
		return
	}

	rep, err := m.Run()
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	verb := "moved"
	if rep.DryRun {
		verb = "would move"
	}
	fmt.Printf("%s %d file(s), skipped %d\n", verb, len(rep.Moved), len(rep.Skipped))
	if rep.BackupDir != "" {
		fmt.Println("backup:", rep.BackupDir)
	}
}
