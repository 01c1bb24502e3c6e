// Package migrate reorganizes a project tree according to a declarative
// move plan. It is a one-shot maintenance tool: preview with dry-run,
// apply with a backup, roll back from the newest backup if needed.
package migrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"stockdaily/pkg/logx"
)

// Move relocates one file, both paths relative to the root.
type Move struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Plan describes a full migration.
type Plan struct {
	// Dirs are created first, even when no move targets them.
	Dirs  []string `json:"dirs,omitempty"`
	Moves []Move   `json:"moves"`
}

// Report records what a run did (or, in dry-run, would do).
type Report struct {
	Timestamp time.Time `json:"timestamp"`
	DryRun    bool      `json:"dry_run"`
	BackupDir string    `json:"backup_dir,omitempty"`
	Moved     []Move    `json:"moved"`
	Skipped   []string  `json:"skipped"`
}

const (
	backupPrefix = ".backup_"
	logName      = "migration_log.json"
)

// Migrator applies a Plan under a fixed root directory.
type Migrator struct {
	root   string
	plan   Plan
	dryRun bool
	log    logx.Logger
}

func New(root string, plan Plan, dryRun bool, log logx.Logger) (*Migrator, error) {
	if root == "" {
		return nil, errors.New("root directory is empty")
	}
	if err := plan.validate(); err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Migrator{root: root, plan: plan, dryRun: dryRun, log: log}, nil
}

func (p Plan) validate() error {
	seen := map[string]string{}
	for _, m := range p.Moves {
		if m.From == "" || m.To == "" {
			return fmt.Errorf("move with empty path: %+v", m)
		}
		if filepath.IsAbs(m.From) || filepath.IsAbs(m.To) {
			return fmt.Errorf("move paths must be relative: %s -> %s", m.From, m.To)
		}
		for _, pth := range []string{m.From, m.To} {
			clean := filepath.Clean(pth)
			if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
				return fmt.Errorf("move path escapes root: %s", pth)
			}
		}
		if prev, ok := seen[m.To]; ok {
			return fmt.Errorf("destination %s claimed by both %s and %s", m.To, prev, m.From)
		}
		seen[m.To] = m.From
	}
	return nil
}

// Run executes the plan: backup, directories, then moves. In dry-run mode
// nothing on disk changes and the report describes the would-be outcome.
func (m *Migrator) Run() (*Report, error) {
	rep := &Report{Timestamp: time.Now(), DryRun: m.dryRun}

	if !m.dryRun {
		dir, err := m.backup()
		if err != nil {
			return nil, fmt.Errorf("backup: %w", err)
		}
		rep.BackupDir = dir
	}

	for _, d := range m.plan.Dirs {
		if m.dryRun {
			m.log.Info("would create directory", logx.String("dir", d))
			continue
		}
		if err := os.MkdirAll(filepath.Join(m.root, d), 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", d, err)
		}
	}

	for _, mv := range m.plan.Moves {
		src := filepath.Join(m.root, mv.From)
		dst := filepath.Join(m.root, mv.To)

		if _, err := os.Stat(src); err != nil {
			rep.Skipped = append(rep.Skipped, mv.From)
			m.log.Warn("skipping missing file", logx.String("from", mv.From))
			continue
		}
		if m.dryRun {
			m.log.Info("would move", logx.String("from", mv.From), logx.String("to", mv.To))
			rep.Moved = append(rep.Moved, mv)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return nil, fmt.Errorf("create parent of %s: %w", mv.To, err)
		}
		if err := os.Rename(src, dst); err != nil {
			return nil, fmt.Errorf("move %s -> %s: %w", mv.From, mv.To, err)
		}
		m.log.Info("moved", logx.String("from", mv.From), logx.String("to", mv.To))
		rep.Moved = append(rep.Moved, mv)
	}

	if !m.dryRun {
		if err := m.writeLog(rep); err != nil {
			m.log.Warn("migration log not written", logx.Err(err))
		}
	}
	return rep, nil
}

// backup copies every top-level regular file that a move could touch into
// a timestamped directory next to them.
func (m *Migrator) backup() (string, error) {
	dir := filepath.Join(m.root, backupPrefix+time.Now().Format("20060102_150405"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	for _, mv := range m.plan.Moves {
		src := filepath.Join(m.root, mv.From)
		info, err := os.Stat(src)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if err := copyFile(src, filepath.Join(dir, filepath.Base(mv.From))); err != nil {
			return "", fmt.Errorf("backing up %s: %w", mv.From, err)
		}
	}
	return dir, nil
}

// Rollback restores files from the newest backup directory.
func (m *Migrator) Rollback() error {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return err
	}
	var backups []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), backupPrefix) {
			backups = append(backups, e.Name())
		}
	}
	if len(backups) == 0 {
		return errors.New("no backup directory found")
	}
	sort.Strings(backups)
	latest := filepath.Join(m.root, backups[len(backups)-1])
	m.log.Info("rolling back", logx.String("backup", latest))

	files, err := os.ReadDir(latest)
	if err != nil {
		return err
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		src := filepath.Join(latest, f.Name())
		if err := copyFile(src, filepath.Join(m.root, f.Name())); err != nil {
			return fmt.Errorf("restoring %s: %w", f.Name(), err)
		}
	}
	return nil
}

func (m *Migrator) writeLog(rep *Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(m.root, logName), append(data, '\n'), 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// LoadPlan reads a Plan from a JSON file.
func LoadPlan(path string) (Plan, error) {
	var p Plan
	data, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse plan %s: %w", path, err)
	}
	if err := p.validate(); err != nil {
		return p, err
	}
	return p, nil
}
