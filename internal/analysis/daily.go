// Package analysis implements the recurring market-analysis run. From the
// scheduler's point of view it is an opaque callback; everything here can
// fail without affecting the scheduling loop.
package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"stockdaily/internal/notify"
	"stockdaily/internal/quotes"
	"stockdaily/internal/stocknames"
	"stockdaily/pkg/logx"
)

// Line is the per-code outcome of one run.
type Line struct {
	Code  string
	Name  string
	Quote *quotes.Quote
	Err   error
}

// Report is the result of one analysis run.
type Report struct {
	Generated time.Time
	Lines     []Line
	Failed    int
}

// Daily fetches a quote for every configured code, resolves display names
// and delivers a summary.
type Daily struct {
	quotes  *quotes.Client
	names   *stocknames.Service
	sender  notify.Sender // nil disables delivery
	codes   []string
	timeout time.Duration
	log     logx.Logger
}

func NewDaily(q *quotes.Client, names *stocknames.Service, sender notify.Sender, codes []string, timeout time.Duration, log logx.Logger) *Daily {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Daily{quotes: q, names: names, sender: sender, codes: codes, timeout: timeout, log: log}
}

// Run is the scheduler task. One whole run is bounded by the configured
// deadline; per-code failures are collected, and only a run where every
// code failed reports an error.
func (d *Daily) Run(ctx context.Context) error {
	if len(d.codes) == 0 {
		d.log.Warn("no codes configured; skipping analysis run")
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	rep := d.collect(ctx)
	if rep.Failed == len(rep.Lines) {
		return fmt.Errorf("analysis failed for all %d codes", len(rep.Lines))
	}

	summary := Format(rep)
	d.log.Info("analysis run finished",
		logx.Int("codes", len(rep.Lines)),
		logx.Int("failed", rep.Failed))

	if d.sender != nil {
		// Delivery failure must not fail the run.
		if err := d.sender.Send(ctx, summary); err != nil {
			d.log.Warn("summary delivery failed", logx.Err(err))
		}
	}
	return nil
}

func (d *Daily) collect(ctx context.Context) *Report {
	rep := &Report{Generated: time.Now()}
	for _, code := range d.codes {
		line := Line{Code: code}
		if d.names != nil {
			line.Name = d.names.Name(ctx, code)
		}
		q, err := d.quotes.Quote(ctx, code)
		if err != nil {
			line.Err = err
			rep.Failed++
			d.log.Warn("quote fetch failed", logx.String("code", code), logx.Err(err))
		} else {
			line.Quote = q
		}
		rep.Lines = append(rep.Lines, line)
	}
	return rep
}

// Format renders the report as the plain-text summary pushed to the chat.
// Lines are ordered by daily change, biggest movers first.
func Format(rep *Report) string {
	ok := make([]Line, 0, len(rep.Lines))
	var failed []Line
	for _, l := range rep.Lines {
		if l.Err != nil {
			failed = append(failed, l)
			continue
		}
		ok = append(ok, l)
	}
	sort.SliceStable(ok, func(i, j int) bool {
		return ok[i].Quote.ChangePct() > ok[j].Quote.ChangePct()
	})

	var b strings.Builder
	fmt.Fprintf(&b, "每日覆盤 %s\n", rep.Generated.Format("2006-01-02"))
	for _, l := range ok {
		fmt.Fprintf(&b, "%s %s  %.2f (%+.2f%%)\n", l.Code, l.Name, l.Quote.Price, l.Quote.ChangePct())
	}
	if len(failed) > 0 {
		fmt.Fprintf(&b, "無數據: ")
		for i, l := range failed {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(l.Code)
		}
		b.WriteString("\n")
	}
	return b.String()
}
