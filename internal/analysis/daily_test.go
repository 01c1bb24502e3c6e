package analysis

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stockdaily/internal/quotes"
	"stockdaily/pkg/logx"
)

type stubSender struct {
	sent []string
}

func (s *stubSender) Send(ctx context.Context, text string) error {
	s.sent = append(s.sent, text)
	return nil
}

func quoteServer(t *testing.T, data map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := data[r.URL.Query().Get("code")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDailyRunDeliversSummary(t *testing.T) {
	t.Parallel()
	srv := quoteServer(t, map[string]string{
		"600519": `{"code":"600519","price":1700,"prev_close":1650}`,
		"000001": `{"code":"000001","price":10,"prev_close":11}`,
	})
	sender := &stubSender{}
	d := NewDaily(
		quotes.NewClient(srv.URL, 100, logx.Nop()),
		nil,
		sender,
		[]string{"600519", "000001"},
		time.Minute,
		logx.Nop(),
	)

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	msg := sender.sent[0]
	// Biggest gainer first.
	if !strings.Contains(msg, "600519") || strings.Index(msg, "600519") > strings.Index(msg, "000001") {
		t.Fatalf("summary not ordered by change: %q", msg)
	}
}

func TestDailyRunToleratesPartialFailure(t *testing.T) {
	t.Parallel()
	srv := quoteServer(t, map[string]string{
		"600519": `{"code":"600519","price":1700,"prev_close":1650}`,
	})
	sender := &stubSender{}
	d := NewDaily(
		quotes.NewClient(srv.URL, 100, logx.Nop()),
		nil,
		sender,
		[]string{"600519", "999999"},
		time.Minute,
		logx.Nop(),
	)

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "無數據: 999999") {
		t.Fatalf("summary should mention the failed code: %v", sender.sent)
	}
}

func TestDailyRunFailsWhenAllCodesFail(t *testing.T) {
	t.Parallel()
	srv := quoteServer(t, nil)
	d := NewDaily(
		quotes.NewClient(srv.URL, 100, logx.Nop()),
		nil,
		nil,
		[]string{"600519"},
		time.Minute,
		logx.Nop(),
	)
	if err := d.Run(context.Background()); err == nil {
		t.Fatal("expected error when every code fails")
	}
}

func TestDailyRunSkipsWithoutCodes(t *testing.T) {
	t.Parallel()
	d := NewDaily(quotes.NewClient("", 1, logx.Nop()), nil, nil, nil, time.Minute, logx.Nop())
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
}
