package notify

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ladderbot/internal/config"
	"ladderbot/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testTelegram wires a Telegram notifier at an httptest server instead of
// the real Bot API.
func testTelegram(t *testing.T, handler http.HandlerFunc) (*Telegram, *int32) {
	t.Helper()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if handler != nil {
			handler(w, r)
		}
	}))
	t.Cleanup(server.Close)

	tg := NewTelegram(config.NotifierConfig{Enabled: true, BotToken: "tok", ChatID: "chat"}, testLogger())
	tg.baseURL = server.URL
	return tg, &calls
}

func TestSendMessageDisabledIsNoop(t *testing.T) {
	t.Parallel()
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	tg := NewTelegram(config.NotifierConfig{Enabled: false}, testLogger())
	tg.baseURL = server.URL
	tg.SendMessage("hello")

	if called {
		t.Fatal("a disabled notifier must never hit the network")
	}
}

func TestSendMessagePostsToSendMessageEndpoint(t *testing.T) {
	t.Parallel()
	var path string
	var payload map[string]string
	tg, calls := testTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusOK)
	})

	tg.SendMessage("hello world")

	if *calls != 1 {
		t.Fatalf("calls = %d, want 1", *calls)
	}
	if path != "/bottok/sendMessage" {
		t.Fatalf("path = %q, want /bottok/sendMessage", path)
	}
	if payload["chat_id"] != "chat" || payload["text"] != "hello world" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestSendMessageNon200IsLoggedNotPanicked(t *testing.T) {
	t.Parallel()
	tg, _ := testTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	tg.SendMessage("hello")
}

func TestSendStartupIncludesBalance(t *testing.T) {
	t.Parallel()
	var text string
	tg, _ := testTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		text = payload["text"]
		w.WriteHeader(http.StatusOK)
	})

	tg.SendStartup(decimal.NewFromFloat(123.456))

	if !strings.Contains(text, "123.46") {
		t.Fatalf("text = %q, want balance 123.46", text)
	}
}

func TestSendEventDiscoveredIncludesSlugAndMinutes(t *testing.T) {
	t.Parallel()
	var text string
	tg, _ := testTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		text = payload["text"]
		w.WriteHeader(http.StatusOK)
	})

	event := &types.Event{Slug: "bitcoin-up-or-down-jul-31-2pm-et", StartTime: time.Now().Add(30 * time.Minute)}
	tg.SendEventDiscovered(event)

	if !strings.Contains(text, event.Slug) {
		t.Fatalf("text = %q, want event slug", text)
	}
}

func TestSendFillBuyHasNoPnLLine(t *testing.T) {
	t.Parallel()
	var text string
	tg, _ := testTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		text = payload["text"]
		w.WriteHeader(http.StatusOK)
	})

	order := &types.TrackedOrder{
		EventSlug:    "ev-1",
		Side:         types.YES,
		Type:         types.BUY,
		Price:        decimal.NewFromFloat(0.42),
		OriginalSize: decimal.NewFromInt(10),
	}
	tg.SendFill(order, decimal.Zero)

	if strings.Contains(text, "PnL") {
		t.Fatalf("text = %q, a buy fill should not report PnL", text)
	}
	if !strings.Contains(text, "42") {
		t.Fatalf("text = %q, want price in cents", text)
	}
}

func TestSendFillSellReportsSignedPnL(t *testing.T) {
	t.Parallel()
	var text string
	tg, _ := testTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		text = payload["text"]
		w.WriteHeader(http.StatusOK)
	})

	order := &types.TrackedOrder{
		EventSlug:    "ev-1",
		Side:         types.YES,
		Type:         types.SELL,
		Price:        decimal.NewFromFloat(0.60),
		OriginalSize: decimal.NewFromInt(10),
	}
	tg.SendFill(order, decimal.NewFromFloat(-2.5))

	if !strings.Contains(text, "-$2.50") {
		t.Fatalf("text = %q, want a negative PnL line", text)
	}
}

func TestSendPhaseTransitionIncludesCancelCount(t *testing.T) {
	t.Parallel()
	var text string
	tg, _ := testTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		text = payload["text"]
		w.WriteHeader(http.StatusOK)
	})

	tg.SendPhaseTransition("ev-1", 4)

	if !strings.Contains(text, "4") {
		t.Fatalf("text = %q, want cancelled count", text)
	}
}

func TestSendCycleReportFormatsFillsAndDuration(t *testing.T) {
	t.Parallel()
	var text string
	tg, _ := testTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		text = payload["text"]
		w.WriteHeader(http.StatusOK)
	})

	start := time.Now().Add(-30 * time.Minute)
	end := time.Now()
	tg.SendCycleReport(types.CycleResult{
		EventSlug: "ev-1",
		FillsYes:  []decimal.Decimal{decimal.NewFromFloat(0.40), decimal.NewFromFloat(0.44)},
		FillsNo:   nil,
		TotalPnL:  decimal.NewFromFloat(5.25),
		StartTime: start,
		EndTime:   end,
	})

	if !strings.Contains(text, "40, 44") {
		t.Fatalf("text = %q, want YES fills in cents", text)
	}
	if !strings.Contains(text, "NO: ---") {
		t.Fatalf("text = %q, want NO: --- for no fills", text)
	}
	if !strings.Contains(text, "+$5.25") {
		t.Fatalf("text = %q, want positive PnL", text)
	}
	if !strings.Contains(text, "30 minutes") {
		t.Fatalf("text = %q, want duration", text)
	}
}

func TestSendErrorWrapsMessage(t *testing.T) {
	t.Parallel()
	var text string
	tg, _ := testTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		text = payload["text"]
		w.WriteHeader(http.StatusOK)
	})

	tg.SendError("exchange unreachable")

	if !strings.Contains(text, "exchange unreachable") {
		t.Fatalf("text = %q, want the error message", text)
	}
}

func TestFormatCentsJoinsMultipleEntries(t *testing.T) {
	t.Parallel()
	out := formatCents([]decimal.Decimal{decimal.NewFromFloat(0.40), decimal.NewFromFloat(0.55)})
	if out != "40, 55" {
		t.Fatalf("formatCents = %q, want \"40, 55\"", out)
	}
}
