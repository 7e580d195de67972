package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hama-scanner/internal/model"
)

func testSignal() model.Signal {
	return model.Signal{
		ID:          "7d5c",
		Symbol:      "BTCUSDT",
		MarketType:  model.MarketFutures,
		Direction:   model.DirectionUp,
		Price:       64250.5,
		CandleClose: 64100,
		MAValue:     63900,
		Timestamp:   time.Date(2024, 4, 2, 13, 0, 0, 0, time.UTC),
		Description: "HAMA cross up: candle 64100 > MA 63900",
	}
}

// ════════════════════════════════════════════════════════════
// Alert formatting
// ════════════════════════════════════════════════════════════

func TestAlertFromSignal(t *testing.T) {
	a := AlertFromSignal(testSignal())
	assert.Equal(t, AlertInfo, a.Level)
	assert.Equal(t, "▲ BTCUSDT UP (futures)", a.Title)
	assert.Contains(t, a.Message, "cross up")
	assert.Contains(t, a.Message, "2024-04-02T13:00:00Z")
	require.NotNil(t, a.Signal)

	sig := testSignal()
	sig.Direction = model.DirectionDown
	assert.Contains(t, AlertFromSignal(sig).Title, "▼")
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `BTC\_USDT \+1\.5`, escapeMarkdown("BTC_USDT +1.5"))
	assert.Equal(t, `a\.b\!`, escapeMarkdown("a.b!"))
	assert.Equal(t, "plain", escapeMarkdown("plain"))
}

// ════════════════════════════════════════════════════════════
// Telegram
// ════════════════════════════════════════════════════════════

type fakeBot struct {
	sent []tgbot.Chattable
	err  error
}

func (b *fakeBot) Send(c tgbot.Chattable) (tgbot.Message, error) {
	b.sent = append(b.sent, c)
	return tgbot.Message{}, b.err
}

func TestTelegramNotifier(t *testing.T) {
	bot := &fakeBot{}
	tn := newTelegram(bot, -100123)

	require.NoError(t, tn.Send(context.Background(), AlertFromSignal(testSignal())))
	require.Len(t, bot.sent, 1)

	msg, ok := bot.sent[0].(tgbot.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(-100123), msg.ChatID)
	assert.Equal(t, tgbot.ModeMarkdownV2, msg.ParseMode)
	assert.Contains(t, msg.Text, "BTCUSDT UP \\(futures\\)")

	bot.err = errors.New("forbidden")
	assert.Error(t, tn.Send(context.Background(), Alert{Title: "x"}))
}

// ════════════════════════════════════════════════════════════
// Webhook
// ════════════════════════════════════════════════════════════

func TestWebhookNotifier(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wn := NewWebhookNotifier(srv.URL)
	wn.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	sink := NewAlertSink("webhook", wn)
	assert.Equal(t, "webhook", sink.Name())
	require.NoError(t, sink.Notify(context.Background(), testSignal()))

	assert.Equal(t, "INFO", got["level"])
	assert.Equal(t, "2024-01-01T00:00:00Z", got["ts"])
	sig, ok := got["signal"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "BTCUSDT", sig["symbol"])
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{Title: "t"})
	assert.ErrorContains(t, err, "unexpected status 502")
}

// ════════════════════════════════════════════════════════════
// Kafka
// ════════════════════════════════════════════════════════════

type fakeWriter struct {
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaSink(t *testing.T) {
	_, err := NewKafkaSink(KafkaConfig{Topic: "signals"})
	assert.Error(t, err)
	_, err = NewKafkaSink(KafkaConfig{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)

	fw := &fakeWriter{}
	k := &KafkaSink{w: fw, topic: "hama.signals"}
	require.NoError(t, k.Notify(context.Background(), testSignal()))

	require.Len(t, fw.msgs, 1)
	m := fw.msgs[0]
	assert.Equal(t, "hama.signals", m.Topic)
	assert.Equal(t, "BTCUSDT", string(m.Key))
	assert.Equal(t, testSignal().Timestamp, m.Time)

	var decoded model.Signal
	require.NoError(t, json.Unmarshal(m.Value, &decoded))
	assert.Equal(t, testSignal(), decoded)
}

// ════════════════════════════════════════════════════════════
// Async delivery
// ════════════════════════════════════════════════════════════

type slowSink struct {
	mu      sync.Mutex
	got     []string
	release chan struct{}
	fail    bool
}

func (s *slowSink) Name() string { return "slow" }

func (s *slowSink) Notify(_ context.Context, sig model.Signal) error {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	s.got = append(s.got, sig.ID)
	s.mu.Unlock()
	if s.fail {
		return errors.New("fail")
	}
	return nil
}

func TestAsyncSink_DeliversInOrder(t *testing.T) {
	inner := &slowSink{}
	a := NewAsyncSink(inner, 16, time.Second, nil)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, a.Notify(context.Background(), model.Signal{ID: id}))
	}
	a.Close()

	assert.Equal(t, []string{"a", "b", "c"}, inner.got)
	assert.Equal(t, "slow", a.Name())
}

func TestAsyncSink_DropsWhenFull(t *testing.T) {
	inner := &slowSink{release: make(chan struct{}), fail: true}
	a := NewAsyncSink(inner, 1, time.Second, nil)

	// First is picked up by the worker (which blocks), second fills the
	// queue, the rest are dropped.
	a.Notify(context.Background(), model.Signal{ID: "1"})
	require.Eventually(t, func() bool { return len(a.fan.ChannelStats()) == 1 && a.fan.ChannelStats()[0].Len == 0 }, time.Second, time.Millisecond)
	a.Notify(context.Background(), model.Signal{ID: "2"})
	a.Notify(context.Background(), model.Signal{ID: "3"})

	close(inner.release)
	a.Close()
	assert.Equal(t, []string{"1", "2"}, inner.got)
}
