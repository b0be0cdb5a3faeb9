package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sleepimport/internal/archive"
	"github.com/JonMunkholm/sleepimport/internal/core"
	"github.com/JonMunkholm/sleepimport/internal/metrics"
)

type webhook struct {
	*httptest.Server
	hits   atomic.Int32
	bodies chan message
	status int
}

func newWebhook(t *testing.T, status int) *webhook {
	t.Helper()
	w := &webhook{bodies: make(chan message, 16), status: status}
	w.Server = httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		w.hits.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var m message
		require.NoError(t, json.Unmarshal(raw, &m))
		w.bodies <- m

		rw.WriteHeader(w.status)
	}))
	t.Cleanup(w.Close)
	return w
}

func TestSend_PostsContent(t *testing.T) {
	hook := newWebhook(t, http.StatusNoContent)
	n := New(Config{WebhookURL: hook.URL})

	before := testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues(ResultSent))
	require.NoError(t, n.Send(context.Background(), "hello"))

	got := <-hook.bodies
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues(ResultSent)))
	assert.Equal(t, "closed", n.State())
}

func TestSend_DisabledIsNoop(t *testing.T) {
	n := New(Config{})
	assert.False(t, n.Enabled())
	assert.Equal(t, "disabled", n.State())

	before := testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues(ResultSkipped))
	require.NoError(t, n.Send(context.Background(), "ignored"))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues(ResultSkipped)))

	var nilNotifier *Notifier
	assert.NoError(t, nilNotifier.Send(context.Background(), "ignored"))
}

func TestSend_StatusError(t *testing.T) {
	hook := newWebhook(t, http.StatusBadRequest)
	n := New(Config{WebhookURL: hook.URL, Retries: 3, RetryWait: time.Millisecond})

	err := n.Send(context.Background(), "hello")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.EqualValues(t, 1, hook.hits.Load(), "4xx other than 429 is not retried")
}

func TestSend_RetriesServerErrors(t *testing.T) {
	hook := newWebhook(t, http.StatusBadGateway)
	n := New(Config{WebhookURL: hook.URL, Retries: 2, RetryWait: time.Millisecond})

	err := n.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.EqualValues(t, 3, hook.hits.Load())
}

func TestSend_BreakerOpens(t *testing.T) {
	hook := newWebhook(t, http.StatusInternalServerError)
	n := New(Config{WebhookURL: hook.URL, FailureThreshold: 2, OpenTimeout: time.Hour})

	for i := 0; i < 2; i++ {
		require.Error(t, n.Send(context.Background(), "x"))
	}
	assert.Equal(t, "open", n.State())

	err := n.Send(context.Background(), "x")
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState), "got %v", err)
	assert.EqualValues(t, 2, hook.hits.Load(), "open breaker must not reach the webhook")
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues(breakerName)))
}

func TestSend_TruncatesLongContent(t *testing.T) {
	hook := newWebhook(t, http.StatusOK)
	n := New(Config{WebhookURL: hook.URL})

	require.NoError(t, n.Send(context.Background(), strings.Repeat("z", 3000)))
	got := <-hook.bodies
	assert.Len(t, []rune(got.Content), MaxContentLength)
	assert.True(t, strings.HasSuffix(got.Content, "…"))
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"toolong", 4, "too…"},
		{"ééééé", 3, "éé…"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.limit); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
		}
	}
}

func TestImportMessage(t *testing.T) {
	start := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	r := &core.ImportResult{
		TotalRecords: 412,
		NewRecords:   1,
		NewRecordSummaries: []core.RecordSummary{{
			StartTime:     start,
			EndTime:       time.Date(2023, 11, 15, 6, 0, 0, 0, time.UTC),
			SleepDuration: 7.5,
			Comment:       "#home",
		}},
	}

	want := "Sleep data processed successfully. 412 records processed, 1 new records added.\n" +
		"- 2023-11-14 22:13 UTC → 2023-11-15 06:00 UTC, 7.5h asleep #home"
	assert.Equal(t, want, ImportMessage(r))
}

func TestImportMessage_CapsSessionList(t *testing.T) {
	r := &core.ImportResult{TotalRecords: 15, NewRecords: 15}
	for i := 0; i < 15; i++ {
		r.NewRecordSummaries = append(r.NewRecordSummaries, core.RecordSummary{SleepDuration: 7})
	}

	msg := ImportMessage(r)
	assert.Equal(t, maxListedSessions, strings.Count(msg, "\n- "))
	assert.Contains(t, msg, "…and 5 more")
}

func TestFailureMessage(t *testing.T) {
	err := &core.ImportError{
		ImportID: "abc",
		Stage:    core.StageExtracting,
		Kind:     string(archive.PayloadNotFound),
		Err:      archive.ErrPayloadNotFound,
	}

	msg := FailureMessage(err)
	assert.Contains(t, msg, "Code: ARC002")
	assert.Contains(t, msg, "stage: extracting")
	assert.Contains(t, msg, "import: abc")
}
