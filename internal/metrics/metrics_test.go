package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordImport_Success(t *testing.T) {
	okBefore := testutil.ToFloat64(ImportsTotal.WithLabelValues(OutcomeSuccess, ""))
	parsedBefore := testutil.ToFloat64(RecordsTotal.WithLabelValues("parsed"))
	newBefore := testutil.ToFloat64(RecordsTotal.WithLabelValues("new"))

	RecordImport(250*time.Millisecond, 12, 3, "", nil)

	if got := testutil.ToFloat64(ImportsTotal.WithLabelValues(OutcomeSuccess, "")) - okBefore; got != 1 {
		t.Errorf("success count delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(RecordsTotal.WithLabelValues("parsed")) - parsedBefore; got != 12 {
		t.Errorf("parsed delta = %v, want 12", got)
	}
	if got := testutil.ToFloat64(RecordsTotal.WithLabelValues("new")) - newBefore; got != 3 {
		t.Errorf("new delta = %v, want 3", got)
	}
	if testutil.ToFloat64(LastSuccess) == 0 {
		t.Error("LastSuccess not set")
	}
}

func TestRecordImport_Failure(t *testing.T) {
	before := testutil.ToFloat64(ImportsTotal.WithLabelValues(OutcomeFailure, "parsing"))
	parsedBefore := testutil.ToFloat64(RecordsTotal.WithLabelValues("parsed"))

	RecordImport(time.Millisecond, 0, 0, "parsing", errors.New("bad row"))

	if got := testutil.ToFloat64(ImportsTotal.WithLabelValues(OutcomeFailure, "parsing")) - before; got != 1 {
		t.Errorf("failure count delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(RecordsTotal.WithLabelValues("parsed")) - parsedBefore; got != 0 {
		t.Errorf("failed import must not count records, delta = %v", got)
	}
}

func TestRecordNotification(t *testing.T) {
	before := testutil.ToFloat64(NotificationsTotal.WithLabelValues("skipped"))
	RecordNotification("skipped")
	RecordNotification("skipped")
	if got := testutil.ToFloat64(NotificationsTotal.WithLabelValues("skipped")) - before; got != 2 {
		t.Errorf("skipped delta = %v, want 2", got)
	}
}

func TestTrackInFlight(t *testing.T) {
	before := testutil.ToFloat64(ImportsInFlight)
	TrackInFlight(true)
	TrackInFlight(true)
	TrackInFlight(false)
	if got := testutil.ToFloat64(ImportsInFlight) - before; got != 1 {
		t.Errorf("in-flight delta = %v, want 1", got)
	}
	TrackInFlight(false)
}

func TestRecordHTTPRequest(t *testing.T) {
	RecordHTTPRequest("POST", "/upload", "200", 30*time.Millisecond)
	if got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/upload", "200")); got < 1 {
		t.Errorf("request count = %v, want >= 1", got)
	}
}

func TestMetricsLint(t *testing.T) {
	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	if err != nil {
		t.Fatalf("GatherAndLint() error = %v", err)
	}
	for _, p := range problems {
		if strings.HasPrefix(p.Metric, namespace+"_") {
			t.Errorf("lint %s: %s", p.Metric, p.Text)
		}
	}
}
