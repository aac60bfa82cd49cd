package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveQuery(t *testing.T) {
	m := New()
	m.ObserveQuery("TABLE", OutcomeOK, time.Millisecond, 3)
	m.ObserveQuery("TABLE", OutcomeQueryError, time.Millisecond, 0)
	m.ObserveQuery("", OutcomeNeedsIndex, 0, 0)

	if got := testutil.ToFloat64(m.QueriesTotal.WithLabelValues("TABLE", OutcomeOK)); got != 1 {
		t.Errorf("ok queries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.QueriesTotal.WithLabelValues("unknown", OutcomeNeedsIndex)); got != 1 {
		t.Errorf("needs_index queries = %v, want 1", got)
	}
}

func TestObserveRebuild(t *testing.T) {
	m := New()
	built := time.Unix(1700000000, 0)
	m.ObserveRebuild(nil, time.Second, 42, built)
	m.ObserveRebuild(errors.New("boom"), time.Second, 0, time.Time{})

	if got := testutil.ToFloat64(m.IndexDocuments); got != 42 {
		t.Errorf("documents = %v, want 42", got)
	}
	if got := testutil.ToFloat64(m.IndexBuiltAt); got != 1700000000 {
		t.Errorf("built_at = %v", got)
	}
	if got := testutil.ToFloat64(m.RebuildsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("failed rebuilds = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveQuery("LIST", OutcomeOK, 0, 0)
	m.ObserveRebuild(nil, 0, 0, time.Now())
	m.WatcherEvent("created")
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.WatcherEvent("created")
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `ansuz_watcher_events_total{kind="created"} 1`) {
		t.Errorf("metrics output missing watcher counter:\n%s", body)
	}
}
