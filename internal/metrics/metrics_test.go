package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordImport(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	c.RecordImport("api", "success")
	c.RecordImport("api", "success")
	c.RecordImport("inbox", "rejected")

	if got := testutil.ToFloat64(c.imports.WithLabelValues("api", "success")); got != 2 {
		t.Errorf("expected 2 api imports, got %v", got)
	}
	if got := testutil.ToFloat64(c.imports.WithLabelValues("inbox", "rejected")); got != 1 {
		t.Errorf("expected 1 rejected inbox import, got %v", got)
	}
}

func TestRecordAnalysis(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	c.RecordAnalysis("heuristic", "success", 2*time.Millisecond, 80, 90)
	c.RecordAnalysis("llm", "failed", 3*time.Second, 0, 0)

	if got := testutil.ToFloat64(c.analyses.WithLabelValues("heuristic", "success")); got != 1 {
		t.Errorf("expected 1 heuristic success, got %v", got)
	}
	if got := testutil.ToFloat64(c.analyses.WithLabelValues("llm", "failed")); got != 1 {
		t.Errorf("expected 1 llm failure, got %v", got)
	}
	if n := testutil.CollectAndCount(c.scores); n != 2 {
		t.Errorf("expected scores observed only for the successful run, got %d series", n)
	}
}

func TestRecordHighlightAndDangling(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	c.RecordHighlight(true)
	c.RecordHighlight(false)
	c.RecordHighlight(false)
	c.RecordDangling(3)
	c.RecordDangling(0)

	if got := testutil.ToFloat64(c.highlights.WithLabelValues("false")); got != 2 {
		t.Errorf("expected 2 unresolved activations, got %v", got)
	}
	if got := testutil.ToFloat64(c.danglingRefs); got != 3 {
		t.Errorf("expected 3 dangling refs, got %v", got)
	}
}

func TestRecordEventAndPruned(t *testing.T) {
	c := NewCollector(nil)
	c.RecordEvent("convoscope.analysis.completed", nil)
	c.RecordEvent("convoscope.analysis.completed", errors.New("nats: connection closed"))
	c.RecordPruned(4)

	if got := testutil.ToFloat64(c.events.WithLabelValues("convoscope.analysis.completed", "error")); got != 1 {
		t.Errorf("expected 1 failed publish, got %v", got)
	}
	if got := testutil.ToFloat64(c.pruned); got != 4 {
		t.Errorf("expected 4 pruned, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	c.RecordImport("api", "success")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `convoscope_imports_total{source="api",status="success"} 1`) {
		t.Errorf("expected imports counter in exposition, got:\n%s", body)
	}
}
