package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mikey/llm-mail-sorter/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.PassStarted("p1")
	m.GCCompleted([]core.LearnedRule{{Pattern: "a"}, {Pattern: "b"}})
	m.RulesLearned(&core.SynthesisReport{Proposed: 3, Created: 2, Rejected: []string{"("}})
	m.BatchFinished(0, 25, nil)
	m.BatchFinished(1, 0, errors.New("timeout"))
	m.PassFinished(&core.PassReport{
		PassID:     "p1",
		BySource:   map[core.Source]int{core.SourceHardRule: 4, core.SourceAIPending: 1},
		Unresolved: 1,
	}, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rulesCollected))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.rulesProposed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rulesCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rulesRejected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batches.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batches.WithLabelValues("failed")))
	assert.Equal(t, 25.0, testutil.ToFloat64(m.batchResolved))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.passes.WithLabelValues("ok")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.sendersBySource.WithLabelValues("Hard_Rule")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.unresolved))
	assert.Equal(t, 1, testutil.CollectAndCount(m.passDuration))
	assert.Empty(t, m.started)
}

func TestFailedPass(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.PassStarted("p2")
	m.PassFinished(&core.PassReport{PassID: "p2"}, errors.New("store down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.passes.WithLabelValues("failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.passes.WithLabelValues("ok")))
}

func TestRulesApplied(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RulesApplied(&core.ApplyReport{
		Changed:   map[string]int{"Finance": 3, "Dev_Tech": 1},
		Total:     4,
		Penalized: []string{`shop\.example`},
	})

	assert.Equal(t, 3.0, testutil.ToFloat64(m.recordsChanged.WithLabelValues("Finance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.penalties))
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.BatchFinished(0, 5, nil)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "mail_sorter_oracle_verdicts_total 5"))
}
