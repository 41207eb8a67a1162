package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func family(t *testing.T, r *Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := r.Gatherer().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric %s not found", name)
	return nil
}

func label(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func TestRegistry_PipelineInstrumentation(t *testing.T) {
	r := New()

	r.ObserveStage("rendering", 10*time.Millisecond, nil)
	r.ObserveStage("persistence", 5*time.Millisecond, errors.New("boom"))
	r.ObserveAllocation(2)
	r.NumberConflict()
	r.InvoiceGenerated(4096)

	errs := family(t, r, "invoicegen_pipeline_stage_errors_total")
	require.Len(t, errs.GetMetric(), 1)
	assert.Equal(t, "persistence", label(errs.GetMetric()[0], "stage"))

	assert.Equal(t, 1.0, family(t, r, "invoicegen_number_conflicts_total").GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, 1.0, family(t, r, "invoicegen_invoices_generated_total").GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, uint64(1), family(t, r, "invoicegen_number_allocation_attempts").GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestRegistry_MiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := New()

	router := gin.New()
	router.Use(r.Middleware())
	router.GET("/invoices/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/invoices/1", "/invoices/2", "/nowhere"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	reqs := family(t, r, "invoicegen_http_requests_total")
	got := map[string]float64{}
	for _, m := range reqs.GetMetric() {
		got[label(m, "route")+" "+label(m, "status")] = m.GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{
		"/invoices/:id 204": 2,
		"unmatched 404":     1,
	}, got)
}

func TestRegistry_Handler(t *testing.T) {
	r := New()
	r.InvoiceGenerated(100)

	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "invoicegen_invoices_generated_total 1"))
}
