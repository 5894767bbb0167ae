package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMetricsCountsRequestsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)

	registry := prometheus.NewRegistry()
	metrics, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("NewHTTPMetrics: %v", err)
	}

	r := gin.New()
	r.Use(metrics.Handler())
	r.GET("/users/:username", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/users/alice", "/users/bob"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	// Both requests collapse onto the route template, not the raw paths.
	counter := metrics.Requests.With(prometheus.Labels{
		"method": http.MethodGet,
		"route":  "/users/:username",
		"status": "200",
	})
	if got := testutil.ToFloat64(counter); got != 2 {
		t.Fatalf("expected 2 requests on the route template, got %v", got)
	}
}

func TestHTTPMetricsReregistrationReusesCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()

	first, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("first registration: %v", err)
	}
	second, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("second registration: %v", err)
	}

	if first.Requests != second.Requests {
		t.Fatal("expected the requests counter to be shared across registrations")
	}
	if first.Duration != second.Duration {
		t.Fatal("expected the duration histogram to be shared across registrations")
	}
}
