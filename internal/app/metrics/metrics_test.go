package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInstrumentHandlerUsesRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(InstrumentHandler)
	router.HandleFunc("/api/buy/orders/{id}/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/buy/orders/{id}/", "418"))
	req := httptest.NewRequest(http.MethodGet, "/api/buy/orders/42/", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)
	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/buy/orders/{id}/", "418"))

	if after-before != 1 {
		t.Fatalf("expected one request under the route template, got %v", after-before)
	}
}

func TestRecordHelpers(t *testing.T) {
	hitsBefore := testutil.ToFloat64(cacheLookups.WithLabelValues("hit"))
	RecordCacheLookup(true)
	if testutil.ToFloat64(cacheLookups.WithLabelValues("hit"))-hitsBefore != 1 {
		t.Fatalf("cache hit not counted")
	}

	RecordTaskRun("reports.avg_order_value", "SUCCESS", 0)
	if testutil.ToFloat64(taskRuns.WithLabelValues("reports.avg_order_value", "SUCCESS")) < 1 {
		t.Fatalf("task run not counted")
	}

	WebsocketOpened()
	WebsocketClosed()
	if testutil.ToFloat64(wsConnections) != 0 {
		t.Fatalf("websocket gauge should be back to zero")
	}
	RecordPaymentVerified("book")
}

func TestHandlerExposesNamespace(t *testing.T) {
	RecordCacheLookup(false)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "edushop_cache_lookups_total") {
		t.Fatalf("expected edushop metrics in exposition")
	}
}

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                      "/",
		"/":                     "/",
		"/api/":                 "/api",
		"/api/store/books/9/":   "/api/store",
		"/swagger/openapi.json": "/swagger/openapi.json",
	}
	for in, want := range cases {
		if got := canonicalPath(in); got != want {
			t.Fatalf("canonicalPath(%q) = %q, want %q", in, got, want)
		}
	}
}
