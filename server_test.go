package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	registerRoutes(r)
	r.NoRoute(customNotFoundHandler)
	return r
}

// Bulk delete is wired as DELETE /{resource}/bulk. Without a session the
// handler rejects for a missing mill id, which proves the route resolves
// instead of falling through to the 404 handler.
func TestRoutes_BulkDeleteIsDeleteBulk(t *testing.T) {
	r := newTestRouter()

	for _, resource := range []string{"inward-entries", "outward-entries", "purchase-deals", "sale-deals"} {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/"+resource+"/bulk", strings.NewReader(`{"ids":[1]}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 for missing mill id, got %d", resource, w.Code)
		}
		if !strings.Contains(w.Body.String(), "mill id is required") {
			t.Fatalf("%s: unexpected body %s", resource, w.Body.String())
		}
	}
}

func TestRoutes_UnknownPathGetsEnvelope(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/no-such-resource", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"statusCode":404`) || !strings.Contains(body, "route not found") {
		t.Fatalf("unexpected not-found body: %s", body)
	}
}
