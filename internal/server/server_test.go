package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lazypower/habitcity/internal/action"
	"github.com/lazypower/habitcity/internal/engine"
	"github.com/lazypower/habitcity/internal/policy"
	"github.com/lazypower/habitcity/internal/store"
)

// testServer returns a server whose model always proposes a, with
// confidence 0.9, and an engine clock fixed at noon on 2024-06-01 UTC.
func testServer(t *testing.T, a action.ID, opts ...Option) (*Server, *engine.Engine) {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	model := policy.NewModel(&policy.MockPredictor{
		Prediction: policy.Prediction{Action: a, Confidence: 0.9},
	}, policy.Options{})
	if err := model.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	eng := engine.New(db, model, nil)
	eng.Now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return New(eng, "test-version", opts...), eng
}

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return body
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := testServer(t, action.NeutralWait)

	w := do(t, srv, "GET", "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	body := decode(t, w)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test-version" {
		t.Errorf("version = %v, want test-version", body["version"])
	}
	if body["db"] != true {
		t.Errorf("db = %v, want true", body["db"])
	}
	if body["model_loaded"] != true {
		t.Errorf("model_loaded = %v, want true", body["model_loaded"])
	}
}

func TestHealthModelNotLoaded(t *testing.T) {
	db, _ := store.OpenMemory()
	defer db.Close()
	srv := New(engine.New(db, nil, nil), "v")

	body := decode(t, do(t, srv, "GET", "/api/health", ""))
	if body["model_loaded"] != false {
		t.Errorf("model_loaded = %v, want false", body["model_loaded"])
	}
}

func TestHealthDatabaseDown(t *testing.T) {
	srv, eng := testServer(t, action.NeutralWait)
	eng.DB.Close()

	body := decode(t, do(t, srv, "GET", "/api/health", ""))
	if body["status"] != "degraded" || body["db"] != false {
		t.Errorf("body = %v, want degraded with db false", body)
	}
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := testServer(t, action.NeutralWait)

	if w := do(t, srv, "GET", "/api/sessions", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if w := do(t, srv, "GET", "/api/decide-action", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET decide-action status = %d, want 405", w.Code)
	}
}
