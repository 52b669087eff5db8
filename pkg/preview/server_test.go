package preview

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/slplayer/sltemplate/pkg/bundle"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding %q: %v", w.Body.String(), err)
	}
	return out
}

func testBundle(t *testing.T) *bundle.Bundle {
	t.Helper()
	b, err := bundle.Parse([]byte(`
name: demo
globals: {site: Demo}
templates:
  - name: hello
    inline: "Hello ::who:: from ::site::"
  - name: data
    inline: '{"who": "::who::"}'
    format: json
`))
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}
	return b
}

func TestHealth(t *testing.T) {
	w := do(t, New(nil).Handler(), http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK || decode(t, w)["status"] != "ok" {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
}

func TestRender(t *testing.T) {
	h := New(testBundle(t)).Handler()
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantBody string
		wantKind string
	}{
		{"renders", `{"template": "::site::/::(n + 1)::", "context": {"n": 1}}`, 200, "Demo/2", ""},
		{"bad json body", `{"template": `, 400, "", ""},
		{"parse error", `{"template": "::if a::"}`, 400, "", "unclosed block"},
		{"render error", `{"template": "::foreach n::x::end::", "context": {"n": 1}}`, 422, "", "not iterable"},
		{"format check", `{"template": "{::a::", "format": "json"}`, 422, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/render", tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("code = %d, body %s", w.Code, w.Body.String())
			}
			if tt.wantBody != "" && w.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
			if tt.wantKind != "" && decode(t, w)["kind"] != tt.wantKind {
				t.Errorf("kind = %v, want %q", decode(t, w)["kind"], tt.wantKind)
			}
		})
	}
}

func TestTemplates(t *testing.T) {
	h := New(testBundle(t)).Handler()

	w := do(t, h, http.MethodGet, "/templates", "")
	names, _ := decode(t, w)["templates"].([]any)
	if len(names) != 2 || names[0] != "hello" {
		t.Fatalf("templates = %v", names)
	}

	w = do(t, h, http.MethodGet, "/templates/hello?who=Ann", "")
	if w.Code != http.StatusOK || w.Body.String() != "Hello Ann from Demo" {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodGet, "/templates/data?who=Bo", "")
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content type = %q", ct)
	}

	w = do(t, h, http.MethodGet, "/templates/missing", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing entry: got %d", w.Code)
	}

	w = do(t, New(nil).Handler(), http.MethodGet, "/templates", "")
	if got, _ := decode(t, w)["templates"].([]any); len(got) != 0 {
		t.Fatalf("no bundle: %v", got)
	}
}
