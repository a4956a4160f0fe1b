package obs

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func accessLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		if line["msg"] == "http_access" {
			out = append(out, line)
		}
	}
	return out
}

func TestMiddleware_CorrelatesRunAndRequest(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutputForTests(&buf)
	defer restore()

	var seen Correlation
	h := Middleware("fixture", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationFromContext(r.Context())
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/signup", nil)
	req.Header.Set(RunHeader, "run-7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	require.Equal(t, "run-7", seen.RunID)
	require.Equal(t, rec.Header().Get("X-Request-Id"), seen.RequestID)

	lines := accessLines(t, &buf)
	require.Len(t, lines, 1)
	require.Equal(t, "run-7", lines[0]["run_id"])
	require.Equal(t, "fixture", lines[0]["pkg"])
	require.Equal(t, float64(http.StatusCreated), lines[0]["status"])
	require.Equal(t, float64(2), lines[0]["resp_bytes"])
}

func TestMiddleware_KeepsCallerRequestID(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutputForTests(&buf)
	defer restore()

	h := Middleware("fixture", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-from-caller")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, "req-from-caller", rec.Header().Get("X-Request-Id"))
	lines := accessLines(t, &buf)
	require.Len(t, lines, 1)
	require.Equal(t, float64(http.StatusOK), lines[0]["status"])
	require.NotContains(t, lines[0], "run_id")
}

func TestRunIDFromContext(t *testing.T) {
	require.Empty(t, RunIDFromContext(t.Context()))
	ctx := WithStep(WithRun(t.Context(), " run-1 ", "learn-top"), 2)
	require.Equal(t, "run-1", RunIDFromContext(ctx))
	require.Equal(t, 2, CorrelationFromContext(ctx).Step)
}
