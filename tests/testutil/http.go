package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/salesdocs/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ServeJSON sends a request through handler. A non-nil body is encoded as
// JSON; a []byte body is sent as is so tests can post malformed payloads.
func ServeJSON(handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var raw []byte
	switch b := body.(type) {
	case nil:
	case []byte:
		raw = b
	default:
		raw, _ = json.Marshal(b)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

// DecodeResponse parses the response envelope.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "body: %s", w.Body.String())
	return resp
}

// DecodeData parses the envelope's data field into T.
func DecodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var resp struct {
		Success bool `json:"success"`
		Data    T    `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "body: %s", w.Body.String())
	require.True(t, resp.Success, "expected a success envelope, got: %s", w.Body.String())
	return resp.Data
}

// RouteCase is one request against a routed engine and the envelope it
// should produce. ExpectedCode is the error code and is only checked when set.
type RouteCase struct {
	Name           string
	Method         string
	Path           string
	Body           any
	ExpectedStatus int
	ExpectedCode   string
}

// RunRouteCases serves every case through engine as a subtest.
func RunRouteCases(t *testing.T, engine http.Handler, cases []RouteCase) {
	t.Helper()

	for _, rc := range cases {
		t.Run(rc.Name, func(t *testing.T) {
			method := rc.Method
			if method == "" {
				method = http.MethodGet
			}
			w := ServeJSON(engine, method, rc.Path, rc.Body)
			assert.Equal(t, rc.ExpectedStatus, w.Code, "body: %s", w.Body.String())

			if rc.ExpectedCode != "" {
				resp := DecodeResponse(t, w)
				assert.False(t, resp.Success)
				require.NotNil(t, resp.Error)
				assert.Equal(t, rc.ExpectedCode, resp.Error.Code)
			}
		})
	}
}

// AssertSuccessResponse checks that the context wrote a success envelope.
func AssertSuccessResponse(t *testing.T, tc *TestContext) {
	t.Helper()

	resp := DecodeResponse(t, tc.Recorder)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
}

// AssertErrorResponse checks that the context wrote an error envelope with code.
func AssertErrorResponse(t *testing.T, tc *TestContext, code string) {
	t.Helper()

	resp := DecodeResponse(t, tc.Recorder)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, code, resp.Error.Code)
}
