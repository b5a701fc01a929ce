package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// envelope mirrors dto.Response with the data left raw for a second decode
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Bearer returns the Authorization header accepted by the trigger and
// history endpoints
func Bearer(secret string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + secret}
}

// Serve sends one request through engine and returns the recorded response.
// body is JSON encoded when not nil.
func Serve(t *testing.T, engine http.Handler, method, path string, body any, headers map[string]string) *TestContext {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err, "Failed to marshal request body")
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return &TestContext{Recorder: w}
}

// TriggerJob posts to a job endpoint with the trigger secret and requires 200
func TriggerJob(t *testing.T, engine http.Handler, path, secret string) *TestContext {
	t.Helper()

	tc := Serve(t, engine, http.MethodPost, path, nil, Bearer(secret))
	require.Equal(t, http.StatusOK, tc.ResponseCode(), "job %s: %s", path, tc.Recorder.Body.String())
	return tc
}

// JSONResponse parses the response body as a JSON object.
func JSONResponse(t *testing.T, tc *TestContext) map[string]any {
	t.Helper()
	return DecodeJSON[map[string]any](t, tc)
}

// DecodeJSON parses the whole response body into T. Job summaries are
// returned unwrapped and decode this way.
func DecodeJSON[T any](t *testing.T, tc *TestContext) T {
	t.Helper()

	var result T
	require.NoError(t, json.Unmarshal(tc.ResponseBody(), &result), "Failed to parse JSON response")
	return result
}

// DecodeData requires a success envelope and parses its data field into T
func DecodeData[T any](t *testing.T, tc *TestContext) T {
	t.Helper()

	env := decodeEnvelope(t, tc)
	require.True(t, env.Success, "Expected success envelope, got %s", tc.ResponseBody())

	var result T
	require.NoError(t, json.Unmarshal(env.Data, &result), "Failed to parse data field")
	return result
}

// AssertSuccessResponse asserts the response is a success envelope.
func AssertSuccessResponse(t *testing.T, tc *TestContext) {
	t.Helper()

	env := decodeEnvelope(t, tc)
	assert.True(t, env.Success, "Expected success to be true")
	assert.Nil(t, env.Error, "Expected no error")
}

// AssertErrorResponse asserts the response is an error envelope with code.
func AssertErrorResponse(t *testing.T, tc *TestContext, expectedCode string) {
	t.Helper()

	env := decodeEnvelope(t, tc)
	assert.False(t, env.Success, "Expected success to be false")
	require.NotNil(t, env.Error, "Expected error object in response")
	assert.Equal(t, expectedCode, env.Error.Code, "Unexpected error code")
}

func decodeEnvelope(t *testing.T, tc *TestContext) envelope {
	t.Helper()
	return DecodeJSON[envelope](t, tc)
}
