package ner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPRecognizer_Recognize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req recognizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "woman with breast cancer", req.Inputs)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"entity_group":"DISEASE","word":"breast cancer","score":0.98},{"entity_group":"GENDER","word":"woman","score":0.91}]`))
	}))
	defer server.Close()

	spans, err := NewHTTPRecognizer(server.URL, 0, server.Client()).Recognize(context.Background(), "woman with breast cancer")
	require.NoError(t, err)
	require.Len(t, spans, 2)
	assert.Equal(t, "breast cancer", spans[0].Text)
	assert.Equal(t, "DISEASE", spans[0].Group)
	assert.InDelta(t, 0.98, spans[0].Score, 1e-9)
	assert.Equal(t, "GENDER", spans[1].Group)
}

func TestHTTPRecognizer_StatusErrorIncludesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("model is loading"))
	}))
	defer server.Close()

	_, err := NewHTTPRecognizer(server.URL, 0, server.Client()).Recognize(context.Background(), "text")
	assert.ErrorContains(t, err, "status 503: model is loading")
}

func TestHTTPRecognizer_OpensCircuitAfterRepeatedFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	recognizer := NewHTTPRecognizer(server.URL, 0, server.Client())
	for i := 0; i < tripAfterFailures; i++ {
		_, err := recognizer.Recognize(context.Background(), "text")
		require.Error(t, err)
	}

	_, err := recognizer.Recognize(context.Background(), "text")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(tripAfterFailures), atomic.LoadInt32(&calls))
}
