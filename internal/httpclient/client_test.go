package httpclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vasiliy-maslov/food-order-service/internal/httpclient"
)

func newClient(retries, failures int, reset time.Duration) *httpclient.Client {
	return httpclient.New(httpclient.Config{
		Timeout:         2 * time.Second,
		Retries:         retries,
		CircuitFailures: failures,
		CircuitReset:    reset,
	})
}

func TestClient_RetriesUntilSuccess(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newClient(2, 5, 20*time.Second)

	var out struct {
		OK bool `json:"ok"`
	}
	err := c.GetJSON(context.Background(), srv.URL, &out)

	assert.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits), "should have used all three tries")
}

func TestClient_RetryExhaustedReturnsLastError(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newClient(1, 5, 20*time.Second)

	err := c.GetJSON(context.Background(), srv.URL, nil)

	var statusErr *httpclient.StatusError
	assert.Error(t, err)
	if assert.True(t, errors.As(err, &statusErr)) {
		assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "one retry means two tries total")
}

func TestClient_CircuitOpensAfterThreshold(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newClient(0, 3, 20*time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := c.GetJSON(ctx, srv.URL, nil)
		assert.Error(t, err)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))

	// The circuit is now open: the next call must fail fast with no request.
	err := c.GetJSON(ctx, srv.URL, nil)
	assert.ErrorIs(t, err, httpclient.ErrCircuitOpen)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits), "open circuit must not reach the network")
}

func TestClient_HalfOpenTrialClosesOnSuccess(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newClient(0, 2, 50*time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.Error(t, c.GetJSON(ctx, srv.URL, nil))
	}
	assert.ErrorIs(t, c.GetJSON(ctx, srv.URL, nil), httpclient.ErrCircuitOpen)

	// After the cool-down one trial call is permitted.
	time.Sleep(60 * time.Millisecond)
	fail.Store(false)
	assert.NoError(t, c.GetJSON(ctx, srv.URL, nil))

	// Success closed the circuit again.
	assert.NoError(t, c.GetJSON(ctx, srv.URL, nil))
}

func TestClient_HalfOpenTrialReopensOnFailure(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newClient(0, 2, 50*time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.Error(t, c.GetJSON(ctx, srv.URL, nil))
	}

	time.Sleep(60 * time.Millisecond)

	// The trial call goes out and fails, re-opening the circuit.
	err := c.GetJSON(ctx, srv.URL, nil)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, httpclient.ErrCircuitOpen)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))

	assert.ErrorIs(t, c.GetJSON(ctx, srv.URL, nil), httpclient.ErrCircuitOpen)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestClient_CircuitsArePerHost(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	var goodHits int32
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&goodHits, 1)
		w.Write([]byte(`{}`))
	}))
	defer good.Close()

	c := newClient(0, 2, 20*time.Second)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.Error(t, c.GetJSON(ctx, bad.URL, nil))
	}
	assert.ErrorIs(t, c.GetJSON(ctx, bad.URL, nil), httpclient.ErrCircuitOpen)

	// The other host's circuit is untouched.
	assert.NoError(t, c.GetJSON(ctx, good.URL, nil))
	assert.Equal(t, int32(1), atomic.LoadInt32(&goodHits))
}

func TestClient_PostJSONSendsHeadersAndBody(t *testing.T) {
	var gotKey, gotContentType string
	var gotBody struct {
		OrderID string  `json:"orderId"`
		Amount  float64 `json:"amount"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		gotContentType = r.Header.Get("Content-Type")
		assert.NoError(t, jsonDecode(r, &gotBody))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := newClient(0, 5, 20*time.Second)

	var out struct {
		Status string `json:"status"`
	}
	err := c.PostJSON(context.Background(), srv.URL,
		map[string]any{"orderId": "o-1", "amount": 302.50},
		map[string]string{"Idempotency-Key": "abc"},
		&out,
	)

	assert.NoError(t, err)
	assert.Equal(t, "abc", gotKey)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "o-1", gotBody.OrderID)
	assert.Equal(t, 302.50, gotBody.Amount)
	assert.Equal(t, "ok", out.Status)
}

func jsonDecode(r *http.Request, out any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}
