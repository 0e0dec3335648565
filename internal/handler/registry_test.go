package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandy1219/ypf/internal/store"
)

func TestRegistryRegisterResolve(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFunc("echo", func(_ context.Context, a Args) (any, error) { return a["x"], nil }))

	err := r.RegisterFunc("echo", func(context.Context, Args) (any, error) { return nil, nil })
	assert.Error(t, err)

	_, err = r.Resolve("nope")
	assert.ErrorIs(t, err, ErrUnknownHandler)
	assert.False(t, r.Has("nope"))

	out, err := r.Dispatch(context.Background(), "echo", map[string]any{"x": 3})
	require.NoError(t, err)
	assert.Equal(t, 3, out)

	_, err = r.Dispatch(context.Background(), "missing", nil)
	assert.True(t, errors.Is(err, ErrUnknownHandler))
}

func TestRegisterBuiltins(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r, store.NewMemory("")))
	assert.Equal(t, []string{"heartbeat", "http", "log", "square", "sum"}, r.Names())

	r2 := NewRegistry()
	require.NoError(t, RegisterBuiltins(r2, nil))
	assert.False(t, r2.Has("heartbeat"))
}

func TestSquare(t *testing.T) {
	out, err := square(context.Background(), Args{"n": 4})
	require.NoError(t, err)
	assert.Equal(t, float64(16), out)

	out, err = square(context.Background(), Args{"n": 1.5})
	require.NoError(t, err)
	assert.Equal(t, 2.25, out)

	_, err = square(context.Background(), Args{})
	assert.Error(t, err)
}

func TestArgsSeconds(t *testing.T) {
	a := Args{"i": 2, "bad": "x", "neg": -1}
	assert.Equal(t, 2*time.Second, a.Seconds("i", time.Minute))
	assert.Equal(t, time.Minute, a.Seconds("bad", time.Minute))
	assert.Equal(t, time.Minute, a.Seconds("neg", time.Minute))
	assert.Equal(t, time.Minute, a.Seconds("missing", time.Minute))
}

func TestHeartbeatWritesUntilCanceled(t *testing.T) {
	st := store.NewMemory("")
	hb := NewHeartbeat(st)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := hb.Handle(ctx, Args{"worker_name": "A", "interval": 0.01})
		done <- err
	}()

	require.Eventually(t, func() bool {
		var beat Heartbeat
		return st.Get(context.Background(), "heartbeat:A", &beat) == nil && beat.Worker == "A"
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("heartbeat did not return after cancel")
	}
}

func TestHeartbeatRequiresWorkerName(t *testing.T) {
	_, err := NewHeartbeat(store.NewMemory("")).Handle(context.Background(), Args{})
	assert.Error(t, err)
}

func TestHTTPHandler(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte(`{"status":"SUCCESS","n":1}`))
		case "/biz":
			_, _ = w.Write([]byte(`{"status":"FAILED"}`))
		case "/err":
			_, _ = w.Write([]byte(`{"error":"boom"}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	h := NewHTTPHandler(srv.Client())
	ctx := context.Background()

	out, err := h.Handle(ctx, Args{"url": srv.URL + "/ok", "method": "post", "body": map[string]any{"a": 1}})
	require.NoError(t, err)
	res := out.(map[string]any)
	assert.Equal(t, 200, res["status_code"])
	assert.Equal(t, "SUCCESS", res["body"].(map[string]any)["status"])

	_, err = h.Handle(ctx, Args{"url": srv.URL + "/biz"})
	assert.ErrorContains(t, err, "biz_failed")
	_, err = h.Handle(ctx, Args{"url": srv.URL + "/err"})
	assert.ErrorContains(t, err, "boom")
	_, err = h.Handle(ctx, Args{"url": srv.URL + "/down"})
	assert.ErrorContains(t, err, "502")
	_, err = h.Handle(ctx, Args{})
	assert.Error(t, err)
}
