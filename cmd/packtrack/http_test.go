package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"packtrack/internal/integrations/courier"
	"packtrack/internal/services/statuspoller"
	"github.com/stretchr/testify/require"
)

func TestOpsHTTPServer_Endpoints(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := statuspoller.New(fakeStorage{}, courier.NewRouter(), nil, nil)

	addrCh := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- runOpsHTTPServer(ctx, opsHTTPOpts{
			httpAddr: "127.0.0.1:0",
			onListen: func(a string) { addrCh <- a },
			poller:   p,
			repo:     fakeStorage{},
		})
	}()

	var base string
	select {
	case a := <-addrCh:
		base = "http://" + a
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = http.Get(base + "/stats")
	require.NoError(t, err)
	var stats map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	_ = resp.Body.Close()
	require.Contains(t, stats, "poller")
	require.NotContains(t, stats, "ingest")

	resp, err = http.Post(base+"/trigger", "application/json", nil)
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.JSONEq(t, `{"triggered":true}`, string(b))

	resp, err = http.Get(base + "/packages")
	require.NoError(t, err)
	b, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `[]`, string(b))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
