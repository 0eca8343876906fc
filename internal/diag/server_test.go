package diag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/meshsd/internal/protocol"
	"github.com/muurk/meshsd/internal/scheduler"
)

type staticRecords []protocol.Service

func (r staticRecords) Records() []protocol.Service { return r }

type staticSnapshot scheduler.Snapshot

func (s staticSnapshot) Snapshot() scheduler.Snapshot { return scheduler.Snapshot(s) }

func testSources() Sources {
	return Sources{
		Instance: "kitchen",
		Version:  "dev",
		Services: staticRecords{{Name: "lamp", Type: "rgbw"}},
		Scheduler: staticSnapshot{
			Phase:    scheduler.PhaseWaitingForRetry,
			Capacity: 2,
			Entries: []scheduler.EntryStatus{
				{Name: "ceiling", Type: "rgbw", Mesh: true, Addr: "fe80::2", Resolved: true},
			},
		},
	}
}

func TestHandleStatus(t *testing.T) {
	srv := New(Config{}, testSources())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var st Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, "kitchen", st.Instance)
	assert.Equal(t, []protocol.Service{{Name: "lamp", Type: "rgbw"}}, st.Services)
	assert.Equal(t, scheduler.PhaseWaitingForRetry, st.Scheduler.Phase)
	require.Len(t, st.Scheduler.Entries, 1)
	assert.Equal(t, "fe80::2", st.Scheduler.Entries[0].Addr)
}

func TestHandleStatus_MethodNotAllowed(t *testing.T) {
	srv := New(Config{}, testSources())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/status", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStatus_EmptySources(t *testing.T) {
	st := New(Config{}, Sources{}).Status()
	assert.NotNil(t, st.Services)
	assert.Empty(t, st.Services)
	assert.Equal(t, scheduler.PhaseIdle, st.Scheduler.Phase)
}

func TestWebSocketStream(t *testing.T) {
	srv := New(Config{Interval: 10 * time.Millisecond}, testSources())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := Dial(ctx, strings.TrimPrefix(ts.URL, "http://"))
	require.NoError(t, err)
	defer client.Close()

	for i := 0; i < 3; i++ {
		st, err := client.Next()
		require.NoError(t, err)
		assert.Equal(t, "kitchen", st.Instance)
		assert.Equal(t, 2, st.Scheduler.Capacity)
	}
	assert.Equal(t, 1, srv.GetActiveConnections())
}

func TestStartShutdown(t *testing.T) {
	srv := New(Config{Listen: "127.0.0.1:0", Interval: time.Hour}, testSources())
	require.NoError(t, srv.Start())

	addr := srv.Addr().String()
	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := Dial(ctx, addr)
	require.NoError(t, err)
	defer client.Close()
	_, err = client.Next()
	require.NoError(t, err)

	require.NoError(t, srv.Shutdown(ctx))

	_, err = client.Next()
	assert.Error(t, err, "stream must end on shutdown")
	assert.Equal(t, 0, srv.GetActiveConnections())
}

func TestStreamURL(t *testing.T) {
	if got := StreamURL("127.0.0.1:8086"); got != "ws://127.0.0.1:8086/ws" {
		t.Errorf("StreamURL() = %v, want ws://127.0.0.1:8086/ws", got)
	}
}
