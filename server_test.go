package main

import (
	"bytes"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"fluidsim/core"
	"fluidsim/gpu"
	"fluidsim/physics"
	"fluidsim/simulation"
)

func newTestServer(t *testing.T) (*Server, *simulation.FluidSim, *httptest.Server) {
	t.Helper()
	sim, err := simulation.New(simulation.Options{
		NodesPerAxis: 2,
		CubeSize:     4,
		Params:       physics.DefaultParams(),
		Device:       gpu.NewCPUDevice(0, 1),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(sim.FreeResource)
	sim.SetObstacle(0, 1, 1, 1, core.Source)

	srv := NewServer(sim, core.AxisZ)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, sim, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readUpdate(t *testing.T, conn *websocket.Conn) StatusUpdate {
	t.Helper()
	var msg StatusUpdate
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	return msg
}

func TestWebSocketInitialStatus(t *testing.T) {
	_, _, ts := newTestServer(t)
	conn := dial(t, ts)

	msg := readUpdate(t, conn)
	if msg.Type != "status" {
		t.Errorf("type = %q, want status", msg.Type)
	}
	if msg.Cursor != -1 {
		t.Errorf("cursor = %d, want -1", msg.Cursor)
	}
	if len(msg.NodeDensity) != 8 {
		t.Errorf("node densities = %d, want 8", len(msg.NodeDensity))
	}
	if msg.Slice == nil || msg.Slice.Size != 8 || len(msg.Slice.Data) != 64 {
		t.Errorf("slice = %+v", msg.Slice)
	}
}

func TestWebSocketSelect(t *testing.T) {
	tests := []struct {
		name      string
		sel       [3]int
		wantType  string
		wantIndex int
	}{
		{"valid node", [3]int{1, 0, 1}, "status", 5},
		{"out of range", [3]int{2, 0, 0}, "error", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, ts := newTestServer(t)
			conn := dial(t, ts)
			readUpdate(t, conn)

			sel := tt.sel
			if err := conn.WriteJSON(ClientMessage{Select: &sel}); err != nil {
				t.Fatal(err)
			}
			var reply map[string]any
			if err := conn.ReadJSON(&reply); err != nil {
				t.Fatal(err)
			}
			if reply["type"] != tt.wantType {
				t.Fatalf("reply = %v, want type %s", reply, tt.wantType)
			}
			if tt.wantType == "status" && int(reply["cursor"].(float64)) != tt.wantIndex {
				t.Errorf("cursor = %v, want %d", reply["cursor"], tt.wantIndex)
			}
		})
	}
}

func TestBroadcastReachesClients(t *testing.T) {
	srv, sim, ts := newTestServer(t)
	conn := dial(t, ts)
	readUpdate(t, conn)

	deadline := time.Now().Add(5 * time.Second)
	for srv.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(time.Millisecond)
	}

	if err := sim.FluidSimSolver(t.Context()); err != nil {
		t.Fatal(err)
	}
	srv.Broadcast(sim.RefreshStatus())

	msg := readUpdate(t, conn)
	if msg.Tick != 1 {
		t.Errorf("tick = %d, want 1", msg.Tick)
	}
	if msg.TotalDensity <= 0 {
		t.Errorf("total density = %v, want > 0", msg.TotalDensity)
	}
}

func TestSliceEndpoint(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/slice.png")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 32 {
		t.Errorf("width = %d, want 32", b.Dx())
	}
}

func TestHistoryEndpoint(t *testing.T) {
	srv, sim, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/history.png")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("empty history status = %d, want 404", resp.StatusCode)
	}

	for i := 0; i < 3; i++ {
		if err := sim.FluidSimSolver(t.Context()); err != nil {
			t.Fatal(err)
		}
		srv.Broadcast(sim.RefreshStatus())
	}
	if got := srv.History().Len(); got != 3 {
		t.Fatalf("history length = %d, want 3", got)
	}

	resp, err = http.Get(ts.URL + "/history.png")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if _, err := png.Decode(resp.Body); err != nil {
		t.Fatal(err)
	}
}
