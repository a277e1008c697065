package main

import (
	"bytes"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"gonum.org/v1/plot/vg"

	"fluidsim/core"
	"fluidsim/rendering/history"
	"fluidsim/rendering/volume"
	"fluidsim/simulation"
)

// StatusUpdate is the message pushed to every connected visualizer
type StatusUpdate struct {
	Type            string     `json:"type"`
	Tick            uint64     `json:"tick"`
	Title           string     `json:"title"`
	Cursor          int        `json:"cursor"`
	CursorCoord     [3]int     `json:"cursorCoord"`
	TotalDensity    float64    `json:"totalDensity"`
	NodeDensity     []float64  `json:"nodeDensity"`
	MinDensity      float64    `json:"minDensity"`
	MaxDensity      float64    `json:"maxDensity"`
	StaleLinks      int        `json:"staleLinks"`
	TotalStaleLinks int        `json:"totalStaleLinks"`
	Slice           *SliceData `json:"slice,omitempty"`
}

// SliceData is one density plane of the assembled volume, base64 in JSON
type SliceData struct {
	Axis  string  `json:"axis"`
	Index int     `json:"index"`
	Size  int     `json:"size"`
	Scale float64 `json:"scale"`
	Data  []uint8 `json:"data"`
}

// ClientMessage is what a visualizer may send
type ClientMessage struct {
	Select *[3]int `json:"select,omitempty"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// historyLimit is how many ticks /history.png covers
const historyLimit = 1000

// Server streams simulation status to websocket clients
type Server struct {
	sim       *simulation.FluidSim
	sliceAxis core.Axis
	history   *history.History

	clients      map[*websocket.Conn]*sync.Mutex
	clientsMutex sync.RWMutex
}

func NewServer(sim *simulation.FluidSim, axis core.Axis) *Server {
	return &Server{
		sim:       sim,
		sliceAxis: axis,
		history:   history.New(historyLimit),
		clients:   make(map[*websocket.Conn]*sync.Mutex),
	}
}

// Handler routes /ws to the websocket endpoint, /slice.png to a rendered
// mid-plane of the density volume and /history.png to the density chart.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/slice.png", s.serveSlice)
	mux.HandleFunc("/history.png", s.serveHistory)
	mux.HandleFunc("/", s.serveHome)
	return mux
}

func (s *Server) serveHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(s.sim.RefreshStatus().Title + "\n"))
}

func (s *Server) serveSlice(w http.ResponseWriter, r *http.Request) {
	vol := volume.Assemble(s.sim, 0)
	var buf bytes.Buffer
	if err := vol.WriteSlicePNG(&buf, s.sliceAxis, vol.Size/2, 4); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}

func (s *Server) serveHistory(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.history.WritePNG(&buf, 6*vg.Inch, 3*vg.Inch); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, history.ErrEmpty) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}

// History returns the ticks recorded by Broadcast
func (s *Server) History() *history.History {
	return s.history
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		core.Logger().Warn("websocket upgrade", "err", err)
		return
	}
	defer conn.Close()

	connMutex := &sync.Mutex{}
	s.clientsMutex.Lock()
	s.clients[conn] = connMutex
	s.clientsMutex.Unlock()
	defer func() {
		s.clientsMutex.Lock()
		delete(s.clients, conn)
		s.clientsMutex.Unlock()
	}()

	s.send(conn, connMutex, s.update(s.sim.RefreshStatus()))

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			core.Logger().Debug("websocket closed", "err", err)
			return
		}
		if msg.Select == nil {
			continue
		}
		c := *msg.Select
		if err := s.sim.Select(c[0], c[1], c[2]); err != nil {
			s.send(conn, connMutex, errorMessage{Type: "error", Error: err.Error()})
			continue
		}
		core.Logger().Info("cursor moved", "node", core.Coord{I: c[0], J: c[1], K: c[2]})
		s.send(conn, connMutex, s.update(s.sim.RefreshStatus()))
	}
}

func (s *Server) send(conn *websocket.Conn, mu *sync.Mutex, v any) {
	mu.Lock()
	err := conn.WriteJSON(v)
	mu.Unlock()
	if err != nil {
		core.Logger().Warn("websocket write", "err", err)
	}
}

// update packs a status together with the current density slice
func (s *Server) update(st simulation.Status) StatusUpdate {
	vol := volume.Assemble(s.sim, 0)
	index := vol.Size / 2
	plane, err := vol.Slice(s.sliceAxis, index)

	msg := StatusUpdate{
		Type:            "status",
		Tick:            st.Tick,
		Title:           st.Title,
		Cursor:          st.Cursor,
		CursorCoord:     [3]int{st.CursorCoord.I, st.CursorCoord.J, st.CursorCoord.K},
		TotalDensity:    st.TotalDensity,
		NodeDensity:     st.NodeDensity,
		MinDensity:      st.MinDensity,
		MaxDensity:      st.MaxDensity,
		StaleLinks:      st.StaleLinks,
		TotalStaleLinks: st.TotalStaleLinks,
	}
	if err == nil {
		msg.Slice = &SliceData{
			Axis:  s.sliceAxis.String(),
			Index: index,
			Size:  vol.Size,
			Scale: vol.Max,
			Data:  plane,
		}
	}
	return msg
}

// Broadcast records a status and sends it to every client, dropping those
// that fail.
func (s *Server) Broadcast(st simulation.Status) {
	s.history.Record(st.Tick, st.TotalDensity, st.StaleLinks)
	msg := s.update(st)
	s.clientsMutex.RLock()
	clientsToRemove := []*websocket.Conn{}
	for client, mutex := range s.clients {
		mutex.Lock()
		err := client.WriteJSON(msg)
		mutex.Unlock()
		if err != nil {
			core.Logger().Warn("websocket write", "err", err)
			client.Close()
			clientsToRemove = append(clientsToRemove, client)
		}
	}
	s.clientsMutex.RUnlock()

	if len(clientsToRemove) > 0 {
		s.clientsMutex.Lock()
		for _, client := range clientsToRemove {
			delete(s.clients, client)
		}
		s.clientsMutex.Unlock()
	}
}

// Clients reports how many visualizers are connected
func (s *Server) Clients() int {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()
	return len(s.clients)
}
