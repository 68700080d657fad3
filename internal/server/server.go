package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/holdemtable/internal/protocol"
)

// Server exposes the table lifecycle over HTTP and the game channel over
// websockets. It is a thin shell: table rules live in the Store, game flow
// in the Orchestrator.
type Server struct {
	addr         string
	store        *Store
	orchestrator *Orchestrator
	upgrader     websocket.Upgrader
	logger       *log.Logger
	httpServer   *http.Server
}

// NewServer assembles the HTTP surface.
func NewServer(addr string, store *Store, orchestrator *Orchestrator, logger *log.Logger) *Server {
	return &Server{
		addr:         addr,
		store:        store,
		orchestrator: orchestrator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from a separately served front end.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.WithPrefix("server"),
	}
}

// Handler returns the routing table, exported so tests can drive it with
// httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /tables/create", s.handleCreateTable)
	mux.HandleFunc("GET /tables/{id}", s.handleTableStatus)
	mux.HandleFunc("POST /tables/{id}/join", s.handleJoinTable)
	mux.HandleFunc("POST /tables/{id}/start", s.handleStartTable)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	return mux
}

// ListenAndServe runs the server until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpServer = &http.Server{Addr: s.addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		_ = s.httpServer.Shutdown(context.Background())
	}()
	s.logger.Info("listening", "addr", s.addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SeatStatus describes one seat in a table status payload.
type SeatStatus struct {
	Seat      string `json:"seat"`
	Joined    bool   `json:"joined"`
	Connected bool   `json:"connected"`
	IsHost    bool   `json:"is_host"`
}

// TableStatus is the administrative view of a table.
type TableStatus struct {
	TableID       string       `json:"table_id"`
	Mode          string       `json:"mode"`
	Started       bool         `json:"started"`
	Ended         bool         `json:"ended"`
	Winners       []string     `json:"winners"`
	HostPlayerID  string       `json:"host_player_id"`
	JoinedPlayers []string     `json:"joined_players"`
	Seats         []SeatStatus `json:"seats"`
}

func tableStatus(session *Session) TableStatus {
	session.Lock()
	defer session.Unlock()

	joined := make([]string, 0, len(session.Joined))
	for _, seat := range SeatOrder {
		if session.Joined[seat] {
			joined = append(joined, seat)
		}
	}
	seats := make([]SeatStatus, 0, len(SeatOrder))
	for _, seat := range SeatOrder {
		seats = append(seats, SeatStatus{
			Seat:      seat,
			Joined:    session.Joined[seat],
			Connected: session.humanSeats[seat],
			IsHost:    seat == session.HostSeat,
		})
	}
	winners := session.TableWinners
	if winners == nil {
		winners = []string{}
	}
	return TableStatus{
		TableID:       session.ID,
		Mode:          session.Mode,
		Started:       session.Started,
		Ended:         session.TableEnded,
		Winners:       winners,
		HostPlayerID:  session.HostSeat,
		JoinedPlayers: joined,
		Seats:         seats,
	}
}

type createTableRequest struct {
	UserKey string `json:"user_key"`
}

type joinTableRequest struct {
	UserKey string `json:"user_key"`
}

type startTableRequest struct {
	PlayerID string `json:"player_id"`
}

type tableResponse struct {
	TableID  string      `json:"table_id"`
	PlayerID string      `json:"player_id"`
	Status   TableStatus `json:"status"`
}

func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	var req createTableRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	session, err := s.store.CreateMultiplayerTable(req.UserKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("table created", "table_id", session.ID)
	writeJSON(w, http.StatusOK, tableResponse{
		TableID:  session.ID,
		PlayerID: session.HostSeat,
		Status:   tableStatus(session),
	})
}

func (s *Server) handleTableStatus(w http.ResponseWriter, r *http.Request) {
	session := s.store.Get(r.PathValue("id"))
	if session == nil || session.Mode != ModeMulti {
		writeError(w, http.StatusNotFound, "Table not found")
		return
	}
	writeJSON(w, http.StatusOK, tableStatus(session))
}

func (s *Server) handleJoinTable(w http.ResponseWriter, r *http.Request) {
	var req joinTableRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tableID := r.PathValue("id")
	seat, err := s.store.JoinMultiplayerTable(tableID, req.UserKey)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrTableNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	session := s.store.Get(tableID)
	if session == nil {
		writeError(w, http.StatusNotFound, "Table not found")
		return
	}
	s.logger.Info("seat joined", "table_id", tableID, "seat", seat)
	writeJSON(w, http.StatusOK, tableResponse{
		TableID:  session.ID,
		PlayerID: seat,
		Status:   tableStatus(session),
	})
}

func (s *Server) handleStartTable(w http.ResponseWriter, r *http.Request) {
	var req startTableRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	session, err := s.store.StartMultiplayerTable(r.PathValue("id"), req.PlayerID)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, ErrNotHost):
			status = http.StatusForbidden
		case errors.Is(err, ErrTableNotFound):
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	s.logger.Info("table started", "table_id", session.ID, "by", req.PlayerID)
	writeJSON(w, http.StatusOK, tableStatus(session))
}

// handleWebSocket performs the seat handshake and hands the connection to
// the orchestrator. Handshake failures are connection-fatal: an ERROR frame
// then close.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "err", err)
		return
	}
	conn := NewConn(ws, s.logger)

	query := r.URL.Query()
	sessionID := query.Get("session_id")
	seat := query.Get("player_id")
	if seat == "" {
		seat = SeatOrder[0]
	}
	mode := strings.ToLower(strings.TrimSpace(query.Get("mode")))
	if mode != ModeSingle && mode != ModeMulti {
		mode = ModeSingle
	}

	var existing *Session
	if sessionID != "" {
		existing = s.store.Get(sessionID)
	}
	if existing != nil && existing.Mode == ModeMulti {
		mode = ModeMulti
	}

	var session *Session
	created := false
	if mode == ModeMulti {
		if sessionID == "" {
			s.rejectConn(conn, protocol.CodeMissingTableID,
				"Missing table_id (session_id) for multiplayer")
			return
		}
		session = existing
		if session == nil {
			s.rejectConn(conn, protocol.CodeTableNotFound,
				"Table not found", "session_id="+sessionID)
			return
		}
		if session.Mode != ModeMulti {
			s.rejectConn(conn, protocol.CodeInvalidTableMode,
				"session_id does not reference a multiplayer table")
			return
		}
	} else {
		if sessionID != "" && strings.HasPrefix(strings.ToUpper(sessionID), "TBL-") {
			s.rejectConn(conn, protocol.CodeInvalidSingleSessionID,
				"Table-style session_id requires multiplayer mode",
				"session_id="+sessionID, "Use mode=multi for TBL-* ids")
			return
		}
		session, created, err = s.store.GetOrCreate(sessionID)
		if err != nil {
			s.logger.Error("failed to create session", "err", err)
			_ = conn.Close()
			return
		}
	}

	s.logger.Info("websocket connected", "session_id", session.ID, "seat", seat, "created", created)

	if !slices.Contains(session.Engine.Players(), seat) {
		s.rejectConn(conn, protocol.CodeInvalidPlayerID,
			"Invalid player_id", seat+" is not a valid seat")
		return
	}
	if session.Mode == ModeMulti {
		session.Lock()
		joined := session.Joined[seat]
		started := session.Started
		session.Unlock()
		if !joined {
			s.rejectConn(conn, protocol.CodeSeatNotJoined,
				"Seat is not part of this table",
				seat+" has not joined table "+session.ID)
			return
		}
		if !started {
			s.rejectConn(conn, protocol.CodeTableNotStarted,
				"Host has not started this table yet")
			return
		}
	}

	conn.Start()
	s.orchestrator.HandleConnection(session, seat, conn, created)
}

func (s *Server) rejectConn(conn *Conn, code, message string, details ...string) {
	_ = conn.SendNow(protocol.ErrorMessage(code, message, details...))
	_ = conn.Close()
}

func decodeJSONBody(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
