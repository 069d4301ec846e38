// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/relabs-tech/accelstream/internal/accelerr"
	"github.com/relabs-tech/accelstream/internal/config"
	"github.com/relabs-tech/accelstream/internal/device"
	"github.com/relabs-tech/accelstream/internal/directory"
	"github.com/relabs-tech/accelstream/internal/sample"
	"github.com/relabs-tech/accelstream/internal/sensors"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// StreamCmd is a client message on /ws/stream.
type StreamCmd struct {
	Action string `json:"action"` // "select_axis" or "control"
	Axis   *uint8 `json:"axis,omitempty"`
	Code   uint32 `json:"code,omitempty"`
}

// StreamStatus acknowledges a command or reports an error.
type StreamStatus struct {
	Type    string `json:"type"` // "session", "status", "error"
	Session string `json:"session,omitempty"`
	Axis    string `json:"axis,omitempty"`
	Message string `json:"message,omitempty"`
}

// Server exposes one device over HTTP and websocket.
type Server struct {
	dev    *device.Device
	logger *zap.SugaredLogger
}

// NewServer returns a Server for dev.
func NewServer(dev *device.Device, logger *zap.SugaredLogger) *Server {
	return &Server{dev: dev, logger: logger}
}

// Handler routes the API and websocket endpoints. Nothing else is served.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/stream", s.HandleSessionWS)
	mux.HandleFunc("/ws/registers", s.HandleRegisterDebugWS)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	return mux
}

// RegisterDebugHandler routes only the register debug websocket on /ws.
func (s *Server) RegisterDebugHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleRegisterDebugWS)
	return mux
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.dev.Stats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		s.logger.Warnw("json encode error", "error", err)
	}
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.dev.Sessions(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if ids == nil {
		ids = []directory.SessionID{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ids); err != nil {
		s.logger.Warnw("json encode error", "error", err)
	}
}

// wsConn serialises writes; gorilla allows one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// HandleSessionWS opens one device session per websocket connection and
// streams the session's axis values. Closing the connection cancels the
// pending read and closes the session.
func (s *Server) HandleSessionWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()
	ws := &wsConn{conn: conn}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id := directory.SessionID(uuid.New().String())
	sess, err := s.dev.Open(ctx, id)
	if err != nil {
		_ = ws.writeJSON(StreamStatus{Type: "error", Message: err.Error()})
		return
	}
	defer func() {
		if err := sess.Close(context.Background()); err != nil {
			s.logger.Warnw("session close", "session", id, "error", err)
		}
	}()
	s.logger.Infow("stream session opened", "session", id, "remote", r.RemoteAddr)
	if err := ws.writeJSON(StreamStatus{Type: "session", Session: string(id), Axis: sample.AxisX.String()}); err != nil {
		return
	}

	go func() {
		defer cancel()
		s.readCommands(ctx, ws, sess)
	}()

	var seq uint64
	for {
		axis, v, err := sess.ReadReading(ctx)
		if err != nil {
			if !errors.Is(err, accelerr.ErrInterrupted) {
				_ = ws.writeJSON(StreamStatus{Type: "error", Message: err.Error()})
			}
			s.logger.Infow("stream session ended", "session", id, "reason", err)
			return
		}
		seq++
		msg := AxisReading{
			Type:  "sample",
			Axis:  axis.String(),
			Value: v,
			Seq:   seq,
			Time:  time.Now().Format(time.RFC3339Nano),
		}
		if err := ws.writeJSON(msg); err != nil {
			s.logger.Debugw("websocket write error", "session", id, "error", err)
			return
		}
	}
}

func (s *Server) readCommands(ctx context.Context, ws *wsConn, sess *device.Session) {
	for {
		var cmd StreamCmd
		if err := ws.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debugw("websocket read error", "session", sess.ID(), "error", err)
			}
			return
		}

		var err error
		switch cmd.Action {
		case "select_axis":
			if cmd.Axis == nil {
				err = errors.New("missing axis field")
				break
			}
			err = sess.Control(ctx, device.SelectAxisCode(sample.Axis(*cmd.Axis)))
		case "control":
			err = sess.Control(ctx, cmd.Code)
		default:
			err = errors.Errorf("unknown action: %s", cmd.Action)
		}

		status := StreamStatus{Type: "status", Session: string(sess.ID())}
		if err != nil {
			status = StreamStatus{Type: "error", Session: string(sess.ID()), Message: err.Error()}
		} else if axis, aerr := sess.Axis(ctx); aerr == nil {
			status.Axis = axis.String()
		}
		if err := ws.writeJSON(status); err != nil {
			return
		}
	}
}

// RunWeb attaches the accelerometer and serves it until ctx is done.
func RunWeb(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	logger = logger.Named("web")
	acc, err := sensors.OpenAccelerometer(ctx, cfg, logger)
	if err != nil {
		return errors.Wrap(err, "open accelerometer")
	}
	defer func() {
		if err := acc.Shutdown(context.Background()); err != nil {
			logger.Warnw("accelerometer close", "error", err)
		}
	}()

	handler := NewServer(acc.Device, logger).Handler()
	return serveHTTP(ctx, fmt.Sprintf(":%d", cfg.WebServerPort), handler, logger)
}

// RunRegisterDebug serves only the register debug tool on /ws.
func RunRegisterDebug(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	logger = logger.Named("register_debug")
	acc, err := sensors.OpenAccelerometer(ctx, cfg, logger)
	if err != nil {
		return errors.Wrap(err, "open accelerometer")
	}
	defer func() {
		if err := acc.Shutdown(context.Background()); err != nil {
			logger.Warnw("accelerometer close", "error", err)
		}
	}()

	handler := NewServer(acc.Device, logger).RegisterDebugHandler()
	return serveHTTP(ctx, fmt.Sprintf(":%d", cfg.WebServerPort), handler, logger)
}

func serveHTTP(ctx context.Context, addr string, handler http.Handler, logger *zap.SugaredLogger) error {
	srv := &http.Server{Addr: addr, Handler: handler}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("web server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
