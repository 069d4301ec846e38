// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/relabs-tech/accelstream/internal/adxl345"
	"github.com/relabs-tech/accelstream/internal/device"
)

// RegisterDebugSession holds WebSocket connection state for register debugging
type RegisterDebugSession struct {
	Conn   *websocket.Conn
	dev    *device.Device
	logger *zap.SugaredLogger
}

// RegisterCmd is a register debug request.
type RegisterCmd struct {
	Action  string `json:"action"` // "get_map", "read", "read_all", "write", "export_config"
	Address string `json:"addr,omitempty"`
	Value   string `json:"value,omitempty"`
}

// Response types
type RegisterResponse struct {
	Type        string            `json:"type"` // "register_data", "register_map", "export_config", "error"
	Device      string            `json:"device,omitempty"`
	Address     string            `json:"addr,omitempty"`
	Value       string            `json:"value,omitempty"`
	Registers   map[string]string `json:"registers,omitempty"` // for bulk read
	Timestamp   string            `json:"timestamp,omitempty"`
	Message     string            `json:"message,omitempty"`
	RegisterMap []RegisterInfo    `json:"register_map,omitempty"`
	Config      string            `json:"config,omitempty"`
	Filename    string            `json:"filename,omitempty"`
}

type RegisterInfo struct {
	Address     string             `json:"address"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Access      string             `json:"access"` // "R", "RW"
	Default     string             `json:"default,omitempty"`
	Writable    bool               `json:"writable"`
	BitFields   []adxl345.BitField `json:"bit_fields,omitempty"`
}

// RegisterConfigFile represents the JSON structure for exported register configuration
type RegisterConfigFile struct {
	Version   int               `json:"version"`
	Device    string            `json:"device"`
	Timestamp string            `json:"timestamp"`
	Registers map[string]string `json:"registers"` // hex address -> hex value
}

const registerDebugTimeout = 2 * time.Second

// HandleRegisterDebugWS handles the WebSocket connection for register debugging
func (s *Server) HandleRegisterDebugWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("register_debug: websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	session := &RegisterDebugSession{Conn: conn, dev: s.dev, logger: s.logger.Named("register_debug")}

	if err := session.sendRegisterMap(); err != nil {
		session.logger.Warnw("error sending register map", "error", err)
		return
	}

	for {
		var cmd RegisterCmd
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				session.logger.Debugw("websocket error", "error", err)
			}
			return
		}

		switch cmd.Action {
		case "get_map":
			err = session.sendRegisterMap()
		case "read":
			err = session.handleRead(cmd)
		case "read_all":
			err = session.handleReadAll()
		case "write":
			err = session.handleWrite(cmd)
		case "export_config":
			err = session.handleExportConfig()
		default:
			err = session.sendError(fmt.Sprintf("unknown action: %s", cmd.Action))
		}
		if err != nil {
			return
		}
	}
}

func parseHexByte(s string) (byte, error) {
	var b byte
	if _, err := fmt.Sscanf(s, "0x%X", &b); err != nil {
		return 0, err
	}
	return b, nil
}

func (s *RegisterDebugSession) handleRead(cmd RegisterCmd) error {
	if cmd.Address == "" {
		return s.sendError("missing addr field")
	}
	addr, err := parseHexByte(cmd.Address)
	if err != nil {
		return s.sendError(fmt.Sprintf("invalid address format: %s", cmd.Address))
	}

	ctx, cancel := context.WithTimeout(context.Background(), registerDebugTimeout)
	defer cancel()
	value, err := s.dev.ReadRegister(ctx, addr)
	if err != nil {
		return s.sendError(fmt.Sprintf("read error: %v", err))
	}

	return s.Conn.WriteJSON(RegisterResponse{
		Type:      "register_data",
		Device:    "adxl345",
		Address:   fmt.Sprintf("0x%02X", addr),
		Value:     fmt.Sprintf("0x%02X", value),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// readAll reads every register in the map except the data registers, since
// reading those pops the chip FIFO.
func (s *RegisterDebugSession) readAll() (map[string]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), registerDebugTimeout)
	defer cancel()

	regs := make(map[string]string)
	for _, info := range adxl345.RegisterMap() {
		if info.Addr >= adxl345.RegDataX0 && info.Addr <= adxl345.RegDataX0+5 {
			continue
		}
		value, err := s.dev.ReadRegister(ctx, info.Addr)
		if err != nil {
			return nil, err
		}
		regs[fmt.Sprintf("0x%02X", info.Addr)] = fmt.Sprintf("0x%02X", value)
	}
	return regs, nil
}

func (s *RegisterDebugSession) handleReadAll() error {
	regs, err := s.readAll()
	if err != nil {
		return s.sendError(fmt.Sprintf("read all error: %v", err))
	}
	return s.Conn.WriteJSON(RegisterResponse{
		Type:      "register_data",
		Device:    "adxl345",
		Registers: regs,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (s *RegisterDebugSession) handleWrite(cmd RegisterCmd) error {
	if cmd.Address == "" || cmd.Value == "" {
		return s.sendError("missing addr or value field")
	}
	addr, err := parseHexByte(cmd.Address)
	if err != nil {
		return s.sendError(fmt.Sprintf("invalid address format: %s", cmd.Address))
	}
	value, err := parseHexByte(cmd.Value)
	if err != nil {
		return s.sendError(fmt.Sprintf("invalid value format: %s", cmd.Value))
	}
	if !adxl345.IsWritable(addr) {
		return s.sendError(fmt.Sprintf("register 0x%02X is not writable", addr))
	}

	ctx, cancel := context.WithTimeout(context.Background(), registerDebugTimeout)
	defer cancel()
	if err := s.dev.WriteRegister(ctx, addr, value); err != nil {
		return s.sendError(fmt.Sprintf("write error: %v", err))
	}
	s.logger.Infof("wrote 0x%02X to register 0x%02X", value, addr)

	return s.Conn.WriteJSON(RegisterResponse{
		Type:      "register_data",
		Device:    "adxl345",
		Address:   fmt.Sprintf("0x%02X", addr),
		Value:     fmt.Sprintf("0x%02X", value),
		Timestamp: time.Now().Format(time.RFC3339),
		Message:   "write successful",
	})
}

func (s *RegisterDebugSession) handleExportConfig() error {
	regs, err := s.readAll()
	if err != nil {
		return s.sendError(fmt.Sprintf("export error: %v", err))
	}
	now := time.Now()
	configJSON, err := json.Marshal(RegisterConfigFile{
		Version:   1,
		Device:    "adxl345",
		Timestamp: now.Format(time.RFC3339),
		Registers: regs,
	})
	if err != nil {
		return s.sendError(fmt.Sprintf("export error: %v", err))
	}
	return s.Conn.WriteJSON(RegisterResponse{
		Type:     "export_config",
		Device:   "adxl345",
		Message:  "config exported",
		Config:   string(configJSON),
		Filename: fmt.Sprintf("adxl345_%s_registers.json", now.Format("20060102_150405")),
	})
}

func (s *RegisterDebugSession) sendRegisterMap() error {
	regMap := adxl345.RegisterMap()
	mapped := make([]RegisterInfo, len(regMap))
	for i, r := range regMap {
		mapped[i] = RegisterInfo{
			Address:     fmt.Sprintf("0x%02X", r.Addr),
			Name:        r.Name,
			Description: r.Description,
			Access:      r.Access,
			Default:     r.Default,
			Writable:    adxl345.IsWritable(r.Addr),
			BitFields:   r.BitFields,
		}
	}
	return s.Conn.WriteJSON(RegisterResponse{
		Type:        "register_map",
		Device:      "adxl345",
		RegisterMap: mapped,
	})
}

func (s *RegisterDebugSession) sendError(message string) error {
	return s.Conn.WriteJSON(RegisterResponse{
		Type:    "error",
		Message: message,
	})
}
