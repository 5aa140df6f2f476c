// WebSocket clients
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"gcodeviewer-go/pkg/analyzer"
	"gcodeviewer-go/pkg/errors"
	"gcodeviewer-go/pkg/log"
	"gcodeviewer-go/pkg/viewer"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 << 20
	sendQueue      = 64
)

// Client commands.
const (
	cmdParse     = "parse"
	cmdSetOption = "setOption"
	cmdCancel    = "cancel"
)

var errClientClosed = errors.New(errors.ErrJobFailed, "client disconnected")

// clientMessage is a command sent by the consumer.
type clientMessage struct {
	Cmd string          `json:"cmd"`
	Msg json.RawMessage `json:"msg,omitempty"`
}

// WSClient is one WebSocket connection. It owns a worker; job messages
// pass through a bounded queue, and a full queue blocks the job rather
// than dropping layers.
type WSClient struct {
	id     int64
	conn   *websocket.Conn
	server *Server
	worker *viewer.Worker
	log    *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	sendCh    chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (s *Server) newWSClient(conn *websocket.Conn) *WSClient {
	id := atomic.AddInt64(&s.nextID, 1)
	ctx, cancel := context.WithCancel(context.Background())
	c := &WSClient{
		id:     id,
		conn:   conn,
		server: s,
		log:    log.GetLogger("ws"),
		ctx:    ctx,
		cancel: cancel,
		sendCh: make(chan []byte, sendQueue),
		done:   make(chan struct{}),
	}
	c.worker = viewer.NewWorker(c, s.cfg.Opener, s.cfg.Defaults, s.metrics)
	c.worker.Hooks = viewer.Hooks{
		Started: func(jobID, kind string, req viewer.Request) {
			s.history.Start(c.historyID(jobID), jobID, kind, describe(kind, req))
		},
		Finished: func(jobID string, sum *analyzer.Summary, stats viewer.Stats, err error) {
			s.history.Finish(c.historyID(jobID), sum, stats, err)
		},
	}
	return c
}

func (c *WSClient) historyID(jobID string) string {
	return fmt.Sprintf("ws%d-%s", c.id, jobID)
}

func describe(kind string, req viewer.Request) string {
	switch kind {
	case viewer.SourceFile:
		return req.Path
	case viewer.SourceHTTP:
		return req.Source
	default:
		return fmt.Sprintf("inline (%d bytes)", len(req.Source))
	}
}

// Send queues m, waiting while the queue is full.
func (c *WSClient) Send(m viewer.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, errors.ErrModelCodec, "cannot encode "+string(m.Kind))
	}
	select {
	case c.sendCh <- data:
		return nil
	case <-c.done:
		return errClientClosed
	}
}

// Close disconnects the client and cancels its job.
func (c *WSClient) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
		c.conn.Close()
	})
}

// readPump handles client commands until the connection drops.
func (c *WSClient) readPump() {
	defer func() {
		c.Close()
		c.worker.Close()
		c.server.removeClient(c)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithFields(log.Fields{"client": c.id}).Warnf("read error: %v", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.handleMessage(data)
	}
}

// writePump sends queued messages and keeps the connection alive.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case data := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.WithFields(log.Fields{"client": c.id}).Warnf("write error: %v", err)
				return
			}
			c.server.metrics.BytesSent.Add(nil, uint64(len(data)))
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var m clientMessage
	if err := json.Unmarshal(data, &m); err != nil {
		c.reject(errors.Wrap(err, errors.ErrProtocol, "malformed message"))
		return
	}

	switch m.Cmd {
	case cmdParse:
		var req viewer.Request
		if len(m.Msg) > 0 {
			if err := json.Unmarshal(m.Msg, &req); err != nil {
				c.reject(errors.Wrap(err, errors.ErrProtocol, "malformed parse request"))
				return
			}
		}
		if _, err := c.worker.Submit(c.ctx, req); err != nil {
			c.reject(err)
		}
	case cmdSetOption:
		if err := c.worker.SetOption(m.Msg); err != nil {
			c.reject(err)
		}
	case cmdCancel:
		c.worker.Cancel()
	default:
		c.reject(errors.New(errors.ErrProtocol, fmt.Sprintf("unknown command %q", m.Cmd)))
	}
}

// reject reports a command that started no job.
func (c *WSClient) reject(err error) {
	_ = c.Send(viewer.Message{
		Kind:    viewer.KindDiagnostic,
		Payload: viewer.Diagnostic{Code: string(errors.CodeOf(err)), Message: err.Error()},
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.stopping.Load() {
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := s.newWSClient(conn)
	s.clientMu.Lock()
	s.clients[c.id] = c
	s.clientMu.Unlock()
	s.metrics.Clients.Inc(nil)
	s.log.WithFields(log.Fields{"client": c.id, "remote": r.RemoteAddr}).Info("client connected")

	go c.writePump()
	c.readPump()
}

func (s *Server) removeClient(c *WSClient) {
	s.clientMu.Lock()
	_, ok := s.clients[c.id]
	delete(s.clients, c.id)
	s.clientMu.Unlock()
	if ok {
		s.metrics.Clients.Dec(nil)
		s.log.WithFields(log.Fields{"client": c.id}).Info("client disconnected")
	}
}
