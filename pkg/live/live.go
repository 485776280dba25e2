// Package live serves a websocket channel for in-page navigation.
//
// A client with an established session connects, sends navigation requests
// as JSON and receives composed pages back. The channel shares the session
// with the HTTP pages, so language and current page stay in sync.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/cnlwiki/pkg/page"
	"github.com/vango-dev/cnlwiki/pkg/session"
	"github.com/vango-dev/cnlwiki/pkg/store"
)

// Message types.
const (
	TypeNavigate = "navigate"
	TypeLanguage = "language"
	TypePage     = "page"
	TypeError    = "error"
)

// Request is a client message.
type Request struct {
	Type string `json:"type"`
	Page string `json:"page,omitempty"`
	Tab  string `json:"tab,omitempty"`
	Lang string `json:"lang,omitempty"`
}

// Response is a server message.
type Response struct {
	Type     string             `json:"type"`
	Language string             `json:"language,omitempty"`
	Page     *page.ComposedPage `json:"page,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// Config configures the live handler.
type Config struct {
	// ReadTimeout closes connections idle for longer.
	// Default: 60 seconds.
	ReadTimeout time.Duration

	// WriteTimeout bounds a single write.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// CheckOrigin validates the request origin.
	// Default: SameOriginCheck.
	CheckOrigin func(r *http.Request) bool
}

// Handler upgrades requests of known sessions to a live channel.
type Handler struct {
	sessions *session.Manager
	config   Config
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a handler for the sessions of m.
func NewHandler(m *session.Manager, config Config, logger *slog.Logger) *Handler {
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 60 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	if config.CheckOrigin == nil {
		config.CheckOrigin = SameOriginCheck
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sessions: m,
		config:   config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     config.CheckOrigin,
		},
		logger: logger.With("component", "live"),
	}
}

// ServeHTTP implements http.Handler. Requests without a live session are
// rejected with 403 before the upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	inst := h.sessions.Lookup(r)
	if inst == nil {
		http.Error(w, "no session", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Debug("upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	h.readLoop(r.Context(), conn, inst)
}

// readLoop reads requests until the connection closes.
func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, inst *session.Instance) {
	logger := h.logger.With("session_id", inst.ID())
	for {
		conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))

		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				logger.Warn("read error", "error", err)
			}
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				if h.write(conn, Response{Type: TypeError, Error: "malformed message"}) != nil {
					return
				}
				continue
			}
			return
		}

		inst.Touch(time.Now())
		if err := h.write(conn, h.handle(ctx, inst, req)); err != nil {
			logger.Debug("write failed", "error", err)
			return
		}
	}
}

func (h *Handler) handle(ctx context.Context, inst *session.Instance, req Request) Response {
	switch req.Type {
	case TypeLanguage:
		if !inst.SetLanguage(req.Lang) {
			return Response{Type: TypeError, Error: "unknown language " + req.Lang}
		}
		id := inst.Page()
		if id == "" {
			return Response{Type: TypeLanguage, Language: inst.Language()}
		}
		return h.show(ctx, inst, id, req.Tab)

	case TypeNavigate:
		if req.Lang != "" && !inst.SetLanguage(req.Lang) {
			return Response{Type: TypeError, Error: "unknown language " + req.Lang}
		}
		return h.show(ctx, inst, req.Page, req.Tab)

	default:
		return Response{Type: TypeError, Error: "unknown message type " + req.Type}
	}
}

func (h *Handler) show(ctx context.Context, inst *session.Instance, id, tab string) Response {
	p, err := inst.Show(ctx, id, tab)
	if errors.Is(err, store.ErrNotFound) {
		return Response{Type: TypeError, Error: "no such page " + id}
	}
	if err != nil {
		h.logger.Error("compose failed", "session_id", inst.ID(), "page", id, "error", err)
		return Response{Type: TypeError, Error: "internal error"}
	}
	return Response{Type: TypePage, Language: inst.Language(), Page: &p}
}

func (h *Handler) write(conn *websocket.Conn, resp Response) error {
	conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
	return conn.WriteJSON(resp)
}

// SameOriginCheck accepts requests without an Origin header and requests
// whose Origin host equals the request host.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return r.Host != "" && u.Host == r.Host
}
