package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"beacon/services/views"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	viewPongWait   = 60 * time.Second
	viewPingPeriod = 50 * time.Second
)

type ViewsHandler struct {
	Registry *views.Registry
	Upgrader websocket.Upgrader
}

func NewViewsHandler(registry *views.Registry, allowedOrigins []string) *ViewsHandler {
	return &ViewsHandler{
		Registry: registry,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker accepts the configured origins and the server's own host. The websocket
// upgrade is not covered by CORS, so the list is enforced here as well. Requests without an
// Origin header come from agents, not browsers.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// viewMessage is what an open window sends back; "active" marks it as the window to focus.
type viewMessage struct {
	Type string `json:"type"`
}

// ViewSocketHandler upgrades to a websocket and keeps the view registered until it closes.
func (h *ViewsHandler) ViewSocketHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	logger := getLogger(c)

	conn, err := h.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("View upgrade failed", zap.String("userID", userID), zap.Error(err))
		return
	}
	view := h.Registry.Add(userID, conn)
	defer h.Registry.Remove(view)

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(viewPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(viewPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(viewPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("View read failed", zap.String("userID", userID), zap.Error(err))
			}
			return
		}
		var msg viewMessage
		if json.Unmarshal(data, &msg) == nil && msg.Type == "active" {
			h.Registry.Touch(view)
		}
	}
}
