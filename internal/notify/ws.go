package notify

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"taskhub/pkg/logger"
)

// TokenVerifier resolves a bearer credential to a user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type connected struct {
	Authenticated bool `json:"authenticated"`
}

// handshakeToken reads the credential from the token query parameter or the
// Authorization header.
func handshakeToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	const prefix = "Bearer "
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, prefix) {
		return strings.TrimSpace(auth[len(prefix):])
	}
	return ""
}

// ServeWS upgrades the request and joins the socket to its user's room when
// the handshake carries a valid token. Without one the socket stays
// anonymous and receives no task events.
func ServeWS(hub *Hub, verifier TokenVerifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var userID string
		if token := handshakeToken(r); token != "" {
			id, err := verifier.Verify(token)
			if err != nil {
				logger.Debug(ctx, "Socket token rejected, continuing anonymously")
			} else {
				userID = id
			}
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Debug(ctx, "Socket upgrade failed", "error", err)
			return
		}

		c := newClient(conn, userID)
		hub.register(c)
		logger.Debug(ctx, "Socket connected", "client_id", c.ID, "room", c.Room)

		hello, _ := json.Marshal(connected{Authenticated: userID != ""})
		greeting, _ := json.Marshal(Message{Event: "connected", Data: hello})
		c.send <- greeting

		go c.writePump()
		go c.readPump(hub)
	}
}
