package dashboard

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	apperrors "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Errors"
	metrics "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Metrics"
	api_models "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models/api"
)

// Stream message types
const (
	MessageBoard = "board"
	MessageError = "error"
)

const writeWait = 10 * time.Second

// StreamMessage is one frame pushed to a board subscriber
type StreamMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// newUpgrader builds the stream upgrader. Requests without an Origin header
// (non-browser clients) are accepted; browser origins must be listed or "*".
// An empty list falls back to the same-origin check of gorilla/websocket.
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	u := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if len(allowedOrigins) == 0 {
		return u
	}
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[strings.TrimRight(origin, "/")] = struct{}{}
	}
	u.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := allowed["*"]; ok {
			return true
		}
		_, ok := allowed[strings.TrimRight(origin, "/")]
		return ok
	}
	return u
}

// ServeStream upgrades the request and pushes the site's board every poll
// interval until the client goes away. Board errors are sent as error frames
// and the stream keeps polling.
func (s *Service) ServeStream(w http.ResponseWriter, r *http.Request, siteName string) error {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	metrics.StreamOpened()
	defer metrics.StreamClosed()

	log := s.log.WithSite(siteName)
	log.Debug("board stream opened")
	defer log.Debug("board stream closed")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Inbound frames are ignored; a read error means the client is gone.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if err := s.push(ctx, conn, siteName); err != nil {
			if ctx.Err() == nil {
				log.WithError(err).Debug("board stream write failed")
			}
			return nil
		}
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Service) push(ctx context.Context, conn *websocket.Conn, siteName string) error {
	msg := StreamMessage{Type: MessageBoard}
	board, err := s.Board(ctx, siteName)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		resp := api_models.ErrorResponse{Code: apperrors.CodeOf(err), Message: err.Error()}
		if appErr, ok := apperrors.As(err); ok {
			resp.Message = appErr.Message
		}
		msg = StreamMessage{Type: MessageError, Payload: resp}
	} else {
		msg.Payload = board
	}

	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}
