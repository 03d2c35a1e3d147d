package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"anoa.com/studyhub/internal/broadcast"
	"anoa.com/studyhub/internal/channel"
	membership "anoa.com/studyhub/internal/modules/membership/service"
	"anoa.com/studyhub/pkg/apperror"
	"anoa.com/studyhub/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	maxChannels  = 20
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// RealtimeHandler streams broadcast envelopes to websocket clients.
type RealtimeHandler struct {
	authority  membership.Authority
	subscriber broadcast.Subscriber
	upgrader   websocket.Upgrader
	log        zerolog.Logger
}

func NewRealtimeHandler(authority membership.Authority, subscriber broadcast.Subscriber, log zerolog.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		authority:  authority,
		subscriber: subscriber,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: log,
	}
}

// HandleWebSocket subscribes to the channels named in ?channels=a,b, or to
// the caller's own user channel when none are given. Every channel must be
// readable by the caller before the upgrade happens.
func (h *RealtimeHandler) HandleWebSocket(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	channels, err := h.authorize(c.Request.Context(), userID, c.Query("channels"))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("failed to upgrade websocket")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, unsubscribe, err := h.subscriber.Subscribe(ctx, channels)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to subscribe")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscription failed"),
			time.Now().Add(writeTimeout))
		return
	}
	defer unsubscribe()

	log := h.log.With().Str("user_id", userID.String()).Int("channels", len(channels)).Logger()
	log.Debug().Msg("websocket subscribed")

	// Client messages are ignored; reading detects the disconnect.
	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case env, ok := <-stream:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(env); err != nil {
				log.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case <-clientClosed:
			log.Debug().Msg("websocket closed by client")
			return
		}
	}
}

func (h *RealtimeHandler) authorize(ctx context.Context, userID uuid.UUID, raw string) ([]channel.Channel, error) {
	if strings.TrimSpace(raw) == "" {
		return []channel.Channel{channel.User(userID)}, nil
	}

	seen := make(map[channel.Channel]struct{})
	var channels []channel.Channel
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		ch, err := channel.Parse(part)
		if err != nil {
			return nil, apperror.Invalid(err.Error())
		}
		if _, dup := seen[ch]; dup {
			continue
		}
		seen[ch] = struct{}{}

		ok, err := h.authority.CanRead(ctx, userID, ch)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperror.Forbidden(fmt.Sprintf("cannot subscribe to %s", ch))
		}
		channels = append(channels, ch)
	}

	if len(channels) == 0 {
		return nil, apperror.Invalid("no channels requested")
	}
	if len(channels) > maxChannels {
		return nil, apperror.Invalid(fmt.Sprintf("at most %d channels per connection", maxChannels))
	}
	return channels, nil
}
