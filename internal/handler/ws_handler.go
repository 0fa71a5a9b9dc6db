package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/classforge/classforge-backend/internal/middleware"
	"github.com/classforge/classforge-backend/internal/model"
	"github.com/classforge/classforge-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// clockFrame is one tick of the attempt clock stream.
type clockFrame struct {
	Status           model.AttemptStatus `json:"status"`
	ElapsedSeconds   int                 `json:"elapsed_seconds"`
	RemainingSeconds float64             `json:"remaining_seconds"`
}

// WSHandler streams the server-authoritative attempt clock to clients.
type WSHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptClockStream godoc
// WS /ws/v1/attempts/:attempt_id/clock
// Pushes {status, elapsed, remaining} frames every second so the client's
// countdown tracks server time instead of the local clock. The stream ends
// when the attempt reaches a terminal state or the client disconnects.
func (h *WSHandler) AttemptClockStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attempt ID"})
		return
	}

	// Verify ownership before upgrading; the stream carries attempt state.
	if _, err := h.attemptService.GetState(c.Request.Context(), claims.UserID, attemptID); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "no active attempt"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("student_id", claims.UserID).
		Str("attempt_id", attemptID.String()).
		Logger()

	wsLog.Info().Msg("Clock stream connected")

	// Reader goroutine: we never expect client frames, but reading is what
	// detects a disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			wsLog.Debug().Msg("Clock stream closed")
			return
		case <-ticker.C:
			state, err := h.attemptService.GetState(c.Request.Context(), claims.UserID, attemptID)
			if err != nil {
				wsLog.Warn().Err(err).Msg("State fetch failed, closing stream")
				return
			}

			frame := clockFrame{
				Status:           state.Attempt.Status,
				ElapsedSeconds:   state.Attempt.ElapsedSeconds,
				RemainingSeconds: state.RemainingSeconds,
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(frame); err != nil {
				wsLog.Debug().Err(err).Msg("Write failed, closing stream")
				return
			}

			if state.Attempt.Status.Terminal() {
				wsLog.Info().Str("status", string(state.Attempt.Status)).Msg("Attempt terminal, ending stream")
				return
			}
		}
	}
}
