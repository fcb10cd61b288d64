package ws

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tourney-service/internal/service/engine"
	pkgAuth "tourney-service/pkg/auth"
	appErr "tourney-service/pkg/errors"
	"tourney-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Handler struct {
	engineSvc *engine.Service
}

func NewHandler(engineSvc *engine.Service) *Handler {
	return &Handler{engineSvc: engineSvc}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

// HandleTournamentWS streams committed state changes for one tournament to a
// viewer. The current state is sent first so late joiners render immediately.
func (h *Handler) HandleTournamentWS(c *gin.Context) {
	tournamentIDStr := c.Param("tournamentId")
	tournamentID, err := strconv.ParseInt(tournamentIDStr, 10, 64)
	if err != nil || tournamentID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tournament id"})
		return
	}

	token, err := getTokenFromRequest(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	claims, err := pkgAuth.ParseToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	viewerID := claims.SubjectID

	state, err := h.engineSvc.GetState(c.Request.Context(), tournamentID)
	if err != nil {
		if errors.Is(err, appErr.ErrTournamentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "tournament not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load tournament"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	logger.Log.Info("New WebSocket connection",
		zap.Int64("tournamentID", tournamentID),
		zap.Int64("viewerID", viewerID),
	)

	client := newClient(conn, viewerID, tournamentID, h.engineSvc)
	client.sendSnapshot(state)
	client.run()
}

func getTokenFromRequest(c *gin.Context) (string, error) {
	token := strings.TrimSpace(c.Query("token"))
	if token != "" {
		return token, nil
	}
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = strings.TrimSpace(parts[1])
			if token != "" {
				return token, nil
			}
		}
	}
	return "", errors.New("missing token")
}

type client struct {
	conn         *websocket.Conn
	viewerID     int64
	tournamentID int64
	engineSvc    *engine.Service
	subID        int64
	events       <-chan engine.StateChange
	done         chan struct{}
	pingEvery    time.Duration
}

func newClient(conn *websocket.Conn, viewerID, tournamentID int64, engineSvc *engine.Service) *client {
	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	subID, events := engineSvc.Subscribe(tournamentID)
	return &client{
		conn:         conn,
		viewerID:     viewerID,
		tournamentID: tournamentID,
		engineSvc:    engineSvc,
		subID:        subID,
		events:       events,
		done:         make(chan struct{}),
		pingEvery:    25 * time.Second,
	}
}

func (c *client) run() {
	go c.writePump()
	c.readPump()
}

func (c *client) sendSnapshot(state interface{}) {
	if err := c.conn.WriteJSON(gin.H{"type": "snapshot", "state": state}); err != nil {
		logger.Log.Info("WS write error", zap.Error(err), zap.Int64("viewerID", c.viewerID), zap.Int64("tournamentID", c.tournamentID))
	}
}

// readPump discards inbound frames. Viewers are read-only; the connection is
// kept open only to detect the close.
func (c *client) readPump() {
	defer func() {
		close(c.done)
		c.engineSvc.Unsubscribe(c.tournamentID, c.subID)
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			logger.Log.Info("WS read error", zap.Error(err), zap.Int64("viewerID", c.viewerID), zap.Int64("tournamentID", c.tournamentID))
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.pingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.events:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(gin.H{"type": "state_change", "event": evt}); err != nil {
				logger.Log.Info("WS write error", zap.Error(err), zap.Int64("viewerID", c.viewerID), zap.Int64("tournamentID", c.tournamentID))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
