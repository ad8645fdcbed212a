package handler

import (
	"log/slog"
	"net/http"
	"time"

	"Coop_Voting/internal/observability"
	"Coop_Voting/internal/relay"
	"Coop_Voting/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
)

// LiveMessage 只提示客户端去拉取 /data，不推送统计本身
type LiveMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

var refreshMessage = LiveMessage{Type: "refresh", Message: "new data available"}

type LiveHandler struct {
	polls    *service.PollService
	relay    relay.Relay
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

// NewLiveHandler m 可为 nil
func NewLiveHandler(polls *service.PollService, r relay.Relay, m *observability.Metrics) *LiveHandler {
	return &LiveHandler{
		polls:   polls,
		relay:   r,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Live 升级为 websocket，投票数据变化时推送 refresh
func (h *LiveHandler) Live(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	pollID, ok := idParam(c)
	if !ok {
		return
	}
	// 升级前先确认调用者能看到这个投票
	if _, err := h.polls.GetPoll(c.Request.Context(), caller, pollID); err != nil {
		writeError(c, err)
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("failed to upgrade the websocket", "poll_id", pollID, "error", err)
		return
	}
	defer ws.Close()

	sub := h.relay.Subscribe(pollID)
	defer sub.Close()
	if h.metrics != nil {
		h.metrics.LiveViewers.Inc()
		defer h.metrics.LiveViewers.Dec()
	}
	slog.Debug("live viewer connected", "poll_id", pollID, "user_id", caller.UserID)

	// 读协程只处理 pong 和关闭帧，客户端发来的内容忽略
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		ws.SetReadLimit(512)
		_ = ws.SetReadDeadline(time.Now().Add(livePongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(livePongWait))
		})
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			slog.Debug("live viewer disconnected", "poll_id", pollID, "user_id", caller.UserID)
			return
		case <-sub.C:
			_ = ws.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := ws.WriteJSON(refreshMessage); err != nil {
				slog.Debug("failed to write live message", "poll_id", pollID, "error", err)
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				return
			}
		}
	}
}
