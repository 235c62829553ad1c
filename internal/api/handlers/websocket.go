package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onnwee/forcegraph/backend/internal/apierr"
	"github.com/onnwee/forcegraph/backend/internal/errorreporting"
	"github.com/onnwee/forcegraph/backend/internal/graph"
	"github.com/onnwee/forcegraph/backend/internal/logger"
	"github.com/onnwee/forcegraph/backend/internal/metrics"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 30 * time.Second

	// Read limit once the start message has been consumed
	maxControlMessageSize = 512
)

// Client message types.
const (
	MessageStart = "start"
	MessageStop  = "stop"
	MessageError = "error"
)

// StartMessage opens a stream. It must be the first message on the socket.
type StartMessage struct {
	Type string `json:"type"`
	graph.LayoutRequest
}

type clientMessage struct {
	Type string `json:"type"`
}

// ErrorMessage is sent before the server closes a stream that failed.
type ErrorMessage struct {
	Type  string        `json:"type"`
	Error *apierr.Error `json:"error"`
}

// SimulationFactory is the part of graph.Service the stream handler needs.
type SimulationFactory interface {
	NewSimulation(req graph.LayoutRequest) (*graph.Simulation, int, error)
	Options() graph.ServiceOptions
}

// StreamOptions configures LayoutStreamHandler.
type StreamOptions struct {
	// FrameInterval paces ticks. 0 runs unpaced.
	FrameInterval time.Duration
	// Every sends a frame every N ticks.
	Every int
	// Timeout bounds a whole stream. 0 means no limit.
	Timeout time.Duration
	// MaxStartBytes caps the start message.
	MaxStartBytes int64
	// CheckOrigin is passed to the upgrader. nil enforces same-origin.
	CheckOrigin func(r *http.Request) bool
}

// LayoutStreamHandler runs a simulation per websocket and pushes snapshots
// to the client while it settles.
type LayoutStreamHandler struct {
	svc      SimulationFactory
	opts     StreamOptions
	animator *graph.Animator
	upgrader websocket.Upgrader
}

// NewLayoutStreamHandler creates a stream handler.
func NewLayoutStreamHandler(svc SimulationFactory, opts StreamOptions) *LayoutStreamHandler {
	if opts.MaxStartBytes <= 0 {
		opts.MaxStartBytes = 10 << 20
	}
	return &LayoutStreamHandler{
		svc:      svc,
		opts:     opts,
		animator: graph.NewAnimator(opts.FrameInterval, opts.Every),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     opts.CheckOrigin,
		},
	}
}

// HandleWebSocket handles GET /api/layout/ws.
//
// The client sends one StartMessage, then receives graph.Frame values until a
// final "end" frame, after which the server closes normally. Sending
// {"type":"stop"} or closing the socket abandons the run.
func (h *LayoutStreamHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	metrics.WebSocketConnections.Inc()
	defer metrics.WebSocketConnections.Dec()

	conn.SetReadLimit(h.opts.MaxStartBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	var start StartMessage
	if err := conn.ReadJSON(&start); err != nil {
		logger.DebugContext(r.Context(), "websocket start message unreadable", "error", err)
		h.fail(conn, r, apierr.ValidationInvalidJSON())
		return
	}
	if start.Type != MessageStart {
		h.fail(conn, r, apierr.ValidationInvalidValue("type", "first message must be of type \"start\""))
		return
	}

	sim, iterations, err := h.svc.NewSimulation(start.LayoutRequest)
	if err != nil {
		apiErr, _ := apierr.FromLayoutError(err, h.svc.Options().MaxNodes)
		h.fail(conn, r, apiErr)
		return
	}
	defer sim.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	if h.opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, h.opts.Timeout)
		defer cancel()
	}

	conn.SetReadLimit(maxControlMessageSize)
	go readPump(conn, cancel)
	go pingLoop(ctx, conn)

	log := logger.WithRequestID(r.Context())
	log.Debug("layout stream started", "nodes", sim.Len(), "iterations", iterations)

	err = h.animator.Animate(ctx, sim, iterations, func(f graph.Frame) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(f); err != nil {
			return err
		}
		metrics.WebSocketMessagesSent.Inc()
		return nil
	})

	switch {
	case err == nil:
		log.Debug("layout stream finished", "ticks", sim.Ticks())
	case errors.Is(err, context.Canceled):
		log.Debug("layout stream abandoned by client", "ticks", sim.Ticks())
	default:
		apiErr, clientSide := apierr.FromLayoutError(err, h.svc.Options().MaxNodes)
		if !clientSide {
			log.Error("layout stream failed", "error", err)
			errorreporting.CaptureErrorWithContext(r.Context(), err, map[string]string{"handler": "layout_stream"})
		}
		h.fail(conn, r, apiErr)
		return
	}
	closeNormal(conn)
}

// fail sends apiErr and closes the socket.
func (h *LayoutStreamHandler) fail(conn *websocket.Conn, r *http.Request, apiErr *apierr.Error) {
	if id := apierr.GetRequestID(r.Context()); id != "" {
		apiErr = apiErr.WithRequestID(id)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(ErrorMessage{Type: MessageError, Error: apiErr}); err == nil {
		metrics.WebSocketMessagesSent.Inc()
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, string(apiErr.Code)),
		time.Now().Add(writeWait))
}

func closeNormal(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

// readPump consumes client messages until the socket fails or the client asks
// to stop, then cancels the run.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("websocket read error", "error", err)
			}
			return
		}
		if msg.Type == MessageStop {
			return
		}
	}
}

func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
