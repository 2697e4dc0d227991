package chat

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatrelay/internal/auth"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10 // must be < pongWait

	maxFrameSize    = 64 * 1024
	dispatchTimeout = 1900 * time.Millisecond
)

// Server owns the WS entry point: it authenticates the connection,
// registers the session, and runs the per-connection reader loop.
type Server struct {
	verifier   *auth.Verifier
	reg        *Registry
	tracker    *Tracker
	dispatcher *Dispatcher
	router     *Router

	upgrader websocket.Upgrader
}

func NewServer(verifier *auth.Verifier, reg *Registry, tracker *Tracker, dispatcher *Dispatcher) *Server {
	router := NewRouter()
	dispatcher.registerAll(router)

	return &Server{
		verifier:   verifier,
		reg:        reg,
		tracker:    tracker,
		dispatcher: dispatcher,
		router:     router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true }, // dev-only
		},
	}
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

// Handle authenticates and upgrades one connection. An invalid
// credential refuses the connection before any registry state exists.
func (s *Server) Handle(ginCtx *gin.Context) {
	token := bearerToken(ginCtx)

	identity, err := s.verifier.Verify(ginCtx.Request.Context(), token)
	if err != nil {
		ginCtx.JSON(http.StatusUnauthorized, gin.H{"error": "authentication error"})
		return
	}

	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.upgrade", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(maxFrameSize)

	// ─────────────────── Session registered ────────────────────────
	wsc := &wsConn{raw: rawConn}
	sess := newSession(identity, wsc)
	first := s.reg.Register(sess)
	s.tracker.SessionOnline(ginCtx.Request.Context(), sess, first)

	zap.L().Info("ws.connect",
		zap.String("user", sess.UserID),
		zap.String("session", sess.ID),
		zap.Bool("first_session", first))

	go s.reader(sess, wsc)
	go s.pinger(wsc)
}

// bearerToken pulls the credential from the Authorization header or,
// for browser WS clients that cannot set headers, the token query param.
func bearerToken(ginCtx *gin.Context) string {
	if h := ginCtx.GetHeader("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ginCtx.Query("token")
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *Server) reader(sess *Session, wsc *wsConn) {
	defer func() {
		_, last, left := s.reg.Deregister(sess.ID)
		s.tracker.SessionOffline(context.Background(), sess, last)
		_ = wsc.close()

		zap.L().Info("ws.disconnect",
			zap.String("user", sess.UserID),
			zap.String("session", sess.ID),
			zap.Int("rooms_left", len(left)),
			zap.Bool("last_session", last))
	}()

	_ = wsc.raw.SetReadDeadline(time.Now().Add(pongWait))
	wsc.raw.SetPongHandler(func(string) error {
		return wsc.raw.SetReadDeadline(time.Now().Add(pongWait))
	})

	sc := &SessionContext{Session: sess}

	for {
		var env Envelope
		if err := wsc.raw.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				zap.L().Debug("ws.read", zap.String("session", sess.ID), zap.Error(err))
			}
			return // client closed or errored
		}

		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		res, err := s.router.dispatch(ctx, sc, env)
		cancel()

		// ---- error -> {"event":"error", "body":{...}} ---------------
		if err != nil {
			s.reportError(sess, env.Event, err)
			continue
		}

		// ---- success -> {"event":"<evt>-ack", "body":{...}} --------
		if sendErr := sess.send(env.Event+"-ack", res); sendErr != nil {
			return
		}
	}
}

// reportError notifies only the requesting session; a failure in one
// session's handling never touches the others.
func (s *Server) reportError(sess *Session, event string, err error) {
	code := reasonCode(err)
	if code == "internal_error" {
		zap.L().Error("ws.dispatch", zap.String("event", event), zap.Error(err))
	}
	_ = sess.send(EvtError, ErrorBody{Code: code, Error: err.Error()})
}

func (s *Server) pinger(wsc *wsConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if err := wsc.ping(); err != nil {
			_ = wsc.close()
			return
		}
	}
}
