// Package web is the browser front end: a gin server with one websocket per
// chat session.
package web

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/vinayprograms/researchdesk/internal/chat"
	"github.com/vinayprograms/researchdesk/internal/config"
	"github.com/vinayprograms/researchdesk/internal/logging"
	"github.com/vinayprograms/researchdesk/internal/transcript"
)

//go:embed static/index.html
var indexHTML []byte

const iconRoute = "/icons"

// Server serves the chat page and its websocket.
type Server struct {
	cfg      config.WebConfig
	handlers *chat.Handlers
	sinks    []transcript.Sink

	engine   *gin.Engine
	upgrader websocket.Upgrader
	logger   *logging.Logger
	started  time.Time

	mu      sync.Mutex
	conns   map[string]*conn
	closing bool

	wg sync.WaitGroup
}

// NewServer builds the routes. Each websocket gets its own chat.Session
// whose surface calls are recorded to sinks.
func NewServer(cfg config.WebConfig, handlers *chat.Handlers, sinks ...transcript.Sink) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:      cfg,
		handlers: handlers,
		sinks:    sinks,
		engine:   gin.New(),
		logger:   logging.New().WithComponent("web"),
		started:  time.Now(),
		conns:    make(map[string]*conn),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin(),
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(requestLogger(s.logger))
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		if slices.Contains(cfg.AllowedOrigins, "*") {
			corsConfig.AllowAllOrigins = true
		} else {
			corsConfig.AllowOrigins = cfg.AllowedOrigins
		}
		corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
		corsConfig.AllowWebSockets = true
		s.engine.Use(cors.New(corsConfig))
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
	})
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/ws", s.handleWebSocket)

	if s.cfg.IconDir != "" {
		if info, err := os.Stat(s.cfg.IconDir); err == nil && info.IsDir() {
			s.engine.Static(iconRoute, s.cfg.IconDir)
		} else {
			s.logger.Warn("icon directory not found", map[string]interface{}{"dir": s.cfg.IconDir})
		}
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Sessions returns the number of open websocket sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "ok",
		Sessions: s.Sessions(),
		Uptime:   time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleWebSocket(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already replied.
		s.logger.Warn("websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if !s.track() {
		ws.Close()
		return
	}
	defer s.wg.Done()
	s.serveConn(ws)
}

// serveConn runs one session until the browser goes away.
func (s *Server) serveConn(ws *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cn := newConn(ws, iconURL)
	rec := transcript.Recording(cn, "web", s.sinks...)
	sess := chat.NewSession(rec)
	id := sess.ID()
	logger := s.logger.WithSession(id)

	s.add(id, cn)
	defer func() {
		cancel()
		cn.close()
		sess.Close()
		s.remove(id)
		logger.Info("websocket closed")
	}()
	logger.Info("websocket opened", map[string]interface{}{"remote": ws.RemoteAddr().String()})

	if err := cn.write(Frame{Type: FrameSession, Session: id}); err != nil {
		return
	}
	if err := s.handlers.OnSessionStart(ctx, sess); err != nil {
		logger.Error("session start failed", map[string]interface{}{"error": err.Error()})
		chat.ReportError(ctx, rec, err)
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("websocket read failed", map[string]interface{}{"error": err.Error()})
			}
			return
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			logger.Warn("invalid frame", map[string]interface{}{"error": err.Error()})
			continue
		}

		switch f.Type {
		case FrameUserMessage:
			text := strings.TrimSpace(f.Content)
			if text == "" {
				continue
			}
			if !s.track() {
				logger.Debug("server stopping, message dropped")
				continue
			}
			go func() {
				defer s.wg.Done()
				if err := s.handlers.OnMessage(ctx, sess, text); err != nil {
					logger.Error("conversation failed", map[string]interface{}{"error": err.Error()})
					chat.ReportError(ctx, rec, err)
				}
			}()
		case FrameReply, FrameActionReply:
			if !cn.deliver(f) {
				logger.Debug("reply for unknown prompt", map[string]interface{}{"id": f.ID})
			}
		default:
			logger.Warn("unknown frame type", map[string]interface{}{"type": f.Type})
		}
	}
}

func (s *Server) add(id string, c *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[id] = c
}

func (s *Server) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, id)
}

// track adds one to the shutdown wait group unless the server is stopping.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) closeAll() {
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}

// Serve accepts connections on ln until ctx ends, then closes every open
// session and waits for their conversations to stop.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("serving", map[string]interface{}{"addr": ln.Addr().String()})

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.closeAll()
	s.wg.Wait()
	s.logger.Info("server stopped")
	return err
}

// ListenAndServe listens on the configured address, or on the tailnet when
// a tailnet hostname is set, and serves until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, stateDir string) error {
	if s.cfg.TailnetHostname != "" {
		ln, closer, err := listenTailnet(s.cfg.TailnetHostname, s.cfg.Addr, stateDir)
		if err != nil {
			return err
		}
		defer closer.Close()
		return s.Serve(ctx, ln)
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) checkOrigin() func(*http.Request) bool {
	allowed := s.cfg.AllowedOrigins
	if len(allowed) == 0 {
		// Same-origin check.
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, "*") {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}

// iconURL maps a configured avatar path to the route serving it.
func iconURL(p string) string {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "://") {
		return p
	}
	return path.Join(iconRoute, filepath.Base(p))
}

func requestLogger(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request", map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
	}
}
