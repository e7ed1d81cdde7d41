package realtime

import (
	"context"
	"fmt"
	"net/http"

	"TaskFlow/global/config"
	"TaskFlow/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Server hosts the websocket gateway and the presence query surface.
// Domain handlers in the API layer hold the same Registry/Broadcaster
// and push events after committing their writes.
type Server struct {
	conf     config.AppConfig
	reg      *Registry
	bc       *Broadcaster
	engine   *gin.Engine
	httpSrv  *http.Server
	upgrader websocket.Upgrader
}

func NewServer(conf config.AppConfig, reg *Registry, bc *Broadcaster, checkOrigin func(*http.Request) bool) *Server {
	s := &Server{
		conf:   conf,
		reg:    reg,
		bc:     bc,
		engine: gin.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	s.engine.GET("/ws", s.HandleWS)
	s.engine.GET("/projects/:id/presence", s.handlePresence)
	s.engine.GET("/projects/:id/presence/count", s.handlePresenceCount)
}

func (s *Server) handlePresence(c *gin.Context) {
	projectID := c.Param("id")
	c.JSON(http.StatusOK, gin.H{
		"projectId": projectID,
		"users":     s.reg.RoomPresence(projectID),
	})
}

func (s *Server) handlePresenceCount(c *gin.Context) {
	projectID := c.Param("id")
	c.JSON(http.StatusOK, gin.H{
		"projectId": projectID,
		"count":     s.reg.RoomSize(projectID),
	})
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) Run() error {
	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.conf.Port),
		Handler: s.engine,
	}
	logger.Infof("[gateway] listening on %s", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, then drains the registry so
// every write pump exits.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Shutdown(ctx)
	}
	s.reg.Close()
	return err
}
