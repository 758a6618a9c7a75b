package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/zeu5/platformer-rl/platformer"
	"github.com/zeu5/platformer-rl/sim"
)

// ControlServer exposes the simulation controller over HTTP
type ControlServer struct {
	Addr    string
	control *sim.Controller
	logger  *slog.Logger
	server  *http.Server
	engine  *gin.Engine
}

// ControlRequest toggles the settings of the simulation, absent fields are
// left unchanged
type ControlRequest struct {
	AIControl *bool    `json:"ai_control"`
	Training  *bool    `json:"training"`
	Speedup   *float64 `json:"speedup"`
}

type InputRequest struct {
	Left  bool `json:"left"`
	Right bool `json:"right"`
	Jump  bool `json:"jump"`
}

func NewControlServer(addr string, control *sim.Controller, logger *slog.Logger) *ControlServer {
	s := &ControlServer{
		Addr:    addr,
		control: control,
		logger:  logger,
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/status", s.handleStatus)
	r.POST("/control", s.handleControl)
	r.POST("/input", s.handleInput)
	r.POST("/command/:name", s.handleCommand)
	r.GET("/episodes/ws", s.handleEpisodes)
	s.engine = r
	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// Handler returns the routes of the server
func (s *ControlServer) Handler() http.Handler {
	return s.engine
}

// Run serves until the context is cancelled
func (s *ControlServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("control server listening", "addr", s.Addr)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("control server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.server.Shutdown(shutdownCtx)
	if lErr := <-errCh; lErr != nil && !errors.Is(lErr, http.ErrServerClosed) {
		return lErr
	}
	s.logger.Info("control server stopped")
	return err
}

func (s *ControlServer) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.control.Status())
}

func (s *ControlServer) handleControl(c *gin.Context) {
	req := ControlRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to unmarshal request"})
		return
	}
	if req.Speedup != nil {
		if err := s.control.SetSpeedup(*req.Speedup); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.AIControl != nil {
		s.control.SetAIControl(*req.AIControl)
	}
	if req.Training != nil {
		s.control.SetTraining(*req.Training)
	}
	c.JSON(http.StatusOK, s.control.Settings())
}

func (s *ControlServer) handleInput(c *gin.Context) {
	req := InputRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to unmarshal request"})
		return
	}
	s.control.SetInput(platformer.InputState{Left: req.Left, Right: req.Right, Jump: req.Jump})
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

func (s *ControlServer) handleCommand(c *gin.Context) {
	cmd, err := sim.ParseCommand(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	s.control.Submit(cmd)
	c.JSON(http.StatusAccepted, gin.H{"command": cmd})
}

// handleEpisodes streams every finished episode as a json text message
func (s *ControlServer) handleEpisodes(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Error("failed to accept", "err", err)
		return
	}
	defer conn.CloseNow()

	records, cancel := s.control.Subscribe(64)
	defer cancel()

	// the stream is one way, reading only watches for the close frame
	ctx := conn.CloseRead(c.Request.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-records:
			if !ok {
				return
			}
			bs, err := json.Marshal(rec)
			if err != nil {
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, bs); err != nil {
				s.logger.Debug("episode stream closed", "err", err)
				return
			}
		}
	}
}
