package bot

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"carpoolbot/pkg/errs"
	"carpoolbot/pkg/logger"
	"carpoolbot/pkg/models"
	"carpoolbot/service"
)

// NewRouter exposes the conversation over HTTP for chat channels other than
// Telegram, plus reservation lookup, health and metrics.
func NewRouter(svc service.IServiceManager, log logger.ILogger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.POST("/intents", func(c *gin.Context) {
			var in models.Inbound
			if err := c.ShouldBindJSON(&in); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			out, err := svc.Conversation().Handle(c.Request.Context(), in)
			if err != nil {
				log.Error("intent failed", logger.String("user_id", in.UserID), logger.Error(err))
				if errs.Is(err, errs.ErrStoreUnavailable) {
					c.JSON(http.StatusServiceUnavailable, out)
					return
				}
				c.JSON(http.StatusInternalServerError, out)
				return
			}
			c.JSON(http.StatusOK, out)
		})

		api.GET("/reservations/:user_id", func(c *gin.Context) {
			res, err := svc.Reservation().Latest(c.Request.Context(), c.Param("user_id"))
			if err != nil {
				log.Error("reservation lookup failed", logger.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
				return
			}
			if res == nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "no reservation"})
				return
			}
			c.JSON(http.StatusOK, res)
		})
	}

	return r
}

type Server struct {
	srv *http.Server
	log logger.ILogger
}

func NewServer(port int, svc service.IServiceManager, log logger.ILogger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: NewRouter(svc, log),
		},
		log: log,
	}
}

// Run blocks until the server stops. A clean Shutdown is not an error.
func (s *Server) Run() error {
	s.log.Info("HTTP server listening", logger.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
