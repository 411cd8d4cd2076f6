package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// DefaultAllowedOrigins are the local UI dev servers allowed by CORS.
var DefaultAllowedOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}

func NewRouter(h *Handler, allowedOrigins []string) *gin.Engine {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{"GET", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       10 * time.Minute,
	}))
	r.Use(loopbackOnly())

	r.GET("/health", h.Health)
	r.GET("/security/status", h.SecurityStatus)

	r.GET("/wallet", h.Wallet)
	r.GET("/wallet/balance", h.Balance)

	chain := r.Group("/chain")
	{
		chain.GET("/gas", h.GasPrice)
		chain.GET("/block", h.BlockNumber)
		chain.GET("/receipt/:hash", h.Receipt)
	}

	return r
}
