package stmlive

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status          string `json:"status"`
	Env             string `json:"env"`
	UptimeSeconds   int64  `json:"uptimeSeconds"`
	LatestPassEpoch int64  `json:"latestPassEpoch"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status:          "ok",
		Env:             s.cfg.Server.Env,
		UptimeSeconds:   int64(time.Since(s.started).Seconds()),
		LatestPassEpoch: s.sessions.LatestPassEpoch(),
	})
}
