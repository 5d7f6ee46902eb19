package stmlive

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mtlrider/stm-live/directions"
	"github.com/mtlrider/stm-live/geo"
)

type directionsRequest struct {
	Origin      string `json:"origin" binding:"required"`
	Destination string `json:"destination" binding:"required"`
}

type directionsResponse struct {
	Routes []directions.Itinerary `json:"routes"`
}

// handleDirections serves POST /api/directions: transit itineraries between
// two free-form addresses.
func (s *Server) handleDirections(c *gin.Context) {
	var req directionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := s.routes.ComputeRoutes(c.Request.Context(), req.Origin, req.Destination)
	if err != nil {
		s.log.Error("directions provider failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "directions provider unavailable"})
		return
	}
	c.JSON(http.StatusOK, directionsResponse{Routes: directions.Translate(*resp)})
}

type etaRequest struct {
	BusLocation  geo.Coord `json:"busLocation" binding:"required"`
	StopLocation geo.Coord `json:"stopLocation" binding:"required"`
}

// handleETA serves POST /api/eta: a traffic-aware driving estimate between
// two coordinates. The estimate is advisory; null means no answer today.
func (s *Server) handleETA(c *gin.Context) {
	var req etaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"eta": s.routes.EstimateETA(c.Request.Context(), req.BusLocation, req.StopLocation)})
}

// handleCreateSession serves POST /api/sessions: starts polling live
// arrivals for the itinerary the rider is now viewing. The client cancels
// the previous session when the rider switches itineraries.
func (s *Server) handleCreateSession(c *gin.Context) {
	var it directions.Itinerary
	if err := c.ShouldBindJSON(&it); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(it.Legs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "itinerary has no legs"})
		return
	}

	// The session outlives this request; its lifetime is governed by
	// Cancel and by server shutdown, not by the request context.
	session := s.sessions.Start(context.Background(), it)
	c.JSON(http.StatusCreated, gin.H{"sessionId": session.ID.String()})
}

// handleCancelSession serves DELETE /api/sessions/:id.
func (s *Server) handleCancelSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}
	if !s.sessions.Cancel(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}
	c.Status(http.StatusNoContent)
}

// handleArrivals serves GET /api/sessions/:id/arrivals: the latest
// completed pass, or 202 while the first pass is still running.
func (s *Server) handleArrivals(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}
	session, ok := s.sessions.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}
	if session.Idle() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live data unavailable"})
		return
	}
	snap := session.Snapshot()
	if snap == nil {
		c.JSON(http.StatusAccepted, gin.H{"status": "pending"})
		return
	}
	c.JSON(http.StatusOK, snap)
}
