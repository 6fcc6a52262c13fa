package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mizunoto/tankwatch/internal/model"
)

func (s *Server) readingLimit(c *gin.Context) (int, bool) {
	limit := s.cfg.DefaultLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return 0, false
		}
		limit = parsed
	}
	return limit, true
}

func (s *Server) handleWaterReadings(c *gin.Context) {
	limit, ok := s.readingLimit(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	readings, err := s.store.RecentWaterReadings(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(readings), "readings": readings})
}

func (s *Server) handleAtmosphericReadings(c *gin.Context) {
	limit, ok := s.readingLimit(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	readings, err := s.store.RecentAtmosphericReadings(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(readings), "readings": readings})
}

// handleRealtimeNow serves the newest reading of each kind, preferring the
// cache and falling back to the database per kind.
func (s *Server) handleRealtimeNow(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	var water *model.WaterReading
	var atmospheric *model.AtmosphericReading

	if s.latest != nil {
		if r, ok, err := s.latest.Water(ctx); err == nil && ok {
			water = &r
		}
		if r, ok, err := s.latest.Atmospheric(ctx); err == nil && ok {
			atmospheric = &r
		}
	}

	if water == nil {
		if rows, err := s.store.RecentWaterReadings(ctx, 1); err == nil && len(rows) > 0 {
			water = &rows[0]
		}
	}
	if atmospheric == nil {
		if rows, err := s.store.RecentAtmosphericReadings(ctx, 1); err == nil && len(rows) > 0 {
			atmospheric = &rows[0]
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"water_level":           water,
		"atmospheric_condition": atmospheric,
	})
}

func (s *Server) cacheWater(ctx context.Context, reading model.WaterReading) {
	if s.latest == nil {
		return
	}
	if err := s.latest.SetWater(ctx, reading); err != nil {
		s.log.Warn("latest cache write failed", "kind", "water", "error", err)
	}
}

func (s *Server) cacheAtmospheric(ctx context.Context, reading model.AtmosphericReading) {
	if s.latest == nil {
		return
	}
	if err := s.latest.SetAtmospheric(ctx, reading); err != nil {
		s.log.Warn("latest cache write failed", "kind", "atmospheric", "error", err)
	}
}
