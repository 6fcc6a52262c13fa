package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ingestPayload is the sensor-facing body. Pointer fields distinguish absent
// values from genuine zeros.
type ingestPayload struct {
	VolumeM3     *float64 `json:"volume_m3"`
	VolumeLiters *float64 `json:"volume_liters"`
	Temperature  *float64 `json:"temperature"`
	Humidity     *float64 `json:"humidity"`
}

func (p ingestPayload) hasWater() bool {
	return p.VolumeM3 != nil || p.VolumeLiters != nil
}

func (p ingestPayload) hasAtmospheric() bool {
	return p.Temperature != nil || p.Humidity != nil
}

// handleIngest accepts any subset of reading fields and writes a row per
// kind. Kinds fail independently: a storage error on one is reported in the
// results while the other is still attempted.
func (s *Server) handleIngest(c *gin.Context) {
	var payload ingestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	if !payload.hasWater() && !payload.hasAtmospheric() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one reading value is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results := gin.H{}

	if payload.hasWater() {
		reading, err := s.store.InsertWaterReading(ctx, payload.VolumeM3, payload.VolumeLiters)
		if err != nil {
			s.log.Error("water insert failed", "error", err)
			results["water_error"] = err.Error()
		} else {
			results["water_level"] = reading
			s.cacheWater(ctx, reading)
		}
	}

	if payload.hasAtmospheric() {
		reading, err := s.store.InsertAtmosphericReading(ctx, payload.Temperature, payload.Humidity)
		if err != nil {
			s.log.Error("atmospheric insert failed", "error", err)
			results["atmospheric_error"] = err.Error()
		} else {
			results["atmospheric_condition"] = reading
			s.cacheAtmospheric(ctx, reading)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "data inserted",
		"results": results,
	})
}
