package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/racebot/gorace/internal/domain"
)

type fleetStatusResponse struct {
	Bots  []domain.BotSnapshot `json:"bots"`
	Zones map[domain.Zone]int  `json:"zones"` // 各区域当前占用数
}

func (s *Server) handleFleetStatus(c *gin.Context) {
	snapshots := s.fleet.LastSnapshots()

	zones := make(map[domain.Zone]int)
	for _, snap := range snapshots {
		if snap.Zone != domain.ZoneNone {
			zones[snap.Zone]++
		}
	}

	c.JSON(http.StatusOK, fleetStatusResponse{
		Bots:  snapshots,
		Zones: zones,
	})
}

func (s *Server) handleCyclesList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	reports, err := s.store.ListReports(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycles": reports})
}

func (s *Server) handleCycleGet(c *gin.Context) {
	id := c.Param("cycleID")

	report, err := s.store.GetReport(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "cycle not found"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleCycleRun(c *gin.Context) {
	if s.trigger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "manual trigger not available"})
		return
	}
	s.trigger.Emit()
	c.JSON(http.StatusAccepted, gin.H{"status": "triggered"})
}
