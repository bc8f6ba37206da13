package api

import (
	"context"
	"net/http"

	"github.com/Domenick1991/bushcharter/internal/domain"
	"github.com/gin-gonic/gin"
)

// WeatherChecker is the route gate as seen by the API.
type WeatherChecker interface {
	CheckAirport(ctx context.Context, airport string) (*domain.Determination, error)
	CheckRoute(ctx context.Context, from, to string) (*domain.RouteCheck, error)
}

type WeatherHandler struct {
	gate WeatherChecker
}

func NewWeatherHandler(gate WeatherChecker) *WeatherHandler {
	return &WeatherHandler{gate: gate}
}

func (h *WeatherHandler) Register(router *gin.RouterGroup) {
	router.GET("/route", h.route)
	router.GET("/airports/:code", h.airport)
}

func (h *WeatherHandler) airport(c *gin.Context) {
	d, err := h.gate.CheckAirport(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *WeatherHandler) route(c *gin.Context) {
	from, to := c.Query("from"), c.Query("to")
	if from == "" || to == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to are required"})
		return
	}

	check, err := h.gate.CheckRoute(c.Request.Context(), from, to)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"safe":           check.Safe,
		"departure":      check.Departure,
		"arrival":        check.Arrival,
		"blocked_reason": check.BlockedReason(),
	})
}
