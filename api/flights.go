package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Domenick1991/bushcharter/internal/domain"
	"github.com/Domenick1991/bushcharter/internal/service/flights"
	"github.com/gin-gonic/gin"
)

const maxPhotoBytes = 10 << 20

type FlightHandler struct {
	service flights.FlightUseCase
}

type fixRequest struct {
	PilotID    string    `json:"pilot_id" binding:"required"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	AltitudeFt *float64  `json:"altitude_ft"`
	SpeedKts   *float64  `json:"speed_kts"`
	Heading    *float64  `json:"heading"`
	CapturedAt time.Time `json:"captured_at" binding:"required"`
}

type landingRequest struct {
	fixRequest
	PhotoRef string `json:"photo_ref"`
}

type flightEventResponse struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"`
	PilotID    string   `json:"pilot_id"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	AltitudeFt *float64 `json:"altitude_ft,omitempty"`
	SpeedKts   *float64 `json:"speed_kts,omitempty"`
	Heading    *float64 `json:"heading,omitempty"`
	PhotoRef   *string  `json:"photo_ref,omitempty"`
	RecordedAt string   `json:"recorded_at"`
}

type landingResponse struct {
	Booking        bookingResponse  `json:"booking"`
	Payment        *paymentResponse `json:"payment,omitempty"`
	DistanceM      float64          `json:"distance_m"`
	ReleasePending bool             `json:"release_pending"`
}

func NewFlightHandler(service flights.FlightUseCase) *FlightHandler {
	return &FlightHandler{service: service}
}

// Register mounts the flight recorder under a bookings group.
func (h *FlightHandler) Register(router *gin.RouterGroup) {
	router.POST("/:id/takeoff", requireBookingID, h.takeoff)
	router.POST("/:id/positions", requireBookingID, h.position)
	router.POST("/:id/landing", requireBookingID, h.landing)
	router.POST("/:id/release", requireBookingID, h.release)
	router.GET("/:id/events", requireBookingID, h.events)
}

func (h *FlightHandler) takeoff(c *gin.Context) {
	var req fixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b, err := h.service.RecordTakeoff(c.Request.Context(), c.Param("id"), req.PilotID, req.fix())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *FlightHandler) position(c *gin.Context) {
	var req fixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	recorded, err := h.service.RecordLocationUpdate(c.Request.Context(), c.Param("id"), req.PilotID, req.fix())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"recorded": recorded})
}

// landing accepts either JSON with a stored photo_ref or a multipart form
// carrying the photo itself.
func (h *FlightHandler) landing(c *gin.Context) {
	input := flights.LandingInput{BookingID: c.Param("id")}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fix, pilotID, err := fixFromForm(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		input.Fix, input.PilotID = fix, pilotID
		input.PhotoRef = c.PostForm("photo_ref")

		if header, err := c.FormFile("photo"); err == nil {
			if header.Size > maxPhotoBytes {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "photo too large"})
				return
			}
			photo, err := header.Open()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			defer photo.Close()
			input.Photo = photo
		}
	} else {
		var req landingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		input.Fix, input.PilotID, input.PhotoRef = req.fix(), req.PilotID, req.PhotoRef
	}

	res, err := h.service.RecordLanding(c.Request.Context(), input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, landingResponse{
		Booking:        toBookingResponse(res.Booking),
		Payment:        toPaymentResponse(res.Payment),
		DistanceM:      res.DistanceM,
		ReleasePending: res.ReleasePending,
	})
}

func (h *FlightHandler) release(c *gin.Context) {
	payment, err := h.service.ReleasePayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaymentResponse(payment))
}

func (h *FlightHandler) events(c *gin.Context) {
	events, err := h.service.ListEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]flightEventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, flightEventResponse{
			ID:         e.ID,
			Type:       string(e.Type),
			PilotID:    e.PilotID,
			Latitude:   e.Latitude,
			Longitude:  e.Longitude,
			AltitudeFt: e.AltitudeFt,
			SpeedKts:   e.SpeedKts,
			Heading:    e.Heading,
			PhotoRef:   e.PhotoRef,
			RecordedAt: e.RecordedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (r fixRequest) fix() domain.Fix {
	return domain.Fix{
		Latitude:   r.Latitude,
		Longitude:  r.Longitude,
		AltitudeFt: r.AltitudeFt,
		SpeedKts:   r.SpeedKts,
		Heading:    r.Heading,
		CapturedAt: r.CapturedAt,
	}
}

func fixFromForm(c *gin.Context) (domain.Fix, string, error) {
	var fix domain.Fix
	pilotID := c.PostForm("pilot_id")
	if pilotID == "" {
		return fix, "", errMissingField("pilot_id")
	}

	var err error
	if fix.Latitude, err = strconv.ParseFloat(c.PostForm("latitude"), 64); err != nil {
		return fix, "", errMissingField("latitude")
	}
	if fix.Longitude, err = strconv.ParseFloat(c.PostForm("longitude"), 64); err != nil {
		return fix, "", errMissingField("longitude")
	}
	if fix.CapturedAt, err = time.Parse(time.RFC3339, c.PostForm("captured_at")); err != nil {
		return fix, "", errMissingField("captured_at")
	}
	return fix, pilotID, nil
}

type errMissingField string

func (e errMissingField) Error() string {
	return "missing or invalid form field " + string(e)
}
