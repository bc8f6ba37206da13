package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/bushcharter/internal/domain"
	"github.com/Domenick1991/bushcharter/internal/policy"
	"github.com/Domenick1991/bushcharter/internal/service/booking"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type createBookingRequest struct {
	CustomerID    string    `json:"customer_id" binding:"required"`
	FromAirport   string    `json:"from_airport" binding:"required"`
	ToAirport     string    `json:"to_airport" binding:"required"`
	ScheduledAt   time.Time `json:"scheduled_at" binding:"required"`
	Passengers    int       `json:"passengers" binding:"required"`
	PaymentMethod string    `json:"payment_method" binding:"required"`
}

type confirmBookingRequest struct {
	PilotID string `json:"pilot_id" binding:"required"`
}

type cancelBookingRequest struct {
	Cause       string `json:"cause" binding:"required"`
	Reason      string `json:"reason"`
	CancelledBy string `json:"cancelled_by" binding:"required"`
}

type bookingResponse struct {
	ID                 string  `json:"id"`
	CustomerID         string  `json:"customer_id"`
	PilotID            *string `json:"pilot_id"`
	FromAirport        string  `json:"from_airport"`
	ToAirport          string  `json:"to_airport"`
	ScheduledAt        string  `json:"scheduled_at"`
	Passengers         int     `json:"passengers"`
	TotalPriceCents    int64   `json:"total_price_cents"`
	PlatformFeeCents   int64   `json:"platform_fee_cents"`
	PilotPayoutCents   int64   `json:"pilot_payout_cents"`
	Status             string  `json:"status"`
	TakeoffAt          *string `json:"takeoff_at,omitempty"`
	LandingAt          *string `json:"landing_at,omitempty"`
	LandingPhoto       *string `json:"landing_photo,omitempty"`
	CancellationCause  *string `json:"cancellation_cause,omitempty"`
	CancellationReason *string `json:"cancellation_reason,omitempty"`
	CancelledAt        *string `json:"cancelled_at,omitempty"`
}

type paymentResponse struct {
	Status           string  `json:"status"`
	AmountCents      int64   `json:"amount_cents"`
	PlatformFeeCents int64   `json:"platform_fee_cents"`
	PilotPayoutCents int64   `json:"pilot_payout_cents"`
	RefundCents      *int64  `json:"refund_cents,omitempty"`
	TransferRef      *string `json:"transfer_ref,omitempty"`
	RefundRef        *string `json:"refund_ref,omitempty"`
}

type creditResponse struct {
	ID          string `json:"id"`
	AmountCents int64  `json:"amount_cents"`
	Reason      string `json:"reason"`
	BookingID   string `json:"booking_id"`
	ExpiresAt   string `json:"expires_at"`
}

type cancellationResponse struct {
	Booking           bookingResponse   `json:"booking"`
	Payment           *paymentResponse  `json:"payment,omitempty"`
	Decision          policy.Decision   `json:"decision"`
	Settlement        policy.Settlement `json:"settlement"`
	Credit            *creditResponse   `json:"credit,omitempty"`
	SettlementPending bool              `json:"settlement_pending"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.create)
	router.GET("/:id", requireBookingID, h.get)
	router.PUT("/:id/confirm", requireBookingID, h.confirm)
	router.POST("/:id/cancel", requireBookingID, h.cancel)
	router.GET("/:id/cancellation-quote", requireBookingID, h.quote)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.service.CreateBooking(c.Request.Context(), booking.CreateBookingInput{
		CustomerID:    req.CustomerID,
		FromAirport:   req.FromAirport,
		ToAirport:     req.ToAirport,
		ScheduledAt:   req.ScheduledAt,
		Passengers:    req.Passengers,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toBookingResponse(created))
}

func (h *BookingHandler) get(c *gin.Context) {
	b, err := h.service.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) confirm(c *gin.Context) {
	var req confirmBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b, err := h.service.ConfirmBooking(c.Request.Context(), c.Param("id"), req.PilotID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) cancel(c *gin.Context) {
	var req cancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.service.CancelBooking(c.Request.Context(), booking.CancelBookingInput{
		BookingID:   c.Param("id"),
		Cause:       req.Cause,
		Reason:      req.Reason,
		CancelledBy: req.CancelledBy,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	resp := cancellationResponse{
		Booking:           toBookingResponse(res.Booking),
		Payment:           toPaymentResponse(res.Payment),
		Decision:          res.Decision,
		Settlement:        res.Settlement,
		SettlementPending: res.SettlementPending,
	}
	if res.Credit != nil {
		credit := toCreditResponse(*res.Credit)
		resp.Credit = &credit
	}
	status := http.StatusOK
	if res.SettlementPending {
		status = http.StatusAccepted
	}
	c.JSON(status, resp)
}

func (h *BookingHandler) quote(c *gin.Context) {
	cause := c.DefaultQuery("cause", "customer")
	q, err := h.service.CancellationQuote(c.Request.Context(), c.Param("id"), cause)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	return bookingResponse{
		ID:                 b.ID,
		CustomerID:         b.CustomerID,
		PilotID:            b.PilotID,
		FromAirport:        b.FromAirport,
		ToAirport:          b.ToAirport,
		ScheduledAt:        b.ScheduledAt.Format(time.RFC3339),
		Passengers:         b.Passengers,
		TotalPriceCents:    b.TotalPriceCents,
		PlatformFeeCents:   b.PlatformFee,
		PilotPayoutCents:   b.PilotPayout,
		Status:             string(b.Status),
		TakeoffAt:          formatTime(b.TakeoffAt),
		LandingAt:          formatTime(b.LandingAt),
		LandingPhoto:       b.LandingPhoto,
		CancellationCause:  b.CancellationCause,
		CancellationReason: b.CancellationReason,
		CancelledAt:        formatTime(b.CancelledAt),
	}
}

func toPaymentResponse(p *domain.Payment) *paymentResponse {
	if p == nil {
		return nil
	}
	return &paymentResponse{
		Status:           string(p.Status),
		AmountCents:      p.Amount,
		PlatformFeeCents: p.PlatformFee,
		PilotPayoutCents: p.PilotPayout,
		RefundCents:      p.RefundAmount,
		TransferRef:      p.TransferRef,
		RefundRef:        p.RefundRef,
	}
}

func toCreditResponse(cr domain.CustomerCredit) creditResponse {
	return creditResponse{
		ID:          cr.ID,
		AmountCents: cr.AmountCents,
		Reason:      cr.Reason,
		BookingID:   cr.BookingID,
		ExpiresAt:   cr.ExpiresAt.Format(time.RFC3339),
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
