package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/bushcharter/internal/repository"
	"github.com/gin-gonic/gin"
)

type CreditHandler struct {
	credits repository.CreditRepository
	now     func() time.Time
}

func NewCreditHandler(credits repository.CreditRepository) *CreditHandler {
	return &CreditHandler{credits: credits, now: time.Now}
}

func (h *CreditHandler) Register(router *gin.RouterGroup) {
	router.GET("/:id/credits", h.list)
}

func (h *CreditHandler) list(c *gin.Context) {
	credits, err := h.credits.ListActive(c.Request.Context(), c.Param("id"), h.now())
	if err != nil {
		writeError(c, err)
		return
	}

	var total int64
	resp := make([]creditResponse, 0, len(credits))
	for _, cr := range credits {
		total += cr.AmountCents
		resp = append(resp, toCreditResponse(cr))
	}
	c.JSON(http.StatusOK, gin.H{"credits": resp, "total_cents": total})
}
