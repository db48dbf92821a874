package handler

import (
	"net/http"
	"strconv"

	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

type ReferralHandler struct {
	svc *service.ReferralService
}

func NewReferralHandler(svc *service.ReferralService) *ReferralHandler {
	return &ReferralHandler{svc: svc}
}

// Summary handles GET /me/referral.
func (h *ReferralHandler) Summary(c *gin.Context) {
	s, err := h.svc.Summary(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// Earnings handles GET /me/referral/payouts: the user's commission ledger.
func (h *ReferralHandler) Earnings(c *gin.Context) {
	limit, offset := parseLimitOffset(c)
	list, total, err := h.svc.ListLedger(c.Request.Context(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": total})
}

// Referrals handles GET /me/referrals.
func (h *ReferralHandler) Referrals(c *gin.Context) {
	limit, offset := parseLimitOffset(c)
	users, total, err := h.svc.ListReferred(c.Request.Context(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]gin.H, 0, len(users))
	for _, u := range users {
		out = append(out, gin.H{
			"id":         u.ID,
			"name":       u.DisplayName(),
			"created_at": u.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "total": total})
}

func parseLimitOffset(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
