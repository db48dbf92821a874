package handler

import (
	"errors"
	"io"
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

type PayoutHandler struct {
	svc *service.PayoutService
}

func NewPayoutHandler(svc *service.PayoutService) *PayoutHandler {
	return &PayoutHandler{svc: svc}
}

// Fields are not marked required: missing ones are reported by the service
// with the FIELDS_REQUIRED code.
type CreatePayoutRequest struct {
	CardNumber     string `json:"card_number"`
	CardHolderName string `json:"card_holder_name"`
	BankName       string `json:"bank_name"`
}

type AdminDecisionRequest struct {
	Comment string `json:"comment"`
}

// payoutView is what the requester sees; the card number is masked.
func payoutView(p *models.PayoutRequest) gin.H {
	return gin.H{
		"id":               p.ID,
		"reference":        p.Reference,
		"amount":           p.Amount,
		"status":           p.Status,
		"card_number":      p.MaskedCard(),
		"card_holder_name": p.CardHolderName,
		"bank_name":        p.BankName,
		"requested_at":     p.RequestedAt,
		"processed_at":     p.ProcessedAt,
		"admin_comment":    p.AdminComment,
		"receipt_url":      p.ReceiptURL,
	}
}

// Create handles POST /me/payout-requests.
func (h *PayoutHandler) Create(c *gin.Context) {
	var req CreatePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.svc.CreatePayoutRequest(c.Request.Context(), middleware.GetUserID(c), req.CardNumber, req.CardHolderName, req.BankName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payoutView(p))
}

// ListMine handles GET /me/payout-requests, newest first.
func (h *PayoutHandler) ListMine(c *gin.Context) {
	list, err := h.svc.ListPayoutRequests(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for i := range list {
		out = append(out, payoutView(&list[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

// AdminList handles GET /admin/payout-requests?status=. Admins see full card numbers.
func (h *PayoutHandler) AdminList(c *gin.Context) {
	page, limit := parsePagination(c)
	list, total, err := h.svc.ListAll(c.Request.Context(), c.Query("status"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": total, "page": page, "limit": limit})
}

func (h *PayoutHandler) AdminGet(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	p, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Process handles POST /admin/payout-requests/:id/process.
func (h *PayoutHandler) Process(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	p, err := h.svc.StartProcessing(c.Request.Context(), id, middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Complete handles POST /admin/payout-requests/:id/complete.
func (h *PayoutHandler) Complete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req AdminDecisionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	p, err := h.svc.CompletePayoutRequest(c.Request.Context(), id, middleware.GetUserID(c), req.Comment)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Reject handles POST /admin/payout-requests/:id/reject.
func (h *PayoutHandler) Reject(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req AdminDecisionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	p, err := h.svc.RejectPayoutRequest(c.Request.Context(), id, middleware.GetUserID(c), req.Comment)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// bindOptionalJSON accepts an empty body and rejects malformed JSON with 400.
func bindOptionalJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}
