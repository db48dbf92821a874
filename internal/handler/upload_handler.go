package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const maxReceiptSize = 10 << 20

// UploadReceipt handles POST /admin/payout-requests/:id/receipt (multipart "file").
func (h *PayoutHandler) UploadReceipt(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	if file.Size > maxReceiptSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large"})
		return
	}
	if ct := file.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") && ct != "application/pdf" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "receipt must be an image or PDF"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}
	defer f.Close()

	p, err := h.svc.AttachReceipt(c.Request.Context(), id, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": p.ID, "receipt_url": p.ReceiptURL})
}
