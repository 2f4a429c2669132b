package handlers

import (
	"net/http"

	"storefront_back_end/internal/shop"

	"github.com/gin-gonic/gin"
)

// GET /profile
func (h *Handler) GetProfile(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	p, err := h.shop.GetProfile(ctx, c.GetString("email"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": p.Public()})
}

// PUT /profile
func (h *Handler) UpdateProfile(c *gin.Context) {
	var input struct {
		Username *string `json:"username"`
		Phone    *string `json:"phone"`
		Password *string `json:"password"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c)
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	p, err := h.shop.UpdateProfile(ctx, c.GetString("email"), shop.ProfileUpdate{
		Username: input.Username,
		Phone:    input.Phone,
		Password: input.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": p.Public()})
}

type fileInput struct {
	PaymentIntentID string `json:"paymentIntentId"`
	FileID          string `json:"fileId"`
	FileName        string `json:"fileName"`
}

// POST /update-purchase (authentifié)
func (h *Handler) UpdatePurchase(c *gin.Context) {
	var input fileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c)
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	ref := shop.FileRef{FileID: input.FileID, FileName: input.FileName}
	p, err := h.shop.RecordPurchase(ctx, c.GetString("email"), input.PaymentIntentID, ref)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": p.Public()})
}

// POST /send-file (authentifié) : renvoie un fichier déjà acheté.
func (h *Handler) SendFile(c *gin.Context) {
	var input fileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c)
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.shop.SendFile(ctx, c.GetString("email"), shop.FileRef{FileID: input.FileID, FileName: input.FileName}); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Fichier envoyé"})
}

// GET /files?prefix=
func (h *Handler) ListFiles(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	files, err := h.shop.ListFiles(ctx, c.Query("prefix"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}
