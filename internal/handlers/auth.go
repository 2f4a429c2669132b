package handlers

import (
	"net/http"

	"storefront_back_end/internal/shop"

	"github.com/gin-gonic/gin"
)

// POST /register
func (h *Handler) Register(c *gin.Context) {
	var input struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c)
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	p, err := h.shop.Register(ctx, shop.RegisterRequest{
		Email:    input.Email,
		Username: input.Username,
		Password: input.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"profile": p.Public()})
}

// POST /login
func (h *Handler) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c)
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	p, err := h.shop.Login(ctx, input.Email, input.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.tokens.Generate(p.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur génération token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "profile": p.Public()})
}

// POST /recover-password
func (h *Handler) RecoverPassword(c *gin.Context) {
	var input struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email requis"})
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.shop.RecoverPassword(ctx, input.Email); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Un mot de passe temporaire a été envoyé par e-mail"})
}
