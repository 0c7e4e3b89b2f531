package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zKaminise/Message-App/internal/models"
	"github.com/zKaminise/Message-App/internal/push"
	"github.com/zKaminise/Message-App/internal/repositories"
)

// UserHandler manages profile and device token endpoints.
type UserHandler struct {
	userRepo   repositories.UserRepository
	tokenCache push.TokenCache
}

// NewUserHandler builds a UserHandler.
func NewUserHandler(userRepo repositories.UserRepository, tokenCache push.TokenCache) *UserHandler {
	return &UserHandler{userRepo: userRepo, tokenCache: tokenCache}
}

// UpdateProfile creates or refreshes the caller's profile.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req struct {
		DisplayName string  `json:"display_name" binding:"required"`
		PhotoURL    *string `json:"photo_url"`
		Bio         string  `json:"bio"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	uid := c.GetString("userID")
	user := models.User{
		UID:         uid,
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
		Bio:         req.Bio,
	}
	if err := h.userRepo.UpsertProfile(c.Request.Context(), user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update profile"})
		return
	}

	c.Status(http.StatusNoContent)
}

// RegisterDeviceToken adds a push token to the caller's profile.
func (h *UserHandler) RegisterDeviceToken(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	uid := c.GetString("userID")
	if err := h.userRepo.AddDeviceToken(c.Request.Context(), uid, req.Token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not register token"})
		return
	}
	h.tokenCache.Invalidate(c.Request.Context(), uid)

	c.Status(http.StatusNoContent)
}

// GetUsers resolves profile documents for a comma-separated id list.
func (h *UserHandler) GetUsers(c *gin.Context) {
	raw := c.Query("ids")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids is required"})
		return
	}

	ids := []string{}
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	users, err := h.userRepo.GetUsersByIDs(c.Request.Context(), ids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load users"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}
