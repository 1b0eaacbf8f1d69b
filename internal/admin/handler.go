package admin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/elskow/amsterdam-discovery/internal/api"
	"github.com/elskow/amsterdam-discovery/internal/auth"
)

type Handler struct {
	service *Service
	log     *zap.Logger
}

func NewHandler(service *Service, log *zap.Logger) *Handler {
	return &Handler{service: service, log: log}
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"users":       users,
		"total_users": len(users),
	})
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) DeleteUser(c *gin.Context) {
	actorID, _ := auth.UserID(c)
	if err := h.service.DeleteUser(c.Request.Context(), actorID, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}

func (h *Handler) ToggleAdmin(c *gin.Context) {
	actorID, _ := auth.UserID(c)
	user, err := h.service.ToggleAdmin(c.Request.Context(), actorID, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":       user.ID,
		"is_admin": user.IsAdmin,
	})
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		api.Error(c, http.StatusNotFound, "User not found")
	case errors.Is(err, ErrSelfAction):
		api.Error(c, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("admin request failed", zap.String("path", c.FullPath()), zap.Error(err))
		api.Error(c, http.StatusInternalServerError, "internal error, try again")
	}
}
