package calculator

import (
	"errors"
	"net/http"
	"time"

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

type calculateRequest struct {
	Num1      *float64 `json:"num1" form:"num1"`
	Num2      *float64 `json:"num2" form:"num2"`
	Operation string   `json:"operation" form:"operation"`
}

type calculationResponse struct {
	ID         uint64  `json:"id"`
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
	Timestamp  string  `json:"timestamp"`
}

func (h *Handler) Calculate(c *gin.Context) {
	var req calculateRequest
	if err := c.ShouldBind(&req); err != nil || req.Num1 == nil || req.Num2 == nil {
		api.Error(c, http.StatusBadRequest, "Invalid number format")
		return
	}
	if req.Operation == "" {
		req.Operation = string(Add)
	}

	userID, _ := auth.UserID(c)
	calc, err := h.service.Calculate(c.Request.Context(), userID, *req.Num1, *req.Num2, req.Operation)
	switch {
	case errors.Is(err, ErrDivideByZero), errors.Is(err, ErrInvalidOperation):
		api.Error(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, ErrUnknownUser):
		api.Error(c, http.StatusUnauthorized, err.Error())
		return
	case err != nil:
		h.log.Error("calculation failed", zap.String("user_id", userID), zap.Error(err))
		api.Error(c, http.StatusInternalServerError, "Calculation failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result":         calc.Result,
		"expression":     calc.Expression(),
		"calculation_id": calc.ID,
		"timestamp":      calc.CalculatedAt.Format(time.RFC3339),
	})
}

func (h *Handler) History(c *gin.Context) {
	userID, _ := auth.UserID(c)
	calcs, stats, err := h.service.History(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("failed to load history", zap.String("user_id", userID), zap.Error(err))
		api.Error(c, http.StatusInternalServerError, "internal error, try again")
		return
	}

	items := make([]calculationResponse, 0, len(calcs))
	for i := range calcs {
		items = append(items, calculationResponse{
			ID:         calcs[i].ID,
			Expression: calcs[i].Expression(),
			Result:     calcs[i].Result,
			Timestamp:  calcs[i].CalculatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"calculations": items,
		"statistics":   stats,
	})
}
