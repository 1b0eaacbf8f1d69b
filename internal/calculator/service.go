package calculator

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
)

type Statistics struct {
	Total      int            `json:"total"`
	Operations map[string]int `json:"operations"`
}

type Service struct {
	repository Repository
	log        *zap.Logger
	now        func() time.Time
}

func NewService(repo Repository, log *zap.Logger) *Service {
	return &Service{
		repository: repo,
		log:        log,
		now:        time.Now,
	}
}

// Calculate evaluates and records one operation for the user.
func (s *Service) Calculate(ctx context.Context, userID string, a, b float64, operation string) (*Calculation, error) {
	op, err := ParseOperation(operation)
	if err != nil {
		return nil, err
	}
	result, err := op.Apply(a, b)
	if err != nil {
		return nil, err
	}
	if math.IsInf(result, 0) || math.IsNaN(result) {
		return nil, ErrInvalidOperation
	}

	calc := &Calculation{
		UserID:       userID,
		Number1:      a,
		Number2:      b,
		Operation:    op,
		Result:       result,
		CalculatedAt: s.now().UTC(),
	}
	if err := s.repository.Create(ctx, calc); err != nil {
		return nil, err
	}
	s.log.Debug("calculation recorded", zap.String("user_id", userID), zap.Uint64("id", calc.ID))
	return calc, nil
}

// History returns the user's calculations newest first with per-operation
// counts.
func (s *Service) History(ctx context.Context, userID string) ([]Calculation, Statistics, error) {
	calcs, err := s.repository.ListByUser(ctx, userID)
	if err != nil {
		return nil, Statistics{}, err
	}

	stats := Statistics{Total: len(calcs), Operations: map[string]int{}}
	for _, c := range calcs {
		stats.Operations[string(c.Operation)]++
	}
	return calcs, stats, nil
}
