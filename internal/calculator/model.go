package calculator

import (
	"fmt"
	"strings"
	"time"

	"github.com/elskow/amsterdam-discovery/internal/auth"
)

type Operation string

const (
	Add      Operation = "+"
	Subtract Operation = "-"
	Multiply Operation = "*"
	Divide   Operation = "/"
)

var operationAliases = map[string]Operation{
	"+":        Add,
	"add":      Add,
	"-":        Subtract,
	"subtract": Subtract,
	"*":        Multiply,
	"multiply": Multiply,
	"/":        Divide,
	"divide":   Divide,
}

// ParseOperation accepts the symbol or its English name.
func ParseOperation(s string) (Operation, error) {
	op, ok := operationAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", ErrInvalidOperation
	}
	return op, nil
}

func (o Operation) Apply(a, b float64) (float64, error) {
	switch o {
	case Add:
		return a + b, nil
	case Subtract:
		return a - b, nil
	case Multiply:
		return a * b, nil
	case Divide:
		if b == 0 {
			return 0, ErrDivideByZero
		}
		return a / b, nil
	default:
		return 0, ErrInvalidOperation
	}
}

// Calculation is an append-only record owned by a user; it goes away with
// the user.
type Calculation struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement"`
	UserID       string     `gorm:"size:36;not null;index:idx_calculations_user_time,priority:1"`
	User         *auth.User `gorm:"constraint:OnDelete:CASCADE"`
	Number1      float64    `gorm:"column:number1;not null"`
	Number2      float64    `gorm:"column:number2;not null"`
	Operation    Operation  `gorm:"size:20;not null"`
	Result       float64    `gorm:"not null"`
	CalculatedAt time.Time  `gorm:"not null;index:idx_calculations_user_time,priority:2,sort:desc"`
}

func (Calculation) TableName() string {
	return "calculations"
}

func (c *Calculation) Expression() string {
	return fmt.Sprintf("%g %s %g = %g", c.Number1, c.Operation, c.Number2, c.Result)
}
