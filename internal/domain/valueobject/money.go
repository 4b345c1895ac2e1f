package valueobject

import (
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"
)

// NewAmount разбирает сумму предложения; ноль и отрицательные значения запрещены.
func NewAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.ErrCodeValidation, "некорректная сумма")
	}
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount.Round(2), nil
}

func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperror.New(apperror.ErrCodeValidation, "сумма должна быть положительной")
	}
	return nil
}

// Payload непрозрачная структура (разбивка цены, метаданные событий).
type Payload map[string]any

func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
