package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/dispatch-engine/internal/domain/repository"
	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
	"github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"
)

// Table тарифная сетка: база и цена километра по уровню, надбавка по типу услуги.
type Table struct {
	Base             map[valueobject.Tier]decimal.Decimal
	PerKm            map[valueobject.Tier]decimal.Decimal
	ServiceSurcharge map[valueobject.ServiceType]decimal.Decimal
	UrgentMultiplier decimal.Decimal
	Minimum          decimal.Decimal
}

// Overrides значения из файла политики, суммы строками.
type Overrides struct {
	Base             map[string]string `yaml:"base"`
	PerKm            map[string]string `yaml:"per_km"`
	ServiceSurcharge map[string]string `yaml:"service_surcharge"`
	UrgentMultiplier string            `yaml:"urgent_multiplier"`
	Minimum          string            `yaml:"minimum"`
}

func DefaultTable() Table {
	return Table{
		Base: map[valueobject.Tier]decimal.Decimal{
			valueobject.TierManual:       decimal.NewFromInt(40),
			valueobject.TierEquipped:     decimal.NewFromInt(75),
			valueobject.TierProfessional: decimal.NewFromInt(120),
		},
		PerKm: map[valueobject.Tier]decimal.Decimal{
			valueobject.TierManual:       decimal.RequireFromString("1.5"),
			valueobject.TierEquipped:     decimal.RequireFromString("2.5"),
			valueobject.TierProfessional: decimal.NewFromInt(3),
		},
		ServiceSurcharge: map[valueobject.ServiceType]decimal.Decimal{
			valueobject.ServiceTowing:  decimal.NewFromInt(35),
			valueobject.ServiceHauling: decimal.NewFromInt(20),
		},
		UrgentMultiplier: decimal.RequireFromString("1.5"),
		Minimum:          decimal.NewFromInt(25),
	}
}

// WithOverrides накладывает значения из файла политики поверх таблицы.
func (t Table) WithOverrides(o Overrides) (Table, error) {
	out := Table{
		Base:             copyTiers(t.Base),
		PerKm:            copyTiers(t.PerKm),
		ServiceSurcharge: make(map[valueobject.ServiceType]decimal.Decimal, len(t.ServiceSurcharge)),
		UrgentMultiplier: t.UrgentMultiplier,
		Minimum:          t.Minimum,
	}
	for k, v := range t.ServiceSurcharge {
		out.ServiceSurcharge[k] = v
	}

	for raw, value := range o.Base {
		tier, amount, err := parseTierValue(raw, value)
		if err != nil {
			return Table{}, err
		}
		out.Base[tier] = amount
	}
	for raw, value := range o.PerKm {
		tier, amount, err := parseTierValue(raw, value)
		if err != nil {
			return Table{}, err
		}
		out.PerKm[tier] = amount
	}
	for raw, value := range o.ServiceSurcharge {
		st, err := valueobject.NewServiceType(raw)
		if err != nil {
			return Table{}, err
		}
		amount, err := parseDecimal(value)
		if err != nil {
			return Table{}, err
		}
		out.ServiceSurcharge[st] = amount
	}
	if o.UrgentMultiplier != "" {
		m, err := parseDecimal(o.UrgentMultiplier)
		if err != nil {
			return Table{}, err
		}
		out.UrgentMultiplier = m
	}
	if o.Minimum != "" {
		m, err := parseDecimal(o.Minimum)
		if err != nil {
			return Table{}, err
		}
		out.Minimum = m
	}
	return out, nil
}

// TableCalculator считает цену по тарифной сетке.
type TableCalculator struct {
	table Table
}

func NewTableCalculator(table Table) *TableCalculator {
	return &TableCalculator{table: table}
}

var _ repository.PricingCalculator = (*TableCalculator)(nil)

func (c *TableCalculator) Price(in repository.PriceInput) (repository.Price, error) {
	base, ok := c.table.Base[in.Tier]
	if !ok {
		return repository.Price{}, apperror.Newf(apperror.ErrCodeValidation, "нет тарифа для уровня %s", in.Tier)
	}
	if in.DistanceKm < 0 {
		return repository.Price{}, apperror.New(apperror.ErrCodeValidation, "расстояние не может быть отрицательным")
	}

	distance := decimal.NewFromFloat(in.DistanceKm).Round(2)
	distanceCost := c.table.PerKm[in.Tier].Mul(distance).Round(2)
	surcharge := c.table.ServiceSurcharge[in.ServiceType]

	amount := base.Add(distanceCost).Add(surcharge)
	multiplier := decimal.NewFromInt(1)
	if in.Urgent {
		multiplier = c.table.UrgentMultiplier
		amount = amount.Mul(multiplier)
	}
	if amount.LessThan(c.table.Minimum) {
		amount = c.table.Minimum
	}
	amount = amount.Round(2)

	return repository.Price{
		Amount: amount,
		Breakdown: valueobject.Payload{
			"base":             base.StringFixed(2),
			"distanceKm":       distance.String(),
			"distanceCost":     distanceCost.StringFixed(2),
			"serviceSurcharge": surcharge.StringFixed(2),
			"urgentMultiplier": multiplier.String(),
			"total":            amount.StringFixed(2),
		},
	}, nil
}

func copyTiers(in map[valueobject.Tier]decimal.Decimal) map[valueobject.Tier]decimal.Decimal {
	out := make(map[valueobject.Tier]decimal.Decimal, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func parseTierValue(rawTier, rawValue string) (valueobject.Tier, decimal.Decimal, error) {
	tier, err := valueobject.NewTier(rawTier)
	if err != nil {
		return "", decimal.Zero, err
	}
	amount, err := parseDecimal(rawValue)
	if err != nil {
		return "", decimal.Zero, err
	}
	return tier, amount, nil
}

func parseDecimal(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, apperror.Wrap(err, apperror.ErrCodeValidation, "некорректное значение в тарифной сетке")
	}
	if d.IsNegative() {
		return decimal.Zero, apperror.New(apperror.ErrCodeValidation, "значения тарифной сетки не могут быть отрицательными")
	}
	return d, nil
}
