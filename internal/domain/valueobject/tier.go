package valueobject

import "github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"

type Tier string

const (
	TierManual       Tier = "manual"
	TierEquipped     Tier = "equipped"
	TierProfessional Tier = "professional"
)

func NewTier(tier string) (Tier, error) {
	t := Tier(tier)
	switch t {
	case TierManual, TierEquipped, TierProfessional:
		return t, nil
	}
	return "", apperror.New(apperror.ErrCodeValidation, "некорректный уровень исполнителя")
}

type ServiceType string

const (
	ServicePlowing ServiceType = "plowing"
	ServiceTowing  ServiceType = "towing"
	ServiceHauling ServiceType = "hauling"
	ServiceCourier ServiceType = "courier"
)

func NewServiceType(s string) (ServiceType, error) {
	t := ServiceType(s)
	switch t {
	case ServicePlowing, ServiceTowing, ServiceHauling, ServiceCourier:
		return t, nil
	}
	return "", apperror.Newf(apperror.ErrCodeValidation, "неизвестный тип услуги %q", s)
}

func NewServiceTypes(raw []string) ([]ServiceType, error) {
	if len(raw) == 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "нужно указать хотя бы один тип услуги")
	}
	seen := make(map[ServiceType]struct{}, len(raw))
	result := make([]ServiceType, 0, len(raw))
	for _, s := range raw {
		t, err := NewServiceType(s)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		result = append(result, t)
	}
	return result, nil
}

// TierPolicy радиусы видимости заявок по уровням исполнителей.
type TierPolicy struct {
	ManualRadiusKm   float64 `yaml:"manual_radius_km"`
	EquippedRadiusKm float64 `yaml:"equipped_radius_km"`
}

func DefaultTierPolicy() TierPolicy {
	return TierPolicy{ManualRadiusKm: 5, EquippedRadiusKm: 25}
}
