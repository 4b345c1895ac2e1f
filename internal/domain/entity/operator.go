package entity

import "github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"

// Operator снимок исполнителя из внешнего реестра.
type Operator struct {
	ID                 string
	Name               string
	Tier               valueobject.Tier
	HomeLocation       valueobject.GeoPoint
	CurrentLocation    *valueobject.GeoPoint
	Region             string
	Services           []valueobject.ServiceType
	Rating             float64
	AvgResponseSeconds float64
	Online             bool
}

// Position текущая точка исполнителя, без неё домашняя.
func (o *Operator) Position() valueobject.GeoPoint {
	if o.CurrentLocation != nil {
		return *o.CurrentLocation
	}
	return o.HomeLocation
}

func (o *Operator) OffersAny(types []valueobject.ServiceType) bool {
	for _, want := range types {
		for _, have := range o.Services {
			if want == have {
				return true
			}
		}
	}
	return false
}
