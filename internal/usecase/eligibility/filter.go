package eligibility

import (
	"sort"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
)

// Candidate исполнитель, которому видна заявка, и расстояние до неё.
type Candidate struct {
	Operator   *entity.Operator
	DistanceKm float64
}

// Check решает, видна ли заявка исполнителю, и возвращает расстояние до точки отсчёта уровня.
// Ручной уровень меряется от домашней точки, оснащённый от текущей, профессиональный ограничен регионом.
// Заявка без координат не видна никому.
func Check(req *entity.ServiceRequest, op *entity.Operator, policy valueobject.TierPolicy) (bool, float64) {
	if !op.Online || !op.OffersAny(req.ServiceTypes) {
		return false, 0
	}
	target := req.Location.Point
	if target.IsZero() {
		return false, 0
	}

	switch op.Tier {
	case valueobject.TierManual:
		d := op.HomeLocation.DistanceKm(target)
		return d <= policy.ManualRadiusKm, d
	case valueobject.TierEquipped:
		d := op.Position().DistanceKm(target)
		return d <= policy.EquippedRadiusKm, d
	case valueobject.TierProfessional:
		d := op.Position().DistanceKm(target)
		return sameRegion(req.Location.Region, op.Region), d
	}
	return false, 0
}

// Candidates все подходящие исполнители, упорядоченные по id.
func Candidates(req *entity.ServiceRequest, roster []*entity.Operator, policy valueobject.TierPolicy) []Candidate {
	out := make([]Candidate, 0, len(roster))
	for _, op := range roster {
		if ok, d := Check(req, op, policy); ok {
			out = append(out, Candidate{Operator: op, DistanceKm: d})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Operator.ID < out[j].Operator.ID })
	return out
}

// EligibleOperators идентификаторы подходящих исполнителей. Пустой результат не ошибка.
func EligibleOperators(req *entity.ServiceRequest, roster []*entity.Operator, policy valueobject.TierPolicy) []string {
	candidates := Candidates(req, roster, policy)
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.Operator.ID
	}
	return ids
}

func sameRegion(a, b string) bool {
	return a == "" || b == "" || a == b
}
