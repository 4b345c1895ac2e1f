package dispatch

import (
	"sort"
	"time"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/eligibility"
)

// BuildQueue ранжирует кандидатов: ближе, выше рейтинг, быстрее ответ, затем id.
// Рейтинг и время ответа фиксируются в позициях на момент построения.
func BuildQueue(req *entity.ServiceRequest, candidates []eligibility.Candidate, mode valueobject.DispatchMode, ttl time.Duration, now time.Time) *entity.DispatchRun {
	slots := make([]entity.QueueSlot, len(candidates))
	for i, c := range candidates {
		slots[i] = entity.QueueSlot{
			OperatorID:         c.Operator.ID,
			DistanceKm:         c.DistanceKm,
			Rating:             c.Operator.Rating,
			AvgResponseSeconds: c.Operator.AvgResponseSeconds,
		}
	}
	sort.SliceStable(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		if a.AvgResponseSeconds != b.AvgResponseSeconds {
			return a.AvgResponseSeconds < b.AvgResponseSeconds
		}
		return a.OperatorID < b.OperatorID
	})
	return entity.NewDispatchRun(req.ID, mode, ttl, slots, now)
}
