package roster

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
)

type fileOperator struct {
	ID                 string    `yaml:"id"`
	Name               string    `yaml:"name"`
	Tier               string    `yaml:"tier"`
	Home               []float64 `yaml:"home"`
	Current            []float64 `yaml:"current"`
	Region             string    `yaml:"region"`
	Services           []string  `yaml:"services"`
	Rating             float64   `yaml:"rating"`
	AvgResponseSeconds float64   `yaml:"avg_response_seconds"`
	Online             bool      `yaml:"online"`
}

// LoadFile читает исполнителей из YAML (ROSTER_FILE):
//
//	operators:
//	  - id: op-1
//	    tier: equipped
//	    home: [59.93, 30.31]
//	    services: [plowing, towing]
//	    online: true
func LoadFile(path string) ([]*entity.Operator, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("roster: не удалось прочитать %s: %w", path, err)
	}
	return ParseFile(raw)
}

func ParseFile(raw []byte) ([]*entity.Operator, error) {
	var doc struct {
		Operators []fileOperator `yaml:"operators"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("roster: некорректный YAML: %w", err)
	}

	out := make([]*entity.Operator, 0, len(doc.Operators))
	seen := map[string]struct{}{}
	for i, fo := range doc.Operators {
		op, err := fo.toEntity()
		if err != nil {
			return nil, fmt.Errorf("roster: исполнитель #%d: %w", i+1, err)
		}
		if _, dup := seen[op.ID]; dup {
			return nil, fmt.Errorf("roster: повторный id %q", op.ID)
		}
		seen[op.ID] = struct{}{}
		out = append(out, op)
	}
	return out, nil
}

func (fo fileOperator) toEntity() (*entity.Operator, error) {
	if fo.ID == "" {
		return nil, fmt.Errorf("не задан id")
	}
	tier, err := valueobject.NewTier(fo.Tier)
	if err != nil {
		return nil, err
	}
	services, err := valueobject.NewServiceTypes(fo.Services)
	if err != nil {
		return nil, err
	}
	home, err := parsePoint(fo.Home)
	if err != nil {
		return nil, fmt.Errorf("home: %w", err)
	}

	op := &entity.Operator{
		ID:                 fo.ID,
		Name:               fo.Name,
		Tier:               tier,
		HomeLocation:       home,
		Region:             fo.Region,
		Services:           services,
		Rating:             fo.Rating,
		AvgResponseSeconds: fo.AvgResponseSeconds,
		Online:             fo.Online,
	}
	if len(fo.Current) > 0 {
		cur, err := parsePoint(fo.Current)
		if err != nil {
			return nil, fmt.Errorf("current: %w", err)
		}
		op.CurrentLocation = &cur
	}
	return op, nil
}

func parsePoint(v []float64) (valueobject.GeoPoint, error) {
	if len(v) != 2 {
		return valueobject.GeoPoint{}, fmt.Errorf("ожидается [lat, lon]")
	}
	return valueobject.NewGeoPoint(v[0], v[1])
}
