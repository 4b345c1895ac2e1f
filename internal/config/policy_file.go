package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ignatzorin/dispatch-engine/internal/infrastructure/pricing"
)

// PolicyFile YAML с радиусами уровней и тарифной сеткой. Незаданные поля не меняют значения из окружения.
//
//	tiers:
//	  manual_radius_km: 7
//	pricing:
//	  base: {manual: "45"}
//	  urgent_multiplier: "1.8"
type PolicyFile struct {
	Tiers struct {
		ManualRadiusKm   *float64 `yaml:"manual_radius_km"`
		EquippedRadiusKm *float64 `yaml:"equipped_radius_km"`
	} `yaml:"tiers"`
	Pricing pricing.Overrides `yaml:"pricing"`
}

func (c *Config) applyPolicyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: не удалось прочитать POLICY_FILE: %w", err)
	}
	var pf PolicyFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return fmt.Errorf("config: некорректный YAML в POLICY_FILE: %w", err)
	}

	if v := pf.Tiers.ManualRadiusKm; v != nil {
		c.Tiers.ManualRadiusKm = *v
	}
	if v := pf.Tiers.EquippedRadiusKm; v != nil {
		c.Tiers.EquippedRadiusKm = *v
	}
	table, err := c.Pricing.WithOverrides(pf.Pricing)
	if err != nil {
		return fmt.Errorf("config: тарифы в POLICY_FILE: %w", err)
	}
	c.Pricing = table
	return nil
}
