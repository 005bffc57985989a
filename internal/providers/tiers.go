package providers

import (
	"fmt"
	"slices"

	"github.com/leefowlercu/flapboard/internal/config"
)

// Tier is a model capability class. Generators declare a tier instead of a
// concrete model so providers can be swapped without touching generator code.
type Tier string

const (
	TierLight  Tier = "light"
	TierMedium Tier = "medium"
	TierHeavy  Tier = "heavy"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t == TierLight || t == TierMedium || t == TierHeavy
}

// Selection is a resolved provider/model pair.
type Selection struct {
	Provider string
	Model    string
	Tier     Tier
}

// TierSelector resolves capability tiers to concrete models. It is built
// once from configuration and immutable afterward.
type TierSelector struct {
	preferred string
	available []string
	tables    map[string]config.TierModels
}

// NewTierSelector builds a selector from the providers configuration.
func NewTierSelector(cfg config.ProvidersConfig) (*TierSelector, error) {
	if len(cfg.Available) == 0 {
		return nil, fmt.Errorf("no providers available")
	}
	for _, name := range cfg.Available {
		table, ok := cfg.Tiers[name]
		if !ok {
			return nil, fmt.Errorf("provider %q has no tier table", name)
		}
		if table.Light == "" || table.Medium == "" || table.Heavy == "" {
			return nil, fmt.Errorf("provider %q tier table is incomplete", name)
		}
	}

	available := make([]string, len(cfg.Available))
	copy(available, cfg.Available)

	// A preferred provider outside the available list falls back to the
	// first available one, so the selector stands on its own even when
	// config validation was skipped.
	preferred := cfg.Preferred
	if !slices.Contains(available, preferred) {
		preferred = available[0]
	}
	tables := make(map[string]config.TierModels, len(cfg.Tiers))
	for name, table := range cfg.Tiers {
		tables[name] = table
	}

	return &TierSelector{
		preferred: preferred,
		available: available,
		tables:    tables,
	}, nil
}

// Select resolves a tier to the preferred provider's model for that tier.
// Unknown tiers resolve as medium.
func (s *TierSelector) Select(tier Tier) Selection {
	if !tier.Valid() {
		tier = TierMedium
	}
	return Selection{
		Provider: s.preferred,
		Model:    s.modelFor(s.preferred, tier),
		Tier:     tier,
	}
}

// Alternate returns a same-tier selection on a different available provider,
// or nil when no alternate exists. The returned provider is never equal to
// current.Provider.
func (s *TierSelector) Alternate(current Selection) *Selection {
	tier := current.Tier
	if !tier.Valid() {
		tier = s.TierOf(current.Provider, current.Model)
	}
	for _, name := range s.available {
		if name == current.Provider {
			continue
		}
		return &Selection{
			Provider: name,
			Model:    s.modelFor(name, tier),
			Tier:     tier,
		}
	}
	return nil
}

// TierOf reverse-maps a provider/model pair to its tier. Models not present
// in the table default to medium.
func (s *TierSelector) TierOf(provider, model string) Tier {
	table, ok := s.tables[provider]
	if !ok {
		return TierMedium
	}
	switch model {
	case table.Light:
		return TierLight
	case table.Heavy:
		return TierHeavy
	default:
		return TierMedium
	}
}

// Preferred returns the preferred provider name.
func (s *TierSelector) Preferred() string {
	return s.preferred
}

// Available returns the available provider names in fallback order.
func (s *TierSelector) Available() []string {
	out := make([]string, len(s.available))
	copy(out, s.available)
	return out
}

func (s *TierSelector) modelFor(provider string, tier Tier) string {
	table := s.tables[provider]
	switch tier {
	case TierLight:
		return table.Light
	case TierHeavy:
		return table.Heavy
	default:
		return table.Medium
	}
}
