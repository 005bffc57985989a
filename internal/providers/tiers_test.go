package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leefowlercu/flapboard/internal/config"
)

func testProvidersConfig() config.ProvidersConfig {
	return config.ProvidersConfig{
		Preferred: "anthropic",
		Available: []string{"anthropic", "openai", "gemini"},
		Tiers: map[string]config.TierModels{
			"anthropic": {Light: "claude-haiku-4-5", Medium: "claude-sonnet-4-5", Heavy: "claude-opus-4-5"},
			"openai":    {Light: "gpt-5.2-mini", Medium: "gpt-5.2", Heavy: "gpt-5.2-pro"},
			"gemini":    {Light: "gemini-3-flash", Medium: "gemini-3-pro", Heavy: "gemini-3-ultra-preview"},
		},
	}
}

func TestTierSelector_Select(t *testing.T) {
	s, err := NewTierSelector(testProvidersConfig())
	require.NoError(t, err)

	tests := []struct {
		tier  Tier
		model string
	}{
		{TierLight, "claude-haiku-4-5"},
		{TierMedium, "claude-sonnet-4-5"},
		{TierHeavy, "claude-opus-4-5"},
		{Tier("bogus"), "claude-sonnet-4-5"},
	}

	for _, tt := range tests {
		sel := s.Select(tt.tier)
		assert.Equal(t, "anthropic", sel.Provider)
		assert.Equal(t, tt.model, sel.Model)
	}
}

func TestTierSelector_UnavailablePreferredFallsBack(t *testing.T) {
	cfg := testProvidersConfig()
	cfg.Preferred = "anthropic"
	cfg.Available = []string{"openai", "gemini"}
	delete(cfg.Tiers, "anthropic")

	s, err := NewTierSelector(cfg)
	require.NoError(t, err)

	sel := s.Select(TierMedium)
	assert.Equal(t, "openai", sel.Provider)
	assert.Equal(t, "gpt-5.2", sel.Model)
	assert.Equal(t, "openai", s.Preferred())
}

func TestTierSelector_AlternateNeverReturnsCurrentProvider(t *testing.T) {
	s, err := NewTierSelector(testProvidersConfig())
	require.NoError(t, err)

	for _, provider := range s.Available() {
		for _, tier := range []Tier{TierLight, TierMedium, TierHeavy} {
			current := Selection{Provider: provider, Tier: tier}
			alt := s.Alternate(current)
			require.NotNil(t, alt, "provider %s tier %s", provider, tier)
			assert.NotEqual(t, provider, alt.Provider)
			assert.Equal(t, tier, alt.Tier)
		}
	}
}

func TestTierSelector_AlternatePreservesTier(t *testing.T) {
	s, err := NewTierSelector(testProvidersConfig())
	require.NoError(t, err)

	alt := s.Alternate(s.Select(TierHeavy))
	require.NotNil(t, alt)
	assert.Equal(t, "openai", alt.Provider)
	assert.Equal(t, "gpt-5.2-pro", alt.Model)
}

func TestTierSelector_NoAlternateWithSingleProvider(t *testing.T) {
	cfg := testProvidersConfig()
	cfg.Available = []string{"anthropic"}
	s, err := NewTierSelector(cfg)
	require.NoError(t, err)

	assert.Nil(t, s.Alternate(s.Select(TierMedium)))
}

func TestTierSelector_TierOf(t *testing.T) {
	s, err := NewTierSelector(testProvidersConfig())
	require.NoError(t, err)

	assert.Equal(t, TierLight, s.TierOf("openai", "gpt-5.2-mini"))
	assert.Equal(t, TierHeavy, s.TierOf("gemini", "gemini-3-ultra-preview"))
	assert.Equal(t, TierMedium, s.TierOf("anthropic", "unknown-model"))
	assert.Equal(t, TierMedium, s.TierOf("unknown-provider", "gpt-5.2"))
}

func TestNewTierSelector_RejectsIncompleteTable(t *testing.T) {
	cfg := testProvidersConfig()
	table := cfg.Tiers["openai"]
	table.Heavy = ""
	cfg.Tiers["openai"] = table

	_, err := NewTierSelector(cfg)
	assert.Error(t, err)
}

func TestNewTierSelector_RejectsMissingTable(t *testing.T) {
	cfg := testProvidersConfig()
	delete(cfg.Tiers, "gemini")

	_, err := NewTierSelector(cfg)
	assert.Error(t, err)
}
