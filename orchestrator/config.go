// Package orchestrator implements the lifecycle management of Tier
// Workers, audio fan-out, cross-tier draft-token routing, and restart on
// failure described in spec.md §4.1.
package orchestrator

import (
	"fmt"
	"sort"

	"github.com/mtste/engine/asr"
	"github.com/mtste/engine/tier"
)

// Config is the §6 START control message: "{ language, modelId, backend,
// dtype, enabledTiers[] }", plus the cascade policy spec.md §9 asks to be
// a single configurable setting rather than a hardcoded hop.
type Config struct {
	Language string
	ModelID  string
	Backend  asr.Backend
	Dtype    string
	Quantize string

	// Tiers maps level -> tier configuration for every enabled tier. Use
	// tier.DefaultConfigs() as a starting point.
	Tiers map[int]tier.Config

	// CascadeEnabled[d] reports whether draft tokens may flow into
	// downstream tier d from its adjacent enabled upstream. Defaults to
	// true for every enabled tier when left nil -- spec.md §9: "the
	// Orchestrator MAY forward between every adjacent enabled pair".
	CascadeEnabled map[int]bool

	// RestartBudget is the number of automatic restarts granted to a
	// worker that crashes, per spec.md §4.1/§7 ("one automatic restart,
	// then propagates a fault"). Defaults to 1.
	RestartBudget int
}

// sortedLevels returns the enabled tier levels in ascending order, the
// cascade order 0 -> 1 -> 2 -> 3 -> 4 (§4.4).
func (c Config) sortedLevels() []int {
	levels := make([]int, 0, len(c.Tiers))
	for lvl := range c.Tiers {
		levels = append(levels, lvl)
	}
	sort.Ints(levels)
	return levels
}

// cascadeAllowed reports whether draft tokens may flow into downstream
// level d.
func (c Config) cascadeAllowed(d int) bool {
	if c.CascadeEnabled == nil {
		return true
	}
	allowed, ok := c.CascadeEnabled[d]
	if !ok {
		return true
	}
	return allowed
}

// restartBudget returns the configured restart budget, defaulting to 1.
func (c Config) restartBudget() int {
	if c.RestartBudget <= 0 {
		return 1
	}
	return c.RestartBudget
}

// Validate rejects configuration errors before any tier is instantiated
// (§7 taxonomy item 1: "reject at START, do not partially initialize").
func (c Config) Validate() error {
	if len(c.Tiers) == 0 {
		return fmt.Errorf("orchestrator: at least one tier must be enabled")
	}
	for lvl, cfg := range c.Tiers {
		if cfg.Level != lvl {
			return fmt.Errorf("orchestrator: tier map key %d does not match Config.Level %d", lvl, cfg.Level)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("orchestrator: %w", err)
		}
	}
	if c.ModelID == "" {
		return fmt.Errorf("orchestrator: modelId is required")
	}
	return nil
}
