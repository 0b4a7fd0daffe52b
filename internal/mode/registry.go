// Package mode owns the set of running modes. Each mode keeps an
// independent balance, order list and statistics (models.ModeState) so
// P&L can be compared fairly across strategy styles sharing one market
// view (C9).
package mode

import (
	"fmt"

	"github.com/quantshift/btc-perp-engine/internal/models"
)

// Registry holds every configured mode's runtime state, keyed by name.
type Registry struct {
	order []string
	byName map[string]*models.ModeState
}

// NewRegistry builds a Registry from the configured mode list, seeding
// each with its configured starting balance.
func NewRegistry(configs []models.ModeConfig, startingBalance float64) *Registry {
	r := &Registry{byName: make(map[string]*models.ModeState, len(configs))}
	for _, cfg := range configs {
		r.order = append(r.order, cfg.Name)
		r.byName[cfg.Name] = &models.ModeState{
			Config:  cfg,
			Balance: startingBalance,
		}
	}
	return r
}

// Get returns the named mode's state, or an error if no such mode exists.
func (r *Registry) Get(name string) (*models.ModeState, error) {
	m, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown mode %q", name)
	}
	return m, nil
}

// All returns every mode's state in configuration order.
func (r *Registry) All() []*models.ModeState {
	out := make([]*models.ModeState, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Names returns the configured mode names in order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// TotalEquity sums balance plus every open order's unrealized pnl across
// all modes, for reporting.
func (r *Registry) TotalEquity(mark float64) float64 {
	var total float64
	for _, m := range r.All() {
		total += m.Balance
		for _, o := range m.OpenOrders() {
			total += o.PositionValue * o.PriceChangeRatio(mark)
		}
	}
	return total
}
