// Package router handles model selection for agent turns.
package router

import (
	"log/slog"

	"github.com/nyhage/bodil/internal/catalog"
)

// complexCategories force the capable model: these operations mutate
// inventory, touch money, or need multi-step planning.
var complexCategories = map[string]bool{
	catalog.CategoryListing:    true,
	catalog.CategoryOrder:      true,
	catalog.CategoryAccounting: true,
	catalog.CategoryAnalytics:  true,
}

// minThinkingBudget matches the API's lower bound for extended
// thinking; a requested budget at or above it forces the capable model.
const minThinkingBudget = 1024

// Request carries the signals a routing decision needs.
type Request struct {
	Categories     catalog.CategorySet
	HasImages      bool
	ThinkingBudget int
}

// Router selects between a capable and an economical model variant.
// The zero Economical string means no downgrade is configured and every
// turn runs on the capable model.
type Router struct {
	Capable    string
	Economical string
	logger     *slog.Logger
}

// New creates a router. Capable must be non-empty.
func New(capable, economical string, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{Capable: capable, Economical: economical, logger: logger}
}

// Select returns the model for a turn. Pure and total: it never fails
// and the same inputs always yield the same model. The decision is made
// once per inbound message and holds through the whole tool loop.
func (r *Router) Select(req Request) string {
	model, reason := r.decide(req)
	r.logger.Debug("model selected",
		"model", model,
		"reason", reason,
		"categories", req.Categories.Sorted(),
		"has_images", req.HasImages,
		"thinking_budget", req.ThinkingBudget,
	)
	return model
}

func (r *Router) decide(req Request) (string, string) {
	if r.Economical == "" {
		return r.Capable, "no economical model configured"
	}
	for cat := range req.Categories {
		if complexCategories[cat] {
			return r.Capable, "complex category active: " + cat
		}
	}
	if req.HasImages {
		return r.Capable, "images present"
	}
	if req.ThinkingBudget >= minThinkingBudget {
		return r.Capable, "extended thinking requested"
	}
	return r.Economical, "simple turn"
}
