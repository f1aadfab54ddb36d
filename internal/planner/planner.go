// Package planner builds web search queries for a target location.
//
// Unlike a general-purpose research assistant, ordinance search queries are
// fixed templates rather than LLM-authored: the same handful of phrasings
// ("zoning ordinance", "wind energy ordinance", ...) are combined with the
// location's full name for every county or parish. This package keeps the
// teacher's Planner interface shape but has no cache and no LLM branch.
package planner

import (
	"context"
	"fmt"

	"github.com/NREL/elm-sub000/internal/location"
)

// Plan is the set of search queries to issue for one location.
type Plan struct {
	Queries []string
}

// Planner produces search queries for a Location.
type Planner interface {
	Plan(ctx context.Context, loc location.County) (Plan, error)
}

// queryTemplates are combined with a location's full name. "%s" is replaced
// with location.County.FullName().
var queryTemplates = []string{
	"%s zoning ordinance",
	"%s wind energy ordinance",
	"%s solar energy ordinance setback",
	"%s unified development code renewable energy",
	"%s code of ordinances utility scale",
}

// TemplatePlanner is the default, deterministic Planner.
type TemplatePlanner struct {
	// ExtraTemplates, if set, are appended after queryTemplates.
	ExtraTemplates []string
}

func (p *TemplatePlanner) Plan(_ context.Context, loc location.County) (Plan, error) {
	full := loc.FullName()
	templates := queryTemplates
	if len(p.ExtraTemplates) > 0 {
		templates = append(append([]string{}, queryTemplates...), p.ExtraTemplates...)
	}
	queries := make([]string, 0, len(templates))
	seen := map[string]struct{}{}
	for _, t := range templates {
		q := fmt.Sprintf(t, full)
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		queries = append(queries, q)
	}
	return Plan{Queries: queries}, nil
}
