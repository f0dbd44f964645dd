// Package resolver implements the auto-resolver: given a list of slugs
// and a flat string context, it builds a dependency graph from each
// definition's declared response_fields and query_params, so the
// caller never has to hand-author a depends_on list.
package resolver

import (
	"fmt"

	"github.com/sdmg-platform/gateway/internal/domain"
)

// Edge records where an injected parameter came from, for the
// orchestrator's injection pass.
type Edge struct {
	SourceSlug string `json:"sourceSlug"`
	Source     string `json:"source"` // path into the source response
	Target     string `json:"target"` // parameter name on the dependent call
}

// Call is one planned invocation with its resolved static params.
type Call struct {
	Slug   string            `json:"slug"`
	Params map[string]string `json:"params"`
}

// Layer is one batch of slugs the orchestrator can execute concurrently.
type Layer struct {
	Layer int      `json:"layer"`
	Slugs []string `json:"slugs"`
}

// Plan is the full auto-resolver output.
type Plan struct {
	Calls            []Call                          `json:"calls"`
	Layers           []Layer                         `json:"layers"`
	DependencyEdges  map[string][]Edge               `json:"dependencyEdges"` // keyed by dependent slug
	Warnings         []string                        `json:"warnings"`
	UnresolvedParams []UnresolvedParam                `json:"unresolvedParams"`
	APIDetails       map[string]*domain.ApiDefinition `json:"apiDetails"`
}

type UnresolvedParam struct {
	Slug      string `json:"slug"`
	ParamName string `json:"paramName"`
}

type Overrides map[string]map[string]OverrideSource

type OverrideSource struct {
	SourceSlug string `json:"sourceSlug"`
	SourcePath string `json:"sourcePath"`
}

// provider is one candidate source of a leaf value, keyed into the
// provider index built over every fetched definition.
type provider struct {
	slug string
	path string
}

// Resolve builds a dependency plan from the given definitions,
// matching declared response fields to query params across slugs.
func Resolve(defs []*domain.ApiDefinition, slugs []string, context map[string]string, overrides Overrides) *Plan {
	plan := &Plan{
		DependencyEdges: make(map[string][]Edge),
		APIDetails:      make(map[string]*domain.ApiDefinition),
	}

	byFetchedOrder := make([]*domain.ApiDefinition, 0, len(defs))
	bySlug := make(map[string]*domain.ApiDefinition, len(defs))
	for _, d := range defs {
		bySlug[d.Slug] = d
		byFetchedOrder = append(byFetchedOrder, d)
		plan.APIDetails[d.Slug] = d
	}
	for _, s := range slugs {
		if _, ok := bySlug[s]; !ok {
			plan.Warnings = append(plan.Warnings, fmt.Sprintf("API definition not found: %s", s))
		}
	}

	// Step 2: provider index, leaf_name -> [{slug, path}], aggregated in
	// fetch order (GetBySlugs already returns defs ordered by slug).
	providers := make(map[string][]provider)
	for _, d := range byFetchedOrder {
		for _, rf := range d.ResponseFields {
			providers[rf.LeafName] = append(providers[rf.LeafName], provider{slug: d.Slug, path: rf.Path})
		}
	}

	// Step 3: per-slug param resolution.
	params := make(map[string]map[string]string)
	edgeSet := make(map[string][]Edge)
	for _, s := range slugs {
		d, ok := bySlug[s]
		if !ok {
			continue
		}
		params[s] = make(map[string]string)
		for _, qp := range d.QueryParams {
			if ov, ok := overrides[s][qp.Name]; ok {
				edgeSet[s] = append(edgeSet[s], Edge{SourceSlug: ov.SourceSlug, Source: ov.SourcePath, Target: qp.Name})
				continue
			}
			if v, ok := context[qp.Name]; ok {
				params[s][qp.Name] = v
				continue
			}
			candidates := candidatesExcluding(providers[qp.Name], s)
			if len(candidates) > 0 {
				chosen := candidates[0]
				if len(candidates) > 1 {
					plan.Warnings = append(plan.Warnings, ambiguityWarning(qp.Name, candidates, chosen))
				}
				edgeSet[s] = append(edgeSet[s], Edge{SourceSlug: chosen.slug, Source: chosen.path, Target: qp.Name})
				continue
			}
			if qp.Required {
				plan.UnresolvedParams = append(plan.UnresolvedParams, UnresolvedParam{Slug: s, ParamName: qp.Name})
			}
		}
	}
	plan.DependencyEdges = edgeSet

	// Step 4: Kahn's topological sort over the subset of slugs that have
	// a definition, using edgeSet as the dependency relation (edge
	// SourceSlug -> s means s depends on SourceSlug).
	present := make([]string, 0, len(slugs))
	for _, s := range slugs {
		if _, ok := bySlug[s]; ok {
			present = append(present, s)
		}
	}
	plan.Layers = topoLayers(present, edgeSet)

	for _, s := range present {
		plan.Calls = append(plan.Calls, Call{Slug: s, Params: params[s]})
	}

	return plan
}

func candidatesExcluding(all []provider, exclude string) []provider {
	var out []provider
	for _, c := range all {
		if c.slug != exclude {
			out = append(out, c)
		}
	}
	return out
}

func ambiguityWarning(paramName string, candidates []provider, chosen provider) string {
	slugs := make([]string, 0, len(candidates))
	for _, c := range candidates {
		slugs = append(slugs, c.slug)
	}
	return fmt.Sprintf("ambiguous provider for %q: candidates %v, chose %q", paramName, slugs, chosen.slug)
}

// topoLayers runs Kahn's algorithm: edges[dependent] lists what it
// depends on. Nodes with zero remaining in-degree form a layer; if
// nodes remain but none has zero in-degree, the remainder is a circular
// dependency and is returned unplaced as a trailing layer with index -1.
func topoLayers(slugs []string, edges map[string][]Edge) []Layer {
	inDegree := make(map[string]int, len(slugs))
	dependents := make(map[string][]string) // source -> [dependents]
	slugSet := make(map[string]struct{}, len(slugs))
	for _, s := range slugs {
		slugSet[s] = struct{}{}
		inDegree[s] = 0
	}
	for s, es := range edges {
		if _, ok := slugSet[s]; !ok {
			continue
		}
		seen := make(map[string]struct{})
		for _, e := range es {
			if _, ok := slugSet[e.SourceSlug]; !ok {
				continue
			}
			if e.SourceSlug == s {
				continue
			}
			if _, dup := seen[e.SourceSlug]; dup {
				continue
			}
			seen[e.SourceSlug] = struct{}{}
			inDegree[s]++
			dependents[e.SourceSlug] = append(dependents[e.SourceSlug], s)
		}
	}

	remaining := make(map[string]struct{}, len(slugs))
	for _, s := range slugs {
		remaining[s] = struct{}{}
	}

	var layers []Layer
	layerIdx := 0
	for len(remaining) > 0 {
		var zero []string
		for _, s := range slugs {
			if _, ok := remaining[s]; !ok {
				continue
			}
			if inDegree[s] == 0 {
				zero = append(zero, s)
			}
		}
		if len(zero) == 0 {
			var left []string
			for _, s := range slugs {
				if _, ok := remaining[s]; ok {
					left = append(left, s)
				}
			}
			layers = append(layers, Layer{Layer: -1, Slugs: left})
			break
		}
		layers = append(layers, Layer{Layer: layerIdx, Slugs: zero})
		for _, s := range zero {
			delete(remaining, s)
			for _, dep := range dependents[s] {
				inDegree[dep]--
			}
		}
		layerIdx++
	}
	return layers
}
