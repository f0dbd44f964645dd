// Package orchestrator implements the call orchestrator: it runs a
// batch of calls either in parallel with no cross-call data flow, or
// sequentially in topologically-sorted layers with response-field
// injection between them.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sdmg-platform/gateway/internal/domain"
	"github.com/sdmg-platform/gateway/internal/explorer"
	"github.com/sdmg-platform/gateway/internal/pathextract"
	"github.com/sdmg-platform/gateway/internal/resolver"
)

const MaxCallsPerBatch = 20

type Mode string

const (
	ModeParallel   Mode = "parallel"
	ModeSequential Mode = "sequential"
)

// CallInput is one caller-supplied call.
type CallInput struct {
	Slug    string
	Params  map[string]string
	Headers http.Header
	Body    []byte
}

// CallResult is one entry of the Result.results array.
type CallResult struct {
	Slug              string            `json:"slug"`
	Status            string            `json:"status"` // "fulfilled" | "rejected"
	StatusCode        int               `json:"statusCode,omitempty"`
	ResponseHeaders   http.Header       `json:"responseHeaders,omitempty"`
	ResponseBody      any               `json:"responseBody,omitempty"`
	ResponseSizeBytes int64             `json:"responseSizeBytes,omitempty"`
	DurationMs        int64             `json:"durationMs"`
	Error             string            `json:"error,omitempty"`
	Layer             int               `json:"layer"`
	InjectedParams    map[string]string `json:"injectedParams,omitempty"`
}

// Result is the orchestrator's output.
type Result struct {
	TotalDurationMs int64            `json:"totalDurationMs"`
	Mode            Mode             `json:"mode"`
	Layers          []resolver.Layer `json:"layers"`
	Results         []CallResult     `json:"results"`
}

type Orchestrator struct {
	definitions domain.ApiDefinitionRepository
	executor    *explorer.Executor
}

func New(definitions domain.ApiDefinitionRepository, executor *explorer.Executor) *Orchestrator {
	return &Orchestrator{definitions: definitions, executor: executor}
}

// RunParallel issues every call at once and records every outcome
// whether it succeeded or failed; no call's failure affects any other.
func (o *Orchestrator) RunParallel(ctx context.Context, tenantID, connectionID uuid.UUID, calls []CallInput) Result {
	start := time.Now()
	defs, _ := o.fetchDefs(tenantID, slugsOf(calls))

	results := make([]CallResult, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call CallInput) {
			defer wg.Done()
			d, ok := defs[call.Slug]
			if !ok {
				results[i] = CallResult{Slug: call.Slug, Status: "rejected", Error: fmt.Sprintf("API definition not found: %s", call.Slug), Layer: 0}
				return
			}
			results[i] = o.executeOne(ctx, connectionID, d, call, nil, 0)
		}(i, call)
	}
	wg.Wait()

	return Result{TotalDurationMs: elapsedMs(start), Mode: ModeParallel, Results: results}
}

// RunSequential walks calls in topologically-sorted dependency layers,
// injecting fields from prior fulfilled responses into later calls.
func (o *Orchestrator) RunSequential(ctx context.Context, tenantID, connectionID uuid.UUID, calls []CallInput, dynamicDeps map[string][]resolver.Edge) Result {
	start := time.Now()
	slugs := slugsOf(calls)
	callBySlug := make(map[string]CallInput, len(calls))
	for _, c := range calls {
		callBySlug[c.Slug] = c
	}

	defs, _ := o.fetchDefs(tenantID, slugs)

	// any slug with no definition is rejected outright.
	var results []CallResult
	resolvable := make([]string, 0, len(slugs))
	for _, s := range slugs {
		if _, ok := defs[s]; !ok {
			results = append(results, CallResult{Slug: s, Status: "rejected", Error: fmt.Sprintf("API definition not found: %s", s)})
			continue
		}
		resolvable = append(resolvable, s)
	}

	// merge static depends_on with dynamic deps.
	edges := make(map[string][]resolver.Edge, len(resolvable))
	for _, s := range resolvable {
		d := defs[s]
		var merged []resolver.Edge
		for _, dep := range d.DependsOn {
			if len(dep.FieldMappings) == 0 {
				// ordering-only dependency: still an edge for the sort.
				merged = append(merged, resolver.Edge{SourceSlug: dep.APISlug})
			}
			for _, fm := range dep.FieldMappings {
				merged = append(merged, resolver.Edge{SourceSlug: dep.APISlug, Source: fm.Source, Target: fm.Target})
			}
		}
		merged = append(merged, dynamicDeps[s]...)
		edges[s] = merged
	}

	// topological sort; on a cycle, every call is rejected.
	layers := topoLayersFromEdges(resolvable, edges)
	if len(layers) > 0 && layers[len(layers)-1].Layer == -1 {
		for _, s := range resolvable {
			results = append(results, CallResult{Slug: s, Status: "rejected", Error: "circular dependency detected among requested calls"})
		}
		return Result{TotalDurationMs: elapsedMs(start), Mode: ModeSequential, Layers: layers, Results: results}
	}

	// walk layers, injecting from prior fulfilled responses.
	responseContext := make(map[string]any)
	fulfilled := make(map[string]bool)
	for _, layer := range layers {
		type layerOutcome struct {
			idx    int
			result CallResult
		}
		outcomes := make(chan layerOutcome, len(layer.Slugs))
		var wg sync.WaitGroup
		for _, s := range layer.Slugs {
			wg.Add(1)
			go func(s string) {
				defer wg.Done()
				d := defs[s]
				call, ok := callBySlug[s]
				if !ok {
					call = CallInput{Slug: s}
				}
				injected := injectParams(d, edges[s], responseContext, fulfilled)
				res := o.executeOne(ctx, connectionID, d, call, injected, layer.Layer)
				outcomes <- layerOutcome{result: res}
			}(s)
		}
		wg.Wait()
		close(outcomes)
		for outcome := range outcomes {
			results = append(results, outcome.result)
			if outcome.result.Status == "fulfilled" {
				fulfilled[outcome.result.Slug] = true
				responseContext[outcome.result.Slug] = outcome.result.ResponseBody
			}
		}
	}

	return Result{TotalDurationMs: elapsedMs(start), Mode: ModeSequential, Layers: layers, Results: results}
}

// injectParams extracts, for every dep whose source has a fulfilled
// response, each field mapping's source path and sets
// injectedParams[target] if resolved.
func injectParams(d *domain.ApiDefinition, edges []resolver.Edge, responseContext map[string]any, fulfilled map[string]bool) map[string]string {
	injected := make(map[string]string)
	for _, e := range edges {
		if !fulfilled[e.SourceSlug] || e.Target == "" {
			continue
		}
		src, ok := responseContext[e.SourceSlug]
		if !ok {
			continue
		}
		if v, ok := pathextract.ExtractString(src, pathextract.Parse(e.Source)); ok {
			injected[e.Target] = v
		}
	}
	return injected
}

// executeOne runs a single call, applying injected params, caller
// overrides, and response parsing.
func (o *Orchestrator) executeOne(ctx context.Context, connectionID uuid.UUID, d *domain.ApiDefinition, call CallInput, injectedParams map[string]string, layer int) CallResult {
	// caller-supplied params always override injection.
	params := make(map[string]string, len(injectedParams)+len(call.Params))
	for k, v := range injectedParams {
		params[k] = v
	}
	for k, v := range call.Params {
		params[k] = v
	}

	path := composePath(d.PathTemplate, d.QueryParams, params)

	execResult := o.executor.Execute(ctx, connectionID, d.Method, path, call.Headers, call.Body)

	result := CallResult{
		Slug:              d.Slug,
		StatusCode:        execResult.StatusCode,
		ResponseHeaders:   execResult.ResponseHeaders,
		ResponseSizeBytes: execResult.ResponseSizeBytes,
		DurationMs:        execResult.DurationMs,
		Layer:             layer,
		InjectedParams:    injectedParams,
	}

	if execResult.ErrorMessage != "" && execResult.StatusCode == 0 {
		result.Status = "rejected"
		result.Error = execResult.ErrorMessage
		return result
	}

	// response parsing: attempt JSON.parse, fall back to the raw string
	// but still mark the call fulfilled.
	result.Status = "fulfilled"
	if execResult.ResponseBody != nil {
		var parsed any
		if err := json.Unmarshal([]byte(*execResult.ResponseBody), &parsed); err == nil {
			result.ResponseBody = parsed
		} else {
			result.ResponseBody = *execResult.ResponseBody
		}
	}
	return result
}

// composePath substitutes path template placeholders and appends any
// remaining params as a query string.
func composePath(template string, queryParams []domain.QueryParam, params map[string]string) string {
	path := template
	for k, v := range params {
		path = strings.ReplaceAll(path, "{"+k+"}", url.QueryEscape(v))
	}

	var query []string
	for _, qp := range queryParams {
		v, ok := params[qp.Name]
		if !ok || v == "" {
			continue
		}
		if strings.Contains(template, "{"+qp.Name+"}") {
			continue
		}
		query = append(query, url.QueryEscape(qp.Name)+"="+url.QueryEscape(v))
	}
	if len(query) == 0 {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(query, "&")
}

func (o *Orchestrator) fetchDefs(tenantID uuid.UUID, slugs []string) (map[string]*domain.ApiDefinition, error) {
	defs, err := o.definitions.GetBySlugs(tenantID, slugs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*domain.ApiDefinition, len(defs))
	for _, d := range defs {
		out[d.Slug] = d
	}
	return out, nil
}

func slugsOf(calls []CallInput) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Slug
	}
	return out
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

// topoLayersFromEdges mirrors resolver's Kahn's-algorithm layering, but
// over the merged static+dynamic depends_on edges of sequential mode.
func topoLayersFromEdges(slugs []string, edges map[string][]resolver.Edge) []resolver.Layer {
	inDegree := make(map[string]int, len(slugs))
	dependents := make(map[string][]string)
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

	var layers []resolver.Layer
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
			layers = append(layers, resolver.Layer{Layer: -1, Slugs: left})
			break
		}
		layers = append(layers, resolver.Layer{Layer: layerIdx, Slugs: zero})
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
