package resolver

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"tether/internal/dependency"
	"tether/internal/pipeline"
	"tether/pkg/logging"
)

// DuplicateError is a systemic failure: two units share an identifier.
type DuplicateError struct {
	Identifier string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate unit identifier %q", e.Identifier)
}

// MissingRequirementError means no resolvable unit provides a requirement.
type MissingRequirementError struct {
	Requirement string
	// Failed lists providers that exist but could not be resolved themselves.
	Failed []string
}

func (e *MissingRequirementError) Error() string {
	if len(e.Failed) > 0 {
		return fmt.Sprintf("requirement %q unavailable: provider %s failed", e.Requirement, strings.Join(e.Failed, ", "))
	}
	return fmt.Sprintf("requirement %q not provided by any unit", e.Requirement)
}

// CycleError means the unit's wiring is, or depends on, a cycle.
type CycleError struct {
	Identifier string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("unit %s is part of or depends on a requirement cycle", e.Identifier)
}

// Resolver wires units by matching each requirement against unit
// identifiers and provided capabilities. A unit that cannot be wired fails,
// and so does every unit that needs it. The zero value is ready to use.
type Resolver struct{}

// New returns a resolver.
func New() *Resolver {
	return &Resolver{}
}

// Resolve implements pipeline.Resolver. Resolved units come dependencies
// first; independent units are ordered by start level, then identifier.
func (r *Resolver) Resolve(ctx context.Context, units []*pipeline.Unit) (*pipeline.Resolution, error) {
	byID := make(map[string]*pipeline.Unit, len(units))
	for _, u := range units {
		if _, dup := byID[u.Identifier]; dup {
			return nil, &DuplicateError{Identifier: u.Identifier}
		}
		byID[u.Identifier] = u
	}

	res := &pipeline.Resolution{
		Wires:    make(map[string][]string),
		Failures: make(map[string]error),
	}

	// Wire against the units still standing until nothing else fails.
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		failed := r.wire(byID, res)
		if !failed {
			break
		}
	}

	g := dependency.New(strings.Compare)
	for id := range byID {
		if _, bad := res.Failures[id]; bad {
			continue
		}
		g.AddNode(dependency.Node[string]{ID: id, DependsOn: res.Wires[id]})
	}
	ordered, cyclic := g.TopologicalOrder(func(a, b string) int {
		return cmp.Or(cmp.Compare(byID[a].StartLevel, byID[b].StartLevel), strings.Compare(a, b))
	})
	for _, id := range cyclic {
		res.Failures[id] = &CycleError{Identifier: id}
		delete(res.Wires, id)
	}
	for _, id := range ordered {
		res.Resolved = append(res.Resolved, byID[id])
	}

	for id := range res.Failures {
		delete(res.Wires, id)
	}
	logging.Debug("Resolver", "Resolved %d of %d units", len(res.Resolved), len(units))
	return res, nil
}

// wire recomputes the wiring of every unit that has not failed and reports
// whether a new failure was recorded.
func (r *Resolver) wire(byID map[string]*pipeline.Unit, res *pipeline.Resolution) bool {
	providers := make(map[string][]string)
	for id, u := range byID {
		providers[id] = append(providers[id], id)
		for _, capability := range u.Provides {
			if capability != id {
				providers[capability] = append(providers[capability], id)
			}
		}
	}

	newFailure := false
	for _, id := range sortedIDs(byID) {
		if _, bad := res.Failures[id]; bad {
			continue
		}
		u := byID[id]
		var wires []string
		for _, req := range u.Requires {
			provider, err := choose(req, providers[req], byID, res.Failures)
			if err != nil {
				logging.Debug("Resolver", "Unit %s: %v", id, err)
				res.Failures[id] = err
				newFailure = true
				break
			}
			if provider != id && !slices.Contains(wires, provider) {
				wires = append(wires, provider)
			}
		}
		if _, bad := res.Failures[id]; bad {
			delete(res.Wires, id)
			continue
		}
		res.Wires[id] = wires
	}
	return newFailure
}

// choose picks the provider of req. An exact identifier match wins, then the
// lowest start level, then the lowest identifier.
func choose(req string, candidates []string, byID map[string]*pipeline.Unit, failures map[string]error) (string, error) {
	var ok, failed []string
	for _, c := range candidates {
		if _, bad := failures[c]; bad {
			failed = append(failed, c)
			continue
		}
		ok = append(ok, c)
	}
	if len(ok) == 0 {
		slices.Sort(failed)
		return "", &MissingRequirementError{Requirement: req, Failed: failed}
	}
	if slices.Contains(ok, req) {
		return req, nil
	}
	return slices.MinFunc(ok, func(a, b string) int {
		return cmp.Or(cmp.Compare(byID[a].StartLevel, byID[b].StartLevel), strings.Compare(a, b))
	}), nil
}

func sortedIDs(byID map[string]*pipeline.Unit) []string {
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
