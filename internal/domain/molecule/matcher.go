package molecule

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Candidate is a stored graph offered to FindMatches.
type Candidate struct {
	Identifier string
	Graph      *Graph
}

// Contains reports whether target contains pattern as a subgraph.
//
// A pattern atom maps to a target atom with the same element; charge,
// isotope and the aromatic flag are ignored.  Every pattern bond must map to
// a target bond between the images of its endpoints: an aromatic pattern bond
// only matches an aromatic target bond, any other order must match exactly.
// Extra target atoms and bonds are allowed.
//
// Contains panics on a pattern with no atoms; Parse never produces one.
func Contains(pattern, target *Graph) bool {
	ok, _ := ContainsContext(context.Background(), pattern, target)
	return ok
}

// ContainsContext is Contains with cancellation.  The context is checked at
// every step of the backtracking search and its error is returned when done.
func ContainsContext(ctx context.Context, pattern, target *Graph) (bool, error) {
	if pattern == nil || pattern.NumAtoms() == 0 {
		panic("molecule: substructure pattern has no atoms")
	}
	if target == nil || !mayContain(pattern, target) {
		return false, ctx.Err()
	}
	s := newMatchState(ctx, pattern, target)
	return s.extend(0)
}

// mayContain returns false when target cannot possibly contain pattern.
func mayContain(pattern, target *Graph) bool {
	if pattern.NumAtoms() > target.NumAtoms() || pattern.NumBonds() > target.NumBonds() {
		return false
	}
	have := target.ElementCounts()
	for el, n := range pattern.ElementCounts() {
		if have[el] < n {
			return false
		}
	}
	return true
}

// ─────────────────────────────────────────────────────────────────────────────
// VF2-style state
// ─────────────────────────────────────────────────────────────────────────────

type matchState struct {
	done <-chan struct{}
	ctx  context.Context

	p, t *Graph

	// order is the pattern-atom visiting sequence.  parent[i] is a pattern
	// atom visited before order[i] and bonded to it, or -1 when order[i]
	// starts a new connected component.
	order  []int
	parent []int

	core []int  // pattern atom -> target atom, -1 while unmapped
	used []bool // target atom already mapped
}

func newMatchState(ctx context.Context, p, t *Graph) *matchState {
	s := &matchState{
		done: ctx.Done(),
		ctx:  ctx,
		p:    p,
		t:    t,
		core: make([]int, p.NumAtoms()),
		used: make([]bool, t.NumAtoms()),
	}
	for i := range s.core {
		s.core[i] = -1
	}
	s.order, s.parent = visitOrder(p)
	return s
}

// visitOrder lays pattern atoms out breadth-first so that, past the first atom
// of each component, every atom is adjacent to one already mapped.  Components
// are seeded from their highest-degree atom, which constrains the search
// earliest.
func visitOrder(g *Graph) ([]int, []int) {
	n := g.NumAtoms()
	order := make([]int, 0, n)
	parent := make([]int, 0, n)
	seen := make([]bool, n)

	for len(order) < n {
		seed := -1
		for i := 0; i < n; i++ {
			if !seen[i] && (seed < 0 || g.Degree(i) > g.Degree(seed)) {
				seed = i
			}
		}
		seen[seed] = true
		queue := []int{seed}
		order = append(order, seed)
		parent = append(parent, -1)
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, nb := range g.Neighbors(cur) {
				if seen[nb] {
					continue
				}
				seen[nb] = true
				queue = append(queue, nb)
				order = append(order, nb)
				parent = append(parent, cur)
			}
		}
	}
	return order, parent
}

func (s *matchState) extend(depth int) (bool, error) {
	if s.done != nil {
		select {
		case <-s.done:
			return false, s.ctx.Err()
		default:
		}
	}
	if depth == len(s.order) {
		return true, nil
	}

	pa := s.order[depth]
	if anchor := s.parent[depth]; anchor >= 0 {
		ta := s.core[anchor]
		for _, bi := range s.t.adjacency[ta] {
			if ok, err := s.try(depth, pa, s.t.bonds[bi].Other(ta)); ok || err != nil {
				return ok, err
			}
		}
		return false, nil
	}
	for tc := 0; tc < s.t.NumAtoms(); tc++ {
		if ok, err := s.try(depth, pa, tc); ok || err != nil {
			return ok, err
		}
	}
	return false, nil
}

func (s *matchState) try(depth, pa, tc int) (bool, error) {
	if !s.feasible(pa, tc) {
		return false, nil
	}
	s.core[pa] = tc
	s.used[tc] = true
	ok, err := s.extend(depth + 1)
	if ok || err != nil {
		return ok, err
	}
	s.core[pa] = -1
	s.used[tc] = false
	return false, nil
}

// feasible checks that mapping pattern atom pa onto target atom tc keeps the
// partial mapping consistent.
func (s *matchState) feasible(pa, tc int) bool {
	if s.used[tc] {
		return false
	}
	if s.p.atoms[pa].Element != s.t.atoms[tc].Element {
		return false
	}
	if s.t.Degree(tc) < s.p.Degree(pa) {
		return false
	}
	for _, bi := range s.p.adjacency[pa] {
		pbond := s.p.bonds[bi]
		mapped := s.core[pbond.Other(pa)]
		if mapped < 0 {
			continue
		}
		tbond, ok := s.t.BondBetween(tc, mapped)
		if !ok || !bondCompatible(pbond.Order, tbond.Order) {
			return false
		}
	}
	return true
}

func bondCompatible(pattern, target BondOrder) bool {
	if pattern == BondAromatic {
		return target == BondAromatic
	}
	return pattern == target
}

// ─────────────────────────────────────────────────────────────────────────────
// Batch matching
// ─────────────────────────────────────────────────────────────────────────────

// Matcher runs containment checks over many candidates.
type Matcher struct {
	// Workers bounds the number of concurrent containment checks.  Values
	// below 2 run sequentially.
	Workers int
}

// FindMatches returns the identifiers of candidates that contain pattern, in
// candidate order.
func FindMatches(ctx context.Context, pattern *Graph, candidates []Candidate) ([]string, error) {
	return Matcher{Workers: 1}.FindMatches(ctx, pattern, candidates)
}

// FindMatches returns the identifiers of candidates that contain pattern, in
// candidate order regardless of how many workers ran.
func (m Matcher) FindMatches(ctx context.Context, pattern *Graph, candidates []Candidate) ([]string, error) {
	hits := make([]bool, len(candidates))

	if m.Workers < 2 || len(candidates) < 2 {
		for i, c := range candidates {
			ok, err := ContainsContext(ctx, pattern, c.Graph)
			if err != nil {
				return nil, err
			}
			hits[i] = ok
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(m.Workers)
		for i, c := range candidates {
			i, c := i, c
			g.Go(func() error {
				ok, err := ContainsContext(gctx, pattern, c.Graph)
				if err != nil {
					return err
				}
				hits[i] = ok
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	out := make([]string, 0, len(candidates))
	for i, hit := range hits {
		if hit {
			out = append(out, candidates[i].Identifier)
		}
	}
	return out, nil
}
