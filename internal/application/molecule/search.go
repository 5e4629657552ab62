package molecule

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	domainMol "github.com/turtacn/molregistry/internal/domain/molecule"
	"github.com/turtacn/molregistry/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molregistry/pkg/errors"
)

type searchOutcome struct {
	identifiers []string
	cached      bool
}

// Search returns every stored molecule that contains the pattern.  Matching
// runs over a snapshot, so concurrent mutations never affect a running search.
func (s *serviceImpl) Search(ctx context.Context, input *SearchInput) (*SearchResult, error) {
	ctx, span := s.tracer.Start(ctx, "molecule.Search")
	defer span.End()
	start := time.Now()

	if input == nil {
		return nil, errors.InvalidParam("input is required")
	}
	pattern, err := domainMol.Parse(input.Substructure)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid pattern")
		return nil, translate(err)
	}

	entries, version := s.registry.Snapshot()
	span.SetAttributes(
		attribute.Int("registry.size", len(entries)),
		attribute.Int64("registry.version", int64(version)),
		attribute.Int("pattern.atoms", pattern.NumAtoms()),
	)
	if len(entries) == 0 {
		return &SearchResult{Matches: []*MoleculeDTO{}, RegistryEmpty: true}, nil
	}

	key := s.searchKey(version, input.Substructure)
	res, err := s.sharedLookup(ctx, key, pattern, entries)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		s.logger.Warn("substructure search failed",
			logging.String("pattern", input.Substructure),
			logging.Err(err),
		)
		return nil, translate(err)
	}
	outcome := res.Val.(searchOutcome)

	byID := make(map[string]domainMol.Entry, len(entries))
	for _, e := range entries {
		byID[e.Identifier] = e
	}
	matches := make([]*MoleculeDTO, 0, len(outcome.identifiers))
	for _, id := range outcome.identifiers {
		if e, ok := byID[id]; ok {
			matches = append(matches, toDTO(e))
		}
	}

	elapsed := time.Since(start)
	s.recorder.SearchCompleted(elapsed, len(matches), outcome.cached)
	span.SetAttributes(
		attribute.Int("search.matches", len(matches)),
		attribute.Bool("search.cached", outcome.cached),
		attribute.Bool("search.shared", res.Shared),
	)
	s.logger.Debug("substructure search completed",
		logging.String("pattern", input.Substructure),
		logging.Int("matches", len(matches)),
		logging.Bool("cached", outcome.cached),
		logging.Duration("elapsed", elapsed),
	)
	return &SearchResult{Matches: matches, Cached: outcome.cached}, nil
}

// sharedLookup collapses identical concurrent searches into one lookup.  The
// lookup runs detached from ctx and is bounded only by the search timeout.  A
// caller whose ctx ends returns its own error; the other callers still get the
// shared result.
func (s *serviceImpl) sharedLookup(ctx context.Context, key string, pattern *domainMol.Graph, entries []domainMol.Entry) (singleflight.Result, error) {
	if err := ctx.Err(); err != nil {
		return singleflight.Result{}, err
	}
	detached := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(key, func() (interface{}, error) {
		return s.lookup(detached, key, pattern, entries)
	})
	select {
	case res := <-ch:
		return res, res.Err
	case <-ctx.Done():
		return singleflight.Result{}, ctx.Err()
	}
}

// lookup consults the cache, falling back to the matcher.  Cache failures
// degrade to a cache miss.
func (s *serviceImpl) lookup(ctx context.Context, key string, pattern *domainMol.Graph, entries []domainMol.Entry) (searchOutcome, error) {
	if s.cache != nil {
		ids, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.logger.Warn("search cache read failed", logging.String("key", key), logging.Err(err))
		case ok:
			return searchOutcome{identifiers: ids, cached: true}, nil
		}
	}

	mctx := ctx
	if s.searchTimeout > 0 {
		var cancel context.CancelFunc
		mctx, cancel = context.WithTimeout(ctx, s.searchTimeout)
		defer cancel()
	}

	candidates := make([]domainMol.Candidate, len(entries))
	for i, e := range entries {
		candidates[i] = domainMol.Candidate{Identifier: e.Identifier, Graph: e.Graph}
	}
	ids, err := s.matcher.FindMatches(mctx, pattern, candidates)
	if err != nil {
		return searchOutcome{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, ids, s.cacheTTL); err != nil {
			s.logger.Warn("search cache write failed", logging.String("key", key), logging.Err(err))
		}
	}
	return searchOutcome{identifiers: ids}, nil
}

// searchKey derives a cache key from the registry instance, its version and
// the pattern text.
func (s *serviceImpl) searchKey(version uint64, pattern string) string {
	sum := sha256.Sum256([]byte(pattern))
	return "search:" + s.instance + ":" + strconv.FormatUint(version, 10) + ":" + hex.EncodeToString(sum[:16])
}
