// Package molecule provides the application-level service for registry
// operations.  It sits between the HTTP/CLI surfaces and the domain registry:
// it translates domain errors into AppError codes, caches search results, and
// emits change events after successful mutations.
package molecule

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/singleflight"

	domainMol "github.com/turtacn/molregistry/internal/domain/molecule"
	"github.com/turtacn/molregistry/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molregistry/pkg/errors"
)

// Service defines the interface for molecule application operations.
type Service interface {
	Get(ctx context.Context, identifier string) (*MoleculeDTO, error)
	Add(ctx context.Context, input *AddInput) (*MoleculeDTO, error)
	Update(ctx context.Context, input *UpdateInput) (*MoleculeDTO, error)
	Delete(ctx context.Context, identifier string) (*MoleculeDTO, error)
	List(ctx context.Context) ([]*MoleculeDTO, error)
	Search(ctx context.Context, input *SearchInput) (*SearchResult, error)
	Upload(ctx context.Context, body io.Reader) (*UploadResult, error)
}

// AddInput contains input for registering a molecule.
type AddInput struct {
	Identifier string
	SMILES     string
}

// UpdateInput contains input for replacing a molecule's notation.
type UpdateInput struct {
	Identifier string
	SMILES     string
}

// SearchInput contains the substructure pattern to look for.
type SearchInput struct {
	Substructure string
}

// MoleculeDTO is the wire representation of a registry entry.
type MoleculeDTO struct {
	Identifier string `json:"identifier" yaml:"identifier"`
	SMILES     string `json:"smiles" yaml:"smiles"`
}

// SearchResult lists the molecules containing the pattern, in registry order.
type SearchResult struct {
	Matches []*MoleculeDTO `json:"matches"`

	// RegistryEmpty is set when there was nothing to search.
	RegistryEmpty bool `json:"-"`

	// Cached is set when the identifiers came from the search cache.
	Cached bool `json:"-"`
}

// UploadResult summarises an applied bulk upload.
type UploadResult struct {
	Added       int      `json:"added"`
	Skipped     int      `json:"skipped"`
	Identifiers []string `json:"identifiers"`
}

const (
	defaultCacheTTL       = 5 * time.Minute
	defaultPublishTimeout = 2 * time.Second
	tracerName            = "github.com/turtacn/molregistry/internal/application/molecule"
)

// Option configures the service.
type Option func(*serviceImpl)

// WithSearchCache enables result caching.  A non-positive ttl selects the
// default of five minutes.
func WithSearchCache(cache SearchCache, ttl time.Duration) Option {
	return func(s *serviceImpl) {
		s.cache = cache
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithEventPublisher enables change events.
func WithEventPublisher(p EventPublisher) Option {
	return func(s *serviceImpl) { s.publisher = p }
}

// WithPublishTimeout bounds a single event publish.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *serviceImpl) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *serviceImpl) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithTracer attaches a tracer for search and upload spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *serviceImpl) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithSearchWorkers sets the number of goroutines used by a single search.
func WithSearchWorkers(n int) Option {
	return func(s *serviceImpl) { s.matcher.Workers = n }
}

// WithSearchTimeout bounds the matching phase of a single search.  Zero
// disables the bound.
func WithSearchTimeout(d time.Duration) Option {
	return func(s *serviceImpl) { s.searchTimeout = d }
}

// serviceImpl implements the Service interface.
type serviceImpl struct {
	registry *domainMol.Registry
	logger   logging.Logger

	cache    SearchCache
	cacheTTL time.Duration
	flight   singleflight.Group

	// instance scopes cache keys to this registry, since versions restart at
	// zero in every process sharing a remote cache.
	instance string

	matcher       domainMol.Matcher
	searchTimeout time.Duration

	publisher      EventPublisher
	publishTimeout time.Duration

	recorder Recorder
	tracer   trace.Tracer
}

// NewService creates a new molecule application service.
func NewService(registry *domainMol.Registry, logger logging.Logger, opts ...Option) Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &serviceImpl{
		registry:       registry,
		logger:         logger,
		cacheTTL:       defaultCacheTTL,
		instance:       uuid.NewString(),
		publishTimeout: defaultPublishTimeout,
		recorder:       nopRecorder{},
		tracer:         noop.NewTracerProvider().Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.recorder.RegistrySize(registry.Len())
	return s
}

func (s *serviceImpl) Get(ctx context.Context, identifier string) (*MoleculeDTO, error) {
	e, err := s.registry.Get(identifier)
	if err != nil {
		return nil, translate(err)
	}
	return toDTO(e), nil
}

func (s *serviceImpl) Add(ctx context.Context, input *AddInput) (*MoleculeDTO, error) {
	if input == nil {
		return nil, errors.InvalidParam("input is required")
	}
	e, err := s.registry.Add(input.Identifier, input.SMILES)
	if err != nil {
		s.logger.Debug("add rejected", logging.String("identifier", input.Identifier), logging.Err(err))
		return nil, translate(err)
	}
	s.logger.Info("molecule added", logging.String("identifier", e.Identifier))
	s.recorder.RegistrySize(s.registry.Len())
	s.publish(ctx, domainMol.MoleculeCreatedEvent{Identifier: e.Identifier, SMILES: e.SMILES})
	return toDTO(e), nil
}

func (s *serviceImpl) Update(ctx context.Context, input *UpdateInput) (*MoleculeDTO, error) {
	if input == nil {
		return nil, errors.InvalidParam("input is required")
	}
	e, err := s.registry.Update(input.Identifier, input.SMILES)
	if err != nil {
		s.logger.Debug("update rejected", logging.String("identifier", input.Identifier), logging.Err(err))
		return nil, translate(err)
	}
	s.logger.Info("molecule updated", logging.String("identifier", e.Identifier))
	s.publish(ctx, domainMol.MoleculeUpdatedEvent{Identifier: e.Identifier, SMILES: e.SMILES})
	return toDTO(e), nil
}

func (s *serviceImpl) Delete(ctx context.Context, identifier string) (*MoleculeDTO, error) {
	e, err := s.registry.Delete(identifier)
	if err != nil {
		return nil, translate(err)
	}
	s.logger.Info("molecule deleted", logging.String("identifier", e.Identifier))
	s.recorder.RegistrySize(s.registry.Len())
	s.publish(ctx, domainMol.MoleculeDeletedEvent{Identifier: e.Identifier, SMILES: e.SMILES})
	return toDTO(e), nil
}

func (s *serviceImpl) List(ctx context.Context) ([]*MoleculeDTO, error) {
	entries := s.registry.List()
	out := make([]*MoleculeDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toDTO(e))
	}
	return out, nil
}

func (s *serviceImpl) Upload(ctx context.Context, body io.Reader) (*UploadResult, error) {
	ctx, span := s.tracer.Start(ctx, "molecule.Upload")
	defer span.End()

	lines, err := domainMol.ReadLines(body)
	if err != nil {
		s.recorder.UploadCompleted("rejected", 0, 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, errors.New(errors.CodeMoleculeInvalidFormat,
				errors.DefaultMessageForCode(errors.CodeMoleculeInvalidFormat)).
				WithDetail("line exceeds the maximum length").WithCause(err)
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to read upload")
	}
	span.SetAttributes(attribute.Int("upload.lines", len(lines)))

	out, err := s.registry.LoadBatch(lines)
	if err != nil {
		s.recorder.UploadCompleted("rejected", 0, 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch rejected")
		s.logger.Info("upload rejected", logging.Err(err))
		return nil, translate(err)
	}

	s.recorder.UploadCompleted("accepted", out.Added, out.Skipped)
	span.SetAttributes(attribute.Int("upload.added", out.Added), attribute.Int("upload.skipped", out.Skipped))
	s.logger.Info("molecules uploaded",
		logging.Int("added", out.Added),
		logging.Int("skipped", out.Skipped),
	)
	if out.Added > 0 {
		s.recorder.RegistrySize(s.registry.Len())
		s.publish(ctx, domainMol.BatchLoadedEvent{Identifiers: out.Identifiers, Skipped: out.Skipped})
	}
	return &UploadResult{Added: out.Added, Skipped: out.Skipped, Identifiers: out.Identifiers}, nil
}

// publish delivers event with a bounded, request-independent deadline.  A
// failure is logged and counted but never returned.
func (s *serviceImpl) publish(ctx context.Context, event domainMol.DomainEvent) {
	if s.publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	err := s.publisher.Publish(pctx, event)
	s.recorder.EventPublished(event.EventType(), err)
	if err != nil {
		s.logger.Warn("failed to publish molecule event",
			logging.String("event_type", event.EventType()),
			logging.String("key", event.Key()),
			logging.Err(err),
		)
	}
}

func toDTO(e domainMol.Entry) *MoleculeDTO {
	return &MoleculeDTO{Identifier: e.Identifier, SMILES: e.SMILES}
}
