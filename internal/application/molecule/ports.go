package molecule

import (
	"context"
	"time"

	domainMol "github.com/turtacn/molregistry/internal/domain/molecule"
)

// SearchCache stores the identifiers matched by a search.  Keys already encode
// the registry version, so entries never need explicit invalidation.
type SearchCache interface {
	Get(ctx context.Context, key string) ([]string, bool, error)
	Set(ctx context.Context, key string, identifiers []string, ttl time.Duration) error
}

// EventPublisher delivers registry change events to an external transport.
type EventPublisher interface {
	Publish(ctx context.Context, event domainMol.DomainEvent) error
}

// Recorder receives service-level observations.
type Recorder interface {
	SearchCompleted(duration time.Duration, matches int, cached bool)
	RegistrySize(n int)
	UploadCompleted(result string, added, skipped int)
	EventPublished(eventType string, err error)
}

type nopRecorder struct{}

func (nopRecorder) SearchCompleted(time.Duration, int, bool) {}
func (nopRecorder) RegistrySize(int)                         {}
func (nopRecorder) UploadCompleted(string, int, int)         {}
func (nopRecorder) EventPublished(string, error)             {}
