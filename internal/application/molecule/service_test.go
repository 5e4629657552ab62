package molecule

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	domainMol "github.com/turtacn/molregistry/internal/domain/molecule"
	"github.com/turtacn/molregistry/internal/testutil"
	"github.com/turtacn/molregistry/pkg/errors"
)

// MockSearchCache is a mock implementation of SearchCache.
type MockSearchCache struct {
	mock.Mock
}

func (m *MockSearchCache) Get(ctx context.Context, key string) ([]string, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]string), args.Bool(1), args.Error(2)
}

func (m *MockSearchCache) Set(ctx context.Context, key string, identifiers []string, ttl time.Duration) error {
	args := m.Called(ctx, key, identifiers, ttl)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of EventPublisher.
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event domainMol.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type recordingRecorder struct {
	mu       sync.Mutex
	size     int
	searches []bool
	uploads  []string
	events   map[string]int
}

func newRecordingRecorder() *recordingRecorder {
	return &recordingRecorder{events: make(map[string]int)}
}

func (r *recordingRecorder) SearchCompleted(_ time.Duration, _ int, cached bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searches = append(r.searches, cached)
}

func (r *recordingRecorder) RegistrySize(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.size = n
}

func (r *recordingRecorder) UploadCompleted(result string, _, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploads = append(r.uploads, result)
}

func (r *recordingRecorder) EventPublished(eventType string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		r.events[eventType]++
	}
}

func newTestService(t *testing.T, opts ...Option) (Service, *domainMol.Registry, *testutil.MockLogger) {
	t.Helper()
	reg := domainMol.NewRegistry()
	logger := testutil.NewMockLogger()
	return NewService(reg, logger, opts...), reg, logger
}

func assertAppError(t *testing.T, err error, code errors.ErrorCode, message string) *errors.AppError {
	t.Helper()
	require.Error(t, err)
	var ae *errors.AppError
	require.True(t, errors.As(err, &ae), "expected *AppError, got %T", err)
	assert.Equal(t, code, ae.Code)
	if message != "" {
		assert.Equal(t, message, ae.Message)
	}
	return ae
}

// ─────────────────────────────────────────────────────────────────────────────
// CRUD
// ─────────────────────────────────────────────────────────────────────────────

func TestAdd(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		pub := new(MockEventPublisher)
		pub.On("Publish", mock.Anything, domainMol.MoleculeCreatedEvent{Identifier: "aspirin", SMILES: "CC(=O)Oc1ccccc1C(=O)O"}).Return(nil)
		rec := newRecordingRecorder()
		svc, reg, logger := newTestService(t, WithEventPublisher(pub), WithRecorder(rec))

		mol, err := svc.Add(ctx, &AddInput{Identifier: "aspirin", SMILES: "CC(=O)Oc1ccccc1C(=O)O"})
		require.NoError(t, err)
		assert.Equal(t, &MoleculeDTO{Identifier: "aspirin", SMILES: "CC(=O)Oc1ccccc1C(=O)O"}, mol)
		assert.Equal(t, 1, reg.Len())
		assert.Equal(t, 1, rec.size)
		assert.Equal(t, 1, rec.events["molecule.created"])
		assert.True(t, logger.HasMessage("info", "molecule added"))
		pub.AssertExpectations(t)
	})

	t.Run("duplicate identifier", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.Add(ctx, &AddInput{Identifier: "m1", SMILES: "CCO"})
		require.NoError(t, err)

		_, err = svc.Add(ctx, &AddInput{Identifier: "m1", SMILES: "CCN"})
		ae := assertAppError(t, err, errors.CodeMoleculeExists, "molecule identifier already exists")
		assert.Empty(t, ae.Detail)
		assert.Equal(t, 400, ae.HTTPStatus())
	})

	t.Run("invalid smiles", func(t *testing.T) {
		pub := new(MockEventPublisher)
		svc, reg, _ := newTestService(t, WithEventPublisher(pub))

		_, err := svc.Add(ctx, &AddInput{Identifier: "m1", SMILES: "C(C"})
		ae := assertAppError(t, err, errors.CodeMoleculeInvalidSMILES, "")
		assert.Contains(t, ae.Detail, "position 1")
		assert.Equal(t, 0, reg.Len())
		pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("empty identifier", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.Add(ctx, &AddInput{SMILES: "C"})
		assertAppError(t, err, errors.CodeInvalidParam, "")
	})

	t.Run("nil input", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.Add(ctx, nil)
		assertAppError(t, err, errors.CodeInvalidParam, "input is required")
	})
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	_, err := svc.Add(ctx, &AddInput{Identifier: "m1", SMILES: "CCO"})
	require.NoError(t, err)

	mol, err := svc.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "CCO", mol.SMILES)

	_, err = svc.Get(ctx, "missing")
	ae := assertAppError(t, err, errors.CodeMoleculeNotFound, "molecule not found")
	assert.Empty(t, ae.Detail)
	assert.Equal(t, 404, ae.HTTPStatus())
	assert.True(t, errors.Is(err, domainMol.ErrNotFound))
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	pub := new(MockEventPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)
	svc, _, _ := newTestService(t, WithEventPublisher(pub))

	_, err := svc.Add(ctx, &AddInput{Identifier: "m1", SMILES: "CCO"})
	require.NoError(t, err)

	mol, err := svc.Update(ctx, &UpdateInput{Identifier: "m1", SMILES: "CCN"})
	require.NoError(t, err)
	assert.Equal(t, "CCN", mol.SMILES)
	pub.AssertCalled(t, "Publish", mock.Anything, domainMol.MoleculeUpdatedEvent{Identifier: "m1", SMILES: "CCN"})

	_, err = svc.Update(ctx, &UpdateInput{Identifier: "nope", SMILES: "C"})
	assertAppError(t, err, errors.CodeMoleculeNotFound, "molecule not found")

	_, err = svc.Update(ctx, &UpdateInput{Identifier: "m1", SMILES: "C)"})
	assertAppError(t, err, errors.CodeMoleculeInvalidSMILES, "")

	got, err := svc.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "CCN", got.SMILES)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	pub := new(MockEventPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)
	rec := newRecordingRecorder()
	svc, reg, _ := newTestService(t, WithEventPublisher(pub), WithRecorder(rec))

	_, err := svc.Add(ctx, &AddInput{Identifier: "m1", SMILES: "CCO"})
	require.NoError(t, err)

	removed, err := svc.Delete(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "CCO", removed.SMILES)
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, 0, rec.size)
	pub.AssertCalled(t, "Publish", mock.Anything, domainMol.MoleculeDeletedEvent{Identifier: "m1", SMILES: "CCO"})

	_, err = svc.Delete(ctx, "m1")
	assertAppError(t, err, errors.CodeMoleculeNotFound, "molecule not found")
}

func TestList(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	empty, err := svc.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, id := range []string{"c", "a", "b"} {
		_, err := svc.Add(ctx, &AddInput{Identifier: id, SMILES: "C"})
		require.NoError(t, err)
	}
	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "c", list[0].Identifier)
	assert.Equal(t, "a", list[1].Identifier)
	assert.Equal(t, "b", list[2].Identifier)
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	ctx := context.Background()
	pub := new(MockEventPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(fmt.Errorf("broker unavailable"))
	rec := newRecordingRecorder()
	svc, _, logger := newTestService(t, WithEventPublisher(pub), WithRecorder(rec))

	_, err := svc.Add(ctx, &AddInput{Identifier: "m1", SMILES: "C"})
	require.NoError(t, err)
	assert.True(t, logger.HasMessage("warn", "failed to publish molecule event"))
	assert.Zero(t, rec.events["molecule.created"])
}

func TestPublishIgnoresRequestCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pub := new(MockEventPublisher)
	pub.On("Publish", mock.MatchedBy(func(c context.Context) bool { return c.Err() == nil }), mock.Anything).Return(nil)
	svc, _, _ := newTestService(t, WithEventPublisher(pub))

	cancel()
	_, err := svc.Add(ctx, &AddInput{Identifier: "m1", SMILES: "C"})
	require.NoError(t, err)
	pub.AssertExpectations(t)
}

// ─────────────────────────────────────────────────────────────────────────────
// Search
// ─────────────────────────────────────────────────────────────────────────────

func seed(t *testing.T, svc Service, pairs ...string) {
	t.Helper()
	for i := 0; i+1 < len(pairs); i += 2 {
		_, err := svc.Add(context.Background(), &AddInput{Identifier: pairs[i], SMILES: pairs[i+1]})
		require.NoError(t, err)
	}
}

func identifiersOf(ms []*MoleculeDTO) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Identifier)
	}
	return out
}

func TestSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("empty registry", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		res, err := svc.Search(ctx, &SearchInput{Substructure: "C"})
		require.NoError(t, err)
		assert.True(t, res.RegistryEmpty)
		assert.Empty(t, res.Matches)
	})

	t.Run("matches in registry order", func(t *testing.T) {
		svc, _, _ := newTestService(t, WithSearchWorkers(4))
		seed(t, svc,
			"ethanol", "CCO",
			"aspirin", "CC(=O)Oc1ccccc1C(=O)O",
			"benzene", "c1ccccc1",
			"acetic", "CC(=O)O",
		)
		res, err := svc.Search(ctx, &SearchInput{Substructure: "C=O"})
		require.NoError(t, err)
		assert.False(t, res.RegistryEmpty)
		assert.Equal(t, []string{"aspirin", "acetic"}, identifiersOf(res.Matches))
	})

	t.Run("no matches", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		seed(t, svc, "ethanol", "CCO")
		res, err := svc.Search(ctx, &SearchInput{Substructure: "N"})
		require.NoError(t, err)
		assert.False(t, res.RegistryEmpty)
		assert.Empty(t, res.Matches)
	})

	t.Run("invalid pattern", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		seed(t, svc, "ethanol", "CCO")
		_, err := svc.Search(ctx, &SearchInput{Substructure: "C(("})
		assertAppError(t, err, errors.CodeMoleculeInvalidSMILES, "")
	})

	t.Run("expired deadline", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		seed(t, svc, "ethanol", "CCO")
		dctx, cancel := context.WithDeadline(ctx, time.Now().Add(-time.Second))
		defer cancel()
		_, err := svc.Search(dctx, &SearchInput{Substructure: "C"})
		ae := assertAppError(t, err, errors.CodeSearchTimeout, "")
		assert.Equal(t, 504, ae.HTTPStatus())
	})
}

func TestSearch_CacheMissThenStore(t *testing.T) {
	ctx := context.Background()
	cache := new(MockSearchCache)
	cache.On("Get", mock.Anything, mock.AnythingOfType("string")).Return(nil, false, nil)
	cache.On("Set", mock.Anything, mock.AnythingOfType("string"), []string{"ethanol"}, time.Minute).Return(nil)
	rec := newRecordingRecorder()
	svc, _, _ := newTestService(t, WithSearchCache(cache, time.Minute), WithRecorder(rec))
	seed(t, svc, "ethanol", "CCO", "methylamine", "CN")

	res, err := svc.Search(ctx, &SearchInput{Substructure: "CO"})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, []string{"ethanol"}, identifiersOf(res.Matches))
	assert.Equal(t, []bool{false}, rec.searches)
	cache.AssertExpectations(t)
}

func TestSearch_CacheHit(t *testing.T) {
	ctx := context.Background()
	cache := new(MockSearchCache)
	cache.On("Get", mock.Anything, mock.AnythingOfType("string")).Return([]string{"methylamine"}, true, nil)
	svc, _, _ := newTestService(t, WithSearchCache(cache, 0))
	seed(t, svc, "ethanol", "CCO", "methylamine", "CN")

	res, err := svc.Search(ctx, &SearchInput{Substructure: "C"})
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, []string{"methylamine"}, identifiersOf(res.Matches))
	cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSearch_CacheErrorsDegradeToMiss(t *testing.T) {
	ctx := context.Background()
	cache := new(MockSearchCache)
	cache.On("Get", mock.Anything, mock.Anything).Return(nil, false, fmt.Errorf("connection refused"))
	cache.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(fmt.Errorf("connection refused"))
	svc, _, logger := newTestService(t, WithSearchCache(cache, time.Minute))
	seed(t, svc, "ethanol", "CCO")

	res, err := svc.Search(ctx, &SearchInput{Substructure: "O"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ethanol"}, identifiersOf(res.Matches))
	assert.True(t, logger.HasMessage("warn", "search cache read failed"))
	assert.True(t, logger.HasMessage("warn", "search cache write failed"))
}

func TestSearch_KeyChangesWithVersion(t *testing.T) {
	ctx := context.Background()
	var keys []string
	var mu sync.Mutex
	cache := new(MockSearchCache)
	cache.On("Get", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		mu.Lock()
		defer mu.Unlock()
		keys = append(keys, args.String(1))
	}).Return(nil, false, nil)
	cache.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	svc, _, _ := newTestService(t, WithSearchCache(cache, time.Minute))
	seed(t, svc, "ethanol", "CCO")

	_, err := svc.Search(ctx, &SearchInput{Substructure: "C"})
	require.NoError(t, err)
	seed(t, svc, "methane", "C")
	_, err = svc.Search(ctx, &SearchInput{Substructure: "C"})
	require.NoError(t, err)

	require.Len(t, keys, 2)
	assert.NotEqual(t, keys[0], keys[1])
	assert.True(t, strings.HasPrefix(keys[0], "search:"))
}

// gateCache blocks every Get until release is closed.
type gateCache struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGateCache() *gateCache {
	return &gateCache{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gateCache) Get(ctx context.Context, _ string) ([]string, bool, error) {
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
		return nil, false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (g *gateCache) Set(context.Context, string, []string, time.Duration) error { return nil }

func TestSearch_CancelledCallerDoesNotFailSharedSearch(t *testing.T) {
	cache := newGateCache()
	svc, _, _ := newTestService(t, WithSearchCache(cache, time.Minute))
	seed(t, svc, "ethanol", "CCO", "methylamine", "CN")

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Search(firstCtx, &SearchInput{Substructure: "C"})
		firstErr <- err
	}()

	select {
	case <-cache.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("search never reached the cache")
	}

	type outcome struct {
		res *SearchResult
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		res, err := svc.Search(context.Background(), &SearchInput{Substructure: "C"})
		second <- outcome{res, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		assertAppError(t, err, errors.CodeSearchFailed, "request cancelled")
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled search did not return")
	}

	close(cache.release)
	select {
	case got := <-second:
		require.NoError(t, got.err)
		assert.Equal(t, []string{"ethanol", "methylamine"}, identifiersOf(got.res.Matches))
	case <-time.After(5 * time.Second):
		t.Fatal("second search did not return")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Upload
// ─────────────────────────────────────────────────────────────────────────────

func TestUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		pub := new(MockEventPublisher)
		pub.On("Publish", mock.Anything, domainMol.BatchLoadedEvent{Identifiers: []string{"a", "b"}, Skipped: 1}).Return(nil)
		rec := newRecordingRecorder()
		svc, reg, _ := newTestService(t, WithEventPublisher(pub), WithRecorder(rec))

		res, err := svc.Upload(ctx, strings.NewReader("a:CCO\r\n\r\nb:c1ccccc1\na:CC\n"))
		require.NoError(t, err)
		assert.Equal(t, 2, res.Added)
		assert.Equal(t, 1, res.Skipped)
		assert.Equal(t, 2, reg.Len())
		assert.Equal(t, []string{"accepted"}, rec.uploads)
		pub.AssertExpectations(t)
	})

	t.Run("nothing new publishes nothing", func(t *testing.T) {
		pub := new(MockEventPublisher)
		pub.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()
		svc, _, _ := newTestService(t, WithEventPublisher(pub))
		seed(t, svc, "a", "C")

		res, err := svc.Upload(ctx, strings.NewReader("a:CC\n"))
		require.NoError(t, err)
		assert.Equal(t, 0, res.Added)
		pub.AssertNumberOfCalls(t, "Publish", 1)
	})

	t.Run("format error is atomic", func(t *testing.T) {
		rec := newRecordingRecorder()
		svc, reg, _ := newTestService(t, WithRecorder(rec))

		_, err := svc.Upload(ctx, strings.NewReader("a:CCO\n\nb:not(unbalanced\n"))
		ae := assertAppError(t, err, errors.CodeMoleculeInvalidFormat,
			"Invalid file format. Each line must be 'identifier:SMILES'")
		assert.Contains(t, ae.Detail, "line 3")
		assert.Equal(t, 0, reg.Len())
		assert.Equal(t, []string{"rejected"}, rec.uploads)
	})

	t.Run("line too long", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.Upload(ctx, strings.NewReader("a:"+strings.Repeat("C", 70*1024)))
		assertAppError(t, err, errors.CodeMoleculeInvalidFormat, "")
	})

	t.Run("read failure", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.Upload(ctx, iotest.ErrReader(fmt.Errorf("disk gone")))
		ae := assertAppError(t, err, errors.CodeInternal, "failed to read upload")
		assert.Equal(t, 500, ae.HTTPStatus())
	})
}

func TestTranslate(t *testing.T) {
	t.Parallel()

	assert.Nil(t, translate(nil))
	assert.Equal(t, errors.CodeInternal, errors.GetCode(translate(fmt.Errorf("boom"))))
	assert.Equal(t, errors.CodeSearchFailed, errors.GetCode(translate(context.Canceled)))
	assert.Equal(t, errors.CodeSearchTimeout, errors.GetCode(translate(fmt.Errorf("wrapped: %w", context.DeadlineExceeded))))
}
