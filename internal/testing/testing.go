// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/earbump/internal/models"
	"github.com/desertthunder/earbump/internal/shared"
)

// FakeNetwork is an in-memory test double for [services.Network].
//
// Status probes are scripted per identifier: each call pops the next scripted status and the last one repeats.
type FakeNetwork struct {
	mu sync.Mutex

	resources  map[string][]byte
	statuses   map[string][]models.ResourceStatus
	publishErr map[string]error

	// StatusErr, when set, is returned by every status probe.
	StatusErr error
	// URLErr, when set, is returned by FetchResourceURL.
	URLErr error
	// FetchErr, when set, is returned by FetchResource.
	FetchErr error
	// PublishFunc overrides Publish entirely when set.
	PublishFunc func(resources []models.ResourcePayload) ([]string, error)
	// SearchResults is returned by Search.
	SearchResults []models.ResourceSummary

	published       [][]models.ResourcePayload
	statusCalls     map[string]int
	propertiesCalls map[string]int
	fetchCalls      map[string]int
}

// NewFakeNetwork creates an empty [FakeNetwork].
func NewFakeNetwork() *FakeNetwork {
	return &FakeNetwork{
		resources:       make(map[string][]byte),
		statuses:        make(map[string][]models.ResourceStatus),
		publishErr:      make(map[string]error),
		statusCalls:     make(map[string]int),
		propertiesCalls: make(map[string]int),
		fetchCalls:      make(map[string]int),
	}
}

// SetURLErr changes the error returned by FetchResourceURL while resolvers may be running.
func (f *FakeNetwork) SetURLErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.URLErr = err
}

// Put stores data for ref as if it had been published.
func (f *FakeNetwork) Put(ref models.ResourceRef, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resources[ref.String()] = data
}

// Get returns the stored data for ref.
func (f *FakeNetwork) Get(ref models.ResourceRef) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.resources[ref.String()]
	return data, ok
}

// SetStatuses scripts the status probe responses for identifier.
func (f *FakeNetwork) SetStatuses(identifier string, statuses ...models.ResourceStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[identifier] = statuses
}

// FailPublish makes any bundle containing identifier fail with err.
func (f *FakeNetwork) FailPublish(identifier string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishErr[identifier] = err
}

// Published returns a copy of every accepted publish bundle in call order.
func (f *FakeNetwork) Published() [][]models.ResourcePayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]models.ResourcePayload, len(f.published))
	copy(out, f.published)
	return out
}

// PublishedOf returns the accepted bundles whose first resource has the given service.
func (f *FakeNetwork) PublishedOf(service models.Service) [][]models.ResourcePayload {
	var out [][]models.ResourcePayload
	for _, bundle := range f.Published() {
		if len(bundle) > 0 && bundle[0].Ref.Service == service {
			out = append(out, bundle)
		}
	}
	return out
}

// StatusCalls returns the number of status probes for identifier.
func (f *FakeNetwork) StatusCalls(identifier string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls[identifier]
}

// PropertiesCalls returns the number of refetch nudges for identifier.
func (f *FakeNetwork) PropertiesCalls(identifier string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.propertiesCalls[identifier]
}

// FetchCalls returns the number of resource fetches for identifier.
func (f *FakeNetwork) FetchCalls(identifier string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls[identifier]
}

func (f *FakeNetwork) Publish(ctx context.Context, resources []models.ResourcePayload) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.PublishFunc != nil {
		return f.PublishFunc(resources)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]string, 0, len(resources))
	for _, r := range resources {
		if err, ok := f.publishErr[r.Ref.Identifier]; ok {
			return nil, err
		}
		ids = append(ids, r.Ref.Identifier)
	}
	for _, r := range resources {
		f.resources[r.Ref.String()] = r.Data
	}
	bundle := make([]models.ResourcePayload, len(resources))
	copy(bundle, resources)
	f.published = append(f.published, bundle)
	return ids, nil
}

func (f *FakeNetwork) FetchResource(ctx context.Context, ref models.ResourceRef) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls[ref.Identifier]++
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	data, ok := f.resources[ref.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrResourceNotFound, ref)
	}
	return data, nil
}

func (f *FakeNetwork) FetchResourceStatus(ctx context.Context, ref models.ResourceRef) (*models.ResourceStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls[ref.Identifier]++
	if f.StatusErr != nil {
		return nil, f.StatusErr
	}

	script := f.statuses[ref.Identifier]
	if len(script) == 0 {
		return &models.ResourceStatus{Status: models.NodeStatusNotStarted}, nil
	}
	status := script[0]
	if len(script) > 1 {
		f.statuses[ref.Identifier] = script[1:]
	}
	return &status, nil
}

func (f *FakeNetwork) FetchResourceProperties(ctx context.Context, ref models.ResourceRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.propertiesCalls[ref.Identifier]++
	return nil
}

func (f *FakeNetwork) FetchResourceURL(ctx context.Context, ref models.ResourceRef) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.URLErr != nil {
		return "", f.URLErr
	}
	return "http://node.test/arbitrary/" + ref.String(), nil
}

func (f *FakeNetwork) Search(ctx context.Context, query models.SearchQuery) ([]models.ResourceSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.SearchResults, nil
}

// Percent builds a TRANSFERRING-style status probe with the given percent.
func Percent(p float64) models.ResourceStatus {
	return models.ResourceStatus{Status: models.NodeStatusDownloading, PercentLoaded: &p}
}

// Ready builds a READY status probe.
func Ready() models.ResourceStatus {
	p := 100.0
	return models.ResourceStatus{Status: models.NodeStatusReady, PercentLoaded: &p}
}

// SwitchableIdentity is an [services.Identity] whose name can change mid-test.
type SwitchableIdentity struct {
	mu   sync.Mutex
	name string
}

func NewSwitchableIdentity(name string) *SwitchableIdentity {
	return &SwitchableIdentity{name: name}
}

func (s *SwitchableIdentity) Set(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *SwitchableIdentity) ActiveName(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.name == "" {
		return "", shared.ErrIdentityUnavailable
	}
	return s.name, nil
}

// MustOpenTestDB opens a migrated in-memory database that is closed with the test.
func MustOpenTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

var _ io.ReadCloser = (*FCloser)(nil)

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func MustWriteFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}
