package ingest

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/sells-group/pricing-cli/internal/model"
)

// mockStore implements Store with testify expectations.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) FindDimension(ctx context.Context, dim model.Dimension, tenantID uuid.UUID, code string) (uuid.UUID, bool, error) {
	args := m.Called(ctx, dim, tenantID, code)
	return args.Get(0).(uuid.UUID), args.Bool(1), args.Error(2)
}

func (m *mockStore) CreateDimension(ctx context.Context, dim model.Dimension, tenantID uuid.UUID, code string) (uuid.UUID, error) {
	args := m.Called(ctx, dim, tenantID, code)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *mockStore) InsertBatch(ctx context.Context, facts []model.PricingFact) (int, error) {
	args := m.Called(ctx, facts)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) InsertOne(ctx context.Context, fact model.PricingFact) error {
	return m.Called(ctx, fact).Error(0)
}

func (m *mockStore) FindByKey(ctx context.Context, key model.FactKey) (*model.PricingFact, error) {
	args := m.Called(ctx, key)
	f, _ := args.Get(0).(*model.PricingFact)
	return f, args.Error(1)
}

func (m *mockStore) UpdateOne(ctx context.Context, fact model.PricingFact) error {
	return m.Called(ctx, fact).Error(0)
}

// mockBumper records generation bumps.
type mockBumper struct {
	mu      sync.Mutex
	tenants []uuid.UUID
	err     error
}

func (b *mockBumper) Bump(_ context.Context, tenantID uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tenants = append(b.tenants, tenantID)
	return b.err
}

func (b *mockBumper) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.tenants)
}

// recordingReporter keeps every event; failOn makes a stage return err.
type recordingReporter struct {
	events []model.ProgressEvent
	failOn model.Stage
	err    error
}

func (r *recordingReporter) Report(_ context.Context, _ string, ev model.ProgressEvent) error {
	r.events = append(r.events, ev)
	if r.failOn != "" && ev.Stage == r.failOn {
		return r.err
	}
	return nil
}

func (r *recordingReporter) stages() []model.Stage {
	out := make([]model.Stage, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Stage
	}
	return out
}
