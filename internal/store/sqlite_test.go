package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pricing-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedFact(t *testing.T, st *SQLiteStore, tenant uuid.UUID, route, season string, date model.Date, econ string) model.PricingFact {
	t.Helper()
	ctx := context.Background()
	routeID, ok, err := st.FindDimension(ctx, model.DimensionRoute, tenant, route)
	require.NoError(t, err)
	if !ok {
		routeID, err = st.CreateDimension(ctx, model.DimensionRoute, tenant, route)
		require.NoError(t, err)
	}
	seasonID, ok, err := st.FindDimension(ctx, model.DimensionSeason, tenant, season)
	require.NoError(t, err)
	if !ok {
		seasonID, err = st.CreateDimension(ctx, model.DimensionSeason, tenant, season)
		require.NoError(t, err)
	}
	return model.PricingFact{
		TenantID:      tenant,
		RouteID:       routeID,
		SeasonID:      seasonID,
		Date:          date,
		EconomyPrice:  decimal.RequireFromString(econ),
		BusinessPrice: decimal.RequireFromString("999.99"),
		EconomySeats:  150,
		BusinessSeats: 20,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestSQLite_Dimension_CreateAndFind(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	tenant := uuid.New()

	_, ok, err := st.FindDimension(ctx, model.DimensionRoute, tenant, "FRA-JFK")
	require.NoError(t, err)
	assert.False(t, ok)

	id, err := st.CreateDimension(ctx, model.DimensionRoute, tenant, "FRA-JFK")
	require.NoError(t, err)

	got, ok, err := st.FindDimension(ctx, model.DimensionRoute, tenant, "FRA-JFK")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id, got)

	// Same code in the other dimension and for another tenant is independent.
	_, ok, err = st.FindDimension(ctx, model.DimensionSeason, tenant, "FRA-JFK")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = st.FindDimension(ctx, model.DimensionRoute, uuid.New(), "FRA-JFK")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLite_Dimension_DuplicateCode(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	tenant := uuid.New()

	_, err := st.CreateDimension(ctx, model.DimensionSeason, tenant, "S25")
	require.NoError(t, err)

	_, err = st.CreateDimension(ctx, model.DimensionSeason, tenant, "S25")
	require.Error(t, err)
	assert.True(t, IsDuplicateKey(err))
}

func TestSQLite_InsertBatch_AtomicOnDuplicate(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	tenant := uuid.New()

	a := seedFact(t, st, tenant, "FRA-JFK", "S25", model.NewDate(2025, 6, 1), "100.50")
	b := seedFact(t, st, tenant, "FRA-JFK", "S25", model.NewDate(2025, 6, 2), "110")

	n, err := st.InsertBatch(ctx, []model.PricingFact{a})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// b is new but a collides: nothing from this batch may land.
	_, err = st.InsertBatch(ctx, []model.PricingFact{b, a})
	require.Error(t, err)
	assert.True(t, IsDuplicateKey(err))

	total, err := st.CountFacts(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestSQLite_InsertOne_FindUpdate(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	tenant := uuid.New()
	f := seedFact(t, st, tenant, "MUC-LHR", "W25", model.NewDate(2025, 12, 24), "79.90")

	missing, err := st.FindByKey(ctx, f.Key())
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, st.InsertOne(ctx, f))
	err = st.InsertOne(ctx, f)
	require.Error(t, err)
	assert.True(t, IsDuplicateKey(err))

	found, err := st.FindByKey(ctx, f.Key())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, decimal.RequireFromString("79.90").Equal(found.EconomyPrice))
	assert.Equal(t, f.Date, found.Date)

	f.EconomyPrice = decimal.RequireFromString("89.90")
	f.EconomySeats = 7
	require.NoError(t, st.UpdateOne(ctx, f))

	found, err = st.FindByKey(ctx, f.Key())
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("89.90").Equal(found.EconomyPrice))
	assert.Equal(t, 7, found.EconomySeats)

	other := f
	other.Date = model.NewDate(2030, 1, 1)
	err = st.UpdateOne(ctx, other)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ListFacts_OrderAndPaging(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	tenant := uuid.New()

	var facts []model.PricingFact
	for _, day := range []int{5, 1, 3, 2, 4} {
		facts = append(facts, seedFact(t, st, tenant, "FRA-JFK", "S25", model.NewDate(2025, 7, day), "100"))
	}
	_, err := st.InsertBatch(ctx, facts)
	require.NoError(t, err)

	// Another tenant's data never leaks in.
	_, err = st.InsertBatch(ctx, []model.PricingFact{seedFact(t, st, uuid.New(), "X", "Y", model.NewDate(2025, 1, 1), "1")})
	require.NoError(t, err)

	page, err := st.ListFacts(ctx, tenant, 0, 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "2025-07-01", page[0].Date.String())
	assert.Equal(t, "2025-07-03", page[2].Date.String())
	assert.Equal(t, "FRA-JFK", page[0].RouteCode)
	assert.Equal(t, "S25", page[0].SeasonCode)

	page, err = st.ListFacts(ctx, tenant, 3, 3)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "2025-07-05", page[1].Date.String())

	total, err := st.CountFacts(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
}

func TestSQLite_ConcurrentCreateDimension(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	tenant := uuid.New()

	var wg sync.WaitGroup
	var mu sync.Mutex
	created, dups := 0, 0
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.CreateDimension(ctx, model.DimensionRoute, tenant, "ZRH-SFO")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				created++
			} else if IsDuplicateKey(err) {
				dups++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
	assert.Equal(t, 7, dups)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}

func TestOpen_SQLite(t *testing.T) {
	st, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "open.db"), nil)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Ping(context.Background()))
}
