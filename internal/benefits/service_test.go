package benefits

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDay() time.Time {
	return time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
}

func newTestService(t *testing.T, withCache bool) (*Service, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	repo.SeedWorker(Worker{
		RUT:  "12345678-5",
		Name: "Maria Soto",
		Benefit: Benefit{
			Type:    "caja_navidad",
			BoxCode: "CAJA-07",
			Active:  true,
		},
	})
	repo.SeedWorker(Worker{
		RUT:  "11111111-1",
		Name: "Pedro Rojas",
		Benefit: Benefit{
			Type:    "caja_navidad",
			BoxCode: "CAJA-02",
			Active:  false,
		},
	})
	repo.SetStock("caja_navidad", testDay(), 3)

	var c *Cache
	if withCache {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		c = NewCache(client, time.Minute)
	}

	svc := NewService(repo, c, slog.New(slog.NewTextHandler(io.Discard, nil))).WithClock(testDay)
	return svc, repo
}

// ctxCheckRepo fails worker lookups made under a done context, the way a
// pgx call would.
type ctxCheckRepo struct {
	*MemoryRepository
}

func (r *ctxCheckRepo) GetWorker(ctx context.Context, rut string) (*Worker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.MemoryRepository.GetWorker(ctx, rut)
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("benefit with stock", func(t *testing.T) {
		svc, _ := newTestService(t, false)
		elig, err := svc.Resolve(ctx, "12.345.678-5")
		require.NoError(t, err)
		assert.Equal(t, EligibilityWithStock, elig.Status)
		assert.Equal(t, 3, elig.StockRemaining)
		require.NotNil(t, elig.Worker)
		assert.Equal(t, "CAJA-07", elig.Worker.Benefit.BoxCode)
	})

	t.Run("benefit without stock", func(t *testing.T) {
		svc, repo := newTestService(t, false)
		repo.SetStock("caja_navidad", testDay(), 0)
		elig, err := svc.Resolve(ctx, "12345678-5")
		require.NoError(t, err)
		assert.Equal(t, EligibilityWithoutStock, elig.Status)
	})

	t.Run("unknown worker resolves to no benefit", func(t *testing.T) {
		svc, _ := newTestService(t, false)
		elig, err := svc.Resolve(ctx, "5000001-K")
		require.NoError(t, err)
		assert.Equal(t, EligibilityNoBenefit, elig.Status)
		assert.Nil(t, elig.Worker)
	})

	t.Run("inactive benefit resolves to no benefit", func(t *testing.T) {
		svc, _ := newTestService(t, false)
		elig, err := svc.Resolve(ctx, "11111111-1")
		require.NoError(t, err)
		assert.Equal(t, EligibilityNoBenefit, elig.Status)
	})

	t.Run("invalid rut", func(t *testing.T) {
		svc, _ := newTestService(t, false)
		_, err := svc.Resolve(ctx, "12345678-9")
		assert.ErrorIs(t, err, ErrInvalidRUT)
	})

	t.Run("lookup survives caller cancellation", func(t *testing.T) {
		repo := NewMemoryRepository()
		repo.SeedWorker(Worker{
			RUT:  "12345678-5",
			Name: "Maria Soto",
			Benefit: Benefit{
				Type:    "caja_navidad",
				BoxCode: "CAJA-07",
				Active:  true,
			},
		})
		repo.SetStock("caja_navidad", testDay(), 3)
		svc := NewService(&ctxCheckRepo{repo}, nil, slog.New(slog.NewTextHandler(io.Discard, nil))).WithClock(testDay)

		cancelled, cancel := context.WithCancel(context.Background())
		cancel()
		elig, err := svc.Resolve(cancelled, "12345678-5")
		require.NoError(t, err)
		assert.Equal(t, EligibilityWithStock, elig.Status)
	})

	t.Run("resolution has no side effect on stock", func(t *testing.T) {
		svc, repo := newTestService(t, false)
		for i := 0; i < 5; i++ {
			_, err := svc.Resolve(ctx, "12345678-5")
			require.NoError(t, err)
		}
		remaining, err := repo.StockRemaining(ctx, "caja_navidad", testDay())
		require.NoError(t, err)
		assert.Equal(t, 3, remaining)
	})
}

func TestResolveCache(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t, true)

	elig, err := svc.Resolve(ctx, "12345678-5")
	require.NoError(t, err)
	require.Equal(t, EligibilityWithStock, elig.Status)

	// A worker change invisible to the cache: the cached identity is served
	// until the TTL lapses, but stock is always read fresh.
	repo.SetStock("caja_navidad", testDay(), 0)
	elig, err = svc.Resolve(ctx, "12345678-5")
	require.NoError(t, err)
	assert.Equal(t, EligibilityWithoutStock, elig.Status)
	assert.Equal(t, "Maria Soto", elig.Worker.Name)
}
