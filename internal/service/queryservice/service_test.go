package queryservice_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotstock/internal/domain"
	apperror "lotstock/internal/errors"
	"lotstock/internal/pkg/cache"
	"lotstock/internal/pkg/logger"
	"lotstock/internal/repository/memrepo"
	"lotstock/internal/service/ledgerservice"
	"lotstock/internal/service/queryservice"
)

const variantID = "variant-darjeeling"

func seedLot(t *testing.T, repo *memrepo.Repository, id string, bestBeforeDays, available, reserved int, status domain.LotStatus) domain.Lot {
	t.Helper()
	lot, err := repo.InsertLot(context.Background(), domain.Lot{
		ID:           id,
		VariantID:    variantID,
		BatchCode:    "B-" + id,
		OriginEstate: "Makaibari",
		HarvestedOn:  time.Now().AddDate(0, -2, 0),
		BestBefore:   time.Now().AddDate(0, 0, bestBeforeDays),
		Status:       status,
		QtyAvailable: available,
		QtyReserved:  reserved,
	})
	require.NoError(t, err)
	return lot
}

func newService(repo *memrepo.Repository, c cache.Client) *queryservice.Service {
	log := logger.NewNop()
	return queryservice.NewService(repo, ledgerservice.NewService(log), c, time.Minute, log)
}

func TestGetStockInfo_AggregatesActiveLotsByBestBefore(t *testing.T) {
	repo := memrepo.New()
	seedLot(t, repo, "late", 30, 4, 1, domain.LotStatusActive)
	seedLot(t, repo, "early", 5, 6, 2, domain.LotStatusActive)
	seedLot(t, repo, "blocked", 1, 100, 0, domain.LotStatusBlocked)

	svc := newService(repo, nil)
	info, err := svc.GetStockInfo(context.Background(), variantID)

	require.NoError(t, err)
	assert.Equal(t, 10, info.AvailableStock)
	assert.Equal(t, 3, info.ReservedStock)
	assert.Equal(t, 13, info.TotalStock)
	require.Len(t, info.Lots, 2)
	assert.Equal(t, "early", info.Lots[0].ID)
	assert.Equal(t, "late", info.Lots[1].ID)
}

func TestGetStockInfo_UnknownVariant(t *testing.T) {
	svc := newService(memrepo.New(), nil)

	_, err := svc.GetStockInfo(context.Background(), "missing")

	assert.IsType(t, &apperror.NotFoundError{}, err)
}

func TestGetStockInfo_NoActiveLotsIsZeroSummary(t *testing.T) {
	repo := memrepo.New()
	seedLot(t, repo, "expired", -3, 8, 0, domain.LotStatusExpired)
	seedLot(t, repo, "blocked", 10, 2, 1, domain.LotStatusBlocked)

	info, err := newService(repo, nil).GetStockInfo(context.Background(), variantID)

	require.NoError(t, err)
	assert.Equal(t, variantID, info.VariantID)
	assert.Zero(t, info.AvailableStock)
	assert.Zero(t, info.ReservedStock)
	assert.Zero(t, info.TotalStock)
	assert.Empty(t, info.Lots)
}

func TestGetStockInfo_ServesFromCacheUntilInvalidated(t *testing.T) {
	repo := memrepo.New()
	seedLot(t, repo, "lot-1", 10, 5, 0, domain.LotStatusActive)
	c := cache.NewMemoryClient()
	svc := newService(repo, c)
	ctx := context.Background()

	first, err := svc.GetStockInfo(ctx, variantID)
	require.NoError(t, err)
	assert.Equal(t, 5, first.AvailableStock)

	// Mudança direta no repositório: o cache ainda responde o valor antigo.
	_, err = repo.MoveQuantity(ctx, domain.QuantityMove{LotID: "lot-1", AvailableDelta: -2, ReservedDelta: 2, RequireActive: true})
	require.NoError(t, err)

	cached, err := svc.GetStockInfo(ctx, variantID)
	require.NoError(t, err)
	assert.Equal(t, 5, cached.AvailableStock)

	svc.Invalidate(ctx, variantID)

	fresh, err := svc.GetStockInfo(ctx, variantID)
	require.NoError(t, err)
	assert.Equal(t, 3, fresh.AvailableStock)
	assert.Equal(t, 2, fresh.ReservedStock)
}

func TestCheckAvailability(t *testing.T) {
	repo := memrepo.New()
	seedLot(t, repo, "lot-1", 10, 4, 0, domain.LotStatusActive)
	seedLot(t, repo, "lot-2", 20, 2, 0, domain.LotStatusActive)
	seedLot(t, repo, "lot-q", 5, 50, 0, domain.LotStatusQuarantine)
	svc := newService(repo, nil)
	ctx := context.Background()

	t.Run("total across active lots", func(t *testing.T) {
		res, err := svc.CheckAvailability(ctx, variantID, 6, "")
		require.NoError(t, err)
		assert.True(t, res.Available)
		assert.Equal(t, 6, res.AvailableQuantity)
	})

	t.Run("shortfall message", func(t *testing.T) {
		res, err := svc.CheckAvailability(ctx, variantID, 7, "")
		require.NoError(t, err)
		assert.False(t, res.Available)
		assert.Equal(t, 6, res.AvailableQuantity)
		assert.Contains(t, res.Message, "disponível 6")
	})

	t.Run("pinned lot only", func(t *testing.T) {
		res, err := svc.CheckAvailability(ctx, variantID, 3, "lot-2")
		require.NoError(t, err)
		assert.False(t, res.Available)
		assert.Equal(t, 2, res.AvailableQuantity)
	})

	t.Run("pinned lot must be active", func(t *testing.T) {
		res, err := svc.CheckAvailability(ctx, variantID, 1, "lot-q")
		require.NoError(t, err)
		assert.False(t, res.Available)
		assert.Contains(t, res.Message, "QUARANTINE")
	})

	t.Run("unknown lot", func(t *testing.T) {
		_, err := svc.CheckAvailability(ctx, variantID, 1, "nope")
		assert.IsType(t, &apperror.NotFoundError{}, err)
	})

	t.Run("non positive quantity", func(t *testing.T) {
		_, err := svc.CheckAvailability(ctx, variantID, 0, "")
		assert.IsType(t, &apperror.ValidationError{}, err)
	})

	t.Run("variant without lots", func(t *testing.T) {
		res, err := svc.CheckAvailability(ctx, "other", 1, "")
		require.NoError(t, err)
		assert.False(t, res.Available)
		assert.Equal(t, 0, res.AvailableQuantity)
	})
}

func TestGetInventoryHistory_NewestFirstWithLotData(t *testing.T) {
	repo := memrepo.New()
	seedLot(t, repo, "lot-1", 10, 10, 0, domain.LotStatusActive)
	ctx := context.Background()
	ledger := ledgerservice.NewService(logger.NewNop())

	for _, reason := range []string{"first", "second", "third"} {
		_, err := repo.MoveQuantity(ctx, ledger.NewMove(ledgerservice.Event{
			VariantID:      variantID,
			LotID:          "lot-1",
			ChangeType:     domain.ChangeOut,
			RefType:        domain.RefOrder,
			Quantity:       1,
			Reason:         reason,
			AvailableDelta: -1,
			ReservedDelta:  1,
		}, true))
		require.NoError(t, err)
	}

	svc := newService(repo, nil)
	history, err := svc.GetInventoryHistory(ctx, variantID, 2)

	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "third", history[0].Reason)
	assert.Equal(t, "second", history[1].Reason)
	assert.Equal(t, "B-lot-1", history[0].BatchCode)
	assert.Equal(t, "Makaibari", history[0].OriginEstate)
}
