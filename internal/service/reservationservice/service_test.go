package reservationservice_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotstock/internal/domain"
	apperror "lotstock/internal/errors"
	"lotstock/internal/pkg/logger"
	"lotstock/internal/repository/memrepo"
	"lotstock/internal/service/ledgerservice"
	"lotstock/internal/service/queryservice"
	"lotstock/internal/service/reservationservice"
)

const variantID = "variant-assam"

type fixture struct {
	repo    *memrepo.Repository
	engine  *reservationservice.Service
	queries *queryservice.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewNop()
	repo := memrepo.New()
	ledger := ledgerservice.NewService(log)
	queries := queryservice.NewService(repo, ledger, nil, 0, log)
	engine := reservationservice.NewService(repo, ledger, queries, 3, time.Millisecond, log)
	return &fixture{repo: repo, engine: engine, queries: queries}
}

// addLot cria um lote com best-before em `day` dias a partir de hoje.
func (f *fixture) addLot(t *testing.T, id string, day, qty int) {
	t.Helper()
	_, err := f.repo.InsertLot(context.Background(), domain.Lot{
		ID:           id,
		VariantID:    variantID,
		BatchCode:    "B-" + id,
		OriginEstate: "Halmari",
		BestBefore:   time.Now().AddDate(0, 0, day),
		QtyAvailable: qty,
	})
	require.NoError(t, err)
}

func (f *fixture) stock(t *testing.T) domain.StockInfo {
	t.Helper()
	info, err := f.queries.GetStockInfo(context.Background(), variantID)
	require.NoError(t, err)
	return info
}

func (f *fixture) lot(t *testing.T, id string) domain.Lot {
	t.Helper()
	lot, err := f.repo.GetLot(context.Background(), id)
	require.NoError(t, err)
	return lot
}

func (f *fixture) ledgerSize(t *testing.T) int {
	t.Helper()
	history, err := f.repo.ListLedger(context.Background(), variantID, 1000)
	require.NoError(t, err)
	return len(history)
}

func reserve(qty int, ref string) domain.ReserveRequest {
	return domain.ReserveRequest{VariantID: variantID, Quantity: qty, RefID: ref}
}

func settle(ref string, lots []domain.LotAllocation) domain.SettleRequest {
	return domain.SettleRequest{VariantID: variantID, RefID: ref, Lots: lots}
}

func sumAllocations(lots []domain.LotAllocation) int {
	total := 0
	for _, l := range lots {
		total += l.Quantity
	}
	return total
}

func TestReserve_SingleLotThenConfirm(t *testing.T) {
	f := newFixture(t)
	f.addLot(t, "lot", 30, 10)
	ctx := context.Background()

	res, err := f.engine.Reserve(ctx, reserve(7, "order-1"))

	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, []domain.LotAllocation{{LotID: "lot", Quantity: 7}}, res.ReservedLots)
	assert.Equal(t, 3, f.stock(t).AvailableStock)

	reservation, err := f.engine.ConfirmAllocation(ctx, settle("order-1", res.ReservedLots))

	require.NoError(t, err)
	assert.Equal(t, domain.ReservationConfirmed, reservation.Status)
	info := f.stock(t)
	assert.Equal(t, 3, info.TotalStock)
	assert.Equal(t, 0, info.ReservedStock)
}

func TestReserve_SpansLotsFreshnessFirst(t *testing.T) {
	f := newFixture(t)
	f.addLot(t, "lot2", 10, 3)
	f.addLot(t, "lot1", 2, 3)

	res, err := f.engine.Reserve(context.Background(), reserve(5, "order-1"))

	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, []domain.LotAllocation{{LotID: "lot1", Quantity: 3}, {LotID: "lot2", Quantity: 2}}, res.ReservedLots)
	assert.Equal(t, 1, f.stock(t).AvailableStock)
}

func TestReserve_FIFOExhaustsOldestFirst(t *testing.T) {
	f := newFixture(t)
	f.addLot(t, "L1", 1, 5)
	f.addLot(t, "L2", 10, 5)

	res, err := f.engine.Reserve(context.Background(), reserve(8, "order-1"))

	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, 0, f.lot(t, "L1").QtyAvailable)
	assert.Equal(t, 5, f.lot(t, "L1").QtyReserved)
	assert.Equal(t, 2, f.lot(t, "L2").QtyAvailable)
	assert.Equal(t, 3, f.lot(t, "L2").QtyReserved)
}

func TestReserve_ShortfallRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	f.addLot(t, "a", 1, 2)
	f.addLot(t, "b", 5, 4)
	before := f.ledgerSize(t)

	res, err := f.engine.Reserve(context.Background(), reserve(10, "order-1"))

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Empty(t, res.ReservedLots)
	assert.Equal(t, 4, res.Shortfall)
	info := f.stock(t)
	assert.Equal(t, 6, info.AvailableStock)
	assert.Equal(t, 0, info.ReservedStock)
	assert.Equal(t, before, f.ledgerSize(t), "nenhuma entrada de ledger pode sobreviver à reserva recusada")

	_, err = f.repo.GetReservation(context.Background(), variantID, "order-1")
	assert.IsType(t, &apperror.NotFoundError{}, err)
}

func TestReserve_PinnedLotHasNoFallback(t *testing.T) {
	f := newFixture(t)
	f.addLot(t, "old", 1, 10)
	f.addLot(t, "pinned", 20, 3)
	pinned := "pinned"

	res, err := f.engine.Reserve(context.Background(), domain.ReserveRequest{
		VariantID: variantID, Quantity: 4, LotID: &pinned, RefID: "b2b-1",
	})

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Shortfall)
	assert.Equal(t, 10, f.lot(t, "old").QtyAvailable)
	assert.Equal(t, 3, f.lot(t, "pinned").QtyAvailable)

	res, err = f.engine.Reserve(context.Background(), domain.ReserveRequest{
		VariantID: variantID, Quantity: 3, LotID: &pinned, RefID: "b2b-2",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []domain.LotAllocation{{LotID: "pinned", Quantity: 3}}, res.ReservedLots)
}

func TestReserve_PinnedInactiveLotIsRefused(t *testing.T) {
	f := newFixture(t)
	f.addLot(t, "lot", 10, 10)
	_, err := f.repo.TransitionStatus(context.Background(), "lot", domain.LotStatusActive, domain.LotStatusBlocked)
	require.NoError(t, err)
	pinned := "lot"

	res, err := f.engine.Reserve(context.Background(), domain.ReserveRequest{
		VariantID: variantID, Quantity: 1, LotID: &pinned, RefID: "order-1",
	})

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "BLOCKED")
}

func TestReserve_SkipsInactiveLots(t *testing.T) {
	f := newFixture(t)
	f.addLot(t, "blocked", 1, 10)
	f.addLot(t, "active", 9, 10)
	_, err := f.repo.TransitionStatus(context.Background(), "blocked", domain.LotStatusActive, domain.LotStatusQuarantine)
	require.NoError(t, err)

	res, err := f.engine.Reserve(context.Background(), reserve(4, "order-1"))

	require.NoError(t, err)
	assert.Equal(t, []domain.LotAllocation{{LotID: "active", Quantity: 4}}, res.ReservedLots)
}

func TestReserve_Validation(t *testing.T) {
	f := newFixture(t)
	empty := ""

	cases := map[string]domain.ReserveRequest{
		"zero quantity":   reserve(0, "order-1"),
		"missing ref":     reserve(1, ""),
		"missing variant": {Quantity: 1, RefID: "x"},
		"empty pin":       {VariantID: variantID, Quantity: 1, RefID: "x", LotID: &empty},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.engine.Reserve(context.Background(), req)
			assert.IsType(t, &apperror.ValidationError{}, err)
		})
	}
}

func TestReserve_SameRefIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.addLot(t, "lot", 10, 10)
	ctx := context.Background()

	first, err := f.engine.Reserve(ctx, reserve(4, "order-1"))
	require.NoError(t, err)
	second, err := f.engine.Reserve(ctx, reserve(4, "order-1"))
	require.NoError(t, err)

	assert.Equal(t, first.ReservedLots, second.ReservedLots)
	assert.Equal(t, 6, f.stock(t).AvailableStock)

	_, err = f.engine.Reserve(ctx, reserve(5, "order-1"))
	assert.IsType(t, &apperror.ValidationError{}, err)
}

func TestReserve_RetriesConcurrencyConflict(t *testing.T) {
	f := newFixture(t)
	f.addLot(t, "a", 1, 2)
	f.addLot(t, "b", 2, 5)
	f.repo.InjectConflicts(2)

	res, err := f.engine.Reserve(context.Background(), reserve(4, "order-1"))

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 4, sumAllocations(res.ReservedLots))
	assert.Equal(t, 3, f.stock(t).AvailableStock)
}

func TestReserve_SurfacesConflictAfterRetries(t *testing.T) {
	f := newFixture(t)
	f.addLot(t, "a", 1, 5)
	f.repo.InjectConflicts(10)

	_, err := f.engine.Reserve(context.Background(), reserve(1, "order-1"))

	assert.IsType(t, &apperror.ConflictError{}, err)
	assert.Equal(t, 5, f.lot(t, "a").QtyAvailable)
}

func TestRelease_RestoresStockAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.addLot(t, "a", 1, 3)
	f.addLot(t, "b", 4, 6)
	ctx := context.Background()
	before := f.stock(t)

	res, err := f.engine.Reserve(ctx, reserve(7, "order-1"))
	require.NoError(t, err)
	require.True(t, res.Success)

	released, err := f.engine.Release(ctx, settle("order-1", res.ReservedLots))
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationReleased, released.Status)

	after := f.stock(t)
	assert.Equal(t, before.AvailableStock, after.AvailableStock)
	assert.Equal(t, 0, after.ReservedStock)

	_, err = f.engine.Release(ctx, settle("order-1", res.ReservedLots))
	assert.IsType(t, &apperror.AlreadyReleasedError{}, err)
	assert.Equal(t, before.AvailableStock, f.stock(t).AvailableStock)
}

func TestRelease_WritesReleasedLedgerEntries(t *testing.T) {
	f := newFixture(t)
	f.addLot(t, "a", 1, 5)
	ctx := context.Background()

	res, err := f.engine.Reserve(ctx, reserve(2, "order-1"))
	require.NoError(t, err)
	_, err = f.engine.Release(ctx, settle("order-1", res.ReservedLots))
	require.NoError(t, err)

	history, err := f.queries.GetInventoryHistory(ctx, variantID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.ChangeIn, history[0].ChangeType)
	assert.Equal(t, "released", history[0].Reason)
	assert.Equal(t, domain.ChangeOut, history[1].ChangeType)
	assert.Equal(t, "order-1", history[1].Reason)
}

func TestRelease_UnknownTokenOrLot(t *testing.T) {
	f := newFixture(t)
	f.addLot(t, "a", 1, 5)
	ctx := context.Background()

	_, err := f.engine.Release(ctx, settle("nope", []domain.LotAllocation{{LotID: "a", Quantity: 1}}))
	assert.IsType(t, &apperror.NotFoundError{}, err)

	_, err = f.engine.Reserve(ctx, reserve(2, "order-1"))
	require.NoError(t, err)
	_, err = f.engine.Release(ctx, settle("order-1", []domain.LotAllocation{{LotID: "other", Quantity: 1}}))
	assert.IsType(t, &apperror.NotFoundError{}, err)
	assert.Equal(t, 2, f.lot(t, "a").QtyReserved)
}

func TestRelease_BoundedByToken(t *testing.T) {
	f := newFixture(t)
	f.addLot(t, "a", 1, 10)
	ctx := context.Background()

	_, err := f.engine.Reserve(ctx, reserve(3, "order-1"))
	require.NoError(t, err)

	_, err = f.engine.Release(ctx, settle("order-1", []domain.LotAllocation{{LotID: "a", Quantity: 50}}))
	require.NoError(t, err)

	lot := f.lot(t, "a")
	assert.Equal(t, 10, lot.QtyAvailable)
	assert.Equal(t, 0, lot.QtyReserved)
}

func TestConfirm_PartialThenRelease(t *testing.T) {
	f := newFixture(t)
	f.addLot(t, "a", 1, 10)
	ctx := context.Background()

	_, err := f.engine.Reserve(ctx, reserve(6, "order-1"))
	require.NoError(t, err)

	res, err := f.engine.ConfirmAllocation(ctx, settle("order-1", []domain.LotAllocation{{LotID: "a", Quantity: 4}}))
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationHeld, res.Status)
	assert.Equal(t, 2, res.RemainingTotal())

	res, err = f.engine.Release(ctx, settle("order-1", []domain.LotAllocation{{LotID: "a", Quantity: 6}}))
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationReleased, res.Status)

	lot := f.lot(t, "a")
	assert.Equal(t, 6, lot.QtyAvailable)
	assert.Equal(t, 0, lot.QtyReserved)
}

func TestConfirm_OverConfirm(t *testing.T) {
	f := newFixture(t)
	f.addLot(t, "a", 1, 10)
	ctx := context.Background()

	_, err := f.engine.Reserve(ctx, reserve(3, "order-1"))
	require.NoError(t, err)

	_, err = f.engine.ConfirmAllocation(ctx, settle("order-1", []domain.LotAllocation{{LotID: "a", Quantity: 4}}))

	var over *apperror.OverConfirmError
	require.ErrorAs(t, err, &over)
	assert.Equal(t, 3, over.Remaining)
	info := f.stock(t)
	assert.Equal(t, 10, info.TotalStock)
	assert.Equal(t, 3, info.ReservedStock)

	// Confirmar de novo um token já confirmado também excede o reservado.
	_, err = f.engine.ConfirmAllocation(ctx, settle("order-1", []domain.LotAllocation{{LotID: "a", Quantity: 3}}))
	require.NoError(t, err)
	_, err = f.engine.ConfirmAllocation(ctx, settle("order-1", []domain.LotAllocation{{LotID: "a", Quantity: 1}}))
	assert.IsType(t, &apperror.OverConfirmError{}, err)
	assert.Equal(t, 7, f.stock(t).TotalStock)
}

func TestConfirm_AfterReleaseFails(t *testing.T) {
	f := newFixture(t)
	f.addLot(t, "a", 1, 10)
	ctx := context.Background()

	res, err := f.engine.Reserve(ctx, reserve(3, "order-1"))
	require.NoError(t, err)
	_, err = f.engine.Release(ctx, settle("order-1", res.ReservedLots))
	require.NoError(t, err)

	_, err = f.engine.ConfirmAllocation(ctx, settle("order-1", res.ReservedLots))

	assert.IsType(t, &apperror.AlreadyReleasedError{}, err)
	assert.Equal(t, 10, f.stock(t).AvailableStock)
}

func TestReserve_ConcurrentCallersNeverOversell(t *testing.T) {
	f := newFixture(t)
	f.addLot(t, "a", 1, 20)
	f.addLot(t, "b", 3, 20)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.engine.Reserve(ctx, reserve(3, fmt.Sprintf("order-%d", i)))
			if err != nil || !res.Success {
				return
			}
			mu.Lock()
			granted += sumAllocations(res.ReservedLots)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	info := f.stock(t)
	assert.Equal(t, 39, granted)
	assert.Equal(t, granted, info.ReservedStock)
	assert.Equal(t, 40-granted, info.AvailableStock)
	for _, lot := range info.Lots {
		assert.GreaterOrEqual(t, lot.QtyAvailable, 0)
		assert.GreaterOrEqual(t, lot.QtyReserved, 0)
	}
}

func TestReserve_LedgerReconstructsLotState(t *testing.T) {
	f := newFixture(t)
	f.addLot(t, "a", 1, 0)
	ctx := context.Background()
	ledger := ledgerservice.NewService(logger.NewNop())

	// Recebimento registrado no ledger como o stockservice faz.
	_, err := f.repo.MoveQuantity(ctx, ledger.NewMove(ledgerservice.Event{
		VariantID: variantID, LotID: "a", ChangeType: domain.ChangeIn, RefType: domain.RefAdmin,
		Quantity: 10, AvailableDelta: 10,
	}, true))
	require.NoError(t, err)

	res, err := f.engine.Reserve(ctx, reserve(6, "order-1"))
	require.NoError(t, err)
	_, err = f.engine.ConfirmAllocation(ctx, settle("order-1", []domain.LotAllocation{{LotID: "a", Quantity: 2}}))
	require.NoError(t, err)
	_, err = f.engine.Release(ctx, settle("order-1", res.ReservedLots))
	require.NoError(t, err)

	rec, err := ledger.ReconcileLot(ctx, f.repo, "a")
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
	assert.Equal(t, 8, rec.Reconstructed.Available)
	assert.Equal(t, 0, rec.Reconstructed.Reserved)
}

// expiringRepo expira lotID na primeira movimentação dele, como se outra transação
// tivesse mudado o status entre a listagem dos lotes e o UPDATE condicional.
type expiringRepo struct {
	*memrepo.Repository
	lotID   string
	fired   bool
	applied bool
}

type expiringStore struct {
	domain.LotStore
	repo *expiringRepo
}

func (s *expiringStore) MoveQuantity(ctx context.Context, move domain.QuantityMove) (domain.Lot, error) {
	if move.LotID == s.repo.lotID && !s.repo.fired {
		s.repo.fired = true
		if _, err := s.LotStore.TransitionStatus(ctx, move.LotID, domain.LotStatusActive, domain.LotStatusExpired); err != nil {
			return domain.Lot{}, err
		}
	}
	return s.LotStore.MoveQuantity(ctx, move)
}

func (r *expiringRepo) WithinTx(ctx context.Context, fn func(ctx context.Context, store domain.LotStore) error) error {
	err := r.Repository.WithinTx(ctx, func(ctx context.Context, store domain.LotStore) error {
		return fn(ctx, &expiringStore{LotStore: store, repo: r})
	})
	// a mudança concorrente sobrevive ao rollback da reserva
	if r.fired && !r.applied {
		r.applied = true
		if _, terr := r.Repository.TransitionStatus(ctx, r.lotID, domain.LotStatusActive, domain.LotStatusExpired); terr != nil {
			return terr
		}
	}
	return err
}

func newExpiringFixture(t *testing.T, lotID string) (*fixture, *expiringRepo) {
	t.Helper()
	log := logger.NewNop()
	inner := memrepo.New()
	repo := &expiringRepo{Repository: inner, lotID: lotID}
	ledger := ledgerservice.NewService(log)
	queries := queryservice.NewService(inner, ledger, nil, 0, log)
	engine := reservationservice.NewService(repo, ledger, queries, 3, time.Millisecond, log)
	return &fixture{repo: inner, engine: engine, queries: queries}, repo
}

func TestReserve_LotExpiredMidCallFallsBackToOtherLots(t *testing.T) {
	f, repo := newExpiringFixture(t, "old")
	f.addLot(t, "old", 1, 5)
	f.addLot(t, "new", 30, 10)

	res, err := f.engine.Reserve(context.Background(), reserve(4, "order-1"))

	require.NoError(t, err)
	require.True(t, res.Success)
	assert.True(t, repo.fired)
	assert.Equal(t, []domain.LotAllocation{{LotID: "new", Quantity: 4}}, res.ReservedLots)

	old := f.lot(t, "old")
	assert.Equal(t, domain.LotStatusExpired, old.Status)
	assert.Equal(t, 5, old.QtyAvailable)
	assert.Equal(t, 0, old.QtyReserved)
	assert.Equal(t, 6, f.lot(t, "new").QtyAvailable)
}

func TestReserve_PinnedLotExpiredMidCallIsStructuredFailure(t *testing.T) {
	f, _ := newExpiringFixture(t, "old")
	f.addLot(t, "old", 1, 5)
	f.addLot(t, "new", 30, 10)
	pinned := "old"

	res, err := f.engine.Reserve(context.Background(), domain.ReserveRequest{
		VariantID: variantID, Quantity: 2, RefID: "order-1", LotID: &pinned,
	})

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 2, res.Shortfall)
	assert.Empty(t, res.ReservedLots)
	assert.Equal(t, 10, f.lot(t, "new").QtyAvailable)
}

func TestRelease_SubsetTwiceFailsWithAlreadyReleased(t *testing.T) {
	f := newFixture(t)
	f.addLot(t, "a", 1, 3)
	f.addLot(t, "b", 4, 4)
	ctx := context.Background()

	res, err := f.engine.Reserve(ctx, reserve(7, "order-1"))
	require.NoError(t, err)
	require.True(t, res.Success)

	partial := []domain.LotAllocation{{LotID: "a", Quantity: 3}}
	first, err := f.engine.Release(ctx, settle("order-1", partial))
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationHeld, first.Status)
	assert.Equal(t, 3, f.stock(t).AvailableStock)

	_, err = f.engine.Release(ctx, settle("order-1", partial))
	assert.IsType(t, &apperror.AlreadyReleasedError{}, err)
	assert.Equal(t, 3, f.stock(t).AvailableStock)

	// o restante do token continua liberável
	rest, err := f.engine.Release(ctx, settle("order-1", []domain.LotAllocation{{LotID: "b", Quantity: 4}}))
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationReleased, rest.Status)
	assert.Equal(t, 7, f.stock(t).AvailableStock)
}

func TestReserve_ReleasedRefCanReserveAgain(t *testing.T) {
	f := newFixture(t)
	f.addLot(t, "a", 1, 3)
	f.addLot(t, "b", 4, 6)
	ctx := context.Background()

	first, err := f.engine.Reserve(ctx, reserve(2, "order-1"))
	require.NoError(t, err)
	_, err = f.engine.Release(ctx, settle("order-1", first.ReservedLots))
	require.NoError(t, err)

	again, err := f.engine.Reserve(ctx, reserve(5, "order-1"))
	require.NoError(t, err)
	require.True(t, again.Success)
	assert.Equal(t, []domain.LotAllocation{{LotID: "a", Quantity: 3}, {LotID: "b", Quantity: 2}}, again.ReservedLots)
	assert.Equal(t, 4, f.stock(t).AvailableStock)

	confirmed, err := f.engine.ConfirmAllocation(ctx, settle("order-1", again.ReservedLots))
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationConfirmed, confirmed.Status)

	_, err = f.engine.Reserve(ctx, reserve(1, "order-1"))
	assert.IsType(t, &apperror.ValidationError{}, err)
}
