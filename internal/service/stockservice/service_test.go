package stockservice_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"lotstock/internal/domain"
	apperror "lotstock/internal/errors"
	"lotstock/internal/pkg/logger"
	"lotstock/internal/pkg/retrier"
	"lotstock/internal/service/ledgerservice"
	"lotstock/internal/service/stockservice"
)

// MockLotRepository é uma implementação mock da interface domain.LotRepository.
// WithinTx executa fn contra o próprio mock.
type MockLotRepository struct {
	mock.Mock
}

func (m *MockLotRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, store domain.LotStore) error) error {
	return fn(ctx, m)
}

func (m *MockLotRepository) GetLot(ctx context.Context, lotID string) (domain.Lot, error) {
	args := m.Called(ctx, lotID)
	return args.Get(0).(domain.Lot), args.Error(1)
}

func (m *MockLotRepository) ListLotsByVariant(ctx context.Context, variantID string, activeOnly bool) ([]domain.Lot, error) {
	args := m.Called(ctx, variantID, activeOnly)
	return args.Get(0).([]domain.Lot), args.Error(1)
}

func (m *MockLotRepository) ListExpirableLots(ctx context.Context, asOf time.Time) ([]domain.Lot, error) {
	args := m.Called(ctx, asOf)
	return args.Get(0).([]domain.Lot), args.Error(1)
}

func (m *MockLotRepository) InsertLot(ctx context.Context, lot domain.Lot) (domain.Lot, error) {
	args := m.Called(ctx, lot)
	return args.Get(0).(domain.Lot), args.Error(1)
}

func (m *MockLotRepository) MoveQuantity(ctx context.Context, move domain.QuantityMove) (domain.Lot, error) {
	args := m.Called(ctx, move)
	return args.Get(0).(domain.Lot), args.Error(1)
}

func (m *MockLotRepository) TransitionStatus(ctx context.Context, lotID string, from, to domain.LotStatus) (bool, error) {
	args := m.Called(ctx, lotID, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockLotRepository) AppendLedger(ctx context.Context, entry domain.LedgerEntry) (domain.LedgerEntry, error) {
	args := m.Called(ctx, entry)
	return args.Get(0).(domain.LedgerEntry), args.Error(1)
}

func (m *MockLotRepository) ListLedger(ctx context.Context, variantID string, limit int) ([]domain.LedgerHistoryEntry, error) {
	args := m.Called(ctx, variantID, limit)
	return args.Get(0).([]domain.LedgerHistoryEntry), args.Error(1)
}

func (m *MockLotRepository) ListLedgerByLot(ctx context.Context, lotID string) ([]domain.LedgerEntry, error) {
	args := m.Called(ctx, lotID)
	return args.Get(0).([]domain.LedgerEntry), args.Error(1)
}

func (m *MockLotRepository) InsertReservation(ctx context.Context, reservation domain.Reservation) (domain.Reservation, error) {
	args := m.Called(ctx, reservation)
	return args.Get(0).(domain.Reservation), args.Error(1)
}

func (m *MockLotRepository) GetReservation(ctx context.Context, variantID, refID string) (domain.Reservation, error) {
	args := m.Called(ctx, variantID, refID)
	return args.Get(0).(domain.Reservation), args.Error(1)
}

func (m *MockLotRepository) UpdateReservation(ctx context.Context, reservation domain.Reservation) (domain.Reservation, error) {
	args := m.Called(ctx, reservation)
	return args.Get(0).(domain.Reservation), args.Error(1)
}

// MockCache registra as invalidações pedidas pelo serviço.
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Invalidate(ctx context.Context, variantID string) {
	m.Called(ctx, variantID)
}

func newService(repo *MockLotRepository, c *MockCache) *stockservice.Service {
	log := logger.NewLogger("debug") // Usar um logger mock ou nulo em testes reais.
	return stockservice.NewService(repo, ledgerservice.NewService(log), c, retrier.Policy{MaxRetries: 2, Backoff: time.Millisecond}, log)
}

func activeLot(variantID string, available int) domain.Lot {
	return domain.Lot{
		ID:           uuid.New().String(),
		VariantID:    variantID,
		BatchCode:    "DJ-2024-07",
		Status:       domain.LotStatusActive,
		QtyAvailable: available,
		Version:      1,
		BestBefore:   time.Now().AddDate(0, 6, 0),
	}
}

// TestAdjustStock_Success_Positive testa um ajuste positivo bem-sucedido.
func TestAdjustStock_Success_Positive(t *testing.T) {
	mockRepo := new(MockLotRepository)
	mockCache := new(MockCache)
	svc := newService(mockRepo, mockCache)

	variantID := uuid.New().String()
	lot := activeLot(variantID, 10)
	updated := lot
	updated.QtyAvailable = 15
	updated.Version = 2

	mockRepo.On("GetLot", mock.Anything, lot.ID).Return(lot, nil)
	mockRepo.On("MoveQuantity", mock.Anything, mock.MatchedBy(func(m domain.QuantityMove) bool {
		return m.LotID == lot.ID && m.AvailableDelta == 5 && m.ReservedDelta == 0 && m.RequireActive &&
			m.Entry.ChangeType == domain.ChangeIn && m.Entry.RefType == domain.RefAdmin && m.Entry.Quantity == 5
	})).Return(updated, nil)
	mockCache.On("Invalidate", mock.Anything, variantID).Return()

	result, err := svc.AdjustStock(context.Background(), domain.StockAdjustmentRequest{
		VariantID: variantID, LotID: lot.ID, Delta: 5, Reason: "contagem cíclica",
	})

	assert.NoError(t, err)
	assert.Equal(t, 15, result.QtyAvailable)
	assert.Equal(t, 2, result.Version)
	mockRepo.AssertExpectations(t)
	mockCache.AssertExpectations(t)
}

// TestAdjustStock_Negative_WritesOut testa que um delta negativo gera saída (OUT) com quantidade positiva.
func TestAdjustStock_Negative_WritesOut(t *testing.T) {
	mockRepo := new(MockLotRepository)
	mockCache := new(MockCache)
	svc := newService(mockRepo, mockCache)

	variantID := uuid.New().String()
	lot := activeLot(variantID, 10)
	lot.Status = domain.LotStatusExpired // baixa de lote vencido é permitida
	updated := lot
	updated.QtyAvailable = 6

	mockRepo.On("GetLot", mock.Anything, lot.ID).Return(lot, nil)
	mockRepo.On("MoveQuantity", mock.Anything, mock.MatchedBy(func(m domain.QuantityMove) bool {
		return m.AvailableDelta == -4 && !m.RequireActive && m.Entry.ChangeType == domain.ChangeOut && m.Entry.Quantity == 4
	})).Return(updated, nil)
	mockCache.On("Invalidate", mock.Anything, variantID).Return()

	result, err := svc.AdjustStock(context.Background(), domain.StockAdjustmentRequest{
		VariantID: variantID, LotID: lot.ID, Delta: -4, Reason: "avaria",
	})

	assert.NoError(t, err)
	assert.Equal(t, 6, result.QtyAvailable)
	mockRepo.AssertExpectations(t)
}

// TestAdjustStock_InsufficientStock testa que o resultado negativo é recusado sem tocar no lote.
func TestAdjustStock_InsufficientStock(t *testing.T) {
	mockRepo := new(MockLotRepository)
	svc := newService(mockRepo, new(MockCache))

	variantID := uuid.New().String()
	lot := activeLot(variantID, 3)
	mockRepo.On("GetLot", mock.Anything, lot.ID).Return(lot, nil)

	_, err := svc.AdjustStock(context.Background(), domain.StockAdjustmentRequest{
		VariantID: variantID, LotID: lot.ID, Delta: -5, Reason: "perda",
	})

	var insufficient *apperror.InsufficientStockError
	assert.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 3, insufficient.Available)
	mockRepo.AssertNotCalled(t, "MoveQuantity", mock.Anything, mock.Anything)
}

// TestAdjustStock_ZeroDelta testa a validação de delta zero.
func TestAdjustStock_ZeroDelta(t *testing.T) {
	mockRepo := new(MockLotRepository)
	svc := newService(mockRepo, new(MockCache))

	_, err := svc.AdjustStock(context.Background(), domain.StockAdjustmentRequest{
		VariantID: uuid.New().String(), LotID: uuid.New().String(), Delta: 0, Reason: "x",
	})

	assert.Error(t, err)
	assert.IsType(t, &apperror.ValidationError{}, err)
	mockRepo.AssertNotCalled(t, "GetLot", mock.Anything, mock.Anything)
}

// TestAdjustStock_RetriesConflict testa a repetição após conflito de concorrência.
func TestAdjustStock_RetriesConflict(t *testing.T) {
	mockRepo := new(MockLotRepository)
	mockCache := new(MockCache)
	svc := newService(mockRepo, mockCache)

	variantID := uuid.New().String()
	lot := activeLot(variantID, 10)
	updated := lot
	updated.QtyAvailable = 8

	mockRepo.On("GetLot", mock.Anything, lot.ID).Return(lot, nil)
	mockRepo.On("MoveQuantity", mock.Anything, mock.AnythingOfType("domain.QuantityMove")).
		Return(domain.Lot{}, apperror.NewConflictError("versão desatualizada")).Once()
	mockRepo.On("MoveQuantity", mock.Anything, mock.AnythingOfType("domain.QuantityMove")).
		Return(updated, nil).Once()
	mockCache.On("Invalidate", mock.Anything, variantID).Return()

	result, err := svc.AdjustStock(context.Background(), domain.StockAdjustmentRequest{
		VariantID: variantID, LotID: lot.ID, Delta: -2, Reason: "amostra",
	})

	assert.NoError(t, err)
	assert.Equal(t, 8, result.QtyAvailable)
	mockRepo.AssertNumberOfCalls(t, "MoveQuantity", 2)
}

// TestAddStock_RequiresActiveLot testa que entradas em lote bloqueado são recusadas.
func TestAddStock_RequiresActiveLot(t *testing.T) {
	mockRepo := new(MockLotRepository)
	svc := newService(mockRepo, new(MockCache))

	variantID := uuid.New().String()
	lot := activeLot(variantID, 10)
	lot.Status = domain.LotStatusBlocked
	mockRepo.On("GetLot", mock.Anything, lot.ID).Return(lot, nil)

	_, err := svc.AddStock(context.Background(), domain.StockAdjustmentRequest{
		VariantID: variantID, LotID: lot.ID, Delta: 5, Reason: "reposição",
	})

	assert.IsType(t, &apperror.InvalidLotStatusError{}, err)
}

// TestAddStock_NonPositive testa a validação de quantidade.
func TestAddStock_NonPositive(t *testing.T) {
	svc := newService(new(MockLotRepository), new(MockCache))

	_, err := svc.AddStock(context.Background(), domain.StockAdjustmentRequest{
		VariantID: uuid.New().String(), LotID: uuid.New().String(), Delta: -1, Reason: "x",
	})

	assert.IsType(t, &apperror.ValidationError{}, err)
}

// TestAddStock_WrongVariant testa que o lote precisa pertencer à variante informada.
func TestAddStock_WrongVariant(t *testing.T) {
	mockRepo := new(MockLotRepository)
	svc := newService(mockRepo, new(MockCache))

	lot := activeLot(uuid.New().String(), 1)
	mockRepo.On("GetLot", mock.Anything, lot.ID).Return(lot, nil)

	_, err := svc.AddStock(context.Background(), domain.StockAdjustmentRequest{
		VariantID: uuid.New().String(), LotID: lot.ID, Delta: 1, Reason: "x",
	})

	assert.IsType(t, &apperror.NotFoundError{}, err)
}

// TestAdjustStock_RepositoryError testa que falhas de infraestrutura viram InternalError.
func TestAdjustStock_RepositoryError(t *testing.T) {
	mockRepo := new(MockLotRepository)
	svc := newService(mockRepo, new(MockCache))

	mockRepo.On("GetLot", mock.Anything, mock.Anything).Return(domain.Lot{}, errors.New("conexão recusada"))

	_, err := svc.AdjustStock(context.Background(), domain.StockAdjustmentRequest{
		VariantID: uuid.New().String(), LotID: uuid.New().String(), Delta: 1, Reason: "x",
	})

	assert.IsType(t, &apperror.InternalError{}, err)
}

// TestReceiveLot_Success testa o recebimento de um lote novo.
func TestReceiveLot_Success(t *testing.T) {
	mockRepo := new(MockLotRepository)
	mockCache := new(MockCache)
	svc := newService(mockRepo, mockCache)

	variantID := uuid.New().String()
	inserted := activeLot(variantID, 0)
	received := inserted
	received.QtyAvailable = 120
	received.Version = 2

	mockRepo.On("InsertLot", mock.Anything, mock.MatchedBy(func(l domain.Lot) bool {
		return l.VariantID == variantID && l.BatchCode == "DJ-2024-07" && l.QtyAvailable == 0 && l.Status == domain.LotStatusActive
	})).Return(inserted, nil)
	mockRepo.On("MoveQuantity", mock.Anything, mock.MatchedBy(func(m domain.QuantityMove) bool {
		return m.LotID == inserted.ID && m.AvailableDelta == 120 && m.Entry.Reason == "lot received"
	})).Return(received, nil)
	mockCache.On("Invalidate", mock.Anything, variantID).Return()

	lot, err := svc.ReceiveLot(context.Background(), domain.LotReceipt{
		VariantID:    variantID,
		BatchCode:    " DJ-2024-07 ",
		OriginEstate: "Castleton",
		HarvestedOn:  time.Now().AddDate(0, -1, 0),
		BestBefore:   time.Now().AddDate(1, 0, 0),
		Quantity:     120,
	})

	assert.NoError(t, err)
	assert.Equal(t, 120, lot.QtyAvailable)
	mockRepo.AssertExpectations(t)
	mockCache.AssertExpectations(t)
}

// TestReceiveLot_Validation testa as validações de recebimento.
func TestReceiveLot_Validation(t *testing.T) {
	svc := newService(new(MockLotRepository), new(MockCache))
	now := time.Now()

	cases := map[string]domain.LotReceipt{
		"sem variante":           {BatchCode: "B", Quantity: 1, BestBefore: now},
		"sem batch":              {VariantID: "v", Quantity: 1, BestBefore: now},
		"quantidade zero":        {VariantID: "v", BatchCode: "B", BestBefore: now},
		"sem best_before":        {VariantID: "v", BatchCode: "B", Quantity: 1},
		"colheita apos validade": {VariantID: "v", BatchCode: "B", Quantity: 1, BestBefore: now, HarvestedOn: now.AddDate(0, 0, 1)},
	}
	for name, receipt := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ReceiveLot(context.Background(), receipt)
			assert.IsType(t, &apperror.ValidationError{}, err)
		})
	}
}

type stubWarehouses struct {
	known map[string]bool
}

func (s stubWarehouses) GetWarehouse(_ context.Context, id string) (domain.Warehouse, error) {
	if s.known[id] {
		return domain.Warehouse{ID: id}, nil
	}
	return domain.Warehouse{}, apperror.NewNotFoundError("Armazém não encontrado.")
}

// TestReceiveLot_UnknownWarehouse garante que o lote não é criado para armazém inexistente.
func TestReceiveLot_UnknownWarehouse(t *testing.T) {
	mockRepo := new(MockLotRepository)
	svc := newService(mockRepo, new(MockCache)).WithWarehouses(stubWarehouses{})

	warehouseID := uuid.New().String()
	_, err := svc.ReceiveLot(context.Background(), domain.LotReceipt{
		VariantID:   uuid.New().String(),
		BatchCode:   "B",
		BestBefore:  time.Now().AddDate(0, 6, 0),
		Quantity:    10,
		WarehouseID: &warehouseID,
	})

	assert.IsType(t, &apperror.ValidationError{}, err)
	assert.Contains(t, err.Error(), "não cadastrado")
	mockRepo.AssertNotCalled(t, "InsertLot", mock.Anything, mock.Anything)
}

// TestChangeLotStatus_Quarantine testa a quarentena manual com entrada DAMAGED no ledger.
func TestChangeLotStatus_Quarantine(t *testing.T) {
	mockRepo := new(MockLotRepository)
	mockCache := new(MockCache)
	svc := newService(mockRepo, mockCache)

	variantID := uuid.New().String()
	lot := activeLot(variantID, 7)
	lot.QtyReserved = 3
	quarantined := lot
	quarantined.Status = domain.LotStatusQuarantine

	mockRepo.On("GetLot", mock.Anything, lot.ID).Return(lot, nil).Once()
	mockRepo.On("TransitionStatus", mock.Anything, lot.ID, domain.LotStatusActive, domain.LotStatusQuarantine).Return(true, nil)
	mockRepo.On("AppendLedger", mock.Anything, mock.MatchedBy(func(e domain.LedgerEntry) bool {
		return e.ChangeType == domain.ChangeDamaged && e.RefType == domain.RefAdmin && e.Quantity == 10
	})).Return(domain.LedgerEntry{}, nil)
	mockRepo.On("GetLot", mock.Anything, lot.ID).Return(quarantined, nil).Once()
	mockCache.On("Invalidate", mock.Anything, variantID).Return()

	result, err := svc.ChangeLotStatus(context.Background(), domain.LotStatusChangeRequest{
		LotID: lot.ID, Status: domain.LotStatusQuarantine, Reason: "umidade acima do limite",
	})

	assert.NoError(t, err)
	assert.Equal(t, domain.LotStatusQuarantine, result.Status)
	mockRepo.AssertExpectations(t)
}

// TestChangeLotStatus_TerminalLot testa que estados terminais não mudam.
func TestChangeLotStatus_TerminalLot(t *testing.T) {
	mockRepo := new(MockLotRepository)
	svc := newService(mockRepo, new(MockCache))

	lot := activeLot(uuid.New().String(), 1)
	lot.Status = domain.LotStatusExpired
	mockRepo.On("GetLot", mock.Anything, lot.ID).Return(lot, nil)

	_, err := svc.ChangeLotStatus(context.Background(), domain.LotStatusChangeRequest{
		LotID: lot.ID, Status: domain.LotStatusBlocked, Reason: "recall",
	})

	assert.IsType(t, &apperror.InvalidLotStatusError{}, err)
	mockRepo.AssertNotCalled(t, "TransitionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// TestChangeLotStatus_RejectsExpired testa que EXPIRED só é atribuído pela varredura.
func TestChangeLotStatus_RejectsExpired(t *testing.T) {
	svc := newService(new(MockLotRepository), new(MockCache))

	_, err := svc.ChangeLotStatus(context.Background(), domain.LotStatusChangeRequest{
		LotID: uuid.New().String(), Status: domain.LotStatusExpired, Reason: "x",
	})

	assert.IsType(t, &apperror.ValidationError{}, err)
}

// TestReconcileLot_Consistent testa a reconciliação de um lote cujo ledger bate com as colunas.
func TestReconcileLot_Consistent(t *testing.T) {
	mockRepo := new(MockLotRepository)
	svc := newService(mockRepo, new(MockCache))
	ledger := ledgerservice.NewService(logger.NewNop())

	lot := activeLot(uuid.New().String(), 8)
	lot.QtyReserved = 2
	lotID := lot.ID
	in := ledger.NewEntry(ledgerservice.Event{VariantID: lot.VariantID, LotID: lotID, ChangeType: domain.ChangeIn, RefType: domain.RefAdmin, Quantity: 10, AvailableDelta: 10, StatusTo: domain.LotStatusActive})
	out := ledger.NewEntry(ledgerservice.Event{VariantID: lot.VariantID, LotID: lotID, ChangeType: domain.ChangeOut, RefType: domain.RefOrder, Quantity: 2, AvailableDelta: -2, ReservedDelta: 2})

	mockRepo.On("GetLot", mock.Anything, lotID).Return(lot, nil)
	mockRepo.On("ListLedgerByLot", mock.Anything, lotID).Return([]domain.LedgerEntry{in, out}, nil)

	rec, err := svc.ReconcileLot(context.Background(), lotID)

	assert.NoError(t, err)
	assert.True(t, rec.Consistent)
	assert.Equal(t, 8, rec.Reconstructed.Available)
	assert.Equal(t, 2, rec.Reconstructed.Reserved)
}
