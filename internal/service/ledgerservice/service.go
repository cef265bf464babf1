package ledgerservice

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lotstock/internal/domain"
	apperror "lotstock/internal/errors"
	"lotstock/internal/pkg/logger"
)

const (
	// DefaultHistoryLimit é usado quando o chamador não informa limite.
	DefaultHistoryLimit = 50
	// MaxHistoryLimit limita o tamanho de uma página de histórico.
	MaxHistoryLimit = 500
)

// Event descreve um evento de estoque antes de virar LedgerEntry.
// Quantity é sempre a magnitude; a direção vem de ChangeType e dos deltas.
type Event struct {
	VariantID      string
	LotID          string
	ChangeType     domain.ChangeType
	RefType        domain.RefType
	RefID          string
	Quantity       int
	Reason         string
	AvailableDelta int
	ReservedDelta  int
	StatusFrom     domain.LotStatus
	StatusTo       domain.LotStatus
	Extra          map[string]string
}

// Service é o StockLedger: monta entradas imutáveis, lê o histórico e reconstrói saldos.
type Service struct {
	logger logger.Logger
	now    func() time.Time
}

// NewService cria e retorna uma nova instância do Serviço de Ledger.
func NewService(logger logger.Logger) *Service {
	return &Service{logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// NewEntry monta a LedgerEntry do evento, com os deltas gravados na metadata.
func (s *Service) NewEntry(e Event) domain.LedgerEntry {
	meta, err := json.Marshal(domain.LedgerMetadata{
		AvailableDelta: e.AvailableDelta,
		ReservedDelta:  e.ReservedDelta,
		StatusFrom:     e.StatusFrom,
		StatusTo:       e.StatusTo,
		Extra:          e.Extra,
	})
	if err != nil {
		// LedgerMetadata só tem tipos serializáveis
		panic(fmt.Sprintf("ledger: metadata inválida: %v", err))
	}

	entry := domain.LedgerEntry{
		ID:         uuid.New().String(),
		VariantID:  e.VariantID,
		ChangeType: e.ChangeType,
		RefType:    e.RefType,
		RefID:      e.RefID,
		Quantity:   e.Quantity,
		Reason:     e.Reason,
		Metadata:   meta,
		CreatedAt:  s.now(),
	}
	if e.LotID != "" {
		lotID := e.LotID
		entry.LotID = &lotID
	}
	return entry
}

// NewMove monta o movimento atômico de quantidades e a entrada que o acompanha.
func (s *Service) NewMove(e Event, requireActive bool) domain.QuantityMove {
	return domain.QuantityMove{
		LotID:          e.LotID,
		AvailableDelta: e.AvailableDelta,
		ReservedDelta:  e.ReservedDelta,
		RequireActive:  requireActive,
		Entry:          s.NewEntry(e),
	}
}

// Record grava uma entrada sem movimento de quantidade (mudanças de status).
func (s *Service) Record(ctx context.Context, store domain.LotStore, e Event) (domain.LedgerEntry, error) {
	entry, err := store.AppendLedger(ctx, s.NewEntry(e))
	if err != nil {
		s.logger.Error("Falha ao gravar entrada no ledger.", err)
		return domain.LedgerEntry{}, err
	}
	s.logger.Debug("Entrada gravada no ledger.", map[string]interface{}{
		"variant_id":  entry.VariantID,
		"change_type": entry.ChangeType,
		"ref_type":    entry.RefType,
		"quantity":    entry.Quantity,
	})
	return entry, nil
}

// History retorna as entradas da variante, mais novas primeiro.
func (s *Service) History(ctx context.Context, store domain.LotStore, variantID string, limit int) ([]domain.LedgerHistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	history, err := store.ListLedger(ctx, variantID, limit)
	if err != nil {
		s.logger.Error("Falha ao buscar histórico do ledger.", err)
		return nil, err
	}
	return history, nil
}

// Reconstruct reaplica as entradas (em ordem de gravação) e devolve o saldo de cada lote.
// Entradas sem lote são ignoradas.
func Reconstruct(entries []domain.LedgerEntry) (map[string]domain.LotBalance, error) {
	balances := make(map[string]domain.LotBalance)

	for _, entry := range entries {
		if entry.LotID == nil {
			continue
		}
		if len(entry.Metadata) == 0 {
			return nil, apperror.NewValidationError(fmt.Sprintf("Entrada %s do ledger sem metadata de deltas.", entry.ID))
		}

		var meta domain.LedgerMetadata
		if err := json.Unmarshal(entry.Metadata, &meta); err != nil {
			return nil, apperror.NewInternalError(fmt.Sprintf("Metadata ilegível na entrada %s.", entry.ID), err)
		}

		bal := balances[*entry.LotID]
		bal.LotID = *entry.LotID
		bal.Available += meta.AvailableDelta
		bal.Reserved += meta.ReservedDelta
		if meta.StatusTo != "" {
			bal.Status = meta.StatusTo
		}

		if bal.Available < 0 || bal.Reserved < 0 {
			return nil, apperror.NewInternalError(
				fmt.Sprintf("Ledger inconsistente no lote %s após a entrada %s.", bal.LotID, entry.ID), nil)
		}
		balances[bal.LotID] = bal
	}
	return balances, nil
}

// Reconciliation compara o estado atual do lote com o reconstruído pelo ledger.
type Reconciliation struct {
	Lot           domain.Lot        `json:"lot"`
	Reconstructed domain.LotBalance `json:"reconstructed"`
	Consistent    bool              `json:"consistent"`
}

// ReconcileLot reconstrói o lote a partir do ledger e compara com as colunas atuais.
func (s *Service) ReconcileLot(ctx context.Context, store domain.LotStore, lotID string) (Reconciliation, error) {
	lot, err := store.GetLot(ctx, lotID)
	if err != nil {
		return Reconciliation{}, err
	}

	entries, err := store.ListLedgerByLot(ctx, lotID)
	if err != nil {
		s.logger.Error("Falha ao buscar ledger do lote para reconciliação.", err)
		return Reconciliation{}, err
	}

	balances, err := Reconstruct(entries)
	if err != nil {
		s.logger.Error("Falha ao reconstruir lote a partir do ledger.", err)
		return Reconciliation{}, err
	}

	bal := balances[lotID]
	bal.LotID = lotID
	consistent := bal.Available == lot.QtyAvailable &&
		bal.Reserved == lot.QtyReserved &&
		(bal.Status == "" || bal.Status == lot.Status)

	if !consistent {
		s.logger.Warn("Lote divergente do ledger.", map[string]interface{}{
			"lot_id":           lotID,
			"qty_available":    lot.QtyAvailable,
			"qty_reserved":     lot.QtyReserved,
			"ledger_available": bal.Available,
			"ledger_reserved":  bal.Reserved,
			"status":           lot.Status,
			"ledger_status":    bal.Status,
		})
	}

	return Reconciliation{Lot: lot, Reconstructed: bal, Consistent: consistent}, nil
}
