// Package memrepo implementa domain.LotRepository em memória.
// Transações são serializadas e revertidas por snapshot.
package memrepo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"lotstock/internal/domain"
	"lotstock/internal/errors"
)

var (
	_ domain.LotRepository = (*Repository)(nil)
	_ domain.LotStore      = (*state)(nil)
)

type state struct {
	lots         map[string]domain.Lot
	ledger       []domain.LedgerEntry
	reservations map[string]domain.Reservation

	// conflitos injetados: as próximas N chamadas de MoveQuantity falham com ConflictError
	injectedConflicts int
}

// Repository é um LotRepository em memória, usado em testes e ambientes locais.
type Repository struct {
	mu sync.Mutex
	st *state
}

// New cria um repositório vazio.
func New() *Repository {
	return &Repository{st: &state{
		lots:         make(map[string]domain.Lot),
		reservations: make(map[string]domain.Reservation),
	}}
}

// InjectConflicts faz as próximas n movimentações falharem como se outro processo tivesse alterado o lote.
func (r *Repository) InjectConflicts(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.injectedConflicts = n
}

// WithinTx executa fn com acesso exclusivo ao estado. Erro em fn restaura o snapshot.
func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context, store domain.LotStore) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.st.clone()
	if err := fn(ctx, r.st); err != nil {
		// conflitos injetados são consumidos mesmo com rollback
		snapshot.injectedConflicts = r.st.injectedConflicts
		r.st = snapshot
		return err
	}
	return nil
}

func (s *state) clone() *state {
	c := &state{
		lots:              make(map[string]domain.Lot, len(s.lots)),
		ledger:            make([]domain.LedgerEntry, len(s.ledger)),
		reservations:      make(map[string]domain.Reservation, len(s.reservations)),
		injectedConflicts: s.injectedConflicts,
	}
	for k, v := range s.lots {
		c.lots[k] = v
	}
	copy(c.ledger, s.ledger)
	for k, v := range s.reservations {
		v.Lines = append([]domain.ReservationLine(nil), v.Lines...)
		c.reservations[k] = v
	}
	return c
}

// Operações fora de transação: cada chamada é atômica por si só.

// GetLot busca um lote pelo ID fora de transação.
func (r *Repository) GetLot(ctx context.Context, lotID string) (domain.Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.GetLot(ctx, lotID)
}

// ListLotsByVariant lista os lotes da variante em ordem FEFO.
func (r *Repository) ListLotsByVariant(ctx context.Context, variantID string, activeOnly bool) ([]domain.Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.ListLotsByVariant(ctx, variantID, activeOnly)
}

// ListExpirableLots lista os lotes ACTIVE com best_before anterior a asOf.
func (r *Repository) ListExpirableLots(ctx context.Context, asOf time.Time) ([]domain.Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.ListExpirableLots(ctx, asOf)
}

// InsertLot grava um lote novo.
func (r *Repository) InsertLot(ctx context.Context, lot domain.Lot) (domain.Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.InsertLot(ctx, lot)
}

// MoveQuantity aplica uma movimentação de quantidade fora de transação.
func (r *Repository) MoveQuantity(ctx context.Context, move domain.QuantityMove) (domain.Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.MoveQuantity(ctx, move)
}

// TransitionStatus troca o status do lote se ele ainda estiver em from.
func (r *Repository) TransitionStatus(ctx context.Context, lotID string, from, to domain.LotStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.TransitionStatus(ctx, lotID, from, to)
}

// AppendLedger registra um evento no livro de movimentações.
func (r *Repository) AppendLedger(ctx context.Context, entry domain.LedgerEntry) (domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.AppendLedger(ctx, entry)
}

// ListLedger retorna o histórico mais recente da variante, limitado a limit.
func (r *Repository) ListLedger(ctx context.Context, variantID string, limit int) ([]domain.LedgerHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.ListLedger(ctx, variantID, limit)
}

// ListLedgerByLot retorna os eventos de um lote em ordem de gravação.
func (r *Repository) ListLedgerByLot(ctx context.Context, lotID string) ([]domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.ListLedgerByLot(ctx, lotID)
}

// InsertReservation grava uma reserva nova por (variant_id, ref_id).
func (r *Repository) InsertReservation(ctx context.Context, reservation domain.Reservation) (domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.InsertReservation(ctx, reservation)
}

// GetReservation busca a reserva de um ref_id.
func (r *Repository) GetReservation(ctx context.Context, variantID, refID string) (domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.GetReservation(ctx, variantID, refID)
}

// UpdateReservation grava status e linhas da reserva, verificando a versão.
func (r *Repository) UpdateReservation(ctx context.Context, reservation domain.Reservation) (domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.UpdateReservation(ctx, reservation)
}

// --- state implementa domain.LotStore sem travas (o chamador já as detém) ---

func (s *state) GetLot(_ context.Context, lotID string) (domain.Lot, error) {
	lot, ok := s.lots[lotID]
	if !ok {
		return domain.Lot{}, errors.NewNotFoundError(fmt.Sprintf("Lote %s não encontrado.", lotID))
	}
	return lot, nil
}

func (s *state) ListLotsByVariant(_ context.Context, variantID string, activeOnly bool) ([]domain.Lot, error) {
	lots := make([]domain.Lot, 0)
	for _, lot := range s.lots {
		if lot.VariantID != variantID {
			continue
		}
		if activeOnly && !lot.IsActive() {
			continue
		}
		lots = append(lots, lot)
	}
	sortByBestBefore(lots)
	return lots, nil
}

func (s *state) ListExpirableLots(_ context.Context, asOf time.Time) ([]domain.Lot, error) {
	lots := make([]domain.Lot, 0)
	for _, lot := range s.lots {
		if lot.IsActive() && lot.BestBefore.Before(asOf) {
			lots = append(lots, lot)
		}
	}
	sortByBestBefore(lots)
	return lots, nil
}

func sortByBestBefore(lots []domain.Lot) {
	sort.SliceStable(lots, func(i, j int) bool {
		if lots[i].BestBefore.Equal(lots[j].BestBefore) {
			if lots[i].CreatedAt.Equal(lots[j].CreatedAt) {
				return lots[i].ID < lots[j].ID
			}
			return lots[i].CreatedAt.Before(lots[j].CreatedAt)
		}
		return lots[i].BestBefore.Before(lots[j].BestBefore)
	})
}

func (s *state) InsertLot(_ context.Context, lot domain.Lot) (domain.Lot, error) {
	for _, existing := range s.lots {
		if existing.VariantID == lot.VariantID && existing.BatchCode == lot.BatchCode {
			return domain.Lot{}, errors.NewValidationError(fmt.Sprintf("Já existe um lote %s para a variante %s.", lot.BatchCode, lot.VariantID))
		}
	}
	if lot.ID == "" {
		lot.ID = uuid.New().String()
	}
	if _, exists := s.lots[lot.ID]; exists {
		return domain.Lot{}, errors.NewValidationError(fmt.Sprintf("Lote %s já existe.", lot.ID))
	}
	if lot.Status == "" {
		lot.Status = domain.LotStatusActive
	}
	now := time.Now().UTC()
	lot.Version = 1
	if lot.CreatedAt.IsZero() {
		lot.CreatedAt = now
	}
	lot.UpdatedAt = now
	s.lots[lot.ID] = lot
	return lot, nil
}

func (s *state) MoveQuantity(ctx context.Context, move domain.QuantityMove) (domain.Lot, error) {
	lot, ok := s.lots[move.LotID]
	if !ok {
		return domain.Lot{}, errors.NewNotFoundError(fmt.Sprintf("Lote %s não encontrado.", move.LotID))
	}
	if move.RequireActive && !lot.IsActive() {
		return domain.Lot{}, errors.NewInvalidLotStatusError(lot.ID, string(lot.Status))
	}
	if s.injectedConflicts > 0 {
		s.injectedConflicts--
		return domain.Lot{}, errors.NewConflictError(fmt.Sprintf("O lote %s foi modificado por outra operação. Tente novamente.", lot.ID))
	}
	if lot.QtyAvailable+move.AvailableDelta < 0 || lot.QtyReserved+move.ReservedDelta < 0 {
		return domain.Lot{}, errors.NewConflictError(fmt.Sprintf("O lote %s foi modificado por outra operação. Tente novamente.", lot.ID))
	}

	lot.QtyAvailable += move.AvailableDelta
	lot.QtyReserved += move.ReservedDelta
	lot.Version++
	lot.UpdatedAt = time.Now().UTC()
	s.lots[lot.ID] = lot

	entry := move.Entry
	lotID := lot.ID
	entry.LotID = &lotID
	if entry.VariantID == "" {
		entry.VariantID = lot.VariantID
	}
	if _, err := s.AppendLedger(ctx, entry); err != nil {
		return domain.Lot{}, err
	}
	return lot, nil
}

func (s *state) TransitionStatus(_ context.Context, lotID string, from, to domain.LotStatus) (bool, error) {
	lot, ok := s.lots[lotID]
	if !ok || lot.Status != from {
		return false, nil
	}
	lot.Status = to
	lot.Version++
	lot.UpdatedAt = time.Now().UTC()
	s.lots[lotID] = lot
	return true, nil
}

func (s *state) AppendLedger(_ context.Context, entry domain.LedgerEntry) (domain.LedgerEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.ledger = append(s.ledger, entry)
	return entry, nil
}

func (s *state) ListLedger(_ context.Context, variantID string, limit int) ([]domain.LedgerHistoryEntry, error) {
	history := make([]domain.LedgerHistoryEntry, 0)
	for i := len(s.ledger) - 1; i >= 0 && len(history) < limit; i-- {
		entry := s.ledger[i]
		if entry.VariantID != variantID {
			continue
		}
		h := domain.LedgerHistoryEntry{LedgerEntry: entry}
		if entry.LotID != nil {
			if lot, ok := s.lots[*entry.LotID]; ok {
				h.BatchCode = lot.BatchCode
				h.OriginEstate = lot.OriginEstate
			}
		}
		history = append(history, h)
	}
	return history, nil
}

func (s *state) ListLedgerByLot(_ context.Context, lotID string) ([]domain.LedgerEntry, error) {
	entries := make([]domain.LedgerEntry, 0)
	for _, entry := range s.ledger {
		if entry.LotID != nil && *entry.LotID == lotID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func reservationKey(variantID, refID string) string {
	return variantID + "|" + refID
}

func (s *state) InsertReservation(_ context.Context, reservation domain.Reservation) (domain.Reservation, error) {
	key := reservationKey(reservation.VariantID, reservation.RefID)
	if _, exists := s.reservations[key]; exists {
		return domain.Reservation{}, errors.NewConflictError(fmt.Sprintf("Já existe reserva para ref %s na variante %s.", reservation.RefID, reservation.VariantID))
	}
	if reservation.ID == "" {
		reservation.ID = uuid.New().String()
	}
	if reservation.Status == "" {
		reservation.Status = domain.ReservationHeld
	}
	now := time.Now().UTC()
	reservation.CreatedAt = now
	reservation.UpdatedAt = now
	reservation.Version = 1
	reservation.Lines = append([]domain.ReservationLine(nil), reservation.Lines...)
	s.reservations[key] = reservation
	return reservation, nil
}

func (s *state) GetReservation(_ context.Context, variantID, refID string) (domain.Reservation, error) {
	res, ok := s.reservations[reservationKey(variantID, refID)]
	if !ok {
		return domain.Reservation{}, errors.NewNotFoundError(fmt.Sprintf("Reserva da ref %s não encontrada para a variante %s.", refID, variantID))
	}
	res.Lines = append([]domain.ReservationLine(nil), res.Lines...)
	return res, nil
}

func (s *state) UpdateReservation(_ context.Context, reservation domain.Reservation) (domain.Reservation, error) {
	key := reservationKey(reservation.VariantID, reservation.RefID)
	current, ok := s.reservations[key]
	if !ok || current.ID != reservation.ID || current.Version != reservation.Version {
		return domain.Reservation{}, errors.NewConflictError(fmt.Sprintf("A reserva %s foi modificada por outra operação.", reservation.ID))
	}
	reservation.Version++
	reservation.UpdatedAt = time.Now().UTC()
	reservation.Lines = append([]domain.ReservationLine(nil), reservation.Lines...)
	s.reservations[key] = reservation
	return reservation, nil
}
