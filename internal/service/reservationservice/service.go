package reservationservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lotstock/internal/domain"
	apperror "lotstock/internal/errors"
	"lotstock/internal/pkg/logger"
	"lotstock/internal/pkg/retrier"
	"lotstock/internal/service/ledgerservice"
)

const (
	reasonReleased  = "released"
	reasonConfirmed = "confirmed"
)

// errShortfall desfaz a transação de Reserve quando a quantidade não fecha.
var errShortfall = errors.New("reserva incompleta")

// StockCache é avisado depois de cada mutação confirmada.
type StockCache interface {
	Invalidate(ctx context.Context, variantID string)
}

// Service é o ReservationEngine: reserva, libera e confirma estoque por lote.
type Service struct {
	repo   domain.LotRepository
	ledger *ledgerservice.Service
	cache  StockCache
	retry  retrier.Policy
	logger logger.Logger
}

// NewService cria e retorna uma nova instância do Motor de Reservas.
// maxRetries é o número de novas tentativas após ConcurrencyConflict.
func NewService(repo domain.LotRepository, ledger *ledgerservice.Service, cache StockCache, maxRetries int, retryBackoff time.Duration, logger logger.Logger) *Service {
	return &Service{
		repo:   repo,
		ledger: ledger,
		cache:  cache,
		retry:  retrier.Policy{MaxRetries: maxRetries, Backoff: retryBackoff},
		logger: logger,
	}
}

// Reserve separa a quantidade pedida nos lotes ACTIVE da variante, do best-before mais próximo
// ao mais distante, ou apenas no lote fixado. Falta de estoque não é erro: volta Success=false
// e nenhuma movimentação desta chamada sobrevive. Um ref_id cuja reserva já foi liberada
// pode reservar de novo.
func (s *Service) Reserve(ctx context.Context, req domain.ReserveRequest) (domain.ReservationResult, error) {
	if err := validateReserve(req); err != nil {
		return domain.ReservationResult{}, err
	}

	s.logger.Debug("Iniciando reserva.", map[string]interface{}{
		"variant_id": req.VariantID,
		"quantity":   req.Quantity,
		"ref_id":     req.RefID,
		"pinned":     req.LotID != nil,
	})

	result, err := retrier.OnConflict(ctx, s.retry, s.logger, "reserve", func(ctx context.Context) (domain.ReservationResult, error) {
		return s.reserveOnce(ctx, req)
	})
	if err != nil {
		s.logger.Error("Falha ao reservar estoque.", err)
		return domain.ReservationResult{}, err
	}

	if result.Success {
		s.invalidate(ctx, req.VariantID)
		s.logger.Info("Reserva realizada com sucesso.", map[string]interface{}{
			"variant_id": req.VariantID,
			"ref_id":     req.RefID,
			"lots":       len(result.ReservedLots),
		})
	} else {
		s.logger.Info("Reserva recusada por falta de estoque.", map[string]interface{}{
			"variant_id": req.VariantID,
			"ref_id":     req.RefID,
			"shortfall":  result.Shortfall,
		})
	}
	return result, nil
}

func validateReserve(req domain.ReserveRequest) error {
	if req.VariantID == "" {
		return apperror.NewValidationError("O ID da variante é obrigatório.")
	}
	if req.RefID == "" {
		return apperror.NewValidationError("O ref_id da reserva é obrigatório.")
	}
	if req.Quantity <= 0 {
		return apperror.NewValidationError("A quantidade da reserva deve ser maior que zero.")
	}
	if req.LotID != nil && *req.LotID == "" {
		return apperror.NewValidationError("O lot_id fixado não pode ser vazio.")
	}
	return nil
}

func (s *Service) reserveOnce(ctx context.Context, req domain.ReserveRequest) (domain.ReservationResult, error) {
	var result domain.ReservationResult

	err := s.repo.WithinTx(ctx, func(ctx context.Context, store domain.LotStore) error {
		// Mesmo ref_id repetido com a mesma quantidade devolve a reserva existente.
		// Um token RELEASED é reaberto com novas linhas.
		existing, err := store.GetReservation(ctx, req.VariantID, req.RefID)
		reopen := false
		switch {
		case err == nil && existing.Status == domain.ReservationHeld && totalQuantity(existing.Lines) == req.Quantity:
			result = domain.ReservationResult{Success: true, ReservedLots: allocationsOf(existing.Lines)}
			return nil
		case err == nil && existing.Status == domain.ReservationReleased:
			reopen = true
		case err == nil:
			return apperror.NewValidationError(fmt.Sprintf("A ref %s já possui uma reserva (%s) para esta variante.", req.RefID, existing.Status))
		default:
			var notFound *apperror.NotFoundError
			if !errors.As(err, &notFound) {
				return err
			}
		}

		candidates, failure, err := s.candidateLots(ctx, store, req)
		if err != nil {
			return err
		}
		if failure != "" {
			result = domain.ReservationResult{Success: false, ReservedLots: []domain.LotAllocation{}, Shortfall: req.Quantity, Message: failure}
			return nil
		}

		remaining := req.Quantity
		allocations := make([]domain.LotAllocation, 0)
		for _, lot := range candidates {
			if remaining == 0 {
				break
			}
			take := min(remaining, lot.QtyAvailable)
			if take <= 0 {
				continue
			}

			move := s.ledger.NewMove(ledgerservice.Event{
				VariantID:      req.VariantID,
				LotID:          lot.ID,
				ChangeType:     domain.ChangeOut,
				RefType:        domain.RefOrder,
				RefID:          req.RefID,
				Quantity:       take,
				Reason:         req.RefID,
				AvailableDelta: -take,
				ReservedDelta:  take,
			}, true)
			if _, err := store.MoveQuantity(ctx, move); err != nil {
				var invalid *apperror.InvalidLotStatusError
				if !errors.As(err, &invalid) {
					return err
				}
				if req.LotID == nil {
					// o lote saiu de ACTIVE depois da listagem: a nova tentativa recarrega os candidatos
					return apperror.NewConflictError(fmt.Sprintf("O lote %s deixou de estar ACTIVE durante a reserva.", lot.ID))
				}
				result = domain.ReservationResult{
					Success:      false,
					ReservedLots: []domain.LotAllocation{},
					Shortfall:    req.Quantity,
					Message:      fmt.Sprintf("O lote %s está %s e não aceita reservas.", lot.BatchCode, invalid.Status),
				}
				return errShortfall
			}

			allocations = append(allocations, domain.LotAllocation{LotID: lot.ID, Quantity: take})
			remaining -= take
		}

		if remaining > 0 {
			result = domain.ReservationResult{
				Success:      false,
				ReservedLots: []domain.LotAllocation{},
				Shortfall:    remaining,
				Message:      fmt.Sprintf("Estoque insuficiente: solicitado %d, disponível %d.", req.Quantity, req.Quantity-remaining),
			}
			return errShortfall
		}

		lines := make([]domain.ReservationLine, 0, len(allocations))
		for _, a := range allocations {
			lines = append(lines, domain.ReservationLine{LotID: a.LotID, Quantity: a.Quantity, Remaining: a.Quantity})
		}
		if reopen {
			existing.Status = domain.ReservationHeld
			existing.Lines = lines
			if _, err := store.UpdateReservation(ctx, existing); err != nil {
				return err
			}
		} else if _, err := store.InsertReservation(ctx, domain.Reservation{
			RefID:     req.RefID,
			VariantID: req.VariantID,
			Status:    domain.ReservationHeld,
			Lines:     lines,
		}); err != nil {
			return err
		}

		result = domain.ReservationResult{Success: true, ReservedLots: allocations}
		return nil
	})

	if errors.Is(err, errShortfall) {
		return result, nil
	}
	if err != nil {
		return domain.ReservationResult{}, err
	}
	return result, nil
}

// candidateLots devolve os lotes a consumir, em ordem. failure não vazio indica recusa de negócio.
func (s *Service) candidateLots(ctx context.Context, store domain.LotStore, req domain.ReserveRequest) ([]domain.Lot, string, error) {
	if req.LotID == nil {
		lots, err := store.ListLotsByVariant(ctx, req.VariantID, true)
		if err != nil {
			return nil, "", err
		}
		return lots, "", nil
	}

	lot, err := store.GetLot(ctx, *req.LotID)
	if err != nil {
		return nil, "", err
	}
	if lot.VariantID != req.VariantID {
		return nil, "", apperror.NewNotFoundError(fmt.Sprintf("Lote %s não pertence à variante %s.", lot.ID, req.VariantID))
	}
	if !lot.IsActive() {
		return nil, fmt.Sprintf("O lote %s está %s e não aceita reservas.", lot.BatchCode, lot.Status), nil
	}
	return []domain.Lot{lot}, "", nil
}

// Release devolve ao disponível o que ainda está reservado sob o token.
// Falha com AlreadyReleased se o token já foi liberado ou se nenhum dos lotes pedidos tem saldo sob ele.
func (s *Service) Release(ctx context.Context, req domain.SettleRequest) (domain.Reservation, error) {
	pairs, err := validateSettle(req)
	if err != nil {
		return domain.Reservation{}, err
	}

	res, err := retrier.OnConflict(ctx, s.retry, s.logger, "release", func(ctx context.Context) (domain.Reservation, error) {
		return s.releaseOnce(ctx, req, pairs)
	})
	if err != nil {
		s.logger.Error("Falha ao liberar reserva.", err)
		return domain.Reservation{}, err
	}

	s.invalidate(ctx, req.VariantID)
	s.logger.Info("Reserva liberada.", map[string]interface{}{
		"variant_id": req.VariantID,
		"ref_id":     req.RefID,
		"status":     res.Status,
		"remaining":  res.RemainingTotal(),
	})
	return res, nil
}

func (s *Service) releaseOnce(ctx context.Context, req domain.SettleRequest, pairs []domain.LotAllocation) (domain.Reservation, error) {
	var updated domain.Reservation

	err := s.repo.WithinTx(ctx, func(ctx context.Context, store domain.LotStore) error {
		res, err := store.GetReservation(ctx, req.VariantID, req.RefID)
		if err != nil {
			return err
		}
		if res.Status != domain.ReservationHeld {
			return apperror.NewAlreadyReleasedError(req.RefID)
		}

		pending := 0
		for _, pair := range pairs {
			line, ok := res.Line(pair.LotID)
			if !ok {
				return apperror.NewNotFoundError(fmt.Sprintf("O lote %s não faz parte da reserva %s.", pair.LotID, req.RefID))
			}
			pending += line.Remaining
		}
		// todos os pares pedidos já foram liberados (ou confirmados) antes
		if pending == 0 {
			return apperror.NewAlreadyReleasedError(req.RefID)
		}

		for _, pair := range pairs {
			line, _ := res.Line(pair.LotID)
			if line.Remaining == 0 {
				continue
			}
			qty := min(pair.Quantity, line.Remaining)
			line.Remaining -= qty

			// O lote nunca recebe de volta mais do que tem reservado.
			lot, err := store.GetLot(ctx, pair.LotID)
			if err != nil {
				return err
			}
			credit := min(qty, lot.QtyReserved)
			if credit < qty {
				s.logger.Warn("Liberação limitada ao reservado no lote.", map[string]interface{}{
					"lot_id":       lot.ID,
					"requested":    qty,
					"qty_reserved": lot.QtyReserved,
				})
			}
			if credit == 0 {
				continue
			}

			move := s.ledger.NewMove(ledgerservice.Event{
				VariantID:      req.VariantID,
				LotID:          pair.LotID,
				ChangeType:     domain.ChangeIn,
				RefType:        domain.RefOrder,
				RefID:          req.RefID,
				Quantity:       credit,
				Reason:         reasonReleased,
				AvailableDelta: credit,
				ReservedDelta:  -credit,
			}, false)
			if _, err := store.MoveQuantity(ctx, move); err != nil {
				return err
			}
		}

		if res.RemainingTotal() == 0 {
			res.Status = domain.ReservationReleased
		}
		updated, err = store.UpdateReservation(ctx, res)
		return err
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	return updated, nil
}

// ConfirmAllocation baixa definitivamente a quantidade reservada (sem crédito ao disponível).
// Confirmar acima do que resta sob o token falha com OverConfirm.
func (s *Service) ConfirmAllocation(ctx context.Context, req domain.SettleRequest) (domain.Reservation, error) {
	pairs, err := validateSettle(req)
	if err != nil {
		return domain.Reservation{}, err
	}

	res, err := retrier.OnConflict(ctx, s.retry, s.logger, "confirm", func(ctx context.Context) (domain.Reservation, error) {
		return s.confirmOnce(ctx, req, pairs)
	})
	if err != nil {
		s.logger.Error("Falha ao confirmar alocação.", err)
		return domain.Reservation{}, err
	}

	s.invalidate(ctx, req.VariantID)
	s.logger.Info("Alocação confirmada.", map[string]interface{}{
		"variant_id": req.VariantID,
		"ref_id":     req.RefID,
		"status":     res.Status,
		"remaining":  res.RemainingTotal(),
	})
	return res, nil
}

func (s *Service) confirmOnce(ctx context.Context, req domain.SettleRequest, pairs []domain.LotAllocation) (domain.Reservation, error) {
	var updated domain.Reservation

	err := s.repo.WithinTx(ctx, func(ctx context.Context, store domain.LotStore) error {
		res, err := store.GetReservation(ctx, req.VariantID, req.RefID)
		if err != nil {
			return err
		}
		if res.Status == domain.ReservationReleased {
			return apperror.NewAlreadyReleasedError(req.RefID)
		}

		// Valida tudo antes de mover qualquer lote.
		for _, pair := range pairs {
			line, ok := res.Line(pair.LotID)
			if !ok {
				return apperror.NewNotFoundError(fmt.Sprintf("O lote %s não faz parte da reserva %s.", pair.LotID, req.RefID))
			}
			if pair.Quantity > line.Remaining {
				return apperror.NewOverConfirmError(pair.LotID, pair.Quantity, line.Remaining)
			}
		}

		for _, pair := range pairs {
			line, _ := res.Line(pair.LotID)
			move := s.ledger.NewMove(ledgerservice.Event{
				VariantID:     req.VariantID,
				LotID:         pair.LotID,
				ChangeType:    domain.ChangeOut,
				RefType:       domain.RefOrder,
				RefID:         req.RefID,
				Quantity:      pair.Quantity,
				Reason:        reasonConfirmed,
				ReservedDelta: -pair.Quantity,
			}, false)
			if _, err := store.MoveQuantity(ctx, move); err != nil {
				return err
			}
			line.Remaining -= pair.Quantity
		}

		if res.RemainingTotal() == 0 {
			res.Status = domain.ReservationConfirmed
		}
		updated, err = store.UpdateReservation(ctx, res)
		return err
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	return updated, nil
}

// validateSettle valida o payload e soma pares repetidos do mesmo lote.
func validateSettle(req domain.SettleRequest) ([]domain.LotAllocation, error) {
	if req.VariantID == "" {
		return nil, apperror.NewValidationError("O ID da variante é obrigatório.")
	}
	if req.RefID == "" {
		return nil, apperror.NewValidationError("O ref_id da reserva é obrigatório.")
	}
	if len(req.Lots) == 0 {
		return nil, apperror.NewValidationError("Informe ao menos um par (lot_id, quantity).")
	}

	index := make(map[string]int, len(req.Lots))
	pairs := make([]domain.LotAllocation, 0, len(req.Lots))
	for _, a := range req.Lots {
		if a.LotID == "" || a.Quantity <= 0 {
			return nil, apperror.NewValidationError("Cada par precisa de lot_id e quantidade positiva.")
		}
		if i, ok := index[a.LotID]; ok {
			pairs[i].Quantity += a.Quantity
			continue
		}
		index[a.LotID] = len(pairs)
		pairs = append(pairs, a)
	}
	return pairs, nil
}

func (s *Service) invalidate(ctx context.Context, variantID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, variantID)
	}
}

func totalQuantity(lines []domain.ReservationLine) int {
	total := 0
	for _, l := range lines {
		total += l.Quantity
	}
	return total
}

func allocationsOf(lines []domain.ReservationLine) []domain.LotAllocation {
	allocations := make([]domain.LotAllocation, 0, len(lines))
	for _, l := range lines {
		allocations = append(allocations, domain.LotAllocation{LotID: l.LotID, Quantity: l.Quantity})
	}
	return allocations
}
