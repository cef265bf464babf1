package stockservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lotstock/internal/domain"
	apperror "lotstock/internal/errors"
	"lotstock/internal/pkg/logger"
	"lotstock/internal/pkg/retrier"
	"lotstock/internal/service/ledgerservice"
)

const reasonReceived = "lot received"

// StockCache é avisado depois de cada mutação confirmada.
type StockCache interface {
	Invalidate(ctx context.Context, variantID string)
}

// WarehouseLookup confirma que o armazém informado no recebimento existe.
type WarehouseLookup interface {
	GetWarehouse(ctx context.Context, id string) (domain.Warehouse, error)
}

// Service concentra as mutações administrativas de estoque (recebimento, entradas, ajustes e status).
type Service struct {
	repo   domain.LotRepository
	ledger *ledgerservice.Service
	cache  StockCache
	retry  retrier.Policy
	logger logger.Logger

	warehouses WarehouseLookup // opcional
}

// NewService cria e retorna uma nova instância do Serviço de Estoque.
func NewService(repo domain.LotRepository, ledger *ledgerservice.Service, cache StockCache, retry retrier.Policy, logger logger.Logger) *Service {
	return &Service{repo: repo, ledger: ledger, cache: cache, retry: retry, logger: logger}
}

// WithWarehouses passa a exigir que warehouse_id do recebimento seja um armazém cadastrado.
func (s *Service) WithWarehouses(lookup WarehouseLookup) *Service {
	s.warehouses = lookup
	return s
}

// ReceiveLot cria um lote ACTIVE com a quantidade recebida e registra a entrada no ledger.
func (s *Service) ReceiveLot(ctx context.Context, receipt domain.LotReceipt) (domain.Lot, error) {
	s.logger.Debug("Iniciando recebimento de lote no serviço.", map[string]interface{}{
		"variant_id": receipt.VariantID,
		"batch_code": receipt.BatchCode,
		"quantity":   receipt.Quantity,
	})

	if err := validateReceipt(receipt); err != nil {
		s.logger.Warn("Falha na validação do recebimento.", map[string]interface{}{"batch_code": receipt.BatchCode, "error": err.Error()})
		return domain.Lot{}, err
	}
	if err := s.checkWarehouse(ctx, receipt.WarehouseID); err != nil {
		return domain.Lot{}, err
	}

	reason := strings.TrimSpace(receipt.Reason)
	if reason == "" {
		reason = reasonReceived
	}

	var received domain.Lot
	err := s.repo.WithinTx(ctx, func(ctx context.Context, store domain.LotStore) error {
		lot, err := store.InsertLot(ctx, domain.Lot{
			VariantID:    receipt.VariantID,
			BatchCode:    strings.TrimSpace(receipt.BatchCode),
			OriginEstate: strings.TrimSpace(receipt.OriginEstate),
			HarvestedOn:  receipt.HarvestedOn,
			BestBefore:   receipt.BestBefore,
			Status:       domain.LotStatusActive,
			WarehouseID:  receipt.WarehouseID,
		})
		if err != nil {
			return err
		}

		received, err = store.MoveQuantity(ctx, s.ledger.NewMove(ledgerservice.Event{
			VariantID:      lot.VariantID,
			LotID:          lot.ID,
			ChangeType:     domain.ChangeIn,
			RefType:        domain.RefAdmin,
			RefID:          lot.ID,
			Quantity:       receipt.Quantity,
			Reason:         reason,
			AvailableDelta: receipt.Quantity,
			StatusTo:       domain.LotStatusActive,
		}, true))
		return err
	})
	if err != nil {
		s.logger.Error("Falha ao receber lote.", err)
		return domain.Lot{}, translate(err, "Falha interna ao receber lote.")
	}

	s.invalidate(ctx, received.VariantID)
	s.logger.Info("Lote recebido com sucesso.", map[string]interface{}{
		"lot_id":     received.ID,
		"variant_id": received.VariantID,
		"quantity":   received.QtyAvailable,
	})
	return received, nil
}

func (s *Service) checkWarehouse(ctx context.Context, warehouseID *string) error {
	if warehouseID == nil || s.warehouses == nil {
		return nil
	}
	if _, err := s.warehouses.GetWarehouse(ctx, *warehouseID); err != nil {
		var notFound *apperror.NotFoundError
		if errors.As(err, &notFound) {
			return apperror.NewValidationError(fmt.Sprintf("Armazém %s não cadastrado.", *warehouseID))
		}
		return translate(err, "Falha interna ao validar armazém.")
	}
	return nil
}

func validateReceipt(r domain.LotReceipt) error {
	if r.VariantID == "" {
		return apperror.NewValidationError("O ID da variante é obrigatório.")
	}
	if strings.TrimSpace(r.BatchCode) == "" {
		return apperror.NewValidationError("O código do lote (batch_code) é obrigatório.")
	}
	if r.Quantity <= 0 {
		return apperror.NewValidationError("A quantidade recebida deve ser maior que zero.")
	}
	if r.BestBefore.IsZero() {
		return apperror.NewValidationError("A data best_before é obrigatória.")
	}
	if !r.HarvestedOn.IsZero() && r.HarvestedOn.After(r.BestBefore) {
		return apperror.NewValidationError("A colheita não pode ser posterior ao best_before.")
	}
	return nil
}

// AddStock soma quantity ao disponível de um lote ACTIVE.
func (s *Service) AddStock(ctx context.Context, req domain.StockAdjustmentRequest) (domain.Lot, error) {
	if req.Delta <= 0 {
		return domain.Lot{}, apperror.NewValidationError("A quantidade adicionada deve ser maior que zero.")
	}
	return s.applyDelta(ctx, req, "add_stock")
}

// AdjustStock aplica um delta com sinal ao disponível do lote.
// Resultado negativo falha com InsufficientStock. Ajustes positivos exigem lote ACTIVE.
func (s *Service) AdjustStock(ctx context.Context, req domain.StockAdjustmentRequest) (domain.Lot, error) {
	if req.Delta == 0 {
		return domain.Lot{}, apperror.NewValidationError("O ajuste de estoque (delta) não pode ser zero.")
	}
	return s.applyDelta(ctx, req, "adjust_stock")
}

func (s *Service) applyDelta(ctx context.Context, req domain.StockAdjustmentRequest, opName string) (domain.Lot, error) {
	s.logger.Debug("Iniciando ajuste de estoque no serviço.", map[string]interface{}{
		"variant_id": req.VariantID,
		"lot_id":     req.LotID,
		"delta":      req.Delta,
		"operation":  opName,
	})

	if req.VariantID == "" || req.LotID == "" {
		return domain.Lot{}, apperror.NewValidationError("variant_id e lot_id são obrigatórios.")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return domain.Lot{}, apperror.NewValidationError("Informe o motivo do ajuste.")
	}

	lot, err := retrier.OnConflict(ctx, s.retry, s.logger, opName, func(ctx context.Context) (domain.Lot, error) {
		var updated domain.Lot
		err := s.repo.WithinTx(ctx, func(ctx context.Context, store domain.LotStore) error {
			lot, err := store.GetLot(ctx, req.LotID)
			if err != nil {
				return err
			}
			if lot.VariantID != req.VariantID {
				return apperror.NewNotFoundError(fmt.Sprintf("Lote %s não pertence à variante %s.", req.LotID, req.VariantID))
			}
			if req.Delta > 0 && !lot.IsActive() {
				return apperror.NewInvalidLotStatusError(lot.ID, string(lot.Status))
			}
			if lot.QtyAvailable+req.Delta < 0 {
				return apperror.NewInsufficientStockError(
					fmt.Sprintf("ajuste de %d no lote %s", req.Delta, lot.BatchCode), lot.QtyAvailable)
			}

			change, qty := domain.ChangeIn, req.Delta
			if req.Delta < 0 {
				change, qty = domain.ChangeOut, -req.Delta
			}

			updated, err = store.MoveQuantity(ctx, s.ledger.NewMove(ledgerservice.Event{
				VariantID:      lot.VariantID,
				LotID:          lot.ID,
				ChangeType:     change,
				RefType:        domain.RefAdmin,
				Quantity:       qty,
				Reason:         strings.TrimSpace(req.Reason),
				AvailableDelta: req.Delta,
			}, req.Delta > 0))
			return err
		})
		return updated, err
	})
	if err != nil {
		s.logger.Error("Falha ao ajustar estoque.", err)
		return domain.Lot{}, translate(err, "Falha interna ao ajustar estoque.")
	}

	s.invalidate(ctx, lot.VariantID)
	s.logger.Info("Estoque ajustado com sucesso.", map[string]interface{}{
		"variant_id":    lot.VariantID,
		"lot_id":        lot.ID,
		"qty_available": lot.QtyAvailable,
		"new_version":   lot.Version,
	})
	return lot, nil
}

// ChangeLotStatus bloqueia ou coloca em quarentena um lote ACTIVE.
// BLOCKED gera ADJUSTMENT e QUARANTINE gera DAMAGED no ledger, com a quantidade física do lote.
func (s *Service) ChangeLotStatus(ctx context.Context, req domain.LotStatusChangeRequest) (domain.Lot, error) {
	var change domain.ChangeType
	switch req.Status {
	case domain.LotStatusBlocked:
		change = domain.ChangeAdjustment
	case domain.LotStatusQuarantine:
		change = domain.ChangeDamaged
	default:
		return domain.Lot{}, apperror.NewValidationError("O status manual deve ser BLOCKED ou QUARANTINE.")
	}
	if req.LotID == "" {
		return domain.Lot{}, apperror.NewValidationError("O ID do lote é obrigatório.")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return domain.Lot{}, apperror.NewValidationError("Informe o motivo da mudança de status.")
	}

	var updated domain.Lot
	err := s.repo.WithinTx(ctx, func(ctx context.Context, store domain.LotStore) error {
		lot, err := store.GetLot(ctx, req.LotID)
		if err != nil {
			return err
		}
		if !lot.Status.CanTransitionTo(req.Status) {
			return apperror.NewInvalidLotStatusError(lot.ID, string(lot.Status))
		}

		changed, err := store.TransitionStatus(ctx, lot.ID, lot.Status, req.Status)
		if err != nil {
			return err
		}
		if !changed {
			return apperror.NewConflictError(fmt.Sprintf("O status do lote %s mudou durante a operação.", lot.ID))
		}

		if _, err := s.ledger.Record(ctx, store, ledgerservice.Event{
			VariantID:  lot.VariantID,
			LotID:      lot.ID,
			ChangeType: change,
			RefType:    domain.RefAdmin,
			Quantity:   lot.Total(),
			Reason:     strings.TrimSpace(req.Reason),
			StatusFrom: lot.Status,
			StatusTo:   req.Status,
		}); err != nil {
			return err
		}

		updated, err = store.GetLot(ctx, lot.ID)
		return err
	})
	if err != nil {
		s.logger.Error("Falha ao mudar status do lote.", err)
		return domain.Lot{}, translate(err, "Falha interna ao mudar status do lote.")
	}

	s.invalidate(ctx, updated.VariantID)
	s.logger.Info("Status do lote alterado.", map[string]interface{}{
		"lot_id": updated.ID,
		"status": updated.Status,
	})
	return updated, nil
}

// ReconcileLot compara as colunas do lote com o saldo reconstruído a partir do ledger.
func (s *Service) ReconcileLot(ctx context.Context, lotID string) (ledgerservice.Reconciliation, error) {
	if lotID == "" {
		return ledgerservice.Reconciliation{}, apperror.NewValidationError("O ID do lote é obrigatório.")
	}
	rec, err := s.ledger.ReconcileLot(ctx, s.repo, lotID)
	if err != nil {
		return ledgerservice.Reconciliation{}, translate(err, "Falha interna ao reconciliar lote.")
	}
	return rec, nil
}

// translate mantém erros de domínio e embrulha o resto como InternalError.
func translate(err error, msg string) error {
	var appErr apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.NewInternalError(msg, err)
}

func (s *Service) invalidate(ctx context.Context, variantID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, variantID)
	}
}
