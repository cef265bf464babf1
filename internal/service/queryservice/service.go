package queryservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lotstock/internal/domain"
	apperror "lotstock/internal/errors"
	"lotstock/internal/pkg/cache"
	"lotstock/internal/pkg/logger"
	"lotstock/internal/service/ledgerservice"
)

const stockCachePrefix = "stock:variant:"

// StockCacheKey é a chave do resumo de estoque da variante no cache.
func StockCacheKey(variantID string) string {
	return stockCachePrefix + variantID
}

// Service é o StockQueryService: leitura agregada dos lotes de uma variante.
type Service struct {
	repo     domain.LotStore
	ledger   *ledgerservice.Service
	cache    cache.Client // opcional
	cacheTTL time.Duration
	logger   logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Consulta.
// cacheClient pode ser nil; nesse caso toda leitura vai ao repositório.
func NewService(repo domain.LotStore, ledger *ledgerservice.Service, cacheClient cache.Client, cacheTTL time.Duration, logger logger.Logger) *Service {
	return &Service{
		repo:     repo,
		ledger:   ledger,
		cache:    cacheClient,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// GetStockInfo agrega os lotes ACTIVE da variante (best-before ascendente).
// NotFound só quando a variante não tem lote algum; sem lotes ACTIVE o resumo vem zerado.
func (s *Service) GetStockInfo(ctx context.Context, variantID string) (domain.StockInfo, error) {
	if variantID == "" {
		return domain.StockInfo{}, apperror.NewValidationError("O ID da variante é obrigatório.")
	}

	if info, ok := s.getCached(ctx, variantID); ok {
		return info, nil
	}

	lots, err := s.repo.ListLotsByVariant(ctx, variantID, false)
	if err != nil {
		s.logger.Error("Falha ao listar lotes da variante.", err)
		return domain.StockInfo{}, err
	}
	if len(lots) == 0 {
		return domain.StockInfo{}, apperror.NewNotFoundError(fmt.Sprintf("Nenhum lote para a variante %s.", variantID))
	}

	active := make([]domain.Lot, 0, len(lots))
	for _, lot := range lots {
		if lot.IsActive() {
			active = append(active, lot)
		}
	}

	info := Aggregate(variantID, active)
	// Uma leitura iniciada antes de uma mutação pode gravar o resumo antigo depois do
	// Invalidate; ele vive no máximo cacheTTL. CheckAvailability e Reserve não usam o cache.
	s.setCached(ctx, info)
	return info, nil
}

// Aggregate soma as quantidades dos lotes informados.
func Aggregate(variantID string, lots []domain.Lot) domain.StockInfo {
	info := domain.StockInfo{VariantID: variantID, Lots: lots}
	for _, lot := range lots {
		info.AvailableStock += lot.QtyAvailable
		info.ReservedStock += lot.QtyReserved
	}
	info.TotalStock = info.AvailableStock + info.ReservedStock
	return info
}

// CheckAvailability verifica se a quantidade pode ser reservada agora.
// Sempre lê do repositório: o cache serve apenas para exibição.
func (s *Service) CheckAvailability(ctx context.Context, variantID string, quantity int, lotID string) (domain.Availability, error) {
	if variantID == "" {
		return domain.Availability{}, apperror.NewValidationError("O ID da variante é obrigatório.")
	}
	if quantity <= 0 {
		return domain.Availability{}, apperror.NewValidationError("A quantidade deve ser maior que zero.")
	}

	var available int
	if lotID != "" {
		lot, err := s.repo.GetLot(ctx, lotID)
		if err != nil {
			return domain.Availability{}, err
		}
		if lot.VariantID != variantID {
			return domain.Availability{}, apperror.NewNotFoundError(fmt.Sprintf("Lote %s não pertence à variante %s.", lotID, variantID))
		}
		if !lot.IsActive() {
			return domain.Availability{
				Available: false,
				Message:   fmt.Sprintf("O lote %s está %s e não aceita reservas.", lot.BatchCode, lot.Status),
			}, nil
		}
		available = lot.QtyAvailable
	} else {
		lots, err := s.repo.ListLotsByVariant(ctx, variantID, true)
		if err != nil {
			s.logger.Error("Falha ao listar lotes da variante.", err)
			return domain.Availability{}, err
		}
		available = Aggregate(variantID, lots).AvailableStock
	}

	if available < quantity {
		return domain.Availability{
			Available:         false,
			AvailableQuantity: available,
			Message:           fmt.Sprintf("Estoque insuficiente: solicitado %d, disponível %d.", quantity, available),
		}, nil
	}
	return domain.Availability{Available: true, AvailableQuantity: available}, nil
}

// GetInventoryHistory retorna o ledger da variante, mais novo primeiro.
func (s *Service) GetInventoryHistory(ctx context.Context, variantID string, limit int) ([]domain.LedgerHistoryEntry, error) {
	if variantID == "" {
		return nil, apperror.NewValidationError("O ID da variante é obrigatório.")
	}
	return s.ledger.History(ctx, s.repo, variantID, limit)
}

// Invalidate descarta o resumo em cache da variante. Falhas de cache só geram log.
func (s *Service) Invalidate(ctx context.Context, variantID string) {
	if s.cache == nil || variantID == "" {
		return
	}
	if err := s.cache.Delete(ctx, StockCacheKey(variantID)); err != nil {
		s.logger.Warn("Falha ao invalidar cache de estoque.", map[string]interface{}{"variant_id": variantID, "error": err.Error()})
	}
}

func (s *Service) getCached(ctx context.Context, variantID string) (domain.StockInfo, bool) {
	if s.cache == nil {
		return domain.StockInfo{}, false
	}

	raw, err := s.cache.Get(ctx, StockCacheKey(variantID))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("Falha ao ler cache de estoque.", map[string]interface{}{"variant_id": variantID, "error": err.Error()})
		}
		return domain.StockInfo{}, false
	}

	var info domain.StockInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		s.logger.Warn("Cache de estoque corrompido, ignorando.", map[string]interface{}{"variant_id": variantID})
		return domain.StockInfo{}, false
	}

	s.logger.Debug("Cache hit do resumo de estoque.", map[string]interface{}{"variant_id": variantID})
	return info, true
}

func (s *Service) setCached(ctx context.Context, info domain.StockInfo) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, StockCacheKey(info.VariantID), raw, s.cacheTTL); err != nil {
		s.logger.Warn("Falha ao gravar cache de estoque.", map[string]interface{}{"variant_id": info.VariantID, "error": err.Error()})
	}
}
