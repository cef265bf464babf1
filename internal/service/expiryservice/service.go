package expiryservice

import (
	"context"
	"time"

	"lotstock/internal/domain"
	apperror "lotstock/internal/errors"
	"lotstock/internal/pkg/logger"
	"lotstock/internal/service/ledgerservice"
)

const reasonExpired = "lot expired"

// StockCache é avisado depois de cada lote vencido.
type StockCache interface {
	Invalidate(ctx context.Context, variantID string)
}

// ExpirySweepStats resume uma varredura.
type ExpirySweepStats struct {
	Scanned      int       `json:"scanned"`
	Expired      int       `json:"expired"`
	Skipped      int       `json:"skipped"` // lote mudou de status antes da transição
	Failed       int       `json:"failed"`
	UnitsBlocked int       `json:"units_blocked"`
	RanAt        time.Time `json:"ran_at"`
}

// Service é o ExpiryGuard: passa para EXPIRED os lotes ACTIVE com best_before vencido.
type Service struct {
	repo   domain.LotRepository
	ledger *ledgerservice.Service
	cache  StockCache
	logger logger.Logger
	now    func() time.Time
}

// NewService cria e retorna uma nova instância do serviço de vencimento.
func NewService(repo domain.LotRepository, ledger *ledgerservice.Service, cache StockCache, logger logger.Logger) *Service {
	return &Service{
		repo:   repo,
		ledger: ledger,
		cache:  cache,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock troca o relógio usado para decidir o vencimento.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// BlockExpiredLots marca como EXPIRED cada lote ACTIVE vencido e grava um ADJUSTMENT/SYSTEM no ledger.
// Cada lote roda na própria transação; a falha de um lote não interrompe os demais.
// Rodar de novo não gera entradas duplicadas, pois a transição exige status ACTIVE.
func (s *Service) BlockExpiredLots(ctx context.Context) (ExpirySweepStats, error) {
	stats := ExpirySweepStats{RanAt: s.now()}

	lots, err := s.repo.ListExpirableLots(ctx, stats.RanAt)
	if err != nil {
		s.logger.Error("Falha ao listar lotes vencidos.", err)
		return stats, apperror.NewInternalError("Falha ao listar lotes vencidos.", err)
	}
	stats.Scanned = len(lots)

	for _, candidate := range lots {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		expired, units, err := s.expireLot(ctx, candidate.ID)
		switch {
		case err != nil:
			stats.Failed++
			s.logger.Warn("Falha ao expirar lote.", map[string]interface{}{"lot_id": candidate.ID, "error": err.Error()})
		case !expired:
			stats.Skipped++
		default:
			stats.Expired++
			stats.UnitsBlocked += units
			if s.cache != nil {
				s.cache.Invalidate(ctx, candidate.VariantID)
			}
		}
	}

	s.logger.Info("Varredura de vencimento concluída.", map[string]interface{}{
		"scanned":       stats.Scanned,
		"expired":       stats.Expired,
		"skipped":       stats.Skipped,
		"failed":        stats.Failed,
		"units_blocked": stats.UnitsBlocked,
	})
	return stats, nil
}

func (s *Service) expireLot(ctx context.Context, lotID string) (bool, int, error) {
	var (
		expired bool
		units   int
	)
	err := s.repo.WithinTx(ctx, func(ctx context.Context, store domain.LotStore) error {
		lot, err := store.GetLot(ctx, lotID)
		if err != nil {
			return err
		}

		changed, err := store.TransitionStatus(ctx, lot.ID, domain.LotStatusActive, domain.LotStatusExpired)
		if err != nil || !changed {
			return err
		}

		if _, err := s.ledger.Record(ctx, store, ledgerservice.Event{
			VariantID:  lot.VariantID,
			LotID:      lot.ID,
			ChangeType: domain.ChangeAdjustment,
			RefType:    domain.RefSystem,
			Quantity:   lot.Total(),
			Reason:     reasonExpired,
			StatusFrom: domain.LotStatusActive,
			StatusTo:   domain.LotStatusExpired,
			Extra:      map[string]string{"best_before": lot.BestBefore.Format("2006-01-02")},
		}); err != nil {
			return err
		}

		expired, units = true, lot.Total()
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return expired, units, nil
}
