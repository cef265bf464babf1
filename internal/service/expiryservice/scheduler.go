package expiryservice

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	apperror "lotstock/internal/errors"
	"lotstock/internal/pkg/cache"
	"lotstock/internal/pkg/logger"
)

// LeaseKey é a chave do lease no Redis; só a instância que a grava roda a varredura.
const LeaseKey = "lock:expiry-sweep"

// Sweeper é a varredura executada a cada tick.
type Sweeper interface {
	BlockExpiredLots(ctx context.Context) (ExpirySweepStats, error)
}

// Scheduler roda a varredura periodicamente, protegida por um lease SetNX.
type Scheduler struct {
	sweeper  Sweeper
	lease    cache.Client
	interval time.Duration
	leaseTTL time.Duration
	owner    string
	logger   logger.Logger

	cancel    context.CancelFunc
	done      chan struct{}
	mu        sync.Mutex
	isRunning bool
}

// NewScheduler cria e retorna uma nova instância do agendador de vencimento.
func NewScheduler(sweeper Sweeper, lease cache.Client, interval, leaseTTL time.Duration, logger logger.Logger) *Scheduler {
	return &Scheduler{
		sweeper:  sweeper,
		lease:    lease,
		interval: interval,
		leaseTTL: leaseTTL,
		owner:    uuid.New().String(),
		logger:   logger,
	}
}

// Start roda uma varredura imediata e depois uma a cada intervalo.
// Um intervalo não positivo é recusado com ValidationError.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return apperror.NewValidationError("O intervalo da varredura deve ser positivo.")
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	go s.runLoop(ctx, done)

	s.logger.Info("Agendador de vencimento iniciado.", map[string]interface{}{
		"interval":  s.interval.String(),
		"lease_ttl": s.leaseTTL.String(),
	})
	return nil
}

// Stop cancela o loop e espera a varredura em andamento terminar (ou ctx expirar).
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	cancel()

	select {
	case <-done:
		s.logger.Info("Agendador de vencimento parado.", nil)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce tenta o lease e, se conseguir, roda a varredura.
// Retorna false quando outra instância detém o lease.
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	if s.lease != nil {
		acquired, err := s.lease.SetNX(ctx, LeaseKey, s.owner, s.leaseTTL)
		if err != nil {
			s.logger.Warn("Falha ao obter lease da varredura, pulando ciclo.", map[string]interface{}{"error": err.Error()})
			return false
		}
		if !acquired {
			s.logger.Debug("Lease da varredura pertence a outra instância.", nil)
			return false
		}
	}

	if _, err := s.sweeper.BlockExpiredLots(ctx); err != nil {
		s.logger.Error("Falha na varredura de vencimento.", err)
	}
	return true
}
