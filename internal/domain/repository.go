package domain

import (
	"context"
	"time"
)

// --- Contrato de Persistência (LotRepository) ---

// LotStore reúne as operações sobre lotes, ledger e reservas.
// Quando obtido dentro de LotRepository.WithinTx, todas as chamadas fazem parte
// da mesma transação.
type LotStore interface {
	// GetLot busca um lote pelo ID. Dentro de uma transação, a linha fica bloqueada (FOR UPDATE).
	GetLot(ctx context.Context, lotID string) (Lot, error)
	// ListLotsByVariant retorna os lotes da variante ordenados por BestBefore ascendente.
	ListLotsByVariant(ctx context.Context, variantID string, activeOnly bool) ([]Lot, error)
	// ListExpirableLots retorna os lotes ACTIVE com BestBefore anterior a asOf.
	ListExpirableLots(ctx context.Context, asOf time.Time) ([]Lot, error)
	// InsertLot cria um novo lote.
	InsertLot(ctx context.Context, lot Lot) (Lot, error)
	// MoveQuantity aplica um QuantityMove como UPDATE condicional e grava move.Entry.
	// Zero linhas afetadas retorna ConflictError (ou NotFound / InvalidLotStatus quando for o caso).
	MoveQuantity(ctx context.Context, move QuantityMove) (Lot, error)
	// TransitionStatus muda o status somente se o atual for `from`. Retorna false se nada mudou.
	TransitionStatus(ctx context.Context, lotID string, from, to LotStatus) (bool, error)

	// AppendLedger grava uma entrada imutável no ledger.
	AppendLedger(ctx context.Context, entry LedgerEntry) (LedgerEntry, error)
	// ListLedger retorna as entradas da variante da mais nova para a mais antiga.
	ListLedger(ctx context.Context, variantID string, limit int) ([]LedgerHistoryEntry, error)
	// ListLedgerByLot retorna todas as entradas de um lote em ordem cronológica.
	ListLedgerByLot(ctx context.Context, lotID string) ([]LedgerEntry, error)

	// InsertReservation grava o token de uma reserva bem-sucedida.
	InsertReservation(ctx context.Context, reservation Reservation) (Reservation, error)
	// GetReservation busca a reserva de refID para a variante (bloqueando a linha dentro de transação).
	GetReservation(ctx context.Context, variantID, refID string) (Reservation, error)
	// UpdateReservation persiste status e linhas com controle de versão otimista.
	UpdateReservation(ctx context.Context, reservation Reservation) (Reservation, error)
}

// LotRepository é o contrato que a camada de Persistência DEVE implementar.
// Os serviços dependem dele por injeção; o motor de armazenamento é externo.
type LotRepository interface {
	LotStore
	// WithinTx executa fn em uma única transação: erro em fn faz rollback de tudo.
	WithinTx(ctx context.Context, fn func(ctx context.Context, store LotStore) error) error
}
