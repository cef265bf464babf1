package lotrepo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"lotstock/internal/domain"
	"lotstock/internal/errors"
	"lotstock/internal/pkg/logger"
)

// querier é o subconjunto comum de *sql.DB e *sql.Tx usado pelo repositório.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var _ domain.LotRepository = (*LotRepository)(nil)

// LotRepository implementa a interface domain.LotRepository sobre PostgreSQL.
type LotRepository struct {
	DB        *sql.DB
	DBTimeout time.Duration
	logger    logger.Logger

	q    querier // DB fora de transação, Tx dentro de WithinTx
	inTx bool
}

// NewLotRepository cria e retorna uma nova instância do Repositório de Lotes.
func NewLotRepository(db *sql.DB, dbTimeout time.Duration, logger logger.Logger) *LotRepository {
	return &LotRepository{
		DB:        db,
		DBTimeout: dbTimeout,
		logger:    logger,
		q:         db,
	}
}

// WithinTx executa fn dentro de uma transação. Qualquer erro faz rollback.
func (r *LotRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, store domain.LotStore) error) error {
	if r.inTx {
		// Transações aninhadas reaproveitam a transação corrente.
		return fn(ctx, r)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		r.logger.Error("Falha ao iniciar transação.", err)
		return errors.NewDBError("Falha ao iniciar transação", err)
	}
	defer tx.Rollback() // Sem efeito após o Commit

	txRepo := &LotRepository{
		DB:        r.DB,
		DBTimeout: r.DBTimeout,
		logger:    r.logger,
		q:         tx,
		inTx:      true,
	}

	if err := fn(ctxTimeout, txRepo); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Falha ao commitar transação.", err)
		return errors.NewDBError("Falha ao commitar transação", err)
	}
	return nil
}

// atomic garante que fn rode em transação, abrindo uma se necessário.
func (r *LotRepository) atomic(ctx context.Context, fn func(ctx context.Context, repo *LotRepository) error) error {
	if r.inTx {
		return fn(ctx, r)
	}
	return r.WithinTx(ctx, func(ctx context.Context, store domain.LotStore) error {
		return fn(ctx, store.(*LotRepository))
	})
}

func (r *LotRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.DBTimeout)
}

// --- Lotes ---

const lotColumns = `id, variant_id, batch_code, origin_estate, harvested_on, best_before, status,
        qty_available, qty_reserved, warehouse_id, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLot(row rowScanner) (domain.Lot, error) {
	var (
		lot       domain.Lot
		status    string
		warehouse sql.NullString
	)
	err := row.Scan(
		&lot.ID, &lot.VariantID, &lot.BatchCode, &lot.OriginEstate, &lot.HarvestedOn, &lot.BestBefore, &status,
		&lot.QtyAvailable, &lot.QtyReserved, &warehouse, &lot.Version, &lot.CreatedAt, &lot.UpdatedAt,
	)
	if err != nil {
		return domain.Lot{}, err
	}
	lot.Status = domain.LotStatus(status)
	if warehouse.Valid {
		w := warehouse.String
		lot.WarehouseID = &w
	}
	return lot, nil
}

// GetLot busca um lote pelo ID. Dentro de transação, bloqueia a linha (FOR UPDATE).
func (r *LotRepository) GetLot(ctx context.Context, lotID string) (domain.Lot, error) {
	ctxTimeout, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + lotColumns + ` FROM lots WHERE id = $1`
	if r.inTx {
		query += ` FOR UPDATE`
	}

	lot, err := scanLot(r.q.QueryRowContext(ctxTimeout, query, lotID))
	if err == sql.ErrNoRows {
		r.logger.Info("Lote não encontrado.", map[string]interface{}{"lot_id": lotID})
		return domain.Lot{}, errors.NewNotFoundError(fmt.Sprintf("Lote %s não encontrado.", lotID))
	}
	if err != nil {
		r.logger.Error("Falha ao buscar lote no DB.", err)
		return domain.Lot{}, errors.NewDBError("Falha ao buscar lote", err)
	}
	return lot, nil
}

// ListLotsByVariant retorna os lotes da variante, do best-before mais próximo ao mais distante.
func (r *LotRepository) ListLotsByVariant(ctx context.Context, variantID string, activeOnly bool) ([]domain.Lot, error) {
	ctxTimeout, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + lotColumns + `
        FROM lots
        WHERE variant_id = $1 AND ($2::boolean = FALSE OR status = 'ACTIVE')
        ORDER BY best_before ASC, created_at ASC`

	return r.queryLots(ctxTimeout, "Falha ao listar lotes da variante", query, variantID, activeOnly)
}

// ListExpirableLots retorna os lotes ACTIVE com best_before anterior a asOf.
func (r *LotRepository) ListExpirableLots(ctx context.Context, asOf time.Time) ([]domain.Lot, error) {
	ctxTimeout, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + lotColumns + `
        FROM lots
        WHERE status = 'ACTIVE' AND best_before < $1
        ORDER BY best_before ASC`

	return r.queryLots(ctxTimeout, "Falha ao listar lotes vencidos", query, asOf)
}

func (r *LotRepository) queryLots(ctx context.Context, failMsg, query string, args ...interface{}) ([]domain.Lot, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error(failMsg, err)
		return nil, errors.NewDBError(failMsg, err)
	}
	defer rows.Close()

	lots := make([]domain.Lot, 0)
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			r.logger.Error("Falha ao ler linha de lote.", err)
			return nil, errors.NewDBError(failMsg, err)
		}
		lots = append(lots, lot)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError(failMsg, err)
	}
	return lots, nil
}

// InsertLot cria um novo lote.
func (r *LotRepository) InsertLot(ctx context.Context, lot domain.Lot) (domain.Lot, error) {
	ctxTimeout, cancel := r.withTimeout(ctx)
	defer cancel()

	if lot.ID == "" {
		lot.ID = uuid.New().String()
	}
	if lot.Status == "" {
		lot.Status = domain.LotStatusActive
	}
	now := time.Now().UTC()

	query := `
        INSERT INTO lots (id, variant_id, batch_code, origin_estate, harvested_on, best_before, status,
            qty_available, qty_reserved, warehouse_id, version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, $11, $11)
        RETURNING ` + lotColumns

	created, err := scanLot(r.q.QueryRowContext(ctxTimeout, query,
		lot.ID, lot.VariantID, lot.BatchCode, lot.OriginEstate, lot.HarvestedOn, lot.BestBefore, string(lot.Status),
		lot.QtyAvailable, lot.QtyReserved, lot.WarehouseID, now,
	))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			r.logger.Warn("Lote duplicado para a variante.", map[string]interface{}{"variant_id": lot.VariantID, "batch_code": lot.BatchCode})
			return domain.Lot{}, errors.NewValidationError(fmt.Sprintf("Já existe um lote %s para a variante %s.", lot.BatchCode, lot.VariantID))
		}
		r.logger.Error("Falha ao inserir lote no DB.", err)
		return domain.Lot{}, errors.NewDBError("Falha ao criar lote", err)
	}

	r.logger.Info("Lote criado com sucesso.", map[string]interface{}{"lot_id": created.ID, "variant_id": created.VariantID})
	return created, nil
}

// MoveQuantity aplica o movimento com UPDATE condicional e grava a entrada do ledger na mesma transação.
// Nunca faz read-modify-write: a checagem de saldo está no WHERE.
func (r *LotRepository) MoveQuantity(ctx context.Context, move domain.QuantityMove) (domain.Lot, error) {
	var moved domain.Lot
	err := r.atomic(ctx, func(ctx context.Context, repo *LotRepository) error {
		query := `
            UPDATE lots
            SET qty_available = qty_available + $2,
                qty_reserved = qty_reserved + $3,
                version = version + 1,
                updated_at = $4
            WHERE id = $1
              AND qty_available + $2 >= 0
              AND qty_reserved + $3 >= 0
              AND (NOT $5::boolean OR status = 'ACTIVE')
            RETURNING ` + lotColumns

		lot, err := scanLot(repo.q.QueryRowContext(ctx, query,
			move.LotID, move.AvailableDelta, move.ReservedDelta, time.Now().UTC(), move.RequireActive,
		))
		if err == sql.ErrNoRows {
			return repo.diagnoseMoveFailure(ctx, move)
		}
		if err != nil {
			repo.logger.Error("Falha ao movimentar quantidades do lote.", err)
			return errors.NewDBError("Falha ao atualizar lote", err)
		}

		entry := move.Entry
		lotID := lot.ID
		entry.LotID = &lotID
		if entry.VariantID == "" {
			entry.VariantID = lot.VariantID
		}
		if _, err := repo.AppendLedger(ctx, entry); err != nil {
			return err
		}

		moved = lot
		return nil
	})
	if err != nil {
		return domain.Lot{}, err
	}

	r.logger.Debug("Quantidades do lote movimentadas.", map[string]interface{}{
		"lot_id":          moved.ID,
		"available_delta": move.AvailableDelta,
		"reserved_delta":  move.ReservedDelta,
		"new_version":     moved.Version,
	})
	return moved, nil
}

// diagnoseMoveFailure explica por que o UPDATE condicional não afetou linhas.
func (r *LotRepository) diagnoseMoveFailure(ctx context.Context, move domain.QuantityMove) error {
	var status string
	err := r.q.QueryRowContext(ctx, `SELECT status FROM lots WHERE id = $1`, move.LotID).Scan(&status)
	if err == sql.ErrNoRows {
		return errors.NewNotFoundError(fmt.Sprintf("Lote %s não encontrado.", move.LotID))
	}
	if err != nil {
		return errors.NewDBError("Falha ao verificar lote", err)
	}
	if move.RequireActive && domain.LotStatus(status) != domain.LotStatusActive {
		return errors.NewInvalidLotStatusError(move.LotID, status)
	}

	r.logger.Warn("UPDATE condicional sem linhas afetadas. Saldo do lote mudou.", map[string]interface{}{
		"lot_id":          move.LotID,
		"available_delta": move.AvailableDelta,
		"reserved_delta":  move.ReservedDelta,
	})
	return errors.NewConflictError(fmt.Sprintf("O lote %s foi modificado por outra operação. Tente novamente.", move.LotID))
}

// TransitionStatus muda o status do lote somente se o atual for `from`.
func (r *LotRepository) TransitionStatus(ctx context.Context, lotID string, from, to domain.LotStatus) (bool, error) {
	ctxTimeout, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
        UPDATE lots
        SET status = $3, version = version + 1, updated_at = $4
        WHERE id = $1 AND status = $2`

	result, err := r.q.ExecContext(ctxTimeout, query, lotID, string(from), string(to), time.Now().UTC())
	if err != nil {
		r.logger.Error("Falha ao atualizar status do lote.", err)
		return false, errors.NewDBError("Falha ao atualizar status do lote", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewDBError("Falha ao verificar linhas afetadas", err)
	}
	return rowsAffected == 1, nil
}

// --- Ledger ---

// AppendLedger grava uma entrada no ledger. A tabela só aceita INSERT.
func (r *LotRepository) AppendLedger(ctx context.Context, entry domain.LedgerEntry) (domain.LedgerEntry, error) {
	ctxTimeout, cancel := r.withTimeout(ctx)
	defer cancel()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var metadata interface{}
	if len(entry.Metadata) > 0 {
		metadata = []byte(entry.Metadata)
	}

	query := `
        INSERT INTO stock_ledger (id, variant_id, lot_id, change_type, ref_type, ref_id, quantity, reason, metadata, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.q.ExecContext(ctxTimeout, query,
		entry.ID, entry.VariantID, entry.LotID, string(entry.ChangeType), string(entry.RefType),
		entry.RefID, entry.Quantity, entry.Reason, metadata, entry.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Falha ao gravar entrada no ledger.", err)
		return domain.LedgerEntry{}, errors.NewDBError("Falha ao gravar ledger", err)
	}
	return entry, nil
}

const ledgerColumns = `l.id, l.variant_id, l.lot_id, l.change_type, l.ref_type, l.ref_id, l.quantity, l.reason, l.metadata, l.created_at`

func scanLedger(row rowScanner, extra ...interface{}) (domain.LedgerEntry, error) {
	var (
		entry      domain.LedgerEntry
		lotID      sql.NullString
		changeType string
		refType    string
		metadata   []byte
	)
	dest := []interface{}{
		&entry.ID, &entry.VariantID, &lotID, &changeType, &refType, &entry.RefID,
		&entry.Quantity, &entry.Reason, &metadata, &entry.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return domain.LedgerEntry{}, err
	}
	if lotID.Valid {
		id := lotID.String
		entry.LotID = &id
	}
	entry.ChangeType = domain.ChangeType(changeType)
	entry.RefType = domain.RefType(refType)
	if len(metadata) > 0 {
		entry.Metadata = metadata
	}
	return entry, nil
}

// ListLedger retorna o histórico da variante (mais novo primeiro), enriquecido com dados do lote.
func (r *LotRepository) ListLedger(ctx context.Context, variantID string, limit int) ([]domain.LedgerHistoryEntry, error) {
	ctxTimeout, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
        SELECT ` + ledgerColumns + `, COALESCE(lots.batch_code, ''), COALESCE(lots.origin_estate, '')
        FROM stock_ledger l
        LEFT JOIN lots ON lots.id = l.lot_id
        WHERE l.variant_id = $1
        ORDER BY l.seq DESC
        LIMIT $2`

	rows, err := r.q.QueryContext(ctxTimeout, query, variantID, limit)
	if err != nil {
		r.logger.Error("Falha ao buscar histórico do ledger.", err)
		return nil, errors.NewDBError("Falha ao buscar histórico", err)
	}
	defer rows.Close()

	history := make([]domain.LedgerHistoryEntry, 0, limit)
	for rows.Next() {
		var h domain.LedgerHistoryEntry
		entry, err := scanLedger(rows, &h.BatchCode, &h.OriginEstate)
		if err != nil {
			return nil, errors.NewDBError("Falha ao ler histórico", err)
		}
		h.LedgerEntry = entry
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao ler histórico", err)
	}
	return history, nil
}

// ListLedgerByLot retorna todas as entradas de um lote em ordem de gravação.
func (r *LotRepository) ListLedgerByLot(ctx context.Context, lotID string) ([]domain.LedgerEntry, error) {
	ctxTimeout, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + ledgerColumns + ` FROM stock_ledger l WHERE l.lot_id = $1 ORDER BY l.seq ASC`

	rows, err := r.q.QueryContext(ctxTimeout, query, lotID)
	if err != nil {
		r.logger.Error("Falha ao buscar ledger do lote.", err)
		return nil, errors.NewDBError("Falha ao buscar ledger do lote", err)
	}
	defer rows.Close()

	entries := make([]domain.LedgerEntry, 0)
	for rows.Next() {
		entry, err := scanLedger(rows)
		if err != nil {
			return nil, errors.NewDBError("Falha ao ler ledger do lote", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao ler ledger do lote", err)
	}
	return entries, nil
}
