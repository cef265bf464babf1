package warehouserepo

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"lotstock/internal/domain"
	"lotstock/internal/errors"
	"lotstock/internal/pkg/logger"
)

// WarehouseRepository persiste o cadastro de armazéns referenciado por lots.warehouse_id.
type WarehouseRepository struct {
	DB        *sql.DB
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewWarehouseRepository cria e retorna uma nova instância do Repositório de Armazéns.
func NewWarehouseRepository(db *sql.DB, dbTimeout time.Duration, logger logger.Logger) *WarehouseRepository {
	return &WarehouseRepository{
		DB:        db,
		DBTimeout: dbTimeout,
		logger:    logger,
	}
}

const warehouseColumns = `id, code, name, created_at, updated_at`

func scanWarehouse(row interface{ Scan(dest ...interface{}) error }) (domain.Warehouse, error) {
	var w domain.Warehouse
	err := row.Scan(&w.ID, &w.Code, &w.Name, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

// CreateWarehouse insere um novo armazém. Código repetido vira ValidationError.
func (r *WarehouseRepository) CreateWarehouse(ctx context.Context, warehouse domain.Warehouse) (domain.Warehouse, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	if warehouse.ID == "" {
		warehouse.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	query := `
        INSERT INTO warehouses (id, code, name, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $4)
        RETURNING ` + warehouseColumns

	created, err := scanWarehouse(r.DB.QueryRowContext(ctxTimeout, query, warehouse.ID, warehouse.Code, warehouse.Name, now))
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == "23505" {
			return domain.Warehouse{}, errors.NewValidationError(fmt.Sprintf("Já existe um armazém com o código %s.", warehouse.Code))
		}
		r.logger.Error("Falha ao inserir armazém no DB.", err)
		return domain.Warehouse{}, errors.NewDBError("Falha ao criar armazém", err)
	}

	r.logger.Info("Armazém criado com sucesso.", map[string]interface{}{"id": created.ID, "code": created.Code})
	return created, nil
}

// GetWarehouseByID busca um armazém pelo ID.
func (r *WarehouseRepository) GetWarehouseByID(ctx context.Context, id string) (domain.Warehouse, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	w, err := scanWarehouse(r.DB.QueryRowContext(ctxTimeout, `SELECT `+warehouseColumns+` FROM warehouses WHERE id = $1`, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return domain.Warehouse{}, errors.NewNotFoundError(fmt.Sprintf("Armazém com ID %s não encontrado.", id))
	}
	if err != nil {
		r.logger.Error("Falha ao buscar armazém no DB.", err)
		return domain.Warehouse{}, errors.NewDBError("Falha ao buscar armazém", err)
	}
	return w, nil
}

// ListWarehouses lista os armazéns por código.
func (r *WarehouseRepository) ListWarehouses(ctx context.Context) ([]domain.Warehouse, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	rows, err := r.DB.QueryContext(ctxTimeout, `SELECT `+warehouseColumns+` FROM warehouses ORDER BY code`)
	if err != nil {
		r.logger.Error("Falha ao listar armazéns.", err)
		return nil, errors.NewDBError("Falha ao listar armazéns", err)
	}
	defer rows.Close()

	warehouses := make([]domain.Warehouse, 0)
	for rows.Next() {
		w, err := scanWarehouse(rows)
		if err != nil {
			r.logger.Error("Falha ao mapear armazém.", err)
			return nil, errors.NewDBError("Falha ao mapear armazéns do DB", err)
		}
		warehouses = append(warehouses, w)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Erro após iteração de armazéns", err)
	}
	return warehouses, nil
}
