package clientrepo

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"lotstock/internal/domain"
	apperror "lotstock/internal/errors"
	"lotstock/internal/pkg/logger"
)

// ClientRepository persiste as credenciais de api_clients.
type ClientRepository struct {
	DB        *sql.DB
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewClientRepository cria uma nova instância do ClientRepository, injetando o DB.
func NewClientRepository(db *sql.DB, dbTimeout time.Duration, logger logger.Logger) *ClientRepository {
	return &ClientRepository{
		DB:        db,
		DBTimeout: dbTimeout,
		logger:    logger,
	}
}

// Save insere um novo cliente. Nome repetido vira ConflictError.
func (r *ClientRepository) Save(ctx context.Context, client domain.APIClient) (domain.APIClient, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	client.ID = uuid.NewString()
	client.CreatedAt = time.Now().UTC()
	client.UpdatedAt = client.CreatedAt

	_, err := r.DB.ExecContext(ctxTimeout,
		`INSERT INTO api_clients (id, name, secret_hash, role, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5, $6)`,
		client.ID, client.Name, client.SecretHash, string(client.Role), client.CreatedAt, client.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == "23505" {
			return domain.APIClient{}, apperror.NewConflictError(fmt.Sprintf("O cliente '%s' já está cadastrado.", client.Name))
		}
		r.logger.Error("Falha ao inserir cliente no DB.", err)
		return domain.APIClient{}, apperror.NewDBError("Falha ao cadastrar cliente", err)
	}

	r.logger.Info("Cliente salvo com sucesso.", map[string]interface{}{"client_id": client.ID, "name": client.Name, "role": client.Role})
	return client, nil
}

// FindByName busca um cliente pelo nome.
func (r *ClientRepository) FindByName(ctx context.Context, name string) (domain.APIClient, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	var (
		client domain.APIClient
		role   string
	)
	err := r.DB.QueryRowContext(ctxTimeout,
		`SELECT id, name, secret_hash, role, created_at, updated_at FROM api_clients WHERE name = $1`, name,
	).Scan(&client.ID, &client.Name, &client.SecretHash, &role, &client.CreatedAt, &client.UpdatedAt)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return domain.APIClient{}, apperror.NewNotFoundError(fmt.Sprintf("Cliente '%s' não encontrado", name))
		}
		r.logger.Error("Falha ao buscar cliente por nome no DB.", err)
		return domain.APIClient{}, apperror.NewDBError("Falha ao buscar cliente", err)
	}
	client.Role = domain.Role(role)
	return client, nil
}
