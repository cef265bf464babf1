package warehouseservice

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"lotstock/internal/domain"
	apperror "lotstock/internal/errors"
	"lotstock/internal/pkg/logger"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{1,31}$`)

// WarehouseRepository define o contrato que o Serviço de Armazéns espera da camada de Persistência.
type WarehouseRepository interface {
	CreateWarehouse(ctx context.Context, warehouse domain.Warehouse) (domain.Warehouse, error)
	GetWarehouseByID(ctx context.Context, id string) (domain.Warehouse, error)
	ListWarehouses(ctx context.Context) ([]domain.Warehouse, error)
}

// Service mantém o cadastro de armazéns onde os lotes ficam.
type Service struct {
	repo   WarehouseRepository
	logger logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Armazéns.
func NewService(repo WarehouseRepository, logger logger.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// CreateWarehouse valida e cadastra um armazém. O código é normalizado para maiúsculas.
func (s *Service) CreateWarehouse(ctx context.Context, warehouse domain.Warehouse) (domain.Warehouse, error) {
	warehouse.Code = strings.ToUpper(strings.TrimSpace(warehouse.Code))
	warehouse.Name = strings.TrimSpace(warehouse.Name)

	if err := validateWarehouse(warehouse); err != nil {
		s.logger.Warn("Falha na validação do armazém.", map[string]interface{}{"code": warehouse.Code, "error": err.Error()})
		return domain.Warehouse{}, err
	}

	created, err := s.repo.CreateWarehouse(ctx, warehouse)
	if err != nil {
		var appErr apperror.AppError
		if errors.As(err, &appErr) {
			return domain.Warehouse{}, err
		}
		s.logger.Error("Falha ao criar armazém no repositório.", err)
		return domain.Warehouse{}, apperror.NewInternalError("Falha interna ao criar armazém.", err)
	}
	return created, nil
}

// GetWarehouse busca um armazém pelo ID.
func (s *Service) GetWarehouse(ctx context.Context, id string) (domain.Warehouse, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Warehouse{}, apperror.NewValidationError("O ID do armazém deve ser um UUID válido.")
	}
	return s.repo.GetWarehouseByID(ctx, id)
}

// ListWarehouses lista todos os armazéns.
func (s *Service) ListWarehouses(ctx context.Context) ([]domain.Warehouse, error) {
	warehouses, err := s.repo.ListWarehouses(ctx)
	if err != nil {
		s.logger.Error("Falha ao listar armazéns.", err)
		return nil, apperror.NewInternalError("Falha interna ao buscar armazéns.", err)
	}
	return warehouses, nil
}

func validateWarehouse(w domain.Warehouse) error {
	if !codePattern.MatchString(w.Code) {
		return apperror.NewValidationError("O código do armazém deve ter de 2 a 32 caracteres (A-Z, 0-9 e hífen).")
	}
	if n := utf8.RuneCountInString(w.Name); n < 3 || n > 100 {
		return apperror.NewValidationError("O nome do armazém deve ter entre 3 e 100 caracteres.")
	}
	return nil
}
