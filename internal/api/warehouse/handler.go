package warehouse

import (
	"context"
	"net/http"

	"lotstock/internal/api/response"
	"lotstock/internal/domain"
	"lotstock/internal/pkg/logger"
)

// WarehouseService define o contrato que o Handler espera da camada de Serviço.
type WarehouseService interface {
	CreateWarehouse(ctx context.Context, warehouse domain.Warehouse) (domain.Warehouse, error)
	GetWarehouse(ctx context.Context, id string) (domain.Warehouse, error)
	ListWarehouses(ctx context.Context) ([]domain.Warehouse, error)
}

// Handler agrupa todos os métodos de Handler de armazéns.
type Handler struct {
	Service WarehouseService
	Logger  logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o Service e o Logger.
func NewHandler(svc WarehouseService, log logger.Logger) *Handler {
	return &Handler{
		Service: svc,
		Logger:  log,
	}
}

// CreateWarehouseHandler lida com a requisição POST /v1/admin/warehouses.
// @Summary Cadastra um armazém
// @Tags warehouses
// @Accept json
// @Produce json
// @Param warehouse body domain.Warehouse true "Código e nome do armazém"
// @Success 201 {object} domain.Warehouse "Armazém criado com sucesso"
// @Failure 400 {object} domain.ErrorResponse "Payload inválido ou código repetido"
// @Security ApiKeyAuth
// @Router /admin/warehouses [post]
func (h *Handler) CreateWarehouseHandler(w http.ResponseWriter, r *http.Request) {
	var warehouse domain.Warehouse
	if err := response.DecodeJSON(r, &warehouse); err != nil {
		response.Handle(w, r, h.Logger, nil, err, http.StatusOK)
		return
	}

	created, err := h.Service.CreateWarehouse(r.Context(), warehouse)
	response.Handle(w, r, h.Logger, created, err, http.StatusCreated)
}

// GetWarehouseHandler lida com a requisição GET /v1/admin/warehouses/{id}.
// @Summary Obtém um armazém por ID
// @Tags warehouses
// @Produce json
// @Param id path string true "ID do Armazém"
// @Success 200 {object} domain.Warehouse "Armazém encontrado"
// @Failure 404 {object} domain.ErrorResponse "Armazém não encontrado"
// @Security ApiKeyAuth
// @Router /admin/warehouses/{id} [get]
func (h *Handler) GetWarehouseHandler(w http.ResponseWriter, r *http.Request) {
	warehouse, err := h.Service.GetWarehouse(r.Context(), r.PathValue("id"))
	response.Handle(w, r, h.Logger, warehouse, err, http.StatusOK)
}

// ListWarehousesHandler lida com a requisição GET /v1/admin/warehouses.
// @Summary Lista os armazéns
// @Tags warehouses
// @Produce json
// @Success 200 {array} domain.Warehouse "Lista de armazéns"
// @Security ApiKeyAuth
// @Router /admin/warehouses [get]
func (h *Handler) ListWarehousesHandler(w http.ResponseWriter, r *http.Request) {
	warehouses, err := h.Service.ListWarehouses(r.Context())
	response.Handle(w, r, h.Logger, warehouses, err, http.StatusOK)
}
