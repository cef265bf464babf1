package stock

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"lotstock/internal/api/response"
	"lotstock/internal/domain"
	apperror "lotstock/internal/errors"
	"lotstock/internal/pkg/logger"
)

// QueryService define as leituras que o Handler espera da camada de Serviço.
type QueryService interface {
	GetStockInfo(ctx context.Context, variantID string) (domain.StockInfo, error)
	CheckAvailability(ctx context.Context, variantID string, quantity int, lotID string) (domain.Availability, error)
	GetInventoryHistory(ctx context.Context, variantID string, limit int) ([]domain.LedgerHistoryEntry, error)
}

// ReservationService define o motor de reservas visto pelo Handler.
type ReservationService interface {
	Reserve(ctx context.Context, req domain.ReserveRequest) (domain.ReservationResult, error)
	Release(ctx context.Context, req domain.SettleRequest) (domain.Reservation, error)
	ConfirmAllocation(ctx context.Context, req domain.SettleRequest) (domain.Reservation, error)
}

// Handler agrupa os endpoints de consulta de estoque e de reservas.
type Handler struct {
	Queries      QueryService
	Reservations ReservationService
	Logger       logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando os Services e o Logger.
func NewHandler(queries QueryService, reservations ReservationService, log logger.Logger) *Handler {
	return &Handler{
		Queries:      queries,
		Reservations: reservations,
		Logger:       log,
	}
}

// GetStockHandler lida com a requisição GET /v1/variants/{id}/stock.
// @Summary Resumo de estoque da variante
// @Description Soma os lotes ACTIVE da variante, ordenados por best_before.
// @Tags stock
// @Produce json
// @Param id path string true "ID da variante"
// @Success 200 {object} domain.StockInfo
// @Failure 400 {object} domain.ErrorResponse "ID inválido"
// @Failure 404 {object} domain.ErrorResponse "Variante sem lotes"
// @Security ApiKeyAuth
// @Router /variants/{id}/stock [get]
func (h *Handler) GetStockHandler(w http.ResponseWriter, r *http.Request) {
	variantID, err := response.PathUUID(r, "id")
	if err != nil {
		response.Handle(w, r, h.Logger, nil, err, http.StatusOK)
		return
	}

	info, err := h.Queries.GetStockInfo(r.Context(), variantID)
	response.Handle(w, r, h.Logger, info, err, http.StatusOK)
}

// CheckAvailabilityHandler lida com a requisição GET /v1/variants/{id}/availability?quantity=&lot_id=.
// @Summary Verifica disponibilidade
// @Description Informa se a quantidade pode ser reservada agora (opcionalmente num lote específico).
// @Tags stock
// @Produce json
// @Param id path string true "ID da variante"
// @Param quantity query int true "Quantidade desejada"
// @Param lot_id query string false "Lote fixado"
// @Success 200 {object} domain.Availability
// @Failure 400 {object} domain.ErrorResponse "Parâmetros inválidos"
// @Security ApiKeyAuth
// @Router /variants/{id}/availability [get]
func (h *Handler) CheckAvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	variantID, err := response.PathUUID(r, "id")
	if err != nil {
		response.Handle(w, r, h.Logger, nil, err, http.StatusOK)
		return
	}

	quantity, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil || quantity <= 0 {
		response.Handle(w, r, h.Logger, nil, apperror.NewValidationError("quantity deve ser um inteiro positivo."), http.StatusOK)
		return
	}

	lotID := r.URL.Query().Get("lot_id")
	if lotID != "" {
		if _, err := uuid.Parse(lotID); err != nil {
			response.Handle(w, r, h.Logger, nil, apperror.NewValidationError("lot_id deve ser um UUID válido."), http.StatusOK)
			return
		}
	}

	availability, err := h.Queries.CheckAvailability(r.Context(), variantID, quantity, lotID)
	response.Handle(w, r, h.Logger, availability, err, http.StatusOK)
}

// GetHistoryHandler lida com a requisição GET /v1/variants/{id}/history?limit=.
// @Summary Histórico de movimentações
// @Description Entradas do ledger da variante, mais recentes primeiro.
// @Tags stock
// @Produce json
// @Param id path string true "ID da variante"
// @Param limit query int false "Máximo de entradas (padrão 50, máximo 500)"
// @Success 200 {array} domain.LedgerHistoryEntry
// @Security ApiKeyAuth
// @Router /variants/{id}/history [get]
func (h *Handler) GetHistoryHandler(w http.ResponseWriter, r *http.Request) {
	variantID, err := response.PathUUID(r, "id")
	if err != nil {
		response.Handle(w, r, h.Logger, nil, err, http.StatusOK)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			response.Handle(w, r, h.Logger, nil, apperror.NewValidationError("limit deve ser um inteiro não negativo."), http.StatusOK)
			return
		}
	}

	history, err := h.Queries.GetInventoryHistory(r.Context(), variantID, limit)
	response.Handle(w, r, h.Logger, history, err, http.StatusOK)
}

// ReserveHandler lida com a requisição POST /v1/reservations.
// @Summary Reserva estoque
// @Description Aloca a quantidade nos lotes de menor best_before (ou no lote fixado). Falta de estoque volta como success=false.
// @Tags reservations
// @Accept json
// @Produce json
// @Param request body domain.ReserveRequest true "Pedido de reserva"
// @Success 200 {object} domain.ReservationResult
// @Failure 400 {object} domain.ErrorResponse "Payload inválido"
// @Failure 409 {object} domain.ErrorResponse "Conflito de concorrência persistente"
// @Security ApiKeyAuth
// @Router /reservations [post]
func (h *Handler) ReserveHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.ReserveRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.Handle(w, r, h.Logger, nil, err, http.StatusOK)
		return
	}

	result, err := h.Reservations.Reserve(r.Context(), req)
	response.Handle(w, r, h.Logger, result, err, http.StatusOK)
}

// ReleaseHandler lida com a requisição POST /v1/reservations/release.
// @Summary Libera uma reserva
// @Description Devolve ao disponível as quantidades ainda reservadas sob o ref_id.
// @Tags reservations
// @Accept json
// @Produce json
// @Param request body domain.SettleRequest true "Lotes a liberar"
// @Success 200 {object} domain.Reservation
// @Failure 404 {object} domain.ErrorResponse "Reserva ou lote desconhecido"
// @Failure 409 {object} domain.ErrorResponse "Reserva já liberada"
// @Security ApiKeyAuth
// @Router /reservations/release [post]
func (h *Handler) ReleaseHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.SettleRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.Handle(w, r, h.Logger, nil, err, http.StatusOK)
		return
	}

	reservation, err := h.Reservations.Release(r.Context(), req)
	response.Handle(w, r, h.Logger, reservation, err, http.StatusOK)
}

// ConfirmHandler lida com a requisição POST /v1/reservations/confirm.
// @Summary Confirma uma alocação
// @Description Baixa do reservado as quantidades expedidas.
// @Tags reservations
// @Accept json
// @Produce json
// @Param request body domain.SettleRequest true "Lotes a confirmar"
// @Success 200 {object} domain.Reservation
// @Failure 409 {object} domain.ErrorResponse "Reserva já liberada"
// @Failure 422 {object} domain.ErrorResponse "Confirmação acima do reservado"
// @Security ApiKeyAuth
// @Router /reservations/confirm [post]
func (h *Handler) ConfirmHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.SettleRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.Handle(w, r, h.Logger, nil, err, http.StatusOK)
		return
	}

	reservation, err := h.Reservations.ConfirmAllocation(r.Context(), req)
	response.Handle(w, r, h.Logger, reservation, err, http.StatusOK)
}
