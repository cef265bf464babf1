package admin

import (
	"context"
	"net/http"

	"lotstock/internal/api/response"
	"lotstock/internal/domain"
	"lotstock/internal/pkg/logger"
	"lotstock/internal/service/expiryservice"
	"lotstock/internal/service/ledgerservice"
)

// StockService define as mutações administrativas que o Handler espera.
type StockService interface {
	ReceiveLot(ctx context.Context, receipt domain.LotReceipt) (domain.Lot, error)
	AddStock(ctx context.Context, req domain.StockAdjustmentRequest) (domain.Lot, error)
	AdjustStock(ctx context.Context, req domain.StockAdjustmentRequest) (domain.Lot, error)
	ChangeLotStatus(ctx context.Context, req domain.LotStatusChangeRequest) (domain.Lot, error)
	ReconcileLot(ctx context.Context, lotID string) (ledgerservice.Reconciliation, error)
}

// ExpiryService dispara a varredura de lotes vencidos sob demanda.
type ExpiryService interface {
	BlockExpiredLots(ctx context.Context) (expiryservice.ExpirySweepStats, error)
}

// AddStockRequest é o corpo de POST /v1/admin/lots/{id}/stock.
type AddStockRequest struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
	Reason    string `json:"reason"`
}

// AdjustStockRequest é o corpo de POST /v1/admin/lots/{id}/adjust.
type AdjustStockRequest struct {
	VariantID string `json:"variant_id"`
	Delta     int    `json:"delta"`
	Reason    string `json:"reason"`
}

// ChangeStatusRequest é o corpo de POST /v1/admin/lots/{id}/status.
type ChangeStatusRequest struct {
	Status domain.LotStatus `json:"status"`
	Reason string           `json:"reason"`
}

// Handler agrupa os endpoints administrativos de lotes.
type Handler struct {
	Stock  StockService
	Expiry ExpiryService
	Logger logger.Logger
}

func NewHandler(stock StockService, expiry ExpiryService, log logger.Logger) *Handler {
	return &Handler{Stock: stock, Expiry: expiry, Logger: log}
}

// ReceiveLotHandler lida com a requisição POST /v1/admin/lots.
// @Summary Recebe um lote
// @Description Cria um lote ACTIVE com a quantidade recebida.
// @Tags admin
// @Accept json
// @Produce json
// @Param receipt body domain.LotReceipt true "Dados do lote"
// @Success 201 {object} domain.Lot
// @Failure 400 {object} domain.ErrorResponse "Payload inválido ou lote duplicado"
// @Security ApiKeyAuth
// @Router /admin/lots [post]
func (h *Handler) ReceiveLotHandler(w http.ResponseWriter, r *http.Request) {
	var receipt domain.LotReceipt
	if err := response.DecodeJSON(r, &receipt); err != nil {
		response.Handle(w, r, h.Logger, nil, err, http.StatusOK)
		return
	}

	lot, err := h.Stock.ReceiveLot(r.Context(), receipt)
	response.Handle(w, r, h.Logger, lot, err, http.StatusCreated)
}

// AddStockHandler lida com a requisição POST /v1/admin/lots/{id}/stock.
// @Summary Adiciona estoque a um lote
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "ID do lote"
// @Param request body AddStockRequest true "Quantidade e motivo"
// @Success 200 {object} domain.Lot
// @Failure 422 {object} domain.ErrorResponse "Lote não está ACTIVE"
// @Security ApiKeyAuth
// @Router /admin/lots/{id}/stock [post]
func (h *Handler) AddStockHandler(w http.ResponseWriter, r *http.Request) {
	lotID, err := response.PathUUID(r, "id")
	if err != nil {
		response.Handle(w, r, h.Logger, nil, err, http.StatusOK)
		return
	}

	var body AddStockRequest
	if err := response.DecodeJSON(r, &body); err != nil {
		response.Handle(w, r, h.Logger, nil, err, http.StatusOK)
		return
	}

	lot, err := h.Stock.AddStock(r.Context(), domain.StockAdjustmentRequest{
		VariantID: body.VariantID,
		LotID:     lotID,
		Delta:     body.Quantity,
		Reason:    body.Reason,
	})
	response.Handle(w, r, h.Logger, lot, err, http.StatusOK)
}

// AdjustStockHandler lida com a requisição POST /v1/admin/lots/{id}/adjust.
// @Summary Ajusta o disponível de um lote
// @Description Delta com sinal; resultado negativo é recusado.
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "ID do lote"
// @Param request body AdjustStockRequest true "Delta e motivo"
// @Success 200 {object} domain.Lot
// @Failure 409 {object} domain.ErrorResponse "Estoque insuficiente"
// @Security ApiKeyAuth
// @Router /admin/lots/{id}/adjust [post]
func (h *Handler) AdjustStockHandler(w http.ResponseWriter, r *http.Request) {
	lotID, err := response.PathUUID(r, "id")
	if err != nil {
		response.Handle(w, r, h.Logger, nil, err, http.StatusOK)
		return
	}

	var body AdjustStockRequest
	if err := response.DecodeJSON(r, &body); err != nil {
		response.Handle(w, r, h.Logger, nil, err, http.StatusOK)
		return
	}

	lot, err := h.Stock.AdjustStock(r.Context(), domain.StockAdjustmentRequest{
		VariantID: body.VariantID,
		LotID:     lotID,
		Delta:     body.Delta,
		Reason:    body.Reason,
	})
	response.Handle(w, r, h.Logger, lot, err, http.StatusOK)
}

// ChangeStatusHandler lida com a requisição POST /v1/admin/lots/{id}/status.
// @Summary Bloqueia ou coloca um lote em quarentena
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "ID do lote"
// @Param request body ChangeStatusRequest true "BLOCKED ou QUARANTINE"
// @Success 200 {object} domain.Lot
// @Failure 422 {object} domain.ErrorResponse "Lote não está ACTIVE"
// @Security ApiKeyAuth
// @Router /admin/lots/{id}/status [post]
func (h *Handler) ChangeStatusHandler(w http.ResponseWriter, r *http.Request) {
	lotID, err := response.PathUUID(r, "id")
	if err != nil {
		response.Handle(w, r, h.Logger, nil, err, http.StatusOK)
		return
	}

	var body ChangeStatusRequest
	if err := response.DecodeJSON(r, &body); err != nil {
		response.Handle(w, r, h.Logger, nil, err, http.StatusOK)
		return
	}

	lot, err := h.Stock.ChangeLotStatus(r.Context(), domain.LotStatusChangeRequest{
		LotID:  lotID,
		Status: body.Status,
		Reason: body.Reason,
	})
	response.Handle(w, r, h.Logger, lot, err, http.StatusOK)
}

// ReconcileLotHandler lida com a requisição GET /v1/admin/lots/{id}/reconcile.
// @Summary Reconcilia um lote com o ledger
// @Tags admin
// @Produce json
// @Param id path string true "ID do lote"
// @Success 200 {object} ledgerservice.Reconciliation
// @Failure 404 {object} domain.ErrorResponse "Lote não encontrado"
// @Security ApiKeyAuth
// @Router /admin/lots/{id}/reconcile [get]
func (h *Handler) ReconcileLotHandler(w http.ResponseWriter, r *http.Request) {
	lotID, err := response.PathUUID(r, "id")
	if err != nil {
		response.Handle(w, r, h.Logger, nil, err, http.StatusOK)
		return
	}

	rec, err := h.Stock.ReconcileLot(r.Context(), lotID)
	response.Handle(w, r, h.Logger, rec, err, http.StatusOK)
}

// SweepExpiredHandler lida com a requisição POST /v1/admin/expiry/sweep.
// @Summary Executa a varredura de vencimento
// @Tags admin
// @Produce json
// @Success 200 {object} expiryservice.ExpirySweepStats
// @Security ApiKeyAuth
// @Router /admin/expiry/sweep [post]
func (h *Handler) SweepExpiredHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Expiry.BlockExpiredLots(r.Context())
	response.Handle(w, r, h.Logger, stats, err, http.StatusOK)
}
