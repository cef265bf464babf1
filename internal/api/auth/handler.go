package auth

import (
	"context"
	"net/http"

	"lotstock/internal/api/response"
	"lotstock/internal/domain"
	"lotstock/internal/pkg/logger"
)

// ClientService define o contrato para cadastro de clientes e emissão de tokens.
type ClientService interface {
	Register(ctx context.Context, reg domain.ClientRegistration) (domain.APIClient, error)
	IssueToken(ctx context.Context, name, secret string) (string, error)
}

// Handler agrupa os endpoints de credenciais.
type Handler struct {
	Service ClientService
	Logger  logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o Service e o Logger.
func NewHandler(svc ClientService, log logger.Logger) *Handler {
	return &Handler{
		Service: svc,
		Logger:  log,
	}
}

// RegisterClientHandler lida com a requisição POST /v1/admin/clients.
// @Summary Cadastra um cliente de API
// @Description Guarda o hash bcrypt do segredo e o papel concedido.
// @Tags auth
// @Accept json
// @Produce json
// @Param registration body domain.ClientRegistration true "Nome, segredo e papel"
// @Success 201 {object} domain.APIClient "Cliente criado com sucesso"
// @Failure 400 {object} domain.ErrorResponse "Payload inválido"
// @Failure 409 {object} domain.ErrorResponse "Nome já cadastrado"
// @Security ApiKeyAuth
// @Router /admin/clients [post]
func (h *Handler) RegisterClientHandler(w http.ResponseWriter, r *http.Request) {
	var reg domain.ClientRegistration
	if err := response.DecodeJSON(r, &reg); err != nil {
		response.Handle(w, r, h.Logger, nil, err, http.StatusOK)
		return
	}

	client, err := h.Service.Register(r.Context(), reg)
	response.Handle(w, r, h.Logger, client, err, http.StatusCreated)
}

// TokenHandler lida com a requisição POST /v1/auth/token.
// @Summary Emite um JWT para um cliente
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body domain.TokenRequest true "Nome e segredo do cliente"
// @Success 200 {object} domain.TokenResponse "Token JWT emitido"
// @Failure 401 {object} domain.ErrorResponse "Credenciais inválidas"
// @Router /auth/token [post]
func (h *Handler) TokenHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.TokenRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.Handle(w, r, h.Logger, nil, err, http.StatusOK)
		return
	}

	signed, err := h.Service.IssueToken(r.Context(), req.Name, req.Secret)
	if err != nil {
		response.Handle(w, r, h.Logger, nil, err, http.StatusOK)
		return
	}
	response.Handle(w, r, h.Logger, domain.TokenResponse{Token: signed}, nil, http.StatusOK)
}
