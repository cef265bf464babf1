package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError é a interface central para todos os erros customizados do serviço de lotes.
// Ela permite que o código externo (Handler) acesse a Categoria e a Mensagem do erro.
type AppError interface {
	Error() string    // Implementa a interface error padrão do Go
	Category() string // Categoria do erro (e.g., "VALIDATION", "NOT_FOUND", "INTERNAL")
	HTTPStatus() int  // Código HTTP sugerido para o Handler
	Unwrap() error    // Permite encapsular erros subjacentes (original error)
}

// --- Tipos de Erro Específicos (Erros de Domínio) ---

// ValidationError representa falhas de validação de dados de entrada.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string    { return fmt.Sprintf("Erro de Validação: %s", e.Msg) }
func (e *ValidationError) Category() string { return "VALIDATION_ERROR" }
func (e *ValidationError) HTTPStatus() int  { return http.StatusBadRequest } // 400
func (e *ValidationError) Unwrap() error    { return nil }                   // Não encapsula erro subjacente

// NewValidationError cria um novo erro de validação.
func NewValidationError(msg string) AppError {
	return &ValidationError{Msg: msg}
}

// NotFoundError representa a ausência de um recurso solicitado (variante, lote ou reserva).
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string    { return fmt.Sprintf("Recurso não encontrado: %s", e.Msg) }
func (e *NotFoundError) Category() string { return "NOT_FOUND" }
func (e *NotFoundError) HTTPStatus() int  { return http.StatusNotFound } // 404
func (e *NotFoundError) Unwrap() error    { return nil }

// NewNotFoundError cria um novo erro de recurso não encontrado.
func NewNotFoundError(msg string) AppError {
	return &NotFoundError{Msg: msg}
}

// ConflictError representa um conflito de concorrência (UPDATE condicional sem linhas afetadas).
// É o único erro que o motor de reservas trata como repetível.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string    { return fmt.Sprintf("Conflito de estado: %s", e.Msg) }
func (e *ConflictError) Category() string { return "CONCURRENCY_CONFLICT" }
func (e *ConflictError) HTTPStatus() int  { return http.StatusConflict } // 409
func (e *ConflictError) Unwrap() error    { return nil }

// NewConflictError cria um novo erro de conflito (usado em OCC).
func NewConflictError(msg string) AppError {
	return &ConflictError{Msg: msg}
}

// InsufficientStockError indica que a quantidade pedida excede o disponível.
// Available carrega a quantidade realmente disponível.
type InsufficientStockError struct {
	Msg       string
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Estoque insuficiente: %s (disponível: %d)", e.Msg, e.Available)
}
func (e *InsufficientStockError) Category() string { return "INSUFFICIENT_STOCK" }
func (e *InsufficientStockError) HTTPStatus() int  { return http.StatusConflict } // 409
func (e *InsufficientStockError) Unwrap() error    { return nil }

// NewInsufficientStockError cria um erro de estoque insuficiente.
func NewInsufficientStockError(msg string, available int) AppError {
	return &InsufficientStockError{Msg: msg, Available: available}
}

// InvalidLotStatusError indica que o lote alvo não está ACTIVE.
type InvalidLotStatusError struct {
	LotID  string
	Status string
}

func (e *InvalidLotStatusError) Error() string {
	return fmt.Sprintf("Status de lote inválido: lote %s está %s", e.LotID, e.Status)
}
func (e *InvalidLotStatusError) Category() string { return "INVALID_LOT_STATUS" }
func (e *InvalidLotStatusError) HTTPStatus() int  { return http.StatusUnprocessableEntity } // 422
func (e *InvalidLotStatusError) Unwrap() error    { return nil }

// NewInvalidLotStatusError cria um erro de status de lote inválido.
func NewInvalidLotStatusError(lotID, status string) AppError {
	return &InvalidLotStatusError{LotID: lotID, Status: status}
}

// AlreadyReleasedError indica que o token de reserva já foi liberado (ou encerrado).
type AlreadyReleasedError struct {
	RefID string
}

func (e *AlreadyReleasedError) Error() string {
	return fmt.Sprintf("Reserva já liberada: %s", e.RefID)
}
func (e *AlreadyReleasedError) Category() string { return "ALREADY_RELEASED" }
func (e *AlreadyReleasedError) HTTPStatus() int  { return http.StatusConflict } // 409
func (e *AlreadyReleasedError) Unwrap() error    { return nil }

// NewAlreadyReleasedError cria um erro de reserva já liberada.
func NewAlreadyReleasedError(refID string) AppError {
	return &AlreadyReleasedError{RefID: refID}
}

// OverConfirmError indica confirmação acima do que resta reservado sob o token.
type OverConfirmError struct {
	LotID     string
	Requested int
	Remaining int
}

func (e *OverConfirmError) Error() string {
	return fmt.Sprintf("Confirmação excede a reserva: lote %s, pedido %d, reservado %d", e.LotID, e.Requested, e.Remaining)
}
func (e *OverConfirmError) Category() string { return "OVER_CONFIRM" }
func (e *OverConfirmError) HTTPStatus() int  { return http.StatusUnprocessableEntity } // 422
func (e *OverConfirmError) Unwrap() error    { return nil }

// NewOverConfirmError cria um erro de confirmação excedente.
func NewOverConfirmError(lotID string, requested, remaining int) AppError {
	return &OverConfirmError{LotID: lotID, Requested: requested, Remaining: remaining}
}

// UnauthorizedError representa falhas de autenticação/autorização.
type UnauthorizedError struct {
	Msg string
}

func (e *UnauthorizedError) Error() string    { return fmt.Sprintf("Não autorizado: %s", e.Msg) }
func (e *UnauthorizedError) Category() string { return "UNAUTHORIZED" }
func (e *UnauthorizedError) HTTPStatus() int  { return http.StatusUnauthorized } // 401
func (e *UnauthorizedError) Unwrap() error    { return nil }

// NewUnauthorizedError cria um erro de autorização.
func NewUnauthorizedError(msg string) AppError {
	return &UnauthorizedError{Msg: msg}
}

// --- Tipos de Erro de Infraestrutura (Encapsulamento) ---

// InternalError representa falhas inesperadas no servidor, serviço ou repositório.
type InternalError struct {
	Msg string
	Err error // Erro original subjacente (e.g., erro do driver SQL)
}

func (e *InternalError) Error() string    { return fmt.Sprintf("Erro Interno: %s", e.Msg) }
func (e *InternalError) Category() string { return "INTERNAL_ERROR" }
func (e *InternalError) HTTPStatus() int  { return http.StatusInternalServerError } // 500
func (e *InternalError) Unwrap() error    { return e.Err }

// NewInternalError cria um erro de servidor (para falhas de lógica ou código não esperado).
func NewInternalError(msg string, err error) AppError {
	return &InternalError{Msg: msg, Err: err}
}

// NewDBError é um atalho para criar um InternalError específico de falhas no DB.
func NewDBError(msg string, err error) AppError {
	return NewInternalError(fmt.Sprintf("%s (DB): %s", msg, err.Error()), err)
}

// --- Helper para o Handler (Tradução Final) ---

// MapToHTTPStatus recebe um erro e o traduz para o código HTTP e corpo de resposta.
func MapToHTTPStatus(err error) (int, string, string) {
	var appErr AppError
	if stderrors.As(err, &appErr) {
		return appErr.HTTPStatus(), appErr.Category(), appErr.Error()
	}

	// Erro não tipado: tratar como erro interno genérico.
	return http.StatusInternalServerError, "UNKNOWN_ERROR", "Ocorreu um erro inesperado."
}
