package middleware

import (
	"encoding/json"
	"net/http"

	"lotstock/internal/domain"
	apperror "lotstock/internal/errors"
)

// writeError responde no mesmo formato de erro dos handlers; status sobrescreve o do AppError (ex.: 403).
func writeError(w http.ResponseWriter, err error, status int) {
	_, category, message := apperror.MapToHTTPStatus(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(domain.ErrorResponse{Code: status, Category: category, Message: message})
}
