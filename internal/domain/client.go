package domain

import "time"

// APIClient é uma credencial de máquina ou operador que troca nome e segredo por um JWT.
type APIClient struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SecretHash string    `json:"-"` // nunca sai na resposta
	Role       Role      `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ClientRegistration é o payload de cadastro de um cliente (admin).
type ClientRegistration struct {
	Name   string `json:"name"`
	Secret string `json:"secret"`
	Role   Role   `json:"role"`
}

// TokenRequest é o payload de POST /v1/auth/token.
type TokenRequest struct {
	Name   string `json:"name"`
	Secret string `json:"secret"`
}

// TokenResponse devolve o JWT emitido.
type TokenResponse struct {
	Token string `json:"token"`
}
