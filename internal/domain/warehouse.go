package domain

import (
	"time"
)

// Warehouse é o local físico onde um lote fica armazenado.
// Code é o identificador curto usado na etiqueta do lote (ex.: "SP-CLIMA-01").
type Warehouse struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
