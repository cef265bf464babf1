package domain

import "time"

// LotStatus representa o estado de um lote. ACTIVE é o único estado inicial;
// EXPIRED, BLOCKED e QUARANTINE são terminais neste serviço.
type LotStatus string

const (
	LotStatusActive     LotStatus = "ACTIVE"
	LotStatusExpired    LotStatus = "EXPIRED"
	LotStatusBlocked    LotStatus = "BLOCKED"
	LotStatusQuarantine LotStatus = "QUARANTINE"
)

// IsValid verifica se o status é conhecido.
func (s LotStatus) IsValid() bool {
	switch s {
	case LotStatusActive, LotStatusExpired, LotStatusBlocked, LotStatusQuarantine:
		return true
	}
	return false
}

// CanTransitionTo indica se a transição de status é permitida.
// Somente ACTIVE sai para outro estado, e nunca volta.
func (s LotStatus) CanTransitionTo(next LotStatus) bool {
	if s != LotStatusActive {
		return false
	}
	switch next {
	case LotStatusExpired, LotStatusBlocked, LotStatusQuarantine:
		return true
	}
	return false
}

// Lot representa um lote físico de estoque perecível de uma variante.
// Version acompanha cada mutação de quantidade ou status.
type Lot struct {
	ID           string    `json:"id"`
	VariantID    string    `json:"variant_id"`
	BatchCode    string    `json:"batch_code"`
	OriginEstate string    `json:"origin_estate"`
	HarvestedOn  time.Time `json:"harvested_on"`
	BestBefore   time.Time `json:"best_before"`
	Status       LotStatus `json:"status"`
	QtyAvailable int       `json:"qty_available"`
	QtyReserved  int       `json:"qty_reserved"`
	WarehouseID  *string   `json:"warehouse_id,omitempty"`
	Version      int       `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsActive retorna true se o lote aceita reservas e entradas.
func (l Lot) IsActive() bool {
	return l.Status == LotStatusActive
}

// Total é a quantidade física do lote (disponível + reservada).
func (l Lot) Total() int {
	return l.QtyAvailable + l.QtyReserved
}

// IsExpiredAt indica se o lote passou do best-before no instante informado.
func (l Lot) IsExpiredAt(now time.Time) bool {
	return l.BestBefore.Before(now)
}

// QuantityMove descreve uma mutação atômica de quantidades em um lote.
// AvailableDelta e ReservedDelta são somados às colunas somente se o resultado
// continuar >= 0 (e o lote estiver ACTIVE quando RequireActive for true).
// Entry é gravado na mesma transação.
type QuantityMove struct {
	LotID          string
	AvailableDelta int
	ReservedDelta  int
	RequireActive  bool
	Entry          LedgerEntry
}

// LotReceipt é o payload de entrada para o recebimento de um novo lote (admin).
type LotReceipt struct {
	VariantID    string    `json:"variant_id"`
	BatchCode    string    `json:"batch_code"`
	OriginEstate string    `json:"origin_estate"`
	HarvestedOn  time.Time `json:"harvested_on"`
	BestBefore   time.Time `json:"best_before"`
	Quantity     int       `json:"quantity"`
	WarehouseID  *string   `json:"warehouse_id,omitempty"`
	Reason       string    `json:"reason"`
}
