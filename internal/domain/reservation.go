package domain

import "time"

// LotAllocation é um segmento (lote, quantidade) de uma reserva.
// A lista retornada por Reserve é o token usado depois em Release/ConfirmAllocation.
type LotAllocation struct {
	LotID    string `json:"lot_id"`
	Quantity int    `json:"quantity"`
}

// ReservationStatus é o estado do token de reserva.
type ReservationStatus string

const (
	ReservationHeld      ReservationStatus = "HELD"
	ReservationReleased  ReservationStatus = "RELEASED"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
)

// ReservationLine guarda quanto de um lote ainda está reservado sob o token.
type ReservationLine struct {
	LotID     string `json:"lot_id"`
	Quantity  int    `json:"quantity"`
	Remaining int    `json:"remaining"`
}

// Reservation é o registro durável de uma reserva feita por Reserve.
type Reservation struct {
	ID        string            `json:"id"`
	RefID     string            `json:"ref_id"`
	VariantID string            `json:"variant_id"`
	Status    ReservationStatus `json:"status"`
	Lines     []ReservationLine `json:"lines"`
	Version   int               `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Line retorna a linha do lote informado.
func (r *Reservation) Line(lotID string) (*ReservationLine, bool) {
	for i := range r.Lines {
		if r.Lines[i].LotID == lotID {
			return &r.Lines[i], true
		}
	}
	return nil, false
}

// RemainingTotal soma o que ainda está reservado sob o token.
func (r *Reservation) RemainingTotal() int {
	total := 0
	for _, l := range r.Lines {
		total += l.Remaining
	}
	return total
}

// ReserveRequest é o payload de Reserve. LotID fixa a reserva em um único lote.
type ReserveRequest struct {
	VariantID string  `json:"variant_id"`
	Quantity  int     `json:"quantity"`
	LotID     *string `json:"lot_id,omitempty"`
	RefID     string  `json:"ref_id"`
}

// ReservationResult é o resultado estruturado de Reserve.
// Falta de estoque não é erro: volta com Success=false e Shortfall.
type ReservationResult struct {
	Success      bool            `json:"success"`
	ReservedLots []LotAllocation `json:"reserved_lots"`
	Shortfall    int             `json:"shortfall,omitempty"`
	Message      string          `json:"message,omitempty"`
}

// SettleRequest é o payload de Release e ConfirmAllocation.
type SettleRequest struct {
	VariantID string          `json:"variant_id"`
	Lots      []LotAllocation `json:"lots"`
	RefID     string          `json:"ref_id"`
}
