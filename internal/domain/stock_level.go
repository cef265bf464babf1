package domain

// StockInfo é o resumo de estoque de uma variante agregado a partir dos lotes ACTIVE.
// Lots vem ordenado por BestBefore ascendente.
type StockInfo struct {
	VariantID      string `json:"variant_id"`
	TotalStock     int    `json:"total_stock"`
	AvailableStock int    `json:"available_stock"`
	ReservedStock  int    `json:"reserved_stock"`
	Lots           []Lot  `json:"lots"`
}

// Availability é o resultado de CheckAvailability.
type Availability struct {
	Available         bool   `json:"available"`
	AvailableQuantity int    `json:"available_quantity"`
	Message           string `json:"message,omitempty"`
}

// StockAdjustmentRequest é o payload esperado para os ajustes administrativos de estoque.
// Em AddStock, Delta deve ser positivo.
type StockAdjustmentRequest struct {
	VariantID string `json:"variant_id"`
	LotID     string `json:"lot_id"`
	Delta     int    `json:"delta"`
	Reason    string `json:"reason"`
}

// LotStatusChangeRequest é o payload da mudança manual de status (BLOCKED ou QUARANTINE).
type LotStatusChangeRequest struct {
	LotID  string    `json:"lot_id"`
	Status LotStatus `json:"status"`
	Reason string    `json:"reason"`
}
