package domain

import (
	"encoding/json"
	"time"
)

// ChangeType classifica o evento de estoque registrado no ledger.
type ChangeType string

const (
	ChangeIn         ChangeType = "IN"
	ChangeOut        ChangeType = "OUT"
	ChangeAdjustment ChangeType = "ADJUSTMENT"
	ChangeTransfer   ChangeType = "TRANSFER"
	ChangeExpired    ChangeType = "EXPIRED"
	ChangeDamaged    ChangeType = "DAMAGED"
)

// RefType identifica a origem do evento (pedido, B2B, admin...).
type RefType string

const (
	RefOrder    RefType = "ORDER"
	RefB2B      RefType = "B2B"
	RefAdmin    RefType = "ADMIN"
	RefSystem   RefType = "SYSTEM"
	RefTransfer RefType = "TRANSFER"
)

// LedgerEntry é um registro imutável de um evento que afeta o estoque.
// Nunca é atualizado nem removido.
type LedgerEntry struct {
	ID         string          `json:"id"`
	VariantID  string          `json:"variant_id"`
	LotID      *string         `json:"lot_id,omitempty"`
	ChangeType ChangeType      `json:"change_type"`
	RefType    RefType         `json:"ref_type"`
	RefID      string          `json:"ref_id,omitempty"`
	Quantity   int             `json:"quantity"`
	Reason     string          `json:"reason"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// LedgerMetadata é o conteúdo estruturado de LedgerEntry.Metadata.
// Os deltas permitem reconstruir as quantidades de cada lote apenas a partir do ledger.
type LedgerMetadata struct {
	AvailableDelta int               `json:"available_delta"`
	ReservedDelta  int               `json:"reserved_delta"`
	StatusFrom     LotStatus         `json:"status_from,omitempty"`
	StatusTo       LotStatus         `json:"status_to,omitempty"`
	Extra          map[string]string `json:"extra,omitempty"`
}

// LedgerHistoryEntry é uma entrada do ledger enriquecida com dados do lote para exibição.
type LedgerHistoryEntry struct {
	LedgerEntry
	BatchCode    string `json:"batch_code,omitempty"`
	OriginEstate string `json:"origin_estate,omitempty"`
}

// LotBalance é o estado de quantidades de um lote reconstruído a partir do ledger.
type LotBalance struct {
	LotID     string    `json:"lot_id"`
	Available int       `json:"available"`
	Reserved  int       `json:"reserved"`
	Status    LotStatus `json:"status,omitempty"`
}
