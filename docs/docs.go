// Package docs registra o documento OpenAPI da API de lotes no swag.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{.Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/variants/{id}/stock": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["stock"],
                "summary": "Resumo de estoque da variante",
                "parameters": [{"type": "string", "description": "ID da variante", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.StockInfo"}},
                    "400": {"description": "ID inválido", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}},
                    "404": {"description": "Variante sem lotes", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}}
                }
            }
        },
        "/variants/{id}/availability": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["stock"],
                "summary": "Verifica disponibilidade",
                "parameters": [
                    {"type": "string", "description": "ID da variante", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "description": "Quantidade desejada", "name": "quantity", "in": "query", "required": true},
                    {"type": "string", "description": "Lote fixado", "name": "lot_id", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Availability"}},
                    "400": {"description": "Parâmetros inválidos", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}}
                }
            }
        },
        "/variants/{id}/history": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["stock"],
                "summary": "Histórico de movimentações",
                "parameters": [
                    {"type": "string", "description": "ID da variante", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "description": "Máximo de entradas (padrão 50, máximo 500)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/domain.LedgerHistoryEntry"}}}
                }
            }
        },
        "/reservations": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["reservations"],
                "summary": "Reserva estoque",
                "parameters": [{"description": "Pedido de reserva", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/domain.ReserveRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.ReservationResult"}},
                    "400": {"description": "Payload inválido", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}},
                    "409": {"description": "Conflito de concorrência persistente", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}}
                }
            }
        },
        "/reservations/release": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["reservations"],
                "summary": "Libera uma reserva",
                "parameters": [{"description": "Lotes a liberar", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/domain.SettleRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Reservation"}},
                    "404": {"description": "Reserva ou lote desconhecido", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}},
                    "409": {"description": "Reserva já liberada", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}}
                }
            }
        },
        "/reservations/confirm": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["reservations"],
                "summary": "Confirma uma alocação",
                "parameters": [{"description": "Lotes a confirmar", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/domain.SettleRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Reservation"}},
                    "409": {"description": "Reserva já liberada", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}},
                    "422": {"description": "Confirmação acima do reservado", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}}
                }
            }
        },
        "/admin/lots": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["admin"],
                "summary": "Recebe um lote",
                "parameters": [{"description": "Dados do lote", "name": "receipt", "in": "body", "required": true, "schema": {"$ref": "#/definitions/domain.LotReceipt"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/domain.Lot"}},
                    "400": {"description": "Payload inválido ou lote duplicado", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}}
                }
            }
        },
        "/admin/lots/{id}/stock": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["admin"],
                "summary": "Adiciona estoque a um lote",
                "parameters": [
                    {"type": "string", "description": "ID do lote", "name": "id", "in": "path", "required": true},
                    {"description": "Quantidade e motivo", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/admin.AddStockRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Lot"}},
                    "422": {"description": "Lote não está ACTIVE", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}}
                }
            }
        },
        "/admin/lots/{id}/adjust": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["admin"],
                "summary": "Ajusta o disponível de um lote",
                "parameters": [
                    {"type": "string", "description": "ID do lote", "name": "id", "in": "path", "required": true},
                    {"description": "Delta e motivo", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/admin.AdjustStockRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Lot"}},
                    "409": {"description": "Estoque insuficiente", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}}
                }
            }
        },
        "/admin/lots/{id}/status": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["admin"],
                "summary": "Bloqueia ou coloca um lote em quarentena",
                "parameters": [
                    {"type": "string", "description": "ID do lote", "name": "id", "in": "path", "required": true},
                    {"description": "BLOCKED ou QUARANTINE", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/admin.ChangeStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Lot"}},
                    "422": {"description": "Lote não está ACTIVE", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}}
                }
            }
        },
        "/admin/lots/{id}/reconcile": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["admin"],
                "summary": "Reconcilia um lote com o ledger",
                "parameters": [{"type": "string", "description": "ID do lote", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ledgerservice.Reconciliation"}},
                    "404": {"description": "Lote não encontrado", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}}
                }
            }
        },
        "/admin/expiry/sweep": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["admin"],
                "summary": "Executa a varredura de vencimento",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/expiryservice.ExpirySweepStats"}}
                }
            }
        },
        "/admin/warehouses": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["warehouses"],
                "summary": "Lista os armazéns",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/domain.Warehouse"}}}
                }
            },
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["warehouses"],
                "summary": "Cadastra um armazém",
                "parameters": [
                    {"in": "body", "name": "warehouse", "required": true, "schema": {"$ref": "#/definitions/domain.Warehouse"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/domain.Warehouse"}},
                    "400": {"description": "Payload inválido ou código repetido", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}}
                }
            }
        },
        "/admin/clients": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["auth"],
                "summary": "Cadastra um cliente de API",
                "parameters": [
                    {"in": "body", "name": "registration", "required": true, "schema": {"$ref": "#/definitions/domain.ClientRegistration"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/domain.APIClient"}},
                    "409": {"description": "Nome já cadastrado", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}}
                }
            }
        },
        "/auth/token": {
            "post": {
                "tags": ["auth"],
                "summary": "Emite um JWT para um cliente",
                "parameters": [
                    {"in": "body", "name": "credentials", "required": true, "schema": {"$ref": "#/definitions/domain.TokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.TokenResponse"}},
                    "401": {"description": "Credenciais inválidas", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}}
                }
            }
        },
        "/admin/warehouses/{id}": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["warehouses"],
                "summary": "Obtém um armazém por ID",
                "parameters": [
                    {"type": "string", "in": "path", "name": "id", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Warehouse"}},
                    "404": {"description": "Armazém não encontrado", "schema": {"$ref": "#/definitions/domain.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer", "example": 400},
                "category": {"type": "string", "example": "VALIDATION_ERROR"},
                "message": {"type": "string"}
            }
        },
        "domain.APIClient": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "role": {"type": "string", "enum": ["admin", "operator", "service"]},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"}
            }
        },
        "domain.ClientRegistration": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "secret": {"type": "string"},
                "role": {"type": "string", "enum": ["admin", "operator", "service"]}
            }
        },
        "domain.TokenRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "secret": {"type": "string"}
            }
        },
        "domain.TokenResponse": {
            "type": "object",
            "properties": {
                "token": {"type": "string"}
            }
        },
        "domain.Warehouse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "code": {"type": "string", "example": "SP-01"},
                "name": {"type": "string"},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"}
            }
        },
        "domain.Lot": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "variant_id": {"type": "string"},
                "batch_code": {"type": "string"},
                "origin_estate": {"type": "string"},
                "harvested_on": {"type": "string", "format": "date-time"},
                "best_before": {"type": "string", "format": "date-time"},
                "status": {"type": "string", "enum": ["ACTIVE", "EXPIRED", "BLOCKED", "QUARANTINE"]},
                "qty_available": {"type": "integer"},
                "qty_reserved": {"type": "integer"},
                "warehouse_id": {"type": "string"},
                "version": {"type": "integer"},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"}
            }
        },
        "domain.LotReceipt": {
            "type": "object",
            "properties": {
                "variant_id": {"type": "string"},
                "batch_code": {"type": "string"},
                "origin_estate": {"type": "string"},
                "harvested_on": {"type": "string", "format": "date-time"},
                "best_before": {"type": "string", "format": "date-time"},
                "quantity": {"type": "integer"},
                "warehouse_id": {"type": "string"},
                "reason": {"type": "string"}
            }
        },
        "domain.StockInfo": {
            "type": "object",
            "properties": {
                "variant_id": {"type": "string"},
                "total_stock": {"type": "integer"},
                "available_stock": {"type": "integer"},
                "reserved_stock": {"type": "integer"},
                "lots": {"type": "array", "items": {"$ref": "#/definitions/domain.Lot"}}
            }
        },
        "domain.Availability": {
            "type": "object",
            "properties": {
                "available": {"type": "boolean"},
                "available_quantity": {"type": "integer"},
                "message": {"type": "string"}
            }
        },
        "domain.LedgerHistoryEntry": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "variant_id": {"type": "string"},
                "lot_id": {"type": "string"},
                "change_type": {"type": "string", "enum": ["IN", "OUT", "ADJUSTMENT", "TRANSFER", "EXPIRED", "DAMAGED"]},
                "ref_type": {"type": "string", "enum": ["ORDER", "B2B", "ADMIN", "SYSTEM", "TRANSFER"]},
                "ref_id": {"type": "string"},
                "quantity": {"type": "integer"},
                "reason": {"type": "string"},
                "metadata": {"type": "object"},
                "created_at": {"type": "string", "format": "date-time"},
                "batch_code": {"type": "string"},
                "origin_estate": {"type": "string"}
            }
        },
        "domain.LotAllocation": {
            "type": "object",
            "properties": {
                "lot_id": {"type": "string"},
                "quantity": {"type": "integer"}
            }
        },
        "domain.ReserveRequest": {
            "type": "object",
            "properties": {
                "variant_id": {"type": "string"},
                "quantity": {"type": "integer"},
                "lot_id": {"type": "string"},
                "ref_id": {"type": "string"}
            }
        },
        "domain.ReservationResult": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "reserved_lots": {"type": "array", "items": {"$ref": "#/definitions/domain.LotAllocation"}},
                "shortfall": {"type": "integer"},
                "message": {"type": "string"}
            }
        },
        "domain.SettleRequest": {
            "type": "object",
            "properties": {
                "variant_id": {"type": "string"},
                "lots": {"type": "array", "items": {"$ref": "#/definitions/domain.LotAllocation"}},
                "ref_id": {"type": "string"}
            }
        },
        "domain.Reservation": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "ref_id": {"type": "string"},
                "variant_id": {"type": "string"},
                "status": {"type": "string", "enum": ["HELD", "RELEASED", "CONFIRMED"]},
                "lines": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "lot_id": {"type": "string"},
                            "quantity": {"type": "integer"},
                            "remaining": {"type": "integer"}
                        }
                    }
                },
                "version": {"type": "integer"},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"}
            }
        },
        "admin.AddStockRequest": {
            "type": "object",
            "properties": {
                "variant_id": {"type": "string"},
                "quantity": {"type": "integer"},
                "reason": {"type": "string"}
            }
        },
        "admin.AdjustStockRequest": {
            "type": "object",
            "properties": {
                "variant_id": {"type": "string"},
                "delta": {"type": "integer"},
                "reason": {"type": "string"}
            }
        },
        "admin.ChangeStatusRequest": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["BLOCKED", "QUARANTINE"]},
                "reason": {"type": "string"}
            }
        },
        "ledgerservice.Reconciliation": {
            "type": "object",
            "properties": {
                "lot": {"$ref": "#/definitions/domain.Lot"},
                "reconstructed": {
                    "type": "object",
                    "properties": {
                        "lot_id": {"type": "string"},
                        "available": {"type": "integer"},
                        "reserved": {"type": "integer"},
                        "status": {"type": "string"}
                    }
                },
                "consistent": {"type": "boolean"}
            }
        },
        "expiryservice.ExpirySweepStats": {
            "type": "object",
            "properties": {
                "scanned": {"type": "integer"},
                "expired": {"type": "integer"},
                "skipped": {"type": "integer"},
                "failed": {"type": "integer"},
                "units_blocked": {"type": "integer"},
                "ran_at": {"type": "string", "format": "date-time"}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo guarda as informações exportadas da API.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/v1",
	Schemes:          []string{},
	Title:            "LotStock API",
	Description:      "Reserva de estoque por lote (FEFO), ledger imutável e administração de lotes.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
