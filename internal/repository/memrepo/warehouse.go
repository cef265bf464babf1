package memrepo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"lotstock/internal/domain"
	"lotstock/internal/errors"
)

// Warehouses é o cadastro de armazéns em memória.
type Warehouses struct {
	mu   sync.Mutex
	byID map[string]domain.Warehouse
}

// NewWarehouses cria e retorna uma nova instância do repositório de armazéns em memória.
func NewWarehouses() *Warehouses {
	return &Warehouses{byID: make(map[string]domain.Warehouse)}
}

func (w *Warehouses) CreateWarehouse(_ context.Context, warehouse domain.Warehouse) (domain.Warehouse, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, existing := range w.byID {
		if existing.Code == warehouse.Code {
			return domain.Warehouse{}, errors.NewValidationError(fmt.Sprintf("Já existe um armazém com o código %s.", warehouse.Code))
		}
	}
	if warehouse.ID == "" {
		warehouse.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	warehouse.CreatedAt, warehouse.UpdatedAt = now, now
	w.byID[warehouse.ID] = warehouse
	return warehouse, nil
}

func (w *Warehouses) GetWarehouseByID(_ context.Context, id string) (domain.Warehouse, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	warehouse, ok := w.byID[id]
	if !ok {
		return domain.Warehouse{}, errors.NewNotFoundError(fmt.Sprintf("Armazém com ID %s não encontrado.", id))
	}
	return warehouse, nil
}

func (w *Warehouses) ListWarehouses(_ context.Context) ([]domain.Warehouse, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]domain.Warehouse, 0, len(w.byID))
	for _, warehouse := range w.byID {
		out = append(out, warehouse)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}
