package memrepo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"lotstock/internal/domain"
	"lotstock/internal/errors"
)

// Clients guarda as credenciais de api_clients em memória.
type Clients struct {
	mu     sync.Mutex
	byName map[string]domain.APIClient
}

// NewClients cria e retorna uma nova instância do repositório de clientes em memória.
func NewClients() *Clients {
	return &Clients{byName: make(map[string]domain.APIClient)}
}

func (c *Clients) Save(_ context.Context, client domain.APIClient) (domain.APIClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byName[client.Name]; exists {
		return domain.APIClient{}, errors.NewConflictError(fmt.Sprintf("O cliente '%s' já está cadastrado.", client.Name))
	}
	client.ID = uuid.NewString()
	client.CreatedAt = time.Now().UTC()
	client.UpdatedAt = client.CreatedAt
	c.byName[client.Name] = client
	return client, nil
}

func (c *Clients) FindByName(_ context.Context, name string) (domain.APIClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, ok := c.byName[name]
	if !ok {
		return domain.APIClient{}, errors.NewNotFoundError(fmt.Sprintf("Cliente '%s' não encontrado", name))
	}
	return client, nil
}
