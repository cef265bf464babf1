package clientservice

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"lotstock/internal/domain"
	apperror "lotstock/internal/errors"
	"lotstock/internal/pkg/logger"
)

const minSecretLen = 12

// ClientRepository define o contrato de persistência de api_clients.
type ClientRepository interface {
	Save(ctx context.Context, client domain.APIClient) (domain.APIClient, error)
	FindByName(ctx context.Context, name string) (domain.APIClient, error)
}

// TokenIssuer é a parte de internal/pkg/token usada aqui.
type TokenIssuer interface {
	GenerateToken(subject string, role string) (string, error)
}

// Service cadastra clientes e troca credenciais por JWT.
type Service struct {
	repo   ClientRepository
	tokens TokenIssuer
	logger logger.Logger
}

// NewService cria uma nova instância do Service, injetando o Repositório e o emissor de tokens.
func NewService(repo ClientRepository, tokens TokenIssuer, logger logger.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, logger: logger}
}

// Register cadastra um cliente. O segredo é guardado só como hash bcrypt.
func (s *Service) Register(ctx context.Context, reg domain.ClientRegistration) (domain.APIClient, error) {
	reg.Name = strings.TrimSpace(reg.Name)
	if reg.Name == "" {
		return domain.APIClient{}, apperror.NewValidationError("O nome do cliente é obrigatório.")
	}
	if len(reg.Secret) < minSecretLen {
		return domain.APIClient{}, apperror.NewValidationError("O segredo deve ter pelo menos 12 caracteres.")
	}
	if !reg.Role.IsValid() {
		return domain.APIClient{}, apperror.NewValidationError("Papel inválido: use admin, operator ou service.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Secret), bcrypt.DefaultCost)
	if err != nil {
		return domain.APIClient{}, apperror.NewInternalError("Falha ao gerar hash do segredo.", err)
	}

	client, err := s.repo.Save(ctx, domain.APIClient{
		Name:       reg.Name,
		SecretHash: string(hash),
		Role:       reg.Role,
	})
	if err != nil {
		return domain.APIClient{}, err
	}

	s.logger.Info("Cliente de API cadastrado.", map[string]interface{}{"client_id": client.ID, "name": client.Name, "role": client.Role})
	return client, nil
}

// IssueToken autentica o cliente e emite um JWT com o seu papel.
func (s *Service) IssueToken(ctx context.Context, name, secret string) (string, error) {
	if name == "" || secret == "" {
		return "", apperror.NewUnauthorizedError("Nome e segredo são obrigatórios.")
	}

	client, err := s.repo.FindByName(ctx, name)
	if err != nil {
		// não revela se o cliente existe
		var notFound *apperror.NotFoundError
		if errors.As(err, &notFound) {
			return "", apperror.NewUnauthorizedError("Credenciais inválidas.")
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(secret)); err != nil {
		s.logger.Warn("Segredo inválido na emissão de token.", map[string]interface{}{"name": name})
		return "", apperror.NewUnauthorizedError("Credenciais inválidas.")
	}

	signed, err := s.tokens.GenerateToken(client.Name, string(client.Role))
	if err != nil {
		return "", apperror.NewInternalError("Falha ao gerar token de autenticação.", err)
	}
	return signed, nil
}
