package domain

// Role é o papel carregado no token de quem chama a API.
type Role string

const (
	RoleAdmin    Role = "admin"    // ferramentas administrativas de estoque
	RoleOperator Role = "operator" // operação de armazém
	RoleService  Role = "service"  // checkout e cotação B2B
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleOperator, RoleService:
		return true
	}
	return false
}
