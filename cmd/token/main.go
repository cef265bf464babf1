package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"lotstock/internal/domain"
	"lotstock/internal/pkg/token"
)

// Emite um token para ferramentas internas e chamadores de serviço.
// Uso: go run ./cmd/token -sub ops-maria -role admin [-ttl 8h]
func main() {
	_ = godotenv.Load()

	var (
		subject string
		role    string
		ttl     time.Duration
	)
	flag.StringVar(&subject, "sub", "", "identificação de quem usará o token")
	flag.StringVar(&role, "role", string(domain.RoleOperator), "papel: admin, operator ou service")
	flag.DurationVar(&ttl, "ttl", time.Hour, "validade do token")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET_KEY")
	if secret == "" {
		log.Fatal("❌ JWT_SECRET_KEY deve ser definida.")
	}
	if !domain.Role(role).IsValid() {
		log.Fatalf("❌ Papel desconhecido: %s", role)
	}

	signed, err := token.NewService(secret, ttl).GenerateToken(subject, role)
	if err != nil {
		log.Fatalf("❌ Falha ao gerar token: %v", err)
	}
	fmt.Println(signed)
}
