package main

import (
	"flag"
	"log"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"lotstock/config"
	"lotstock/internal/pkg/database"
	"lotstock/internal/pkg/logger"
)

// Uso: go run ./cmd/migrate [-dir ./sql] [up|down|status|version|redo|reset] [args...]
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️ Aviso: .env não encontrado. Usando apenas variáveis do ambiente: %v", err)
	}

	var migrationsDir string
	flag.StringVar(&migrationsDir, "dir", "./sql", "diretório com as migrações")
	flag.Parse()

	cfg := config.LoadConfig()
	appLog := logger.NewLogger(cfg.LogLevel)
	defer logger.Sync(appLog)

	db, err := database.NewPostgresDB(cfg.DatabaseURL, 2)
	if err != nil {
		appLog.Fatal("goose: falha ao conectar ao banco.", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLog.Error("goose: falha ao fechar conexão.", err)
		}
	}()

	if err := goose.SetDialect("postgres"); err != nil {
		appLog.Fatal("goose: dialeto inválido.", err)
	}

	arguments := flag.Args()
	if len(arguments) == 0 {
		arguments = []string{"up"}
	}
	command, args := arguments[0], arguments[1:]

	if err := goose.Run(command, db, migrationsDir, args...); err != nil {
		appLog.Fatal("goose: comando falhou.", err)
	}

	appLog.Info("goose: comando concluído.", map[string]interface{}{"command": command, "dir": migrationsDir})
}
