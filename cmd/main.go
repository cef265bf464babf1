package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"lotstock/config"
	"lotstock/internal/pkg/cache"
	"lotstock/internal/pkg/database"
	"lotstock/internal/pkg/logger"
	"lotstock/internal/pkg/retrier"
	"lotstock/internal/pkg/token"

	"lotstock/internal/api/admin"
	"lotstock/internal/api/auth"
	"lotstock/internal/api/router"
	"lotstock/internal/api/stock"
	"lotstock/internal/api/warehouse"
	"lotstock/internal/repository/clientrepo"
	"lotstock/internal/repository/lotrepo"
	"lotstock/internal/repository/warehouserepo"
	"lotstock/internal/service/clientservice"
	"lotstock/internal/service/expiryservice"
	"lotstock/internal/service/ledgerservice"
	"lotstock/internal/service/queryservice"
	"lotstock/internal/service/reservationservice"
	"lotstock/internal/service/stockservice"
	"lotstock/internal/service/warehouseservice"
)

func main() {
	// 0. .env é opcional: em containers as variáveis vêm do ambiente.
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ Aviso: Arquivo .env não encontrado ou erro de leitura. Carregando configs apenas do ambiente do sistema.")
	}

	cfg := config.LoadConfig()
	appLog := logger.NewLogger(cfg.LogLevel)
	defer logger.Sync(appLog)
	appLog.Info("⚡ Inicializando serviço LotStock...", map[string]interface{}{"env": cfg.Environment})

	// 1. Infraestrutura

	db, err := database.NewPostgresDB(cfg.DatabaseURL, cfg.DBMaxOpenConns)
	if err != nil {
		appLog.Fatal("Falha ao conectar ao banco de dados.", err)
	}
	defer db.Close()
	appLog.Info("Conexão PostgreSQL estabelecida.", nil)

	cacheClient, err := cache.NewRedisClient(cfg.RedisAddr, cfg.CacheTimeout)
	if err != nil {
		if cfg.Environment != "development" {
			appLog.Fatal("Falha ao conectar ao Redis.", err)
		}
		appLog.Warn("Redis indisponível, usando cache em memória (apenas desenvolvimento).", map[string]interface{}{"addr": cfg.RedisAddr, "error": err.Error()})
		cacheClient = cache.NewMemoryClient()
	} else {
		appLog.Info("Conexão Redis estabelecida.", nil)
	}

	// 2. Injeção de dependências: Repository -> Service -> Handler

	lotRepo := lotrepo.NewLotRepository(db, cfg.DBTimeout, appLog)
	warehouseRepo := warehouserepo.NewWarehouseRepository(db, cfg.DBTimeout, appLog)
	clientRepo := clientrepo.NewClientRepository(db, cfg.DBTimeout, appLog)
	ledgerSvc := ledgerservice.NewService(appLog)
	querySvc := queryservice.NewService(lotRepo, ledgerSvc, cacheClient, cfg.StockCacheTTL, appLog)
	reservationSvc := reservationservice.NewService(lotRepo, ledgerSvc, querySvc, cfg.ReserveMaxRetries, cfg.ReserveRetryBackoff, appLog)
	warehouseSvc := warehouseservice.NewService(warehouseRepo, appLog)
	stockSvc := stockservice.NewService(lotRepo, ledgerSvc, querySvc,
		retrier.Policy{MaxRetries: cfg.ReserveMaxRetries, Backoff: cfg.ReserveRetryBackoff}, appLog).
		WithWarehouses(warehouseSvc)
	expirySvc := expiryservice.NewService(lotRepo, ledgerSvc, querySvc, appLog)
	appLog.Debug("Serviços inicializados.", nil)

	tokenSvc := token.NewService(cfg.JWTSecretKey, cfg.TokenExpiry)
	clientSvc := clientservice.NewService(clientRepo, tokenSvc, appLog)

	stockHandler := stock.NewHandler(querySvc, reservationSvc, appLog)
	adminHandler := admin.NewHandler(stockSvc, expirySvc, appLog)
	warehouseHandler := warehouse.NewHandler(warehouseSvc, appLog)
	authHandler := auth.NewHandler(clientSvc, appLog)

	// 3. Varredura periódica de lotes vencidos

	scheduler := expiryservice.NewScheduler(expirySvc, cacheClient, cfg.ExpirySweepInterval, cfg.ExpirySweepLockTTL, appLog)
	if err := scheduler.Start(context.Background()); err != nil {
		appLog.Fatal("Falha ao iniciar o agendador de vencimento.", err)
	}

	// 4. Servidor HTTP

	r := router.NewRouter(stockHandler, adminHandler, warehouseHandler, authHandler, tokenSvc, cacheClient,
		router.RateLimit{Max: cfg.RateLimitMaxRequests, Period: cfg.RateLimitPeriod}, appLog)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLog.Info("Servidor LotStock ouvindo na porta", map[string]interface{}{"port": cfg.Port})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("Servidor falhou.", err)
		}
	}()

	// 5. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	appLog.Info("Sinal de encerramento recebido. Desligando servidor...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLog.Error("Desligamento do servidor forçado.", err)
	}
	if err := scheduler.Stop(ctx); err != nil {
		appLog.Error("Agendador de vencimento não parou a tempo.", err)
	}
	if closer, ok := cacheClient.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			appLog.Warn("Falha ao fechar o cache.", map[string]interface{}{"error": err.Error()})
		}
	}

	appLog.Info("Servidor encerrado com sucesso.", nil)
}
