package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"voicelink/internal/config"
	apphttp "voicelink/internal/http"
	"voicelink/internal/logging"
	"voicelink/internal/repository/sqlstore"
	"voicelink/internal/security"
	"voicelink/internal/service"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	configured, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logger.Fatalf("setup logging: %v", err)
	}
	logger = configured

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlstore.Open(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := sqlstore.Migrate(ctx, db, logger); err != nil {
		logger.Fatalf("migrate database: %v", err)
	}
	logger.Infof("using %s store", db.Dialect)

	userRepo := sqlstore.NewUserRepository(db)
	userService := service.NewUserService(userRepo, security.NewPasswordHasher(cfg.Auth.BcryptCost))

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(
		userService,
		logger,
		cfg.CORS.Origins,
		apphttp.NewMetrics(),
	)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}
