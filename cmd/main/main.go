package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/knowbase/file-backend/config"
	"github.com/knowbase/file-backend/pkg/artifact"
	"github.com/knowbase/file-backend/pkg/converter"
	"github.com/knowbase/file-backend/pkg/db"
	errdomain "github.com/knowbase/file-backend/pkg/errors"
	"github.com/knowbase/file-backend/pkg/handler"
	"github.com/knowbase/file-backend/pkg/logger"
	"github.com/knowbase/file-backend/pkg/middleware"
	"github.com/knowbase/file-backend/pkg/parser"
	"github.com/knowbase/file-backend/pkg/ragflow"
	"github.com/knowbase/file-backend/pkg/repository"
	"github.com/knowbase/file-backend/pkg/service"
)

func main() {
	if err := config.Init(config.ParseConfigFlag()); err != nil {
		panic(err)
	}

	log, err := logger.GetZapLogger()
	if err != nil {
		panic(err)
	}
	defer func() {
		// https://github.com/uber-go/zap/issues/880
		_ = log.Sync()
	}()

	gormDB, err := db.GetConnection(config.Config.Database)
	if err != nil {
		log.Fatal("connecting to database", zap.Error(err))
	}
	defer db.Close(gormDB)
	repo := repository.NewRepository(gormDB)

	store, err := artifact.NewStore(config.Config.Storage.UploadRoot)
	if err != nil {
		log.Fatal("initializing artifact store", zap.Error(err))
	}

	conv, err := converter.NewConverter(config.Config.Converter, log)
	if err != nil {
		log.Fatal("initializing converter", zap.Error(err))
	}

	parseClient := parser.NewClient(config.Config.Parser, log)
	indexClient := ragflow.NewClient(config.Config.RAGFlow, log)
	if indexClient.Available() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := indexClient.TestConnection(ctx); err != nil {
			log.Warn("knowledge index unreachable, continuing without sync", zap.Error(err))
		}
		cancel()
	} else {
		log.Info("knowledge index not configured, sync disabled")
	}

	svc := service.NewService(repo, store, conv, parseClient, indexClient, &config.Config, log)
	seedAdminUser(svc, log)

	if !config.Config.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log))
	router.MaxMultipartMemory = config.Config.Server.MaxUploadSize
	handler.NewHandler(svc, store, &config.Config, log).SetupRouter(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Config.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info("server listening", zap.Int("port", config.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("serving HTTP", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	quitSig := make(chan os.Signal, 1)
	signal.Notify(quitSig, syscall.SIGINT, syscall.SIGTERM)
	<-quitSig

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}

// seedAdminUser creates the initial admin account when explicitly configured
// to. Without the configuration no user is ever created implicitly.
func seedAdminUser(svc service.Service, log *zap.Logger) {
	password := config.Config.Auth.InitialAdminPassword
	if password == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, _, err := svc.Login(ctx, "admin", password); err == nil {
		return
	} else if !errors.Is(err, errdomain.ErrUnauthenticated) {
		log.Warn("checking admin user", zap.Error(err))
	}
	if _, err := svc.CreateUser(ctx, "admin", password); err != nil {
		log.Warn("seeding admin user", zap.Error(err))
		return
	}
	log.Info("seeded initial admin user")
}
