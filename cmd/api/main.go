package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/microearn/backend/internal/auth"
	"github.com/microearn/backend/internal/config"
	"github.com/microearn/backend/internal/handlers"
	"github.com/microearn/backend/internal/ledger"
	"github.com/microearn/backend/internal/middleware"
	"github.com/microearn/backend/internal/models"
	"github.com/microearn/backend/internal/notify"
	"github.com/microearn/backend/internal/repository"
	"github.com/microearn/backend/internal/router"
	"github.com/microearn/backend/internal/services"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL. Ensure Postgres is running, e.g. docker-compose up -d", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL")

	// River migrations (job queue tables only; app tables live in migrations/).
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}

	// Repositories
	accountRepo := repository.NewAccountRepo(pool)
	taskRepo := repository.NewTaskRepo(pool)
	submissionRepo := repository.NewSubmissionRepo(pool)
	withdrawalRepo := repository.NewWithdrawalRepo(pool)
	ledgerRepo := repository.NewLedgerRepo(pool)

	// Ledger: the single point of balance mutation.
	ledgerSvc := ledger.NewService(accountRepo, ledgerRepo)

	// Domain services
	authSvc := auth.NewService(accountRepo, ledgerSvc, cfg.JWTSecret, cfg.WorkerSignupBonus, cfg.BuyerSignupBonus, logger)
	taskSvc := services.NewTaskService(taskRepo, submissionRepo, ledgerSvc, logger)
	submissionSvc := services.NewSubmissionService(submissionRepo, taskRepo, ledgerSvc, logger)
	withdrawalSvc := services.NewWithdrawalService(withdrawalRepo, accountRepo, ledgerSvc, cfg.MinWithdrawalCoins, logger)

	// Payout notification worker. Only wired when a gateway webhook is
	// configured; without one, approvals settle the ledger and stop there.
	var riverClient *river.Client[pgx.Tx]
	if cfg.PayoutWebhookURL != "" {
		workers := river.NewWorkers()
		river.AddWorker(workers, notify.NewPayoutWorker(cfg.PayoutWebhookURL))

		riverClient, err = river.NewClient(riverpgxv5.New(pool), &river.Config{
			Queues: map[string]river.QueueConfig{
				river.QueueDefault: {MaxWorkers: 10},
			},
			Workers: workers,
		})
		if err != nil {
			slog.Error("Failed to create River client", "error", err)
			os.Exit(1)
		}

		withdrawalSvc.SetPayoutEnqueuer(func(ctx context.Context, tx pgx.Tx, w *models.Withdrawal) error {
			_, err := riverClient.InsertTx(ctx, tx, notify.PayoutJobArgs{
				WithdrawalID:  w.ID,
				WorkerID:      w.WorkerID,
				Coins:         w.Coins,
				USDCents:      cfg.CoinsToUSD(w.Coins),
				PaymentSystem: w.PaymentSystem,
				AccountNumber: w.AccountNumber,
			}, nil)
			return err
		})
	}

	// HTTP surface
	apiRouter := router.New(router.Deps{
		Auth:        auth.NewHandler(authSvc, logger),
		Tasks:       &handlers.TaskHandler{Tasks: taskSvc, Logger: logger},
		Submissions: &handlers.SubmissionHandler{Submissions: submissionSvc, Logger: logger},
		Withdrawals: &handlers.WithdrawalHandler{Withdrawals: withdrawalSvc, Logger: logger},
		Account: &handlers.AccountHandler{
			Accounts:   accountRepo,
			Ledger:     ledgerRepo,
			CoinsToUSD: cfg.CoinsToUSD,
			Logger:     logger,
		},
		Admin: &handlers.AdminHandler{
			Accounts:    accountRepo,
			Tasks:       taskRepo,
			Withdrawals: withdrawalRepo,
			Logger:      logger,
		},
		Principal: middleware.PrincipalAuth(authSvc, accountRepo),
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(apiRouter)

	if riverClient != nil {
		riverCtx, stopRiver := context.WithCancel(ctx)
		defer stopRiver()
		go func() {
			if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
				slog.Error("River client stopped", "error", err)
			}
		}()
	}

	addr := "0.0.0.0:" + cfg.Port
	slog.Info("Starting HTTP server", "addr", addr)
	if err := http.ListenAndServe(addr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
