package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	environment "chanpay-bot/internal/env"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := environment.Setup(ctx)
	if err != nil {
		log.Fatalf("Failed to setup environment: %v", err)
	}

	logger := env.Logger
	logger.Info("Starting chanpay-bot application")

	serve("observability", env.Servers.HTTP.Observability, logger)
	serve("webhook", env.Servers.HTTP.Webhook, logger)

	pumpCtx, cancelPump := context.WithCancel(context.Background())
	var pump sync.WaitGroup

	if err := startTelegramBot(pumpCtx, env, &pump); err != nil {
		logger.Error("Failed to start telegram bot", slog.Any("error", err))
		cancelPump()
		closeAll(env)
		os.Exit(1)
	}

	if err := env.Services.WorkerManager.Start(); err != nil {
		logger.Error("Failed to start workers", slog.Any("error", err))
		cancelPump()
		env.Clients.TelegramBot.Stop()
		closeAll(env)
		os.Exit(1)
	}

	logger.Info("Bot started successfully. Press Ctrl+C to stop.")
	<-ctx.Done()

	logger.Info("Shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), env.Config.ShutdownDuration)
	defer cancel()

	// воркеры первыми: дожидаемся текущей проверки подписок
	env.Services.WorkerManager.Stop()

	for name, srv := range map[string]*http.Server{
		"webhook":       env.Servers.HTTP.Webhook,
		"observability": env.Servers.HTTP.Observability,
	} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server shutdown error", slog.String("server", name), slog.Any("error", err))
		}
	}

	cancelPump()
	env.Clients.TelegramBot.Stop()
	pump.Wait()

	closeAll(env)

	logger.Info("Application stopped")
}

func serve(name string, srv *http.Server, logger *slog.Logger) {
	if srv == nil {
		return
	}
	go func() {
		logger.Info("Starting HTTP server", slog.String("server", name), slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", slog.String("server", name), slog.Any("error", err))
		}
	}()
}

func closeAll(env *environment.Env) {
	for _, closer := range env.Closers {
		closer()
	}
}

func startTelegramBot(ctx context.Context, env *environment.Env, wg *sync.WaitGroup) error {
	logger := env.Logger

	if err := env.Clients.TelegramBot.Start(ctx); err != nil {
		return fmt.Errorf("запуск telegram клиента: %w", err)
	}

	// Устанавливаем команды для меню бота
	if err := env.Services.BotCommands(); err != nil {
		logger.Error("Failed to setup bot commands", slog.Any("error", err))
	} else {
		logger.Info("Bot commands set up successfully")
	}

	updates := env.Clients.TelegramBot.GetUpdates()

	logger.Info("Started listening for updates with router...",
		slog.String("bot", env.Clients.TelegramBot.Username()))

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.From != nil {
					logger.Debug("Получено сообщение",
						slog.Int64("chat_id", update.Message.Chat.ID),
						slog.Int64("user_id", update.Message.From.ID))
				} else if update.CallbackQuery != nil {
					logger.Debug("Получен callback",
						slog.Int64("user_id", update.CallbackQuery.From.ID),
						slog.String("data", update.CallbackQuery.Data))
				}

				if err := env.Services.TelegramRouter.Route(ctx, &update); err != nil {
					logger.Error("Ошибка обработки обновления", slog.Any("error", err))
				}
			}
		}
	}()

	return nil
}
