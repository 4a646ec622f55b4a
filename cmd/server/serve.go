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

	"github.com/spf13/cobra"

	"flash-quiz/internal/api"
	"flash-quiz/internal/db"
	"flash-quiz/internal/llm"
	"flash-quiz/internal/services"
	"flash-quiz/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("port", "", "listen port (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}
	logger := cfg.Logger()

	conn, err := db.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()

	gen, err := llm.New(cfg)
	if err != nil {
		return err
	}
	pages, err := web.New()
	if err != nil {
		return err
	}

	decks := services.NewDeckService(conn)
	server := api.NewServer(
		logger,
		services.NewNotesService(cfg.UploadDir, cfg.MaxNoteChars),
		services.NewGenerationService(gen, logger, cfg.StrictParse),
		decks,
		services.NewQuizService(decks, services.NewSessionStore(), cfg.NotesPath, cfg.CheckpointSize, logger),
		pages,
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		// Page uploads wait for two model calls.
		WriteTimeout: 2*cfg.LLMTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"address", srv.Addr,
			"backend", cfg.LLMBackend,
			"model", gen.Model(),
			"database", cfg.Database,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	logger.Info("shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return err
	}
	return nil
}
