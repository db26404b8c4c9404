package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rankauskaite/fittrack/internal/config"
	"github.com/rankauskaite/fittrack/plans"
	fakeplanrepo "github.com/rankauskaite/fittrack/plans/repofake"
	"github.com/rankauskaite/fittrack/server"
	"github.com/rankauskaite/fittrack/session"
	"github.com/rankauskaite/fittrack/token"
	userspostgres "github.com/rankauskaite/fittrack/users/postgres"
)

const appName = "FitTrack"

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

func run() error {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)
	setupLogger(cfg.Env)
	displayAppName()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DB.URL)
	if err != nil {
		return fmt.Errorf("pgxpool.New: %w", err)
	}
	defer pool.Close()

	tokens := token.NewManager(
		token.NewHMACSigner(cfg.Auth.Secret),
		cfg.Auth.Issuer,
		cfg.Auth.Audience,
		token.WithExpiry(cfg.Auth.AccessTokenTTL),
	)

	userRepo := userspostgres.New(pool)
	issuer, err := session.NewIssuer(userRepo, tokens,
		session.WithRefreshTTL(cfg.Auth.RefreshTokenTTL),
	)
	if err != nil {
		return fmt.Errorf("session.NewIssuer: %w", err)
	}

	srv, err := server.New(cfg.Env, server.Repos{
		Users: userRepo,
		Plans: planRepo(),
	}, issuer, tokens)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      srv,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
	}

	go listenAndServe(httpServer)
	waitForStopSignal()
	return shutdown(httpServer)
}

// planRepo returns the training-plan collaborator. The relational CRUD
// subsystem plugs in its own implementation here; the in-memory fake keeps
// the server runnable without it.
func planRepo() plans.Repo {
	return fakeplanrepo.NewFakePlanRepo()
}

func listenAndServe(httpServer *http.Server) {
	log.Info().Str("addr", httpServer.Addr).Msg("server listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func setupLogger(env string) {
	switch env {
	case "local":
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout}).Level(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func displayAppName() {
	myFigure := figure.NewFigure(appName, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
