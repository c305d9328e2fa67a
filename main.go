package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/taohansen/blog-backend/api"
	"github.com/taohansen/blog-backend/auth"
	"github.com/taohansen/blog-backend/config"
	"github.com/taohansen/blog-backend/database"
	"github.com/taohansen/blog-backend/services"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: Error loading .env file: %v\n", err)
	}

	cfg := config.New()
	setupLogger(cfg)
	log.Info().Msg("Initializing app...")

	if prefix := config.GetString(cfg, "SSM_PARAMETER_PATH", ""); prefix != "" {
		if err := overlaySSM(cfg, prefix); err != nil {
			log.Fatal().Err(err).Str("prefix", prefix).Msg("loading SSM parameters")
		}
	}

	store, err := database.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing post store")
	}

	schemaCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = store.EnsureSchema(schemaCtx)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("Error preparing post store")
	}

	deps, err := buildDependencies(cfg, store)
	if err != nil {
		log.Fatal().Err(err).Msg("Error wiring dependencies")
	}

	errChannel := make(chan error)
	defer close(errChannel)

	server, err := api.NewServer(cfg, deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing server")
	}

	go server.Start(errChannel)

	// Listen for interrupt signals to gracefully shutdown the server
	go listenToInterrupt(errChannel)

	fatalErr := <-errChannel
	log.Info().Msgf("Closing server: %v", fatalErr)

	server.ShutdownGracefully(30 * time.Second)
}

func buildDependencies(cfg map[string]string, store database.PostStore) (api.Dependencies, error) {
	ttl := time.Duration(config.GetInt(cfg, "JWT_TTL_MINUTES", 12*60)) * time.Minute
	tokens, err := auth.NewTokenManager(config.GetString(cfg, "JWT_SECRET", ""), auth.WithTokenTTL(ttl))
	if err != nil {
		return api.Dependencies{}, err
	}

	admins := config.GetStrings(cfg, "ADMIN_EMAIL", nil)
	if len(admins) == 0 {
		log.Warn().Msg("ADMIN_EMAIL is empty, nobody can change posts")
	}

	deps := api.Dependencies{
		Posts: services.NewPostService(store,
			services.WithAutoSuffixExplicit(config.GetBool(cfg, "SLUG_AUTO_SUFFIX_EXPLICIT", false)),
		),
		Tokens: tokens,
		Admins: auth.NewAdminGate(admins...),
	}

	if clientID := config.GetString(cfg, "GOOGLE_CLIENT_ID", ""); clientID != "" {
		google, err := auth.NewGoogleLogin(
			clientID,
			config.GetString(cfg, "GOOGLE_CLIENT_SECRET", ""),
			config.GetString(cfg, "OAUTH_REDIRECT_URL", ""),
		)
		if err != nil {
			return api.Dependencies{}, err
		}
		deps.Google = google
	} else {
		log.Info().Msg("GOOGLE_CLIENT_ID not set, sign-in routes disabled")
	}

	return deps, nil
}

func setupLogger(cfg map[string]string) {
	level, err := zerolog.ParseLevel(strings.ToLower(config.GetString(cfg, "LOG_LEVEL", "info")))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if strings.EqualFold(config.GetString(cfg, "LOG_FORMAT", ""), "console") {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func overlaySSM(cfg map[string]string, prefix string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := config.NewSSMClient(ctx)
	if err != nil {
		return err
	}
	loaded, err := config.LoadSSM(ctx, cfg, client, prefix)
	if err != nil {
		return err
	}
	log.Info().Int("parameters", loaded).Str("prefix", prefix).Msg("SSM parameters loaded")
	return nil
}

// listenToInterrupt waits for SIGINT or SIGTERM and then sends an error to the error channel.
func listenToInterrupt(errChannel chan<- error) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	errChannel <- fmt.Errorf("%s", <-c)
}
