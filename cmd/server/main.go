package main

import (
	"context"
	"errors"
	"log"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/Tyrowin/vidigu-relay/internal/auth"
	"github.com/Tyrowin/vidigu-relay/internal/chat"
	"github.com/Tyrowin/vidigu-relay/internal/config"
	"github.com/Tyrowin/vidigu-relay/internal/server"
	"github.com/Tyrowin/vidigu-relay/internal/store"
)

func main() {
	log.Println("Starting Vidigu relay...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	users, err := store.Open(context.Background(), cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to open user store: %v", err)
	}
	log.Printf("Users are stored with the %s driver", users.Driver())

	issuer, err := newIssuer(cfg.Auth)
	if err != nil {
		log.Fatalf("Failed to configure token issuer: %v", err)
	}

	service := auth.NewService(users, auth.NewPasswordHasher(cfg.Auth.BcryptCost), issuer, cfg.Auth.TokenTTL)
	resolver := auth.NewResolver(issuer)

	hub := server.NewHub(chat.NewRoomStore(chat.DefaultHistoryLimit))
	go hub.Run()
	log.Println("Hub started and ready to manage WebSocket connections")

	api := server.NewAPI(server.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxMessageSize: cfg.Server.MaxMessageSize,
	}, hub, service, resolver)

	httpServer := server.CreateServer(cfg.Server.Port, api.Routes())
	go func() {
		if err := server.StartServer(httpServer); err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	timeout := cfg.Server.ShutdownTimeout
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		timeout,
		map[string]gfshutdown.Operation{
			// One operation so the steps run in order: stop accepting
			// requests, drain the hub, then release the database.
			"relay": func(_ context.Context) error {
				return errors.Join(
					server.ShutdownServer(httpServer, timeout),
					hub.Shutdown(timeout),
					users.Close(),
				)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Relay exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func newIssuer(cfg config.AuthConfig) (auth.Issuer, error) {
	if cfg.TokenMode == config.TokenModeJWT {
		return auth.NewJWTIssuer(auth.JWTConfig{SecretKey: cfg.JWTSecret, Issuer: "vidigu-relay"})
	}
	log.Println("Using unsigned pseudo tokens; any client can forge an identity")
	return auth.NewPseudoIssuer(), nil
}
