package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/skillswap/skillswap-chat/internal/api"
	"github.com/skillswap/skillswap-chat/internal/chat"
	"github.com/skillswap/skillswap-chat/internal/config"
	"github.com/skillswap/skillswap-chat/internal/database"
	"github.com/skillswap/skillswap-chat/internal/presence"
	"github.com/skillswap/skillswap-chat/internal/push"
	"github.com/skillswap/skillswap-chat/internal/server"
	"github.com/skillswap/skillswap-chat/internal/stats"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr            string
	dsn             string
	redisURL        string
	signingKey      string
	allowedOrigins  stringSliceFlag
	vapidPublicKey  string
	vapidPrivateKey string
	vapidSubject    string
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dsn, "dsn", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable", "database connection string")
	flag.StringVar(&redisURL, "redis-url", "redis://localhost:6379/0", "redis connection url for presence tracking")
	flag.StringVar(&signingKey, "signing-key", defaultSigningKey, "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.StringVar(&vapidPublicKey, "vapid-public-key", "", "VAPID public key for web push")
	flag.StringVar(&vapidPrivateKey, "vapid-private-key", "", "VAPID private key for web push")
	flag.StringVar(&vapidSubject, "vapid-subject", "", "VAPID subject (mailto: or https: url)")
	flag.Parse()

	logger := log.New(os.Stderr, "[skillswap-chat] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, redisURL, signingKey, allowedOrigins, vapidPublicKey, vapidPrivateKey, vapidSubject)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewPgChatRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if err := dbConn.Migrate(); err != nil {
		logger.Fatal("db migrate:", err)
	}

	tracker, err := presence.NewRedisTracker(logger, cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis connect:", err)
	}
	defer func() {
		if err := tracker.Close(); err != nil {
			logger.Println("redis close:", err)
		}
	}()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	dispatcher := push.NewWebPushDispatcher(logger, dbConn, tracker, statsUpdater, cfg)
	chatService := chat.NewService(logger, dbConn, dispatcher, statsUpdater)
	chatServer := server.NewChatServer(logger, chatService, tracker, statsUpdater)

	srv := api.NewChatApp(mux, logger, chatServer, chatService, tracker, dbConn, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go chatServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down chat server...")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("chat server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
