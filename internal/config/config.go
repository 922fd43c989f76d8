package config

import (
	"encoding/base64"
	"fmt"
	"strings"
)

type Config struct {
	ServerAddr      string
	DatabaseDSN     string
	RedisURL        string
	SigningKey      []byte
	AllowedOrigins  []string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, databaseDSN, redisURL, base64Secret string, allowedOrigins []string, vapidPublicKey, vapidPrivateKey, vapidSubject string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	// Decode the base64 encoded signing secret
	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	// VAPID keys are optional; without them push dispatch is disabled.
	// A subject, when given, must be a mailto: or https: URL.
	if vapidSubject != "" && !strings.HasPrefix(vapidSubject, "mailto:") && !strings.HasPrefix(vapidSubject, "https://") {
		return nil, fmt.Errorf("vapid subject must be a mailto: or https: URL")
	}
	if (vapidPublicKey == "") != (vapidPrivateKey == "") {
		return nil, fmt.Errorf("vapid keys must be provided together")
	}

	return &Config{
		ServerAddr:      serverAddr,
		DatabaseDSN:     databaseDSN,
		RedisURL:        redisURL,
		SigningKey:      signingKey,
		AllowedOrigins:  allowedOrigins,
		VAPIDPublicKey:  vapidPublicKey,
		VAPIDPrivateKey: vapidPrivateKey,
		VAPIDSubject:    vapidSubject,
	}, nil
}
