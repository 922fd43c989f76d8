package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	var (
		addr  = "localhost:8080"
		dsn   = "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"
		rdb   = "redis://localhost:6379/0"
		key   = "c29tZV9zZWNyZXQ="
		orig  = []string{"http://localhost:3000"}
		vpub  = "BBp8zCq-test-public-key"
		vpriv = "test-private-key"
		vsub  = "mailto:admin@skillswap.dev"
	)

	tcases := []struct {
		name  string
		addr  string
		dsn   string
		rdb   string
		key   string
		orig  []string
		vpub  string
		vpriv string
		vsub  string
		err   bool
	}{
		{
			name:  "valid config",
			addr:  addr,
			dsn:   dsn,
			rdb:   rdb,
			key:   key,
			orig:  orig,
			vpub:  vpub,
			vpriv: vpriv,
			vsub:  vsub,
			err:   false,
		},
		{
			name: "valid config without vapid keys",
			addr: addr,
			dsn:  dsn,
			rdb:  rdb,
			key:  key,
			orig: orig,
			err:  false,
		},
		{
			name:  "empty address",
			addr:  "",
			dsn:   dsn,
			rdb:   rdb,
			key:   key,
			orig:  orig,
			vpub:  vpub,
			vpriv: vpriv,
			vsub:  vsub,
			err:   true,
		},
		{
			name:  "empty DSN",
			addr:  addr,
			dsn:   "",
			rdb:   rdb,
			key:   key,
			orig:  orig,
			vpub:  vpub,
			vpriv: vpriv,
			vsub:  vsub,
			err:   true,
		},
		{
			name:  "empty redis URL",
			addr:  addr,
			dsn:   dsn,
			rdb:   "",
			key:   key,
			orig:  orig,
			vpub:  vpub,
			vpriv: vpriv,
			vsub:  vsub,
			err:   true,
		},
		{
			name: "empty signing key",
			addr: addr,
			dsn:  dsn,
			rdb:  rdb,
			key:  "",
			orig: orig,
			err:  true,
		},
		{
			name:  "vapid public key without private key",
			addr:  addr,
			dsn:   dsn,
			rdb:   rdb,
			key:   key,
			orig:  orig,
			vpub:  vpub,
			vpriv: "",
			vsub:  vsub,
			err:   true,
		},
		{
			name:  "invalid vapid subject",
			addr:  addr,
			dsn:   dsn,
			rdb:   rdb,
			key:   key,
			orig:  orig,
			vpub:  vpub,
			vpriv: vpriv,
			vsub:  "admin@skillswap.dev",
			err:   true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			config, err := NewConfig(tc.addr, tc.dsn, tc.rdb, tc.key, tc.orig, tc.vpub, tc.vpriv, tc.vsub)
			if tc.err {
				assert.Error(t, err, "expected error for config: %s", tc.name)
				return
			}
			assert.NoError(t, err, "expected no error for config: %s", tc.name)

			assert.Equal(t, tc.addr, config.ServerAddr, "expected server address to match")
			assert.Equal(t, tc.dsn, config.DatabaseDSN, "expected database DSN to match")
			assert.Equal(t, tc.rdb, config.RedisURL, "expected redis URL to match")
			assert.Equal(t, tc.orig, config.AllowedOrigins, "expected allowed origins to match")
			assert.NotEmpty(t, config.SigningKey, "expected signing key to be decoded and not empty")
		})
	}
}

func Test_decodeSigningKey(t *testing.T) {
	tcases := []struct {
		name         string
		base64Secret string
		expectedKey  []byte
		expectError  bool
	}{
		{
			name:         "valid base64 secret",
			base64Secret: "c29tZV9zZWNyZXQ=",
			expectedKey:  []byte("some_secret"),
			expectError:  false,
		},
		{
			name:         "invalid base64 secret",
			base64Secret: "invalid_base64",
			expectedKey:  nil,
			expectError:  true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			key, err := decodeSigningSecret(tc.base64Secret)
			if tc.expectError {
				assert.Error(t, err, "expected error for base64 secret: %s", tc.base64Secret)
			} else {
				assert.NoError(t, err, "expected no error for base64 secret: %s", tc.base64Secret)
				assert.Equal(t, tc.expectedKey, key, "expected decoded key to match for base64 secret: %s", tc.base64Secret)
			}
		})
	}
}
