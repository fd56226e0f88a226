package config_test

import (
	"testing"
	"time"

	"notesaver/internal/config"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(overrides map[string]interface{}) *viper.Viper {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("JWT_SECRET", "test_jwt_secret")
	for k, val := range overrides {
		v.Set(k, val)
	}
	return v
}

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := config.FromViper(newViper(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.AppPort)
	assert.Equal(t, config.DriverSQLite, cfg.DBDriver)
	assert.Equal(t, 30*24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, "note_events", cfg.RabbitMQQueue)
	assert.Empty(t, cfg.RabbitMQURL)
	assert.False(t, cfg.FederatedTrustClient)
	assert.NotEmpty(t, cfg.GoogleUserInfoURL)
}

func TestFromViper_Overrides(t *testing.T) {
	cfg, err := config.FromViper(newViper(map[string]interface{}{
		"DB_DRIVER":   "  Memory ",
		"JWT_TTL":     "1h",
		"BCRYPT_COST": 4,
	}))
	require.NoError(t, err)

	assert.Equal(t, config.DriverMemory, cfg.DBDriver)
	assert.Equal(t, time.Hour, cfg.JWTTTL)
	assert.Equal(t, 4, cfg.BcryptCost)
}

func TestFromViper_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]interface{}
		wantErr   string
	}{
		{"missing secret", map[string]interface{}{"JWT_SECRET": ""}, "JWT_SECRET"},
		{"zero ttl", map[string]interface{}{"JWT_TTL": "0s"}, "JWT_TTL"},
		{"low cost", map[string]interface{}{"BCRYPT_COST": 3}, "BCRYPT_COST"},
		{"high cost", map[string]interface{}{"BCRYPT_COST": 32}, "BCRYPT_COST"},
		{"unknown driver", map[string]interface{}{"DB_DRIVER": "mongo"}, "DB_DRIVER"},
		{"empty dsn", map[string]interface{}{"DB_DRIVER": "postgres", "DATABASE_DSN": ""}, "DATABASE_DSN"},
		{"no verifier", map[string]interface{}{"GOOGLE_USERINFO_URL": ""}, "GOOGLE_USERINFO_URL"},
		{"no queue", map[string]interface{}{"RABBITMQ_URL": "amqp://localhost", "RABBITMQ_QUEUE": ""}, "RABBITMQ_QUEUE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.FromViper(newViper(tt.overrides))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFromViper_TrustClientWithoutVerifier(t *testing.T) {
	_, err := config.FromViper(newViper(map[string]interface{}{
		"GOOGLE_USERINFO_URL":    "",
		"FEDERATED_TRUST_CLIENT": true,
	}))
	assert.NoError(t, err)
}
