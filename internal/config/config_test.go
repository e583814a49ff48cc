package config

import (
	"reflect"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_DefaultsApply(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.ServerPort)
	}
	if cfg.SendTimeoutSeconds != 10 {
		t.Fatalf("expected default send timeout 10, got %d", cfg.SendTimeoutSeconds)
	}
	if cfg.MaxDeliveryAttempts != 3 {
		t.Fatalf("expected default attempt bound 3, got %d", cfg.MaxDeliveryAttempts)
	}
	if cfg.RedisRateLimitPrefix == "" {
		t.Fatal("expected a default rate limit prefix")
	}
}

func TestLoadConfig_InvalidNumbersFallBack(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("SEND_TIMEOUT_SECONDS", "-5")
	t.Setenv("MAX_DELIVERY_ATTEMPTS", "0")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.SendTimeoutSeconds != 10 {
		t.Fatalf("expected invalid send timeout to fall back to 10, got %d", cfg.SendTimeoutSeconds)
	}
	if cfg.MaxDeliveryAttempts != 3 {
		t.Fatalf("expected invalid attempt bound to fall back to 3, got %d", cfg.MaxDeliveryAttempts)
	}
}

func TestAdminEmailList(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{input: "", want: nil},
		{input: "ops@example.com", want: []string{"ops@example.com"}},
		{input: "a@example.com, b@example.com ,, ", want: []string{"a@example.com", "b@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cfg := Config{AdminEmails: tt.input}
			if got := cfg.AdminEmailList(); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
