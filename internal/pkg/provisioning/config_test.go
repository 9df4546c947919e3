package provisioning

import (
	"testing"

	"github.com/roamsim/esim-reconciler/internal/pkg/env"
)

func TestLoadConfig(t *testing.T) {
	env.Env = map[string]string{
		"MAYA_API_KEY":     "key",
		"MAYA_API_SECRET":  "secret",
		"MAYA_ESIM_API":    "https://api.example.com/esim",
		"MAYA_PRODUCT_API": "https://api.example.com/products/",
	}
	t.Cleanup(func() { env.Env = nil })

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.APIKey != "key" || cfg.EsimAPI != "https://api.example.com/esim" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadConfigMissingSecret(t *testing.T) {
	env.Env = map[string]string{
		"MAYA_API_KEY":     "key",
		"MAYA_ESIM_API":    "https://api.example.com/esim",
		"MAYA_PRODUCT_API": "https://api.example.com/products/",
	}
	t.Cleanup(func() { env.Env = nil })

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for missing MAYA_API_SECRET")
	}
}

func TestLoadConfigInvalidURL(t *testing.T) {
	env.Env = map[string]string{
		"MAYA_API_KEY":     "key",
		"MAYA_API_SECRET":  "secret",
		"MAYA_ESIM_API":    "not a url",
		"MAYA_PRODUCT_API": "https://api.example.com/products/",
	}
	t.Cleanup(func() { env.Env = nil })

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for invalid MAYA_ESIM_API")
	}
}
