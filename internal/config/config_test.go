package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/efreitasn/bilateralexchange/internal/domain"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnvKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.StoreBackend != "memory" {
		t.Errorf("StoreBackend = %q, want memory", cfg.StoreBackend)
	}
	if cfg.DataDir != "data" {
		t.Errorf("DataDir = %q, want data", cfg.DataDir)
	}
	if cfg.ContractAddress == "" || cfg.AdminAddress == "" {
		t.Errorf("contract = %q, admin = %q, want defaults", cfg.ContractAddress, cfg.AdminAddress)
	}
	if len(cfg.AskFee) != 0 || len(cfg.BidFee) != 0 {
		t.Errorf("fees = %s / %s, want none", cfg.AskFee, cfg.BidFee)
	}
	if cfg.RegistrySeedFile != "" {
		t.Errorf("RegistrySeedFile = %q, want empty", cfg.RegistrySeedFile)
	}
	if cfg.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v, want 5s", cfg.ReadTimeout)
	}
	if cfg.WriteTimeout != 10*time.Second {
		t.Errorf("WriteTimeout = %v, want 10s", cfg.WriteTimeout)
	}
	if cfg.IdleTimeout != 60*time.Second {
		t.Errorf("IdleTimeout = %v, want 60s", cfg.IdleTimeout)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", cfg.ShutdownTimeout)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORE_BACKEND", "pebble")
	t.Setenv("DATA_DIR", "/var/lib/exchange")
	t.Setenv("CONTRACT_ADDRESS", "tp1contract")
	t.Setenv("ADMIN_ADDRESS", "tp1admin")
	t.Setenv("ASK_FEE", "10nhash")
	t.Setenv("BID_FEE", "5nhash,1usd")
	t.Setenv("REGISTRY_SEED_FILE", "seed.json")
	t.Setenv("SHUTDOWN_TIMEOUT", "15s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.StoreBackend != "pebble" || cfg.DataDir != "/var/lib/exchange" {
		t.Errorf("store = %q at %q", cfg.StoreBackend, cfg.DataDir)
	}
	s := cfg.Settings()
	if s.Admin != "tp1admin" || s.ContractAddress != "tp1contract" {
		t.Errorf("settings = %+v", s)
	}
	if !s.AskFee.Equal(domain.Coins{{Denom: "nhash", Amount: 10}}) {
		t.Errorf("AskFee = %s, want 10nhash", s.AskFee)
	}
	if !s.BidFee.Equal(domain.Coins{{Denom: "nhash", Amount: 5}, {Denom: "usd", Amount: 1}}) {
		t.Errorf("BidFee = %s, want 5nhash,1usd", s.BidFee)
	}
	if cfg.RegistrySeedFile != "seed.json" {
		t.Errorf("RegistrySeedFile = %q, want seed.json", cfg.RegistrySeedFile)
	}
	if cfg.ShutdownTimeout != 15*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 15s", cfg.ShutdownTimeout)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PORT", "abc"},
		{"LOG_LEVEL", "verbose"},
		{"STORE_BACKEND", "postgres"},
		{"ASK_FEE", "ten-nhash"},
		{"BID_FEE", "5"},
		{"READ_TIMEOUT", "notaduration"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("PORT=7070\nADMIN_ADDRESS=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ADMIN_ADDRESS", "from-env")
	t.Cleanup(func() { os.Unsetenv("PORT") })

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 7070 {
		t.Errorf("Port = %d, want 7070 from file", cfg.Port)
	}
	if cfg.AdminAddress != "from-env" {
		t.Errorf("AdminAddress = %q, environment should win over the file", cfg.AdminAddress)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	clearEnv(t)
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("missing env file should be ignored: %v", err)
	}
}
