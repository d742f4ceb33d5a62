package config

import (
	"path/filepath"
	"strings"
	"testing"
)

func validConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Port:           "8081",
		SQLiteDBPath:   filepath.Join(t.TempDir(), "test.db"),
		SessionSecret:  strings.Repeat("s", 32),
		SessionName:    "fintrack_session",
		BcryptCost:     0,
		CategoryPolicy: "shared",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errorString string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:   "locked category policy is valid",
			mutate: func(c *Config) { c.CategoryPolicy = "locked" },
		},
		{
			name:   "explicit bcrypt cost is valid",
			mutate: func(c *Config) { c.BcryptCost = 12 },
		},
		{
			name:        "invalid port - non-numeric",
			mutate:      func(c *Config) { c.Port = "abc" },
			wantErr:     true,
			errorString: `invalid port "abc": must be a number`,
		},
		{
			name:        "invalid port - out of range",
			mutate:      func(c *Config) { c.Port = "70000" },
			wantErr:     true,
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "missing session secret",
			mutate:      func(c *Config) { c.SessionSecret = "" },
			wantErr:     true,
			errorString: "SESSION_SECRET must be set",
		},
		{
			name:        "short session secret",
			mutate:      func(c *Config) { c.SessionSecret = "too short" },
			wantErr:     true,
			errorString: "SESSION_SECRET must be at least 32 bytes",
		},
		{
			name:        "missing database path",
			mutate:      func(c *Config) { c.SQLiteDBPath = "" },
			wantErr:     true,
			errorString: "SQLite database path cannot be empty",
		},
		{
			name:        "invalid bcrypt cost",
			mutate:      func(c *Config) { c.BcryptCost = 2 },
			wantErr:     true,
			errorString: "invalid bcrypt cost 2: must be between 4 and 31",
		},
		{
			name:        "invalid category policy",
			mutate:      func(c *Config) { c.CategoryPolicy = "private" },
			wantErr:     true,
			errorString: `invalid category policy "private": must be one of [shared locked]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Config.Validate() error = nil, wantErr %v", tt.wantErr)
				}
				if tt.errorString != "" && !strings.Contains(err.Error(), tt.errorString) {
					t.Errorf("Config.Validate() error = %v, want error containing %v", err.Error(), tt.errorString)
				}
			} else if err != nil {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig(t)
	cfg.Port = "abc"
	cfg.SessionSecret = ""
	cfg.CategoryPolicy = "private"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Config.Validate() error = nil, want errors")
	}
	for _, want := range []string{"invalid port", "SESSION_SECRET", "category policy"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Config.Validate() error = %v, want error containing %q", err, want)
		}
	}
}

func TestConfig_ValidateCreatesDatabaseDir(t *testing.T) {
	cfg := validConfig(t)
	cfg.SQLiteDBPath = filepath.Join(t.TempDir(), "nested", "dir", "test.db")

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Config.Validate() error = %v", err)
	}
}
