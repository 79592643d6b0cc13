package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New())
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	want := Config{
		Database:         DefaultDatabase,
		Project:          DefaultProject,
		MaxAncestryDepth: DefaultMaxAncestryDepth,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CHRONOS_DB", "/tmp/world.db")
	t.Setenv("CHRONOS_PROJECT", "atlas")
	t.Setenv("CHRONOS_MAX_ANCESTRY_DEPTH", "8")

	v := viper.New()
	v.SetEnvPrefix("CHRONOS")
	v.AutomaticEnv()
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	want := Config{
		Database:         "/tmp/world.db",
		Project:          "atlas",
		MaxAncestryDepth: 8,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".chronos.yaml")
	content := "db: worlds/atlas.db\nproject: atlas\nverbose: true\nresolve_concurrency: 2\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatal("ReadInConfig failed:", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	want := Config{
		Database:           "worlds/atlas.db",
		Project:            "atlas",
		Verbose:            true,
		MaxAncestryDepth:   DefaultMaxAncestryDepth,
		ResolveConcurrency: 2,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr []string
	}{
		{
			name: "Valid",
			cfg:  Config{Database: "a.db", Project: "p", MaxAncestryDepth: 1},
		},
		{
			name:    "Empty",
			cfg:     Config{ResolveConcurrency: -1},
			wantErr: []string{"db:", "project:", "max_ancestry_depth:", "resolve_concurrency:"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			for _, want := range tt.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("Validate() = %q, want mention of %q", err, want)
				}
			}
		})
	}
}
