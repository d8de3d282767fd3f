package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

type testConfig struct {
	Server ServerConfig `yaml:"server"`
	DB     DBConfig     `yaml:"db"`
	JWT    JWTConfig    `yaml:"jwt"`
}

func TestLoad_EnvOverridesBase(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
server:
  port: ":8080"
db:
  host: localhost
  port: 5432
  name: buildtrack
`)
	writeFile(t, dir, "production.yaml", `
db:
  host: db.internal
`)

	var cfg testConfig
	if err := Load("production", dir, &cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DB.Host != "db.internal" {
		t.Errorf("expected host=db.internal, got=%s", cfg.DB.Host)
	}
	if cfg.DB.Port != 5432 {
		t.Errorf("expected base port to survive merge, got=%d", cfg.DB.Port)
	}
	if cfg.DB.Name != "buildtrack" {
		t.Errorf("expected name=buildtrack, got=%s", cfg.DB.Name)
	}
	if cfg.Server.Port != ":8080" {
		t.Errorf("expected port=:8080, got=%s", cfg.Server.Port)
	}
}

func TestLoad_SecretsSubstitution(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
jwt:
  secret: "${JWT_SECRET}"
`)
	writeFile(t, dir, "secrets.env", `
# comment
JWT_SECRET="s3cr3t"
`)

	var cfg testConfig
	if err := Load("local", dir, &cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.JWT.Secret != "s3cr3t" {
		t.Errorf("expected secret to be substituted, got=%q", cfg.JWT.Secret)
	}
}

func TestLoad_PlaceholderFallsBackToProcessEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
jwt:
  secret: "${JWT_SECRET}"
server:
  port: "${UNSET_PORT_PLACEHOLDER}"
`)

	var cfg testConfig
	if err := Load("local", dir, &cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.JWT.Secret != "from-env" {
		t.Errorf("expected process env fallback, got=%q", cfg.JWT.Secret)
	}
	if cfg.Server.Port != "${UNSET_PORT_PLACEHOLDER}" {
		t.Errorf("unresolved placeholder should be kept, got=%q", cfg.Server.Port)
	}
}

func TestLoad_MissingBase(t *testing.T) {
	var cfg testConfig
	if err := Load("local", t.TempDir(), &cfg); err == nil {
		t.Fatal("expected error when base.yaml is missing")
	}
}

func TestOverrideDBFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "pg")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_PORT_IGNORED", "x")

	cfg := DBConfig{Host: "localhost", Port: 5432}
	OverrideDBFromEnv(&cfg)

	if cfg.Host != "pg" || cfg.Port != 6543 {
		t.Errorf("unexpected db config after override: %+v", cfg)
	}
}
