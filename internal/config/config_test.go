package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir()) // no config.yaml here
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "")
	t.Setenv("ADDR", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.WarningRatio != 0.8 || cfg.RetentionDays != 90 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.SweepInterval.Std() != 60*time.Second {
		t.Fatalf("sweep interval default = %v", cfg.SweepInterval.Std())
	}
	if !cfg.Migrate || cfg.MigrationsDir != "db/migrations" {
		t.Fatalf("migration defaults: %+v", cfg)
	}
}

func TestLoadFileWithEnvOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seaguard.yaml")
	body := `
addr: ":9000"
warningRatio: 0.9
sweepInterval: 45s
retentionDays: 30
kafkaBrokers: [broker-a:9092, broker-b:9092]
gisSources:
  - name: isa-contracts
    kind: arcgis
    url: https://gis.example/FeatureServer/0
    zoneType: restricted
    maxDurationMinutes: 120
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9100")
	t.Setenv("RETENTION_DAYS", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9100" {
		t.Fatalf("env PORT should win over file addr, got %s", cfg.Addr)
	}
	if cfg.WarningRatio != 0.9 {
		t.Fatalf("warningRatio = %v", cfg.WarningRatio)
	}
	if cfg.SweepInterval.Std() != 45*time.Second {
		t.Fatalf("sweepInterval = %v", cfg.SweepInterval.Std())
	}
	if cfg.RetentionDays != 7 {
		t.Fatalf("env RETENTION_DAYS should win, got %d", cfg.RetentionDays)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[0] != "broker-a:9092" {
		t.Fatalf("kafkaBrokers = %v", cfg.KafkaBrokers)
	}
	if len(cfg.GISSources) != 1 || cfg.GISSources[0].Kind != "arcgis" || cfg.GISSources[0].MaxDurationMinutes != 120 {
		t.Fatalf("gisSources = %+v", cfg.GISSources)
	}
}

func TestLoadMissingRequiredFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing CONFIG_FILE")
	}
}

func TestLoadRejectsBadRatio(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("WARNING_RATIO", "1.5")
	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for ratio >= 1")
	}
}

func TestLoadRejectsBadGISSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	body := "gisSources:\n  - name: broken\n    kind: arcgis\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	if _, err := Load(); err == nil {
		t.Fatal("expected error for arcgis source without url")
	}
}

func TestGetenvHelpers(t *testing.T) {
	t.Setenv("CFG_STR", "x")
	t.Setenv("CFG_INT", "12")
	t.Setenv("CFG_BAD_INT", "twelve")
	t.Setenv("CFG_DUR", "90s")
	t.Setenv("CFG_BOOL", "false")

	if getenv("CFG_STR", "d") != "x" || getenv("CFG_NONE", "d") != "d" {
		t.Fatal("getenv")
	}
	if getenvInt("CFG_INT", 1) != 12 || getenvInt("CFG_BAD_INT", 1) != 1 {
		t.Fatal("getenvInt")
	}
	if getenvDuration("CFG_DUR", time.Second) != 90*time.Second {
		t.Fatal("getenvDuration")
	}
	if getenvBool("CFG_BOOL", true) {
		t.Fatal("getenvBool")
	}
	if got := splitList(" a:1 , ,b:2 "); len(got) != 2 || got[0] != "a:1" || got[1] != "b:2" {
		t.Fatalf("splitList = %v", got)
	}
}
