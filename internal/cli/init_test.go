package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"atelier/internal/config"
	"atelier/internal/core"
	"atelier/internal/log"
)

func TestSetupLoggerHonoursFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger(&config.Config{LogLevel: "warn", LogFormat: "json"}, log.ComponentWorker, &buf)

	logger.Info("hidden")
	logger.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info logged at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("expected JSON output, got %s", out)
	}
}

func TestInitRuntimeMemory(t *testing.T) {
	cfg := &config.Config{
		DataBackend:  "memory",
		CacheBackend: "memory",
		CacheTTL:     time.Minute,
		CacheSize:    16,
	}
	var buf bytes.Buffer
	rt, err := InitRuntime(context.Background(), cfg, SetupLogger(cfg, log.ComponentApp, &buf))
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	defer rt.Close()

	ctx := context.Background()
	p, err := rt.Service.CreateProject(ctx, core.Project{Name: "Villa Rosa"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if _, err := rt.Service.GetProject(ctx, p.ID); err != nil {
		t.Fatalf("get project: %v", err)
	}
	if rt.Backend.Publisher != nil {
		t.Fatal("publisher created without AMQP URL")
	}
}
