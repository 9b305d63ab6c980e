// ABOUTME: Entry point for the muse-gateway assistant server
// ABOUTME: Wires storage, memory tiers, generation, and the gateway surfaces

package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/2389/muse-gateway/internal/assembler"
	"github.com/2389/muse-gateway/internal/auth"
	"github.com/2389/muse-gateway/internal/config"
	"github.com/2389/muse-gateway/internal/conversation"
	"github.com/2389/muse-gateway/internal/gateway"
	"github.com/2389/muse-gateway/internal/generate"
	"github.com/2389/muse-gateway/internal/memory"
	"github.com/2389/muse-gateway/internal/pipeline"
	"github.com/2389/muse-gateway/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                                             _
 _ __ ___  _   _ ___  ___         __ _  __ _| |_ _____      ____ _ _   _
| '_ ' _ \| | | / __|/ _ \ _____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
| | | | | | |_| \__ \  __/|_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
|_| |_| |_|\__,_|___/\___|       \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
                                 |___/                             |___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: MUSE_CONFIG env var > XDG_CONFIG_HOME/muse/gateway.yaml > ~/.config/muse/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("MUSE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "muse", "gateway.yaml")
}

func main() {
	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println("Usage: muse-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve   Start the gateway server")
		fmt.Println("  init    Create a starter config file")
		fmt.Println("  health  Check gateway health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Generator: %s\n", cfg.Generation.Provider)
	fmt.Println()

	logger.Info("starting muse-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"provider", cfg.Generation.Provider,
	)

	// Resource handles are constructed here and injected; nothing below
	// reaches for process-wide state.
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	cache := memory.NewCache()
	defer cache.Close()
	tiers := memory.NewTiers(cache, st, logger)

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	timeout := cfg.Generation.Timeout
	if timeout <= 0 {
		timeout = pipeline.DefaultTimeout
	}

	asm := assembler.New(st, tiers, logger)
	pipe := pipeline.New(provider, timeout, logger)
	updater := memory.NewUpdater(tiers, logger)
	orch := conversation.New(st, asm, pipe, updater, logger)

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	gw := gateway.New(cfg, st, verifier, orch, logger)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return gw.Start(ctx)
	})
	return group.Wait()
}

func buildProvider(cfg *config.Config) (generate.Provider, error) {
	switch cfg.Generation.Provider {
	case "local":
		return generate.NewLocalProvider(), nil
	case "openai":
		return generate.NewOpenAI(generate.OpenAIConfig{
			APIKey:  cfg.Generation.OpenAI.APIKey,
			BaseURL: cfg.Generation.OpenAI.BaseURL,
			Model:   cfg.Generation.OpenAI.Model,
			Timeout: cfg.Generation.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Generation.Provider)
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

// runInit writes a starter config with a fresh JWT secret. It refuses to
// overwrite an existing file.
func runInit() error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists at %s", configPath)
	}

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}
	jwtSecret := base64.StdEncoding.EncodeToString(secretBytes)

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	content := fmt.Sprintf(`server:
  http_addr: "127.0.0.1:8080"

database:
  path: "muse.db"

auth:
  jwt_secret: "%s"
  token_lifetime: "720h"

generation:
  provider: "local"
  timeout: "30s"

logging:
  level: "info"
  format: "text"
`, jwtSecret)

	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Print("    ✓ ")
	fmt.Printf("Config written to %s\n", configPath)
	return nil
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/healthz", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}
