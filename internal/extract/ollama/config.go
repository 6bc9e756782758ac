package ollama

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/parcelworks/entryagent/internal/extract"
)

// Config for the Ollama native-API client.
type Config struct {
	BaseURL     string        // if empty, falls back to env OLLAMA_NATIVE_API
	Model       string        // e.g., "gemma3:12b"
	Temperature float64       // 0..1
	Timeout     time.Duration // per-call timeout; vision inference takes minutes
}

type Client struct {
	cfg      Config
	http     *http.Client
	renderer extract.PageRenderer
	logger   *slog.Logger
}

func NewClient(cfg Config, renderer extract.PageRenderer, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("OLLAMA_NATIVE_API")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434/api"
	}
	if cfg.Model == "" {
		cfg.Model = "gemma3:12b"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		renderer: renderer,
		logger:   logger,
	}
}
