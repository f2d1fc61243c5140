// Package provision prepares a GPU host for the inference server backing the
// knowledge base: it downloads a quantized model, launches an
// OpenAI-compatible llama server, and waits for it to become ready.
package provision

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/callact/kbmigrate/utils"
)

var (
	// ErrModelMissing means no file matched the quantization pattern after
	// the download step. The server must not be started in this state.
	ErrModelMissing = errors.New("no model file matches the quantization pattern")

	// ErrReadyTimeout means the inference server never answered the
	// readiness probe within the configured window.
	ErrReadyTimeout = errors.New("inference server readiness timed out")

	// ErrModelPathUnset means launch was requested without an explicit
	// model path. The source script launched with an unset variable here;
	// that is surfaced as required configuration instead.
	ErrModelPathUnset = errors.New("model_path is not set")
)

// Duration wraps time.Duration so YAML configs can spell values as "2s" or
// "10m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %v", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the explicit provisioning configuration. Every knob the source
// script hard-coded or left implicit is a recognized option here.
type Config struct {
	ModelRepo    string   `yaml:"model_repo"`
	QuantPattern string   `yaml:"quant_pattern"`
	ModelDir     string   `yaml:"model_dir"`
	ModelPath    string   `yaml:"model_path"`
	Host         string   `yaml:"host"`
	Port         int      `yaml:"port"`
	APIKey       string   `yaml:"api_key"`
	GPULayers    int      `yaml:"gpu_layers"`
	ContextSize  int      `yaml:"context_size"`
	ReadyTimeout Duration `yaml:"ready_timeout"`
	PollInterval Duration `yaml:"poll_interval"`
}

// DefaultConfig mirrors the source script's fixed values, made overridable.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		QuantPattern: "*Q4_K_M*.gguf",
		ModelDir:     filepath.Join(home, "models"),
		Host:         "0.0.0.0",
		Port:         8000,
		GPULayers:    99,
		ContextSize:  4096,
		ReadyTimeout: Duration(10 * time.Minute),
		PollInterval: Duration(2 * time.Second),
	}
}

// LoadConfig reads a YAML config file over the defaults and applies
// environment overrides for the secrets.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read provision config %s: %v", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse provision config %s: %v", path, err)
		}
	}

	cfg.APIKey = utils.GetEnvDefault("PROVISION_API_KEY", cfg.APIKey)
	return cfg, nil
}

// Validate checks that a download-and-launch run is fully specified.
func (c Config) Validate() error {
	if c.ModelRepo == "" && c.ModelPath == "" {
		return fmt.Errorf("either model_repo or model_path must be set")
	}
	if c.QuantPattern == "" && c.ModelPath == "" {
		return fmt.Errorf("quant_pattern must be set when model_path is not")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.APIKey == "" {
		return fmt.Errorf("api_key must be set (config or PROVISION_API_KEY)")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	return nil
}

// BaseURL is the server's HTTP root as seen from the provisioning host.
func (c Config) BaseURL() string {
	host := c.Host
	if host == "0.0.0.0" || host == "" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, c.Port)
}

// DownloadModel fetches the quantized artifacts from the model repository
// into the model directory.
func DownloadModel(ctx context.Context, cfg Config) error {
	cmd := exec.CommandContext(ctx, "huggingface-cli", "download", cfg.ModelRepo,
		"--include", cfg.QuantPattern,
		"--local-dir", cfg.ModelDir)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	fmt.Printf("⬇️  Downloading %s (%s) to %s...\n", cfg.ModelRepo, cfg.QuantPattern, cfg.ModelDir)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("download model %s: %v", cfg.ModelRepo, err)
	}
	return nil
}

// FindModel locates the downloaded quantized model file. Returns
// ErrModelMissing when nothing matches.
func FindModel(modelDir, quantPattern string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(modelDir, quantPattern))
	if err != nil {
		return "", fmt.Errorf("match quantization pattern %q: %v", quantPattern, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %s in %s", ErrModelMissing, quantPattern, modelDir)
	}
	return matches[0], nil
}

// ServerArgs builds the llama-server argument list from the configuration.
func ServerArgs(cfg Config) []string {
	return []string{
		"--model", cfg.ModelPath,
		"--host", cfg.Host,
		"--port", strconv.Itoa(cfg.Port),
		"--api-key", cfg.APIKey,
		"--n-gpu-layers", strconv.Itoa(cfg.GPULayers),
		"--ctx-size", strconv.Itoa(cfg.ContextSize),
	}
}

// LaunchServer starts the inference server process. The model path must be
// explicit; launching with an empty path is refused.
func LaunchServer(ctx context.Context, cfg Config) (*exec.Cmd, error) {
	if cfg.ModelPath == "" {
		return nil, ErrModelPathUnset
	}

	cmd := exec.CommandContext(ctx, "llama-server", ServerArgs(cfg)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	fmt.Printf("🚀 Launching inference server on %s:%d (model %s)...\n", cfg.Host, cfg.Port, cfg.ModelPath)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launch inference server: %v", err)
	}
	return cmd, nil
}

// WaitReady polls GET /v1/models every interval until the server answers or
// the timeout elapses. Any HTTP response counts as ready; the probe only
// establishes that the server is accepting requests.
func WaitReady(ctx context.Context, baseURL, apiKey string, timeout, interval time.Duration) error {
	client := &http.Client{Timeout: interval}
	deadline := time.Now().Add(timeout)

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/models", nil)
		if err != nil {
			return fmt.Errorf("build readiness request: %v", err)
		}
		if apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		}

		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			fmt.Println("✅ Inference server is ready.")
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w after %v", ErrReadyTimeout, timeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Run performs the full provisioning flow: download, locate the artifact,
// launch the server, wait for readiness, then block on the server process.
func Run(ctx context.Context, cfg Config, skipDownload bool) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid provision config: %v", err)
	}

	if !skipDownload && cfg.ModelPath == "" {
		if err := DownloadModel(ctx, cfg); err != nil {
			return err
		}
	}

	if cfg.ModelPath == "" {
		path, err := FindModel(cfg.ModelDir, cfg.QuantPattern)
		if err != nil {
			return err
		}
		cfg.ModelPath = path
		fmt.Printf("📦 Found model file: %s\n", path)
	}

	cmd, err := LaunchServer(ctx, cfg)
	if err != nil {
		return err
	}

	if err := WaitReady(ctx, cfg.BaseURL(), cfg.APIKey, time.Duration(cfg.ReadyTimeout), time.Duration(cfg.PollInterval)); err != nil {
		_ = cmd.Process.Kill()
		return err
	}

	// Server runs until it exits or the context is cancelled.
	return cmd.Wait()
}
