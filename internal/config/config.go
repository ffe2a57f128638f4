// Package config loads the application configuration from YAML, falling
// back to sensible defaults when no file exists.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// CorpusConfig names the directories holding meeting text.
type CorpusConfig struct {
	TranscriptsDir string `yaml:"transcripts_dir"`
	SummariesDir   string `yaml:"summaries_dir"`
}

// ChunkerConfig configures how documents are split before embedding.
type ChunkerConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// OllamaConfig holds connection details for a local Ollama server.
type OllamaConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// OpenAIConfig holds connection details for the OpenAI embeddings API.
type OpenAIConfig struct {
	BaseURL     string `yaml:"base_url,omitempty"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the embedding provider.
type EmbedderConfig struct {
	Type     string        `yaml:"type"` // "ollama" or "openai"
	CacheDir string        `yaml:"cache_dir,omitempty"`
	Ollama   *OllamaConfig `yaml:"ollama,omitempty"`
	OpenAI   *OpenAIConfig `yaml:"openai,omitempty"`
}

// IndexConfig configures the build pipeline and the artifact location.
type IndexConfig struct {
	Dir       string `yaml:"dir"`
	BatchSize int    `yaml:"batch_size"`
	Workers   int    `yaml:"workers"`
	Retries   int    `yaml:"retries"`
	Lenient   bool   `yaml:"lenient"`
}

// SearchConfig configures query answering.
type SearchConfig struct {
	DefaultK int `yaml:"default_k"`
}

// ServerConfig configures the HTTP search endpoint.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// AppConfig is the root configuration structure.
type AppConfig struct {
	Corpus   CorpusConfig   `yaml:"corpus"`
	Chunker  ChunkerConfig  `yaml:"chunker"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Index    IndexConfig    `yaml:"index"`
	Search   SearchConfig   `yaml:"search"`
	Server   ServerConfig   `yaml:"server"`
}

// Load reads a config from path. A missing file returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./meetindex.yaml first, then the per-user config path.
// If neither exists, defaults are written to the per-user path so the file
// is there to edit next time.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "meetindex.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "meetindex", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Corpus: CorpusConfig{
			TranscriptsDir: "transcripts",
			SummariesDir:   "summaries",
		},
		Chunker: ChunkerConfig{Size: 1000, Overlap: 200},
		Embedder: EmbedderConfig{
			Type: "ollama",
			Ollama: &OllamaConfig{
				BaseURL:     "http://localhost:11434",
				Model:       "nomic-embed-text",
				TimeoutSecs: 120,
			},
		},
		Index:  IndexConfig{Dir: "index"},
		Search: SearchConfig{DefaultK: 5},
		Server: ServerConfig{Addr: ":8080"},
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 1000
	}
	if cfg.Chunker.Overlap == 0 && cfg.Chunker.Size > 200 {
		cfg.Chunker.Overlap = 200
	}
	if cfg.Index.Dir == "" {
		cfg.Index.Dir = "index"
	}
	if cfg.Index.BatchSize == 0 {
		cfg.Index.BatchSize = 32
	}
	if cfg.Index.Retries == 0 {
		cfg.Index.Retries = 3
	}
	if cfg.Search.DefaultK == 0 {
		cfg.Search.DefaultK = 5
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "ollama"
	}
	if cfg.Embedder.Type == "ollama" {
		if cfg.Embedder.Ollama == nil {
			cfg.Embedder.Ollama = &OllamaConfig{}
		}
		if cfg.Embedder.Ollama.BaseURL == "" {
			cfg.Embedder.Ollama.BaseURL = "http://localhost:11434"
		}
		if cfg.Embedder.Ollama.Model == "" {
			cfg.Embedder.Ollama.Model = "nomic-embed-text"
		}
		if cfg.Embedder.Ollama.TimeoutSecs == 0 {
			cfg.Embedder.Ollama.TimeoutSecs = 120
		}
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIConfig{}
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}
}
