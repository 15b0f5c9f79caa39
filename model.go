package ragblade

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flarexio/ragblade/document"
	"github.com/flarexio/ragblade/embedding"
	"github.com/flarexio/ragblade/vector"
)

var (
	ErrInvalidConfig        = errors.New("invalid config")
	ErrNoDocuments          = errors.New("no documents to ingest")
	ErrNoChunks             = errors.New("documents produced no chunks")
	ErrEmptyQuery           = errors.New("query must not be empty")
	ErrRetrievalUnavailable = errors.New("index unavailable, run ingestion first")
)

const (
	DefaultIndexLocation = "policy_index"
	DefaultLimit         = 10
	DefaultDebounce      = 2 * time.Second
)

type Config struct {
	Index     vector.Config    `yaml:"index"`
	Chunker   ChunkerConfig    `yaml:"chunker"`
	Embedder  embedding.Config `yaml:"embedder"`
	Retriever RetrieverConfig  `yaml:"retriever"`
	Ingest    IngestConfig     `yaml:"ingest"`
}

type ChunkerConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

type RetrieverConfig struct {
	DefaultLimit int `yaml:"defaultLimit"`
}

type IngestConfig struct {
	Paths    []string `yaml:"paths"`
	Watch    bool     `yaml:"watch"`
	Debounce Duration `yaml:"debounce"`
}

// DefaultConfig mirrors the behaviour of the policy assistant out of the
// box: the two policy documents, 1000/100 character chunks and a local
// flat index.
func DefaultConfig() Config {
	return Config{
		Index: vector.Config{
			Backend:  vector.BackendFlat,
			Location: DefaultIndexLocation,
			Metric:   vector.Cosine,
			Compress: true,
		},
		Chunker: ChunkerConfig{
			Size:    document.DefaultChunkSize,
			Overlap: document.DefaultChunkOverlap,
		},
		Embedder: embedding.Config{
			Provider:  embedding.ProviderOpenAI,
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			Timeout:   60 * time.Second,
		},
		Retriever: RetrieverConfig{
			DefaultLimit: DefaultLimit,
		},
		Ingest: IngestConfig{
			Paths: []string{
				"docs/it_policy.txt",
				"docs/hr_policy.txt",
			},
			Debounce: Duration(DefaultDebounce),
		},
	}
}

func (cfg Config) Validate() error {
	if _, err := document.NewSplitter(cfg.Chunker.Size, cfg.Chunker.Overlap); err != nil {
		return fmt.Errorf("%w: chunker: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Index.Validate(); err != nil {
		return fmt.Errorf("%w: index: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Embedder.Validate(); err != nil {
		return fmt.Errorf("%w: embedder: %w", ErrInvalidConfig, err)
	}

	if cfg.Retriever.DefaultLimit <= 0 {
		return fmt.Errorf("%w: retriever default limit must be positive, got %d", ErrInvalidConfig, cfg.Retriever.DefaultLimit)
	}

	return nil
}

// Resolve makes the index location and ingest paths absolute relative to
// dir, the directory holding the config file. Qdrant locations are names,
// not paths, and are left alone.
func (cfg *Config) Resolve(dir string) {
	if cfg.Index.Backend != vector.BackendQdrant && !filepath.IsAbs(cfg.Index.Location) {
		cfg.Index.Location = filepath.Join(dir, cfg.Index.Location)
	}

	for i, path := range cfg.Ingest.Paths {
		if !filepath.IsAbs(path) {
			cfg.Ingest.Paths[i] = filepath.Join(dir, path)
		}
	}
}

type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	str := d.Duration().String()
	return json.Marshal(str)
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	duration, err := time.ParseDuration(str)
	if err != nil {
		return err
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration().String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}

	duration, err := time.ParseDuration(str)
	if err != nil {
		return err
	}

	*d = Duration(duration)
	return nil
}

// Passage is a retrieved chunk as handed to callers: no vector, no distance.
type Passage struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Page   int    `json:"page,omitempty"`
}

// Answer is the structured reply an agent produces after consulting the
// search tool.
type Answer struct {
	Response string   `json:"response"`
	Source   []string `json:"source"`
}

type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}
