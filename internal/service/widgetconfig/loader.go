package widgetconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/chat-widget/backend/internal/model/widget"
)

const (
	defaultFetchTimeout = 10 * time.Second
	maxDocumentBytes    = 1 << 20
)

// State is the lifecycle stage of the configuration load.
type State string

const (
	StatePending State = "pending"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

// Status reports the outcome of the configuration load.
type Status struct {
	State    State      `json:"state"`
	Source   string     `json:"source"`
	Error    string     `json:"error,omitempty"`
	LoadedAt *time.Time `json:"loadedAt,omitempty"`
}

// Loader fetches, validates and holds the widget configuration.
type Loader struct {
	source     string
	httpClient *http.Client

	mu     sync.RWMutex
	cfg    *widget.Config
	status Status
}

// Option customises a Loader.
type Option func(*Loader)

// WithHTTPClient replaces the client used for http(s) sources.
func WithHTTPClient(client *http.Client) Option {
	return func(l *Loader) {
		l.httpClient = client
	}
}

// WithFetchTimeout bounds a single fetch of an http(s) source.
func WithFetchTimeout(timeout time.Duration) Option {
	return func(l *Loader) {
		if timeout > 0 {
			l.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// NewLoader creates a loader for a file path or http(s) URL.
func NewLoader(source string, opts ...Option) *Loader {
	l := &Loader{
		source:     source,
		httpClient: &http.Client{Timeout: defaultFetchTimeout},
		status:     Status{State: StatePending, Source: source},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start loads the configuration once. Failures are logged and recorded in
// Status; the caller keeps running with the widget disabled.
func (l *Loader) Start(ctx context.Context) {
	cfg, err := l.Load(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err != nil {
		l.status = Status{State: StateFailed, Source: l.source, Error: err.Error()}
		log.Error().Err(err).Str("source", l.source).Msg("widget configuration unavailable, widget disabled")
		return
	}

	loadedAt := time.Now().UTC()
	l.cfg = cfg
	l.status = Status{State: StateReady, Source: l.source, LoadedAt: &loadedAt}
	log.Info().
		Str("source", l.source).
		Str("widget", cfg.Name).
		Int("suggestions", len(cfg.Suggestions())).
		Msg("widget configuration loaded")
}

// Load fetches, parses and validates the configuration without publishing it.
func (l *Loader) Load(ctx context.Context) (*widget.Config, error) {
	raw, err := l.fetch(ctx)
	if err != nil {
		return nil, err
	}
	return Parse(raw, isYAML(l.source))
}

// Current returns the loaded configuration once it is ready.
func (l *Loader) Current() (*widget.Config, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg, l.cfg != nil
}

// Status returns the latest load status.
func (l *Loader) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status
}

// Parse decodes and validates a configuration document. Required fields are
// checked before the document is mapped onto widget.Config.
func Parse(raw []byte, asYAML bool) (*widget.Config, error) {
	var doc map[string]any
	var err error
	if asYAML {
		err = yaml.Unmarshal(raw, &doc)
	} else {
		err = json.Unmarshal(raw, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("parse widget configuration: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("parse widget configuration: document is empty")
	}

	if err := widget.ValidateRequired(doc); err != nil {
		return nil, err
	}

	var cfg widget.Config
	if asYAML {
		err = yaml.Unmarshal(raw, &cfg)
	} else {
		err = json.Unmarshal(raw, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("decode widget configuration: %w", err)
	}

	if err := cfg.BuildSuggestions(); err != nil {
		return nil, fmt.Errorf("%w (%d suggestions, %d responses)", err, len(cfg.SuggestionPrompts), len(cfg.Responses))
	}

	return &cfg, nil
}

func (l *Loader) fetch(ctx context.Context) ([]byte, error) {
	if !isRemote(l.source) {
		raw, err := os.ReadFile(l.source)
		if err != nil {
			return nil, fmt.Errorf("read widget configuration: %w", err)
		}
		return raw, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.source, nil)
	if err != nil {
		return nil, fmt.Errorf("build configuration request: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/yaml")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch widget configuration: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch widget configuration: unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("read widget configuration body: %w", err)
	}
	return raw, nil
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func isYAML(source string) bool {
	path := source
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}
