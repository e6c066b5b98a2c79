package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/victorgomez09/interceptor/internal/logger"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// default configurations
const (
	DefaultForwardHost = "0.0.0.0"
	DefaultForwardPort = 3000
	DefaultReverseHost = "127.0.0.1"
	DefaultReversePort = 4000
	DefaultCAKey       = "ca.key"
	DefaultCACert      = "ca.cert"
	DefaultTimeout     = 30 * time.Second
)

// Interceptor represents the main configuration structure.
// It holds the listener settings of both hosting modes, the upstream
// settings used by the reverse mode and the ordered handler list shared by both.
type Interceptor struct {
	Forward  Forward          `yaml:"forward"`  // Transparent (MITM) proxy settings.
	Reverse  Reverse          `yaml:"reverse"`  // Explicit (reverse) proxy settings.
	Handlers []Handler        `yaml:"handlers"` // Handlers in chain order.
	Logging  *logger.Config   `yaml:"logging"`  // Optional logger configuration. Defaults to logger.DefaultConfig.
	Upstream UpstreamSettings `yaml:"upstream"` // Outbound HTTP client settings shared by both modes.
}

// Forward configures the transparent proxy listener and its certificate authority.
type Forward struct {
	Host    string `yaml:"host"`    // Listen host.
	Port    int    `yaml:"port"`    // Listen port.
	CAKey   string `yaml:"ca_key"`  // Path to the PEM encoded CA private key.
	CACert  string `yaml:"ca_cert"` // Path to the PEM encoded CA certificate.
	Verbose bool   `yaml:"verbose"` // Enables the MITM engine's own request logging.
}

// Reverse configures the explicit proxy listener and upstream selection.
type Reverse struct {
	Host     string            `yaml:"host"`     // Listen host.
	Port     int               `yaml:"port"`     // Listen port.
	Upstream string            `yaml:"upstream"` // Default upstream origin, e.g. http://localhost:8080
	Hosts    map[string]string `yaml:"hosts"`    // Exact Host header -> upstream origin overrides.
}

// UpstreamSettings configures the outbound HTTP client.
type UpstreamSettings struct {
	Timeout         time.Duration `yaml:"timeout"`           // Whole-exchange timeout. e.g. "30s"
	SkipTLSVerify   bool          `yaml:"skip_tls_verify"`   // Skip origin certificate verification.
	MaxIdlePerHost  int           `yaml:"max_idle_per_host"` // Idle connections kept per origin.
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"` // e.g. "30s"
	HTTP2           *bool         `yaml:"http2"`             // Attempt HTTP/2 to origins. Defaults to true.
}

// Handler defines the configuration of one chain handler.
// Exactly one field must be set; the field decides the handler type.
type Handler struct {
	Logging   *Logging   `yaml:"logging"`
	RequestID *RequestID `yaml:"request_id"`
	Headers   *Header    `yaml:"headers"`
	RateLimit *RateLimit `yaml:"rate_limit"`
	BasicAuth *BasicAuth `yaml:"basic_auth"`
	JWTAuth   *JWTAuth   `yaml:"jwt_auth"`
	Cache     *Cache     `yaml:"cache"`
	Capture   *Capture   `yaml:"capture"`
	Security  *Security  `yaml:"security"`
	CORS      *CORS      `yaml:"cors"`
	Compress  *Compress  `yaml:"compress"`
	Stats     *Stats     `yaml:"stats"`
}

// Logging maps to the logging handler options.
type Logging struct {
	Headers      bool     `yaml:"headers"`       // Log request headers.
	QueryParams  bool     `yaml:"query_params"`  // Log query parameters.
	ExcludePaths []string `yaml:"exclude_paths"` // Path prefixes that are not logged.
}

// RequestID configures the request id handler.
type RequestID struct {
	Header string `yaml:"header"` // Header carrying the id. Defaults to X-Request-ID.
}

// Header is custom response and request headers modifier
type Header struct {
	RequestHeaders        map[string]string `yaml:"request_headers,omitempty"`         // Request headers to be added/modified before forwarding
	ResponseHeaders       map[string]string `yaml:"response_headers,omitempty"`        // Response headers to be added/modified before sending back to client
	RemoveRequestHeaders  []string          `yaml:"remove_request_headers,omitempty"`  // Headers to be removed from the request before forwarding
	RemoveResponseHeaders []string          `yaml:"remove_response_headers,omitempty"` // Headers to be removed from the response before sending back
}

// RateLimit defines the configuration for the rate limiting handler.
type RateLimit struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"` // Number of allowed requests per second.
	Burst             int     `yaml:"burst"`               // Maximum number of burst requests allowed.
}

// BasicAuth configures credential checks against bcrypt hashes.
type BasicAuth struct {
	Realm string            `yaml:"realm"` // Realm advertised in the challenge.
	Proxy bool              `yaml:"proxy"` // Use Proxy-Authorization and 407 instead of Authorization and 401.
	Users map[string]string `yaml:"users"` // username -> bcrypt hash
}

// JWTAuth configures bearer token verification.
type JWTAuth struct {
	Secret string `yaml:"secret"` // HMAC secret.
	Header string `yaml:"header"` // Defaults to Authorization.
}

// Cache configures the response cache handler.
type Cache struct {
	TTL   time.Duration `yaml:"ttl"`   // e.g. "30s"
	Redis *Redis        `yaml:"redis"` // When nil the cache lives in memory.
}

// Redis holds the connection settings of a redis server.
type Redis struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Capture configures the transaction capture handler.
type Capture struct {
	Path      string        `yaml:"path"`      // sqlite database path.
	Retention time.Duration `yaml:"retention"` // Records older than this are pruned at startup. Zero keeps everything.
}

// Security holds configuration settings for security-related HTTP headers.
type Security struct {
	HSTS                  bool   `yaml:"hsts"`                    // Enables HTTP Strict Transport Security (HSTS).
	HSTSMaxAge            int    `yaml:"hsts_max_age"`            // Duration (in seconds) for the HSTS policy.
	HSTSIncludeSubDomains bool   `yaml:"hsts_include_subdomains"` // Applies HSTS policy to all subdomains if true.
	HSTSPreload           bool   `yaml:"hsts_preload"`            // Includes the site in browsers' HSTS preload lists if true.
	FrameOptions          string `yaml:"frame_options"`           // Value for the X-Frame-Options header.
	ContentTypeOptions    bool   `yaml:"content_type_options"`    // Enables the X-Content-Type-Options header.
	HideServer            bool   `yaml:"hide_server"`             // Removes Server and X-Powered-By from responses.
}

// CORS holds the Cross-Origin Resource Sharing settings.
type CORS struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`   // Origins allowed to access the resources.
	AllowedMethods   []string `yaml:"allowed_methods"`   // HTTP methods allowed for CORS requests.
	AllowedHeaders   []string `yaml:"allowed_headers"`   // Headers allowed in CORS requests.
	ExposedHeaders   []string `yaml:"exposed_headers"`   // Headers exposed to the browser.
	AllowCredentials bool     `yaml:"allow_credentials"` // Indicates whether credentials are allowed.
	MaxAge           int      `yaml:"max_age"`           // Maximum age (in seconds) for CORS preflight responses.
}

// Compress configures gzip compression of response bodies.
type Compress struct {
	MinSize int64 `yaml:"min_size"` // Responses with a known smaller length are left alone.
}

// Stats enables the counting handler.
type Stats struct{}

var (
	ErrNoHandlerType       = errors.New("handler entry has no type")
	ErrMultipleHandlerType = errors.New("handler entry sets more than one type")
)

// DefaultHandlers is used when the configuration does not list any handler.
var DefaultHandlers = []Handler{
	{Logging: &Logging{}},
}

// Default returns a configuration with every default applied.
func Default() *Interceptor {
	cfg := &Interceptor{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the YAML file at path. An empty path yields the defaults.
func Load(path string) (*Interceptor, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Interceptor
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config in %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Interceptor) applyDefaults() {
	if cfg.Forward.Host == "" {
		cfg.Forward.Host = DefaultForwardHost
	}
	if cfg.Forward.Port == 0 {
		cfg.Forward.Port = DefaultForwardPort
	}
	if cfg.Forward.CAKey == "" {
		cfg.Forward.CAKey = DefaultCAKey
	}
	if cfg.Forward.CACert == "" {
		cfg.Forward.CACert = DefaultCACert
	}
	if cfg.Reverse.Host == "" {
		cfg.Reverse.Host = DefaultReverseHost
	}
	if cfg.Reverse.Port == 0 {
		cfg.Reverse.Port = DefaultReversePort
	}
	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = DefaultTimeout
	}
	if cfg.Handlers == nil {
		cfg.Handlers = DefaultHandlers
	}
}

// Validate checks the parts of the configuration used by the selected mode.
func (cfg *Interceptor) Validate(reverse bool, logger *zap.Logger) error {
	for i, h := range cfg.Handlers {
		if err := h.validate(); err != nil {
			return fmt.Errorf("handlers[%d]: %w", i, err)
		}
	}

	if cfg.Upstream.Timeout < 0 {
		return fmt.Errorf("upstream timeout must be positive")
	}

	if !reverse {
		if cfg.Forward.Port <= 0 || cfg.Forward.Port > 65535 {
			return fmt.Errorf("invalid forward port: %d", cfg.Forward.Port)
		}
		return nil
	}

	if cfg.Reverse.Port <= 0 || cfg.Reverse.Port > 65535 {
		return fmt.Errorf("invalid reverse port: %d", cfg.Reverse.Port)
	}
	if cfg.Reverse.Upstream == "" && len(cfg.Reverse.Hosts) == 0 {
		logger.Warn("No upstream configured. Every request that is not short-circuited will fail")
	}
	if cfg.Reverse.Upstream != "" {
		if err := validateOrigin(cfg.Reverse.Upstream); err != nil {
			return fmt.Errorf("reverse upstream: %w", err)
		}
	}
	for host, origin := range cfg.Reverse.Hosts {
		if err := validateOrigin(origin); err != nil {
			return fmt.Errorf("reverse hosts[%s]: %w", host, err)
		}
	}
	return nil
}

func (h Handler) validate() error {
	set := 0
	for _, isSet := range []bool{
		h.Logging != nil, h.RequestID != nil, h.Headers != nil, h.RateLimit != nil,
		h.BasicAuth != nil, h.JWTAuth != nil, h.Cache != nil, h.Capture != nil,
		h.Security != nil, h.CORS != nil, h.Compress != nil, h.Stats != nil,
	} {
		if isSet {
			set++
		}
	}
	switch {
	case set == 0:
		return ErrNoHandlerType
	case set > 1:
		return ErrMultipleHandlerType
	}

	if h.JWTAuth != nil && h.JWTAuth.Secret == "" {
		return fmt.Errorf("jwt_auth secret is required")
	}
	if h.Capture != nil && h.Capture.Path == "" {
		return fmt.Errorf("capture path is required")
	}
	if h.BasicAuth != nil && len(h.BasicAuth.Users) == 0 {
		return fmt.Errorf("basic_auth needs at least one user")
	}
	return nil
}

func validateOrigin(origin string) error {
	u, err := url.Parse(origin)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", origin)
	}
	return nil
}
