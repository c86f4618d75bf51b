package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr      string `env:"HTTP_ADDR" envDefault:":8080"`
	PostgresDSN   string `env:"POSTGRES_DSN"`
	DBAutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv        string `env:"APP_ENV" envDefault:"dev"`
	ServiceName   string `env:"SERVICE_NAME" envDefault:"nftcate"`

	AuthMode     string        `env:"AUTH_MODE"`
	JWTSecret    string        `env:"JWT_SECRET"`
	JWTIssuer    string        `env:"JWT_ISSUER"`
	JWTAudience  string        `env:"JWT_AUDIENCE"`
	JWTClockSkew time.Duration `env:"JWT_CLOCK_SKEW" envDefault:"60s"`

	ContentStore        string        `env:"CONTENT_STORE" envDefault:"ipfs"`
	IPFSAPIURL          string        `env:"IPFS_API_URL" envDefault:"https://ipfs.infura.io:5001"`
	IPFSProjectID       string        `env:"IPFS_PROJECT_ID"`
	IPFSProjectSecret   string        `env:"IPFS_PROJECT_SECRET"`
	IPFSGatewayURL      string        `env:"IPFS_GATEWAY_URL" envDefault:"https://ipfs.io"`
	IPFSRequestTimeout  time.Duration `env:"IPFS_REQUEST_TIMEOUT" envDefault:"30s"`
	ResolveMaxTries     uint          `env:"IPFS_RESOLVE_MAX_TRIES" envDefault:"5"`
	ResolveInitialDelay time.Duration `env:"IPFS_RESOLVE_INITIAL_DELAY" envDefault:"500ms"`
	ResolveMaxElapsed   time.Duration `env:"IPFS_RESOLVE_MAX_ELAPSED" envDefault:"20s"`
	MaxArtifactBytes    int64         `env:"MAX_ARTIFACT_BYTES" envDefault:"10485760"`
	AllowedMediaTypes   []string      `env:"ALLOWED_MEDIA_TYPES" envSeparator:"," envDefault:"image/png,image/jpeg,image/webp,image/svg+xml,application/pdf"`

	ContentCache    string        `env:"CONTENT_CACHE" envDefault:"memory"`
	ContentCacheTTL time.Duration `env:"CONTENT_CACHE_TTL" envDefault:"1h"`

	LedgerMode               string        `env:"LEDGER_MODE" envDefault:"ethereum"`
	EthRPCURL                string        `env:"ETH_RPC_URL"`
	ContractAddress          string        `env:"CONTRACT_ADDRESS"`
	ChainID                  int64         `env:"CHAIN_ID"`
	ConfirmationTimeout      time.Duration `env:"CONFIRMATION_TIMEOUT" envDefault:"2m"`
	ConfirmationPollInterval time.Duration `env:"CONFIRMATION_POLL_INTERVAL" envDefault:"2s"`
	RequireOnChainIssuer     bool          `env:"REQUIRE_ONCHAIN_ISSUER" envDefault:"false"`

	KeyCustody string            `env:"KEY_CUSTODY" envDefault:"soft"`
	IssuerKeys map[string]string `env:"ISSUER_KEYS" envSeparator:"," envKeyValSeparator:"="`
	NFTCateEnv string            `env:"NFTCATE_ENV"`
	VaultAddr  string            `env:"VAULT_ADDR"`
	VaultToken string            `env:"VAULT_TOKEN"`

	PolicyPath             string `env:"POLICY_PATH"`
	RequireSameInstitution bool   `env:"REQUIRE_SAME_INSTITUTION" envDefault:"false"`

	RateLimitRequests       int  `env:"RATE_LIMIT_REQUESTS" envDefault:"0"`
	RateLimitWindowSeconds  int  `env:"RATE_LIMIT_WINDOW_SECONDS" envDefault:"60"`
	RateLimitIncludeSubject bool `env:"RATE_LIMIT_INCLUDE_SUBJECT" envDefault:"false"`
	RateLimitFailClosed     bool `env:"RATE_LIMIT_FAIL_CLOSED" envDefault:"false"`
	RateLimitMaxKeys        int  `env:"RATE_LIMIT_MAX_KEYS" envDefault:"10000"`
	RateLimitSubjectMaxLen  int  `env:"RATE_LIMIT_SUBJECT_MAX_LEN" envDefault:"128"`
	RateLimitSubjectHash    bool `env:"RATE_LIMIT_SUBJECT_HASH" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

// FromEnv loads an optional .env file (ENV_FILE, default ".env") and parses the
// process environment. Variables already set take precedence over the file.
func FromEnv() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func loadDotEnv() error {
	path := strings.TrimSpace(os.Getenv("ENV_FILE"))
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c *Config) normalize() {
	c.AuthMode = strings.ToLower(strings.TrimSpace(c.AuthMode))
	c.LedgerMode = strings.ToLower(strings.TrimSpace(c.LedgerMode))
	c.KeyCustody = strings.ToLower(strings.TrimSpace(c.KeyCustody))
	c.ContentStore = strings.ToLower(strings.TrimSpace(c.ContentStore))
	c.ContentCache = strings.ToLower(strings.TrimSpace(c.ContentCache))
	if c.RateLimitWindowSeconds <= 0 {
		c.RateLimitWindowSeconds = 60
	}
	if c.RateLimitMaxKeys <= 0 {
		c.RateLimitMaxKeys = 10000
	}
	for i, mt := range c.AllowedMediaTypes {
		c.AllowedMediaTypes[i] = strings.ToLower(strings.TrimSpace(mt))
	}
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}
