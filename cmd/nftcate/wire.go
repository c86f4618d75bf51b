package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"nftcate/internal/config"
	"nftcate/internal/domain"
	"nftcate/internal/infra/auth/jwtauth"
	"nftcate/internal/infra/cidutil"
	"nftcate/internal/infra/contentcache"
	"nftcate/internal/infra/contentmem"
	"nftcate/internal/infra/db"
	"nftcate/internal/infra/ethereum"
	httpinfra "nftcate/internal/infra/http"
	"nftcate/internal/infra/ipfs"
	"nftcate/internal/infra/keys/soft"
	"nftcate/internal/infra/keys/vault"
	"nftcate/internal/infra/ledgermem"
	"nftcate/internal/infra/policyopa"
	"nftcate/internal/infra/ratelimit"
	"nftcate/internal/infra/recordmem"
	"nftcate/internal/infra/resolveretry"
	"nftcate/internal/observability/logger"
	"nftcate/internal/observability/metrics"
	"nftcate/internal/usecase"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type identityRecords interface {
	usecase.IdentityDirectory
	usecase.CertificateRepository
}

// wire builds the process-wide clients and the use cases that share them.
func wire(ctx context.Context, cfg config.Config) (httpinfra.ServerDeps, func(), error) {
	log := logger.Named("wire")
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (httpinfra.ServerDeps, func(), error) {
		cleanup()
		return httpinfra.ServerDeps{}, func() {}, err
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		closers = append(closers, func() { _ = redisClient.Close() })
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		return fail(err)
	}

	content, gateway, err := buildContentStore(cfg, redisClient)
	if err != nil {
		return fail(err)
	}

	custody, err := buildCustody(cfg)
	if err != nil {
		return fail(err)
	}
	ledger, err := buildLedger(ctx, cfg, custody)
	if err != nil {
		return fail(err)
	}

	store, err := db.NewStore(cfg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, func() { _ = store.Close() })
	var (
		identities usecase.IdentityDirectory
		records    usecase.CertificateRepository
		health     func(context.Context) error
	)
	if store.Enabled() {
		identities = db.NewIdentityDirectory(store.DB)
		records = db.NewCertificateRepository(store.DB)
		health = store.Ping
	} else {
		log.Warn("using in-memory identity directory and record store")
		var mem identityRecords = recordmem.New()
		identities, records = mem, mem
	}

	policy, err := policyopa.NewEngine(ctx, cfg.PolicyPath)
	if err != nil {
		return fail(fmt.Errorf("load issuance policy: %w", err))
	}
	log.Info("issuance policy loaded", zap.String("hash", policy.Hash()))

	deps := httpinfra.ServerDeps{
		Issue: &usecase.IssueCertificate{
			Identities:             identities,
			Content:                content,
			Ledger:                 ledger,
			Records:                records,
			Policy:                 policy,
			Metrics:                m,
			ConfirmationTimeout:    cfg.ConfirmationTimeout,
			RequireOnChainIssuer:   cfg.RequireOnChainIssuer,
			MaxArtifactBytes:       cfg.MaxArtifactBytes,
			AllowedMediaTypes:      cfg.AllowedMediaTypes,
			RequireSameInstitution: cfg.RequireSameInstitution,
		},
		Resume: &usecase.ResumeCertificate{
			Identities:          identities,
			Content:             content,
			Ledger:              ledger,
			Records:             records,
			Locators:            cidutil.Service{},
			ConfirmationTimeout: cfg.ConfirmationTimeout,
		},
		Verify: &usecase.VerifyCertificate{
			Content:  content,
			Records:  records,
			Locators: cidutil.Service{},
			Metrics:  m,
		},
		Query:      &usecase.CertificateQuery{Records: records},
		Ledger:     ledger,
		GatewayURL: gateway,
		Health:     health,
		Metrics:    m,
	}

	if cfg.AuthMode == "jwt" {
		auth, err := jwtauth.NewAuthenticator(jwtauth.Config{
			Secret:    cfg.JWTSecret,
			Issuer:    cfg.JWTIssuer,
			Audience:  cfg.JWTAudience,
			ClockSkew: cfg.JWTClockSkew,
		}, identities)
		if err != nil {
			return fail(err)
		}
		deps.Authenticator = auth
	}

	if cfg.RateLimitRequests > 0 {
		limiter, err := buildRateLimiter(cfg, redisClient)
		if err != nil {
			return fail(err)
		}
		deps.RateLimiter = limiter
	}
	return deps, cleanup, nil
}

func buildContentStore(cfg config.Config, redisClient *redis.Client) (usecase.ContentStore, string, error) {
	var (
		store   usecase.ContentStore
		gateway = cfg.IPFSGatewayURL
	)
	switch cfg.ContentStore {
	case "ipfs":
		client, err := ipfs.NewClient(ipfs.Config{
			APIURL:              cfg.IPFSAPIURL,
			ProjectID:           cfg.IPFSProjectID,
			ProjectSecret:       cfg.IPFSProjectSecret,
			GatewayURL:          cfg.IPFSGatewayURL,
			MaxUploadBytes:      cfg.MaxArtifactBytes,
			ResolveMaxTries:     cfg.ResolveMaxTries,
			ResolveInitialDelay: cfg.ResolveInitialDelay,
			ResolveMaxElapsed:   cfg.ResolveMaxElapsed,
		}, &http.Client{Timeout: cfg.IPFSRequestTimeout})
		if err != nil {
			return nil, "", err
		}
		store, gateway = client, client.GatewayURL()
	case "memory":
		store = contentmem.NewWithLimit(cfg.MaxArtifactBytes, contentmem.WithResolveRetry(resolveretry.Policy{
			MaxTries:     cfg.ResolveMaxTries,
			InitialDelay: cfg.ResolveInitialDelay,
			MaxElapsed:   cfg.ResolveMaxElapsed,
		}))
	default:
		return nil, "", fmt.Errorf("unsupported CONTENT_STORE %q", cfg.ContentStore)
	}

	switch cfg.ContentCache {
	case "", "none":
		return store, gateway, nil
	case "memory":
		return contentcache.New(store, contentcache.NewMemory(cfg.ContentCacheTTL), cfg.ContentCacheTTL), gateway, nil
	case "redis":
		if redisClient == nil {
			return nil, "", errors.New("CONTENT_CACHE=redis requires REDIS_ADDR")
		}
		return contentcache.New(store, contentcache.NewRedis(redisClient), cfg.ContentCacheTTL), gateway, nil
	default:
		return nil, "", fmt.Errorf("unsupported CONTENT_CACHE %q", cfg.ContentCache)
	}
}

func buildCustody(cfg config.Config) (domain.KeyCustody, error) {
	switch cfg.KeyCustody {
	case "soft":
		if len(cfg.IssuerKeys) == 0 && cfg.LedgerMode == "memory" {
			return nil, nil
		}
		return soft.NewManagerFromConfig(cfg)
	case "vault":
		return vault.NewManagerFromConfig(cfg)
	default:
		return nil, fmt.Errorf("unsupported KEY_CUSTODY %q", cfg.KeyCustody)
	}
}

func buildLedger(ctx context.Context, cfg config.Config, custody domain.KeyCustody) (usecase.Ledger, error) {
	switch cfg.LedgerMode {
	case "ethereum":
		if custody == nil {
			return nil, errors.New("ethereum ledger requires key custody")
		}
		return ethereum.Dial(ctx, ethereum.Config{
			RPCURL:          cfg.EthRPCURL,
			ContractAddress: cfg.ContractAddress,
			ChainID:         cfg.ChainID,
			PollInterval:    cfg.ConfirmationPollInterval,
		}, custody)
	case "memory":
		return ledgermem.New(custody), nil
	default:
		return nil, fmt.Errorf("unsupported LEDGER_MODE %q", cfg.LedgerMode)
	}
}

func buildRateLimiter(cfg config.Config, redisClient *redis.Client) (domain.RateLimiter, error) {
	if redisClient != nil {
		return ratelimit.NewRedisLimiter(redisClient, nil)
	}
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		return nil, errors.New("redis client not initialized")
	}
	return ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{MaxKeys: cfg.RateLimitMaxKeys}), nil
}
