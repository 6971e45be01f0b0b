package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"zkcred/internal/config"
	"zkcred/internal/domain"
	"zkcred/internal/infra/cachemem"
	"zkcred/internal/infra/db"
	"zkcred/internal/infra/ledgermem"
	"zkcred/internal/infra/metrics"
	"zkcred/internal/infra/ratelimit"
	"zkcred/internal/infra/redisledger"
	"zkcred/internal/infra/registrymem"
	"zkcred/internal/normalize"
	"zkcred/internal/nullifier"
	"zkcred/internal/usecase"
	"zkcred/internal/verifier"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// NullifierReader answers ledger membership queries.
type NullifierReader interface {
	IsConsumed(ctx context.Context, value domain.FieldElement) (bool, error)
}

type Server struct {
	cfg   config.Config
	store *db.Store
	r     *gin.Engine
	log   logrus.FieldLogger

	registry   *usecase.CircuitRegistry
	verifyUC   *usecase.VerifyProof
	sweep      *usecase.RevocationSweep
	statuses   *usecase.CredentialStatusService
	nullifiers NullifierReader
	records    usecase.ProofRecordRepository
	metrics    http.Handler

	adminAPIKey string

	rateLimiter       domain.RateLimiter
	rateLimitRequests int
	rateLimitClient   int
	rateLimitWindow   time.Duration

	initErr error
}

// NewServer wires the daemon from cfg. Postgres backs the registry, records
// and status store when store is enabled; the nullifier ledger follows
// cfg.NullifierLedger.
func NewServer(cfg config.Config, store *db.Store, log logrus.FieldLogger) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{cfg: cfg, store: store, r: r, log: defaultLogger(log)}
	s.r.Use(s.requestLogger())
	if err := s.initDeps(); err != nil {
		s.initErr = err
	}
	s.initRateLimit(nil, nil)
	s.routes()
	return s
}

type ServerDeps struct {
	Registry    *usecase.CircuitRegistry
	Verify      *usecase.VerifyProof
	Sweep       *usecase.RevocationSweep
	Statuses    *usecase.CredentialStatusService
	Nullifiers  NullifierReader
	Records     usecase.ProofRecordRepository
	Metrics     http.Handler
	AdminAPIKey string
	RateLimiter domain.RateLimiter
	Log         logrus.FieldLogger
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:         cfg,
		r:           r,
		log:         defaultLogger(deps.Log),
		registry:    deps.Registry,
		verifyUC:    deps.Verify,
		sweep:       deps.Sweep,
		statuses:    deps.Statuses,
		nullifiers:  deps.Nullifiers,
		records:     deps.Records,
		metrics:     deps.Metrics,
		adminAPIKey: deps.AdminAPIKey,
	}
	if s.nullifiers == nil && s.verifyUC != nil && s.verifyUC.Nullifiers != nil {
		s.nullifiers = s.verifyUC.Nullifiers
	}
	if s.records == nil && s.verifyUC != nil {
		s.records = s.verifyUC.Records
	}
	s.r.Use(s.requestLogger())
	s.initRateLimit(deps.RateLimiter, nil)
	s.routes()
	return s
}

func defaultLogger(log logrus.FieldLogger) logrus.FieldLogger {
	if log == nil {
		return logrus.StandardLogger()
	}
	return log
}

func (s *Server) initDeps() error {
	s.adminAPIKey = s.cfg.AdminAPIKey

	schemas, err := normalize.New(normalize.IdentitySchema)
	if err != nil {
		return err
	}

	var (
		circuits usecase.CircuitRepository      = registrymem.NewCircuits()
		events   usecase.CircuitEventRepository = registrymem.NewEvents()
		records  usecase.ProofRecordRepository  = registrymem.NewProofRecords()
		status   usecase.CredentialStatusStore  = ledgermem.NewStatusRegistry()
	)
	if s.store.Enabled() {
		circuits = db.NewCircuitRepository(s.store.DB)
		events = db.NewCircuitEventRepository(s.store.DB)
		records = db.NewProofRecordRepository(s.store.DB)
		status = db.NewCredentialStatusRepository(s.store.DB)
	}

	ledger, err := s.buildLedger()
	if err != nil {
		return err
	}
	collectors := metrics.New()

	var nullOpts []nullifier.Option
	nullOpts = append(nullOpts, nullifier.WithLogger(s.log))
	if s.cfg.AuditLinkable {
		nullOpts = append(nullOpts, nullifier.WithAuditLinkability())
	}
	nullifiers := nullifier.NewManager(ledger, nullOpts...)

	emitter := usecase.NewEventEmitter(events, nil, s.log)
	s.registry = usecase.NewCircuitRegistry(circuits, cachemem.New(), emitter, schemas, s.cfg.RegistryCacheTTL(), s.log)
	s.verifyUC = &usecase.VerifyProof{
		Registry:   s.registry,
		Verifier:   verifier.New(schemas, nullifiers, status, s.log),
		Nullifiers: nullifiers,
		Records:    records,
		Observer:   collectors,
		Log:        s.log,
	}
	s.sweep = &usecase.RevocationSweep{Registry: s.registry, Nullifiers: nullifiers}
	s.statuses = &usecase.CredentialStatusService{Store: status}
	s.nullifiers = nullifiers
	s.records = records
	s.metrics = collectors.Handler()
	return nil
}

func (s *Server) buildLedger() (domain.NullifierLedger, error) {
	switch s.cfg.NullifierLedger {
	case "", config.LedgerMemory:
		return ledgermem.New(), nil
	case config.LedgerPostgres:
		if !s.store.Enabled() {
			return nil, errors.New("postgres nullifier ledger requires POSTGRES_DSN")
		}
		return db.NewNullifierLedger(s.store.DB), nil
	case config.LedgerRedis:
		client := s.redisClient()
		if client == nil {
			return nil, errors.New("redis nullifier ledger requires REDIS_ADDR")
		}
		return redisledger.New(client)
	default:
		return nil, fmt.Errorf("unsupported nullifier ledger %q", s.cfg.NullifierLedger)
	}
}

func (s *Server) redisClient() *redis.Client {
	if s.cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPassword,
		DB:       s.cfg.RedisDB,
	})
}

func (s *Server) initRateLimit(override domain.RateLimiter, now func() time.Time) {
	if override != nil {
		s.rateLimiter = override
	}
	if s.rateLimiter == nil && s.cfg.RateLimitRequests > 0 {
		if client := s.redisClient(); client != nil {
			if limiter, err := ratelimit.NewRedisLimiter(client, now); err == nil {
				s.rateLimiter = limiter
			}
		}
		if s.rateLimiter == nil {
			s.rateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{
				MaxKeys: s.cfg.RateLimitMaxKeys,
				Now:     now,
			})
		}
	}
	s.rateLimitRequests = s.cfg.RateLimitRequests
	s.rateLimitClient = s.cfg.ClientRateLimit()
	s.rateLimitWindow = s.cfg.RateLimitWindow()
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		dbMode := "no-db"
		if s.store.Enabled() {
			dbMode = "db"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": dbMode})
	})
	if s.metrics != nil {
		s.r.GET("/metrics", gin.WrapH(s.metrics))
	}

	v1 := s.r.Group("/v1")
	{
		v1.GET("/circuits", s.handleListCircuits)
		v1.GET("/circuits/:id", s.handleGetCircuit)
		v1.GET("/circuits/:id/proofs", s.handleListProofRecords)
		v1.POST("/circuits", s.requireAdmin(), s.handleRegisterCircuit)
		v1.POST("/circuits/:id/:action", s.requireAdmin(), s.handleCircuitAction)

		v1.POST("/proofs/verify", s.handleVerifyProof)
		v1.GET("/nullifiers/:value", s.handleNullifier)

		v1.GET("/credentials/:id/status", s.handleGetCredentialStatus)
		v1.PUT("/credentials/:id/status", s.requireAdmin(), s.handlePutCredentialStatus)
	}

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.r
}

func (s *Server) Run() error {
	if s.initErr != nil {
		return s.initErr
	}
	s.log.WithField("addr", s.cfg.HTTPAddr).Info("zkcredd listening")
	return s.r.Run(s.cfg.HTTPAddr)
}
