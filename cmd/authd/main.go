// authd is the authentication and authorization service: sessions,
// token pairs, MFA, and policy evaluation over gRPC. Stores are chosen
// by configuration: Postgres and Redis when configured, in-memory
// otherwise (development only).
package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"matterguard/authcore/internal/audit"
	auditstore "matterguard/authcore/internal/audit/store"
	"matterguard/authcore/internal/auth"
	"matterguard/authcore/internal/config"
	"matterguard/authcore/internal/db"
	"matterguard/authcore/internal/mfa"
	mfastore "matterguard/authcore/internal/mfa/store"
	"matterguard/authcore/internal/policy"
	policystore "matterguard/authcore/internal/policy/store"
	"matterguard/authcore/internal/security"
	"matterguard/authcore/internal/server"
	"matterguard/authcore/internal/server/interceptors"
	"matterguard/authcore/internal/session"
	sessionstore "matterguard/authcore/internal/session/store"
	"matterguard/authcore/internal/telemetry"
	"matterguard/authcore/internal/telemetry/otel"
	"matterguard/authcore/internal/telemetry/producer"
	"matterguard/authcore/internal/token"
	tokenstore "matterguard/authcore/internal/token/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.AuthSigningSecret == "" {
		log.Fatal("config: AUTH_SIGNING_SECRET is required")
	}
	if cfg.AuthKDFSalt == "" {
		log.Fatal("config: AUTH_KDF_SALT is required")
	}

	ctx := context.Background()

	// One secret, purpose-separated keys. Derivation is slow on purpose;
	// it runs once here.
	secret := []byte(cfg.AuthSigningSecret)
	deriveKey := func(purpose string) []byte {
		return security.DeriveKey(secret, []byte(cfg.AuthKDFSalt+":"+purpose), cfg.AuthKDFIterations)
	}
	fingerprintKey := deriveKey("fingerprint")
	storageHashKey := deriveKey("token-storage")
	mfaSecretsKey := deriveKey("mfa-secrets")

	var (
		sessions sessionstore.Store = sessionstore.NewMemoryStore()
		tokens   tokenstore.Store   = tokenstore.NewMemoryStore()
		mfaSt    mfastore.Store     = mfastore.NewMemoryStore()
		auditSt  auditstore.Store   = auditstore.NewMemory()
		policySt policystore.Store  = policystore.NewMemory()
	)
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer conn.Close()
		sessions = sessionstore.NewPostgresStore(conn)
		tokens = tokenstore.NewPostgresStore(conn)
		mfaSt = mfastore.NewPostgresStore(conn)
		auditSt = auditstore.NewPostgresStore(conn)
		policySt = policystore.NewPostgresStore(conn)
	}
	if cfg.RedisAddr != "" {
		// Sessions and refresh tokens sit on the request path; Redis
		// serves them even when Postgres backs the rest.
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer client.Close()
		sessions = sessionstore.NewRedisStoreWithClient(client, "")
		tokens = tokenstore.NewRedisStoreWithClient(client, "")
	}
	if cfg.DatabaseURL == "" && cfg.RedisAddr == "" {
		log.Println("authd: no DATABASE_URL or REDIS_ADDR; using in-memory stores")
	}

	fingerprinter := session.NewFingerprinter(fingerprintKey)
	manager := session.NewManager(fingerprinter, cfg.IdleTTL(), cfg.AbsoluteTTL())

	tokenService, err := token.NewService(secret, storageHashKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL())
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	box, err := security.NewSecretBox(mfaSecretsKey)
	if err != nil {
		log.Fatalf("mfa secret box: %v", err)
	}
	mfaEngine := mfa.NewEngine(mfaSt, box, security.NewHasher(cfg.BcryptCost), cfg.TOTPIssuer)

	policies := policy.Baseline()
	customs, err := policySt.List(ctx)
	if err != nil {
		log.Fatalf("policy store: %v", err)
	}
	compiled, err := policy.FromCustom(customs)
	if err != nil {
		log.Fatalf("policy compile: %v", err)
	}
	policies = append(policies, compiled...)
	policyEngine := policy.New(policies)
	log.Printf("authd: %d policies loaded (%d custom)", len(policies), len(compiled))

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()

	emitters := []telemetry.EventEmitter{otel.NewEventEmitter(providers.LoggerProvider)}
	kafkaProducer, err := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.KafkaTopic)
	if err != nil {
		log.Fatalf("kafka producer: %v", err)
	}
	if kafkaProducer != nil {
		emitters = append(emitters, kafkaProducer)
	}
	emitter := telemetry.Fanout(emitters...)

	auditLogger := audit.NewLogger(auditSt, interceptors.ClientIP)

	authService := auth.NewService(manager, sessions, tokenService, tokens, mfaEngine, policyEngine, auditLogger, emitter)

	grpcServer, healthServer := server.New(server.Deps{
		Authenticator: authService,
		Audit:         auditLogger,
		Emitter:       emitter,
		Reflection:    cfg.Env != "production",
	})

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down gRPC server...")
	healthServer.Shutdown()
	grpcServer.GracefulStop()

	// Let in-flight async emits finish before the exporters go away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Printf("kafka close: %v", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
	log.Println("gRPC server stopped")
}
