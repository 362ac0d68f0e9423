package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-sales-graphql/internal/auth"
	"github.com/ariefcatur/go-sales-graphql/internal/config"
	"github.com/ariefcatur/go-sales-graphql/internal/graph"
	"github.com/ariefcatur/go-sales-graphql/internal/httpx"
	kafkax "github.com/ariefcatur/go-sales-graphql/internal/kafka"
	"github.com/ariefcatur/go-sales-graphql/internal/logx"
	"github.com/ariefcatur/go-sales-graphql/internal/memstore"
	mongox "github.com/ariefcatur/go-sales-graphql/internal/mongo"
	"github.com/ariefcatur/go-sales-graphql/internal/postgres"
	"github.com/ariefcatur/go-sales-graphql/internal/redisx"
	"github.com/ariefcatur/go-sales-graphql/internal/sales"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logx.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}
	if cfg.JWTSecret == "" {
		// hanya untuk driver memory (dev)
		cfg.JWTSecret = "dev-secret"
		log.Warn("JWT_SECRET not set, using an insecure development secret")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer closeStore()

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	svc := sales.NewService(store, auth.Bcrypt{}, issuer, log)
	svc.Name = cfg.ServiceName

	// Redis (report cache). Tanpa REDIS_ADDR leaderboard langsung ke store.
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		svc.Reports = &redisx.ReportCache{Next: store, Redis: rdb, TTL: cfg.ReportCacheTTL, Log: log}
	}

	// Kafka producer
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, sales.TopicOrders, 1024, log)
		prod.Start()
		svc.Publisher = kafkax.EventPublisher{P: prod}
	}

	gql, err := graph.NewHandler(svc, log)
	if err != nil {
		log.Fatal("graphql handler", zap.Error(err))
	}
	router := httpx.NewRouter(log, issuer, gql, &httpx.CatalogHandler{Svc: svc, Log: log})

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	if prod != nil {
		prod.Close()      // tutup inbox -> flush & close writer
		prod.WaitClosed() // drain
	}
}

func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (sales.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return &postgres.Store{DB: db}, db.Close, nil

	case config.DriverMongo:
		client, err := mongox.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(ctx); err != nil {
				log.Warn("mongo disconnect", zap.Error(err))
			}
		}
		s := mongox.NewStore(client.Database(cfg.MongoDatabase), log.Named("mongo"))
		if err := s.EnsureIndexes(ctx); err != nil {
			closeFn()
			return nil, nil, err
		}
		return s, closeFn, nil

	default:
		log.Warn("using in-memory store, data is lost on restart")
		return memstore.New(), func() {}, nil
	}
}
