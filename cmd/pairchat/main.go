package main

import (
	"flag"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pairchat/internal/api"
	"pairchat/internal/auth"
	"pairchat/internal/config"
	"pairchat/internal/db"
	"pairchat/internal/dispatch"
	"pairchat/internal/hub"
	"pairchat/internal/ident"
	"pairchat/internal/media"
	"pairchat/internal/metrics"
	"pairchat/internal/store"
	"pairchat/internal/unread"
)

var (
	// Version is injected via -ldflags "-X main.Version=..."
	Version = "dev"
)

func main() {
	var cfgPaths string
	flag.StringVar(&cfgPaths, "c", "./config.yml", "config file path (supports: a.yml,b.yml)")
	flag.Parse()

	_ = godotenv.Load()

	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg, err := config.Load(cfgPaths)
	if err != nil {
		log.Fatal("load config failed", zap.Error(err))
	}
	log.Info("pairchat starting",
		zap.String("version", Version),
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("storage", cfg.Storage.Driver))

	metrics.Register()

	var (
		msgStore store.Store
		users    store.UserDirectory
	)
	switch cfg.Storage.Driver {
	case "memory":
		mem := store.NewMemory()
		msgStore, users = mem, mem
	default:
		sqlDB, err := db.Open(db.Options{
			DSN:          cfg.Storage.MySQL.DSN,
			MaxOpenConns: cfg.Storage.MySQL.MaxOpenConns,
			MaxIdleConns: cfg.Storage.MySQL.MaxIdleConns,
		})
		if err != nil {
			log.Fatal("mysql init failed", zap.Error(err))
		}
		defer sqlDB.Close()
		mysql := store.NewMySQL(sqlDB.DB, ident.NewFlake())
		msgStore, users = mysql, mysql
	}

	var authn auth.Authenticator
	if cfg.Auth.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
		})
		defer rdb.Close()
		authn = &auth.RedisAuthenticator{
			Client:      rdb,
			RedisPrefix: cfg.Auth.Token.RedisPrefix,
			Secret:      cfg.Auth.Token.Secret,
		}
	} else {
		// Dev mode: tokens are "uid:<n>". Never run this in production.
		authn = devAuthenticator{}
		log.Warn("auth disabled, using dev tokens")
	}

	disk, err := media.NewDisk(cfg.Media.Dir, cfg.Media.BaseURL, cfg.Media.MaxBytes)
	if err != nil {
		log.Fatal("media dir init failed", zap.Error(err))
	}

	h := hub.New()
	srv := api.NewServer(api.Options{
		Store:        msgStore,
		Users:        users,
		Unread:       unread.New(msgStore, log),
		Dispatch:     dispatch.New(h, log),
		Hub:          h,
		Media:        disk,
		Authn:        authn,
		AuthOpt:      auth.Options{Header: cfg.Auth.Token.Header, BearerPrefix: cfg.Auth.Token.BearerPrefix, QueryKey: cfg.Auth.Token.QueryKey},
		Log:          log,
		PushBuffer:   cfg.Push.Buffer,
		WriteTimeout: cfg.Push.WriteTimeout,
		SendRPS:      cfg.Send.RPS,
		SendBurst:    cfg.Send.Burst,
		UploadsDir:   cfg.Media.Dir,
		UploadsURL:   cfg.Media.BaseURL,
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 2 * time.Second,
	}
	log.Info("pairchat listening", zap.String("addr", cfg.HTTP.Addr))
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("server error", zap.Error(err))
	}
}
