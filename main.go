package main

import (
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"tasktrack/api"
	"tasktrack/config"
	"tasktrack/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	var repo storage.Repository
	switch {
	case cfg.StorageConnStr != "":
		store, err := storage.New(cfg.StorageConnStr, cfg.TasksTable)
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		repo = store
	case cfg.DevMode:
		log.Warn("DEV_MODE: tasks are stored in memory and lost on restart")
		repo = storage.NewMemory()
	default:
		log.Fatal("missing storage config")
	}

	if cfg.RedisConnStr != "" {
		rc := redis.NewClient(redisOptions(cfg.RedisConnStr))
		repo = storage.NewCache(repo, rc, cfg.CacheTTL)
	}

	auth := buildAuth(cfg)

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	logger := log.New()
	api.Register(e, repo, auth, logger)

	e.Logger.Fatal(e.Start(cfg.Addr()))
}

// redisOptions accepts either a redis URL or the comma-separated
// "host:port,password=...,ssl=true" form managed Redis offerings hand
// out.
func redisOptions(connStr string) *redis.Options {
	opts, err := redis.ParseURL(connStr)
	if err == nil {
		return opts
	}
	parts := strings.Split(connStr, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}

func buildAuth(cfg config.Config) *api.Auth {
	if cfg.AuthTestMode || cfg.LocalAuthMode != "" {
		return api.NewAuth(nil, "", "")
	}
	if cfg.AuthDomain == "" || cfg.AuthAudience == "" {
		log.Fatal("missing auth config")
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", cfg.AuthDomain)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
	if err != nil {
		log.Fatalf("jwks: %v", err)
	}
	return api.NewAuth(jwks, cfg.AuthAudience, "https://"+cfg.AuthDomain+"/")
}
