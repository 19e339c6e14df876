package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"replayServer/backend/config"
	"replayServer/backend/internal/cache"
	"replayServer/backend/internal/events"
	"replayServer/backend/internal/httpapi/handlers"
	"replayServer/backend/internal/httpapi/middleware"
	"replayServer/backend/internal/replay"
	"replayServer/backend/internal/store"
	"replayServer/backend/internal/stream"
	"replayServer/backend/internal/textbuf"
	"replayServer/backend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("init config failed: %v", err)
	}
	log.Printf("config: port=%d stream=%s run=%s redis=%v kafka=%v mysql=%t auth=%t",
		cfg.Running.Port, cfg.Producer.StreamURL, cfg.Producer.RunURL,
		cfg.Redis.Addrs, cfg.Kafka.Brokers, cfg.Mysql.DSN != "", cfg.Auth.Secret != "")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session := replay.NewSession(textbuf.NewDocument(""), replay.Options{
		ID:        cfg.Replay.Session,
		CharDelay: cfg.Replay.CharDelay,
	})

	dispatcherOpt := events.DispatcherOptions{
		QueueSize:   cfg.Kafka.QueueSize,
		Workers:     cfg.Kafka.Workers,
		MaxRetry:    cfg.Kafka.MaxRetry,
		BaseBackoff: cfg.Kafka.BaseBackoff,
		MaxBackoff:  cfg.Kafka.MaxBackoff,
	}
	var dispatchers []*events.Dispatcher

	// === Redis：观众在线状态 + 事件 pub/sub ===
	var presence cache.ViewerPresence
	if len(cfg.Redis.Addrs) > 0 {
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    cfg.Redis.Addrs,
			Password: cfg.Redis.Password,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatalf("ping redis failed: %v", err)
		}
		defer rdb.Close()
		presence = cache.NewRedisPresence(rdb)
		dispatchers = append(dispatchers, events.NewDispatcher("redis",
			events.NewRedisSink(rdb, cfg.Redis.Channel), nil, dispatcherOpt))
	} else {
		log.Printf("redis disabled: no addrs configured")
	}

	// === Kafka：step / print 事件 ===
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := events.NewSyncProducer(cfg.Kafka.Brokers)
		if err != nil {
			log.Fatalf("Failed to connect kafka: %v", err)
		}
		defer producer.Close()
		kafkaSem := events.NewSemaphoreControl(cfg.Kafka.MaxInFlight)
		dispatchers = append(dispatchers, events.NewDispatcher("kafka",
			events.NewKafkaSink(producer, cfg.Kafka.Topic), kafkaSem, dispatcherOpt))
	} else {
		log.Printf("kafka disabled: no brokers configured")
	}

	// === MySQL：快照与 print 归档 ===
	if cfg.Mysql.DSN != "" {
		db, err := sql.Open("mysql", cfg.Mysql.DSN)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		snapshotStore := store.NewSnapshotStore(db)
		if err := snapshotStore.EnsureSchema(ctx); err != nil {
			log.Fatalf("create step_snapshots failed: %v", err)
		}

		gdb, err := store.InitMySQL(cfg.Mysql.DSN)
		if err != nil {
			log.Fatalf("open mysql failed: %v", err)
		}
		if err := store.AutoMigrate(gdb); err != nil {
			log.Fatalf("migrate mysql failed: %v", err)
		}
		if err := store.NewSessionStore(gdb).Start(ctx, session.ID, cfg.Replay.Session, cfg.Producer.StreamURL, session.StartedAt); err != nil {
			log.Printf("record session failed (session=%s): %v", session.ID, err)
		}
		dispatchers = append(dispatchers,
			events.NewDispatcher("mysql-snapshots", snapshotStore, nil, dispatcherOpt),
			events.NewDispatcher("mysql-prints", store.NewPrintStore(gdb), nil, dispatcherOpt),
		)
	} else {
		log.Printf("mysql disabled: no dsn configured")
	}

	bus := events.NewBus(session.ID, 0, dispatchers...)
	if bus.Len() > 0 {
		session.Subscribe(bus.Hooks())
	}
	defer bus.Close()

	hub := ws.NewHub(presence)
	hub.Attach(session)

	var streamClient *stream.Client
	var producer ws.Producer
	if cfg.Producer.StreamURL != "" {
		streamClient = stream.NewClient(session, stream.Options{
			URL:         cfg.Producer.StreamURL,
			BaseBackoff: cfg.Producer.BaseBackoff,
			MaxBackoff:  cfg.Producer.MaxBackoff,
		})
		producer = streamClient
	} else {
		log.Printf("producer stream disabled: records only arrive via POST /replay/ops")
	}
	var runner handlers.Runner
	if cfg.Producer.RunURL != "" {
		runner = handlers.NewHTTPRunner(cfg.Producer.RunURL, 0)
	}

	h := handlers.NewReplayHandler(session, producer, runner)
	manager := ws.NewManager(hub, session, producer)

	r := gin.New()
	// 中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	if len(cfg.Cors.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.Cors.AllowOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// 路由
	r.GET("/healthz", h.Healthz())
	rg := r.Group("/replay")
	// 从 Authorization 或 ?token= 取 token，写入 userId/username
	rg.Use(middleware.AuthMiddleware(cfg.Auth.Secret))
	h.Register(rg)
	rg.GET("/ws", manager.WebSocketConnect)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Running.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return session.Run(gctx) })
	if streamClient != nil {
		g.Go(func() error { return streamClient.Run(gctx) })
	}
	g.Go(func() error {
		log.Printf("replay server listening on %s (session=%s)", srv.Addr, session.ID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("replay server stopped: %v", err)
	}
}
