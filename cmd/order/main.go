// OrderService 主程序
// 功能：下单、订单查询与状态流转、商品目录维护、订单通知
// 架构：基于 DDD，HTTP 提供业务接口，gRPC 仅提供健康检查
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	catalogapp "github.com/wyfcoding/pantry/internal/catalog/application"
	catalogdomain "github.com/wyfcoding/pantry/internal/catalog/domain"
	catalogmysql "github.com/wyfcoding/pantry/internal/catalog/infrastructure/persistence/mysql"
	cataloghttp "github.com/wyfcoding/pantry/internal/catalog/interfaces/http"
	notifapp "github.com/wyfcoding/pantry/internal/notification/application"
	notifdomain "github.com/wyfcoding/pantry/internal/notification/domain"
	notifmysql "github.com/wyfcoding/pantry/internal/notification/infrastructure/persistence/mysql"
	"github.com/wyfcoding/pantry/internal/notification/infrastructure/sender"
	notifhttp "github.com/wyfcoding/pantry/internal/notification/interfaces/http"
	orderapp "github.com/wyfcoding/pantry/internal/order/application"
	"github.com/wyfcoding/pantry/internal/order/infrastructure/inventory"
	ordermysql "github.com/wyfcoding/pantry/internal/order/infrastructure/persistence/mysql"
	orderhttp "github.com/wyfcoding/pantry/internal/order/interfaces/http"
	userapp "github.com/wyfcoding/pantry/internal/user/application"
	userdomain "github.com/wyfcoding/pantry/internal/user/domain"
	usermysql "github.com/wyfcoding/pantry/internal/user/infrastructure/persistence/mysql"
	"github.com/wyfcoding/pantry/pkg/cache"
	"github.com/wyfcoding/pantry/pkg/config"
	"github.com/wyfcoding/pantry/pkg/db"
	"github.com/wyfcoding/pantry/pkg/logger"
	"github.com/wyfcoding/pantry/pkg/metrics"
	"github.com/wyfcoding/pantry/pkg/middleware"
	"github.com/wyfcoding/pantry/pkg/mq"
	"github.com/wyfcoding/pantry/pkg/ratelimit"
	"github.com/wyfcoding/pantry/pkg/trace"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	configPath := flag.String("config", config.GetEnv("APP_CONFIG", "configs/order/config.toml"), "path to the TOML config file")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "Starting OrderService",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	// 3. 初始化追踪
	if cfg.Tracing.Enabled {
		shutdown, err := trace.InitTracer(cfg.ServiceName, cfg.Tracing.CollectorEndpoint, cfg.Tracing.SamplingRate)
		if err != nil {
			logger.Error(ctx, "Failed to initialize tracer", "error", err)
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error(ctx, "Failed to shutdown tracer", "error", err)
				}
			}()
			logger.Info(ctx, "Tracer initialized", "endpoint", cfg.Tracing.CollectorEndpoint)
		}
	}

	// 4. 初始化数据库
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
		TxIsolation:        cfg.Database.TxIsolation,
		Tracing:            cfg.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize database", "error", err)
	}
	defer database.Close()

	if cfg.Database.AutoMigrate || cfg.Database.Driver == "sqlite" {
		models := append([]any{&catalogdomain.Product{}, &userdomain.User{}, &notifdomain.Notification{}}, ordermysql.Models()...)
		if err := database.AutoMigrate(models...); err != nil {
			logger.Fatal(ctx, "Failed to migrate database", "error", err)
		}
		logger.Info(ctx, "Database schema migrated")
	}

	// 5. 初始化指标
	metricsInstance := metrics.New(cfg.ServiceName)
	if err := metricsInstance.Register(nil); err != nil {
		logger.Fatal(ctx, "Failed to register metrics", "error", err)
	}

	// 6. 初始化限流器
	var rateLimiter ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		rdb, err := cache.NewRedisClient(cache.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			MaxPoolSize:  cfg.Redis.MaxPoolSize,
			ConnTimeout:  cfg.Redis.ConnTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			logger.Fatal(ctx, "Failed to initialize Redis", "error", err)
		}
		defer rdb.Close()
		rateLimiter = ratelimit.NewRedisRateLimiter(rdb, ratelimit.Policy{QPS: cfg.RateLimit.QPS, Burst: cfg.RateLimit.Burst})
	}

	// 7. 初始化通知投递
	notificationSender, closeSender, err := newSender(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize notification sender", "transport", cfg.Notification.Transport, "error", err)
	}
	defer closeSender()

	dispatcher := notifapp.NewDispatcher(notifapp.DispatcherConfig{
		Workers:   cfg.Notification.Workers,
		QueueSize: cfg.Notification.QueueSize,
		Timeout:   time.Duration(cfg.Notification.TimeoutSeconds) * time.Second,
	}, metricsInstance)

	// 8. 初始化仓储与应用服务
	productRepo := catalogmysql.NewProductRepository(database)
	orderRepo := ordermysql.NewOrderRepository(database)
	userRepo := usermysql.NewUserRepository(database)
	notificationRepo := notifmysql.NewNotificationRepository(database)

	orderNotifications := notifapp.NewOrderNotificationService(
		dispatcher,
		notifapp.NewMessageNotifier(notificationSender, notificationRepo, metricsInstance),
		userapp.NewContactDirectory(userRepo, cfg.Order.AdminEmails),
		cfg.Order.LowStockThreshold,
	)

	orderCmd := orderapp.NewOrderCommandService(database, orderRepo, inventory.NewCatalogInventory(productRepo), orderNotifications, metricsInstance)
	orderQuery := orderapp.NewOrderQueryService(orderRepo)

	// 9. 创建服务器
	httpServer := createHTTPServer(cfg, metricsInstance, rateLimiter,
		orderhttp.NewOrderHandler(orderCmd, orderQuery),
		cataloghttp.NewCatalogHandler(catalogapp.NewCatalogCommandService(productRepo), catalogapp.NewCatalogQueryService(productRepo)),
		notifhttp.NewNotificationHandler(notifapp.NewNotificationQueryService(notificationRepo)),
	)
	grpcServer, healthServer := createGRPCServer(cfg)

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, nil)
	}

	// 10. 启动并等待退出
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info(ctx, "Starting HTTP server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if grpcServer != nil {
		g.Go(func() error {
			addr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
			listener, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("grpc listen: %w", err)
			}
			logger.Info(ctx, "Starting gRPC server", "addr", addr)
			return grpcServer.Serve(listener)
		})
	}

	if metricsServer != nil {
		g.Go(func() error {
			logger.Info(ctx, "Starting metrics server", "addr", metricsServer.Addr, "path", cfg.Metrics.Path)
			return metrics.Serve(metricsServer)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info(ctx, "Shutting down OrderService")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if healthServer != nil {
			healthServer.Shutdown()
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "HTTP server shutdown error", "error", err)
		}
		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error(ctx, "Metrics server shutdown error", "error", err)
			}
		}
		// 请求停止后再排空通知队列
		if err := dispatcher.Close(shutdownCtx); err != nil {
			logger.Warn(ctx, "Notification queue not fully drained", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error(ctx, "OrderService exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info(ctx, "OrderService stopped")
}

// newSender 按配置选择通知投递方式，返回的 close 用于释放连接
func newSender(ctx context.Context, cfg *config.Config) (notifdomain.Sender, func(), error) {
	n := cfg.Notification
	noop := func() {}

	switch n.Transport {
	case "smtp":
		return sender.NewSMTPSender(n.SMTP.Host, n.SMTP.Port, n.SMTP.Username, n.SMTP.Password, n.From), noop, nil

	case "webhook":
		client := &http.Client{Timeout: time.Duration(n.TimeoutSeconds) * time.Second}
		return sender.NewWebhookSender(n.WebhookURL, client), noop, nil

	case "kafka":
		producer, err := mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := producer.Close(); err != nil {
				logger.Warn(ctx, "Failed to close kafka producer", "error", err)
			}
		}
		return sender.NewKafkaNotificationSender(producer, n.KafkaTopic), closeFn, nil

	case "amqp":
		conn, ch, err := sender.DialAMQP(ctx, n.AMQP.URL, n.AMQP.Exchange)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			_ = ch.Close()
			_ = conn.Close()
		}
		return sender.NewAMQPSender(ch, n.AMQP.Exchange, n.AMQP.RoutingKey), closeFn, nil

	default:
		return sender.NewLogSender(), noop, nil
	}
}

// createHTTPServer 创建 HTTP 服务器
func createHTTPServer(cfg *config.Config, m *metrics.Metrics, rateLimiter ratelimit.RateLimiter,
	orders *orderhttp.OrderHandler, catalog *cataloghttp.CatalogHandler, notifications *notifhttp.NotificationHandler) *http.Server {
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// 添加中间件
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.GinLoggingMiddleware())
	router.Use(middleware.GinRecoveryMiddleware())
	router.Use(middleware.GinCORSMiddleware())
	router.Use(middleware.GinMetricsMiddleware(m))

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   cfg.ServiceName,
			"timestamp": time.Now().Unix(),
		})
	})

	api := router.Group("/api/v1", middleware.AuthMiddleware(cfg.Auth.JWTSecret))
	if rateLimiter != nil {
		api.Use(middleware.RateLimitMiddleware(rateLimiter))
	}
	orders.RegisterRoutes(api)
	catalog.RegisterRoutes(api)
	notifications.RegisterRoutes(api)

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}
}

// createGRPCServer 创建 gRPC 服务器，未启用时返回 nil
func createGRPCServer(cfg *config.Config) (*grpc.Server, *health.Server) {
	if !cfg.GRPC.Enabled {
		return nil, nil
	}

	opts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			middleware.GRPCLoggingInterceptor(),
			middleware.GRPCRecoveryInterceptor(),
		),
		grpc.MaxConcurrentStreams(uint32(cfg.GRPC.MaxConcurrentStreams)),
	}
	server := grpc.NewServer(opts...)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(cfg.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	reflection.Register(server)

	return server, healthServer
}
