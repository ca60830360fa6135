// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/callumw118/Secret-Register-Login/internal/auth"
	"github.com/callumw118/Secret-Register-Login/internal/config"
	"github.com/callumw118/Secret-Register-Login/internal/credential"
	"github.com/callumw118/Secret-Register-Login/internal/database"
	"github.com/callumw118/Secret-Register-Login/internal/handler"
	"github.com/callumw118/Secret-Register-Login/internal/logger"
	"github.com/callumw118/Secret-Register-Login/internal/metrics"
	"github.com/callumw118/Secret-Register-Login/internal/repository"
	"github.com/callumw118/Secret-Register-Login/internal/secret"
	"github.com/callumw118/Secret-Register-Login/internal/view"
	"github.com/callumw118/Secret-Register-Login/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("credential_scheme", cfg.CredentialScheme),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// newVerifier は設定に応じた認証情報ポリシーを生成する。
func newVerifier(cfg *config.Config) (credential.Verifier, error) {
	switch cfg.CredentialScheme {
	case config.SchemeAES:
		return credential.NewAESVerifier(cfg.EncryptionSecret)
	default:
		return credential.NewBcryptVerifier(), nil
	}
}

// runServe はWebサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. ドメインサービスの初期化
	verifier, err := newVerifier(cfg)
	if err != nil {
		return fmt.Errorf("failed to init credential verifier: %w", err)
	}

	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	authService := auth.NewService(
		oauthProvider, verifier, userRepo, identRepo, sessionRepo, collector,
		auth.ServiceConfig{
			SessionSecret: cfg.SessionSecret,
			SessionMaxAge: cfg.SessionMaxAge,
		},
	)
	secretService := secret.NewService(userRepo)

	// 5. レンダラーの初期化
	renderer, err := view.New()
	if err != nil {
		return fmt.Errorf("failed to init renderer: %w", err)
	}

	// 6. ルーターの構築
	deps := &handler.RouterDeps{
		SessionRestorer: authService,
		Logger:          slog.Default(),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		SecretService: secretService,
		Renderer:      renderer,

		HealthChecker: db,
		Gatherer:      registry,
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("web server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down web server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れセッションのクリーンアップジョブを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	job := cleanup.NewCleanupJob(db, slog.Default(), collector)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("session cleanup worker starting",
		slog.String("interval", cfg.CleanupInterval.String()),
	)

	// 起動直後に1回実行してから定期実行に入る
	if err := job.Run(ctx); err != nil {
		slog.Warn("initial cleanup run failed", slog.String("error", err.Error()))
	}
	job.RunPeriodically(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped")
	return nil
}

// runMigrate はデータベースマイグレーションを適用する。
func runMigrate(cfg *config.Config) error {
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	slog.Info("migrations applied")
	return nil
}

// runHealthcheck はローカルの/healthzエンドポイントを叩いて生存確認する。
func runHealthcheck(port string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://localhost:" + port + "/healthz")
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck failed with status %d", resp.StatusCode)
	}
	return nil
}
