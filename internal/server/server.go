// Package server はタスク管理APIサーバーの組み立てを担当する。
// データベース接続、スキーマ初期化、通知エンジンの起動、
// 各APIハンドラのルーティング設定をここで行う。
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"

	"github.com/nao1215/taskhub/internal/history"
	historydb "github.com/nao1215/taskhub/internal/history/db"
	"github.com/nao1215/taskhub/internal/identity"
	identitydb "github.com/nao1215/taskhub/internal/identity/db"
	"github.com/nao1215/taskhub/internal/notification"
	"github.com/nao1215/taskhub/internal/task"
	"github.com/nao1215/taskhub/pkg/authz"
	"github.com/nao1215/taskhub/pkg/middleware"
	"github.com/nao1215/taskhub/pkg/push"
)

// shutdownTimeout はHTTPサーバーの停止を待つ最大時間。
const shutdownTimeout = 10 * time.Second

// Server はタスク管理APIのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// db はSQLiteデータベース接続。
	db *sql.DB
	// engine は通知ファンアウトエンジン。
	engine *notification.Engine
}

// NewServer は新しいAPIサーバーを生成する。
// SQLiteデータベースの初期化、各パッケージのスキーマ作成、
// 通知エンジンの起動、ルーティング設定を行う。
func NewServer(port string) (*Server, error) {
	dbPath := os.Getenv("TASKHUB_DB")
	if dbPath == "" {
		dbPath = "/data/taskhub.db"
	}

	sqlDB, err := sql.Open("sqlite", fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", dbPath))
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := identity.InitSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("ユーザースキーマの初期化に失敗: %w", err)
	}
	if err := history.InitSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("変更履歴スキーマの初期化に失敗: %w", err)
	}
	if err := task.InitSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("タスクスキーマの初期化に失敗: %w", err)
	}
	if err := notification.InitSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("通知スキーマの初期化に失敗: %w", err)
	}

	directory := identity.NewDirectory(identitydb.New(sqlDB))
	recorder := history.NewRecorder(historydb.New(sqlDB))

	// プッシュ配信チャネル。ゲートウェイURLが未設定の場合は
	// アプリ内通知のみ（プッシュは送信しない）で動作する。
	var channel push.Channel = push.NopChannel{}
	if gatewayURL := os.Getenv("PUSH_GATEWAY_URL"); gatewayURL != "" {
		channel = push.NewHTTPChannel(gatewayURL)
	} else {
		log.Printf("[Server] PUSH_GATEWAY_URLが未設定のため、プッシュ配信を無効化します")
	}

	workers := 0
	if v := os.Getenv("FANOUT_WORKERS"); v != "" {
		workers, err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("FANOUT_WORKERSの値が不正です: %w", err)
		}
	}

	engine := notification.NewEngine(sqlDB, directory, channel, workers)
	service := task.NewService(sqlDB, directory, recorder, engine, authz.Config{})

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		router.Use(middleware.CORS(strings.Split(origins, ",")))
	}

	s := &Server{
		router: router,
		port:   port,
		db:     sqlDB,
		engine: engine,
	}
	s.setupRoutes(directory, service)

	return s, nil
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes(directory *identity.Directory, service *task.Service) {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "dev-secret-key"
	}

	api := s.router.Group("/api/v1")
	api.Use(middleware.JWTAuth(jwtSecret))
	{
		identity.NewHandler(directory).Register(api)
		task.NewHandler(service).Register(api)
		notification.NewHandler(s.db).Register(api)
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "taskhub"})
	})
}

// Run は通知エンジンとHTTPサーバーを起動する。
// SIGINT/SIGTERMを受信するとHTTPサーバーを停止し、
// キュー内の通知をすべて処理してから戻る。
func (s *Server) Run() error {
	s.engine.Start()

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", s.port),
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		s.engine.Stop()
		return err
	case sig := <-sigCh:
		log.Printf("[Server] シグナルを受信しました: %v", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("[Server] HTTPサーバーの停止に失敗: %v", err)
	}

	// HTTPサーバー停止後に通知エンジンを止める。
	// 新しい発行は発生しないため、キューの残りを安全に処理できる。
	s.engine.Stop()

	return s.db.Close()
}
