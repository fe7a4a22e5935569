package identity

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/taskhub/pkg/middleware"
)

// Handler はユーザーディレクトリのHTTPハンドラ。
type Handler struct {
	// directory はユーザーディレクトリ。
	directory *Directory
}

// NewHandler は新しいユーザーディレクトリハンドラを生成する。
func NewHandler(directory *Directory) *Handler {
	return &Handler{directory: directory}
}

// Register は認証済みルートグループへAPIルーティングを設定する。
func (h *Handler) Register(api *gin.RouterGroup) {
	users := api.Group("/users")
	{
		// 自分のプロフィール取得
		users.GET("/me", h.handleGetMe())
		// プッシュ配信先の登録
		users.PUT("/me/device", h.handleRegisterDevice())
		// プッシュ配信先の破棄
		users.DELETE("/me/device", h.handleClearDevice())
	}
}

// memberResponse はユーザーのJSONレスポンス構造。
type memberResponse struct {
	// ID はユーザーの一意識別子。
	ID string `json:"id"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// FullName は表示名。
	FullName string `json:"full_name"`
	// Role は役割。
	Role string `json:"role"`
	// HasDevice はプッシュ配信先が登録済みかどうか。
	HasDevice bool `json:"has_device"`
}

// handleGetMe は認証済みユーザー自身のプロフィールを返すハンドラ。
func (h *Handler) handleGetMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		m, err := h.directory.Member(c.Request.Context(), userID)
		if errors.Is(err, ErrMemberNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの取得に失敗しました"})
			log.Printf("[Identity] ユーザー取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, memberResponse{
			ID:        m.ID,
			Email:     m.Email,
			FullName:  m.FullName,
			Role:      string(m.Role),
			HasDevice: m.FCMToken != "",
		})
	}
}

// registerDeviceRequest はプッシュ配信先登録リクエストのJSON構造。
type registerDeviceRequest struct {
	// FCMToken はプッシュ配信先のデバイストークン。
	FCMToken string `json:"fcm_token" binding:"required"`
}

// handleRegisterDevice は認証済みユーザーのプッシュ配信先を登録するハンドラ。
func (h *Handler) handleRegisterDevice() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		var req registerDeviceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "デバイストークンが必要です"})
			return
		}

		if err := h.directory.RegisterPushDestination(c.Request.Context(), userID, req.FCMToken); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "配信先の登録に失敗しました"})
			log.Printf("[Identity] 配信先登録エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "配信先を登録しました"})
	}
}

// handleClearDevice は認証済みユーザーのプッシュ配信先を破棄するハンドラ。
func (h *Handler) handleClearDevice() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		if err := h.directory.ClearPushDestination(c.Request.Context(), userID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "配信先の破棄に失敗しました"})
			log.Printf("[Identity] 配信先破棄エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "配信先を破棄しました"})
	}
}
