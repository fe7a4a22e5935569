package task

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/taskhub/internal/history"
	taskdb "github.com/nao1215/taskhub/internal/task/db"
	"github.com/nao1215/taskhub/pkg/middleware"
)

// Handler はタスクAPIのHTTPハンドラ。
type Handler struct {
	// service はタスク変更パイプライン。
	service *Service
}

// NewHandler は新しいタスクハンドラを生成する。
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register は認証済みルートグループへAPIルーティングを設定する。
func (h *Handler) Register(api *gin.RouterGroup) {
	tasks := api.Group("/tasks")
	{
		// タスク作成
		tasks.POST("", h.handleCreate())
		// タスク一覧取得
		tasks.GET("", h.handleList())
		// タスク詳細取得（サブタスクと変更履歴を含む）
		tasks.GET("/:id", h.handleGet())
		// タスク更新
		tasks.PUT("/:id", h.handleUpdate())
		// ステータス変更
		tasks.PUT("/:id/status", h.handleUpdateStatus())
		// 担当者変更
		tasks.PUT("/:id/assignee", h.handleAssign())
		// タスク削除（論理削除）
		tasks.DELETE("/:id", h.handleDelete())
		// タスク復元
		tasks.PUT("/:id/restore", h.handleRestore())

		// サブタスク作成
		tasks.POST("/:id/subtasks", h.handleCreateSubTask())
		// サブタスク更新
		tasks.PUT("/:id/subtasks/:subtask_id", h.handleUpdateSubTask())
		// サブタスク削除（論理削除）
		tasks.DELETE("/:id/subtasks/:subtask_id", h.handleDeleteSubTask())
	}
}

// respondError はサービス層のエラーをHTTPステータスへ対応付ける。
// 対象が見つからない場合と権限がない場合は区別して返す。
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrTaskNotFound),
		errors.Is(err, ErrSubTaskNotFound),
		errors.Is(err, ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotDeleted),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidPriority),
		errors.Is(err, ErrInvalidDueDate),
		errors.Is(err, ErrDueDateInPast):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "内部エラーが発生しました"})
		log.Printf("[Task] 内部エラー: %v", err)
	}
}

// taskResponse はタスクのJSONレスポンス構造。
type taskResponse struct {
	// ID はタスクの一意識別子。
	ID string `json:"id"`
	// Title はタスクのタイトル。
	Title string `json:"title"`
	// Description はタスクの説明。
	Description string `json:"description"`
	// Status はタスクのステータス。
	Status string `json:"status"`
	// Priority はタスクの優先度。
	Priority string `json:"priority"`
	// DueDate は期限（YYYY-MM-DD形式）。未設定の場合は空文字列。
	DueDate string `json:"due_date"`
	// CreatedBy は作成者のユーザーID。
	CreatedBy string `json:"created_by"`
	// AssigneeID は担当者のユーザーID。未割り当ての場合は空文字列。
	AssigneeID string `json:"assignee_id"`
	// CreatedAt は作成日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
	// UpdatedAt は最終更新日時（RFC3339形式）。
	UpdatedAt string `json:"updated_at"`
}

// toTaskResponse はDB行をJSONレスポンスに変換する。
func toTaskResponse(t taskdb.Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		DueDate:     t.DueDate,
		CreatedBy:   t.CreatedBy,
		AssigneeID:  t.AssigneeID,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.Format(time.RFC3339),
	}
}

// subTaskResponse はサブタスクのJSONレスポンス構造。
type subTaskResponse struct {
	// ID はサブタスクの一意識別子。
	ID string `json:"id"`
	// ParentTaskID は親タスクのID。
	ParentTaskID string `json:"parent_task_id"`
	// Title はサブタスクのタイトル。
	Title string `json:"title"`
	// Description はサブタスクの説明。
	Description string `json:"description"`
	// Status はサブタスクのステータス。
	Status string `json:"status"`
	// AssigneeID は担当者のユーザーID。未割り当ての場合は空文字列。
	AssigneeID string `json:"assignee_id"`
	// CreatedAt は作成日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
	// UpdatedAt は最終更新日時（RFC3339形式）。
	UpdatedAt string `json:"updated_at"`
}

// toSubTaskResponse はDB行をJSONレスポンスに変換する。
func toSubTaskResponse(st taskdb.SubTask) subTaskResponse {
	return subTaskResponse{
		ID:           st.ID,
		ParentTaskID: st.ParentTaskID,
		Title:        st.Title,
		Description:  st.Description,
		Status:       st.Status,
		AssigneeID:   st.AssigneeID,
		CreatedAt:    st.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    st.UpdatedAt.Format(time.RFC3339),
	}
}

// historyResponse は変更履歴エントリのJSONレスポンス構造。
type historyResponse struct {
	// ID は履歴エントリの一意識別子。
	ID string `json:"id"`
	// Field は変更されたフィールド名。
	Field string `json:"field"`
	// OldValue は変更前の値。
	OldValue string `json:"old_value"`
	// NewValue は変更後の値。
	NewValue string `json:"new_value"`
	// ChangedBy は変更を行ったユーザーID。
	ChangedBy string `json:"changed_by"`
	// ChangedAt は変更日時（RFC3339形式）。
	ChangedAt string `json:"changed_at"`
}

// toHistoryResponses は履歴エントリのスライスをJSONレスポンスに変換する。
func toHistoryResponses(entries []history.Entry) []historyResponse {
	responses := make([]historyResponse, 0, len(entries))
	for _, e := range entries {
		responses = append(responses, historyResponse{
			ID:        e.ID,
			Field:     e.Field,
			OldValue:  e.OldValue,
			NewValue:  e.NewValue,
			ChangedBy: e.ChangedBy,
			ChangedAt: e.ChangedAt.Format(time.RFC3339),
		})
	}
	return responses
}

// createTaskRequest はタスク作成リクエストのJSON構造。
type createTaskRequest struct {
	// Title はタスクのタイトル。
	Title string `json:"title" binding:"required"`
	// Description はタスクの説明。
	Description string `json:"description"`
	// Priority は優先度（LOW | MEDIUM | HIGH）。省略時はMEDIUM。
	Priority string `json:"priority"`
	// DueDate は期限（YYYY-MM-DD形式）。
	DueDate string `json:"due_date"`
	// AssigneeID は担当者のユーザーID。
	AssigneeID string `json:"assignee_id"`
}

// handleCreate はタスク作成ハンドラ。
func (h *Handler) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		var req createTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "タイトルが必要です"})
			return
		}

		t, err := h.service.CreateTask(c.Request.Context(), userID, CreateTaskInput{
			Title:       req.Title,
			Description: req.Description,
			Priority:    req.Priority,
			DueDate:     req.DueDate,
			AssigneeID:  req.AssigneeID,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, toTaskResponse(t))
	}
}

// handleList はタスク一覧取得ハンドラ。limit/offsetクエリで範囲を指定できる。
func (h *Handler) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		limit, err := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
		if err != nil || limit < 1 || limit > 200 {
			limit = 50
		}
		offset, err := strconv.ParseInt(c.DefaultQuery("offset", "0"), 10, 64)
		if err != nil || offset < 0 {
			offset = 0
		}

		tasks, err := h.service.ListTasks(c.Request.Context(), userID, limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}

		responses := make([]taskResponse, 0, len(tasks))
		for _, t := range tasks {
			responses = append(responses, toTaskResponse(t))
		}
		c.JSON(http.StatusOK, responses)
	}
}

// handleGet はタスク詳細取得ハンドラ。
func (h *Handler) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		detail, err := h.service.GetTaskDetail(c.Request.Context(), userID, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}

		subtasks := make([]subTaskResponse, 0, len(detail.SubTasks))
		for _, st := range detail.SubTasks {
			subtasks = append(subtasks, toSubTaskResponse(st))
		}

		c.JSON(http.StatusOK, gin.H{
			"task":     toTaskResponse(detail.Task),
			"subtasks": subtasks,
			"history":  toHistoryResponses(detail.History),
		})
	}
}

// updateTaskRequest はタスク更新リクエストのJSON構造。
type updateTaskRequest struct {
	// Title はタスクのタイトル。
	Title string `json:"title" binding:"required"`
	// Description はタスクの説明。
	Description string `json:"description"`
	// Priority は優先度（LOW | MEDIUM | HIGH）。
	Priority string `json:"priority" binding:"required"`
	// DueDate は期限（YYYY-MM-DD形式）。
	DueDate string `json:"due_date"`
}

// handleUpdate はタスク更新ハンドラ。
func (h *Handler) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		var req updateTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "タイトルと優先度が必要です"})
			return
		}

		t, err := h.service.UpdateTask(c.Request.Context(), userID, c.Param("id"), UpdateTaskInput{
			Title:       req.Title,
			Description: req.Description,
			Priority:    req.Priority,
			DueDate:     req.DueDate,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, toTaskResponse(t))
	}
}

// updateStatusRequest はステータス変更リクエストのJSON構造。
type updateStatusRequest struct {
	// Status は新しいステータス（TODO | IN_PROGRESS | DONE | CANCELLED）。
	Status string `json:"status" binding:"required"`
}

// handleUpdateStatus はステータス変更ハンドラ。
func (h *Handler) handleUpdateStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		var req updateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ステータスが必要です"})
			return
		}

		t, err := h.service.UpdateStatus(c.Request.Context(), userID, c.Param("id"), req.Status)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, toTaskResponse(t))
	}
}

// assignRequest は担当者変更リクエストのJSON構造。
type assignRequest struct {
	// AssigneeID は新しい担当者のユーザーID。
	AssigneeID string `json:"assignee_id" binding:"required"`
}

// handleAssign は担当者変更ハンドラ。
func (h *Handler) handleAssign() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		var req assignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "担当者IDが必要です"})
			return
		}

		t, err := h.service.AssignTask(c.Request.Context(), userID, c.Param("id"), req.AssigneeID)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, toTaskResponse(t))
	}
}

// handleDelete はタスク削除ハンドラ。
func (h *Handler) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		if err := h.service.DeleteTask(c.Request.Context(), userID, c.Param("id")); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "タスクを削除しました"})
	}
}

// handleRestore はタスク復元ハンドラ。
func (h *Handler) handleRestore() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		t, err := h.service.RestoreTask(c.Request.Context(), userID, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, toTaskResponse(t))
	}
}

// createSubTaskRequest はサブタスク作成リクエストのJSON構造。
type createSubTaskRequest struct {
	// Title はサブタスクのタイトル。
	Title string `json:"title" binding:"required"`
	// Description はサブタスクの説明。
	Description string `json:"description"`
	// AssigneeID は担当者のユーザーID。
	AssigneeID string `json:"assignee_id"`
}

// handleCreateSubTask はサブタスク作成ハンドラ。
func (h *Handler) handleCreateSubTask() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		var req createSubTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "タイトルが必要です"})
			return
		}

		st, err := h.service.CreateSubTask(c.Request.Context(), userID, c.Param("id"), CreateSubTaskInput{
			Title:       req.Title,
			Description: req.Description,
			AssigneeID:  req.AssigneeID,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, toSubTaskResponse(st))
	}
}

// updateSubTaskRequest はサブタスク更新リクエストのJSON構造。
type updateSubTaskRequest struct {
	// Title はサブタスクのタイトル。
	Title string `json:"title" binding:"required"`
	// Description はサブタスクの説明。
	Description string `json:"description"`
	// Status はステータス（TODO | IN_PROGRESS | DONE | CANCELLED）。
	Status string `json:"status" binding:"required"`
	// AssigneeID は担当者のユーザーID。
	AssigneeID string `json:"assignee_id"`
}

// handleUpdateSubTask はサブタスク更新ハンドラ。
func (h *Handler) handleUpdateSubTask() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		var req updateSubTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "タイトルとステータスが必要です"})
			return
		}

		st, err := h.service.UpdateSubTask(c.Request.Context(), userID, c.Param("id"), c.Param("subtask_id"), UpdateSubTaskInput{
			Title:       req.Title,
			Description: req.Description,
			Status:      req.Status,
			AssigneeID:  req.AssigneeID,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, toSubTaskResponse(st))
	}
}

// handleDeleteSubTask はサブタスク削除ハンドラ。
func (h *Handler) handleDeleteSubTask() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		if err := h.service.DeleteSubTask(c.Request.Context(), userID, c.Param("id"), c.Param("subtask_id")); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "サブタスクを削除しました"})
	}
}
