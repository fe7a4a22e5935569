package task

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/taskhub/pkg/authz"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// setupTestRouter はテスト用のタスクAPIルーターを構築する。
func setupTestRouter(t *testing.T) (*Service, *sql.DB, *gin.Engine) {
	t.Helper()

	svc, sqlDB, _ := setupTestService(t, authz.Config{})
	h := NewHandler(svc)

	router := gin.New()
	// JWTミドルウェアの代わりにテスト用のユーザーID設定ミドルウェアを使用する
	api := router.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	})
	h.Register(api)

	return svc, sqlDB, router
}

// doRequest はテスト用のHTTPリクエストを実行し、レスポンスを返すヘルパー関数。
func doRequest(router *gin.Engine, method, path, userID string, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBytes)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// parseJSON はレスポンスボディをmapにデコードするヘルパー関数。
func parseJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("JSONのデコードに失敗: %v, body=%s", err, w.Body.String())
	}
	return result
}

// TestTaskAPIFlow はタスクAPIの作成から削除までの一連のフローを検証する。
func TestTaskAPIFlow(t *testing.T) {
	t.Parallel()

	_, sqlDB, router := setupTestRouter(t)
	seedUser(t, sqlDB, "creator", "作成者", "USER")
	seedUser(t, sqlDB, "assignee", "担当者", "USER")

	// タスクを作成する
	w := doRequest(router, http.MethodPost, "/api/v1/tasks", "creator", map[string]string{
		"title":       "統合テスト",
		"description": "フロー確認",
		"priority":    "HIGH",
		"assignee_id": "assignee",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("作成のステータスコード: got %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
	}
	created := parseJSON(t, w)
	taskID, ok := created["id"].(string)
	if !ok || taskID == "" {
		t.Fatal("作成結果にidが含まれていません")
	}

	// ステータスを変更する
	w2 := doRequest(router, http.MethodPut, fmt.Sprintf("/api/v1/tasks/%s/status", taskID), "assignee", map[string]string{
		"status": "IN_PROGRESS",
	})
	if w2.Code != http.StatusOK {
		t.Fatalf("ステータス変更のステータスコード: got %d, want %d, body=%s", w2.Code, http.StatusOK, w2.Body.String())
	}

	// 詳細を取得し履歴が含まれることを確認する
	w3 := doRequest(router, http.MethodGet, fmt.Sprintf("/api/v1/tasks/%s", taskID), "creator", nil)
	if w3.Code != http.StatusOK {
		t.Fatalf("詳細取得のステータスコード: got %d, want %d", w3.Code, http.StatusOK)
	}
	detail := parseJSON(t, w3)
	historyList, ok := detail["history"].([]any)
	if !ok || len(historyList) != 2 {
		t.Errorf("履歴の数: got %v, want 2", detail["history"])
	}

	// 一覧に含まれることを確認する
	w4 := doRequest(router, http.MethodGet, "/api/v1/tasks", "assignee", nil)
	if w4.Code != http.StatusOK {
		t.Fatalf("一覧取得のステータスコード: got %d, want %d", w4.Code, http.StatusOK)
	}
	var tasks []map[string]any
	if err := json.Unmarshal(w4.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("JSON配列のデコードに失敗: %v", err)
	}
	if len(tasks) != 1 {
		t.Errorf("タスクの数: got %d, want 1", len(tasks))
	}

	// 削除して復元する
	w5 := doRequest(router, http.MethodDelete, fmt.Sprintf("/api/v1/tasks/%s", taskID), "creator", nil)
	if w5.Code != http.StatusOK {
		t.Fatalf("削除のステータスコード: got %d, want %d", w5.Code, http.StatusOK)
	}
	w6 := doRequest(router, http.MethodGet, fmt.Sprintf("/api/v1/tasks/%s", taskID), "creator", nil)
	if w6.Code != http.StatusNotFound {
		t.Errorf("削除後の詳細取得: got %d, want %d", w6.Code, http.StatusNotFound)
	}
	w7 := doRequest(router, http.MethodPut, fmt.Sprintf("/api/v1/tasks/%s/restore", taskID), "creator", nil)
	if w7.Code != http.StatusOK {
		t.Fatalf("復元のステータスコード: got %d, want %d, body=%s", w7.Code, http.StatusOK, w7.Body.String())
	}
}

// TestTaskAPIErrorMapping はサービス層エラーとHTTPステータスの対応のテスト。
func TestTaskAPIErrorMapping(t *testing.T) {
	t.Parallel()

	setup := func(t *testing.T) (string, *gin.Engine) {
		t.Helper()
		_, sqlDB, router := setupTestRouter(t)
		seedUser(t, sqlDB, "creator", "作成者", "USER")
		seedUser(t, sqlDB, "outsider", "部外者", "USER")

		w := doRequest(router, http.MethodPost, "/api/v1/tasks", "creator", map[string]string{"title": "対象"})
		if w.Code != http.StatusCreated {
			t.Fatalf("タスク作成に失敗: status=%d", w.Code)
		}
		taskID, _ := parseJSON(t, w)["id"].(string)
		return taskID, router
	}

	t.Run("存在しないタスクはNotFound", func(t *testing.T) {
		t.Parallel()
		_, router := setup(t)

		w := doRequest(router, http.MethodGet, "/api/v1/tasks/nonexistent", "creator", nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("権限のない操作はForbidden", func(t *testing.T) {
		t.Parallel()
		taskID, router := setup(t)

		w := doRequest(router, http.MethodDelete, fmt.Sprintf("/api/v1/tasks/%s", taskID), "outsider", nil)
		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusForbidden)
		}
	})

	t.Run("不正なステータスはBadRequest", func(t *testing.T) {
		t.Parallel()
		taskID, router := setup(t)

		w := doRequest(router, http.MethodPut, fmt.Sprintf("/api/v1/tasks/%s/status", taskID), "creator", map[string]string{
			"status": "WAITING",
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("削除されていないタスクの復元はBadRequest", func(t *testing.T) {
		t.Parallel()
		taskID, router := setup(t)

		w := doRequest(router, http.MethodPut, fmt.Sprintf("/api/v1/tasks/%s/restore", taskID), "creator", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("タイトルなしの作成はBadRequest", func(t *testing.T) {
		t.Parallel()
		_, router := setup(t)

		w := doRequest(router, http.MethodPost, "/api/v1/tasks", "creator", map[string]string{"description": "タイトルなし"})
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("ユーザーIDが未設定の場合はUnauthorized", func(t *testing.T) {
		t.Parallel()
		_, router := setup(t)

		w := doRequest(router, http.MethodGet, "/api/v1/tasks", "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}

// TestSubTaskAPI はサブタスクAPIのテスト。
func TestSubTaskAPI(t *testing.T) {
	t.Parallel()

	_, sqlDB, router := setupTestRouter(t)
	seedUser(t, sqlDB, "creator", "作成者", "USER")
	seedUser(t, sqlDB, "sub-assignee", "サブ担当者", "USER")

	w := doRequest(router, http.MethodPost, "/api/v1/tasks", "creator", map[string]string{"title": "親"})
	if w.Code != http.StatusCreated {
		t.Fatalf("タスク作成に失敗: status=%d", w.Code)
	}
	taskID, _ := parseJSON(t, w)["id"].(string)

	// サブタスクを作成する
	w2 := doRequest(router, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%s/subtasks", taskID), "creator", map[string]string{
		"title":       "子",
		"assignee_id": "sub-assignee",
	})
	if w2.Code != http.StatusCreated {
		t.Fatalf("サブタスク作成のステータスコード: got %d, want %d, body=%s", w2.Code, http.StatusCreated, w2.Body.String())
	}
	subTaskID, _ := parseJSON(t, w2)["id"].(string)
	if subTaskID == "" {
		t.Fatal("サブタスクのidが空です")
	}

	// サブタスク担当者がステータスを更新する
	w3 := doRequest(router, http.MethodPut, fmt.Sprintf("/api/v1/tasks/%s/subtasks/%s", taskID, subTaskID), "sub-assignee", map[string]string{
		"title":       "子",
		"status":      "DONE",
		"assignee_id": "sub-assignee",
	})
	if w3.Code != http.StatusOK {
		t.Fatalf("サブタスク更新のステータスコード: got %d, want %d, body=%s", w3.Code, http.StatusOK, w3.Body.String())
	}

	// 担当者によるサブタスク削除は既定では拒否される
	w4 := doRequest(router, http.MethodDelete, fmt.Sprintf("/api/v1/tasks/%s/subtasks/%s", taskID, subTaskID), "sub-assignee", nil)
	if w4.Code != http.StatusForbidden {
		t.Errorf("担当者による削除: got %d, want %d", w4.Code, http.StatusForbidden)
	}

	// 作成者はサブタスクを削除できる
	w5 := doRequest(router, http.MethodDelete, fmt.Sprintf("/api/v1/tasks/%s/subtasks/%s", taskID, subTaskID), "creator", nil)
	if w5.Code != http.StatusOK {
		t.Errorf("作成者による削除: got %d, want %d", w5.Code, http.StatusOK)
	}
}
