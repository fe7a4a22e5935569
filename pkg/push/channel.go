// Package push は外部プッシュ通知チャネルへの配信を提供する。
//
// 配信はベストエフォートであり、リトライは行わない。配信に失敗しても
// 永続化されたNotificationレコードが正となり、宛先は次回の一覧取得で
// 通知を受け取れる。チャネルが構成されていない環境ではNopChannelを
// 差し込むことで、プッシュ配信以外の挙動を一切変えずに動作する。
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"
)

// Outcome はプッシュ配信1回の結果を表す。
type Outcome string

const (
	// OutcomeSent は配信に成功したことを表す。
	OutcomeSent Outcome = "sent"
	// OutcomeNoDestination は宛先が配信先を登録していないことを表す。エラーではない。
	OutcomeNoDestination Outcome = "no-destination"
	// OutcomeDestinationInvalid は配信先が恒久的に無効であることを表す。
	// 呼び出し側は登録済みの配信先を破棄すべきである。
	OutcomeDestinationInvalid Outcome = "destination-invalid"
	// OutcomeChannelUnavailable はチャネルが一時的に利用できないことを表す。
	// 本設計ではリトライは行わない（at-most-once）。
	OutcomeChannelUnavailable Outcome = "channel-unavailable"
	// OutcomeUnknownError は分類できない失敗を表す。
	OutcomeUnknownError Outcome = "unknown-error"
)

// Channel はプッシュ通知の配信先チャネル。
// Sendは宛先1人につき1回の外部呼び出しであり、必ず有限時間で返る。
type Channel interface {
	Send(ctx context.Context, destination, title, body string, data map[string]string) Outcome
}

// defaultCallTimeout はプッシュゲートウェイ呼び出し1回あたりの上限時間。
// チャネルのハングが配信ワーカーを無期限に占有しないための境界になる。
const defaultCallTimeout = 10 * time.Second

// HTTPChannel はHTTPプッシュゲートウェイ経由で配信するChannel実装。
type HTTPChannel struct {
	// httpClient は内部で使用するHTTPクライアント。タイムアウトを持つ。
	httpClient *http.Client
	// baseURL はプッシュゲートウェイのベースURL。
	baseURL string
}

// NewHTTPChannel は新しいHTTPプッシュチャネルを生成する。
// baseURLにはゲートウェイのベースURL（例: "http://push-gateway:8090"）を指定する。
func NewHTTPChannel(baseURL string) *HTTPChannel {
	return &HTTPChannel{
		httpClient: &http.Client{
			Timeout: defaultCallTimeout,
		},
		baseURL: baseURL,
	}
}

// sendRequest はプッシュゲートウェイへの配信リクエストのJSON構造。
type sendRequest struct {
	// Token は宛先デバイスの登録トークン。
	Token string `json:"token"`
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Body は通知の本文。
	Body string `json:"body"`
	// Data は通知に付随するメタデータ。
	Data map[string]string `json:"data,omitempty"`
}

// Send はプッシュゲートウェイに配信リクエストを送信し、結果を分類して返す。
// 失敗はOutcomeとして返すのみで、エラーを呼び出し元に伝播しない。
func (c *HTTPChannel) Send(ctx context.Context, destination, title, body string, data map[string]string) Outcome {
	if destination == "" {
		return OutcomeNoDestination
	}

	jsonBody, err := json.Marshal(sendRequest{
		Token: destination,
		Title: title,
		Body:  body,
		Data:  data,
	})
	if err != nil {
		log.Printf("[Push] リクエストボディのシリアライズに失敗: %v", err)
		return OutcomeUnknownError
	}

	url := c.baseURL + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		log.Printf("[Push] HTTPリクエストの作成に失敗: %v", err)
		return OutcomeUnknownError
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// タイムアウト・接続失敗はチャネル側の一時障害として扱う
		log.Printf("[Push] ゲートウェイへの送信に失敗: %v", err)
		return OutcomeChannelUnavailable
	}
	defer resp.Body.Close()

	return classifyStatus(resp)
}

// classifyStatus はHTTPステータスコードを配信結果に分類する。
func classifyStatus(resp *http.Response) Outcome {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return OutcomeSent
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		// トークンが失効している。呼び出し側で登録を破棄する。
		return OutcomeDestinationInvalid
	case resp.StatusCode == http.StatusBadRequest:
		return OutcomeDestinationInvalid
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return OutcomeChannelUnavailable
	default:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Printf("[Push] 分類できないレスポンス: status=%d, body=%s", resp.StatusCode, string(respBody))
		return OutcomeUnknownError
	}
}

// NopChannel は何も配信しないChannel実装。
// プッシュゲートウェイが構成されていない環境で使用する。
type NopChannel struct{}

// Send は常にOutcomeNoDestinationを返す。
func (NopChannel) Send(_ context.Context, _, _, _ string, _ map[string]string) Outcome {
	return OutcomeNoDestination
}

var (
	_ Channel = (*HTTPChannel)(nil)
	_ Channel = NopChannel{}
)
