package notification

import (
	"context"
	"database/sql"
	"log"
	"sync"
	"time"

	notificationdb "github.com/nao1215/taskhub/internal/notification/db"
	"github.com/nao1215/taskhub/pkg/audience"
	"github.com/nao1215/taskhub/pkg/event"
	"github.com/nao1215/taskhub/pkg/push"
)

// Directory は配信先の解決に必要なユーザーディレクトリの操作。
type Directory interface {
	// PushDestination はユーザーの現在のプッシュ配信先を返す。未登録は空文字列。
	PushDestination(ctx context.Context, userID string) (string, error)
	// ClearPushDestination は恒久的に無効と判明した配信先を破棄する。
	ClearPushDestination(ctx context.Context, userID string) error
}

// defaultWorkers はワーカー数の既定値。
const defaultWorkers = 4

// queueCapacity はイベントキューのバッファ長。
const queueCapacity = 256

// dispatchTimeout は1受信者分の処理全体の上限時間。
// 外部チャネルの呼び出しがここで必ず打ち切られるため、
// 応答しないゲートウェイがワーカーを占有し続けることはない。
const dispatchTimeout = 15 * time.Second

// Engine は通知のファンアウトエンジン。
// Publishで受け取ったイベントを受信者ごとの独立した作業単位として
// ワーカープールで処理する。
type Engine struct {
	// queries は通知テーブルへのクエリ実行オブジェクト。
	queries *notificationdb.Queries
	// channel はプッシュ配信チャネル。
	channel push.Channel
	// directory は配信先解決に使用するユーザーディレクトリ。
	directory Directory
	// jobs は受信者ごとのイベントキュー。
	jobs chan event.TaskNotification
	// wg は稼働中ワーカーの待ち合わせに使用する。
	wg sync.WaitGroup
	// workers はワーカー数。
	workers int
}

// NewEngine は新しいファンアウトエンジンを生成する。
// workersが1未満の場合は既定値を使用する。
func NewEngine(sqlDB *sql.DB, directory Directory, channel push.Channel, workers int) *Engine {
	if workers < 1 {
		workers = defaultWorkers
	}
	return &Engine{
		queries:   notificationdb.New(sqlDB),
		channel:   channel,
		directory: directory,
		jobs:      make(chan event.TaskNotification, queueCapacity),
		workers:   workers,
	}
}

// Start はワーカープールを起動する。
func (e *Engine) Start() {
	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			for ev := range e.jobs {
				e.process(ev)
			}
		}()
	}
	log.Printf("[Notification] ファンアウトエンジンを起動しました (workers=%d)", e.workers)
}

// Stop はキューを閉じ、投入済みのイベントが処理し切られるまで待つ。
// HTTPサーバーの停止後に呼び出すこと。
func (e *Engine) Stop() {
	close(e.jobs)
	e.wg.Wait()
	log.Printf("[Notification] ファンアウトエンジンを停止しました")
}

// Publish は受信者ごとに1イベントをキューへ投入して戻る。
// 永続化や配信の完了は待たない。変更リクエストのレイテンシに
// 影響するのはキュー投入のコストだけになっている。
func (e *Engine) Publish(recipients []audience.Member, title, message, taskID, taskTitle string, category event.Category, actorID string) {
	for _, r := range recipients {
		e.jobs <- event.NewTaskNotification(r.ID, title, message, taskID, taskTitle, category, actorID)
	}
}

// process は1受信者分のイベントを処理する。
// 通知行の永続化が先で、プッシュ配信はその後のベストエフォート。
// どちらの失敗もログに残るだけで呼び出し元へは伝播しない。
func (e *Engine) process(ev event.TaskNotification) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	if err := e.queries.CreateNotification(ctx, notificationdb.CreateNotificationParams{
		ID:               ev.ID,
		RecipientID:      ev.RecipientID,
		Title:            ev.Title,
		Message:          ev.Message,
		RelatedTaskID:    ev.TaskID,
		RelatedTaskTitle: ev.TaskTitle,
		Category:         string(ev.Category),
	}); err != nil {
		// 同一イベントの再処理は主キー制約で弾かれてここに来る
		log.Printf("[Notification] 通知行の作成に失敗 (event=%s recipient=%s): %v", ev.ID, ev.RecipientID, err)
		return
	}

	// 配信先は永続化済みの最新値をここで読む。スナップショットの古い値は使わない
	destination, err := e.directory.PushDestination(ctx, ev.RecipientID)
	if err != nil {
		log.Printf("[Notification] 配信先の解決に失敗 (recipient=%s): %v", ev.RecipientID, err)
		return
	}
	if destination == "" {
		return
	}

	outcome := e.channel.Send(ctx, destination, ev.Title, ev.Message, map[string]string{
		"task_id":  ev.TaskID,
		"category": string(ev.Category),
	})

	switch outcome {
	case push.OutcomeSent:
		log.Printf("[Notification] プッシュ配信に成功 (recipient=%s)", ev.RecipientID)
	case push.OutcomeDestinationInvalid:
		// 無効な配信先は破棄して以後の無駄な送信を止める
		if err := e.directory.ClearPushDestination(ctx, ev.RecipientID); err != nil {
			log.Printf("[Notification] 無効な配信先の破棄に失敗 (recipient=%s): %v", ev.RecipientID, err)
		}
		log.Printf("[Notification] 配信先が無効のため破棄しました (recipient=%s)", ev.RecipientID)
	default:
		log.Printf("[Notification] プッシュ配信に失敗 (recipient=%s outcome=%s)", ev.RecipientID, outcome)
	}
}
