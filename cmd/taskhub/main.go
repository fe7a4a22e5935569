// タスク管理APIサーバーのエントリポイント。
// タスク・サブタスクの管理、変更履歴の記録、関係者への通知配信を行う。
package main

import (
	"log"
	"os"

	"github.com/nao1215/taskhub/internal/server"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv, err := server.NewServer(port)
	if err != nil {
		log.Fatalf("APIサーバーの初期化に失敗: %v", err)
	}

	log.Printf("タスク管理APIサーバーを起動します: :%s", port)
	if err := srv.Run(); err != nil {
		log.Fatalf("APIサーバーの起動に失敗: %v", err)
	}
}
