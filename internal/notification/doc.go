// Package notification は通知の永続化とプッシュ配信のファンアウトを提供する。
//
// 変更パイプラインから受け取ったイベントは受信者ごとに独立した作業単位として
// ワーカープールで処理される。まず通知行を永続化し、その後にベストエフォートで
// プッシュ配信を試みる。配信の失敗は記録されるだけで、他の受信者の処理にも
// 元の変更リクエストにも影響しない。耐久性のある通知行が正であり、
// プッシュは到達すれば儲けものという位置付けになっている。
package notification
