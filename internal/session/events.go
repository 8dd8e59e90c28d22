package session

import "github.com/palemoky/letter-challenge/internal/game/room"

// EventKind 会话事件类型
type EventKind string

const (
	EventRoomUpdated       EventKind = "room_updated"    // 每个快照都会触发
	EventNewRound          EventKind = "new_round"       // roundSeq 变大
	EventPhaseChanged      EventKind = "phase_changed"   // phase 变化
	EventBecameHost        EventKind = "became_host"     // 主持人交接到自己
	EventResults           EventKind = "results"         // 回合结果就绪
	EventGameFinished      EventKind = "game_finished"   // 整局结束
	EventPlayAgainPrompt   EventKind = "play_again"      // 对方请求再来一局
	EventPlayAgainDeclined EventKind = "play_declined"   // 自己的请求被拒绝
	EventRoomClosed        EventKind = "room_closed"     // 房间被删除或自己被移出
	EventToast             EventKind = "toast"           // 瞬态提示
)

// Event 推送给 UI 层的事件。
// UI 只消费事件与快照，控制面决策全部留在控制器里。
type Event struct {
	Kind    EventKind
	Room    *room.Room // 触发事件时的快照（RoomClosed 时为 nil）
	Message string
}
