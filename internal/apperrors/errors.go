package apperrors

// 错误码（房间 1xx，控制 2xx，校验 3xx）
const (
	CodeRoomNotFound = 100 + iota
	CodeRoomFull
	CodeGameStarted
	CodeNotInRoom
	CodeAlreadyInRoom
)

const (
	CodeNotHost = 200 + iota
	CodeStopNotAllowed
	CodeStopTooEarly
	CodePlayAgainPending
)

const (
	CodeUnknownMode = 300 + iota
	CodeQuotaExceeded
)

// GameError 游戏错误（预期的用户可见错误）
type GameError struct {
	Code    int
	Message string
}

func (e *GameError) Error() string {
	return e.Message
}

// 预定义错误，用户可见文案与原版一致保持阿拉伯语
var (
	ErrRoomNotFound     = &GameError{Code: CodeRoomNotFound, Message: "الغرفة غير موجودة"}
	ErrRoomFull         = &GameError{Code: CodeRoomFull, Message: "الغرفة ممتلئة"}
	ErrGameStarted      = &GameError{Code: CodeGameStarted, Message: "اللعبة بدأت بالفعل"}
	ErrNotInRoom        = &GameError{Code: CodeNotInRoom, Message: "أنت لست في غرفة"}
	ErrAlreadyInRoom    = &GameError{Code: CodeAlreadyInRoom, Message: "أنت بالفعل في غرفة"}
	ErrNotHost          = &GameError{Code: CodeNotHost, Message: "المضيف فقط يمكنه هذا الإجراء"}
	ErrStopNotAllowed   = &GameError{Code: CodeStopNotAllowed, Message: "الإيقاف غير متاح في هذه المرحلة"}
	ErrStopTooEarly     = &GameError{Code: CodeStopTooEarly, Message: "انتظر قليلاً قبل الإيقاف"}
	ErrPlayAgainPending = &GameError{Code: CodePlayAgainPending, Message: "هناك طلب إعادة قيد الانتظار"}

	// ErrUnknownMode 配置缺陷：未注册的模式，绝不允许回退到其他模式
	ErrUnknownMode = &GameError{Code: CodeUnknownMode, Message: "وضع غير معروف"}
	// ErrQuotaExceeded 远程判定配额耗尽，必须立即结束本局
	ErrQuotaExceeded = &GameError{Code: CodeQuotaExceeded, Message: "تم استنفاد حصة التحقق"}
)
