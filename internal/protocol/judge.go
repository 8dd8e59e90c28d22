// Package protocol 定义远程判定服务的 JSON 线上格式，
// 客户端（internal/judge）与服务端（cmd/judge）共用。
package protocol

// ValidateRequest 单词判定请求
type ValidateRequest struct {
	Word   string `json:"word"`
	Letter string `json:"letter"`
	Mode   string `json:"mode"`
}

// ValidateResponse 单词判定响应
type ValidateResponse struct {
	Valid         bool   `json:"valid"`
	Source        string `json:"source,omitempty"` // lexicon / heuristic
	QuotaExceeded bool   `json:"quotaExceeded,omitempty"`
}

// BatchEntry 批量判定中的一项
type BatchEntry struct {
	PlayerID string `json:"playerId"`
	Category string `json:"category"`
	Word     string `json:"word"`
}

// BatchValidateRequest 批量判定请求（一个回合一批）
type BatchValidateRequest struct {
	RoundID string       `json:"roundId"`
	Entries []BatchEntry `json:"entries"`
	Letter  string       `json:"letter"`
	Mode    string       `json:"mode"`
}

// BatchEntryResult 批量判定中单项的结论
type BatchEntryResult struct {
	PlayerID string `json:"playerId"`
	Category string `json:"category"`
	Word     string `json:"word"`
	Valid    bool   `json:"valid"`
}

// BatchValidateResponse 批量判定响应
type BatchValidateResponse struct {
	RoundID       string             `json:"roundId"`
	Results       []BatchEntryResult `json:"results"`
	QuotaExceeded bool               `json:"quotaExceeded,omitempty"`
}
