package mode

import (
	"encoding/json"

	"github.com/palemoky/letter-challenge/internal/game/room"
)

// Answers 按模式区分的答案载荷。
// 玩家只写自己的 answers 子树，文档中以 JSON 存储，
// 读取时必须通过 DecodeAnswers 还原成本模式的具体类型。
type Answers interface {
	isAnswers()
}

// GridAnswers 九宫格答案：分类 -> 单词（classic/multiphase）
type GridAnswers map[string]string

// WordAnswer 单词答案（survival/objective）
type WordAnswer struct {
	Answer string `json:"answer"`
}

// RecallAnswers 记忆模式答案：回忆的词 + 是否冒险加倍
type RecallAnswers struct {
	Words []string `json:"words"`
	Risk  bool     `json:"risk,omitempty"`
}

// BluffAnswer 欺骗模式答案：单词 + 自报是否撒谎 + 投票序号。
// Lied 只由玩家自己声明，系统绝不自动判定谁在撒谎。
type BluffAnswer struct {
	Answer string `json:"answer"`
	Lied   bool   `json:"lied,omitempty"`
	Vote   *int   `json:"vote,omitempty"`
}

func (GridAnswers) isAnswers()   {}
func (WordAnswer) isAnswers()    {}
func (RecallAnswers) isAnswers() {}
func (BluffAnswer) isAnswers()   {}

// EncodeAnswers 序列化答案载荷，写入玩家子树前调用
func EncodeAnswers(a Answers) (json.RawMessage, error) {
	return json.Marshal(a)
}

// DecodeAnswers 按模式还原答案载荷。
// 空载荷返回该模式的零值答案（视为无效作答，不是错误）。
func DecodeAnswers(modeID string, raw json.RawMessage) (Answers, error) {
	cfg, err := GetModeConfig(modeID)
	if err != nil {
		return nil, err
	}

	switch cfg.Role {
	case RoleValidator:
		a := GridAnswers{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &a); err != nil {
				return nil, err
			}
		}
		return a, nil
	case RoleInstantJudge, RoleConstraint:
		var a WordAnswer
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &a); err != nil {
				return nil, err
			}
		}
		return a, nil
	case RoleStringCompare:
		var a RecallAnswers
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &a); err != nil {
				return nil, err
			}
		}
		return a, nil
	default: // RoleWordExists
		var a BluffAnswer
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &a); err != nil {
				return nil, err
			}
		}
		return a, nil
	}
}

// DecodePlayerAnswers 直接从玩家结构还原答案
func DecodePlayerAnswers(modeID string, p *room.Player) (Answers, error) {
	if p == nil {
		return DecodeAnswers(modeID, nil)
	}
	return DecodeAnswers(modeID, p.Answers)
}
