// Package mode 是声明式的模式注册表：每个模式一套阶段、时长、
// STOP 规则、判定角色与答案形状。未注册的模式一律报错，
// 绝不回退到其他模式的规则。
package mode

import (
	"github.com/palemoky/letter-challenge/internal/apperrors"
	"github.com/palemoky/letter-challenge/internal/game/room"
)

// Role 判定角色，决定 ValidationService 采用哪种策略
type Role string

const (
	RoleValidator     Role = "validator"            // classic/multiphase：远程判定 + 本地兜底
	RoleInstantJudge  Role = "instant-judge"        // survival：只走本地，保证亚秒级反馈
	RoleStringCompare Role = "string-compare"       // memory：纯字符串比对，无语言学判定
	RoleWordExists    Role = "word-exists-only"     // bluff：只查词形，绝不判定谁在撒谎
	RoleConstraint    Role = "constraint-validator" // objective：逐条约束判定
)

// Config 模式配置（静态表项）
type Config struct {
	ID          string
	Name        string // 阿拉伯语显示名
	Phases      []string
	Durations   map[string]int // 阶段 -> 秒
	StopEnabled bool
	StopPhases  map[string]bool // 非空时按阶段覆盖 StopEnabled
	Role        Role
	Elimination bool // 出错即淘汰（survival）
}

// FirstPhase 返回首个阶段名
func (c *Config) FirstPhase() string {
	return c.Phases[0]
}

// Duration 返回阶段时长，未配置时兜底 60 秒
func (c *Config) Duration(phase string) int {
	if d, ok := c.Durations[phase]; ok {
		return d
	}
	return 60
}

// 模式 ID
const (
	Classic    = "classic"
	Multiphase = "multiphase"
	Survival   = "survival"
	Memory     = "memory"
	Bluff      = "bluff"
	Objective  = "objective"
)

// modes 注册表本体
var modes = map[string]*Config{
	Classic: {
		ID:          Classic,
		Name:        "كلاسيكي",
		Phases:      []string{"accuracy"},
		Durations:   map[string]int{"accuracy": 60},
		StopEnabled: true,
		Role:        RoleValidator,
	},
	Multiphase: {
		ID:         Multiphase,
		Name:       "متعدد المراحل",
		Phases:     []string{"speed", "accuracy", "challenge"},
		Durations:  map[string]int{"speed": 20, "accuracy": 30, "challenge": 10},
		StopPhases: map[string]bool{"speed": false, "accuracy": true, "challenge": false},
		Role:       RoleValidator,
	},
	Survival: {
		ID:          Survival,
		Name:        "البقاء",
		Phases:      []string{"survival"},
		Durations:   map[string]int{"survival": 7},
		Role:        RoleInstantJudge,
		Elimination: true,
	},
	Memory: {
		ID:        Memory,
		Name:      "الذاكرة",
		Phases:    []string{"show", "recall"},
		Durations: map[string]int{"show": 5, "recall": 15},
		Role:      RoleStringCompare,
	},
	Bluff: {
		ID:        Bluff,
		Name:      "الخداع",
		Phases:    []string{"answer", "vote", "reveal"},
		Durations: map[string]int{"answer": 30, "vote": 15, "reveal": 5},
		Role:      RoleWordExists,
	},
	Objective: {
		ID:        Objective,
		Name:      "الهدف",
		Phases:    []string{"solve"},
		Durations: map[string]int{"solve": 45},
		Role:      RoleConstraint,
	},
}

// GetModeConfig 查找模式配置。
// 未注册的模式返回 ErrUnknownMode：这是配置缺陷，调用方必须中止操作。
func GetModeConfig(id string) (*Config, error) {
	cfg, ok := modes[id]
	if !ok {
		return nil, apperrors.ErrUnknownMode
	}
	return cfg, nil
}

// IsStopAllowed 按房间当前阶段解析 STOP 是否可用
func IsStopAllowed(r *room.Room) bool {
	if r == nil || r.Mode == "" {
		return false
	}

	cfg, ok := modes[r.Mode]
	if !ok {
		return false
	}

	if cfg.StopPhases != nil {
		return cfg.StopPhases[r.Phase]
	}
	return cfg.StopEnabled
}

// PhaseConfig 阶段的展示元数据（不含行为）
type PhaseConfig struct {
	Name           string // 阿拉伯语显示名
	AllowEditing   bool
	ShowValidation bool
	StopEnabled    bool
}

var phaseConfigs = map[string]*PhaseConfig{
	"speed":     {Name: "السرعة", AllowEditing: true},
	"accuracy":  {Name: "الدقة", AllowEditing: true, ShowValidation: true, StopEnabled: true},
	"challenge": {Name: "التحدي"},
	"survival":  {Name: "البقاء", AllowEditing: true},
	"show":      {Name: "المشاهدة"},
	"recall":    {Name: "التذكر", AllowEditing: true},
	"answer":    {Name: "الإجابة", AllowEditing: true},
	"vote":      {Name: "التصويت"},
	"reveal":    {Name: "الكشف", ShowValidation: true},
	"solve":     {Name: "الحل", AllowEditing: true},
}

// GetPhaseConfig 查找阶段展示配置，未知阶段返回 nil（非致命）
func GetPhaseConfig(name string) *PhaseConfig {
	return phaseConfigs[name]
}
