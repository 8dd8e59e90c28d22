package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 客户端与判定服务共享的配置
type Config struct {
	Redis RedisConfig `yaml:"redis"`
	Judge JudgeConfig `yaml:"judge"`
	Game  GameConfig  `yaml:"game"`
}

// RedisConfig Redis 配置（共享房间文档所在）
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// JudgeConfig 远程判定服务配置
type JudgeConfig struct {
	URL      string `yaml:"url"`      // 为空则全部走本地校验
	Timeout  int    `yaml:"timeout"`  // 单次判定超时（秒）
	Host     string `yaml:"host"`     // cmd/judge 监听地址
	Port     int    `yaml:"port"`     // cmd/judge 监听端口
	DayQuota int    `yaml:"quota"`    // cmd/judge 每日请求配额，0 表示不限
	Lexicon  string `yaml:"lexicon"`  // 词库文件路径，可选
}

// GameConfig 游戏配置
type GameConfig struct {
	TotalRounds    int `yaml:"total_rounds"`     // 默认回合数
	StopMinElapsed int `yaml:"stop_min_elapsed"` // 允许 STOP 前的最短已用时（秒，防作弊）
	PresenceTTL    int `yaml:"presence_ttl"`     // 在线心跳 key 过期（秒）
	PresenceBeat   int `yaml:"presence_beat"`    // 心跳间隔（秒）
	AnswerDebounce int `yaml:"answer_debounce"`  // 答案写入合并窗口（毫秒）
}

// TimeoutDuration 返回判定超时时长
func (c *JudgeConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// StopMinElapsedDuration 返回允许 STOP 前的最短已用时
func (c *GameConfig) StopMinElapsedDuration() time.Duration {
	return time.Duration(c.StopMinElapsed) * time.Second
}

// PresenceTTLDuration 返回心跳过期时长
func (c *GameConfig) PresenceTTLDuration() time.Duration {
	return time.Duration(c.PresenceTTL) * time.Second
}

// PresenceBeatDuration 返回心跳间隔
func (c *GameConfig) PresenceBeatDuration() time.Duration {
	return time.Duration(c.PresenceBeat) * time.Second
}

// AnswerDebounceDuration 返回答案合并窗口
func (c *GameConfig) AnswerDebounceDuration() time.Duration {
	return time.Duration(c.AnswerDebounce) * time.Millisecond
}

// Load 加载配置文件
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default 返回默认配置
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults 填充默认值
func (c *Config) applyDefaults() {
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Judge.Timeout == 0 {
		c.Judge.Timeout = 5
	}
	if c.Judge.Host == "" {
		c.Judge.Host = "0.0.0.0"
	}
	if c.Judge.Port == 0 {
		c.Judge.Port = 1781
	}
	if c.Game.TotalRounds == 0 {
		c.Game.TotalRounds = 5
	}
	if c.Game.StopMinElapsed == 0 {
		c.Game.StopMinElapsed = 10
	}
	if c.Game.PresenceTTL == 0 {
		c.Game.PresenceTTL = 10
	}
	if c.Game.PresenceBeat == 0 {
		c.Game.PresenceBeat = 3
	}
	if c.Game.AnswerDebounce == 0 {
		c.Game.AnswerDebounce = 300
	}
}
