package store

import (
	"context"
	"time"
)

// 在线状态用带 TTL 的心跳 key 表达：
// 客户端在任何对局写入之前注册心跳并持续续期；
// 心跳消失即视为断线，由主持人在巡检时清理幽灵玩家。

func presenceKey(code, playerID string) string {
	return roomKeyPrefix + code + presenceKeySuffix + playerID
}

// RegisterPresence 注册在线心跳。必须先于任何对局写入调用，
// 这样突然断线也不会留下幽灵玩家。
func (s *RoomStore) RegisterPresence(ctx context.Context, code, playerID string, ttl time.Duration) error {
	return s.client.Set(ctx, presenceKey(code, playerID), "1", ttl).Err()
}

// TouchPresence 心跳续期
func (s *RoomStore) TouchPresence(ctx context.Context, code, playerID string, ttl time.Duration) error {
	return s.client.Set(ctx, presenceKey(code, playerID), "1", ttl).Err()
}

// ClearPresence 注销心跳（主动离开时）
func (s *RoomStore) ClearPresence(ctx context.Context, code, playerID string) error {
	return s.client.Del(ctx, presenceKey(code, playerID)).Err()
}

// IsAlive 指定玩家的心跳是否存在
func (s *RoomStore) IsAlive(ctx context.Context, code, playerID string) (bool, error) {
	n, err := s.client.Exists(ctx, presenceKey(code, playerID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
