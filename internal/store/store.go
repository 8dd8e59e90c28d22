// Package store 是共享复制文档在 Redis 上的适配层。
// 每个房间一份 JSON 文档，读-改-写通过 WATCH 乐观事务做 CAS，
// 变更通过 PUBLISH 推送完整快照，订阅方收到的是同一频道上
// 全序、单调递增的快照序列。
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/palemoky/letter-challenge/internal/game/room"
)

const (
	roomKeyPrefix     = "room:"
	presenceKeySuffix = ":presence:"
	eventsKeySuffix   = ":events"

	// 房间数据过期时间（兜底清理，正常路径是最后一名玩家离开时删除）
	roomExpiration = 2 * time.Hour

	// CAS 重试上限，超过即认输（视为竞态失败方）
	txnMaxRetries = 5
)

var (
	// ErrTxnAborted 事务前置条件不再成立或重试耗尽。
	// 竞态中落败的一方收到它之后应当静默放弃，这是正常现象而非故障。
	ErrTxnAborted = errors.New("store: transaction aborted")

	// ErrDeleteRoom 由 Update 的变更函数返回，表示本次提交应删除整个房间
	ErrDeleteRoom = errors.New("store: delete room")

	// ErrRoomGone 房间不存在
	ErrRoomGone = errors.New("store: room gone")
)

// RoomStore Redis 房间文档存储
type RoomStore struct {
	client      *redis.Client
	offsetNanos atomic.Int64 // 服务器时钟 - 本地时钟
}

// NewRoomStore 创建存储并校准一次服务器时钟偏移
func NewRoomStore(ctx context.Context, client *redis.Client) (*RoomStore, error) {
	s := &RoomStore{client: client}
	if err := s.SyncClock(ctx); err != nil {
		return nil, fmt.Errorf("校准服务器时钟失败: %w", err)
	}
	return s, nil
}

// SyncClock 重新校准服务器时钟偏移
func (s *RoomStore) SyncClock(ctx context.Context) error {
	serverTime, err := s.client.Time(ctx).Result()
	if err != nil {
		return err
	}
	s.offsetNanos.Store(int64(serverTime.Sub(time.Now())))
	return nil
}

// ServerNow 返回校准后的服务器时间。
// 阶段剩余时间永远用它推算，不依赖本地累计的墙钟差值。
func (s *RoomStore) ServerNow() time.Time {
	return time.Now().Add(time.Duration(s.offsetNanos.Load()))
}

// Offset 当前时钟偏移
func (s *RoomStore) Offset() time.Duration {
	return time.Duration(s.offsetNanos.Load())
}

func roomKey(code string) string {
	return roomKeyPrefix + code
}

func eventsChannel(code string) string {
	return roomKeyPrefix + code + eventsKeySuffix
}

// Create 创建房间文档，房间号冲突时报错
func (s *RoomStore) Create(ctx context.Context, r *room.Room) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("序列化房间失败: %w", err)
	}

	ok, err := s.client.SetNX(ctx, roomKey(r.Code), data, roomExpiration).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("房间号 %s 已被占用", r.Code)
	}

	return s.client.Publish(ctx, eventsChannel(r.Code), data).Err()
}

// Get 读取房间文档，不存在时返回 (nil, nil)
func (s *RoomStore) Get(ctx context.Context, code string) (*room.Room, error) {
	data, err := s.client.Get(ctx, roomKey(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var r room.Room
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("反序列化房间失败: %w", err)
	}
	return &r, nil
}

// Update 对房间文档做 CAS 读-改-写。
// fn 在最新快照上原地修改；返回 ErrTxnAborted 表示放弃（前置条件不成立），
// 返回 ErrDeleteRoom 表示提交时删除房间。并发冲突自动重试，
// 重试耗尽返回 ErrTxnAborted，调用方按竞态失败处理。
func (s *RoomStore) Update(ctx context.Context, code string, fn func(*room.Room) error) (*room.Room, error) {
	key := roomKey(code)

	for i := 0; i < txnMaxRetries; i++ {
		var updated *room.Room
		var deleted bool

		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return ErrRoomGone
				}
				return err
			}

			var r room.Room
			if err := json.Unmarshal(data, &r); err != nil {
				return fmt.Errorf("反序列化房间失败: %w", err)
			}

			switch err := fn(&r); {
			case errors.Is(err, ErrDeleteRoom):
				deleted = true
			case err != nil:
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if deleted {
					pipe.Del(ctx, key)
					pipe.Publish(ctx, eventsChannel(code), "")
					return nil
				}

				next, err := json.Marshal(&r)
				if err != nil {
					return err
				}
				pipe.Set(ctx, key, next, roomExpiration)
				pipe.Publish(ctx, eventsChannel(code), next)
				return nil
			})
			if err == nil && !deleted {
				updated = &r
			}
			return err
		}, key)

		switch {
		case err == nil:
			if deleted {
				return nil, nil
			}
			return updated, nil
		case errors.Is(err, redis.TxFailedErr):
			continue // 被并发写抢先，重读重试
		default:
			return nil, err
		}
	}

	return nil, ErrTxnAborted
}

// Delete 删除房间并广播墓碑
func (s *RoomStore) Delete(ctx context.Context, code string) error {
	if err := s.client.Del(ctx, roomKey(code)).Err(); err != nil {
		return err
	}
	return s.client.Publish(ctx, eventsChannel(code), "").Err()
}

// Watch 订阅房间快照流。
// 返回的通道先投递一次当前快照，之后每次提交投递一次；
// nil 快照表示房间已删除。stop 负责退订并关闭通道。
func (s *RoomStore) Watch(ctx context.Context, code string) (<-chan *room.Room, func(), error) {
	pubsub := s.client.Subscribe(ctx, eventsChannel(code))

	// 确认订阅建立后再读初始快照，避免漏掉订阅间隙里的提交
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan *room.Room, 16)
	done := make(chan struct{})

	go func() {
		defer close(out)

		if initial, err := s.Get(ctx, code); err == nil && initial != nil {
			out <- initial
		}

		ch := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Payload == "" {
					out <- nil // 房间已删除
					return
				}
				var r room.Room
				if err := json.Unmarshal([]byte(msg.Payload), &r); err != nil {
					continue
				}
				out <- &r
			}
		}
	}()

	var stopped atomic.Bool
	stop := func() {
		if stopped.CompareAndSwap(false, true) {
			close(done)
			_ = pubsub.Close()
		}
	}
	return out, stop, nil
}
