// Package testutil 提供测试共用的脚手架：内存 Redis、房间构造器、假判定服务。
package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/letter-challenge/internal/game/room"
	"github.com/palemoky/letter-challenge/internal/protocol"
	"github.com/palemoky/letter-challenge/internal/store"
)

// NewRedis 启动内存 Redis 并返回已连接的客户端，随测试自动回收
func NewRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

// NewStore 基于内存 Redis 创建房间存储
func NewStore(t *testing.T) (*store.RoomStore, *miniredis.Miniredis) {
	t.Helper()

	client, mr := NewRedis(t)
	s, err := store.NewRoomStore(context.Background(), client)
	require.NoError(t, err)
	return s, mr
}

// NewRoom 构造一个双人测试房间
func NewRoom(code, modeID string) *room.Room {
	return &room.Room{
		Code:        code,
		Status:      room.StatusWaiting,
		Mode:        modeID,
		TotalRounds: 5,
		RoundsWon:   map[string]int{},
		Players: map[string]*room.Player{
			"p1": room.NewPlayer("أحمد", true),
			"p2": room.NewPlayer("سارة", false),
		},
	}
}

// SetAnswers 直接往玩家子树塞答案载荷（绕过会话层）
func SetAnswers(t *testing.T, r *room.Room, playerID string, answers any) {
	t.Helper()

	raw, err := json.Marshal(answers)
	require.NoError(t, err)
	r.Players[playerID].Answers = raw
}

// FakeJudge 可编程的假判定服务。
// Verdict 决定每个词的结论；QuotaExceeded 置位后所有响应只回配额耗尽。
type FakeJudge struct {
	Verdict       func(word string) bool
	QuotaExceeded bool
	BatchCalls    int

	server *httptest.Server
}

// NewFakeJudge 启动假判定服务，默认所有词都判有效
func NewFakeJudge(t *testing.T) *FakeJudge {
	t.Helper()

	f := &FakeJudge{Verdict: func(string) bool { return true }}
	mux := http.NewServeMux()
	mux.HandleFunc("/validate", f.handleValidate)
	mux.HandleFunc("/validate/batch", f.handleBatch)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

// URL 服务地址
func (f *FakeJudge) URL() string {
	return f.server.URL
}

func (f *FakeJudge) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req protocol.ValidateRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	resp := protocol.ValidateResponse{QuotaExceeded: f.QuotaExceeded}
	if !f.QuotaExceeded {
		resp.Valid = f.Verdict(req.Word)
		resp.Source = "lexicon"
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *FakeJudge) handleBatch(w http.ResponseWriter, r *http.Request) {
	f.BatchCalls++

	var req protocol.BatchValidateRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	resp := protocol.BatchValidateResponse{RoundID: req.RoundID, QuotaExceeded: f.QuotaExceeded}
	if !f.QuotaExceeded {
		for _, e := range req.Entries {
			resp.Results = append(resp.Results, protocol.BatchEntryResult{
				PlayerID: e.PlayerID,
				Category: e.Category,
				Word:     e.Word,
				Valid:    f.Verdict(e.Word),
			})
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
