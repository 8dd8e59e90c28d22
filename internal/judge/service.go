package judge

import (
	"context"
	"log"
	"strings"

	"github.com/palemoky/letter-challenge/internal/apperrors"
	"github.com/palemoky/letter-challenge/internal/game/mode"
	"github.com/palemoky/letter-challenge/internal/game/room"
	"github.com/palemoky/letter-challenge/internal/protocol"
)

// PointsPerValid 每个有效答案的基础分
const PointsPerValid = 10

// Service 判定服务：按模式的判定角色选择策略。
// 远程判定失败一律回落到本地启发式，唯一向上冒泡的错误是配额耗尽。
type Service struct {
	client *Client
}

// NewService 创建判定服务，client 可为 nil（纯本地）
func NewService(client *Client) *Service {
	return &Service{client: client}
}

// ValidateGrid 九宫格判定（classic/multiphase）：
// 逐分类独立判定，远程优先，失败项回落本地词首规则。
// 返回逐分类结论与总分；除 ErrQuotaExceeded 外不返回错误。
func (s *Service) ValidateGrid(ctx context.Context, roundID, playerID, modeID, letter string, answers mode.GridAnswers) (map[string]room.CategoryVerdict, int, error) {
	verdicts := make(map[string]room.CategoryVerdict, len(answers))

	// 先用本地规则铺底，远程结论覆盖
	for cat, word := range answers {
		verdicts[cat] = room.CategoryVerdict{Answer: word, Valid: ValidateLocal(word, letter)}
	}

	var quotaErr error
	if s.client.Enabled() {
		req := protocol.BatchValidateRequest{
			RoundID: roundID,
			Letter:  letter,
			Mode:    modeID,
		}
		for cat, word := range answers {
			if len(word) == 0 {
				continue // 空答案无需远程判定
			}
			req.Entries = append(req.Entries, protocol.BatchEntry{
				PlayerID: playerID,
				Category: cat,
				Word:     word,
			})
		}

		if len(req.Entries) > 0 {
			resp, err := s.client.ValidateBatch(ctx, req)
			switch {
			case err != nil:
				log.Printf("⚠️ 远程判定失败，使用本地兜底: %v", err)
			case resp.QuotaExceeded:
				quotaErr = apperrors.ErrQuotaExceeded
			default:
				for _, r := range resp.Results {
					verdicts[r.Category] = room.CategoryVerdict{Answer: r.Word, Valid: r.Valid}
				}
			}
		}
	}

	score := 0
	for cat, v := range verdicts {
		if v.Valid {
			v.Points = PointsPerValid
			score += PointsPerValid
		}
		verdicts[cat] = v
	}
	return verdicts, score, quotaErr
}

// JudgeWord 即时判定（survival）：严格本地，保证亚秒级反馈，
// 该模式明确禁用远程判定。
func (s *Service) JudgeWord(answer, letter string) bool {
	w := strings.TrimSpace(answer)
	if w == "" {
		return false
	}
	if !IsArabicOnly(w) {
		return false
	}
	return FirstLetter(w) == NormalizeLetter(letter)
}

// Recall 记忆模式比对（string-compare 角色的入口）
func (s *Service) Recall(recalled, shown []string) (correct, total int) {
	return CompareRecall(recalled, shown)
}

// Exists 欺骗模式词形检查（word-exists-only 角色的入口）
func (s *Service) Exists(word string) bool {
	return WordExists(word)
}

// Constraints 目标模式约束判定（constraint-validator 角色的入口）
func (s *Service) Constraints(word string, constraints []room.Constraint) (map[string]bool, bool) {
	return CheckConstraints(word, constraints)
}
