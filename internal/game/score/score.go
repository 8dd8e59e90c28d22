// Package score 汇总回合结果：按模式计分、累计总分、判定回合与整局胜者。
// 所有函数都是文档值上的纯计算，写回文档由会话控制器负责。
package score

import (
	"context"
	"sort"

	"github.com/palemoky/letter-challenge/internal/game/mode"
	"github.com/palemoky/letter-challenge/internal/game/room"
	"github.com/palemoky/letter-challenge/internal/judge"
)

// ObjectivePassPoints 目标模式约束全部通过的固定加分
const ObjectivePassPoints = 20

// RiskBonus 记忆模式冒险全对的加分
const RiskBonus = 2

// Aggregator 结果汇总器
type Aggregator struct {
	svc *judge.Service
}

// NewAggregator 创建汇总器
func NewAggregator(svc *judge.Service) *Aggregator {
	return &Aggregator{svc: svc}
}

// ComputeRound 计算本回合全部玩家的结果。
// 唯一可能返回的错误是远程判定配额耗尽（apperrors.ErrQuotaExceeded），
// 此时 results 中仍携带本地兜底算出的结论，调用方必须直接终局。
func (a *Aggregator) ComputeRound(ctx context.Context, r *room.Room) (map[string]*room.RoundResult, error) {
	cfg, err := mode.GetModeConfig(r.Mode)
	if err != nil {
		return nil, err
	}

	results := make(map[string]*room.RoundResult, len(r.Players))
	var quotaErr error

	for _, pid := range sortedPlayerIDs(r) {
		player := r.Players[pid]
		res := &room.RoundResult{Name: player.Name}

		answers, err := mode.DecodePlayerAnswers(r.Mode, player)
		if err != nil {
			// 形状不对按无效作答处理，绝不让回合失败
			answers, _ = mode.DecodeAnswers(r.Mode, nil)
		}

		switch cfg.Role {
		case mode.RoleValidator:
			grid := answers.(mode.GridAnswers)
			verdicts, pts, err := a.svc.ValidateGrid(ctx, r.RoundID, pid, r.Mode, r.Letter, grid)
			if err != nil {
				quotaErr = err
			}
			res.Answers = verdicts
			res.Score = pts

		case mode.RoleInstantJudge:
			word := answers.(mode.WordAnswer)
			if a.svc.JudgeWord(word.Answer, r.Letter) {
				res.Score = judge.PointsPerValid * (player.Streak + 1)
			}

		case mode.RoleStringCompare:
			recall := answers.(mode.RecallAnswers)
			shown := []string{}
			if r.ModeContext != nil {
				shown = r.ModeContext.Words
			}
			correct, total := a.svc.Recall(recall.Words, shown)
			res.Correct = correct
			res.Total = total
			res.Score = correct * judge.PointsPerValid
			if recall.Risk {
				if correct == total {
					res.Score += RiskBonus
				} else {
					res.Score = 0
				}
			}

		case mode.RoleWordExists:
			bluff := answers.(mode.BluffAnswer)
			res.WasLying = bluff.Lied
			if a.svc.Exists(bluff.Answer) {
				res.Score = judge.PointsPerValid
			}

		case mode.RoleConstraint:
			word := answers.(mode.WordAnswer)
			constraints := []room.Constraint{}
			if r.ModeContext != nil {
				constraints = r.ModeContext.Constraints
			}
			verdicts, passed := a.svc.Constraints(word.Answer, constraints)
			res.Constraints = verdicts
			res.Passed = passed
			if passed {
				res.Score = ObjectivePassPoints
			}
		}

		results[pid] = res
	}

	if cfg.Role == mode.RoleWordExists {
		a.scoreBluffVotes(r, results)
	}

	for pid, res := range results {
		res.CumulativeScore = r.Players[pid].CumulativeScore + res.Score
	}
	return results, quotaErr
}

// scoreBluffVotes 统计投票：投中自报撒谎的答案得加分。
// 撒谎者永远不由系统判定，wasLying 完全来自玩家自己的声明。
func (a *Aggregator) scoreBluffVotes(r *room.Room, results map[string]*room.RoundResult) {
	order := sortedPlayerIDs(r)

	for pid, res := range results {
		answers, err := mode.DecodePlayerAnswers(r.Mode, r.Players[pid])
		if err != nil {
			continue
		}
		bluff := answers.(mode.BluffAnswer)
		if bluff.Vote == nil {
			continue
		}

		idx := *bluff.Vote
		if idx < 0 || idx >= len(order) {
			continue
		}
		target := results[order[idx]]
		if target != nil && target.WasLying && order[idx] != pid {
			res.VoteCorrect = true
			res.Score += judge.PointsPerValid
		}
	}
}

// RoundWinner 判定回合胜者：严格比分，平局返回空串（无胜者）
func RoundWinner(results map[string]*room.RoundResult) string {
	winner := ""
	best := -1
	tie := false

	for _, pid := range sortedResultIDs(results) {
		s := results[pid].Score
		switch {
		case s > best:
			winner, best, tie = pid, s, false
		case s == best:
			tie = true
		}
	}

	if tie {
		return ""
	}
	return winner
}

// FinalWinner 判定整局胜者：累计总分优先，回合胜场次之，仍平则无胜者
func FinalWinner(r *room.Room) string {
	type standing struct {
		id    string
		total int
		won   int
	}

	standings := make([]standing, 0, len(r.Players))
	for _, pid := range sortedPlayerIDs(r) {
		standings = append(standings, standing{
			id:    pid,
			total: r.Players[pid].CumulativeScore,
			won:   r.RoundsWon[pid],
		})
	}
	if len(standings) < 2 {
		if len(standings) == 1 {
			return standings[0].id
		}
		return ""
	}

	sort.Slice(standings, func(i, j int) bool {
		if standings[i].total != standings[j].total {
			return standings[i].total > standings[j].total
		}
		return standings[i].won > standings[j].won
	})

	first, second := standings[0], standings[1]
	if first.total == second.total && first.won == second.won {
		return "" // 彻底平局
	}
	return first.id
}

// sortedPlayerIDs 玩家 ID 的确定性顺序（投票序号等依赖它）
func sortedPlayerIDs(r *room.Room) []string {
	ids := make([]string, 0, len(r.Players))
	for id := range r.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedResultIDs(results map[string]*room.RoundResult) []string {
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
