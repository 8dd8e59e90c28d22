// 对局客户端：行式命令界面。
// 没有中央服务器，客户端直接订阅 Redis 上的共享房间文档，
// 主持人职责由 session.Controller 在本端自动履行。
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/palemoky/letter-challenge/internal/config"
	"github.com/palemoky/letter-challenge/internal/game/mode"
	"github.com/palemoky/letter-challenge/internal/game/room"
	"github.com/palemoky/letter-challenge/internal/game/score"
	"github.com/palemoky/letter-challenge/internal/judge"
	"github.com/palemoky/letter-challenge/internal/logger"
	"github.com/palemoky/letter-challenge/internal/session"
	"github.com/palemoky/letter-challenge/internal/store"
)

const helpText = `命令:
  create <昵称> <模式> [回合数]  创建房间 (classic/multiphase/survival/memory/bluff/objective)
  join <房间号> <昵称>      加入房间
  start                     开始游戏（主持人）
  answer <内容>             填写/提交答案，格式随模式:
                              九宫格:   answer fruit=تفاح animal=أسد
                              单词:     answer منزل
                              记忆:     answer أسد,موز,قلم [risk]
                              欺骗:     answer سديم lie / answer vote 0
  stop                      喊停（规则允许时）
  again / accept / decline  再来一局握手
  leave                     离开房间
  quit                      退出`

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	flag.Parse()

	if err := logger.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r)
			fmt.Fprintf(os.Stderr, "程序异常退出，详情见日志: %s\n", logger.GetLogPath())
			os.Exit(1)
		}
	}()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	st, err := store.NewRoomStore(ctx, rdb)
	if err != nil {
		fmt.Fprintf(os.Stderr, "连接 Redis 失败: %v\n", err)
		os.Exit(1)
	}

	client := judge.NewClient(cfg.Judge.URL, cfg.Judge.TimeoutDuration())
	svc := judge.NewService(client)
	ctrl := session.NewController(st, score.NewAggregator(svc), cfg)
	defer ctrl.Close()

	fmt.Println("🎮 تحدي الحروف — 字母挑战")
	fmt.Println(helpText)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !dispatch(ctx, ctrl, line) {
			break
		}
	}

	_ = ctrl.LeaveRoom(ctx)
}

// dispatch 解析并执行一条命令，返回 false 表示退出
func dispatch(ctx context.Context, ctrl *session.Controller, line string) bool {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	var err error
	switch cmd {
	case "create":
		if len(args) < 2 {
			fmt.Println("用法: create <昵称> <模式> [回合数]")
			return true
		}
		rounds := 0
		if len(args) > 2 {
			rounds, err = strconv.Atoi(args[2])
			if err != nil {
				fmt.Println("回合数必须是数字")
				return true
			}
		}
		var code string
		code, err = ctrl.CreateRoom(ctx, args[0], args[1], rounds)
		if err == nil {
			fmt.Printf("🏠 房间号: %s（等待对手加入）\n", code)
			// 事件通道跟随一次入驻，离开房间后随归约循环关闭
			go printEvents(ctrl.Events())
		}

	case "join":
		if len(args) < 2 {
			fmt.Println("用法: join <房间号> <昵称>")
			return true
		}
		err = ctrl.JoinRoom(ctx, strings.ToUpper(args[0]), args[1])
		if err == nil {
			go printEvents(ctrl.Events())
		}

	case "start":
		err = ctrl.StartGame(ctx)

	case "answer":
		err = submitAnswer(ctx, ctrl, args)

	case "stop":
		err = ctrl.RequestStop(ctx)

	case "again":
		err = ctrl.PlayAgain(ctx)
	case "accept":
		err = ctrl.AcceptPlayAgain(ctx)
	case "decline":
		err = ctrl.DeclinePlayAgain(ctx)

	case "leave":
		err = ctrl.LeaveRoom(ctx)

	case "help":
		fmt.Println(helpText)

	case "quit", "exit":
		return false

	default:
		fmt.Printf("未知命令: %s（输入 help 查看用法）\n", cmd)
	}

	if err != nil {
		fmt.Printf("⚠️  %v\n", err)
		logger.LogError("命令 %s 失败: %v", cmd, err)
	}
	return true
}

// submitAnswer 按当前模式把命令行参数组装成答案载荷
func submitAnswer(ctx context.Context, ctrl *session.Controller, args []string) error {
	r := ctrl.Snapshot()
	if r == nil {
		return fmt.Errorf("尚未加入房间")
	}
	cfg, err := mode.GetModeConfig(r.Mode)
	if err != nil {
		return err
	}

	var a mode.Answers
	switch cfg.Role {
	case mode.RoleValidator:
		grid := mode.GridAnswers{}
		for _, kv := range args {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("九宫格答案格式: 分类=单词")
			}
			grid[k] = v
		}
		a = grid

	case mode.RoleStringCompare:
		if len(args) == 0 {
			return fmt.Errorf("用法: answer 词1,词2,... [risk]")
		}
		recall := mode.RecallAnswers{Words: strings.Split(args[0], ",")}
		if len(args) > 1 && args[1] == "risk" {
			recall.Risk = true
		}
		a = recall

	case mode.RoleWordExists:
		if len(args) == 0 {
			return fmt.Errorf("用法: answer <单词> [lie] / answer vote <序号>")
		}
		if args[0] == "vote" && len(args) > 1 {
			idx, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("投票序号必须是数字")
			}
			prev := currentBluff(r, ctrl.PlayerID())
			prev.Vote = &idx
			a = prev
			break
		}
		bluff := mode.BluffAnswer{Answer: args[0]}
		if len(args) > 1 && args[1] == "lie" {
			bluff.Lied = true
		}
		a = bluff

	default: // RoleInstantJudge / RoleConstraint
		if len(args) == 0 {
			return fmt.Errorf("用法: answer <单词>")
		}
		a = mode.WordAnswer{Answer: args[0]}
	}

	return ctrl.SubmitAnswers(ctx, a)
}

// currentBluff 取出自己已写入的欺骗答案（投票时不能丢掉已提交的单词）
func currentBluff(r *room.Room, playerID string) mode.BluffAnswer {
	p := r.Players[playerID]
	if p == nil {
		return mode.BluffAnswer{}
	}
	answers, err := mode.DecodeAnswers(r.Mode, p.Answers)
	if err != nil {
		return mode.BluffAnswer{}
	}
	bluff, _ := answers.(mode.BluffAnswer)
	return bluff
}

// printEvents 消费会话事件并渲染到终端，通道关闭即退出
func printEvents(events <-chan session.Event) {
	for e := range events {
		switch e.Kind {
		case session.EventNewRound:
			r := e.Room
			fmt.Printf("\n🔤 第 %d/%d 回合 | 模式 %s | 字母「%s」| 阶段 %s（%d 秒）\n> ",
				r.CurrentRoundNumber, r.TotalRounds, r.ModeName, r.Letter, phaseLabel(r.Phase), r.PhaseDuration)
			printModeContext(r)

		case session.EventPhaseChanged:
			r := e.Room
			fmt.Printf("\n⏱️  阶段切换 → %s（%d 秒）\n> ", phaseLabel(r.Phase), r.PhaseDuration)

		case session.EventResults:
			fmt.Println("\n📊 回合结果:")
			printResults(e.Room)
			fmt.Print("> ")

		case session.EventGameFinished:
			fmt.Println("\n🏁 游戏结束！最终战绩:")
			printResults(e.Room)
			printFinal(e.Room)
			fmt.Print("> ")

		case session.EventBecameHost:
			fmt.Print("\n👑 对方离开，你已成为主持人\n> ")

		case session.EventPlayAgainPrompt:
			fmt.Print("\n🔁 对方想再来一局（accept / decline）\n> ")

		case session.EventPlayAgainDeclined:
			fmt.Print("\n🙅 对方拒绝了再来一局\n> ")

		case session.EventRoomClosed:
			fmt.Printf("\n🚪 %s\n> ", e.Message)

		case session.EventToast:
			fmt.Printf("\n💬 %s\n> ", e.Message)
		}
		log.Printf("事件: %s", e.Kind)
	}
}

// phaseLabel 阶段的阿拉伯语显示名
func phaseLabel(phase string) string {
	if pc := mode.GetPhaseConfig(phase); pc != nil {
		return pc.Name
	}
	return phase
}

// printModeContext 渲染模式专属提示
func printModeContext(r *room.Room) {
	mc := r.ModeContext
	if mc == nil {
		return
	}
	switch {
	case len(mc.Words) > 0 && r.Phase == "show":
		fmt.Printf("🧠 记住这些词: %s\n> ", strings.Join(mc.Words, "، "))
	case mc.CurrentCategory != "":
		if cat, ok := mode.CategoryByID(mc.CurrentCategory); ok {
			fmt.Printf("📋 分类: %s\n> ", cat.Prompt)
		}
	case mc.Category != "":
		if cat, ok := mode.CategoryByID(mc.Category); ok {
			fmt.Printf("📋 分类: %s\n> ", cat.Prompt)
		}
	case len(mc.Constraints) > 0:
		fmt.Println("🎯 约束:")
		for _, con := range mc.Constraints {
			fmt.Printf("   - %s\n", con.Label)
		}
		fmt.Print("> ")
	}
}

// printResults 渲染回合结果表
func printResults(r *room.Room) {
	for _, res := range r.RoundResults {
		fmt.Printf("  %s: 本回合 %d 分 | 累计 %d 分", res.Name, res.Score, res.CumulativeScore)
		if res.WasLying {
			fmt.Print(" | 承认撒谎")
		}
		if res.VoteCorrect {
			fmt.Print(" | 投票命中")
		}
		fmt.Println()
	}
}

// printFinal 渲染终局胜者
func printFinal(r *room.Room) {
	winner := score.FinalWinner(r)
	if winner == "" {
		fmt.Println("🤝 平局！")
		return
	}
	if p := r.Players[winner]; p != nil {
		fmt.Printf("🏆 胜者: %s\n", p.Name)
	}
}
