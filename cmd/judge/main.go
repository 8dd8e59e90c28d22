// 判定服务：对局客户端的远程单词裁判。
// 词库命中优先，未配置词库时回落启发式规则；
// 每日配额耗尽后不再裁判，只回 quotaExceeded，由客户端决定终局。
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/palemoky/letter-challenge/internal/config"
	"github.com/palemoky/letter-challenge/internal/judge"
	"github.com/palemoky/letter-challenge/internal/protocol"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "judge_requests_total",
		Help: "判定请求总数",
	}, []string{"endpoint"})

	verdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "judge_verdicts_total",
		Help: "判定结论总数",
	}, []string{"source", "valid"})

	quotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "judge_quota_remaining",
		Help: "当日剩余配额，-1 表示不限",
	})
)

// lexicon 词库：按归一化词形索引
type lexicon struct {
	words map[string]struct{}
}

// loadLexicon 加载词库文件（每行一个词，# 开头为注释）
func loadLexicon(path string) (*lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	lex := &lexicon{words: make(map[string]struct{})}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		w := strings.TrimSpace(scanner.Text())
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		lex.words[judge.NormalizeForCompare(w)] = struct{}{}
	}
	return lex, scanner.Err()
}

// contains 词库中是否存在该词（归一化比对）
func (l *lexicon) contains(word string) bool {
	_, ok := l.words[judge.NormalizeForCompare(strings.TrimSpace(word))]
	return ok
}

// quotaGate 每日配额闸门，limit<=0 表示不限
type quotaGate struct {
	mu    sync.Mutex
	limit int
	used  int
	day   string
}

func newQuotaGate(limit int) *quotaGate {
	if limit <= 0 {
		quotaRemaining.Set(-1)
	} else {
		quotaRemaining.Set(float64(limit))
	}
	return &quotaGate{limit: limit}
}

// take 消耗 n 次配额，返回是否仍在额度内。跨日自动清零。
func (q *quotaGate) take(n int) bool {
	if q.limit <= 0 {
		return true
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	today := time.Now().Format("2006-01-02")
	if q.day != today {
		q.day = today
		q.used = 0
	}

	if q.used+n > q.limit {
		quotaRemaining.Set(0)
		return false
	}
	q.used += n
	quotaRemaining.Set(float64(q.limit - q.used))
	return true
}

// judgeServer 判定服务本体
type judgeServer struct {
	lex   *lexicon // 可为 nil
	quota *quotaGate
}

// verdict 单词裁决：词库命中优先，否则启发式
func (s *judgeServer) verdict(word, letter string) (valid bool, source string) {
	if !judge.ValidateLocal(word, letter) {
		// 词首或词形不合格，词库也救不回来
		return false, "heuristic"
	}
	if s.lex != nil {
		return s.lex.contains(word), "lexicon"
	}
	return true, "heuristic"
}

// handleValidate POST /validate
func (s *judgeServer) handleValidate(c *gin.Context) {
	requestsTotal.WithLabelValues("validate").Inc()

	var req protocol.ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !s.quota.take(1) {
		c.JSON(http.StatusOK, protocol.ValidateResponse{QuotaExceeded: true})
		return
	}

	valid, source := s.verdict(req.Word, req.Letter)
	verdictsTotal.WithLabelValues(source, fmt.Sprint(valid)).Inc()
	c.JSON(http.StatusOK, protocol.ValidateResponse{Valid: valid, Source: source})
}

// handleBatch POST /validate/batch
func (s *judgeServer) handleBatch(c *gin.Context) {
	requestsTotal.WithLabelValues("batch").Inc()

	var req protocol.BatchValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !s.quota.take(len(req.Entries)) {
		c.JSON(http.StatusOK, protocol.BatchValidateResponse{
			RoundID:       req.RoundID,
			QuotaExceeded: true,
		})
		return
	}

	resp := protocol.BatchValidateResponse{RoundID: req.RoundID}
	for _, e := range req.Entries {
		valid, source := s.verdict(e.Word, req.Letter)
		verdictsTotal.WithLabelValues(source, fmt.Sprint(valid)).Inc()
		resp.Results = append(resp.Results, protocol.BatchEntryResult{
			PlayerID: e.PlayerID,
			Category: e.Category,
			Word:     e.Word,
			Valid:    valid,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// newRouter 组装路由
func newRouter(s *judgeServer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/validate", s.handleValidate)
	r.POST("/validate/batch", s.handleBatch)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("❌ 加载配置失败: %v", err)
		}
		cfg = loaded
	}

	srv := &judgeServer{quota: newQuotaGate(cfg.Judge.DayQuota)}
	if cfg.Judge.Lexicon != "" {
		lex, err := loadLexicon(cfg.Judge.Lexicon)
		if err != nil {
			log.Fatalf("❌ 加载词库失败: %v", err)
		}
		srv.lex = lex
		log.Printf("📚 词库加载完成，共 %d 个词", len(lex.words))
	} else {
		log.Printf("📚 未配置词库，使用启发式判定")
	}

	gin.SetMode(gin.ReleaseMode)
	addr := fmt.Sprintf("%s:%d", cfg.Judge.Host, cfg.Judge.Port)
	log.Printf("🚀 判定服务启动于 %s", addr)
	if err := newRouter(srv).Run(addr); err != nil {
		log.Fatalf("❌ 判定服务退出: %v", err)
	}
}
