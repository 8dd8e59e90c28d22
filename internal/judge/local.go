// Package judge 实现答案判定：远程判定优先、本地启发式兜底。
// 远程服务只是无状态的 request/response 协作方，挂了不会让回合失败。
package judge

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/palemoky/letter-challenge/internal/game/room"
)

// letterVariants 字母变体归一映射
var letterVariants = map[rune]rune{
	'أ': 'ا',
	'إ': 'ا',
	'آ': 'ا',
	'ة': 'ه',
	'ى': 'ي',
}

// NormalizeLetter 归一化单个字母（取首 rune）
func NormalizeLetter(s string) string {
	for _, r := range s {
		if mapped, ok := letterVariants[r]; ok {
			return string(mapped)
		}
		return string(r)
	}
	return ""
}

// ContainsArabic 是否含有阿拉伯字符
func ContainsArabic(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Arabic, r) {
			return true
		}
	}
	return false
}

// IsArabicOnly 是否仅由阿拉伯字符与空白组成
func IsArabicOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.Is(unicode.Arabic, r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// FirstLetter 取词首字母（归一化后）。
// 定冠词「ال」不算词首；非阿拉伯词返回空串。
func FirstLetter(word string) string {
	w := strings.TrimSpace(word)
	if !ContainsArabic(w) {
		return ""
	}

	runes := []rune(w)
	if len(runes) > 2 && runes[0] == 'ا' && runes[1] == 'ل' {
		runes = runes[2:]
	}
	return NormalizeLetter(string(runes[0]))
}

// ValidateLocal 本地启发式：长度 ≥2、含阿拉伯字符、词首字母匹配。
// 这是远程判定不可用时的兜底规则。
func ValidateLocal(answer, targetLetter string) bool {
	w := strings.TrimSpace(answer)
	if len([]rune(w)) < 2 {
		return false
	}
	if !ContainsArabic(w) {
		return false
	}
	return FirstLetter(w) == NormalizeLetter(targetLetter)
}

// NormalizeForCompare 记忆模式比对前的归一化：
// 统一字母变体、去掉词尾的 ة 标记。
func NormalizeForCompare(word string) string {
	w := strings.TrimSpace(word)
	var b strings.Builder
	for _, r := range w {
		switch r {
		case 'أ', 'إ', 'آ':
			b.WriteRune('ا')
		default:
			b.WriteRune(r)
		}
	}
	s := b.String()
	if strings.HasSuffix(s, "ة") {
		s = strings.TrimSuffix(s, "ة") + "ه"
	}
	return s
}

// WordExists 欺骗模式的词形检查：只看长度与文字系统，
// 永远不判定、也不泄露谁在撒谎。
func WordExists(word string) bool {
	w := strings.TrimSpace(word)
	return len([]rune(w)) >= 2 && ContainsArabic(w)
}

// CheckConstraints 按序判定每条命名约束，返回逐条结论与总判定（全部通过才算通过）。
// 空词直接不通过。
func CheckConstraints(answer string, constraints []room.Constraint) (map[string]bool, bool) {
	results := make(map[string]bool, len(constraints))
	word := strings.TrimSpace(answer)
	if word == "" {
		return results, false
	}

	normWord := normalizeAll(word)
	runeLen := len([]rune(word))

	for _, c := range constraints {
		switch c.Type {
		case "startsWith":
			results[c.Type] = FirstLetter(word) == NormalizeLetter(c.Value)
		case "contains":
			results[c.Type] = strings.Contains(normWord, normalizeAll(c.Value))
		case "notContains":
			results[c.Type] = !strings.Contains(normWord, normalizeAll(c.Value))
		case "length":
			n, err := strconv.Atoi(c.Value)
			results[c.Type] = err == nil && runeLen == n
		case "minLength":
			n, err := strconv.Atoi(c.Value)
			results[c.Type] = err == nil && runeLen >= n
		case "endsWith":
			results[c.Type] = strings.HasSuffix(word, c.Value)
		default:
			results[c.Type] = false
		}
	}

	for _, ok := range results {
		if !ok {
			return results, false
		}
	}
	return results, len(results) > 0
}

// normalizeAll 对整个词应用字母变体归一
func normalizeAll(s string) string {
	var b strings.Builder
	for _, r := range s {
		if mapped, ok := letterVariants[r]; ok {
			b.WriteRune(mapped)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CompareRecall 记忆模式比对：归一化后做集合计数，不做任何语义判定
func CompareRecall(recalled, shown []string) (correct, total int) {
	shownSet := make(map[string]struct{}, len(shown))
	for _, w := range shown {
		shownSet[NormalizeForCompare(w)] = struct{}{}
	}

	seen := make(map[string]struct{}, len(recalled))
	for _, w := range recalled {
		n := NormalizeForCompare(w)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue // 重复回忆同一个词不重复计分
		}
		seen[n] = struct{}{}
		if _, ok := shownSet[n]; ok {
			correct++
		}
	}
	return correct, len(shown)
}
