package mode

import (
	"math/rand/v2"
	"strconv"

	"github.com/palemoky/letter-challenge/internal/game/room"
)

// Category 经典模式的分类
type Category struct {
	ID     string
	Label  string
	Prompt string
}

// Categories 九宫格分类表
var Categories = []Category{
	{ID: "boyName", Label: "اسم ولد", Prompt: "اسم ولد (ذكر)"},
	{ID: "girlName", Label: "اسم بنت", Prompt: "اسم بنت (أنثى)"},
	{ID: "vegetable", Label: "خضار", Prompt: "نوع خضار"},
	{ID: "fruit", Label: "فواكه", Prompt: "نوع فاكهة"},
	{ID: "object", Label: "جماد", Prompt: "جماد (شيء غير حي)"},
	{ID: "animal", Label: "حيوان", Prompt: "اسم حيوان"},
	{ID: "country", Label: "بلاد", Prompt: "اسم دولة/بلد"},
	{ID: "city", Label: "مدينة", Prompt: "اسم مدينة"},
	{ID: "job", Label: "مهنة", Prompt: "اسم مهنة/وظيفة"},
}

// CategoryByID 按 ID 查分类
func CategoryByID(id string) (Category, bool) {
	for _, c := range Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// letters 28 个阿拉伯字母
var letters = []string{
	"ا", "ب", "ت", "ث", "ج", "ح", "خ", "د", "ذ", "ر", "ز", "س", "ش", "ص",
	"ض", "ط", "ظ", "ع", "غ", "ف", "ق", "ك", "ل", "م", "ن", "ه", "و", "ي",
}

// memoryWordPool 记忆模式词池
var memoryWordPool = []string{
	"أسد", "نمر", "فيل", "زرافة", "قرد", "جمل", "غزال", "ذئب",
	"تفاح", "موز", "عنب", "رمان", "خوخ", "تين",
	"قلم", "كتاب", "مفتاح", "ساعة", "مرآة", "سرير",
}

// MemoryWordCount 记忆模式每回合展示的词数
const MemoryWordCount = 5

// RandomLetter 随机抽一个字母
func RandomLetter() string {
	return letters[rand.IntN(len(letters))]
}

// RandomCategory 随机抽一个分类
func RandomCategory() Category {
	return Categories[rand.IntN(len(Categories))]
}

// randomMemoryWords 从词池中抽 n 个互不重复的词
func randomMemoryWords(n int) []string {
	idx := rand.Perm(len(memoryWordPool))
	words := make([]string, 0, n)
	for _, i := range idx[:n] {
		words = append(words, memoryWordPool[i])
	}
	return words
}

// BuildModeContext 按模式重建回合上下文。
// 每回合开始时调用一次，旧上下文整体丢弃。
func BuildModeContext(modeID, letter string) (*room.ModeContext, error) {
	cfg, err := GetModeConfig(modeID)
	if err != nil {
		return nil, err
	}

	switch cfg.ID {
	case Survival:
		return &room.ModeContext{CurrentCategory: RandomCategory().ID}, nil
	case Memory:
		return &room.ModeContext{
			Words:          randomMemoryWords(MemoryWordCount),
			ShowDuration:   cfg.Duration("show"),
			RecallDuration: cfg.Duration("recall"),
		}, nil
	case Bluff:
		return &room.ModeContext{Category: RandomCategory().ID}, nil
	case Objective:
		return &room.ModeContext{Constraints: randomConstraints(letter)}, nil
	default:
		return &room.ModeContext{}, nil
	}
}

// randomConstraints 生成目标模式的约束组：
// 必含「以指定字母开头」，再抽一条附加约束。
func randomConstraints(letter string) []room.Constraint {
	constraints := []room.Constraint{
		{Type: "startsWith", Value: letter, Label: "يبدأ بحرف " + letter},
	}

	switch rand.IntN(3) {
	case 0:
		l := RandomLetter()
		constraints = append(constraints, room.Constraint{
			Type: "contains", Value: l, Label: "يحتوي على حرف " + l,
		})
	case 1:
		l := RandomLetter()
		constraints = append(constraints, room.Constraint{
			Type: "notContains", Value: l, Label: "لا يحتوي على حرف " + l,
		})
	default:
		n := 3 + rand.IntN(3) // 3-5 أحرف
		constraints = append(constraints, room.Constraint{
			Type: "minLength", Value: strconv.Itoa(n), Label: "من " + strconv.Itoa(n) + " أحرف على الأقل",
		})
	}

	return constraints
}
