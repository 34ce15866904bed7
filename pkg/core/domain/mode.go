package domain

import "strings"

// Mode 记录的运行模式 (由原始 Type 字段分类得到)
type Mode string

const (
	ModeUnknown Mode = ""      // 未识别 (过渡状态等), 所有成员标记为 false
	ModeAtm     Mode = "atm"   // 大气 (Ambient)
	ModeEqu     Mode = "equ"   // 平衡器 (Equilibrator)
	ModeSleep   Mode = "sleep" // GO TO SLEEP
	ModeWake    Mode = "wake"  // WAKE UP
)

const standardModePrefix = "std"

// StandardMode 返回标准气通道 id (e.g. "2", "2s", "1z") 对应的模式
func StandardMode(id string) Mode {
	return Mode(standardModePrefix + id)
}

// StandardID 若 m 为标准气模式则返回其通道 id
func (m Mode) StandardID() (string, bool) {
	s := string(m)
	if !strings.HasPrefix(s, standardModePrefix) {
		return "", false
	}
	return strings.TrimPrefix(s, standardModePrefix), true
}

// IsStandard 判断是否为标准气运行模式
func (m Mode) IsStandard() bool {
	_, ok := m.StandardID()
	return ok
}

// modeVocabulary 固定词表: 精确匹配, DRAIN 变体并入同一类
var modeVocabulary = buildVocabulary()

func buildVocabulary() map[string]Mode {
	v := map[string]Mode{
		"ATM":         ModeAtm,
		"ATM-DRAIN":   ModeAtm,
		"EQU":         ModeEqu,
		"EQU-DRAIN":   ModeEqu,
		"GO TO SLEEP": ModeSleep,
		"WAKE UP":     ModeWake,
	}
	add := func(tag, id string) {
		v[tag] = StandardMode(id)
		v[tag+"-DRAIN"] = StandardMode(id)
	}
	add("STD1", "1")
	add("STD1z", "1z")
	for _, n := range []string{"2", "3", "4", "5"} {
		add("STD"+n, n)
		add("STD"+n+"s", n+"s")
	}
	return v
}

// Classify 将原始模式标签映射为 Mode; 未知标签返回 ModeUnknown, 不报错
func Classify(tag string) Mode {
	return modeVocabulary[tag]
}
