package market

import "strings"

// Board 表示股票所属板块，仅由代码前缀推断得出。
// 前缀推断不是权威数据，但对涨停幅度判断足够可靠。
type Board int

const (
	BoardMain    Board = iota // 沪深主板
	BoardGrowth               // 创业板/科创板
	BoardBeijing              // 北交所
)

// BareCode 去掉交易所后缀，如 600000.SH -> 600000。
func BareCode(code string) string {
	if idx := strings.IndexByte(code, '.'); idx > 0 {
		return code[:idx]
	}
	return code
}

// BoardOf 根据代码前缀推断板块。
func BoardOf(code string) Board {
	bare := BareCode(code)
	switch {
	case strings.HasPrefix(bare, "30"), strings.HasPrefix(bare, "68"):
		return BoardGrowth
	case strings.HasPrefix(bare, "92"):
		return BoardBeijing
	case strings.HasPrefix(bare, "8"), strings.HasPrefix(bare, "4"):
		return BoardBeijing
	default:
		return BoardMain
	}
}
