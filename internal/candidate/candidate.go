package candidate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// List 是一次选股的产出，日期格式为 2006-01-02。
// 夜间下单与盘中监控都以磁盘上的这份文件为准，
// 进程重启后无需重跑选股。
type List struct {
	Date        string    `json:"date"`
	Codes       []string  `json:"codes"`
	GeneratedAt time.Time `json:"generated_at"`
	Count       int       `json:"count"`
}

// ErrNotFound 表示候选文件尚不存在。
var ErrNotFound = errors.New("candidate: 候选文件不存在")

// NewList 按当前时刻构建候选列表。
func NewList(date string, codes []string, now time.Time) List {
	return List{
		Date:        date,
		Codes:       codes,
		GeneratedAt: now,
		Count:       len(codes),
	}
}

// Contains 判断代码是否在候选内。
func (l List) Contains(code string) bool {
	for _, c := range l.Codes {
		if c == code {
			return true
		}
	}
	return false
}

// Save 原子落盘：先写临时文件再 rename，读方永远看不到半截文件。
func Save(path string, list List) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("创建候选目录失败: %w", err)
		}
	}

	payload, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化候选列表失败: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("写入候选临时文件失败: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("替换候选文件失败: %w", err)
	}
	return nil
}

// Load 读取候选文件。文件不存在返回 ErrNotFound，由调用方按"今日无候选"处理。
func Load(path string) (List, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return List{}, ErrNotFound
		}
		return List{}, fmt.Errorf("读取候选文件失败: %w", err)
	}

	var list List
	if err := json.Unmarshal(raw, &list); err != nil {
		return List{}, fmt.Errorf("解析候选文件失败: %w", err)
	}
	return list, nil
}

// LoadForDate 读取候选文件并校验日期，日期不匹配视为无候选。
func LoadForDate(path, date string) (List, error) {
	list, err := Load(path)
	if err != nil {
		return List{}, err
	}
	if list.Date != date {
		return List{}, fmt.Errorf("%w: 候选日期 %s 不是 %s", ErrNotFound, list.Date, date)
	}
	return list, nil
}
