package candidate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "candidates.json")
	now := time.Date(2026, 8, 21, 15, 38, 0, 0, time.UTC)
	want := NewList("2026-08-21", []string{"300001.SZ", "600519.SH"}, now)

	if err := Save(path, want); err != nil {
		t.Fatalf("保存候选失败: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("读取候选失败: %v", err)
	}
	if got.Date != want.Date || got.Count != 2 || len(got.Codes) != 2 {
		t.Errorf("候选内容不一致: got %+v", got)
	}
	if !got.GeneratedAt.Equal(now) {
		t.Errorf("生成时间不一致: got %v", got.GeneratedAt)
	}
	if !got.Contains("300001.SZ") || got.Contains("000001.SZ") {
		t.Error("Contains 判断错误")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("缺失文件应返回 ErrNotFound: got %v", err)
	}
}

func TestLoadForDateMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candidates.json")
	list := NewList("2026-08-20", []string{"300001.SZ"}, time.Now())
	if err := Save(path, list); err != nil {
		t.Fatalf("保存候选失败: %v", err)
	}

	if _, err := LoadForDate(path, "2026-08-21"); !errors.Is(err, ErrNotFound) {
		t.Errorf("日期不符应视同无候选: got %v", err)
	}
	if _, err := LoadForDate(path, "2026-08-20"); err != nil {
		t.Errorf("日期相符应读取成功: got %v", err)
	}
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "candidates.json")
	if err := Save(path, NewList("2026-08-21", nil, time.Now())); err != nil {
		t.Fatalf("保存候选失败: %v", err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("临时文件应在 rename 后消失")
	}
}

func TestEmptyListIsValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candidates.json")
	if err := Save(path, NewList("2026-08-21", []string{}, time.Now())); err != nil {
		t.Fatalf("保存空候选失败: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("读取空候选失败: %v", err)
	}
	if got.Count != 0 {
		t.Errorf("空候选 Count 应为0: got %d", got.Count)
	}
}
