package market

import "testing"

func testLimitParams() LimitParams {
	return LimitParams{
		RatioMain:    0.10,
		RatioGrowth:  0.20,
		RatioBeijing: 0.30,
		RatioST:      0.05,
		TolClosed:    0.015,
		TolIntraday:  0.02,
	}
}

func TestIsLimitUp_FailsClosedOnInvalidPreClose(t *testing.T) {
	p := testLimitParams()

	bar := Bar{Close: 11.0, High: 11.0, PreClose: 0}
	if p.IsLimitUp("600000.SH", false, bar, false) {
		t.Errorf("preClose=0 应判定为未涨停")
	}

	bar.PreClose = -1
	if p.IsLimitUp("600000.SH", false, bar, false) {
		t.Errorf("preClose<0 应判定为未涨停")
	}
}

func TestIsLimitUp_ExactBoundaryPerBoard(t *testing.T) {
	p := testLimitParams()

	cases := []struct {
		code  string
		ratio float64
	}{
		{"600000.SH", 0.10},
		{"000001.SZ", 0.10},
		{"300001.SZ", 0.20},
		{"688001.SH", 0.20},
		{"830001.BJ", 0.30},
		{"430001.BJ", 0.30},
		{"920001.BJ", 0.30},
	}

	for _, tc := range cases {
		preClose := 10.0
		close := preClose * (1 + tc.ratio)
		bar := Bar{Close: close, High: close, PreClose: preClose}
		if !p.IsLimitUp(tc.code, false, bar, false) {
			t.Errorf("%s 恰好封死涨停价应判定为涨停", tc.code)
		}
	}
}

func TestIsLimitUp_BrokenSealRejectedWhenClosed(t *testing.T) {
	p := testLimitParams()

	// 收盘价低于最高价（炸板），已收盘K线必须剔除
	bar := Bar{Close: 10.95, High: 11.0, PreClose: 10.0}
	if p.IsLimitUp("600000.SH", false, bar, false) {
		t.Errorf("炸板K线不应判定为涨停")
	}

	// 盘中K线跳过封板检查，只看涨幅是否进入容差区间
	if !p.IsLimitUp("600000.SH", false, bar, true) {
		t.Errorf("盘中涨幅 9.5%% 进入容差区间，应判定为涨停")
	}
}

func TestIsLimitUp_ToleranceDiffersIntraday(t *testing.T) {
	p := testLimitParams()

	// 涨幅 8.2%：低于收盘容差阈值 8.5%，也低于盘中阈值 8%之上的要求吗？
	// 盘中阈值 = 10% - 2% = 8%，所以 8.2% 盘中通过、收盘不通过。
	bar := Bar{Close: 10.82, High: 10.82, PreClose: 10.0}
	if p.IsLimitUp("600000.SH", false, bar, false) {
		t.Errorf("8.2%% 不应通过收盘判定（阈值 8.5%%）")
	}
	if !p.IsLimitUp("600000.SH", false, bar, true) {
		t.Errorf("8.2%% 应通过盘中判定（阈值 8%%）")
	}
}

func TestIsLimitUp_STUsesReducedRatio(t *testing.T) {
	p := testLimitParams()

	bar := Bar{Close: 10.5, High: 10.5, PreClose: 10.0}
	if !p.IsLimitUp("600000.SH", true, bar, false) {
		t.Errorf("ST股 5%% 涨幅应判定为涨停")
	}
	if p.IsLimitUp("600000.SH", false, bar, false) {
		t.Errorf("非ST主板股 5%% 涨幅不应判定为涨停")
	}
}

func TestNextLimitPrice(t *testing.T) {
	p := testLimitParams()

	if got := p.NextLimitPrice("600000.SH", false, 10.0); got != 11.0 {
		t.Errorf("主板涨停价计算错误: got %v want 11.0", got)
	}
	if got := p.NextLimitPrice("300001.SZ", false, 12.0); got != 14.4 {
		t.Errorf("创业板涨停价计算错误: got %v want 14.4", got)
	}
	// 四舍五入到两位小数
	if got := p.NextLimitPrice("600000.SH", false, 10.07); got != 11.08 {
		t.Errorf("涨停价舍入错误: got %v want 11.08", got)
	}
	if got := p.NextLimitPrice("600000.SH", false, 0); got != 0 {
		t.Errorf("昨收无效时应返回0, got %v", got)
	}
}

func TestBoardOf(t *testing.T) {
	cases := map[string]Board{
		"600000.SH": BoardMain,
		"000001.SZ": BoardMain,
		"002415.SZ": BoardMain,
		"300750.SZ": BoardGrowth,
		"688981.SH": BoardGrowth,
		"830799.BJ": BoardBeijing,
		"430047.BJ": BoardBeijing,
		"920099.BJ": BoardBeijing,
	}
	for code, want := range cases {
		if got := BoardOf(code); got != want {
			t.Errorf("BoardOf(%s) = %v, want %v", code, got, want)
		}
	}
}
