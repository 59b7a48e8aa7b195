// MockDriver 的浏览器驱动测试模拟实现。
//
// 支持脚本化文本序列、元素存在性配置与错误注入场景。
package mocks

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/BaSui01/webbridge/browser"
)

// --- MockDriver 结构 ---

// DriverCall 记录单次驱动调用
type DriverCall struct {
	Method   string
	Selector string
	Value    string
}

// MockDriver 是 browser.Driver 的模拟实现
//
// 文本序列按选择器配置：每次 Text/LastText 调用弹出下一个值，
// 耗尽后持续返回最后一个值，用于模拟流式响应逐步增长的页面文本。
type MockDriver struct {
	mu sync.Mutex

	// 响应配置
	texts       map[string][]string
	textIdx     map[string]int
	exists      map[string]bool
	existsAfter map[string]int
	existsCalls map[string]int
	evalResult  map[string]any
	cookies     []browser.Cookie
	currentURL  string
	popup       *MockDriver

	// 错误注入：方法名 -> 错误
	errs map[string]error

	// 调用记录
	calls []DriverCall

	closed bool
}

// NewMockDriver 创建新的 MockDriver
func NewMockDriver() *MockDriver {
	return &MockDriver{
		texts:       make(map[string][]string),
		textIdx:     make(map[string]int),
		exists:      make(map[string]bool),
		existsAfter: make(map[string]int),
		existsCalls: make(map[string]int),
		evalResult:  make(map[string]any),
		errs:        make(map[string]error),
	}
}

// --- Builder 方法 ---

// WithText 配置选择器的文本序列
func (d *MockDriver) WithText(selector string, seq ...string) *MockDriver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.texts[selector] = seq
	d.textIdx[selector] = 0
	return d
}

// WithExists 配置选择器的存在性
func (d *MockDriver) WithExists(selector string, present bool) *MockDriver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.exists[selector] = present
	return d
}

// WithExistsAfter 配置选择器从第 n 次 Exists 调用起存在，
// 用于模拟延迟出现的完成标记
func (d *MockDriver) WithExistsAfter(selector string, n int) *MockDriver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.existsAfter[selector] = n
	return d
}

// WithEvalResult 配置脚本求值结果
func (d *MockDriver) WithEvalResult(script string, result any) *MockDriver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.evalResult[script] = result
	return d
}

// WithCookies 配置导出的 Cookie
func (d *MockDriver) WithCookies(cookies ...browser.Cookie) *MockDriver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cookies = cookies
	return d
}

// WithURL 配置当前 URL
func (d *MockDriver) WithURL(url string) *MockDriver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.currentURL = url
	return d
}

// WithPopup 配置 WaitPopup 返回的弹窗驱动
func (d *MockDriver) WithPopup(popup *MockDriver) *MockDriver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.popup = popup
	return d
}

// WithError 为指定方法注入错误
func (d *MockDriver) WithError(method string, err error) *MockDriver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs[method] = err
	return d
}

// --- 调用记录查询 ---

// Calls 返回全部调用记录
func (d *MockDriver) Calls() []DriverCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DriverCall, len(d.calls))
	copy(out, d.calls)
	return out
}

// CallsTo 返回指定方法的调用记录
func (d *MockDriver) CallsTo(method string) []DriverCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []DriverCall
	for _, c := range d.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// FilledValues 返回按顺序填入指定选择器的值
func (d *MockDriver) FilledValues(selector string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, c := range d.calls {
		if (c.Method == "Fill" || c.Method == "FillSlow") && c.Selector == selector {
			out = append(out, c.Value)
		}
	}
	return out
}

// Closed 返回驱动是否已关闭
func (d *MockDriver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *MockDriver) record(method, selector, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, DriverCall{Method: method, Selector: selector, Value: value})
	return d.errs[method]
}

func (d *MockDriver) nextText(selector string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	seq, ok := d.texts[selector]
	if !ok || len(seq) == 0 {
		return ""
	}
	idx := d.textIdx[selector]
	if idx >= len(seq) {
		idx = len(seq) - 1
	} else {
		d.textIdx[selector]++
	}
	return seq[idx]
}

// --- browser.Driver 实现 ---

func (d *MockDriver) Navigate(ctx context.Context, url string) error {
	if err := d.record("Navigate", "", url); err != nil {
		return err
	}
	d.mu.Lock()
	d.currentURL = url
	d.mu.Unlock()
	return nil
}

func (d *MockDriver) WaitVisible(ctx context.Context, selector string) error {
	return d.record("WaitVisible", selector, "")
}

func (d *MockDriver) WaitURL(ctx context.Context, fragment string) error {
	if err := d.record("WaitURL", "", fragment); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !strings.Contains(d.currentURL, fragment) {
		d.currentURL = "https://" + fragment + "/"
	}
	return nil
}

func (d *MockDriver) Click(ctx context.Context, selector string) error {
	return d.record("Click", selector, "")
}

func (d *MockDriver) Fill(ctx context.Context, selector, text string) error {
	return d.record("Fill", selector, text)
}

func (d *MockDriver) FillSlow(ctx context.Context, selector, text string) error {
	return d.record("FillSlow", selector, text)
}

func (d *MockDriver) Press(ctx context.Context, key string) error {
	return d.record("Press", "", key)
}

func (d *MockDriver) Text(ctx context.Context, selector string) (string, error) {
	if err := d.record("Text", selector, ""); err != nil {
		return "", err
	}
	return d.nextText(selector), nil
}

func (d *MockDriver) LastText(ctx context.Context, selector string) (string, error) {
	if err := d.record("LastText", selector, ""); err != nil {
		return "", err
	}
	return d.nextText(selector), nil
}

func (d *MockDriver) Exists(ctx context.Context, selector string) (bool, error) {
	if err := d.record("Exists", selector, ""); err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.existsCalls[selector]++
	if after, ok := d.existsAfter[selector]; ok && d.existsCalls[selector] >= after {
		return true, nil
	}
	return d.exists[selector], nil
}

func (d *MockDriver) CurrentURL(ctx context.Context) (string, error) {
	if err := d.record("CurrentURL", "", ""); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.currentURL, nil
}

func (d *MockDriver) WaitPopup(ctx context.Context, trigger func(context.Context) error) (browser.Driver, error) {
	if err := d.record("WaitPopup", "", ""); err != nil {
		return nil, err
	}
	if err := trigger(ctx); err != nil {
		return nil, err
	}
	d.mu.Lock()
	popup := d.popup
	d.mu.Unlock()
	if popup == nil {
		popup = NewMockDriver()
	}
	return popup, nil
}

func (d *MockDriver) SetCookies(ctx context.Context, cookies []browser.Cookie) error {
	if err := d.record("SetCookies", "", ""); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cookies = append(d.cookies, cookies...)
	return nil
}

func (d *MockDriver) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	if err := d.record("Cookies", "", ""); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]browser.Cookie, len(d.cookies))
	copy(out, d.cookies)
	return out, nil
}

func (d *MockDriver) Eval(ctx context.Context, script string, res any) error {
	if err := d.record("Eval", "", script); err != nil {
		return err
	}
	d.mu.Lock()
	result, ok := d.evalResult[script]
	d.mu.Unlock()
	if !ok || res == nil {
		return nil
	}
	// JSON 往返保持与真实驱动一致的反序列化语义
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, res)
}

func (d *MockDriver) AddInitScript(ctx context.Context, script string) error {
	return d.record("AddInitScript", "", script)
}

func (d *MockDriver) Screenshot(ctx context.Context, name string) error {
	return d.record("Screenshot", "", name)
}

func (d *MockDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
