package browser

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"
)

// ChromeDPDriver 基于 chromedp 的 Driver 实现
type ChromeDPDriver struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	config      Config
	logger      *zap.Logger
	mu          sync.Mutex
	root        bool
}

// NewChromeDPDriver 创建 chromedp 驱动并启动浏览器
func NewChromeDPDriver(config Config, logger *zap.Logger) (*ChromeDPDriver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = RandomUserAgent()
	}

	// 启动参数与真人浏览器保持一致，降低被自动化检测的概率
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", config.Headless),
		chromedp.WindowSize(config.ViewportWidth, config.ViewportHeight),
		chromedp.UserAgent(userAgent),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("no-zygote", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)

	if config.ProxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(config.ProxyURL))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	driver := &ChromeDPDriver{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		ctx:         ctx,
		cancel:      cancel,
		config:      config,
		logger:      logger.With(zap.String("component", "chromedp_driver")),
		root:        true,
	}

	// 启动浏览器
	if err := chromedp.Run(ctx); err != nil {
		allocCancel()
		cancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	logger.Info("chromedp browser started",
		zap.Bool("headless", config.Headless),
		zap.Int("viewport_w", config.ViewportWidth),
		zap.Int("viewport_h", config.ViewportHeight))

	return driver, nil
}

// run 执行一组 chromedp 动作
// 超时由配置限定；调用方 ctx 取消时立即中止，不在后台继续驱动页面。
func (d *ChromeDPDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	if d.config.Debug && d.config.SlowMo > 0 {
		time.Sleep(d.config.SlowMo)
	}

	cctx, cancel := context.WithTimeout(d.ctx, d.config.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(cctx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// queryOpt 根据选择器形态选择查询方式：// 前缀按 XPath 处理，其余按 CSS
func queryOpt(selector string) chromedp.QueryOption {
	if strings.HasPrefix(selector, "//") {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// Navigate 导航到 URL 并等待页面就绪
func (d *ChromeDPDriver) Navigate(ctx context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.logger.Debug("navigating", zap.String("url", url))
	return d.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// WaitVisible 等待选择器可见
func (d *ChromeDPDriver) WaitVisible(ctx context.Context, selector string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.run(ctx, chromedp.WaitVisible(selector, queryOpt(selector)))
}

// WaitURL 等待当前地址包含指定片段
func (d *ChromeDPDriver) WaitURL(ctx context.Context, fragment string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			var url string
			if err := chromedp.Location(&url).Do(ctx); err != nil {
				return err
			}
			if strings.Contains(url, fragment) {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	}))
}

// Click 点击匹配的第一个元素
func (d *ChromeDPDriver) Click(ctx context.Context, selector string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.logger.Debug("clicking", zap.String("selector", selector))
	opt := queryOpt(selector)
	return d.run(ctx,
		chromedp.WaitVisible(selector, opt),
		chromedp.Click(selector, opt),
	)
}

// Fill 清空并填充输入框
func (d *ChromeDPDriver) Fill(ctx context.Context, selector, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	opt := queryOpt(selector)
	return d.run(ctx,
		chromedp.Clear(selector, opt),
		chromedp.SendKeys(selector, text, opt),
	)
}

// FillSlow 逐字符输入，模拟真人打字节奏
func (d *ChromeDPDriver) FillSlow(ctx context.Context, selector, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	opt := queryOpt(selector)
	if err := d.run(ctx, chromedp.Clear(selector, opt)); err != nil {
		return err
	}
	for _, ch := range text {
		if err := d.run(ctx, chromedp.SendKeys(selector, string(ch), opt)); err != nil {
			return err
		}
		delay := 100 + rand.Intn(200) // 100-300ms
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(delay) * time.Millisecond):
		}
	}
	return nil
}

// Press 向聚焦元素发送按键
func (d *ChromeDPDriver) Press(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if key == "Enter" {
		key = kb.Enter
	}
	return d.run(ctx, chromedp.KeyEvent(key))
}

// Text 返回匹配的第一个元素的文本
func (d *ChromeDPDriver) Text(ctx context.Context, selector string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var text string
	if err := d.run(ctx, chromedp.Text(selector, &text, queryOpt(selector))); err != nil {
		return "", fmt.Errorf("failed to read text of %q: %w", selector, err)
	}
	return text, nil
}

// LastText 返回匹配的最后一个元素的文本
// 响应容器按时间顺序追加，最后一个即最新回复。
func (d *ChromeDPDriver) LastText(ctx context.Context, selector string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	script := fmt.Sprintf(
		`(() => { const els = document.querySelectorAll(%q); return els.length ? els[els.length-1].textContent : ""; })()`,
		selector,
	)
	var text string
	if err := d.run(ctx, chromedp.Evaluate(script, &text)); err != nil {
		return "", fmt.Errorf("failed to read last text of %q: %w", selector, err)
	}
	return text, nil
}

// Exists 检查当前是否存在匹配元素（不等待）
func (d *ChromeDPDriver) Exists(ctx context.Context, selector string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	script := fmt.Sprintf(`document.querySelector(%q) !== null`, selector)
	var found bool
	if err := d.run(ctx, chromedp.Evaluate(script, &found)); err != nil {
		return false, err
	}
	return found, nil
}

// CurrentURL 获取当前 URL
func (d *ChromeDPDriver) CurrentURL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var url string
	if err := d.run(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("failed to get URL: %w", err)
	}
	return url, nil
}

// WaitPopup 执行 trigger 并返回其打开的弹窗页面
func (d *ChromeDPDriver) WaitPopup(ctx context.Context, trigger func(context.Context) error) (Driver, error) {
	d.mu.Lock()
	ch := chromedp.WaitNewTarget(d.ctx, func(info *target.Info) bool {
		return info.Type == "page"
	})
	d.mu.Unlock()

	if err := trigger(ctx); err != nil {
		return nil, fmt.Errorf("popup trigger failed: %w", err)
	}

	var id target.ID
	select {
	case id = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(d.config.Timeout):
		return nil, fmt.Errorf("timed out waiting for popup")
	}

	popupCtx, popupCancel := chromedp.NewContext(d.ctx, chromedp.WithTargetID(id))
	if err := chromedp.Run(popupCtx); err != nil {
		popupCancel()
		return nil, fmt.Errorf("failed to attach popup: %w", err)
	}

	return &ChromeDPDriver{
		ctx:    popupCtx,
		cancel: popupCancel,
		config: d.config,
		logger: d.logger.With(zap.String("page", "popup")),
	}, nil
}

// SetCookies 注入会话 Cookie
func (d *ChromeDPDriver) SetCookies(ctx context.Context, cookies []Cookie) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			p := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithHTTPOnly(c.HTTPOnly).
				WithSecure(c.Secure)
			if c.Expires > 0 {
				expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
				p = p.WithExpires(&expires)
			}
			if err := p.Do(ctx); err != nil {
				return fmt.Errorf("failed to set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	}))
}

// Cookies 导出浏览器当前持有的全部 Cookie
func (d *ChromeDPDriver) Cookies(ctx context.Context) ([]Cookie, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []Cookie
	err := d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range cookies {
			out = append(out, Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Expires:  c.Expires,
				HTTPOnly: c.HTTPOnly,
				Secure:   c.Secure,
				SameSite: string(c.SameSite),
			})
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to export cookies: %w", err)
	}
	return out, nil
}

// Eval 在页面中执行脚本并反序列化结果
func (d *ChromeDPDriver) Eval(ctx context.Context, script string, res any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.run(ctx, chromedp.Evaluate(script, res))
}

// AddInitScript 注册在每个新文档上执行的脚本
func (d *ChromeDPDriver) AddInitScript(ctx context.Context, script string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
		return err
	}))
}

// Screenshot 截取整页截图并保存到配置目录
func (d *ChromeDPDriver) Screenshot(ctx context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var buf []byte
	if err := d.run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return fmt.Errorf("screenshot failed: %w", err)
	}

	dir := d.config.ScreenshotDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, name+".png")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return err
	}

	d.logger.Debug("screenshot saved", zap.String("path", path))
	return nil
}

// Close 关闭页面；根驱动同时关闭浏览器
func (d *ChromeDPDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.root {
		d.logger.Info("closing chromedp browser")
	}
	d.cancel()
	if d.allocCancel != nil {
		d.allocCancel()
	}
	return nil
}
