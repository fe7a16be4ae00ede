package pdf

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"flierbuilder/internal/source"
)

// RootSelector is the element holding the A4 flier in the rendered page.
const RootSelector = "#flier-root"

// A4 paper size in inches.
const (
	paperWidth  = 8.27
	paperHeight = 11.69
)

// Output 为一次打印的结果：PDF 与 JPEG 缩略图。
type Output struct {
	PDF       []byte
	Thumbnail []byte
}

// Printer 使用 go-rod 在无头浏览器中把完整 HTML 页面打印为 PDF。
// 页面内的外链图片只允许访问公网地址。
type Printer struct {
	logger           *slog.Logger
	timeout          time.Duration
	thumbnailQuality int
	checkHost        func(ctx context.Context, host string) error
}

// NewPrinter 构造打印器；timeout 为单次打印的最长耗时。
func NewPrinter(logger *slog.Logger, timeout time.Duration) *Printer {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Printer{logger: logger, timeout: timeout, thumbnailQuality: 80, checkHost: source.CheckPublicHost}
}

// Print 渲染 HTML 并返回 PDF 字节；缩略图失败只记录警告。
func (p *Printer) Print(ctx context.Context, htmlContent string) (_ Output, err error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	launch := launcher.New().
		Headless(true).
		NoSandbox(true)

	if path, ok := launcher.LookPath(); ok {
		launch = launch.Bin(path)
	}

	browserURL, err := launch.Context(ctx).Launch()
	if err != nil {
		return Output{}, fmt.Errorf("launch chromium: %w", err)
	}
	defer launch.Cleanup()

	browser := rod.New().ControlURL(browserURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return Output{}, fmt.Errorf("connect browser: %w", err)
	}
	defer func() {
		_ = browser.Close()
	}()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return Output{}, fmt.Errorf("create page: %w", err)
	}
	defer func() {
		_ = page.Close()
	}()

	router := page.HijackRequests()
	if err := router.Add("*", "", func(h *rod.Hijack) {
		if err := p.allowRequest(ctx, h.Request.URL()); err != nil {
			p.logger.WarnContext(ctx, "blocked flier page request", slog.Any("error", err))
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	}); err != nil {
		return Output{}, fmt.Errorf("hijack page requests: %w", err)
	}
	go router.Run()
	defer func() {
		_ = router.Stop()
	}()

	if err := page.SetDocumentContent(htmlContent); err != nil {
		return Output{}, fmt.Errorf("set document content: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return Output{}, fmt.Errorf("wait load: %w", err)
	}
	if _, err := page.Timeout(5 * time.Second).Eval(`() => {
	  if (document && document.fonts && document.fonts.ready) {
	    return Promise.race([
	      document.fonts.ready.then(() => true),
	      new Promise((resolve) => setTimeout(() => resolve(true), 3000))
	    ]);
	  }
	  return true;
	}`); err != nil {
		p.logger.WarnContext(ctx, "document.fonts.ready wait failed, continue", slog.Any("error", err))
	}

	var out Output
	if out.Thumbnail, err = p.screenshot(page); err != nil {
		p.logger.WarnContext(ctx, "capture flier thumbnail failed", slog.Any("error", err))
	}

	if err := (proto.EmulationSetEmulatedMedia{Media: "print"}).Call(page); err != nil {
		return Output{}, fmt.Errorf("set emulated media to print: %w", err)
	}
	if out.PDF, err = exportPDF(page); err != nil {
		return Output{}, err
	}
	return out, nil
}

// allowRequest lets inline and public http(s) resources through.
func (p *Printer) allowRequest(ctx context.Context, u *url.URL) error {
	switch u.Scheme {
	case "data", "about", "blob":
		return nil
	case "http", "https":
		return p.checkHost(ctx, u.Hostname())
	default:
		return fmt.Errorf("scheme %q not allowed", u.Scheme)
	}
}

func exportPDF(page *rod.Page) ([]byte, error) {
	reader, err := page.PDF(&proto.PagePrintToPDF{
		PrintBackground:   true,
		PaperWidth:        float64Ptr(paperWidth),
		PaperHeight:       float64Ptr(paperHeight),
		MarginTop:         float64Ptr(0),
		MarginBottom:      float64Ptr(0),
		MarginLeft:        float64Ptr(0),
		MarginRight:       float64Ptr(0),
		PreferCSSPageSize: true,
	})
	if err != nil {
		return nil, fmt.Errorf("export pdf: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read pdf bytes: %w", err)
	}
	return data, nil
}

func (p *Printer) screenshot(page *rod.Page) ([]byte, error) {
	element, err := page.Timeout(5 * time.Second).Element(RootSelector)
	if err == nil {
		if data, shotErr := element.Screenshot(proto.PageCaptureScreenshotFormatJpeg, p.thumbnailQuality); shotErr == nil {
			return data, nil
		}
	}
	data, err := page.Screenshot(true, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: &p.thumbnailQuality,
	})
	if err != nil {
		return nil, fmt.Errorf("page screenshot: %w", err)
	}
	return data, nil
}

func float64Ptr(value float64) *float64 {
	return &value
}
