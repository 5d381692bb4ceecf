// 包 fetch 封装抓取用的 HTTP 会话（代理/超时/UA/限速），用于获取订阅、文章页与图片。
// 整个抓取过程共享一个 Client：连接复用、持久化请求头，并在每次请求前按固定间隔限速。
// 不做重试：一次失败即视为该文章/图片在本次运行中失败。
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// Client 为带限速的 HTTP 会话。
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

// Options 为客户端构造参数。
type Options struct {
	UserAgent string
	Proxy     string
	Timeout   time.Duration
	// Delay 为相邻两次请求之间的最小间隔，<=0 表示不限速。
	Delay time.Duration
}

// StatusError 表示非 2xx 响应。
type StatusError struct {
	URL    string
	Status string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: http status %s", e.URL, e.Status)
}

// New 创建会话。
func New(opts Options) *Client {
	cl := resty.New()
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	cl.SetTimeout(opts.Timeout)
	if opts.UserAgent != "" {
		cl.SetHeader("User-Agent", opts.UserAgent)
	}
	if opts.Proxy != "" {
		cl.SetProxy(opts.Proxy)
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if opts.Delay > 0 {
		lim = rate.NewLimiter(rate.Every(opts.Delay), 1)
	}
	return &Client{http: cl, limiter: lim}
}

// GetText 以文本形式获取页面（订阅/文章 HTML）。
func (c *Client) GetText(ctx context.Context, url string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", url, err)
	}
	if !resp.IsSuccess() {
		return "", &StatusError{URL: url, Status: resp.Status(), Code: resp.StatusCode()}
	}
	return resp.String(), nil
}

// Download 以流方式把响应体写入 w，返回写入字节数。
func (c *Client) Download(ctx context.Context, url string, w io.Writer) (int64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	resp, err := c.http.R().SetContext(ctx).SetDoNotParseResponse(true).Get(url)
	// 不解析响应时 resty 不会关闭 body，出错时也可能带回响应
	defer closeBody(resp)
	if err != nil {
		return 0, fmt.Errorf("GET %s: %w", url, err)
	}
	if !resp.IsSuccess() {
		return 0, &StatusError{URL: url, Status: resp.Status(), Code: resp.StatusCode()}
	}
	n, err := io.Copy(w, resp.RawBody())
	if err != nil {
		return n, fmt.Errorf("read %s: %w", url, err)
	}
	return n, nil
}

func closeBody(resp *resty.Response) {
	if resp == nil || resp.RawResponse == nil || resp.RawResponse.Body == nil {
		return
	}
	_ = resp.RawResponse.Body.Close()
}

// IsNotFound 判断错误是否为 404（被删除或私密的文章）。
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}
