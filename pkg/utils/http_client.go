package utils

import (
	"time"

	"github.com/go-resty/resty/v2"
)

// ClientOptions 出站 HTTP 客户端选项
type ClientOptions struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	UserAgent  string
	ProxyURL   string
	Debug      bool
}

// NewRestClient 创建配置好超时、重试和 UA 的 Resty 客户端
// 它是全系统统一的出站请求入口
func NewRestClient(opts ClientOptions) *resty.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "PasarMalamApp/1.0"
	}

	client := resty.New().
		SetDebug(opts.Debug).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent)

	if opts.BaseURL != "" {
		client.SetBaseURL(opts.BaseURL)
	}

	// 只重试网络错误和 5xx，4xx 属于业务错误
	if opts.RetryCount > 0 {
		client.SetRetryCount(opts.RetryCount).
			SetRetryWaitTime(300 * time.Millisecond).
			SetRetryMaxWaitTime(2 * time.Second).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || r.StatusCode() >= 500
			})
	}

	if opts.ProxyURL != "" {
		client.SetProxy(opts.ProxyURL)
	}

	return client
}
