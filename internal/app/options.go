package app

import (
	"github.com/weisyn/esg-registry/client/core/config"
	"github.com/weisyn/esg-registry/client/core/transport"
)

// Option 应用程序选项函数类型
type Option func(*options)

// options 应用程序选项
type options struct {
	// profile 必填
	profile *config.Profile

	// transport 非空时替代按 profile 拨号，测试使用
	transport transport.Client

	// feed 过滤条件
	owner     string
	fromBlock uint64

	// listen 覆盖 profile.Server.Listen
	listen string

	// API支持开关 (默认启用)
	enableAPI bool
}

// WithProfile 设置运行的 profile
func WithProfile(p *config.Profile) Option {
	return func(o *options) {
		o.profile = p
	}
}

// WithTransport 使用已有的链访问客户端
func WithTransport(t transport.Client) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithOwner 只跟踪指定公司的报告
func WithOwner(owner string) Option {
	return func(o *options) {
		o.owner = owner
	}
}

// WithFromBlock 事件流从指定区块回补
func WithFromBlock(block uint64) Option {
	return func(o *options) {
		o.fromBlock = block
	}
}

// WithListen 覆盖监听地址
func WithListen(addr string) Option {
	return func(o *options) {
		o.listen = addr
	}
}

// WithoutAPI 禁用API模块，只运行事件流
func WithoutAPI() Option {
	return func(o *options) {
		o.enableAPI = false
	}
}

// newOptions 创建选项
func newOptions(opts ...Option) *options {
	options := &options{
		enableAPI: true,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
