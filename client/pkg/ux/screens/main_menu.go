// Package screens 交互式控制台屏幕
package screens

import (
	"context"
	"errors"
	"fmt"

	"github.com/weisyn/esg-registry/client/core/confirm"
	"github.com/weisyn/esg-registry/client/core/feed"
	"github.com/weisyn/esg-registry/client/pkg/ux/flows"
	"github.com/weisyn/esg-registry/client/pkg/ux/guides"
	"github.com/weisyn/esg-registry/client/pkg/ux/ui"
)

// errExit 用户选择退出
var errExit = errors.New("exit")

// MainMenuScreen 主菜单屏幕
type MainMenuScreen struct {
	ui         ui.Components
	title      string
	submission *flows.SubmissionFlow
	dashboard  *flows.DashboardFlow
	events     *flows.EventsFlow
	guide      *guides.FirstTimeGuide
}

// MenuDeps 主菜单依赖，为空的流程对应菜单项不显示
type MenuDeps struct {
	Title      string
	Submission *flows.SubmissionFlow
	Dashboard  *flows.DashboardFlow
	Events     *flows.EventsFlow
	Guide      *guides.FirstTimeGuide
}

// NewMainMenuScreen 创建主菜单屏幕
func NewMainMenuScreen(uiComponents ui.Components, deps MenuDeps) *MainMenuScreen {
	title := deps.Title
	if title == "" {
		title = "ESG 注册表控制台"
	}
	return &MainMenuScreen{
		ui:         uiComponents,
		title:      title,
		submission: deps.Submission,
		dashboard:  deps.Dashboard,
		events:     deps.Events,
		guide:      deps.Guide,
	}
}

type menuItem struct {
	label  string
	action func(ctx context.Context) error
	// stream 持续运行直到用户按 Enter
	stream bool
}

func (s *MainMenuScreen) items() []menuItem {
	var items []menuItem
	if s.submission != nil {
		items = append(items, menuItem{label: "提交报告    - 公司提交年度 KPI 并等待链上确认", action: func(ctx context.Context) error {
			_, err := s.submission.Execute(ctx)
			return err
		}})
	}
	if s.dashboard != nil {
		items = append(items,
			menuItem{label: "投资人看板  - 按年份查看公司 KPI 趋势", action: func(ctx context.Context) error {
				_, err := s.dashboard.Execute(ctx)
				return err
			}},
			menuItem{label: "报告历史    - 查看某一年的全部修订版本", action: func(ctx context.Context) error {
				_, err := s.dashboard.ExecuteHistory(ctx)
				return err
			}},
		)
	}
	if s.events != nil {
		items = append(items, menuItem{label: "实时事件    - 观察新提交的报告", action: s.watchEvents, stream: true})
	}
	if s.guide != nil {
		items = append(items, menuItem{label: "使用引导    - 检查节点、合约与钱包", action: s.guide.RunGuide})
	}
	items = append(items, menuItem{label: "退出程序", action: func(context.Context) error { return errExit }})
	return items
}

// Render 渲染主菜单并处理用户选择，直到用户退出或 ctx 结束
func (s *MainMenuScreen) Render(ctx context.Context) error {
	items := s.items()
	labels := make([]string, len(items))
	for i, it := range items {
		labels[i] = it.label
	}

	for {
		select {
		case <-ctx.Done():
			_ = s.ui.ShowInfo("收到退出信号，程序终止")
			return ctx.Err()
		default:
		}

		_ = s.ui.ShowHeader(s.title)
		choice, err := s.ui.ShowMenu("主菜单", labels)
		if err != nil {
			return fmt.Errorf("读取菜单选择失败: %w", err)
		}
		if choice < 0 || choice >= len(items) {
			_ = s.ui.ShowWarning("无效选择，请重新输入")
			continue
		}

		item := items[choice]
		err = item.action(ctx)
		if errors.Is(err, errExit) {
			return nil
		}
		if err != nil && !isHandled(err) {
			_ = s.ui.ShowError(fmt.Sprintf("操作失败: %v", err))
		}
		if !item.stream {
			_ = s.ui.ShowContinuePrompt("", "按 Enter 返回主菜单")
		}
	}
}

// watchEvents 观察事件直到用户按 Enter
func (s *MainMenuScreen) watchEvents(ctx context.Context) error {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		_ = s.ui.ShowContinuePrompt("", "按 Enter 停止观察")
		cancel()
	}()
	return s.events.Execute(wctx, feed.Filter{})
}

// isHandled 流程内部已经展示过的错误
func isHandled(err error) bool {
	return errors.Is(err, flows.ErrCancelled) || errors.Is(err, confirm.ErrConfirmTimeout)
}
