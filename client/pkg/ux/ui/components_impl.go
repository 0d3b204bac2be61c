package ui

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/pterm/pterm"
	"golang.org/x/term"
)

// barScale 柱状图最长柱子的刻度
const barScale = 40

type components struct {
	logger Logger
	theme  *ThemeConfig
	tty    bool
}

// NewComponents 创建UI组件实例
func NewComponents(logger Logger) Components {
	if logger == nil {
		logger = NoopLogger()
	}
	return &components{
		logger: logger,
		theme:  GetDefaultTheme(),
		tty:    term.IsTerminal(int(os.Stdin.Fd())),
	}
}

func (c *components) header(title string, color pterm.Color) {
	if title == "" {
		return
	}
	pterm.DefaultHeader.WithBackgroundStyle(pterm.NewStyle(color)).Println(title)
}

// ShowTable 显示表格
func (c *components) ShowTable(title string, data [][]string) error {
	if len(data) == 0 {
		return fmt.Errorf("表格数据为空")
	}
	c.header(title, c.theme.PrimaryColor)
	return pterm.DefaultTable.WithHasHeader().WithHeaderRowSeparator("-").WithData(data).Render()
}

// ShowList 显示列表
func (c *components) ShowList(title string, items []string) error {
	c.header(title, c.theme.PrimaryColor)

	listItems := make([]pterm.BulletListItem, len(items))
	for i, item := range items {
		listItems[i] = pterm.BulletListItem{Text: item}
	}
	return pterm.DefaultBulletList.WithItems(listItems).Render()
}

// ShowKeyValuePairs 显示键值对
func (c *components) ShowKeyValuePairs(title string, pairs []KeyValue) error {
	c.header(title, c.theme.PrimaryColor)

	data := [][]string{{"项目", "值"}}
	for _, kv := range pairs {
		data = append(data, []string{kv.Key, kv.Value})
	}
	return pterm.DefaultTable.WithHasHeader().WithHeaderRowSeparator("-").WithData(data).Render()
}

// ShowBarChart 显示横向柱状图
func (c *components) ShowBarChart(title string, bars []Bar) error {
	if len(bars) == 0 {
		return fmt.Errorf("图表数据为空")
	}
	if title != "" {
		pterm.DefaultSection.WithStyle(pterm.NewStyle(c.theme.PrimaryColor)).Println(title)
	}

	scaled := ScaleBars(bars, barScale)
	chartBars := make(pterm.Bars, len(bars))
	for i, b := range bars {
		label := b.Label
		if b.Text != "" {
			label = fmt.Sprintf("%s  %s", b.Label, b.Text)
		}
		style := pterm.NewStyle(c.theme.PrimaryColor)
		if b.Value < 0 {
			style = pterm.NewStyle(c.theme.WarningColor)
		}
		chartBars[i] = pterm.Bar{Label: label, Value: scaled[i], Style: style}
	}
	return pterm.DefaultBarChart.WithBars(chartBars).WithHorizontal().Render()
}

// ScaleBars 把数值按最大绝对值缩放到 [0, scale]，非零值至少为 1
func ScaleBars(bars []Bar, scale int) []int {
	maxAbs := 0.0
	for _, b := range bars {
		maxAbs = math.Max(maxAbs, math.Abs(b.Value))
	}
	out := make([]int, len(bars))
	if maxAbs == 0 {
		return out
	}
	for i, b := range bars {
		v := int(math.Round(math.Abs(b.Value) / maxAbs * float64(scale)))
		if v == 0 && b.Value != 0 {
			v = 1
		}
		out[i] = v
	}
	return out
}

// ShowMenu 显示菜单选择
func (c *components) ShowMenu(title string, options []string) (int, error) {
	if len(options) == 0 {
		return -1, fmt.Errorf("菜单选项为空")
	}
	c.header(title, c.theme.PrimaryColor)

	if !c.tty {
		return c.readMenuIndex(options)
	}

	result, err := pterm.DefaultInteractiveSelect.
		WithOptions(options).
		WithDefaultText("请选择一个选项").
		WithMaxHeight(10).
		WithFilter(false).
		Show()
	if err != nil {
		if err.Error() == "interrupt" {
			return -1, fmt.Errorf("用户取消操作")
		}
		return -1, fmt.Errorf("菜单选择失败: %w", err)
	}

	for i, option := range options {
		if option == result {
			return i, nil
		}
	}
	return -1, fmt.Errorf("未找到选中的选项: %s", result)
}

// readMenuIndex 非 TTY 时按序号读取选择
func (c *components) readMenuIndex(options []string) (int, error) {
	for i, option := range options {
		pterm.Printf("  %d) %s\n", i+1, option)
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return -1, fmt.Errorf("读取选择失败: %w", err)
	}
	n, err := strconv.Atoi(trimLine(line))
	if err != nil || n < 1 || n > len(options) {
		return -1, fmt.Errorf("无效的选项: %q", trimLine(line))
	}
	return n - 1, nil
}

// ShowConfirmDialog 显示确认对话框
func (c *components) ShowConfirmDialog(title, message string) (bool, error) {
	c.header(title, c.theme.WarningColor)
	pterm.Info.Println(message)

	if !c.tty {
		return false, nil
	}
	result, err := pterm.DefaultInteractiveConfirm.
		WithDefaultText("确认继续吗？").
		WithDefaultValue(false).
		Show()
	if err != nil {
		return false, fmt.Errorf("确认对话框失败: %w", err)
	}
	return result, nil
}

// ShowInputDialog 显示输入对话框
func (c *components) ShowInputDialog(title, prompt string, isPassword bool) (string, error) {
	c.header(title, c.theme.InfoColor)

	if !c.tty {
		pterm.Print(prompt + ": ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("读取输入失败: %w", err)
		}
		return trimLine(line), nil
	}

	input := pterm.DefaultInteractiveTextInput.WithDefaultText(prompt)
	if isPassword {
		input = input.WithMask("*")
	}
	result, err := input.Show()
	if err != nil {
		if err.Error() == "interrupt" {
			return "", fmt.Errorf("用户取消输入")
		}
		return "", fmt.Errorf("输入对话框失败: %w", err)
	}
	return result, nil
}

// ShowContinuePrompt 等待回车
func (c *components) ShowContinuePrompt(title, message string) error {
	if !c.tty {
		return nil
	}
	if title != "" {
		pterm.DefaultSection.Println(title)
	}
	pterm.Info.Println(message)
	_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
	return nil
}

// ShowSpinner 创建加载动画
func (c *components) ShowSpinner(message string) Spinner {
	return &spinnerImpl{message: message, enabled: c.tty}
}

// ShowSuccess 显示成功消息
func (c *components) ShowSuccess(message string) error {
	pterm.Success.Println(message)
	return nil
}

// ShowError 显示错误消息
func (c *components) ShowError(message string) error {
	pterm.Error.Println(message)
	return nil
}

// ShowWarning 显示警告消息
func (c *components) ShowWarning(message string) error {
	pterm.Warning.Println(message)
	return nil
}

// ShowInfo 显示信息消息
func (c *components) ShowInfo(message string) error {
	pterm.Info.Println(message)
	return nil
}

// ShowPanel 显示面板
func (c *components) ShowPanel(title, content string) error {
	pterm.DefaultBox.
		WithTitle(title).
		WithTitleTopCenter().
		WithBoxStyle(pterm.NewStyle(c.theme.PrimaryColor)).
		Println(content)
	return nil
}

// ShowHeader 显示标题
func (c *components) ShowHeader(text string) error {
	pterm.DefaultHeader.WithBackgroundStyle(pterm.NewStyle(c.theme.PrimaryColor)).
		WithMargin(2).
		Println(text)
	return nil
}

// ShowSection 显示分节
func (c *components) ShowSection(text string) error {
	pterm.DefaultSection.WithStyle(pterm.NewStyle(c.theme.PrimaryColor)).Println(text)
	return nil
}

// Clear 清屏
func (c *components) Clear() error {
	if c.tty {
		pterm.Print("\033[H\033[2J")
	}
	return nil
}

// spinnerImpl 非 TTY 时退化为普通输出
type spinnerImpl struct {
	message string
	enabled bool
	printer *pterm.SpinnerPrinter
}

func (s *spinnerImpl) Start() error {
	if !s.enabled {
		pterm.Info.Println(s.message)
		return nil
	}
	p, err := pterm.DefaultSpinner.Start(s.message)
	if err != nil {
		return err
	}
	s.printer = p
	return nil
}

func (s *spinnerImpl) UpdateText(text string) error {
	s.message = text
	if s.printer != nil {
		s.printer.UpdateText(text)
	}
	return nil
}

func (s *spinnerImpl) Stop() error {
	if s.printer == nil {
		return nil
	}
	return s.printer.Stop()
}

func (s *spinnerImpl) Success(message string) error {
	if s.printer == nil {
		pterm.Success.Println(message)
		return nil
	}
	s.printer.Success(message)
	return nil
}

func (s *spinnerImpl) Fail(message string) error {
	if s.printer == nil {
		pterm.Error.Println(message)
		return nil
	}
	s.printer.Fail(message)
	return nil
}

func trimLine(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r' || s[len(s)-1] == ' ') {
		s = s[:len(s)-1]
	}
	return s
}
