// Package output 命令行输出格式化
//
// 数据写入 stdout，提示信息写入 stderr，保证 JSON 输出可以直接管道给 jq。
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"
)

// Format 输出格式
type Format string

const (
	// FormatJSON 单行 JSON
	FormatJSON Format = "json"
	// FormatPretty 缩进 JSON
	FormatPretty Format = "pretty"
	// FormatTable 对齐表格（默认）
	FormatTable Format = "table"
	// FormatText 纯文本
	FormatText Format = "text"
)

// ParseFormat 解析 --format 参数
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatPretty, FormatTable, FormatText:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown output format %q (json|pretty|table|text)", s)
	}
}

// Table 表格数据
//
// 表格模式下按列对齐输出；JSON 模式下输出为对象数组，键为表头。
type Table struct {
	Headers []string
	Rows    [][]string
}

// AddRow 追加一行
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// MarshalJSON 输出为对象数组
func (t *Table) MarshalJSON() ([]byte, error) {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		obj := make(map[string]string, len(t.Headers))
		for i, h := range t.Headers {
			if i < len(row) {
				obj[h] = row[i]
			}
		}
		out = append(out, obj)
	}
	return json.Marshal(out)
}

// Formatter 输出格式化器
type Formatter struct {
	format    Format
	writer    io.Writer // 数据输出
	logWriter io.Writer // 提示输出
	silent    bool
}

// NewFormatter 创建格式化器
func NewFormatter(format Format, writer io.Writer) *Formatter {
	if writer == nil {
		writer = os.Stdout
	}
	return &Formatter{
		format:    format,
		writer:    writer,
		logWriter: os.Stderr,
	}
}

// Format 当前格式
func (f *Formatter) Format() Format {
	return f.format
}

// IsJSON 是否为 JSON 输出
func (f *Formatter) IsJSON() bool {
	return f.format == FormatJSON || f.format == FormatPretty
}

// SetLogWriter 设置提示输出目标（默认 stderr）
func (f *Formatter) SetLogWriter(writer io.Writer) {
	if writer == nil {
		writer = os.Stderr
	}
	f.logWriter = writer
}

// SetSilent 设置静默模式
func (f *Formatter) SetSilent(silent bool) {
	f.silent = silent
}

// Print 按格式输出数据
func (f *Formatter) Print(data interface{}) error {
	if f.silent {
		return nil
	}

	switch f.format {
	case FormatJSON:
		return f.printJSON(data, false)
	case FormatPretty:
		return f.printJSON(data, true)
	case FormatText:
		return f.printText(data)
	default:
		return f.printTable(data)
	}
}

func (f *Formatter) printJSON(data interface{}, pretty bool) error {
	var out []byte
	var err error
	if pretty {
		out, err = json.MarshalIndent(data, "", "  ")
	} else {
		out, err = json.Marshal(data)
	}
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	if _, err := fmt.Fprintln(f.writer, string(out)); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func (f *Formatter) printTable(data interface{}) error {
	tw := tabwriter.NewWriter(f.writer, 0, 0, 2, ' ', 0)

	var err error
	switch v := data.(type) {
	case *Table:
		err = writeTable(tw, v)
	case Table:
		err = writeTable(tw, &v)
	case map[string]string:
		err = writeMap(tw, v)
	case map[string]interface{}:
		m := make(map[string]string, len(v))
		for k, val := range v {
			m[k] = formatValue(val)
		}
		err = writeMap(tw, m)
	default:
		return f.printJSON(data, true)
	}
	if err != nil {
		return err
	}
	return tw.Flush()
}

func writeTable(tw *tabwriter.Writer, t *Table) error {
	if len(t.Headers) > 0 {
		if _, err := fmt.Fprintln(tw, strings.Join(t.Headers, "\t")); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		sep := make([]string, len(t.Headers))
		for i, h := range t.Headers {
			sep[i] = strings.Repeat("-", len(h))
		}
		if _, err := fmt.Fprintln(tw, strings.Join(sep, "\t")); err != nil {
			return fmt.Errorf("write separator: %w", err)
		}
	}
	for _, row := range t.Rows {
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	return nil
}

// writeMap 两列 Key | Value，按键排序
func writeMap(tw *tabwriter.Writer, m map[string]string) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", k, m[k]); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	return nil
}

func (f *Formatter) printText(data interface{}) error {
	var text string
	switch v := data.(type) {
	case *Table:
		var b strings.Builder
		for _, row := range v.Rows {
			b.WriteString(strings.Join(row, " "))
			b.WriteByte('\n')
		}
		text = strings.TrimSuffix(b.String(), "\n")
	case fmt.Stringer:
		text = v.String()
	default:
		text = formatValue(v)
	}
	if _, err := fmt.Fprintln(f.writer, text); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// PrintSuccess 打印成功消息
func (f *Formatter) PrintSuccess(message string) {
	if f.silent {
		return
	}
	_, _ = fmt.Fprintf(f.logWriter, "✅ %s\n", message)
}

// PrintError 打印错误消息，静默模式下仍然输出
func (f *Formatter) PrintError(err error) {
	_, _ = fmt.Fprintf(f.logWriter, "❌ Error: %v\n", err)
}

// PrintWarning 打印警告消息
func (f *Formatter) PrintWarning(message string) {
	if f.silent {
		return
	}
	_, _ = fmt.Fprintf(f.logWriter, "⚠️  %s\n", message)
}

// PrintInfo 打印信息消息
func (f *Formatter) PrintInfo(message string) {
	if f.silent {
		return
	}
	_, _ = fmt.Fprintf(f.logWriter, "ℹ️  %s\n", message)
}

// ===== 辅助函数 =====

func formatValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return "-"
	case int, int64, uint, uint64, uint16:
		return fmt.Sprintf("%d", v)
	case float32, float64:
		return fmt.Sprintf("%.2f", v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case time.Time:
		return v.Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// ErrorOutput JSON 模式下的错误输出
type ErrorOutput struct {
	Error struct {
		Code    string      `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	} `json:"error"`
}

// NewErrorOutput 创建错误输出
func NewErrorOutput(code string, message string, details interface{}) *ErrorOutput {
	out := &ErrorOutput{}
	out.Error.Code = code
	out.Error.Message = message
	out.Error.Details = details
	return out
}
