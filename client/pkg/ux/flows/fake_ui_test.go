package flows

import (
	"errors"
	"strings"

	"github.com/weisyn/esg-registry/client/pkg/ux/ui"
)

// fakeUI 按脚本返回输入并记录输出
type fakeUI struct {
	inputs   []string
	menus    []int
	confirms []bool

	tables  [][][]string
	bars    [][]ui.Bar
	pairs   [][]ui.KeyValue
	infos   []string
	errs    []string
	warns   []string
	success []string
}

var errNoInput = errors.New("no scripted input")

func (f *fakeUI) ShowTable(title string, data [][]string) error {
	f.tables = append(f.tables, data)
	return nil
}

func (f *fakeUI) ShowList(title string, items []string) error { return nil }

func (f *fakeUI) ShowKeyValuePairs(title string, pairs []ui.KeyValue) error {
	f.pairs = append(f.pairs, pairs)
	return nil
}

func (f *fakeUI) ShowBarChart(title string, bars []ui.Bar) error {
	f.bars = append(f.bars, bars)
	return nil
}

func (f *fakeUI) ShowMenu(title string, options []string) (int, error) {
	if len(f.menus) == 0 {
		return 0, errNoInput
	}
	idx := f.menus[0]
	f.menus = f.menus[1:]
	return idx, nil
}

func (f *fakeUI) ShowConfirmDialog(title, message string) (bool, error) {
	if len(f.confirms) == 0 {
		return false, errNoInput
	}
	ok := f.confirms[0]
	f.confirms = f.confirms[1:]
	return ok, nil
}

func (f *fakeUI) ShowInputDialog(title, prompt string, isPassword bool) (string, error) {
	if len(f.inputs) == 0 {
		return "", errNoInput
	}
	s := f.inputs[0]
	f.inputs = f.inputs[1:]
	return s, nil
}

func (f *fakeUI) ShowContinuePrompt(title, message string) error { return nil }
func (f *fakeUI) ShowSpinner(message string) ui.Spinner          { return fakeSpinner{} }
func (f *fakeUI) ShowPanel(title, content string) error          { return nil }
func (f *fakeUI) ShowHeader(text string) error                   { return nil }
func (f *fakeUI) ShowSection(text string) error                  { return nil }
func (f *fakeUI) Clear() error                                   { return nil }

func (f *fakeUI) ShowSuccess(message string) error {
	f.success = append(f.success, message)
	return nil
}

func (f *fakeUI) ShowError(message string) error {
	f.errs = append(f.errs, message)
	return nil
}

func (f *fakeUI) ShowWarning(message string) error {
	f.warns = append(f.warns, message)
	return nil
}

func (f *fakeUI) ShowInfo(message string) error {
	f.infos = append(f.infos, message)
	return nil
}

func (f *fakeUI) pairValue(key string) string {
	for i := len(f.pairs) - 1; i >= 0; i-- {
		for _, kv := range f.pairs[i] {
			if strings.HasPrefix(kv.Key, key) {
				return kv.Value
			}
		}
	}
	return ""
}

type fakeSpinner struct{}

func (fakeSpinner) Start() error            { return nil }
func (fakeSpinner) UpdateText(string) error { return nil }
func (fakeSpinner) Stop() error             { return nil }
func (fakeSpinner) Success(string) error    { return nil }
func (fakeSpinner) Fail(string) error       { return nil }
