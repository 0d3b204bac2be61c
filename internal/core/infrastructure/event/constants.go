// 事件类型常量定义

package event

// EventType 事件类型
type EventType string

const (
	// EventTypeReportConfirmed 本进程提交的报告已在链上确认，载荷为 *registry.ReportSubmitted
	EventTypeReportConfirmed EventType = "report.confirmed"

	// EventTypeReportObserved 链上观察到的任意 ReportSubmitted 事件，载荷为 *registry.ReportSubmitted
	EventTypeReportObserved EventType = "report.observed"

	// EventTypeReportRemoved 重组导致的日志撤销
	EventTypeReportRemoved EventType = "report.removed"
)
