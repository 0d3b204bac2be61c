// esg 是 ESG 注册表的命令行客户端：提交年度 KPI 报告、查询看板、跟踪链上事件，并可作为看板 API 服务运行。
package main

func main() {
	Execute()
}
