package dispatch

import (
	"fmt"
	"strings"

	"github.com/alekspetrov/dobby/internal/entity"
	"github.com/alekspetrov/dobby/internal/taskstore"
)

const (
	helpText = "👋 我是 Dobby。\n\n" +
		"1. **建任务**: @我 + 任务描述，可带 紧急/重要/不重要 和 YYYY-MM-DD 截止日期，@同事即指派\n" +
		"2. **查任务**: 发送 \"我的任务\"\n" +
		"3. **完成任务**: 发送 \"完成 关键词\"\n" +
		"4. **原生任务**: 说 \"提醒我...\" 会同步创建飞书任务"

	replyCreateFailed  = "❌ 创建失败"
	replyQueryFailed   = "❌ 查询失败"
	replyUpdateFailed  = "❌ 更新失败"
	replyInternalError = "❌ 处理失败，请稍后再试"

	nativePending = "⏳ 正在同步原生任务..."
	nativeOK      = "(原生任务✅)"
	nativeFailed  = "(原生任务❌)"
)

func formatCreated(name string, q entity.Quadrant, due string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ 任务已建\n📌 %s\n🎯 %s", name, q.Label())
	if due != "" {
		fmt.Fprintf(&sb, "\n📅 %s", due)
	}
	return sb.String()
}

func formatTaskList(tasks []taskstore.Task, formatDue func(*int64) string) string {
	if len(tasks) == 0 {
		return "🎉 无待办任务"
	}
	var sb strings.Builder
	sb.WriteString("📋 **待办任务:**")
	for _, t := range tasks {
		fmt.Fprintf(&sb, "\n- [%s] %s (%s)", t.Status.Label(), t.Description, t.Quadrant.Label())
		if due := formatDue(t.Due); due != "" {
			fmt.Fprintf(&sb, " 📅 %s", due)
		}
	}
	return sb.String()
}

func formatResolution(keyword string, res taskstore.Resolution) string {
	switch res.Outcome {
	case taskstore.OutcomeUpdated:
		if res.Task.Status == taskstore.StatusDone {
			return "✅ 已完成: " + res.Task.Description
		}
		return fmt.Sprintf("🔄 已更新: %s → %s", res.Task.Description, res.Task.Status.Label())
	case taskstore.OutcomeAmbiguous:
		var sb strings.Builder
		fmt.Fprintf(&sb, "🤔 '%s' 匹配到多个任务，请说得更具体些:", keyword)
		for _, t := range res.Candidates {
			fmt.Fprintf(&sb, "\n- %s", t.Description)
		}
		return sb.String()
	default:
		return fmt.Sprintf("🔍 未找到 '%s'", keyword)
	}
}
