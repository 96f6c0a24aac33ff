package interview

import (
	"fmt"
	"strings"

	"ai-interview-go/internal/types"
)

// resumeMarker 人设与简历正文之间的分隔标记
// 合并人设时以该标记定位简历内容, 保证重复合并不会叠加人设
const resumeMarker = "\n\n[이력서]\n"

// buildInterviewerPrompt 构建面试官人设
// askedCount为已提出的问题数, 人设中写入进度让模型掌握节奏
func buildInterviewerPrompt(role string, questionCount, askedCount int) string {
	if role == "" {
		role = "소프트웨어 엔지니어"
	}
	remaining := questionCount - askedCount
	if remaining < 0 {
		remaining = 0
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("당신은 %s 직무의 숙련된 면접관입니다.\n", role))
	sb.WriteString("지원자의 이력서를 바탕으로 실전 면접을 진행하세요.\n\n")
	sb.WriteString("[면접 규칙]\n")
	sb.WriteString("1. 한 번에 반드시 하나의 질문만 하세요.\n")
	sb.WriteString("2. 지원자를 칭찬하거나 격려하지 마세요. 면접관은 평가자입니다.\n")
	sb.WriteString("3. 답변이 모호하거나 피상적이면 같은 주제를 더 깊게 파고드는 후속 질문을 하세요.\n")
	sb.WriteString("4. 질문은 다음 영역을 고르게 다루세요: 기술 역량, 프로젝트 경험, 문제 해결, 협업/커뮤니케이션, 인성, 조직 적합성.\n")
	sb.WriteString("5. 면접이 진행될수록 질문 난이도를 점진적으로 높이세요.\n")
	sb.WriteString(fmt.Sprintf("6. 전체 질문 수는 %d개입니다. 지금까지 %d개를 질문했고 %d개가 남았습니다.\n",
		questionCount, askedCount, remaining))
	sb.WriteString("7. 마지막 질문까지 마쳤으면 is_finished를 true로 설정하세요.\n\n")
	sb.WriteString("[출력 형식]\n")
	sb.WriteString("반드시 다음 JSON 형식으로만 답하세요. 다른 텍스트를 붙이지 마세요:\n")
	sb.WriteString(`{"response": "<면접관의 다음 발언>", "is_finished": <true|false>}`)
	return sb.String()
}

// buildCandidatePrompt 构建模拟应答的候选人人设
func buildCandidatePrompt(resumeText string) string {
	var sb strings.Builder
	sb.WriteString("당신은 아래 이력서의 주인공인 면접 지원자입니다.\n")
	sb.WriteString("면접관의 마지막 질문에 대해 이력서 내용에 근거하여 1인칭으로 답변하세요.\n")
	sb.WriteString("답변은 3문장 이내로 간결하게, 한국어로 작성하세요.\n")
	sb.WriteString("이력서에 없는 경력을 지어내지 마세요.")
	if strings.TrimSpace(resumeText) != "" {
		sb.WriteString(resumeMarker)
		sb.WriteString(resumeText)
	}
	return sb.String()
}

// buildHintPrompt 构建答题指导的导师人设
func buildHintPrompt(role, resumeText string) string {
	if role == "" {
		role = "소프트웨어 엔지니어"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("당신은 %s 직무 면접을 준비시키는 전문 코치입니다.\n", role))
	sb.WriteString("지원자가 면접관의 질문에 스스로 답할 수 있도록 답변의 방향을 제시하세요.\n")
	sb.WriteString("모범 답안을 대신 써 주지 말고, 어떤 경험과 포인트를 언급하면 좋을지 3줄 이내로 안내하세요.")
	if strings.TrimSpace(resumeText) != "" {
		sb.WriteString(resumeMarker)
		sb.WriteString(resumeText)
	}
	return sb.String()
}

// buildEvaluatorPrompt 构建面试评分人设
func buildEvaluatorPrompt() string {
	var sb strings.Builder
	sb.WriteString("당신은 면접 결과를 평가하는 수석 면접관입니다.\n")
	sb.WriteString("아래에 제공되는 면접 대화 전체를 읽고 지원자를 평가하세요.\n\n")
	sb.WriteString("[평가 기준]\n")
	sb.WriteString("- score: 0에서 100 사이의 정수. 답변의 구체성, 논리력, 직무 적합성을 종합하세요.\n")
	sb.WriteString("- feedback: 지원자가 개선해야 할 점을 중심으로 한 구체적인 피드백.\n")
	sb.WriteString("- summary: 면접 전체 흐름에 대한 간결한 요약.\n\n")
	sb.WriteString("반드시 다음 JSON 형식으로만 답하세요:\n")
	sb.WriteString(`{"score": <0-100 정수>, "feedback": "<피드백>", "summary": "<요약>"}`)
	return sb.String()
}

// mergePersona 把人设写入消息列表首位
// history[0]为system消息时: 视其内容为简历(或上一轮的合并结果), 替换为 人设+标记+简历
// 否则在首位插入纯人设消息
// 重复调用结果一致: 旧人设会被剥离, 不会叠加
func mergePersona(history []types.ChatMessage, persona string) []types.ChatMessage {
	if len(history) > 0 && history[0].Role == types.RoleSystem {
		resume := history[0].Content
		// 已经合并过人设时, 只保留标记之后的简历部分
		if idx := strings.Index(resume, resumeMarker); idx >= 0 {
			resume = resume[idx+len(resumeMarker):]
		}
		merged := make([]types.ChatMessage, len(history))
		copy(merged, history)
		merged[0] = types.ChatMessage{
			Role:    types.RoleSystem,
			Content: persona + resumeMarker + resume,
		}
		return merged
	}

	merged := make([]types.ChatMessage, 0, len(history)+1)
	merged = append(merged, types.ChatMessage{Role: types.RoleSystem, Content: persona})
	merged = append(merged, history...)
	return merged
}

// countAssistantMessages 统计面试官已经提问的轮数
func countAssistantMessages(history []types.ChatMessage) int {
	count := 0
	for _, msg := range history {
		if msg.Role == types.RoleAssistant {
			count++
		}
	}
	return count
}
