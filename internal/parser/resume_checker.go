package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"ai-interview-go/internal/constants"
	"ai-interview-go/internal/llm"
	"ai-interview-go/internal/types"
)

// ChatModel 可靠性检查所需的最小LLM能力
type ChatModel interface {
	// ChatJSON 以JSON模式发起一次对话补全
	ChatJSON(ctx context.Context, messages []types.ChatMessage) (string, error)
}

// LLMResumeChecker 用LLM评估提取文本是否是一份可读的简历
type LLMResumeChecker struct {
	model  ChatModel
	logger *log.Logger
}

// NewLLMResumeChecker 创建简历可靠性检查器
func NewLLMResumeChecker(model ChatModel, logger *log.Logger) *LLMResumeChecker {
	if logger == nil {
		logger = log.Default()
	}
	return &LLMResumeChecker{
		model:  model,
		logger: logger,
	}
}

const resumeCheckSystemPrompt = `당신은 경력 10년차 채용 담당자입니다.
아래에 제공되는 텍스트가 실제 이력서로서 읽을 수 있는 내용인지 평가하세요.
텍스트 추출이 깨져 있거나, 내용이 비어 있거나, 이력서가 아닌 문서라면 낮은 점수를 주세요.
반드시 다음 형식의 JSON으로만 답하세요:
{"score": <0-100 정수>, "reason": "<한 문장 평가>"}`

// Check 评估简历文本可读性
// 文本过短时直接判定为不可读, 不调用LLM
func (c *LLMResumeChecker) Check(ctx context.Context, resumeText string) (*types.ResumeCheckResult, error) {
	trimmed := strings.TrimSpace(resumeText)
	if utf8.RuneCountInString(trimmed) < constants.MinResumeTextLength {
		return &types.ResumeCheckResult{
			Score:  0,
			Reason: "추출된 텍스트가 너무 짧아 이력서로 판단할 수 없습니다.",
		}, nil
	}

	if c.model == nil {
		return nil, fmt.Errorf("LLMResumeChecker: model is not initialized")
	}

	messages := []types.ChatMessage{
		{Role: types.RoleSystem, Content: resumeCheckSystemPrompt},
		{Role: types.RoleUser, Content: trimmed},
	}

	content, err := c.model.ChatJSON(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("简历可靠性评估调用失败: %w", err)
	}

	// 去除BOM后提取JSON
	processed := strings.TrimPrefix(content, "\uFEFF")
	jsonStr := llm.ExtractJSONObject(processed)
	if jsonStr == "" {
		return nil, fmt.Errorf("无法从模型响应中提取JSON: %s", processed)
	}
	if !utf8.ValidString(jsonStr) {
		jsonStr = strings.ToValidUTF8(jsonStr, "")
	}

	var result types.ResumeCheckResult
	// ① 正常解析
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		// ② 解析失败 -> 自动修复再试一次
		fixed := llm.SanitizeJSON(jsonStr)
		if jsonErr := json.Unmarshal([]byte(fixed), &result); jsonErr != nil {
			return nil, fmt.Errorf("解析可靠性评估JSON失败: %w (修复后: %v)", err, jsonErr)
		}
	}

	// 验证分数范围
	if result.Score < 0 || result.Score > 100 {
		return nil, fmt.Errorf("可靠性分数超出范围 [0,100]: %d", result.Score)
	}

	return &result, nil
}
