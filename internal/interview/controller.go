package interview

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"ai-interview-go/internal/constants"
	"ai-interview-go/internal/llm"
	"ai-interview-go/internal/logger"
	"ai-interview-go/internal/storage/models"
	"ai-interview-go/internal/tracing"
	"ai-interview-go/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var interviewTracer = otel.Tracer("ai-interview-go/interview")

// DialogueModel 对话模型能力
type DialogueModel interface {
	// Chat 普通对话补全
	Chat(ctx context.Context, messages []types.ChatMessage) (string, error)
	// ChatJSON JSON模式对话补全, 模型被强制输出JSON对象
	ChatJSON(ctx context.Context, messages []types.ChatMessage) (string, error)
}

// Transcriber 语音识别能力
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// SpeechSynthesizer 语音合成能力
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// EvaluationStore 评估历史存取能力
type EvaluationStore interface {
	AppendEvaluation(ctx context.Context, record *models.InterviewHistory) error
	ListEvaluations(ctx context.Context) ([]models.InterviewHistory, error)
}

// EventPublisher 评估落库事件发布能力, 可选
type EventPublisher interface {
	PublishEvaluationSaved(ctx context.Context, event interface{}) error
}

// Controller 面试流程控制器
// 无状态可重入, 每次请求由客户端携带完整对话历史
type Controller struct {
	model         DialogueModel
	stt           Transcriber
	tts           SpeechSynthesizer
	store         EvaluationStore
	events        EventPublisher // 可为nil
	questionCount int            // 默认提问数量
}

// Option 控制器配置选项
type Option func(*Controller)

// WithEventPublisher 配置评估落库事件发布器
func WithEventPublisher(events EventPublisher) Option {
	return func(c *Controller) {
		c.events = events
	}
}

// WithQuestionCount 配置默认提问数量
func WithQuestionCount(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.questionCount = n
		}
	}
}

// NewController 创建面试控制器
func NewController(model DialogueModel, stt Transcriber, tts SpeechSynthesizer, store EvaluationStore, options ...Option) (*Controller, error) {
	if model == nil {
		return nil, fmt.Errorf("对话模型不能为空")
	}
	if store == nil {
		return nil, fmt.Errorf("评估存储不能为空")
	}

	c := &Controller{
		model:         model,
		stt:           stt,
		tts:           tts,
		store:         store,
		questionCount: constants.DefaultQuestionCount,
	}
	for _, option := range options {
		option(c)
	}
	return c, nil
}

// dialoguePayload 对话模型的结构化输出
// 字段用指针区分"缺失"与"零值"
type dialoguePayload struct {
	Response   *string `json:"response"`
	IsFinished *bool   `json:"is_finished"`
}

// Dialogue 执行一轮面试官回合
// questionCount<=0时使用控制器默认值
// 提问额度耗尽时直接返回结束语, 不调用对话模型
// 模型返回非法JSON时本地兜底并继续面试; 传输层错误原样上抛
func (c *Controller) Dialogue(ctx context.Context, history []types.ChatMessage, role string, questionCount int) (*types.DialogueTurn, error) {
	ctx, span := interviewTracer.Start(ctx, "Interview.Dialogue")
	defer span.End()

	if questionCount <= 0 {
		questionCount = c.questionCount
	}

	askedCount := countAssistantMessages(history)
	span.SetAttributes(
		attribute.Int("interview.asked_count", askedCount),
		attribute.Int("interview.question_count", questionCount),
	)

	// 额度耗尽: 固定结束语, 不再产生新问题
	if askedCount >= questionCount {
		span.SetAttributes(attribute.Bool("interview.budget_exhausted", true))
		return c.finishTurn(ctx, span, constants.ClosingUtterance, true, askedCount)
	}

	persona := buildInterviewerPrompt(role, questionCount, askedCount)
	messages := mergePersona(history, persona)

	content, err := c.model.ChatJSON(ctx, messages)
	if err != nil {
		// 传输层失败不兜底, 由调用方决定如何呈现
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, err
	}

	utterance, finished := parseDialoguePayload(content)
	if utterance == constants.FallbackUtterance {
		span.SetAttributes(attribute.Bool("interview.fallback", true))
		logger.Ctx(ctx).Warn().
			Str("content", tracing.SafeUtterance(content)).
			Msg("对话模型输出无法解析, 使用兜底话术")
	}

	return c.finishTurn(ctx, span, utterance, finished, askedCount+1)
}

// parseDialoguePayload 解析模型的结构化输出
// 非法JSON -> 兜底话术, 面试继续; 缺失response -> 占位话术; 缺失is_finished -> false
func parseDialoguePayload(content string) (string, bool) {
	processed := strings.TrimPrefix(content, "\uFEFF")
	jsonStr := llm.ExtractJSONObject(processed)
	if jsonStr == "" {
		return constants.FallbackUtterance, false
	}
	if !utf8.ValidString(jsonStr) {
		jsonStr = strings.ToValidUTF8(jsonStr, "")
	}

	var payload dialoguePayload
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		fixed := llm.SanitizeJSON(jsonStr)
		if err := json.Unmarshal([]byte(fixed), &payload); err != nil {
			return constants.FallbackUtterance, false
		}
	}

	utterance := constants.ErrorUtterance
	if payload.Response != nil && *payload.Response != "" {
		utterance = *payload.Response
	}
	finished := false
	if payload.IsFinished != nil {
		finished = *payload.IsFinished
	}
	return utterance, finished
}

// finishTurn 为话术合成语音并组装回合结果
func (c *Controller) finishTurn(ctx context.Context, span trace.Span, utterance string, finished bool, asked int) (*types.DialogueTurn, error) {
	turn := &types.DialogueTurn{
		Text:     utterance,
		Finished: finished,
		Asked:    asked,
	}

	if c.tts != nil {
		audio, err := c.tts.Synthesize(ctx, utterance)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeSpeech)
			return nil, err
		}
		turn.AudioB64 = base64.StdEncoding.EncodeToString(audio)
	}

	span.SetAttributes(attribute.Bool("interview.finished", finished))
	span.SetStatus(codes.Ok, "")
	return turn, nil
}

// SimulateAnswer 以候选人视角对最后一条面试官发言生成示范回答
// 单轮调用: 候选人人设 + 最后一条发言, 不携带更早的对话
// 历史为空时无法得知当前问题, 返回错误
func (c *Controller) SimulateAnswer(ctx context.Context, history []types.ChatMessage, resumeText string) (string, error) {
	ctx, span := interviewTracer.Start(ctx, "Interview.SimulateAnswer")
	defer span.End()

	if len(history) == 0 {
		err := fmt.Errorf("对话历史为空, 无法生成模拟回答")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return "", err
	}

	question := history[len(history)-1].Content
	messages := []types.ChatMessage{
		{Role: types.RoleSystem, Content: buildCandidatePrompt(resumeText)},
		{Role: types.RoleUser, Content: question},
	}

	answer, err := c.model.Chat(ctx, messages)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return "", err
	}

	span.SetStatus(codes.Ok, "")
	return answer, nil
}

// AnswerHint 针对一个面试问题给出答题方向指导
func (c *Controller) AnswerHint(ctx context.Context, question, resumeText, role string) (string, error) {
	ctx, span := interviewTracer.Start(ctx, "Interview.AnswerHint")
	defer span.End()

	if strings.TrimSpace(question) == "" {
		err := fmt.Errorf("问题不能为空")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return "", err
	}

	messages := []types.ChatMessage{
		{Role: types.RoleSystem, Content: buildHintPrompt(role, resumeText)},
		{Role: types.RoleUser, Content: question},
	}

	hint, err := c.model.Chat(ctx, messages)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return "", err
	}

	span.SetStatus(codes.Ok, "")
	return hint, nil
}

// evaluationPayload 评分模型的结构化输出
type evaluationPayload struct {
	Score    *int   `json:"score"`
	Feedback string `json:"feedback"`
	Summary  string `json:"summary"`
}

// Evaluate 对整场面试进行评分并持久化
// 评分超出[0,100]视为模型输出无效, 整个调用失败
// 持久化失败同样使整个调用失败, 不返回未落库的记录
func (c *Controller) Evaluate(ctx context.Context, history []types.ChatMessage) (*types.EvaluationRecord, error) {
	ctx, span := interviewTracer.Start(ctx, "Interview.Evaluate")
	defer span.End()

	if len(history) == 0 {
		err := fmt.Errorf("对话历史为空, 无法评估")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	// 保序序列化整场对话作为评分输入
	transcript, err := json.Marshal(history)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return nil, fmt.Errorf("序列化对话历史失败: %w", err)
	}

	messages := []types.ChatMessage{
		{Role: types.RoleSystem, Content: buildEvaluatorPrompt()},
		{Role: types.RoleUser, Content: string(transcript)},
	}

	content, err := c.model.ChatJSON(ctx, messages)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, err
	}

	payload, err := parseEvaluationPayload(content)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, err
	}

	record := &models.InterviewHistory{
		Date:     time.Now().Format(constants.EvaluationDateLayout),
		Score:    *payload.Score,
		Feedback: payload.Feedback,
		Summary:  payload.Summary,
	}

	if err := c.store.AppendEvaluation(ctx, record); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, err
	}

	// 事件发布是尽力而为, 失败只记录
	if c.events != nil {
		event := types.EvaluationSavedEvent{
			RecordID: record.ID,
			Date:     record.Date,
			Score:    record.Score,
		}
		if err := c.events.PublishEvaluationSaved(ctx, event); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("发布评估落库事件失败")
		}
	}

	span.SetAttributes(attribute.Int("evaluation.score", record.Score))
	span.SetStatus(codes.Ok, "")
	return &types.EvaluationRecord{
		ID:       record.ID,
		Date:     record.Date,
		Score:    record.Score,
		Feedback: record.Feedback,
		Summary:  record.Summary,
	}, nil
}

// parseEvaluationPayload 解析并验证评分输出
func parseEvaluationPayload(content string) (*evaluationPayload, error) {
	processed := strings.TrimPrefix(content, "\uFEFF")
	jsonStr := llm.ExtractJSONObject(processed)
	if jsonStr == "" {
		return nil, fmt.Errorf("无法从评分响应中提取JSON")
	}
	if !utf8.ValidString(jsonStr) {
		jsonStr = strings.ToValidUTF8(jsonStr, "")
	}

	var payload evaluationPayload
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		fixed := llm.SanitizeJSON(jsonStr)
		if jsonErr := json.Unmarshal([]byte(fixed), &payload); jsonErr != nil {
			return nil, fmt.Errorf("解析评分JSON失败: %w (修复后: %v)", err, jsonErr)
		}
	}

	if payload.Score == nil {
		return nil, fmt.Errorf("评分响应缺失score字段")
	}
	if *payload.Score < 0 || *payload.Score > 100 {
		return nil, fmt.Errorf("评分超出范围 [0,100]: %d", *payload.Score)
	}
	return &payload, nil
}

// History 返回全部评估记录, 最新的在前
func (c *Controller) History(ctx context.Context) ([]types.EvaluationRecord, error) {
	records, err := c.store.ListEvaluations(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]types.EvaluationRecord, len(records))
	for i, r := range records {
		out[i] = types.EvaluationRecord{
			ID:       r.ID,
			Date:     r.Date,
			Score:    r.Score,
			Feedback: r.Feedback,
			Summary:  r.Summary,
		}
	}
	return out, nil
}

// Transcribe 语音识别透传
func (c *Controller) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if c.stt == nil {
		return "", fmt.Errorf("语音识别未配置")
	}
	return c.stt.Transcribe(ctx, audio, filename)
}
