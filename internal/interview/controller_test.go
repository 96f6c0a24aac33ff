package interview

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"ai-interview-go/internal/constants"
	"ai-interview-go/internal/storage/models"
	"ai-interview-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDialogueModel 手写的对话模型mock
type mockDialogueModel struct {
	chatResponse     string
	chatErr          error
	chatJSONResponse string
	chatJSONErr      error

	chatCalls     int
	chatJSONCalls int
	lastMessages  []types.ChatMessage
}

func (m *mockDialogueModel) Chat(ctx context.Context, messages []types.ChatMessage) (string, error) {
	m.chatCalls++
	m.lastMessages = messages
	return m.chatResponse, m.chatErr
}

func (m *mockDialogueModel) ChatJSON(ctx context.Context, messages []types.ChatMessage) (string, error) {
	m.chatJSONCalls++
	m.lastMessages = messages
	return m.chatJSONResponse, m.chatJSONErr
}

// mockSynthesizer 语音合成mock, 返回固定字节
type mockSynthesizer struct {
	audio []byte
	err   error
	calls int
	texts []string
}

func (m *mockSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	m.calls++
	m.texts = append(m.texts, text)
	if m.err != nil {
		return nil, m.err
	}
	return m.audio, nil
}

// mockEvaluationStore 内存评估存储mock
type mockEvaluationStore struct {
	records   []models.InterviewHistory
	appendErr error
	listErr   error
}

func (m *mockEvaluationStore) AppendEvaluation(ctx context.Context, record *models.InterviewHistory) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	record.ID = uint(len(m.records) + 1)
	m.records = append(m.records, *record)
	return nil
}

func (m *mockEvaluationStore) ListEvaluations(ctx context.Context) ([]models.InterviewHistory, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	// 最新的在前
	out := make([]models.InterviewHistory, 0, len(m.records))
	for i := len(m.records) - 1; i >= 0; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

// mockEventPublisher 事件发布mock
type mockEventPublisher struct {
	events []interface{}
	err    error
}

func (m *mockEventPublisher) PublishEvaluationSaved(ctx context.Context, event interface{}) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func newTestController(t *testing.T, model *mockDialogueModel, tts *mockSynthesizer, store *mockEvaluationStore, options ...Option) *Controller {
	t.Helper()
	// 带类型的nil指针装进接口后不再等于nil, 显式保持接口为空
	var synth SpeechSynthesizer
	if tts != nil {
		synth = tts
	}
	c, err := NewController(model, nil, synth, store, options...)
	require.NoError(t, err)
	return c
}

func historyWithAssistantTurns(n int) []types.ChatMessage {
	history := []types.ChatMessage{
		{Role: types.RoleSystem, Content: "경력 5년차 백엔드 엔지니어 이력서 내용"},
	}
	for i := 0; i < n; i++ {
		history = append(history,
			types.ChatMessage{Role: types.RoleAssistant, Content: fmt.Sprintf("질문 %d", i+1)},
			types.ChatMessage{Role: types.RoleUser, Content: fmt.Sprintf("답변 %d", i+1)},
		)
	}
	return history
}

func TestDialogueNormalTurn(t *testing.T) {
	model := &mockDialogueModel{
		chatJSONResponse: `{"response": "자기소개를 부탁드립니다.", "is_finished": false}`,
	}
	tts := &mockSynthesizer{audio: []byte("mp3-bytes")}
	store := &mockEvaluationStore{}
	c := newTestController(t, model, tts, store)

	turn, err := c.Dialogue(context.Background(), historyWithAssistantTurns(0), "백엔드 개발자", 10)
	require.NoError(t, err)

	assert.Equal(t, "자기소개를 부탁드립니다.", turn.Text)
	assert.False(t, turn.Finished)
	assert.Equal(t, 1, turn.Asked)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("mp3-bytes")), turn.AudioB64)
	assert.Equal(t, 1, model.chatJSONCalls)

	// 人设被合并到首条system消息, 简历内容保留在标记之后
	require.NotEmpty(t, model.lastMessages)
	first := model.lastMessages[0]
	assert.Equal(t, types.RoleSystem, first.Role)
	assert.Contains(t, first.Content, "면접관")
	assert.Contains(t, first.Content, "백엔드 엔지니어 이력서 내용")
}

func TestDialogueFirstQuestionEmptyHistory(t *testing.T) {
	model := &mockDialogueModel{
		chatJSONResponse: `{"response": "자기소개를 해 주세요.", "is_finished": false}`,
	}
	tts := &mockSynthesizer{audio: []byte("mp3")}
	c := newTestController(t, model, tts, &mockEvaluationStore{})

	turn, err := c.Dialogue(context.Background(), nil, "백엔드 개발자", 1)
	require.NoError(t, err)

	assert.Equal(t, "자기소개를 해 주세요.", turn.Text)
	assert.False(t, turn.Finished)
	assert.Equal(t, 1, turn.Asked)
	assert.Equal(t, 1, model.chatJSONCalls)

	// 历史为空时人设作为唯一的system消息插入首位
	require.Len(t, model.lastMessages, 1)
	assert.Equal(t, types.RoleSystem, model.lastMessages[0].Role)
	assert.Contains(t, model.lastMessages[0].Content, "면접관")
}

func TestDialogueNoSynthesizerSkipsAudio(t *testing.T) {
	model := &mockDialogueModel{
		chatJSONResponse: `{"response": "질문입니다.", "is_finished": false}`,
	}
	c := newTestController(t, model, nil, &mockEvaluationStore{})

	turn, err := c.Dialogue(context.Background(), historyWithAssistantTurns(1), "", 10)
	require.NoError(t, err)
	assert.Equal(t, "질문입니다.", turn.Text)
	assert.Empty(t, turn.AudioB64)
}

func TestDialogueBudgetExhausted(t *testing.T) {
	model := &mockDialogueModel{
		chatJSONResponse: `{"response": "더 질문하겠습니다.", "is_finished": false}`,
	}
	tts := &mockSynthesizer{audio: []byte("bye")}
	store := &mockEvaluationStore{}
	c := newTestController(t, model, tts, store)

	turn, err := c.Dialogue(context.Background(), historyWithAssistantTurns(3), "", 3)
	require.NoError(t, err)

	// 额度耗尽时不应调用对话模型
	assert.Equal(t, 0, model.chatJSONCalls)
	assert.Equal(t, constants.ClosingUtterance, turn.Text)
	assert.True(t, turn.Finished)
	// 结束语同样会合成语音
	assert.Equal(t, 1, tts.calls)
	assert.Equal(t, constants.ClosingUtterance, tts.texts[0])
}

func TestDialogueDefaultQuestionCount(t *testing.T) {
	model := &mockDialogueModel{
		chatJSONResponse: `{"response": "질문입니다.", "is_finished": false}`,
	}
	store := &mockEvaluationStore{}
	c := newTestController(t, model, nil, store, WithQuestionCount(2))

	// questionCount<=0时回退到控制器默认值2, 已提问2轮 -> 直接结束
	turn, err := c.Dialogue(context.Background(), historyWithAssistantTurns(2), "", 0)
	require.NoError(t, err)
	assert.True(t, turn.Finished)
	assert.Equal(t, constants.ClosingUtterance, turn.Text)
	assert.Equal(t, 0, model.chatJSONCalls)
}

func TestDialogueMalformedJSONFallsBack(t *testing.T) {
	model := &mockDialogueModel{
		chatJSONResponse: "죄송합니다, JSON이 아닌 일반 텍스트 응답입니다.",
	}
	store := &mockEvaluationStore{}
	c := newTestController(t, model, nil, store)

	turn, err := c.Dialogue(context.Background(), historyWithAssistantTurns(1), "", 10)
	require.NoError(t, err)

	// 非法输出用兜底话术, 面试继续
	assert.Equal(t, constants.FallbackUtterance, turn.Text)
	assert.False(t, turn.Finished)
}

func TestDialogueMissingResponseField(t *testing.T) {
	model := &mockDialogueModel{
		chatJSONResponse: `{"is_finished": false}`,
	}
	store := &mockEvaluationStore{}
	c := newTestController(t, model, nil, store)

	turn, err := c.Dialogue(context.Background(), historyWithAssistantTurns(1), "", 10)
	require.NoError(t, err)
	assert.Equal(t, constants.ErrorUtterance, turn.Text)
	assert.False(t, turn.Finished)
}

func TestDialogueMissingFinishedDefaultsFalse(t *testing.T) {
	model := &mockDialogueModel{
		chatJSONResponse: `{"response": "다음 질문입니다."}`,
	}
	store := &mockEvaluationStore{}
	c := newTestController(t, model, nil, store)

	turn, err := c.Dialogue(context.Background(), historyWithAssistantTurns(1), "", 10)
	require.NoError(t, err)
	assert.Equal(t, "다음 질문입니다.", turn.Text)
	assert.False(t, turn.Finished)
}

func TestDialogueTransportErrorPropagates(t *testing.T) {
	model := &mockDialogueModel{
		chatJSONErr: fmt.Errorf("connection refused"),
	}
	store := &mockEvaluationStore{}
	c := newTestController(t, model, nil, store)

	_, err := c.Dialogue(context.Background(), historyWithAssistantTurns(1), "", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestDialogueWrappedJSONCodeBlock(t *testing.T) {
	model := &mockDialogueModel{
		chatJSONResponse: "```json\n{\"response\": \"프로젝트 경험을 말씀해 주세요.\", \"is_finished\": false}\n```",
	}
	store := &mockEvaluationStore{}
	c := newTestController(t, model, nil, store)

	turn, err := c.Dialogue(context.Background(), historyWithAssistantTurns(1), "", 10)
	require.NoError(t, err)
	assert.Equal(t, "프로젝트 경험을 말씀해 주세요.", turn.Text)
}

func TestMergePersonaIdempotent(t *testing.T) {
	resume := "백엔드 경력 3년, Go와 MySQL 사용"
	history := []types.ChatMessage{
		{Role: types.RoleSystem, Content: resume},
		{Role: types.RoleUser, Content: "안녕하세요"},
	}

	persona1 := buildInterviewerPrompt("", 10, 0)
	merged1 := mergePersona(history, persona1)
	persona2 := buildInterviewerPrompt("", 10, 1)
	merged2 := mergePersona(merged1, persona2)

	// 重复合并不叠加人设: 简历标记只出现一次
	assert.Equal(t, 1, strings.Count(merged2[0].Content, resumeMarker))
	assert.True(t, strings.HasSuffix(merged2[0].Content, resume))
	// 原始切片不被修改
	assert.Equal(t, resume, history[0].Content)
}

func TestMergePersonaNoSystemMessage(t *testing.T) {
	history := []types.ChatMessage{
		{Role: types.RoleUser, Content: "안녕하세요"},
	}
	merged := mergePersona(history, "인사말 인터뷰어")

	require.Len(t, merged, 2)
	assert.Equal(t, types.RoleSystem, merged[0].Role)
	assert.Equal(t, "인사말 인터뷰어", merged[0].Content)
}

func TestSimulateAnswer(t *testing.T) {
	model := &mockDialogueModel{chatResponse: "저는 결제 시스템을 설계한 경험이 있습니다."}
	store := &mockEvaluationStore{}
	c := newTestController(t, model, nil, store)

	history := []types.ChatMessage{
		{Role: types.RoleSystem, Content: "이력서"},
		{Role: types.RoleAssistant, Content: "결제 시스템 설계 경험을 말씀해 주세요."},
	}
	answer, err := c.SimulateAnswer(context.Background(), history, "결제 시스템 경력")
	require.NoError(t, err)
	assert.Equal(t, "저는 결제 시스템을 설계한 경험이 있습니다.", answer)
	assert.Equal(t, 1, model.chatCalls)

	// 单轮调用: 候选人人设 + 最后一条面试官发言
	require.Len(t, model.lastMessages, 2)
	assert.Equal(t, types.RoleSystem, model.lastMessages[0].Role)
	assert.Contains(t, model.lastMessages[0].Content, "결제 시스템 경력")
	assert.Equal(t, types.RoleUser, model.lastMessages[1].Role)
	assert.Equal(t, "결제 시스템 설계 경험을 말씀해 주세요.", model.lastMessages[1].Content)
}

func TestSimulateAnswerEmptyHistory(t *testing.T) {
	model := &mockDialogueModel{}
	store := &mockEvaluationStore{}
	c := newTestController(t, model, nil, store)

	_, err := c.SimulateAnswer(context.Background(), nil, "이력서")
	require.Error(t, err)
	assert.Equal(t, 0, model.chatCalls)
}

func TestAnswerHint(t *testing.T) {
	model := &mockDialogueModel{chatResponse: "STAR 기법으로 상황과 결과를 말씀하세요."}
	store := &mockEvaluationStore{}
	c := newTestController(t, model, nil, store)

	hint, err := c.AnswerHint(context.Background(), "가장 어려웠던 장애 대응 경험은?", "SRE 경력", "SRE")
	require.NoError(t, err)
	assert.NotEmpty(t, hint)

	require.Len(t, model.lastMessages, 2)
	assert.Equal(t, types.RoleSystem, model.lastMessages[0].Role)
	assert.Contains(t, model.lastMessages[0].Content, "SRE")
	assert.Equal(t, "가장 어려웠던 장애 대응 경험은?", model.lastMessages[1].Content)
}

func TestAnswerHintEmptyQuestion(t *testing.T) {
	model := &mockDialogueModel{}
	store := &mockEvaluationStore{}
	c := newTestController(t, model, nil, store)

	_, err := c.AnswerHint(context.Background(), "   ", "", "")
	require.Error(t, err)
	assert.Equal(t, 0, model.chatCalls)
}

func TestEvaluatePersistsRecord(t *testing.T) {
	model := &mockDialogueModel{
		chatJSONResponse: `{"score": 78, "feedback": "구체적인 수치가 부족합니다.", "summary": "무난한 면접이었습니다."}`,
	}
	store := &mockEvaluationStore{}
	events := &mockEventPublisher{}
	c := newTestController(t, model, nil, store, WithEventPublisher(events))

	record, err := c.Evaluate(context.Background(), historyWithAssistantTurns(3))
	require.NoError(t, err)

	assert.Equal(t, 78, record.Score)
	assert.Equal(t, "구체적인 수치가 부족합니다.", record.Feedback)
	assert.Equal(t, "무난한 면접이었습니다.", record.Summary)
	assert.NotEmpty(t, record.Date)
	assert.NotZero(t, record.ID)

	// 已落库
	require.Len(t, store.records, 1)
	assert.Equal(t, 78, store.records[0].Score)
	// 事件已发布
	require.Len(t, events.events, 1)
	saved, ok := events.events[0].(types.EvaluationSavedEvent)
	require.True(t, ok)
	assert.Equal(t, 78, saved.Score)
}

func TestEvaluateScoreOutOfRange(t *testing.T) {
	model := &mockDialogueModel{
		chatJSONResponse: `{"score": 150, "feedback": "f", "summary": "s"}`,
	}
	store := &mockEvaluationStore{}
	c := newTestController(t, model, nil, store)

	_, err := c.Evaluate(context.Background(), historyWithAssistantTurns(1))
	require.Error(t, err)
	assert.Empty(t, store.records)
}

func TestEvaluateNegativeScore(t *testing.T) {
	model := &mockDialogueModel{
		chatJSONResponse: `{"score": -5, "feedback": "f", "summary": "s"}`,
	}
	store := &mockEvaluationStore{}
	c := newTestController(t, model, nil, store)

	_, err := c.Evaluate(context.Background(), historyWithAssistantTurns(1))
	require.Error(t, err)
}

func TestEvaluateMissingScore(t *testing.T) {
	model := &mockDialogueModel{
		chatJSONResponse: `{"feedback": "f", "summary": "s"}`,
	}
	store := &mockEvaluationStore{}
	c := newTestController(t, model, nil, store)

	_, err := c.Evaluate(context.Background(), historyWithAssistantTurns(1))
	require.Error(t, err)
}

func TestEvaluatePersistenceFailureFailsCall(t *testing.T) {
	model := &mockDialogueModel{
		chatJSONResponse: `{"score": 80, "feedback": "f", "summary": "s"}`,
	}
	store := &mockEvaluationStore{appendErr: fmt.Errorf("disk full")}
	c := newTestController(t, model, nil, store)

	_, err := c.Evaluate(context.Background(), historyWithAssistantTurns(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestEvaluateEventPublishFailureIsIgnored(t *testing.T) {
	model := &mockDialogueModel{
		chatJSONResponse: `{"score": 60, "feedback": "f", "summary": "s"}`,
	}
	store := &mockEvaluationStore{}
	events := &mockEventPublisher{err: fmt.Errorf("broker down")}
	c := newTestController(t, model, nil, store, WithEventPublisher(events))

	record, err := c.Evaluate(context.Background(), historyWithAssistantTurns(1))
	require.NoError(t, err)
	assert.Equal(t, 60, record.Score)
	require.Len(t, store.records, 1)
}

func TestEvaluateEmptyHistory(t *testing.T) {
	model := &mockDialogueModel{}
	store := &mockEvaluationStore{}
	c := newTestController(t, model, nil, store)

	_, err := c.Evaluate(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, 0, model.chatJSONCalls)
}

func TestHistoryNewestFirst(t *testing.T) {
	model := &mockDialogueModel{}
	store := &mockEvaluationStore{
		records: []models.InterviewHistory{
			{ID: 1, Date: "2026-08-01 10:00", Score: 70},
			{ID: 2, Date: "2026-08-02 10:00", Score: 85},
		},
	}
	c := newTestController(t, model, nil, store)

	records, err := c.History(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, uint(2), records[0].ID)
	assert.Equal(t, 85, records[0].Score)
}

func TestParseDialoguePayloadSanitizeRetry(t *testing.T) {
	// 字符串内部含未转义引号, 第一次Unmarshal失败后自动修复
	raw := `{"response": "프로젝트에서 "가장" 어려웠던 점은 무엇인가요?", "is_finished": false}`
	utterance, finished := parseDialoguePayload(raw)
	assert.Contains(t, utterance, "어려웠던 점")
	assert.False(t, finished)
}

func TestNewControllerValidation(t *testing.T) {
	store := &mockEvaluationStore{}
	_, err := NewController(nil, nil, nil, store)
	require.Error(t, err)

	_, err = NewController(&mockDialogueModel{}, nil, nil, nil)
	require.Error(t, err)
}
