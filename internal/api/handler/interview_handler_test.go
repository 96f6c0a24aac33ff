package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"ai-interview-go/internal/constants"
	"ai-interview-go/internal/interview"
	"ai-interview-go/internal/storage/models"
	"ai-interview-go/internal/types"

	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubModel 固定应答的对话模型
type stubModel struct {
	chatResponse     string
	chatJSONResponse string
	err              error
}

func (s *stubModel) Chat(ctx context.Context, messages []types.ChatMessage) (string, error) {
	return s.chatResponse, s.err
}

func (s *stubModel) ChatJSON(ctx context.Context, messages []types.ChatMessage) (string, error) {
	return s.chatJSONResponse, s.err
}

// stubStore 内存评估存储
type stubStore struct {
	records []models.InterviewHistory
}

func (s *stubStore) AppendEvaluation(ctx context.Context, record *models.InterviewHistory) error {
	record.ID = uint(len(s.records) + 1)
	s.records = append(s.records, *record)
	return nil
}

func (s *stubStore) ListEvaluations(ctx context.Context) ([]models.InterviewHistory, error) {
	out := make([]models.InterviewHistory, 0, len(s.records))
	for i := len(s.records) - 1; i >= 0; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

func newTestEngine(t *testing.T, model *stubModel, store *stubStore) *route.Engine {
	t.Helper()

	controller, err := interview.NewController(model, nil, nil, store)
	require.NoError(t, err)
	h := NewInterviewHandler(controller, nil)

	engine := route.NewEngine(hertzconfig.NewOptions([]hertzconfig.Option{}))
	api := engine.Group("/api/v1")
	api.POST("/interview/chat", h.HandleChat)
	api.POST("/interview/simulate", h.HandleSimulate)
	api.POST("/interview/hint", h.HandleHint)
	api.POST("/interview/evaluate", h.HandleEvaluate)
	api.GET("/interview/history", h.HandleHistory)
	return engine
}

func performJSON(t *testing.T, engine *route.Engine, method, path string, payload interface{}) *ut.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(data)
	} else {
		body = bytes.NewBuffer(nil)
	}
	return ut.PerformRequest(engine, method, path,
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: "application/json"},
	)
}

func TestHandleChat(t *testing.T) {
	model := &stubModel{
		chatJSONResponse: `{"response": "자기소개를 해 주세요.", "is_finished": false}`,
	}
	engine := newTestEngine(t, model, &stubStore{})

	resp := performJSON(t, engine, "POST", "/api/v1/interview/chat", ChatRequest{
		History: []types.ChatMessage{
			{Role: types.RoleSystem, Content: "이력서 내용"},
		},
		Role: "백엔드 개발자",
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var turn types.DialogueTurn
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &turn))
	assert.Equal(t, "자기소개를 해 주세요.", turn.Text)
	assert.False(t, turn.Finished)
}

func TestHandleChatBudgetExhausted(t *testing.T) {
	model := &stubModel{chatJSONResponse: `{"response": "x", "is_finished": false}`}
	engine := newTestEngine(t, model, &stubStore{})

	history := []types.ChatMessage{{Role: types.RoleSystem, Content: "이력서"}}
	for i := 0; i < 2; i++ {
		history = append(history,
			types.ChatMessage{Role: types.RoleAssistant, Content: fmt.Sprintf("질문 %d", i+1)},
			types.ChatMessage{Role: types.RoleUser, Content: "답변"},
		)
	}

	resp := performJSON(t, engine, "POST", "/api/v1/interview/chat", ChatRequest{
		History:       history,
		QuestionCount: 2,
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var turn types.DialogueTurn
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &turn))
	assert.True(t, turn.Finished)
	assert.Equal(t, constants.ClosingUtterance, turn.Text)
}

func TestHandleChatModelFailure(t *testing.T) {
	model := &stubModel{err: fmt.Errorf("upstream unavailable")}
	engine := newTestEngine(t, model, &stubStore{})

	resp := performJSON(t, engine, "POST", "/api/v1/interview/chat", ChatRequest{
		History: []types.ChatMessage{{Role: types.RoleUser, Content: "안녕하세요"}},
	})
	require.Equal(t, http.StatusInternalServerError, resp.Code)

	var errResp map[string]string
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &errResp))
	assert.NotEmpty(t, errResp["error"])
}

func TestHandleSimulateEmptyHistory(t *testing.T) {
	engine := newTestEngine(t, &stubModel{}, &stubStore{})

	resp := performJSON(t, engine, "POST", "/api/v1/interview/simulate", SimulateRequest{})
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandleSimulate(t *testing.T) {
	model := &stubModel{chatResponse: "저는 3년간 Go 백엔드를 개발했습니다."}
	engine := newTestEngine(t, model, &stubStore{})

	resp := performJSON(t, engine, "POST", "/api/v1/interview/simulate", SimulateRequest{
		History: []types.ChatMessage{
			{Role: types.RoleAssistant, Content: "경력을 소개해 주세요."},
		},
		ResumeText: "Go 백엔드 3년",
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Contains(t, body["answer"], "Go 백엔드")
}

func TestHandleHintMissingQuestion(t *testing.T) {
	engine := newTestEngine(t, &stubModel{}, &stubStore{})

	resp := performJSON(t, engine, "POST", "/api/v1/interview/hint", HintRequest{})
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandleEvaluateAndHistory(t *testing.T) {
	model := &stubModel{
		chatJSONResponse: `{"score": 82, "feedback": "답변 구조가 좋습니다.", "summary": "합격권."}`,
	}
	store := &stubStore{}
	engine := newTestEngine(t, model, store)

	resp := performJSON(t, engine, "POST", "/api/v1/interview/evaluate", EvaluateRequest{
		History: []types.ChatMessage{
			{Role: types.RoleAssistant, Content: "질문"},
			{Role: types.RoleUser, Content: "답변"},
		},
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var record types.EvaluationRecord
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &record))
	assert.Equal(t, 82, record.Score)
	assert.NotZero(t, record.ID)
	require.Len(t, store.records, 1)

	// 历史接口能读回刚写入的记录
	histResp := performJSON(t, engine, "GET", "/api/v1/interview/history", nil)
	require.Equal(t, http.StatusOK, histResp.Code)

	var histBody struct {
		History []types.EvaluationRecord `json:"history"`
	}
	require.NoError(t, json.Unmarshal(histResp.Body.Bytes(), &histBody))
	require.Len(t, histBody.History, 1)
	assert.Equal(t, 82, histBody.History[0].Score)
}

func TestHandleEvaluateEmptyHistory(t *testing.T) {
	engine := newTestEngine(t, &stubModel{}, &stubStore{})

	resp := performJSON(t, engine, "POST", "/api/v1/interview/evaluate", EvaluateRequest{})
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandleChatBadBody(t *testing.T) {
	engine := newTestEngine(t, &stubModel{}, &stubStore{})

	body := bytes.NewBufferString("{not-json")
	resp := ut.PerformRequest(engine, "POST", "/api/v1/interview/chat",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: "application/json"},
	)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}
