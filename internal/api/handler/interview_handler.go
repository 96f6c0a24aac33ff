package handler

import (
	"context"
	"encoding/base64"
	"io"

	"ai-interview-go/internal/interview"
	"ai-interview-go/internal/logger"
	"ai-interview-go/internal/storage"
	"ai-interview-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// InterviewHandler 面试接口处理器
type InterviewHandler struct {
	controller *interview.Controller
	storage    *storage.Storage // 音频归档用, 可选
}

// NewInterviewHandler 创建面试接口处理器
func NewInterviewHandler(controller *interview.Controller, storage *storage.Storage) *InterviewHandler {
	return &InterviewHandler{
		controller: controller,
		storage:    storage,
	}
}

// ChatRequest 面试对话请求
// 客户端每轮提交完整历史, 服务端不保存会话状态
type ChatRequest struct {
	History       []types.ChatMessage `json:"history"`
	Role          string              `json:"role,omitempty"`
	QuestionCount int                 `json:"question_count,omitempty"`
	SessionID     string              `json:"session_id,omitempty"` // 提供时归档本轮音频
}

// HandleChat 执行一轮面试官回合
// POST /api/v1/interview/chat
func (h *InterviewHandler) HandleChat(ctx context.Context, c *app.RequestContext) {
	var req ChatRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "请求体解析失败"})
		return
	}

	turn, err := h.controller.Dialogue(ctx, req.History, req.Role, req.QuestionCount)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}

	// 音频归档是尽力而为, 失败只记录
	if req.SessionID != "" && h.storage != nil && h.storage.MinIO != nil && turn.AudioB64 != "" {
		if audio, decErr := base64.StdEncoding.DecodeString(turn.AudioB64); decErr == nil {
			if _, upErr := h.storage.MinIO.UploadInterviewAudio(ctx, req.SessionID, turn.Asked, audio); upErr != nil {
				logger.Warn().Err(upErr).Str("session_id", req.SessionID).Msg("归档面试音频失败")
			}
		}
	}

	c.JSON(consts.StatusOK, turn)
}

// HandleSTT 语音识别
// POST /api/v1/interview/stt (multipart, 字段名 file)
func (h *InterviewHandler) HandleSTT(ctx context.Context, c *app.RequestContext) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "音频文件未找到"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "打开音频文件失败"})
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "读取音频文件失败"})
		return
	}

	text, err := h.controller.Transcribe(ctx, audio, fileHeader.Filename)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}

	c.JSON(consts.StatusOK, utils.H{"text": text})
}

// SimulateRequest 模拟应答请求
type SimulateRequest struct {
	History    []types.ChatMessage `json:"history"`
	ResumeText string              `json:"resume_text,omitempty"`
}

// HandleSimulate 以候选人视角生成示范回答
// POST /api/v1/interview/simulate
func (h *InterviewHandler) HandleSimulate(ctx context.Context, c *app.RequestContext) {
	var req SimulateRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "请求体解析失败"})
		return
	}
	if len(req.History) == 0 {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "对话历史不能为空"})
		return
	}

	answer, err := h.controller.SimulateAnswer(ctx, req.History, req.ResumeText)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}

	c.JSON(consts.StatusOK, utils.H{"answer": answer})
}

// HintRequest 答题指导请求
type HintRequest struct {
	Question   string `json:"question"`
	ResumeText string `json:"resume_text,omitempty"`
	Role       string `json:"role,omitempty"`
}

// HandleHint 针对面试问题给出答题方向
// POST /api/v1/interview/hint
func (h *InterviewHandler) HandleHint(ctx context.Context, c *app.RequestContext) {
	var req HintRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "请求体解析失败"})
		return
	}
	if req.Question == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "question 不能为空"})
		return
	}

	hint, err := h.controller.AnswerHint(ctx, req.Question, req.ResumeText, req.Role)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}

	c.JSON(consts.StatusOK, utils.H{"hint": hint})
}

// EvaluateRequest 面试评估请求
type EvaluateRequest struct {
	History []types.ChatMessage `json:"history"`
}

// HandleEvaluate 对整场面试评分并持久化
// POST /api/v1/interview/evaluate
func (h *InterviewHandler) HandleEvaluate(ctx context.Context, c *app.RequestContext) {
	var req EvaluateRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "请求体解析失败"})
		return
	}
	if len(req.History) == 0 {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "对话历史不能为空"})
		return
	}

	record, err := h.controller.Evaluate(ctx, req.History)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}

	c.JSON(consts.StatusOK, record)
}

// HandleHistory 返回全部评估记录, 最新的在前
// GET /api/v1/interview/history
func (h *InterviewHandler) HandleHistory(ctx context.Context, c *app.RequestContext) {
	records, err := h.controller.History(ctx)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}

	c.JSON(consts.StatusOK, utils.H{"history": records})
}
