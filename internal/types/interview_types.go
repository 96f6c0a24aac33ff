package types

// ChatRole 对话消息角色
type ChatRole string

const (
	// RoleSystem 系统消息(面试官人设+简历)
	RoleSystem ChatRole = "system"
	// RoleUser 候选人发言
	RoleUser ChatRole = "user"
	// RoleAssistant 面试官提问
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage 一条对话消息, 客户端每轮提交完整历史
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// DialogueTurn 一轮面试官回合的结果
type DialogueTurn struct {
	Text     string `json:"response"`             // 面试官话术
	AudioB64 string `json:"audio_base64"`         // 话术的TTS音频(base64)
	Finished bool   `json:"is_finished"`          // 面试是否结束
	Asked    int    `json:"asked_count,omitempty"` // 已提问数量(含本轮)
}

// EvaluationRecord 一次面试的评估结果, 对应 interview_history 表的一行
type EvaluationRecord struct {
	ID       uint   `json:"id,omitempty"`
	Date     string `json:"date"` // "YYYY-MM-DD HH:MM" 本地时间
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
	Summary  string `json:"summary"`
}

// ResumeCheckResult 简历可读性评估结果
type ResumeCheckResult struct {
	Score  int    `json:"score"` // 0-100, 低于阈值视为不可用
	Reason string `json:"reason"`
}

// ResumeUploadResult 简历上传处理结果
type ResumeUploadResult struct {
	SubmissionUUID string            `json:"submission_uuid"`
	Text           string            `json:"text"`
	Check          ResumeCheckResult `json:"check"`
	Duplicate      bool              `json:"duplicate"` // 文件MD5命中去重集合
}

// EvaluationSavedEvent 评估落库后发布的事件
type EvaluationSavedEvent struct {
	RecordID uint   `json:"record_id"`
	Date     string `json:"date"`
	Score    int    `json:"score"`
}
