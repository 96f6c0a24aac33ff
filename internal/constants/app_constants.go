package constants

import "time"

const (
	// 面试流程常量
	DefaultQuestionCount = 10                 // 默认提问数量
	EvaluationDateLayout = "2006-01-02 15:04" // 评估记录时间格式(本地时间, 精确到分钟)
	MinResumeTextLength  = 50                 // 低于该长度的简历文本直接判定为不可读, 不调用LLM

	// ClosingUtterance 提问额度耗尽后的固定结束语(不经过对话模型)
	ClosingUtterance = "모든 질문이 끝났습니다. 수고하셨습니다. 면접을 종료하겠습니다."
	// FallbackUtterance 对话模型返回非法JSON时的兜底话术, 面试继续
	FallbackUtterance = "죄송합니다. 통신 오류가 발생했습니다. 다시 말씀해 주세요."
	// ErrorUtterance 结构化响应缺失response字段时的占位话术
	ErrorUtterance = "오류가 발생했습니다."

	// 存储相关常量
	RawFileMD5SetKey        = "resumes:file_md5s" // Redis Set, 存放原始简历文件MD5用于去重
	ResumeTextKeyPrefix     = "resume_text:"      // 简历解析文本缓存前缀, 后接submission UUID
	ResumeTextCacheDuration = 24 * time.Hour
)
