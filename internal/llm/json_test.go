package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "纯JSON",
			input:    `{"score": 80}`,
			expected: `{"score": 80}`,
		},
		{
			name:     "代码块包裹",
			input:    "```json\n{\"score\": 80}\n```",
			expected: `{"score": 80}`,
		},
		{
			name:     "前后带说明文字",
			input:    "评估结果如下:\n{\"score\": 80, \"reason\": \"ok\"}\n以上。",
			expected: `{"score": 80, "reason": "ok"}`,
		},
		{
			name:     "嵌套对象",
			input:    `外层 {"a": {"b": 1}} 尾巴`,
			expected: `{"a": {"b": 1}}`,
		},
		{
			name:     "无JSON",
			input:    "这里没有任何对象",
			expected: "",
		},
		{
			name:     "未闭合",
			input:    `{"a": 1`,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractJSONObject(tt.input))
		})
	}
}

func TestSanitizeJSONEscapesInnerQuotes(t *testing.T) {
	raw := `{"feedback": "지원자는 "구체적" 사례가 부족합니다.", "score": 70}`

	var target struct {
		Feedback string `json:"feedback"`
		Score    int    `json:"score"`
	}
	// 原始串无法直接反序列化
	require.Error(t, json.Unmarshal([]byte(raw), &target))

	fixed := SanitizeJSON(raw)
	require.NoError(t, json.Unmarshal([]byte(fixed), &target))
	assert.Equal(t, 70, target.Score)
	assert.Contains(t, target.Feedback, "구체적")
}

func TestSanitizeJSONKeepsValidJSON(t *testing.T) {
	raw := `{"a": "hello \"world\"", "b": [1, 2], "c": {"d": "x"}}`
	fixed := SanitizeJSON(raw)

	var target map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(fixed), &target))
	assert.Equal(t, `hello "world"`, target["a"])
}
