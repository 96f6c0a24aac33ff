package storage

import (
	"context"
	"testing"

	"ai-interview-go/internal/config"
	"ai-interview-go/internal/storage/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(&config.SQLiteConfig{
		Path:     ":memory:",
		LogLevel: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAndListEvaluations(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	first := &models.InterviewHistory{
		Date:     "2026-08-27 14:30",
		Score:    72,
		Feedback: "프로젝트 경험 답변에 구체적인 수치가 부족합니다.",
		Summary:  "백엔드 직무 면접, 전반적으로 무난.",
	}
	second := &models.InterviewHistory{
		Date:     "2026-08-28 09:15",
		Score:    85,
		Feedback: "문제 해결 과정 설명이 좋았습니다.",
		Summary:  "두 번째 면접, 지난번보다 개선됨.",
	}

	require.NoError(t, s.AppendEvaluation(ctx, first))
	require.NoError(t, s.AppendEvaluation(ctx, second))
	assert.NotZero(t, first.ID)
	assert.NotZero(t, second.ID)

	records, err := s.ListEvaluations(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// 最新的在前
	assert.Equal(t, second.ID, records[0].ID)
	assert.Equal(t, 85, records[0].Score)
	assert.Equal(t, "2026-08-28 09:15", records[0].Date)
	assert.Equal(t, first.ID, records[1].ID)

	// 字段完整保留
	assert.Equal(t, "프로젝트 경험 답변에 구체적인 수치가 부족합니다.", records[1].Feedback)
	assert.Equal(t, "백엔드 직무 면접, 전반적으로 무난.", records[1].Summary)
}

func TestListEvaluationsEmpty(t *testing.T) {
	s := newTestSQLite(t)

	records, err := s.ListEvaluations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestResumeSubmissionRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	submission := &models.ResumeSubmission{
		SubmissionUUID:      "01890a5d-ac96-774b-bcce-b302099a8057",
		OriginalFilename:    "resume.pdf",
		OriginalFilePathOSS: "resume/01890a5d-ac96-774b-bcce-b302099a8057/original.pdf",
		ParsedTextPathOSS:   "resume/01890a5d-ac96-774b-bcce-b302099a8057/parsed_text.txt",
		RawFileMD5:          "d41d8cd98f00b204e9800998ecf8427e",
		ReliabilityJSON:     models.StringToJSON(`{"score": 90, "reason": "ok"}`),
	}
	require.NoError(t, s.CreateResumeSubmission(ctx, submission))

	got, err := s.GetResumeSubmission(ctx, submission.SubmissionUUID)
	require.NoError(t, err)
	assert.Equal(t, "resume.pdf", got.OriginalFilename)
	assert.Equal(t, submission.RawFileMD5, got.RawFileMD5)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGetResumeSubmissionNotFound(t *testing.T) {
	s := newTestSQLite(t)

	_, err := s.GetResumeSubmission(context.Background(), "missing-uuid")
	require.Error(t, err)
}
