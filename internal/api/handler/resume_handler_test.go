package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"ai-interview-go/internal/config"
	"ai-interview-go/internal/storage"
	"ai-interview-go/internal/storage/models"

	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newResumeTestEngine 构造只挂载查询路由的引擎, SQLite用内存库
func newResumeTestEngine(t *testing.T) (*route.Engine, *storage.Storage) {
	t.Helper()

	db, err := storage.NewSQLite(&config.SQLiteConfig{Path: ":memory:", LogLevel: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	st := &storage.Storage{SQLite: db}
	h := NewResumeHandler(&config.Config{}, st, nil, nil)

	engine := route.NewEngine(hertzconfig.NewOptions([]hertzconfig.Option{}))
	api := engine.Group("/api/v1")
	api.GET("/resume/:uuid", h.HandleResumeGet)
	api.GET("/resume/:uuid/file", h.HandleResumeDownload)
	return engine, st
}

func TestHandleResumeGetReturnsRecord(t *testing.T) {
	engine, st := newResumeTestEngine(t)

	submission := &models.ResumeSubmission{
		SubmissionUUID:   "0190a1b2-0000-7000-8000-000000000001",
		OriginalFilename: "resume.pdf",
		RawFileMD5:       "d41d8cd98f00b204e9800998ecf8427e",
		ReliabilityJSON:  models.StringToJSON(`{"score": 80, "reason": "경력 기술이 명확합니다."}`),
	}
	require.NoError(t, st.SQLite.CreateResumeSubmission(context.Background(), submission))

	resp := performJSON(t, engine, "GET", "/api/v1/resume/"+submission.SubmissionUUID, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var detail ResumeDetail
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &detail))
	assert.Equal(t, submission.SubmissionUUID, detail.SubmissionUUID)
	assert.Equal(t, "resume.pdf", detail.OriginalFilename)
	assert.Equal(t, 80, detail.Check.Score)
	assert.Contains(t, detail.Check.Reason, "경력")
	// 缓存与对象存储都未配置时拿不到正文, 但元数据仍可返回
	assert.Empty(t, detail.Text)
	assert.NotEmpty(t, detail.CreatedAt)
}

func TestHandleResumeGetNotFound(t *testing.T) {
	engine, _ := newResumeTestEngine(t)

	resp := performJSON(t, engine, "GET", "/api/v1/resume/0190a1b2-0000-7000-8000-00000000dead", nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestHandleResumeDownloadNotArchived(t *testing.T) {
	engine, st := newResumeTestEngine(t)

	submission := &models.ResumeSubmission{
		SubmissionUUID:   "0190a1b2-0000-7000-8000-000000000002",
		OriginalFilename: "resume.pdf",
	}
	require.NoError(t, st.SQLite.CreateResumeSubmission(context.Background(), submission))

	// 对象存储未启用时原始文件不可取回
	resp := performJSON(t, engine, "GET", "/api/v1/resume/"+submission.SubmissionUUID+"/file", nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
}
