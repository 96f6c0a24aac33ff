package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"ai-interview-go/internal/config"
	"ai-interview-go/internal/logger"
	"ai-interview-go/internal/parser"
	"ai-interview-go/internal/storage"
	"ai-interview-go/internal/storage/models"
	"ai-interview-go/internal/types"
	"ai-interview-go/pkg/utils"

	"github.com/cloudwego/hertz/pkg/app"
	hertzutils "github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/gofrs/uuid/v5"
	"gorm.io/gorm"
)

// ResumeHandler 简历上传处理器, 串联去重/归档/文本提取/可靠性评估
type ResumeHandler struct {
	cfg       *config.Config
	storage   *storage.Storage
	extractor *parser.EinoPDFTextExtractor
	checker   *parser.LLMResumeChecker
}

// NewResumeHandler 创建简历上传处理器
func NewResumeHandler(
	cfg *config.Config,
	storage *storage.Storage,
	extractor *parser.EinoPDFTextExtractor,
	checker *parser.LLMResumeChecker,
) *ResumeHandler {
	return &ResumeHandler{
		cfg:       cfg,
		storage:   storage,
		extractor: extractor,
		checker:   checker,
	}
}

// HandleResumeUpload 处理一次简历上传
// 去重命中时直接返回, 不做提取; 归档到MinIO与落库均为可选依赖, 缺失时跳过
func (h *ResumeHandler) HandleResumeUpload(ctx context.Context, reader io.Reader, fileSize int64, filename string) (*types.ResumeUploadResult, error) {
	maxBytes := int64(h.cfg.Upload.MaxFileSizeMB) * 1024 * 1024
	if maxBytes > 0 && fileSize > maxBytes {
		return nil, fmt.Errorf("文件大小超过限制 %dMB", h.cfg.Upload.MaxFileSizeMB)
	}

	fileBytes, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("读取上传文件内容失败: %w", err)
	}
	if len(fileBytes) == 0 {
		return nil, fmt.Errorf("上传文件为空")
	}

	// 文件MD5去重, 依赖Redis; 未启用时跳过
	fileMD5Hex := utils.CalculateMD5(fileBytes)
	dedupMarked := false
	if h.cfg.Upload.DedupEnabled && h.storage.Redis != nil {
		exists, err := h.storage.Redis.CheckAndAddRawFileMD5(ctx, fileMD5Hex)
		if err != nil {
			// 去重失败不阻断上传, 只是失去一道防线
			logger.Warn().Err(err).Str("md5", fileMD5Hex).Msg("文件MD5去重检查失败, 继续处理")
		} else if exists {
			logger.Info().Str("md5", fileMD5Hex).Str("filename", filename).Msg("检测到重复的文件MD5, 跳过处理")
			return &types.ResumeUploadResult{Duplicate: true}, nil
		} else {
			dedupMarked = true
		}
	}

	uuidV7, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("生成UUIDv7失败: %w", err)
	}
	submissionUUID := uuidV7.String()

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".pdf"
	}

	// 归档原始文件, MinIO未启用时跳过
	var originalObjectKey string
	if h.storage.MinIO != nil {
		originalObjectKey, err = h.storage.MinIO.UploadResumeFile(ctx, submissionUUID, ext, bytes.NewReader(fileBytes), int64(len(fileBytes)))
		if err != nil {
			return nil, fmt.Errorf("上传简历到MinIO失败: %w", err)
		}
	}

	// 提取文本
	text, _, err := h.extractor.ExtractTextFromBytes(ctx, fileBytes, filename, nil)
	if err != nil {
		h.rollbackUpload(ctx, dedupMarked, fileMD5Hex, originalObjectKey)
		return nil, fmt.Errorf("PDF文本提取失败: %w", err)
	}

	// 可靠性评估
	check, err := h.checker.Check(ctx, text)
	if err != nil {
		h.rollbackUpload(ctx, dedupMarked, fileMD5Hex, originalObjectKey)
		return nil, fmt.Errorf("简历可靠性评估失败: %w", err)
	}

	// 归档解析文本
	var parsedTextKey string
	if h.storage.MinIO != nil {
		parsedTextKey, err = h.storage.MinIO.UploadParsedText(ctx, submissionUUID, text)
		if err != nil {
			// 文本归档失败不阻断, 原始文件已保留
			logger.Warn().Err(err).Str("submission_uuid", submissionUUID).Msg("上传解析文本到MinIO失败")
		}
	}

	// 落库提交记录
	if h.storage.SQLite != nil {
		submission := &models.ResumeSubmission{
			SubmissionUUID:      submissionUUID,
			OriginalFilename:    filename,
			OriginalFilePathOSS: originalObjectKey,
			ParsedTextPathOSS:   parsedTextKey,
			RawFileMD5:          fileMD5Hex,
			ReliabilityJSON:     utils.StructToJSON(check),
		}
		if err := h.storage.SQLite.CreateResumeSubmission(ctx, submission); err != nil {
			logger.Warn().Err(err).Str("submission_uuid", submissionUUID).Msg("保存简历提交记录失败")
		}
	}

	// 缓存解析文本, 供后续会话按UUID取回
	if h.storage.Redis != nil {
		if err := h.storage.Redis.CacheResumeText(ctx, submissionUUID, text); err != nil {
			logger.Warn().Err(err).Str("submission_uuid", submissionUUID).Msg("缓存简历文本失败")
		}
	}

	return &types.ResumeUploadResult{
		SubmissionUUID: submissionUUID,
		Text:           text,
		Check:          *check,
	}, nil
}

// rollbackUpload 撤销上传流水线的中间产物
// 提取或评估失败后调用: 已标记的去重MD5和已归档的原始文件都要清掉, 否则重试会被误判为重复
func (h *ResumeHandler) rollbackUpload(ctx context.Context, dedupMarked bool, fileMD5Hex, originalObjectKey string) {
	if dedupMarked && h.storage.Redis != nil {
		if err := h.storage.Redis.RemoveRawFileMD5(ctx, fileMD5Hex); err != nil {
			logger.Warn().Err(err).Str("md5", fileMD5Hex).Msg("回滚文件MD5去重标记失败")
		}
	}
	if originalObjectKey != "" && h.storage.MinIO != nil {
		if err := h.storage.MinIO.DeleteFile(ctx, originalObjectKey); err != nil {
			logger.Warn().Err(err).Str("object_key", originalObjectKey).Msg("回滚已归档的原始文件失败")
		}
	}
}

// ResumeDetail 简历查询响应
type ResumeDetail struct {
	SubmissionUUID   string                  `json:"submission_uuid"`
	OriginalFilename string                  `json:"original_filename"`
	Text             string                  `json:"text,omitempty"`
	Check            types.ResumeCheckResult `json:"check"`
	CreatedAt        string                  `json:"created_at"`
}

// HandleResumeGet 按UUID取回简历的解析文本与可靠性评估
// GET /api/v1/resume/:uuid
// 文本优先读Redis缓存, 未命中时回源MinIO并回填缓存
func (h *ResumeHandler) HandleResumeGet(ctx context.Context, c *app.RequestContext) {
	submissionUUID := c.Param("uuid")
	if submissionUUID == "" {
		c.JSON(consts.StatusBadRequest, hertzutils.H{"error": "uuid 不能为空"})
		return
	}
	if h.storage.SQLite == nil {
		c.JSON(consts.StatusInternalServerError, hertzutils.H{"error": "存储未初始化"})
		return
	}

	submission, err := h.storage.SQLite.GetResumeSubmission(ctx, submissionUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(consts.StatusNotFound, hertzutils.H{"error": "简历记录不存在"})
			return
		}
		c.JSON(consts.StatusInternalServerError, hertzutils.H{"error": err.Error()})
		return
	}

	var text string
	cacheHit := false
	if h.storage.Redis != nil {
		cached, cacheErr := h.storage.Redis.GetResumeText(ctx, submissionUUID)
		if cacheErr == nil {
			text = cached
			cacheHit = true
		} else if !errors.Is(cacheErr, storage.ErrNotFound) {
			logger.Warn().Err(cacheErr).Str("submission_uuid", submissionUUID).Msg("读取简历文本缓存失败")
		}
	}
	if !cacheHit && h.storage.MinIO != nil && submission.ParsedTextPathOSS != "" {
		parsed, textErr := h.storage.MinIO.GetParsedText(ctx, submission.ParsedTextPathOSS)
		if textErr != nil {
			logger.Warn().Err(textErr).Str("submission_uuid", submissionUUID).Msg("从MinIO读取解析文本失败")
		} else {
			text = parsed
			if h.storage.Redis != nil {
				if cacheErr := h.storage.Redis.CacheResumeText(ctx, submissionUUID, parsed); cacheErr != nil {
					logger.Warn().Err(cacheErr).Str("submission_uuid", submissionUUID).Msg("回填简历文本缓存失败")
				}
			}
		}
	}

	var check types.ResumeCheckResult
	if len(submission.ReliabilityJSON) > 0 {
		if jsonErr := json.Unmarshal(submission.ReliabilityJSON, &check); jsonErr != nil {
			logger.Warn().Err(jsonErr).Str("submission_uuid", submissionUUID).Msg("解析可靠性评估JSON失败")
		}
	}

	c.JSON(consts.StatusOK, ResumeDetail{
		SubmissionUUID:   submission.SubmissionUUID,
		OriginalFilename: submission.OriginalFilename,
		Text:             text,
		Check:            check,
		CreatedAt:        submission.CreatedAt.Format("2006-01-02 15:04"),
	})
}

// HandleResumeDownload 下载归档的原始简历文件
// GET /api/v1/resume/:uuid/file
func (h *ResumeHandler) HandleResumeDownload(ctx context.Context, c *app.RequestContext) {
	submissionUUID := c.Param("uuid")
	if submissionUUID == "" {
		c.JSON(consts.StatusBadRequest, hertzutils.H{"error": "uuid 不能为空"})
		return
	}
	if h.storage.SQLite == nil {
		c.JSON(consts.StatusInternalServerError, hertzutils.H{"error": "存储未初始化"})
		return
	}

	submission, err := h.storage.SQLite.GetResumeSubmission(ctx, submissionUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(consts.StatusNotFound, hertzutils.H{"error": "简历记录不存在"})
			return
		}
		c.JSON(consts.StatusInternalServerError, hertzutils.H{"error": err.Error()})
		return
	}

	if h.storage.MinIO == nil || submission.OriginalFilePathOSS == "" {
		c.JSON(consts.StatusNotFound, hertzutils.H{"error": "原始文件未归档"})
		return
	}

	data, err := h.storage.MinIO.GetResumeFile(ctx, submission.OriginalFilePathOSS)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, hertzutils.H{"error": err.Error()})
		return
	}

	ext := strings.ToLower(filepath.Ext(submission.OriginalFilename))
	if ext == "" {
		ext = ".pdf"
	}
	c.Response.Header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, submission.OriginalFilename))
	c.Data(consts.StatusOK, storage.ContentTypeForExt(ext), data)
}
