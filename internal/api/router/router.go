package router

import (
	"context"

	"ai-interview-go/internal/api/handler"
	"ai-interview-go/internal/config"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"
)

// RegisterRoutes 注册 API 路由
// cfg.Server.APIKeys非空时对业务路由启用API Key鉴权, /health不鉴权
func RegisterRoutes(h *server.Hertz, cfg *config.Config, resumeHandler *handler.ResumeHandler, interviewHandler *handler.InterviewHandler) {
	api := h.Group("/api/v1")

	api.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})

	if len(cfg.Server.APIKeys) > 0 {
		keys := make(map[string]struct{}, len(cfg.Server.APIKeys))
		for _, k := range cfg.Server.APIKeys {
			keys[k] = struct{}{}
		}
		api.Use(keyauth.New(
			keyauth.WithKeyLookUp("header:X-API-Key", ""),
			keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, key string) (bool, error) {
				_, ok := keys[key]
				return ok, nil
			}),
		))
	}

	api.POST("/resume/upload", func(c context.Context, ctx *app.RequestContext) {
		fileHeader, err := ctx.FormFile("file")
		if err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "文件未找到"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "打开文件失败"})
			return
		}
		defer file.Close()

		resp, err := resumeHandler.HandleResumeUpload(c, file, fileHeader.Size, fileHeader.Filename)
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
			return
		}

		ctx.JSON(consts.StatusOK, resp)
	})

	api.GET("/resume/:uuid", resumeHandler.HandleResumeGet)
	api.GET("/resume/:uuid/file", resumeHandler.HandleResumeDownload)

	api.POST("/interview/chat", interviewHandler.HandleChat)
	api.POST("/interview/stt", interviewHandler.HandleSTT)
	api.POST("/interview/simulate", interviewHandler.HandleSimulate)
	api.POST("/interview/hint", interviewHandler.HandleHint)
	api.POST("/interview/evaluate", interviewHandler.HandleEvaluate)
	api.GET("/interview/history", interviewHandler.HandleHistory)
}
