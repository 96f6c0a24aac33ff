package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"ai-interview-go/internal/config"
	"ai-interview-go/internal/tracing"
	"ai-interview-go/internal/types"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var llmTracer = otel.Tracer("ai-interview-go/llm")

// Client 封装OpenAI兼容接口, 提供对话/语音识别/语音合成能力
type Client struct {
	api *openai.Client
	cfg *config.OpenAIConfig
}

// NewClient 创建OpenAI客户端
func NewClient(cfg *config.OpenAIConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("OpenAI配置不能为空")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API Key不能为空")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Client{
		api: openai.NewClientWithConfig(clientConfig),
		cfg: cfg,
	}, nil
}

// timeout 为单次请求附加配置的超时
func (c *Client) timeout(ctx context.Context) (context.Context, context.CancelFunc) {
	seconds := c.cfg.TimeoutSeconds
	if seconds <= 0 {
		seconds = 60
	}
	return context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
}

// toOpenAIMessages 转换为go-openai的消息格式
func toOpenAIMessages(messages []types.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		out[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}
	return out
}

// Chat 普通对话补全, 返回首个choice的文本
func (c *Client) Chat(ctx context.Context, messages []types.ChatMessage) (string, error) {
	return c.chat(ctx, messages, false)
}

// ChatJSON 以JSON模式调用对话补全, 模型被强制输出JSON对象
func (c *Client) ChatJSON(ctx context.Context, messages []types.ChatMessage) (string, error) {
	return c.chat(ctx, messages, true)
}

func (c *Client) chat(ctx context.Context, messages []types.ChatMessage, jsonMode bool) (string, error) {
	ctx, cancel := c.timeout(ctx)
	defer cancel()

	ctx, span := llmTracer.Start(ctx, "LLM.Chat", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("llm.model", c.cfg.ChatModel),
		attribute.Int("llm.message_count", len(messages)),
		attribute.Bool("llm.json_mode", jsonMode),
	)

	req := openai.ChatCompletionRequest{
		Model:       c.cfg.ChatModel,
		Messages:    toOpenAIMessages(messages),
		Temperature: float32(c.cfg.Temperature),
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return "", fmt.Errorf("对话模型调用失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		err := fmt.Errorf("对话模型返回空choices")
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return "", err
	}

	content := resp.Choices[0].Message.Content
	span.SetAttributes(attribute.Int("llm.response_length", len(content)))
	span.SetStatus(codes.Ok, "")
	return content, nil
}

// Transcribe 语音识别, 音频为容器格式(如webm/mp3/wav), filename用于推断格式
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	ctx, cancel := c.timeout(ctx)
	defer cancel()

	ctx, span := llmTracer.Start(ctx, "LLM.Transcribe", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("stt.model", c.cfg.STTModel),
		attribute.String("stt.language", c.cfg.STTLanguage),
		attribute.Int("stt.audio_bytes", len(audio)),
	)

	if len(audio) == 0 {
		err := fmt.Errorf("音频数据为空")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return "", err
	}
	if filename == "" {
		filename = "audio.webm"
	}

	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.cfg.STTModel,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
		Language: c.cfg.STTLanguage,
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeSpeech)
		return "", fmt.Errorf("语音识别失败: %w", err)
	}

	span.SetAttributes(attribute.Int("stt.text_length", len(resp.Text)))
	span.SetStatus(codes.Ok, "")
	return resp.Text, nil
}

// Synthesize 语音合成, 返回mp3音频字节
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	ctx, cancel := c.timeout(ctx)
	defer cancel()

	ctx, span := llmTracer.Start(ctx, "LLM.Synthesize", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("tts.model", c.cfg.TTSModel),
		attribute.String("tts.voice", c.cfg.TTSVoice),
		attribute.String("tts.text", tracing.SafeUtterance(text)),
	)

	resp, err := c.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(c.cfg.TTSModel),
		Input:          text,
		Voice:          openai.SpeechVoice(c.cfg.TTSVoice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeSpeech)
		return nil, fmt.Errorf("语音合成失败: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeSpeech)
		return nil, fmt.Errorf("读取合成音频失败: %w", err)
	}

	span.SetAttributes(attribute.Int("tts.audio_bytes", len(audio)))
	span.SetStatus(codes.Ok, "")
	return audio, nil
}
