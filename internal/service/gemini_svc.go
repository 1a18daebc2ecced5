package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pasarmalam/internal/model"
	"pasarmalam/pkg/logger"
	"pasarmalam/pkg/utils"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// ==================== Prompt ====================

const scanImagePrompt = `Look at this image of board games. Identify ALL board games visible.
Return a JSON ARRAY of objects. Each object must have:
- 'title' (string)
- 'price' (number, guess 0 if not visible)
- 'condition' (number 1.0 to 10.0, estimate based on wear, default 8.0)
- 'description' (short text)
Strictly JSON array only. Do not wrap in markdown.`

const parseTextPrompt = `Analyze this selling post. Extract ALL listed items into a JSON ARRAY.
Each object keys: title, price (number only), condition (number 1.0-10.0), description.
Text: %q
Strictly JSON array only. Do not wrap in markdown.`

// ==================== 配置 ====================

// GeminiConfig Gemini 配置
type GeminiConfig struct {
	APIKey string
	Model  string
}

// ErrGeminiNotConfigured 未配置 API Key
var ErrGeminiNotConfigured = errors.New("gemini api key not configured")

// ==================== 服务 ====================

// GeminiService 直连 Gemini 的识图与文本解析
type GeminiService struct {
	cfg GeminiConfig
	log *zap.Logger
}

// NewGeminiService 创建 Gemini 服务
func NewGeminiService(cfg GeminiConfig, log *zap.Logger) *GeminiService {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	return &GeminiService{cfg: cfg, log: logger.OrNop(log)}
}

// Provider 数据源名称
func (s *GeminiService) Provider() string { return "gemini" }

// ScanImage 识别照片中的全部桌游
func (s *GeminiService) ScanImage(ctx context.Context, image string) ([]model.ParsedItem, error) {
	data, mime, err := utils.DecodeImagePayload(image)
	if err != nil {
		return nil, err
	}
	// genai.ImageData 需要 "jpeg" / "png" 这样的子类型
	format := strings.TrimPrefix(mime, "image/")

	raw, err := s.generate(ctx, "You are a board game expert.",
		genai.ImageData(format, data),
		genai.Text(scanImagePrompt),
	)
	if err != nil {
		return nil, err
	}
	return s.decodeItems(raw), nil
}

// ParseText 从粘贴的出售帖中提取条目
func (s *GeminiService) ParseText(ctx context.Context, text string, _ model.ListingType) ([]model.ParsedItem, error) {
	raw, err := s.generate(ctx, "You are a board game marketplace assistant.",
		genai.Text(fmt.Sprintf(parseTextPrompt, text)),
	)
	if err != nil {
		return nil, err
	}
	return s.decodeItems(raw), nil
}

func (s *GeminiService) generate(ctx context.Context, system string, parts ...genai.Part) (string, error) {
	if s.cfg.APIKey == "" {
		return "", ErrGeminiNotConfigured
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(s.cfg.APIKey))
	if err != nil {
		return "", fmt.Errorf("gemini client: %w", err)
	}
	defer client.Close()

	m := client.GenerativeModel(s.cfg.Model)
	m.ResponseMIMEType = "application/json"
	m.SystemInstruction = genai.NewUserContent(genai.Text(system))

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String(), nil
}

// decodeItems 解析模型输出，无法解析时返回空列表
func (s *GeminiService) decodeItems(raw string) []model.ParsedItem {
	items, err := ParseItemsJSON(raw)
	if err != nil {
		s.log.Warn("AI 输出无法解析为 JSON 数组", zap.Error(err), zap.Int("len", len(raw)))
		return []model.ParsedItem{}
	}
	return items
}

// ParseItemsJSON 去掉 markdown 代码块后解析条目，数组与单个对象均可
func ParseItemsJSON(raw string) ([]model.ParsedItem, error) {
	return model.ParseItemsJSON(raw)
}
