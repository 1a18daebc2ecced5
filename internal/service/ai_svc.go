package service

import (
	"context"
	"fmt"
	"time"

	"pasarmalam/internal/model"
	"pasarmalam/internal/repository"
	"pasarmalam/pkg/logger"

	"go.uber.org/zap"
)

// ==================== 接口 ====================

// AIProvider 识图与文本解析的上游（后端代理或直连 Gemini）
type AIProvider interface {
	ScanImage(ctx context.Context, image string) ([]model.ParsedItem, error)
	ParseText(ctx context.Context, text string, listingType model.ListingType) ([]model.ParsedItem, error)
}

// ==================== 调用方信息 ====================

type callMetaKey struct{}

type callMeta struct {
	userID    string
	sessionID string
}

// WithCallMeta 在 ctx 中附带调用方，用于记录 AI 调用日志
func WithCallMeta(ctx context.Context, userID, sessionID string) context.Context {
	return context.WithValue(ctx, callMetaKey{}, callMeta{userID: userID, sessionID: sessionID})
}

func callMetaFrom(ctx context.Context) callMeta {
	m, _ := ctx.Value(callMetaKey{}).(callMeta)
	return m
}

// ==================== 服务 ====================

// AIService 包装 AI 上游，记录每次调用的耗时、条目数和结果
type AIService struct {
	provider     AIProvider
	providerName string
	callLogRepo  repository.AICallLogRepository
	log          *zap.Logger
}

// NewAIService 创建 AI 服务，callLogRepo 为 nil 时不落库
func NewAIService(provider AIProvider, providerName string, callLogRepo repository.AICallLogRepository, log *zap.Logger) *AIService {
	return &AIService{
		provider:     provider,
		providerName: providerName,
		callLogRepo:  callLogRepo,
		log:          logger.OrNop(log),
	}
}

// ScanImage 识图
func (s *AIService) ScanImage(ctx context.Context, image string) ([]model.ParsedItem, error) {
	start := time.Now()
	items, err := s.provider.ScanImage(ctx, image)
	s.record(ctx, model.AICallTypeScan, len(image), start, items, err)
	if err != nil {
		return nil, fmt.Errorf("scan image: %w", err)
	}
	return items, nil
}

// ParseText 文本解析
func (s *AIService) ParseText(ctx context.Context, text string, listingType model.ListingType) ([]model.ParsedItem, error) {
	start := time.Now()
	items, err := s.provider.ParseText(ctx, text, listingType)
	s.record(ctx, model.AICallTypeParse, len(text), start, items, err)
	if err != nil {
		return nil, fmt.Errorf("parse text: %w", err)
	}
	return items, nil
}

func (s *AIService) record(ctx context.Context, callType string, inputBytes int, start time.Time, items []model.ParsedItem, callErr error) {
	meta := callMetaFrom(ctx)
	entry := &model.AICallLog{
		UserID:     meta.userID,
		SessionID:  meta.sessionID,
		CallType:   callType,
		Provider:   s.providerName,
		InputBytes: inputBytes,
		ItemCount:  len(items),
		DurationMs: time.Since(start).Milliseconds(),
		Status:     model.AICallStatusSuccess,
	}
	if callErr != nil {
		entry.Status = model.AICallStatusFailed
		entry.ErrorMsg = truncateError(callErr.Error(), 1024)
	}

	s.log.Info("AI 调用",
		zap.String("type", callType),
		zap.String("provider", s.providerName),
		zap.String("user_id", meta.userID),
		zap.Int("items", entry.ItemCount),
		zap.Int64("duration_ms", entry.DurationMs),
		zap.String("status", entry.Status),
	)

	if s.callLogRepo == nil {
		return
	}
	// 请求可能已取消，日志写入不跟随请求 ctx
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := s.callLogRepo.Create(writeCtx, entry); err != nil {
		s.log.Warn("AI 调用日志写入失败", zap.Error(err))
	}
}

// GetUsage 查询用户在时间范围内的 AI 调用统计
func (s *AIService) GetUsage(ctx context.Context, userID string, start, end time.Time) (*repository.AIUsageStats, error) {
	if s.callLogRepo == nil {
		return &repository.AIUsageStats{}, nil
	}
	return s.callLogRepo.GetUsageByUser(ctx, userID, start, end)
}

func truncateError(msg string, max int) string {
	if len(msg) <= max {
		return msg
	}
	return msg[:max]
}
