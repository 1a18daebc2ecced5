package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"pasarmalam/internal/model"
	"pasarmalam/internal/repository"
	"pasarmalam/pkg/logger"
	"pasarmalam/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// GameSearcher 桌游数据库搜索（后端代理或直连 BGG）
type GameSearcher interface {
	SearchGames(ctx context.Context, query string) ([]model.GameMatch, error)
}

// CatalogConfig 缓存配置
type CatalogConfig struct {
	Provider string        // 记录到缓存表的数据源名称
	MemTTL   time.Duration // 内存缓存有效期
	DBTTL    time.Duration // 数据库缓存有效期
}

// CatalogService 桌游搜索缓存层
// 查询顺序：内存 -> game_caches 表 -> 上游；同一查询词的并发请求合并为一次
type CatalogService struct {
	upstream GameSearcher
	repo     repository.GameCacheRepository
	mem      *utils.TTLCache[[]model.GameMatch]
	group    singleflight.Group
	cfg      CatalogConfig
	log      *zap.Logger
	now      func() time.Time
}

// NewCatalogService 创建缓存层，repo 可为 nil（仅内存缓存）
func NewCatalogService(upstream GameSearcher, repo repository.GameCacheRepository, cfg CatalogConfig, log *zap.Logger) *CatalogService {
	if cfg.MemTTL <= 0 {
		cfg.MemTTL = 10 * time.Minute
	}
	if cfg.DBTTL <= 0 {
		cfg.DBTTL = 24 * time.Hour
	}
	if cfg.Provider == "" {
		cfg.Provider = "backend"
	}
	return &CatalogService{
		upstream: upstream,
		repo:     repo,
		mem:      utils.NewTTLCache[[]model.GameMatch](cfg.MemTTL),
		cfg:      cfg,
		log:      logger.OrNop(log),
		now:      time.Now,
	}
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}

// queryLen 不计空白的字符数
func queryLen(key string) int {
	return utf8.RuneCountInString(strings.ReplaceAll(key, " ", ""))
}

// SearchGames 带缓存的搜索；空结果不缓存（BGG 处理中时会先返回空）
func (s *CatalogService) SearchGames(ctx context.Context, query string) ([]model.GameMatch, error) {
	key := normalizeQuery(query)
	if queryLen(key) < bggMinQueryLen {
		return []model.GameMatch{}, nil
	}

	if hit, ok := s.mem.Get(key); ok {
		return cloneMatches(hit), nil
	}

	v, err, shared := s.group.Do(key, func() (any, error) {
		if cached := s.loadFromDB(ctx, key); cached != nil {
			s.mem.Set(key, cached)
			return cached, nil
		}

		results, err := s.upstream.SearchGames(ctx, strings.TrimSpace(query))
		if err != nil {
			return nil, err
		}
		if len(results) > 0 {
			s.mem.Set(key, results)
			s.saveToDB(ctx, key, results)
		}
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.log.Debug("合并并发的桌游搜索", zap.String("query", key))
	}
	return cloneMatches(v.([]model.GameMatch)), nil
}

func (s *CatalogService) loadFromDB(ctx context.Context, key string) []model.GameMatch {
	if s.repo == nil {
		return nil
	}
	entry, err := s.repo.Get(ctx, key, s.now())
	if err != nil {
		s.log.Warn("读取桌游缓存失败", zap.String("query", key), zap.Error(err))
		return nil
	}
	if entry == nil {
		return nil
	}

	var results []model.GameMatch
	if err := json.Unmarshal(entry.Results, &results); err != nil || len(results) == 0 {
		return nil
	}
	if err := s.repo.Touch(ctx, entry.ID); err != nil {
		s.log.Debug("更新缓存命中次数失败", zap.Error(err))
	}
	return results
}

func (s *CatalogService) saveToDB(ctx context.Context, key string, results []model.GameMatch) {
	if s.repo == nil {
		return
	}
	data, err := json.Marshal(results)
	if err != nil {
		return
	}
	entry := &model.GameCache{
		Query:     key,
		Provider:  s.cfg.Provider,
		Results:   data,
		ExpiresAt: s.now().Add(s.cfg.DBTTL),
	}
	if err := s.repo.Upsert(ctx, entry); err != nil {
		s.log.Warn("写入桌游缓存失败", zap.String("query", key), zap.Error(err))
	}
}

// PurgeExpired 清理过期缓存，返回（内存条数, 数据库条数）
func (s *CatalogService) PurgeExpired(ctx context.Context) (int, int64, error) {
	memCount := s.mem.Purge()
	if s.repo == nil {
		return memCount, 0, nil
	}
	dbCount, err := s.repo.DeleteExpired(ctx, s.now())
	return memCount, dbCount, err
}

func cloneMatches(in []model.GameMatch) []model.GameMatch {
	out := make([]model.GameMatch, len(in))
	copy(out, in)
	return out
}
