package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"pasarmalam/internal/middleware"
	"pasarmalam/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockUsageReader struct {
	userID     string
	start, end time.Time
	err        error
}

func (m *mockUsageReader) GetUsage(ctx context.Context, userID string, start, end time.Time) (*repository.AIUsageStats, error) {
	m.userID, m.start, m.end = userID, start, end
	if m.err != nil {
		return nil, m.err
	}
	return &repository.AIUsageStats{TotalCalls: 4, ScanCalls: 1, ParseCalls: 3, SuccessCount: 4}, nil
}

func newTestAIController(usage UsageReader, now time.Time) *AIController {
	ctrl := NewAIController(usage)
	ctrl.now = func() time.Time { return now }
	return ctrl
}

func TestAIController_Usage(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		query     string
		err       error
		wantCode  int
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "默认最近 30 天",
			query:     "",
			wantCode:  http.StatusOK,
			wantStart: now.AddDate(0, 0, -30),
			wantEnd:   now,
		},
		{
			name:      "指定日期区间，结束日含当天",
			query:     "?start=2026-03-01&end=2026-03-10",
			wantCode:  http.StatusOK,
			wantStart: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond),
		},
		{
			name:     "日期格式错误",
			query:    "?start=03/01/2026",
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "结束早于开始",
			query:    "?start=2026-03-10&end=2026-03-01",
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "查询失败",
			err:      errors.New("db down"),
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usage := &mockUsageReader{err: tt.err}
			ctrl := newTestAIController(usage, now)

			r := setupRouter()
			r.GET("/api/ai/usage", middleware.JWTAuth(), ctrl.Usage)

			w := performAuthed(r, http.MethodGet, "/api/ai/usage"+tt.query, nil, tokenFor(t, "u-7"))
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantCode != http.StatusOK {
				return
			}

			env := decode(t, w)
			var stats repository.AIUsageStats
			require.NoError(t, json.Unmarshal(env.Data, &stats))
			assert.Equal(t, int64(4), stats.TotalCalls)
			assert.Equal(t, "u-7", usage.userID)
			assert.True(t, tt.wantStart.Equal(usage.start), "start=%s", usage.start)
			assert.True(t, tt.wantEnd.Equal(usage.end), "end=%s", usage.end)
		})
	}
}
