// Package streak は食事記録の連続日数（ストリーク）計算を提供する。
// 日付の区切りは設定された基準タイムゾーンで判定し、現在時刻は
// テスト可能にするため注入されたクロックから取得する。
package streak

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"
)

// TimestampSource はストリーク計算に必要な記録時刻の取得インターフェース。
type TimestampSource interface {
	// ConsumedTimestamps はユーザーの全食事記録のConsumedAtを返す。
	ConsumedTimestamps(ctx context.Context, userID string) ([]time.Time, error)
}

// Calculator は連続記録日数を計算する。
type Calculator struct {
	source TimestampSource
	logger *slog.Logger
	loc    *time.Location
	now    func() time.Time
}

// NewCalculator はCalculatorを生成する。nowにはtime.Nowを渡す。
func NewCalculator(source TimestampSource, logger *slog.Logger, loc *time.Location, now func() time.Time) *Calculator {
	return &Calculator{
		source: source,
		logger: logger,
		loc:    loc,
		now:    now,
	}
}

// Current は現在の連続記録日数を返す。
//
// ルール:
//   - 記録が1件もない場合は0。
//   - 最新の記録日が昨日より前の場合はストリークが途切れており0。
//   - それ以外は最新記録日から1日ずつ遡り、記録のない日が現れるまで数える。
//     今日まだ記録していなくても昨日までの連続は維持される。
//
// 記録の取得に失敗した場合は警告ログを出して0を返す。統計表示のための
// 値であり、取得失敗でリクエスト全体を失敗させない。
func (c *Calculator) Current(ctx context.Context, userID string) int {
	timestamps, err := c.source.ConsumedTimestamps(ctx, userID)
	if err != nil {
		c.logger.Warn("failed to load entry timestamps for streak",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return 0
	}
	if len(timestamps) == 0 {
		return 0
	}

	days := c.distinctDaysDesc(timestamps)

	today := c.dateOnly(c.now())
	yesterday := today.AddDate(0, 0, -1)

	// 最新記録日が昨日より前ならストリークは途切れている
	if days[0].Before(yesterday) {
		return 0
	}

	streak := 0
	expected := days[0]
	for _, day := range days {
		if !day.Equal(expected) {
			break
		}
		streak++
		expected = expected.AddDate(0, 0, -1)
	}
	return streak
}

// WeeklyActivity は直近7日間の記録状況を表す。
type WeeklyActivity struct {
	DaysLogged    int
	TotalLogs     int
	AvgLogsPerDay float64
}

// Weekly は直近7日間（今日を含む）の記録状況を返す。
// 平均は総記録数÷7を小数第1位に丸めた値。取得失敗時はゼロ値を返す。
func (c *Calculator) Weekly(ctx context.Context, userID string) WeeklyActivity {
	timestamps, err := c.source.ConsumedTimestamps(ctx, userID)
	if err != nil {
		c.logger.Warn("failed to load entry timestamps for weekly activity",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return WeeklyActivity{}
	}

	today := c.dateOnly(c.now())
	weekStart := today.AddDate(0, 0, -6)

	daySet := make(map[time.Time]struct{})
	total := 0
	for _, ts := range timestamps {
		day := c.dateOnly(ts)
		if day.Before(weekStart) || day.After(today) {
			continue
		}
		daySet[day] = struct{}{}
		total++
	}

	return WeeklyActivity{
		DaysLogged:    len(daySet),
		TotalLogs:     total,
		AvgLogsPerDay: math.Round(float64(total)/7*10) / 10,
	}
}

// dateOnly は基準タイムゾーンでの日付（その日の00:00）に正規化する。
func (c *Calculator) dateOnly(t time.Time) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
}

// distinctDaysDesc はタイムスタンプを基準タイムゾーンの日付に正規化し、
// 重複を除いて新しい順に並べる。
func (c *Calculator) distinctDaysDesc(timestamps []time.Time) []time.Time {
	seen := make(map[time.Time]struct{}, len(timestamps))
	days := make([]time.Time, 0, len(timestamps))
	for _, ts := range timestamps {
		day := c.dateOnly(ts)
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })
	return days
}
