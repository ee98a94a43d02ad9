package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"hifz-quiz-service/internal/domain"
)

const (
	leaderboardXPKey    = "leaderboard:xp"
	leaderboardNamesKey = "leaderboard:names"
)

// Leaderboard ranks players by XP in a Redis sorted set. Display names live
// in a side hash keyed by player id.
type Leaderboard struct {
	client *redis.Client
	now    func() time.Time
}

func NewLeaderboard(client *redis.Client) *Leaderboard {
	return &Leaderboard{client: client, now: time.Now}
}

// UpdateXP writes the player's total XP.
func (l *Leaderboard) UpdateXP(ctx context.Context, player domain.Player) error {
	pipe := l.client.TxPipeline()
	pipe.ZAdd(ctx, leaderboardXPKey, redis.Z{Score: float64(player.XP), Member: player.ID})
	pipe.HSet(ctx, leaderboardNamesKey, player.ID, player.Username)
	_, err := pipe.Exec(ctx)
	return err
}

// Top returns the highest ranked players, rank 1 first.
func (l *Leaderboard) Top(ctx context.Context, limit int) (domain.Leaderboard, error) {
	if limit <= 0 {
		limit = 10
	}
	// ZREVRANGE returns highest to lowest
	results, err := l.client.ZRevRangeWithScores(ctx, leaderboardXPKey, 0, int64(limit-1)).Result()
	if err != nil {
		return domain.Leaderboard{}, err
	}

	ids := make([]string, len(results))
	for i, z := range results {
		ids[i], _ = z.Member.(string)
	}
	names := make([]interface{}, len(ids))
	if len(ids) > 0 {
		names, err = l.client.HMGet(ctx, leaderboardNamesKey, ids...).Result()
		if err != nil {
			return domain.Leaderboard{}, err
		}
	}

	entries := make([]domain.LeaderboardEntry, len(results))
	for i, z := range results {
		name, _ := names[i].(string)
		entries[i] = domain.LeaderboardEntry{
			Rank:     i + 1,
			PlayerID: ids[i],
			Username: name,
			XP:       int(z.Score),
		}
	}
	return domain.Leaderboard{Entries: entries, UpdatedAt: l.now()}, nil
}
