package service

import (
	"context"
	"testing"

	"codingescape/internal/cache"
	"codingescape/internal/escape"
	"codingescape/internal/model"
	"codingescape/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaderboardService_BestPerUser(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := NewLeaderboardService(store.Sessions, store.Users, nil)

	ada := createUser(t, store, "ada@example.com", "Ada")
	bob := createUser(t, store, "bob@example.com", "Bob")
	cyd := createUser(t, store, "cyd@example.com", "Cyd")

	for _, r := range []struct {
		user string
		d    escape.Difficulty
		secs int
	}{
		{ada.ID, escape.Easy, 400},
		{ada.ID, escape.Easy, 320},
		{bob.ID, escape.Easy, 350},
		{cyd.ID, escape.Easy, 500},
		{cyd.ID, escape.Hard, 200},
	} {
		_, err := svc.Record(ctx, r.user, escape.Completion{Difficulty: r.d, TimeTaken: r.secs})
		require.NoError(t, err)
	}

	resp, err := svc.Top(ctx, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "easy", resp.Difficulty)
	require.Len(t, resp.Leaderboard, 3)
	assert.Equal(t, model.LeaderboardRow{Rank: 1, UserID: ada.ID, Player: "Ada", TimeTaken: 320, FinishedAt: resp.Leaderboard[0].FinishedAt}, resp.Leaderboard[0])
	assert.Equal(t, "Bob", resp.Leaderboard[1].Player)
	assert.Equal(t, 3, resp.Leaderboard[2].Rank)

	resp, err = svc.Top(ctx, "easy", 2)
	require.NoError(t, err)
	assert.Len(t, resp.Leaderboard, 2)

	resp, err = svc.Top(ctx, "HARD", 10)
	require.NoError(t, err)
	require.Len(t, resp.Leaderboard, 1)
	assert.Equal(t, "Cyd", resp.Leaderboard[0].Player)

	_, err = svc.Top(ctx, "impossible", 10)
	assert.ErrorIs(t, err, escape.ErrUnknownDifficulty)
}

func TestLeaderboardService_DropsDeletedPlayers(t *testing.T) {
	store := newTestStore(t)
	svc := NewLeaderboardService(store.Sessions, store.Users, nil)

	bob := createUser(t, store, "bob@example.com", "Bob")

	// cached boards can still name an account deleted after warm-up
	rows, err := svc.withNames(context.Background(), []cache.LeaderboardEntry{{UserID: "ghost", TimeTaken: 1}, {UserID: bob.ID, TimeTaken: 200}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, "Bob", rows[0].Player)
}

func TestLeaderboardService_RecordReport(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := NewLeaderboardService(store.Sessions, store.Users, nil)
	ada := createUser(t, store, "ada@example.com", "Ada")

	_, err := svc.RecordReport(ctx, ada.ID, &model.FinishSessionRequest{Difficulty: "hard", TimeTaken: ptr(601)})
	assert.ErrorIs(t, err, ErrInvalidSession)
	_, err = svc.RecordReport(ctx, ada.ID, &model.FinishSessionRequest{Difficulty: "hard"})
	assert.ErrorIs(t, err, ErrInvalidSession)

	gs, err := svc.RecordReport(ctx, ada.ID, &model.FinishSessionRequest{Difficulty: "hard", TimeTaken: ptr(599)})
	require.NoError(t, err)
	assert.Equal(t, 599, gs.TimeTaken)
}

func TestLeaderboardService_WithCache(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	lb := cache.NewLeaderboardCache(rdb)
	svc := NewLeaderboardService(store.Sessions, store.Users, lb)

	ada := createUser(t, store, "ada@example.com", "Ada")
	bob := createUser(t, store, "bob@example.com", "Bob")

	// recorded while the board is cold: lands only in the store
	_, err := svc.Record(ctx, ada.ID, escape.Completion{Difficulty: escape.Easy, TimeTaken: 300})
	require.NoError(t, err)

	resp, err := svc.Top(ctx, "easy", 10)
	require.NoError(t, err)
	require.Len(t, resp.Leaderboard, 1)
	assert.True(t, mr.Exists("lb:easy:warm"))

	// warm board takes new records directly
	_, err = svc.Record(ctx, bob.ID, escape.Completion{Difficulty: escape.Easy, TimeTaken: 100})
	require.NoError(t, err)
	score, err := mr.ZScore("lb:easy", bob.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(100), score)

	resp, err = svc.Top(ctx, "easy", 10)
	require.NoError(t, err)
	require.Len(t, resp.Leaderboard, 2)
	assert.Equal(t, "Bob", resp.Leaderboard[0].Player)
	assert.Equal(t, "Ada", resp.Leaderboard[1].Player)

	// a broken cache falls back to the store
	mr.Close()
	resp, err = svc.Top(ctx, "easy", 10)
	require.NoError(t, err)
	assert.Len(t, resp.Leaderboard, 2)
}

// interleavingSessions records another run while the board is being rebuilt
type interleavingSessions struct {
	repository.GameSessionRepo
	during func()
}

func (r *interleavingSessions) ListByDifficulty(ctx context.Context, difficulty string) ([]*model.GameSession, error) {
	list, err := r.GameSessionRepo.ListByDifficulty(ctx, difficulty)
	if r.during != nil {
		during := r.during
		r.during = nil
		during()
	}
	return list, err
}

func TestLeaderboardService_RecordDuringRebuild(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	sessions := &interleavingSessions{GameSessionRepo: store.Sessions}
	svc := NewLeaderboardService(sessions, store.Users, cache.NewLeaderboardCache(rdb))

	ada := createUser(t, store, "ada@example.com", "Ada")
	bob := createUser(t, store, "bob@example.com", "Bob")

	_, err := svc.Record(ctx, ada.ID, escape.Completion{Difficulty: escape.Easy, TimeTaken: 300})
	require.NoError(t, err)

	sessions.during = func() {
		_, err := svc.Record(ctx, bob.ID, escape.Completion{Difficulty: escape.Easy, TimeTaken: 100})
		require.NoError(t, err)
	}
	_, err = svc.Top(ctx, "easy", 10)
	require.NoError(t, err)
	assert.True(t, mr.Exists("lb:easy:warm"))
	assert.False(t, mr.Exists("lb:easy:rebuild"))

	// served from the warm board now
	resp, err := svc.Top(ctx, "easy", 10)
	require.NoError(t, err)
	require.Len(t, resp.Leaderboard, 2)
	assert.Equal(t, "Bob", resp.Leaderboard[0].Player)
	assert.Equal(t, 100, resp.Leaderboard[0].TimeTaken)
	assert.Equal(t, "Ada", resp.Leaderboard[1].Player)
}
