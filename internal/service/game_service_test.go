package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"codingescape/internal/cache"
	"codingescape/internal/escape"
	"codingescape/internal/model"
	"codingescape/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRooms = `
rooms:
  - id: door
    kind: format
    title: Door
    hint: say open
    starter: "// door"
    success: {message: opened}
    failure: {message: still shut}
    variants:
      easy: {prompt: p, rule: {contains: open}}
      medium: {prompt: p, rule: {contains: open}}
      hard: {prompt: p, rule: {contains: OPEN}}
  - id: exit
    kind: final
    title: Exit
    hint: say escaped
    starter: "// exit"
    success: {message: free}
    failure: {message: trapped}
    variants:
      easy: {prompt: p, rule: {contains: escaped}}
      medium: {prompt: p, rule: {contains: escaped}}
      hard: {prompt: p, rule: {contains: ESCAPED}}
`

type gameFixture struct {
	store *repository.Store
	game  *GameService
	bcast *recordingBroadcaster
	user  *model.User
}

func testBook(t *testing.T) *escape.Rulebook {
	t.Helper()
	book, err := escape.LoadRulebook(strings.NewReader(testRooms))
	require.NoError(t, err)
	return book
}

func newGameFixture(t *testing.T, runCache cache.RunCache, tick time.Duration) *gameFixture {
	t.Helper()
	store := newTestStore(t)
	f := &gameFixture{
		store: store,
		bcast: &recordingBroadcaster{},
		user:  createUser(t, store, "ada@example.com", "Ada"),
	}
	f.game = NewGameService(
		testBook(t),
		NewSaveService(store.Saves),
		NewLeaderboardService(store.Sessions, store.Users, nil),
		runCache,
		tick,
	)
	f.game.SetBroadcaster(f.bcast)
	t.Cleanup(func() { f.game.Shutdown(context.Background()) })
	return f
}

func (f *gameFixture) escape(t *testing.T) *model.SubmitResponse {
	t.Helper()
	ctx := context.Background()
	res, err := f.game.Submit(ctx, f.user.ID, 0, "open")
	require.NoError(t, err)
	require.True(t, res.Result.OK)
	_, err = f.game.Advance(ctx, f.user.ID)
	require.NoError(t, err)
	res, err = f.game.Submit(ctx, f.user.ID, 1, "escaped")
	require.NoError(t, err)
	return res
}

func (f *gameFixture) sessions(t *testing.T, d string) []*model.GameSession {
	t.Helper()
	list, err := f.store.Sessions.ListByDifficulty(context.Background(), d)
	require.NoError(t, err)
	return list
}

func TestGameService_Rooms(t *testing.T) {
	f := newGameFixture(t, nil, time.Hour)

	resp, err := f.game.Rooms("")
	require.NoError(t, err)
	assert.Equal(t, "easy", resp.Difficulty)
	assert.Equal(t, escape.Budget{TimeSeconds: 1200, Hints: 6}, resp.Budget)
	require.Len(t, resp.Rooms, 2)
	assert.Equal(t, "door", resp.Rooms[0].ID)
	assert.Equal(t, "final", resp.Rooms[1].Kind)

	_, err = f.game.Rooms("nightmare")
	assert.ErrorIs(t, err, escape.ErrUnknownDifficulty)
}

func TestGameService_NoActiveRun(t *testing.T) {
	f := newGameFixture(t, nil, time.Hour)
	ctx := context.Background()

	_, err := f.game.View(ctx, f.user.ID)
	assert.ErrorIs(t, err, ErrNoActiveRun)
	_, err = f.game.Submit(ctx, f.user.ID, 0, "open")
	assert.ErrorIs(t, err, ErrNoActiveRun)
	assert.ErrorIs(t, f.game.Abandon(ctx, f.user.ID), ErrNoActiveRun)
}

func TestGameService_EscapeRecordsOnce(t *testing.T) {
	f := newGameFixture(t, nil, time.Hour)
	ctx := context.Background()

	view, err := f.game.Start(ctx, f.user.ID, "Medium")
	require.NoError(t, err)
	assert.Equal(t, escape.Medium, view.Difficulty)
	assert.Equal(t, 900, view.TimeLeft)

	_, err = f.game.Advance(ctx, f.user.ID)
	assert.ErrorIs(t, err, escape.ErrRoomLocked)

	res := f.escape(t)
	assert.True(t, res.Result.OK)
	assert.Equal(t, escape.StatusEscaped, res.View.Status)
	assert.Empty(t, res.View.Advisory)

	sessions := f.sessions(t, "medium")
	require.Len(t, sessions, 1)
	assert.Equal(t, f.user.ID, sessions[0].UserID)
	assert.Equal(t, 0, sessions[0].TimeTaken)

	// resubmitting the final room does not record again
	again, err := f.game.Submit(ctx, f.user.ID, 1, "escaped")
	require.NoError(t, err)
	assert.False(t, again.Result.OK)
	assert.Len(t, f.sessions(t, "medium"), 1)

	assert.NotEmpty(t, f.bcast.ofType(MsgState))
}

func TestGameService_Hint(t *testing.T) {
	f := newGameFixture(t, nil, time.Hour)
	ctx := context.Background()

	_, err := f.game.Start(ctx, f.user.ID, "hard")
	require.NoError(t, err)
	_, err = f.game.Hint(ctx, f.user.ID)
	assert.ErrorIs(t, err, escape.ErrNoHints)

	_, err = f.game.Start(ctx, f.user.ID, "easy")
	require.NoError(t, err)
	hint, err := f.game.Hint(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "say open", hint.Hint)
	assert.Equal(t, 5, hint.HintsLeft)
	assert.Equal(t, 5, hint.View.HintsLeft)
}

func TestGameService_ConnectAndSetCode(t *testing.T) {
	f := newGameFixture(t, nil, time.Hour)
	ctx := context.Background()

	_, err := f.game.Start(ctx, f.user.ID, "easy")
	require.NoError(t, err)

	view, err := f.game.Connect(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "// door", view.Rooms[0].Code)
	assert.True(t, view.Rooms[0].Connected)

	view, err = f.game.SetCode(ctx, f.user.ID, 0, "draft")
	require.NoError(t, err)
	assert.Equal(t, "draft", view.Rooms[0].Code)

	_, err = f.game.SetCode(ctx, f.user.ID, 1, "ahead")
	assert.ErrorIs(t, err, escape.ErrRoomLocked)
}

func TestGameService_SaveAndResume(t *testing.T) {
	f := newGameFixture(t, nil, time.Hour)
	ctx := context.Background()

	_, err := f.game.Start(ctx, f.user.ID, "easy")
	require.NoError(t, err)
	_, err = f.game.Submit(ctx, f.user.ID, 0, "open")
	require.NoError(t, err)
	_, err = f.game.Advance(ctx, f.user.ID)
	require.NoError(t, err)

	saved, err := f.game.Save(ctx, f.user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, saved.SaveID)
	assert.Empty(t, saved.Advisory)

	// saving again continues the same save
	again, err := f.game.Save(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.SaveID, again.SaveID)

	require.NoError(t, f.game.Abandon(ctx, f.user.ID))
	_, err = f.game.View(ctx, f.user.ID)
	assert.ErrorIs(t, err, ErrNoActiveRun)

	view, err := f.game.Resume(ctx, f.user.ID, "")
	require.NoError(t, err)
	assert.Equal(t, saved.SaveID, view.SaveID)
	assert.Equal(t, 1, view.CurrentRoom)
	assert.True(t, view.Rooms[0].Solved)
	assert.Equal(t, "Progress restored.", view.LastMessage)

	_, err = f.game.Resume(ctx, f.user.ID, "nope")
	assert.ErrorIs(t, err, ErrSaveNotFound)
}

func TestGameService_ResumeWithoutSave(t *testing.T) {
	f := newGameFixture(t, nil, time.Hour)
	_, err := f.game.Resume(context.Background(), f.user.ID, "")
	assert.ErrorIs(t, err, ErrSaveNotFound)
}

func TestGameService_ResumeEscapedSaveDoesNotRecord(t *testing.T) {
	f := newGameFixture(t, nil, time.Hour)
	ctx := context.Background()

	_, err := f.game.Start(ctx, f.user.ID, "easy")
	require.NoError(t, err)
	f.escape(t)
	_, err = f.game.Save(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, f.sessions(t, "easy"), 1)

	view, err := f.game.Resume(ctx, f.user.ID, "")
	require.NoError(t, err)
	assert.Equal(t, escape.StatusEscaped, view.Status)
	_, err = f.game.Submit(ctx, f.user.ID, 1, "escaped")
	require.NoError(t, err)
	assert.Len(t, f.sessions(t, "easy"), 1)
}

type failingSaveRepo struct {
	repository.SaveRepo
}

func (failingSaveRepo) Create(context.Context, *model.SaveState) error {
	return errors.New("disk full")
}

func TestGameService_SaveFailureIsAdvisory(t *testing.T) {
	store := newTestStore(t)
	user := createUser(t, store, "ada@example.com", "Ada")
	game := NewGameService(
		testBook(t),
		NewSaveService(failingSaveRepo{store.Saves}),
		NewLeaderboardService(store.Sessions, store.Users, nil),
		nil,
		time.Hour,
	)
	t.Cleanup(func() { game.Shutdown(context.Background()) })
	ctx := context.Background()

	_, err := game.Start(ctx, user.ID, "easy")
	require.NoError(t, err)

	view, err := game.Save(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, advisorySaveFailed, view.Advisory)
	assert.Empty(t, view.SaveID)

	// the run keeps going
	res, err := game.Submit(ctx, user.ID, 0, "open")
	require.NoError(t, err)
	assert.True(t, res.Result.OK)
}

func TestGameService_TimesOut(t *testing.T) {
	f := newGameFixture(t, nil, time.Millisecond)
	ctx := context.Background()

	_, err := f.game.Start(ctx, f.user.ID, "hard")
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return len(f.bcast.ofType(MsgTick)) >= 3 }, 5*time.Second, time.Millisecond)
	require.NoError(t, f.game.Abandon(ctx, f.user.ID))

	f2 := newGameFixture(t, nil, time.Millisecond)
	save, err := NewSaveService(f2.store.Saves).Save(ctx, f2.user.ID, &model.SaveRequest{
		Difficulty: ptr("hard"), TimeLeft: ptr(3), CurrentRoom: ptr(0),
	})
	require.NoError(t, err)
	_, err = f2.game.Resume(ctx, f2.user.ID, save.ID)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return len(f2.bcast.ofType(MsgFinished)) == 1 }, 5*time.Second, time.Millisecond)
	finished := f2.bcast.ofType(MsgFinished)[0].Payload.(*model.GameView)
	assert.Equal(t, escape.StatusTimedOut, finished.Status)
	assert.Equal(t, 0, finished.TimeLeft)
	assert.Empty(t, f2.sessions(t, "hard"))

	res, err := f2.game.Submit(ctx, f2.user.ID, 0, "OPEN")
	require.NoError(t, err)
	assert.False(t, res.Result.OK)
}

func TestGameService_RecoversFromRunCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	runs := cache.NewRunCache(rdb)
	ctx := context.Background()

	f := newGameFixture(t, runs, time.Hour)
	_, err := f.game.Start(ctx, f.user.ID, "easy")
	require.NoError(t, err)
	_, err = f.game.Submit(ctx, f.user.ID, 0, "open")
	require.NoError(t, err)
	f.game.Shutdown(ctx)
	assert.True(t, mr.Exists("run:"+f.user.ID))

	// a second process picks the run up from Redis
	restarted := NewGameService(
		testBook(t),
		NewSaveService(f.store.Saves),
		NewLeaderboardService(f.store.Sessions, f.store.Users, nil),
		runs,
		time.Hour,
	)
	t.Cleanup(func() { restarted.Shutdown(context.Background()) })

	view, err := restarted.View(ctx, f.user.ID)
	require.NoError(t, err)
	assert.True(t, view.Rooms[0].Solved)
	assert.Equal(t, escape.StatusRunning, view.Status)

	_, err = restarted.Advance(ctx, f.user.ID)
	require.NoError(t, err)
	res, err := restarted.Submit(ctx, f.user.ID, 1, "escaped")
	require.NoError(t, err)
	assert.Equal(t, escape.StatusEscaped, res.View.Status)
	assert.Len(t, f.sessions(t, "easy"), 1)
	assert.False(t, mr.Exists("run:"+f.user.ID))
}

func TestGameService_ConcurrentRecoveryRecordsOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	runs := cache.NewRunCache(rdb)
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		user := createUser(t, store, fmt.Sprintf("p%d@example.com", i), "Player")
		require.NoError(t, runs.Set(ctx, user.ID, &cache.CachedRun{Snapshot: escape.Snapshot{
			Difficulty:  escape.Easy,
			TimeLeft:    900,
			CurrentRoom: 1,
			SolvedRooms: map[string]bool{"door": true},
		}}))

		// fresh process: nothing live, every request recovers from Redis
		game := NewGameService(
			testBook(t),
			NewSaveService(store.Saves),
			NewLeaderboardService(store.Sessions, store.Users, nil),
			runs,
			time.Hour,
		)

		var wg sync.WaitGroup
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := game.Submit(ctx, user.ID, 1, "escaped")
				assert.NoError(t, err)
				if err == nil {
					assert.Equal(t, escape.StatusEscaped, res.View.Status)
				}
			}()
		}
		wg.Wait()
		game.Shutdown(ctx)

		list, err := store.Sessions.ListByDifficulty(ctx, "easy")
		require.NoError(t, err)
		recorded := 0
		for _, gs := range list {
			if gs.UserID == user.ID {
				recorded++
			}
		}
		assert.Equal(t, 1, recorded, "run %d", i)
	}
}
