package service

import (
	"codingescape/internal/cache"
	"codingescape/internal/escape"
	"codingescape/internal/model"
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

var ErrNoActiveRun = errors.New("no active run")

const (
	advisorySaveFailed        = "Failed to save progress. Keep playing and try again."
	advisoryLeaderboardFailed = "You escaped, but your time could not be recorded on the leaderboard."

	// cacheEvery is how many ticks pass between run cache refreshes
	cacheEvery = 15
)

// TickEvent is pushed to the player's sockets every second
type TickEvent struct {
	TimeLeft int           `json:"timeLeft"`
	Status   escape.Status `json:"status"`
}

type liveRun struct {
	run    *escape.Run
	ticker *escape.Ticker

	mu     sync.Mutex
	saveID string
}

func (lr *liveRun) getSaveID() string {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	return lr.saveID
}

func (lr *liveRun) setSaveID(id string) {
	lr.mu.Lock()
	lr.saveID = id
	lr.mu.Unlock()
}

// GameService hosts one live run per player and drives its countdown
type GameService struct {
	book         *escape.Rulebook
	saves        *SaveService
	leaderboard  *LeaderboardService
	runCache     cache.RunCache // nil when Redis is off
	broadcaster  Broadcaster
	tickInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	live map[string]*liveRun
}

// NewGameService creates a new game service
func NewGameService(
	book *escape.Rulebook,
	saves *SaveService,
	leaderboard *LeaderboardService,
	runCache cache.RunCache,
	tickInterval time.Duration,
) *GameService {
	ctx, cancel := context.WithCancel(context.Background())
	return &GameService{
		book:         book,
		saves:        saves,
		leaderboard:  leaderboard,
		runCache:     runCache,
		broadcaster:  noopBroadcaster{},
		tickInterval: tickInterval,
		ctx:          ctx,
		cancel:       cancel,
		live:         make(map[string]*liveRun),
	}
}

// SetBroadcaster sets the broadcaster for WebSocket events
func (s *GameService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Rooms lists the room catalogue for a difficulty
func (s *GameService) Rooms(difficulty string) (*model.RoomsResponse, error) {
	if difficulty == "" {
		difficulty = string(escape.Easy)
	}
	d, err := escape.ParseDifficulty(difficulty)
	if err != nil {
		return nil, err
	}

	resp := &model.RoomsResponse{
		Difficulty: string(d),
		Budget:     d.Budget(),
		Rooms:      make([]model.RoomInfo, 0, s.book.Len()),
	}
	for _, room := range s.book.Rooms() {
		v, _ := room.Variant(d)
		resp.Rooms = append(resp.Rooms, model.RoomInfo{
			ID:       room.ID,
			Index:    room.Index,
			Kind:     string(room.Kind),
			Title:    room.Title,
			Subtitle: room.Subtitle,
			Prompt:   v.Prompt,
			Starter:  room.Starter,
		})
	}
	return resp, nil
}

// Start begins a fresh run, replacing any live one
func (s *GameService) Start(ctx context.Context, userID, difficulty string) (*model.GameView, error) {
	d, err := escape.ParseDifficulty(difficulty)
	if err != nil {
		return nil, err
	}
	run, err := escape.NewRun(s.book, d)
	if err != nil {
		return nil, err
	}

	lr := s.install(userID, run, "")
	s.cacheRun(ctx, userID, lr)
	return s.view(lr, ""), nil
}

// Resume continues a save; an empty saveID picks the latest one
func (s *GameService) Resume(ctx context.Context, userID, saveID string) (*model.GameView, error) {
	var (
		save *model.SaveState
		err  error
	)
	if saveID == "" {
		save, err = s.saves.Latest(ctx, userID)
	} else {
		save, err = s.saves.Get(ctx, userID, saveID)
	}
	if err != nil {
		return nil, err
	}
	if save == nil {
		return nil, ErrSaveNotFound
	}

	lr := s.install(userID, s.resume(save.Snapshot()), save.ID)
	s.cacheRun(ctx, userID, lr)
	return s.view(lr, ""), nil
}

// resume rebuilds a run; a snapshot that already escaped never records again
func (s *GameService) resume(snap escape.Snapshot) *escape.Run {
	run := escape.ResumeRun(s.book, snap)
	run.ClaimCompletion()
	return run
}

// View returns the live run
func (s *GameService) View(ctx context.Context, userID string) (*model.GameView, error) {
	lr, err := s.get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.view(lr, ""), nil
}

// Connect plugs in the terminal of the current room
func (s *GameService) Connect(ctx context.Context, userID string) (*model.GameView, error) {
	lr, err := s.get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := lr.run.Connect(); err != nil {
		return nil, err
	}
	s.cacheRun(ctx, userID, lr)
	return s.view(lr, ""), nil
}

// SetCode stores an editor draft
func (s *GameService) SetCode(ctx context.Context, userID string, roomIndex int, code string) (*model.GameView, error) {
	lr, err := s.get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := lr.run.SetCode(roomIndex, code); err != nil {
		return nil, err
	}
	s.cacheRun(ctx, userID, lr)
	return s.view(lr, ""), nil
}

// Submit runs code against a room's rule; escaping records the time once
func (s *GameService) Submit(ctx context.Context, userID string, roomIndex int, code string) (*model.SubmitResponse, error) {
	lr, err := s.get(ctx, userID)
	if err != nil {
		return nil, err
	}

	res := lr.run.Submit(roomIndex, code)

	advisory := ""
	if lr.run.Status() == escape.StatusEscaped {
		advisory = s.finish(ctx, userID, lr)
	} else {
		s.cacheRun(ctx, userID, lr)
	}

	view := s.view(lr, advisory)
	s.broadcaster.SendToUser(userID, MsgState, view)
	return &model.SubmitResponse{Result: res, View: view}, nil
}

// Advance opens the door of the current room
func (s *GameService) Advance(ctx context.Context, userID string) (*model.GameView, error) {
	lr, err := s.get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := lr.run.Advance(); err != nil {
		return nil, err
	}
	s.cacheRun(ctx, userID, lr)

	view := s.view(lr, "")
	s.broadcaster.SendToUser(userID, MsgState, view)
	return view, nil
}

// Hint spends one hint on the current room
func (s *GameService) Hint(ctx context.Context, userID string) (*model.HintResponse, error) {
	lr, err := s.get(ctx, userID)
	if err != nil {
		return nil, err
	}
	hint, left, err := lr.run.UseHint()
	if err != nil {
		return nil, err
	}
	s.cacheRun(ctx, userID, lr)
	return &model.HintResponse{Hint: hint, HintsLeft: left, View: s.view(lr, "")}, nil
}

// Save persists the live run. A store failure becomes an advisory, not an error.
func (s *GameService) Save(ctx context.Context, userID string) (*model.GameView, error) {
	lr, err := s.get(ctx, userID)
	if err != nil {
		return nil, err
	}

	advisory := ""
	id, err := s.saves.SaveSnapshot(ctx, userID, lr.getSaveID(), lr.run.Snapshot())
	if err != nil {
		log.Printf("Save failed for %s: %v", userID, err)
		advisory = advisorySaveFailed
	} else {
		lr.setSaveID(id)
		s.cacheRun(ctx, userID, lr)
	}
	return s.view(lr, advisory), nil
}

// Abandon drops the live run without saving
func (s *GameService) Abandon(ctx context.Context, userID string) error {
	s.mu.Lock()
	lr, ok := s.live[userID]
	delete(s.live, userID)
	s.mu.Unlock()

	if s.runCache != nil {
		if err := s.runCache.Delete(ctx, userID); err != nil {
			log.Printf("Warning: failed to drop cached run for %s: %v", userID, err)
		}
	}
	if !ok {
		return ErrNoActiveRun
	}
	lr.ticker.Stop()
	return nil
}

// Shutdown stops every countdown and parks running runs in the run cache
func (s *GameService) Shutdown(ctx context.Context) {
	s.cancel()

	s.mu.Lock()
	live := make(map[string]*liveRun, len(s.live))
	for id, lr := range s.live {
		live[id] = lr
	}
	s.mu.Unlock()

	for userID, lr := range live {
		lr.ticker.Stop()
		if !lr.run.Finished() {
			s.cacheRun(ctx, userID, lr)
		}
	}
	log.Printf("Game service stopped, %d live runs parked", len(live))
}

// install registers a run for the user and starts its countdown
func (s *GameService) install(userID string, run *escape.Run, saveID string) *liveRun {
	lr, old := s.put(userID, run, saveID, true)
	if old != nil {
		old.ticker.Stop()
	}
	return lr
}

// put stores the run under s.mu. Without replace an existing live run wins
// and is returned instead.
func (s *GameService) put(userID string, run *escape.Run, saveID string, replace bool) (lr, old *liveRun) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old = s.live[userID]
	if old != nil && !replace {
		return old, nil
	}

	lr = &liveRun{run: run, saveID: saveID}
	lr.ticker = escape.StartTicker(s.ctx, run, s.tickInterval, func(st escape.State) {
		s.onTick(userID, lr, st)
	})
	s.live[userID] = lr
	return lr, old
}

// get returns the live run, recovering it from the run cache after a restart
func (s *GameService) get(ctx context.Context, userID string) (*liveRun, error) {
	s.mu.Lock()
	lr, ok := s.live[userID]
	s.mu.Unlock()
	if ok {
		return lr, nil
	}

	if s.runCache == nil {
		return nil, ErrNoActiveRun
	}
	cached, err := s.runCache.Get(ctx, userID)
	if err != nil {
		log.Printf("Warning: run cache read failed for %s: %v", userID, err)
		return nil, ErrNoActiveRun
	}
	if cached == nil {
		return nil, ErrNoActiveRun
	}
	// a concurrent request may have recovered or started a run meanwhile
	lr, _ = s.put(userID, s.resume(cached.Snapshot), cached.SaveID, false)
	return lr, nil
}

func (s *GameService) onTick(userID string, lr *liveRun, st escape.State) {
	s.broadcaster.SendToUser(userID, MsgTick, TickEvent{TimeLeft: st.TimeLeft, Status: st.Status})

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	if st.Status.IsTerminal() {
		advisory := s.finish(ctx, userID, lr)
		s.broadcaster.SendToUser(userID, MsgFinished, s.view(lr, advisory))
		return
	}
	if st.TimeLeft%cacheEvery == 0 {
		s.cacheRun(ctx, userID, lr)
	}
}

// finish records an escape exactly once and clears the cached run
func (s *GameService) finish(ctx context.Context, userID string, lr *liveRun) string {
	advisory := ""
	if c, ok := lr.run.ClaimCompletion(); ok {
		if _, err := s.leaderboard.Record(ctx, userID, c); err != nil {
			log.Printf("Leaderboard record failed for %s: %v", userID, err)
			advisory = advisoryLeaderboardFailed
		}
	}
	if s.runCache != nil {
		if err := s.runCache.Delete(ctx, userID); err != nil {
			log.Printf("Warning: failed to drop cached run for %s: %v", userID, err)
		}
	}
	return advisory
}

func (s *GameService) cacheRun(ctx context.Context, userID string, lr *liveRun) {
	if s.runCache == nil {
		return
	}
	err := s.runCache.Set(ctx, userID, &cache.CachedRun{
		SaveID:   lr.getSaveID(),
		Snapshot: lr.run.Snapshot(),
	})
	if err != nil {
		log.Printf("Warning: run cache write failed for %s: %v", userID, err)
	}
}

func (s *GameService) view(lr *liveRun, advisory string) *model.GameView {
	return &model.GameView{
		State:    lr.run.State(),
		SaveID:   lr.getSaveID(),
		Advisory: advisory,
	}
}
