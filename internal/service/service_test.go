package service

import (
	"context"
	"sync"
	"testing"

	"codingescape/internal/model"
	"codingescape/internal/repository"

	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	UserID  string
	Type    string
	Payload interface{}
}

// recordingBroadcaster captures everything the game service pushes
type recordingBroadcaster struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (b *recordingBroadcaster) SendToUser(userID, msgType string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sentMessage{UserID: userID, Type: msgType, Payload: payload})
}

func (b *recordingBroadcaster) ofType(msgType string) []sentMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []sentMessage
	for _, m := range b.sent {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

func newTestStore(t *testing.T) *repository.Store {
	t.Helper()
	db, err := repository.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &repository.Store{
		Users:    repository.NewSQLiteUserRepo(db),
		Saves:    repository.NewSQLiteSaveRepo(db),
		Sessions: repository.NewSQLiteGameSessionRepo(db),
	}
}

func createUser(t *testing.T, store *repository.Store, email, name string) *model.User {
	t.Helper()
	u := &model.User{Email: email, DisplayName: name, PasswordHash: "x"}
	require.NoError(t, store.Users.Create(context.Background(), u))
	return u
}
