package session

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grumpstudio/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateAndLoadSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	msgs := []domain.Message{
		domain.UserMessage("how do I test this"),
		domain.AssistantMessage("with a temp dir", nil),
	}
	id, err := store.CreateSession(ctx, msgs)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	loaded, err := store.LoadSession(ctx, id)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "how do I test this", loaded[0].Content)
	assert.Equal(t, domain.RoleAssistant, loaded[1].Role)
}

func TestUpdateSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateSession(ctx, []domain.Message{domain.UserMessage("v1")})
	require.NoError(t, err)

	updated := []domain.Message{
		domain.UserMessage("v1"),
		domain.AssistantMessage("reply", nil),
	}
	require.NoError(t, store.UpdateSession(ctx, id, updated))

	loaded, err := store.LoadSession(ctx, id)
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
}

func TestUpdateUnknownSession(t *testing.T) {
	store := newTestStore(t)
	err := store.UpdateSession(context.Background(), "no-such-id", []domain.Message{domain.UserMessage("x")})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestLoadUnknownSession(t *testing.T) {
	store := newTestStore(t)
	_, err := store.LoadSession(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestListSessionsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.CreateSession(ctx, []domain.Message{domain.UserMessage("first")})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := store.CreateSession(ctx, []domain.Message{domain.UserMessage("second")})
	require.NoError(t, err)

	list, err := store.ListSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second, list[0].ID)
	assert.Equal(t, first, list[1].ID)
	assert.Equal(t, "second", list[0].Title)
	assert.Equal(t, 1, list[0].MessageCount)
	assert.False(t, list[0].UpdatedAt.IsZero())
}

func TestListSessionsLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := store.CreateSession(ctx, []domain.Message{domain.UserMessage("msg")})
		require.NoError(t, err)
	}

	list, err := store.ListSessions(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestTitleDerivation(t *testing.T) {
	long := strings.Repeat("x", 200)

	assert.Equal(t, "first line", titleFor([]domain.Message{
		domain.UserMessage("first line\nsecond line"),
	}))
	assert.Len(t, titleFor([]domain.Message{domain.UserMessage(long)}), titleMaxLen)
	assert.Equal(t, "Untitled session", titleFor([]domain.Message{
		domain.AssistantMessage("assistant only", nil),
	}))
	assert.Equal(t, "Untitled session", titleFor(nil))
}

func TestULIDsMonotonicWithinStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, err := store.CreateSession(ctx, []domain.Message{domain.UserMessage("a")})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	b, err := store.CreateSession(ctx, []domain.Message{domain.UserMessage("b")})
	require.NoError(t, err)

	// ULIDs sort lexically by creation time.
	assert.Less(t, a, b)
}
