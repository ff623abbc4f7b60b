package repository

import (
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neilberkman/ragchat/internal/core/models"
	"github.com/neilberkman/ragchat/internal/core/store"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("s%d", n)
	}
}

func fixedClock() func() time.Time {
	t := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTestRepo(t *testing.T, st store.Store, opts ...Option) *Repository {
	t.Helper()
	opts = append([]Option{WithIDGenerator(sequentialIDs()), WithClock(fixedClock())}, opts...)
	r := New(st, opts...)
	require.NoError(t, r.Init())
	return r
}

func TestLoadAll_EmptyStore(t *testing.T) {
	st := store.NewMemory(0)
	r := New(st)

	coll, err := r.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, coll.Sessions)
	assert.Empty(t, coll.Order)
	assert.Equal(t, 0, st.Writes(), "loading nothing must not write")
}

func TestCreateThenDelete_RestoresOrder(t *testing.T) {
	st := store.NewMemory(0)
	r := newTestRepo(t, st)

	for i := 0; i < 3; i++ {
		_, err := r.CreateSession("")
		require.NoError(t, err)
	}
	before := r.Order()

	s, err := r.CreateSession("llama3")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultTitle, s.Title)
	assert.Equal(t, "llama3", s.Model)
	assert.Empty(t, s.Messages)

	order := r.Order()
	assert.Equal(t, s.ID, order[len(order)-1], "new session goes to the end")

	require.NoError(t, r.DeleteSession(s.ID))
	assert.Equal(t, before, r.Order())
	assert.False(t, r.Has(s.ID))
}

func TestCreateDelete_OrderHoldsSurvivors(t *testing.T) {
	// ops: c creates; h, m and l delete the head, middle and last survivor
	tests := []struct {
		name string
		ops  string
	}{
		{"delete head", "cccch"},
		{"delete middle", "ccccm"},
		{"interleaved", "cchcmccl"},
		{"drain", "ccchhh"},
		{"drain then create", "cchmcc"},
		{"middle repeatedly", "ccccccmmm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRepo(t, store.NewMemory(0))
			var want []string
			for _, op := range tt.ops {
				want = applyOp(t, r, op, want)
			}
			assertOrder(t, r, want)
		})
	}

	t.Run("random", func(t *testing.T) {
		rng := rand.New(rand.NewSource(7))
		r := newTestRepo(t, store.NewMemory(0))
		var want []string
		for i := 0; i < 200; i++ {
			op := 'c'
			if len(want) > 0 && rng.Intn(3) > 0 {
				op = rune("hml"[rng.Intn(3)])
			}
			want = applyOp(t, r, op, want)
			assertOrder(t, r, want)
		}
	})
}

func applyOp(t *testing.T, r *Repository, op rune, want []string) []string {
	t.Helper()
	if op == 'c' {
		s, err := r.CreateSession("")
		require.NoError(t, err)
		return append(want, s.ID)
	}
	if len(want) == 0 {
		return want
	}
	i := 0
	switch op {
	case 'm':
		i = len(want) / 2
	case 'l':
		i = len(want) - 1
	}
	require.NoError(t, r.DeleteSession(want[i]))
	return append(want[:i:i], want[i+1:]...)
}

func assertOrder(t *testing.T, r *Repository, want []string) {
	t.Helper()
	order := r.Order()
	if len(want) == 0 {
		assert.Empty(t, order)
	} else {
		assert.Equal(t, want, order)
	}
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		assert.False(t, seen[id], "%s listed twice", id)
		seen[id] = true
		assert.True(t, r.Has(id))
	}
	assert.Equal(t, len(order), r.Len())
}

func TestMutations_OneWriteEach(t *testing.T) {
	st := store.NewMemory(0)
	r := newTestRepo(t, st)

	tests := []struct {
		name string
		run  func(id string) error
	}{
		{"rename", func(id string) error { return r.RenameSession(id, "Budget") }},
		{"set model", func(id string) error { return r.SetModel(id, "mistral") }},
		{"update messages", func(id string) error {
			return r.UpdateMessages(id, map[string]*models.Message{
				"m1": {ID: "m1", Role: models.RoleHuman, Content: "hi", Status: models.StatusSettled},
			})
		}},
		{"reorder", func(id string) error { return r.Reorder([]string{id}) }},
		{"delete", func(id string) error { return r.DeleteSession(id) }},
	}

	s, err := r.CreateSession("")
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := st.Writes()
			require.NoError(t, tt.run(s.ID))
			assert.Equal(t, before+1, st.Writes())
		})
	}
}

func TestReload_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	st, err := store.NewSQLite(path)
	require.NoError(t, err)

	r := newTestRepo(t, st)
	a, err := r.CreateSession("llama3")
	require.NoError(t, err)
	b, err := r.CreateSession("")
	require.NoError(t, err)
	require.NoError(t, r.RenameSession(b.ID, "Trip planning"))
	require.NoError(t, r.UpdateMessages(a.ID, map[string]*models.Message{
		"m1": {ID: "m1", Role: models.RoleHuman, Content: "What is RAG?", Position: 0, Status: models.StatusSettled},
		"m2": {ID: "m2", Role: models.RoleAssistant, Content: "Retrieval...", Position: 1, Status: models.StatusSettled,
			Sources: []models.SourceRef{{Name: "intro.pdf"}}},
	}))
	require.NoError(t, r.Reorder([]string{b.ID, a.ID}))
	want := r.List()
	require.NoError(t, st.Close())

	st2, err := store.NewSQLite(path)
	require.NoError(t, err)
	defer st2.Close()

	r2 := New(st2)
	coll, err := r2.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, a.ID}, coll.Order)

	got := r2.List()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.Equal(t, want[i].Title, got[i].Title)
		assert.Equal(t, want[i].ManuallyTitled, got[i].ManuallyTitled)
		assert.Equal(t, want[i].Model, got[i].Model)
		require.Len(t, got[i].Messages, len(want[i].Messages))
		for id, m := range want[i].Messages {
			assert.Equal(t, m.Content, got[i].Messages[id].Content)
			assert.Equal(t, m.Role, got[i].Messages[id].Role)
			assert.Equal(t, m.Sources, got[i].Messages[id].Sources)
		}
	}
}

func TestRename_WhitespaceIsNoop(t *testing.T) {
	st := store.NewMemory(0)
	r := newTestRepo(t, st)
	s, err := r.CreateSession("")
	require.NoError(t, err)
	require.NoError(t, r.RenameSession(s.ID, "Original"))

	writes := st.Writes()
	require.NoError(t, r.RenameSession(s.ID, "   \t "))
	assert.Equal(t, writes, st.Writes())

	got, _ := r.Get(s.ID)
	assert.Equal(t, "Original", got.Title)
}

func TestUpdateMessages_AutoTitle(t *testing.T) {
	msgs := map[string]*models.Message{
		"m1": {ID: "m1", Role: models.RoleHuman, Content: "How do embeddings work?", Status: models.StatusSettled},
	}

	t.Run("derived from first human message", func(t *testing.T) {
		r := newTestRepo(t, store.NewMemory(0))
		s, _ := r.CreateSession("")
		require.NoError(t, r.UpdateMessages(s.ID, msgs))
		got, _ := r.Get(s.ID)
		assert.Equal(t, "How do embeddings work?", got.Title)
	})

	t.Run("manual rename wins", func(t *testing.T) {
		r := newTestRepo(t, store.NewMemory(0))
		s, _ := r.CreateSession("")
		require.NoError(t, r.RenameSession(s.ID, "Mine"))
		require.NoError(t, r.UpdateMessages(s.ID, msgs))
		got, _ := r.Get(s.ID)
		assert.Equal(t, "Mine", got.Title)
	})

	t.Run("auto title overrides rename when configured", func(t *testing.T) {
		r := newTestRepo(t, store.NewMemory(0), WithAutoTitleOverridesRename(true))
		s, _ := r.CreateSession("")
		require.NoError(t, r.RenameSession(s.ID, "Mine"))
		require.NoError(t, r.UpdateMessages(s.ID, msgs))
		got, _ := r.Get(s.ID)
		assert.Equal(t, "How do embeddings work?", got.Title)
	})
}

func TestUpdateMessages_StoresCopy(t *testing.T) {
	r := newTestRepo(t, store.NewMemory(0))
	s, _ := r.CreateSession("")
	msgs := map[string]*models.Message{
		"m1": {ID: "m1", Role: models.RoleHuman, Content: "hello", Status: models.StatusSettled},
	}
	require.NoError(t, r.UpdateMessages(s.ID, msgs))

	msgs["m1"].Content = "mutated"
	got, _ := r.Get(s.ID)
	assert.Equal(t, "hello", got.Messages["m1"].Content)
}

func TestUnknownSession(t *testing.T) {
	r := newTestRepo(t, store.NewMemory(0))

	assert.ErrorIs(t, r.RenameSession("nope", "x"), ErrSessionNotFound)
	assert.ErrorIs(t, r.DeleteSession("nope"), ErrSessionNotFound)
	assert.ErrorIs(t, r.SetModel("nope", "x"), ErrSessionNotFound)
	assert.ErrorIs(t, r.UpdateMessages("nope", nil), ErrSessionNotFound)
}

func TestNotInitialized(t *testing.T) {
	r := New(store.NewMemory(0))
	_, err := r.CreateSession("")
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestStorageFull_KeepsMemoryState(t *testing.T) {
	st := store.NewMemory(0)
	r := newTestRepo(t, st)
	s, err := r.CreateSession("")
	require.NoError(t, err)

	st.FailWith(store.ErrStorageFull)
	err = r.RenameSession(s.ID, "Offline title")
	require.Error(t, err)
	assert.True(t, IsWarning(err))
	assert.ErrorIs(t, err, store.ErrStorageFull)

	var perr *PersistError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "rename", perr.Op)

	got, _ := r.Get(s.ID)
	assert.Equal(t, "Offline title", got.Title)

	_, err = r.CreateSession("")
	assert.True(t, IsWarning(err))
	assert.Equal(t, 2, r.Len())
}

func TestReorder_Reconciles(t *testing.T) {
	r := newTestRepo(t, store.NewMemory(0))
	a, _ := r.CreateSession("")
	b, _ := r.CreateSession("")
	c, _ := r.CreateSession("")

	require.NoError(t, r.Reorder([]string{c.ID, "ghost", c.ID, a.ID}))
	assert.Equal(t, []string{c.ID, a.ID, b.ID}, r.Order())
}

func TestInsertSession(t *testing.T) {
	st := store.NewMemory(0)
	r := newTestRepo(t, st)
	_, _ = r.CreateSession("")

	imported := models.NewSession("share-42", "", time.Time{})
	imported.SharedFrom = "share-42"
	imported.Messages["msg-0001"] = &models.Message{ID: "msg-0001", Role: models.RoleHuman, Content: "hi", Status: models.StatusSettled}

	writes := st.Writes()
	require.NoError(t, r.InsertSession(imported))
	assert.Equal(t, writes+1, st.Writes())
	order := r.Order()
	assert.Equal(t, "share-42", order[len(order)-1])

	got, ok := r.Get("share-42")
	require.True(t, ok)
	assert.False(t, got.CreatedAt.IsZero())

	assert.ErrorIs(t, r.InsertSession(imported), ErrDuplicateSession)
}

func TestSubscribe(t *testing.T) {
	r := newTestRepo(t, store.NewMemory(0))

	var kinds []EventKind
	unsubscribe := r.Subscribe(func(ev Event) {
		kinds = append(kinds, ev.Kind)
		// Reads from a callback must not deadlock
		_ = r.Len()
	})

	s, _ := r.CreateSession("")
	_ = r.RenameSession(s.ID, "x")
	_ = r.DeleteSession(s.ID)
	unsubscribe()
	_, _ = r.CreateSession("")

	assert.Equal(t, []EventKind{EventCreated, EventRenamed, EventDeleted}, kinds)
}

func TestLoad_ReconcilesStaleOrder(t *testing.T) {
	st := store.NewMemory(0)
	r := newTestRepo(t, st)
	a, _ := r.CreateSession("")
	b, _ := r.CreateSession("")

	require.NoError(t, st.Write(KeyOrder, []byte(`["ghost","`+b.ID+`"]`)))

	coll, err := New(st).LoadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, a.ID}, coll.Order)

	raw, _, _ := st.Read(KeyOrder)
	assert.JSONEq(t, `["`+b.ID+`","`+a.ID+`"]`, string(raw), "reconciled order is written back")
}

func TestLoad_SettlesInterruptedStream(t *testing.T) {
	st := store.NewMemory(0)
	r := newTestRepo(t, st)
	s, _ := r.CreateSession("")
	require.NoError(t, r.UpdateMessages(s.ID, map[string]*models.Message{
		"m1": {ID: "m1", Role: models.RoleHuman, Content: "q", Position: 0, Status: models.StatusSettled},
		"m2": {ID: "m2", Role: models.RoleAssistant, Position: 1, Status: models.StatusStreaming},
	}))

	r2 := New(st)
	require.NoError(t, r2.Init())
	got, _ := r2.Get(s.ID)
	m := got.Messages["m2"]
	assert.True(t, m.IsSettled())
	assert.True(t, m.Failed)
	assert.Equal(t, models.InterruptedText, m.Content)
}

func TestLoad_MigratesLegacyRecord(t *testing.T) {
	st := store.NewMemory(0)
	legacy := `{
	  "abc": {
	    "id": "abc",
	    "title": "",
	    "messages": {
	      "x2": {"id": "x2", "content": "Hi there", "role": "ai", "timestamp": 1700000001000},
	      "x1": {"id": "x1", "content": "Hello", "role": "human", "timestamp": 1700000000000, "used_documents": ["a.pdf"]}
	    }
	  }
	}`
	require.NoError(t, st.Write(KeySessions, []byte(legacy)))

	r := New(st)
	coll, err := r.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"abc"}, coll.Order)

	s := coll.Sessions["abc"]
	require.NotNil(t, s)
	assert.Equal(t, models.DefaultTitle, s.Title)

	ordered := s.Ordered()
	require.Len(t, ordered, 2)
	assert.Equal(t, "x1", ordered[0].ID)
	assert.Equal(t, models.RoleHuman, ordered[0].Role)
	assert.Equal(t, []models.SourceRef{{Name: "a.pdf"}}, ordered[0].Sources)
	assert.Equal(t, models.RoleAssistant, ordered[1].Role)
	assert.True(t, ordered[1].IsSettled())

	raw, _, _ := st.Read(KeySessions)
	assert.Contains(t, string(raw), `"version":2`)
}

func TestLoad_CorruptRecordIsBackedUp(t *testing.T) {
	st := store.NewMemory(0)
	require.NoError(t, st.Write(KeySessions, []byte(`{not json`)))

	r := New(st, WithClock(func() time.Time { return time.Unix(1700000000, 0) }))
	coll, err := r.LoadAll()
	require.Error(t, err)
	assert.True(t, IsWarning(err))
	assert.Empty(t, coll.Sessions)

	backup, ok, _ := st.Read(KeySessions + ".corrupt-1700000000")
	require.True(t, ok)
	assert.Equal(t, `{not json`, string(backup))

	// Still usable
	_, err = r.CreateSession("")
	assert.NoError(t, err)
}

func TestLoad_DropsNullMessages(t *testing.T) {
	st := store.NewMemory(0)
	rec := `{"version":2,"sessions":{"a":{"id":"a","title":"T","messages":{"m":null,"k":{"id":"k","role":"human","content":"hi","status":"settled"}}}}}`
	require.NoError(t, st.Write(KeySessions, []byte(rec)))

	r := New(st)
	coll, err := r.LoadAll()
	require.NoError(t, err)

	s := coll.Sessions["a"]
	require.NotNil(t, s)
	require.Len(t, s.Messages, 1)
	assert.Equal(t, "hi", s.Messages["k"].Content)

	raw, _, _ := st.Read(KeySessions)
	assert.NotContains(t, string(raw), `"m":null`, "cleaned record is written back")
}

func TestLoad_UpgradesVersion1Envelope(t *testing.T) {
	st := store.NewMemory(0)
	rec := `{"version":1,"sessions":{"a":{"id":"a","title":"Kept","messages":{
	  "m2":{"id":"m2","role":"assistant","content":"second","timestamp":"2024-01-01T10:00:01Z"},
	  "m1":{"id":"m1","role":"human","content":"first","timestamp":"2024-01-01T10:00:00Z"}
	}}}}`
	require.NoError(t, st.Write(KeySessions, []byte(rec)))

	r := New(st)
	coll, err := r.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, coll.Order)

	s := coll.Sessions["a"]
	require.NotNil(t, s)
	assert.Equal(t, "Kept", s.Title)

	ordered := s.Ordered()
	require.Len(t, ordered, 2)
	assert.Equal(t, "m1", ordered[0].ID)
	assert.Equal(t, 0, ordered[0].Position)
	assert.Equal(t, 1, ordered[1].Position)
	for _, m := range ordered {
		assert.True(t, m.IsSettled())
	}

	raw, _, _ := st.Read(KeySessions)
	assert.Contains(t, string(raw), `"version":2`)
}

func TestLoad_CurrentEnvelopeIsNotRewritten(t *testing.T) {
	st := store.NewMemory(0)
	rec := `{"version":2,"sessions":{"a":{"id":"a","title":"T","messages":{}}}}`
	require.NoError(t, st.Write(KeySessions, []byte(rec)))
	require.NoError(t, st.Write(KeyOrder, []byte(`["a"]`)))
	before := st.Writes()

	_, err := New(st).LoadAll()
	require.NoError(t, err)
	assert.Equal(t, before, st.Writes())
}

func TestLoad_ReadFailure(t *testing.T) {
	r := New(failingReader{})
	coll, err := r.LoadAll()
	assert.True(t, IsWarning(err))
	assert.ErrorIs(t, err, store.ErrStorageUnavailable)
	assert.Empty(t, coll.Sessions)
}

type failingReader struct{}

func (failingReader) Read(key string) ([]byte, bool, error) {
	return nil, false, &store.StorageError{Key: key, Op: "read", Err: store.ErrStorageUnavailable}
}

func (failingReader) Write(string, []byte) error {
	return errors.New("unexpected write")
}

func (failingReader) Close() error { return nil }
