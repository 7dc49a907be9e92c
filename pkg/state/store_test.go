package state

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielmiguelok/golivecatalog/pkg/forms"
)

func TestMemoryStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore(0)
	defer ms.Close()

	value := []byte("hello")
	require.NoError(t, ms.Set(ctx, "k", value, 0))
	value[0] = 'j'

	got, err := ms.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got, "stored value is a copy")

	ok, err := ms.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, ms.Len())

	require.NoError(t, ms.Delete(ctx, "k"))
	_, err = ms.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore(5 * time.Millisecond)
	defer ms.Close()

	require.NoError(t, ms.Set(ctx, "short", []byte("x"), 10*time.Millisecond))
	require.NoError(t, ms.Set(ctx, "forever", []byte("y"), 0))

	assert.Eventually(t, func() bool {
		_, err := ms.Get(ctx, "short")
		return err == ErrKeyNotFound
	}, time.Second, 5*time.Millisecond)

	ok, err := ms.Exists(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStore_Closed(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore(time.Minute)
	require.NoError(t, ms.Close())

	_, err := ms.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, ms.Set(ctx, "k", nil, 0), ErrStoreClosed)
}

func TestMsgPackSerializer(t *testing.T) {
	type doc struct {
		Name string `msgpack:"name"`
		Body string `msgpack:"body"`
	}

	s := NewMsgPackSerializer()

	small := doc{Name: "small", Body: "x"}
	data, err := s.Marshal(small)
	require.NoError(t, err)
	assert.Equal(t, markerPlain, data[0])

	large := doc{Name: "large", Body: strings.Repeat("abc", 2000)}
	data, err = s.Marshal(large)
	require.NoError(t, err)
	assert.Equal(t, markerGzipped, data[0])
	assert.Less(t, len(data), len(large.Body), "large payloads are compressed")

	var got doc
	require.NoError(t, s.Unmarshal(data, &got))
	assert.Equal(t, large, got)

	assert.ErrorIs(t, s.Unmarshal(nil, &got), ErrInvalidData)
	assert.ErrorIs(t, s.Unmarshal([]byte{9, 1, 2}, &got), ErrInvalidData)
}

func TestDraftManager(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore(0)
	defer ms.Close()
	dm := NewDraftManager(ms, WithKeyPrefix("test:"), WithTTL(time.Minute))

	_, err := dm.Load(ctx, "s1")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	snapshot := forms.State{
		Fields: map[string]any{"name": "Alice", "newsletter": true},
		Errors: forms.Errors{"email": "Email is required"},
		Step:   2,
	}

	first, err := dm.Save(ctx, "s1", snapshot)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Version)

	second, err := dm.Save(ctx, "s1", snapshot)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Version)

	ok, err := ms.Exists(ctx, "test:s1")
	require.NoError(t, err)
	assert.True(t, ok)

	loaded, err := dm.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", loaded.SessionID)
	assert.Equal(t, uint64(2), loaded.Version)
	assert.WithinDuration(t, second.SavedAt, loaded.SavedAt, time.Millisecond)
	if diff := cmp.Diff(snapshot, loaded.State); diff != "" {
		t.Errorf("draft state mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, dm.Delete(ctx, "s1"))
	_, err = dm.Load(ctx, "s1")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestDraftManager_ConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore(0)
	defer ms.Close()
	dm := NewDraftManager(ms)

	const saves = 50
	var wg sync.WaitGroup
	for i := 0; i < saves; i++ {
		wg.Add(1)
		go func(step int) {
			defer wg.Done()
			_, err := dm.Save(ctx, "s1", forms.State{Step: step})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	loaded, err := dm.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, uint64(saves), loaded.Version, "no version bump is lost")
}

func TestDraftManager_RestoresWizard(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore(0)
	defer ms.Close()
	dm := NewDraftManager(ms)

	w := forms.NewSignupWizard()
	require.NoError(t, w.UpdateField("name", "Alice"))
	require.NoError(t, w.UpdateField("email", "alice@example.com"))
	require.True(t, w.NextStep())

	_, err := dm.Save(ctx, "s1", w.State())
	require.NoError(t, err)

	draft, err := dm.Load(ctx, "s1")
	require.NoError(t, err)

	resumed := forms.NewSignupWizard()
	require.NoError(t, resumed.Restore(draft.State))
	if diff := cmp.Diff(w.State(), resumed.State()); diff != "" {
		t.Errorf("resumed wizard mismatch (-want +got):\n%s", diff)
	}
}
