package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usersJSON = `[
	{"id": 1, "login": "alice", "avatar_url": "https://a/1", "html_url": "https://gh/alice"},
	{"id": 2, "login": "bob", "avatar_url": "https://a/2", "html_url": "https://gh/bob"}
]`

type countingServer struct {
	*httptest.Server
	calls atomic.Int32
}

func newCountingServer(t *testing.T, h http.HandlerFunc) *countingServer {
	t.Helper()
	cs := &countingServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.calls.Add(1)
		h(w, r)
	}))
	t.Cleanup(cs.Close)
	return cs
}

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func waitState[T any](t *testing.T, res *Resource[T]) ListState[T] {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := res.Wait(ctx)
	require.NoError(t, err)
	return s
}

func TestFetcher_ReadyAndFilter(t *testing.T) {
	srv := newCountingServer(t, jsonHandler(http.StatusOK, usersJSON))
	f, err := NewUsersFetcher()
	require.NoError(t, err)

	s := waitState(t, f.Fetch(context.Background(), srv.URL))

	require.Equal(t, StatusReady, s.Status)
	require.Len(t, s.Items, 2)
	assert.Equal(t, User{ID: 1, Login: "alice", AvatarURL: "https://a/1", HTMLURL: "https://gh/alice"}, s.Items[0])
	assert.Empty(t, s.Message())

	alice := FilterUsers(s.Items, "alice")
	require.Len(t, alice, 1)
	assert.Equal(t, int64(1), alice[0].ID)

	none := FilterUsers(s.Items, "charlie")
	assert.NotNil(t, none)
	assert.Empty(t, none)
	assert.False(t, ListState[User]{Status: StatusPending}.IsEmpty(), "pending is not the same as an empty result")
	assert.True(t, ListState[User]{Status: StatusReady, Items: none}.IsEmpty())
}

func TestFetcher_PendingUntilResolved(t *testing.T) {
	release := make(chan struct{})
	srv := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		jsonHandler(http.StatusOK, usersJSON)(w, r)
	})
	f, err := NewUsersFetcher()
	require.NoError(t, err)

	res := f.Fetch(context.Background(), srv.URL)
	s := res.State()
	assert.Equal(t, StatusPending, s.Status)
	assert.Nil(t, s.Items)
	assert.Equal(t, "Loading...", s.Message())
	assert.False(t, s.IsEmpty())

	close(release)
	assert.Equal(t, StatusReady, waitState(t, res).Status)
}

func TestFetcher_MemoizesByURL(t *testing.T) {
	srv := newCountingServer(t, jsonHandler(http.StatusOK, usersJSON))
	f, err := NewUsersFetcher()
	require.NoError(t, err)

	first := f.Fetch(context.Background(), srv.URL)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Same(t, first, f.Fetch(context.Background(), srv.URL))
		}()
	}
	wg.Wait()
	waitState(t, first)

	assert.Same(t, first, f.Fetch(context.Background(), srv.URL))
	assert.Equal(t, int32(1), srv.calls.Load())

	f.Forget(srv.URL)
	again := f.Fetch(context.Background(), srv.URL)
	assert.NotSame(t, first, again)
	waitState(t, again)
	assert.Equal(t, int32(2), srv.calls.Load())
}

func TestFetcher_CallerCancelDoesNotFailSharedFetch(t *testing.T) {
	release := make(chan struct{})
	srv := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		jsonHandler(http.StatusOK, usersJSON)(w, r)
	})
	f, err := NewUsersFetcher()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	res := f.Fetch(ctx, srv.URL)
	cancel()
	close(release)

	assert.Equal(t, StatusReady, waitState(t, res).Status)
}

func TestFetcher_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, s ListState[User])
	}{
		{
			name:    "non-2xx",
			handler: jsonHandler(http.StatusForbidden, `{"message":"rate limited"}`),
			check: func(t *testing.T, s ListState[User]) {
				var statusErr *StatusError
				require.ErrorAs(t, s.Failure, &statusErr)
				assert.Equal(t, http.StatusForbidden, statusErr.Code)
				assert.Equal(t, "Failed to load data (HTTP 403)", s.Message())
			},
		},
		{
			name:    "not an array",
			handler: jsonHandler(http.StatusOK, `{"users": []}`),
			check: func(t *testing.T, s ListState[User]) {
				assert.ErrorIs(t, s.Failure, ErrMalformedPayload)
			},
		},
		{
			name:    "broken json",
			handler: jsonHandler(http.StatusOK, `[{"login": "alice"`),
			check: func(t *testing.T, s ListState[User]) {
				assert.ErrorIs(t, s.Failure, ErrMalformedPayload)
			},
		},
		{
			name:    "user without login",
			handler: jsonHandler(http.StatusOK, `[{"id": 3}]`),
			check: func(t *testing.T, s ListState[User]) {
				assert.ErrorIs(t, s.Failure, ErrMalformedPayload)
				assert.Contains(t, s.Message(), "unexpected response")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newCountingServer(t, tt.handler)
			f, err := NewUsersFetcher()
			require.NoError(t, err)

			s := waitState(t, f.Fetch(context.Background(), srv.URL))
			require.Equal(t, StatusFailed, s.Status)
			assert.Nil(t, s.Items)
			assert.False(t, s.IsEmpty())
			tt.check(t, s)
			assert.Equal(t, int32(1), srv.calls.Load(), "failures are not retried")
		})
	}
}

func TestFetcher_FailureIsNotMemoized(t *testing.T) {
	var failed atomic.Bool
	srv := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		if failed.CompareAndSwap(false, true) {
			jsonHandler(http.StatusForbidden, `{"message":"rate limited"}`)(w, r)
			return
		}
		jsonHandler(http.StatusOK, usersJSON)(w, r)
	})
	f, err := NewUsersFetcher()
	require.NoError(t, err)

	first := f.Fetch(context.Background(), srv.URL)
	require.Equal(t, StatusFailed, waitState(t, first).Status)
	assert.Equal(t, StatusFailed, first.State().Status, "the failed resource keeps its state")

	second := f.Fetch(context.Background(), srv.URL)
	assert.NotSame(t, first, second)
	s := waitState(t, second)
	assert.Equal(t, StatusReady, s.Status)
	assert.Len(t, s.Items, 2)
	assert.Equal(t, int32(2), srv.calls.Load())

	assert.Same(t, second, f.Fetch(context.Background(), srv.URL), "success stays memoized")
	assert.Equal(t, int32(2), srv.calls.Load())
}

func TestFetcher_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f, err := NewUsersFetcher()
	require.NoError(t, err)

	s := waitState(t, f.Fetch(context.Background(), url))
	require.Equal(t, StatusFailed, s.Status)
	assert.Contains(t, s.Failure.Error(), "fetch "+url)
	assert.Contains(t, s.Message(), "Failed to load data")
}

func TestFetcher_EmptyArray(t *testing.T) {
	srv := newCountingServer(t, jsonHandler(http.StatusOK, `[]`))
	f, err := NewUsersFetcher()
	require.NoError(t, err)

	s := waitState(t, f.Fetch(context.Background(), srv.URL))
	assert.Equal(t, StatusReady, s.Status)
	assert.NotNil(t, s.Items)
	assert.True(t, s.IsEmpty())
}

func TestFetcher_UserAgent(t *testing.T) {
	var got atomic.Value
	srv := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("User-Agent"))
		jsonHandler(http.StatusOK, `[]`)(w, r)
	})
	f, err := NewUsersFetcher(WithUserAgent("catalog-test"))
	require.NoError(t, err)

	waitState(t, f.Fetch(context.Background(), srv.URL))
	assert.Equal(t, "catalog-test", got.Load())
}

func TestNewFetcher_InvalidCacheSize(t *testing.T) {
	_, err := NewUsersFetcher(WithCacheSize(0))
	assert.Error(t, err)
}

func TestResource_Watch(t *testing.T) {
	release := make(chan struct{})
	srv := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		jsonHandler(http.StatusOK, usersJSON)(w, r)
	})
	f, err := NewUsersFetcher()
	require.NoError(t, err)
	res := f.Fetch(context.Background(), srv.URL)

	calls := make(chan ListState[User], 2)
	res.Watch(func(s ListState[User]) { calls <- s })
	cancelled := res.Watch(func(ListState[User]) { t.Error("cancelled watcher invoked") })
	cancelled()

	close(release)
	select {
	case s := <-calls:
		assert.Equal(t, StatusReady, s.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher not called")
	}

	// Watching a resolved resource calls back immediately.
	var late ListState[User]
	res.Watch(func(s ListState[User]) { late = s })
	assert.Equal(t, StatusReady, late.Status)
}

func TestFailureMessage(t *testing.T) {
	assert.Empty(t, FailureMessage(nil))
	assert.Equal(t, "Failed to load data (HTTP 500)", FailureMessage(&StatusError{Code: 500}))
	assert.Equal(t, "Failed to load data: boom", FailureMessage(errors.New("boom")))
}
