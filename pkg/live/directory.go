package live

import (
	"context"
	"sync"

	"github.com/gabrielmiguelok/golivecatalog/pkg/remote"
)

// UserDirectoryName is the registry name of the user directory.
const UserDirectoryName = "users"

// UserDirectory shows the fetched users list with a client-side filter.
//
// Events:
//
//	filter {query}
type UserDirectory struct {
	fetcher *remote.Fetcher[remote.User]
	url     string

	res    *remote.Resource[remote.User]
	query  string
	notify Notify
	cancel func()
	closed bool
	mu     sync.Mutex
}

// NewUserDirectory returns a factory for user directory components.
// All instances share the fetcher, so a URL that loaded is requested once;
// a failed load is requested again by the next mount.
func NewUserDirectory(fetcher *remote.Fetcher[remote.User], url string) Factory {
	return func() Component {
		return &UserDirectory{fetcher: fetcher, url: url}
	}
}

// Name returns the component name.
func (d *UserDirectory) Name() string {
	return UserDirectoryName
}

// Mount starts (or joins) the fetch. The "q" param seeds the query.
func (d *UserDirectory) Mount(ctx context.Context, params Params, notify Notify) error {
	d.mu.Lock()
	d.query = params.Get("q")
	d.notify = notify
	d.res = d.fetcher.Fetch(ctx, d.url)
	d.mu.Unlock()

	cancel := d.res.Watch(func(remote.ListState[remote.User]) {
		d.mu.Lock()
		closed, notify := d.closed, d.notify
		d.mu.Unlock()
		if !closed && notify != nil {
			notify()
		}
	})

	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()
	return nil
}

// HandleEvent updates the query.
func (d *UserDirectory) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	switch event {
	case "filter":
		q, err := stringArg(payload, "query")
		if err != nil {
			return err
		}
		d.mu.Lock()
		d.query = q
		d.mu.Unlock()
		return nil
	default:
		return ErrUnknownEvent
	}
}

// View returns status, display message and the filtered users.
// "empty" is only true once the list resolved and nothing matched.
func (d *UserDirectory) View() map[string]any {
	d.mu.Lock()
	res, query := d.res, d.query
	d.mu.Unlock()

	if res == nil {
		return map[string]any{}
	}
	s := res.State()

	view := map[string]any{
		"status":  s.Status.String(),
		"message": s.Message(),
		"query":   query,
	}
	if s.Status == remote.StatusReady {
		users := remote.FilterUsers(s.Items, query)
		view["users"] = users
		view["total"] = len(s.Items)
		view["empty"] = len(users) == 0
	}
	return view
}

// Terminate detaches from the fetch.
func (d *UserDirectory) Terminate(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	cancel := d.cancel
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}
