package remote

import (
	"errors"
)

// DefaultUsersURL is the public users list endpoint.
const DefaultUsersURL = "https://api.github.com/users"

// User is a GitHub-style user summary.
type User struct {
	Login     string `json:"login"`
	ID        int64  `json:"id"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
}

// UserLogin is the display field used when filtering users.
func UserLogin(u User) string {
	return u.Login
}

func validateUser(u User) error {
	if u.Login == "" {
		return errors.New("user without login")
	}
	return nil
}

// NewUsersFetcher creates a fetcher for the users list.
func NewUsersFetcher(opts ...FetcherOption) (*Fetcher[User], error) {
	return NewFetcher[User](validateUser, opts...)
}

// FilterUsers filters users by login.
func FilterUsers(users []User, query string) []User {
	return Filter(users, query, UserLogin)
}
