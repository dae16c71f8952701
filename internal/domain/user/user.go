package user

import (
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("user not found")

type Avatar struct {
	ID   int64  `json:"id"`
	Path string `json:"path"`
	URL  string `json:"url"`
}

type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Provider  bool      `json:"provider"`
	Avatar    *Avatar   `json:"avatar"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewAvatar builds the public avatar reference served under <baseURL>/files/<path>.
func NewAvatar(id int64, path, baseURL string) *Avatar {
	return &Avatar{
		ID:   id,
		Path: path,
		URL:  strings.TrimRight(baseURL, "/") + "/files/" + path,
	}
}
