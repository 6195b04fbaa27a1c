// Package store reads the persisted session credentials written by the REST
// login flow. The realtime manager reads them once per connection attempt and
// never writes them back; token rotation is owned by the REST layer.
package store

import (
	"github.com/spf13/viper"

	"github.com/NguyenThanhBinh1210/liveapp/realtime"
	"github.com/NguyenThanhBinh1210/liveapp/tools/errs"
)

type Profile struct {
	ID       string `mapstructure:"id"`
	Username string `mapstructure:"username"`
	Email    string `mapstructure:"email"`
}

type Credentials struct {
	AccessToken string  `mapstructure:"access_token"`
	Profile     Profile `mapstructure:"profile"`
}

// FileStore loads credentials from a yaml/json file. Implements
// realtime.CredentialSource; re-reading on every Resolve picks up token
// rotation between reconnects.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (Credentials, error) {
	v := viper.New()
	v.SetConfigFile(s.path)
	if err := v.ReadInConfig(); err != nil {
		return Credentials{}, errs.WrapMsg(err, "read credentials", "path", s.path)
	}
	var c Credentials
	if err := v.Unmarshal(&c); err != nil {
		return Credentials{}, errs.WrapMsg(err, "unmarshal credentials", "path", s.path)
	}
	return c, nil
}

func (s *FileStore) Resolve() (realtime.Identity, error) {
	c, err := s.Load()
	if err != nil {
		return realtime.Identity{}, err
	}
	username := c.Profile.Username
	if username == "" {
		username = c.Profile.Email
	}
	if username == "" {
		username = "Anonymous"
	}
	return realtime.Identity{
		UserID:   c.Profile.ID,
		Username: username,
		Token:    c.AccessToken,
	}, nil
}

// Static wraps a fixed identity; used by tests and the CLI --token flag.
type Static realtime.Identity

func (s Static) Resolve() (realtime.Identity, error) {
	return realtime.Identity(s), nil
}
