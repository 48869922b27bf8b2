package auth

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/toml"
	"golang.org/x/crypto/bcrypt"
)

// BasicFileConfig is the TOML shape loaded by LoadBasicFileAuthZ:
//
//	[users]
//	alice = "$2a$10$..."   # bcrypt hash
//	bob   = "$2a$10$..."
type BasicFileConfig struct {
	Users map[string]string `toml:"users"`
}

// BasicFileAuthZ is a reference AuthZ backed by a TOML file of
// username -> bcrypt password hash. Any user present in the file is
// granted both read and write access to every repository — it has no
// per-repo ACL, since a real deployment is expected to supply its own
// AuthZ against an external permission store. This exists for
// standalone/dev use.
type BasicFileAuthZ struct {
	mu    sync.RWMutex
	users map[string]string // username -> bcrypt hash
}

// LoadBasicFileAuthZ reads and parses a TOML credentials file.
func LoadBasicFileAuthZ(path string) (*BasicFileAuthZ, error) {
	var cfg BasicFileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("load basic file authz: %w", err)
	}
	return &BasicFileAuthZ{users: cfg.Users}, nil
}

// NewBasicFileAuthZ builds an in-memory instance directly from a map,
// useful for tests that don't want to round-trip a TOML file.
func NewBasicFileAuthZ(users map[string]string) *BasicFileAuthZ {
	copied := make(map[string]string, len(users))
	for k, v := range users {
		copied[k] = v
	}
	return &BasicFileAuthZ{users: copied}
}

// Allow grants access iff creds names a known user whose password matches
// the stored bcrypt hash. Anonymous requests (creds == nil) are denied;
// the router only calls AuthZ at all for requests that require it (a
// write, or a read of a non-public repo).
func (a *BasicFileAuthZ) Allow(owner, repo string, op Operation, creds *Credentials) (bool, error) {
	if creds == nil || creds.Username == "" {
		return false, nil
	}

	a.mu.RLock()
	hash, ok := a.users[creds.Username]
	a.mu.RUnlock()
	if !ok {
		return false, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(creds.Password)); err != nil {
		return false, nil
	}
	return true, nil
}
