package repo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the repository-local settings persisted in the bare repo's
// "config" file: whether the repo is publicly readable without auth, plus
// named remotes carried over for operator bookkeeping.
type Config struct {
	IsPublic bool              `json:"isPublic,omitempty"`
	Remotes  map[string]string `json:"remotes,omitempty"`
}

func (r *Repo) configPath() string {
	return filepath.Join(r.RootDir, "config")
}

// ReadConfig reads the repository's config file. A missing file returns an
// empty (private) config.
func (r *Repo) ReadConfig() (*Config, error) {
	data, err := os.ReadFile(r.configPath())
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{Remotes: make(map[string]string)}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("read config: unmarshal: %w", err)
	}
	if cfg.Remotes == nil {
		cfg.Remotes = make(map[string]string)
	}
	return &cfg, nil
}

// WriteConfig atomically writes the repository's config file.
func (r *Repo) WriteConfig(cfg *Config) error {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Remotes == nil {
		cfg.Remotes = make(map[string]string)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("write config: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(r.RootDir, ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("write config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: close: %w", err)
	}
	if err := os.Rename(tmpName, r.configPath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: rename: %w", err)
	}
	return nil
}

// IsPublic reports whether the repository may be read without
// authentication, consulted by the router's AuthZ gate.
func (r *Repo) IsPublic() (bool, error) {
	cfg, err := r.ReadConfig()
	if err != nil {
		return false, fmt.Errorf("is public: %w", err)
	}
	return cfg.IsPublic, nil
}

// SetRemote stores/updates a named remote URL in repository config.
func (r *Repo) SetRemote(name, remoteURL string) error {
	if name == "" {
		return fmt.Errorf("set remote: remote name is required")
	}
	if remoteURL == "" {
		return fmt.Errorf("set remote: remote URL is required")
	}

	cfg, err := r.ReadConfig()
	if err != nil {
		return err
	}
	cfg.Remotes[name] = remoteURL
	return r.WriteConfig(cfg)
}

// RemoteURL returns the configured URL for the given remote name.
func (r *Repo) RemoteURL(name string) (string, error) {
	cfg, err := r.ReadConfig()
	if err != nil {
		return "", err
	}
	url, ok := cfg.Remotes[name]
	if !ok || url == "" {
		return "", fmt.Errorf("remote %q is not configured", name)
	}
	return url, nil
}
