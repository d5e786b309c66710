// Package profile persists named provider configurations to disk as JSON,
// the way the on-disk settings layer of the source project keeps
// per-profile snapshots (§6 "Persisted profile"). Directory resolution
// follows the ~/.config-style expansion the otui config package uses:
// resolve a default under the user's home directory, honor an override,
// expand "~" by hand since no path-expansion library is in the stack.
package profile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"

	"github.com/llxprt/core/llmerr"
)

// Version is the only schema version this package writes or accepts.
const Version = 1

// ModelParams is the subset of model tuning knobs a profile may pin.
type ModelParams struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// Profile is the JSON document persisted at <profilesDir>/<name>.json,
// matching the wire shape named in §6:
// {version, provider, model, modelParams, ephemeralSettings}.
type Profile struct {
	Version           int            `json:"version"`
	Provider          string         `json:"provider"`
	Model             string         `json:"model"`
	ModelParams       ModelParams    `json:"modelParams"`
	EphemeralSettings map[string]any `json:"ephemeralSettings,omitempty"`
}

// DefaultDir returns ~/.llxprt/profiles, expanding the LLXPRT_PROFILES_DIR
// environment override first if set.
func DefaultDir() string {
	if dir := os.Getenv("LLXPRT_PROFILES_DIR"); dir != "" {
		return expandHome(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".llxprt", "profiles")
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return filepath.Clean(path)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Join(home, path[2:])
}

// Store reads and writes profiles under a single directory.
type Store struct {
	dir string
}

// NewStore constructs a Store rooted at dir. An empty dir resolves to
// DefaultDir().
func NewStore(dir string) *Store {
	if dir == "" {
		dir = DefaultDir()
	}
	return &Store{dir: dir}
}

func (s *Store) pathFor(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Save writes p to <dir>/<name>.json, creating the directory (0700, since
// profiles may carry API keys under ephemeralSettings["auth-key"]) if
// needed.
func (s *Store) Save(name string, p Profile) error {
	if name == "" {
		return &llmerr.ProfileError{Name: name, Message: "profile name must not be empty"}
	}
	p.Version = Version

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return &llmerr.ProfileError{Name: name, Message: "creating profiles directory", Cause: err}
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return &llmerr.ProfileError{Name: name, Message: "encoding profile", Cause: err}
	}

	if err := os.WriteFile(s.pathFor(name), data, 0600); err != nil {
		return &llmerr.ProfileError{Name: name, Message: "writing profile file", Cause: err}
	}
	return nil
}

// Load reads and decodes <dir>/<name>.json. A missing file or malformed
// JSON both surface as a ProfileError naming the profile.
func (s *Store) Load(name string) (Profile, error) {
	var p Profile
	if name == "" {
		return p, &llmerr.ProfileError{Name: name, Message: "profile name must not be empty"}
	}

	data, err := os.ReadFile(s.pathFor(name))
	if err != nil {
		if os.IsNotExist(err) {
			return p, &llmerr.ProfileError{Name: name, Message: "profile does not exist", Cause: err}
		}
		return p, &llmerr.ProfileError{Name: name, Message: "reading profile file", Cause: err}
	}

	if err := json.Unmarshal(data, &p); err != nil {
		return p, &llmerr.ProfileError{Name: name, Message: "decoding profile", Cause: err}
	}
	if p.Version != Version {
		return p, &llmerr.ProfileError{Name: name, Message: "unsupported profile version"}
	}
	return p, nil
}

// List returns the names of every profile in the store's directory, in
// os.ReadDir order (sorted by file name, ".json" suffix included, before
// the suffix is trimmed). A missing directory yields
// an empty list, not an error — an unused profiles directory is not a
// fault.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &llmerr.ProfileError{Message: "listing profiles directory", Cause: err}
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	return names, nil
}

// Merge overlays override onto base, override's non-zero fields winning,
// the way the staffd config loader layers agents.yaml defaults under a
// user config file: `mergo.Merge(&base, override, mergo.WithOverride)`.
// Used by callers that want to update one field of a saved profile (e.g.
// a new base-url) without clobbering the rest.
func Merge(base, override Profile) (Profile, error) {
	merged := base
	if err := mergo.Merge(&merged, override, mergo.WithOverride); err != nil {
		return Profile{}, err
	}
	return merged, nil
}

// Delete removes a persisted profile. Deleting a profile that does not
// exist is not an error.
func (s *Store) Delete(name string) error {
	if err := os.Remove(s.pathFor(name)); err != nil && !os.IsNotExist(err) {
		return &llmerr.ProfileError{Name: name, Message: "deleting profile file", Cause: err}
	}
	return nil
}
