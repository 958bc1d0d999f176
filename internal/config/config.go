// Package config holds the explicit RepoConfig value (spec §9) that replaces
// the source's global mutable settings. It is loaded once per repository and
// threaded through every subsystem constructor.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/forester-vcs/forester/internal/foresterr"
)

const metadataFile = "metadata.json"

// RepoConfig is the full set of knobs a Forester repository carries. Every
// operation reads it fresh from disk at an operation boundary rather than
// trusting a cached copy — this is what eliminates the "already on branch"
// class of bug the teacher's ad hoc branch-name caching was prone to.
type RepoConfig struct {
	Author             string        `json:"author"`
	DefaultBranch       string        `json:"default_branch"`
	HookTimeout         time.Duration `json:"hook_timeout"`
	AutoCompress        bool          `json:"auto_compress"`
	AutoCompressRetain  int           `json:"auto_compress_retain"`
	GCIntervalHint      time.Duration `json:"gc_interval_hint"`
	LockDefaultTTL      time.Duration `json:"lock_default_ttl"`
}

// Default returns the configuration a freshly initialized repository starts
// with.
func Default() RepoConfig {
	return RepoConfig{
		Author:             "",
		DefaultBranch:       "main",
		HookTimeout:         30 * time.Second,
		AutoCompress:        false,
		AutoCompressRetain:  10,
		GCIntervalHint:      24 * time.Hour,
		LockDefaultTTL:      0, // zero means no expiry unless the caller specifies one
	}
}

// Load reads metadata.json from the repo's .DFM directory. A missing file is
// reported as a NotARepo error; Init writes the default config explicitly.
func Load(dfmDir string) (RepoConfig, error) {
	path := filepath.Join(dfmDir, metadataFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RepoConfig{}, foresterr.Wrap(foresterr.NotARepo, err, "metadata.json not found in %s", dfmDir)
		}
		return RepoConfig{}, foresterr.Wrap(foresterr.IOError, err, "reading metadata.json")
	}

	var cfg RepoConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RepoConfig{}, foresterr.Wrap(foresterr.CorruptObject, err, "parsing metadata.json")
	}
	return cfg, nil
}

// Save writes cfg to dfmDir/metadata.json atomically (temp file + rename),
// following the teacher's local_state.go write pattern.
func Save(dfmDir string, cfg RepoConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return foresterr.Wrap(foresterr.IOError, err, "marshaling metadata.json")
	}

	path := filepath.Join(dfmDir, metadataFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return foresterr.Wrap(foresterr.IOError, err, "writing temp metadata.json")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return foresterr.Wrap(foresterr.IOError, err, "finalizing metadata.json")
	}
	return nil
}
