// Package repo wires every Forester subsystem into a single façade: one
// struct the CLI layer constructs once per invocation and calls through to
// the commit engine, checkout engine, branch/tag managers, stash engine,
// lock manager, review store, and GC. There is no single teacher
// equivalent (the teacher wires its subsystems directly in cmd/vcs/main.go
// against a long-lived server process); this package plays the same
// composition-root role the teacher's main.go plays, generalized into a
// reusable type the CLI commands in cmd/forester share.
package repo

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/forester-vcs/forester/internal/branch"
	"github.com/forester-vcs/forester/internal/checkout"
	"github.com/forester-vcs/forester/internal/commitengine"
	"github.com/forester-vcs/forester/internal/config"
	"github.com/forester-vcs/forester/internal/foresterr"
	"github.com/forester-vcs/forester/internal/gc"
	"github.com/forester-vcs/forester/internal/lockmgr"
	"github.com/forester-vcs/forester/internal/metadata"
	"github.com/forester-vcs/forester/internal/objstore"
	"github.com/forester-vcs/forester/internal/review"
	"github.com/forester-vcs/forester/internal/stash"
	"github.com/forester-vcs/forester/internal/tag"
)

const dfmDirName = ".DFM"

// objectKinds lists the subdirectories objstore.Open expects under
// objects/, created fresh by Init (spec §6 on-disk layout).
var objectKinds = []string{"blobs", "trees", "commits", "meshes", "textures"}

// Repo bundles every wired subsystem plus the paths and config they share.
// cmd/forester constructs exactly one of these per invocation.
type Repo struct {
	RepoRoot string
	DFMDir   string
	Config   config.RepoConfig
	Log      *zap.SugaredLogger

	Store    *objstore.Store
	Index    *metadata.Index
	Branches *branch.Manager
	Tags     *tag.Manager
	Commits  *commitengine.Engine
	Checkout *checkout.Engine
	Stash    *stash.Engine
	Locks    *lockmgr.Manager
	Review   *review.Store
	GC       *gc.Engine
}

// Init creates a new repository at path (spec §6 on-disk layout: objects/,
// refs/branches, refs/tags, hooks/, forester.db, HEAD, metadata.json,
// .dfmignore). force allows re-initializing a path that already has a
// .DFM directory, overwriting its config but not its objects or history.
func Init(path string, force bool) (*Repo, error) {
	absRoot, err := filepath.Abs(path)
	if err != nil {
		return nil, foresterr.Wrap(foresterr.IOError, err, "resolving %s", path)
	}
	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return nil, foresterr.Wrap(foresterr.IOError, err, "creating %s", absRoot)
	}

	dfmDir := filepath.Join(absRoot, dfmDirName)
	if _, err := os.Stat(dfmDir); err == nil && !force {
		return nil, foresterr.New(foresterr.AlreadyExists, "%s is already a Forester repository", absRoot)
	}

	for _, kind := range objectKinds {
		if err := os.MkdirAll(filepath.Join(dfmDir, "objects", kind), 0755); err != nil {
			return nil, foresterr.Wrap(foresterr.IOError, err, "creating objects/%s", kind)
		}
	}
	for _, dir := range []string{
		filepath.Join(dfmDir, "refs", "branches"),
		filepath.Join(dfmDir, "refs", "tags"),
		filepath.Join(dfmDir, "hooks"),
		filepath.Join(dfmDir, "stash"),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, foresterr.Wrap(foresterr.IOError, err, "creating %s", dir)
		}
	}

	cfg := config.Default()
	if err := config.Save(dfmDir, cfg); err != nil {
		return nil, err
	}

	ignorePath := filepath.Join(dfmDir, ".dfmignore")
	if _, err := os.Stat(ignorePath); os.IsNotExist(err) {
		if err := os.WriteFile(ignorePath, []byte("forester.db\nforester.db-*\n"), 0644); err != nil {
			return nil, foresterr.Wrap(foresterr.IOError, err, "writing default .dfmignore")
		}
	}

	r, err := open(absRoot, dfmDir, cfg)
	if err != nil {
		return nil, err
	}

	headPath := filepath.Join(dfmDir, "HEAD")
	if _, err := os.Stat(headPath); os.IsNotExist(err) {
		branchName := cfg.DefaultBranch
		if err := r.Branches.Create(branchName, ""); err != nil {
			return nil, err
		}
		if err := os.WriteFile(headPath, []byte(branchName+"\n"), 0644); err != nil {
			return nil, foresterr.Wrap(foresterr.IOError, err, "writing HEAD")
		}
	}

	return r, nil
}

// Open locates the nearest ancestor of startDir containing a .DFM
// directory (mirroring the ordinary "run from any subdirectory" ergonomics
// of Git-family tools, which the teacher's single-cwd cmd/vcs does not
// need since it always runs from the project root its server tracks) and
// wires every subsystem against it.
func Open(startDir string) (*Repo, error) {
	absStart, err := filepath.Abs(startDir)
	if err != nil {
		return nil, foresterr.Wrap(foresterr.IOError, err, "resolving %s", startDir)
	}

	dir := absStart
	for {
		dfmDir := filepath.Join(dir, dfmDirName)
		if info, statErr := os.Stat(dfmDir); statErr == nil && info.IsDir() {
			cfg, loadErr := config.Load(dfmDir)
			if loadErr != nil {
				return nil, loadErr
			}
			return open(dir, dfmDir, cfg)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, foresterr.New(foresterr.NotARepo, "no Forester repository found at or above %s", absStart)
		}
		dir = parent
	}
}

// logEncoderConfig mirrors the pack's CLI console encoder (bufbuild-buf's
// internal/pkg/cli/clizap), trimmed to the single color-console format
// Forester needs since there is no --log-format flag to plumb through yet.
var logEncoderConfig = zapcore.EncoderConfig{
	MessageKey:     "M",
	LevelKey:       "L",
	TimeKey:        "T",
	NameKey:        "N",
	CallerKey:      "C",
	StacktraceKey:  "S",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.CapitalColorLevelEncoder,
	EncodeTime:     zapcore.ISO8601TimeEncoder,
	EncodeDuration: zapcore.StringDurationEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
	EncodeName:     zapcore.FullNameEncoder,
}

// newLogger builds a real zap logger writing to stderr, defaulting to info
// level. DFM_LOG_LEVEL (debug, info, warn, error) overrides the level,
// following the DFM_* environment convention the hook contract uses.
func newLogger() *zap.SugaredLogger {
	level := zapcore.InfoLevel
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DFM_LOG_LEVEL"))) {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(logEncoderConfig),
		zapcore.Lock(zapcore.AddSync(os.Stderr)),
		zap.NewAtomicLevelAt(level),
	)
	return zap.New(core).Sugar()
}

func open(repoRoot, dfmDir string, cfg config.RepoConfig) (*Repo, error) {
	log := newLogger()

	store, err := objstore.Open(filepath.Join(dfmDir, "objects"))
	if err != nil {
		return nil, err
	}
	idx, err := metadata.Open(filepath.Join(dfmDir, "forester.db"), log)
	if err != nil {
		return nil, err
	}

	branches := branch.New(dfmDir, idx)
	tags := tag.New(dfmDir, idx)

	return &Repo{
		RepoRoot: repoRoot,
		DFMDir:   dfmDir,
		Config:   cfg,
		Log:      log,
		Store:    store,
		Index:    idx,
		Branches: branches,
		Tags:     tags,
		Commits: &commitengine.Engine{
			RepoRoot: repoRoot, DFMDir: dfmDir, Store: store, Index: idx, Branches: branches, Config: cfg, Log: log,
		},
		Checkout: &checkout.Engine{
			RepoRoot: repoRoot, DFMDir: dfmDir, Store: store, Index: idx, Branches: branches, Config: cfg,
		},
		Stash: &stash.Engine{
			RepoRoot: repoRoot, DFMDir: dfmDir, Store: store, Index: idx, Branches: branches, Config: cfg,
		},
		Locks:  &lockmgr.Manager{Index: idx, Branches: branches, Config: cfg},
		Review: &review.Store{Index: idx},
		GC:     &gc.Engine{DFMDir: dfmDir, Store: store, Index: idx},
	}, nil
}

// Close releases the metadata index's underlying database connection.
func (r *Repo) Close() error {
	return r.Index.Close()
}
