// Package metadata implements Forester's relational index (spec §4.2): a
// single transactional GORM store over a local SQLite file, grounded in the
// teacher's models/models.go and database/database.go but re-scoped away
// from the multi-tenant project/organization schema to a single repository.
package metadata

import "time"

// Commit mirrors the spec §3 Commit record plus its storage-side foreign
// keys. The primary key, Hash, is the commit's content hash, not a
// surrogate key.
type Commit struct {
	Hash                 string `gorm:"primaryKey;column:hash"`
	ParentHash           string `gorm:"column:parent_hash;index"`
	TreeHash             string `gorm:"column:tree_hash;index"`
	Message              string `gorm:"column:message;not null"`
	Author               string `gorm:"column:author"`
	Timestamp            int64  `gorm:"column:timestamp"`
	BranchNameAtCreation string `gorm:"column:branch_name_at_creation"`
	CommitType           string `gorm:"column:commit_type"` // project | mesh_only
	ScreenshotHash       string `gorm:"column:screenshot_hash"`

	Files []CommitFile `gorm:"foreignKey:CommitHash;references:Hash"`
}

func (Commit) TableName() string { return "commits" }

// Branch is the relational mirror of a branch ref file.
type Branch struct {
	Name       string `gorm:"primaryKey;column:name"`
	TipHash    string `gorm:"column:tip_hash"`
	IsCurrent  bool   `gorm:"column:is_current"`
	CreatedAt  int64  `gorm:"column:created_at"`
	UpdatedAt  int64  `gorm:"column:updated_at"`
}

func (Branch) TableName() string { return "branches" }

// Tag is the supplemented (§9 Open Question) named pointer to a commit hash.
type Tag struct {
	Name       string `gorm:"primaryKey;column:name"`
	CommitHash string `gorm:"column:commit_hash"`
	CreatedAt  int64  `gorm:"column:created_at"`
}

func (Tag) TableName() string { return "tags" }

// TreeEntry is a flattened materialization of one tree's entries, written
// by the commit engine and readable through Index.TreeEntries. `forester
// log -v` reads commit_files and checkout parses tree objects; neither
// reads this table.
type TreeEntry struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	TreeHash string `gorm:"column:tree_hash;index"`
	Path     string `gorm:"column:path"`
	Kind     string `gorm:"column:kind"` // blob | tree | mesh
	Hash     string `gorm:"column:hash"`
	Mode     string `gorm:"column:mode"`
}

func (TreeEntry) TableName() string { return "tree_entries" }

// CommitFile is the commit → file materialization used by `forester show`.
type CommitFile struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	CommitHash  string `gorm:"column:commit_hash;index"`
	Path        string `gorm:"column:path"`
	Kind        string `gorm:"column:kind"`
	Hash        string `gorm:"column:hash"`
	Size        int64  `gorm:"column:size"`
}

func (CommitFile) TableName() string { return "commit_files" }

// Mesh is the relational record of a normalized mesh object (spec §3/§4.5).
type Mesh struct {
	Hash       string `gorm:"primaryKey;column:hash"`
	ObjectName string `gorm:"column:object_name"`
	VertexCount int   `gorm:"column:vertex_count"`
	FaceCount   int   `gorm:"column:face_count"`
	CreatedAt  int64  `gorm:"column:created_at"`
}

func (Mesh) TableName() string { return "meshes" }

// Texture is the relational record of a stored texture (spec §3).
type Texture struct {
	Hash     string `gorm:"primaryKey;column:hash"`
	Width    int    `gorm:"column:width"`
	Height   int    `gorm:"column:height"`
	Channels int    `gorm:"column:channels"`
	Format   string `gorm:"column:format"`
	CreatedAt int64 `gorm:"column:created_at"`
}

func (Texture) TableName() string { return "textures" }

// TextureCommit links a texture to every commit whose tree references it,
// so GC can trace reachability through §4.12 step 2.
type TextureCommit struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	TextureHash string `gorm:"column:texture_hash;index"`
	CommitHash  string `gorm:"column:commit_hash;index"`
}

func (TextureCommit) TableName() string { return "texture_commits" }

// Stash mirrors Commit's shape but is never referenced by a branch (spec §3).
type Stash struct {
	Hash      string `gorm:"primaryKey;column:hash"`
	TreeHash  string `gorm:"column:tree_hash"`
	Message   string `gorm:"column:message"`
	Author    string `gorm:"column:author"`
	Timestamp int64  `gorm:"column:timestamp"`
}

func (Stash) TableName() string { return "stashes" }

// Lock is the relational record backing the §4.10 state machine.
type Lock struct {
	ID        uint       `gorm:"primaryKey;autoIncrement"`
	FilePath  string     `gorm:"column:file_path;index:idx_lock_key"`
	Branch    string     `gorm:"column:branch;index:idx_lock_key"`
	LockedBy  string     `gorm:"column:locked_by"`
	LockType  string     `gorm:"column:lock_type"` // exclusive | shared
	LockedAt  int64      `gorm:"column:locked_at"`
	ExpiresAt *int64     `gorm:"column:expires_at"`
}

func (Lock) TableName() string { return "locks" }

// Comment is the append-mostly review annotation (spec §3/§4.11).
type Comment struct {
	ID        uint    `gorm:"primaryKey;autoIncrement"`
	AssetHash string  `gorm:"column:asset_hash;index"`
	AssetType string  `gorm:"column:asset_type"` // mesh | blob | commit
	Author    string  `gorm:"column:author"`
	Text      string  `gorm:"column:text"`
	CreatedAt int64   `gorm:"column:created_at"`
	X         *float64 `gorm:"column:x"`
	Y         *float64 `gorm:"column:y"`
	Resolved  bool    `gorm:"column:resolved"`
}

func (Comment) TableName() string { return "comments" }

// Approval is append-only; the current status per (asset, approver) is the
// most recent row (spec §4.11).
type Approval struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	AssetHash  string `gorm:"column:asset_hash;index"`
	AssetType  string `gorm:"column:asset_type"`
	Approver   string `gorm:"column:approver"`
	Status     string `gorm:"column:status"` // pending | approved | rejected
	Comment    string `gorm:"column:comment"`
	CreatedAt  int64  `gorm:"column:created_at"`
}

func (Approval) TableName() string { return "approvals" }

// RepoMeta is a free-form key/value table for repo-level bookkeeping (e.g.
// schema version, last GC timestamp) that does not warrant its own table.
type RepoMeta struct {
	Key   string `gorm:"primaryKey;column:key"`
	Value string `gorm:"column:value"`
}

func (RepoMeta) TableName() string { return "repo_meta" }

// allModels lists every table AutoMigrate must create.
var allModels = []interface{}{
	&Commit{}, &Branch{}, &Tag{}, &TreeEntry{}, &CommitFile{},
	&Mesh{}, &Texture{}, &TextureCommit{}, &Stash{}, &Lock{},
	&Comment{}, &Approval{}, &RepoMeta{},
}

// Now is the monotonic wall-clock source used when stamping rows; extracted
// so ordering-guarantee tests (spec §5) can substitute a controlled clock.
var Now = func() time.Time { return time.Now() }
