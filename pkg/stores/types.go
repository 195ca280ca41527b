package stores

import (
	"errors"
	"time"
)

// SchemaVersion is the expected version tag of the JSON record files.
// Files carrying any other version are treated as corrupt and replaced
// with an empty container on load.
const SchemaVersion = 1

// ErrNotFound is returned when a record is not present in a store.
var ErrNotFound = errors.New("record not found")

// SourceControl identifies the source-control repository of a project.
type SourceControl struct {
	RepoURL string `json:"repo_url"`
	Owner   string `json:"owner"`
	Repo    string `json:"repo"`
}

// HostingTarget identifies where the project's production app is hosted.
type HostingTarget struct {
	URL   string `json:"url"`
	AppID string `json:"app_id"`
}

// DatabaseProject identifies the database-branching service project.
type DatabaseProject struct {
	ProjectRef string `json:"project_ref"`
	Region     string `json:"region"`
}

// ProjectRecord represents one long-lived project managed by the tool.
// Name is the primary key; records are created once and deleted
// explicitly, never mutated in place.
type ProjectRecord struct {
	Name          string          `json:"name"`
	CreatedAt     time.Time       `json:"created_at"`
	SourceControl SourceControl   `json:"source_control"`
	Hosting       HostingTarget   `json:"hosting"`
	Database      DatabaseProject `json:"database"`
}

// EnvironmentRecord represents one ephemeral per-feature environment:
// a compute instance, its database branches, and its source branch.
// Name (the instance name) is the primary key, but teardown and status
// look environments up by the (project, feature) pair, of which at most
// one may be active at a time.
type EnvironmentRecord struct {
	Name             string    `json:"name"`
	RemoteHost       string    `json:"remote_host"`
	Project          string    `json:"project"`
	Feature          string    `json:"feature"`
	CreatedAt        time.Time `json:"created_at"`
	DatabaseBranches []string  `json:"database_branches"`
	SourceBranch     string    `json:"source_branch"`
}

// projectsFile is the on-disk container for project records.
type projectsFile struct {
	Version  int             `json:"version"`
	Projects []ProjectRecord `json:"projects"`
}

// vmsFile is the on-disk container for environment records.
type vmsFile struct {
	Version int                 `json:"version"`
	VMs     []EnvironmentRecord `json:"vms"`
}

// ProjectStore is the persistence contract for project records.
type ProjectStore interface {
	Get(name string) (*ProjectRecord, error)
	Upsert(rec ProjectRecord) error
	Remove(name string) error
	List() ([]ProjectRecord, error)
}

// EnvironmentStore is the persistence contract for environment records.
type EnvironmentStore interface {
	Get(name string) (*EnvironmentRecord, error)
	GetByFeature(project, feature string) (*EnvironmentRecord, error)
	Upsert(rec EnvironmentRecord) error
	Remove(name string) error
	List() ([]EnvironmentRecord, error)
}
