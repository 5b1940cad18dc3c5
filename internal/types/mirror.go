package types

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
)

// PlannedAction is one line of a mirror plan as shown to users
type PlannedAction struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
	Size int64  `json:"size,omitempty"`
}

// PlanResult is the output of `ghmirror plan`
type PlanResult struct {
	Repository string          `json:"repository"`
	Branch     string          `json:"branch"`
	LocalDir   string          `json:"localDir"`
	Counts     ActionCounts    `json:"counts"`
	Actions    []PlannedAction `json:"actions"`
}

// ActionCounts tallies a plan or a run by action kind
type ActionCounts struct {
	Skipped int `json:"skipped"`
	Updated int `json:"updated"`
	Created int `json:"created"`
	Deleted int `json:"deleted"`
}

func (p *PlanResult) Headers() []string {
	return []string{"Action", "Path", "Size"}
}

func (p *PlanResult) Rows() [][]string {
	rows := make([][]string, 0, len(p.Actions))
	for _, a := range p.Actions {
		size := "-"
		if a.Size > 0 {
			size = humanize.IBytes(uint64(a.Size))
		}
		rows = append(rows, []string{a.Kind, truncateMirrorText(a.Path, 80), size})
	}
	return rows
}

func (p *PlanResult) EmptyMessage() string {
	return fmt.Sprintf("Already in sync (%d files unchanged).", p.Counts.Skipped)
}

// ActionFailure describes a single action that could not be applied
type ActionFailure struct {
	Kind  string `json:"kind"`
	Path  string `json:"path"`
	Error string `json:"error"`
}

// SyncResult is the output of `ghmirror sync` and `ghmirror target run`
type SyncResult struct {
	Repository  string          `json:"repository"`
	Branch      string          `json:"branch"`
	LocalDir    string          `json:"localDir"`
	CommitSHA   string          `json:"commitSha,omitempty"`
	DryRun      bool            `json:"dryRun"`
	Counts      ActionCounts    `json:"counts"`
	Failed      int             `json:"failed"`
	DirsRemoved int             `json:"dirsRemoved"`
	Duration    string          `json:"duration"`
	Failures    []ActionFailure `json:"failures,omitempty"`
}

func (r *SyncResult) Headers() []string {
	return []string{"Skipped", "Updated", "Created", "Deleted", "Errors", "Dirs Removed", "Duration"}
}

func (r *SyncResult) Rows() [][]string {
	return [][]string{{
		strconv.Itoa(r.Counts.Skipped),
		strconv.Itoa(r.Counts.Updated),
		strconv.Itoa(r.Counts.Created),
		strconv.Itoa(r.Counts.Deleted),
		strconv.Itoa(r.Failed),
		strconv.Itoa(r.DirsRemoved),
		r.Duration,
	}}
}

func (r *SyncResult) EmptyMessage() string {
	return "Nothing to report."
}

// Target is a saved repository/branch to local directory binding
type Target struct {
	Name          string   `json:"name"`
	Repository    string   `json:"repository"`
	Branch        string   `json:"branch"`
	LocalDir      string   `json:"localDir"`
	SubDir        string   `json:"subDir,omitempty"`
	Source        string   `json:"source"`
	Excludes      []string `json:"excludes,omitempty"`
	LastCommitSHA string   `json:"lastCommitSha,omitempty"`
	LastSyncTime  int64    `json:"lastSyncTime,omitempty"`
}

// TargetList renders saved targets as a table
type TargetList struct {
	Targets []Target `json:"targets"`
}

func (l *TargetList) Headers() []string {
	return []string{"Name", "Repository", "Branch", "Local Dir", "Last Commit", "Last Sync"}
}

func (l *TargetList) Rows() [][]string {
	rows := make([][]string, 0, len(l.Targets))
	for _, t := range l.Targets {
		last := "-"
		if t.LastSyncTime > 0 {
			last = humanize.Time(time.Unix(t.LastSyncTime, 0))
		}
		sha := "-"
		if t.LastCommitSHA != "" {
			sha = truncateMirrorText(t.LastCommitSHA, 10)
		}
		rows = append(rows, []string{t.Name, t.Repository, t.Branch, truncateMirrorText(t.LocalDir, 50), sha, last})
	}
	return rows
}

func (l *TargetList) EmptyMessage() string {
	return "No saved targets."
}

// UpdateCheck reports whether a branch moved since the last run
type UpdateCheck struct {
	Target        string `json:"target"`
	Branch        string `json:"branch"`
	LatestSHA     string `json:"latestSha"`
	LastSyncedSHA string `json:"lastSyncedSha,omitempty"`
	UpToDate      bool   `json:"upToDate"`
}

func (c *UpdateCheck) Headers() []string {
	return []string{"Target", "Branch", "Latest", "Last Synced", "Status"}
}

func (c *UpdateCheck) Rows() [][]string {
	status := "update available"
	if c.UpToDate {
		status = "up to date"
	}
	synced := c.LastSyncedSHA
	if synced == "" {
		synced = "never"
	}
	return [][]string{{c.Target, c.Branch, truncateMirrorText(c.LatestSHA, 10), truncateMirrorText(synced, 10), status}}
}

func (c *UpdateCheck) EmptyMessage() string {
	return ""
}

// BranchList renders the branches of a repository
type BranchList struct {
	Repository string   `json:"repository"`
	Branches   []Branch `json:"branches"`
}

type Branch struct {
	Name      string `json:"name"`
	CommitSHA string `json:"commitSha"`
	Protected bool   `json:"protected"`
}

func (l *BranchList) Headers() []string {
	return []string{"Branch", "Commit", "Protected"}
}

func (l *BranchList) Rows() [][]string {
	rows := make([][]string, 0, len(l.Branches))
	for _, b := range l.Branches {
		rows = append(rows, []string{b.Name, truncateMirrorText(b.CommitSHA, 10), strconv.FormatBool(b.Protected)})
	}
	return rows
}

func (l *BranchList) EmptyMessage() string {
	return "No branches found."
}

func truncateMirrorText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
