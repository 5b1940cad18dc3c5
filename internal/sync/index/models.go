package index

// Target is a saved repository branch to local directory mapping.
type Target struct {
	Name            string
	Repository      string
	Branch          string
	LocalDir        string
	SubDir          string
	Source          string
	ExcludePatterns []string
	LastCommitSHA   string
	LastSyncTime    int64
	CreatedAt       int64
}

// Run is one recorded mirror of a target.
type Run struct {
	ID          int64
	TargetName  string
	StartedAt   int64
	FinishedAt  int64
	CommitSHA   string
	DryRun      bool
	Skipped     int
	Updated     int
	Created     int
	Deleted     int
	Failed      int
	DirsRemoved int
	Error       string
}
