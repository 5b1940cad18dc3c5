package utils

import "time"

// GitHub endpoints
const (
	GitHubAPIBase    = "https://api.github.com"
	GitHubCloneBase  = "https://github.com"
	GitHubAPIVersion = "2022-11-28"
	GitHubMediaType  = "application/vnd.github+json"
	GitHubTokenEnv   = "GITHUB_TOKEN"
	// GitHub accepts any username with a token over smart HTTP
	GitHubTokenUser = "x-access-token"
)

// Snapshot sources
const (
	SourceZipball = "zipball"
	SourceGit     = "git"
)

// Retry configuration
const (
	DefaultMaxRetries   = 3
	DefaultRetryDelayMs = 1000
	MaxRetryDelayMs     = 32000
)

// DefaultConcurrency bounds concurrent writes and deletes during apply
const DefaultConcurrency = 8

// DefaultRequestTimeout bounds a single GitHub request, archive download included
const DefaultRequestTimeout = 5 * time.Minute

// BranchPageSize is the per_page value used when listing branches
const BranchPageSize = 100

// Schema version
const SchemaVersion = "1.0"

// KeyringService is the keyring service name tokens are stored under
const KeyringService = "ghmirror"
