package diff

import (
	"github.com/dl-alexandre/ghmirror/internal/sync/content"
	"github.com/dl-alexandre/ghmirror/internal/sync/scanner"
)

// Compute classifies every path of both trees. Skip, Create and Update actions come
// first in path order, followed by every Delete in path order.
func Compute(remote *scanner.RemoteIndex, local *scanner.LocalIndex) Plan {
	if remote == nil {
		remote = &scanner.RemoteIndex{Files: scanner.PathIndex[scanner.RemoteEntry]{}, Dirs: scanner.NewDirectorySet()}
	}
	if local == nil {
		local = scanner.NewLocalIndex()
	}

	plan := Plan{
		Actions:    make([]Action, 0, len(remote.Files)+len(local.Files)),
		LocalDirs:  local.Dirs,
		RemoteDirs: remote.Dirs,
	}

	for _, p := range remote.Files.Paths() {
		remoteEntry := remote.Files[p]
		localEntry, ok := local.Files[p]
		switch {
		case !ok:
			plan.Actions = append(plan.Actions, Action{Kind: ActionCreate, Path: p, Content: remoteEntry.Content})
			plan.Counts.Created++
		case content.Equal(remoteEntry.Content, localEntry.Content):
			plan.Actions = append(plan.Actions, Action{Kind: ActionSkip, Path: p})
			plan.Counts.Skipped++
		default:
			plan.Actions = append(plan.Actions, Action{Kind: ActionUpdate, Path: p, Content: remoteEntry.Content})
			plan.Counts.Updated++
		}
	}

	for _, p := range local.Files.Paths() {
		if _, ok := remote.Files[p]; ok {
			continue
		}
		plan.Actions = append(plan.Actions, Action{Kind: ActionDelete, Path: p})
		plan.Counts.Deleted++
	}

	return plan
}
