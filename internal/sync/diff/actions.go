package diff

import "github.com/dl-alexandre/ghmirror/internal/sync/scanner"

type ActionKind string

const (
	ActionSkip   ActionKind = "skip"
	ActionUpdate ActionKind = "update"
	ActionCreate ActionKind = "create"
	ActionDelete ActionKind = "delete"
)

// Action is one planned change. Content holds the raw remote bytes for Create and Update.
type Action struct {
	Kind    ActionKind
	Path    string
	Content []byte
}

func (a Action) Writes() bool {
	return a.Kind == ActionCreate || a.Kind == ActionUpdate
}

type Counts struct {
	Skipped int
	Updated int
	Created int
	Deleted int
}

func (c Counts) Pending() int {
	return c.Updated + c.Created + c.Deleted
}

// Plan is a snapshot of intent. It is not re-validated against disk before it is applied.
type Plan struct {
	Actions    []Action
	Counts     Counts
	LocalDirs  *scanner.DirectorySet
	RemoteDirs *scanner.DirectorySet
}

func (p Plan) InSync() bool {
	return p.Counts.Pending() == 0
}

func (p Plan) Filter(kinds ...ActionKind) []Action {
	var out []Action
	for _, a := range p.Actions {
		for _, k := range kinds {
			if a.Kind == k {
				out = append(out, a)
				break
			}
		}
	}
	return out
}
