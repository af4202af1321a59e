package models

// SyncTarget identifies one remote document tree to mirror. Targets are
// defined at startup and never mutated.
type SyncTarget struct {
	Name       string `yaml:"name" json:"name"`
	Repo       string `yaml:"repo" json:"repo"`
	Branch     string `yaml:"branch" json:"branch"`
	SourcePath string `yaml:"source_path" json:"source_path"`
	DestPath   string `yaml:"dest_path" json:"dest_path"`
}

// SelectedFile is a manifest entry that survived filtering: a plain file
// under the target's source subtree with an allowed extension.
type SelectedFile struct {
	Path    string `json:"path"`     // path as it appears in the manifest
	RelPath string `json:"rel_path"` // path with the source subtree prefix stripped
	RawURL  string `json:"raw_url"`
}

// Finding is one output of the threat scanner: a category plus the literal
// text that triggered it.
type Finding struct {
	Type  string `json:"type"`
	Match string `json:"match"`
}

// FlaggedFile associates a logical file identifier (target name + relative
// path) with its non-empty findings.
type FlaggedFile struct {
	File     string    `json:"file"`
	Findings []Finding `json:"findings"`
}

// TargetStatus tags the outcome of processing one sync target.
type TargetStatus string

const (
	TargetOK      TargetStatus = "ok"
	TargetSkipped TargetStatus = "skipped"
)

// TargetResult records how one target fared during a run. A skipped target
// carries the error that caused the skip; other targets are unaffected.
type TargetResult struct {
	Target    string
	Status    TargetStatus
	Succeeded int
	Attempted int
	Err       error
}
