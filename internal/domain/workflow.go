package domain

import (
	"fmt"
	"strings"
	"unicode"
)

// Workflow is an ordered composition of job declarations. Declaration order is
// significant: a job may only bind outputs of jobs declared before it.
type Workflow struct {
	Name        string
	Description string
	Params      []Param
	Jobs        []JobSpec
	Exports     []ExportSpec
	Outputs     []WorkflowOutput
}

// Param is a workflow-level input supplied at launch time.
type Param struct {
	Name string
	Type ValueType
}

// WorkflowOutput exposes a job output as a workflow result.
type WorkflowOutput struct {
	Name     string
	Artifact ArtifactRef
}

// JobSpec declares one remote job. All execution parameters are passed through
// to the job-execution platform unchanged.
type JobSpec struct {
	Name    string
	Command string
	Inputs  []Input
	Outputs []Output

	EnvironmentName       string
	EnvironmentRevisionID string
	HardwareTier          string
	MainGitRepoRef        *GitRef
	DatasetSnapshots      []DatasetSnapshot
	ExternalDataVolumes   []ExternalDataVolume
	VolumeSizeGiB         int
	DFSRepoCommitID       string

	// UseProjectDefaultsForOmitted lets the platform fill unset parameters from
	// the project configuration.
	UseProjectDefaultsForOmitted bool
	Cache                        CachePolicy
}

type Input struct {
	Name  string
	Type  ValueType
	Value Value
}

type Output struct {
	Name       string
	Type       ValueType
	Filename   string
	Collection *ArtifactCollection
}

type GitRefType string

const (
	GitRefCommitID GitRefType = "commitId"
	GitRefBranches GitRefType = "branches"
	GitRefTags     GitRefType = "tags"
	GitRefRef      GitRefType = "ref"
	GitRefHead     GitRefType = "head"
)

type GitRef struct {
	Type  GitRefType
	Value string
}

func (t GitRefType) Valid() bool {
	switch t {
	case GitRefCommitID, GitRefBranches, GitRefTags, GitRefRef, GitRefHead:
		return true
	default:
		return false
	}
}

type DatasetSnapshot struct {
	DatasetID string
	Version   int
}

type ExternalDataVolume struct {
	ID string
}

type CachePolicy struct {
	Enabled bool
	Version string
}

// ExportSpec is a terminal step that copies every file of the targeted
// collections into an external dataset.
type ExportSpec struct {
	Name                         string
	Targets                      []ExportTarget
	EnvironmentName              string
	HardwareTier                 string
	UseProjectDefaultsForOmitted bool
}

type ExportTarget struct {
	Collection string
	DatasetID  string
}

// JobIndex returns the declaration index of the named job, or -1.
func (w Workflow) JobIndex(name string) int {
	for i, job := range w.Jobs {
		if job.Name == name {
			return i
		}
	}
	return -1
}

// Param returns the named workflow parameter.
func (w Workflow) Param(name string) (Param, bool) {
	for _, p := range w.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Output returns the named output of a job.
func (j JobSpec) Output(name string) (Output, bool) {
	for _, out := range j.Outputs {
		if out.Name == name {
			return out, true
		}
	}
	return Output{}, false
}

// Collections returns the artifact collections referenced by job outputs in
// first-seen order.
func (w Workflow) Collections() []ArtifactCollection {
	seen := map[string]struct{}{}
	out := make([]ArtifactCollection, 0)
	for _, job := range w.Jobs {
		for _, o := range job.Outputs {
			if o.Collection == nil {
				continue
			}
			if _, ok := seen[o.Collection.Name]; ok {
				continue
			}
			seen[o.Collection.Name] = struct{}{}
			out = append(out, *o.Collection)
		}
	}
	return out
}

// Producers returns the names of jobs that tag at least one output into the
// named collection, in declaration order.
func (w Workflow) Producers(collection string) []string {
	out := make([]string, 0)
	for _, job := range w.Jobs {
		for _, o := range job.Outputs {
			if o.Collection != nil && o.Collection.Name == collection {
				out = append(out, job.Name)
				break
			}
		}
	}
	return out
}

// Upstream returns the distinct jobs whose outputs the job binds, in binding order.
func (j JobSpec) Upstream() []string {
	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, in := range j.Inputs {
		if in.Value.Kind != ValueArtifact {
			continue
		}
		name := in.Value.Artifact.Job
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// NodeID derives the platform node identifier from a declaration name:
// lower case, runs of non-alphanumerics collapsed to a single dash.
func NodeID(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.TrimSpace(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			dash = false
			continue
		}
		if b.Len() > 0 && !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func (r ArtifactRef) String() string {
	return fmt.Sprintf("%s.%s", r.Job, r.Output)
}
