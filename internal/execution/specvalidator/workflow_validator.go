package specvalidator

import (
	"path"
	"sort"
	"strings"

	"github.com/animus-labs/trialflow/internal/domain"
)

// ValidateWorkflow performs strict static validation of a workflow declaration.
func ValidateWorkflow(wf domain.Workflow) error {
	issues := &ValidationError{Workflow: wf.Name}

	if strings.TrimSpace(wf.Name) == "" {
		issues.Add("workflow name is required")
	}
	validateParams(wf, issues)

	if len(wf.Jobs) == 0 {
		issues.Add("workflow must declare at least one job")
		return issues.OrNil()
	}

	jobIndex := make(map[string]int, len(wf.Jobs))
	nodeIDs := make(map[string]string, len(wf.Jobs)+len(wf.Exports))
	collectionKinds := map[string]domain.ArtifactKind{}
	collectionFiles := map[string]string{}

	for i, job := range wf.Jobs {
		name := strings.TrimSpace(job.Name)
		if name == "" {
			issues.Addf("job[%d] name is required", i)
			continue
		}
		if _, exists := jobIndex[name]; exists {
			issues.Addf("duplicate job name %q", name)
		} else {
			claimNodeID(issues, nodeIDs, name)
		}

		if strings.TrimSpace(job.Command) == "" {
			issues.Addf("job[%s] command is required", name)
		}

		validateInputs(wf, job, i, jobIndex, issues)
		validateOutputs(job, collectionKinds, collectionFiles, issues)
		validateExecutionParams(job, issues)

		if _, exists := jobIndex[name]; !exists {
			jobIndex[name] = i
		}
	}

	for i, export := range wf.Exports {
		validateExport(wf, export, i, nodeIDs, issues)
	}
	validateWorkflowOutputs(wf, issues)

	if hasCycle(dependencyGraph(wf)) {
		issues.Add("dependency graph contains a cycle")
	}

	return issues.OrNil()
}

// ValidateLaunchInputs checks that launch inputs bind every workflow parameter
// and nothing else.
func ValidateLaunchInputs(wf domain.Workflow, inputs map[string]string) error {
	issues := &ValidationError{Workflow: wf.Name}
	for _, p := range wf.Params {
		v, ok := inputs[p.Name]
		if !ok {
			issues.Addf("input %q is required", p.Name)
			continue
		}
		if strings.TrimSpace(v) == "" {
			issues.Addf("input %q must not be empty", p.Name)
		}
	}
	unknown := make([]string, 0)
	for k := range inputs {
		if _, ok := wf.Param(k); !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		issues.Addf("unknown input %q", k)
	}
	return issues.OrNil()
}

func validateParams(wf domain.Workflow, issues *ValidationError) {
	seen := make(map[string]struct{}, len(wf.Params))
	for i, p := range wf.Params {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			issues.Addf("param[%d] name is required", i)
			continue
		}
		if _, ok := seen[name]; ok {
			issues.Addf("duplicate param name %q", name)
		}
		seen[name] = struct{}{}
		if !p.Type.Valid() {
			issues.Addf("param[%s] type %q is invalid", name, p.Type.String())
		}
	}
}

func claimNodeID(issues *ValidationError, nodeIDs map[string]string, name string) {
	id := domain.NodeID(name)
	if id == "" {
		issues.Addf("name %q does not yield a node id", name)
		return
	}
	if other, ok := nodeIDs[id]; ok {
		issues.Addf("names %q and %q map to the same node id %q", other, name, id)
		return
	}
	nodeIDs[id] = name
}

func validateInputs(wf domain.Workflow, job domain.JobSpec, index int, declared map[string]int, issues *ValidationError) {
	seen := make(map[string]struct{}, len(job.Inputs))
	for i, in := range job.Inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			issues.Addf("job[%s] input[%d] name is required", job.Name, i)
			continue
		}
		if _, ok := seen[name]; ok {
			issues.Addf("job[%s] duplicate input %q", job.Name, name)
		}
		seen[name] = struct{}{}

		if !in.Type.Valid() {
			issues.Addf("job[%s] input[%s] type %q is invalid", job.Name, name, in.Type.String())
			continue
		}

		switch in.Value.Kind {
		case domain.ValueLiteral:
		case domain.ValueParam:
			p, ok := wf.Param(in.Value.Param)
			if !ok {
				issues.Addf("job[%s] input[%s] references unknown param %q", job.Name, name, in.Value.Param)
				continue
			}
			if !in.Type.Compatible(p.Type) {
				issues.Addf("job[%s] input[%s] type %s does not match param %q type %s", job.Name, name, in.Type.String(), p.Name, p.Type.String())
			}
		case domain.ValueArtifact:
			validateArtifactBinding(wf, job, name, in, index, declared, issues)
		case "":
			issues.Addf("job[%s] input[%s] value is required", job.Name, name)
		default:
			issues.Addf("job[%s] input[%s] binding kind %q is unsupported", job.Name, name, in.Value.Kind)
		}
	}
}

func validateArtifactBinding(wf domain.Workflow, job domain.JobSpec, name string, in domain.Input, index int, declared map[string]int, issues *ValidationError) {
	ref := in.Value.Artifact
	if in.Type.Kind != domain.KindFile {
		issues.Addf("job[%s] input[%s] of type %s cannot bind artifact %s", job.Name, name, in.Type.String(), ref.String())
		return
	}
	upstream, ok := declared[ref.Job]
	if !ok {
		if wf.JobIndex(ref.Job) >= index {
			issues.Addf("job[%s] input[%s] references job %q declared later", job.Name, name, ref.Job)
		} else {
			issues.Addf("job[%s] input[%s] references unknown job %q", job.Name, name, ref.Job)
		}
		return
	}
	out, ok := wf.Jobs[upstream].Output(ref.Output)
	if !ok {
		issues.Addf("job[%s] input[%s] references undeclared output %s", job.Name, name, ref.String())
		return
	}
	if !in.Type.Compatible(out.Type) {
		issues.Addf("job[%s] input[%s] type %s does not match output %s type %s", job.Name, name, in.Type.String(), ref.String(), out.Type.String())
	}
}

func validateOutputs(job domain.JobSpec, kinds map[string]domain.ArtifactKind, files map[string]string, issues *ValidationError) {
	if len(job.Outputs) == 0 {
		issues.Addf("job[%s] must declare at least one output", job.Name)
		return
	}
	seen := make(map[string]struct{}, len(job.Outputs))
	for i, out := range job.Outputs {
		name := strings.TrimSpace(out.Name)
		if name == "" {
			issues.Addf("job[%s] output[%d] name is required", job.Name, i)
			continue
		}
		if _, ok := seen[name]; ok {
			issues.Addf("job[%s] duplicate output %q", job.Name, name)
		}
		seen[name] = struct{}{}

		if out.Type.Kind != domain.KindFile {
			issues.Addf("job[%s] output[%s] must be a file, got %s", job.Name, name, out.Type.String())
		}
		if out.Collection == nil {
			continue
		}

		collection := strings.TrimSpace(out.Collection.Name)
		if collection == "" {
			issues.Addf("job[%s] output[%s] collection name is required", job.Name, name)
			continue
		}
		if !out.Collection.Kind.Valid() {
			issues.Addf("collection %q kind %q is invalid", collection, out.Collection.Kind)
		} else if kind, ok := kinds[collection]; ok && kind != out.Collection.Kind {
			issues.Addf("collection %q declared as both %s and %s", collection, kind, out.Collection.Kind)
		} else {
			kinds[collection] = out.Collection.Kind
		}

		filename := strings.TrimSpace(out.Filename)
		if filename == "" {
			issues.Addf("job[%s] output[%s] in collection %q requires a filename", job.Name, name, collection)
			continue
		}
		if out.Type.Format != "" && strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".") != out.Type.Format {
			issues.Addf("job[%s] output[%s] filename %q does not match type %s", job.Name, name, filename, out.Type.String())
		}
		key := collection + "/" + filename
		if owner, ok := files[key]; ok {
			issues.Addf("file %q in collection %q produced by both %s and %s", filename, collection, owner, job.Name+"."+name)
			continue
		}
		files[key] = job.Name + "." + name
	}
}

func validateExecutionParams(job domain.JobSpec, issues *ValidationError) {
	if ref := job.MainGitRepoRef; ref != nil {
		if !ref.Type.Valid() {
			issues.Addf("job[%s] git ref type %q is invalid", job.Name, ref.Type)
		} else if ref.Type != domain.GitRefHead && strings.TrimSpace(ref.Value) == "" {
			issues.Addf("job[%s] git ref %s requires a value", job.Name, ref.Type)
		}
	}
	for i, snap := range job.DatasetSnapshots {
		if strings.TrimSpace(snap.DatasetID) == "" {
			issues.Addf("job[%s] dataset snapshot[%d] dataset id is required", job.Name, i)
		}
		if snap.Version < 0 {
			issues.Addf("job[%s] dataset snapshot[%d] version must be >= 0", job.Name, i)
		}
	}
	for i, vol := range job.ExternalDataVolumes {
		if strings.TrimSpace(vol.ID) == "" {
			issues.Addf("job[%s] external data volume[%d] id is required", job.Name, i)
		}
	}
	if job.VolumeSizeGiB < 0 {
		issues.Addf("job[%s] volume size must be >= 0", job.Name)
	}
	if job.Cache.Enabled && strings.TrimSpace(job.Cache.Version) == "" {
		issues.Addf("job[%s] cache version is required when caching is enabled", job.Name)
	}

	if job.UseProjectDefaultsForOmitted {
		return
	}
	if strings.TrimSpace(job.EnvironmentName) == "" {
		issues.Addf("job[%s] environment name is required without project defaults", job.Name)
	}
	if strings.TrimSpace(job.EnvironmentRevisionID) == "" {
		issues.Addf("job[%s] environment revision id is required without project defaults", job.Name)
	}
	if strings.TrimSpace(job.HardwareTier) == "" {
		issues.Addf("job[%s] hardware tier is required without project defaults", job.Name)
	}
	if job.MainGitRepoRef == nil {
		issues.Addf("job[%s] git ref is required without project defaults", job.Name)
	}
	if job.VolumeSizeGiB == 0 {
		issues.Addf("job[%s] volume size is required without project defaults", job.Name)
	}
	if strings.TrimSpace(job.DFSRepoCommitID) == "" {
		issues.Addf("job[%s] dfs repo commit id is required without project defaults", job.Name)
	}
}

func validateExport(wf domain.Workflow, export domain.ExportSpec, index int, nodeIDs map[string]string, issues *ValidationError) {
	name := strings.TrimSpace(export.Name)
	if name == "" {
		issues.Addf("export[%d] name is required", index)
	} else {
		claimNodeID(issues, nodeIDs, name)
	}
	if len(export.Targets) == 0 {
		issues.Addf("export[%d] must declare at least one target", index)
	}
	for i, target := range export.Targets {
		collection := strings.TrimSpace(target.Collection)
		if collection == "" {
			issues.Addf("export[%d] target[%d] collection is required", index, i)
		} else if len(wf.Producers(collection)) == 0 {
			issues.Addf("export[%d] target[%d] collection %q has no producing job", index, i, collection)
		}
		if strings.TrimSpace(target.DatasetID) == "" {
			issues.Addf("export[%d] target[%d] dataset id is required", index, i)
		}
	}
	if !export.UseProjectDefaultsForOmitted {
		if strings.TrimSpace(export.EnvironmentName) == "" {
			issues.Addf("export[%d] environment name is required without project defaults", index)
		}
		if strings.TrimSpace(export.HardwareTier) == "" {
			issues.Addf("export[%d] hardware tier is required without project defaults", index)
		}
	}
}

func validateWorkflowOutputs(wf domain.Workflow, issues *ValidationError) {
	seen := make(map[string]struct{}, len(wf.Outputs))
	for i, out := range wf.Outputs {
		name := strings.TrimSpace(out.Name)
		if name == "" {
			issues.Addf("workflow output[%d] name is required", i)
			continue
		}
		if _, ok := seen[name]; ok {
			issues.Addf("duplicate workflow output %q", name)
		}
		seen[name] = struct{}{}
		idx := wf.JobIndex(out.Artifact.Job)
		if idx < 0 {
			issues.Addf("workflow output %q references unknown job %q", name, out.Artifact.Job)
			continue
		}
		if _, ok := wf.Jobs[idx].Output(out.Artifact.Output); !ok {
			issues.Addf("workflow output %q references undeclared output %s", name, out.Artifact.String())
		}
	}
}

// dependencyGraph derives producer -> consumer edges from artifact bindings.
func dependencyGraph(wf domain.Workflow) (map[string][]string, map[string]struct{}) {
	nodes := make(map[string]struct{}, len(wf.Jobs))
	adj := make(map[string][]string, len(wf.Jobs))
	for _, job := range wf.Jobs {
		if strings.TrimSpace(job.Name) == "" {
			continue
		}
		nodes[job.Name] = struct{}{}
	}
	for _, job := range wf.Jobs {
		for _, from := range job.Upstream() {
			if _, ok := nodes[from]; !ok {
				continue
			}
			adj[from] = append(adj[from], job.Name)
		}
	}
	return adj, nodes
}

func hasCycle(adj map[string][]string, nodes map[string]struct{}) bool {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(nodes))
	var visit func(string) bool
	visit = func(node string) bool {
		switch state[node] {
		case visiting:
			return true
		case done:
			return false
		}
		state[node] = visiting
		for _, next := range adj[node] {
			if visit(next) {
				return true
			}
		}
		state[node] = done
		return false
	}

	for node := range nodes {
		if state[node] == unvisited {
			if visit(node) {
				return true
			}
		}
	}
	return false
}
