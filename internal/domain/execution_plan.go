package domain

type NodeKind string

const (
	NodeJob    NodeKind = "job"
	NodeExport NodeKind = "export"
)

// ExecutionPlan is the compiled, deterministic form of a Workflow submitted to
// the orchestration platform.
type ExecutionPlan struct {
	Workflow    string
	Description string
	SpecHash    string
	Params      []Param
	Nodes       []PlanNode
	Edges       []PlanEdge
	Outputs     []PlanOutput
}

// PlanNode is one job or export step. Nodes sharing a Stage have no
// dependencies between them.
type PlanNode struct {
	ID       string
	Name     string
	Kind     NodeKind
	Stage    int
	Upstream []string
	Job      *JobSpec
	Export   *ExportSpec
}

type PlanEdge struct {
	From string
	To   string
}

type PlanOutput struct {
	Name   string
	Node   string
	Output string
}

// Node returns the plan node with the given id.
func (p ExecutionPlan) Node(id string) (PlanNode, bool) {
	for _, n := range p.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return PlanNode{}, false
}

// Stages returns node ids grouped by stage.
func (p ExecutionPlan) Stages() [][]string {
	var out [][]string
	for _, n := range p.Nodes {
		for len(out) <= n.Stage {
			out = append(out, nil)
		}
		out[n.Stage] = append(out[n.Stage], n.ID)
	}
	return out
}
