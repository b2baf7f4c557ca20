package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/animus-labs/trialflow/internal/domain"
	"github.com/animus-labs/trialflow/internal/execution/plan"
	"github.com/animus-labs/trialflow/internal/execution/specvalidator"
	"github.com/animus-labs/trialflow/internal/flows"
	"github.com/animus-labs/trialflow/internal/platform/env"
	"github.com/animus-labs/trialflow/internal/platform/objectstore"
	"github.com/animus-labs/trialflow/internal/platform/requestid"
	"github.com/animus-labs/trialflow/internal/service/launches"
)

// inputFlags collects repeated -input name=value flags.
type inputFlags map[string]string

func (f inputFlags) String() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+f[k])
	}
	return strings.Join(parts, ",")
}

func (f inputFlags) Set(raw string) error {
	name, value, ok := strings.Cut(raw, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return fmt.Errorf("input must be name=value (got %q)", raw)
	}
	if _, dup := f[name]; dup {
		return fmt.Errorf("input %q given twice", name)
	}
	f[name] = value
	return nil
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return configError(fmt.Errorf("%s: %w", fs.Name(), err))
	}
	return nil
}

func settingsFlag(fs *flag.FlagSet) *string {
	return fs.String("settings", env.String("TRIALFLOW_SETTINGS", ""), "YAML file overriding flow settings")
}

func loadSettings(path string) (flows.Settings, error) {
	settings, err := flows.LoadSettings(path)
	if err != nil {
		return flows.Settings{}, configError(err)
	}
	return settings, nil
}

func oneArg(fs *flag.FlagSet, what string) (string, error) {
	if fs.NArg() != 1 {
		return "", configError(fmt.Errorf("%s: exactly one %s is required", fs.Name(), what))
	}
	return strings.TrimSpace(fs.Arg(0)), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func cmdFlows(stdout io.Writer) error {
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDESCRIPTION")
	for _, f := range catalogView() {
		fmt.Fprintf(tw, "%s\t%s\n", f.Name, f.Description)
	}
	return tw.Flush()
}

func cmdValidate(args []string, stdout io.Writer) error {
	fs := newFlagSet("validate")
	settingsPath := settingsFlag(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	settings, err := loadSettings(*settingsPath)
	if err != nil {
		return err
	}
	names := fs.Args()
	if len(names) == 0 {
		for _, def := range flows.Catalog() {
			names = append(names, def.Name)
		}
	}

	failed := 0
	for _, name := range names {
		_, _, p, err := launches.CompileFlow(name, settings)
		if err == nil {
			fmt.Fprintf(stdout, "ok\t%s\t%s\n", name, p.SpecHash)
			continue
		}
		failed++
		var verr *specvalidator.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintf(stdout, "invalid\t%s\n", name)
			for _, issue := range verr.Issues {
				fmt.Fprintf(stdout, "  - %s\n", issue)
			}
			continue
		}
		fmt.Fprintf(stdout, "error\t%s\t%v\n", name, err)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d flows failed validation", failed, len(names))
	}
	return nil
}

func cmdPlan(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("plan")
	settingsPath := settingsFlag(fs)
	format := fs.String("o", "yaml", "output format: yaml or json")
	archived := fs.String("archived", "", "print the archived definition with this spec hash instead of compiling")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	name, err := oneArg(fs, "flow")
	if err != nil {
		return err
	}
	if f := strings.ToLower(*format); f != "yaml" && f != "json" {
		return configError(fmt.Errorf("plan: unsupported format %q", *format))
	}
	settings, err := loadSettings(*settingsPath)
	if err != nil {
		return err
	}
	_, _, p, err := launches.CompileFlow(name, settings)
	if err != nil {
		return err
	}
	if hash := strings.TrimSpace(*archived); hash != "" {
		if p, err = loadArchivedPlan(ctx, p.Workflow, hash); err != nil {
			return err
		}
	}

	var raw []byte
	switch strings.ToLower(*format) {
	case "yaml":
		raw, err = plan.RenderYAML(p)
	case "json":
		raw, err = plan.MarshalDefinition(p)
		raw = append(raw, '\n')
	}
	if err != nil {
		return err
	}
	_, err = stdout.Write(raw)
	return err
}

// loadArchivedPlan reads a registered workflow version back from the
// definition archive.
func loadArchivedPlan(ctx context.Context, workflow, specHash string) (domain.ExecutionPlan, error) {
	cfg, err := objectstore.ConfigFromEnv()
	if err != nil {
		return domain.ExecutionPlan{}, configError(fmt.Errorf("object store config: %w", err))
	}
	if !cfg.Enabled() {
		return domain.ExecutionPlan{}, configError(errors.New("plan: -archived requires TRIALFLOW_MINIO_ENDPOINT"))
	}
	archive, _, err := openArchive(ctx, cfg)
	if err != nil {
		return domain.ExecutionPlan{}, err
	}
	return archive.Load(ctx, workflow, specHash)
}

func cmdRun(ctx context.Context, args []string, stdout io.Writer, logger *slog.Logger) error {
	fs := newFlagSet("run")
	settingsPath := settingsFlag(fs)
	inputs := inputFlags{}
	fs.Var(inputs, "input", "flow input as name=value (repeatable)")
	key := fs.String("idempotency-key", "", "reuse an earlier launch with the same key")
	watch := fs.Bool("watch", false, "wait for the execution to finish")
	maxWait := fs.Duration("max-wait", 0, "give up watching after this long (0 waits forever)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	name, err := oneArg(fs, "flow")
	if err != nil {
		return err
	}
	settings, err := loadSettings(*settingsPath)
	if err != nil {
		return err
	}

	a, err := openApp(ctx, logger, settings)
	if err != nil {
		return err
	}
	defer a.Close()

	rid, err := requestid.New()
	if err != nil {
		return err
	}
	ctx = requestid.WithContext(ctx, rid)
	res, err := a.svc.Launch(ctx, launches.LaunchRequest{
		Flow:           name,
		Inputs:         inputs,
		IdempotencyKey: *key,
		Actor:          cliActor(),
		RequestID:      rid,
	})
	if err != nil {
		return err
	}
	if !*watch {
		return writeJSON(stdout, executionFromLaunch(res))
	}
	return watchExecution(ctx, a.svc, res.Execution.ID, *maxWait, stdout, logger)
}

func cmdStatus(ctx context.Context, args []string, stdout io.Writer, logger *slog.Logger) error {
	fs := newFlagSet("status")
	refresh := fs.Bool("refresh", false, "pull the latest phases from the platform first")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	id, err := oneArg(fs, "execution id")
	if err != nil {
		return err
	}
	a, err := openApp(ctx, logger, flows.DefaultSettings())
	if err != nil {
		return err
	}
	defer a.Close()

	var st launches.ExecutionStatus
	if *refresh {
		st, err = a.svc.Refresh(ctx, id)
	} else {
		st, err = a.svc.Status(ctx, id)
	}
	if err != nil {
		return err
	}
	return writeJSON(stdout, executionFromStatus(st))
}

func cmdWatch(ctx context.Context, args []string, stdout io.Writer, logger *slog.Logger) error {
	fs := newFlagSet("watch")
	maxWait := fs.Duration("max-wait", 0, "give up after this long (0 waits forever)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	id, err := oneArg(fs, "execution id")
	if err != nil {
		return err
	}
	a, err := openApp(ctx, logger, flows.DefaultSettings())
	if err != nil {
		return err
	}
	defer a.Close()
	return watchExecution(ctx, a.svc, id, *maxWait, stdout, logger)
}

func watchExecution(ctx context.Context, svc *launches.Service, id string, maxWait time.Duration, stdout io.Writer, logger *slog.Logger) error {
	st, err := svc.Watch(ctx, id, launches.WatchOptions{
		InitialInterval: 5 * time.Second,
		MaxInterval:     time.Minute,
		MaxElapsed:      maxWait,
		OnChange: func(st launches.ExecutionStatus) {
			logger.Info("execution progress", "execution_id", st.Execution.ID, "phase", string(st.Execution.Phase), "nodes", nodeSummary(st))
		},
	})
	if err != nil {
		return err
	}
	if err := writeJSON(stdout, executionFromStatus(st)); err != nil {
		return err
	}
	if st.Execution.Phase.IsFailure() {
		return fmt.Errorf("execution %s finished %s", st.Execution.ID, st.Execution.Phase)
	}
	return nil
}

func nodeSummary(st launches.ExecutionStatus) string {
	parts := make([]string, 0, len(st.Nodes))
	for _, n := range st.Nodes {
		parts = append(parts, n.NodeID+"="+string(n.Phase))
	}
	return strings.Join(parts, " ")
}

func cmdCancel(ctx context.Context, args []string, stdout io.Writer, logger *slog.Logger) error {
	fs := newFlagSet("cancel")
	cause := fs.String("cause", "", "reason recorded with the cancellation")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	id, err := oneArg(fs, "execution id")
	if err != nil {
		return err
	}
	a, err := openApp(ctx, logger, flows.DefaultSettings())
	if err != nil {
		return err
	}
	defer a.Close()

	rid, err := requestid.New()
	if err != nil {
		return err
	}
	rec, err := a.svc.Cancel(requestid.WithContext(ctx, rid), id, *cause, cliActor())
	if err != nil {
		return err
	}
	return writeJSON(stdout, executionFromRecord(rec))
}

func cliActor() string {
	return env.String("TRIALFLOW_ACTOR", env.String("USER", service))
}
