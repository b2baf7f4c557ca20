package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

const service = "trialflow"

const usage = `usage: trialflow <command> [flags]

commands:
  flows                      list catalog flows
  validate [flow...]         validate flow declarations (all when none given)
  plan <flow>                print the compiled definition (-o yaml|json, -archived <hash>)
  run <flow>                 launch a flow (-input k=v, -idempotency-key, -watch)
  status <execution-id>      show the ledger record and node phases
  watch <execution-id>       refresh until the execution finishes
  cancel <execution-id>      terminate a running execution
  audit <execution-id>       export the verified audit trail as NDJSON
  serve                      run the HTTP API
  migrate                    apply ledger migrations
`

// exitError carries the process exit code of a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// configError marks invalid flags, arguments or environment.
func configError(err error) error {
	return &exitError{code: 2, err: err}
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, logger); err != nil {
		code := 1
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			code = exitErr.code
		}
		logger.Error("command failed", "error", err)
		os.Exit(code)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer, logger *slog.Logger) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, usage)
		return configError(errors.New("command is required"))
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "flows":
		return cmdFlows(stdout)
	case "validate":
		return cmdValidate(rest, stdout)
	case "plan":
		return cmdPlan(ctx, rest, stdout)
	case "run":
		return cmdRun(ctx, rest, stdout, logger)
	case "status":
		return cmdStatus(ctx, rest, stdout, logger)
	case "watch":
		return cmdWatch(ctx, rest, stdout, logger)
	case "cancel":
		return cmdCancel(ctx, rest, stdout, logger)
	case "audit":
		return cmdAudit(ctx, rest, stdout, logger)
	case "serve":
		return cmdServe(ctx, rest, logger)
	case "migrate":
		return cmdMigrate(ctx, logger)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stdout, usage)
		return configError(fmt.Errorf("unknown command %q", cmd))
	}
}
