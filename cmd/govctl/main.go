// Package main provides the governance operator CLI.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	governancedcmd "github.com/louisbranch/alphasignal/internal/cmd/governanced"
	"github.com/louisbranch/alphasignal/internal/governance/domain/drift"
	"github.com/louisbranch/alphasignal/internal/governance/domain/model"
	"github.com/louisbranch/alphasignal/internal/governance/guard"
	"github.com/louisbranch/alphasignal/internal/governance/readiness"
	"github.com/louisbranch/alphasignal/internal/governance/rollback"
	"github.com/louisbranch/alphasignal/internal/governance/storage"
)

const usage = `usage: govctl <command> [flags]

commands:
  submit-candidate  register a trainer candidate from a metrics JSON file
  promote           run the promotion workflow for a candidate
  reject            permanently reject a model version
  rollback          revert a horizon to its previous model or rules-only
  get-active        show the live model for a horizon
  check-safety      score the calibration guard for a run
  activate          guard and activate a calibration run's map
  deactivate        revert a window to raw confidence pass-through
  gates             refresh and print the readiness gates
  audit             list governance audit events
  alert-open        open an operational alert (testing/tooling)
  alert-close       close an operational alert
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, args []string) error {
	fs := flag.NewFlagSet("govctl "+command, flag.ExitOnError)
	dbPath := fs.String("db-path", defaultDBPath(), "path to the governance sqlite database")

	var handler func(ctx context.Context, services *governancedcmd.Services) error
	switch command {
	case "submit-candidate":
		horizon := fs.String("horizon", "", "decision horizon")
		dataset := fs.String("dataset-version", "", "training dataset version")
		metricsPath := fs.String("metrics", "", "path to a training metrics JSON file")
		handler = func(ctx context.Context, services *governancedcmd.Services) error {
			metrics, err := loadMetrics(*metricsPath)
			if err != nil {
				return err
			}
			version, err := services.Promotion.SubmitCandidate(ctx, model.NewCandidateInput{
				Horizon:        *horizon,
				DatasetVersion: *dataset,
				Metrics:        metrics,
			})
			if err != nil {
				return err
			}
			return printJSON(version)
		}
	case "promote":
		id := fs.String("id", "", "model version id")
		driftLabel := fs.String("drift", "LOW", "current drift level (LOW|MODERATE|HIGH|CRITICAL)")
		handler = func(ctx context.Context, services *governancedcmd.Services) error {
			level, err := drift.FromLabel(*driftLabel)
			if err != nil {
				return err
			}
			version, err := services.Promotion.Promote(ctx, *id, level)
			if err != nil {
				return err
			}
			return printJSON(version)
		}
	case "reject":
		id := fs.String("id", "", "model version id")
		reason := fs.String("reason", "", "rejection reason")
		handler = func(ctx context.Context, services *governancedcmd.Services) error {
			version, err := services.Registry.Reject(ctx, *id, *reason, "govctl")
			if err != nil {
				return err
			}
			return printJSON(version)
		}
	case "rollback":
		horizon := fs.String("horizon", "", "decision horizon")
		reason := fs.String("reason", "", "rollback reason")
		typeLabel := fs.String("type", string(rollback.TypeToPrevious), "rollback type (TO_PREVIOUS|TO_RULES_ONLY)")
		handler = func(ctx context.Context, services *governancedcmd.Services) error {
			typ, err := rollback.ParseType(*typeLabel)
			if err != nil {
				return err
			}
			result, err := services.Rollback.Rollback(ctx, *horizon, *reason, "govctl", typ)
			if err != nil {
				return err
			}
			return printJSON(result)
		}
	case "get-active":
		horizon := fs.String("horizon", "", "decision horizon")
		handler = func(ctx context.Context, services *governancedcmd.Services) error {
			version, ok, err := services.Registry.GetActive(ctx, *horizon)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("horizon %s runs rules-only\n", *horizon)
				return nil
			}
			return printJSON(version)
		}
	case "check-safety":
		runID := fs.String("run-id", "", "calibration run id")
		mode := fs.String("mode", string(guard.ModeSimulation), "guard mode (SIMULATION|PROD)")
		handler = func(ctx context.Context, services *governancedcmd.Services) error {
			report, err := services.Activation.CheckSafety(ctx, *runID, guard.Mode(*mode))
			if err != nil {
				return err
			}
			return printJSON(report)
		}
	case "activate":
		runID := fs.String("run-id", "", "calibration run id")
		mode := fs.String("mode", string(guard.ModeProd), "guard mode (SIMULATION|PROD)")
		handler = func(ctx context.Context, services *governancedcmd.Services) error {
			report, err := services.Activation.Activate(ctx, *runID, guard.Mode(*mode))
			if err != nil {
				return err
			}
			return printJSON(report)
		}
	case "deactivate":
		window := fs.String("window", "", "calibration window")
		reason := fs.String("reason", "", "deactivation reason")
		handler = func(ctx context.Context, services *governancedcmd.Services) error {
			return services.Activation.Deactivate(ctx, *window, *reason, "govctl")
		}
	case "gates":
		inputsPath := fs.String("inputs", "", "path to a readiness inputs JSON file (omit to print stored gates)")
		handler = func(ctx context.Context, services *governancedcmd.Services) error {
			var (
				results []readiness.GateResult
				ready   bool
				err     error
			)
			if strings.TrimSpace(*inputsPath) == "" {
				results, ready, err = services.Readiness.Current(ctx)
			} else {
				var inputs readiness.Inputs
				if err := loadJSON(*inputsPath, &inputs); err != nil {
					return err
				}
				results, ready, err = services.Readiness.Refresh(ctx, inputs)
			}
			if err != nil {
				return err
			}
			return printJSON(struct {
				ReadyForProd bool
				Gates        []readiness.GateResult
			}{ready, results})
		}
	case "audit":
		eventType := fs.String("type", "", "filter by event type")
		limit := fs.Int("limit", 50, "max events to print")
		handler = func(ctx context.Context, services *governancedcmd.Services) error {
			events, err := services.Store.ListAuditEvents(ctx, *eventType, *limit)
			if err != nil {
				return err
			}
			return printJSON(events)
		}
	case "alert-open":
		id := fs.String("id", "", "alert id")
		window := fs.String("window", "", "affected window (empty = system-wide)")
		severity := fs.String("severity", "HIGH", "alert severity (LOW|MEDIUM|HIGH|CRITICAL)")
		message := fs.String("message", "", "alert message")
		handler = func(ctx context.Context, services *governancedcmd.Services) error {
			return services.Store.PutAlert(ctx, storage.Alert{
				ID:       *id,
				Window:   *window,
				Severity: *severity,
				Message:  *message,
				OpenedAt: time.Now().UTC(),
			})
		}
	case "alert-close":
		id := fs.String("id", "", "alert id")
		handler = func(ctx context.Context, services *governancedcmd.Services) error {
			return services.Store.CloseAlert(ctx, *id, time.Now().UTC())
		}
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	services, err := governancedcmd.Wire(governancedcmd.Config{DBPath: *dbPath}, logger)
	if err != nil {
		return err
	}
	defer func() { _ = services.Store.Close() }()

	return handler(ctx, services)
}

func defaultDBPath() string {
	if path := strings.TrimSpace(os.Getenv("ALPHASIGNAL_GOVERNANCE_DB_PATH")); path != "" {
		return path
	}
	return "data/governance.db"
}

func loadMetrics(path string) (model.TrainingMetrics, error) {
	var metrics model.TrainingMetrics
	if err := loadJSON(path, &metrics); err != nil {
		return model.TrainingMetrics{}, err
	}
	return metrics, nil
}

func loadJSON(path string, target any) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("input file is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func printJSON(value any) error {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
