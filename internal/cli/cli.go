package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	internal_http "github.com/esxr/bob/internal/http"
	"github.com/esxr/bob/internal/log"
	"github.com/esxr/bob/internal/planner"
	"github.com/esxr/bob/internal/runner"
	internal_storage "github.com/esxr/bob/internal/storage"
	"github.com/esxr/bob/pkg/controller"
	"github.com/esxr/bob/pkg/graph"
	"github.com/esxr/bob/pkg/service"
	"github.com/esxr/bob/pkg/storage"
	"github.com/spf13/cobra"
)

func SetupCLI(rootCmd *cobra.Command) {
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a plan file's task graph",
		Run: func(cmd *cobra.Command, args []string) {
			planPath, err := cmd.Flags().GetString("plan")
			if err != nil || planPath == "" {
				log.GetLogger().Errorf("Error retrieving plan flag: %v", err)
				os.Exit(1)
			}
			validatePlan(planPath)
		},
	}
	validateCmd.Flags().String("plan", "", "Path to the YAML plan file")

	layersCmd := &cobra.Command{
		Use:   "layers",
		Short: "Print a plan's execution layers (dry run)",
		Run: func(cmd *cobra.Command, args []string) {
			planPath, err := cmd.Flags().GetString("plan")
			if err != nil || planPath == "" {
				log.GetLogger().Errorf("Error retrieving plan flag: %v", err)
				os.Exit(1)
			}
			printLayers(planPath)
		},
	}
	layersCmd.Flags().String("plan", "", "Path to the YAML plan file")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a plan file's task graph",
		Run: func(cmd *cobra.Command, args []string) {
			planPath, _ := cmd.Flags().GetString("plan")
			goal, _ := cmd.Flags().GetString("goal")
			dbConnStr, _ := cmd.Flags().GetString("db")
			maxCycles, _ := cmd.Flags().GetInt("max-cycles")
			if planPath == "" {
				fmt.Fprintln(os.Stderr, "Error: --plan is required")
				os.Exit(1)
			}
			runPlan(planPath, goal, dbConnStr, maxCycles)
		},
	}
	runCmd.Flags().String("plan", "", "Path to the YAML plan file")
	runCmd.Flags().String("goal", "", "Goal description recorded with the run")
	runCmd.Flags().Int("max-cycles", 0, "Maximum plan/execute cycles (default 3)")

	createCmd := &cobra.Command{
		Use:   "create [goal=...]",
		Short: "Create a new run record (CLI)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			dbConnStr, err := cmd.Flags().GetString("db")
			if err != nil {
				log.GetLogger().Errorf("Error retrieving db flag: %v", err)
				os.Exit(1)
			}
			goal, ok := argValue(args[0])
			if !ok {
				fmt.Println("Error: expected goal=<text>")
				os.Exit(1)
			}
			store := initStore(dbConnStr)
			defer store.Close()
			svc := service.NewRunService(store, log.GetLogger())
			createRun(svc, goal)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all recorded runs (CLI)",
		Run: func(cmd *cobra.Command, args []string) {
			dbConnStr, err := cmd.Flags().GetString("db")
			if err != nil {
				log.GetLogger().Errorf("Error retrieving db flag: %v", err)
				os.Exit(1)
			}
			store := initStore(dbConnStr)
			defer store.Close()
			svc := service.NewRunService(store, log.GetLogger())
			listRuns(svc)
		},
	}

	updateRunStatusCmd := &cobra.Command{
		Use:   "update",
		Short: "Update a run's status",
		Run: func(cmd *cobra.Command, args []string) {
			dbConnStr, err := cmd.Flags().GetString("db")
			if err != nil {
				log.GetLogger().Errorf("Error retrieving db flag: %v", err)
				os.Exit(1)
			}
			if len(args) != 2 {
				log.GetLogger().Errorf("Wrong number of args, expected 2, got %v", len(args))
				fmt.Println("Wrong number of arguments, expected 2")
				os.Exit(1)
			}
			idArg, ok := argValue(args[0])
			if !ok {
				fmt.Println("Error: expected id=<number>")
				os.Exit(1)
			}
			id, err := strconv.Atoi(idArg)
			if err != nil {
				log.GetLogger().Errorf("Error parsing id as number: %v", err)
				fmt.Printf("Error parsing id as number: %v", err)
				os.Exit(1)
			}
			status, ok := argValue(args[1])
			if !ok {
				fmt.Println("Error: expected status=<status>")
				os.Exit(1)
			}
			if id == 0 {
				fmt.Println("Error: id and status are required")
				os.Exit(1)
			}
			store := initStore(dbConnStr)
			defer store.Close()
			svc := service.NewRunService(store, log.GetLogger())
			updateRunStatus(svc, int64(id), status)
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the run-history HTTP server",
		Run: func(cmd *cobra.Command, args []string) {
			dbConnStr, err := cmd.Flags().GetString("db")
			if err != nil {
				log.GetLogger().Errorf("Error retrieving db flag: %v", err)
				os.Exit(1)
			}
			port, _ := cmd.Flags().GetString("port")
			var store storage.Store
			if dbConnStr != "" {
				store = initStore(dbConnStr)
			} else {
				store = storage.NewMockStore()
			}
			defer store.Close()
			if err := internal_http.StartServer(port, store); err != nil {
				log.GetLogger().Errorf("Server stopped: %v", err)
				os.Exit(1)
			}
		},
	}
	serveCmd.Flags().String("port", "8080", "Port to listen on")

	rootCmd.AddCommand(validateCmd, layersCmd, runCmd, createCmd, listCmd, updateRunStatusCmd, serveCmd)
}

// argValue extracts the value of a key=value command argument.
func argValue(arg string) (string, bool) {
	parts := strings.SplitN(arg, "=", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func validatePlan(planPath string) {
	p := loadPlan(planPath)
	g := graph.New(p.Tasks())
	result := g.Validate()
	if result.Valid {
		fmt.Fprintf(os.Stdout, "Plan is valid: %d task(s)\n", g.Len())
		return
	}
	fmt.Fprintf(os.Stderr, "Plan is invalid:\n")
	for _, msg := range result.Errors {
		fmt.Fprintf(os.Stderr, "- %s\n", msg)
	}
	os.Exit(1)
}

func printLayers(planPath string) {
	p := loadPlan(planPath)
	g := graph.New(p.Tasks())
	if result := g.Validate(); !result.Valid {
		fmt.Fprintf(os.Stderr, "Error: plan is invalid: %s\n", strings.Join(result.Errors, "; "))
		os.Exit(1)
	}
	layers, err := g.ExecutionLayers()
	if err != nil {
		log.GetLogger().Errorf("Failed to compute layers: %v", err)
		os.Exit(1)
	}
	for i, layer := range layers {
		ids := make([]string, 0, len(layer))
		for _, t := range layer {
			ids = append(ids, t.ID)
		}
		fmt.Fprintf(os.Stdout, "Layer %d: %s\n", i+1, strings.Join(ids, ", "))
	}
}

func runPlan(planPath, goal, dbConnStr string, maxCycles int) {
	logger := log.GetLogger()
	p := loadPlan(planPath)
	if goal == "" {
		goal = fmt.Sprintf("execute plan %s", planPath)
	}

	var store storage.Store
	if dbConnStr != "" {
		store = initStore(dbConnStr)
	} else {
		store = storage.NewMockStore()
	}
	defer store.Close()

	svc := service.NewRunService(store, logger)
	runID, err := svc.CreateRun(goal)
	if err != nil {
		logger.Errorf("Failed to create run: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to create run: %v\n", err)
		os.Exit(1)
	}

	var opts []controller.Option
	if maxCycles > 0 {
		opts = append(opts, controller.WithMaxCycles(maxCycles))
	}
	outcome, err := svc.ExecuteRun(context.Background(), runID, p, runner.NewLocalRunner(logger), opts...)
	if err != nil {
		logger.Errorf("Run failed: %v", err)
		fmt.Fprintf(os.Stderr, "Error: run failed: %v\n", err)
		os.Exit(1)
	}
	if !outcome.Success {
		fmt.Fprintf(os.Stderr, "Run did not succeed (%s) after %d cycle(s)\n", outcome.Reason, outcome.Cycles)
		for _, f := range outcome.FailedTasks {
			fmt.Fprintf(os.Stderr, "- task %s (%s): %s\n", f.ID, f.Action, f.Error)
		}
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "Run %d succeeded in %d cycle(s)\n", runID, outcome.Cycles)
	if outcome.Result != nil {
		fmt.Fprintf(os.Stdout, "Result: %v\n", outcome.Result)
	}
}

func loadPlan(planPath string) *planner.StaticPlanner {
	p, err := planner.Load(planPath)
	if err != nil {
		log.GetLogger().Errorf("Failed to load plan: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to load plan: %v\n", err)
		os.Exit(1)
	}
	return p
}

func createRun(svc *service.RunService, goal string) {
	id, err := svc.CreateRun(goal)
	if err != nil {
		log.GetLogger().Errorf("Failed to create run: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to create run: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "Created run for goal '%s' with ID %d\n", goal, id)
}

func updateRunStatus(svc *service.RunService, id int64, status string) {
	run, err := svc.GetRun(id)
	if err != nil {
		log.GetLogger().Errorf("Failed to fetch run: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to fetch run: %v\n", err)
		os.Exit(1)
	}
	err = svc.UpdateRunStatus(id, status, run.Cycles)
	if err != nil {
		log.GetLogger().Errorf("Failed to update run status: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to update run status: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "Updated the status of the run with ID %d to '%s'\n", id, status)
}

func listRuns(svc *service.RunService) {
	runs, err := svc.ListRuns()
	if err != nil {
		log.GetLogger().Errorf("Failed to list runs: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to list runs: %v\n", err)
		os.Exit(1)
	}
	if len(runs) == 0 {
		fmt.Fprintf(os.Stdout, "No runs found.\n")
		return
	}
	fmt.Fprintf(os.Stdout, "Runs:\n")
	for _, r := range runs {
		fmt.Fprintf(os.Stdout, "- ID: %d, Goal: %s, Status: %s, Cycles: %d, Created: %s\n",
			r.ID, r.Goal, r.Status, r.Cycles, r.CreatedAt.Format(time.RFC3339))
	}
}

func initStore(dbConnStr string) *internal_storage.PostgresStore {
	store, err := internal_storage.NewPostgresStore(dbConnStr)
	if err != nil {
		log.GetLogger().Errorf("Failed to initialize store: %v", err)
		os.Exit(1)
	}
	return store
}
