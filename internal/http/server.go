package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/esxr/bob/internal/log"
	"github.com/esxr/bob/pkg/service"
	"github.com/esxr/bob/pkg/storage"
)

func StartServer(port string, store storage.Store) error {
	svc := service.NewRunService(store, log.GetLogger())
	http.HandleFunc("/health", HealthHandler)
	http.HandleFunc("/runs", RunsHandler(svc))
	http.HandleFunc("/runs/", RunLogHandler(svc))

	log.GetLogger().Infof("Starting bob server on :%s", port)
	return http.ListenAndServe(":"+port, nil)
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "bob server is running")
}

func RunsHandler(svc *service.RunService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			listRunsHTTP(w, r, svc)
		case http.MethodPost:
			createRunHTTP(w, r, svc)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func createRunHTTP(w http.ResponseWriter, r *http.Request, svc *service.RunService) {
	goal := r.FormValue("goal")
	if goal == "" {
		log.GetLogger().Error("Missing 'goal' parameter in POST /runs")
		http.Error(w, "Missing 'goal' parameter", http.StatusBadRequest)
		return
	}
	id, err := svc.CreateRun(goal)
	if err != nil {
		log.GetLogger().Errorf("Failed to create run: %v", err)
		http.Error(w, fmt.Sprintf("Failed to create run: %v", err), http.StatusInternalServerError)
		return
	}
	fmt.Fprintf(w, "Created run for goal '%s' with ID %d\n", goal, id)
}

func listRunsHTTP(w http.ResponseWriter, r *http.Request, svc *service.RunService) {
	_ = r
	runs, err := svc.ListRuns()
	if err != nil {
		log.GetLogger().Errorf("Failed to list runs: %v", err)
		http.Error(w, fmt.Sprintf("Failed to list runs: %v", err), http.StatusInternalServerError)
		return
	}
	if len(runs) == 0 {
		fmt.Fprintf(w, "No runs found.\n")
		return
	}
	for _, run := range runs {
		fmt.Fprintf(w, "- ID: %d, Goal: %s, Status: %s, Cycles: %d, Created: %s\n",
			run.ID, run.Goal, run.Status, run.Cycles, run.CreatedAt.Format(time.RFC3339))
	}
}

// RunLogHandler serves GET /runs/{id}/log with the recorded cycle logs.
func RunLogHandler(svc *service.RunService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 3 || parts[2] != "log" {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			http.Error(w, "Invalid run ID", http.StatusBadRequest)
			return
		}
		logs, err := svc.GetCycleLogs(id)
		if err != nil {
			log.GetLogger().Errorf("Failed to get cycle logs for run %d: %v", id, err)
			http.Error(w, fmt.Sprintf("Failed to get cycle logs: %v", err), http.StatusInternalServerError)
			return
		}
		if len(logs) == 0 {
			fmt.Fprintf(w, "No log entries for run %d.\n", id)
			return
		}
		for _, entry := range logs {
			fmt.Fprintf(w, "- Cycle %d [%s]: %s\n", entry.Cycle, entry.Phase, entry.Message)
		}
	}
}
