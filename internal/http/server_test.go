package http_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	internal_http "github.com/esxr/bob/internal/http"
	"github.com/esxr/bob/internal/log"
	"github.com/esxr/bob/pkg/controller"
	"github.com/esxr/bob/pkg/models"
	"github.com/esxr/bob/pkg/scheduler"
	"github.com/esxr/bob/pkg/service"
	"github.com/esxr/bob/pkg/storage"
	"github.com/stretchr/testify/assert"
)

func TestServer(t *testing.T) {
	newServer := func(store storage.Store) (*httptest.Server, *service.RunService) {
		svc := service.NewRunService(store, log.GetLogger())
		mux := http.NewServeMux()
		mux.HandleFunc("/health", internal_http.HealthHandler)
		mux.HandleFunc("/runs", internal_http.RunsHandler(svc))
		mux.HandleFunc("/runs/", internal_http.RunLogHandler(svc))
		return httptest.NewServer(mux), svc
	}

	t.Run("HealthCheck", func(t *testing.T) {
		srv, _ := newServer(storage.NewMockStore())
		defer srv.Close()

		resp, err := srv.Client().Get(srv.URL + "/health")
		assert.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "bob server is running", string(body))
	})

	t.Run("CreateRun", func(t *testing.T) {
		srv, _ := newServer(storage.NewMockStore())
		defer srv.Close()

		resp, err := srv.Client().PostForm(srv.URL+"/runs", url.Values{"goal": {"summarize the logs"}})
		assert.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), "Created run for goal 'summarize the logs' with ID 1")
	})

	t.Run("CreateRunMissingGoal", func(t *testing.T) {
		srv, _ := newServer(storage.NewMockStore())
		defer srv.Close()

		resp, err := srv.Client().PostForm(srv.URL+"/runs", url.Values{})
		assert.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("ListRunsEmpty", func(t *testing.T) {
		srv, _ := newServer(storage.NewMockStore())
		defer srv.Close()

		resp, err := srv.Client().Get(srv.URL + "/runs")
		assert.NoError(t, err)
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), "No runs found.")
	})

	t.Run("ListRuns", func(t *testing.T) {
		store := storage.NewMockStore()
		srv, svc := newServer(store)
		defer srv.Close()

		_, err := svc.CreateRun("first goal")
		assert.NoError(t, err)
		_, err = svc.CreateRun("second goal")
		assert.NoError(t, err)

		resp, err := srv.Client().Get(srv.URL + "/runs")
		assert.NoError(t, err)
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), "first goal")
		assert.Contains(t, string(body), "second goal")
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		srv, _ := newServer(storage.NewMockStore())
		defer srv.Close()

		req, err := http.NewRequest(http.MethodDelete, srv.URL+"/runs", nil)
		assert.NoError(t, err)
		resp, err := srv.Client().Do(req)
		assert.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})

	t.Run("RunLog", func(t *testing.T) {
		store := storage.NewMockStore()
		srv, svc := newServer(store)
		defer srv.Close()

		runID, err := svc.CreateRun("traced goal")
		assert.NoError(t, err)

		planner := controller.PlannerFunc(func(_ context.Context, _ string, _ []models.TaskFailure) (models.Plan, error) {
			return models.Plan{Tasks: []models.TaskSpec{{ID: "only", Action: "do it"}}}, nil
		})
		runner := scheduler.RunnerFunc(func(_ context.Context, task *models.Task, _ map[string]models.TaskResult) (models.TaskResult, error) {
			return "done", nil
		})
		_, err = svc.ExecuteRun(context.Background(), runID, planner, runner)
		assert.NoError(t, err)

		resp, err := srv.Client().Get(srv.URL + "/runs/1/log")
		assert.NoError(t, err)
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		lines := strings.Split(strings.TrimSpace(string(body)), "\n")
		assert.Len(t, lines, 3)
		assert.Contains(t, lines[0], "[PLANNING]")
		assert.Contains(t, lines[1], "[EXECUTING]")
		assert.Contains(t, lines[2], "[DONE]")
	})

	t.Run("RunLogBadPath", func(t *testing.T) {
		srv, _ := newServer(storage.NewMockStore())
		defer srv.Close()

		resp, err := srv.Client().Get(srv.URL + "/runs/abc/log")
		assert.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp, err = srv.Client().Get(srv.URL + "/runs/1/tasks")
		assert.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
