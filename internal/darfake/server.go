// Package darfake is an in-memory stand-in for the DAR service, used by
// tests and by the CLI's --fake mode.
//
// Resources walk through scripted status sequences: every GET of a resource
// advances it by one step until the last status is reached.
package darfake

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/aibus/dar-go/pkg/dar"
)

// Token is the access token handed out by the fake token endpoint.
const Token = "darfake-token"

type scripted[T any] struct {
	value  T
	script []string
	step   int
}

// advance moves to the next scripted status and returns it.
func (s *scripted[T]) advance() string {
	if len(s.script) == 0 {
		return ""
	}
	status := s.script[min(s.step, len(s.script)-1)]
	s.step++
	return status
}

type failure struct {
	method string
	prefix string
	status int
	times  int
}

// Fake is an in-memory DAR service.
type Fake struct {
	mu sync.Mutex

	schemas     map[string]dar.DatasetSchema
	datasets    map[string]*scripted[dar.Dataset]
	jobs        map[string]*scripted[dar.Job]
	models      map[string]dar.Model
	deployments map[string]*scripted[dar.Deployment]

	datasetOrder    []string
	jobOrder        []string
	deploymentOrder []string

	datasetScript    []string
	jobScript        []string
	deploymentScript []string

	failures       []*failure
	failingObjects map[string]int
	requests       map[string]int
	tokens         int
	lastHeader     http.Header
}

// New returns an empty fake. Uploaded datasets validate successfully, jobs
// succeed after one RUNNING poll and deployments after one PENDING poll.
func New() *Fake {
	return &Fake{
		schemas:          make(map[string]dar.DatasetSchema),
		datasets:         make(map[string]*scripted[dar.Dataset]),
		jobs:             make(map[string]*scripted[dar.Job]),
		models:           make(map[string]dar.Model),
		deployments:      make(map[string]*scripted[dar.Deployment]),
		datasetScript:    []string{string(dar.DatasetStatusValidating), string(dar.DatasetStatusSucceeded)},
		jobScript:        []string{string(dar.JobStatusRunning), string(dar.JobStatusSucceeded)},
		deploymentScript: []string{string(dar.DeploymentStatusPending), string(dar.DeploymentStatusSucceeded)},
		failingObjects:   make(map[string]int),
		requests:         make(map[string]int),
	}
}

// StartTLS serves the fake over HTTPS. Use the returned server's Client()
// to trust its certificate.
func (f *Fake) StartTLS() *httptest.Server {
	return httptest.NewTLSServer(f.Router())
}

func (f *Fake) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(f.track)

	r.Get("/oauth/token", f.handleToken)

	r.Group(func(r chi.Router) {
		r.Use(f.requireBearer)
		r.Use(f.injectFailures)

		r.Route("/data-manager/api/v3", func(r chi.Router) {
			r.Post("/datasetSchemas", f.handleCreateSchema)
			r.Get("/datasetSchemas", f.handleListSchemas)
			r.Get("/datasetSchemas/{id}", f.handleGetSchema)
			r.Delete("/datasetSchemas/{id}", f.handleDeleteSchema)
			r.Post("/datasets", f.handleCreateDataset)
			r.Get("/datasets", f.handleListDatasets)
			r.Get("/datasets/{id}", f.handleGetDataset)
			r.Delete("/datasets/{id}", f.handleDeleteDataset)
			r.Post("/datasets/{id}/data", f.handleUpload)
		})

		r.Route("/model-manager/api/v3", func(r chi.Router) {
			r.Get("/modelTemplates", f.handleListTemplates)
			r.Get("/modelTemplates/{id}", f.handleGetTemplate)
			r.Get("/businessBlueprints", f.handleListBlueprints)
			r.Get("/businessBlueprints/{id}", f.handleGetBlueprint)
			r.Post("/jobs", f.handleCreateJob)
			r.Get("/jobs", f.handleListJobs)
			r.Get("/jobs/{id}", f.handleGetJob)
			r.Delete("/jobs/{id}", f.handleDeleteJob)
			r.Get("/models", f.handleListModels)
			r.Get("/models/{name}", f.handleGetModel)
			r.Delete("/models/{name}", f.handleDeleteModel)
			r.Post("/deployments", f.handleCreateDeployment)
			r.Get("/deployments", f.handleListDeployments)
			r.Get("/deployments/{id}", f.handleGetDeployment)
			r.Delete("/deployments/{id}", f.handleDeleteDeployment)
		})

		r.Post("/inference/api/v3/models/{name}/versions/1", f.handleInference)
	})

	return r
}

// SetDatasetScript sets the statuses that datasets uploaded from now on
// walk through.
func (f *Fake) SetDatasetScript(statuses ...dar.DatasetStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.datasetScript = toStrings(statuses)
}

// SetJobScript sets the statuses that jobs created from now on walk through.
func (f *Fake) SetJobScript(statuses ...dar.JobStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobScript = toStrings(statuses)
}

// SetDeploymentScript sets the statuses that deployments created from now
// on walk through.
func (f *Fake) SetDeploymentScript(statuses ...dar.DeploymentStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deploymentScript = toStrings(statuses)
}

// AddDataset stores a dataset that walks through statuses, starting at the
// first one.
func (f *Fake) AddDataset(ds dar.Dataset, statuses ...dar.DatasetStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(statuses) == 0 {
		statuses = []dar.DatasetStatus{ds.Status}
	}
	f.datasets[ds.ID] = &scripted[dar.Dataset]{value: ds, script: toStrings(statuses)}
	f.datasetOrder = append(f.datasetOrder, ds.ID)
}

// AddJob stores a job that walks through statuses.
func (f *Fake) AddJob(job dar.Job, statuses ...dar.JobStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(statuses) == 0 {
		statuses = []dar.JobStatus{job.Status}
	}
	f.jobs[job.ID] = &scripted[dar.Job]{value: job, script: toStrings(statuses)}
	f.jobOrder = append(f.jobOrder, job.ID)
}

func (f *Fake) AddModel(model dar.Model) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.models[model.Name] = model
}

// AddDeployment stores a deployment that walks through statuses.
func (f *Fake) AddDeployment(d dar.Deployment, statuses ...dar.DeploymentStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(statuses) == 0 {
		statuses = []dar.DeploymentStatus{d.Status}
	}
	f.deployments[d.ID] = &scripted[dar.Deployment]{value: d, script: toStrings(statuses)}
	f.deploymentOrder = append(f.deploymentOrder, d.ID)
}

// FailRequests makes the next times requests whose path starts with prefix
// fail with status.
func (f *Fake) FailRequests(method, prefix string, status, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, &failure{method: method, prefix: prefix, status: status, times: times})
}

// FailInferenceFor makes every inference request that contains objectID
// fail with status.
func (f *Fake) FailInferenceFor(objectID string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failingObjects[objectID] = status
}

// Requests returns how many requests were made for method and path.
func (f *Fake) Requests(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[method+" "+path]
}

// TokensIssued returns how often the token endpoint was called.
func (f *Fake) TokensIssued() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens
}

// LastHeader returns the headers of the most recent request.
func (f *Fake) LastHeader() http.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastHeader.Clone()
}

func toStrings[S ~string](in []S) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func (f *Fake) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests[r.Method+" "+r.URL.Path]++
		f.lastHeader = r.Header.Clone()
		f.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (f *Fake) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			writeErr(w, http.StatusUnauthorized, fmt.Errorf("missing bearer token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *Fake) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		status := 0
		for _, fl := range f.failures {
			if fl.times > 0 && fl.method == r.Method && strings.HasPrefix(r.URL.Path, fl.prefix) {
				fl.times--
				status = fl.status
				break
			}
		}
		f.mu.Unlock()
		if status != 0 {
			writeErr(w, status, fmt.Errorf("injected failure"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Correlation-Id", uuid.NewString())
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{"error": map[string]string{"message": err.Error()}})
}

func decode(r *http.Request, v any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}
