package darfake

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aibus/dar-go/pkg/dar"
)

func (f *Fake) handleToken(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := r.BasicAuth(); !ok {
		writeErr(w, http.StatusUnauthorized, fmt.Errorf("missing client credentials"))
		return
	}
	f.mu.Lock()
	f.tokens++
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"access_token": Token, "expires_in": 43199, "scope": "dar"})
}

func notFound(w http.ResponseWriter, kind, id string) {
	writeErr(w, http.StatusNotFound, fmt.Errorf("%s '%s' not found", kind, id))
}

// Dataset schemas

func (f *Fake) handleCreateSchema(w http.ResponseWriter, r *http.Request) {
	var schema dar.DatasetSchema
	if err := decode(r, &schema); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	schema["id"] = uuid.NewString()
	f.mu.Lock()
	f.schemas[schema.ID()] = schema
	f.mu.Unlock()
	writeJSON(w, http.StatusCreated, schema)
}

func (f *Fake) handleListSchemas(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	coll := dar.DatasetSchemaCollection{DatasetSchemas: []dar.DatasetSchema{}}
	for _, s := range f.schemas {
		coll.DatasetSchemas = append(coll.DatasetSchemas, s)
	}
	coll.Count = len(coll.DatasetSchemas)
	writeJSON(w, http.StatusOK, coll)
}

func (f *Fake) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f.mu.Lock()
	schema, ok := f.schemas[id]
	f.mu.Unlock()
	if !ok {
		notFound(w, "dataset schema", id)
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

func (f *Fake) handleDeleteSchema(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f.mu.Lock()
	_, ok := f.schemas[id]
	delete(f.schemas, id)
	f.mu.Unlock()
	if !ok {
		notFound(w, "dataset schema", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Datasets

func (f *Fake) handleCreateDataset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name            string `json:"name"`
		DatasetSchemaID string `json:"datasetSchemaId"`
	}
	if err := decode(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	ds := dar.Dataset{
		ID:              uuid.NewString(),
		Name:            req.Name,
		DatasetSchemaID: req.DatasetSchemaID,
		Status:          dar.DatasetStatusNoData,
	}
	f.AddDataset(ds)
	writeJSON(w, http.StatusCreated, ds)
}

func (f *Fake) handleListDatasets(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	coll := dar.DatasetCollection{Datasets: []dar.Dataset{}}
	for _, id := range f.datasetOrder {
		if s, ok := f.datasets[id]; ok {
			coll.Datasets = append(coll.Datasets, s.value)
		}
	}
	coll.Count = len(coll.Datasets)
	writeJSON(w, http.StatusOK, coll)
}

func (f *Fake) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f.mu.Lock()
	s, ok := f.datasets[id]
	var ds dar.Dataset
	if ok {
		s.value.Status = dar.DatasetStatus(s.advance())
		if dar.IsDatasetValidationFailed(&s.value) {
			s.value.ValidationMessage = "dataset contains invalid rows"
		}
		ds = s.value
	}
	f.mu.Unlock()
	if !ok {
		notFound(w, "dataset", id)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (f *Fake) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f.mu.Lock()
	_, ok := f.datasets[id]
	delete(f.datasets, id)
	f.mu.Unlock()
	if !ok {
		notFound(w, "dataset", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *Fake) handleUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := io.Copy(io.Discard, r.Body); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	f.mu.Lock()
	s, ok := f.datasets[id]
	var ds dar.Dataset
	if ok {
		s.script = append([]string(nil), f.datasetScript...)
		s.step = 0
		s.value.Status = dar.DatasetStatusUploading
		ds = s.value
	}
	f.mu.Unlock()
	if !ok {
		notFound(w, "dataset", id)
		return
	}
	writeJSON(w, http.StatusAccepted, ds)
}

// Templates and blueprints

// TemplateID and BlueprintID are the only model template and business
// blueprint the fake knows.
const (
	TemplateID  = "d7810207-ca31-4d4d-9b5a-841a644fd81f"
	BlueprintID = "4788254b-0bad-4757-a67f-92d5b55f322b"
)

var (
	template  = dar.ModelTemplate{ID: TemplateID, Name: "Hierarchical template"}
	blueprint = dar.BusinessBlueprint{ID: BlueprintID, Name: "Generic"}
)

func (f *Fake) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, dar.ModelTemplateCollection{ModelTemplates: []dar.ModelTemplate{template}, Count: 1})
}

func (f *Fake) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	if id := chi.URLParam(r, "id"); id != TemplateID {
		notFound(w, "model template", id)
		return
	}
	writeJSON(w, http.StatusOK, template)
}

func (f *Fake) handleListBlueprints(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, dar.BusinessBlueprintCollection{BusinessBlueprints: []dar.BusinessBlueprint{blueprint}, Count: 1})
}

func (f *Fake) handleGetBlueprint(w http.ResponseWriter, r *http.Request) {
	if id := chi.URLParam(r, "id"); id != BlueprintID {
		notFound(w, "business blueprint", id)
		return
	}
	writeJSON(w, http.StatusOK, blueprint)
}

// Jobs

func (f *Fake) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req dar.Job
	if err := decode(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if (req.ModelTemplateID == "") == (req.BusinessBlueprintID == "") {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("exactly one of modelTemplateId and businessBlueprintId is required"))
		return
	}
	job := dar.Job{
		ID:                  uuid.NewString(),
		ModelName:           req.ModelName,
		DatasetID:           req.DatasetID,
		ModelTemplateID:     req.ModelTemplateID,
		BusinessBlueprintID: req.BusinessBlueprintID,
		Status:              dar.JobStatusPending,
	}
	f.mu.Lock()
	script := append([]string(nil), f.jobScript...)
	f.mu.Unlock()
	f.AddJob(job)
	f.mu.Lock()
	f.jobs[job.ID].script = script
	f.mu.Unlock()
	writeJSON(w, http.StatusCreated, job)
}

func (f *Fake) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	coll := dar.JobCollection{Jobs: []dar.Job{}}
	for _, id := range f.jobOrder {
		if s, ok := f.jobs[id]; ok {
			coll.Jobs = append(coll.Jobs, s.value)
		}
	}
	coll.Count = len(coll.Jobs)
	writeJSON(w, http.StatusOK, coll)
}

func (f *Fake) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f.mu.Lock()
	s, ok := f.jobs[id]
	var job dar.Job
	if ok {
		s.value.Status = dar.JobStatus(s.advance())
		s.value.Progress = float64(min(s.step, len(s.script))) / float64(max(len(s.script), 1))
		switch s.value.Status {
		case dar.JobStatusSucceeded:
			if _, exists := f.models[s.value.ModelName]; !exists {
				f.models[s.value.ModelName] = dar.Model{
					Name:            s.value.ModelName,
					JobID:           s.value.ID,
					ModelTemplateID: s.value.ModelTemplateID,
				}
			}
		case dar.JobStatusFailed:
			s.value.Message = "training failed"
		}
		job = s.value
	}
	f.mu.Unlock()
	if !ok {
		notFound(w, "job", id)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (f *Fake) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f.mu.Lock()
	_, ok := f.jobs[id]
	delete(f.jobs, id)
	f.mu.Unlock()
	if !ok {
		notFound(w, "job", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Models

func (f *Fake) handleListModels(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	coll := dar.ModelCollection{Models: []dar.Model{}}
	for _, m := range f.models {
		coll.Models = append(coll.Models, m)
	}
	coll.Count = len(coll.Models)
	writeJSON(w, http.StatusOK, coll)
}

func (f *Fake) handleGetModel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	f.mu.Lock()
	m, ok := f.models[name]
	f.mu.Unlock()
	if !ok {
		notFound(w, "model", name)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (f *Fake) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	f.mu.Lock()
	_, ok := f.models[name]
	delete(f.models, name)
	f.mu.Unlock()
	if !ok {
		notFound(w, "model", name)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Deployments

func (f *Fake) handleCreateDeployment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ModelName string `json:"modelName"`
	}
	if err := decode(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	f.mu.Lock()
	_, known := f.models[req.ModelName]
	script := append([]string(nil), f.deploymentScript...)
	f.mu.Unlock()
	if !known {
		notFound(w, "model", req.ModelName)
		return
	}
	d := dar.Deployment{ID: uuid.NewString(), ModelName: req.ModelName, Status: dar.DeploymentStatusPending}
	f.AddDeployment(d)
	f.mu.Lock()
	f.deployments[d.ID].script = script
	f.mu.Unlock()
	writeJSON(w, http.StatusCreated, d)
}

func (f *Fake) handleListDeployments(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	coll := dar.DeploymentCollection{Deployments: []dar.Deployment{}}
	for _, id := range f.deploymentOrder {
		if s, ok := f.deployments[id]; ok {
			coll.Deployments = append(coll.Deployments, s.value)
		}
	}
	coll.Count = len(coll.Deployments)
	writeJSON(w, http.StatusOK, coll)
}

func (f *Fake) handleGetDeployment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f.mu.Lock()
	s, ok := f.deployments[id]
	var d dar.Deployment
	if ok {
		s.value.Status = dar.DeploymentStatus(s.advance())
		d = s.value
	}
	f.mu.Unlock()
	if !ok {
		notFound(w, "deployment", id)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (f *Fake) handleDeleteDeployment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f.mu.Lock()
	_, ok := f.deployments[id]
	delete(f.deployments, id)
	f.mu.Unlock()
	if !ok {
		notFound(w, "deployment", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Inference

func (f *Fake) handleInference(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TopN    int                   `json:"topN"`
		Objects []dar.InferenceObject `json:"objects"`
	}
	if err := decode(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Objects) == 0 || len(req.Objects) > dar.LimitObjectsPerCall {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("between 1 and %d objects required, got %d",
			dar.LimitObjectsPerCall, len(req.Objects)))
		return
	}

	f.mu.Lock()
	status := 0
	for _, obj := range req.Objects {
		if s, ok := f.failingObjects[obj.ObjectID]; ok {
			status = s
			break
		}
	}
	f.mu.Unlock()
	if status != 0 {
		writeErr(w, status, fmt.Errorf("inference failed"))
		return
	}

	resp := dar.InferenceResponse{
		ID:            uuid.NewString(),
		Status:        "DONE",
		ProcessedTime: "2026-10-15T09:00:00.000000+00:00",
		Predictions:   make([]dar.Prediction, len(req.Objects)),
	}
	for i, obj := range req.Objects {
		resp.Predictions[i] = dar.Prediction{
			ObjectID: obj.ObjectID,
			Labels:   []dar.Label{{Name: "category", Value: "label-" + obj.ObjectID, Probability: 0.9}},
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
