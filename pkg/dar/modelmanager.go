package dar

import (
	"context"
	"fmt"
)

// ModelManagerClient manages training jobs, models and deployments.
type ModelManagerClient struct {
	clientCore
}

func NewModelManagerClient(session *Session, opts ...ClientOption) *ModelManagerClient {
	return &ModelManagerClient{clientCore: newClientCore(session, opts)}
}

func (c *ModelManagerClient) ReadModelTemplateCollection(ctx context.Context) (*ModelTemplateCollection, error) {
	var coll ModelTemplateCollection
	if err := c.getJSON(ctx, modelTemplatesPath(), &coll); err != nil {
		return nil, err
	}
	return &coll, nil
}

func (c *ModelManagerClient) ReadModelTemplateByID(ctx context.Context, id string) (*ModelTemplate, error) {
	var tmpl ModelTemplate
	if err := c.getJSON(ctx, modelTemplatePath(id), &tmpl); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

func (c *ModelManagerClient) ReadBusinessBlueprintCollection(ctx context.Context) (*BusinessBlueprintCollection, error) {
	var coll BusinessBlueprintCollection
	if err := c.getJSON(ctx, businessBlueprintsPath(), &coll); err != nil {
		return nil, err
	}
	return &coll, nil
}

func (c *ModelManagerClient) ReadBusinessBlueprintByID(ctx context.Context, id string) (*BusinessBlueprint, error) {
	var bp BusinessBlueprint
	if err := c.getJSON(ctx, businessBlueprintPath(id), &bp); err != nil {
		return nil, err
	}
	return &bp, nil
}

// Jobs

func (c *ModelManagerClient) ReadJobCollection(ctx context.Context) (*JobCollection, error) {
	var coll JobCollection
	if err := c.getJSON(ctx, jobsPath(), &coll); err != nil {
		return nil, err
	}
	return &coll, nil
}

func (c *ModelManagerClient) ReadJobByID(ctx context.Context, id string) (*Job, error) {
	var job Job
	if err := c.getJSON(ctx, jobPath(id), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ReadJobByModelName returns the first job that trains modelName.
// It fails with ErrJobNotFound if there is none.
func (c *ModelManagerClient) ReadJobByModelName(ctx context.Context, modelName string) (*Job, error) {
	coll, err := c.ReadJobCollection(ctx)
	if err != nil {
		return nil, err
	}
	for i := range coll.Jobs {
		if coll.Jobs[i].ModelName == modelName {
			return &coll.Jobs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no job for model name '%s'", ErrJobNotFound, modelName)
}

func (c *ModelManagerClient) DeleteJobByID(ctx context.Context, id string) error {
	c.logger.Info("deleting job", "job_id", id)
	_, err := c.session.Delete(ctx, jobPath(id))
	return err
}

// CreateJob starts training modelName on a dataset. Exactly one of
// modelTemplateID and businessBlueprintID must be set.
//
// The new job is PENDING or RUNNING; use WaitForJob to wait for it.
func (c *ModelManagerClient) CreateJob(ctx context.Context, modelName, datasetID, modelTemplateID, businessBlueprintID string) (*Job, error) {
	payload := map[string]string{"modelName": modelName, "datasetId": datasetID}
	switch {
	case modelTemplateID != "" && businessBlueprintID != "":
		return nil, fmt.Errorf("%w: either model template ID or business blueprint ID have to be specified, not both",
			ErrCreateTrainingJobFailed)
	case modelTemplateID != "":
		payload["modelTemplateId"] = modelTemplateID
	case businessBlueprintID != "":
		payload["businessBlueprintId"] = businessBlueprintID
	default:
		return nil, fmt.Errorf("%w: either model template ID or business blueprint ID have to be specified",
			ErrCreateTrainingJobFailed)
	}

	c.logger.Info("creating job", "model_name", modelName, "dataset_id", datasetID,
		"model_template_id", modelTemplateID, "business_blueprint_id", businessBlueprintID)
	var job Job
	if err := c.postJSON(ctx, jobsPath(), payload, &job); err != nil {
		return nil, err
	}
	c.logger.Info("job created", "job_id", job.ID)
	return &job, nil
}

// IsJobFinished reports whether job reached SUCCEEDED or FAILED.
func IsJobFinished(job *Job) bool {
	return job.Status == JobStatusSucceeded || job.Status == JobStatusFailed
}

// IsJobFailed reports whether job has FAILED. False does not imply the job
// has finished.
func IsJobFailed(job *Job) bool {
	return job.Status == JobStatusFailed
}

// WaitForJob polls the job until it succeeds or fails.
func (c *ModelManagerClient) WaitForJob(ctx context.Context, id string, opts ...WaitOption) (*Job, error) {
	return waitFor(ctx, &c.clientCore, lifecycle[*Job]{
		kind: KindJob,
		id:   id,
		op:   OpWaitJob,
		fetch: func(ctx context.Context) (*Job, error) {
			job, err := c.ReadJobByID(ctx, id)
			if err == nil {
				c.logger.Info("polled job", "job_id", id, "status", job.Status, "progress", job.Progress)
			}
			return job, err
		},
		isFinished: func(job *Job) (bool, error) { return IsJobFinished(job), nil },
		isFailed:   IsJobFailed,
		status:     func(job *Job) (string, string) { return string(job.Status), job.Message },
	}, opts)
}

// CreateJobAndWait starts a job and waits for it to finish.
func (c *ModelManagerClient) CreateJobAndWait(ctx context.Context, modelName, datasetID, modelTemplateID, businessBlueprintID string, opts ...WaitOption) (*Job, error) {
	job, err := c.CreateJob(ctx, modelName, datasetID, modelTemplateID, businessBlueprintID)
	if err != nil {
		return nil, err
	}
	return c.WaitForJob(ctx, job.ID, opts...)
}

// Models

func (c *ModelManagerClient) ReadModelCollection(ctx context.Context) (*ModelCollection, error) {
	var coll ModelCollection
	if err := c.getJSON(ctx, modelsPath(), &coll); err != nil {
		return nil, err
	}
	return &coll, nil
}

func (c *ModelManagerClient) ReadModelByName(ctx context.Context, name string) (*Model, error) {
	var model Model
	if err := c.getJSON(ctx, modelPath(name), &model); err != nil {
		return nil, err
	}
	return &model, nil
}

func (c *ModelManagerClient) DeleteModelByName(ctx context.Context, name string) error {
	c.logger.Info("deleting model", "model_name", name)
	_, err := c.session.Delete(ctx, modelPath(name))
	return err
}

// Deployments

func (c *ModelManagerClient) ReadDeploymentCollection(ctx context.Context) (*DeploymentCollection, error) {
	var coll DeploymentCollection
	if err := c.getJSON(ctx, deploymentsPath(), &coll); err != nil {
		return nil, err
	}
	return &coll, nil
}

func (c *ModelManagerClient) ReadDeploymentByID(ctx context.Context, id string) (*Deployment, error) {
	var d Deployment
	if err := c.getJSON(ctx, deploymentPath(id), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDeployment deploys modelName. The deployment starts out PENDING and
// may incur costs once it has SUCCEEDED.
func (c *ModelManagerClient) CreateDeployment(ctx context.Context, modelName string) (*Deployment, error) {
	c.logger.Info("creating deployment", "model_name", modelName)
	var d Deployment
	if err := c.postJSON(ctx, deploymentsPath(), map[string]string{"modelName": modelName}, &d); err != nil {
		return nil, err
	}
	c.logger.Info("deployment created", "model_name", modelName, "deployment_id", d.ID)
	return &d, nil
}

func (c *ModelManagerClient) DeleteDeploymentByID(ctx context.Context, id string) error {
	c.logger.Info("deleting deployment", "deployment_id", id)
	_, err := c.session.Delete(ctx, deploymentPath(id))
	return err
}

// LookupDeploymentIDByModelName returns the ID of the deployment serving
// modelName, or "" if the model is not deployed.
func (c *ModelManagerClient) LookupDeploymentIDByModelName(ctx context.Context, modelName string) (string, error) {
	coll, err := c.ReadDeploymentCollection(ctx)
	if err != nil {
		return "", err
	}
	for _, d := range coll.Deployments {
		if d.ModelName == modelName {
			c.logger.Debug("found deployment", "model_name", modelName, "deployment_id", d.ID)
			return d.ID, nil
		}
	}
	return "", nil
}

// EnsureModelIsUndeployed deletes the deployment of modelName if there is
// one and returns its ID. It returns "" if the model was not deployed.
// Deletion is asynchronous on the server.
func (c *ModelManagerClient) EnsureModelIsUndeployed(ctx context.Context, modelName string) (string, error) {
	id, err := c.LookupDeploymentIDByModelName(ctx, modelName)
	if err != nil {
		return "", err
	}
	if id == "" {
		c.logger.Info("no deployment found, not undeploying", "model_name", modelName)
		return "", nil
	}
	c.logger.Info("undeploying model", "model_name", modelName, "deployment_id", id)
	if err := c.DeleteDeploymentByID(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

// EnsureDeploymentExists deploys modelName unless a deployment already
// exists. A FAILED or STOPPED deployment is deleted and recreated. A newly
// created deployment is returned in its initial PENDING state.
func (c *ModelManagerClient) EnsureDeploymentExists(ctx context.Context, modelName string) (*Deployment, error) {
	id, err := c.LookupDeploymentIDByModelName(ctx, modelName)
	if err != nil {
		return nil, err
	}
	if id == "" {
		c.logger.Info("no deployment found, creating one", "model_name", modelName)
		return c.CreateDeployment(ctx, modelName)
	}

	existing, err := c.ReadDeploymentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !IsDeploymentFailed(existing) {
		return existing, nil
	}

	c.logger.Info("deployment is failed, re-creating it", "model_name", modelName,
		"deployment_id", id, "status", existing.Status)
	if err := c.DeleteDeploymentByID(ctx, id); err != nil {
		return nil, err
	}
	return c.CreateDeployment(ctx, modelName)
}

// IsDeploymentFinished reports whether d left PENDING.
func IsDeploymentFinished(d *Deployment) bool {
	return d.Status != DeploymentStatusPending
}

// IsDeploymentFailed reports whether d is FAILED or STOPPED.
func IsDeploymentFailed(d *Deployment) bool {
	return d.Status == DeploymentStatusFailed || d.Status == DeploymentStatusStopped
}

// WaitForDeployment polls the deployment until it leaves PENDING.
// A deployment that times out here may still succeed later and incur costs.
func (c *ModelManagerClient) WaitForDeployment(ctx context.Context, id string, opts ...WaitOption) (*Deployment, error) {
	return waitFor(ctx, &c.clientCore, lifecycle[*Deployment]{
		kind: KindDeployment,
		id:   id,
		op:   OpWaitDeployment,
		fetch: func(ctx context.Context) (*Deployment, error) {
			return c.ReadDeploymentByID(ctx, id)
		},
		isFinished: func(d *Deployment) (bool, error) { return IsDeploymentFinished(d), nil },
		isFailed:   IsDeploymentFailed,
		status:     func(d *Deployment) (string, string) { return string(d.Status), d.Message },
	}, opts)
}

// DeployAndWait makes sure modelName is deployed and waits until the
// deployment has succeeded.
func (c *ModelManagerClient) DeployAndWait(ctx context.Context, modelName string, opts ...WaitOption) (*Deployment, error) {
	d, err := c.EnsureDeploymentExists(ctx, modelName)
	if err != nil {
		return nil, err
	}
	c.logger.Info("deployment ready for polling", "model_name", modelName, "deployment_id", d.ID)
	return c.WaitForDeployment(ctx, d.ID, opts...)
}
