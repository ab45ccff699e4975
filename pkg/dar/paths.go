package dar

import "net/url"

const (
	dataManagerAPI  = "/data-manager/api/v3"
	modelManagerAPI = "/model-manager/api/v3"
	inferenceAPI    = "/inference/api/v3"
)

func datasetSchemasPath() string { return dataManagerAPI + "/datasetSchemas" }

func datasetSchemaPath(id string) string { return datasetSchemasPath() + "/" + url.PathEscape(id) }

func datasetsPath() string { return dataManagerAPI + "/datasets" }

func datasetPath(id string) string { return datasetsPath() + "/" + url.PathEscape(id) }

func datasetDataPath(id string) string { return datasetPath(id) + "/data" }

func modelTemplatesPath() string { return modelManagerAPI + "/modelTemplates" }

func modelTemplatePath(id string) string { return modelTemplatesPath() + "/" + url.PathEscape(id) }

func businessBlueprintsPath() string { return modelManagerAPI + "/businessBlueprints" }

func businessBlueprintPath(id string) string {
	return businessBlueprintsPath() + "/" + url.PathEscape(id)
}

func jobsPath() string { return modelManagerAPI + "/jobs" }

func jobPath(id string) string { return jobsPath() + "/" + url.PathEscape(id) }

func modelsPath() string { return modelManagerAPI + "/models" }

func modelPath(name string) string { return modelsPath() + "/" + url.PathEscape(name) }

func deploymentsPath() string { return modelManagerAPI + "/deployments" }

func deploymentPath(id string) string { return deploymentsPath() + "/" + url.PathEscape(id) }

// inferencePath targets version 1, the only version the service exposes.
func inferencePath(modelName string) string {
	return inferenceAPI + "/models/" + url.PathEscape(modelName) + "/versions/1"
}
