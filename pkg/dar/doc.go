// Package dar is a client for the Data Attribute Recommendation service.
//
// The service trains classification models from uploaded datasets and
// serves them for inference. Dataset validation, training and deployment
// run asynchronously on the server; the Wait* methods poll those resources
// until they reach a terminal state. DoBulkInference splits large inputs
// into chunks and processes them in parallel, turning per-chunk failures
// into error records instead of aborting the whole batch.
//
// All clients share a Session, which handles authentication, HTTPS
// enforcement, retries and error translation:
//
//	session, err := dar.NewSession(url, dar.StaticToken(token))
//	if err != nil {
//		return err
//	}
//	models := dar.NewModelManagerClient(session)
//	job, err := models.CreateJobAndWait(ctx, "my-model", datasetID, templateID, "")
package dar
