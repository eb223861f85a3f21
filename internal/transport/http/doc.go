// Package http exposes the forecasting service over a chi router: model
// listing and schemas, single and batch prediction, training job submission
// and status, health and metrics endpoints, and the websocket progress
// stream.
package http
