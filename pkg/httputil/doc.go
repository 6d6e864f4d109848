// Package httputil provides the JSON envelope writers, request parsing
// helpers and cross-cutting HTTP middleware shared by the API server.
//
// Every response body is an envelope:
//
//	{"success": true, "task": {...}}
//	{"success": false, "message": "Task not found"}
//
// Handlers return typed errors from pkg/apierrors and let WriteAPIError pick
// the status code:
//
//	task, err := store.GetTask(ctx, id)
//	if err != nil {
//		httputil.WriteAPIError(w, r, err)
//		return
//	}
//	httputil.WriteSuccess(w, http.StatusOK, httputil.Envelope{"task": task})
//
// Middleware is composed with Chain, outermost first:
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.CORSMiddleware(origins),
//		httputil.MaxBytesMiddleware(1<<20),
//	)(router)
package httputil
