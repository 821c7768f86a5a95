// Package handlers contains the health checks and reusable middleware of the
// console HTTP server.
//
// # Health Checks
//
// Checks run in parallel. A failing required check makes the service
// unready; a failing optional check only marks it degraded:
//
//	checker := handlers.NewCompositeHealthChecker("v1")
//	checker.AddCheck("stats", handlers.NewStatsConsistencyCheck(store))
//	checker.AddCheck("postgres", handlers.NewPingCheck(pool))
//	checker.AddOptionalCheck("redis", handlers.NewPingCheck(cache))
//
//	status := checker.Check(ctx)
//	if !status.Ready {
//	    log.Printf("not ready: %s", status.Message)
//	}
//
// # Middleware
//
// Middleware composes with Chain, outermost first:
//
//	h := handlers.Chain(
//	    handlers.SecurityHeadersMiddleware,
//	    handlers.RequestSizeLimitMiddleware(64<<10),
//	    handlers.TimeoutMiddleware(10*time.Second),
//	)(mux)
package handlers
