// Package bootstrap provides application initialization and lifecycle management.
// It assembles the logger, configuration, persistence engine, metadata provider
// and dispatcher registry into an App that the CLI commands share.
//
// Usage:
//
//	app, err := bootstrap.NewApp(ctx, bootstrap.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Shutdown()
//
//	outcome, err := app.Registry.Execute(ctx, "user:testcenter", core.ActionList, params)
package bootstrap
