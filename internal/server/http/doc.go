// Package httpserver is the topicd process's external network face: REST
// endpoints for map/list CRUD backed by one system connection per topic,
// plus server-sent-events subscriptions, routed with gorilla/mux.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{Config: config.Default()})
//	s := httpserver.New(rt)
//	go s.ListenAndServe(ctx, ":8080")
package httpserver
