// Package grpcserver hosts topicd's gRPC surface, which is limited to the
// standard health-checking protocol (see the package comment on
// server.go for why the domain operations stay HTTP-only).
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{Config: config.Default()})
//	s := grpcserver.New(rt)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":9090")
package grpcserver
