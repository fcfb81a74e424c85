// Package runtime wires config, backend, and engine into a single-node
// topicd instance. It exposes Open/Close and a health check consumed by
// the transports.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
//	_ = rt.CheckHealth(context.Background())
//	eng := rt.Engine()
package runtime
