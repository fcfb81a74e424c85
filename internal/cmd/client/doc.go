// Package client provides the `topicdctl` command-line client.
//
// The CLI talks to a topicd process's HTTP endpoints to perform map/list
// operations from a terminal. It is primarily intended for developers
// and operators.
//
// # Address configuration
//
// The HTTP base URL is discovered via a BaseURLFunc; the standalone
// binary defaults to http://127.0.0.1:8080 or the TOPICD_HTTP env var.
//
// Usage
//
//	topicdctl map put --topic chat --name users --key alice --value '{"name":"Alice"}'
//	topicdctl map get --topic chat --name users --key alice
//	topicdctl map keys --topic chat --name users
//	topicdctl map delete --topic chat --name users --key alice
//
//	topicdctl list insert --topic board --name cards --value '"first card"'
//	topicdctl list items --topic board --name cards
//	topicdctl list move --topic board --name cards --key <uuid> --ref <uuid> --before
package client
