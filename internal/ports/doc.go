// Package ports defines the interfaces that connect the dispatcher core
// to infrastructure adapters.
//
// The application layer (internal/app) depends only on these interfaces.
// Adapters (internal/adapters) provide concrete implementations; tests
// substitute fakes. Today the core needs exactly one port:
//
//   - [BatchSender]: sends a closed batch to the remote pub/sub service
//
// Keeping the boundary this narrow is deliberate: everything the core
// knows about the network is "a batch went out and either succeeded,
// failed transiently, or failed for good".
package ports
