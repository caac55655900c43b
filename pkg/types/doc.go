// Package types defines the Task entity, the Store interface every task
// backend implements, backend configuration, and the standard error values
// shared by the server, the remote access client, and the task list state.
package types
