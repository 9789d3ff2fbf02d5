package core

import "context"

// Protocol defines how operations are turned into requests and how response
// bodies are turned back into canonical types.
type Protocol interface {
	// Name returns the exchange identifier.
	Name() string

	// Version returns the API version being used.
	Version() string

	// BuildRequest constructs the unsigned request for the specified operation.
	BuildRequest(ctx context.Context, op Operation, params Params) (*Request, error)

	// ParseResponse decodes a successful response body into the canonical type
	// of the operation.
	ParseResponse(op Operation, body []byte) (any, error)

	// SupportedOperations returns the list of operations this protocol supports.
	SupportedOperations() []Operation
}
