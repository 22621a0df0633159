package ctxutil

// AuditMeta carries the metadata logged alongside a mutating ingress call
// (submit, cancel, feedback).
type AuditMeta struct {
	RequestID  string
	CallerID   string
	CallerRole string
	HTTPMethod string
	Endpoint   string
}
