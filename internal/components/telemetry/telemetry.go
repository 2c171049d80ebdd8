package telemetry

// API is where every component of the client reports what happens to it. Keeping
// it an interface lets tests assert on reports with a Recorder.
type API interface {
	// ReportBroken reports a component that failed in a way someone should look at.
	//
	// `id` names the component, not the step inside it that failed: a missing header
	// in the mobile login is reported as `mobile.authenticate` and the header name
	// goes in the params or in the wrapped error.
	//
	// ids are lowercase, `<type>.<method>`, with underscores inside type names
	// (`session_cache`) and dashes inside method names (`get-wishes`). The package
	// part is added by ScopedAPI.
	ReportBroken(id string, params ...any)

	// ReportWarning reports something unexpected that did not fail the operation,
	// such as the portal not serving a login form. `id` follows ReportBroken.
	ReportWarning(id string, params ...any)

	// ReportDebug reports tracing information, it is discarded unless verbose logging is on.
	ReportDebug(msg string, params ...any)

	// ReportCount reports a gauge, the number of wishes returned by a listing for
	// example. Values are data points over time and are not meant to be summed.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id it reports with "<namespace>: ", scopes compose so the
// desktop channel of a client reports as "parcoursup: desktop: <id>".
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) scope(id string) string {
	return s.namespace + ": " + id
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scope(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scope(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.scope(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scope(id), count)
}
