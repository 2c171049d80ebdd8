package parcoursup

import (
	"parcoursup-client/internal/components/telemetry"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("parcoursup-client/pkg/parcoursup")

const (
	report_redirects_resolve     = "redirects.resolve"
	report_desktop_authenticate  = "desktop.authenticate"
	report_desktop_verify        = "desktop.verify-login"
	report_mobile_authenticate   = "mobile.authenticate"
	report_classifier_classify   = "classifier.classify"
	report_client_new            = "client.new"
	report_client_get_wishes     = "client.get-wishes"
	report_client_get_wish       = "client.get-wish"
	report_client_results_page   = "client.results-page"
	report_client_is_portal_open = "client.is-portal-open"
	report_session_cache_get     = "session_cache.get"
)

// scopedTelemetry scopes `tel` to the package, nil reports through slog.
func scopedTelemetry(tel telemetry.API) telemetry.API {
	if tel == nil {
		tel = telemetry.SlogAPI{}
	}
	return telemetry.NewScopedAPI("parcoursup", tel)
}
