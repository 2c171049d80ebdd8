package parcoursup

import (
	"context"

	"parcoursup-client/internal/components/telemetry"
)

// IsPortalOpen anonymously fetches the login page and reports whether it serves
// the login form, which is the closest thing the portal has to an "accepting
// logins" signal. It does not need a Client. A nil `tel` reports through slog.
func IsPortalOpen(ctx context.Context, opts Options, tel telemetry.API) (open bool, err error) {
	ctx, span := tracer.Start(ctx, "IsPortalOpen")
	defer func() { endSpan(span, err) }()

	return isPortalOpen(ctx, opts.withDefaults(), scopedTelemetry(tel))
}

func isPortalOpen(ctx context.Context, opts Options, tel telemetry.API) (bool, error) {
	desktop, err := newDesktopAuthenticator(opts, tel)
	if err != nil {
		tel.ReportBroken(report_client_is_portal_open, err)
		return false, err
	}

	entry, err := fetchPage(ctx, desktop.http, desktop.baseUrl.JoinPath(desktopEntryPath).String())
	if err != nil {
		tel.ReportBroken(report_client_is_portal_open, err)
		return false, err
	}
	current, err := desktop.redirects.Resolve(ctx, entry)
	if err != nil {
		return false, err
	}

	return current.doc.Find(loginFormSelector).Length() > 0, nil
}
