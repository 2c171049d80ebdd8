package parcoursup

import (
	"context"
	"net/url"
	"strings"

	"parcoursup-client/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const (
	desktopEntryPath   = "authentification"
	desktopResultsPath = "admissions"
	loginFormSelector  = `form[name="accesdossier"]`
	maxHttpRedirects   = 10
)

// desktopSession is the cookie based session of the web portal. baseUrl is the root
// every desktop request is made against, it is resolved during authentication.
type desktopSession struct {
	http    *resty.Client
	baseUrl *url.URL
}

func (s desktopSession) url(path string) string {
	return s.baseUrl.JoinPath(path).String()
}

type desktopAuthenticator struct {
	http      *resty.Client
	baseUrl   *url.URL
	redirects redirectResolver
	verify    bool
	tel       telemetry.API
}

func newDesktopAuthenticator(opts Options, tel telemetry.API) (desktopAuthenticator, error) {
	baseUrl, err := url.Parse(opts.DesktopBaseUrl)
	if err != nil {
		return desktopAuthenticator{}, err
	}

	httpClient, err := newHttpClient(opts, tel)
	if err != nil {
		return desktopAuthenticator{}, err
	}
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	// the portal may move candidates to another host, the page url is read after redirects
	httpClient.SetRedirectPolicy(resty.FlexibleRedirectPolicy(maxHttpRedirects))

	return desktopAuthenticator{
		http:    httpClient,
		baseUrl: baseUrl,
		redirects: redirectResolver{
			http:    httpClient,
			maxHops: opts.MaxRedirects,
			tel:     tel,
		},
		verify: opts.VerifyDesktopLogin,
		tel:    tel,
	}, nil
}

// resolvedBaseUrl strips the entry path segment from the url the login form was
// served from, that url is the root of every following desktop request.
func resolvedBaseUrl(pageUrl *url.URL) *url.URL {
	resolved := *pageUrl
	resolved.Path = strings.ReplaceAll(resolved.Path, desktopEntryPath, "")
	resolved.RawPath = ""
	resolved.RawQuery = ""
	resolved.Fragment = ""
	return &resolved
}

// loginPayload collects the hidden fields of the login form and fills in the credentials.
// Inputs without a value attribute are left out of the payload entirely.
func loginPayload(form *goquery.Selection, username, password string) url.Values {
	payload := url.Values{}
	form.Find("input").Each(func(_ int, input *goquery.Selection) {
		name, ok := input.Attr("name")
		if !ok || name == "" {
			return
		}
		value, ok := input.Attr("value")
		if !ok {
			return
		}
		payload.Set(name, value)
	})
	payload.Set("usermobile", "False")
	payload.Set("g_cn_cod", username)
	payload.Set("g_cn_mot_pas", password)
	return payload
}

// Authenticate logs into the web portal.
//
// When the login form is not served the session is returned untouched, and the
// response to the credentials POST is never inspected unless login verification is
// enabled, a returned session is therefore not proof of a valid login.
func (d desktopAuthenticator) Authenticate(ctx context.Context, username, password string) (desktopSession, error) {
	session := desktopSession{http: d.http, baseUrl: d.baseUrl}

	entry, err := fetchPage(ctx, d.http, session.url(desktopEntryPath))
	if err != nil {
		d.tel.ReportBroken(report_desktop_authenticate, err)
		return desktopSession{}, err
	}
	current, err := d.redirects.Resolve(ctx, entry)
	if err != nil {
		return desktopSession{}, err
	}

	form := current.doc.Find(loginFormSelector).First()
	if form.Length() == 0 {
		d.tel.ReportWarning(
			report_desktop_authenticate,
			"login form not found, credentials were not submitted",
			current.url.String(),
		)
		return session, nil
	}

	session.baseUrl = resolvedBaseUrl(current.url)
	postUrl, err := session.baseUrl.Parse(form.AttrOr("action", ""))
	if err != nil {
		err = &ProtocolError{Url: current.url.String(), Msg: "invalid login form action", Err: err}
		d.tel.ReportBroken(report_desktop_authenticate, err)
		return desktopSession{}, err
	}

	res, err := d.http.R().
		SetContext(ctx).
		SetFormDataFromValues(loginPayload(form, username, password)).
		Post(postUrl.String())
	if err != nil {
		err = &ProtocolError{Url: postUrl.String(), Msg: "submit login form", Err: err}
		d.tel.ReportBroken(report_desktop_authenticate, err)
		return desktopSession{}, err
	}
	if res.IsError() {
		d.tel.ReportWarning(
			report_desktop_authenticate,
			"login form submission returned an error status",
			res.Status(),
		)
	}

	if d.verify {
		err = d.verifyLogin(ctx, session)
		if err != nil {
			return desktopSession{}, err
		}
	}

	return session, nil
}

func (d desktopAuthenticator) verifyLogin(ctx context.Context, session desktopSession) error {
	results, err := fetchPage(ctx, d.http, session.url(desktopResultsPath))
	if err != nil {
		d.tel.ReportBroken(report_desktop_verify, err)
		return err
	}
	results, err = d.redirects.Resolve(ctx, results)
	if err != nil {
		return err
	}

	if results.doc.Find(loginFormSelector).Length() > 0 {
		err := &ProtocolError{
			Url: results.url.String(),
			Msg: "login form still served after submitting credentials",
		}
		d.tel.ReportBroken(report_desktop_verify, err)
		return err
	}
	return nil
}
