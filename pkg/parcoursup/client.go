package parcoursup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"parcoursup-client/internal/components/chrono"
	"parcoursup-client/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ClientOptions struct {
	Username string
	Password string
	Options  Options
	// Telemetry defaults to slog when nil.
	Telemetry telemetry.API
	// Time defaults to the system clock when nil.
	Time chrono.TimeAPI
}

// Client is an authenticated parcoursup account. It holds a desktop session used for
// the results page and a mobile session used for everything related to wishes.
type Client struct {
	desktop    desktopSession
	mobile     mobileSession
	classifier Classifier
	time       chrono.TimeAPI
	tel        telemetry.API
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// NewClient logs into the desktop portal then into the mobile api, failing if either does.
// An empty username is an AuthenticationError and no request is made.
func NewClient(ctx context.Context, opts ClientOptions) (client *Client, err error) {
	ctx, span := tracer.Start(ctx, "NewClient")
	defer func() { endSpan(span, err) }()

	tel := scopedTelemetry(opts.Telemetry)
	if opts.Username == "" {
		err = &AuthenticationError{Step: "credentials", Msg: "username is required"}
		tel.ReportBroken(report_client_new, err)
		return nil, err
	}
	time := opts.Time
	if time == nil {
		time = chrono.NewStandardTime()
	}
	options := opts.Options.withDefaults()

	desktopAuth, err := newDesktopAuthenticator(options, telemetry.NewScopedAPI("desktop", tel))
	if err != nil {
		tel.ReportBroken(report_client_new, fmt.Errorf("create desktop channel: %w", err))
		return nil, err
	}
	mobileAuth, err := newMobileAuthenticator(options, time, telemetry.NewScopedAPI("mobile", tel))
	if err != nil {
		tel.ReportBroken(report_client_new, fmt.Errorf("create mobile channel: %w", err))
		return nil, err
	}

	desktop, err := desktopAuth.Authenticate(ctx, opts.Username, opts.Password)
	if err != nil {
		return nil, err
	}
	mobile, err := mobileAuth.Authenticate(ctx, opts.Username, opts.Password)
	if err != nil {
		return nil, err
	}

	return &Client{
		desktop:    desktop,
		mobile:     mobile,
		classifier: NewClassifier(time, tel),
		time:       time,
		tel:        tel,
	}, nil
}

func (c *Client) getMobile(ctx context.Context, reportId string, req *resty.Request, path string) ([]byte, error) {
	res, err := req.SetContext(ctx).Get(path)
	if err != nil {
		err = &FetchError{Url: path, Err: err}
		c.tel.ReportBroken(reportId, err)
		return nil, err
	}
	if res.IsError() {
		err = &FetchError{
			Url:    res.Request.URL,
			Status: res.StatusCode(),
			Reason: statusReason(res),
		}
		c.tel.ReportBroken(reportId, err)
		return nil, err
	}
	return res.Body(), nil
}

// Wishes returns every wish of the account.
func (c *Client) Wishes(ctx context.Context) (wishes []Wish, err error) {
	ctx, span := tracer.Start(ctx, "Client.Wishes")
	defer func() { endSpan(span, err) }()

	body, err := c.getMobile(
		ctx, report_client_get_wishes,
		c.mobile.http.R().SetQueryParam("liste", "tous"),
		"voeux",
	)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Wishes *[]RawWish `json:"voeux"`
	}
	err = json.Unmarshal(body, &parsed)
	if err == nil && parsed.Wishes == nil {
		err = errors.New("response has no voeux field")
	}
	if err != nil {
		err = &FetchError{Url: "voeux", Err: fmt.Errorf("decode response: %w", err)}
		c.tel.ReportBroken(report_client_get_wishes, err)
		return nil, err
	}

	wishes = make([]Wish, len(*parsed.Wishes))
	for i, raw := range *parsed.Wishes {
		wishes[i], err = c.classifier.Classify(raw)
		if err != nil {
			return nil, err
		}
	}

	c.tel.ReportCount(report_client_get_wishes, int64(len(wishes)))
	span.SetAttributes(attribute.Int("wishes", len(wishes)))
	return wishes, nil
}

// Wish returns a single wish by its id.
func (c *Client) Wish(ctx context.Context, id string) (wish Wish, err error) {
	ctx, span := tracer.Start(ctx, "Client.Wish", trace.WithAttributes(attribute.String("id", id)))
	defer func() { endSpan(span, err) }()

	body, err := c.getMobile(
		ctx, report_client_get_wish,
		c.mobile.http.R().SetPathParam("id", id),
		"voeux/{id}",
	)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Wish *RawWish `json:"voeu"`
	}
	err = json.Unmarshal(body, &parsed)
	if err == nil && parsed.Wish == nil {
		err = errors.New("response has no voeu field")
	}
	if err != nil {
		err = &FetchError{Url: "voeux/" + id, Err: fmt.Errorf("decode response: %w", err)}
		c.tel.ReportBroken(report_client_get_wish, err)
		return nil, err
	}

	return c.classifier.Classify(*parsed.Wish)
}

// ResultsPage returns the raw html of the admission results page of the web portal.
func (c *Client) ResultsPage(ctx context.Context) (html string, err error) {
	ctx, span := tracer.Start(ctx, "Client.ResultsPage")
	defer func() { endSpan(span, err) }()

	link := c.desktop.url(desktopResultsPath)
	res, err := c.desktop.http.R().
		SetContext(ctx).
		Get(link)
	if err != nil {
		err = &FetchError{Url: link, Err: err}
		c.tel.ReportBroken(report_client_results_page, err)
		return "", err
	}
	if res.IsError() {
		err = &FetchError{Url: link, Status: res.StatusCode(), Reason: statusReason(res)}
		c.tel.ReportBroken(report_client_results_page, err)
		return "", err
	}
	return string(res.Body()), nil
}

// DumpResultsPage writes the results page to `path`, or to a file named after the
// current time in the working directory when `path` is empty, and returns the path written to.
func (c *Client) DumpResultsPage(ctx context.Context, path string) (string, error) {
	html, err := c.ResultsPage(ctx)
	if err != nil {
		return "", err
	}

	if path == "" {
		timestamp := c.time.Now().Format("2006-01-02T15:04:05.000000")
		path = strings.ReplaceAll(timestamp, ":", "-") + ".html"
	}
	err = os.WriteFile(path, []byte(html), 0644)
	if err != nil {
		c.tel.ReportBroken(report_client_results_page, fmt.Errorf("write %s: %w", path, err))
		return "", err
	}
	return path, nil
}
