package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"parcoursup-client/internal/components/assert"

	"github.com/go-resty/resty/v2"
)

const (
	report_http_request  = "http.request"
	report_http_response = "http.response"
	report_http_error    = "http.error"
)

type exchangeKey struct{}

// exchange identifies one request/response pair across resty hooks.
type exchange struct {
	seq     uint64
	started time.Time
}

func exchangeOf(ctx context.Context) (exchange, bool) {
	if ctx == nil {
		return exchange{}, false
	}
	ex, ok := ctx.Value(exchangeKey{}).(exchange)
	return ex, ok
}

type restyReporter struct {
	tel API
	seq atomic.Uint64
}

// InstrumentResty reports every request made by `client` through `tel` as debug
// reports and every transport failure as broken. It must be called before any
// other OnBeforeRequest hook is registered so a failing hook still has a sequence number.
func InstrumentResty(client *resty.Client, tel API) {
	assert.NotNil(tel, "tel")
	r := &restyReporter{tel: tel}
	client.OnBeforeRequest(r.before)
	client.OnAfterResponse(r.after)
	client.OnError(r.failed)
}

func (r *restyReporter) before(_ *resty.Client, req *resty.Request) error {
	ex := exchange{seq: r.seq.Add(1), started: time.Now()}
	req.SetContext(context.WithValue(req.Context(), exchangeKey{}, ex))
	r.tel.ReportDebug(report_http_request, ex.seq, req.Method, req.URL)
	return nil
}

func (r *restyReporter) after(_ *resty.Client, res *resty.Response) error {
	ex, ok := exchangeOf(res.Request.Context())
	if !ok {
		r.tel.ReportDebug(report_http_response, res.Request.Method, res.Request.URL, res.Status())
		return nil
	}
	r.tel.ReportDebug(
		report_http_response,
		ex.seq,
		res.Status(),
		len(res.Body()),
		time.Since(ex.started).Round(time.Millisecond).String(),
	)
	return nil
}

func (r *restyReporter) failed(req *resty.Request, err error) {
	ex, ok := exchangeOf(req.Context())
	if !ok {
		r.tel.ReportBroken(report_http_error, err, req.Method, req.URL)
		return
	}
	r.tel.ReportBroken(report_http_error, err, ex.seq, req.Method, req.URL, time.Since(ex.started))
}
