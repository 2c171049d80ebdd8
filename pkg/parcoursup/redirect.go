package parcoursup

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"

	"parcoursup-client/internal/components/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// page is a fetched and parsed html document along with the url it was finally served from.
type page struct {
	url  *url.URL
	body []byte
	doc  *goquery.Document
}

func newPage(res *resty.Response) (page, error) {
	var pageUrl *url.URL
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		pageUrl = res.RawResponse.Request.URL
	} else {
		parsed, err := url.Parse(res.Request.URL)
		if err != nil {
			return page{}, err
		}
		pageUrl = parsed
	}

	body := res.Body()
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		return page{}, err
	}
	return page{url: pageUrl, body: body, doc: doc}, nil
}

func fetchPage(ctx context.Context, http *resty.Client, link string) (page, error) {
	res, err := http.R().
		SetContext(ctx).
		Get(link)
	if err != nil {
		return page{}, &ProtocolError{Url: link, Msg: "fetch page", Err: err}
	}
	p, err := newPage(res)
	if err != nil {
		return page{}, &ProtocolError{Url: link, Msg: "parse page", Err: err}
	}
	return p, nil
}

var onloadTargetRegex = regexp.MustCompile(`window\.location='([^']*)'`)

// redirectResolver follows the client side redirects the portal issues through
// `<body onload="window.location='...'">` until a page without one is reached.
type redirectResolver struct {
	http    *resty.Client
	maxHops int
	tel     telemetry.API
}

func (r redirectResolver) Resolve(ctx context.Context, current page) (page, error) {
	for hops := 0; ; hops++ {
		onload := current.doc.Find("body").First().AttrOr("onload", "")
		if onload == "" {
			return current, nil
		}

		groups := onloadTargetRegex.FindStringSubmatch(onload)
		if len(groups) < 2 {
			err := &ProtocolError{
				Url: current.url.String(),
				Msg: fmt.Sprintf("onload without a window.location target: %q", onload),
			}
			r.tel.ReportBroken(report_redirects_resolve, err)
			return page{}, err
		}

		if hops >= r.maxHops {
			err := &ProtocolError{
				Url: current.url.String(),
				Msg: fmt.Sprintf("exceeded %d client side redirects", r.maxHops),
			}
			r.tel.ReportBroken(report_redirects_resolve, err)
			return page{}, err
		}

		target, err := current.url.Parse(groups[1])
		if err != nil {
			err := &ProtocolError{Url: current.url.String(), Msg: "invalid redirect target", Err: err}
			r.tel.ReportBroken(report_redirects_resolve, err)
			return page{}, err
		}
		r.tel.ReportDebug(report_redirects_resolve, hops+1, target.String())

		current, err = fetchPage(ctx, r.http, target.String())
		if err != nil {
			r.tel.ReportBroken(report_redirects_resolve, err)
			return page{}, err
		}
	}
}
