package parcoursup

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"parcoursup-client/internal/components/chrono"
	"parcoursup-client/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
	"github.com/mazen160/go-random"
)

const (
	tokenSeedLength  = 128
	tokenSeedCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ" +
		"0123456789" +
		"!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
)

const (
	headerAuthToken     = "X-Auth-Token"
	headerAuthorization = "Authorization"
	headerTokenId       = "X-Token-Id"
	headerAuthLogin     = "X-Auth-Login"
)

// mobileSession is the header based session of the mobile api, every request made
// through http carries the four authentication headers.
type mobileSession struct {
	http *resty.Client
}

type mobileAuthenticator struct {
	http *resty.Client
	opts Options
	time chrono.TimeAPI
	tel  telemetry.API
}

func newMobileAuthenticator(opts Options, time chrono.TimeAPI, tel telemetry.API) (mobileAuthenticator, error) {
	httpClient, err := newHttpClient(opts, tel)
	if err != nil {
		return mobileAuthenticator{}, err
	}
	httpClient.SetBaseURL(opts.MobileBaseUrl)

	return mobileAuthenticator{
		http: httpClient,
		opts: opts,
		time: time,
		tel:  tel,
	}, nil
}

type tokenRequest struct {
	AppVersion      string `json:"appVersion"`
	Platform        string `json:"plateforme"`
	PlatformVersion string `json:"plateformeVersion"`
	Session         int    `json:"session"`
	Token           string `json:"token"`
}

type tokenResponse struct {
	TokenId json.RawMessage `json:"tokenId"`
}

type loginRequest struct {
	Code    string          `json:"code"`
	Login   string          `json:"login"`
	TokenId json.RawMessage `json:"tokenId"`
}

// scalarText renders a JSON scalar the api may send either as a string or a number.
func scalarText(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	if strings.HasPrefix(trimmed, `"`) {
		var text string
		err := json.Unmarshal(raw, &text)
		if err != nil {
			return ""
		}
		return text
	}
	return trimmed
}

func (m mobileAuthenticator) postJson(ctx context.Context, path string, body any) (*resty.Response, error) {
	return m.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(path)
}

func (m mobileAuthenticator) fail(err *AuthenticationError) error {
	m.tel.ReportBroken(report_mobile_authenticate, err)
	return err
}

func (m mobileAuthenticator) requestToken(ctx context.Context) (json.RawMessage, string, error) {
	seed, err := random.Random(tokenSeedLength, tokenSeedCharset, false)
	if err != nil {
		return nil, "", m.fail(&AuthenticationError{Step: "token", Msg: "generate token seed", Err: err})
	}

	res, err := m.postJson(ctx, "token", tokenRequest{
		AppVersion:      m.opts.AppVersion,
		Platform:        m.opts.Platform,
		PlatformVersion: m.opts.PlatformVersion,
		Session:         m.time.Now().Year(),
		Token:           seed,
	})
	if err != nil {
		return nil, "", m.fail(&AuthenticationError{Step: "token", Err: err})
	}
	if res.IsError() {
		return nil, "", m.fail(&AuthenticationError{
			Step:   "token",
			Status: res.StatusCode(),
			Reason: statusReason(res),
		})
	}

	var parsed tokenResponse
	err = json.Unmarshal(res.Body(), &parsed)
	if err != nil {
		return nil, "", m.fail(&AuthenticationError{Step: "token", Msg: "decode response", Err: err})
	}
	text := scalarText(parsed.TokenId)
	if text == "" {
		return nil, "", m.fail(&AuthenticationError{Step: "token", Msg: "response has no tokenId"})
	}

	return parsed.TokenId, text, nil
}

// Authenticate issues a token and exchanges it along with the credentials for the
// authentication headers. The headers are only attached to the session once all
// four of them were received.
func (m mobileAuthenticator) Authenticate(ctx context.Context, username, password string) (mobileSession, error) {
	tokenId, tokenIdStr, err := m.requestToken(ctx)
	if err != nil {
		return mobileSession{}, err
	}

	res, err := m.postJson(ctx, "login", loginRequest{
		Code:    password,
		Login:   username,
		TokenId: tokenId,
	})
	if err != nil {
		return mobileSession{}, m.fail(&AuthenticationError{Step: "login", Err: err})
	}
	if res.IsError() {
		return mobileSession{}, m.fail(&AuthenticationError{
			Step:   "login",
			Status: res.StatusCode(),
			Reason: statusReason(res),
		})
	}

	headers := map[string]string{headerTokenId: tokenIdStr}
	for _, name := range []string{headerAuthToken, headerAuthorization, headerAuthLogin} {
		value := res.Header().Get(name)
		if value == "" {
			return mobileSession{}, m.fail(&AuthenticationError{
				Step: "login",
				Msg:  fmt.Sprintf("response has no %s header", name),
			})
		}
		headers[name] = value
	}

	m.http.SetHeaders(headers)
	return mobileSession{http: m.http}, nil
}
