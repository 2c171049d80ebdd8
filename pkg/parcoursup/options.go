package parcoursup

import (
	"net/http/cookiejar"
	"time"

	"parcoursup-client/internal/components/configutil"
	"parcoursup-client/internal/components/telemetry"

	"dario.cat/mergo"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	DefaultDesktopBaseUrl = "https://dossier.parcoursup.fr/Candidat/"
	DefaultMobileBaseUrl  = "https://mobile.parcoursup.fr/NotificationsService/services/"
)

// Options configures both channels of a Client. Zero fields fall back to DefaultOptions.
type Options struct {
	DesktopBaseUrl string `json:"desktop_base_url"`
	MobileBaseUrl  string `json:"mobile_base_url"`
	// TimeoutSeconds bounds every single HTTP request.
	TimeoutSeconds int `json:"timeout_seconds"`
	// MaxRedirects bounds the chain of `<body onload="window.location='...'">` hops.
	MaxRedirects int `json:"max_redirects"`
	// RequestsPerSecond limits each channel, a negative value disables the limit.
	RequestsPerSecond float64 `json:"requests_per_second"`

	AppVersion      string `json:"app_version"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version"`
	UserAgent       string `json:"user_agent"`

	// VerifyDesktopLogin makes the desktop login fetch the results page after
	// submitting credentials and fail if the login form is still served.
	VerifyDesktopLogin bool `json:"verify_desktop_login"`
}

func DefaultOptions() Options {
	return Options{
		DesktopBaseUrl:    DefaultDesktopBaseUrl,
		MobileBaseUrl:     DefaultMobileBaseUrl,
		TimeoutSeconds:    30,
		MaxRedirects:      10,
		RequestsPerSecond: 2,
		AppVersion:        "2.2.1",
		Platform:          "android",
		PlatformVersion:   "12",
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	}
}

func (o Options) withDefaults() Options {
	// mergo only fills zero-valued fields when called without WithOverride
	err := mergo.Merge(&o, DefaultOptions())
	if err != nil {
		panic(err)
	}
	return o
}

// LoadOptions reads Options from a json5 file (and its .local override), missing
// fields are filled with their defaults.
func LoadOptions(path string) (Options, error) {
	opts, err := configutil.ReadConfig[Options](path)
	if err != nil {
		return Options{}, err
	}
	return opts.withDefaults(), nil
}

func (o Options) timeout() time.Duration {
	return time.Duration(o.TimeoutSeconds) * time.Second
}

// newHttpClient creates the resty client shared by the desktop and mobile channels,
// each channel gets its own instance and therefore its own cookie jar and headers.
func newHttpClient(opts Options, tel telemetry.API) (*resty.Client, error) {
	httpClient := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	httpClient.SetTimeout(opts.timeout())
	httpClient.SetHeader("user-agent", opts.UserAgent)

	telemetry.InstrumentResty(httpClient, tel)

	if opts.RequestsPerSecond > 0 {
		// max burst >= 2 just means that no requests will be dropped
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 2)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	return httpClient, nil
}
