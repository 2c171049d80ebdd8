package parcoursup

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"parcoursup-client/internal/components/chrono"
	"parcoursup-client/internal/components/telemetry"
)

const loginFormHtml = `<html><body>
<form name="accesdossier" method="post" action="authentification">
	<input type="hidden" name="ACTION" value="1">
	<input type="hidden" name="g_cn_cod" value="">
	<input type="hidden" name="csrf" value="abc123">
	<input type="checkbox" name="remember">
	<input type="submit" value="Connexion">
</form>
</body></html>`

// fakePortal serves both the desktop portal and the mobile api from a single server.
//
// desktop: /Candidat/authentification -> (onload hops through /redirect/N) -> /Portail/authentification
// mobile: /mobile/token, /mobile/login, /mobile/voeux, /mobile/voeux/{id}
type fakePortal struct {
	server *httptest.Server

	redirectHops int
	// entryHost makes the entry page redirect to the same path on another host (host:port)
	entryHost    string
	formPresent  bool
	loginStatus  int

	tokenStatus  int
	tokenBody    string
	mobileStatus int
	dropHeader   string
	wishes       []string
	wishStatus   int

	mutex        sync.Mutex
	hits         map[string]int
	loginForm    url.Values
	tokenRequest map[string]any
	loginRequest map[string]any
	wishHeaders  http.Header
}

func newFakePortal(t *testing.T) *fakePortal {
	f := &fakePortal{
		formPresent:  true,
		loginStatus:  http.StatusOK,
		tokenStatus:  http.StatusOK,
		tokenBody:    `{"tokenId": "tok-42"}`,
		mobileStatus: http.StatusOK,
		wishStatus:   http.StatusOK,
		hits:         map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /Candidat/authentification", f.entry)
	mux.HandleFunc("GET /redirect/{n}", f.redirect)
	mux.HandleFunc("GET /Portail/authentification", f.loginPage)
	mux.HandleFunc("POST /Portail/authentification", f.submitLogin)
	mux.HandleFunc("GET /Portail/admissions", f.admissions)
	mux.HandleFunc("POST /mobile/token", f.token)
	mux.HandleFunc("POST /mobile/login", f.login)
	mux.HandleFunc("GET /mobile/voeux", f.listWishes)
	mux.HandleFunc("GET /mobile/voeux/{id}", f.getWish)

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakePortal) hit(r *http.Request) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.hits[r.Method+" "+r.URL.Path]++
}

func (f *fakePortal) hitCount(key string) int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.hits[key]
}

func (f *fakePortal) totalHits() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	total := 0
	for _, n := range f.hits {
		total += n
	}
	return total
}

// localhostAddr is the server address with "localhost" instead of the ip it listens on.
func (f *fakePortal) localhostAddr() string {
	_, port, _ := net.SplitHostPort(f.server.Listener.Addr().String())
	return net.JoinHostPort("localhost", port)
}

func (f *fakePortal) options() Options {
	return Options{
		DesktopBaseUrl:    f.server.URL + "/Candidat/",
		MobileBaseUrl:     f.server.URL + "/mobile/",
		TimeoutSeconds:    5,
		RequestsPerSecond: -1,
	}.withDefaults()
}

func (f *fakePortal) clientOptions() ClientOptions {
	return ClientOptions{
		Username:  "1234567",
		Password:  "hunter2",
		Options:   f.options(),
		Telemetry: &telemetry.Recorder{},
		Time:      chrono.FixedTime{At: time.Date(2024, time.June, 3, 10, 0, 0, 0, chrono.Paris())},
	}
}

func onloadPage(target string) string {
	return fmt.Sprintf(`<html><body onload="window.location='%s'">redirection...</body></html>`, target)
}

func (f *fakePortal) entry(w http.ResponseWriter, r *http.Request) {
	f.hit(r)
	if f.entryHost != "" && r.Host != f.entryHost {
		http.Redirect(w, r, "http://"+f.entryHost+r.URL.Path, http.StatusFound)
		return
	}
	if f.redirectHops == 0 {
		fmt.Fprint(w, onloadPage("/Portail/authentification"))
		return
	}
	fmt.Fprint(w, onloadPage("/redirect/1"))
}

func (f *fakePortal) redirect(w http.ResponseWriter, r *http.Request) {
	f.hit(r)
	var n int
	fmt.Sscanf(r.PathValue("n"), "%d", &n)
	if n >= f.redirectHops {
		fmt.Fprint(w, onloadPage("/Portail/authentification"))
		return
	}
	fmt.Fprint(w, onloadPage(fmt.Sprintf("/redirect/%d", n+1)))
}

func (f *fakePortal) loginPage(w http.ResponseWriter, r *http.Request) {
	f.hit(r)
	if !f.formPresent {
		fmt.Fprint(w, `<html><body><p>La plateforme est fermée.</p></body></html>`)
		return
	}
	fmt.Fprint(w, loginFormHtml)
}

func (f *fakePortal) submitLogin(w http.ResponseWriter, r *http.Request) {
	f.hit(r)
	err := r.ParseForm()
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.mutex.Lock()
	f.loginForm = r.PostForm
	f.mutex.Unlock()

	if f.loginStatus != http.StatusOK {
		w.WriteHeader(f.loginStatus)
		return
	}
	if r.PostForm.Get("g_cn_mot_pas") == "hunter2" {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "ok", Path: "/"})
	}
	fmt.Fprint(w, `<html><body>bienvenue</body></html>`)
}

func (f *fakePortal) admissions(w http.ResponseWriter, r *http.Request) {
	f.hit(r)
	cookie, err := r.Cookie("session")
	if err != nil || cookie.Value != "ok" {
		fmt.Fprint(w, loginFormHtml)
		return
	}
	fmt.Fprint(w, "<html><body><h1>Admissions</h1></body></html>\n")
}

func decodeJsonBody(r *http.Request) map[string]any {
	out := map[string]any{}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return out
	}
	json.Unmarshal(body, &out)
	out["_content_type"] = r.Header.Get("Content-Type")
	return out
}

func (f *fakePortal) token(w http.ResponseWriter, r *http.Request) {
	f.hit(r)
	body := decodeJsonBody(r)
	f.mutex.Lock()
	f.tokenRequest = body
	f.mutex.Unlock()

	w.WriteHeader(f.tokenStatus)
	fmt.Fprint(w, f.tokenBody)
}

func (f *fakePortal) login(w http.ResponseWriter, r *http.Request) {
	f.hit(r)
	body := decodeJsonBody(r)
	f.mutex.Lock()
	f.loginRequest = body
	f.mutex.Unlock()

	headers := map[string]string{
		"X-Auth-Token":  "auth-token",
		"Authorization": "Bearer jwt",
		"X-Auth-Login":  "1234567",
	}
	for name, value := range headers {
		if name == f.dropHeader {
			continue
		}
		w.Header().Set(name, value)
	}
	w.WriteHeader(f.mobileStatus)
	fmt.Fprint(w, `{}`)
}

func (f *fakePortal) recordWishRequest(r *http.Request) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.wishHeaders = r.Header.Clone()
}

func (f *fakePortal) listWishes(w http.ResponseWriter, r *http.Request) {
	f.hit(r)
	f.recordWishRequest(r)
	if r.URL.Query().Get("liste") != "tous" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if f.wishStatus != http.StatusOK {
		w.WriteHeader(f.wishStatus)
		return
	}
	fmt.Fprint(w, `{"voeux": [`)
	for i, wish := range f.wishes {
		if i > 0 {
			fmt.Fprint(w, ",")
		}
		fmt.Fprint(w, wish)
	}
	fmt.Fprint(w, `]}`)
}

func (f *fakePortal) getWish(w http.ResponseWriter, r *http.Request) {
	f.hit(r)
	f.recordWishRequest(r)
	if f.wishStatus != http.StatusOK {
		w.WriteHeader(f.wishStatus)
		return
	}
	for _, wish := range f.wishes {
		var probe struct {
			Id Identifier `json:"voeuId"`
		}
		json.Unmarshal([]byte(wish), &probe)
		if string(probe.Id) == r.PathValue("id") {
			fmt.Fprintf(w, `{"voeu": %s}`, wish)
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (f *fakePortal) lastLoginForm() url.Values {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.loginForm
}

func (f *fakePortal) lastTokenRequest() map[string]any {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.tokenRequest
}

func (f *fakePortal) lastLoginRequest() map[string]any {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.loginRequest
}

func (f *fakePortal) lastWishHeaders() http.Header {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.wishHeaders
}
