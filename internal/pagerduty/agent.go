package pagerduty

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"pagerduty-tools/internal/assert"
	"pagerduty-tools/internal/components/telemetry"
	"pagerduty-tools/internal/sessionstore"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

	defaultTimeout   = time.Second * 30
	maxLoginAttempts = 2
)

// Response is a page fetched from the dashboard.
type Response struct {
	Status int
	Body   []byte
	// Url is where the request ended up after redirects.
	Url string
}

// Fetcher performs authenticated GET requests against the dashboard.
type Fetcher interface {
	Fetch(ctx context.Context, path string) (Response, error)
}

type AgentOptions struct {
	// BaseUrl is the dashboard, ex. https://acme.pagerduty.com
	BaseUrl     string
	Store       sessionstore.Store
	Credentials CredentialSource
	Layout      Layout

	// ForceLogin ignores the stored session and logs in before the first fetch.
	ForceLogin bool
	// BrowserTransport makes the TLS handshake look like a browser's.
	BrowserTransport bool
	// Timeout is per request, defaults to 30 seconds.
	Timeout time.Duration
	// RateLimit is how many requests are made per second at most, defaults to 2.
	RateLimit rate.Limit
}

// Agent is a logged in session with the dashboard.
type Agent struct {
	baseUrl *url.URL
	http    *resty.Client
	jar     http.CookieJar
	store   sessionstore.Store
	creds   CredentialSource
	layout  Layout
	tel     telemetry.API

	forceLogin bool
	loggedIn   bool
	// who logged in during this run, and on which attempt
	loginEmail    string
	loginAttempts int
}

// NewAgent restores the session stored for the dashboard's host, if there is one.
// It does not make any request.
func NewAgent(ctx context.Context, opts AgentOptions, tel telemetry.API) (*Agent, error) {
	assert.NotNil(opts.Store)
	assert.NotNil(opts.Credentials)
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("pagerduty", tel)

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	if baseUrl.Scheme == "" || baseUrl.Host == "" {
		return nil, fmt.Errorf("dashboard url %q must be absolute", opts.BaseUrl)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	limit := opts.RateLimit
	if limit == 0 {
		limit = 2
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(baseUrl.String(), "/"))
	client.SetCookieJar(jar)
	if opts.BrowserTransport {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	client.SetHeader("user-agent", userAgent)
	client.SetRedirectPolicy(
		resty.FlexibleRedirectPolicy(10),
		resty.DomainCheckRedirectPolicy(baseUrl.Hostname()),
	)
	client.SetTimeout(timeout)

	// max burst >= 2 just means that no requests will be dropped
	rateLimiter := rate.NewLimiter(limit, 2)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(client, tel)

	a := &Agent{
		baseUrl:    baseUrl,
		http:       client,
		jar:        jar,
		store:      opts.Store,
		creds:      opts.Credentials,
		layout:     opts.Layout.WithDefaults(),
		tel:        tel,
		forceLogin: opts.ForceLogin,
	}
	if !opts.ForceLogin {
		a.restoreSession(ctx)
	}
	return a, nil
}

func (a *Agent) Host() string {
	return a.baseUrl.Host
}

func (a *Agent) restoreSession(ctx context.Context) {
	cookies, err := a.store.Load(ctx, a.Host())
	if errors.Is(err, sessionstore.ErrNotFound) {
		a.tel.ReportDebug("no stored session", a.Host())
		return
	}
	if err != nil {
		// an unreadable session only costs a fresh login
		a.tel.ReportWarning(report_agent_restore_session, err)
		return
	}
	a.jar.SetCookies(a.baseUrl, cookies)
	a.tel.ReportDebug("restored session", a.Host(), len(cookies))
}

func (a *Agent) saveSession(ctx context.Context) {
	err := a.store.Save(ctx, a.Host(), a.jar.Cookies(a.baseUrl))
	if err != nil {
		a.tel.ReportWarning(report_agent_save_session, err)
	}
}

// dropSession forgets every cookie of the host, here and in the store, so a
// stale session is never sent along with a login form.
func (a *Agent) dropSession(ctx context.Context) error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	a.jar = jar
	a.http.SetCookieJar(jar)
	a.loggedIn = false

	err = a.store.Clear(ctx, a.Host())
	if err != nil && !errors.Is(err, sessionstore.ErrNotFound) {
		a.tel.ReportWarning(report_agent_clear_session, err)
	}
	return nil
}

func (a *Agent) sessionRejected() error {
	return &AuthenticationError{
		Attempts:        a.loginAttempts,
		Email:           a.loginEmail,
		SessionRejected: true,
	}
}

func (a *Agent) get(ctx context.Context, path string) (*resty.Response, error) {
	res, err := a.http.R().
		SetContext(ctx).
		Get(path)
	if err != nil {
		a.tel.ReportBroken(report_agent_fetch, fmt.Errorf("fetch: %w", err), path)
		return nil, err
	}
	return res, nil
}

func finalUrl(res *resty.Response) *url.URL {
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		return res.RawResponse.Request.URL
	}
	parsed, _ := url.Parse(res.Request.URL)
	return parsed
}

// isLoginPage checks whether the dashboard answered with its login page
// instead of what was asked for.
func (a *Agent) isLoginPage(res *resty.Response) bool {
	if res.StatusCode() == http.StatusUnauthorized {
		return true
	}
	if u := finalUrl(res); u != nil && u.Path == a.layout.LoginPath {
		return true
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return false
	}
	return doc.Find(a.layout.LoginForm).Length() > 0
}

// Fetch GETs a page of the dashboard, logging in first if the session was rejected.
func (a *Agent) Fetch(ctx context.Context, path string) (Response, error) {
	ctx, span := tracer.Start(ctx, "agent:Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("pagerduty.path", path))

	if a.forceLogin && !a.loggedIn {
		err := a.Login(ctx)
		if err != nil {
			span.SetStatus(codes.Error, "failed to login")
			return Response{}, err
		}
	}

	res, err := a.get(ctx, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch")
		return Response{}, err
	}

	if a.isLoginPage(res) {
		if a.loggedIn {
			// logged in during this run and still bounced
			span.SetStatus(codes.Error, "session rejected after login")
			return Response{}, a.sessionRejected()
		}
		a.tel.ReportDebug("session rejected, logging in", path)

		err = a.Login(ctx)
		if err != nil {
			span.SetStatus(codes.Error, "failed to login")
			return Response{}, err
		}
		res, err = a.get(ctx, path)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch after login")
			return Response{}, err
		}
		if a.isLoginPage(res) {
			span.SetStatus(codes.Error, "session rejected after login")
			return Response{}, a.sessionRejected()
		}
	}
	fetchCounter.Add(ctx, 1)

	out := Response{
		Status: res.StatusCode(),
		Body:   res.Body(),
	}
	if u := finalUrl(res); u != nil {
		out.Url = u.String()
	}
	return out, nil
}

// Login submits credentials to the dashboard's login form. A rejected login is
// tried once more with credentials asked for again, then fails with an
// AuthenticationError. Whatever session was held before is dropped first, the
// new one is stored once accepted.
func (a *Agent) Login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "agent:Login")
	defer span.End()

	var lastEmail string
	for attempt := 1; attempt <= maxLoginAttempts; attempt++ {
		creds, err := a.creds.Credentials(ctx, attempt)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to get credentials")
			return fmt.Errorf("pagerduty: login: %w", err)
		}
		lastEmail = creds.Email

		err = a.dropSession(ctx)
		if err != nil {
			return fmt.Errorf("pagerduty: login: %w", err)
		}
		accepted, err := a.submitLogin(ctx, creds)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to submit login")
			return fmt.Errorf("pagerduty: login: %w", err)
		}
		loginCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("pagerduty.accepted", accepted)))
		if accepted {
			a.loggedIn = true
			a.loginEmail = creds.Email
			a.loginAttempts = attempt
			a.saveSession(ctx)
			return nil
		}
		a.tel.ReportWarning(report_agent_login, "login rejected", creds.Email, attempt)
	}

	span.SetStatus(codes.Error, ErrAuthentication.Error())
	return &AuthenticationError{Attempts: maxLoginAttempts, Email: lastEmail}
}

func (a *Agent) submitLogin(ctx context.Context, creds Credentials) (accepted bool, err error) {
	res, err := a.get(ctx, a.layout.LoginPath)
	if err != nil {
		return false, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		a.tel.ReportBroken(report_agent_login, fmt.Errorf("parse login page: %w", err))
		return false, err
	}

	form := doc.Find(a.layout.LoginForm).First()
	if form.Length() == 0 {
		err := &ParseError{
			Page:   "login",
			Reason: fmt.Sprintf("no login form matches %q", a.layout.LoginForm),
		}
		a.tel.ReportBroken(report_agent_login, err)
		return false, err
	}

	// hidden inputs carry the csrf token
	fields := map[string]string{}
	form.Find("input[type=hidden]").Each(func(_ int, input *goquery.Selection) {
		name := input.AttrOr("name", "")
		if name != "" {
			fields[name] = input.AttrOr("value", "")
		}
	})
	fields[a.layout.EmailField] = creds.Email
	fields[a.layout.PasswordField] = creds.Password

	action := form.AttrOr("action", "")
	if action == "" {
		action = a.layout.LoginPath
	}
	trace.SpanFromContext(ctx).AddEvent("submit login form", trace.WithAttributes(
		attribute.String("pagerduty.login_action", action),
		attribute.Int("pagerduty.login_fields", len(fields)),
	))

	res, err = a.http.R().
		SetContext(ctx).
		SetFormData(fields).
		Post(action)
	if err != nil {
		a.tel.ReportBroken(report_agent_login, fmt.Errorf("login request: %w", err))
		return false, err
	}
	if res.StatusCode() >= 500 {
		err := fmt.Errorf("login request returned status %d", res.StatusCode())
		a.tel.ReportBroken(report_agent_login, err)
		return false, err
	}
	// ex. 422 for a stale authenticity token, or 403
	if res.StatusCode() >= 400 {
		a.tel.ReportDebug("login form refused", res.StatusCode())
		return false, nil
	}

	return !a.isLoginPage(res), nil
}
