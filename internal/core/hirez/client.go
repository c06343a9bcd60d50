// Package hirez is a client for the Hi-Rez game statistics API used by Smite
// and Paladins. Every call except ping is signed and carries a session token
// that the client acquires lazily.
package hirez

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/charybdis/charybdis/internal/core"
	"github.com/charybdis/charybdis/internal/core/engine"
)

// Method names with special handling.
const (
	MethodPing          = "ping"
	MethodCreateSession = "createsession"
	MethodTestSession   = "testsession"
)

// Defaults applied by New.
const (
	DefaultTimeout = 10 * time.Second
	DefaultWorkers = 4
)

// Environment variables read by DefaultOptions.
const (
	EnvDevID   = "SMITE_DEV_ID"
	EnvAuthKey = "SMITE_AUTH_KEY"
)

// Logger is the subset of the application logger the client writes to.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
}

// Observer receives call measurements.
type Observer interface {
	ObserveRequest(method string, statusCode int, duration time.Duration, err error)
	ObserveWait(method string, wait time.Duration)
	ObserveSession(created bool)
}

// SessionStore persists session tokens between client instances.
type SessionStore interface {
	LoadSession(ctx context.Context, key string) (*core.Session, error)
	SaveSession(ctx context.Context, key string, session *core.Session) error
}

// Options configures a Client.
type Options struct {
	DevID   string
	AuthKey string

	// BaseURL defaults to SmitePCURL.
	BaseURL string

	// Delay is the minimum spacing between signed calls. Zero disables rate
	// limiting.
	Delay time.Duration

	// HTTPClient overrides the client built from Timeout and
	// InsecureSkipVerify.
	HTTPClient         *http.Client
	Timeout            time.Duration
	InsecureSkipVerify bool

	// SessionTTL renews the session once it is this old. Zero keeps a session
	// until the process exits.
	SessionTTL time.Duration

	// Workers bounds concurrently running asynchronous calls.
	Workers int

	Sessions       SessionStore
	RateLimitStore engine.RateLimitStore
	Logger         Logger
	Observer       Observer
	Clock          func() time.Time
}

// DefaultOptions returns options for the Smite PC endpoint with credentials
// taken from SMITE_DEV_ID and SMITE_AUTH_KEY.
func DefaultOptions() Options {
	return Options{
		DevID:   os.Getenv(EnvDevID),
		AuthKey: os.Getenv(EnvAuthKey),
		BaseURL: SmitePCURL,
		Delay:   engine.DefaultDelay,
		Timeout: DefaultTimeout,
		Workers: DefaultWorkers,
	}
}

// Client calls the Hi-Rez API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	devID      string
	signer     Signer
	httpClient *http.Client
	limiter    *engine.RateLimiter
	sessionTTL time.Duration
	workers    int
	store      SessionStore
	logger     Logger
	observer   Observer
	clock      func() time.Time

	sessionMu     sync.Mutex
	session       *core.Session
	sessionLoaded bool
	sessionGroup  singleflight.Group

	asyncMu sync.RWMutex
	group   *errgroup.Group
}

// New validates the credentials and builds a client.
func New(opts Options) (*Client, error) {
	devID := strings.TrimSpace(opts.DevID)
	authKey := strings.TrimSpace(opts.AuthKey)
	if devID == "" || authKey == "" {
		return nil, ErrMissingCredentials
	}

	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = SmitePCURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient, err = NewHTTPClient(timeout, opts.InsecureSkipVerify)
		if err != nil {
			return nil, err
		}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	c := &Client{
		baseURL:    baseURL,
		devID:      devID,
		signer:     Signer{DevID: devID, AuthKey: authKey},
		httpClient: httpClient,
		sessionTTL: opts.SessionTTL,
		workers:    workers,
		store:      opts.Sessions,
		logger:     opts.Logger,
		observer:   opts.Observer,
		clock:      opts.Clock,
	}
	c.limiter = &engine.RateLimiter{
		Delay:    opts.Delay,
		Store:    opts.RateLimitStore,
		Endpoint: parsed.Host,
		Clock:    opts.Clock,
	}

	return c, nil
}

// BaseURL returns the API deployment the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// DevID returns the developer id the client signs with.
func (c *Client) DevID() string {
	return c.devID
}

// Limiter exposes the client's spacing ledger.
func (c *Client) Limiter() *engine.RateLimiter {
	return c.limiter
}

// Ping checks that the API is reachable. It is neither signed, rate limited
// nor does it require a session.
func (c *Client) Ping(ctx context.Context) (string, error) {
	body, err := c.ping(ctx)
	if err != nil {
		return "", err
	}
	return pingText(body), nil
}

// CallMethod calls an API method, creating a session first if none is
// cached, and returns the raw JSON response.
func (c *Client) CallMethod(ctx context.Context, method string, args ...string) (json.RawMessage, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	method = normalizeMethod(method)
	if method == "" {
		return nil, errors.New("hirez: method name is required")
	}
	if strings.EqualFold(method, MethodPing) {
		body, err := c.ping(ctx)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(body), nil
	}
	if strings.EqualFold(method, MethodCreateSession) {
		_, raw, err := c.createSession(ctx)
		return raw, err
	}

	sessionID, err := c.SessionID(ctx)
	if err != nil {
		return nil, err
	}
	return c.invoke(ctx, method, sessionID, args)
}

// CallMethodObject calls a method whose response must be a JSON object.
func (c *Client) CallMethodObject(ctx context.Context, method string, args ...string) (map[string]any, error) {
	value, err := c.callValue(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, &ShapeError{Method: normalizeMethod(method), Expected: "object", Actual: jsonKind(value)}
	}
	return obj, nil
}

// CallMethodList calls a method whose response must be a JSON array.
func (c *Client) CallMethodList(ctx context.Context, method string, args ...string) ([]any, error) {
	value, err := c.callValue(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	list, ok := value.([]any)
	if !ok {
		return nil, &ShapeError{Method: normalizeMethod(method), Expected: "array", Actual: jsonKind(value)}
	}
	return list, nil
}

// CallMethodInto decodes the response of a method into v.
func (c *Client) CallMethodInto(ctx context.Context, v any, method string, args ...string) error {
	raw, err := c.CallMethod(ctx, method, args...)
	if err != nil {
		return err
	}
	return decodeInto(normalizeMethod(method), raw, v)
}

func (c *Client) callValue(ctx context.Context, method string, args ...string) (any, error) {
	raw, err := c.CallMethod(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, err
	}
	return value, nil
}

// invoke waits for a ledger slot, signs the call for that slot and sends it.
func (c *Client) invoke(ctx context.Context, method, sessionID string, args []string) (json.RawMessage, error) {
	res, err := c.limiter.Wait(ctx)
	if c.observer != nil && res.Wait() > 0 {
		c.observer.ObserveWait(method, res.Wait())
	}
	if err != nil {
		return nil, err
	}

	timestamp := FormatTimestamp(res.ScheduledAt)
	path := buildPath(method, c.devID, c.signer.Sign(method, timestamp), sessionID, timestamp, args)

	callID := uuid.New().String()
	if c.logger != nil {
		c.logger.Debug("Calling Hi-Rez API",
			zap.String("call_id", callID),
			zap.String("method", method),
			zap.Int("args", len(args)),
			zap.Duration("rate_limit_wait", res.Wait()))
	}

	body, err := c.get(ctx, method, path)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("Hi-Rez API call failed",
				zap.String("call_id", callID),
				zap.String("method", method),
				zap.Error(err))
		}
		return nil, err
	}
	if !json.Valid(body) {
		return nil, &ShapeError{Method: method, Expected: "JSON", Actual: "invalid JSON"}
	}
	return json.RawMessage(body), nil
}

func (c *Client) now() time.Time {
	if c != nil && c.clock != nil {
		return c.clock()
	}
	return time.Now().UTC()
}

func normalizeMethod(method string) string {
	return strings.TrimSpace(method)
}
