// Package koji is a minimal Koji hub XML-RPC client covering the calls
// causeway needs: session handling, build and tag queries, tagging and
// content generator imports.
package koji

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kolo/xmlrpc"
)

// DefaultUploadChunkSize is the number of bytes sent per uploadFile call.
const DefaultUploadChunkSize = 1 << 20

// ErrNoCredentials is returned by Login when neither a client certificate
// nor a user name is configured.
var ErrNoCredentials = errors.New("no koji credentials configured")

// Config holds Koji hub connection settings.
type Config struct {
	HubURL          string
	ClientCert      string
	ClientKey       string
	CACert          string
	Username        string
	Password        string
	Timeout         time.Duration
	UploadChunkSize int
}

// Client talks to a Koji hub.
type Client struct {
	hubURL    string
	hc        *http.Client
	sslLogin  bool
	username  string
	password  string
	chunkSize int
	logger    *slog.Logger
}

// NewClient creates a Koji client. TLS client authentication is used when a
// certificate is configured, password login otherwise.
func NewClient(cfg *Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HubURL == "" {
		return nil, fmt.Errorf("koji hub URL is required")
	}

	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.CACert != "" {
		pem, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("reading koji CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.CACert)
		}
		tlsCfg.RootCAs = pool
	}
	if cfg.ClientCert != "" {
		keyFile := cfg.ClientKey
		if keyFile == "" {
			keyFile = cfg.ClientCert
		}
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, keyFile)
		if err != nil {
			return nil, fmt.Errorf("loading koji client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Minute
	}
	chunk := cfg.UploadChunkSize
	if chunk <= 0 {
		chunk = DefaultUploadChunkSize
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsCfg

	return &Client{
		hubURL:    strings.TrimRight(cfg.HubURL, "/"),
		hc:        &http.Client{Transport: transport, Timeout: timeout},
		sslLogin:  cfg.ClientCert != "",
		username:  cfg.Username,
		password:  cfg.Password,
		chunkSize: chunk,
		logger:    logger,
	}, nil
}

// NewClientWithHTTP creates a Koji client using password login over hc.
func NewClientWithHTTP(hubURL, username, password string, hc *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		hubURL:    strings.TrimRight(hubURL, "/"),
		hc:        hc,
		username:  username,
		password:  password,
		chunkSize: DefaultUploadChunkSize,
		logger:    logger,
	}
}

// Login opens a session and resolves the logged in user.
func (c *Client) Login(ctx context.Context) (*Session, error) {
	var reply any
	var err error
	switch {
	case c.sslLogin:
		err = c.invoke(ctx, c.hubURL+"/ssllogin", "sslLogin", &reply)
	case c.username != "":
		err = c.invoke(ctx, c.hubURL, "login", &reply, c.username, c.password)
	default:
		return nil, ErrNoCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}

	m := asMap(reply)
	if m == nil {
		return nil, fmt.Errorf("logging in: hub returned no session")
	}
	s := &Session{
		ID:  asInt(m["session-id"]),
		Key: asString(m["session-key"]),
	}

	var user any
	if err := c.call(ctx, s, "getLoggedInUser", &user); err != nil {
		return nil, fmt.Errorf("getting logged in user: %w", err)
	}
	s.User = toUserInfo(asMap(user))
	c.logger.Debug("koji session opened", "session_id", s.ID)
	return s, nil
}

// Logout closes the session.
func (c *Client) Logout(ctx context.Context, s *Session) error {
	if err := c.call(ctx, s, "logout", nil); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	c.logger.Debug("koji session closed", "session_id", s.ID)
	return nil
}

// GetBuild returns the build identified by ref, an int build id or an NVR
// string. It returns nil when the build does not exist.
func (c *Client) GetBuild(ctx context.Context, s *Session, ref any) (*BuildInfo, error) {
	var reply any
	if err := c.call(ctx, s, "getBuild", &reply, ref); err != nil {
		return nil, fmt.Errorf("getting build %v: %w", ref, err)
	}
	return toBuildInfo(asMap(reply)), nil
}

// GetTag returns the named tag or nil when it does not exist.
func (c *Client) GetTag(ctx context.Context, s *Session, tag string) (*TagInfo, error) {
	var reply any
	if err := c.call(ctx, s, "getTag", &reply, tag); err != nil {
		return nil, fmt.Errorf("getting tag %s: %w", tag, err)
	}
	return toTagInfo(asMap(reply)), nil
}

// ListTags returns the tags a build is tagged into.
func (c *Client) ListTags(ctx context.Context, s *Session, buildID int) ([]*TagInfo, error) {
	var reply any
	if err := c.call(ctx, s, "listTags", &reply, buildID); err != nil {
		return nil, fmt.Errorf("listing tags of build %d: %w", buildID, err)
	}
	items, _ := reply.([]any)
	tags := make([]*TagInfo, 0, len(items))
	for _, item := range items {
		if t := toTagInfo(asMap(item)); t != nil {
			tags = append(tags, t)
		}
	}
	return tags, nil
}

// PackageListAdd adds a package to a tag's package list.
func (c *Client) PackageListAdd(ctx context.Context, s *Session, tag, pkg, owner string) error {
	if err := c.call(ctx, s, "packageListAdd", nil, tag, pkg, owner); err != nil {
		return fmt.Errorf("adding package %s to tag %s: %w", pkg, tag, err)
	}
	return nil
}

// TagBuild tags a build into tag.
func (c *Client) TagBuild(ctx context.Context, s *Session, tag, nvr string) error {
	if err := c.call(ctx, s, "tagBuild", nil, tag, nvr); err != nil {
		return fmt.Errorf("tagging build %s into %s: %w", nvr, tag, err)
	}
	return nil
}

// UntagBuild removes a build from tag.
func (c *Client) UntagBuild(ctx context.Context, s *Session, tag, nvr string) error {
	if err := c.call(ctx, s, "untagBuild", nil, tag, nvr); err != nil {
		return fmt.Errorf("untagging build %s from %s: %w", nvr, tag, err)
	}
	return nil
}

// call invokes a session bound method.
func (c *Client) call(ctx context.Context, s *Session, method string, reply any, args ...any) error {
	q := url.Values{}
	q.Set("session-id", strconv.Itoa(s.ID))
	q.Set("session-key", s.Key)
	q.Set("callnum", strconv.FormatInt(s.nextCall(), 10))
	return c.invoke(ctx, c.hubURL+"?"+q.Encode(), method, reply, args...)
}

var nilResponse = regexp.MustCompile(`<params>\s*<param>\s*<value>\s*<nil\s*/>\s*</value>`)

// invoke performs one XML-RPC request against target.
func (c *Client) invoke(ctx context.Context, target, method string, reply any, args ...any) error {
	body, err := xmlrpc.EncodeMethodCall(method, args...)
	if err != nil {
		return fmt.Errorf("encoding %s call: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml")

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status code: %d", method, resp.StatusCode)
	}

	response := xmlrpc.Response(data)
	if err := response.Err(); err != nil {
		var fault xmlrpc.FaultError
		if errors.As(err, &fault) {
			return &Fault{Code: fault.Code, Message: fault.String}
		}
		return err
	}
	if reply == nil || nilResponse.Match(data) {
		return nil
	}
	if err := response.Unmarshal(reply); err != nil {
		return fmt.Errorf("decoding %s response: %w", method, err)
	}
	return nil
}
