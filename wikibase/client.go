// Package wikibase pushes manifest graphs into a Wikibase instance through
// the wikibase-reconcile-edit REST extension and the MediaWiki action API.
package wikibase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/publicsuffix"

	"github.com/c360studio/krawl/transport"
)

// Wire versions of the reconcile-edit extension.
const (
	reconcileVersion = "0.0.1"
	entityVersion    = "0.0.1/minimal"
)

// DefaultReconcileProperty holds the canonical URI of every pushed entity.
const DefaultReconcileProperty = "P1344"

const (
	missingPropertyMessage = "Could not find property"
	labelConflict          = "wikibase-validator-label-conflict"
)

var (
	quotedName     = regexp.MustCompile(`.*'(.*)'`)
	conflictingID  = regexp.MustCompile(`\|(P\d+)\]\]`)
	propertyIDForm = regexp.MustCompile(`^P\d+$`)
)

// NewCookieJar returns the jar the login session lives in.
func NewCookieJar() (http.CookieJar, error) {
	return cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
}

// Client talks to one Wikibase host. The CSRF token is fetched once by
// Authenticate and never refreshed, so a batch outliving the session must be
// restarted. Client is safe for concurrent use after Authenticate.
type Client struct {
	host   string
	http   *transport.Client
	csrf   string
	logger *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets the logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for host. The transport's http.Client needs a
// cookie jar for Authenticate to keep the login session.
func NewClient(host string, httpClient *transport.Client, opts ...ClientOption) *Client {
	c := &Client{
		host:   strings.TrimSuffix(host, "/"),
		http:   httpClient,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) apiURL() string {
	return c.host + "/api.php"
}

func (c *Client) reconcileURL() string {
	return c.host + "/rest.php/wikibase-reconcile-edit/v0/edit?format=json"
}

// BrowseURL returns the page of an item.
func (c *Client) BrowseURL(entityID string) string {
	return BrowseURL(c.host, entityID)
}

// BrowseURL returns the page of an item on host.
func BrowseURL(host, entityID string) string {
	return strings.TrimSuffix(host, "/") + "/index.php?title=Item:" + entityID
}

type tokensResponse struct {
	Query struct {
		Tokens struct {
			LoginToken string `json:"logintoken"`
			CSRFToken  string `json:"csrftoken"`
		} `json:"tokens"`
	} `json:"query"`
}

type loginResponse struct {
	Login struct {
		Result string `json:"result"`
		Reason string `json:"reason"`
	} `json:"login"`
}

// Authenticate logs in with a bot password and fetches the CSRF token. With
// an empty user the login is skipped and the token is fetched for the
// session the transport already carries (for example a bearer token).
func (c *Client) Authenticate(ctx context.Context, user, password string) error {
	if user != "" {
		var tokens tokensResponse
		if err := c.getJSON(ctx, url.Values{"action": {"query"}, "meta": {"tokens"}, "type": {"login"}}, &tokens); err != nil {
			return fmt.Errorf("fetch login token: %w", err)
		}

		resp, err := c.http.PostForm(ctx, c.apiURL(), url.Values{
			"action":     {"login"},
			"lgname":     {user},
			"lgpassword": {password},
			"lgtoken":    {tokens.Query.Tokens.LoginToken},
			"format":     {"json"},
		})
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		var login loginResponse
		if err := decode(resp, &login); err != nil {
			return fmt.Errorf("login: %w", err)
		}
		if login.Login.Result != "Success" {
			return fmt.Errorf("login as %s: %s %s", user, login.Login.Result, login.Login.Reason)
		}
	}

	var tokens tokensResponse
	if err := c.getJSON(ctx, url.Values{"action": {"query"}, "meta": {"tokens"}}, &tokens); err != nil {
		return fmt.Errorf("fetch csrf token: %w", err)
	}
	if tokens.Query.Tokens.CSRFToken == "" {
		return fmt.Errorf("fetch csrf token: empty token")
	}
	c.csrf = tokens.Query.Tokens.CSRFToken
	c.logger.Info("Wikibase session ready", "host", c.host, "user", user)
	return nil
}

func (c *Client) getJSON(ctx context.Context, params url.Values, v any) error {
	params.Set("format", "json")
	resp, err := c.http.Get(ctx, c.apiURL()+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	return decode(resp, v)
}

func decode(resp *transport.Response, v any) error {
	if !resp.OK() {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type reconcileRequest struct {
	Reconcile struct {
		Version      string `json:"wikibasereconcileedit-version"`
		URLReconcile string `json:"urlReconcile"`
	} `json:"reconcile"`
	Entity struct {
		Version    string      `json:"wikibasereconcileedit-version"`
		Statements []Statement `json:"statements"`
	} `json:"entity"`
}

type reconcileResponse struct {
	Success             bool              `json:"success"`
	EntityID            string            `json:"entityId"`
	MessageTranslations map[string]string `json:"messageTranslations"`
}

// Reconcile creates or updates the entity whose reconcileProp statement
// matches. A rejection naming an unknown property yields *SchemaMissingError;
// every other failure yields *ReconcileTransportError.
func (c *Client) Reconcile(ctx context.Context, reconcileProp string, statements []Statement) (string, error) {
	var req reconcileRequest
	req.Reconcile.Version = reconcileVersion
	req.Reconcile.URLReconcile = reconcileProp
	req.Entity.Version = entityVersion
	req.Entity.Statements = statements

	resp, err := c.http.PostJSON(ctx, c.reconcileURL(), req, nil)
	if err != nil {
		return "", &ReconcileTransportError{Err: err}
	}
	if resp.StatusCode == http.StatusInternalServerError {
		return "", &ReconcileTransportError{StatusCode: resp.StatusCode, Message: truncate(string(resp.Body))}
	}

	var body reconcileResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return "", &ReconcileTransportError{StatusCode: resp.StatusCode, Message: "undecodable response"}
	}

	msg := body.MessageTranslations["en"]
	if resp.StatusCode == http.StatusBadRequest && strings.Contains(msg, missingPropertyMessage) {
		if m := quotedName.FindStringSubmatch(msg); m != nil {
			return "", &SchemaMissingError{Property: m[1]}
		}
	}
	if resp.StatusCode == http.StatusOK && body.Success && body.EntityID != "" {
		return body.EntityID, nil
	}
	return "", &ReconcileTransportError{StatusCode: resp.StatusCode, Message: msg}
}

type apiError struct {
	Code     string `json:"code"`
	Info     string `json:"info"`
	Messages []struct {
		Name       string `json:"name"`
		Parameters []any  `json:"parameters"`
	} `json:"messages"`
}

type editEntityResponse struct {
	Entity *struct {
		ID string `json:"id"`
	} `json:"entity"`
	Error *apiError `json:"error"`
}

// CreateProperty creates a property labeled label. When a property with that
// label already exists its id is returned instead.
func (c *Client) CreateProperty(ctx context.Context, label, datatype string) (string, error) {
	if datatype == "" {
		datatype = DatatypeString
	}
	data, err := json.Marshal(map[string]any{
		"labels":   map[string]any{"en": map[string]string{"language": "en", "value": label}},
		"datatype": datatype,
	})
	if err != nil {
		return "", err
	}

	resp, err := c.http.PostForm(ctx, c.apiURL(), url.Values{
		"action": {"wbeditentity"},
		"new":    {"property"},
		"data":   {string(data)},
		"format": {"json"},
		"token":  {c.csrf},
	})
	if err != nil {
		return "", err
	}
	var body editEntityResponse
	if err := decode(resp, &body); err != nil {
		return "", &PropertyCreationError{Property: label, Reason: err.Error()}
	}

	if body.Error != nil {
		if id, ok := conflictingProperty(body.Error); ok {
			c.logger.Debug("Property exists, reusing", "label", label, "id", id)
			return id, nil
		}
		return "", &PropertyCreationError{Property: label, Reason: body.Error.Code + ": " + body.Error.Info}
	}
	if body.Entity == nil || body.Entity.ID == "" {
		return "", &PropertyCreationError{Property: label, Reason: "no entity id in response"}
	}
	c.logger.Info("Created property", "label", label, "id", body.Entity.ID, "datatype", datatype)
	return body.Entity.ID, nil
}

// conflictingProperty extracts the id of the existing property from a label
// conflict. The third message parameter looks like "[[Property:P12|P12]]".
func conflictingProperty(e *apiError) (string, bool) {
	if len(e.Messages) == 0 || e.Messages[0].Name != labelConflict || len(e.Messages[0].Parameters) < 3 {
		return "", false
	}
	link, ok := e.Messages[0].Parameters[2].(string)
	if !ok {
		return "", false
	}
	if parts := strings.Split(link, "|"); len(parts) > 1 && len(parts[1]) > 2 {
		if id := parts[1][:len(parts[1])-2]; propertyIDForm.MatchString(id) {
			return id, true
		}
	}
	if m := conflictingID.FindStringSubmatch(link); m != nil {
		return m[1], true
	}
	return "", false
}

// SetLabel sets the English label of an entity.
func (c *Client) SetLabel(ctx context.Context, entityID, label string) error {
	resp, err := c.http.PostForm(ctx, c.apiURL(), url.Values{
		"action":   {"wbsetlabel"},
		"id":       {entityID},
		"token":    {c.csrf},
		"format":   {"json"},
		"language": {"en"},
		"value":    {label},
	})
	if err != nil {
		return &LabelAssignmentError{EntityID: entityID, Label: label, Err: err}
	}
	var body struct {
		Error *apiError `json:"error"`
	}
	if err := decode(resp, &body); err != nil {
		return &LabelAssignmentError{EntityID: entityID, Label: label, Err: err}
	}
	if body.Error != nil {
		return &LabelAssignmentError{EntityID: entityID, Label: label, Err: fmt.Errorf("%s: %s", body.Error.Code, body.Error.Info)}
	}
	return nil
}

func truncate(s string) string {
	const limit = 200
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
