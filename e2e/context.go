// Package e2e drives a running truconn server through its HTTP surface
// with godog feature files. Tokens are minted locally with the server's
// signing key, standing in for the session boundary.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type actor struct {
	id    string
	role  string
	token string
}

// TestContext carries per-scenario state between steps.
type TestContext struct {
	baseURL    string
	signingKey []byte
	issuer     string
	client     *http.Client

	actors  map[string]*actor
	grants  map[string]string // citizen|org id|category -> grant id
	request string            // id of the last consent request created

	lastStatus  int
	lastHeaders http.Header
	lastBody    []byte
}

func NewTestContext(baseURL, signingKey, issuer string) *TestContext {
	return &TestContext{
		baseURL:    strings.TrimRight(baseURL, "/"),
		signingKey: []byte(signingKey),
		issuer:     issuer,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Reset clears scenario state; called before every scenario.
func (tc *TestContext) Reset() {
	tc.actors = map[string]*actor{}
	tc.grants = map[string]string{}
	tc.request = ""
	tc.lastStatus = 0
	tc.lastHeaders = nil
	tc.lastBody = nil
}

// Actor returns the named actor, minting an identity and token on first use.
// Ids are fresh per scenario so reruns against a long-lived server never collide.
func (tc *TestContext) Actor(name, role string) (id string, err error) {
	if a, ok := tc.actors[name]; ok {
		return a.id, nil
	}
	a := &actor{id: uuid.NewString(), role: role}
	if role != "organization" {
		if a.token, err = tc.mint(a.id, role); err != nil {
			return "", err
		}
	}
	tc.actors[name] = a
	return a.id, nil
}

// BindActor assigns a server-issued id to a named actor.
func (tc *TestContext) BindActor(name, role, id string) error {
	token, err := tc.mint(id, role)
	if err != nil {
		return err
	}
	tc.actors[name] = &actor{id: id, role: role, token: token}
	return nil
}

func (tc *TestContext) ActorID(name string) (string, error) {
	a, ok := tc.actors[name]
	if !ok {
		return "", fmt.Errorf("unknown actor %q", name)
	}
	return a.id, nil
}

func (tc *TestContext) mint(subject, role string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"iss":  tc.issuer,
		"iat":  now.Unix(),
		"exp":  now.Add(time.Hour).Unix(),
	})
	return token.SignedString(tc.signingKey)
}

// Do sends a request as the named actor; an empty name sends no token.
func (tc *TestContext) Do(ctx context.Context, method, path, as string, body any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, tc.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != "" {
		a, ok := tc.actors[as]
		if !ok {
			return fmt.Errorf("unknown actor %q", as)
		}
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	tc.lastStatus = resp.StatusCode
	tc.lastHeaders = resp.Header
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

// Expect sends a request and fails unless the status matches.
func (tc *TestContext) Expect(ctx context.Context, method, path, as string, body any, status int) error {
	if err := tc.Do(ctx, method, path, as, body); err != nil {
		return err
	}
	if tc.lastStatus != status {
		return fmt.Errorf("%s %s: expected status %d, got %d: %s", method, path, status, tc.lastStatus, tc.lastBody)
	}
	return nil
}

func (tc *TestContext) LastStatus() int              { return tc.lastStatus }
func (tc *TestContext) LastHeader(key string) string { return tc.lastHeaders.Get(key) }

// Field reads a dotted path such as "grant.status" from the last JSON body.
func (tc *TestContext) Field(path string) (any, error) {
	var doc any
	if err := json.Unmarshal(tc.lastBody, &doc); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	for _, part := range strings.Split(path, ".") {
		m, ok := doc.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", path, part)
		}
		if doc, ok = m[part]; !ok {
			return nil, fmt.Errorf("field %q not found in %s", path, tc.lastBody)
		}
	}
	return doc, nil
}

func (tc *TestContext) SetGrant(citizen, org, category, id string) {
	tc.grants[citizen+"|"+org+"|"+category] = id
}

func (tc *TestContext) Grant(citizen, org, category string) (string, error) {
	id, ok := tc.grants[citizen+"|"+org+"|"+category]
	if !ok {
		return "", fmt.Errorf("no grant recorded for %s/%s/%s", citizen, org, category)
	}
	return id, nil
}

func (tc *TestContext) SetRequest(id string) { tc.request = id }
func (tc *TestContext) Request() string      { return tc.request }
