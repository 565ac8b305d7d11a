// Package contract provides contract tests that validate API responses against the OpenAPI spec.
package contract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	"github.com/photovault/photovault/internal/middleware"
	"github.com/photovault/photovault/internal/testutil/apptest"
)

// specPath returns the OpenAPI document location.
func specPath() string {
	if p := os.Getenv("OPENAPI_SPEC_PATH"); p != "" {
		return p
	}
	wd, _ := os.Getwd()
	return filepath.Join(wd, "..", "..", "docs", "api", "openapi.yaml")
}

// loadSpec loads and validates the OpenAPI spec. When baseURL is set the
// router matches requests against it instead of the documented servers.
func loadSpec(t *testing.T, baseURL string) (*openapi3.T, routers.Router) {
	t.Helper()

	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	spec, err := loader.LoadFromFile(specPath())
	if err != nil {
		t.Fatalf("Failed to load OpenAPI spec: %v", err)
	}

	if err := spec.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI spec validation failed: %v", err)
	}

	if baseURL != "" {
		spec.Servers = openapi3.Servers{{URL: baseURL}}
	}

	router, err := gorillamux.NewRouter(spec)
	if err != nil {
		t.Fatalf("Failed to create router from spec: %v", err)
	}

	return spec, router
}

// contractClient sends requests to the in-process API and validates every
// response against the spec.
type contractClient struct {
	t      *testing.T
	app    *apptest.App
	router routers.Router
}

func newContractClient(t *testing.T) *contractClient {
	t.Helper()
	app := apptest.New(t)
	_, router := loadSpec(t, app.URL())
	return &contractClient{t: t, app: app, router: router}
}

func (c *contractClient) send(req *http.Request) (*http.Response, []byte) {
	c.t.Helper()

	resp, err := c.app.Server.Client().Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("read body: %v", err)
	}

	route, pathParams, err := c.router.FindRoute(req)
	if err != nil {
		c.t.Fatalf("Could not find route %s %s in spec: %v", req.Method, req.URL.Path, err)
	}

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: pathParams,
			Route:      route,
		},
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   io.NopCloser(bytes.NewReader(body)),
		Options: &openapi3filter.Options{
			IncludeResponseStatus: true,
		},
	}
	if err := openapi3filter.ValidateResponse(context.Background(), input); err != nil {
		c.t.Errorf("%s %s -> %d does not match spec: %v\nBody: %s", req.Method, req.URL.Path, resp.StatusCode, err, body)
	}

	return resp, body
}

func (c *contractClient) json(method, path, token string, payload any) (*http.Response, []byte) {
	c.t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			c.t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.app.URL()+path, body)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.send(req)
}

func (c *contractClient) login(email string) string {
	c.t.Helper()

	creds := map[string]string{"email": email, "password": "contract-password"}
	if resp, body := c.json(http.MethodPost, "/auth/signup", "", creds); resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("signup status %d: %s", resp.StatusCode, body)
	}
	resp, body := c.json(http.MethodPost, "/auth/login", "", creds)
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("login status %d: %s", resp.StatusCode, body)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.Token == "" {
		c.t.Fatalf("login body: %s", body)
	}
	return out.Token
}

func (c *contractClient) upload(token string, names ...string) (*http.Response, []byte) {
	c.t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range names {
		part, err := mw.CreateFormFile("images", name)
		if err != nil {
			c.t.Fatalf("CreateFormFile: %v", err)
		}
		_, _ = part.Write([]byte("bytes of " + name))
	}
	_ = mw.Close()

	req, _ := http.NewRequest(http.MethodPost, c.app.URL()+"/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return c.send(req)
}

func (c *contractClient) internal(method, path string, payload any) (*http.Response, []byte) {
	c.t.Helper()

	var body io.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewReader(raw)
	}
	req, _ := http.NewRequest(method, c.app.URL()+path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(middleware.InternalTokenHeader, apptest.InternalToken)
	return c.send(req)
}

// TestOpenAPISpecValid ensures the OpenAPI spec is valid.
func TestOpenAPISpecValid(t *testing.T) {
	spec, _ := loadSpec(t, "")

	expectedPaths := []string{
		"/healthz",
		"/readyz",
		"/auth/signup",
		"/auth/login",
		"/auth/logout",
		"/auth/me",
		"/images",
		"/images/search",
		"/images/{id}",
		"/images/{id}/file",
		"/internal/images/pending",
		"/internal/images/{id}/analysis",
	}
	for _, path := range expectedPaths {
		if spec.Paths.Find(path) == nil {
			t.Errorf("Expected path %s not found in spec", path)
		}
	}
}

// TestResponsesMatchSpec drives every JSON endpoint and validates each response.
func TestResponsesMatchSpec(t *testing.T) {
	c := newContractClient(t)

	c.json(http.MethodGet, "/healthz", "", nil)
	c.json(http.MethodGet, "/readyz", "", nil)

	token := c.login("contract@example.com")
	c.json(http.MethodGet, "/auth/me", token, nil)

	resp, body := c.upload(token, "cat.png", "notes.txt")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status %d: %s", resp.StatusCode, body)
	}
	var uploaded struct {
		Images []struct {
			ID string `json:"id"`
		} `json:"images"`
	}
	if err := json.Unmarshal(body, &uploaded); err != nil || len(uploaded.Images) != 1 {
		t.Fatalf("upload body: %s", body)
	}
	id := uploaded.Images[0].ID

	c.upload(token, "only.txt")
	c.json(http.MethodGet, "/images", token, nil)
	c.json(http.MethodGet, "/images/"+id, token, nil)

	c.internal(http.MethodGet, "/internal/images/pending", nil)
	c.internal(http.MethodPut, fmt.Sprintf("/internal/images/%s/analysis", id), map[string]any{
		"caption":          "a black cat on a sofa",
		"processingTimeMs": 250,
	})

	resp, body = c.json(http.MethodGet, "/images/search?query=black+cat", token, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), id) {
		t.Errorf("search status %d: %s", resp.StatusCode, body)
	}

	c.json(http.MethodDelete, "/images/"+id, token, nil)
	c.json(http.MethodPost, "/auth/logout", token, nil)
}

// TestErrorResponseSchema validates error responses match the schema.
func TestErrorResponseSchema(t *testing.T) {
	c := newContractClient(t)
	token := c.login("errors@example.com")
	other := c.login("other@example.com")

	resp, body := c.upload(other, "theirs.jpg")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status %d: %s", resp.StatusCode, body)
	}
	var uploaded struct {
		Images []struct {
			ID string `json:"id"`
		} `json:"images"`
	}
	_ = json.Unmarshal(body, &uploaded)
	theirs := uploaded.Images[0].ID

	errorCases := []struct {
		name           string
		method         string
		path           string
		token          string
		payload        any
		expectedStatus int
		expectedCode   string
	}{
		{"MissingToken", http.MethodGet, "/images", "", nil, http.StatusUnauthorized, middleware.CodeMissingToken},
		{"InvalidToken", http.MethodGet, "/auth/me", "garbage", nil, http.StatusUnauthorized, middleware.CodeInvalidToken},
		{"EmptyQuery", http.MethodGet, "/images/search?query=", token, nil, http.StatusBadRequest, "EMPTY_QUERY"},
		{"NotOwner", http.MethodGet, "/images/" + theirs, token, nil, http.StatusForbidden, "NOT_OWNER"},
		{"NotFound", http.MethodGet, "/images/01HZZZZZZZZZZZZZZZZZZZZZZZ", token, nil, http.StatusNotFound, "IMAGE_NOT_FOUND"},
		{"DuplicateEmail", http.MethodPost, "/auth/signup", "", map[string]string{"email": "errors@example.com", "password": "contract-password"}, http.StatusConflict, "EMAIL_EXISTS"},
		{"BadCredentials", http.MethodPost, "/auth/login", "", map[string]string{"email": "errors@example.com", "password": "wrong-password"}, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	}

	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			c.t = t
			resp, body := c.json(tc.method, tc.path, tc.token, tc.payload)
			if resp.StatusCode != tc.expectedStatus {
				t.Errorf("Expected status %d, got %d", tc.expectedStatus, resp.StatusCode)
			}
			validateErrorResponse(t, resp, body, tc.expectedCode)
		})
	}
}

// validateErrorResponse checks that error responses have required fields.
func validateErrorResponse(t *testing.T, resp *http.Response, body []byte, wantCode string) {
	t.Helper()

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		t.Errorf("Error response Content-Type should be application/json, got: %s", contentType)
		return
	}

	var errorResp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errorResp); err != nil {
		t.Errorf("Failed to parse error response as JSON: %v\nBody: %s", err, string(body))
		return
	}

	if errorResp.Error.Code != wantCode {
		t.Errorf("error.code = %q, want %q. Body: %s", errorResp.Error.Code, wantCode, string(body))
	}
	if errorResp.Error.Message == "" {
		t.Errorf("Error response missing 'error.message'. Body: %s", string(body))
	}
}

// TestLiveServer validates a deployed server when API_BASE_URL is set.
func TestLiveServer(t *testing.T) {
	baseURL := os.Getenv("API_BASE_URL")
	if baseURL == "" {
		t.Skip("API_BASE_URL not set")
	}
	_, router := loadSpec(t, baseURL)

	for _, path := range []string{"/healthz", "/readyz"} {
		t.Run(path, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, baseURL+path, nil)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Skipf("Server not available: %v", err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)

			route, pathParams, err := router.FindRoute(req)
			if err != nil {
				t.Fatalf("Could not find route in spec: %v", err)
			}
			err = openapi3filter.ValidateResponse(context.Background(), &openapi3filter.ResponseValidationInput{
				RequestValidationInput: &openapi3filter.RequestValidationInput{Request: req, PathParams: pathParams, Route: route},
				Status:                 resp.StatusCode,
				Header:                 resp.Header,
				Body:                   io.NopCloser(bytes.NewReader(body)),
			})
			if err != nil {
				t.Errorf("Response validation failed: %v", err)
			}
		})
	}
}
