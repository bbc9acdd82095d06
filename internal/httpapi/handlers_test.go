package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"docdesk.org/internal/audit"
	"docdesk.org/internal/content"
	"docdesk.org/internal/directory"
	"docdesk.org/internal/document"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("DOCDESK_AUTH_SECRET", "test-secret")
	directory.ResetSecretForTests()
	t.Cleanup(directory.ResetSecretForTests)

	dataDir := t.TempDir()
	trail, err := audit.NewTrail(filepath.Join(dataDir, "audit"))
	if err != nil {
		t.Fatalf("new trail: %v", err)
	}
	blobs, err := document.NewFSBlobStore(filepath.Join(dataDir, "blobs"))
	if err != nil {
		t.Fatalf("new blob store: %v", err)
	}

	store := directory.NewMemStore()
	dir := directory.NewService(store, trail)
	docs := document.NewRepository(document.NewMemStore(), blobs, store)
	disp := content.NewDispatcher(blobs)

	// Bootstrap admin so governance endpoints are reachable.
	if _, err := dir.AddAccount(context.Background(), directory.RegistrationInput{
		Email:      "root@x.org",
		Name:       "Root Admin",
		Credential: "root-secret",
		WantsAdmin: true,
	}); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	api := New(dir, docs, disp, trail, ReadyProbe{}, "test")
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func (c *apiClient) obtainToken(email, credential string) string {
	c.t.Helper()
	resp := c.post("/v1/auth/token", map[string]any{
		"email":      email,
		"credential": credential,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected token status: %d", resp.StatusCode)
	}
	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode token response: %v", err)
	}
	if payload.Token == "" {
		c.t.Fatalf("empty token issued")
	}
	return payload.Token
}

func (c *apiClient) uploadDocument(token, title, category, filename string, contents []byte, confirm bool) *http.Response {
	c.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("title", title)
	_ = w.WriteField("category", category)
	_ = w.WriteField("description", "uploaded in test")
	if confirm {
		_ = w.WriteField("confirm", "true")
	}
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		c.t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(contents); err != nil {
		c.t.Fatalf("write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		c.t.Fatalf("close multipart writer: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/v1/documents", &buf)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("upload request: %v", err)
	}
	return resp
}

func authHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestAPIRegistrationApprovalFlow(t *testing.T) {
	c := newTestAPI(t)

	resp := c.post("/v1/accounts/register", map[string]any{
		"email":      "alice@x.org",
		"name":       "Alice Nguyen",
		"title":      "Analyst",
		"credential": "correct-horse",
	}, nil)
	created := decode[struct {
		Account directory.Account `json:"account"`
		EntryID string            `json:"entry_id"`
	}](t, resp)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d", resp.StatusCode)
	}
	if created.Account.Status != directory.StatusPending {
		t.Fatalf("registered account not pending: %s", created.Account.Status)
	}

	// Pending accounts cannot log in.
	resp = c.post("/v1/auth/token", map[string]any{
		"email": "alice@x.org", "credential": "correct-horse",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("pending login status = %d", resp.StatusCode)
	}

	admin := c.obtainToken("root@x.org", "root-secret")

	resp = c.get("/v1/notifications", nil, authHeader(admin))
	queue := decode[struct {
		Items      []directory.Notification `json:"items"`
		Unresolved int                      `json:"unresolved"`
	}](t, resp)
	if queue.Unresolved != 1 || len(queue.Items) != 1 {
		t.Fatalf("unexpected queue: %+v", queue)
	}
	if queue.Items[0].Email != "alice@x.org" {
		t.Fatalf("unexpected queue entry: %+v", queue.Items[0])
	}

	resp = c.post("/v1/notifications/"+created.EntryID+"/approve", nil, authHeader(admin))
	res := decode[directory.Resolution](t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve status = %d", resp.StatusCode)
	}
	if res.Account.Status != directory.StatusActive {
		t.Fatalf("account not active after approve: %s", res.Account.Status)
	}

	// Exactly-once: the second approve conflicts.
	resp = c.post("/v1/notifications/"+created.EntryID+"/approve", nil, authHeader(admin))
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("double approve status = %d", resp.StatusCode)
	}

	// The activated account can log in now.
	_ = c.obtainToken("alice@x.org", "correct-horse")

	resp = c.get("/v1/accounts/"+created.Account.ID+"/audit", nil, authHeader(admin))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("audit status = %d", resp.StatusCode)
	}
	trailText, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read audit trail: %v", err)
	}
	if !strings.Contains(string(trailText), "approved") {
		t.Fatalf("audit trail missing approval line: %q", trailText)
	}
}

func TestAPIDocumentLifecycle(t *testing.T) {
	c := newTestAPI(t)
	admin := c.obtainToken("root@x.org", "root-secret")

	resp := c.uploadDocument(admin, "Budget", "reports", "budget.txt", []byte("initial figures"), false)
	doc := decode[document.Document](t, resp)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}

	// Title collision is advisory: 409 with the collision count.
	resp = c.uploadDocument(admin, "Budget", "reports", "budget2.txt", []byte("more"), false)
	dup := decode[struct {
		Error string `json:"error"`
		Count int    `json:"count"`
	}](t, resp)
	if resp.StatusCode != http.StatusConflict || dup.Count != 1 {
		t.Fatalf("duplicate upload = %d, count %d", resp.StatusCode, dup.Count)
	}

	resp = c.uploadDocument(admin, "Budget", "reports", "budget2.txt", []byte("more"), true)
	suffixed := decode[document.Document](t, resp)
	if resp.StatusCode != http.StatusCreated || suffixed.Title != "Budget 1" {
		t.Fatalf("confirmed upload = %d, title %q", resp.StatusCode, suffixed.Title)
	}

	resp = c.get("/v1/documents", url.Values{"category": {"reports"}}, authHeader(admin))
	listing := decode[struct {
		Items []document.Record `json:"items"`
	}](t, resp)
	if len(listing.Items) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(listing.Items))
	}
	if listing.Items[0].AuthorName != "Root Admin" {
		t.Fatalf("author join missing: %+v", listing.Items[0])
	}

	resp = c.get("/v1/documents/search", url.Values{"q": {"budget"}}, authHeader(admin))
	found := decode[struct {
		Items []document.Record `json:"items"`
	}](t, resp)
	if len(found.Items) != 2 {
		t.Fatalf("search expected 2 documents, got %d", len(found.Items))
	}

	resp = c.get("/v1/documents/"+doc.Locator+"/text", nil, authHeader(admin))
	text := decode[struct {
		Text string `json:"text"`
	}](t, resp)
	if text.Text != "initial figures" {
		t.Fatalf("unexpected text: %q", text.Text)
	}

	resp = c.do(http.MethodPut, "/v1/documents/"+doc.Locator+"/text",
		map[string]any{"text": "revised figures"}, authHeader(admin))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save text status = %d", resp.StatusCode)
	}

	resp = c.get("/v1/documents/"+doc.Locator+"/text", nil, authHeader(admin))
	text = decode[struct {
		Text string `json:"text"`
	}](t, resp)
	if text.Text != "revised figures" {
		t.Fatalf("saved text not visible: %q", text.Text)
	}

	resp = c.get("/v1/documents/"+doc.Locator+"/view", nil, authHeader(admin))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("view status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected view content type: %s", ct)
	}

	resp = c.get("/v1/reports/documents-by-month", nil, authHeader(admin))
	report := decode[struct {
		Months [12]int `json:"months"`
	}](t, resp)
	total := 0
	for _, n := range report.Months {
		total += n
	}
	if total != 2 {
		t.Fatalf("histogram total = %d, want 2", total)
	}

	resp = c.do(http.MethodDelete, "/v1/documents/"+doc.Locator, nil, authHeader(admin))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	resp = c.get("/v1/documents/"+doc.Locator, nil, authHeader(admin))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted document status = %d", resp.StatusCode)
	}
}

func TestAPIAuthorization(t *testing.T) {
	c := newTestAPI(t)

	// No token: protected endpoints refuse.
	resp := c.get("/v1/documents", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous documents status = %d", resp.StatusCode)
	}

	// A regular account cannot reach admin-only governance endpoints.
	admin := c.obtainToken("root@x.org", "root-secret")
	resp = c.post("/v1/accounts", map[string]any{
		"email":      "bob@x.org",
		"name":       "Bob",
		"credential": "bob-secret-1",
	}, authHeader(admin))
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add account status = %d", resp.StatusCode)
	}

	regular := c.obtainToken("bob@x.org", "bob-secret-1")
	resp = c.get("/v1/accounts", nil, authHeader(regular))
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("regular on admin endpoint status = %d", resp.StatusCode)
	}

	resp = c.get("/v1/notifications", nil, authHeader(regular))
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("regular notifications status = %d", resp.StatusCode)
	}
}

func TestAPIChangeCredential(t *testing.T) {
	c := newTestAPI(t)
	admin := c.obtainToken("root@x.org", "root-secret")

	resp := c.post("/v1/accounts/password", map[string]any{
		"old": "wrong", "new": "next-secret-1", "confirm": "next-secret-1",
	}, authHeader(admin))
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("wrong old credential status = %d", resp.StatusCode)
	}

	resp = c.post("/v1/accounts/password", map[string]any{
		"old": "root-secret", "new": "next-secret-1", "confirm": "next-secret-1",
	}, authHeader(admin))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("change credential status = %d", resp.StatusCode)
	}

	_ = c.obtainToken("root@x.org", "next-secret-1")
}

func TestAPIHealthEndpoints(t *testing.T) {
	c := newTestAPI(t)

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp := c.get(path, nil, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d", path, resp.StatusCode)
		}
	}
}
