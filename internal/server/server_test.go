package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"

	"taskdesk/internal/config"
	"taskdesk/internal/db"
	"taskdesk/internal/domain"
	"taskdesk/internal/engine"
	"taskdesk/internal/migrate"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	if err := e.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	handler, err := New(Config{
		Engine: e,
		Auth:   AuthConfig{JWTSecret: testSecret, AllowDevUserHeader: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.close)
	return ts
}

func (s *testServer) addUser(t *testing.T, email, roleTitle string) domain.User {
	t.Helper()
	ctx := context.Background()
	u := domain.User{Email: email, Name: email}
	if roleTitle != "" {
		role, err := s.Engine.Repo.GetRoleByTitle(ctx, roleTitle)
		if err != nil {
			t.Fatalf("role %s: %v", roleTitle, err)
		}
		u.RoleID = &role.ID
	}
	created, err := s.Engine.CreateUser(ctx, u, 0)
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return created
}

func asUser(id int64) map[string]string {
	return map[string]string{"X-User-Id": fmt.Sprintf("%d", id)}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	return env.Error.Code
}

func TestHealthOpenAndAuthRequired(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", res.StatusCode)
	}

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated me status %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "unauthorized" {
		t.Fatalf("expected unauthorized code, got %s", code)
	}
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	admin := srv.addUser(t, "admin@test", "Administrator")
	outsider := srv.addUser(t, "user@test", "User")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects", map[string]any{
		"title": "Support",
	}, asUser(admin.ID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project status %d: %s", res.StatusCode, string(data))
	}
	var project domain.Project
	if err := json.Unmarshal(data, &project); err != nil {
		t.Fatalf("unmarshal project: %v", err)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/tasks", map[string]any{
		"title":     "Broken printer",
		"projectId": project.ID,
	}, asUser(admin.ID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task status %d: %s", res.StatusCode, string(data))
	}
	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if task.StatusID == nil {
		t.Fatalf("created task should carry the default status")
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/tasks", nil, asUser(admin.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list tasks status %d: %s", res.StatusCode, string(data))
	}
	var page struct {
		Total int           `json:"total"`
		Items []domain.Task `json:"items"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal page: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].ID != task.ID {
		t.Fatalf("unexpected page: %s", string(data))
	}

	// no role token and no grant: listing is forbidden, not empty
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/tasks", nil, asUser(outsider.ID))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("outsider list status %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "forbidden" {
		t.Fatalf("expected forbidden code, got %s", code)
	}

	// invisible tasks read as absent
	res, data = doJSON(t, client, http.MethodGet, fmt.Sprintf("%s/v1/tasks/%d", srv.URL, task.ID), nil, asUser(outsider.ID))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("outsider get status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/tasks", map[string]any{
		"title":     "not allowed",
		"projectId": project.ID,
	}, asUser(outsider.ID))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("outsider create status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPatch, fmt.Sprintf("%s/v1/tasks/%d", srv.URL, task.ID), map[string]any{
		"title": "Broken printer again",
	}, asUser(admin.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update task status %d: %s", res.StatusCode, string(data))
	}
	var updated domain.Task
	_ = json.Unmarshal(data, &updated)
	if updated.Title != "Broken printer again" {
		t.Fatalf("title not updated: %s", string(data))
	}
}

func TestMalformedFilterIsBadRequest(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	admin := srv.addUser(t, "admin@test", "Administrator")

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/tasks?status=abc", nil, asUser(admin.ID))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed filter status %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "malformed_filter" {
		t.Fatalf("expected malformed_filter code, got %s", code)
	}
}

func TestBearerAndAPIKeyAuth(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	admin := srv.addUser(t, "admin@test", "Administrator")

	token, err := MintToken(testSecret, admin.ID)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("bearer me status %d: %s", res.StatusCode, string(data))
	}
	var me domain.User
	_ = json.Unmarshal(data, &me)
	if me.ID != admin.ID {
		t.Fatalf("bearer resolved wrong user: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{
		"Authorization": "Bearer not-a-jwt",
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage bearer status %d: %s", res.StatusCode, string(data))
	}

	plaintext, _, err := srv.Engine.MintAPIKey(context.Background(), admin.ID, "test")
	if err != nil {
		t.Fatalf("mint api key: %v", err)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{
		"X-Api-Key": plaintext,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("api key me status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{
		"X-Api-Key": "bogus",
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bogus api key status %d: %s", res.StatusCode, string(data))
	}
}

func TestProjectGrantOpensListing(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	ctx := context.Background()
	admin := srv.addUser(t, "admin@test", "Administrator")
	helper := srv.addUser(t, "helper@test", "User")

	project, err := srv.Engine.CreateProject(ctx, "Support", admin.ID)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	task, err := srv.Engine.CreateTask(ctx, engine.TaskCreateOptions{Title: "ticket", ProjectID: project.ID}, admin.ID)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	res, data := doJSON(t, client, http.MethodPut,
		fmt.Sprintf("%s/v1/projects/%d/acl/%d", srv.URL, project.ID, helper.ID),
		map[string]any{"acl": []string{"VIEW_ALL_TASKS"}}, asUser(admin.ID))
	if res.StatusCode != http.StatusNoContent && res.StatusCode != http.StatusOK {
		t.Fatalf("grant status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet,
		fmt.Sprintf("%s/v1/tasks?project=%d", srv.URL, project.ID), nil, asUser(helper.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("grantee list status %d: %s", res.StatusCode, string(data))
	}
	var page struct {
		Items []domain.Task `json:"items"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal page: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != task.ID {
		t.Fatalf("grantee should see the project task, got %s", string(data))
	}

	// unknown ACL tokens are rejected before anything is written
	res, data = doJSON(t, client, http.MethodPut,
		fmt.Sprintf("%s/v1/projects/%d/acl/%d", srv.URL, project.ID, helper.ID),
		map[string]any{"acl": []string{"NO_SUCH_TOKEN"}}, asUser(admin.ID))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad token status %d: %s", res.StatusCode, string(data))
	}

	// revoking closes the listing again
	res, data = doJSON(t, client, http.MethodDelete,
		fmt.Sprintf("%s/v1/projects/%d/acl/%d", srv.URL, project.ID, helper.ID), nil, asUser(admin.ID))
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("revoke status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet,
		fmt.Sprintf("%s/v1/tasks?project=%d", srv.URL, project.ID), nil, asUser(helper.ID))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("revoked grantee list status %d: %s", res.StatusCode, string(data))
	}

	// revoking an absent grant reads as not found
	res, data = doJSON(t, client, http.MethodDelete,
		fmt.Sprintf("%s/v1/projects/%d/acl/%d", srv.URL, project.ID, helper.ID), nil, asUser(admin.ID))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("double revoke status %d: %s", res.StatusCode, string(data))
	}
}

func TestRepeatingTaskListing(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	ctx := context.Background()
	admin := srv.addUser(t, "admin@test", "Administrator")
	outsider := srv.addUser(t, "user@test", "User")

	project, err := srv.Engine.CreateProject(ctx, "Ops", admin.ID)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	task, err := srv.Engine.CreateTask(ctx, engine.TaskCreateOptions{Title: "rotate logs", ProjectID: project.ID}, admin.ID)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	rt, err := srv.Engine.CreateRepeatingTask(ctx, domain.RepeatingTask{
		TaskID: task.ID, CreatorID: admin.ID, Interval: "weekly",
	})
	if err != nil {
		t.Fatalf("create repeating task: %v", err)
	}

	res, data := doJSON(t, client, http.MethodGet,
		fmt.Sprintf("%s/v1/tasks/%d/repeating", srv.URL, task.ID), nil, asUser(admin.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list repeating status %d: %s", res.StatusCode, string(data))
	}
	var items []domain.RepeatingTask
	if err := json.Unmarshal(data, &items); err != nil {
		t.Fatalf("unmarshal repeating: %v", err)
	}
	if len(items) != 1 || items[0].ID != rt.ID || items[0].Interval != "weekly" {
		t.Fatalf("unexpected repeating list: %s", string(data))
	}

	// invisible parent task reads as absent
	res, data = doJSON(t, client, http.MethodGet,
		fmt.Sprintf("%s/v1/tasks/%d/repeating", srv.URL, task.ID), nil, asUser(outsider.ID))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("outsider repeating list status %d: %s", res.StatusCode, string(data))
	}
}
