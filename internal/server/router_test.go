package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/qiwenmao/coatlab-backend/internal/bizcode"
	"github.com/qiwenmao/coatlab-backend/internal/db"
	"github.com/qiwenmao/coatlab-backend/internal/handlers"
	"github.com/qiwenmao/coatlab-backend/internal/logger"
	"github.com/qiwenmao/coatlab-backend/internal/repos"
	"github.com/qiwenmao/coatlab-backend/internal/services"
	"github.com/qiwenmao/coatlab-backend/internal/types"
)

type routerFixture struct {
	srv        *httptest.Server
	formulaSvc services.FormulaService
	taskIndex  string
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "router_test.db")+"?_busy_timeout=5000"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	log := logger.NewNop()
	taskRepo := repos.NewDesignTaskRepo(gdb, log)
	formulaRepo := repos.NewFormulaRepo(gdb, log)
	formulaSvc := services.NewFormulaService(gdb, log, formulaRepo, taskRepo)

	router := NewRouter(RouterConfig{
		ServiceName:        "coatlab-test",
		FormulaHandler:     handlers.NewFormulaHandler(log, formulaSvc),
		DesignTaskHandler:  handlers.NewDesignTaskHandler(log, services.NewDesignTaskService(gdb, log, taskRepo)),
		RawMaterialHandler: handlers.NewRawMaterialHandler(log, services.NewRawMaterialService(gdb, log, repos.NewRawMaterialRepo(gdb, log), nil)),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	task := &types.DesignTask{Index: uuid.NewString(), Name: "router test task"}
	if err := gdb.Create(task).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}
	return &routerFixture{srv: srv, formulaSvc: formulaSvc, taskIndex: task.Index}
}

type wireEnvelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (f *routerFixture) post(t *testing.T, path string, body interface{}) wireEnvelope {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(f.srv.URL+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST %s status = %d, want 200 (business outcome travels in the code)", path, resp.StatusCode)
	}
	var env wireEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestHealthcheck(t *testing.T) {
	f := newRouterFixture(t)
	resp, err := http.Get(f.srv.URL + "/healthcheck")
	if err != nil {
		t.Fatalf("GET /healthcheck: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestCreateAndListEnvelope(t *testing.T) {
	f := newRouterFixture(t)

	env := f.post(t, "/formula/create/"+f.taskIndex, map[string]interface{}{
		"index":         uuid.NewString(),
		"baseMaterials": []string{"", "steel", ""},
	})
	if env.Code != bizcode.OK {
		t.Fatalf("create code = %d msg=%q", env.Code, env.Msg)
	}
	var created types.FormulaRecord
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.Version == nil || *created.Version != "V1" {
		t.Fatalf("version = %v", created.Version)
	}
	if len(created.BaseMaterials) != 1 || created.BaseMaterials[0] != "steel" {
		t.Fatalf("base materials = %v", created.BaseMaterials)
	}

	resp, err := http.Get(f.srv.URL + "/formula/list/" + f.taskIndex)
	if err != nil {
		t.Fatalf("GET list: %v", err)
	}
	defer resp.Body.Close()
	var listEnv wireEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&listEnv); err != nil {
		t.Fatalf("decode list envelope: %v", err)
	}
	if listEnv.Code != bizcode.OK {
		t.Fatalf("list code = %d", listEnv.Code)
	}
	var records []*types.FormulaRecord
	if err := json.Unmarshal(listEnv.Data, &records); err != nil {
		t.Fatalf("decode records: %v", err)
	}
	if len(records) != 1 || records[0].Index != created.Index {
		t.Fatalf("round trip lost the record: %+v", records)
	}
}

func TestTransitionFailureCodesOnTheWire(t *testing.T) {
	f := newRouterFixture(t)
	rec, err := f.formulaSvc.Create(context.Background(), nil, f.taskIndex, &types.FormulaRecord{Index: uuid.NewString()})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	cases := []struct {
		name string
		path string
		body map[string]string
		want int
	}{
		{name: "missing_index", path: "/formula/qualified", body: map[string]string{}, want: bizcode.MissingParameter},
		{name: "unknown_index", path: "/formula/qualified", body: map[string]string{"index": uuid.NewString()}, want: bizcode.RecordNotFound},
		{name: "empty_reason", path: "/formula/unqualified", body: map[string]string{"index": rec.Index}, want: bizcode.MissingParameter},
		{name: "noop_pending", path: "/formula/pending", body: map[string]string{"index": rec.Index}, want: bizcode.AlreadyInState},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := f.post(t, tc.path, tc.body)
			if env.Code != tc.want {
				t.Fatalf("code = %d, want %d (msg=%q)", env.Code, tc.want, env.Msg)
			}
			if env.Msg == "" {
				t.Fatalf("failure envelope carries no message")
			}
		})
	}
}

// Two concurrent qualification requests for different records in one task:
// the service must serialize them so exactly one commits.
func TestConcurrentQualifyOneWinner(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()
	var indices []string
	for i := 0; i < 2; i++ {
		rec, err := f.formulaSvc.Create(ctx, nil, f.taskIndex, &types.FormulaRecord{Index: uuid.NewString()})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		indices = append(indices, rec.Index)
	}

	var wg sync.WaitGroup
	codes := make([]int, 2)
	errs := make([]error, 2)
	for i, index := range indices {
		wg.Add(1)
		go func(slot int, index string) {
			defer wg.Done()
			raw, _ := json.Marshal(map[string]string{"index": index})
			resp, err := http.Post(f.srv.URL+"/formula/qualified", "application/json", bytes.NewReader(raw))
			if err != nil {
				errs[slot] = err
				return
			}
			defer resp.Body.Close()
			var env wireEnvelope
			if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
				errs[slot] = err
				return
			}
			codes[slot] = env.Code
		}(i, index)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			t.Fatalf("concurrent request failed: %v", err)
		}
	}

	successes, violations := 0, 0
	for _, code := range codes {
		switch code {
		case bizcode.OK:
			successes++
		case bizcode.ExclusivityViolation:
			violations++
		default:
			t.Fatalf("unexpected code %d", code)
		}
	}
	if successes != 1 || violations != 1 {
		t.Fatalf("got %d successes and %d violations, want exactly one of each (codes=%v)", successes, violations, codes)
	}

	records, err := f.formulaSvc.List(ctx, nil, f.taskIndex)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	qualified := 0
	for _, r := range records {
		if r.StatusOrPending() == types.StatusQualified {
			qualified++
		}
	}
	if qualified != 1 {
		t.Fatalf("qualified count = %d, want 1", qualified)
	}
}

func TestDesignTaskAndMaterialEndpoints(t *testing.T) {
	f := newRouterFixture(t)

	env := f.post(t, "/designtask/create", map[string]string{"name": "new sample"})
	if env.Code != bizcode.OK {
		t.Fatalf("designtask create code = %d", env.Code)
	}
	env = f.post(t, "/designtask/create", map[string]string{})
	if env.Code != bizcode.MissingParameter {
		t.Fatalf("nameless designtask code = %d, want MissingParameter", env.Code)
	}

	resp, err := http.Get(f.srv.URL + "/material/list")
	if err != nil {
		t.Fatalf("GET materials: %v", err)
	}
	defer resp.Body.Close()
	var matEnv wireEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&matEnv); err != nil {
		t.Fatalf("decode material envelope: %v", err)
	}
	if matEnv.Code != bizcode.OK {
		t.Fatalf("material list code = %d", matEnv.Code)
	}
}

func TestListUnknownTaskCode(t *testing.T) {
	f := newRouterFixture(t)
	resp, err := http.Get(fmt.Sprintf("%s/formula/list/%s", f.srv.URL, uuid.NewString()))
	if err != nil {
		t.Fatalf("GET list: %v", err)
	}
	defer resp.Body.Close()
	var env wireEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Code != bizcode.RecordNotFound {
		t.Fatalf("code = %d, want RecordNotFound", env.Code)
	}
}
