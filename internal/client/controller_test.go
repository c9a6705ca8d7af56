package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
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
	"github.com/qiwenmao/coatlab-backend/internal/server"
	"github.com/qiwenmao/coatlab-backend/internal/services"
	"github.com/qiwenmao/coatlab-backend/internal/types"
)

// testBackend runs the real service stack over sqlite behind an httptest
// server, with a request counter in front.
type testBackend struct {
	srv       *httptest.Server
	svc       services.FormulaService
	taskIndex string
	requests  atomic.Int64
}

func newTestBackend(t *testing.T) *testBackend {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "client_test.db")+"?_busy_timeout=5000"), &gorm.Config{
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
	materialRepo := repos.NewRawMaterialRepo(gdb, log)
	formulaSvc := services.NewFormulaService(gdb, log, formulaRepo, taskRepo)

	router := server.NewRouter(server.RouterConfig{
		ServiceName:        "coatlab-test",
		FormulaHandler:     handlers.NewFormulaHandler(log, formulaSvc),
		DesignTaskHandler:  handlers.NewDesignTaskHandler(log, services.NewDesignTaskService(gdb, log, taskRepo)),
		RawMaterialHandler: handlers.NewRawMaterialHandler(log, services.NewRawMaterialService(gdb, log, materialRepo, nil)),
	})

	b := &testBackend{svc: formulaSvc}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.requests.Add(1)
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(b.srv.Close)

	task := &types.DesignTask{Index: uuid.NewString(), Name: "coating sample task"}
	if err := gdb.Create(task).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}
	b.taskIndex = task.Index
	return b
}

func (b *testBackend) seedFormula(t *testing.T) *types.FormulaRecord {
	t.Helper()
	rec, err := b.svc.Create(context.Background(), nil, b.taskIndex, &types.FormulaRecord{Index: uuid.NewString()})
	if err != nil {
		t.Fatalf("seed formula: %v", err)
	}
	return rec
}

func (b *testBackend) controller(t *testing.T) *LifecycleController {
	t.Helper()
	api := NewFormulaAPI(b.srv.URL, nil, logger.NewNop())
	return NewLifecycleController(api, b.taskIndex, logger.NewNop())
}

func TestEmptyUnqualifiedReasonNeverReachesTheNetwork(t *testing.T) {
	b := newTestBackend(t)
	rec := b.seedFormula(t)
	lc := b.controller(t)
	if err := lc.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	before := b.requests.Load()
	err := lc.MarkUnqualified(context.Background(), rec.Index, "   ")
	if bizcode.CodeOf(err) != bizcode.MissingParameter {
		t.Fatalf("code = %d, want MissingParameter", bizcode.CodeOf(err))
	}
	if got := b.requests.Load(); got != before {
		t.Fatalf("request count changed from %d to %d; empty reason must be rejected locally", before, got)
	}
}

func TestPositionalDelete(t *testing.T) {
	b := newTestBackend(t)
	b.seedFormula(t)
	b.seedFormula(t)
	b.seedFormula(t)

	lc := b.controller(t)
	if err := lc.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	cached := lc.Formulas()
	if len(cached) != 3 {
		t.Fatalf("cache length = %d, want 3", len(cached))
	}

	// Remove the middle element; neighbours must keep their order.
	target := cached[1]
	if err := lc.Delete(context.Background(), target.Index); err != nil {
		t.Fatalf("delete: %v", err)
	}
	after := lc.Formulas()
	if len(after) != 2 {
		t.Fatalf("cache length after delete = %d, want 2", len(after))
	}
	if after[0].Index != cached[0].Index || after[1].Index != cached[2].Index {
		t.Fatalf("neighbours reordered: %s,%s", after[0].Index, after[1].Index)
	}
	for _, f := range after {
		if f.Index == target.Index {
			t.Fatalf("deleted record still cached")
		}
	}
}

func TestDeleteTwiceSurfacesRecordNotFound(t *testing.T) {
	b := newTestBackend(t)
	rec := b.seedFormula(t)
	lc := b.controller(t)
	if err := lc.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if err := lc.Delete(context.Background(), rec.Index); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	err := lc.Delete(context.Background(), rec.Index)
	if bizcode.CodeOf(err) != bizcode.RecordNotFound {
		t.Fatalf("second delete code = %d, want RecordNotFound", bizcode.CodeOf(err))
	}
}

func TestExclusivityViolationDiscardsOptimisticState(t *testing.T) {
	b := newTestBackend(t)
	f1 := b.seedFormula(t)
	f2 := b.seedFormula(t)
	if _, err := b.svc.MarkQualified(context.Background(), f1.Index); err != nil {
		t.Fatalf("qualify f1: %v", err)
	}

	lc := b.controller(t)
	if err := lc.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	err := lc.MarkQualified(context.Background(), f2.Index)
	if bizcode.CodeOf(err) != bizcode.ExclusivityViolation {
		t.Fatalf("code = %d, want ExclusivityViolation", bizcode.CodeOf(err))
	}
	if Explain(err) == "" {
		t.Fatalf("no explanation for exclusivity violation")
	}
	if lc.Stale() {
		t.Fatalf("cache should be reconciled after a business failure")
	}

	// The optimistic qualified patch on f2 must be gone after reconcile.
	for _, f := range lc.Formulas() {
		switch f.Index {
		case f1.Index:
			if f.StatusOrPending() != types.StatusQualified {
				t.Fatalf("f1 status = %v, want qualified", f.StatusOrPending())
			}
		case f2.Index:
			if f.StatusOrPending() != types.StatusPending {
				t.Fatalf("f2 status = %v, want pending (optimistic state not discarded)", f.StatusOrPending())
			}
		}
	}
}

func TestSuccessfulTransitionReconciles(t *testing.T) {
	b := newTestBackend(t)
	rec := b.seedFormula(t)
	lc := b.controller(t)
	if err := lc.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if err := lc.MarkQualified(context.Background(), rec.Index); err != nil {
		t.Fatalf("qualify: %v", err)
	}
	cached := lc.Formulas()
	if len(cached) != 1 || cached[0].StatusOrPending() != types.StatusQualified {
		t.Fatalf("cache not reconciled after success: %+v", cached)
	}
	if lc.Stale() {
		t.Fatalf("cache marked stale after clean reconcile")
	}
}

func TestCreatePrependsToCache(t *testing.T) {
	b := newTestBackend(t)
	b.seedFormula(t)
	lc := b.controller(t)
	if err := lc.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	created, err := lc.Create(context.Background(), &types.FormulaRecord{
		BaseMaterials: []string{"", "aluminum", ""},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Index == "" {
		t.Fatalf("client did not generate an index")
	}
	if created.Version == nil || *created.Version != "V2" {
		t.Fatalf("service version = %v, want V2", created.Version)
	}
	if len(created.BaseMaterials) != 1 || created.BaseMaterials[0] != "aluminum" {
		t.Fatalf("base materials not normalized before submission: %v", created.BaseMaterials)
	}

	cached := lc.Formulas()
	if len(cached) != 2 || cached[0].Index != created.Index {
		t.Fatalf("new record not prepended: %+v", cached)
	}
}

func TestSnapshotsDoNotAliasTheCache(t *testing.T) {
	b := newTestBackend(t)
	b.seedFormula(t)
	lc := b.controller(t)
	if err := lc.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	snap := lc.Formulas()
	snap[0].ColorDescription = "mutated by caller"
	status := types.StatusProduction
	snap[0].Status = &status

	fresh := lc.Formulas()
	if fresh[0].ColorDescription == "mutated by caller" {
		t.Fatalf("snapshot mutation leaked into the cache")
	}
	if fresh[0].StatusOrPending() != types.StatusPending {
		t.Fatalf("status mutation leaked into the cache")
	}
}

func TestTransportFailureMarksCacheStale(t *testing.T) {
	b := newTestBackend(t)
	rec := b.seedFormula(t)
	lc := b.controller(t)
	if err := lc.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	b.srv.Close()
	err := lc.MarkQualified(context.Background(), rec.Index)
	if err == nil {
		t.Fatalf("transition against a dead server succeeded")
	}
	if !IsTransport(err) {
		t.Fatalf("expected a transport error, got %v", err)
	}
	if !lc.Stale() {
		t.Fatalf("cache should be stale after an unreconciled transport failure")
	}
	// The optimistic patch stays visible until the next manual refresh.
	cached := lc.Formulas()
	if cached[0].StatusOrPending() != types.StatusQualified {
		t.Fatalf("optimistic patch dropped without reconciliation: %v", cached[0].StatusOrPending())
	}
}
