// Package testutil holds helpers shared by the salesdocs test suites:
// sqlmock-backed GORM handles, gin test contexts and polling assertions.
package testutil

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockDB is a postgres-dialect GORM handle over sqlmock.
type MockDB struct {
	DB    *gorm.DB
	Mock  sqlmock.Sqlmock
	SqlDB *sql.DB
}

// NewMockDB opens a MockDB and closes it when the test ends.
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err, "sqlmock")

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	require.NoError(t, err, "open gorm over sqlmock")

	m := &MockDB{DB: db, Mock: mock, SqlDB: sqlDB}
	t.Cleanup(func() {
		_ = m.Close()
	})
	return m
}

// Close closes the underlying connection. Calling it twice is harmless.
func (m *MockDB) Close() error {
	return m.SqlDB.Close()
}

// ExpectationsWereMet fails the test on any unmet sqlmock expectation.
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	require.NoError(t, m.Mock.ExpectationsWereMet(), "unmet sql expectations")
}

// TestContext is a gin context bound to a response recorder.
type TestContext struct {
	Context  *gin.Context
	Recorder *httptest.ResponseRecorder
	Engine   *gin.Engine
}

// NewTestContext returns a context holding a GET / request.
func NewTestContext(t *testing.T) *TestContext {
	t.Helper()
	return NewTestContextWithRequest(t, httptest.NewRequest(http.MethodGet, "/", nil))
}

// NewTestContextWithRequest returns a context holding req.
func NewTestContextWithRequest(t *testing.T, req *http.Request) *TestContext {
	t.Helper()

	w := httptest.NewRecorder()
	c, engine := gin.CreateTestContext(w)
	c.Request = req
	return &TestContext{Context: c, Recorder: w, Engine: engine}
}

// RequestIDKey is the context key the request ID middleware writes.
const RequestIDKey = "request_id"

func (tc *TestContext) SetRequestID(id string) {
	tc.Context.Set(RequestIDKey, id)
}

// SetParams sets the route parameters a router would have extracted.
func (tc *TestContext) SetParams(params gin.Params) {
	tc.Context.Params = params
}

func (tc *TestContext) SetHeader(key, value string) {
	tc.Context.Request.Header.Set(key, value)
}

func (tc *TestContext) ResponseBody() []byte {
	return tc.Recorder.Body.Bytes()
}

func (tc *TestContext) ResponseCode() int {
	return tc.Recorder.Code
}

var testNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// NewTestUUID derives a stable UUID from seed.
func NewTestUUID(seed string) uuid.UUID {
	return uuid.NewSHA1(testNamespace, []byte(seed))
}

// TestProjectID is the project every unit test works in unless it needs two.
func TestProjectID() uuid.UUID {
	return NewTestUUID("test-project")
}

// TestKey returns the lifecycle key of a document type in the standard test project.
func TestKey(t document.DocumentType) document.Key {
	return document.NewKey(TestProjectID(), t)
}

// ContextWithTimeout returns a context cancelled when the test ends or
// timeout passes, whichever comes first.
func ContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// poll reports whether condition held at some check before the deadline.
func poll(condition func() bool, timeout, interval time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if condition() {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(interval)
	}
}

// AssertEventually fails the test if condition is still false after timeout.
// Autosave timers and the outbox processor are the usual subjects.
func AssertEventually(t *testing.T, condition func() bool, timeout, interval time.Duration, msgAndArgs ...any) {
	t.Helper()
	if !poll(condition, timeout, interval) {
		t.Errorf("condition not met within %v: %v", timeout, msgAndArgs)
	}
}

// RequireEventually is AssertEventually that stops the test.
func RequireEventually(t *testing.T, condition func() bool, timeout, interval time.Duration, msgAndArgs ...any) {
	t.Helper()
	if !poll(condition, timeout, interval) {
		require.Fail(t, "condition not met within "+timeout.String(), msgAndArgs...)
	}
}

// AssertNever fails the test if condition becomes true within duration.
// Used to prove a cancelled autosave never fires.
func AssertNever(t *testing.T, condition func() bool, duration, interval time.Duration, msgAndArgs ...any) {
	t.Helper()
	if poll(condition, duration, interval) {
		t.Errorf("condition unexpectedly became true: %v", msgAndArgs)
	}
}
