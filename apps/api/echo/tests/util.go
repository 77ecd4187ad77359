package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	. "github.com/slotwise/slotwise/apps/api/echo"
	"github.com/slotwise/slotwise/core"
	"github.com/slotwise/slotwise/core/allocation"
	"github.com/slotwise/slotwise/core/export"
	"github.com/slotwise/slotwise/core/ingest"
	"github.com/slotwise/slotwise/core/schema"
	"github.com/slotwise/slotwise/core/timetable"
	"github.com/slotwise/slotwise/core/user"
	inmemdb "github.com/slotwise/slotwise/storage/database/inmem"
	testutil "github.com/slotwise/slotwise/tests"
)

type testApp struct {
	Server
	conf    *core.Config
	usrRepo user.Repository
	store   *inmemdb.SchemaStore
	ttRepo  *inmemdb.TimetableRepository
	metrics *prometheus.Registry
}

func setup(t *testing.T, configure ...func(conf *core.Config)) testApp {
	return setupWithHealth(t, nil, configure...)
}

func setupWithHealth(t *testing.T, health func(ctx context.Context) error, configure ...func(conf *core.Config)) testApp {
	return newTestApp(t, health, nil, configure...)
}

// setupWithStore lets wrap decorate the department store the services see.
func setupWithStore(t *testing.T, wrap func(schema.Store) schema.Store, configure ...func(conf *core.Config)) testApp {
	return newTestApp(t, nil, wrap, configure...)
}

func newTestApp(t *testing.T, health func(ctx context.Context) error, wrap func(schema.Store) schema.Store, configure ...func(conf *core.Config)) testApp {
	conf := core.NewTestConfig()
	for _, fn := range configure {
		fn(conf)
	}
	logger := testutil.NewLogger()
	validate, translator := testutil.NewValidator()

	// set up repos
	usrRepo := inmemdb.NewUserRepository()
	store := inmemdb.NewSchemaStore()
	ttRepo := inmemdb.NewTimetableRepository()
	reg := prometheus.NewRegistry()
	var deptStore schema.Store = store
	if wrap != nil {
		deptStore = wrap(store)
	}

	// set up server
	srv := NewServer(ServerDeps{
		Conf:          conf,
		Logger:        logger,
		Registerer:    reg,
		HealthCheck:   health,
		UserSvc:       user.NewService(usrRepo),
		SchemaSvc:     schema.NewService(deptStore),
		YearSvc:       ingest.NewYearService(deptStore, logger),
		AllocationSvc: allocation.NewService(deptStore, logger, conf.Timetable.Seed),
		TimetableSvc:  timetable.NewService(ttRepo, logger, conf.Timetable),
		ExportSvc:     export.NewService(ttRepo, logger),
		Validate:      validate,
		Translator:    translator,
	})
	return testApp{Server: srv, conf: conf, usrRepo: usrRepo, store: store, ttRepo: ttRepo, metrics: reg}
}

type httpErr struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields,omitempty"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

type upload struct {
	field, filename string
	data            []byte
}

func newMultipartRequest(t *testing.T, path string, fields map[string]string, files ...upload) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("newMultipartRequest() failed: %v", err)
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.filename)
		if err != nil {
			t.Fatalf("newMultipartRequest() failed: %v", err)
		}
		if _, err = part.Write(f.data); err != nil {
			t.Fatalf("newMultipartRequest() failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("newMultipartRequest() failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, httptest.NewRecorder()
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	token, err := GenerateToken(conf, usr)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ObjectsAreEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// decode unmarshals a response body into a generic JSON value.
func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode() failed: %v; body %s", err, rec.Body.String())
	}
}
