package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/noah-isme/hifz-api/internal/config"
	"github.com/noah-isme/hifz-api/internal/database"
	"github.com/noah-isme/hifz-api/internal/handler"
	"github.com/noah-isme/hifz-api/internal/middleware"
	"github.com/noah-isme/hifz-api/internal/models"
	"github.com/noah-isme/hifz-api/internal/repository"
	"github.com/noah-isme/hifz-api/internal/router"
	"github.com/noah-isme/hifz-api/internal/service"
	"github.com/noah-isme/hifz-api/internal/workflow"
)

const testSecret = "test-secret"

type caller struct {
	userID uint
	role   string
	school uint
}

var (
	ownerCaller   = caller{userID: 1, role: "owner", school: 1}
	teacherCaller = caller{userID: 2, role: "teacher", school: 1}
	studentCaller = caller{userID: 3, role: "student", school: 1}
	parentCaller  = caller{userID: 8, role: "parent", school: 1}
)

type testApp struct {
	app           *fiber.App
	db            *gorm.DB
	notifications service.NotificationService
}

// newTestApp wires the full router against a private in-memory database. Class 1 is taught
// by user 2 and holds students 3 and 4; user 8 is the parent of student 3.
func newTestApp(t *testing.T) testApp {
	t.Helper()
	return newTestAppWith(t, nil)
}

func newTestAppWith(t *testing.T, configure func(*config.Config)) testApp {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:http_%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	require.NoError(t, db.Create(&models.School{ID: 1, Name: "Darul Hikmah"}).Error)
	require.NoError(t, db.Create(&models.Class{ID: 1, SchoolID: 1, TeacherID: 2, Name: "Halaqah Abu Bakr"}).Error)
	require.NoError(t, db.Create(&[]models.Student{
		{ID: 3, SchoolID: 1, ClassID: 1, Name: "Aisyah", Email: "aisyah@example.com"},
		{ID: 4, SchoolID: 1, ClassID: 1, Name: "Bilal", Email: "bilal@example.com"},
	}).Error)
	require.NoError(t, db.Create(&models.Guardian{StudentID: 3, ParentID: 8}).Error)

	logger := zerolog.Nop()
	validate := validator.New(validator.WithRequiredStructEnabled())
	directory := repository.NewDirectoryRepository(db)
	recorder := service.NewTransitionRecorder(repository.NewTransitionLogRepository(db), logger)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), nil, "", nil, validate, logger)

	assignments := service.NewAssignmentService(service.AssignmentServiceDeps{
		Repo:        repository.NewAssignmentRepository(db),
		Directory:   directory,
		Machine:     workflow.NewAssignmentMachine(3),
		Recorder:    recorder,
		Notifier:    notifications,
		Attachments: service.NewAttachmentStore(nil, 5, logger),
		Validator:   validate,
	}, logger)
	homework := service.NewHomeworkService(repository.NewHomeworkRepository(db), directory, recorder, notifications, validate, logger)
	targets := service.NewTargetService(repository.NewTargetRepository(db), directory, recorder, notifications, validate, logger)

	cfg := config.Config{
		AppName:         "Hifz API Test",
		AppEnv:          "test",
		JWTSecret:       testSecret,
		RateLimitMax:    1000,
		RateLimitWindow: time.Minute,
	}
	if configure != nil {
		configure(&cfg)
	}

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AssignmentHandler:   handler.NewAssignmentHandler(assignments, validate, logger),
		HomeworkHandler:     handler.NewHomeworkHandler(homework, logger),
		TargetHandler:       handler.NewTargetHandler(targets, logger),
		NotificationHandler: handler.NewNotificationHandler(notifications, logger, time.Second),
		JWTMiddleware:       middleware.JWTProtected(testSecret),
	})

	return testApp{app: app, db: db, notifications: notifications}
}

func signToken(t *testing.T, who caller) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":       fmt.Sprintf("%d", who.userID),
		"role":      who.role,
		"school_id": float64(who.school),
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

type apiResponse struct {
	status int
	raw    []byte
	body   map[string]interface{}
}

func (r apiResponse) entity(key string) map[string]interface{} {
	value, _ := r.body[key].(map[string]interface{})
	return value
}

func (r apiResponse) code() string {
	value, _ := r.body["code"].(string)
	return value
}

func (ta testApp) do(t *testing.T, who *caller, method, path string, payload interface{}) apiResponse {
	t.Helper()

	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if who != nil {
		req.Header.Set("Authorization", "Bearer "+signToken(t, *who))
	}

	return ta.send(t, req)
}

func (ta testApp) send(t *testing.T, req *http.Request) apiResponse {
	t.Helper()

	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := apiResponse{status: resp.StatusCode, raw: raw}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &out.body), string(raw))
	}
	return out
}

func idOf(t *testing.T, entity map[string]interface{}) uint {
	t.Helper()
	require.NotNil(t, entity)
	id, ok := entity["id"].(float64)
	require.True(t, ok, "entity has no numeric id")
	return uint(id)
}

func compileSchema(t *testing.T, file string) *jsonschema.Schema {
	t.Helper()

	path, err := filepath.Abs(filepath.Join("testdata", file))
	require.NoError(t, err)

	schema, err := jsonschema.NewCompiler().Compile("file://" + filepath.ToSlash(path))
	require.NoError(t, err)
	return schema
}

func requireSchema(t *testing.T, schema *jsonschema.Schema, resp apiResponse) {
	t.Helper()

	var document interface{}
	require.NoError(t, json.Unmarshal(resp.raw, &document))
	require.NoError(t, schema.Validate(document), string(resp.raw))
}

func itoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
