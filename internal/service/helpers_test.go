package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/noah-isme/hifz-api/internal/database"
	"github.com/noah-isme/hifz-api/internal/dto"
	"github.com/noah-isme/hifz-api/internal/models"
	"github.com/noah-isme/hifz-api/internal/policy"
	"github.com/noah-isme/hifz-api/internal/repository"
	"github.com/noah-isme/hifz-api/internal/workflow"
)

var (
	owner        = Actor{UserID: 1, Role: policy.RoleOwner, SchoolID: 1}
	teacher      = Actor{UserID: 2, Role: policy.RoleTeacher, SchoolID: 1}
	otherTeacher = Actor{UserID: 6, Role: policy.RoleTeacher, SchoolID: 1}
	student      = Actor{UserID: 3, Role: policy.RoleStudent, SchoolID: 1}
	classmate    = Actor{UserID: 4, Role: policy.RoleStudent, SchoolID: 1}
	parent       = Actor{UserID: 8, Role: policy.RoleParent, SchoolID: 1}
	foreignOwner = Actor{UserID: 1, Role: policy.RoleOwner, SchoolID: 99}
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// newTestDB opens a private in-memory database seeded with one school: class 1 taught by
// user 2 with students 3 and 4, class 5 taught by user 6 with student 7, and parent 8 of
// student 3.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))

	require.NoError(t, db.Create(&models.School{ID: 1, Name: "Darul Hikmah"}).Error)
	require.NoError(t, db.Create(&[]models.Class{
		{ID: 1, SchoolID: 1, TeacherID: 2, Name: "Halaqah Abu Bakr"},
		{ID: 5, SchoolID: 1, TeacherID: 6, Name: "Halaqah Umar"},
	}).Error)
	require.NoError(t, db.Create(&[]models.Student{
		{ID: 3, SchoolID: 1, ClassID: 1, Name: "Aisyah", Email: "aisyah@example.com"},
		{ID: 4, SchoolID: 1, ClassID: 1, Name: "Bilal", Email: "bilal@example.com"},
		{ID: 7, SchoolID: 1, ClassID: 5, Name: "Hamzah", Email: "hamzah@example.com"},
	}).Error)
	require.NoError(t, db.Create(&models.Guardian{StudentID: 3, ParentID: 8}).Error)

	return db
}

type recordingNotifier struct {
	mu       sync.Mutex
	payloads []dto.NotificationCreateRequest
	fail     bool
}

func (n *recordingNotifier) Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return dto.NotificationResponse{}, errors.New("broker unavailable")
	}
	n.payloads = append(n.payloads, payload)
	return dto.NotificationResponse{UserID: payload.UserID, Type: payload.Type, Message: payload.Message}, nil
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.payloads))
	for _, payload := range n.payloads {
		out = append(out, payload.Type)
	}
	return out
}

type fixture struct {
	db          *gorm.DB
	notifier    *recordingNotifier
	recorder    TransitionRecorder
	directory   repository.DirectoryRepository
	assignments AssignmentService
	homework    HomeworkService
	targets     TargetService
}

func newFixture(t *testing.T, maxReopens int) fixture {
	t.Helper()

	db := newTestDB(t)
	validate := validator.New(validator.WithRequiredStructEnabled())
	notifier := &recordingNotifier{}
	directory := repository.NewDirectoryRepository(db)
	recorder := NewTransitionRecorder(repository.NewTransitionLogRepository(db), testLogger())

	return fixture{
		db:        db,
		notifier:  notifier,
		recorder:  recorder,
		directory: directory,
		assignments: NewAssignmentService(AssignmentServiceDeps{
			Repo:      repository.NewAssignmentRepository(db),
			Directory: directory,
			Machine:   workflow.NewAssignmentMachine(maxReopens),
			Recorder:  recorder,
			Notifier:  notifier,
			Validator: validate,
		}, testLogger()),
		homework: NewHomeworkService(repository.NewHomeworkRepository(db), directory, recorder, notifier, validate, testLogger()),
		targets:  NewTargetService(repository.NewTargetRepository(db), directory, recorder, notifier, validate, testLogger()),
	}
}

func uintPtr(v uint) *uint {
	return &v
}

func intPtr(v int) *int {
	return &v
}

func boolPtr(v bool) *bool {
	return &v
}
