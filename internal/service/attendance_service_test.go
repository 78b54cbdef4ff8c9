package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/bjj-academy-api/internal/models"
	appErrors "github.com/noah-isme/bjj-academy-api/pkg/errors"
)

type mockAttendanceRepo struct {
	records   []models.Attendance
	details   map[string]models.AttendanceDetail
	statCalls int
}

func (m *mockAttendanceRepo) Create(ctx context.Context, record *models.Attendance) error {
	if record.ID == "" {
		record.ID = "new-attendance"
	}
	m.records = append(m.records, *record)
	return nil
}

func (m *mockAttendanceRepo) BulkCreate(ctx context.Context, records []models.Attendance) (int, error) {
	created := 0
	for _, record := range records {
		dup := false
		for _, existing := range m.records {
			if existing.UserID == record.UserID && existing.Date.Equal(record.Date) && existing.ClassType == record.ClassType {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		m.records = append(m.records, record)
		created++
	}
	return created, nil
}

func (m *mockAttendanceRepo) FindDetailByID(ctx context.Context, id string) (*models.AttendanceDetail, error) {
	if d, ok := m.details[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAttendanceRepo) Delete(ctx context.Context, id string) error {
	return nil
}

func (m *mockAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error) {
	return nil, 0, nil
}

func (m *mockAttendanceRepo) CountAll(ctx context.Context, userID string) (int, error) {
	m.statCalls++
	count := 0
	for _, r := range m.records {
		if r.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (m *mockAttendanceRepo) CountBetween(ctx context.Context, userID string, from, to time.Time) (int, error) {
	count := 0
	for _, r := range m.records {
		if r.UserID == userID && !r.Date.Before(from) && r.Date.Before(to) {
			count++
		}
	}
	return count, nil
}

func (m *mockAttendanceRepo) HistogramByType(ctx context.Context, userID string) ([]models.ClassTypeCount, error) {
	counts := map[models.ClassType]int{}
	for _, r := range m.records {
		if r.UserID == userID {
			counts[r.ClassType]++
		}
	}
	var out []models.ClassTypeCount
	for classType, count := range counts {
		out = append(out, models.ClassTypeCount{ClassType: classType, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ClassType < out[j].ClassType
	})
	return out, nil
}

func (m *mockAttendanceRepo) RecentDistinctDates(ctx context.Context, userID string, limit int) ([]time.Time, error) {
	seen := map[time.Time]bool{}
	var dates []time.Time
	for _, r := range m.records {
		if r.UserID == userID && !seen[r.Date] {
			seen[r.Date] = true
			dates = append(dates, r.Date)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })
	if len(dates) > limit {
		dates = dates[:limit]
	}
	return dates, nil
}

func (m *mockAttendanceRepo) ListRange(ctx context.Context, userID string, from, to time.Time) ([]models.Attendance, error) {
	var out []models.Attendance
	for _, r := range m.records {
		if r.UserID == userID && !r.Date.Before(from) && r.Date.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockAttendanceRepo) ListAll(ctx context.Context, userID string) ([]models.Attendance, error) {
	var out []models.Attendance
	for _, r := range m.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockAttendanceUsers struct {
	users map[string]models.User
}

func (m *mockAttendanceUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAttendanceUsers) FindActiveInAcademy(ctx context.Context, id, academyID string) (*models.User, error) {
	if u, ok := m.users[id]; ok && u.AcademyID == academyID && u.Active {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAttendanceUsers) FilterActiveIDsInAcademy(ctx context.Context, ids []string, academyID string) ([]string, error) {
	var valid []string
	for _, id := range ids {
		if u, ok := m.users[id]; ok && u.AcademyID == academyID && u.Active {
			valid = append(valid, id)
		}
	}
	return valid, nil
}

type mockStatsCache struct {
	entries map[string][]byte
}

func (m *mockStatsCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockStatsCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if m.entries == nil {
		m.entries = map[string][]byte{}
	}
	m.entries[key] = raw
	return nil
}

func (m *mockStatsCache) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

func day(value string) time.Time {
	t, _ := time.Parse("2006-01-02", value)
	return t
}

func attendanceOn(userID, date string, classType models.ClassType) models.Attendance {
	return models.Attendance{UserID: userID, Date: day(date), ClassType: classType, RegisteredByID: "inst-1"}
}

func newAttendanceFixture(repo *mockAttendanceRepo, cache statsCache) *AttendanceService {
	users := &mockAttendanceUsers{users: map[string]models.User{
		"s1": whiteBeltStudent("s1"),
		"s2": whiteBeltStudent("s2"),
	}}
	return NewAttendanceService(repo, users, cache, time.Minute, nil, validator.New(), zap.NewNop())
}

func TestAttendanceStatsStreak(t *testing.T) {
	repo := &mockAttendanceRepo{records: []models.Attendance{
		attendanceOn("s1", "2024-01-10", models.ClassTypeGi),
		attendanceOn("s1", "2024-01-09", models.ClassTypeGi),
		attendanceOn("s1", "2024-01-08", models.ClassTypeNoGi),
		attendanceOn("s1", "2024-01-05", models.ClassTypeGi),
	}}
	svc := newAttendanceFixture(repo, nil)

	stats, err := svc.Stats(context.Background(), instructorClaims(), "s1", day("2024-01-10"))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.CurrentStreak)
	assert.Equal(t, 4, stats.TotalAttendances)

	stats, err = svc.Stats(context.Background(), instructorClaims(), "s1", day("2024-01-12"))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.CurrentStreak)
}

func TestAttendanceStatsStreakCountsFromYesterday(t *testing.T) {
	repo := &mockAttendanceRepo{records: []models.Attendance{
		attendanceOn("s1", "2024-01-09", models.ClassTypeGi),
		attendanceOn("s1", "2024-01-08", models.ClassTypeGi),
	}}
	svc := newAttendanceFixture(repo, nil)

	stats, err := svc.Stats(context.Background(), instructorClaims(), "s1", day("2024-01-10"))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.CurrentStreak)
}

func TestAttendanceStatsFavoriteClassType(t *testing.T) {
	repo := &mockAttendanceRepo{}
	for i := 0; i < 5; i++ {
		repo.records = append(repo.records, attendanceOn("s1", day("2024-01-01").AddDate(0, 0, i*2).Format("2006-01-02"), models.ClassTypeGi))
	}
	for i := 0; i < 3; i++ {
		repo.records = append(repo.records, attendanceOn("s1", day("2024-02-01").AddDate(0, 0, i*2).Format("2006-01-02"), models.ClassTypeNoGi))
	}
	svc := newAttendanceFixture(repo, nil)

	stats, err := svc.Stats(context.Background(), instructorClaims(), "s1", day("2024-03-01"))
	require.NoError(t, err)
	require.NotNil(t, stats.FavoriteClassType)
	assert.Equal(t, models.ClassTypeGi, *stats.FavoriteClassType)
}

func TestAttendanceStatsEmptyHistory(t *testing.T) {
	svc := newAttendanceFixture(&mockAttendanceRepo{}, nil)

	stats, err := svc.Stats(context.Background(), instructorClaims(), "s1", day("2024-01-10"))
	require.NoError(t, err)
	assert.Zero(t, stats.TotalAttendances)
	assert.Zero(t, stats.CurrentStreak)
	assert.Nil(t, stats.FavoriteClassType)
}

func TestAttendanceStatsCached(t *testing.T) {
	repo := &mockAttendanceRepo{records: []models.Attendance{attendanceOn("s1", "2024-01-10", models.ClassTypeGi)}}
	cache := &mockStatsCache{}
	svc := newAttendanceFixture(repo, cache)

	_, err := svc.Stats(context.Background(), instructorClaims(), "s1", day("2024-01-10"))
	require.NoError(t, err)
	require.Equal(t, 1, repo.statCalls)

	_, err = svc.Stats(context.Background(), instructorClaims(), "s1", day("2024-01-10"))
	require.NoError(t, err)
	assert.Equal(t, 1, repo.statCalls) // served from cache
}

func TestAttendanceCreateInvalidatesCache(t *testing.T) {
	repo := &mockAttendanceRepo{}
	cache := &mockStatsCache{}
	svc := newAttendanceFixture(repo, cache)

	_, err := svc.Stats(context.Background(), instructorClaims(), "s1", day("2024-01-10"))
	require.NoError(t, err)
	require.NotEmpty(t, cache.entries)

	_, err = svc.Create(context.Background(), instructorClaims(), CreateAttendanceRequest{
		UserID:    "s1",
		Date:      day("2024-01-10"),
		ClassType: models.ClassTypeGi,
	})
	require.NoError(t, err)
	assert.Empty(t, cache.entries)
}

func TestAttendanceStatsStudentsSeeOnlyThemselves(t *testing.T) {
	svc := newAttendanceFixture(&mockAttendanceRepo{}, nil)

	_, err := svc.Stats(context.Background(), studentClaims("s1"), "s2", day("2024-01-10"))
	assert.Equal(t, 403, errStatus(t, err))

	_, err = svc.Stats(context.Background(), studentClaims("s1"), "s1", day("2024-01-10"))
	require.NoError(t, err)
}

func TestAttendanceBulkCreateSkipsInvalidAndDuplicate(t *testing.T) {
	repo := &mockAttendanceRepo{records: []models.Attendance{attendanceOn("s1", "2024-01-10", models.ClassTypeGi)}}
	svc := newAttendanceFixture(repo, nil)

	result, err := svc.BulkCreate(context.Background(), instructorClaims(), BulkAttendanceRequest{
		UserIDs:   []string{"s1", "s2", "stranger"},
		Date:      day("2024-01-10"),
		ClassType: models.ClassTypeGi,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created) // only s2; s1 duplicate, stranger unknown
	assert.Equal(t, 2, result.Skipped)
}

func TestAttendanceDeleteCrossTenantHidden(t *testing.T) {
	repo := &mockAttendanceRepo{details: map[string]models.AttendanceDetail{
		"a1": {Attendance: models.Attendance{ID: "a1", UserID: "x1"}, UserAcademyID: "acad-2"},
	}}
	svc := newAttendanceFixture(repo, nil)

	err := svc.Delete(context.Background(), instructorClaims(), "a1")
	assert.Equal(t, 404, errStatus(t, err))
}

func TestAttendanceCreateForbiddenForStudents(t *testing.T) {
	svc := newAttendanceFixture(&mockAttendanceRepo{}, nil)

	_, err := svc.Create(context.Background(), studentClaims("s1"), CreateAttendanceRequest{
		UserID:    "s1",
		Date:      day("2024-01-10"),
		ClassType: models.ClassTypeGi,
	})
	assert.Equal(t, 403, errStatus(t, err))
}

func TestAttendanceExportHistoryCSV(t *testing.T) {
	repo := &mockAttendanceRepo{records: []models.Attendance{
		attendanceOn("s1", "2024-01-08", models.ClassTypeGi),
		attendanceOn("s1", "2024-01-09", models.ClassTypeNoGi),
	}}
	svc := newAttendanceFixture(repo, nil)

	out, contentType, err := svc.ExportHistory(context.Background(), instructorClaims(), "s1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, string(out), "2024-01-08,GI")
	assert.Contains(t, string(out), "2024-01-09,NOGI")
}

func TestAttendanceExportHistoryRejectsUnknownFormat(t *testing.T) {
	svc := newAttendanceFixture(&mockAttendanceRepo{}, nil)

	_, _, err := svc.ExportHistory(context.Background(), instructorClaims(), "s1", "xlsx")
	assert.Equal(t, 400, errStatus(t, err))
}

func TestCurrentStreakBoundary(t *testing.T) {
	asOf := day("2024-03-01")

	assert.Zero(t, currentStreak(nil, asOf))
	assert.Zero(t, currentStreak([]time.Time{day("2024-02-27")}, asOf))
	assert.Equal(t, 1, currentStreak([]time.Time{day("2024-03-01")}, asOf))

	// A 60-entry unbroken run caps the walk at the lookback window.
	var dates []time.Time
	for i := 0; i < streakLookback; i++ {
		dates = append(dates, asOf.AddDate(0, 0, -i))
	}
	assert.Equal(t, streakLookback, currentStreak(dates, asOf))
}
