package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	apperrors "dropout-alerts/internal/common/errors"
	"dropout-alerts/internal/common/logger"
	"dropout-alerts/internal/models"
)

const testPrefix = "dropout:assessment:"

func TestRedisAssessmentStore_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisAssessmentStore(client, testPrefix, time.Hour)
	ctx := context.Background()

	saved := []models.RiskAssessment{
		{StudentID: "EPI-1", DropoutLabel: 1, DropoutProbability: 0.81, RiskScore: 0.77},
		{StudentID: "EPI-2", DropoutLabel: 0, DropoutProbability: 0.12, RiskScore: 0.2},
	}
	require.NoError(t, store.Save(ctx, saved))
	assert.True(t, mr.Exists(testPrefix+"EPI-1"))
	assert.Equal(t, time.Hour, mr.TTL(testPrefix+"EPI-1"))

	got, err := store.Lookup(ctx, []string{"EPI-1", "EPI-2", "EPI-3"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, saved[0], got["EPI-1"])

	require.NoError(t, store.Clear(ctx))
	assert.False(t, mr.Exists(testPrefix+"EPI-1"))
	assert.False(t, mr.Exists(testPrefix+"EPI-2"))
}

func TestRedisAssessmentStore_LookupSkipsCorruptEntries(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisAssessmentStore(client, testPrefix, 0)

	good, _ := json.Marshal(models.RiskAssessment{StudentID: "EPI-1", RiskScore: 0.5})
	mock.ExpectMGet(testPrefix+"EPI-1", testPrefix+"EPI-2", testPrefix+"EPI-3").
		SetVal([]interface{}{string(good), "{not json", nil})

	got, err := store.Lookup(context.Background(), []string{"EPI-1", "EPI-2", "EPI-3"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.InDelta(t, 0.5, got["EPI-1"].RiskScore, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisAssessmentStore_LookupError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisAssessmentStore(client, testPrefix, 0)

	mock.ExpectMGet(testPrefix + "EPI-1").SetErr(errors.New("connection refused"))

	_, err := store.Lookup(context.Background(), []string{"EPI-1"})
	assert.ErrorContains(t, err, "connection refused")
}

func TestPredictionCache_ReusesSharedAssessments(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	store := NewRedisAssessmentStore(client, testPrefix, 0)
	ctx := context.Background()

	first := &countingScorer{}
	warm := NewPredictionCache(CacheOptions{
		Loader: func() ([]models.StudentRecord, error) { return records(6), nil },
		Scorer: first,
		Store:  store,
		Logger: logger.NewTestLogger(t),
	})
	require.NoError(t, warm.Load(ctx))
	assert.Equal(t, int32(6), first.calls)

	second := &countingScorer{}
	replica := NewPredictionCache(CacheOptions{
		Loader: func() ([]models.StudentRecord, error) { return records(6), nil },
		Scorer: second,
		Store:  store,
		Logger: logger.NewTestLogger(t),
	})
	all, err := replica.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 6)
	assert.Zero(t, second.calls)

	replica.Invalidate(ctx)
	require.NoError(t, replica.Load(ctx))
	assert.Equal(t, int32(6), second.calls)
}

type fixedScorer struct{ score float64 }

func (s fixedScorer) Predict(rec models.StudentRecord) (models.RiskAssessment, error) {
	return models.RiskAssessment{StudentID: rec.ID, RiskScore: s.score, DropoutProbability: s.score}, nil
}

func TestPredictionCache_NewGenerationIgnoresOlderAssessments(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	newCache := func(generation string, scorer Scorer) *PredictionCache {
		return NewPredictionCache(CacheOptions{
			Loader: func() ([]models.StudentRecord, error) { return records(4), nil },
			Scorer: scorer,
			Store:  NewRedisAssessmentStore(client, testPrefix, time.Hour).WithGeneration(func() string { return generation }),
			Logger: logger.NewTestLogger(t),
		})
	}

	oldModel, err := newCache("model-a", fixedScorer{score: 0.9}).All(ctx)
	require.NoError(t, err)
	require.Len(t, oldModel, 4)
	assert.True(t, mr.Exists(testPrefix+"model-a:EPI-BDX-00001"))

	newModel, err := newCache("model-b", fixedScorer{score: 0.1}).All(ctx)
	require.NoError(t, err)
	require.Len(t, newModel, 4)
	for _, s := range newModel {
		assert.InDelta(t, 0.1, s.Assessment.RiskScore, 1e-9, s.Student.ID)
	}
	assert.True(t, mr.Exists(testPrefix+"model-b:EPI-BDX-00001"))

	replica := &countingScorer{}
	_, err = newCache("model-b", replica).All(ctx)
	require.NoError(t, err)
	assert.Zero(t, replica.calls)

	store := NewRedisAssessmentStore(client, testPrefix, 0)
	require.NoError(t, store.Clear(ctx))
	assert.Empty(t, mr.Keys())
}

func TestPredictionCache_StoreDownFallsBackToLocal(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	core, logs := observer.New(zap.WarnLevel)
	scorer := &countingScorer{}
	cache := NewPredictionCache(CacheOptions{
		Loader: func() ([]models.StudentRecord, error) { return records(3), nil },
		Scorer: scorer,
		Store:  NewRedisAssessmentStore(client, testPrefix, 0),
		Logger: logger.NewZapAdapter(zap.New(core)),
	})

	all, err := cache.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, int32(3), scorer.calls)

	warnings := logs.All()
	require.Len(t, warnings, 2)
	for _, entry := range warnings {
		fields := entry.ContextMap()
		assert.Equal(t, string(apperrors.ErrCodeCacheUnavailable), fields["code"], entry.Message)
		assert.Equal(t, true, fields["retryable"])
	}
}

func createValidSchedule() *models.ScheduleConfig {
	return &models.ScheduleConfig{
		Frequency:   models.FrequencyWeekly,
		Time:        "08:30",
		DayOfWeek:   "Lundi",
		ChannelType: models.ScheduleChannelBoth,
		Students:    []string{"EPI-BDX-00001", "EPI-BDX-00007"},
		Title:       "🚨 Alerte Décrochage - 2 étudiant(s) à risque",
		Message:     "<h2>Alerte</h2>",
	}
}

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.ScheduleConfig)
		valid  bool
	}{
		{name: "weekly", valid: true},
		{name: "daily with seconds", mutate: func(c *models.ScheduleConfig) {
			c.Frequency = models.FrequencyDaily
			c.DayOfWeek = ""
			c.Time = "18:05:00"
		}, valid: true},
		{name: "monthly", mutate: func(c *models.ScheduleConfig) {
			c.Frequency = models.FrequencyMonthly
			c.DayOfWeek = ""
			c.DayOfMonth = 28
		}, valid: true},
		{name: "monthly without day", mutate: func(c *models.ScheduleConfig) { c.Frequency = models.FrequencyMonthly; c.DayOfWeek = "" }},
		{name: "monthly day 29", mutate: func(c *models.ScheduleConfig) { c.Frequency = models.FrequencyMonthly; c.DayOfMonth = 29 }},
		{name: "weekly without day", mutate: func(c *models.ScheduleConfig) { c.DayOfWeek = "" }},
		{name: "weekend day", mutate: func(c *models.ScheduleConfig) { c.DayOfWeek = "Dimanche" }},
		{name: "bad time", mutate: func(c *models.ScheduleConfig) { c.Time = "25:00" }},
		{name: "unknown frequency", mutate: func(c *models.ScheduleConfig) { c.Frequency = "hourly" }},
		{name: "no students", mutate: func(c *models.ScheduleConfig) { c.Students = nil }},
		{name: "unknown channel", mutate: func(c *models.ScheduleConfig) { c.ChannelType = "fax" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := createValidSchedule()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := ValidateSchedule(cfg)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidSchedule)
			}
		})
	}
}

func TestFileScheduleStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "alert_schedule.yaml")
	saver := NewScheduleSaver(NewFileScheduleStore(path), "file", logger.NewTestLogger(t))
	ctx := context.Background()

	_, err := saver.LoadSchedule(ctx)
	assert.ErrorIs(t, err, ErrScheduleNotFound)

	cfg := createValidSchedule()
	require.NoError(t, saver.SaveSchedule(ctx, cfg))

	loaded, err := saver.LoadSchedule(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	second := createValidSchedule()
	second.Frequency = models.FrequencyDaily
	second.DayOfWeek = ""
	require.NoError(t, saver.SaveSchedule(ctx, second))

	loaded, err = saver.LoadSchedule(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, loaded)
}

func TestScheduleSaver_RejectsInvalidWithoutWriting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alert_schedule.yaml")
	saver := NewScheduleSaver(NewFileScheduleStore(path), "file", logger.NewTestLogger(t))

	cfg := createValidSchedule()
	cfg.Time = "later"
	err := saver.SaveSchedule(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrInvalidSchedule)

	assert.NoFileExists(t, path)
}

func TestScheduleSaver_PersistFailure(t *testing.T) {
	dir := t.TempDir()
	saver := NewScheduleSaver(NewFileScheduleStore(dir), "file", logger.NewTestLogger(t))

	err := saver.SaveSchedule(context.Background(), createValidSchedule())
	assert.ErrorIs(t, err, ErrSchedulePersist)
}

func TestPostgresScheduleStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresScheduleStore(db, "alert_schedules")
	ctx := context.Background()
	cfg := createValidSchedule()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "alert_schedules"`).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, store.EnsureSchema(ctx))

	mock.ExpectExec(`INSERT INTO "alert_schedules"`).
		WithArgs(cfg.Frequency, cfg.Time, cfg.DayOfWeek, cfg.DayOfMonth, cfg.ChannelType, sqlmock.AnyArg(), cfg.Title, cfg.Message).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, store.Save(ctx, cfg))

	rows := sqlmock.NewRows([]string{"frequency", "send_time", "day_of_week", "day_of_month", "channel_type", "students", "title", "message"}).
		AddRow(cfg.Frequency, cfg.Time, cfg.DayOfWeek, cfg.DayOfMonth, cfg.ChannelType, "{EPI-BDX-00001,EPI-BDX-00007}", cfg.Title, cfg.Message)
	mock.ExpectQuery(`SELECT frequency, send_time, day_of_week, day_of_month, channel_type, students, title, message\s+FROM "alert_schedules" ORDER BY id DESC LIMIT 1`).
		WillReturnRows(rows)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	mock.ExpectQuery(`SELECT .* FROM "alert_schedules"`).WillReturnRows(sqlmock.NewRows([]string{"frequency"}))
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrScheduleNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresScheduleStore_InsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO "alert_schedules"`).WillReturnError(errors.New("relation does not exist"))

	saver := NewScheduleSaver(NewPostgresScheduleStore(db, "alert_schedules"), "postgres", logger.NewTestLogger(t))
	err = saver.SaveSchedule(context.Background(), createValidSchedule())

	assert.ErrorIs(t, err, ErrSchedulePersist)
	assert.ErrorContains(t, err, "relation does not exist")
}
