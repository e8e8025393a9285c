package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dropout-alerts/internal/models"
	"dropout-alerts/internal/scoring"
)

type testEnv struct {
	dir        string
	configPath string
	dataset    string
	schedule   string
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	artifacts := filepath.Join(dir, "models")
	require.NoError(t, os.Mkdir(artifacts, 0o755))
	for name, content := range map[string]string{
		scoring.DropoutModelFile: `{"coefficients":[-0.5,0.1],"intercept":1.0}`,
		scoring.RiskModelFile:    `{"coefficients":[-0.06,0.0],"intercept":1.2}`,
		scoring.EncodersFile:     `{"programme":["Bachelor","MSc","Programme Grande École"]}`,
		scoring.FeatureNamesFile: `["note_moyenne","programme"]`,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(artifacts, name), []byte(content), 0o644))
	}

	env := &testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.yaml"),
		dataset:    filepath.Join(dir, "students.csv"),
		schedule:   filepath.Join(dir, "alert_schedule.yaml"),
	}
	cfg := fmt.Sprintf(`
logging:
  level: error
scoring:
  dataset_path: %s
  artifacts_dir: %s
schedule:
  store: file
  path: %s
observability:
  service_name: riskctl-test
`, env.dataset, artifacts, env.schedule)
	require.NoError(t, os.WriteFile(env.configPath, []byte(cfg), 0o644))
	return env
}

func run(t *testing.T, env *testEnv, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--config", env.configPath))
	err := cmd.Execute()
	return out.String(), err
}

func TestDatasetGenerateThenScore(t *testing.T) {
	env := setupEnv(t)

	out, err := run(t, env, "dataset", "generate", "--n", "60", "--seed", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 60 students to "+env.dataset)
	assert.FileExists(t, env.dataset)

	out, err = run(t, env, "score", "--json", "--all", "--limit", "0")
	require.NoError(t, err)

	var result struct {
		Summary  scoring.Summary `json:"summary"`
		Students []scoredRow     `json:"students"`
		Failed   []string        `json:"failed"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 60, result.Summary.Total)
	assert.Len(t, result.Students, 60)
	assert.Empty(t, result.Failed)
	for i := 1; i < len(result.Students); i++ {
		assert.GreaterOrEqual(t, result.Students[i-1].RiskScore, result.Students[i].RiskScore)
	}

	out, err = run(t, env, "student", result.Students[0].ID, "--json")
	require.NoError(t, err)
	var detail struct {
		Student         map[string]string     `json:"student"`
		Assessment      models.RiskAssessment `json:"assessment"`
		Recommendations []string              `json:"recommendations"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &detail))
	assert.Equal(t, result.Students[0].ID, detail.Assessment.StudentID)
	assert.Equal(t, result.Students[0].Program, detail.Student["programme"])
	assert.NotEmpty(t, detail.Recommendations)
}

func TestScore_TableOutput(t *testing.T) {
	env := setupEnv(t)
	_, err := run(t, env, "dataset", "generate", "--n", "30")
	require.NoError(t, err)

	out, err := run(t, env, "score", "--tier", "low", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "Students:")
	assert.NotContains(t, out, string(models.TierCritical))
}

func TestScore_UnknownTier(t *testing.T) {
	env := setupEnv(t)
	_, err := run(t, env, "score", "--tier", "extreme")
	assert.ErrorContains(t, err, `unknown tier "extreme"`)
}

func TestStudent_NotFound(t *testing.T) {
	env := setupEnv(t)
	_, err := run(t, env, "dataset", "generate", "--n", "10")
	require.NoError(t, err)

	_, err = run(t, env, "student", "EPI-BDX-99999")
	assert.ErrorContains(t, err, "student not found")
}

func TestAlertSend_SkipsUnconfiguredChannels(t *testing.T) {
	env := setupEnv(t)
	_, err := run(t, env, "dataset", "generate", "--n", "20")
	require.NoError(t, err)

	out, err := run(t, env, "score", "--json", "--all", "--limit", "1")
	require.NoError(t, err)
	var scored struct {
		Students []scoredRow `json:"students"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &scored))
	require.NotEmpty(t, scored.Students)

	out, err = run(t, env, "alert", "send", "--mode", "manual", "--students", scored.Students[0].ID, "--channels", "both", "--json")
	if err != nil && scored.Students[0].RiskScore < models.ModerateThreshold {
		t.Skip("top student is not at risk in this population")
	}
	require.NoError(t, err)

	var report struct {
		Students []string                `json:"students"`
		Results  []models.DeliveryResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, []string{scored.Students[0].ID}, report.Students)
	require.Len(t, report.Results, 2)
	for _, r := range report.Results {
		assert.True(t, r.Skipped)
	}
}

func TestAlertSend_InvalidFlags(t *testing.T) {
	env := setupEnv(t)

	_, err := run(t, env, "alert", "send", "--mode", "everyone")
	assert.ErrorContains(t, err, "everyone")

	_, err = run(t, env, "alert", "send", "--channels", "fax")
	assert.ErrorContains(t, err, "fax")
}

func TestScheduleSaveAndShow(t *testing.T) {
	env := setupEnv(t)
	_, err := run(t, env, "dataset", "generate", "--n", "10")
	require.NoError(t, err)

	out, err := run(t, env, "schedule", "save",
		"--frequency", "monthly", "--time", "07:45", "--day-of-month", "3",
		"--channel", "teams", "--students", "EPI-BDX-00001,EPI-BDX-00002", "--title", "Bilan mensuel")
	require.NoError(t, err)
	assert.Contains(t, out, "Schedule saved (monthly at 07:45, 2 student(s)) to the file store")
	assert.FileExists(t, env.schedule)

	out, err = run(t, env, "schedule", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "frequency: monthly")
	assert.Contains(t, out, "day_of_month: 3")
	assert.Contains(t, out, "- EPI-BDX-00002")
}

func TestScheduleSave_FromFileRejectsInvalid(t *testing.T) {
	env := setupEnv(t)
	_, err := run(t, env, "dataset", "generate", "--n", "10")
	require.NoError(t, err)

	path := filepath.Join(env.dir, "schedule.yaml")
	require.NoError(t, os.WriteFile(path, []byte("frequency: weekly\ntime: \"25:00\"\nchannel_type: email\nstudents: [EPI-BDX-00001]\ntitle: x\n"), 0o644))

	_, err = run(t, env, "schedule", "save", "--file", path)
	assert.ErrorContains(t, err, "invalid schedule")
	assert.NoFileExists(t, env.schedule)
}

func TestProcessVariables(t *testing.T) {
	vars := processVariables(map[string]string{
		"mode":    "critical_only",
		"limit":   "5",
		"refresh": "true",
	})
	assert.Equal(t, map[string]interface{}{
		"mode":    "critical_only",
		"limit":   5,
		"refresh": true,
	}, vars)
}

func TestProcessStart_RequiresBroker(t *testing.T) {
	env := setupEnv(t)
	_, err := run(t, env, "process", "start", "dropout-alert")
	assert.ErrorContains(t, err, "camunda.broker_address is required")
}

func TestSearch_DisabledIndex(t *testing.T) {
	env := setupEnv(t)
	_, err := run(t, env, "search", "--tier", "critical")
	assert.ErrorIs(t, err, errSearchDisabled)

	_, err = run(t, env, "index")
	assert.ErrorIs(t, err, errSearchDisabled)
}
