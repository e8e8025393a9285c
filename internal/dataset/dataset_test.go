package dataset

import (
	"bytes"
	"math"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Deterministic(t *testing.T) {
	a := Generate(Options{Students: 50, Seed: 7})
	b := Generate(Options{Students: 50, Seed: 7})
	c := Generate(Options{Students: 50, Seed: 8})

	require.Len(t, a, 50)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestGenerate_Defaults(t *testing.T) {
	records := Generate(Options{})
	assert.Len(t, records, DefaultStudents)
	assert.Equal(t, "EPI-BDX-00001", records[0].ID)
	assert.Equal(t, "EPI-BDX-00300", records[len(records)-1].ID)
}

func TestGenerate_Ranges(t *testing.T) {
	classPattern := regexp.MustCompile(`^(PGE-[1-5]A-G[1-8]|BACH-[1-3]A-G[1-5]|MSc-[1-2]A-G[1-3])$`)
	maxYear := map[string]float64{"Programme Grande École": 5, "Bachelor": 3, "MSc": 2}

	for _, r := range Generate(Options{Students: 500, Seed: 42}) {
		assert.Equal(t, Institution, r.Institution)
		assert.Regexp(t, classPattern, r.ClassGroup)
		require.Contains(t, maxYear, r.Program)
		assert.GreaterOrEqual(t, r.Year, 1.0)
		assert.LessOrEqual(t, r.Year, maxYear[r.Program])
		assert.True(t, strings.Contains(r.ClassGroup, "-"+formatYear(r.Year)+"A-"), r.ClassGroup)

		for _, g := range []float64{r.AverageGrade, r.ProgrammingGrade, r.ProjectGrade, r.InnovationGrade} {
			assert.GreaterOrEqual(t, g, 5.0)
			assert.LessOrEqual(t, g, 20.0)
		}
		assert.GreaterOrEqual(t, r.AbsenceRate, 0.0)
		assert.LessOrEqual(t, r.AbsenceRate, 25.0)
		for _, p := range []float64{r.ProjectParticipation, r.ClassParticipation, r.ActivityParticipation, r.Satisfaction} {
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
		}
		assert.GreaterOrEqual(t, r.WeeklyStudyHours, 10.0)
		assert.LessOrEqual(t, r.WeeklyStudyHours, 60.0)
		assert.Contains(t, []float64{20, 25, 30, 35}, r.WeeklyClassHours)
		assert.Contains(t, classSizes, r.ClassSize)
		assert.Contains(t, ageBrackets, r.AgeBracket)
		assert.Contains(t, []float64{0, 1}, r.Scholarship)
		assert.Equal(t, r.LateProjects, math.Trunc(r.LateProjects))
	}
}

func formatYear(y float64) string {
	return string(rune('0' + int(y)))
}

func TestCSV_RoundTrip(t *testing.T) {
	records := Generate(Options{Students: 20, Seed: 3})

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, records))
	assert.True(t, strings.HasPrefix(buf.String(), utf8BOM+"id_etudiant,etablissement,programme"))

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestRead_ToleratesMalformedCells(t *testing.T) {
	in := "note_moyenne,id_etudiant,programme,taux_absences\n" +
		"11.5,EPI-BDX-00001,Bachelor,abc\n" +
		",EPI-BDX-00002,MSc,3.5\n" +
		"9,,MSc,1\n"

	got, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 11.5, got[0].AverageGrade)
	assert.True(t, math.IsNaN(got[0].AbsenceRate))
	assert.True(t, math.IsNaN(got[0].Year))
	assert.True(t, math.IsNaN(got[1].AverageGrade))
	assert.Equal(t, "MSc", got[1].Program)
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"no id column", "programme,annee_etude\nMSc,1\n"},
		{"duplicate id", "id_etudiant\nA\nA\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.in))
			assert.ErrorIs(t, err, ErrDatasetUnavailable)
		})
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "students.csv")
	records := Generate(Options{Students: 5, Seed: 1})
	require.NoError(t, Save(path, records))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, records, got)

	_, err = Load(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, ErrDatasetUnavailable)
}

func TestStamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "students.csv")
	assert.Equal(t, "missing", Stamp(path))

	require.NoError(t, Save(path, Generate(Options{Students: 5, Seed: 1})))
	first := Stamp(path)
	assert.NotEqual(t, "missing", first)
	assert.Equal(t, first, Stamp(path))

	require.NoError(t, Save(path, Generate(Options{Students: 6, Seed: 1})))
	assert.NotEqual(t, first, Stamp(path))
}
