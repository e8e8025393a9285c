// internal/models/student.go
package models

import (
	"math"
	"strconv"
	"strings"
)

// StudentRecord is one row of the student dataset. Numeric fields hold NaN
// when the source value is missing or malformed, so any comparison against
// them is false.
type StudentRecord struct {
	ID                    string  `json:"id_etudiant"`
	Institution           string  `json:"etablissement"`
	Program               string  `json:"programme"`
	ClassGroup            string  `json:"classe"`
	Year                  float64 `json:"annee_etude"`
	AgeBracket            string  `json:"tranche_age"`
	AverageGrade          float64 `json:"note_moyenne"`
	ProgrammingGrade      float64 `json:"note_programmation"`
	ProjectGrade          float64 `json:"note_projet"`
	InnovationGrade       float64 `json:"note_innovation"`
	AbsenceRate           float64 `json:"taux_absences"`
	AbsenceCount          float64 `json:"nb_absences"`
	LateCount             float64 `json:"nb_retards"`
	ProjectParticipation  float64 `json:"participation_projets"`
	ClassParticipation    float64 `json:"participation_cours"`
	ActivityParticipation float64 `json:"participation_activites"`
	ProjectsCompleted     float64 `json:"nb_projets_termines"`
	LateProjects          float64 `json:"nb_projets_en_retard"`
	ActivitiesAttended    float64 `json:"nb_activites_participees"`
	Scholarship           float64 `json:"boursier"`
	WeeklyStudyHours      float64 `json:"temps_etude_semaine"`
	WeeklyClassHours      float64 `json:"nb_heures_cours_semaine"`
	ClassSize             string  `json:"taille_classe"`
	PedagogicalMeetings   float64 `json:"nb_rdv_pedagogique"`
	HelpRequests          float64 `json:"nb_demandes_aide"`
	DisciplinaryReminders float64 `json:"nb_rappel_discipline"`
	FailedEvaluations     float64 `json:"nb_echec_evaluation"`
	Satisfaction          float64 `json:"satisfaction_formation"`
}

// FieldValue is a single dataset cell, either numeric or categorical.
type FieldValue struct {
	Number      float64
	Text        string
	Categorical bool
}

// String renders the value the way it appears in the dataset.
func (v FieldValue) String() string {
	if v.Categorical {
		return v.Text
	}
	if v.Number == math.Trunc(v.Number) && math.Abs(v.Number) < 1e15 {
		return strconv.FormatInt(int64(v.Number), 10)
	}
	return strconv.FormatFloat(v.Number, 'f', -1, 64)
}

type column struct {
	name        string
	categorical bool
	text        func(*StudentRecord) *string
	number      func(*StudentRecord) *float64
}

// Column order matches the dataset generator output.
var columns = []column{
	{name: "id_etudiant", categorical: true, text: func(s *StudentRecord) *string { return &s.ID }},
	{name: "etablissement", categorical: true, text: func(s *StudentRecord) *string { return &s.Institution }},
	{name: "programme", categorical: true, text: func(s *StudentRecord) *string { return &s.Program }},
	{name: "classe", categorical: true, text: func(s *StudentRecord) *string { return &s.ClassGroup }},
	{name: "annee_etude", number: func(s *StudentRecord) *float64 { return &s.Year }},
	{name: "tranche_age", categorical: true, text: func(s *StudentRecord) *string { return &s.AgeBracket }},
	{name: "note_moyenne", number: func(s *StudentRecord) *float64 { return &s.AverageGrade }},
	{name: "note_programmation", number: func(s *StudentRecord) *float64 { return &s.ProgrammingGrade }},
	{name: "note_projet", number: func(s *StudentRecord) *float64 { return &s.ProjectGrade }},
	{name: "note_innovation", number: func(s *StudentRecord) *float64 { return &s.InnovationGrade }},
	{name: "taux_absences", number: func(s *StudentRecord) *float64 { return &s.AbsenceRate }},
	{name: "nb_absences", number: func(s *StudentRecord) *float64 { return &s.AbsenceCount }},
	{name: "nb_retards", number: func(s *StudentRecord) *float64 { return &s.LateCount }},
	{name: "participation_projets", number: func(s *StudentRecord) *float64 { return &s.ProjectParticipation }},
	{name: "participation_cours", number: func(s *StudentRecord) *float64 { return &s.ClassParticipation }},
	{name: "participation_activites", number: func(s *StudentRecord) *float64 { return &s.ActivityParticipation }},
	{name: "nb_projets_termines", number: func(s *StudentRecord) *float64 { return &s.ProjectsCompleted }},
	{name: "nb_projets_en_retard", number: func(s *StudentRecord) *float64 { return &s.LateProjects }},
	{name: "nb_activites_participees", number: func(s *StudentRecord) *float64 { return &s.ActivitiesAttended }},
	{name: "boursier", number: func(s *StudentRecord) *float64 { return &s.Scholarship }},
	{name: "temps_etude_semaine", number: func(s *StudentRecord) *float64 { return &s.WeeklyStudyHours }},
	{name: "nb_heures_cours_semaine", number: func(s *StudentRecord) *float64 { return &s.WeeklyClassHours }},
	{name: "taille_classe", categorical: true, text: func(s *StudentRecord) *string { return &s.ClassSize }},
	{name: "nb_rdv_pedagogique", number: func(s *StudentRecord) *float64 { return &s.PedagogicalMeetings }},
	{name: "nb_demandes_aide", number: func(s *StudentRecord) *float64 { return &s.HelpRequests }},
	{name: "nb_rappel_discipline", number: func(s *StudentRecord) *float64 { return &s.DisciplinaryReminders }},
	{name: "nb_echec_evaluation", number: func(s *StudentRecord) *float64 { return &s.FailedEvaluations }},
	{name: "satisfaction_formation", number: func(s *StudentRecord) *float64 { return &s.Satisfaction }},
}

var columnIndex = func() map[string]int {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		idx[c.name] = i
	}
	return idx
}()

// Columns returns the dataset column names in file order.
func Columns() []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.name
	}
	return names
}

// NewStudentRecord returns a record with every numeric field unset (NaN).
func NewStudentRecord(id string) StudentRecord {
	s := StudentRecord{ID: id}
	for _, c := range columns {
		if !c.categorical {
			*c.number(&s) = math.NaN()
		}
	}
	return s
}

// Field looks a value up by dataset column name. It reports false when the
// column is unknown, a categorical value is empty, or a numeric value is NaN.
func (s StudentRecord) Field(name string) (FieldValue, bool) {
	i, ok := columnIndex[name]
	if !ok {
		return FieldValue{}, false
	}
	c := columns[i]
	if c.categorical {
		v := *c.text(&s)
		if v == "" {
			return FieldValue{}, false
		}
		return FieldValue{Text: v, Categorical: true}, true
	}
	v := *c.number(&s)
	if math.IsNaN(v) {
		return FieldValue{}, false
	}
	return FieldValue{Number: v}, true
}

// SetField assigns a raw dataset cell. Numeric cells that fail to parse are
// stored as NaN; unknown columns are ignored.
func (s *StudentRecord) SetField(name, raw string) {
	i, ok := columnIndex[name]
	if !ok {
		return
	}
	c := columns[i]
	raw = strings.TrimSpace(raw)
	if c.categorical {
		*c.text(s) = raw
		return
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		v = math.NaN()
	}
	*c.number(s) = v
}

// Values renders the record as dataset cells in column order.
func (s StudentRecord) Values() []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		if v, ok := s.Field(c.name); ok {
			out[i] = v.String()
		}
	}
	return out
}
