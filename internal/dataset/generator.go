package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"dropout-alerts/internal/models"
)

const (
	DefaultStudents = 300
	DefaultSeed     = 42
	Institution     = "EPITECH Bordeaux"
)

// Programs offered, with their share of the population and number of years
// and class groups per year.
var programs = []struct {
	name   string
	prefix string
	weight float64
	years  int
	groups int
}{
	{"Programme Grande École", "PGE", 0.50, 5, 8},
	{"Bachelor", "BACH", 0.35, 3, 5},
	{"MSc", "MSc", 0.15, 2, 3},
}

var (
	ageBrackets     = []string{"18-20", "21-23", "24-26", "27+"}
	ageWeights      = []float64{0.40, 0.35, 0.20, 0.05}
	classHours      = []float64{20, 25, 30, 35}
	classHourWeight = []float64{0.20, 0.40, 0.30, 0.10}
	classSizes      = []string{"Petite (<25)", "Moyenne (25-35)", "Grande (>35)"}
	classSizeWeight = []float64{0.30, 0.50, 0.20}
)

// Options control the generator. Identical options always produce the same
// dataset.
type Options struct {
	Students int
	Seed     uint64
}

type generator struct {
	src rand.Source
	rng *rand.Rand

	program   distuv.Categorical
	age       distuv.Categorical
	hours     distuv.Categorical
	classSize distuv.Categorical
}

// Generate builds a synthetic population with no personally identifying
// fields.
func Generate(opts Options) []models.StudentRecord {
	n := opts.Students
	if n <= 0 {
		n = DefaultStudents
	}
	seed := opts.Seed
	if seed == 0 {
		seed = DefaultSeed
	}

	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	weights := make([]float64, len(programs))
	for i, p := range programs {
		weights[i] = p.weight
	}
	g := &generator{
		src:       src,
		rng:       rand.New(src),
		program:   distuv.NewCategorical(weights, src),
		age:       distuv.NewCategorical(ageWeights, src),
		hours:     distuv.NewCategorical(classHourWeight, src),
		classSize: distuv.NewCategorical(classSizeWeight, src),
	}

	out := make([]models.StudentRecord, n)
	for i := range out {
		out[i] = g.student(i + 1)
	}
	return out
}

func (g *generator) student(seq int) models.StudentRecord {
	prog := programs[int(g.program.Rand())]
	year := 1 + g.rng.IntN(prog.years)
	group := 1 + g.rng.IntN(prog.groups)

	r := models.StudentRecord{
		ID:          fmt.Sprintf("EPI-BDX-%05d", seq),
		Institution: Institution,
		Program:     prog.name,
		ClassGroup:  fmt.Sprintf("%s-%dA-G%d", prog.prefix, year, group),
		Year:        float64(year),
		AgeBracket:  ageBrackets[int(g.age.Rand())],
	}

	base := g.normal(12, 3)
	if prog.prefix == "MSc" {
		base += 1.0
	}
	if year >= 3 {
		base += 0.5
	}
	r.AverageGrade = clamp(round(base, 1), 5, 20)
	r.ProgrammingGrade = clamp(round(base+g.normal(0, 1.5), 1), 5, 20)
	r.ProjectGrade = clamp(round(base+g.normal(0, 2), 1), 5, 20)
	r.InnovationGrade = clamp(round(base+g.normal(0, 1.5), 1), 5, 20)

	absences := g.beta(2, 5) * 25
	r.AbsenceRate = round(absences, 1)
	r.AbsenceCount = g.poisson(absences / 8)
	r.LateCount = g.poisson(absences / 12)

	projects := g.beta(3, 2)
	r.ProjectParticipation = round(projects, 2)
	r.ProjectsCompleted = g.poisson(projects * 5)
	r.LateProjects = g.poisson((1 - projects) * 2)

	r.ClassParticipation = round(g.beta(3, 2), 2)

	activities := g.beta(2, 3)
	r.ActivityParticipation = round(activities, 2)
	r.ActivitiesAttended = g.poisson(activities * 3)

	if g.rng.Float64() < 0.40 {
		r.Scholarship = 1
	}

	r.WeeklyStudyHours = clamp(math.Trunc(g.normal(30, 10)), 10, 60)
	r.WeeklyClassHours = classHours[int(g.hours.Rand())]
	r.ClassSize = classSizes[int(g.classSize.Rand())]

	r.PedagogicalMeetings = g.poisson(2)
	r.HelpRequests = g.poisson(1.5)
	r.Satisfaction = round(g.beta(3, 2), 2)
	r.DisciplinaryReminders = g.poisson(0.3)
	r.FailedEvaluations = g.poisson(0.5)

	return r
}

func (g *generator) normal(mu, sigma float64) float64 {
	return distuv.Normal{Mu: mu, Sigma: sigma, Src: g.src}.Rand()
}

func (g *generator) beta(a, b float64) float64 {
	return distuv.Beta{Alpha: a, Beta: b, Src: g.src}.Rand()
}

func (g *generator) poisson(lambda float64) float64 {
	if lambda <= 0 {
		return 0
	}
	return distuv.Poisson{Lambda: lambda, Src: g.src}.Rand()
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
