package scoring

import "dropout-alerts/internal/models"

const (
	RecommendImmediateAction = "🚨 **ACTION IMMÉDIATE** : Contacter l'étudiant en urgence et organiser un entretien"
	RecommendAcademicSupport = "📚 **Soutien académique** : Proposer un accompagnement renforcé en cours"
	RecommendUrgentContact   = "📞 **Contact urgent** : Contacter l'étudiant pour comprendre les absences"
	RecommendProjectReview   = "💼 **Projets** : Organiser un entretien pour identifier les difficultés sur les projets"
	RecommendTimeManagement  = "⏰ **Gestion du temps** : Mettre en place un accompagnement sur la planification"
	RecommendOnboarding      = "🤝 **Premier contact** : Proposer un rendez-vous pédagogique d'accueil"
	RecommendSurvey          = "💬 **Enquête** : Enquêter sur les causes de l'insatisfaction"
	RecommendStableProfile   = "✅ Profil stable, continuer le suivi régulier"
)

type rule struct {
	applies func(models.StudentRecord) bool
	message string
}

// Evaluated in order; every rule is independent. NaN fields fail their
// comparison.
var rules = []rule{
	{func(s models.StudentRecord) bool { return s.AverageGrade < 10 }, RecommendAcademicSupport},
	{func(s models.StudentRecord) bool { return s.AbsenceRate > 15 }, RecommendUrgentContact},
	{func(s models.StudentRecord) bool { return s.ProjectParticipation < 0.3 }, RecommendProjectReview},
	{func(s models.StudentRecord) bool { return s.LateProjects > 2 }, RecommendTimeManagement},
	{func(s models.StudentRecord) bool { return s.PedagogicalMeetings == 0 && s.Year == 1 }, RecommendOnboarding},
	{func(s models.StudentRecord) bool { return s.Satisfaction < 0.4 }, RecommendSurvey},
}

// Recommend returns the ordered action list for a student. The label is
// accepted for parity with the model outputs but no rule depends on it.
func Recommend(record models.StudentRecord, score float64, _ int) []string {
	out := make([]string, 0, len(rules)+1)
	for _, r := range rules {
		if r.applies(record) {
			out = append(out, r.message)
		}
	}

	if score >= models.CriticalThreshold {
		out = append([]string{RecommendImmediateAction}, out...)
	}

	if len(out) == 0 {
		out = append(out, RecommendStableProfile)
	}
	return out
}
