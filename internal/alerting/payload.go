package alerting

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"dropout-alerts/internal/models"
	"dropout-alerts/internal/scoring"
)

const (
	dateLayout        = "02/01/2006 15:04"
	recommendedAction = "Contacter les étudiants concernés et organiser des entretiens pédagogiques."
)

// DefaultTitle is the title used when the caller does not supply one.
func DefaultTitle(n int) string {
	return fmt.Sprintf("🚨 Alerte Décrochage - %d étudiant(s) à risque", n)
}

// BuildPayload renders one alert for every channel. A non-empty message
// replaces the generated bodies and is sent to Teams as free text.
func BuildPayload(targets []models.ScoredStudent, title, message string, now time.Time) *models.AlertPayload {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle(len(targets))
	}
	p := &models.AlertPayload{
		ID:        uuid.New().String(),
		Title:     title,
		Targets:   targets,
		CreatedAt: now,
	}
	if strings.TrimSpace(message) != "" {
		p.HTMLBody = message
		p.TextBody = message
		p.CustomMessage = message
		return p
	}
	p.HTMLBody = RenderHTML(targets, now)
	p.TextBody = RenderText(targets, now)
	return p
}

func tierCounts(targets []models.ScoredStudent) (critical, high, moderate int) {
	p := models.AlertPayload{Targets: targets}
	return p.TierCounts()
}

// RenderHTML builds the default email body: tier summary and student table.
func RenderHTML(targets []models.ScoredStudent, now time.Time) string {
	critical, high, moderate := tierCounts(targets)

	var b strings.Builder
	b.WriteString("<h2>🚨 Alerte - Étudiants à risque de décrochage</h2>\n")
	fmt.Fprintf(&b, "<p><strong>Date :</strong> %s</p>\n", now.Format(dateLayout))
	fmt.Fprintf(&b, "<p><strong>Nombre d'étudiants concernés :</strong> %d</p>\n", len(targets))
	b.WriteString("<h3>Résumé :</h3>\n<ul>\n")
	fmt.Fprintf(&b, "<li>🔴 Profils critiques (≥70%%) : %d</li>\n", critical)
	fmt.Fprintf(&b, "<li>🟠 Risque élevé (50-70%%) : %d</li>\n", high)
	fmt.Fprintf(&b, "<li>🟡 Risque modéré (30-50%%) : %d</li>\n", moderate)
	b.WriteString("</ul>\n")
	b.WriteString("<h3>Liste des étudiants :</h3>\n")
	b.WriteString(`<table border="1" style="border-collapse: collapse; width: 100%;">` + "\n")
	b.WriteString("<tr><th>ID Étudiant</th><th>Programme</th><th>Année</th><th>Score Risque</th><th>Note Moyenne</th></tr>\n")
	for _, t := range targets {
		level := scoring.ClassifyRisk(t.Assessment.RiskScore)
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td>", html.EscapeString(t.Student.ID), html.EscapeString(t.Student.Program), year(t.Student.Year))
		fmt.Fprintf(&b, `<td style="color: %s; font-weight: bold;">%s %.1f%%</td>`, level.Color, level.Icon, t.Assessment.RiskScore*100)
		fmt.Fprintf(&b, "<td>%s/20</td></tr>\n", grade(t.Student.AverageGrade))
	}
	b.WriteString("</table>\n")
	fmt.Fprintf(&b, "<p><strong>Action recommandée :</strong> %s</p>\n", recommendedAction)
	return b.String()
}

// RenderText is the plain-text alternative of RenderHTML.
func RenderText(targets []models.ScoredStudent, now time.Time) string {
	critical, high, moderate := tierCounts(targets)

	var b strings.Builder
	b.WriteString("Alerte - Étudiants à risque de décrochage\n\n")
	fmt.Fprintf(&b, "Date : %s\n", now.Format(dateLayout))
	fmt.Fprintf(&b, "Nombre d'étudiants concernés : %d\n\n", len(targets))
	b.WriteString("Résumé :\n")
	fmt.Fprintf(&b, "- Profils critiques (≥70%%) : %d\n", critical)
	fmt.Fprintf(&b, "- Risque élevé (50-70%%) : %d\n", high)
	fmt.Fprintf(&b, "- Risque modéré (30-50%%) : %d\n\n", moderate)
	b.WriteString("Liste des étudiants :\n")
	for _, t := range targets {
		level := scoring.ClassifyRisk(t.Assessment.RiskScore)
		fmt.Fprintf(&b, "- %s (%s, Année %s) : %s %.1f%% - Note: %s/20\n",
			t.Student.ID, t.Student.Program, year(t.Student.Year), level.Icon, t.Assessment.RiskScore*100, grade(t.Student.AverageGrade))
	}
	fmt.Fprintf(&b, "\nAction recommandée : %s\n", recommendedAction)
	return b.String()
}

func year(v float64) string {
	if math.IsNaN(v) {
		return "?"
	}
	return fmt.Sprintf("%d", int(v))
}

func grade(v float64) string {
	if math.IsNaN(v) {
		return "N/A"
	}
	return fmt.Sprintf("%.1f", v)
}
