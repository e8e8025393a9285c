package notification

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"dropout-alerts/internal/models"
	"dropout-alerts/internal/scoring"
)

const (
	// DigestStudentLimit caps the students carried by a structured digest.
	DigestStudentLimit = 20
	// CardStudentLimit caps the student facts shown in a MessageCard.
	CardStudentLimit = 15

	DateLayout = "02/01/2006 15:04"

	cardType    = "MessageCard"
	cardContext = "http://schema.org/extensions"

	labelCount        = "Nombre d'étudiants concernés :"
	labelSummary      = "Résumé :"
	labelStudentList  = "Liste des étudiants :"
	labelAction       = "Action recommandée :"
	recommendedAction = "Contacter les étudiants concernés et organiser des entretiens pédagogiques."
	labelCritical     = "Profils critiques (≥70%)"
	labelHigh         = "Risque élevé (50-70%)"
	labelModerate     = "Risque modéré (30-50%)"
)

// DigestStudent is one line of a structured digest.
type DigestStudent struct {
	ID      string  `json:"id"`
	Program string  `json:"program"`
	Year    float64 `json:"year"`
	Percent float64 `json:"riskPercent"`
	Grade   float64 `json:"averageGrade"`
	Icon    string  `json:"icon"`
}

// AlertDigest is the structured form of an alert for Teams.
type AlertDigest struct {
	Date      string          `json:"date"`
	Total     int             `json:"total"`
	Critical  int             `json:"critical"`
	High      int             `json:"high"`
	Moderate  int             `json:"moderate"`
	Students  []DigestStudent `json:"students"`
	Remaining int             `json:"remaining"`
}

// NewDigest summarises a payload's targets, keeping at most DigestStudentLimit
// students in target order.
func NewDigest(payload *models.AlertPayload, now time.Time) *AlertDigest {
	critical, high, moderate := payload.TierCounts()
	d := &AlertDigest{
		Date:     now.Format(DateLayout),
		Total:    len(payload.Targets),
		Critical: critical,
		High:     high,
		Moderate: moderate,
	}

	for i, t := range payload.Targets {
		if i == DigestStudentLimit {
			d.Remaining = len(payload.Targets) - DigestStudentLimit
			break
		}
		d.Students = append(d.Students, DigestStudent{
			ID:      t.Student.ID,
			Program: t.Student.Program,
			Year:    t.Student.Year,
			Percent: t.Assessment.RiskScore * 100,
			Grade:   t.Student.AverageGrade,
			Icon:    scoring.LevelOf(t.Assessment.Tier()).Icon,
		})
	}
	return d
}

// MessagePayload holds either a structured digest or free text. Exactly one
// side is set.
type MessagePayload struct {
	Structured *AlertDigest
	FreeText   string
}

func StructuredMessage(d *AlertDigest) MessagePayload {
	return MessagePayload{Structured: d}
}

func FreeTextMessage(text string) MessagePayload {
	return MessagePayload{FreeText: text}
}

// Serializer renders a Teams request body.
type Serializer interface {
	Serialize(title, color string, msg MessagePayload) ([]byte, error)
}

// WorkflowSerializer targets Power Automate workflow triggers, which accept a
// flat {title, message, color} object.
type WorkflowSerializer struct{}

type workflowBody struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Color   string `json:"color"`
}

func (WorkflowSerializer) Serialize(title, color string, msg MessagePayload) ([]byte, error) {
	text := msg.FreeText
	if msg.Structured != nil {
		text = renderDigestText(title, msg.Structured)
	}
	return json.Marshal(workflowBody{Title: title, Message: text, Color: color})
}

func renderDigestText(title string, d *AlertDigest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", title)
	fmt.Fprintf(&b, "Date : %s\n", d.Date)
	fmt.Fprintf(&b, "Nombre d'étudiants concernés : %d\n\n", d.Total)
	b.WriteString("Résumé :\n")
	fmt.Fprintf(&b, "- %s : %d\n", labelCritical, d.Critical)
	fmt.Fprintf(&b, "- %s : %d\n", labelHigh, d.High)
	fmt.Fprintf(&b, "- %s : %d\n\n", labelModerate, d.Moderate)
	b.WriteString("Liste des étudiants :\n")
	for _, s := range d.Students {
		fmt.Fprintf(&b, "- %s (%s, Année %s) : %s %.1f%% - Note: %s/20\n",
			s.ID, s.Program, formatYear(s.Year), s.Icon, s.Percent, formatGrade(s.Grade))
	}
	if d.Remaining > 0 {
		fmt.Fprintf(&b, "... et %d autre(s) étudiant(s)\n", d.Remaining)
	}
	fmt.Fprintf(&b, "\n%s %s", labelAction, recommendedAction)
	return b.String()
}

// MessageCardSerializer targets legacy incoming webhooks (Office 365
// connector MessageCard format).
type MessageCardSerializer struct {
	Now func() time.Time
}

type messageCard struct {
	Type       string        `json:"@type"`
	Context    string        `json:"@context"`
	ThemeColor string        `json:"themeColor"`
	Summary    string        `json:"summary"`
	Sections   []cardSection `json:"sections"`
}

type cardSection struct {
	ActivityTitle    string     `json:"activityTitle,omitempty"`
	ActivitySubtitle string     `json:"activitySubtitle,omitempty"`
	Title            string     `json:"title,omitempty"`
	Text             string     `json:"text,omitempty"`
	Facts            []cardFact `json:"facts,omitempty"`
}

type cardFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (s MessageCardSerializer) Serialize(title, color string, msg MessagePayload) ([]byte, error) {
	var sections []cardSection
	if msg.Structured != nil {
		sections = digestSections(title, msg.Structured)
	} else {
		now := time.Now
		if s.Now != nil {
			now = s.Now
		}
		sections = parseFreeText(title, msg.FreeText, now())
	}
	return json.Marshal(messageCard{
		Type:       cardType,
		Context:    cardContext,
		ThemeColor: color,
		Summary:    title,
		Sections:   sections,
	})
}

func digestSections(title string, d *AlertDigest) []cardSection {
	header := cardSection{
		ActivityTitle:    title,
		ActivitySubtitle: "Date : " + d.Date,
		Facts:            []cardFact{{Name: labelCount, Value: strconv.Itoa(d.Total)}},
	}
	summary := cardSection{
		Title: labelSummary,
		Facts: []cardFact{
			{Name: "🔴 " + labelCritical, Value: strconv.Itoa(d.Critical)},
			{Name: "🟠 " + labelHigh, Value: strconv.Itoa(d.High)},
			{Name: "🟡 " + labelModerate, Value: strconv.Itoa(d.Moderate)},
		},
	}

	list := cardSection{Title: labelStudentList}
	shown := d.Students
	if len(shown) > CardStudentLimit {
		shown = shown[:CardStudentLimit]
	}
	for _, st := range shown {
		list.Facts = append(list.Facts, cardFact{
			Name: "• " + st.ID,
			Value: fmt.Sprintf("%s - Année %s | %s %.1f%% | Note: %s/20",
				st.Program, formatYear(st.Year), st.Icon, st.Percent, formatGrade(st.Grade)),
		})
	}
	if hidden := len(d.Students) - len(shown) + d.Remaining; hidden > 0 {
		list.Facts = append(list.Facts, cardFact{Name: "...", Value: fmt.Sprintf("%d autre(s) étudiant(s)", hidden)})
	}

	action := cardSection{Title: labelAction, Text: recommendedAction}
	return []cardSection{header, summary, list, action}
}

// parseFreeText turns a user-written message into card sections. "key: value"
// lines become header facts, bullet and "..." lines feed the student list, and
// a message with no recognisable structure lands whole on the header.
func parseFreeText(title, message string, now time.Time) []cardSection {
	sections := []cardSection{{
		ActivityTitle:    title,
		ActivitySubtitle: "Date : " + now.Format(DateLayout),
	}}
	listIdx := -1
	var loose strings.Builder

	appendList := func(text string) {
		if listIdx >= 0 {
			sections[listIdx].Text += text + "\n"
			return
		}
		loose.WriteString(text + "\n")
	}

	for _, line := range strings.Split(strings.TrimSpace(message), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		bullet := strings.HasPrefix(line, "•") || strings.HasPrefix(line, "-")
		continuation := strings.HasPrefix(line, "...")

		switch {
		case strings.Contains(line, ":") && !bullet && !continuation:
			key, value, _ := strings.Cut(line, ":")
			key = strings.TrimSpace(key)
			value = strings.TrimSpace(value)
			switch {
			case strings.Contains(key, "Liste des étudiants"):
				sections = append(sections, cardSection{Title: labelStudentList})
				listIdx = len(sections) - 1
			case strings.Contains(key, "Action recommandée"):
				sections = append(sections, cardSection{Title: labelAction, Text: value})
			default:
				sections[0].Facts = append(sections[0].Facts, cardFact{Name: key, Value: value})
			}
		case bullet:
			item := strings.TrimPrefix(strings.TrimPrefix(line, "•"), "-")
			appendList(strings.TrimSpace(item))
		case continuation:
			appendList(line)
		}
	}

	if collected := strings.TrimSpace(loose.String()); collected != "" {
		if listIdx < 0 {
			sections = append(sections, cardSection{Title: labelStudentList, Text: collected})
		} else if sections[listIdx].Text == "" {
			sections[listIdx].Text = collected
		}
	}

	if len(sections[0].Facts) == 0 && len(sections) == 1 {
		sections[0].Text = message
	}
	return sections
}

func formatYear(year float64) string {
	if math.IsNaN(year) {
		return "?"
	}
	return strconv.Itoa(int(year))
}

func formatGrade(grade float64) string {
	if math.IsNaN(grade) {
		return "N/A"
	}
	return strconv.FormatFloat(grade, 'f', 1, 64)
}
