package crm

import (
	"fmt"
	"strings"

	"github.com/brilliox/brilliox/pkg/i18n"
	"github.com/brilliox/brilliox/pkg/storage"
)

// Grades, best first.
const (
	GradeExcellent = "excellent"
	GradeVeryGood  = "very_good"
	GradeGood      = "good"
	GradeAverage   = "average"
	GradeWeak      = "weak"
)

// Score thresholds used by Insights.
const (
	HotScore  = 70
	ColdScore = 30
)

var stageFloor = map[string]int{
	StatusNew:         10,
	StatusBaitSent:    25,
	StatusReplied:     40,
	StatusInterested:  55,
	StatusNegotiating: 70,
	StatusHot:         85,
	StatusClosed:      100,
}

// Factor is one contribution to a score.
type Factor struct {
	Factor string `json:"factor"`
	Points int    `json:"points"`
}

// Scoring is the result of scoring one lead.
type Scoring struct {
	Score   int      `json:"score"`
	Grade   string   `json:"grade"`
	Factors []Factor `json:"factors"`
}

// ScoredLead is a lead with its scoring attached.
type ScoredLead struct {
	*storage.Lead
	Grade        string   `json:"grade"`
	ScoreFactors []Factor `json:"score_factors"`
}

// Insights summarizes the scores of a set of leads.
type Insights struct {
	TotalLeads      int      `json:"total_leads"`
	HotLeadsCount   int      `json:"hot_leads_count"`
	ColdLeadsCount  int      `json:"cold_leads_count"`
	AverageScore    float64  `json:"average_score"`
	Recommendations []string `json:"recommendations"`
}

// Scorer rates leads with an additive heuristic over contact completeness,
// pipeline stage and sentiment words in the notes.
type Scorer struct {
	positive []string
	negative []string
}

// NewScorer creates a Scorer with the built-in Arabic and English word lists.
func NewScorer() *Scorer {
	return &Scorer{
		positive: []string{"مهتم", "سعيد", "رائع", "ممتاز", "interested", "happy", "great", "excellent"},
		negative: []string{"لا", "مش", "فاهم", "معقد", "not interested", "confused", "complicated", "expensive"},
	}
}

// Score rates one lead. The result is clamped to 0..100.
func (s *Scorer) Score(lead *storage.Lead) Scoring {
	score := 0
	var factors []Factor
	add := func(name string, points int) {
		score += points
		factors = append(factors, Factor{Factor: name, Points: points})
	}

	if lead.Name != "" {
		add("name", 10)
	}
	if lead.Phone != "" {
		add("phone", 10)
	}
	if lead.Email != "" {
		add("email", 5)
	}

	status := lead.Status
	if status == "" {
		status = StatusNew
	}
	if floor := stageFloor[status]; floor > score {
		score = floor
	}

	notes := strings.ToLower(lead.Notes)
	if notes != "" {
		for _, w := range s.positive {
			if strings.Contains(notes, w) {
				add("positive:"+w, 5)
			}
		}
		for _, w := range s.negative {
			if strings.Contains(notes, w) {
				add("negative:"+w, -5)
			}
		}
	}

	score = min(100, max(0, score))
	return Scoring{Score: score, Grade: Grade(score), Factors: factors}
}

// Grade maps a score to a grade.
func Grade(score int) string {
	switch {
	case score >= 90:
		return GradeExcellent
	case score >= 70:
		return GradeVeryGood
	case score >= 50:
		return GradeGood
	case score >= 30:
		return GradeAverage
	default:
		return GradeWeak
	}
}

// ScoreBatch scores each lead. The leads' Score fields are updated.
func (s *Scorer) ScoreBatch(leads []*storage.Lead) []ScoredLead {
	out := make([]ScoredLead, 0, len(leads))
	for _, l := range leads {
		sc := s.Score(l)
		l.Score = sc.Score
		out = append(out, ScoredLead{Lead: l, Grade: sc.Grade, ScoreFactors: sc.Factors})
	}
	return out
}

// Insights scores leads and summarizes them with recommendations in lang.
func (s *Scorer) Insights(leads []*storage.Lead, lang string) Insights {
	scored := s.ScoreBatch(leads)
	in := Insights{TotalLeads: len(scored), Recommendations: []string{}}

	total := 0
	for _, l := range scored {
		total += l.Score
		switch {
		case l.Score >= HotScore:
			in.HotLeadsCount++
		case l.Score < ColdScore:
			in.ColdLeadsCount++
		}
	}
	if len(scored) > 0 {
		in.AverageScore = float64(total) / float64(len(scored))
	}

	if in.HotLeadsCount > 0 {
		in.Recommendations = append(in.Recommendations, fmt.Sprintf(i18n.T(lang, "insight_hot"), in.HotLeadsCount))
	}
	if in.ColdLeadsCount > 0 {
		in.Recommendations = append(in.Recommendations, fmt.Sprintf(i18n.T(lang, "insight_cold"), in.ColdLeadsCount))
	}
	if in.HotLeadsCount == 0 && in.ColdLeadsCount == 0 {
		in.Recommendations = append(in.Recommendations, i18n.T(lang, "insight_more_leads"))
	}
	return in
}
