// Package skills generates skill suggestions and learning roadmaps for a
// user, grounded in their retrieved memory and academic profile.
package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sandevgo/momentum/internal/core"
	"github.com/sandevgo/momentum/internal/service/retrieval"
	"github.com/sandevgo/momentum/pkg/log"
)

// Course is one course of the user's current enrollment.
type Course struct {
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

// Skill is one skill the user already tracks.
type Skill struct {
	Name string `json:"name"`
}

// SuggestionRequest describes the user for whom to suggest skills.
type SuggestionRequest struct {
	UserID              string   `json:"user_id"`
	Courses             []Course `json:"courses,omitempty"`
	ExistingSkills      []Skill  `json:"existing_skills,omitempty"`
	EducationLevel      string   `json:"education_level,omitempty"`
	Major               string   `json:"major,omitempty"`
	UnstructuredContext string   `json:"unstructured_context,omitempty"`
}

// Suggestion is one proposed skill with a personalized reason.
type Suggestion struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Reason      string `json:"reason"`
}

// RoadmapRequest asks for a learning roadmap for one named skill.
type RoadmapRequest struct {
	UserID              string   `json:"user_id"`
	SkillName           string   `json:"skill_name"`
	Courses             []Course `json:"courses,omitempty"`
	ExistingSkills      []Skill  `json:"existing_skills,omitempty"`
	EducationLevel      string   `json:"education_level,omitempty"`
	Major               string   `json:"major,omitempty"`
	UnstructuredContext string   `json:"unstructured_context,omitempty"`
}

// Milestone is one ordered step of the roadmap.
type Milestone struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// Resource is one learning resource attached to the roadmap.
type Resource struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
}

// Roadmap is a complete learning plan for one skill. The camelCase JSON
// keys match the frontend's skill model.
type Roadmap struct {
	Name           string      `json:"name"`
	Category       string      `json:"category"`
	Level          string      `json:"level"`
	Description    string      `json:"description"`
	GoalStatement  string      `json:"goalStatement"`
	DurationMonths int         `json:"durationMonths"`
	EstimatedHours float64     `json:"estimatedHours"`
	StartDate      string      `json:"startDate"`
	EndDate        string      `json:"endDate"`
	Milestones     []Milestone `json:"milestones"`
	Resources      []Resource  `json:"resources"`
}

type contextRetriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) ([]core.ScoredFragment, error)
}

type Service struct {
	retriever contextRetriever
	generator core.Generator
	now       func() time.Time
}

func NewService(retriever contextRetriever, generator core.Generator) *Service {
	return &Service{retriever: retriever, generator: generator, now: time.Now}
}

// Skill context retrieval runs with a looser similarity floor than chat
// or planning: career context is useful even when only loosely related.
const (
	skillContextK      = 5
	skillMinSimilarity = 0.6
	skillContextLength = 1500
	promptContextMax   = 1000

	maxSuggestions = 5
	minSuggestions = 3
	maxMilestones  = 5
	maxResources   = 4
)

// Suggest proposes 3-5 skills fitting the user's courses, existing skills
// and remembered goals. An unparseable generator answer degrades to the
// generic fallback suggestions, not an error.
func (s *Service) Suggest(ctx context.Context, req SuggestionRequest) ([]Suggestion, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user_id is required", core.ErrInvalid)
	}

	contextText, err := s.retrieveContext(ctx, req.UserID, "skills learning goals career development")
	if err != nil {
		return nil, fmt.Errorf("skill context retrieval failed: %w", err)
	}

	raw, err := s.generator.Generate(ctx, buildSuggestionPrompt(req, contextText))
	if err != nil {
		return nil, fmt.Errorf("skill suggestion generation failed: %w", err)
	}

	suggestions, ok := parseSuggestions(raw)
	if !ok {
		log.FromCtx(ctx).Warn().Str("user_id", req.UserID).Msg("suggestion output was not valid JSON, using fallbacks")
		return fallbackSuggestions(), nil
	}
	if len(suggestions) < minSuggestions {
		suggestions = append(suggestions, fallbackSuggestions()[:minSuggestions-len(suggestions)]...)
	}
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}

	log.FromCtx(ctx).Debug().Str("user_id", req.UserID).Int("suggestions", len(suggestions)).Msg("skill suggestions generated")
	return suggestions, nil
}

// Roadmap builds a complete learning roadmap for the named skill. Like
// Suggest, a malformed generator answer falls back to a generic roadmap.
func (s *Service) Roadmap(ctx context.Context, req RoadmapRequest) (*Roadmap, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user_id is required", core.ErrInvalid)
	}
	if strings.TrimSpace(req.SkillName) == "" {
		return nil, fmt.Errorf("%w: skill_name is required", core.ErrInvalid)
	}

	contextText, err := s.retrieveContext(ctx, req.UserID, req.SkillName+" learning roadmap resources")
	if err != nil {
		return nil, fmt.Errorf("skill context retrieval failed: %w", err)
	}

	today := s.now().Format("2006-01-02")
	raw, err := s.generator.Generate(ctx, buildRoadmapPrompt(req, contextText, today))
	if err != nil {
		return nil, fmt.Errorf("skill roadmap generation failed: %w", err)
	}

	roadmap, ok := parseRoadmap(raw)
	if !ok {
		log.FromCtx(ctx).Warn().Str("user_id", req.UserID).Str("skill", req.SkillName).
			Msg("roadmap output was not valid JSON, using fallback")
		return s.fallbackRoadmap(req.SkillName), nil
	}

	s.normalizeRoadmap(roadmap, req.SkillName)
	return roadmap, nil
}

func (s *Service) retrieveContext(ctx context.Context, userID, query string) (string, error) {
	rreq := retrieval.NewRequest(userID, query)
	rreq.K = skillContextK
	rreq.MinSimilarity = skillMinSimilarity
	rreq.MaxContextLength = skillContextLength
	rreq.AllowedTypes = []string{core.TypeContext, core.TypeOnboarding, core.TypeChat}

	fragments, err := s.retriever.Retrieve(ctx, rreq)
	if err != nil {
		return "", err
	}

	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Text
	}
	return retrieval.TruncateMiddle(strings.Join(texts, "\n\n"), promptContextMax), nil
}

var jsonArrayRe = regexp.MustCompile(`(?s)\[.*?\]`)

func parseSuggestions(raw string) ([]Suggestion, bool) {
	m := jsonArrayRe.FindString(raw)
	if m == "" {
		return nil, false
	}
	var suggestions []Suggestion
	if err := json.Unmarshal([]byte(m), &suggestions); err != nil {
		return nil, false
	}
	for i := range suggestions {
		if suggestions[i].Name == "" {
			suggestions[i].Name = "Unknown Skill"
		}
		if suggestions[i].Category == "" {
			suggestions[i].Category = "Other"
		}
		if suggestions[i].Reason == "" {
			suggestions[i].Reason = "Relevant to your goals"
		}
	}
	return suggestions, true
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

func parseRoadmap(raw string) (*Roadmap, bool) {
	m := jsonObjectRe.FindString(raw)
	if m == "" {
		return nil, false
	}
	var roadmap Roadmap
	if err := json.Unmarshal([]byte(m), &roadmap); err != nil {
		return nil, false
	}
	return &roadmap, true
}

// normalizeRoadmap fills the fields the generator left out so the result
// always satisfies the response contract.
func (s *Service) normalizeRoadmap(r *Roadmap, skillName string) {
	if r.Name == "" {
		r.Name = skillName
	}
	if r.Category == "" {
		r.Category = "Other"
	}
	if r.Level == "" {
		r.Level = "beginner"
	}
	if r.Description == "" {
		r.Description = fmt.Sprintf("Learn %s", skillName)
	}
	if r.GoalStatement == "" {
		r.GoalStatement = fmt.Sprintf("Master %s", skillName)
	}
	if r.DurationMonths <= 0 {
		r.DurationMonths = 2
	}
	if r.EstimatedHours <= 0 {
		r.EstimatedHours = 40
	}
	if r.StartDate == "" {
		r.StartDate = s.now().Format("2006-01-02")
	}
	if r.EndDate == "" {
		start, err := time.Parse("2006-01-02", r.StartDate)
		if err != nil {
			start = s.now()
		}
		r.EndDate = start.AddDate(0, 0, r.DurationMonths*30).Format("2006-01-02")
	}
	for i := range r.Milestones {
		if r.Milestones[i].Order == 0 && i > 0 {
			r.Milestones[i].Order = i
		}
	}
	if len(r.Milestones) > maxMilestones {
		r.Milestones = r.Milestones[:maxMilestones]
	}
	for i := range r.Resources {
		if r.Resources[i].Type == "" {
			r.Resources[i].Type = "link"
		}
	}
	if len(r.Resources) > maxResources {
		r.Resources = r.Resources[:maxResources]
	}
}

func fallbackSuggestions() []Suggestion {
	return []Suggestion{
		{
			Name:        "Project Management",
			Category:    "Business",
			Description: "Learn to plan, execute, and deliver projects effectively",
			Reason:      "Essential for managing academic and personal projects",
		},
		{
			Name:        "Data Analysis",
			Category:    "Technical",
			Description: "Analyze and interpret data to make informed decisions",
			Reason:      "Valuable across many fields and industries",
		},
		{
			Name:        "Communication Skills",
			Category:    "Soft Skills",
			Description: "Improve written and verbal communication abilities",
			Reason:      "Critical for academic success and career advancement",
		},
	}
}

func (s *Service) fallbackRoadmap(skillName string) *Roadmap {
	start := s.now()
	return &Roadmap{
		Name:           skillName,
		Category:       "Other",
		Level:          "beginner",
		Description:    fmt.Sprintf("Learn %s through structured practice and projects", skillName),
		GoalStatement:  fmt.Sprintf("Master the fundamentals of %s", skillName),
		DurationMonths: 2,
		EstimatedHours: 40,
		StartDate:      start.Format("2006-01-02"),
		EndDate:        start.AddDate(0, 0, 60).Format("2006-01-02"),
		Milestones: []Milestone{
			{Name: fmt.Sprintf("Learn %s basics", skillName), Order: 0},
			{Name: fmt.Sprintf("Build first %s project", skillName), Order: 1},
			{Name: fmt.Sprintf("Apply %s to real-world scenarios", skillName), Order: 2},
		},
		Resources: []Resource{
			{
				Title:       fmt.Sprintf("%s Documentation", skillName),
				Type:        "link",
				Description: "Official documentation and guides",
			},
		},
	}
}

func joinNames(names []string) string {
	var kept []string
	for _, n := range names {
		if n != "" {
			kept = append(kept, n)
		}
		if len(kept) == 5 {
			break
		}
	}
	if len(kept) == 0 {
		return "None"
	}
	return strings.Join(kept, ", ")
}

func orNotSpecified(s string) string {
	if s == "" {
		return "Not specified"
	}
	return s
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}

func courseNames(courses []Course) []string {
	out := make([]string, len(courses))
	for i, c := range courses {
		out[i] = c.Name
	}
	return out
}

func skillNames(skills []Skill) []string {
	out := make([]string, len(skills))
	for i, s := range skills {
		out[i] = s.Name
	}
	return out
}

func writeUserContext(b *strings.Builder, educationLevel, major string, courses []Course, existing []Skill, extra, memory string) {
	fmt.Fprintf(b, "USER CONTEXT:\n")
	fmt.Fprintf(b, "- Education Level: %s\n", orNotSpecified(educationLevel))
	fmt.Fprintf(b, "- Major/Field: %s\n", orNotSpecified(major))
	fmt.Fprintf(b, "- Current Courses: %s\n", joinNames(courseNames(courses)))
	fmt.Fprintf(b, "- Existing Skills: %s\n", joinNames(skillNames(existing)))
	fmt.Fprintf(b, "- Additional Context: %s\n\n", orNone(extra))
	fmt.Fprintf(b, "SEMANTIC CONTEXT FROM USER MEMORY:\n%s\n\n", orNone(memory))
}

func buildSuggestionPrompt(req SuggestionRequest, memoryContext string) string {
	var b strings.Builder
	b.WriteString("You are an AI assistant that suggests relevant skills for students based on their academic background, existing skills, and goals.\n\n")
	writeUserContext(&b, req.EducationLevel, req.Major, req.Courses, req.ExistingSkills, req.UnstructuredContext, memoryContext)
	b.WriteString(`TASK:
Analyze the user's academic background, current courses, existing skills, and goals. Generate 3-5 highly relevant skill suggestions that complement their studies, build on existing skills and align with their career goals.

For each suggestion provide:
- name: The skill name (e.g., "React.js", "Data Analysis with Python", "Public Speaking")
- category: One of: "Technical", "Creative", "Soft Skills", "Business", "Language", "Other"
- description: Brief 1-2 sentence description of what the skill is
- reason: Why this skill is relevant to THIS specific user

Return ONLY a JSON array with this exact structure:
[
  {"name": "Skill Name", "category": "Technical", "description": "Brief description", "reason": "Why this is relevant to the user"}
]

Generate 3-5 suggestions that are practical, in-demand and achievable for their level.`)
	return b.String()
}

func buildRoadmapPrompt(req RoadmapRequest, memoryContext, today string) string {
	var b strings.Builder
	b.WriteString("You are an AI assistant that creates comprehensive learning roadmaps for skills.\n\n")
	writeUserContext(&b, req.EducationLevel, req.Major, req.Courses, req.ExistingSkills, req.UnstructuredContext, memoryContext)
	fmt.Fprintf(&b, "TASK:\nGenerate a complete learning roadmap for the skill: %q\n\n", req.SkillName)
	fmt.Fprintf(&b, `The roadmap must include:
- name: %q
- category: One of: "Technical", "Creative", "Soft Skills", "Business", "Language", "Other"
- level: "beginner", "intermediate", "advanced", or "expert"
- description: 2-3 sentences on what the skill is and why it is valuable
- goalStatement: One specific, measurable learning goal
- durationMonths: Realistic duration in months (1-6, typically 2-3)
- estimatedHours: Total estimated learning hours
- startDate: %q
- endDate: startDate plus durationMonths, format YYYY-MM-DD
- milestones: 3-5 progressive steps, each {"name", "order"}, ordered from beginner to advanced
- resources: 2-4 learning resources, each {"title", "type", "url", "description"} with type "link", "video" or "note"

Return ONLY a JSON object with exactly those keys. Make the roadmap realistic, achievable, and personalized to the user's background.
`, req.SkillName, today)
	return b.String()
}
