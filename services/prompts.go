package services

import (
	"fmt"
	"strings"

	"github.com/FranciscoJunior65/curriuloproia-sub000/models"
)

const DefaultLanguage = "pt-BR"

var languageNames = map[string]string{
	"pt-BR": "Brazilian Portuguese",
	"pt":    "Portuguese",
	"en":    "English",
	"en-US": "English",
	"es":    "Spanish",
}

func languageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return languageNames[DefaultLanguage]
}

// AnalysisInput carries everything that tailors the analysis prompt
type AnalysisInput struct {
	ResumeText     string
	TargetRole     string
	JobDescription string
	Language       string
	JobSite        *models.JobSite
}

// AnalysisResult is the JSON object the analysis prompt asks for
type AnalysisResult struct {
	Score       float64  `json:"score"`
	Summary     string   `json:"summary"`
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
	Suggestions []string `json:"suggestions"`
	Keywords    []string `json:"keywords"`
}

const analysisSystem = `You are a senior recruiter and résumé reviewer with years of experience in applicant tracking systems (ATS).
You evaluate résumés objectively, based only on the text provided. Never invent experience the candidate did not mention.
Respond with a single JSON object and nothing else.`

func BuildAnalysisPrompt(in AnalysisInput) Prompt {
	var b strings.Builder
	b.WriteString("Analyze the résumé below and return a JSON object with exactly these keys:\n")
	b.WriteString(`{"score": number from 0 to 100, "summary": string, "strengths": [string], "weaknesses": [string], "suggestions": [string], "keywords": [string]}`)
	b.WriteString("\n\n")
	b.WriteString("- score: overall quality and ATS compatibility.\n")
	b.WriteString("- strengths, weaknesses, suggestions: 3 to 7 short items each; suggestions must be actionable.\n")
	b.WriteString("- keywords: the professional keywords and skills a recruiter would search for this profile.\n")
	fmt.Fprintf(&b, "Write summary, strengths, weaknesses and suggestions in %s.\n", languageName(in.Language))

	if in.TargetRole != "" {
		fmt.Fprintf(&b, "\nTarget role: %s\n", in.TargetRole)
	}
	if in.JobDescription != "" {
		fmt.Fprintf(&b, "\nJob description to compare against:\n%s\n", in.JobDescription)
	}
	if site := in.JobSite; site != nil {
		fmt.Fprintf(&b, "\nThe candidate will apply through %s.", site.Name)
		if site.Characteristics != "" {
			fmt.Fprintf(&b, " Characteristics of this job board: %s", site.Characteristics)
		}
		if len(site.Keywords) > 0 {
			fmt.Fprintf(&b, "\nKeywords valued on this job board: %s", strings.Join(site.Keywords, ", "))
		}
		b.WriteString("\nTailor the suggestions to this job board.\n")
	}

	fmt.Fprintf(&b, "\nRésumé:\n\"\"\"\n%s\n\"\"\"\n", in.ResumeText)

	return Prompt{System: analysisSystem, User: b.String(), JSON: true, Temperature: 0.2}
}

const improveSystem = `You are a professional résumé writer. You rewrite résumés to be clear, concise and ATS friendly
while keeping every fact true to the original. Never invent employers, dates, degrees or skills.`

func BuildImprovePrompt(analysis *models.ResumeAnalysis) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "Rewrite the résumé below in %s as plain text.\n", languageName(analysis.Language))
	b.WriteString("Rules:\n")
	b.WriteString("- Section headings in UPPER CASE on their own line (e.g. SUMMARY, EXPERIENCE, EDUCATION, SKILLS).\n")
	b.WriteString("- Bullet points start with \"- \".\n")
	b.WriteString("- No Markdown, no tables, no commentary before or after the résumé.\n")
	if analysis.TargetRole != "" {
		fmt.Fprintf(&b, "- Emphasize experience relevant to: %s.\n", analysis.TargetRole)
	}
	if len(analysis.Suggestions) > 0 {
		b.WriteString("\nApply these review suggestions:\n")
		for _, s := range analysis.Suggestions {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	if len(analysis.Keywords) > 0 {
		fmt.Fprintf(&b, "\nWork these keywords in where truthful: %s\n", strings.Join(analysis.Keywords, ", "))
	}
	fmt.Fprintf(&b, "\nOriginal résumé:\n\"\"\"\n%s\n\"\"\"\n", analysis.ResumeText)

	return Prompt{System: improveSystem, User: b.String(), Temperature: 0.4}
}

type CoverLetterInput struct {
	CompanyName    string
	JobTitle       string
	JobDescription string
	Tone           string
}

const coverLetterSystem = `You write persuasive, specific cover letters grounded in the candidate's real experience.`

func BuildCoverLetterPrompt(analysis *models.ResumeAnalysis, in CoverLetterInput) Prompt {
	tone := in.Tone
	if tone == "" {
		tone = "professional"
	}
	resume := analysis.ResumeText
	if analysis.ImprovedResume != "" {
		resume = analysis.ImprovedResume
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write a cover letter in %s for the position of %s at %s.\n", languageName(analysis.Language), in.JobTitle, in.CompanyName)
	fmt.Fprintf(&b, "Tone: %s. Length: 3 to 5 paragraphs. Plain text, no placeholders like [Your Name].\n", tone)
	if in.JobDescription != "" {
		fmt.Fprintf(&b, "\nJob description:\n%s\n", in.JobDescription)
	}
	if len(analysis.Strengths) > 0 {
		fmt.Fprintf(&b, "\nHighlight these strengths: %s\n", strings.Join(analysis.Strengths, "; "))
	}
	fmt.Fprintf(&b, "\nCandidate résumé:\n\"\"\"\n%s\n\"\"\"\n", resume)

	return Prompt{System: coverLetterSystem, User: b.String(), Temperature: 0.7}
}

type GeneratedQuestion struct {
	Category string `json:"category"`
	Question string `json:"question"`
}

type QuestionsResult struct {
	Questions []GeneratedQuestion `json:"questions"`
}

type EvaluationResult struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

type WrapUpResult struct {
	Feedback string `json:"feedback"`
}

const interviewSystem = `You are an experienced hiring manager conducting a structured job interview.
Respond with a single JSON object and nothing else.`

func BuildInterviewQuestionsPrompt(jobTitle, jobDescription, resumeText, language string, count int) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "Prepare %d interview questions in %s for a candidate applying to: %s.\n", count, languageName(language), jobTitle)
	b.WriteString("Mix categories: behavioral, technical and situational.\n")
	b.WriteString(`Return {"questions": [{"category": string, "question": string}]}`)
	b.WriteString("\n")
	if jobDescription != "" {
		fmt.Fprintf(&b, "\nJob description:\n%s\n", jobDescription)
	}
	if resumeText != "" {
		fmt.Fprintf(&b, "\nTailor questions to this résumé:\n\"\"\"\n%s\n\"\"\"\n", resumeText)
	}
	return Prompt{System: interviewSystem, User: b.String(), JSON: true, Temperature: 0.6}
}

func BuildAnswerEvaluationPrompt(jobTitle string, question *models.InterviewQuestion, answer, language string) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "Evaluate the candidate's answer for the position of %s.\n", jobTitle)
	fmt.Fprintf(&b, "Question (%s): %s\n", question.Category, question.Question)
	fmt.Fprintf(&b, "Answer: %s\n\n", answer)
	fmt.Fprintf(&b, "Give a score from 0 to 10 and constructive feedback in %s (2 to 4 sentences).\n", languageName(language))
	b.WriteString(`Return {"score": number, "feedback": string}`)
	return Prompt{System: interviewSystem, User: b.String(), JSON: true, Temperature: 0.2}
}

func BuildWrapUpPrompt(simulation *models.InterviewSimulation, language string) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "The interview for %s is over. Overall score: %.0f/100.\n", simulation.JobTitle, simulation.OverallScore)
	b.WriteString("Questions, answers and scores:\n")
	for _, q := range simulation.Questions {
		fmt.Fprintf(&b, "%d. %s\n   Answer: %s\n   Score: %.1f/10\n", q.Position, q.Question, q.Answer, q.Score)
	}
	fmt.Fprintf(&b, "\nWrite overall feedback in %s: main strengths, what to improve, and next steps.\n", languageName(language))
	b.WriteString(`Return {"feedback": string}`)
	return Prompt{System: interviewSystem, User: b.String(), JSON: true, Temperature: 0.4}
}
