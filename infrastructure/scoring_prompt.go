package infrastructure

import (
	"fmt"
	"strings"

	"cv-shortlist/domain"
)

const scoringInstructionsTemplate = `You are a Senior Recruiter evaluating candidate CVs for the purpose of shortlisting.
Analyze, critically and objectively, the candidate CV document text provided, according to compatibility with the Job Description provided.

As a result of the analysis, produce the following, written in the language %[1]q:
1) Rate the candidate with a rating between 1 (completely unsuitable) and 100 (perfectly suitable).
2) Provide a short 1-paragraph summary of the candidate CV.
3) Provide a short 1-paragraph summary of the candidate advantages for the role.
4) Provide a short 1-paragraph summary of the candidate disadvantages for the role.
5) Provide a short 1-paragraph summary of the reasons for the candidate rating.

If the provided Job Description is invalid, and cannot be used to assess candidate CVs:
1) Provide a candidate rating of 0.
2) Set the summary of the candidate CV, the summary of the candidate advantages and the summary of the candidate disadvantages to "-".
3) Set the summary of the reasons for candidate rating to the text "Job description is invalid.", translated into the language %[1]q.

If the provided document text does not resemble a CV:
1) Provide a candidate rating of 0.
2) Set the summary of the candidate CV, the summary of the candidate advantages and the summary of the candidate disadvantages to "-".
3) Set the summary of the reasons for candidate rating to the text "Document is not a CV.", translated into the language %[1]q.`

const documentInstructions = `Extract ALL text content from this PDF document as markdown.
Keep headings, lists and tables. Return ONLY the extracted text without any additional comments or explanations.`

// scoringInstructions is the system prompt shared by every scoring provider.
func scoringInstructions(targetLanguage string) string {
	return fmt.Sprintf(scoringInstructionsTemplate, targetLanguage)
}

func jobDescriptionText(jobDescription string) string {
	return `Job Description: "` + jobDescription + `"`
}

// verdictFromReply strips markdown fences and surrounding prose from a model reply.
func verdictFromReply(provider, reply string) (string, error) {
	verdict := cleanJSONResponse(reply)
	if verdict == "" {
		return "", &domain.ScoringError{Reason: provider + " returned an empty verdict"}
	}
	return verdict, nil
}

func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start != -1 && end > start {
		content = content[start : end+1]
	}
	return strings.TrimSpace(content)
}
