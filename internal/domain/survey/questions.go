package survey

import (
	"strconv"
	"strings"
)

// Section names of the post-task survey.
const (
	SectionPre          = "presurvey"
	SectionSerendipity  = "serendipity"
	SectionEmotion      = "emotion"
	SectionSelfEfficacy = "selfEfficacy"
	SectionOpenEnded    = "openEnded"
	SectionDemographic  = "demographic"
	SectionPolitical    = "political"
	SectionUsage        = "usage"
)

var (
	extentScale = []string{"Not at all", "Slightly", "Somewhat", "Moderately", "Fairly", "Very", "Extremely"}
	agreeScale  = []string{"Strongly Disagree", "Disagree", "Slightly Disagree", "Neutral", "Slightly Agree", "Agree", "Strongly Agree"}
	usageScale  = []string{"Never", "1–2 times", "3–5 times", "6–10 times", "More than 10 times"}
)

func likert(id, section, text string, scale []string) Question {
	return Question{ID: id, Text: text, Section: section, Type: AnswerLikert, Options: scale, Required: true}
}

// PreSurvey returns the pre-task questions for topic.
func PreSurvey(topic string) Form {
	qs := []string{
		"How familiar are you with the {topic}?",
		"To what extent do keywords and concepts related to {topic} come to mind for your search?",
		"How clear is your plan for finding interesting and valuable information related to {topic}?",
	}
	form := Form{Kind: KindPre, Title: "Pre-Survey", Sections: []string{SectionPre}}
	for i, q := range qs {
		form.Questions = append(form.Questions,
			likert("PRE"+strconv.Itoa(i+1), SectionPre, strings.ReplaceAll(q, "{topic}", topic), extentScale))
	}
	return form
}

// PostSurvey returns the post-task questions for topic.
func PostSurvey(topic string) Form {
	serendipity := []string{
		"I obtained unexpected insights.",
		"I made connections that I had not thought of before.",
		"I had unexpected revelations about old ideas.",
		"I found things that surprised me.",
		"I was able to see the ordinary in new ways.",
	}
	evaluation := []string{
		"My overall experience with search (bad / good)",
		"Your understanding of information (insufficient / sufficient)",
		"Your feelings of participating in search (negative / positive)",
		"Attitude of search engines/chat AI (cooperative / belligerent)",
		"Communication with the search engines/chat AI (destructive / productive)",
		"Reliability of output information (high / low)",
		"Relevancy of output information (relevant / irrelevant)",
		"Accuracy of output information (inaccurate / accurate)",
		"Precision of output information (definite / uncertain)",
		"Completeness of the output information (adequate / inadequate)",
	}
	selfEfficacy := []string{
		"I am usually able to think up creative and effective search strategies to find interesting and valuable information.",
		"I can do a good search and feel confident it will lead me to interesting information.",
		"When I plan how to search for scientific information, I am almost certain I can find what I need.",
		"I trust my ability to find new and interesting information.",
	}

	form := Form{
		Kind:     KindPost,
		Title:    "Survey",
		Sections: []string{SectionSerendipity, SectionEmotion, SectionSelfEfficacy, SectionOpenEnded},
	}
	for i, q := range serendipity {
		form.Questions = append(form.Questions, likert("SER"+strconv.Itoa(i+1), SectionSerendipity, q, agreeScale))
	}
	for i, q := range evaluation {
		form.Questions = append(form.Questions, likert("EMO"+strconv.Itoa(i+1), SectionEmotion, q, agreeScale))
	}
	for i, q := range selfEfficacy {
		form.Questions = append(form.Questions, likert("SE"+strconv.Itoa(i+1), SectionSelfEfficacy, q, agreeScale))
	}
	form.Questions = append(form.Questions,
		Question{ID: "OEQ1", Section: SectionOpenEnded, Type: AnswerText,
			Text: "What keywords can you think of when you think about " + topic + "?"},
		Question{ID: "OEQ2", Section: SectionOpenEnded, Type: AnswerText,
			Text: "Did you encounter any information that you could relate to your own experiences or to similar situations?"},
	)
	return form
}

// Demographic returns the demographic questions.
func Demographic() Form {
	choice := func(id, section, text string, options ...string) Question {
		return Question{ID: id, Text: text, Section: section, Type: AnswerChoice, Options: options, Required: true}
	}
	usage := func(id, tool string) Question {
		return choice(id, SectionUsage, tool, usageScale...)
	}

	return Form{
		Kind:     KindDemographic,
		Title:    "Demographic Survey",
		Sections: []string{SectionDemographic, SectionPolitical, SectionUsage},
		Questions: []Question{
			{ID: "age", Section: SectionDemographic, Type: AnswerNumber, Required: true, Text: "What is your age?"},
			choice("gender", SectionDemographic, "What is your gender identity?",
				"Male", "Female", "Non-binary", "Not listed (please state)"),
			{ID: "gender_other", Section: SectionDemographic, Type: AnswerText, Text: "Gender identity (please state)"},
			choice("education", SectionDemographic, "What is the highest level of school you completed, or the highest degree you received?",
				"Never Attended School or Only Attended Kindergarten",
				"Elementary (Grades 1 through 8)",
				"Some High School (Grades 9 through 11)",
				"High School Diploma or Equivalent (Grade 12 or GED)",
				"Some College or Technical School (College 1 year to 3 years)",
				"Bachelor's Degree",
				"Master's Degree",
				"Professional School (JD, MD, etc.) or Doctorate Degree (PhD, EdD)"),
			{ID: "race", Section: SectionDemographic, Type: AnswerMulti, Required: true,
				Text: "Which of the following would you say best describes your race? (Check all that apply)"},
			choice("hispanic", SectionDemographic, "Are you Hispanic or Latino/a/x?", "Yes", "No"),
			choice("party_id", SectionPolitical, "Generally speaking, do you think of yourself as a…",
				"Republican", "Democrat", "Independent", "Another party", "No preference"),
			{ID: "party_lean", Section: SectionPolitical, Type: AnswerChoice, Required: true,
				Options:      []string{"Republican Party", "Democratic Party"},
				Text:         "If you had to choose, do you think of yourself as closer to…",
				RequiredWhen: &Condition{QuestionID: "party_id", Values: []string{"Independent", "Another party", "No preference"}}},
			choice("ideology_scale", SectionPolitical, "In general, do you think of yourself as…",
				"Extremely liberal", "Liberal", "Slightly liberal", "Moderate / middle of the road",
				"Slightly conservative", "Conservative", "Extremely conservative"),
			usage("use_chatgpt", "ChatGPT"),
			usage("use_gemini", "Gemini"),
			usage("use_copilot", "Copilot"),
			usage("use_genai_other", "Other generative AI"),
			{ID: "use_genai_other_name", Section: SectionUsage, Type: AnswerText, Text: "Other generative AI (name)"},
			usage("use_google", "Google"),
			usage("use_bing", "Bing"),
			usage("use_search_other", "Other search engine"),
			{ID: "use_search_other_name", Section: SectionUsage, Type: AnswerText, Text: "Other search engine (name)"},
		},
	}
}
