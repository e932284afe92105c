package gaps

import (
	"strings"

	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/ASUCICREPO/ADA-Clara-sub002/pkg/logger"
)

// DefaultCategory is assigned when no keyword table matches.
const DefaultCategory = "general"

type categoryRule struct {
	name     string
	keywords []string
}

// Keyword tables are fixed per language; first matching rule wins.
var englishCategories = []categoryRule{
	{"medication", []string{"insulin", "medication", "medicine", "dose", "dosage", "prescription", "pill", "drug", "metformin"}},
	{"monitoring", []string{"glucose", "sugar", "blood", "monitor", "meter", "a1c", "reading", "level", "strip"}},
	{"diet", []string{"diet", "food", "eat", "eating", "meal", "carb", "carbs", "nutrition", "snack", "drink"}},
	{"exercise", []string{"exercise", "activity", "walk", "walking", "workout", "active"}},
	{"symptoms", []string{"symptom", "symptoms", "pain", "dizzy", "tired", "numb", "numbness", "thirst", "thirsty", "vision", "blurry"}},
	{"appointments", []string{"appointment", "schedule", "visit", "doctor", "clinic", "specialist", "referral"}},
	{"insurance", []string{"insurance", "coverage", "cost", "bill", "billing", "pay", "afford", "medicare", "medicaid", "copay"}},
}

var spanishCategories = []categoryRule{
	{"medication", []string{"insulina", "medicamento", "medicina", "dosis", "receta", "pastilla", "metformina"}},
	{"monitoring", []string{"glucosa", "azucar", "sangre", "medidor", "nivel", "tiras"}},
	{"diet", []string{"dieta", "comida", "comer", "alimento", "carbohidratos", "nutricion", "merienda"}},
	{"exercise", []string{"ejercicio", "actividad", "caminar", "entrenamiento"}},
	{"symptoms", []string{"sintoma", "sintomas", "dolor", "mareo", "cansado", "entumecimiento", "sed", "vision", "borrosa"}},
	{"appointments", []string{"cita", "horario", "visita", "doctor", "medico", "clinica", "especialista"}},
	{"insurance", []string{"seguro", "cobertura", "costo", "factura", "pagar", "medicare", "medicaid"}},
}

var englishInterrogatives = map[string]bool{
	"what": true, "how": true, "why": true, "when": true, "where": true,
	"who": true, "which": true, "can": true, "could": true, "should": true,
	"would": true, "will": true, "do": true, "does": true, "did": true,
	"is": true, "are": true,
}

var spanishInterrogatives = map[string]bool{
	"que": true, "qué": true, "como": true, "cómo": true, "cuando": true,
	"cuándo": true, "donde": true, "dónde": true, "quien": true, "quién": true,
	"cual": true, "cuál": true, "cuanto": true, "cuánto": true, "puedo": true,
	"puede": true, "debo": true, "es": true, "hay": true,
}

// Generic deflections the bot emits when it has no real answer. A reply that
// matches one of these counts as unanswered regardless of confidence.
var genericResponses = []string{
	"i don't know",
	"i'm not sure",
	"i am not sure",
	"i cannot help",
	"i can't help",
	"i don't have that information",
	"please contact",
	"i didn't understand",
	"could you rephrase",
	"no entiendo",
	"no estoy seguro",
	"no tengo esa informacion",
	"no tengo esa información",
	"por favor contacte",
}

// IsQuestion reports whether a user message is a question: it ends in "?" or
// opens with a recognized interrogative for its language.
func IsQuestion(text, language string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if strings.HasSuffix(trimmed, "?") {
		return true
	}

	first := strings.ToLower(strings.Fields(trimmed)[0])
	first = strings.Trim(first, ".,!¿?")
	if language == "es" {
		return spanishInterrogatives[first]
	}
	return englishInterrogatives[first]
}

// IsGenericResponse reports whether a bot reply is a stock deflection.
func IsGenericResponse(text string) bool {
	lowered := strings.ToLower(text)
	for _, phrase := range genericResponses {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

// Categorize assigns a category and the matched keyword (subcategory) to a
// question. Tokenization goes through prose so hyphenation and punctuation
// don't hide keywords; a tokenizer failure falls back to whitespace fields.
func Categorize(text, language string) (category, subcategory string) {
	tokens := tokenizeQuestion(text)

	rules := englishCategories
	if language == "es" {
		rules = spanishCategories
	}

	for _, rule := range rules {
		for _, keyword := range rule.keywords {
			for _, token := range tokens {
				if token == keyword {
					return rule.name, keyword
				}
			}
		}
	}
	return DefaultCategory, ""
}

func tokenizeQuestion(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithExtraction(false),
		prose.WithTagging(false),
		prose.WithSegmentation(false),
	)
	if err != nil {
		logger.Warn("Question tokenization failed, falling back to fields", zap.Error(err))
		return strings.Fields(strings.ToLower(text))
	}

	tokens := make([]string, 0, len(doc.Tokens()))
	for _, tok := range doc.Tokens() {
		tokens = append(tokens, strings.ToLower(tok.Text))
	}
	return tokens
}
