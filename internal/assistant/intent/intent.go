// Package intent classifies an assistant utterance into one of the
// supported intents and pulls out the cars it mentions.
package intent

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"carmarket-search/internal/assistant/textcompletion"
	"carmarket-search/internal/common/errors"
	"carmarket-search/internal/common/logger"
	"carmarket-search/internal/common/validation"
)

type Intent string

const (
	CarSpecs   Intent = "car_specs"
	CarListing Intent = "car_listing"
	FAQ        Intent = "faq"
	CarCompare Intent = "car_compare"
	UserInfo   Intent = "user_info"
)

var validIntents = map[Intent]bool{CarSpecs: true, CarListing: true, FAQ: true, CarCompare: true, UserInfo: true}

type Entities struct {
	CarMakes  []string `json:"carMakes,omitempty"`
	CarModels []string `json:"carModels,omitempty"`
}

type Classification struct {
	Intent     Intent   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Entities   Entities `json:"extractedEntities"`
}

// MakeSource lists the make names recognized in keyword mode.
type MakeSource interface {
	MakeNames(ctx context.Context) ([]string, error)
}

type Classifier struct {
	llm     textcompletion.Client
	makes   MakeSource
	timeout time.Duration
	logger  logger.Logger
}

func NewClassifier(llm textcompletion.Client, makes MakeSource, timeout time.Duration, log logger.Logger) *Classifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Classifier{
		llm:     llm,
		makes:   makes,
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"component": "intent-classifier"}),
	}
}

// Classify asks the completion service first and falls back to keywords.
func (c *Classifier) Classify(ctx context.Context, utterance string) Classification {
	if c.llm != nil {
		result, err := c.classifyWithLLM(ctx, utterance)
		if err == nil {
			return result
		}
		c.logger.Warn("intent completion unusable, using keywords", map[string]interface{}{"error": err})
	}
	return c.classifyWithKeywords(ctx, utterance)
}

const classifySystemPrompt = `You classify messages sent to a car marketplace assistant.
Intents:
- car_listing: the user wants to see or search cars for sale
- car_specs: the user asks about specifications or features of a car model
- car_compare: the user wants to compare two or more cars
- faq: questions about buying, financing, test drives, returns, payments, delivery or the marketplace
- user_info: questions about the user's own account, listings, favorites or messages

Reply with one JSON object only:
{"intent": "<intent>", "confidence": <0..1>, "extractedEntities": {"carMakes": [], "carModels": []}}`

var classificationSchema = validation.MustCompile(validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"intent":     {Type: "string", Enum: []string{string(CarSpecs), string(CarListing), string(FAQ), string(CarCompare), string(UserInfo)}},
		"confidence": {Type: "number", Minimum: validation.Float(0), Maximum: validation.Float(1)},
		"extractedEntities": {
			Type: "object",
			Properties: map[string]validation.Property{
				"carMakes":  {Type: "array", Items: &validation.Property{Type: "string"}},
				"carModels": {Type: "array", Items: &validation.Property{Type: "string"}},
			},
		},
	},
	Required: []string{"intent"},
})

func (c *Classifier) classifyWithLLM(ctx context.Context, utterance string) (Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := c.llm.Complete(ctx, textcompletion.Request{
		SystemPrompt: classifySystemPrompt,
		UserPrompt:   utterance,
		Temperature:  0.3,
		MaxTokens:    200,
	})
	if err != nil {
		return Classification{}, err
	}

	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Classification{}, errors.NewExtractionInvalidError("no JSON object in completion")
	}
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(text[start:end+1]), &doc); err != nil {
		return Classification{}, err
	}
	if result := classificationSchema.Validate(doc); !result.Valid {
		return Classification{}, errors.NewExtractionInvalidError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var out Classification
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return Classification{}, err
	}
	if _, ok := doc["confidence"]; !ok {
		out.Confidence = 0.7
	}
	return out, nil
}

type keywordRule struct {
	intent Intent
	re     *regexp.Regexp
}

// first match wins
var keywordRules = []keywordRule{
	{UserInfo, regexp.MustCompile(`\bmy (account|profile|listings?|favou?rites?|messages?|cars?|info)\b|\bi (listed|posted|saved)\b`)},
	{CarCompare, regexp.MustCompile(`\b(compare|comparison|vs\.?|versus|difference between|better than)\b`)},
	{CarSpecs, regexp.MustCompile(`\b(specs?|specifications?|horsepower|hp|engine|torque|mpg|fuel economy|towing|0-60|dimensions|reliab\w*)\b`)},
	{FAQ, regexp.MustCompile(`\b(how (do|can) i|financ\w*|loan|return policy|warranty|test drive|payment|pay|shipping|deliver\w*|hours|inspection|contact|support)\b`)},
}

var modelWordRe = regexp.MustCompile(`^\s+([a-z0-9][a-z0-9-]*)`)

var notModel = map[string]bool{
	"vs": true, "versus": true, "and": true, "or": true, "with": true, "to": true, "for": true,
	"cars": true, "car": true, "specs": true, "the": true, "compared": true,
}

func (c *Classifier) classifyWithKeywords(ctx context.Context, utterance string) Classification {
	text := strings.ToLower(utterance)

	result := Classification{Intent: CarListing, Confidence: 0.5}
	for _, rule := range keywordRules {
		if rule.re.MatchString(text) {
			result.Intent = rule.intent
			result.Confidence = 0.6
			break
		}
	}

	var names []string
	if c.makes != nil {
		var err error
		if names, err = c.makes.MakeNames(ctx); err != nil {
			c.logger.Warn("make names unavailable", map[string]interface{}{"error": err})
		}
	}
	for _, name := range names {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(strings.ToLower(name)) + `\b`)
		for _, loc := range re.FindAllStringIndex(text, -1) {
			result.Entities.CarMakes = appendUnique(result.Entities.CarMakes, name)
			if m := modelWordRe.FindStringSubmatch(text[loc[1]:]); m != nil && !notModel[m[1]] {
				result.Entities.CarModels = appendUnique(result.Entities.CarModels, m[1])
			}
		}
	}
	return result
}

func appendUnique(values []string, v string) []string {
	for _, existing := range values {
		if strings.EqualFold(existing, v) {
			return values
		}
	}
	return append(values, v)
}
