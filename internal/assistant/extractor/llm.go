package extractor

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"

	"carmarket-search/internal/assistant/textcompletion"
	"carmarket-search/internal/common/errors"
	"carmarket-search/internal/common/validation"
)

const (
	extractionTemperature = 0.1
	extractionMaxTokens   = 400
	llmDefaultConfidence  = 0.7
)

var errNoJSONObject = stderrors.New("no JSON object in completion")

const extractionSystemPrompt = `You extract car search filters from a shopper's message for a used-car marketplace.
Reply with a single JSON object and nothing else. Omit any field that the message does not mention.

Fields:
- "makes": array of car manufacturers, e.g. ["Toyota"]
- "models": array of model names, e.g. ["RAV4"]
- "yearMin", "yearMax": integers, inclusive model years
- "priceMin", "priceMax": numbers in US dollars
- "mileageMax": integer miles
- "bodyTypes": array from sedan, suv, hatchback, coupe, convertible, wagon, pickup, van
- "fuelTypes": array from petrol, diesel, electric, hybrid
- "transmission": automatic or manual
- "condition": new or used
- "location": city, state or country
- "features": array of requested equipment, e.g. ["gps", "sunroof"]
- "query": remaining free-text keywords, if any
- "sortBy": one of createdAt, price, mileage, year, viewCount
- "sortOrder": ASC or DESC
- "extractedKeywords": array of the words you used
- "confidence": number from 0 to 1 describing how sure you are`

var (
	schemaStrings = validation.Property{Type: "array", Items: &validation.Property{Type: "string"}}
	schemaYear    = validation.Property{Type: "integer", Minimum: validation.Float(1900), Maximum: validation.Float(2100)}
	schemaAmount  = validation.Property{Type: "number", Minimum: validation.Float(0)}
)

var extractionSchema = validation.MustCompile(validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"query":             {Type: "string"},
		"makes":             schemaStrings,
		"models":            schemaStrings,
		"yearMin":           schemaYear,
		"yearMax":           schemaYear,
		"priceMin":          schemaAmount,
		"priceMax":          schemaAmount,
		"mileageMax":        {Type: "integer", Minimum: validation.Float(0)},
		"bodyTypes":         schemaStrings,
		"fuelTypes":         schemaStrings,
		"transmission":      {Type: "string"},
		"condition":         {Type: "string"},
		"location":          {Type: "string"},
		"features":          schemaStrings,
		"sortBy":            {Type: "string", Enum: []string{"createdAt", "price", "mileage", "year", "viewCount"}},
		"sortOrder":         {Type: "string", Enum: []string{"ASC", "DESC"}},
		"extractedKeywords": schemaStrings,
		"confidence":        {Type: "number", Minimum: validation.Float(0), Maximum: validation.Float(1)},
	},
	AdditionalProperties: validation.Bool(true),
})

func (e *Extractor) extractWithLLM(ctx context.Context, utterance string) ExtractedQuery {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	text, err := e.llm.Complete(ctx, textcompletion.Request{
		SystemPrompt: extractionSystemPrompt,
		UserPrompt:   utterance,
		Temperature:  extractionTemperature,
		MaxTokens:    extractionMaxTokens,
	})
	if err != nil {
		e.logger.Warn("extraction completion failed, searching free text", map[string]interface{}{"error": err})
		return fallbackQuery(utterance)
	}

	q, err := parseCompletion(text)
	if err != nil {
		e.logger.Warn("extraction output rejected, searching free text", map[string]interface{}{"error": err})
		return fallbackQuery(utterance)
	}
	return q
}

func fallbackQuery(utterance string) ExtractedQuery {
	return ExtractedQuery{Query: strings.TrimSpace(utterance), ExtractedKeywords: []string{}, Confidence: 0}
}

// parseCompletion locates the JSON object in a completion, validates it and
// maps it onto an ExtractedQuery.
func parseCompletion(text string) (ExtractedQuery, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ExtractedQuery{}, errors.NewExtractionInvalidError(errNoJSONObject.Error())
	}
	raw := []byte(text[start : end+1])

	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ExtractedQuery{}, errors.NewExtractionInvalidError(err.Error())
	}
	// null means "not mentioned"
	for k, v := range doc {
		if v == nil {
			delete(doc, k)
		}
	}

	if result := extractionSchema.Validate(doc); !result.Valid {
		return ExtractedQuery{}, errors.NewExtractionInvalidError(strings.Join(result.GetErrorMessages(), "; "))
	}

	cleaned, err := json.Marshal(doc)
	if err != nil {
		return ExtractedQuery{}, errors.NewExtractionInvalidError(err.Error())
	}
	var q ExtractedQuery
	if err := json.Unmarshal(cleaned, &q); err != nil {
		return ExtractedQuery{}, errors.NewExtractionInvalidError(err.Error())
	}

	if _, ok := doc["confidence"]; !ok {
		q.Confidence = llmDefaultConfidence
	}
	q.BodyTypes = lowerAll(q.BodyTypes)
	q.FuelTypes = lowerAll(q.FuelTypes)
	q.Transmission = strings.ToLower(q.Transmission)
	q.Condition = strings.ToLower(q.Condition)
	q.Features = lowerAll(q.Features)
	return q, nil
}

func lowerAll(values []string) []string {
	if len(values) == 0 {
		return values
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
