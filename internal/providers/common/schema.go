package common

import "github.com/invopop/jsonschema"

// ClassificationOutput is the structured result of classifying an answer
type ClassificationOutput struct {
	BrandMentioned bool     `json:"brandMentioned" jsonschema_description:"True if the tracked brand or company is mentioned"`
	Competitors    []string `json:"competitors" jsonschema_description:"Names of competing products, services or tools mentioned"`
	Sources        []string `json:"sources" jsonschema_description:"Complete http(s) URLs mentioned in the response"`
}

type CompetitorOutput struct {
	Name     string `json:"name" jsonschema_description:"Competitor name"`
	URL      string `json:"url" jsonschema_description:"Competitor homepage URL"`
	Category string `json:"category" jsonschema_description:"Short market category"`
}

type CompetitorListOutput struct {
	Competitors []CompetitorOutput `json:"competitors"`
}

type SiteSummaryOutput struct {
	Title       string   `json:"title" jsonschema_description:"Company name or main heading"`
	Description string   `json:"description" jsonschema_description:"One sentence describing what this company does"`
	Features    []string `json:"features" jsonschema_description:"3-5 main features or capabilities"`
	Services    []string `json:"services" jsonschema_description:"3-5 main services or products"`
}

type TopicOutput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type TopicListOutput struct {
	Topics []TopicOutput `json:"topics"`
}

// Schemas are generated once at init time.
var (
	ClassificationSchema = GenerateSchema[ClassificationOutput]()
	CompetitorListSchema = GenerateSchema[CompetitorListOutput]()
	SiteSummarySchema    = GenerateSchema[SiteSummaryOutput]()
	TopicListSchema      = GenerateSchema[TopicListOutput]()
)

// GenerateSchema generates a JSON schema for structured outputs
func GenerateSchema[T any]() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	var zero T
	schema := reflector.Reflect(zero)

	// Convert to the format expected by OpenAI
	result := map[string]interface{}{
		"type":       "object",
		"properties": schema.Properties,
		"required":   schema.Required,
	}

	if schema.AdditionalProperties != nil {
		result["additionalProperties"] = false
	}

	return result
}
