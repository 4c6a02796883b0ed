package server

// modelEntry mirrors the OpenAI-compatible /v1/models list item.
type modelEntry struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

type modelsResponse struct {
	Object string       `json:"object"`
	Data   []modelEntry `json:"data"`
}

// advertisedModelIDs is static catalog data; it only affects what clients
// discover, never what the relay forwards.
var advertisedModelIDs = []string{
	"gpt-5.3-codex",
	"gpt-5.3-codex-high",
	"gpt-5.1-codex",
	"gpt-5.1-codex-mini",
	"gpt-5-codex",
}

func supportedModels() []modelEntry {
	models := make([]modelEntry, 0, len(advertisedModelIDs))
	for _, id := range advertisedModelIDs {
		models = append(models, modelEntry{ID: id, Object: "model", OwnedBy: "openai"})
	}
	return models
}
