package pipeline

// EmbedFunc generates one embedding per input text in a single batched
// model call. It must return exactly one vector per text, in input order.
type EmbedFunc func(texts []string) ([][]float32, error)

// EntityExtractFunc extracts entity mention strings from text.
// Used to fill the entity list of a new query.
type EntityExtractFunc func(text string) ([]string, error)
