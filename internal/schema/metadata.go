package schema

const (
	MetaRunID      = "run_id"
	MetaTrigger    = "trigger"
	MetaStep       = "step"
	MetaTool       = "tool"
	MetaCollection = "collection"
	MetaAuthor     = "author"
	MetaURI        = "uri"
	MetaTask       = "task"
	MetaOutcome    = "outcome"
)

// GetMetaString extracts a string from a metadata map. Returns "" if missing/not string.
func GetMetaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	str, _ := meta[key].(string)
	return str
}
