package template

// MergeContexts merges variable sets; later sets override earlier ones.
func MergeContexts[V any](contexts ...map[string]V) map[string]interface{} {
	result := make(map[string]interface{})
	for _, ctx := range contexts {
		for key, value := range ctx {
			result[key] = value
		}
	}
	return result
}
