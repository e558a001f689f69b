package utils

// UniqueStrings returns input with duplicates and empty strings removed, keeping first-seen order.
func UniqueStrings(input []string) []string {
	seen := make(map[string]bool, len(input))
	result := make([]string, 0, len(input))
	for _, val := range input {
		if val == "" || seen[val] {
			continue
		}
		seen[val] = true
		result = append(result, val)
	}
	return result
}
