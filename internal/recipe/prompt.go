package recipe

import "strings"

// BuildPrompt lists names comma-separated with no spaces, the form the model
// was tuned against, and asks for a short numbered recipe.
func BuildPrompt(names []string) string {
	return "Given these pantry items: " + strings.Join(names, ",") +
		", can you generate me a recipe? Be prompt and concise, giving me just enough information via steps to execute the recipe with 1. , 2. , etc."
}
