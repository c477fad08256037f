package research

// estimatedSourcesPerBudgetUnit scales the source budget into the number of
// candidate documents planning expects harvesting to sift overall.
const estimatedSourcesPerBudgetUnit = 5

// querySuffixes are the fixed rephrasings appended to the base topic, used
// in order as the depth profile asks for more query variants.
var querySuffixes = []string{"", " overview", " recent developments"}

// BuildPlan derives the research strategy for a topic. The first query is
// always the topic itself; deeper profiles add rephrased variants.
func BuildPlan(topic, depth string, budget int, profile Profile) Plan {
	variants := profile.QueryVariants
	if variants < 1 {
		variants = 1
	}
	if variants > len(querySuffixes) {
		variants = len(querySuffixes)
	}

	queries := make([]string, 0, variants)
	for _, suffix := range querySuffixes[:variants] {
		queries = append(queries, topic+suffix)
	}

	return Plan{
		Queries:              queries,
		SourceCategories:     []string{"web", "academic"},
		EstimatedSourceCount: budget * estimatedSourcesPerBudgetUnit,
		Depth:                depth,
	}
}
