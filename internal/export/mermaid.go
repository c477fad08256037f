package export

import (
	"fmt"
	"sort"
	"strings"
)

// GenerateMermaid renders a bundle as a Mermaid graph TD diagram: sources
// grouped in a subgraph, one node per report paragraph, and an arrow from
// each paragraph to every source it cites.
func GenerateMermaid(b *Bundle) string {
	// Build node → ID mapping for Mermaid (alphanumeric only).
	nodeIDs := make(map[string]string)
	nextID := 0
	getID := func(key string) string {
		if id, ok := nodeIDs[key]; ok {
			return id
		}
		id := fmt.Sprintf("N%d", nextID)
		nextID++
		nodeIDs[key] = id
		return id
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	if len(b.Citations) > 0 {
		sb.WriteString(fmt.Sprintf("  subgraph %s[\"Sources\"]\n", getID("sources_cluster")))
		sorted := make([]string, 0, len(b.Citations))
		labels := make(map[string]string, len(b.Citations))
		for _, c := range b.Citations {
			sorted = append(sorted, c.ID)
			label := c.Title
			if label == "" {
				label = c.URL
			}
			labels[c.ID] = label
		}
		sort.Strings(sorted)
		for _, cid := range sorted {
			sb.WriteString(fmt.Sprintf("    %s[\"%s: %.40s\"]\n", getID(cid), cid, mermaidLabel(labels[cid])))
		}
		sb.WriteString("  end\n")
	}

	for i, para := range b.Paragraphs {
		paraKey := fmt.Sprintf("para_%d", i+1)
		sb.WriteString(fmt.Sprintf("  %s[\"P%d: %.40s\"]\n", getID(paraKey), i+1, mermaidLabel(para.Text)))
		for _, cid := range para.CiteIDs {
			sb.WriteString(fmt.Sprintf("  %s --> %s\n", getID(paraKey), getID(cid)))
		}
	}

	return sb.String()
}

// mermaidLabel strips characters that break Mermaid string labels.
func mermaidLabel(s string) string {
	s = strings.NewReplacer("\"", "'", "\n", " ", "\r", " ", "[", "(", "]", ")").Replace(s)
	return strings.TrimSpace(s)
}
