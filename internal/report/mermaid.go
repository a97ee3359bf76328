package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/user/linkpulse/internal/model"
)

// GenerateMermaidDiagram creates a Mermaid flowchart for a single path trace.
func GenerateMermaidDiagram(trace model.TraceResult) string {
	var sb strings.Builder

	sb.WriteString("```mermaid\n")
	sb.WriteString("flowchart LR\n")
	sb.WriteString("    Source[This host]:::source\n")

	prevNode := "Source"
	for _, hop := range trace.Hops {
		nodeID := fmt.Sprintf("H%d", hop.Number)
		if hop.Lost {
			fmt.Fprintf(&sb, "    %s[\"Hop %d<br/>* * *\"]:::lost\n", nodeID, hop.Number)
		} else {
			addr := hop.Address
			if hop.Name != "" && hop.Name != hop.Address {
				addr = fmt.Sprintf("%s<br/>%s", shortenHostname(hop.Name), hop.Address)
			}
			fmt.Fprintf(&sb, "    %s[\"Hop %d<br/>%s<br/>%.1fms\"]\n", nodeID, hop.Number, addr, hop.RTT)
		}
		fmt.Fprintf(&sb, "    %s --> %s\n", prevNode, nodeID)
		prevNode = nodeID
	}

	if last := lastHop(trace.Hops); last == nil || last.Address != trace.Address {
		fmt.Fprintf(&sb, "    Target[\"%s\"]:::target\n", trace.Address)
		fmt.Fprintf(&sb, "    %s -.-> Target\n", prevNode)
	}

	sb.WriteString("    classDef source fill:#90EE90\n")
	sb.WriteString("    classDef target fill:#87CEEB\n")
	sb.WriteString("    classDef lost fill:#FFB6C1,stroke:#FF0000\n")
	sb.WriteString("```\n")

	return sb.String()
}

// GenerateNetworkTopology merges several traces into one Mermaid graph of
// shared hops.
func GenerateNetworkTopology(traces []model.TraceResult) string {
	if len(traces) == 0 {
		return ""
	}

	nodes := make(map[string]bool)
	targets := make(map[string]bool)
	edges := make(map[string]bool)

	for _, trace := range traces {
		prevNode := "You"
		for _, hop := range trace.Hops {
			if hop.Lost || hop.Address == "" {
				continue
			}
			nodeID := addressToNodeID(hop.Address)
			nodes[hop.Address] = true
			edges[prevNode+"->"+nodeID] = true
			prevNode = nodeID
		}
		targetID := addressToNodeID(trace.Address)
		targets[trace.Address] = true
		if prevNode != targetID {
			edges[prevNode+"->"+targetID] = true
		}
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("flowchart TD\n")
	sb.WriteString("    You[This host]:::source\n")

	for _, addr := range sortedKeys(nodes) {
		if targets[addr] {
			continue
		}
		fmt.Fprintf(&sb, "    %s[\"%s\"]\n", addressToNodeID(addr), addr)
	}
	for _, addr := range sortedKeys(targets) {
		fmt.Fprintf(&sb, "    %s[\"%s\"]:::target\n", addressToNodeID(addr), addr)
	}
	for _, edge := range sortedKeys(edges) {
		from, to, _ := strings.Cut(edge, "->")
		fmt.Fprintf(&sb, "    %s --> %s\n", from, to)
	}

	sb.WriteString("    classDef source fill:#90EE90\n")
	sb.WriteString("    classDef target fill:#87CEEB\n")
	sb.WriteString("```\n")

	return sb.String()
}

func lastHop(hops []model.Hop) *model.Hop {
	for i := len(hops) - 1; i >= 0; i-- {
		if !hops[i].Lost {
			return &hops[i]
		}
	}
	return nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func shortenHostname(hostname string) string {
	if len(hostname) > 20 {
		parts := strings.Split(hostname, ".")
		if len(parts) > 2 {
			return parts[0] + "..."
		}
		return hostname[:17] + "..."
	}
	return hostname
}

// addressToNodeID converts an address into a valid Mermaid node id.
func addressToNodeID(addr string) string {
	r := strings.NewReplacer(".", "_", ":", "_", "-", "_")
	return "N" + r.Replace(addr)
}
