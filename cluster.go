package termatlas

import "github.com/rivo/uniseg"

// Cluster is one paint command unit: the characters of a single
// grapheme cluster and the number of terminal columns it occupies.
// Every character of the cluster is recorded at the cluster's starting
// column; combining marks therefore occupy zero columns of their own.
type Cluster struct {
	Text  []rune
	Width int
}

// MakeClusters segments s into paint clusters on Unicode grapheme
// cluster boundaries with monospace column widths. Hosts with their
// own cell buffer build []Cluster directly instead.
func MakeClusters(s string) []Cluster {
	var out []Cluster
	state := -1
	for len(s) > 0 {
		var cluster string
		var width int
		cluster, s, width, state = uniseg.FirstGraphemeClusterInString(s, state)
		out = append(out, Cluster{Text: []rune(cluster), Width: width})
	}
	return out
}
