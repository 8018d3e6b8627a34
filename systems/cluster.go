package systems

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// ClusterParams tunes density clustering.
type ClusterParams struct {
	Mode          string // proximity | tags | hybrid
	Radius        float64
	MinSize       int
	MergeDistance float64
}

// Cluster mode values.
const (
	ClusterProximity = "proximity"
	ClusterTags      = "tags"
	ClusterHybrid    = "hybrid"
)

// ClusterMember is one node as seen by the clusterer.
type ClusterMember struct {
	ID   string
	Pos  r3.Vec
	Task string // external task id, empty for decorative nodes
}

// Cluster is a density-grouped set of nodes.
type Cluster struct {
	ID       string
	Centroid r3.Vec
	Members  []string
	Theme    string
}

// TagLookup resolves an external task id to its tag. The second return is
// false when the task has no tag.
type TagLookup func(taskID string) (string, bool)

// Clusterer groups nodes by density reachability, by external tags, or by a
// hybrid of both. It never fails: inputs that produce no group of MinSize
// simply yield fewer (or no) clusters. Output is a pure function of the
// input slice, so passing members in a stable order makes clustering
// reproducible.
type Clusterer struct {
	params ClusterParams
	tags   TagLookup
}

// NewClusterer creates a clusterer with the given parameters.
func NewClusterer(params ClusterParams) *Clusterer {
	if params.MinSize < 2 {
		params.MinSize = 2
	}
	switch params.Mode {
	case ClusterProximity, ClusterTags, ClusterHybrid:
	default:
		params.Mode = ClusterProximity
	}
	return &Clusterer{params: params}
}

// SetTagLookup installs the external task-tag resolver used by the tags and
// hybrid modes. A nil lookup leaves every node untagged.
func (c *Clusterer) SetTagLookup(lookup TagLookup) {
	c.tags = lookup
}

// TagLookup returns the installed task-tag resolver, or nil.
func (c *Clusterer) TagLookup() TagLookup {
	return c.tags
}

// Params returns the active cluster parameters.
func (c *Clusterer) Params() ClusterParams {
	return c.params
}

// Identify groups members into clusters according to the configured mode.
// Groups smaller than MinSize are discarded; their members stay unclustered.
func (c *Clusterer) Identify(members []ClusterMember) []Cluster {
	if c.params.Mode == ClusterTags {
		return c.identifyByTags(members)
	}
	return c.identifyByDensity(members)
}

// identifyByDensity runs BFS density-reachability: pick an unvisited node,
// expand to every unvisited node within reach, emit the group if it is big
// enough. Hybrid mode narrows the reach to half radius across tag
// boundaries.
func (c *Clusterer) identifyByDensity(members []ClusterMember) []Cluster {
	visited := make([]bool, len(members))
	var clusters []Cluster
	var queue []int

	for i := range members {
		if visited[i] {
			continue
		}
		visited[i] = true
		queue = append(queue[:0], i)
		var group []int
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			group = append(group, j)
			for k := range members {
				if visited[k] {
					continue
				}
				if c.reachable(members[j], members[k]) {
					visited[k] = true
					queue = append(queue, k)
				}
			}
		}
		if len(group) < c.params.MinSize {
			continue
		}
		clusters = append(clusters, c.emit(len(clusters), members, group))
	}
	return clusters
}

// reachable applies the mode's distance rule between two members.
func (c *Clusterer) reachable(a, b ClusterMember) bool {
	radius := c.params.Radius
	if c.params.Mode == ClusterHybrid && c.tagOf(a) != c.tagOf(b) {
		radius /= 2
	}
	return r3.Norm2(r3.Sub(a.Pos, b.Pos)) <= radius*radius
}

// identifyByTags groups purely by tag, ignoring geometry. Untagged members
// (decorative nodes, tasks without a tag) are never clustered.
func (c *Clusterer) identifyByTags(members []ClusterMember) []Cluster {
	byTag := make(map[string][]int)
	for i, m := range members {
		tag := c.tagOf(m)
		if tag == "" {
			continue
		}
		byTag[tag] = append(byTag[tag], i)
	}

	tags := make([]string, 0, len(byTag))
	for tag := range byTag {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	var clusters []Cluster
	for _, tag := range tags {
		group := byTag[tag]
		if len(group) < c.params.MinSize {
			continue
		}
		cl := c.emit(len(clusters), members, group)
		cl.Theme = tag
		clusters = append(clusters, cl)
	}
	return clusters
}

// emit builds a cluster from member indices: sequential id, mean centroid,
// majority tag as theme.
func (c *Clusterer) emit(seq int, members []ClusterMember, group []int) Cluster {
	centroid := r3.Vec{}
	ids := make([]string, 0, len(group))
	for _, i := range group {
		centroid = r3.Add(centroid, members[i].Pos)
		ids = append(ids, members[i].ID)
	}
	centroid = r3.Scale(1/float64(len(group)), centroid)
	return Cluster{
		ID:       fmt.Sprintf("c-%d", seq),
		Centroid: centroid,
		Members:  ids,
		Theme:    c.majorityTag(members, group),
	}
}

// majorityTag returns the most common non-empty tag in a group, breaking
// count ties by lexical order so the result is stable.
func (c *Clusterer) majorityTag(members []ClusterMember, group []int) string {
	counts := make(map[string]int)
	for _, i := range group {
		if tag := c.tagOf(members[i]); tag != "" {
			counts[tag]++
		}
	}
	if len(counts) == 0 {
		return ""
	}
	tags := make([]string, 0, len(counts))
	for tag := range counts {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	best := ""
	bestCount := 0
	for _, tag := range tags {
		if counts[tag] > bestCount {
			best = tag
			bestCount = counts[tag]
		}
	}
	return best
}

func (c *Clusterer) tagOf(m ClusterMember) string {
	if m.Task == "" || c.tags == nil {
		return ""
	}
	tag, ok := c.tags(m.Task)
	if !ok {
		return ""
	}
	return tag
}

// Merge coalesces clusters whose centroids sit within mergeDistance of an
// already accepted cluster. Membership concatenates and the centroid moves
// to the member-count-weighted average. Cluster ids of absorbed groups are
// dropped.
func (c *Clusterer) Merge(clusters []Cluster, mergeDistance float64) []Cluster {
	if mergeDistance <= 0 || len(clusters) < 2 {
		return clusters
	}
	out := make([]Cluster, 0, len(clusters))
	for _, cl := range clusters {
		merged := false
		for i := range out {
			if r3.Norm(r3.Sub(out[i].Centroid, cl.Centroid)) > mergeDistance {
				continue
			}
			wa := float64(len(out[i].Members))
			wb := float64(len(cl.Members))
			out[i].Centroid = r3.Scale(1/(wa+wb),
				r3.Add(r3.Scale(wa, out[i].Centroid), r3.Scale(wb, cl.Centroid)))
			out[i].Members = append(out[i].Members, cl.Members...)
			if out[i].Theme == "" {
				out[i].Theme = cl.Theme
			}
			merged = true
			break
		}
		if !merged {
			out = append(out, cl)
		}
	}
	return out
}
