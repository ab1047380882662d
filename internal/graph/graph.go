// Package graph derives the collaborator interaction graph and animates it
// with a force-directed layout.
package graph

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/syncroom/collab-platform/internal/event"
	"github.com/syncroom/collab-platform/internal/presence"
)

// Node is one collaborator in the layout.
type Node struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`
}

// Link connects two collaborators with an interaction strength in [0,1].
type Link struct {
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Strength float64 `json:"strength"`
}

// Layout tuning. Repulsion falls off with squared distance inside the
// cutoff radius; springs pull along links proportional to distance and
// strength.
const (
	repulsion       = 4000.0
	cutoffRadius    = 180.0
	springK         = 0.06
	damping         = 0.85
	maxSpeed        = 50.0
	defaultStrength = 0.5
	minSeparation   = 1e-3
)

// Graph holds the ephemeral node/link state. It is rebuilt from the roster
// and the event log on every update; nothing here is persisted.
type Graph struct {
	width  float64
	height float64
	rng    *rand.Rand

	mu    sync.Mutex
	nodes map[string]*Node
	links []Link
}

// New creates a graph bounded by the given canvas size. Seed fixes initial
// node placement for tests.
func New(width, height float64, seed int64) *Graph {
	return &Graph{
		width:  width,
		height: height,
		rng:    rand.New(rand.NewSource(seed)),
		nodes:  make(map[string]*Node),
	}
}

// Rebuild syncs nodes to the roster and recomputes links from the event
// log. Existing nodes keep their position so the layout stays stable across
// updates.
func (g *Graph) Rebuild(roster map[string]presence.Collaborator, log []event.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for id := range g.nodes {
		if _, ok := roster[id]; !ok {
			delete(g.nodes, id)
		}
	}
	for id := range roster {
		if _, ok := g.nodes[id]; !ok {
			g.nodes[id] = &Node{
				ID: id,
				X:  g.rng.Float64() * g.width,
				Y:  g.rng.Float64() * g.height,
			}
		}
	}

	g.links = deriveLinks(roster, log)
}

// deriveLinks counts message and user_action interactions between adjacent
// authors in the log and normalizes the counts to [0,1]. With no
// interactions but two or more collaborators, a ring topology keeps the
// visualization from rendering empty.
func deriveLinks(roster map[string]presence.Collaborator, log []event.Event) []Link {
	counts := make(map[[2]string]int)
	var prevUser string
	// The log is most-recent-first; direction does not matter for counting.
	for _, ev := range log {
		if ev.Type != event.TypeMessage && ev.Type != event.TypeUserAction {
			continue
		}
		id := ev.User.ID
		if id == "" {
			continue
		}
		if _, present := roster[id]; !present {
			continue
		}
		if prevUser != "" && prevUser != id {
			counts[pairKey(prevUser, id)]++
		}
		prevUser = id
	}

	if len(counts) > 0 {
		max := 0
		for _, n := range counts {
			if n > max {
				max = n
			}
		}
		links := make([]Link, 0, len(counts))
		for pair, n := range counts {
			links = append(links, Link{
				Source:   pair[0],
				Target:   pair[1],
				Strength: float64(n) / float64(max),
			})
		}
		sort.Slice(links, func(i, j int) bool {
			if links[i].Source != links[j].Source {
				return links[i].Source < links[j].Source
			}
			return links[i].Target < links[j].Target
		})
		return links
	}

	if len(roster) < 2 {
		return nil
	}
	ids := make([]string, 0, len(roster))
	for id := range roster {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	links := make([]Link, 0, len(ids))
	for i := range ids {
		links = append(links, Link{
			Source:   ids[i],
			Target:   ids[(i+1)%len(ids)],
			Strength: defaultStrength,
		})
	}
	return links
}

func clampAbs(v, max float64) float64 {
	if v > max {
		return max
	}
	if v < -max {
		return -max
	}
	return v
}

func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

// Step integrates the force layout by dt seconds. dt comes from the elapsed
// frame time so motion is frame-rate independent.
func (g *Graph) Step(dt float64) {
	if dt <= 0 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fx := make(map[string]float64, len(ids))
	fy := make(map[string]float64, len(ids))

	// Pairwise repulsion within the cutoff radius.
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := g.nodes[ids[i]], g.nodes[ids[j]]
			dx := b.X - a.X
			dy := b.Y - a.Y
			dist := math.Hypot(dx, dy)
			if dist > cutoffRadius {
				continue
			}
			if dist < minSeparation {
				dist = minSeparation
				dx, dy = dist, 0
			}
			f := repulsion / (dist * dist)
			ux, uy := dx/dist, dy/dist
			fx[a.ID] -= f * ux
			fy[a.ID] -= f * uy
			fx[b.ID] += f * ux
			fy[b.ID] += f * uy
		}
	}

	// Spring attraction along links.
	for _, l := range g.links {
		a, okA := g.nodes[l.Source]
		b, okB := g.nodes[l.Target]
		if !okA || !okB {
			continue
		}
		dx := b.X - a.X
		dy := b.Y - a.Y
		dist := math.Hypot(dx, dy)
		if dist < minSeparation {
			continue
		}
		f := springK * dist * l.Strength
		ux, uy := dx/dist, dy/dist
		fx[a.ID] += f * ux
		fy[a.ID] += f * uy
		fx[b.ID] -= f * ux
		fy[b.ID] -= f * uy
	}

	for _, id := range ids {
		n := g.nodes[id]
		n.VX = clampAbs((n.VX+fx[id]*dt)*damping, maxSpeed)
		n.VY = clampAbs((n.VY+fy[id]*dt)*damping, maxSpeed)
		n.X += n.VX * dt * 60
		n.Y += n.VY * dt * 60

		// Reflect off the canvas edges.
		if n.X < 0 {
			n.X, n.VX = -n.X, -n.VX
		}
		if n.X > g.width {
			n.X, n.VX = 2*g.width-n.X, -n.VX
		}
		if n.Y < 0 {
			n.Y, n.VY = -n.Y, -n.VY
		}
		if n.Y > g.height {
			n.Y, n.VY = 2*g.height-n.Y, -n.VY
		}
		n.X = math.Min(math.Max(n.X, 0), g.width)
		n.Y = math.Min(math.Max(n.Y, 0), g.height)
	}
}

// Nodes returns a snapshot of the nodes, ordered by id.
func (g *Graph) Nodes() []Node {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Links returns a snapshot of the links.
func (g *Graph) Links() []Link {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Link, len(g.links))
	copy(out, g.links)
	return out
}
