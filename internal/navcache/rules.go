package navcache

import (
	"strings"

	"github.com/ashureev/devchat/internal/config"
)

// Rules classifies paths into page areas and decides which transitions
// invalidate backend caches.
type Rules struct {
	routes config.Routes
}

// NewRules builds rules over the given area prefixes.
func NewRules(routes config.Routes) Rules {
	return Rules{routes: routes}
}

// InContribution reports whether path is in the contribution area,
// including its chat subpage.
func (r Rules) InContribution(path string) bool {
	return underPrefix(path, r.routes.Contribution)
}

// InChat reports whether path is the contribution chat subpage.
func (r Rules) InChat(path string) bool {
	return underPrefix(path, r.routes.ContributionChat)
}

// InHub reports whether path is in the hub area.
func (r Rules) InHub(path string) bool {
	return underPrefix(path, r.routes.Hub)
}

// ShouldCleanup reports whether moving from one path to another schedules a
// cache cleanup. Every rule is evaluated; any match is enough.
func (r Rules) ShouldCleanup(from, to string) bool {
	if from == "" || from == to {
		return false
	}
	switch {
	case r.InContribution(from) && r.InHub(to):
		return true
	case r.InChat(from) && !r.InChat(to):
		return true
	case r.InHub(from) && r.InContribution(to):
		return true
	}
	return false
}

func underPrefix(path, prefix string) bool {
	if prefix == "" {
		return false
	}
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	prefix = strings.TrimRight(prefix, "/")
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
