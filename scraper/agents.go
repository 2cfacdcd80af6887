package scraper

import (
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
)

// defaultAgents backs the pool when no agents file is configured.
var defaultAgents = []string{
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:120.0) Gecko/20100101 Firefox/120.0",
	"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:119.0) Gecko/20100101 Firefox/119.0",
}

// AgentPool is a pre-loaded, in-memory pool of outbound identities
// sampled once per request.
type AgentPool struct {
	mu     sync.Mutex
	agents []string
	rnd    *rand.Rand
}

// NewAgentPool builds a pool from the given agents, falling back to the
// built-in list when agents is empty.
func NewAgentPool(agents []string, seed int64) *AgentPool {
	if len(agents) == 0 {
		agents = defaultAgents
	}
	return &AgentPool{
		agents: agents,
		rnd:    rand.New(rand.NewSource(seed)),
	}
}

// LoadAgentPool reads a newline-separated user-agent file into a pool.
// An empty path yields the built-in pool.
func LoadAgentPool(path string, seed int64) (*AgentPool, error) {
	if path == "" {
		return NewAgentPool(nil, seed), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agents file: %w", err)
	}

	var agents []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			agents = append(agents, line)
		}
	}
	if len(agents) == 0 {
		return nil, fmt.Errorf("agents file %q contains no entries", path)
	}
	return NewAgentPool(agents, seed), nil
}

// Pick returns one user-agent string.
func (p *AgentPool) Pick() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.agents[p.rnd.Intn(len(p.agents))]
}

// Size reports how many identities the pool holds.
func (p *AgentPool) Size() int {
	return len(p.agents)
}
