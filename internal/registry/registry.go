// Package registry maps provider names to LLM client constructors. Provider
// packages register themselves from init.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hattiebot/toolchat/internal/core"
)

// ClientOptions is what every provider constructor receives.
type ClientOptions struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	Log     zerolog.Logger
}

type ClientFactory func(opts ClientOptions) (core.LLMClient, error)

var (
	mu         sync.RWMutex
	LLMClients = make(map[string]ClientFactory)
)

func RegisterClient(name string, f ClientFactory) {
	mu.Lock()
	defer mu.Unlock()
	LLMClients[name] = f
}

func getClientFactory(name string) (ClientFactory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := LLMClients[name]
	return f, ok
}

// Providers lists registered provider names, sorted.
func Providers() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(LLMClients))
	for n := range LLMClients {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewClient builds the named provider's client.
func NewClient(name string, opts ClientOptions) (core.LLMClient, error) {
	f, ok := getClientFactory(name)
	if !ok {
		return nil, fmt.Errorf("registry: unknown provider %q (have %v)", name, Providers())
	}
	return f(opts)
}
