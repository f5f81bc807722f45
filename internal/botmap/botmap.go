// Package botmap resolves caller-facing model names to upstream bot names.
package botmap

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Built-in catalog. Entries mirror the bots commonly exposed by the
// upstream provider; config entries are merged on top.
const defaultCatalogYAML = `
bots:
  gpt-3.5-turbo: Assistant
  gpt-3.5-turbo-16k: ChatGPT-16k
  gpt-4: GPT-4
  gpt-4o: GPT-4o
  gpt-4-vision-preview: GPT-4-128k
  claude-3-opus: Claude-3-Opus
  claude-3.5-sonnet: Claude-3.5-Sonnet
  claude-3-sonnet: Claude-3-Sonnet
  claude-3-haiku: Claude-3-Haiku
  llama-3-70b-groq: Llama-3-70b-Groq
  gemini-1.5-pro: Gemini-1.5-Pro
  gemini-1.5-pro-128k: Gemini-1.5-Pro-128k
  dall-e-3: DALL-E-3
  stablediffusionxl: StableDiffusionXL
`

type fileCatalog struct {
	Bots map[string]string `yaml:"bots"`
}

// Catalog maps model names (case-insensitively) to canonical bot names.
// Immutable after construction, so reads need no locking; the package
// still guards the lazily parsed defaults.
type Catalog struct {
	byLower map[string]string
	models  []string
}

var (
	defaultsOnce sync.Once
	defaults     map[string]string
)

func defaultBots() map[string]string {
	defaultsOnce.Do(func() {
		var fc fileCatalog
		if err := yaml.Unmarshal([]byte(defaultCatalogYAML), &fc); err != nil {
			panic(fmt.Sprintf("botmap: invalid built-in catalog: %v", err))
		}
		defaults = fc.Bots
	})
	return defaults
}

// New builds a catalog from the built-in defaults merged with the
// configured overrides. An override with an empty bot name removes the
// entry.
func New(overrides map[string]string) *Catalog {
	merged := make(map[string]string, len(defaultBots())+len(overrides))
	display := make(map[string]string)
	for model, bot := range defaultBots() {
		merged[strings.ToLower(model)] = bot
		display[strings.ToLower(model)] = model
	}
	for model, bot := range overrides {
		key := strings.ToLower(model)
		if bot == "" {
			delete(merged, key)
			delete(display, key)
			continue
		}
		merged[key] = bot
		display[key] = model
	}

	models := make([]string, 0, len(display))
	for _, name := range display {
		models = append(models, name)
	}
	sort.Strings(models)
	return &Catalog{byLower: merged, models: models}
}

// LoadFile reads a yaml catalog file and builds a catalog from it merged
// over the defaults.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bot catalog: %w", err)
	}
	var fc fileCatalog
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse bot catalog: %w", err)
	}
	return New(fc.Bots), nil
}

// Resolve maps a model name to its canonical bot name, case-insensitively.
func (c *Catalog) Resolve(model string) (string, bool) {
	bot, ok := c.byLower[strings.ToLower(strings.TrimSpace(model))]
	return bot, ok
}

// Models returns the caller-facing model names, sorted.
func (c *Catalog) Models() []string {
	out := make([]string, len(c.models))
	copy(out, c.models)
	return out
}
