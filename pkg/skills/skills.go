// Package skills parses skill definitions: a markdown document with a YAML
// front-matter block (name, description, allowed tool list) followed by a
// body whose first fenced ```tools code block, if present, adds further
// tools to the set the front matter grants.
package skills

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/loomctl/loom/pkg/apperr"
)

var frontMatterPattern = regexp.MustCompile(`(?s)^---\n(.*?)\n---\n?(.*)$`)
var toolsBlockPattern = regexp.MustCompile("(?s)```tools\\n(.*?)```")

type FrontMatter struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tools       []string `yaml:"tools"`
}

type Skill struct {
	FrontMatter
	Body  string
	Tools []string // resolved tool set: front matter ∪ fenced tools block
}

// Parse reads a skill document: everything between the opening and closing
// --- delimiters is YAML front matter, the remainder is the skill's
// instruction body. A fenced ```tools block in the body, if present, lists
// one tool name per line and is unioned into the front matter's tool list.
func Parse(raw string) (*Skill, error) {
	m := frontMatterPattern.FindStringSubmatch(raw)
	if m == nil {
		return nil, apperr.InvalidInputf("skill document is missing a YAML front-matter block")
	}

	var fm FrontMatter
	if err := yaml.Unmarshal([]byte(m[1]), &fm); err != nil {
		return nil, apperr.Wrap(apperr.InvalidInput, err, "parse skill front matter")
	}
	if fm.Name == "" {
		return nil, apperr.InvalidInputf("skill front matter must set name")
	}

	body := m[2]
	tools := append([]string(nil), fm.Tools...)
	if blockMatch := toolsBlockPattern.FindStringSubmatch(body); blockMatch != nil {
		for _, line := range strings.Split(blockMatch[1], "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			tools = append(tools, line)
		}
	}

	return &Skill{
		FrontMatter: fm,
		Body:        strings.TrimSpace(body),
		Tools:       dedupe(tools),
	}, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Render assembles the skill body into a system-prompt fragment introducing
// the skill by name and description.
func (s *Skill) Render() string {
	return fmt.Sprintf("# Skill: %s\n%s\n\n%s", s.Name, s.Description, s.Body)
}
