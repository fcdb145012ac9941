package role

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Role is an interview track the candidate can pick instead of uploading a resume.
type Role struct {
	ID         string `json:"id" yaml:"id"`
	Title      string `json:"title" yaml:"title"`
	Subtitle   string `json:"subtitle" yaml:"subtitle"`
	Difficulty string `json:"difficulty" yaml:"difficulty"`
	VoiceID    string `json:"voiceId,omitempty" yaml:"voice_id,omitempty"`
}

// Seed provides the built-in interview tracks.
func Seed() []Role {
	return []Role{
		{
			ID:         "software-engineer",
			Title:      "Software Engineer",
			Subtitle:   "Data Structures & System Design",
			Difficulty: "Hard",
		},
		{
			ID:         "product-manager",
			Title:      "Product Manager",
			Subtitle:   "Strategy & Leadership Scenarios",
			Difficulty: "Medium",
		},
		{
			ID:         "data-scientist",
			Title:      "Data Scientist",
			Subtitle:   "ML Models & Python",
			Difficulty: "Hard",
		},
	}
}

type catalogFile struct {
	Roles []Role `yaml:"roles"`
}

// LoadFile reads a YAML role catalog of the form `roles: [{id, title, ...}]`.
func LoadFile(path string) ([]Role, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read role catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML role catalog and rejects entries without id or title.
func Parse(data []byte) ([]Role, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode role catalog: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Roles))
	roles := make([]Role, 0, len(file.Roles))
	for i, r := range file.Roles {
		r.ID = strings.TrimSpace(r.ID)
		r.Title = strings.TrimSpace(r.Title)
		if r.ID == "" || r.Title == "" {
			return nil, fmt.Errorf("role %d: id and title are required", i)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("role %d: duplicate id %q", i, r.ID)
		}
		seen[r.ID] = struct{}{}
		roles = append(roles, r)
	}
	return roles, nil
}
