// Package promptbuilder assembles LLM prompts deterministically from an
// ordered set of named sections (spec §4.5), shared by the query
// generator and the façade's narration step.
package promptbuilder

import "strings"

// Section is one named, prioritized piece of a prompt. Lower Priority
// sorts earlier. ShouldInclude and Format must be side-effect-free and
// idempotent with respect to their inputs.
type Section struct {
	Name          string
	Priority      int
	ShouldInclude func(question string, ctx map[string]any, opts map[string]any) bool
	Format        func(question string, ctx map[string]any, opts map[string]any) string
}

// Builder holds an ordered, named set of sections and assembles them into
// a prompt string. Mutation (Add/Remove/Replace/ExtendBefore/ExtendAfter)
// is not safe for concurrent use without external serialization — spec §5
// requires the caller to serialize reconfiguration.
type Builder struct {
	sections []Section
}

// New creates a Builder seeded with the given sections, sorted by
// priority.
func New(sections ...Section) *Builder {
	b := &Builder{sections: append([]Section(nil), sections...)}
	b.sort()
	return b
}

// Add registers a new section, re-sorting by priority.
func (b *Builder) Add(s Section) {
	b.sections = append(b.sections, s)
	b.sort()
}

// Remove deletes the section with the given name, if present.
func (b *Builder) Remove(name string) {
	out := b.sections[:0]
	for _, s := range b.sections {
		if s.Name != name {
			out = append(out, s)
		}
	}
	b.sections = out
}

// Replace swaps the section with the given name for a new definition,
// keeping its position stable if the new section shares the same name and
// priority; otherwise the set is re-sorted.
func (b *Builder) Replace(name string, s Section) {
	for i := range b.sections {
		if b.sections[i].Name == name {
			b.sections[i] = s
			b.sort()
			return
		}
	}
	b.Add(s)
}

// ExtendBefore inserts a synthetic section at the named section's priority
// minus one. No collision check is made: if another section already holds
// that priority, the two keep their insertion order.
func (b *Builder) ExtendBefore(name string, s Section) {
	anchor, ok := b.priorityOf(name)
	if !ok {
		b.Add(s)
		return
	}
	s.Priority = anchor - 1
	b.Add(s)
}

// ExtendAfter inserts a synthetic section anchored just after the named
// section's priority.
func (b *Builder) ExtendAfter(name string, s Section) {
	anchor, ok := b.priorityOf(name)
	if !ok {
		b.Add(s)
		return
	}
	s.Priority = anchor + 1
	b.Add(s)
}

func (b *Builder) priorityOf(name string) (int, bool) {
	for _, s := range b.sections {
		if s.Name == name {
			return s.Priority, true
		}
	}
	return 0, false
}

func (b *Builder) sort() {
	s := b.sections
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1].Priority > s[j].Priority; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Build emits included sections in ascending priority, concatenating their
// formatted output with blank-line separation.
func (b *Builder) Build(question string, ctx map[string]any, opts map[string]any) string {
	var parts []string
	for _, s := range b.sections {
		if s.ShouldInclude != nil && !s.ShouldInclude(question, ctx, opts) {
			continue
		}
		text := s.Format(question, ctx, opts)
		if text == "" {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n")
}
