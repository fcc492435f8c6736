package slicer

import (
	"fmt"
	"regexp"
	"strings"
)

// PredicateNode is one node of a slice's selection expression. Exactly one
// field must be set per node. The tree form keeps configurations
// serializable and inspectable, and safe to share across slice workers.
type PredicateNode struct {
	All []PredicateNode `yaml:"all,omitempty"`
	Any []PredicateNode `yaml:"any,omitempty"`
	Not *PredicateNode  `yaml:"not,omitempty"`

	Category     string `yaml:"category,omitempty"`
	Source       string `yaml:"source,omitempty"`
	HasEnclosure *bool  `yaml:"has_enclosure,omitempty"`
	TitleMatches string `yaml:"title_matches,omitempty"`
}

// Known holds the sources and categories present in the run snapshot. A
// predicate referencing something outside it evaluates to constant false
// with a warning, so one configuration can be deployed against source sets
// that differ between environments.
type Known struct {
	Sources    map[string]bool
	Categories map[string]bool
}

// Predicate is a compiled, pure matcher over merged items. Evaluation is
// short-circuit, left-to-right, and never consults external state.
type Predicate struct {
	eval func(*MergedItem) bool
}

func (p *Predicate) Match(item *MergedItem) bool {
	return p.eval(item)
}

// Compile validates and compiles a predicate tree for one slice. A
// syntactically invalid tree is a fatal configuration error; references to
// unknown sources or categories are demoted to constant-false matchers and
// reported as diagnostics.
func Compile(sliceID string, node PredicateNode, known Known) (*Predicate, []Diagnostic, error) {
	var diags []Diagnostic
	eval, err := compileNode(sliceID, node, known, &diags)
	if err != nil {
		return nil, nil, err
	}
	return &Predicate{eval: eval}, diags, nil
}

func compileNode(sliceID string, node PredicateNode, known Known, diags *[]Diagnostic) (func(*MergedItem) bool, error) {
	if err := validateNode(node); err != nil {
		return nil, fmt.Errorf("invalid predicate in slice %q: %w", sliceID, err)
	}

	switch {
	case node.All != nil:
		children := make([]func(*MergedItem) bool, 0, len(node.All))
		for _, child := range node.All {
			fn, err := compileNode(sliceID, child, known, diags)
			if err != nil {
				return nil, err
			}
			children = append(children, fn)
		}
		return func(item *MergedItem) bool {
			for _, fn := range children {
				if !fn(item) {
					return false
				}
			}
			return true
		}, nil

	case node.Any != nil:
		children := make([]func(*MergedItem) bool, 0, len(node.Any))
		for _, child := range node.Any {
			fn, err := compileNode(sliceID, child, known, diags)
			if err != nil {
				return nil, err
			}
			children = append(children, fn)
		}
		return func(item *MergedItem) bool {
			for _, fn := range children {
				if fn(item) {
					return true
				}
			}
			return false
		}, nil

	case node.Not != nil:
		fn, err := compileNode(sliceID, *node.Not, known, diags)
		if err != nil {
			return nil, err
		}
		return func(item *MergedItem) bool {
			return !fn(item)
		}, nil

	case node.Category != "":
		if known.Categories != nil && !known.Categories[strings.ToLower(node.Category)] {
			*diags = append(*diags, Diagnostic{
				Code:    DiagUnknownCategory,
				Slice:   sliceID,
				Message: fmt.Sprintf("predicate references category %q absent from this run", node.Category),
			})
			return matchNothing, nil
		}
		want := node.Category
		return func(item *MergedItem) bool {
			for _, c := range item.Item.Categories {
				if strings.EqualFold(c, want) {
					return true
				}
			}
			return false
		}, nil

	case node.Source != "":
		if known.Sources != nil && !known.Sources[node.Source] {
			*diags = append(*diags, Diagnostic{
				Code:    DiagUnknownSource,
				Slice:   sliceID,
				Message: fmt.Sprintf("predicate references source %q absent from this run", node.Source),
			})
			return matchNothing, nil
		}
		want := node.Source
		return func(item *MergedItem) bool {
			return item.FromSource(want)
		}, nil

	case node.HasEnclosure != nil:
		want := *node.HasEnclosure
		return func(item *MergedItem) bool {
			return item.Item.HasEnclosure() == want
		}, nil

	case node.TitleMatches != "":
		re, err := regexp.Compile(node.TitleMatches)
		if err != nil {
			return nil, fmt.Errorf("invalid predicate in slice %q: title_matches pattern %q: %w", sliceID, node.TitleMatches, err)
		}
		return func(item *MergedItem) bool {
			return re.MatchString(item.Item.Title)
		}, nil
	}

	return nil, fmt.Errorf("invalid predicate in slice %q: empty node", sliceID)
}

func validateNode(node PredicateNode) error {
	set := 0
	if node.All != nil {
		set++
	}
	if node.Any != nil {
		set++
	}
	if node.Not != nil {
		set++
	}
	if node.Category != "" {
		set++
	}
	if node.Source != "" {
		set++
	}
	if node.HasEnclosure != nil {
		set++
	}
	if node.TitleMatches != "" {
		set++
	}

	if set == 0 {
		return fmt.Errorf("node sets no matcher or combinator")
	}
	if set > 1 {
		return fmt.Errorf("node sets %d matchers, want exactly one", set)
	}
	return nil
}

func matchNothing(*MergedItem) bool {
	return false
}
