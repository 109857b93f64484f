package knowledge

import (
	"fmt"
	"strings"
)

var rule = strings.Repeat("=", 70)

// ForOracle renders the knowledge relevant to one (site, task) as prompt
// text: the known workflow with its confidence, then the approaches known to
// fail on the site.
func (s *Store) ForOracle(site, task string) string {
	var b strings.Builder
	b.WriteString(rule + "\n")
	b.WriteString("SYSTEM KNOWLEDGE (learned from earlier runs):\n")
	b.WriteString(rule + "\n")

	if site != "" && task != "" {
		if wf, ok := s.Workflow(site, task); ok {
			fmt.Fprintf(&b, "\nKNOWN WORKFLOW for %s on %s (confidence %.0f%%):\n",
				task, normalizeSite(site), wf.Confidence*100)
			for i, step := range wf.Steps {
				fmt.Fprintf(&b, "  %d. %s\n", i+1, DescribeStep(step))
			}
			if wf.SuccessIndicator != "" {
				fmt.Fprintf(&b, "  Success looks like: %s\n", wf.SuccessIndicator)
			}
		}
	}

	if site != "" {
		if failures := s.Failures(site); len(failures) > 0 {
			fmt.Fprintf(&b, "\nKNOWN FAILURES TO AVOID on %s:\n", normalizeSite(site))
			for _, f := range failures {
				fmt.Fprintf(&b, "  DON'T: %s\n", f.WrongApproach)
				if f.CorrectApproach != "" {
					fmt.Fprintf(&b, "    INSTEAD: %s\n", f.CorrectApproach)
				}
			}
		}

		if hints := s.Hints(site, task); len(hints) > 0 {
			b.WriteString("\nUSER GUIDANCE:\n")
			for _, h := range hints {
				fmt.Fprintf(&b, "  - %s\n", h.Instruction)
			}
		}
	}

	b.WriteString(rule)
	return b.String()
}

// DescribeStep renders one step as a short human-readable line.
func DescribeStep(step Step) string {
	line := ""
	switch step.Action {
	case "click":
		line = fmt.Sprintf("CLICK: %s", step.Target)
	case "type":
		if step.Field != "" {
			line = fmt.Sprintf("TYPE %q in '%s'", step.Text, step.Field)
		} else {
			line = fmt.Sprintf("TYPE %q", step.Text)
		}
	case "press":
		line = fmt.Sprintf("PRESS %s", step.Key)
	case "wait":
		seconds := step.Seconds
		if seconds == 0 {
			seconds = 2
		}
		line = fmt.Sprintf("WAIT %d seconds", seconds)
	case "navigate":
		line = fmt.Sprintf("GO TO: %s", step.URL)
	case "scroll":
		line = fmt.Sprintf("SCROLL %s", step.Direction)
	default:
		line = fmt.Sprintf("%s: %+v", strings.ToUpper(step.Action), step)
	}
	if step.Note != "" {
		line += fmt.Sprintf(" (%s)", step.Note)
	}
	return line
}

// AllFailures lists every learned failure across sites, for prompts that are
// not scoped to one site.
func (s *Store) AllFailures() string {
	s.mu.Lock()
	failures := make([]*FailureRecord, len(s.doc.Failures))
	copy(failures, s.doc.Failures)
	s.mu.Unlock()

	if len(failures) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("LEARNED FAILURES (never repeat these):\n")
	for _, f := range failures {
		fmt.Fprintf(&b, "  - %s: don't %s\n", f.Site, f.WrongApproach)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Summary renders store contents for the CLI.
func (s *Store) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Knowledge file: %s\n", s.path)
	fmt.Fprintf(&b, "Sites: %d\n", len(s.doc.Sites))
	for site, entry := range s.doc.Sites {
		fmt.Fprintf(&b, "  %s: %d workflows\n", site, len(entry.Workflows))
		for task, wf := range entry.Workflows {
			fmt.Fprintf(&b, "    %s (confidence %.0f%%, %d ok / %d failed)\n",
				task, wf.Confidence*100, wf.SuccessCount, wf.FailCount)
		}
	}
	fmt.Fprintf(&b, "Contacts: %d\n", len(s.doc.Contacts))
	fmt.Fprintf(&b, "Learned failures: %d\n", len(s.doc.Failures))
	return strings.TrimRight(b.String(), "\n")
}
