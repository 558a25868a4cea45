package staging

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// Rule is one find-and-replace substitution. FilePattern is an unanchored
// regular expression matched against each file's full path; within matching
// files every non-overlapping match of Find is replaced by Replace, which
// may reference capture groups with ${1} syntax and may itself be a complete
// structured-document fragment.
type Rule struct {
	FilePattern string
	Find        string
	Replace     string
}

// RuleReport records how often one rule fired across an Apply pass. A rule
// that matched nothing reports zero counts; that is expected, not an error.
type RuleReport struct {
	Files int
	Subs  int
}

type compiledRule struct {
	file *regexp.Regexp
	find *regexp.Regexp
}

// Apply walks every regular file under root in lexical order and applies the
// rules in declaration order. Files matched by a file filter must be text;
// a binary file selected for substitution is an error rather than a silent
// skip, since corrupting it undetected would be worse. Reports are returned
// aligned with the rule slice.
func Apply(root string, rules []Rule) ([]RuleReport, error) {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		file, err := regexp.Compile(r.FilePattern)
		if err != nil {
			return nil, fmt.Errorf("invalid file pattern %q: %w", r.FilePattern, err)
		}
		find, err := regexp.Compile(r.Find)
		if err != nil {
			return nil, fmt.Errorf("invalid content pattern %q: %w", r.Find, err)
		}
		compiled[i] = compiledRule{file: file, find: find}
	}

	reports := make([]RuleReport, len(rules))

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		var matching []int
		for i, cr := range compiled {
			if cr.file.MatchString(path) {
				matching = append(matching, i)
			}
		}
		if len(matching) == 0 {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
			return fmt.Errorf("%s: not a text file, refusing substitution", path)
		}

		text := string(data)
		changed := false
		for _, i := range matching {
			n := len(compiled[i].find.FindAllStringIndex(text, -1))
			if n == 0 {
				continue
			}
			text = compiled[i].find.ReplaceAllString(text, rules[i].Replace)
			reports[i].Files++
			reports[i].Subs += n
			changed = true
			log.Debug().
				Str("file", path).
				Str("pattern", rules[i].Find).
				Int("substitutions", n).
				Msg("substitution applied")
		}
		if !changed {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		return os.WriteFile(path, []byte(text), info.Mode().Perm())
	})
	if err != nil {
		return nil, fmt.Errorf("applying substitutions under %s: %w", root, err)
	}

	return reports, nil
}
