package console

import (
	"regexp"
	"strconv"
	"time"
)

// linePrefix is the timestamp and frame counter the server prepends to every log line.
var linePrefix = regexp.MustCompile(`^\[\d{4}\.\d{2}\.\d{2}-\d{2}\.\d{2}\.\d{2}:\d{3}\]\[\s*\d+\]`)

// StripPrefix removes the "[date-time:ms][frame]" prefix from a raw log line.
func StripPrefix(line string) string {
	if loc := linePrefix.FindStringIndex(line); loc != nil {
		return line[loc[1]:]
	}
	return line
}

// Match holds the named groups of one matched line. Groups that did not
// participate in the match are present with an empty value.
type Match map[string]string

// Group returns the value of the named group, or "" if absent.
func (m Match) Group(name string) string {
	return m[name]
}

// Int parses the named group as a base-10 integer.
func (m Match) Int(name string) (int, bool) {
	v, err := strconv.Atoi(m[name])
	if err != nil {
		return 0, false
	}
	return v, true
}

// Group is a header match together with the child matches that followed it.
type Group struct {
	Header   Match
	Children []Match
}

// MatchLine applies pattern to line and returns its named groups.
func MatchLine(pattern *regexp.Regexp, line string) (Match, bool) {
	sub := pattern.FindStringSubmatch(line)
	if sub == nil {
		return nil, false
	}
	m := make(Match, len(sub))
	for i, name := range pattern.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		m[name] = sub[i]
	}
	return m, true
}

// QueryOptions bounds how long a query collects lines.
type QueryOptions struct {
	// Timeout is the hard limit for the whole query.
	Timeout time.Duration

	// Idle stops collection once no new match arrived for this long.
	// The idle clock only starts after the first match.
	Idle time.Duration

	// First, if set, gates the start of the chunk: matches are ignored until
	// First returns true. For nested queries it is applied to headers.
	First func(Match) bool

	// Last, if set, ends collection right after a match for which it returns true.
	Last func(Match) bool
}

// DefaultQueryOptions returns a 5s timeout and a 250ms idle window.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{
		Timeout: 5 * time.Second,
		Idle:    250 * time.Millisecond,
	}
}

// FirstIndexZero accepts a match whose "index" group is "0", the first row
// printed by a GetAll command.
func FirstIndexZero(m Match) bool {
	return m.Group("index") == "0"
}

// collector accumulates matches from a stream of stripped lines.
type collector interface {
	// feed consumes one line and reports whether it matched and whether
	// collection is complete.
	feed(line string) (matched, done bool)
}

type flatCollector struct {
	pattern *regexp.Regexp
	opts    QueryOptions
	started bool
	matches []Match
}

func (fc *flatCollector) feed(line string) (bool, bool) {
	m, ok := MatchLine(fc.pattern, line)
	if !ok {
		return false, false
	}
	if !fc.started {
		if fc.opts.First != nil && !fc.opts.First(m) {
			return false, false
		}
		fc.started = true
	}
	fc.matches = append(fc.matches, m)
	return true, fc.opts.Last != nil && fc.opts.Last(m)
}

type nestedCollector struct {
	header  *regexp.Regexp
	child   *regexp.Regexp
	opts    QueryOptions
	started bool
	groups  []Group
}

func (nc *nestedCollector) feed(line string) (bool, bool) {
	if m, ok := MatchLine(nc.header, line); ok {
		if !nc.started {
			if nc.opts.First != nil && !nc.opts.First(m) {
				return false, false
			}
			nc.started = true
		}
		nc.groups = append(nc.groups, Group{Header: m})
		return true, nc.opts.Last != nil && nc.opts.Last(m)
	}
	if len(nc.groups) == 0 {
		return false, false
	}
	m, ok := MatchLine(nc.child, line)
	if !ok {
		return false, false
	}
	last := &nc.groups[len(nc.groups)-1]
	last.Children = append(last.Children, m)
	return true, false
}

// Collect runs a flat extraction over already captured lines. Lines may carry
// the server prefix. Timeouts in opts are ignored.
func Collect(lines []string, pattern *regexp.Regexp, opts QueryOptions) []Match {
	fc := &flatCollector{pattern: pattern, opts: opts}
	for _, line := range lines {
		if _, done := fc.feed(StripPrefix(line)); done {
			break
		}
	}
	return fc.matches
}

// CollectNested runs a nested extraction over already captured lines.
func CollectNested(lines []string, header, child *regexp.Regexp, opts QueryOptions) []Group {
	nc := &nestedCollector{header: header, child: child, opts: opts}
	for _, line := range lines {
		if _, done := nc.feed(StripPrefix(line)); done {
			break
		}
	}
	return nc.groups
}
