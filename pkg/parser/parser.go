package parser

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/0xmhha/fswatch/pkg/logger"
	"github.com/0xmhha/fswatch/pkg/watchkey"
)

// Wire markers of the event-log record grammar.
const (
	markerBeginWD    = "BEGIN_WD="
	markerEndWD      = "END_WD"
	markerReturnCode = "RC_FROM_EVPROD="
	markerBeginInfo  = "BEGIN_EVPROD_INFO"
	markerOverflow   = "BUF_WRAP"
)

// Return codes reported by directory monitors.
const (
	codeCreate = markerReturnCode + "1000"
	codeDelete = markerReturnCode + "1002"
)

// logParser implements Parser.
type logParser struct {
	log logger.Logger
}

// New creates an event-log parser.
func New(log logger.Logger) Parser {
	return &logParser{log: log}
}

// Parse implements Parser.Parse.
func (p *logParser) Parse(buf []byte, expected int, resolve Resolver) []PollEvent {
	if expected == 0 {
		return nil
	}

	events := make([]PollEvent, 0, expected)

	var (
		key      watchkey.Key
		haveKey  bool
		kind     watchkey.Kind
		haveKind bool
		fileName string
	)

	lines := splitLines(buf)
	for i := 0; i < len(lines); i++ {
		line := lines[i]

		switch {
		case strings.HasPrefix(line, markerBeginWD):
			wd, err := strconv.Atoi(line[len(markerBeginWD):])
			if err != nil {
				haveKey = false
				p.log.Debug("malformed watch descriptor line", "line", line)
				continue
			}
			key, haveKey = resolve(wd)
			if !haveKey {
				// Typically a record racing a cancellation.
				p.log.Debug("record for unregistered watch descriptor", "wd", wd)
			}

		case haveKey && (strings.HasPrefix(line, markerReturnCode) || line == markerOverflow):
			kind, haveKind = eventKind(key, line)

		case line == markerBeginInfo && i+1 < len(lines):
			// Expect exactly: BEGIN_EVPROD_INFO / <file name> / END_EVPROD_INFO.
			fileName = lines[i+1]
			i += 2

		case strings.HasPrefix(line, markerEndWD):
			if haveKey && haveKind {
				events = append(events, PollEvent{Kind: kind, Key: key, FileName: fileName})
			} else {
				p.log.Debug("dropping unresolved record",
					"have_key", haveKey,
					"have_kind", haveKind)
			}
			key, haveKey = nil, false
			kind, haveKind = 0, false
			fileName = ""
		}
	}

	if len(events) != expected {
		p.log.Warn("poll event count mismatch",
			"expected", expected,
			"parsed", len(events))
	}

	return events
}

// eventKind maps a return-code line to an event kind. The tables differ
// by key variant: directory monitors (TopLevelKey) distinguish creations
// and deletions, file monitors (SubKey) report every code as a
// modification.
func eventKind(key watchkey.Key, line string) (watchkey.Kind, bool) {
	switch key.(type) {
	case *watchkey.TopLevelKey:
		switch line {
		case codeCreate:
			return watchkey.Create, true
		case codeDelete:
			return watchkey.Delete, true
		case markerOverflow:
			return watchkey.Overflow, true
		}
		return 0, false

	case *watchkey.SubKey:
		if line == markerOverflow {
			return watchkey.Overflow, true
		}
		if strings.HasPrefix(line, markerReturnCode) {
			return watchkey.Modify, true
		}
		return 0, false

	default:
		return 0, false
	}
}

// splitLines returns the buffer's lines up to the first NUL byte or the
// buffer capacity, whichever comes first.
func splitLines(buf []byte) []string {
	end := bytes.IndexByte(buf, 0)
	if end < 0 {
		end = len(buf)
	}
	raw := buf[:end]
	if len(raw) == 0 {
		return nil
	}

	lines := strings.Split(string(raw), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
