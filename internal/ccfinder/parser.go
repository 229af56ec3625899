package ccfinder

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"hugin/internal/logging"
	"hugin/internal/types"
)

const (
	tagFileDescriptionBegin = "#begin{file description}"
	tagFileDescriptionEnd   = "#end{file description}"
	tagCloneBegin           = "#begin{clone}"
	tagCloneEnd             = "#end{clone}"
	tagSetBegin             = "#begin{set}"
	tagSetEnd               = "#end{set}"
	tagBlockBegin           = "#begin{"
	tagBlockEnd             = "#end{"
)

// ErrInvalidEncoding is returned by ParseFile for reports that are not UTF-8.
var ErrInvalidEncoding = errors.New("result is not valid UTF-8")

// block is one top-level element of a report: a file description block, a
// clone block, or anything else (unknown blocks and #directives).
type block interface {
	offset() int
}

type fileRecord struct {
	number FileNumber
	stat   FileStat
	path   string
}

type fileDescriptionBlock struct {
	at      int
	entries []fileRecord
}

type cloneBlock struct {
	at   int
	sets []CloneSet
}

type unknownBlock struct {
	at    int
	label string
}

func (b fileDescriptionBlock) offset() int { return b.at }
func (b cloneBlock) offset() int           { return b.at }
func (b unknownBlock) offset() int         { return b.at }

// syntaxError is the failure of one grammar rule at a byte offset.
type syntaxError struct {
	pos  int
	want string
}

// further returns whichever failure got further into the input.
func further(a, b *syntaxError) *syntaxError {
	if a == nil || (b != nil && b.pos > a.pos) {
		return b
	}
	return a
}

// blockFailure remembers a data block whose header matched but whose body did not.
type blockFailure struct {
	block string
	at    int
	err   *syntaxError
}

type scanner struct {
	src      string
	pos      int
	brokenAt *blockFailure
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\r' || c == '\n' }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (s *scanner) fail(pos int, want string) *syntaxError {
	return &syntaxError{pos: pos, want: want}
}

// space consumes the whitespace preceding a token. It fails when only
// whitespace is left, so repeated rules stop at trailing blank lines
// instead of matching empty input forever.
func (s *scanner) space() *syntaxError {
	i := s.pos
	for i < len(s.src) && isSpace(s.src[i]) {
		i++
	}
	if i == len(s.src) {
		return s.fail(i, "content before end of input")
	}
	s.pos = i
	return nil
}

func (s *scanner) literal(tag string) *syntaxError {
	if err := s.space(); err != nil {
		return err
	}
	if !strings.HasPrefix(s.src[s.pos:], tag) {
		return s.fail(s.pos, strconv.Quote(tag))
	}
	s.pos += len(tag)
	return nil
}

func (s *scanner) char(c byte) *syntaxError {
	if s.pos < len(s.src) && s.src[s.pos] == c {
		s.pos++
		return nil
	}
	return s.fail(s.pos, strconv.QuoteRune(rune(c)))
}

func (s *scanner) number() (uint32, *syntaxError) {
	if err := s.space(); err != nil {
		return 0, err
	}
	start := s.pos
	for s.pos < len(s.src) && isDigit(s.src[s.pos]) {
		s.pos++
	}
	if s.pos == start {
		return 0, s.fail(start, "digits")
	}
	v, err := strconv.ParseUint(s.src[start:s.pos], 10, 32)
	if err != nil {
		return 0, s.fail(start, "unsigned 32-bit integer")
	}
	return uint32(v), nil
}

// restOfLine consumes everything up to the line terminator, which is left in
// place. A trailing carriage return is dropped from the returned text.
func (s *scanner) restOfLine() string {
	start := s.pos
	if i := strings.IndexByte(s.src[start:], '\n'); i >= 0 {
		s.pos = start + i
	} else {
		s.pos = len(s.src)
	}
	return strings.TrimSuffix(s.src[start:s.pos], "\r")
}

func (s *scanner) lineEnding() *syntaxError {
	if s.pos < len(s.src) && s.src[s.pos] == '\n' {
		s.pos++
		return nil
	}
	return s.fail(s.pos, "line ending")
}

func (s *scanner) fileNumber() (FileNumber, *syntaxError) {
	archive, err := s.number()
	if err != nil {
		return FileNumber{}, err
	}
	if err := s.char('.'); err != nil {
		return FileNumber{}, err
	}
	file, err := s.number()
	if err != nil {
		return FileNumber{}, err
	}
	return FileNumber{Archive: archive, File: file}, nil
}

// position reads a line,column,offset triplet.
func (s *scanner) position() (types.CodePosition, uint32, *syntaxError) {
	var v [3]uint32
	for i := range v {
		if i > 0 {
			if err := s.char(','); err != nil {
				return types.CodePosition{}, 0, err
			}
		}
		n, err := s.number()
		if err != nil {
			return types.CodePosition{}, 0, err
		}
		v[i] = n
	}
	return types.NewCodePosition(v[0], v[1]), v[2], nil
}

// filename reads the remainder of the current line, which must be terminated.
func (s *scanner) filename() (string, *syntaxError) {
	for s.pos < len(s.src) && (s.src[s.pos] == ' ' || s.src[s.pos] == '\t') {
		s.pos++
	}
	start := s.pos
	name := s.restOfLine()
	if name == "" {
		return "", s.fail(start, "file name")
	}
	if err := s.lineEnding(); err != nil {
		return "", err
	}
	return name, nil
}

func (s *scanner) fileRecord() (fileRecord, *syntaxError) {
	var rec fileRecord
	var err *syntaxError
	if rec.number, err = s.fileNumber(); err != nil {
		return rec, err
	}
	if rec.stat.Lines, err = s.number(); err != nil {
		return rec, err
	}
	if rec.stat.Tokens, err = s.number(); err != nil {
		return rec, err
	}
	if rec.path, err = s.filename(); err != nil {
		return rec, err
	}
	return rec, nil
}

func (s *scanner) setElement() (SetElement, *syntaxError) {
	var e SetElement
	var err *syntaxError
	if e.FileNumber, err = s.fileNumber(); err != nil {
		return e, err
	}
	if e.Start, e.StartOffset, err = s.position(); err != nil {
		return e, err
	}
	if e.End, e.EndOffset, err = s.position(); err != nil {
		return e, err
	}
	if e.Extent, err = s.number(); err != nil {
		return e, err
	}
	return e, nil
}

// broken records the first data block that failed after its header matched.
func (s *scanner) broken(name string, at int, err *syntaxError) *syntaxError {
	if s.brokenAt == nil {
		s.brokenAt = &blockFailure{block: name, at: at, err: err}
	}
	return err
}

func (s *scanner) set() (CloneSet, *syntaxError) {
	if err := s.literal(tagSetBegin); err != nil {
		return CloneSet{}, err
	}
	var elements []SetElement
	var last *syntaxError
	for {
		save := s.pos
		e, err := s.setElement()
		if err != nil {
			s.pos = save
			last = err
			break
		}
		elements = append(elements, e)
	}
	if len(elements) == 0 {
		return CloneSet{}, last
	}
	if err := s.literal(tagSetEnd); err != nil {
		return CloneSet{}, further(last, err)
	}
	return CloneSet{Elements: elements}, nil
}

func (s *scanner) clone() (block, *syntaxError) {
	if err := s.literal(tagCloneBegin); err != nil {
		return nil, err
	}
	at := s.pos - len(tagCloneBegin)
	var sets []CloneSet
	var last *syntaxError
	for {
		save := s.pos
		set, err := s.set()
		if err != nil {
			s.pos = save
			last = err
			break
		}
		sets = append(sets, set)
	}
	if len(sets) == 0 {
		return nil, s.broken("clone", at, last)
	}
	if err := s.literal(tagCloneEnd); err != nil {
		return nil, s.broken("clone", at, further(last, err))
	}
	return cloneBlock{at: at, sets: sets}, nil
}

func (s *scanner) fileDescription() (block, *syntaxError) {
	if err := s.literal(tagFileDescriptionBegin); err != nil {
		return nil, err
	}
	at := s.pos - len(tagFileDescriptionBegin)
	var entries []fileRecord
	var last *syntaxError
	for {
		save := s.pos
		rec, err := s.fileRecord()
		if err != nil {
			s.pos = save
			last = err
			break
		}
		entries = append(entries, rec)
	}
	if len(entries) == 0 {
		return nil, s.broken("file description", at, last)
	}
	if err := s.literal(tagFileDescriptionEnd); err != nil {
		return nil, s.broken("file description", at, further(last, err))
	}
	return fileDescriptionBlock{at: at, entries: entries}, nil
}

// unknownBlock skips a #begin{...} block up to the rest of its first #end{ line.
func (s *scanner) unknownBlock() (block, *syntaxError) {
	if err := s.literal(tagBlockBegin); err != nil {
		return nil, err
	}
	at := s.pos - len(tagBlockBegin)
	rest := s.src[s.pos:]
	label := rest
	if i := strings.IndexAny(rest, "}\n"); i >= 0 {
		label = rest[:i]
	}
	end := strings.Index(rest, tagBlockEnd)
	if end < 0 {
		return nil, s.fail(s.pos, strconv.Quote(tagBlockEnd))
	}
	s.pos += end
	s.restOfLine()
	return unknownBlock{at: at, label: label}, nil
}

// directive skips a #tag line such as "#format: classwise".
func (s *scanner) directive() (block, *syntaxError) {
	if err := s.space(); err != nil {
		return nil, err
	}
	at := s.pos
	if err := s.char('#'); err != nil {
		return nil, err
	}
	return unknownBlock{at: at, label: "#" + s.restOfLine()}, nil
}

func (s *scanner) block() (block, *syntaxError) {
	start := s.pos
	var failure *syntaxError
	for _, alt := range []func() (block, *syntaxError){
		s.fileDescription,
		s.clone,
		s.unknownBlock,
		s.directive,
	} {
		b, err := alt()
		if err == nil {
			return b, nil
		}
		s.pos = start
		failure = further(failure, err)
	}
	return nil, failure
}

func (s *scanner) line(offset int) int {
	if offset > len(s.src) {
		offset = len(s.src)
	}
	return strings.Count(s.src[:offset], "\n") + 1
}

func (s *scanner) errorAt(kind error, offset int, detail string) *ParseError {
	return &ParseError{Err: kind, Line: s.line(offset), Offset: offset, Detail: detail}
}

// fold reduces the block sequence to a result, allowing at most one file
// description block and one clone block in any order.
func (s *scanner) fold(blocks []block, stop *syntaxError) (*ParsedResult, error) {
	var files *fileDescriptionBlock
	var clone *cloneBlock
	for _, b := range blocks {
		switch b := b.(type) {
		case fileDescriptionBlock:
			if files != nil {
				return nil, s.errorAt(ErrDuplicatedBlocks, b.at, "file description")
			}
			files = &b
		case cloneBlock:
			if clone != nil {
				return nil, s.errorAt(ErrDuplicatedBlocks, b.at, "clone")
			}
			clone = &b
		case unknownBlock:
			logging.ParserDebug("skipped %q at line %d", b.label, s.line(b.at))
		}
	}

	if files == nil || clone == nil {
		var missing []string
		if files == nil {
			missing = append(missing, "file description")
		}
		if clone == nil {
			missing = append(missing, "clone")
		}
		detail := "no " + strings.Join(missing, " or ") + " block"
		if f := s.brokenAt; f != nil && f.err != nil {
			detail += fmt.Sprintf("; %s block at line %d is malformed: expected %s at line %d",
				f.block, s.line(f.at), f.err.want, s.line(f.err.pos))
		} else if stop != nil && strings.TrimSpace(s.src[s.pos:]) != "" {
			detail += fmt.Sprintf("; parsing stopped at line %d", s.line(s.pos))
		}
		return nil, &ParseError{Err: ErrMissingBlocks, Detail: detail}
	}

	result := &ParsedResult{
		FileDescription: make(map[FileNumber]string, len(files.entries)),
		FileStats:       make(map[FileNumber]FileStat, len(files.entries)),
		Clone:           clone.sets,
	}
	for _, rec := range files.entries {
		// Later records silently replace earlier ones with the same number.
		result.FileDescription[rec.number] = rec.path
		result.FileStats[rec.number] = rec.stat
	}
	return result, nil
}

// ParseReport parses a complete detector report. Besides the result it
// returns the unparsed remainder of the input, which is blank for a
// well-formed report.
func ParseReport(input string) (*ParsedResult, string, error) {
	s := &scanner{src: input}
	var blocks []block
	var stop *syntaxError
	for {
		start := s.pos
		b, err := s.block()
		if err != nil {
			s.pos = start
			stop = err
			break
		}
		blocks = append(blocks, b)
	}

	rest := s.src[s.pos:]
	if len(blocks) == 0 && strings.TrimSpace(rest) != "" {
		return nil, rest, s.errorAt(ErrMalformed, stop.pos, "expected "+stop.want)
	}

	result, err := s.fold(blocks, stop)
	if err != nil {
		return nil, rest, err
	}
	return result, rest, nil
}

// Parse parses a detector report. Content after the last recognised block is
// ignored.
func Parse(input string) (*ParsedResult, error) {
	timer := logging.StartTimer(logging.CategoryParser, "parse result")
	defer timer.Stop()

	result, rest, err := ParseReport(input)
	if err != nil {
		return nil, err
	}
	if trimmed := strings.TrimSpace(rest); trimmed != "" {
		logging.ParserWarn("ignoring %d bytes of unrecognised trailing content", len(trimmed))
	}
	logging.ParserDebug("parsed %d files, %d clone sets", len(result.FileDescription), len(result.Clone))
	return result, nil
}

// ParseFile reads and parses the report at path. Read errors are returned
// unchanged so callers can tell I/O failures from malformed reports.
func ParseFile(path string) (*ParsedResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%s: %w", path, ErrInvalidEncoding)
	}
	return Parse(string(data))
}
