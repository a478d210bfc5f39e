// Package favourites keeps saved Julia constants in a text file, one "<real>:<imag>" pair per line.
package favourites

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"sync"

	"fractalexplorer/fractal"
	"fractalexplorer/misc"

	"github.com/BrugadaSyndrome/bslogger"
)

const DefaultFile = "savedFavourites.txt"

var (
	ErrMalformedLine = errors.New("malformed favourite")
	ErrNoFavourite   = errors.New("no such favourite")
)

type Store struct {
	constants []fractal.Complex
	logger    bslogger.Logger
	mutex     sync.Mutex
	path      string
	skipped   int
}

func NewStore(path string) *Store {
	if path == "" {
		path = DefaultFile
	}
	return &Store{
		logger: bslogger.NewLogger("Favourites", bslogger.Normal, nil),
		path:   path,
	}
}

// Load reads the store from path. A missing file is an empty store.
func Load(path string) (*Store, error) {
	s := NewStore(path)
	return s, s.Load()
}

func (s *Store) Path() string {
	return s.path
}

// Load replaces the in memory favourites with the file contents. Malformed lines are skipped and counted, blank
// lines are ignored.
func (s *Store) Load() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	err, contents := misc.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.constants = nil
		s.skipped = 0
		s.logger.Infof("No favourites at %s, starting empty", s.path)
		return nil
	}
	if err != nil {
		return err
	}

	constants, skipped := Parse(contents)
	s.constants = constants
	s.skipped = skipped
	if skipped > 0 {
		s.logger.Warningf("Skipped %d malformed lines in %s", skipped, s.path)
	}
	s.logger.Debugf("Loaded %d favourites from %s", len(constants), s.path)
	return nil
}

// Parse returns the constants found in contents and the number of malformed lines
func Parse(contents []byte) ([]fractal.Complex, int) {
	var constants []fractal.Complex
	skipped := 0
	scanner := bufio.NewScanner(bytes.NewReader(contents))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c, err := ParseLine(line)
		if err != nil {
			skipped++
			continue
		}
		constants = append(constants, c)
	}
	return constants, skipped
}

func ParseLine(line string) (fractal.Complex, error) {
	fields := strings.Split(strings.TrimSpace(line), ":")
	if len(fields) != 2 {
		return fractal.Complex{}, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}
	re, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return fractal.Complex{}, fmt.Errorf("%w: %q: %v", ErrMalformedLine, line, err)
	}
	im, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return fractal.Complex{}, fmt.Errorf("%w: %q: %v", ErrMalformedLine, line, err)
	}
	c := fractal.NewComplex(re, im)
	if !c.IsFinite() {
		return fractal.Complex{}, fmt.Errorf("%w: %q is not finite", ErrMalformedLine, line)
	}
	return c, nil
}

// FormatLine writes the shortest decimals that parse back to the same values
func FormatLine(c fractal.Complex) string {
	return strconv.FormatFloat(c.Real, 'g', -1, 64) + ":" + strconv.FormatFloat(c.Imag, 'g', -1, 64)
}

// Add appends the constant and rewrites the whole file
func (s *Store) Add(c fractal.Complex) error {
	if !c.IsFinite() {
		return fmt.Errorf("%w: %v", fractal.ErrInvalidConstant, c)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.constants = append(s.constants, c)
	if err := s.save(); err != nil {
		s.constants = s.constants[:len(s.constants)-1]
		return err
	}
	s.logger.Infof("Saved favourite %s", c)
	return nil
}

func (s *Store) Save() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.save()
}

func (s *Store) save() error {
	var b strings.Builder
	for _, c := range s.constants {
		b.WriteString(FormatLine(c))
		b.WriteString("\n")
	}
	_, err := misc.WriteFile(s.path, []byte(b.String()))
	return err
}

// Get returns the favourite at index i in the order they were added
func (s *Store) Get(i int) (fractal.Complex, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if i < 0 || i >= len(s.constants) {
		return fractal.Complex{}, fmt.Errorf("%w: %d of %d", ErrNoFavourite, i, len(s.constants))
	}
	return s.constants[i], nil
}

func (s *Store) All() []fractal.Complex {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]fractal.Complex(nil), s.constants...)
}

func (s *Store) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.constants)
}

// Skipped is the number of malformed lines dropped by the last Load
func (s *Store) Skipped() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.skipped
}
