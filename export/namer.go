package export

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/giygas/tdm-reports/resultparser/entities"
)

// TimestampLayout is the generation timestamp embedded in report names
const TimestampLayout = "20060102T150405.000000"

var unsafeDrugChars = regexp.MustCompile(`[^A-Za-z0-9\-]+`)

// FileNamer builds <drugId>_<index>_<timestamp>.<ext> names. Timestamps are
// strictly increasing so two calls never share a name.
type FileNamer struct {
	dir  string
	now  func() time.Time
	mu   sync.Mutex
	last time.Time
}

// NewFileNamer returns a namer for files in dir
func NewFileNamer(dir string) *FileNamer {
	return &FileNamer{dir: dir, now: time.Now}
}

// Dir is the output directory
func (n *FileNamer) Dir() string {
	return n.dir
}

// Name returns the next file name without directory
func (n *FileNamer) Name(drugID string, index int, format entities.OutputFormat) string {
	n.mu.Lock()
	ts := n.now().UTC().Truncate(time.Microsecond)
	if !ts.After(n.last) {
		ts = n.last.Add(time.Microsecond)
	}
	n.last = ts
	n.mu.Unlock()

	drug := unsafeDrugChars.ReplaceAllString(drugID, "-")
	if drug == "" || drug == "-" {
		drug = "unknown"
	}
	return fmt.Sprintf("%s_%d_%s.%s", drug, index, ts.Format(TimestampLayout), format.Extension())
}

// Path returns the next full path
func (n *FileNamer) Path(drugID string, index int, format entities.OutputFormat) string {
	return filepath.Join(n.dir, n.Name(drugID, index, format))
}
