package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pulselens/pulselens/internal/sample"
)

const (
	filePrefix = "heart_rate_"
	fileSuffix = ".csv"
	header     = "timestamp,heart_rate,datetime,readable_time\n"

	dateLayout = "2006-01-02"
	// readableLayout matches the readable_time column written by earlier
	// collectors; changing it would break files shared with offline tooling.
	readableLayout = "2006年01月02日 15:04:05"
)

// DailyLog is an append-only, date-partitioned sample log. Each Append is
// its own durability unit: the record is written and synced before the call
// returns. The open file handle is bound to one calendar date (local time of
// the sample being written) and rotated whenever a sample's date differs.
type DailyLog struct {
	dir    string
	logger *zap.Logger

	mu   sync.Mutex
	file *os.File
	date string // calendar date the open handle is bound to
}

// NewDailyLog creates the data directory if needed and opens the log file
// for the current date.
func NewDailyLog(dir string, logger *zap.Logger) (*DailyLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateDirectory, err)
	}

	d := &DailyLog{dir: dir, logger: logger}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.openLocked(time.Now().Format(dateLayout)); err != nil {
		return nil, err
	}

	logger.Info("Daily log initialized",
		zap.String("directory", dir),
		zap.String("file", d.file.Name()),
	)
	return d, nil
}

// Append writes one CSV record for the sample to the file bound to the
// sample's calendar date, rotating first when the date changed, and syncs
// the write to disk.
func (d *DailyLog) Append(s sample.Sample) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	date := s.Time().Format(dateLayout)
	if date != d.date {
		d.logger.Info("Rotating daily log",
			zap.String("from", d.date),
			zap.String("to", date),
		)
		if err := d.openLocked(date); err != nil {
			return err
		}
	}

	record := fmt.Sprintf("%.6f,%d,%s,%s\n",
		s.Timestamp, s.Value, s.ISODatetime, s.Time().Format(readableLayout))
	if _, err := d.file.WriteString(record); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteSample, err)
	}
	if err := d.file.Sync(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteSample, err)
	}
	return nil
}

// ClearAll closes the open handle, removes every per-day log file in the
// data directory, and reopens a fresh handle for the current date.
func (d *DailyLog) ClearAll() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closeLocked()

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrClearLogs, err)
	}
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(d.dir, name)); err != nil {
			return fmt.Errorf("%w: %w", ErrClearLogs, err)
		}
		removed++
	}
	d.logger.Info("Daily log files removed", zap.Int("count", removed))

	return d.openLocked(time.Now().Format(dateLayout))
}

// Path returns the file path the log is currently bound to.
func (d *DailyLog) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return ""
	}
	return d.file.Name()
}

// Close releases the open file handle.
func (d *DailyLog) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeLocked()
	return nil
}

// openLocked binds the log to the given date, writing the CSV header when
// the file is new. Callers must hold d.mu.
func (d *DailyLog) openLocked(date string) error {
	d.closeLocked()

	path := filepath.Join(d.dir, filePrefix+date+fileSuffix)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpenLogFile, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("%w: %w", ErrOpenLogFile, err)
	}
	if info.Size() == 0 {
		if _, err := file.WriteString(header); err != nil {
			file.Close()
			return fmt.Errorf("%w: %w", ErrOpenLogFile, err)
		}
	}

	d.file = file
	d.date = date
	return nil
}

func (d *DailyLog) closeLocked() {
	if d.file == nil {
		return
	}
	if err := d.file.Close(); err != nil {
		d.logger.Warn("Failed to close daily log file", zap.Error(err))
	}
	d.file = nil
	d.date = ""
}
