package memorystore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/isafetyrobo/safety-agent/pkg/logstore"
	"github.com/nxadm/tail"
)

// MemoryStore keeps one append-only file per label set. Every line is
// stored as "<RFC 3339 timestamp>\t<log line>".
type MemoryStore struct {
	name     string
	location string

	mu sync.Mutex
}

type Options struct {
	Dir string // Store the log files under this location. Defaults to /var/tmp
}

type entry struct {
	timestamp time.Time
	line      string
}

func New(name string, options Options) (*MemoryStore, error) {
	store := new(MemoryStore)
	store.name = name

	logFileDir := options.Dir

	if logFileDir == "" {
		logFileDir = filepath.Join(string(filepath.Separator), "var", "tmp")
	}

	store.location = filepath.Join(logFileDir, name)

	if err := os.MkdirAll(store.location, 0755); err != nil {
		return nil, fmt.Errorf("error creating log directory for memory store with name %s. Error: %w", store.name, err)
	}

	return store, nil
}

func (store *MemoryStore) logFilePath(labels map[string]string) (string, error) {
	stream, err := logstore.StreamName(labels)

	if err != nil {
		return "", err
	}

	return filepath.Join(store.location, stream+".log"), nil
}

func (store *MemoryStore) createLogFile(logFilePath string) error {
	f, err := os.OpenFile(logFilePath, os.O_WRONLY|os.O_CREATE, 0644)

	if err != nil {
		return fmt.Errorf("error creating log file for memory store with name %s. Error: %w", store.name, err)
	}

	return f.Close()
}

// Query writes the stored lines between options.Start and options.End in
// the order they were pushed. With a limit only the most recent lines are
// written.
func (store *MemoryStore) Query(options logstore.QueryOptions, w logstore.Writer, stopCh <-chan struct{}) error {
	logFilePath, err := store.logFilePath(options.Labels)

	if err != nil {
		return err
	}

	f, err := os.Open(logFilePath)

	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("error querying memory store with name %s. Error: %w", store.name, err)
	}

	defer f.Close()

	entries, err := readEntries(f, options.Start, options.End, options.Limit)

	if err != nil {
		return fmt.Errorf("error querying memory store with name %s for stream %s. Error: %w",
			store.name, logstore.LabelsMapToString(options.Labels, "="), err)
	}

	return writeEntries(entries, w, stopCh)
}

// Tail replays up to options.Limit stored lines newer than options.Start and
// then follows the file until stopCh is closed.
func (store *MemoryStore) Tail(options logstore.TailOptions, w logstore.Writer, stopCh <-chan struct{}) error {
	logFilePath, err := store.logFilePath(options.Labels)

	if err != nil {
		return err
	}

	if err := store.createLogFile(logFilePath); err != nil {
		return err
	}

	f, err := os.Open(logFilePath)

	if err != nil {
		return fmt.Errorf("error streaming memory store with name %s. Error: %w", store.name, err)
	}

	info, err := f.Stat()

	if err != nil {
		f.Close()
		return fmt.Errorf("error streaming memory store with name %s. Error: %w", store.name, err)
	}

	offset := info.Size()

	if options.Limit > 0 {
		entries, err := readEntries(io.LimitReader(f, offset), options.Start, time.Time{}, options.Limit)

		if err == nil {
			err = writeEntries(entries, w, stopCh)
		}

		if err != nil {
			f.Close()
			return fmt.Errorf("error streaming memory store with name %s. Error: %w", store.name, err)
		}
	}

	f.Close()

	t, err := tail.TailFile(logFilePath, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Poll:     true,
		Location: &tail.SeekInfo{Offset: offset, Whence: io.SeekStart},
		Logger:   tail.DiscardingLogger,
	})

	if err != nil {
		return fmt.Errorf("error streaming memory store with name %s. Error: %w", store.name, err)
	}

	done := make(chan struct{})

	go func(t *tail.Tail) {
		defer close(done)

		for {
			select {
			case <-stopCh:
				return
			case line, ok := <-t.Lines:
				if !ok {
					return
				}

				if line.Err != nil || strings.TrimSpace(line.Text) == "" {
					continue
				}

				e, ok := parseEntry(line.Text)

				if !ok || (!options.Start.IsZero() && e.timestamp.Before(options.Start)) {
					continue
				}

				ts := e.timestamp
				w.Write(&ts, e.line)
			}
		}
	}(t)

	<-stopCh
	t.Stop()
	<-done
	t.Cleanup()

	return nil
}

func (store *MemoryStore) Push(labels map[string]string, line string, t time.Time) error {
	logFilePath, err := store.logFilePath(labels)

	if err != nil {
		return err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	f, err := os.OpenFile(logFilePath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)

	if err != nil {
		return fmt.Errorf("error opening log file for memory store with name %s. Error: %w", store.name, err)
	}

	defer f.Close()

	line = strings.NewReplacer("\r", " ", "\n", " ").Replace(line)

	if _, err := f.WriteString(t.UTC().Format(time.RFC3339Nano) + "\t" + line + "\n"); err != nil {
		return fmt.Errorf("error pushing log to memory store with name %s. Error: %w", store.name, err)
	}

	return nil
}

func parseEntry(text string) (entry, bool) {
	ts, line, found := strings.Cut(text, "\t")

	if !found {
		return entry{}, false
	}

	parsed, err := time.Parse(time.RFC3339Nano, ts)

	if err != nil {
		return entry{}, false
	}

	return entry{timestamp: parsed, line: line}, true
}

func readEntries(r io.Reader, start, end time.Time, limit uint32) ([]entry, error) {
	res := make([]entry, 0)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		e, ok := parseEntry(scanner.Text())

		if !ok {
			continue
		}

		if !start.IsZero() && e.timestamp.Before(start) {
			continue
		}

		if !end.IsZero() && e.timestamp.After(end) {
			continue
		}

		res = append(res, e)

		if limit > 0 && len(res) > int(limit) {
			res = res[1:]
		}
	}

	return res, scanner.Err()
}

func writeEntries(entries []entry, w logstore.Writer, stopCh <-chan struct{}) error {
	for i := range entries {
		select {
		case <-stopCh:
			return nil
		default:
		}

		if err := w.Write(&entries[i].timestamp, entries[i].line); err != nil {
			return err
		}
	}

	return nil
}
