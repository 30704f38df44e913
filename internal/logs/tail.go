package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const maxLineBytes = 1024 * 1024

// Snapshot is the result of one read: the lines seen and the byte offset just
// past them.
type Snapshot struct {
	Lines  []string
	Offset int64
}

// Last returns up to limit trailing lines of path. A missing file yields an
// empty snapshot at offset zero.
func Last(path string, limit int) (Snapshot, error) {
	file, err := openLog(path)
	if file == nil || err != nil {
		return Snapshot{}, err
	}
	defer file.Close()

	var ring []string
	if limit > 0 {
		ring = make([]string, 0, limit)
	}
	scanner := newScanner(file)
	for scanner.Scan() {
		if limit <= 0 {
			continue
		}
		if len(ring) == limit {
			copy(ring, ring[1:])
			ring = ring[:limit-1]
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("read log file: %w", err)
	}
	offset, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return Snapshot{}, fmt.Errorf("determine log offset: %w", err)
	}
	return Snapshot{Lines: ring, Offset: offset}, nil
}

// Since returns the complete lines written at or after offset. An offset past
// the end of the file (after truncation or rotation) restarts from zero.
func Since(path string, offset int64) (Snapshot, error) {
	file, err := openLog(path)
	if file == nil || err != nil {
		return Snapshot{Offset: 0}, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Snapshot{Offset: offset}, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return Snapshot{Offset: offset}, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReader(file)
	snap := Snapshot{Offset: offset}
	for {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			// A partial trailing line is picked up on the next read.
			return snap, nil
		}
		if err != nil {
			return snap, fmt.Errorf("read log file: %w", err)
		}
		snap.Offset += int64(len(line))
		snap.Lines = append(snap.Lines, trimNewline(line))
	}
}

// Follow polls path every interval and passes each new line after offset to
// emit. It returns when ctx ends.
func Follow(ctx context.Context, path string, offset int64, interval time.Duration, emit func(string)) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		snap, err := Since(path, offset)
		if err != nil {
			return err
		}
		for _, line := range snap.Lines {
			emit(line)
		}
		offset = snap.Offset
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func openLog(path string) (*os.File, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("log path %q is a directory", path)
	}
	return file, nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return scanner
}

func trimNewline(line string) string {
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}
