package engine

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// tailBlockSize is the step used when scanning the log backwards.
const tailBlockSize = 1024

// TailLog returns up to n trailing lines of the engine log. A missing log
// file yields an empty slice, matching a never-started engine.
func (s *Supervisor) TailLog(n int) ([]string, error) {
	return tailFile(s.cfg.LogPath, n)
}

// tailFile reads the last n lines of a file by scanning blocks from the
// end, so large engine logs never load fully into memory.
func tailFile(path string, n int) ([]string, error) {
	if n <= 0 {
		return []string{}, nil
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	end, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("seek log file: %w", err)
	}

	var data []byte
	for end > 0 && bytes.Count(data, []byte{'\n'}) <= n {
		step := int64(tailBlockSize)
		if step > end {
			step = end
		}
		end -= step

		block := make([]byte, step)
		if _, err := file.ReadAt(block, end); err != nil {
			return nil, fmt.Errorf("read log block: %w", err)
		}
		data = append(block, data...)
	}

	rawLines := bytes.Split(bytes.TrimRight(data, "\n"), []byte{'\n'})
	if len(rawLines) == 1 && len(rawLines[0]) == 0 {
		return []string{}, nil
	}
	if len(rawLines) > n {
		rawLines = rawLines[len(rawLines)-n:]
	}

	lines := make([]string, len(rawLines))
	for i, line := range rawLines {
		lines[i] = string(line)
	}
	return lines, nil
}
