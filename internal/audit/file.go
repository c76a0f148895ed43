package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mohammad-safakhou/askgraph/internal/compiler"
)

// FileSink writes one indented JSON document per run into Dir.
type FileSink struct {
	Dir string
}

// Record writes the run as <timestamp>_<user>_<run>.json.
func (s FileSink) Record(_ context.Context, res compiler.Result) error {
	if res.Fallback {
		return nil
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}
	e := FromResult(res)
	data, err := json.MarshalIndent(e, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	path := filepath.Join(s.Dir, fileName(e))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	return nil
}

func fileName(e Entry) string {
	ts := strings.ReplaceAll(e.Timestamp.Format(time.RFC3339Nano), ":", "_")
	user := e.UserID
	if user == "" {
		user = "anonymous"
	}
	return fmt.Sprintf("%s_%s_%s.json", ts, sanitize(user), sanitize(e.RunID))
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
