package backup

import (
	"bytes"
	"io"
	"strings"
	"time"
)

func columnList(cols []string) string {
	return strings.Join(cols, ", ")
}

// normalize converts driver-specific scan values into JSON-friendly ones.
func normalize(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}

func newBytesReader(data []byte) io.Reader {
	return bytes.NewReader(data)
}
