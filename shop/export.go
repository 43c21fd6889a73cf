package shop

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// AuditDateLayout is the timestamp layout used when rendering audit records.
const AuditDateLayout = "2006-01-02 15:04:05"

// FormatAudit renders one record as four labelled lines.
func FormatAudit(a Audit) string {
	return fmt.Sprintf("ID: %d\nПользователь: %s\nДействие: %s\nДата: %s\n",
		a.ID, a.Username, a.Action, a.Date.Format(AuditDateLayout))
}

// WriteAudit writes every record followed by a blank line.
func WriteAudit(w io.Writer, logs []Audit) error {
	bw := bufio.NewWriter(w)
	for _, a := range logs {
		if _, err := bw.WriteString(FormatAudit(a) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteAuditFile creates (or truncates) the file at path and writes logs to it.
func WriteAuditFile(path string, logs []Audit) (err error) {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteAudit(f, logs)
}
