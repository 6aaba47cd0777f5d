// +build !filelog

package build

import "os"

// LoggingType is the default log type, writing to stdout.
const LoggingType = LogTypeStdOut

// Write sends b to stdout, and to the rotator if one has been initialized.
func (w *LogWriter) Write(b []byte) (int, error) {
	os.Stdout.Write(b) //nolint:errcheck
	if w.rotator != nil {
		return w.rotator.Write(b)
	}
	return len(b), nil
}
