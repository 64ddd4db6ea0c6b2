package log

import "os"

// stderr resolves os.Stderr on every write so tests that swap os.Stderr still capture output.
type stderr struct{}

func (stderr) Write(p []byte) (int, error) {
	return os.Stderr.Write(p)
}

func (stderr) Sync() error {
	return nil
}
