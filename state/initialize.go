package state

import (
	"os"
	"time"
)

// newLocalEnv creates a new LocalEnv instance, logger is set once
// configuration is loaded.
func newLocalEnv() *LocalEnv {
	return &LocalEnv{start: time.Now()}
}

// LoadDefaultStyle reads stylesheet configured to replace built-in one.
func (e *LocalEnv) LoadDefaultStyle() error {
	if e.Cfg == nil || e.Cfg.Document.StylesheetPath == "" {
		return nil
	}
	data, err := os.ReadFile(e.Cfg.Document.StylesheetPath)
	if err != nil {
		return err
	}
	e.DefaultStyle = data
	return nil
}
