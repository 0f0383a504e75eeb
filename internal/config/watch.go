package config

import (
	"context"
	"os"
	"path/filepath"

	"codeberg.org/mutker/torquectl/internal/errors"
	"codeberg.org/mutker/torquectl/internal/logger"
	"github.com/fsnotify/fsnotify"
)

// Watch reloads the configuration whenever path is written, created or
// replaced and passes the result to onChange. A reload that fails is logged
// and the previous configuration stays in effect. Watch returns when ctx is
// done.
func Watch(ctx context.Context, path string, onChange func(*Config), opts ...Option) error {
	errFactory := errors.New()

	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errFactory.Wrap(errors.ErrWatchConfig, err)
	}
	defer watcher.Close()

	// A watch on the file itself is dropped when an editor saves by renaming
	// a new file over it, so watch the directory and filter by name.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return errFactory.Wrap(errors.ErrWatchConfig, err)
	}

	opts = append(opts, WithConfigFile(path))

	logger.Debug().Str("path", path).Msg("Watching config file")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// moved away or mid-replace; defaults must not replace the live config
			if _, err := os.Stat(path); err != nil {
				continue
			}

			cfg, err := Load(opts...)
			if err != nil {
				logger.Error().Err(err).Str("path", path).Msg("Config reload failed, keeping previous config")
				continue
			}

			logger.Info().Str("path", path).Msg("Config reloaded")
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error().Err(err).Msg("Config watcher error")
		}
	}
}
