package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchRules 监听规则文件，每次写入后在 base 基础上重新加载并回调 onChange
// 加载失败（YAML 错误、校验失败）时保留旧规则，不回调
// 监听所在目录而不是文件本身：编辑器原子保存（写临时文件再 rename）会替换 inode
func WatchRules(ctx context.Context, path string, base Rules, onChange func(*Rules), logger *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	logger.Info("Watching rules file", zap.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isRulesUpdate(event, path) {
				continue
			}

			rules, err := LoadRulesFile(path, base)
			if err != nil {
				logger.Error("Rules reload failed, keeping previous rules",
					zap.String("path", path),
					zap.Error(err),
				)
				continue
			}

			logger.Info("Rules reloaded", zap.String("path", path))
			onChange(rules)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("Rules watcher error", zap.Error(err))
		}
	}
}

// isRulesUpdate 目录事件中只关心规则文件的写入与创建（rename 到目标名产生 Create）
func isRulesUpdate(event fsnotify.Event, path string) bool {
	if filepath.Base(event.Name) != filepath.Base(path) {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}
