package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher 监听配置文件变化，变化后重新加载并回调。
// 带冷却时间避免编辑器连续写入触发多次重载；加载或校验失败的
// 新配置被丢弃，保持旧配置继续生效。
type Watcher struct {
	Path     string
	Cooldown time.Duration

	mu         sync.Mutex
	lastReload time.Time
}

// Start 启动监听，阻塞到 ctx 取消。onUpdate 收到通过校验的新配置。
func (w *Watcher) Start(ctx context.Context, onUpdate func(AppConfig)) error {
	if w.Cooldown <= 0 {
		w.Cooldown = 2 * time.Second
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.Path); err != nil {
		return fmt.Errorf("watch config file: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.handleChange(onUpdate)
			// 某些编辑器以 rename+create 方式落盘，重新挂监听
			if event.Op&fsnotify.Create != 0 {
				_ = watcher.Add(w.Path)
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
		}
	}
}

func (w *Watcher) handleChange(onUpdate func(AppConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if time.Since(w.lastReload) < w.Cooldown {
		return
	}
	cfg, err := LoadWithEnvOverrides(w.Path)
	if err != nil {
		return
	}
	w.lastReload = time.Now()
	if onUpdate != nil {
		onUpdate(cfg)
	}
}
