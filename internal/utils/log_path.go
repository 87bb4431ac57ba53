package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaultServerLogPath 网关默认日志文件，按可执行文件目录、工作目录、~/.dharana、/tmp 的顺序取第一个可写路径
func GetDefaultServerLogPath() string {
	var candidates []string

	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), "logs", "gateway.log"))
	}
	if workDir, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(workDir, "logs", "gateway.log"))
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, ".dharana", "logs", "gateway.log"))
	}
	candidates = append(candidates, filepath.Join(os.TempDir(), "dharana-gateway.log"))

	if path, err := ResolveLogPath(candidates); err == nil {
		return path
	}
	return candidates[len(candidates)-1]
}

// ResolveLogPath 返回第一个可写的候选路径，都不可写时返回最后一个
func ResolveLogPath(candidates []string) (string, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("no log path candidates provided")
	}
	for _, candidate := range candidates {
		expanded, err := ExpandPath(candidate)
		if err != nil {
			continue
		}
		if canWriteToPath(expanded) {
			return expanded, nil
		}
	}

	last, err := ExpandPath(candidates[len(candidates)-1])
	if err != nil {
		return "", fmt.Errorf("failed to resolve any log path: %w", err)
	}
	return last, nil
}

// canWriteToPath 创建目录并以追加方式打开文件
func canWriteToPath(path string) bool {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return false
	}
	_ = file.Close()
	return true
}
