// Package selectpull 决定一次同步要不要拉某个远端书签
package selectpull

import (
	"os"
	"path/filepath"
	"sort"

	gitignore "github.com/sabhiram/go-gitignore"
)

// Matcher 按名字模式圈定 selective pull 的书签范围
// 模式用 gitignore 语法 (支持 "release/*"、"!release/frozen" 这类写法)。
type Matcher struct {
	important *gitignore.GitIgnore
	accessed  map[string]bool
}

// NewMatcher 初始化匹配器
// defaults: 配置里的重点书签 (例如 "main")，永远在范围内
// accessed: 用户实际访问过的名字，逐名精确匹配
// rootPath: 仓库根目录，存在 .bvpull 文件时合并里面的模式
func NewMatcher(rootPath string, defaults, accessed []string) (*Matcher, error) {
	accessedSet := make(map[string]bool, len(accessed))
	for _, name := range accessed {
		accessedSet[name] = true
	}

	var important *gitignore.GitIgnore
	var err error

	pullFilePath := filepath.Join(rootPath, ".bvpull")
	if _, errStat := os.Stat(pullFilePath); errStat == nil {
		// 用户自己的模式文件和配置默认值合并编译
		important, err = gitignore.CompileIgnoreFileAndLines(pullFilePath, defaults...)
	} else {
		important = gitignore.CompileIgnoreLines(defaults...)
	}
	if err != nil {
		return nil, err
	}

	return &Matcher{important: important, accessed: accessedSet}, nil
}

// Wants 判断书签 name 是否在本次同步范围内
func (m *Matcher) Wants(name string) bool {
	if m.accessed[name] {
		return true
	}
	if m.important == nil {
		return false
	}
	return m.important.MatchesPath(name)
}

// Filter 从一份远端快照里挑出范围内的名字，排序返回
func (m *Matcher) Filter(remoteMarks map[string]bool) []string {
	var names []string
	for name := range remoteMarks {
		if m.Wants(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
