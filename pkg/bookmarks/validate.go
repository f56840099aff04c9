package bookmarks

import (
	"context"
	"fmt"
	"strings"

	"bookvault/pkg/graph"
	"bookvault/pkg/types"
)

// ValidDest 判断把一个指针从 old 挪到 new 是否是非破坏性的前进移动
//
// 规则：
//   - old == new: 原地不动不算移动
//   - old 为 null: 首次赋值，什么都合法
//   - 其余情况只咨询图的一种可达关系：开了变异跟踪用前台闭包
//     (能跟上 rebase/amend/fold)，否则用普通的祖先-后代关系。
//     两种关系绝不取并集。
func ValidDest(ctx context.Context, g graph.Graph, old, new types.CommitID) (bool, error) {
	if old == new {
		// Old == new -> nothing to update.
		return false, nil
	}
	if old.IsNull() {
		// old is null, anything is valid.
		return true, nil
	}
	if g.MutationEnabled() {
		return g.InForeground(ctx, old, new)
	}
	return g.IsDescendant(ctx, old, new)
}

// 保留给图的修订语法的名字，不允许用作书签名
var reservedNames = map[string]bool{
	".":    true,
	"null": true,
	"tip":  true,
}

// CheckFormat 清洗并校验一个候选书签名，返回可用的版本
func CheckFormat(name string) (string, error) {
	mark := strings.TrimSpace(name)
	if mark == "" {
		return "", fmt.Errorf("bookmark names cannot consist entirely of whitespace")
	}
	if strings.ContainsAny(mark, ":\x00\n\r") {
		return "", fmt.Errorf("bookmark name %q contains a reserved character", mark)
	}
	if reservedNames[mark] {
		return "", fmt.Errorf("the name '%s' is reserved", mark)
	}
	if isAllDigits(mark) {
		return "", fmt.Errorf("cannot use an integer as a bookmark name")
	}
	return mark, nil
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
