package bookmarks

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"bookvault/pkg/graph"
	"bookvault/pkg/transaction"
	"bookvault/pkg/types"
)

// Mark 是比较结果里的一个条目
// Src/Dst 为 nil 表示该侧没有这个名字。
type Mark struct {
	Name string
	Src  *types.CommitID
	Dst  *types.CommitID
}

// Comparison 把两个命名空间的全部名字划进八个互斥的桶
type Comparison struct {
	AddSrc  []Mark // 源侧新增 (目的侧也许删了)
	AddDst  []Mark // 目的侧新增 (源侧也许删了)
	AdvSrc  []Mark // 源侧前进了
	AdvDst  []Mark // 目的侧前进了
	Diverge []Mark // 两侧各自指向不可比的提交
	Differ  []Mark // 不同，但至少一侧的目标本地不认识，没法细分
	Invalid []Mark // 两侧都没有 (只有 targets 过滤时会出现)
	Same    []Mark // 两侧一致
}

// Compare 比较 src 和 dst 两个书签命名空间
//
// 候选名集合是两侧名字的并集；targets 非空时只检查它列出的名字。
// 名字按字典序处理，结果是确定性的。
func Compare(ctx context.Context, g graph.Graph, src, dst map[string]types.CommitID, targets []string) (*Comparison, error) {
	var names []string
	if len(targets) > 0 {
		names = append(names, targets...)
	} else {
		seen := make(map[string]bool, len(src)+len(dst))
		for name := range src {
			seen[name] = true
		}
		for name := range dst {
			seen[name] = true
		}
		for name := range seen {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	result := &Comparison{}
	for _, name := range names {
		scid, inSrc := src[name]
		dcid, inDst := dst[name]

		switch {
		case !inSrc && !inDst:
			result.Invalid = append(result.Invalid, Mark{Name: name})
		case !inSrc:
			d := dcid
			result.AddDst = append(result.AddDst, Mark{Name: name, Dst: &d})
		case !inDst:
			s := scid
			result.AddSrc = append(result.AddSrc, Mark{Name: name, Src: &s})
		default:
			s, d := scid, dcid
			m := Mark{Name: name, Src: &s, Dst: &d}
			if scid == dcid {
				result.Same = append(result.Same, m)
				continue
			}

			srcKnown, err := g.Resolve(ctx, scid)
			if err != nil {
				return nil, err
			}
			dstKnown, err := g.Resolve(ctx, dcid)
			if err != nil {
				return nil, err
			}
			if !srcKnown || !dstKnown {
				// it is too expensive to examine in detail, in this case
				result.Differ = append(result.Differ, m)
				continue
			}

			srcOrder, err := g.RevOrder(ctx, scid)
			if err != nil {
				return nil, err
			}
			dstOrder, err := g.RevOrder(ctx, dcid)
			if err != nil {
				return nil, err
			}

			// 序号小的一侧是祖先候选：从它出发是前进移动，
			// 就判给另一侧 advance，否则就是发散
			if srcOrder < dstOrder {
				ok, err := ValidDest(ctx, g, scid, dcid)
				if err != nil {
					return nil, err
				}
				if ok {
					result.AdvDst = append(result.AdvDst, m)
				} else {
					result.Diverge = append(result.Diverge, m)
				}
			} else {
				ok, err := ValidDest(ctx, g, dcid, scid)
				if err != nil {
					return nil, err
				}
				if ok {
					result.AdvSrc = append(result.AdvSrc, m)
				} else {
					result.Diverge = append(result.Diverge, m)
				}
			}
		}
	}
	return result, nil
}

// queuedChange 是 UpdateFromRemote 暂存的一条变更，带上要打印的消息
// target 为 nil 表示删除该名字 (显式导入一个远端已删的书签)
type queuedChange struct {
	name   string
	target *types.CommitID
	warn   bool
	msg    string
}

// UpdateFromRemote 把一份远端命名空间快照单向吸收进本地 store
//
// path 是远端的引用 (路径或 URL)，pathAliases 是配置的 paths.* 表，
// 用于给发散书签起 "@alias" 后缀。explicit 里的名字是用户点名要拉的，
// 对它们发散/落后都按显式导入 (覆盖) 处理。
//
// 有变更要做时，用 trFunc 开一个事务，一批应用，成功后由本函数 Close。
func (s *Store) UpdateFromRemote(ctx context.Context, remoteMarks map[string]types.CommitID, path string, trFunc func() (*transaction.Tx, error), explicit []string, pathAliases map[string]string) error {
	comp, err := Compare(ctx, s.graph, remoteMarks, s.All(), nil)
	if err != nil {
		return err
	}

	explicitSet := make(map[string]bool, len(explicit))
	for _, name := range explicit {
		explicitSet[name] = true
	}

	var changed []queuedChange

	for _, m := range comp.AddSrc {
		known, err := s.graph.Resolve(ctx, *m.Src)
		if err != nil {
			return err
		}
		if known {
			// add remote bookmarks for changes we already have
			changed = append(changed, queuedChange{
				name: m.Name, target: m.Src,
				msg: fmt.Sprintf("adding remote bookmark %s\n", m.Name),
			})
		} else if explicitSet[m.Name] {
			delete(explicitSet, m.Name)
			s.rep.Warnf("remote bookmark %s points to locally missing %s\n", m.Name, m.Src.Short())
		}
	}

	for _, m := range comp.AdvSrc {
		changed = append(changed, queuedChange{
			name: m.Name, target: m.Src,
			msg: fmt.Sprintf("updating bookmark %s\n", m.Name),
		})
	}
	// 正常前进覆盖到的名字不再算显式请求
	for _, c := range changed {
		delete(explicitSet, c.name)
	}

	for _, m := range comp.Diverge {
		if explicitSet[m.Name] {
			delete(explicitSet, m.Name)
			changed = append(changed, queuedChange{
				name: m.Name, target: m.Src,
				msg: fmt.Sprintf("importing bookmark %s\n", m.Name),
			})
			continue
		}
		db := assignDivergentName(m.Name, path, s.entries, *m.Src, pathAliases)
		if db != "" {
			changed = append(changed, queuedChange{
				name: db, target: m.Src, warn: true,
				msg: fmt.Sprintf("divergent bookmark %s stored as %s\n", m.Name, db),
			})
		} else {
			s.rep.Warnf("warning: failed to assign numbered name to divergent bookmark %s\n", m.Name)
		}
	}

	// 远端删了 (AddDst) 或落后 (AdvDst) 的名字，只有显式点名才导入；
	// AddDst 的 Src 为 nil，导入即本地删除
	for _, m := range append(append([]Mark{}, comp.AddDst...), comp.AdvDst...) {
		if explicitSet[m.Name] {
			delete(explicitSet, m.Name)
			changed = append(changed, queuedChange{
				name: m.Name, target: m.Src,
				msg: fmt.Sprintf("importing bookmark %s\n", m.Name),
			})
		}
	}

	for _, m := range comp.Differ {
		if explicitSet[m.Name] {
			delete(explicitSet, m.Name)
			s.rep.Warnf("remote bookmark %s points to locally missing %s\n", m.Name, m.Src.Short())
		}
	}

	if len(changed) == 0 {
		return nil
	}

	sort.Slice(changed, func(i, j int) bool { return changed[i].name < changed[j].name })

	tx, err := trFunc()
	if err != nil {
		return err
	}
	var changes []Change
	for i := range changed {
		c := changed[i]
		changes = append(changes, Change{Name: c.name, Target: c.target})
		if c.warn {
			s.rep.Warnf("%s", c.msg)
		} else {
			s.rep.Statusf("%s", c.msg)
		}
	}
	if err := s.ApplyChanges(ctx, tx, changes); err != nil {
		tx.Abort(ctx)
		return err
	}
	return tx.Close(ctx)
}

// assignDivergentName 给一个发散书签挑一个本地名字
//
// 优先用 "@路径别名" 后缀 (已存在就覆盖更新它)；
// 否则线性扫描 "@1".."@99"，取第一个没被占用、或者已经指向
// remoteTarget 的名字 (幂等复用)。99 个都用完返回空串，调用方警告并跳过。
// 这个 99 的上限是可观测行为的一部分，不要调大。
func assignDivergentName(name, path string, localMarks map[string]types.CommitID, remoteTarget types.CommitID, pathAliases map[string]string) string {
	base := name
	if base == "@" {
		base = ""
	}

	// try to use an @pathalias suffix
	normPath := normalizeFileURL(path)
	aliases := make([]string, 0, len(pathAliases))
	for alias := range pathAliases {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		if normalizeFileURL(pathAliases[alias]) == normPath {
			return base + "@" + alias
		}
	}

	// assign a unique "@number" suffix newly
	for x := 1; x < 100; x++ {
		n := fmt.Sprintf("%s@%d", base, x)
		existing, ok := localMarks[n]
		if !ok || existing == remoteTarget {
			return n
		}
	}
	return ""
}

// normalizeFileURL 把 file: 形式的本地引用归一成文件系统路径
func normalizeFileURL(path string) string {
	if rest, ok := strings.CutPrefix(path, "file://"); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(path, "file:"); ok {
		return rest
	}
	return path
}
