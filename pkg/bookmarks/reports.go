package bookmarks

import (
	"context"
	"fmt"

	"bookvault/pkg/types"
)

func shortID(id *types.CommitID) string {
	if id == nil {
		return ""
	}
	return id.Short()
}

func (s *Store) reportLine(name, id, status string) {
	s.rep.Statusf("   %-25s %s %s\n", name, id, status)
}

// Incoming 打印远端有、本地没有或落后的书签，返回条目数
func (s *Store) Incoming(ctx context.Context, remoteMarks map[string]types.CommitID) (int, error) {
	comp, err := Compare(ctx, s.graph, remoteMarks, s.All(), nil)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, m := range comp.AddSrc {
		s.reportLine(m.Name, shortID(m.Src), "added")
		count++
	}
	for _, m := range comp.AdvSrc {
		s.reportLine(m.Name, shortID(m.Src), "advanced")
		count++
	}
	for _, m := range comp.Diverge {
		s.reportLine(m.Name, shortID(m.Src), "diverged")
		count++
	}
	for _, m := range comp.Differ {
		s.reportLine(m.Name, shortID(m.Src), "changed")
		count++
	}
	return count, nil
}

// Outgoing 打印本地有、远端没有或落后的书签，返回条目数
// 远端已删除而本地还在的名字报 "deleted"。
func (s *Store) Outgoing(ctx context.Context, remoteMarks map[string]types.CommitID) (int, error) {
	comp, err := Compare(ctx, s.graph, s.All(), remoteMarks, nil)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, m := range comp.AddSrc {
		s.reportLine(m.Name, shortID(m.Src), "added")
		count++
	}
	for _, m := range comp.AddDst {
		s.reportLine(m.Name, "", "deleted")
		count++
	}
	for _, m := range comp.AdvSrc {
		s.reportLine(m.Name, shortID(m.Src), "advanced")
		count++
	}
	for _, m := range comp.Diverge {
		s.reportLine(m.Name, shortID(m.Src), "diverged")
		count++
	}
	for _, m := range comp.Differ {
		s.reportLine(m.Name, shortID(m.Src), "changed")
		count++
	}
	return count, nil
}

// Summary 返回远端相对本地新增的书签数量，用于一句话摘要
func (s *Store) Summary(ctx context.Context, remoteMarks map[string]types.CommitID) (int, error) {
	comp, err := Compare(ctx, s.graph, remoteMarks, s.All(), nil)
	if err != nil {
		return 0, err
	}
	return len(comp.AddSrc), nil
}

// SummaryLine 把 Summary 的结果格式化成一行，没有差异返回空串
func (s *Store) SummaryLine(ctx context.Context, remoteMarks map[string]types.CommitID) (string, error) {
	n, err := s.Summary(ctx, remoteMarks)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	return fmt.Sprintf("%d incoming bookmarks", n), nil
}
