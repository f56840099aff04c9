// pkg/types/common.go
package types

import (
	"encoding/hex"
	"fmt"
)

// CommitIDLen 是提交号的固定长度 (20 字节，160 bit 内容哈希)
const CommitIDLen = 20

// CommitID 唯一标识提交图里的一个节点
// 这是一个“值对象”，应当是不可变的。
// 零值 (全 0) 表示 "null"：没有旧值 / 不存在的提交。
type CommitID [CommitIDLen]byte

// AbsentID 是线上协议里的哨兵值 (全 1)，表示“缺失/工作副本”
// 对应本地的 "删除该书签" 语义
var AbsentID = CommitID{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// NullID 零值，语义上的 "没有提交"
var NullID CommitID

func (id CommitID) Hex() string    { return hex.EncodeToString(id[:]) }
func (id CommitID) String() string { return id.Hex() }

// Short 返回前 12 位十六进制，用于人类可读输出
func (id CommitID) Short() string { return id.Hex()[:12] }

func (id CommitID) IsNull() bool   { return id == NullID }
func (id CommitID) IsAbsent() bool { return id == AbsentID }

// ParseCommitID 解析 40 位十六进制字符串
func ParseCommitID(s string) (CommitID, error) {
	var id CommitID
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid commit id %q: %w", s, err)
	}
	if len(raw) != CommitIDLen {
		return id, fmt.Errorf("invalid commit id %q: need %d bytes, got %d", s, CommitIDLen, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// RemotePath 标识一个远端 (配置里 paths.* 的 key，例如 "default")
type RemotePath string

func (p RemotePath) String() string { return string(p) }
