package bookmarks

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"

	"bookvault/pkg/types"
)

// WireMark 是线格式里的一条书签记录
// Target 为 nil 表示 "该名字不存在"，编码成全 0xff 的哨兵节点。
type WireMark struct {
	Name   string
	Target *types.CommitID
}

// 线格式: 20 字节大端节点 || u16 名字字节数 || UTF-8 名字
const wireHeaderLen = types.CommitIDLen + 2

// BinaryEncode 把一批书签记录编码成二进制流
// 保持输入顺序，解码得到原序列；要字节级确定性由调用方先排序。
func BinaryEncode(marks []WireMark) ([]byte, error) {
	var buf bytes.Buffer
	for _, m := range marks {
		if !utf8.ValidString(m.Name) {
			return nil, fmt.Errorf("bookmark name %q is not valid UTF-8", m.Name)
		}
		if len(m.Name) > 0xffff {
			return nil, fmt.Errorf("bookmark name too long: %d bytes", len(m.Name))
		}
		node := types.AbsentID
		if m.Target != nil {
			node = *m.Target
		}
		buf.Write(node[:])
		var nlen [2]byte
		binary.BigEndian.PutUint16(nlen[:], uint16(len(m.Name)))
		buf.Write(nlen[:])
		buf.WriteString(m.Name)
	}
	return buf.Bytes(), nil
}

// BinaryDecode 解码一条二进制书签流
// 流在任意位置截断都返回 ErrTruncatedStream，绝不吞掉半条记录。
func BinaryDecode(data []byte) ([]WireMark, error) {
	r := bytes.NewReader(data)
	var marks []WireMark
	for {
		var header [wireHeaderLen]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			if err == io.EOF {
				return marks, nil
			}
			return nil, ErrTruncatedStream
		}
		var node types.CommitID
		copy(node[:], header[:types.CommitIDLen])
		nlen := binary.BigEndian.Uint16(header[types.CommitIDLen:])

		name := make([]byte, nlen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, ErrTruncatedStream
		}

		m := WireMark{Name: string(name)}
		if !node.IsAbsent() {
			n := node
			m.Target = &n
		}
		marks = append(marks, m)
	}
}
