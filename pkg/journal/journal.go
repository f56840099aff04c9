package journal

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"bookvault/pkg/storage"
	"bookvault/pkg/types"

	"github.com/fxamacker/cbor/v2"
)

// KindRemoteBookmark 是远端书签更新在日志里的命名空间
const KindRemoteBookmark = "remotebookmark"

// Entry 是一条审计记录：某个名字从 Old 挪到了 New
// 零值的 CommitID 表示“当时不存在”。
type Entry struct {
	Name string         `cbor:"n"`
	Old  types.CommitID `cbor:"o"`
	New  types.CommitID `cbor:"w"`
}

// Journal 是追加式审计/undo 日志的最小接口
type Journal interface {
	RecordMany(ctx context.Context, kind string, entries []Entry) error
}

// 记录采用确定性编码：强制 Map Key 排序 (Canonical)，
// 禁止不定长编码，同一条记录永远产生同样的字节
var encOptions = cbor.EncOptions{
	Sort:        cbor.SortCanonical,
	IndefLength: cbor.IndefLengthForbidden,
	Time:        cbor.TimeUnix,
	TimeTag:     cbor.EncTagNone,
}

var em, _ = encOptions.EncMode()

var decOptions = cbor.DecOptions{
	// 防 DoS：限制容器大小和嵌套深度
	MaxArrayElements: 10000,
	MaxMapPairs:      10000,
	MaxNestedLevels:  32,

	IndefLength: cbor.IndefLengthForbidden,
	DupMapKey:   cbor.DupMapKeyEnforcedAPF,
}

var dm, _ = decOptions.DecMode()

// record 是落盘的一帧，带 kind 标签
type record struct {
	Kind  string  `cbor:"k"`
	Items []Entry `cbor:"e"`
}

// FileJournal 把记录追加到存储里的单个文件
// 帧格式: u32 大端长度前缀 || canonical CBOR record
type FileJournal struct {
	store storage.Store
	name  string // 比如 "journal"
}

func NewFileJournal(store storage.Store, name string) *FileJournal {
	return &FileJournal{store: store, name: name}
}

// RecordMany 追加一批记录 (一帧)
// 存储层只有整文件替换，所以追加 = 锁 + 读旧 + 写新；
// 日志量级是“每次 pull 几条”，这个代价可以接受。
func (j *FileJournal) RecordMany(ctx context.Context, kind string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	payload, err := em.Marshal(record{Kind: kind, Items: entries})
	if err != nil {
		return fmt.Errorf("failed to encode journal record: %w", err)
	}

	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(payload)))
	copy(frame[4:], payload)

	unlock, err := j.store.Lock(ctx, j.name)
	if err != nil {
		return err
	}
	defer unlock()

	old, err := j.store.Read(ctx, j.name)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	return j.store.Write(ctx, j.name, append(old, frame...))
}

// ReadAll 按写入顺序取回全部记录，供审计工具使用
func (j *FileJournal) ReadAll(ctx context.Context, kind string) ([]Entry, error) {
	data, err := j.store.Read(ctx, j.name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []Entry
	for len(data) > 0 {
		if len(data) < 4 {
			return nil, fmt.Errorf("truncated journal frame header")
		}
		size := binary.BigEndian.Uint32(data[:4])
		data = data[4:]
		if uint32(len(data)) < size {
			return nil, fmt.Errorf("truncated journal frame")
		}

		var rec record
		if err := dm.Unmarshal(data[:size], &rec); err != nil {
			return nil, fmt.Errorf("corrupt journal record: %w", err)
		}
		data = data[size:]

		if rec.Kind == kind {
			out = append(out, rec.Items...)
		}
	}
	return out, nil
}
