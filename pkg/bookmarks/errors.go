package bookmarks

import "errors"

var (
	// ErrConflict: 操作会覆盖一个未加 force 的已有书签，
	// 或者前进校验失败。用户可以用 -f 或换个名字解决。
	ErrConflict = errors.New("bookmark conflict")

	// ErrNotFound: 目标名字不在 store 里。对单个操作总是致命的。
	ErrNotFound = errors.New("bookmark not found")

	// ErrNoActive: "." 展开失败，当前没有活动书签
	ErrNoActive = errors.New("no active bookmark")

	// ErrTruncatedStream: 线上解码读到半条记录，整个解码中止
	ErrTruncatedStream = errors.New("bad bookmark stream")
)
